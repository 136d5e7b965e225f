// This file is part of Tangelo.
//
// Tangelo is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Tangelo is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Tangelo.  If not, see <https://www.gnu.org/licenses/>.

package rasterizer

import (
	"encoding/binary"

	"github.com/tangelo-emu/tangelo/host"
	"github.com/tangelo-emu/tangelo/memory/memorymap"
	"github.com/tangelo-emu/tangelo/pica"
	"github.com/tangelo-emu/tangelo/rasterizer/surfaces"
)

// DisplayTransferConfig describes a transfer engine display transfer:
// a format converting, optionally scaling copy between two framebuffer
// images.
type DisplayTransferConfig struct {
	InputAddr    memorymap.PAddr
	OutputAddr   memorymap.PAddr
	InputWidth   uint32
	InputHeight  uint32
	OutputWidth  uint32
	OutputHeight uint32
	InputFormat  pica.ColorFormat
	OutputFormat pica.ColorFormat

	// InputLinear is set when the input rows are stored linearly rather
	// than in the tiled framebuffer order
	InputLinear bool

	// OutputTiled is set when the output is written in tiled order
	OutputTiled bool

	VerticalFlip bool

	// the engine can halve the image in either direction while copying
	DownscaleX bool
	DownscaleY bool
}

// TextureCopyConfig describes a raw byte copy with per-line gaps. All
// measures are in bytes.
type TextureCopyConfig struct {
	InputAddr   memorymap.PAddr
	OutputAddr  memorymap.PAddr
	Size        uint32
	InputWidth  uint32
	InputGap    uint32
	OutputWidth uint32
	OutputGap   uint32
}

// FillConfig describes a memory fill: a repeating 2, 3 or 4 byte
// pattern written over a physical range.
type FillConfig struct {
	Start memorymap.PAddr
	End   memorymap.PAddr
	Value uint32

	// Width is the pattern size in bytes
	Width int
}

// DisplayConfig describes a screen framebuffer about to be presented.
type DisplayConfig struct {
	Addr   memorymap.PAddr
	Width  uint32
	Height uint32
	Stride uint32
	Format pica.ColorFormat
}

// AccelerateDisplayTransfer performs a display transfer on the host
// when both ends resolve to cached surfaces. Returns false on any
// unsupported path; the caller then falls back to a software copy
// through guest memory.
func (r *Rasterizer) AccelerateDisplayTransfer(cfg *DisplayTransferConfig) bool {
	if cfg.InputAddr == 0 || cfg.OutputAddr == 0 {
		return false
	}

	srcParams := surfaces.SurfaceParams{
		Addr:     cfg.InputAddr,
		Width:    cfg.InputWidth,
		Height:   cfg.InputHeight,
		IsTiled:  !cfg.InputLinear,
		Format:   surfaces.FromColorFormat(cfg.InputFormat),
		ResScale: r.resScale,
	}
	srcParams.UpdateParams()

	outWidth := cfg.OutputWidth
	outHeight := cfg.OutputHeight
	if cfg.DownscaleX {
		outWidth = cfg.InputWidth / 2
	}
	if cfg.DownscaleY {
		outHeight = cfg.InputHeight / 2
	}

	src, srcRect := r.surfaces.GetSurfaceSubRect(srcParams, surfaces.ScaleMatchIgnore, true)
	if src == nil {
		return false
	}

	dstParams := surfaces.SurfaceParams{
		Addr:     cfg.OutputAddr,
		Width:    outWidth,
		Height:   outHeight,
		IsTiled:  cfg.OutputTiled,
		Format:   surfaces.FromColorFormat(cfg.OutputFormat),
		ResScale: src.ResScale,
	}
	dstParams.UpdateParams()

	dst, dstRect := r.surfaces.GetSurfaceSubRect(dstParams, surfaces.ScaleMatchUpscale, false)
	if dst == nil {
		return false
	}

	if cfg.VerticalFlip {
		srcRect.Y += srcRect.H
		srcRect.H = -srcRect.H
	}

	if !r.surfaces.BlitSurfaces(src, srcRect, dst, dstRect) {
		return false
	}

	r.surfaces.InvalidateRegion(dstParams.Addr, dstParams.Size, dst)
	return true
}

// AccelerateTextureCopy performs a raw texture copy on the host when
// the source bytes are owned by a cached surface. Returns false on any
// unsupported path.
func (r *Rasterizer) AccelerateTextureCopy(cfg *TextureCopyConfig) bool {
	if cfg.Size == 0 || cfg.InputAddr == 0 || cfg.OutputAddr == 0 {
		return false
	}

	// mismatched line geometry would need a repacking pass on the host
	if cfg.OutputWidth != cfg.InputWidth || cfg.OutputGap != cfg.InputGap {
		return false
	}

	width := cfg.InputWidth
	gap := cfg.InputGap
	if width == 0 {
		if gap != 0 {
			return false
		}
		width = cfg.Size
	}
	if cfg.Size%width != 0 {
		return false
	}
	lines := cfg.Size / width

	srcParams := surfaces.SurfaceParams{
		Addr:   cfg.InputAddr,
		Width:  width,
		Stride: width + gap,
		Height: lines,
		Size:   (lines-1)*(width+gap) + width,
	}
	srcParams.End = srcParams.Addr + memorymap.PAddr(srcParams.Size)

	src, srcRect := r.surfaces.GetTexCopySurface(srcParams)
	if src == nil {
		return false
	}

	dstParams := surfaces.SurfaceParams{
		Addr:     cfg.OutputAddr,
		Width:    uint32(srcRect.W) / src.ResScale,
		Height:   uint32(srcRect.H) / src.ResScale,
		IsTiled:  src.IsTiled,
		Format:   src.Format,
		ResScale: src.ResScale,
	}
	dstParams.UpdateParams()

	dst, dstRect := r.surfaces.GetSurfaceSubRect(dstParams, surfaces.ScaleMatchUpscale, false)
	if dst == nil {
		return false
	}

	if !r.surfaces.BlitSurfaces(src, srcRect, dst, dstRect) {
		return false
	}

	r.surfaces.InvalidateRegion(dstParams.Addr, dstParams.Size, dst)
	return true
}

// AccelerateFill records a memory fill as a fill surface. Returns false
// when the pattern cannot be represented.
func (r *Rasterizer) AccelerateFill(cfg *FillConfig) bool {
	if cfg.End <= cfg.Start || cfg.Width < 2 || cfg.Width > 4 {
		return false
	}

	var pattern [4]byte
	binary.LittleEndian.PutUint32(pattern[:], cfg.Value)

	size := uint32(cfg.End - cfg.Start)
	return r.surfaces.GetFillSurface(cfg.Start, size, pattern[:cfg.Width]) != nil
}

// AccelerateDisplay resolves a screen framebuffer to its cached host
// texture for presentation. Returns false when the framebuffer is not
// cached; the display layer then uploads the guest bytes itself.
func (r *Rasterizer) AccelerateDisplay(cfg *DisplayConfig) (host.TextureID, host.Rect, bool) {
	if cfg.Addr == 0 || cfg.Width == 0 || cfg.Height == 0 {
		return 0, host.Rect{}, false
	}

	params := surfaces.SurfaceParams{
		Addr:     cfg.Addr,
		Width:    cfg.Width,
		Height:   cfg.Height,
		Stride:   cfg.Stride,
		IsTiled:  false,
		Format:   surfaces.FromColorFormat(cfg.Format),
		ResScale: r.resScale,
	}
	params.UpdateParams()

	surface, rect := r.surfaces.GetSurfaceSubRect(params, surfaces.ScaleMatchIgnore, true)
	if surface == nil {
		return 0, host.Rect{}, false
	}
	return surface.Texture, rect, true
}
