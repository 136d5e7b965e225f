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

package surfaces

import (
	"github.com/tangelo-emu/tangelo/host"
	"github.com/tangelo-emu/tangelo/memory/memorymap"
	"github.com/tangelo-emu/tangelo/pica"
)

// PixelFormat enumerates the guest surface formats the cache
// understands. The first five values coincide with the guest's color
// buffer formats, the first fourteen with its texture formats.
type PixelFormat int

const (
	PixelRGBA8 PixelFormat = iota
	PixelRGB8
	PixelRGB5A1
	PixelRGB565
	PixelRGBA4
	PixelIA8
	PixelRG8
	PixelI8
	PixelA8
	PixelIA4
	PixelI4
	PixelA4
	PixelETC1
	PixelETC1A4
	PixelD16
	pixelUnused15
	PixelD24
	PixelD24S8
	PixelInvalid PixelFormat = -1
)

var formatBits = [18]uint32{32, 24, 16, 16, 16, 16, 16, 8, 8, 8, 4, 4, 4, 8, 16, 0, 24, 32}

// BitsPerPixel returns the guest storage size of one pixel in bits. The
// sub-byte formats are why sizes are counted in bits.
func (f PixelFormat) BitsPerPixel() uint32 {
	if f < 0 || int(f) >= len(formatBits) {
		return 0
	}
	return formatBits[f]
}

// FromColorFormat converts a guest color buffer format.
func FromColorFormat(f pica.ColorFormat) PixelFormat {
	return PixelFormat(f)
}

// FromTextureFormat converts a guest texture format.
func FromTextureFormat(f pica.TextureFormat) PixelFormat {
	if f > pica.TexETC1A4 {
		return PixelInvalid
	}
	return PixelFormat(f)
}

// FromDepthFormat converts a guest depth buffer format.
func FromDepthFormat(f pica.DepthFormat) PixelFormat {
	switch f {
	case pica.DepthD16:
		return PixelD16
	case pica.DepthD24:
		return PixelD24
	case pica.DepthD24S8:
		return PixelD24S8
	}
	return PixelInvalid
}

// HostFormat returns the host texture format the guest format is decoded
// into. Every color and texture format widens to RGBA8; depth formats
// keep their host equivalents.
func (f PixelFormat) HostFormat() host.PixelFormat {
	switch f {
	case PixelD16:
		return host.FormatD16
	case PixelD24:
		return host.FormatD24
	case PixelD24S8:
		return host.FormatD24S8
	}
	return host.FormatRGBA8
}

// SurfaceType classifies what a surface is used as.
type SurfaceType int

const (
	TypeColor SurfaceType = iota
	TypeTexture
	TypeDepth
	TypeDepthStencil
	TypeFill
	TypeInvalid
)

// TypeFromFormat derives the surface type of a pixel format.
func TypeFromFormat(f PixelFormat) SurfaceType {
	switch {
	case f == PixelInvalid:
		return TypeInvalid
	case f <= PixelRGBA4:
		return TypeColor
	case f <= PixelETC1A4:
		return TypeTexture
	case f == PixelD16 || f == PixelD24:
		return TypeDepth
	case f == PixelD24S8:
		return TypeDepthStencil
	}
	return TypeInvalid
}

// blendable reports whether two surface types can share host data. Color
// and texture surfaces interchange freely; depth never mixes with color.
func compatibleTypes(a, b SurfaceType) bool {
	if a == b {
		return true
	}
	colorish := func(t SurfaceType) bool {
		return t == TypeColor || t == TypeTexture || t == TypeFill
	}
	return colorish(a) && colorish(b)
}

// ScaleMatch controls how strictly surface matching treats the upscale
// factor.
type ScaleMatch int

const (
	// ScaleMatchExact requires an identical res scale
	ScaleMatchExact ScaleMatch = iota

	// ScaleMatchUpscale accepts any res scale at least as large
	ScaleMatchUpscale

	// ScaleMatchIgnore accepts any res scale
	ScaleMatchIgnore
)

// SurfaceParams describes the guest extent and format of a surface.
type SurfaceParams struct {
	Addr   memorymap.PAddr
	End    memorymap.PAddr
	Size   uint32
	Width  uint32
	Height uint32
	Stride uint32

	IsTiled bool
	Format  PixelFormat
	Type    SurfaceType

	// ResScale is the integer host upscale factor.
	ResScale uint32
}

// BytesInPixels converts a pixel count to guest bytes.
func (p *SurfaceParams) BytesInPixels(pixels uint32) uint32 {
	return pixels * p.Format.BitsPerPixel() / 8
}

// PixelsInBytes converts guest bytes to a pixel count.
func (p *SurfaceParams) PixelsInBytes(bytes uint32) uint32 {
	return bytes * 8 / p.Format.BitsPerPixel()
}

// UpdateParams fills the derived fields (Size, End, Stride default) from
// the primary ones. Call after changing Addr, Width, Height or Stride.
func (p *SurfaceParams) UpdateParams() {
	if p.Stride == 0 {
		p.Stride = p.Width
	}
	p.Type = TypeFromFormat(p.Format)
	if p.IsTiled {
		p.Size = p.BytesInPixels(p.Stride*8*(p.Height/8-1) + p.Width*8)
	} else {
		p.Size = p.BytesInPixels(p.Stride*(p.Height-1) + p.Width)
	}
	p.End = p.Addr + memorymap.PAddr(p.Size)
}

// Interval returns the guest extent as an interval.
func (p *SurfaceParams) Interval() Interval {
	return Interval{Start: p.Addr, End: p.End}
}

// ScaledWidth returns the width of the host texture.
func (p *SurfaceParams) ScaledWidth() uint32 {
	return p.Width * p.ResScale
}

// ScaledHeight returns the height of the host texture.
func (p *SurfaceParams) ScaledHeight() uint32 {
	return p.Height * p.ResScale
}

// tileSize is the guest's tile edge in pixels.
const tileSize = 8

// FromInterval returns the sub-surface of p that covers interval,
// aligned outward to whole rows (whole tile rows for tiled surfaces).
func (p *SurfaceParams) FromInterval(interval Interval) SurfaceParams {
	params := *p
	tiled := uint32(1)
	if p.IsTiled {
		tiled = tileSize
	}
	strideBytes := p.BytesInPixels(p.Stride * tiled)

	alignDown := func(v uint32, a uint32) uint32 { return v - v%a }
	alignUp := func(v uint32, a uint32) uint32 { return (v + a - 1) / a * a }

	start := p.Addr + memorymap.PAddr(alignDown(uint32(interval.Start-p.Addr), strideBytes))
	end := p.Addr + memorymap.PAddr(alignUp(uint32(interval.End-p.Addr), strideBytes))
	if end > p.End {
		end = p.End
	}

	if uint32(end-start) > strideBytes {
		params.Addr = start
		params.Height = p.PixelsInBytes(uint32(end-start)) / p.Stride
	} else {
		// a single row. align to whole tiles within the row
		tileAlign := p.BytesInPixels(tiled * tiled)
		start = p.Addr + memorymap.PAddr(alignDown(uint32(interval.Start-p.Addr), tileAlign))
		end = p.Addr + memorymap.PAddr(alignUp(uint32(interval.End-p.Addr), tileAlign))
		params.Addr = start
		params.Width = p.PixelsInBytes(uint32(end-start)) / tiled
		params.Height = tiled
	}

	params.Stride = p.Stride
	params.UpdateParams()
	return params
}

// ExactMatch reports whether the two surfaces describe the same guest
// data.
func (p *SurfaceParams) ExactMatch(o *SurfaceParams) bool {
	return p.Addr == o.Addr &&
		p.Width == o.Width &&
		p.Height == o.Height &&
		p.Stride == o.Stride &&
		p.Format == o.Format &&
		p.IsTiled == o.IsTiled
}

// CanSubRect reports whether sub describes a sub-rectangle of p.
func (p *SurfaceParams) CanSubRect(sub *SurfaceParams) bool {
	if sub.Addr < p.Addr || sub.End > p.End ||
		sub.Format != p.Format || sub.IsTiled != p.IsTiled {
		return false
	}
	align := uint32(1)
	if p.IsTiled {
		align = tileSize * tileSize
	}
	if (uint32(sub.Addr-p.Addr))%p.BytesInPixels(align) != 0 {
		return false
	}

	from := p.FromInterval(sub.Interval())
	return from.Interval() == sub.Interval() && sub.Width <= p.Stride
}

// CanExpand reports whether p can grow to absorb expanded, which must
// share the stride and touch or overlap p with matching row phase.
func (p *SurfaceParams) CanExpand(expanded *SurfaceParams) bool {
	if expanded.Format != p.Format || expanded.IsTiled != p.IsTiled ||
		expanded.Stride != p.Stride {
		return false
	}
	if p.Addr > expanded.End || expanded.Addr > p.End {
		return false
	}

	tiled := uint32(1)
	if p.IsTiled {
		tiled = tileSize
	}
	rowBytes := p.BytesInPixels(p.Stride * tiled)

	var diff uint32
	if p.Addr > expanded.Addr {
		diff = uint32(p.Addr - expanded.Addr)
	} else {
		diff = uint32(expanded.Addr - p.Addr)
	}
	return diff%rowBytes == 0
}

// CanTexCopy reports whether a raw texture copy described by texcopy can
// be served from p. A texcopy's width, height and stride count bytes
// rather than pixels.
func (p *SurfaceParams) CanTexCopy(texcopy *SurfaceParams) bool {
	if p.Format == PixelInvalid || texcopy.Addr < p.Addr || texcopy.End > p.End {
		return false
	}

	tiled := uint32(1)
	if p.IsTiled {
		tiled = tileSize
	}

	if texcopy.Width != texcopy.Stride {
		// row-strided copy: each copied run must stay within one of p's
		// tile rows and start on a tile boundary
		tileAlign := p.BytesInPixels(tiled * tiled)
		rowBytes := p.BytesInPixels(p.Stride * tiled)
		offset := uint32(texcopy.Addr - p.Addr)
		if offset%tileAlign != 0 || texcopy.Width%tileAlign != 0 {
			return false
		}
		if texcopy.Height != 1 && texcopy.Stride != rowBytes {
			return false
		}
		return offset%rowBytes+texcopy.Width <= rowBytes
	}

	from := p.FromInterval(texcopy.Interval())
	return from.Interval() == texcopy.Interval()
}

// SubRect returns the rectangle of p's host texture covered by sub, in
// unscaled pixels.
func (p *SurfaceParams) SubRect(sub *SurfaceParams) host.Rect {
	begin := p.PixelsInBytes(uint32(sub.Addr - p.Addr))
	var x0, y0 uint32
	if p.IsTiled {
		x0 = (begin % (p.Stride * tileSize)) / tileSize
		y0 = (begin / (p.Stride * tileSize)) * tileSize
	} else {
		x0 = begin % p.Stride
		y0 = begin / p.Stride
	}
	return host.Rect{X: int(x0), Y: int(y0), W: int(sub.Width), H: int(sub.Height)}
}

// ScaledSubRect returns the rectangle of p's host texture covered by
// sub, in host (scaled) pixels.
func (p *SurfaceParams) ScaledSubRect(sub *SurfaceParams) host.Rect {
	return p.SubRect(sub).Scaled(int(p.ResScale))
}
