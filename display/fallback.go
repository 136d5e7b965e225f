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

package display

import (
	"github.com/tangelo-emu/tangelo/host"
	"github.com/tangelo-emu/tangelo/logger"
	"github.com/tangelo-emu/tangelo/rasterizer"
	"github.com/tangelo-emu/tangelo/rasterizer/surfaces"
)

// uploadScreen is the software presentation path. The guest framebuffer
// bytes are flushed, decoded and uploaded to a per-screen scratch
// texture.
func (d *Display) uploadScreen(screen int, cfg *rasterizer.DisplayConfig) (host.TextureID, host.Rect, bool) {
	params := surfaces.SurfaceParams{
		Addr:     cfg.Addr,
		Width:    cfg.Width,
		Height:   cfg.Height,
		Stride:   cfg.Stride,
		Format:   surfaces.FromColorFormat(cfg.Format),
		ResScale: 1,
	}
	params.UpdateParams()

	// any fill or render result still pending on the host must reach
	// the guest bytes before they are decoded
	d.rast.FlushRegion(params.Addr, params.Size)

	ref, ok := d.mem.GetPhysicalRef(params.Addr)
	if !ok || ref.Size() < params.Size {
		logger.Logf(logger.Allow, "display", "screen framebuffer at %#08x outside guest memory", cfg.Addr)
		return 0, host.Rect{}, false
	}

	w := int(cfg.Width)
	h := int(cfg.Height)
	if d.fallback[screen] == 0 || d.fallbackW[screen] != w || d.fallbackH[screen] != h {
		if d.fallback[screen] != 0 {
			d.backend.DestroyTexture(d.fallback[screen])
		}
		d.fallback[screen] = d.backend.CreateTexture(host.FormatRGBA8, w, h)
		d.fallbackW[screen] = w
		d.fallbackH[screen] = h
	}

	pixels := make([]byte, w*h*4)
	surfaces.GuestToHost(&params, ref.Ptr()[:params.Size], pixels)

	rect := host.Rect{X: 0, Y: 0, W: w, H: h}
	d.backend.Upload(d.fallback[screen], host.FormatRGBA8, rect, pixels)
	return d.fallback[screen], rect, true
}
