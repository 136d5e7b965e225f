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
	"testing"

	"github.com/tangelo-emu/tangelo/host"
	"github.com/tangelo-emu/tangelo/memory"
	"github.com/tangelo-emu/tangelo/memory/memorymap"
	"github.com/tangelo-emu/tangelo/pica"
	"github.com/tangelo-emu/tangelo/rasterizer"
	"github.com/tangelo-emu/tangelo/test"
)

const testScreenAddr = memorymap.VRAMPAddr

// a display without a window, presenting through the headless backend
func newTestDisplay(t *testing.T) (*Display, *host.Headless) {
	t.Helper()
	mem := memory.NewMemory()
	backend := host.NewHeadless()
	state := pica.NewState()
	return &Display{
		backend: backend,
		mem:     mem,
		rast:    rasterizer.NewRasterizer(backend, mem, state, nil, 0, 1, false),
		scale:   1,
		width:   TopWidth,
		height:  2 * ScreenHeight,
	}, backend
}

func TestScreenRects(t *testing.T) {
	d, _ := newTestDisplay(t)

	top := d.screenRect(ScreenTop)
	test.Equate(t, top == host.Rect{X: 0, Y: 0, W: 400, H: 240}, true)

	// the narrower bottom screen is centred below the top screen
	bottom := d.screenRect(ScreenBottom)
	test.Equate(t, bottom == host.Rect{X: 40, Y: 240, W: 320, H: 240}, true)
}

func TestPresentScreens(t *testing.T) {
	d, backend := newTestDisplay(t)

	top := rasterizer.DisplayConfig{
		Addr:   testScreenAddr,
		Width:  240,
		Height: 400,
		Stride: 240,
	}
	bottom := rasterizer.DisplayConfig{
		Addr:   testScreenAddr + 0x100000,
		Width:  240,
		Height: 320,
		Stride: 240,
	}

	d.Present(&top, &bottom)
	test.Equate(t, backend.PresentCount, 2)

	// a nil configuration skips the screen
	d.Present(&top, nil)
	test.Equate(t, backend.PresentCount, 3)
}

func TestSoftwareUpload(t *testing.T) {
	d, backend := newTestDisplay(t)

	cfg := rasterizer.DisplayConfig{
		Addr:   testScreenAddr,
		Width:  2,
		Height: 2,
		Stride: 2,
	}

	ref, ok := d.mem.GetPhysicalRef(cfg.Addr)
	test.Equate(t, ok, true)
	guest := ref.Ptr()[:16]
	for i := 0; i < 4; i++ {
		// guest RGBA8 byte order is ABGR
		copy(guest[i*4:], []byte{0x44, 0x33, 0x22, 0x11})
	}

	tex, rect, ok := d.uploadScreen(ScreenTop, &cfg)
	test.Equate(t, ok, true)
	test.Equate(t, tex != 0, true)
	test.Equate(t, rect == host.Rect{X: 0, Y: 0, W: 2, H: 2}, true)

	pixels, err := backend.TexturePixels(tex)
	test.DemandSuccess(t, err)
	test.Equate(t, pixels[0], uint8(0x11))
	test.Equate(t, pixels[1], uint8(0x22))
	test.Equate(t, pixels[2], uint8(0x33))
	test.Equate(t, pixels[3], uint8(0x44))

	// a repeated upload with the same geometry reuses the texture
	tex2, _, ok := d.uploadScreen(ScreenTop, &cfg)
	test.Equate(t, ok, true)
	test.Equate(t, tex2 == tex, true)
}
