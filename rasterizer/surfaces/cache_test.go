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
	"bytes"
	"testing"

	"github.com/tangelo-emu/tangelo/host"
	"github.com/tangelo-emu/tangelo/memory"
	"github.com/tangelo-emu/tangelo/memory/memorymap"
	"github.com/tangelo-emu/tangelo/pica"
	"github.com/tangelo-emu/tangelo/test"
)

const testBase = memorymap.VRAMPAddr

func newTestCache(t *testing.T, resScale uint32) (*Cache, *memory.Memory, *host.Headless) {
	t.Helper()
	mem := memory.NewMemory()
	backend := host.NewHeadless()
	return NewCache(backend, mem, resScale), mem, backend
}

// guestBytes returns the backing slice at a physical address.
func guestBytesAt(t *testing.T, mem *memory.Memory, addr memorymap.PAddr, size uint32) []byte {
	t.Helper()
	ref, ok := mem.GetPhysicalRef(addr)
	if !ok {
		t.Fatalf("no backing region at %#08x", addr)
	}
	return ref.Ptr()[:size]
}

func colorParams(addr memorymap.PAddr, width, height uint32, scale uint32) SurfaceParams {
	p := SurfaceParams{
		Addr:     addr,
		Width:    width,
		Height:   height,
		IsTiled:  true,
		Format:   PixelRGBA8,
		ResScale: scale,
	}
	p.UpdateParams()
	return p
}

func TestGetSurfaceExactMatch(t *testing.T) {
	c, _, _ := newTestCache(t, 1)
	params := colorParams(testBase, 16, 8, 1)

	a := c.GetSurface(params, ScaleMatchExact, false)
	b := c.GetSurface(params, ScaleMatchExact, false)
	test.Equate(t, a == b, true)

	// a different extent is a different surface
	d := c.GetSurface(colorParams(testBase, 16, 16, 1), ScaleMatchExact, false)
	test.Equate(t, a == d, false)
}

func TestUploadFlushRoundTrip(t *testing.T) {
	c, mem, _ := newTestCache(t, 1)
	params := colorParams(testBase, 16, 8, 1)

	guest := guestBytesAt(t, mem, testBase, params.Size)
	original := make([]byte, params.Size)
	for i := range original {
		original[i] = byte(i * 13)
	}
	copy(guest, original)

	s := c.GetSurface(params, ScaleMatchExact, true)
	test.Equate(t, s.IsRegionValid(s.Interval()), true)

	// the host copy is now the newest. flushing must reproduce the
	// uploaded bytes exactly, even after the guest copy is destroyed
	for i := range guest {
		guest[i] = 0
	}
	c.InvalidateRegion(params.Addr, params.Size, s)
	c.FlushRegion(params.Addr, params.Size)

	test.Equate(t, bytes.Equal(guest, original), true)
}

func TestFillSurfaceFlush(t *testing.T) {
	c, mem, _ := newTestCache(t, 1)

	s := c.GetFillSurface(testBase, 64, []byte{0xaa, 0xbb})
	test.DemandSuccess(t, s != nil)

	c.FlushRegion(testBase, 64)

	guest := guestBytesAt(t, mem, testBase, 64)
	for i, b := range guest {
		if i%2 == 0 {
			test.Equate(t, b, uint8(0xaa))
		} else {
			test.Equate(t, b, uint8(0xbb))
		}
	}
}

func TestCPUWriteEvictsSurface(t *testing.T) {
	c, mem, _ := newTestCache(t, 1)
	params := colorParams(testBase, 16, 8, 1)

	guest := guestBytesAt(t, mem, testBase, params.Size)
	for i := range guest {
		guest[i] = byte(i)
	}

	s := c.GetSurface(params, ScaleMatchExact, true)
	w := s.Watch()
	test.Equate(t, w.Get() == s, true)

	// a guest write over the whole extent leaves nothing valid
	c.InvalidateRegion(params.Addr, params.Size, nil)
	test.Equate(t, w.Get() == nil, true)
}

func TestPartialInvalidationRevalidates(t *testing.T) {
	c, mem, backend := newTestCache(t, 1)
	params := colorParams(testBase, 16, 16, 1)

	guest := guestBytesAt(t, mem, testBase, params.Size)
	for i := range guest {
		guest[i] = 0x11
	}

	s := c.GetSurface(params, ScaleMatchExact, true)

	// rewrite the second tile row in guest memory
	rowBytes := params.BytesInPixels(params.Stride * 8)
	for i := rowBytes; i < 2*rowBytes; i++ {
		guest[i] = 0x22
	}
	c.InvalidateRegion(params.Addr+memorymap.PAddr(rowBytes), rowBytes, nil)

	test.Equate(t, s.IsRegionValid(s.Interval()), false)
	c.ValidateSurface(s, params.Addr, params.Size)
	test.Equate(t, s.IsRegionValid(s.Interval()), true)

	pixels, err := backend.TexturePixels(s.Texture)
	test.DemandSuccess(t, err)
	test.Equate(t, pixels[0], uint8(0x11))
	test.Equate(t, pixels[(8*16)*4], uint8(0x22))
}

func TestScaledSubRect(t *testing.T) {
	c, mem, _ := newTestCache(t, 2)
	params := colorParams(testBase, 32, 16, 2)

	guest := guestBytesAt(t, mem, testBase, params.Size)
	for i := range guest {
		guest[i] = byte(i)
	}

	full, fullRect := c.GetSurfaceSubRect(params, ScaleMatchExact, true)
	test.Equate(t, fullRect, host.Rect{X: 0, Y: 0, W: 64, H: 32})

	// the second tile row of the same buffer resolves to the same
	// surface, offset and scaled
	rowBytes := params.BytesInPixels(params.Stride * 8)
	sub := colorParams(testBase+memorymap.PAddr(rowBytes), 32, 8, 2)
	s, rect := c.GetSurfaceSubRect(sub, ScaleMatchExact, true)

	test.Equate(t, s == full, true)
	test.Equate(t, rect, host.Rect{X: 0, Y: 16, W: 64, H: 16})
}

func TestExpandSurface(t *testing.T) {
	c, mem, _ := newTestCache(t, 1)

	top := colorParams(testBase, 16, 8, 1)
	guest := guestBytesAt(t, mem, testBase, top.Size*2)
	for i := range guest {
		guest[i] = byte(i * 3)
	}

	s1 := c.GetSurface(top, ScaleMatchExact, true)
	w := s1.Watch()

	// a request reaching past s1's rows grows the surface
	tall := colorParams(testBase, 16, 16, 1)
	s2, rect := c.GetSurfaceSubRect(tall, ScaleMatchExact, true)

	test.Equate(t, w.Get() == nil, true)
	test.Equate(t, s2.Height, uint32(16))
	test.Equate(t, rect, host.Rect{X: 0, Y: 0, W: 16, H: 16})
	test.Equate(t, s2.IsRegionValid(s2.Interval()), true)
}

func TestTextureSurfaceUnmapped(t *testing.T) {
	c, _, _ := newTestCache(t, 1)

	cfg := pica.TextureConfig{
		Addr:   0x08000000, // outside every backing region
		Width:  32,
		Height: 32,
		Format: pica.TexRGBA8,
	}
	test.Equate(t, c.GetTextureSurface(cfg, 0) == nil, true)
}

func TestTextureSurfaceMipLevels(t *testing.T) {
	c, mem, _ := newTestCache(t, 1)

	guest := guestBytesAt(t, mem, testBase, 32*32*4+16*16*4)
	for i := range guest {
		guest[i] = byte(i)
	}

	cfg := pica.TextureConfig{
		Addr:   testBase,
		Width:  32,
		Height: 32,
		Format: pica.TexRGBA8,
	}
	s := c.GetTextureSurface(cfg, 1)
	test.DemandSuccess(t, s != nil)
	test.Equate(t, s.Width, uint32(32))

	// level 1 follows the base level in memory at half dimensions
	test.Equate(t, len(s.levelWatchers), 1)
	ls := s.levelWatchers[0].Get()
	test.DemandSuccess(t, ls != nil)
	test.Equate(t, ls.Width, uint32(16))
	test.Equate(t, ls.Addr, testBase+32*32*4)
	test.Equate(t, ls.IsRegionValid(ls.Interval()), true)
}

func TestFramebufferSurfaces(t *testing.T) {
	c, mem, _ := newTestCache(t, 1)

	var regs pica.Regs
	regs.Raw[pica.RegColorBufferAddr] = uint32(testBase >> 3)
	regs.Raw[pica.RegDepthBufferAddr] = uint32(testBase>>3) + 0x10000
	regs.Raw[pica.RegColorFormat] = 0 << 16 // RGBA8
	regs.Raw[pica.RegDepthFormat] = 3       // D24S8
	regs.Raw[pica.RegFramebufferDim] = (31 << 12) | 32

	// zero the target range so validation decodes cleanly
	guest := guestBytesAt(t, mem, testBase, 0x90000)
	for i := range guest {
		guest[i] = 0
	}

	color, depth, rect := c.GetFramebufferSurfaces(&regs, true, true)
	test.DemandSuccess(t, color != nil)
	test.DemandSuccess(t, depth != nil)

	test.Equate(t, color.Type, TypeColor)
	test.Equate(t, depth.Type, TypeDepthStencil)
	test.Equate(t, rect, host.Rect{X: 0, Y: 0, W: 32, H: 32})
}

func TestMemoryCoherency(t *testing.T) {
	c, mem, backend := newTestCache(t, 1)
	mem.SetRasterizer(cacheHook{c})

	// alias VRAM into the virtual address space
	pt := mem.CurrentPageTable()
	mem.MapMemoryRegion(pt, memorymap.VRAMVAddr, 0x10000, memory.Ref{Region: mem.VRAM, Offset: 0})

	params := colorParams(testBase, 16, 8, 1)
	guest := guestBytesAt(t, mem, testBase, params.Size)
	for i := range guest {
		guest[i] = 0
	}

	s := c.GetSurface(params, ScaleMatchExact, true)

	// a CPU store through the alias lands on a rasterizer-cached page
	// and must invalidate the overlapping host data
	mem.Write32(memorymap.VRAMVAddr, 0xddccbbaa)
	test.Equate(t, s.IsRegionValid(MakeInterval(testBase, 4)), false)

	c.ValidateSurface(s, params.Addr, params.Size)
	pixels, err := backend.TexturePixels(s.Texture)
	test.DemandSuccess(t, err)

	// guest ABGR becomes host RGBA
	test.Equate(t, pixels[0], uint8(0xdd))
	test.Equate(t, pixels[1], uint8(0xcc))
	test.Equate(t, pixels[2], uint8(0xbb))
	test.Equate(t, pixels[3], uint8(0xaa))
}

// cacheHook adapts the cache to the memory system's notification
// interface the way the rasterizer does.
type cacheHook struct {
	c *Cache
}

func (h cacheHook) FlushRegion(addr memorymap.PAddr, size uint32) {
	h.c.FlushRegion(addr, size)
}

func (h cacheHook) InvalidateRegion(addr memorymap.PAddr, size uint32) {
	h.c.InvalidateRegion(addr, size, nil)
}

func (h cacheHook) FlushAndInvalidateRegion(addr memorymap.PAddr, size uint32) {
	h.c.FlushAndInvalidateRegion(addr, size)
}
