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

package memory_test

import (
	"testing"

	"github.com/tangelo-emu/tangelo/memory"
	"github.com/tangelo-emu/tangelo/memory/memorymap"
	"github.com/tangelo-emu/tangelo/test"
)

func TestMapReadWriteRoundTrip(t *testing.T) {
	mem := memory.NewMemory()
	pt := mem.CurrentPageTable()

	mem.MapMemoryRegion(pt, 0x20000000, 0x1000, memory.Ref{Region: mem.FCRAM, Offset: 0})

	mem.Write32(0x20000004, 0xdeadbeef)
	test.Equate(t, mem.Read32(0x20000004), uint32(0xdeadbeef))

	// little-endian: reading the high half of the stored word
	test.Equate(t, mem.Read16(0x20000006), uint16(0xdead))
	test.Equate(t, mem.Read16(0x20000004), uint16(0xbeef))
	test.Equate(t, mem.Read8(0x20000004), uint8(0xef))

	mem.Write64(0x20000008, 0x0102030405060708)
	test.Equate(t, mem.Read64(0x20000008), uint64(0x0102030405060708))
	test.Equate(t, mem.Read32(0x20000008), uint32(0x05060708))
}

func TestUnmappedRead(t *testing.T) {
	mem := memory.NewMemory()
	test.Equate(t, mem.Read32(0x20000000), 0)
	test.ExpectedFailure(t, mem.IsValidVirtualAddress(0x20000000))
}

func TestWriteExclusive(t *testing.T) {
	mem := memory.NewMemory()
	pt := mem.CurrentPageTable()
	mem.MapMemoryRegion(pt, 0x20000000, 0x1000, memory.Ref{Region: mem.FCRAM, Offset: 0})

	const addr = memorymap.VAddr(0x20000010)

	mem.Write32(addr, 0x10)
	test.ExpectedSuccess(t, mem.WriteExclusive32(addr, 0x20, 0x10))
	test.Equate(t, mem.Read32(addr), uint32(0x20))

	// expected value is now stale so the store must fail and leave the word
	// unchanged
	test.ExpectedFailure(t, mem.WriteExclusive32(addr, 0x30, 0x10))
	test.Equate(t, mem.Read32(addr), uint32(0x20))
}

func TestScalarAccessAcrossPageBoundary(t *testing.T) {
	mem := memory.NewMemory()
	pt := mem.CurrentPageTable()
	mem.MapMemoryRegion(pt, 0x20000000, 0x2000, memory.Ref{Region: mem.FCRAM, Offset: 0})

	// the word straddles the boundary between the first and second page
	const addr = memorymap.VAddr(0x20000ffe)

	mem.Write32(addr, 0xaabbccdd)
	test.Equate(t, mem.Read32(addr), uint32(0xaabbccdd))
	test.Equate(t, mem.Read16(addr), uint16(0xccdd))
	test.Equate(t, mem.Read16(addr+2), uint16(0xaabb))

	mem.Write64(addr, 0x0102030405060708)
	test.Equate(t, mem.Read64(addr), uint64(0x0102030405060708))

	test.ExpectedSuccess(t, mem.WriteExclusive32(addr, 0x20, 0x05060708))
	test.Equate(t, mem.Read32(addr), uint32(0x20))
	test.ExpectedFailure(t, mem.WriteExclusive32(addr, 0x30, 0x05060708))
	test.Equate(t, mem.Read32(addr), uint32(0x20))
}

func TestBlockAccess(t *testing.T) {
	mem := memory.NewMemory()
	pt := mem.CurrentPageTable()
	mem.MapMemoryRegion(pt, 0x20000000, 0x3000, memory.Ref{Region: mem.FCRAM, Offset: 0})

	// a write crossing two page boundaries
	src := make([]byte, 0x1800)
	for i := range src {
		src[i] = byte(i)
	}
	mem.WriteBlock(0x20000c00, src)

	dst := make([]byte, 0x1800)
	mem.ReadBlock(0x20000c00, dst)
	for i := range dst {
		if dst[i] != byte(i) {
			t.Fatalf("block mismatch at %d (%#02x - wanted %#02x)", i, dst[i], byte(i))
		}
	}

	mem.ZeroBlock(0x20000c00, 0x100)
	test.Equate(t, mem.Read32(0x20000c00), 0)
	test.Equate(t, mem.Read8(0x20000cff), 0)
	test.Equate(t, mem.Read8(0x20000d00), uint8(src[0x100]))

	mem.CopyBlock(0x20002000, 0x20000d00, 0x100)
	test.Equate(t, mem.Read8(0x20002000), uint8(src[0x100]))
}

// rasterizerRecorder counts the flush and invalidate requests made through
// the rasterizer hook.
type rasterizerRecorder struct {
	flushes     int
	invalidates int
	lastAddr    memorymap.PAddr
	lastSize    uint32
}

func (r *rasterizerRecorder) FlushRegion(addr memorymap.PAddr, size uint32) {
	r.flushes++
	r.lastAddr = addr
	r.lastSize = size
}

func (r *rasterizerRecorder) InvalidateRegion(addr memorymap.PAddr, size uint32) {
	r.invalidates++
	r.lastAddr = addr
	r.lastSize = size
}

func (r *rasterizerRecorder) FlushAndInvalidateRegion(addr memorymap.PAddr, size uint32) {
	r.FlushRegion(addr, size)
	r.InvalidateRegion(addr, size)
}

func TestRasterizerCachedTransition(t *testing.T) {
	mem := memory.NewMemory()
	pt := mem.CurrentPageTable()

	// map the VRAM window
	mem.MapMemoryRegion(pt, memorymap.VRAMVAddr, memorymap.VRAMSize, memory.Ref{Region: mem.VRAM, Offset: 0})

	rec := &rasterizerRecorder{}
	mem.SetRasterizer(rec)

	const numPages = 16
	mem.RasterizerMarkRegionCached(memorymap.VRAMPAddr, numPages*memorymap.PageSize, true)

	for i := 0; i < numPages; i++ {
		page := (memorymap.VRAMVAddr >> memorymap.PageBits) + memorymap.VAddr(i)
		if pt.Pointers[page] != nil {
			t.Fatalf("cached page %d still has a fast-path pointer", i)
		}
		test.Equate(t, pt.Attributes[page].String(), memory.PageRasterizerCachedMemory.String())
	}

	// reads and writes still work through the slow path and trigger the
	// rasterizer hook
	mem.Write32(memorymap.VRAMVAddr+8, 0xcafe0001)
	test.Equate(t, rec.invalidates, 1)
	test.Equate(t, uint32(rec.lastAddr), uint32(memorymap.VRAMPAddr)+8)
	test.Equate(t, rec.lastSize, 4)

	test.Equate(t, mem.Read32(memorymap.VRAMVAddr+8), uint32(0xcafe0001))
	test.Equate(t, rec.flushes, 1)

	// unmark and check the fast path is restored
	mem.RasterizerMarkRegionCached(memorymap.VRAMPAddr, numPages*memorymap.PageSize, false)

	for i := 0; i < numPages; i++ {
		page := (memorymap.VRAMVAddr >> memorymap.PageBits) + memorymap.VAddr(i)
		if pt.Pointers[page] == nil {
			t.Fatalf("uncached page %d has no fast-path pointer", i)
		}
		test.Equate(t, pt.Attributes[page].String(), memory.PageMemory.String())
	}

	// the write made while cached is visible through the fast path
	test.Equate(t, mem.Read32(memorymap.VRAMVAddr+8), uint32(0xcafe0001))
}

func TestCachedTransitionAliases(t *testing.T) {
	mem := memory.NewMemory()
	pt := mem.CurrentPageTable()

	// map both linear heap windows onto the start of FCRAM
	mem.MapMemoryRegion(pt, memorymap.LinearHeapVAddr, 0x10000, memory.Ref{Region: mem.FCRAM, Offset: 0})
	mem.MapMemoryRegion(pt, memorymap.NewLinearHeapVAddr, 0x10000, memory.Ref{Region: mem.FCRAM, Offset: 0})

	mem.Write32(memorymap.LinearHeapVAddr, 0x12345678)
	test.Equate(t, mem.Read32(memorymap.NewLinearHeapVAddr), uint32(0x12345678))

	mem.RasterizerMarkRegionCached(memorymap.FCRAMPAddr, 0x1000, true)

	oldPage := memorymap.LinearHeapVAddr >> memorymap.PageBits
	newPage := memorymap.NewLinearHeapVAddr >> memorymap.PageBits
	test.Equate(t, pt.Attributes[oldPage].String(), memory.PageRasterizerCachedMemory.String())
	test.Equate(t, pt.Attributes[newPage].String(), memory.PageRasterizerCachedMemory.String())

	// reads return the last write independent of cached transitions
	test.Equate(t, mem.Read32(memorymap.NewLinearHeapVAddr), uint32(0x12345678))
	mem.Write32(memorymap.NewLinearHeapVAddr, 0x87654321)
	test.Equate(t, mem.Read32(memorymap.LinearHeapVAddr), uint32(0x87654321))

	mem.RasterizerMarkRegionCached(memorymap.FCRAMPAddr, 0x1000, false)
	test.Equate(t, pt.Attributes[oldPage].String(), memory.PageMemory.String())
	test.Equate(t, pt.Attributes[newPage].String(), memory.PageMemory.String())
	test.Equate(t, mem.Read32(memorymap.LinearHeapVAddr), uint32(0x87654321))
}

// a page mapped while its physical page is marked cached must start life in
// the cached state.
func TestMapWhileCached(t *testing.T) {
	mem := memory.NewMemory()

	mem.RasterizerMarkRegionCached(memorymap.FCRAMPAddr, 0x1000, true)

	pt := mem.NewPageTable()
	mem.MapMemoryRegion(pt, memorymap.LinearHeapVAddr, 0x2000, memory.Ref{Region: mem.FCRAM, Offset: 0})

	page := memorymap.LinearHeapVAddr >> memorymap.PageBits
	test.Equate(t, pt.Attributes[page].String(), memory.PageRasterizerCachedMemory.String())
	if pt.Pointers[page] != nil {
		t.Fatalf("cached page has a fast-path pointer")
	}

	// the second page was not marked
	test.Equate(t, pt.Attributes[page+1].String(), memory.PageMemory.String())
}

func TestGetPhysicalRef(t *testing.T) {
	mem := memory.NewMemory()

	ref, ok := mem.GetPhysicalRef(memorymap.VRAMPAddr + 0x100)
	test.DemandSuccess(t, ok)
	test.Equate(t, ref.Offset, 0x100)
	test.Equate(t, ref.Region.Name, "VRAM")

	// the upper bound is inclusive: a one-past-the-end address resolves but
	// must not be dereferenced
	ref, ok = mem.GetPhysicalRef(memorymap.VRAMPAddr + memorymap.PAddr(memorymap.VRAMSize))
	test.DemandSuccess(t, ok)
	test.Equate(t, ref.Size(), 0)

	_, ok = mem.GetPhysicalRef(0x00000010)
	test.ExpectedFailure(t, ok)
}

// mmioRegister is a trivial MMIO handler backed by a single register.
type mmioRegister struct {
	value uint32
}

func (h *mmioRegister) Read8(addr memorymap.VAddr) uint8   { return uint8(h.value) }
func (h *mmioRegister) Read16(addr memorymap.VAddr) uint16 { return uint16(h.value) }
func (h *mmioRegister) Read32(addr memorymap.VAddr) uint32 { return h.value }
func (h *mmioRegister) Read64(addr memorymap.VAddr) uint64 { return uint64(h.value) }

func (h *mmioRegister) Write8(addr memorymap.VAddr, data uint8)   { h.value = uint32(data) }
func (h *mmioRegister) Write16(addr memorymap.VAddr, data uint16) { h.value = uint32(data) }
func (h *mmioRegister) Write32(addr memorymap.VAddr, data uint32) { h.value = data }
func (h *mmioRegister) Write64(addr memorymap.VAddr, data uint64) { h.value = uint32(data) }

func (h *mmioRegister) ReadBlock(addr memorymap.VAddr, dst []byte) {
	for i := range dst {
		dst[i] = 0
	}
}

func (h *mmioRegister) WriteBlock(addr memorymap.VAddr, src []byte) {}

func (h *mmioRegister) IsValidAddress(addr memorymap.VAddr) bool { return true }

func TestMMIODispatch(t *testing.T) {
	mem := memory.NewMemory()
	pt := mem.CurrentPageTable()

	handler := &mmioRegister{}
	mem.MapIoRegion(pt, 0x1ec00000, 0x1000, handler)

	mem.Write32(0x1ec00000, 0xabcd)
	test.Equate(t, handler.value, uint32(0xabcd))
	test.Equate(t, mem.Read32(0x1ec00004), uint32(0xabcd))
	test.ExpectedSuccess(t, mem.IsValidVirtualAddress(0x1ec00000))

	// exclusive store to MMIO performs the write but reports failure
	test.ExpectedFailure(t, mem.WriteExclusive32(0x1ec00000, 0x99, 0xabcd))
	test.Equate(t, handler.value, uint32(0x99))
}

func TestUnmap(t *testing.T) {
	mem := memory.NewMemory()
	pt := mem.CurrentPageTable()

	mem.MapMemoryRegion(pt, 0x20000000, 0x1000, memory.Ref{Region: mem.FCRAM, Offset: 0})
	mem.Write32(0x20000000, 0x1)
	test.ExpectedSuccess(t, mem.IsValidVirtualAddress(0x20000000))

	mem.UnmapRegion(pt, 0x20000000, 0x1000)
	test.ExpectedFailure(t, mem.IsValidVirtualAddress(0x20000000))
	test.Equate(t, mem.Read32(0x20000000), 0)
}
