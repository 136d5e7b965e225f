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

package memory

import (
	"fmt"
	"sync"

	"github.com/tangelo-emu/tangelo/memory/memorymap"
	"github.com/tangelo-emu/tangelo/memory/mmio"
)

// Memory is the guest memory system. It owns the physical backing regions
// and every page table. There is exactly one Memory instance per emulated
// console; it is passed explicitly to every component that needs it.
type Memory struct {
	FCRAM    *Region
	VRAM     *Region
	DSPRAM   *Region
	ExtraRAM *Region

	regions []*Region

	current *PageTable
	tables  []*PageTable

	rasterizer RasterizerHook

	// physical pages (page-aligned addresses) currently owned by the
	// rasterizer cache. consulted by MapMemoryRegion so that freshly mapped
	// pages aliasing a cached physical page start life in the cached state
	cachedPages map[memorymap.PAddr]struct{}

	// serialises exclusive accesses. the guest CPU core is single threaded
	// with respect to this package so the mutex is cheap; it exists so that
	// WriteExclusive keeps compare-and-swap semantics if a second thread is
	// ever introduced
	exclusive sync.Mutex
}

// NewMemory is the preferred method of initialisation for the Memory type.
// The four physical regions are allocated and an initial (empty) page table
// is created and made current.
func NewMemory() *Memory {
	mem := &Memory{
		FCRAM:       NewRegion("FCRAM", memorymap.FCRAMPAddr, memorymap.FCRAMSize),
		VRAM:        NewRegion("VRAM", memorymap.VRAMPAddr, memorymap.VRAMSize),
		DSPRAM:      NewRegion("DSP", memorymap.DSPRAMPAddr, memorymap.DSPRAMSize),
		ExtraRAM:    NewRegion("ExtraRAM", memorymap.ExtraRAMPAddr, memorymap.ExtraRAMSize),
		cachedPages: make(map[memorymap.PAddr]struct{}),
	}
	mem.regions = []*Region{mem.VRAM, mem.DSPRAM, mem.ExtraRAM, mem.FCRAM}
	mem.current = mem.NewPageTable()
	return mem
}

// SetRasterizer attaches the rasterizer hook used to keep host textures
// coherent with guest memory.
func (mem *Memory) SetRasterizer(r RasterizerHook) {
	mem.rasterizer = r
}

// NewPageTable creates and registers a page table. Registered tables take
// part in rasterizer cache marking.
func (mem *Memory) NewPageTable() *PageTable {
	pt := NewPageTable()
	mem.tables = append(mem.tables, pt)
	return pt
}

// SetCurrentPageTable makes the supplied table the one used by the access
// functions. The guest kernel switches tables on every process switch.
func (mem *Memory) SetCurrentPageTable(pt *PageTable) {
	mem.current = pt
}

// CurrentPageTable returns the table used by the access functions.
func (mem *Memory) CurrentPageTable() *PageTable {
	return mem.current
}

// mapPages is the common implementation for the public mapping functions.
func (mem *Memory) mapPages(pt *PageTable, base memorymap.VAddr, size uint32, target Ref, typ PageType) {
	if base&memorymap.PageMask != 0 || size&memorymap.PageMask != 0 {
		panic(fmt.Sprintf("memory: non page-aligned mapping (base=%#08x size=%#08x)", base, size))
	}

	for offset := uint32(0); offset < size; offset += memorymap.PageSize {
		page := (base + memorymap.VAddr(offset)) >> memorymap.PageBits

		switch typ {
		case PageMemory:
			ref := Ref{Region: target.Region, Offset: target.Offset + offset}

			// a freshly mapped page aliasing a physical page owned by the
			// rasterizer cache must start life in the cached state
			paddr := ref.PAddr() &^ memorymap.PageMask
			if _, ok := mem.cachedPages[paddr]; ok {
				pt.Pointers[page] = nil
				pt.Attributes[page] = PageRasterizerCachedMemory
			} else {
				pt.Pointers[page] = ref.Region.Data[ref.Offset : ref.Offset+memorymap.PageSize]
				pt.Attributes[page] = PageMemory
			}

		case PageSpecial, PageUnmapped:
			pt.Pointers[page] = nil
			pt.Attributes[page] = typ

		default:
			panic("memory: unreachable page type in mapPages")
		}
	}
}

// MapMemoryRegion maps a contiguous block of backing memory into the
// virtual address space of the supplied page table. Base address and size
// must be page-aligned.
func (mem *Memory) MapMemoryRegion(pt *PageTable, base memorymap.VAddr, size uint32, target Ref) {
	if !target.Valid() || target.Size() < size {
		panic(fmt.Sprintf("memory: backing region too small for mapping (base=%#08x size=%#08x)", base, size))
	}
	mem.mapPages(pt, base, size, target, PageMemory)
}

// MapIoRegion maps an MMIO handler over a virtual range of the supplied
// page table. Base address and size must be page-aligned.
func (mem *Memory) MapIoRegion(pt *PageTable, base memorymap.VAddr, size uint32, handler mmio.Handler) {
	mem.mapPages(pt, base, size, Ref{}, PageSpecial)
	pt.specialRegions = append(pt.specialRegions, SpecialRegion{Base: base, Size: size, Handler: handler})
}

// UnmapRegion removes a virtual range from the supplied page table. Base
// address and size must be page-aligned.
func (mem *Memory) UnmapRegion(pt *PageTable, base memorymap.VAddr, size uint32) {
	mem.mapPages(pt, base, size, Ref{}, PageUnmapped)

	// drop any special regions now fully outside the mapped space
	regions := pt.specialRegions[:0]
	for _, sp := range pt.specialRegions {
		if sp.Base >= base+memorymap.VAddr(size) || base >= sp.Base+memorymap.VAddr(sp.Size) {
			regions = append(regions, sp)
		}
	}
	pt.specialRegions = regions
}

// IsValidVirtualAddress returns true if a read of the virtual address would
// not take the unmapped path.
func (mem *Memory) IsValidVirtualAddress(addr memorymap.VAddr) bool {
	page := addr >> memorymap.PageBits
	if mem.current.Pointers[page] != nil {
		return true
	}
	switch mem.current.Attributes[page] {
	case PageRasterizerCachedMemory:
		return true
	case PageSpecial:
		if sp := mem.current.specialRegionFor(addr); sp != nil {
			return sp.Handler.IsValidAddress(addr)
		}
	}
	return false
}

// RasterizerMarkRegionCached is the bridge used by the surface cache. For
// each physical page in [addr, addr+size), every virtual alias in every
// registered page table has its page-type tag flipped between Memory and
// RasterizerCachedMemory, with the fast-path pointer cleared or restored
// accordingly.
//
// Marking an already-marked page (or unmarking an unmarked one) is a no-op
// for that page. Unmapped aliases are skipped: the mark is recorded against
// the physical page and applied when the alias is eventually mapped.
func (mem *Memory) RasterizerMarkRegionCached(addr memorymap.PAddr, size uint32, cached bool) {
	if size == 0 {
		return
	}

	numPages := uint32((addr+memorymap.PAddr(size)-1)>>memorymap.PageBits) - uint32(addr>>memorymap.PageBits) + 1
	paddr := addr &^ memorymap.PageMask

	for i := uint32(0); i < numPages; i++ {
		if cached {
			mem.cachedPages[paddr] = struct{}{}
		} else {
			delete(mem.cachedPages, paddr)
		}

		for _, vaddr := range memorymap.PhysicalToVirtualForRasterizer(paddr) {
			page := vaddr >> memorymap.PageBits
			for _, pt := range mem.tables {
				if cached {
					switch pt.Attributes[page] {
					case PageMemory:
						pt.Pointers[page] = nil
						pt.Attributes[page] = PageRasterizerCachedMemory
					case PageUnmapped, PageRasterizerCachedMemory:
						// unmapped pages can be marked; the mark is applied
						// on mapping
					case PageSpecial:
						panic("memory: rasterizer cache marking an MMIO page")
					}
				} else {
					switch pt.Attributes[page] {
					case PageRasterizerCachedMemory:
						ptr := mem.pointerForRasterizerCache(vaddr)
						pt.Pointers[page] = ptr[:memorymap.PageSize]
						pt.Attributes[page] = PageMemory
					case PageUnmapped, PageMemory:
						// nothing to restore
					case PageSpecial:
						panic("memory: rasterizer cache unmarking an MMIO page")
					}
				}
			}
		}

		paddr += memorymap.PageSize
	}
}
