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
	"github.com/tangelo-emu/tangelo/memory/memorymap"
	"github.com/tangelo-emu/tangelo/memory/mmio"
)

// PageType is the tag carried by every virtual page.
type PageType uint8

func (p PageType) String() string {
	switch p {
	case PageUnmapped:
		return "Unmapped"
	case PageMemory:
		return "Memory"
	case PageRasterizerCachedMemory:
		return "RasterizerCachedMemory"
	case PageSpecial:
		return "Special"
	}
	return "undefined"
}

// The different page types.
//
// Invariants: every Memory page has a non-nil pointer; every
// RasterizerCachedMemory page has a nil pointer, forcing slow-path dispatch.
const (
	PageUnmapped PageType = iota
	PageMemory
	PageRasterizerCachedMemory
	PageSpecial
)

// SpecialRegion associates a virtual range with an MMIO handler. Pages of
// type Special look their handler up by linear scan of the page table's
// special region list.
type SpecialRegion struct {
	Base    memorymap.VAddr
	Size    uint32
	Handler mmio.Handler
}

// Contains returns true if the virtual address falls inside the region.
func (sp SpecialRegion) Contains(addr memorymap.VAddr) bool {
	return addr >= sp.Base && uint32(addr-sp.Base) < sp.Size
}

// PageTable is a flat array of one entry per virtual page.
//
// A non-nil pointer means the page resolves directly to backing memory and
// the attribute is PageMemory. For any other page type the pointer is nil
// and the attribute decides how the access proceeds.
type PageTable struct {
	Pointers   [][]byte
	Attributes []PageType

	specialRegions []SpecialRegion
}

// NewPageTable is the preferred method of initialisation for the PageTable
// type. The table starts fully unmapped. Page tables created through
// Memory.NewPageTable() are additionally registered for rasterizer cache
// marking; tables created directly with this function are not.
func NewPageTable() *PageTable {
	return &PageTable{
		Pointers:   make([][]byte, memorymap.PageTableNumEntries),
		Attributes: make([]PageType, memorymap.PageTableNumEntries),
	}
}

// specialRegionFor returns the special region containing the virtual
// address, or nil.
func (pt *PageTable) specialRegionFor(addr memorymap.VAddr) *SpecialRegion {
	for i := range pt.specialRegions {
		if pt.specialRegions[i].Contains(addr) {
			return &pt.specialRegions[i]
		}
	}
	return nil
}
