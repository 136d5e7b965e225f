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
)

// Region is a contiguous physical backing byte array. The four regions of
// the guest console are created by NewMemory() but tests are free to create
// their own with NewRegion().
type Region struct {
	Name string
	Base memorymap.PAddr
	Data []byte
}

// NewRegion creates a backing region outside of the standard set. Mostly
// useful in tests.
func NewRegion(name string, base memorymap.PAddr, size uint32) *Region {
	return &Region{
		Name: name,
		Base: base,
		Data: make([]byte, size),
	}
}

// Contains returns true if the physical address falls inside the region.
//
// The upper bound is deliberately inclusive, allowing a one-past-the-end
// address. This is intentional for open-range queries but callers must not
// dereference the pointer of a Ref whose Offset equals the region size.
func (reg *Region) Contains(addr memorymap.PAddr) bool {
	return addr >= reg.Base && uint32(addr-reg.Base) <= uint32(len(reg.Data))
}

// Ref is a reference to a byte offset inside a backing region. It is the
// Go rendering of a raw pointer into guest physical memory.
type Ref struct {
	Region *Region
	Offset uint32
}

// Valid returns true if the reference points inside its region.
func (ref Ref) Valid() bool {
	return ref.Region != nil && ref.Offset <= uint32(len(ref.Region.Data))
}

// PAddr returns the physical address the reference corresponds to.
func (ref Ref) PAddr() memorymap.PAddr {
	return ref.Region.Base + memorymap.PAddr(ref.Offset)
}

// Ptr returns the backing bytes from the referenced offset to the end of the
// region. Must not be called when Offset equals the region size.
func (ref Ref) Ptr() []byte {
	return ref.Region.Data[ref.Offset:]
}

// Size returns the number of bytes between the referenced offset and the end
// of the region.
func (ref Ref) Size() uint32 {
	return uint32(len(ref.Region.Data)) - ref.Offset
}

// GetPhysicalRef returns a reference to the backing bytes for a physical
// address. The second return value is false when the address is not inside
// any backing region.
func (mem *Memory) GetPhysicalRef(addr memorymap.PAddr) (Ref, bool) {
	for _, reg := range mem.regions {
		if reg.Contains(addr) {
			return Ref{Region: reg, Offset: uint32(addr - reg.Base)}, true
		}
	}
	return Ref{}, false
}

// pointerForRasterizerCache returns the backing bytes for a virtual address
// inside one of the fixed rasterizer-visible windows. Accesses to
// RasterizerCachedMemory pages always complete through this pointer.
func (mem *Memory) pointerForRasterizerCache(addr memorymap.VAddr) []byte {
	paddr, ok := memorymap.TryVirtualToPhysical(addr)
	if !ok {
		panic("memory: rasterizer cached page outside of a fixed window")
	}
	ref, ok := mem.GetPhysicalRef(paddr)
	if !ok {
		panic("memory: rasterizer cached page with no backing region")
	}
	return ref.Ptr()
}
