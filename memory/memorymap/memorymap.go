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

package memorymap

// VAddr is an address in the guest's virtual address space.
type VAddr uint32

// PAddr is an address in the guest's physical address space.
type PAddr uint32

// The virtual address space is divided into fixed-size pages.
const (
	PageBits = 12
	PageSize = 1 << PageBits
	PageMask = PageSize - 1

	// number of entries covering the full 32-bit virtual address space
	PageTableNumEntries = 1 << (32 - PageBits)
)

// Physical regions. Each is a contiguous backing byte array.
const (
	// video RAM. the GPU can only texture from and render to this region
	// and FCRAM
	VRAMPAddr    = PAddr(0x18000000)
	VRAMSize     = uint32(0x00600000)
	VRAMPAddrEnd = VRAMPAddr + PAddr(VRAMSize)

	// audio DSP memory
	DSPRAMPAddr    = PAddr(0x1ff00000)
	DSPRAMSize     = uint32(0x00080000)
	DSPRAMPAddrEnd = DSPRAMPAddr + PAddr(DSPRAMSize)

	// main DRAM
	FCRAMPAddr    = PAddr(0x20000000)
	FCRAMSize     = uint32(0x08000000)
	FCRAMPAddrEnd = FCRAMPAddr + PAddr(FCRAMSize)

	// additional memory on the newer console revision
	ExtraRAMPAddr    = PAddr(0x1f000000)
	ExtraRAMSize     = uint32(0x00080000)
	ExtraRAMPAddrEnd = ExtraRAMPAddr + PAddr(ExtraRAMSize)

	// MMIO registers
	IOAreaPAddr = PAddr(0x10100000)
	IOAreaSize  = uint32(0x01000000)
)

// Virtual regions. The linear heaps and the VRAM window alias physical
// memory directly (with a fixed offset). Everything else is mapped by the
// guest kernel on demand.
const (
	// the "old" linear heap window onto FCRAM
	LinearHeapVAddr    = VAddr(0x14000000)
	LinearHeapSize     = uint32(0x08000000)
	LinearHeapVAddrEnd = LinearHeapVAddr + VAddr(LinearHeapSize)

	// the linear heap window used by titles built against the newer kernel
	NewLinearHeapVAddr    = VAddr(0x30000000)
	NewLinearHeapSize     = uint32(0x08000000)
	NewLinearHeapVAddrEnd = NewLinearHeapVAddr + VAddr(NewLinearHeapSize)

	// virtual window onto VRAM
	VRAMVAddr    = VAddr(0x1f000000)
	VRAMVAddrEnd = VRAMVAddr + VAddr(VRAMSize)

	// virtual window onto DSP memory
	DSPRAMVAddr    = VAddr(0x1ff00000)
	DSPRAMVAddrEnd = DSPRAMVAddr + VAddr(DSPRAMSize)

	// MMIO register window
	IOAreaVAddr    = VAddr(0x1ec00000)
	IOAreaVAddrEnd = IOAreaVAddr + VAddr(IOAreaSize)
)

// TryVirtualToPhysical translates a virtual address in one of the fixed
// windows to its physical address. The second return value is false when the
// virtual address is not inside any fixed window.
//
// Note that addresses mapped by MapMemoryRegion() outside the fixed windows
// (the application heap, for instance) have no physical address that the
// rasterizer cares about and are not translated by this function.
func TryVirtualToPhysical(addr VAddr) (PAddr, bool) {
	switch {
	case addr >= LinearHeapVAddr && addr < LinearHeapVAddrEnd:
		return PAddr(addr-LinearHeapVAddr) + FCRAMPAddr, true
	case addr >= NewLinearHeapVAddr && addr < NewLinearHeapVAddrEnd:
		return PAddr(addr-NewLinearHeapVAddr) + FCRAMPAddr, true
	case addr >= VRAMVAddr && addr < VRAMVAddrEnd:
		return PAddr(addr-VRAMVAddr) + VRAMPAddr, true
	case addr >= DSPRAMVAddr && addr < DSPRAMVAddrEnd:
		return PAddr(addr-DSPRAMVAddr) + DSPRAMPAddr, true
	case addr >= IOAreaVAddr && addr < IOAreaVAddrEnd:
		return PAddr(addr-IOAreaVAddr) + IOAreaPAddr, true
	}
	return 0, false
}

// PhysicalToVirtualForRasterizer returns every virtual alias of the supplied
// physical address. FCRAM is visible through both linear heap windows so a
// single physical page can have two aliases; VRAM has exactly one.
//
// The rasterizer cache uses the returned aliases to flip the page-type tag
// of every page table mapping the physical page. For physical addresses
// outside FCRAM and VRAM the returned slice is empty: the rasterizer never
// caches those regions.
func PhysicalToVirtualForRasterizer(addr PAddr) []VAddr {
	switch {
	case addr >= VRAMPAddr && addr < VRAMPAddrEnd:
		return []VAddr{VAddr(addr-VRAMPAddr) + VRAMVAddr}
	case addr >= FCRAMPAddr && addr < FCRAMPAddrEnd:
		return []VAddr{
			VAddr(addr-FCRAMPAddr) + LinearHeapVAddr,
			VAddr(addr-FCRAMPAddr) + NewLinearHeapVAddr,
		}
	}
	return nil
}
