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

package memorymap_test

import (
	"testing"

	"github.com/tangelo-emu/tangelo/memory/memorymap"
	"github.com/tangelo-emu/tangelo/test"
)

func TestVirtualToPhysical(t *testing.T) {
	p, ok := memorymap.TryVirtualToPhysical(memorymap.LinearHeapVAddr + 0x1234)
	test.ExpectedSuccess(t, ok)
	test.Equate(t, uint32(p), uint32(memorymap.FCRAMPAddr)+0x1234)

	p, ok = memorymap.TryVirtualToPhysical(memorymap.NewLinearHeapVAddr + 0x1234)
	test.ExpectedSuccess(t, ok)
	test.Equate(t, uint32(p), uint32(memorymap.FCRAMPAddr)+0x1234)

	p, ok = memorymap.TryVirtualToPhysical(memorymap.VRAMVAddr + 0x40)
	test.ExpectedSuccess(t, ok)
	test.Equate(t, uint32(p), uint32(memorymap.VRAMPAddr)+0x40)

	// an address in no fixed window
	_, ok = memorymap.TryVirtualToPhysical(0x00100000)
	test.ExpectedFailure(t, ok)
}

// the physical-to-virtual mapping must be a right-inverse of the
// virtual-to-physical mapping for every returned alias.
func TestPhysicalToVirtualRightInverse(t *testing.T) {
	addrs := []memorymap.PAddr{
		memorymap.VRAMPAddr,
		memorymap.VRAMPAddr + 0x13370,
		memorymap.FCRAMPAddr,
		memorymap.FCRAMPAddr + 0x2000000,
	}

	for _, paddr := range addrs {
		aliases := memorymap.PhysicalToVirtualForRasterizer(paddr)
		if len(aliases) == 0 {
			t.Fatalf("no aliases for %#08x", paddr)
		}
		for _, vaddr := range aliases {
			back, ok := memorymap.TryVirtualToPhysical(vaddr)
			test.ExpectedSuccess(t, ok)
			test.Equate(t, uint32(back), uint32(paddr))
		}
	}

	// FCRAM is visible through both linear heap windows
	aliases := memorymap.PhysicalToVirtualForRasterizer(memorymap.FCRAMPAddr)
	test.Equate(t, len(aliases), 2)

	// VRAM has exactly one alias
	aliases = memorymap.PhysicalToVirtualForRasterizer(memorymap.VRAMPAddr)
	test.Equate(t, len(aliases), 1)

	// DSP memory is never rasterizer cached
	aliases = memorymap.PhysicalToVirtualForRasterizer(memorymap.DSPRAMPAddr)
	test.Equate(t, len(aliases), 0)
}
