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

// Package memorymap describes the guest's physical and virtual address
// spaces.
//
// Physical memory is partitioned into named regions (VRAM, DSP RAM, main
// FCRAM, extra RAM on the newer console revision), each identified by a
// {base, size} pair. The virtual address space is 32 bits divided into 4KB
// pages.
//
// Several virtual regions alias the same physical region. Both linear heap
// windows alias FCRAM and one window aliases VRAM. Because of this, mapping
// between the two spaces is not one-to-one in the physical-to-virtual
// direction: PhysicalToVirtualForRasterizer returns every alias so that the
// rasterizer cache can mark all of them at once.
//
// The constants in this package are fixed properties of the guest hardware
// and must not be changed.
package memorymap
