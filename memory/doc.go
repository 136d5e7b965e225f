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

// Package memory implements the guest memory system: the physical backing
// regions, the paged virtual address table and the access functions used by
// the CPU emulation.
//
// Accesses dispatch on the page type of the touched page. Pages of type
// Memory resolve through a raw pointer into a backing region; this is the
// fast path and performs no logging and no branching beyond the pointer
// check. Pages of type RasterizerCachedMemory have a deliberately nil
// pointer so that accesses fall into the slow path where the rasterizer is
// asked to flush (before a read) or invalidate (before a write) the host
// texture mirroring the touched bytes. Pages of type Special dispatch to an
// MMIO handler.
//
// The page-type tag of a page is flipped between Memory and
// RasterizerCachedMemory by RasterizerMarkRegionCached(). The surface cache
// calls it whenever the number of host surfaces covering a physical page
// transitions between zero and non-zero. Because the same physical page can
// be visible through several virtual windows and several page tables, the
// marking walks every registered table and every alias.
//
// All multi-byte accesses are little-endian, matching the guest CPU.
package memory
