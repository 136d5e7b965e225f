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

// RasterizerHook is the interface the memory system uses to keep host
// textures coherent with guest memory. The rasterizer registers itself with
// SetRasterizer() on creation.
type RasterizerHook interface {
	// FlushRegion downloads any host texture data overlapping the physical
	// range back into guest memory
	FlushRegion(addr memorymap.PAddr, size uint32)

	// InvalidateRegion marks any host texture data overlapping the physical
	// range as out of date with respect to guest memory
	InvalidateRegion(addr memorymap.PAddr, size uint32)

	// FlushAndInvalidateRegion performs both operations, in that order
	FlushAndInvalidateRegion(addr memorymap.PAddr, size uint32)
}

// FlushMode selects what rasterizerFlushVirtualRegion asks of the hook.
type FlushMode int

const (
	FlushModeFlush FlushMode = iota
	FlushModeInvalidate
	FlushModeFlushAndInvalidate
)

// rasterizerFlushVirtualRegion clips the virtual range against the
// rasterizer-visible fixed windows and forwards each overlapping physical
// range to the rasterizer hook. A nil hook means there is nothing to keep
// coherent and the function is a no-op.
func (mem *Memory) rasterizerFlushVirtualRegion(addr memorymap.VAddr, size uint32, mode FlushMode) {
	if mem.rasterizer == nil {
		return
	}

	overlap := func(regionStart memorymap.VAddr, regionSize uint32) {
		start := addr
		end := addr + memorymap.VAddr(size)
		regionEnd := regionStart + memorymap.VAddr(regionSize)

		if start >= regionEnd || end <= regionStart {
			return
		}
		if start < regionStart {
			start = regionStart
		}
		if end > regionEnd {
			end = regionEnd
		}

		paddr, ok := memorymap.TryVirtualToPhysical(start)
		if !ok {
			return
		}

		switch mode {
		case FlushModeFlush:
			mem.rasterizer.FlushRegion(paddr, uint32(end-start))
		case FlushModeInvalidate:
			mem.rasterizer.InvalidateRegion(paddr, uint32(end-start))
		case FlushModeFlushAndInvalidate:
			mem.rasterizer.FlushAndInvalidateRegion(paddr, uint32(end-start))
		}
	}

	overlap(memorymap.LinearHeapVAddr, memorymap.LinearHeapSize)
	overlap(memorymap.NewLinearHeapVAddr, memorymap.NewLinearHeapSize)
	overlap(memorymap.VRAMVAddr, memorymap.VRAMSize)
}
