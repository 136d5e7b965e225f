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

// Package mmio defines the contract between the guest memory system and
// memory-mapped IO handlers. Pages of type Special dispatch their accesses
// through an implementation of the Handler interface.
package mmio

import (
	"github.com/tangelo-emu/tangelo/memory/memorymap"
)

// Handler is implemented by hardware that responds to memory-mapped IO.
//
// All addresses are virtual. A handler is registered against a virtual range
// with MapIoRegion() and will only ever see addresses inside that range, but
// IsValidAddress() may be called for any address in the range including
// addresses with no register behind them.
type Handler interface {
	Read8(addr memorymap.VAddr) uint8
	Read16(addr memorymap.VAddr) uint16
	Read32(addr memorymap.VAddr) uint32
	Read64(addr memorymap.VAddr) uint64

	Write8(addr memorymap.VAddr, data uint8)
	Write16(addr memorymap.VAddr, data uint16)
	Write32(addr memorymap.VAddr, data uint32)
	Write64(addr memorymap.VAddr, data uint64)

	// bulk accesses. n is the number of bytes to transfer
	ReadBlock(addr memorymap.VAddr, dst []byte)
	WriteBlock(addr memorymap.VAddr, src []byte)

	IsValidAddress(addr memorymap.VAddr) bool
}
