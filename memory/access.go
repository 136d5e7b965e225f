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
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/tangelo-emu/tangelo/logger"
	"github.com/tangelo-emu/tangelo/memory/memorymap"
)

// read fills buf from the virtual address. len(buf) is 1, 2, 4 or 8.
func (mem *Memory) read(addr memorymap.VAddr, buf []byte) {
	pt := mem.current
	page := addr >> memorymap.PageBits
	off := uint32(addr) & memorymap.PageMask

	// a scalar access crossing the page boundary cannot be served by a
	// single page pointer. the block path splits it per page
	if off+uint32(len(buf)) > memorymap.PageSize {
		mem.ReadBlock(addr, buf)
		return
	}

	// fast path. no logging, no further branches
	if p := pt.Pointers[page]; p != nil {
		copy(buf, p[off:])
		return
	}

	switch pt.Attributes[page] {
	case PageUnmapped:
		logger.Logf(logger.Allow, "memory", "unmapped read%d at %#08x", len(buf)*8, addr)
		for i := range buf {
			buf[i] = 0
		}

	case PageMemory:
		panic(fmt.Sprintf("memory: Memory page with nil pointer (%#08x)", addr))

	case PageRasterizerCachedMemory:
		mem.rasterizerFlushVirtualRegion(addr, uint32(len(buf)), FlushModeFlush)
		p := mem.pointerForRasterizerCache(addr)
		copy(buf, p[:len(buf)])

	case PageSpecial:
		mem.mmioRead(addr, buf)

	default:
		panic("memory: unreachable page type in read")
	}
}

// write stores buf at the virtual address. len(buf) is 1, 2, 4 or 8.
func (mem *Memory) write(addr memorymap.VAddr, buf []byte) {
	pt := mem.current
	page := addr >> memorymap.PageBits
	off := uint32(addr) & memorymap.PageMask

	// see the equivalent branch in read()
	if off+uint32(len(buf)) > memorymap.PageSize {
		mem.WriteBlock(addr, buf)
		return
	}

	// fast path. no logging, no further branches
	if p := pt.Pointers[page]; p != nil {
		copy(p[off:], buf)
		return
	}

	switch pt.Attributes[page] {
	case PageUnmapped:
		logger.Logf(logger.Allow, "memory", "unmapped write%d %#x at %#08x", len(buf)*8, buf, addr)

	case PageMemory:
		panic(fmt.Sprintf("memory: Memory page with nil pointer (%#08x)", addr))

	case PageRasterizerCachedMemory:
		mem.rasterizerFlushVirtualRegion(addr, uint32(len(buf)), FlushModeInvalidate)
		p := mem.pointerForRasterizerCache(addr)
		copy(p[:len(buf)], buf)

	case PageSpecial:
		mem.mmioWrite(addr, buf)

	default:
		panic("memory: unreachable page type in write")
	}
}

// Read8 reads a byte from the virtual address.
func (mem *Memory) Read8(addr memorymap.VAddr) uint8 {
	var b [1]byte
	mem.read(addr, b[:])
	return b[0]
}

// Read16 reads a little-endian 16-bit value from the virtual address.
func (mem *Memory) Read16(addr memorymap.VAddr) uint16 {
	var b [2]byte
	mem.read(addr, b[:])
	return binary.LittleEndian.Uint16(b[:])
}

// Read32 reads a little-endian 32-bit value from the virtual address.
func (mem *Memory) Read32(addr memorymap.VAddr) uint32 {
	var b [4]byte
	mem.read(addr, b[:])
	return binary.LittleEndian.Uint32(b[:])
}

// Read64 reads a little-endian 64-bit value from the virtual address.
func (mem *Memory) Read64(addr memorymap.VAddr) uint64 {
	var b [8]byte
	mem.read(addr, b[:])
	return binary.LittleEndian.Uint64(b[:])
}

// Write8 writes a byte to the virtual address.
func (mem *Memory) Write8(addr memorymap.VAddr, data uint8) {
	b := [1]byte{data}
	mem.write(addr, b[:])
}

// Write16 writes a little-endian 16-bit value to the virtual address.
func (mem *Memory) Write16(addr memorymap.VAddr, data uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], data)
	mem.write(addr, b[:])
}

// Write32 writes a little-endian 32-bit value to the virtual address.
func (mem *Memory) Write32(addr memorymap.VAddr, data uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], data)
	mem.write(addr, b[:])
}

// Write64 writes a little-endian 64-bit value to the virtual address.
func (mem *Memory) Write64(addr memorymap.VAddr, data uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], data)
	mem.write(addr, b[:])
}

// writeExclusive is the common implementation for the WriteExclusive
// functions. data and expected have the same length.
func (mem *Memory) writeExclusive(addr memorymap.VAddr, data []byte, expected []byte) bool {
	pt := mem.current
	page := addr >> memorymap.PageBits
	off := uint32(addr) & memorymap.PageMask

	// a compare-and-swap crossing the page boundary runs through the
	// block path, still under the exclusive lock
	if off+uint32(len(data)) > memorymap.PageSize {
		mem.exclusive.Lock()
		defer mem.exclusive.Unlock()

		var current [8]byte
		mem.ReadBlock(addr, current[:len(expected)])
		if !bytes.Equal(current[:len(expected)], expected) {
			return false
		}
		mem.WriteBlock(addr, data)
		return true
	}

	// fast path: compare-and-swap against the raw page pointer
	if p := pt.Pointers[page]; p != nil {
		mem.exclusive.Lock()
		defer mem.exclusive.Unlock()

		for i := range expected {
			if p[off+uint32(i)] != expected[i] {
				return false
			}
		}
		copy(p[off:], data)
		return true
	}

	switch pt.Attributes[page] {
	case PageUnmapped:
		logger.Logf(logger.Allow, "memory", "unmapped exclusive write%d at %#08x", len(data)*8, addr)
		return true

	case PageMemory:
		panic(fmt.Sprintf("memory: Memory page with nil pointer (%#08x)", addr))

	case PageRasterizerCachedMemory:
		// degrades to an unconditional write through the cache-backed
		// pointer
		mem.rasterizerFlushVirtualRegion(addr, uint32(len(data)), FlushModeInvalidate)
		p := mem.pointerForRasterizerCache(addr)
		copy(p[:len(data)], data)
		return true

	case PageSpecial:
		// the MMIO path performs a non-atomic write and then reports
		// failure unconditionally. this is almost certainly wrong for
		// concurrent guest code but it is the observed behaviour of the
		// hardware-tested implementation and is preserved deliberately
		mem.mmioWrite(addr, data)
		return false

	default:
		panic("memory: unreachable page type in writeExclusive")
	}
}

// WriteExclusive8 performs an atomic compare-and-swap of a byte. Returns
// true if the stored value matched expected and the write took place.
func (mem *Memory) WriteExclusive8(addr memorymap.VAddr, data uint8, expected uint8) bool {
	d := [1]byte{data}
	e := [1]byte{expected}
	return mem.writeExclusive(addr, d[:], e[:])
}

// WriteExclusive16 performs an atomic compare-and-swap of a little-endian
// 16-bit value.
func (mem *Memory) WriteExclusive16(addr memorymap.VAddr, data uint16, expected uint16) bool {
	var d, e [2]byte
	binary.LittleEndian.PutUint16(d[:], data)
	binary.LittleEndian.PutUint16(e[:], expected)
	return mem.writeExclusive(addr, d[:], e[:])
}

// WriteExclusive32 performs an atomic compare-and-swap of a little-endian
// 32-bit value.
func (mem *Memory) WriteExclusive32(addr memorymap.VAddr, data uint32, expected uint32) bool {
	var d, e [4]byte
	binary.LittleEndian.PutUint32(d[:], data)
	binary.LittleEndian.PutUint32(e[:], expected)
	return mem.writeExclusive(addr, d[:], e[:])
}

// WriteExclusive64 performs an atomic compare-and-swap of a little-endian
// 64-bit value.
func (mem *Memory) WriteExclusive64(addr memorymap.VAddr, data uint64, expected uint64) bool {
	var d, e [8]byte
	binary.LittleEndian.PutUint64(d[:], data)
	binary.LittleEndian.PutUint64(e[:], expected)
	return mem.writeExclusive(addr, d[:], e[:])
}

// ReadBlock copies len(dst) bytes from the virtual address into dst,
// crossing page boundaries as necessary.
func (mem *Memory) ReadBlock(addr memorymap.VAddr, dst []byte) {
	pt := mem.current

	for len(dst) > 0 {
		page := addr >> memorymap.PageBits
		off := uint32(addr) & memorymap.PageMask
		n := memorymap.PageSize - off
		if n > uint32(len(dst)) {
			n = uint32(len(dst))
		}

		if p := pt.Pointers[page]; p != nil {
			copy(dst[:n], p[off:])
		} else {
			switch pt.Attributes[page] {
			case PageUnmapped:
				logger.Logf(logger.Allow, "memory", "unmapped block read of %d bytes at %#08x", n, addr)
				for i := uint32(0); i < n; i++ {
					dst[i] = 0
				}

			case PageMemory:
				panic(fmt.Sprintf("memory: Memory page with nil pointer (%#08x)", addr))

			case PageRasterizerCachedMemory:
				mem.rasterizerFlushVirtualRegion(addr, n, FlushModeFlush)
				p := mem.pointerForRasterizerCache(addr)
				copy(dst[:n], p)

			case PageSpecial:
				mem.mmioReadBlock(addr, dst[:n])

			default:
				panic("memory: unreachable page type in ReadBlock")
			}
		}

		dst = dst[n:]
		addr += memorymap.VAddr(n)
	}
}

// WriteBlock copies src to the virtual address, crossing page boundaries as
// necessary.
func (mem *Memory) WriteBlock(addr memorymap.VAddr, src []byte) {
	pt := mem.current

	for len(src) > 0 {
		page := addr >> memorymap.PageBits
		off := uint32(addr) & memorymap.PageMask
		n := memorymap.PageSize - off
		if n > uint32(len(src)) {
			n = uint32(len(src))
		}

		if p := pt.Pointers[page]; p != nil {
			copy(p[off:], src[:n])
		} else {
			switch pt.Attributes[page] {
			case PageUnmapped:
				logger.Logf(logger.Allow, "memory", "unmapped block write of %d bytes at %#08x", n, addr)

			case PageMemory:
				panic(fmt.Sprintf("memory: Memory page with nil pointer (%#08x)", addr))

			case PageRasterizerCachedMemory:
				mem.rasterizerFlushVirtualRegion(addr, n, FlushModeInvalidate)
				p := mem.pointerForRasterizerCache(addr)
				copy(p, src[:n])

			case PageSpecial:
				mem.mmioWriteBlock(addr, src[:n])

			default:
				panic("memory: unreachable page type in WriteBlock")
			}
		}

		src = src[n:]
		addr += memorymap.VAddr(n)
	}
}

// ZeroBlock writes size zero bytes at the virtual address.
func (mem *Memory) ZeroBlock(addr memorymap.VAddr, size uint32) {
	var zeros [memorymap.PageSize]byte
	for size > 0 {
		n := uint32(memorymap.PageSize)
		if n > size {
			n = size
		}
		mem.WriteBlock(addr, zeros[:n])
		addr += memorymap.VAddr(n)
		size -= n
	}
}

// CopyBlock copies size bytes between two virtual addresses through a
// staging buffer.
func (mem *Memory) CopyBlock(dst memorymap.VAddr, src memorymap.VAddr, size uint32) {
	var staging [memorymap.PageSize]byte
	for size > 0 {
		n := uint32(memorymap.PageSize)
		if n > size {
			n = size
		}
		mem.ReadBlock(src, staging[:n])
		mem.WriteBlock(dst, staging[:n])
		src += memorymap.VAddr(n)
		dst += memorymap.VAddr(n)
		size -= n
	}
}

// mmioRead dispatches a read to the MMIO handler for the address. Reads
// with no handler return zeroes.
func (mem *Memory) mmioRead(addr memorymap.VAddr, buf []byte) {
	sp := mem.current.specialRegionFor(addr)
	if sp == nil {
		logger.Logf(logger.Allow, "memory", "MMIO read%d with no handler at %#08x", len(buf)*8, addr)
		for i := range buf {
			buf[i] = 0
		}
		return
	}

	switch len(buf) {
	case 1:
		buf[0] = sp.Handler.Read8(addr)
	case 2:
		binary.LittleEndian.PutUint16(buf, sp.Handler.Read16(addr))
	case 4:
		binary.LittleEndian.PutUint32(buf, sp.Handler.Read32(addr))
	case 8:
		binary.LittleEndian.PutUint64(buf, sp.Handler.Read64(addr))
	default:
		sp.Handler.ReadBlock(addr, buf)
	}
}

// mmioWrite dispatches a write to the MMIO handler for the address. Writes
// with no handler are dropped.
func (mem *Memory) mmioWrite(addr memorymap.VAddr, buf []byte) {
	sp := mem.current.specialRegionFor(addr)
	if sp == nil {
		logger.Logf(logger.Allow, "memory", "MMIO write%d with no handler at %#08x", len(buf)*8, addr)
		return
	}

	switch len(buf) {
	case 1:
		sp.Handler.Write8(addr, buf[0])
	case 2:
		sp.Handler.Write16(addr, binary.LittleEndian.Uint16(buf))
	case 4:
		sp.Handler.Write32(addr, binary.LittleEndian.Uint32(buf))
	case 8:
		sp.Handler.Write64(addr, binary.LittleEndian.Uint64(buf))
	default:
		sp.Handler.WriteBlock(addr, buf)
	}
}

func (mem *Memory) mmioReadBlock(addr memorymap.VAddr, dst []byte) {
	sp := mem.current.specialRegionFor(addr)
	if sp == nil {
		logger.Logf(logger.Allow, "memory", "MMIO block read with no handler at %#08x", addr)
		for i := range dst {
			dst[i] = 0
		}
		return
	}
	sp.Handler.ReadBlock(addr, dst)
}

func (mem *Memory) mmioWriteBlock(addr memorymap.VAddr, src []byte) {
	sp := mem.current.specialRegionFor(addr)
	if sp == nil {
		logger.Logf(logger.Allow, "memory", "MMIO block write with no handler at %#08x", addr)
		return
	}
	sp.Handler.WriteBlock(addr, src)
}
