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

package surfaces

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/tangelo-emu/tangelo/test"
)

func TestMortonInterleave(t *testing.T) {
	test.Equate(t, mortonInterleave(0, 0), uint32(0))
	test.Equate(t, mortonInterleave(1, 0), uint32(1))
	test.Equate(t, mortonInterleave(0, 1), uint32(2))
	test.Equate(t, mortonInterleave(7, 7), uint32(63))

	// x supplies the even bits, y the odd bits
	test.Equate(t, mortonInterleave(5, 0), uint32(0b010001))
	test.Equate(t, mortonInterleave(0, 5), uint32(0b100010))
}

func testParams(format PixelFormat, width, height uint32, tiled bool) SurfaceParams {
	p := SurfaceParams{
		Addr:     0x18000000,
		Width:    width,
		Height:   height,
		IsTiled:  tiled,
		Format:   format,
		ResScale: 1,
	}
	p.UpdateParams()
	return p
}

func TestTiledRoundTrip(t *testing.T) {
	for _, format := range []PixelFormat{PixelRGBA8, PixelRGB565, PixelRGB5A1, PixelRGBA4, PixelRGB8} {
		p := testParams(format, 16, 8, true)

		guest := make([]byte, p.Size)
		for i := range guest {
			guest[i] = byte(i * 7)
		}

		decoded := make([]byte, p.Width*p.Height*4)
		GuestToHost(&p, guest, decoded)

		encoded := make([]byte, p.Size)
		HostToGuest(&p, decoded, encoded)

		if !bytes.Equal(guest, encoded) {
			t.Fatalf("format %d did not round trip", format)
		}
	}
}

func TestLinearRoundTripWithStride(t *testing.T) {
	p := testParams(PixelRGBA8, 4, 4, false)
	p.Stride = 8
	p.UpdateParams()

	guest := make([]byte, p.Size)
	for i := range guest {
		guest[i] = byte(i)
	}

	decoded := make([]byte, p.Width*p.Height*4)
	GuestToHost(&p, guest, decoded)

	// bytes in the stride gap must survive a write back untouched
	encoded := make([]byte, p.Size)
	copy(encoded, guest)
	HostToGuest(&p, decoded, encoded)
	test.Equate(t, bytes.Equal(guest, encoded), true)
}

func TestDepthStencilSwizzle(t *testing.T) {
	p := testParams(PixelD24S8, 8, 8, true)

	guest := make([]byte, p.Size)
	// pixel at morton index 0: depth 0x123456, stencil 0xab
	guest[0], guest[1], guest[2], guest[3] = 0x56, 0x34, 0x12, 0xab

	out := make([]byte, p.Width*p.Height*4)
	GuestToHost(&p, guest, out)
	test.Equate(t, binary.LittleEndian.Uint32(out[0:4]), uint32(0x123456<<8|0xab))

	back := make([]byte, p.Size)
	HostToGuest(&p, out, back)
	test.Equate(t, bytes.Equal(guest, back), true)
}

func TestETC1SolidBlock(t *testing.T) {
	// individual mode, both sub-blocks base color nibble 0xf, table 0,
	// all pixels msb=0 lsb=1: modifier +8 clamps every channel to 0xff
	var block uint64
	block |= 0xff << 56 // R base colors 0xf, 0xf
	block |= 0xff << 48 // G
	block |= 0xff << 40 // B
	block |= 0xffff     // lsb lanes all set

	p := testParams(PixelETC1, 8, 8, true)
	guest := make([]byte, p.Size)
	for i := 0; i < 4; i++ {
		binary.LittleEndian.PutUint64(guest[i*8:], block)
	}

	out := make([]byte, p.Width*p.Height*4)
	GuestToHost(&p, guest, out)

	// expand4(0xf)=0xff, modifier +8 clamps to 0xff
	for i := uint32(0); i < p.Width*p.Height; i++ {
		o := i * 4
		test.Equate(t, out[o], uint8(0xff))
		test.Equate(t, out[o+1], uint8(0xff))
		test.Equate(t, out[o+2], uint8(0xff))
		test.Equate(t, out[o+3], uint8(0xff))
	}
}

func TestETC1A4Alpha(t *testing.T) {
	p := testParams(PixelETC1A4, 8, 8, true)
	guest := make([]byte, p.Size)

	// first block: alpha word all 0x7 nibbles, color block zero
	for i := 0; i < 8; i++ {
		guest[i] = 0x77
	}

	out := make([]byte, p.Width*p.Height*4)
	GuestToHost(&p, guest, out)

	// alpha expands 4 to 8 bits
	test.Equate(t, out[3], uint8(0x77))
}
