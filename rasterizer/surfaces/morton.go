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
	"encoding/binary"

	"github.com/tangelo-emu/tangelo/logger"
)

// mortonInterleave returns the offset of pixel (x, y) within an 8x8
// tile. The guest GPU stores tiles with the bits of x and y interleaved.
func mortonInterleave(x, y uint32) uint32 {
	i := (x & 1) | (x&2)<<1 | (x&4)<<2
	i |= (y&1)<<1 | (y&2)<<2 | (y&4)<<3
	return i
}

// pixelIndex returns the index of pixel (x, y) in the guest's storage
// order. Row 0 is the first row in memory.
func pixelIndex(p *SurfaceParams, x, y uint32) uint32 {
	if !p.IsTiled {
		return y*p.Stride + x
	}
	tile := (y/tileSize)*(p.Stride/tileSize) + x/tileSize
	return tile*tileSize*tileSize + mortonInterleave(x%tileSize, y%tileSize)
}

// expand4 widens a 4-bit channel to 8 bits.
func expand4(v byte) byte { return v<<4 | v }

// expand5 widens a 5-bit channel to 8 bits.
func expand5(v byte) byte { return v<<3 | v>>2 }

// expand6 widens a 6-bit channel to 8 bits.
func expand6(v byte) byte { return v<<2 | v>>4 }

// decodePixel reads one guest pixel at the given pixel index and returns
// host RGBA bytes. Sub-byte and compressed formats are handled by the
// callers.
func decodePixel(f PixelFormat, guest []byte, index uint32) [4]byte {
	switch f {
	case PixelRGBA8:
		o := index * 4
		// guest byte order is ABGR
		return [4]byte{guest[o+3], guest[o+2], guest[o+1], guest[o]}
	case PixelRGB8:
		o := index * 3
		return [4]byte{guest[o+2], guest[o+1], guest[o], 255}
	case PixelRGB5A1:
		v := binary.LittleEndian.Uint16(guest[index*2:])
		return [4]byte{
			expand5(byte(v >> 11)),
			expand5(byte(v >> 6 & 0x1f)),
			expand5(byte(v >> 1 & 0x1f)),
			byte(v&1) * 255,
		}
	case PixelRGB565:
		v := binary.LittleEndian.Uint16(guest[index*2:])
		return [4]byte{
			expand5(byte(v >> 11)),
			expand6(byte(v >> 5 & 0x3f)),
			expand5(byte(v & 0x1f)),
			255,
		}
	case PixelRGBA4:
		v := binary.LittleEndian.Uint16(guest[index*2:])
		return [4]byte{
			expand4(byte(v >> 12)),
			expand4(byte(v >> 8 & 0xf)),
			expand4(byte(v >> 4 & 0xf)),
			expand4(byte(v & 0xf)),
		}
	case PixelIA8:
		o := index * 2
		return [4]byte{guest[o+1], guest[o+1], guest[o+1], guest[o]}
	case PixelRG8:
		o := index * 2
		return [4]byte{guest[o+1], guest[o], 0, 255}
	case PixelI8:
		v := guest[index]
		return [4]byte{v, v, v, 255}
	case PixelA8:
		return [4]byte{0, 0, 0, guest[index]}
	case PixelIA4:
		v := guest[index]
		i := expand4(v >> 4)
		return [4]byte{i, i, i, expand4(v & 0xf)}
	}
	return [4]byte{}
}

// encodePixel writes one host RGBA pixel back into the guest format.
// Only formats that can be render targets are encoded.
func encodePixel(f PixelFormat, px [4]byte, guest []byte, index uint32) {
	switch f {
	case PixelRGBA8:
		o := index * 4
		guest[o] = px[3]
		guest[o+1] = px[2]
		guest[o+2] = px[1]
		guest[o+3] = px[0]
	case PixelRGB8:
		o := index * 3
		guest[o] = px[2]
		guest[o+1] = px[1]
		guest[o+2] = px[0]
	case PixelRGB5A1:
		v := uint16(px[0]>>3)<<11 | uint16(px[1]>>3)<<6 | uint16(px[2]>>3)<<1 | uint16(px[3]>>7)
		binary.LittleEndian.PutUint16(guest[index*2:], v)
	case PixelRGB565:
		v := uint16(px[0]>>3)<<11 | uint16(px[1]>>2)<<5 | uint16(px[2]>>3)
		binary.LittleEndian.PutUint16(guest[index*2:], v)
	case PixelRGBA4:
		v := uint16(px[0]>>4)<<12 | uint16(px[1]>>4)<<8 | uint16(px[2]>>4)<<4 | uint16(px[3]>>4)
		binary.LittleEndian.PutUint16(guest[index*2:], v)
	}
}

// GuestToHost converts guest surface bytes to linear host pixels. The
// returned length of out is Width*Height host pixels.
func GuestToHost(p *SurfaceParams, guest []byte, out []byte) {
	switch p.Format {
	case PixelD16:
		for y := uint32(0); y < p.Height; y++ {
			for x := uint32(0); x < p.Width; x++ {
				idx := pixelIndex(p, x, y)
				o := (y*p.Width + x) * 2
				copy(out[o:o+2], guest[idx*2:idx*2+2])
			}
		}
	case PixelD24:
		for y := uint32(0); y < p.Height; y++ {
			for x := uint32(0); x < p.Width; x++ {
				idx := pixelIndex(p, x, y)
				d := uint32(guest[idx*3]) | uint32(guest[idx*3+1])<<8 | uint32(guest[idx*3+2])<<16
				binary.LittleEndian.PutUint32(out[(y*p.Width+x)*4:], d<<8)
			}
		}
	case PixelD24S8:
		// guest pixels are three depth bytes then stencil; the host
		// packs stencil into the low byte
		for y := uint32(0); y < p.Height; y++ {
			for x := uint32(0); x < p.Width; x++ {
				idx := pixelIndex(p, x, y)
				g := guest[idx*4 : idx*4+4]
				d := uint32(g[0]) | uint32(g[1])<<8 | uint32(g[2])<<16
				binary.LittleEndian.PutUint32(out[(y*p.Width+x)*4:], d<<8|uint32(g[3]))
			}
		}
	case PixelI4, PixelA4:
		for y := uint32(0); y < p.Height; y++ {
			for x := uint32(0); x < p.Width; x++ {
				idx := pixelIndex(p, x, y)
				v := guest[idx/2]
				if idx%2 == 1 {
					v >>= 4
				}
				v = expand4(v & 0xf)
				o := (y*p.Width + x) * 4
				if p.Format == PixelI4 {
					out[o], out[o+1], out[o+2], out[o+3] = v, v, v, 255
				} else {
					out[o], out[o+1], out[o+2], out[o+3] = 0, 0, 0, v
				}
			}
		}
	case PixelETC1, PixelETC1A4:
		decodeETC1(p, guest, out)
	default:
		for y := uint32(0); y < p.Height; y++ {
			for x := uint32(0); x < p.Width; x++ {
				px := decodePixel(p.Format, guest, pixelIndex(p, x, y))
				copy(out[(y*p.Width+x)*4:], px[:])
			}
		}
	}
}

// HostToGuest converts linear host pixels back into the guest's layout
// at the surface's format. Texture-only formats cannot be written back.
func HostToGuest(p *SurfaceParams, in []byte, guest []byte) {
	switch p.Format {
	case PixelD16:
		for y := uint32(0); y < p.Height; y++ {
			for x := uint32(0); x < p.Width; x++ {
				idx := pixelIndex(p, x, y)
				o := (y*p.Width + x) * 2
				copy(guest[idx*2:idx*2+2], in[o:o+2])
			}
		}
	case PixelD24:
		for y := uint32(0); y < p.Height; y++ {
			for x := uint32(0); x < p.Width; x++ {
				idx := pixelIndex(p, x, y)
				d := binary.LittleEndian.Uint32(in[(y*p.Width+x)*4:]) >> 8
				guest[idx*3] = byte(d)
				guest[idx*3+1] = byte(d >> 8)
				guest[idx*3+2] = byte(d >> 16)
			}
		}
	case PixelD24S8:
		for y := uint32(0); y < p.Height; y++ {
			for x := uint32(0); x < p.Width; x++ {
				idx := pixelIndex(p, x, y)
				v := binary.LittleEndian.Uint32(in[(y*p.Width+x)*4:])
				d := v >> 8
				guest[idx*4] = byte(d)
				guest[idx*4+1] = byte(d >> 8)
				guest[idx*4+2] = byte(d >> 16)
				guest[idx*4+3] = byte(v)
			}
		}
	case PixelRGBA8, PixelRGB8, PixelRGB5A1, PixelRGB565, PixelRGBA4:
		for y := uint32(0); y < p.Height; y++ {
			for x := uint32(0); x < p.Width; x++ {
				o := (y*p.Width + x) * 4
				var px [4]byte
				copy(px[:], in[o:o+4])
				encodePixel(p.Format, px, guest, pixelIndex(p, x, y))
			}
		}
	default:
		logger.Logf(logger.Allow, "surfaces", "cannot write back %d formatted surface", p.Format)
	}
}

// etc1Modifiers is the standard ETC1 modifier table. Rows are selected
// by a 3-bit codeword, columns by the 2-bit pixel index.
var etc1Modifiers = [8][4]int16{
	{2, 8, -2, -8},
	{5, 17, -5, -17},
	{9, 29, -9, -29},
	{13, 42, -13, -42},
	{18, 60, -18, -60},
	{24, 80, -24, -80},
	{33, 106, -33, -106},
	{47, 183, -47, -183},
}

func clampColor(v int16) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}

// decodeETC1Block expands one 4x4 ETC1 block into out, a 4x4 RGB pixel
// array indexed [y][x]. Blocks are stored as little-endian 64-bit words
// so the codeword fields sit in the high bits.
func decodeETC1Block(block uint64, out *[4][4][3]byte) {
	diff := block>>33&1 != 0
	flip := block>>32&1 != 0

	var base [2][3]byte
	for c := 0; c < 3; c++ {
		field := byte(block >> (56 - 8*c))
		if diff {
			b1 := field >> 3
			d := int8(field&0x7) << 5 >> 5
			b2 := byte(int8(b1) + d)
			base[0][c] = expand5(b1)
			base[1][c] = expand5(b2)
		} else {
			base[0][c] = expand4(field >> 4)
			base[1][c] = expand4(field & 0xf)
		}
	}

	tables := [2]byte{byte(block >> 37 & 0x7), byte(block >> 34 & 0x7)}

	// two index bits per pixel, column major, split into a most and a
	// least significant lane
	msb := uint32(block >> 16 & 0xffff)
	lsb := uint32(block & 0xffff)

	for x := uint32(0); x < 4; x++ {
		for y := uint32(0); y < 4; y++ {
			bitlane := x*4 + y

			sub := 0
			if (!flip && x >= 2) || (flip && y >= 2) {
				sub = 1
			}

			idx := (msb>>bitlane&1)<<1 | lsb>>bitlane&1
			mod := etc1Modifiers[tables[sub]][idx]

			for c := 0; c < 3; c++ {
				out[y][x][c] = clampColor(int16(base[sub][c]) + mod)
			}
		}
	}
}

// decodeETC1 expands an ETC1 or ETC1A4 surface into linear RGBA pixels.
// Each 8x8 tile holds four 4x4 blocks in z order; ETC1A4 prefixes each
// block with eight bytes of 4-bit alpha.
func decodeETC1(p *SurfaceParams, guest []byte, out []byte) {
	blockBytes := uint32(8)
	if p.Format == PixelETC1A4 {
		blockBytes = 16
	}
	tilesPerRow := p.Stride / tileSize

	var rgb [4][4][3]byte
	for ty := uint32(0); ty < p.Height/tileSize; ty++ {
		for tx := uint32(0); tx < p.Width/tileSize; tx++ {
			tileOffset := (ty*tilesPerRow + tx) * blockBytes * 4

			for b := uint32(0); b < 4; b++ {
				blockX := b % 2 * 4
				blockY := b / 2 * 4

				o := tileOffset + b*blockBytes
				alpha := uint64(0xffffffffffffffff)
				color := binary.LittleEndian.Uint64(guest[o:])
				if p.Format == PixelETC1A4 {
					alpha = color
					color = binary.LittleEndian.Uint64(guest[o+8:])
				}

				decodeETC1Block(color, &rgb)

				for y := uint32(0); y < 4; y++ {
					for x := uint32(0); x < 4; x++ {
						px := ((ty*tileSize+blockY+y)*p.Width + tx*tileSize + blockX + x) * 4
						out[px] = rgb[y][x][0]
						out[px+1] = rgb[y][x][1]
						out[px+2] = rgb[y][x][2]
						// alpha nibbles, column major
						out[px+3] = expand4(byte(alpha >> (4 * (x*4 + y)) & 0xf))
					}
				}
			}
		}
	}
}
