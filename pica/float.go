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

package pica

import "math"

// The guest GPU stores most fractional register values in non-IEEE float
// formats: float24 (1 sign, 7 exponent, 16 mantissa) for general values and
// float20/float16 for LUT entries and attenuation parameters. The decode
// functions below convert to IEEE float32.

// decodeFloat converts a guest float with the given mantissa and exponent
// widths to a float32.
func decodeFloat(raw uint32, mantissaBits, exponentBits uint) float32 {
	mantissaMask := uint32(1)<<mantissaBits - 1
	exponentMask := uint32(1)<<exponentBits - 1

	mantissa := raw & mantissaMask
	exponent := (raw >> mantissaBits) & exponentMask
	sign := (raw >> (mantissaBits + exponentBits)) & 1

	// the exponent bias maps the guest's midpoint to IEEE's 127
	bias := uint32(127 - (1<<(exponentBits-1) - 1))

	var bits uint32
	if exponent == 0 && mantissa == 0 {
		bits = sign << 31
	} else {
		bits = sign<<31 | (exponent+bias)<<23 | mantissa<<(23-mantissaBits)
	}

	return math.Float32frombits(bits)
}

// Float24FromRaw converts a raw 24-bit guest float to float32.
func Float24FromRaw(raw uint32) float32 {
	return decodeFloat(raw&0xffffff, 16, 7)
}

// Float20FromRaw converts a raw 20-bit guest float to float32. Used by the
// distance attenuation bias and scale registers.
func Float20FromRaw(raw uint32) float32 {
	return decodeFloat(raw&0xfffff, 12, 7)
}

// Float16FromRaw converts a raw 16-bit guest float to float32. Used by
// procedural texture noise parameters.
func Float16FromRaw(raw uint32) float32 {
	return decodeFloat(raw&0xffff, 10, 5)
}

// float32FromBits reinterprets a register value as an IEEE float32. Used
// by the 32-bit float uniform upload mode.
func float32FromBits(raw uint32) float32 {
	return math.Float32frombits(raw)
}
