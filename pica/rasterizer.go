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

// CullMode selects which triangle winding the rasterizer discards.
type CullMode uint32

const (
	CullNone CullMode = iota
	CullNoneAlt
	CullClockwise
	CullCounterClockwise
)

// ScissorMode selects the behaviour of the scissor test.
type ScissorMode uint32

const (
	ScissorDisabled ScissorMode = 0

	// discard fragments inside the scissor rectangle
	ScissorExclude ScissorMode = 1

	// discard fragments outside the scissor rectangle
	ScissorInclude ScissorMode = 3
)

// CullMode returns the configured cull mode.
func (r *Regs) CullMode() CullMode {
	return CullMode(bits(r.Raw[RegCullMode], 0, 2))
}

// ViewportSizeX returns half the viewport width in pixels.
func (r *Regs) ViewportSizeX() float32 {
	return Float24FromRaw(r.Raw[RegViewportSizeX])
}

// ViewportSizeY returns half the viewport height in pixels.
func (r *Regs) ViewportSizeY() float32 {
	return Float24FromRaw(r.Raw[RegViewportSizeY])
}

// ViewportCorner returns the viewport origin in guest framebuffer
// coordinates.
func (r *Regs) ViewportCorner() (x uint32, y uint32) {
	v := r.Raw[RegViewportCorner]
	return bits(v, 0, 10), bits(v, 16, 10)
}

// DepthmapEnable returns true when the depth range remap applies.
func (r *Regs) DepthmapEnable() bool {
	return bit(r.Raw[RegDepthmapEnable], 0)
}

// DepthmapScale returns the depth range scale factor.
func (r *Regs) DepthmapScale() float32 {
	return Float24FromRaw(r.Raw[RegDepthmapScale])
}

// DepthmapOffset returns the depth range offset.
func (r *Regs) DepthmapOffset() float32 {
	return Float24FromRaw(r.Raw[RegDepthmapOffset])
}

// ScissorMode returns the configured scissor behaviour.
func (r *Regs) ScissorMode() ScissorMode {
	return ScissorMode(bits(r.Raw[RegScissorMode], 0, 2))
}

// ScissorMin returns the inclusive lower corner of the scissor rectangle.
func (r *Regs) ScissorMin() (x uint32, y uint32) {
	v := r.Raw[RegScissorMin]
	return bits(v, 0, 10), bits(v, 16, 10)
}

// ScissorMax returns the inclusive upper corner of the scissor rectangle.
func (r *Regs) ScissorMax() (x uint32, y uint32) {
	v := r.Raw[RegScissorMax]
	return bits(v, 0, 10), bits(v, 16, 10)
}

// Output semantic slots. Each vertex shader output register component
// carries one of these meanings on its way to the rasterizer.
const (
	SemanticPositionX  = 0
	SemanticPositionY  = 1
	SemanticPositionZ  = 2
	SemanticPositionW  = 3
	SemanticQuatX      = 4
	SemanticQuatY      = 5
	SemanticQuatZ      = 6
	SemanticQuatW      = 7
	SemanticColorR     = 8
	SemanticColorG     = 9
	SemanticColorB     = 10
	SemanticColorA     = 11
	SemanticTexcoord0U = 12
	SemanticTexcoord0V = 13
	SemanticTexcoord1U = 14
	SemanticTexcoord1V = 15
	SemanticTexcoord0W = 16
	SemanticViewX      = 18
	SemanticViewY      = 19
	SemanticViewZ      = 20
	SemanticTexcoord2U = 22
	SemanticTexcoord2V = 23
	SemanticInvalid    = 31
)

// VSOutputSemantics returns the four semantic slots carried by output
// register n.
func (r *Regs) VSOutputSemantics(n int) [4]uint8 {
	v := r.Raw[RegVSOutputSemantics0+RegID(n)]
	return [4]uint8{
		uint8(bits(v, 0, 5)),
		uint8(bits(v, 8, 5)),
		uint8(bits(v, 16, 5)),
		uint8(bits(v, 24, 5)),
	}
}
