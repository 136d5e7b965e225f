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

import (
	"github.com/tangelo-emu/tangelo/memory/memorymap"
)

// AttribFormat enumerates the component types of a vertex attribute.
type AttribFormat uint32

const (
	AttribByte AttribFormat = iota
	AttribUByte
	AttribShort
	AttribFloat
)

// ComponentSize returns the storage size of one component.
func (f AttribFormat) ComponentSize() int {
	switch f {
	case AttribByte, AttribUByte:
		return 1
	case AttribShort:
		return 2
	}
	return 4
}

// PrimitiveTopology enumerates the supported primitive assembly modes.
type PrimitiveTopology uint32

const (
	TopologyTriangleList PrimitiveTopology = iota
	TopologyTriangleStrip
	TopologyTriangleFan
	TopologyShader
)

// NumVertexAttributes is the number of input attributes the vertex
// pipeline can assemble, including fixed attributes.
const NumVertexAttributes = 16

// NumAttributeLoaders is the number of vertex attribute loaders.
const NumAttributeLoaders = 12

// AttributeElement describes one element consumed by a loader. Padding
// elements carry no attribute index.
type AttributeElement struct {
	Attribute int
	Padding   int
}

// AttributeLoader is the decoded configuration of one vertex attribute
// loader.
type AttributeLoader struct {
	Offset      uint32
	Stride      uint32
	NumElements int
	Elements    [12]AttributeElement
}

// VertexAttributes describes how the twelve loaders assemble input
// attributes from guest memory.
type VertexAttributes struct {
	BaseAddr   memorymap.PAddr
	NumAttribs int
	Format     [NumVertexAttributes]AttribFormat
	Components [NumVertexAttributes]int
	Loaders    [NumAttributeLoaders]AttributeLoader
}

// ElementSize returns the storage size of one value of attribute n.
func (a *VertexAttributes) ElementSize(n int) int {
	return a.Format[n].ComponentSize() * a.Components[n]
}

// IsDefault reports whether attribute n takes its value from the fixed
// default attribute registers rather than from a loader.
func (a *VertexAttributes) IsDefault(n int, defaultMask uint32) bool {
	return defaultMask&(1<<uint(n)) != 0
}

// loader register layout, relative to RegLoader0Offset + 3*loader:
//   +0  data offset from the array base
//   +1  component map low (elements 0 to 7)
//   +2  component map high (elements 8 to 11), byte count, stride

// Attributes returns the decoded vertex attribute and loader
// configuration.
func (r *Regs) Attributes() VertexAttributes {
	var a VertexAttributes

	a.BaseAddr = memorymap.PAddr(r.Raw[RegAttribBase] << 3)

	fmtLow := r.Raw[RegAttribFormatLow]
	fmtHigh := r.Raw[RegAttribFormatHigh]
	a.NumAttribs = int(bits(fmtHigh, 28, 4)) + 1

	for i := 0; i < NumVertexAttributes; i++ {
		var nibble uint32
		if i < 8 {
			nibble = bits(fmtLow, uint(i*4), 4)
		} else {
			nibble = bits(fmtHigh, uint((i-8)*4), 4)
		}
		a.Format[i] = AttribFormat(nibble & 0x3)
		a.Components[i] = int(nibble>>2) + 1
	}

	for l := 0; l < NumAttributeLoaders; l++ {
		base := RegLoader0Offset + RegID(l*3)
		mapLow := r.Raw[base+1]
		mapHigh := r.Raw[base+2]

		loader := AttributeLoader{
			Offset:      r.Raw[base+0],
			Stride:      bits(mapHigh, 16, 8),
			NumElements: int(bits(mapHigh, 28, 4)),
		}

		for e := 0; e < loader.NumElements; e++ {
			var comp uint32
			if e < 8 {
				comp = bits(mapLow, uint(e*4), 4)
			} else {
				comp = bits(mapHigh, uint((e-8)*4), 4)
			}
			switch comp {
			case 12:
				loader.Elements[e] = AttributeElement{Attribute: -1, Padding: 4}
			case 13:
				loader.Elements[e] = AttributeElement{Attribute: -1, Padding: 8}
			case 14:
				loader.Elements[e] = AttributeElement{Attribute: -1, Padding: 12}
			case 15:
				loader.Elements[e] = AttributeElement{Attribute: -1, Padding: 16}
			default:
				loader.Elements[e] = AttributeElement{Attribute: int(comp)}
			}
		}

		a.Loaders[l] = loader
	}

	return a
}

// IndexArray returns the index buffer offset from the attribute array
// base and whether indices are 16-bit.
func (r *Regs) IndexArray() (offset uint32, format16 bool) {
	v := r.Raw[RegIndexArray]
	return bits(v, 0, 28), bit(v, 31)
}

// NumVertices returns the vertex count of the next draw.
func (r *Regs) NumVertices() uint32 {
	return r.Raw[RegNumVertices]
}

// VertexOffset returns the first vertex index of a non-indexed draw.
func (r *Regs) VertexOffset() uint32 {
	return r.Raw[RegVertexOffset]
}

// Topology returns the configured primitive assembly mode.
func (r *Regs) Topology() PrimitiveTopology {
	return PrimitiveTopology(bits(r.Raw[RegPrimitiveConfig], 8, 2))
}

// TotalVSOutputs returns the number of output attributes produced by the
// vertex shader unit.
func (r *Regs) TotalVSOutputs() int {
	return int(bits(r.Raw[RegPrimitiveConfig], 0, 4)) + 1
}

// VSBoolUniforms returns the 16 boolean uniforms of the vertex shader
// unit as a bitmask.
func (r *Regs) VSBoolUniforms() uint16 {
	return uint16(bits(r.Raw[RegVSBoolUniforms], 0, 16))
}

// VSIntUniform returns one of the four integer vector uniforms of the
// vertex shader unit.
func (r *Regs) VSIntUniform(n int) [4]uint8 {
	v := r.Raw[RegVSIntUniforms0+RegID(n)]
	return [4]uint8{
		uint8(bits(v, 0, 8)),
		uint8(bits(v, 8, 8)),
		uint8(bits(v, 16, 8)),
		uint8(bits(v, 24, 8)),
	}
}

// VSMainOffset returns the entry point of the current vertex shader
// program.
func (r *Regs) VSMainOffset() uint32 {
	return bits(r.Raw[RegVSMainOffset], 0, 16)
}

// VSOutputMask returns the mask of vertex shader output registers that
// are written to the output map.
func (r *Regs) VSOutputMask() uint32 {
	return bits(r.Raw[RegVSOutputMask], 0, 16)
}

// VSInputRegMap returns the shader input register assigned to each of the
// sixteen assembled attributes.
func (r *Regs) VSInputRegMap() [NumVertexAttributes]int {
	var m [NumVertexAttributes]int
	low := r.Raw[RegVSInputRegMapLow]
	high := r.Raw[RegVSInputRegMapHigh]
	for i := 0; i < 8; i++ {
		m[i] = int(bits(low, uint(i*4), 4))
		m[i+8] = int(bits(high, uint(i*4), 4))
	}
	return m
}

// UseGeometryShader returns true when the geometry shader unit takes part
// in the current pipeline configuration.
func (r *Regs) UseGeometryShader() bool {
	return bits(r.Raw[RegUseGeometryShader], 0, 2) == 2
}
