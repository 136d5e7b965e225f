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

package rasterizer

import (
	"encoding/binary"
	"math"

	"github.com/tangelo-emu/tangelo/host"
	"github.com/tangelo-emu/tangelo/logger"
	"github.com/tangelo-emu/tangelo/memory/memorymap"
	"github.com/tangelo-emu/tangelo/pica"
)

// HWVertex is a software-transformed vertex as the trivial vertex shader
// consumes it. The field order matches the shader's input attribute
// locations.
type HWVertex struct {
	Position   [4]float32
	Color      [4]float32
	TexCoord0  [2]float32
	TexCoord1  [2]float32
	TexCoord2  [2]float32
	TexCoord0W float32
	NormQuat   [4]float32
	View       [3]float32
}

// hwVertexStride is the packed size of one HWVertex in the vertex
// stream.
const hwVertexStride = 88

// hwVertexLayout maps the packed HWVertex onto the trivial vertex
// shader's inputs.
var hwVertexLayout = []host.VertexAttrib{
	{Location: 0, Components: 4, Type: host.AttribFloat, Offset: 0},
	{Location: 1, Components: 4, Type: host.AttribFloat, Offset: 16},
	{Location: 2, Components: 2, Type: host.AttribFloat, Offset: 32},
	{Location: 3, Components: 2, Type: host.AttribFloat, Offset: 40},
	{Location: 4, Components: 2, Type: host.AttribFloat, Offset: 48},
	{Location: 5, Components: 1, Type: host.AttribFloat, Offset: 56},
	{Location: 6, Components: 4, Type: host.AttribFloat, Offset: 60},
	{Location: 7, Components: 3, Type: host.AttribFloat, Offset: 76},
}

func appendFloats(b []byte, vals ...float32) []byte {
	for _, v := range vals {
		b = binary.LittleEndian.AppendUint32(b, math.Float32bits(v))
	}
	return b
}

func (v *HWVertex) append(b []byte) []byte {
	b = appendFloats(b, v.Position[:]...)
	b = appendFloats(b, v.Color[:]...)
	b = appendFloats(b, v.TexCoord0[:]...)
	b = appendFloats(b, v.TexCoord1[:]...)
	b = appendFloats(b, v.TexCoord2[:]...)
	b = appendFloats(b, v.TexCoord0W)
	b = appendFloats(b, v.NormQuat[:]...)
	b = appendFloats(b, v.View[:]...)
	return b
}

// AreQuaternionsOpposite reports whether two normal quaternions lie on
// opposite hemispheres. Interpolating between such a pair passes through
// zero, so one of them must be flipped before rasterization.
func AreQuaternionsOpposite(a, b [4]float32) bool {
	dot := a[0]*b[0] + a[1]*b[1] + a[2]*b[2] + a[3]*b[3]
	return dot < 0
}

// AddTriangle appends a software-transformed triangle to the vertex
// batch. The second and third vertices have their normal quaternion
// flipped when it opposes the first vertex's, keeping interpolation away
// from the zero quaternion.
func (r *Rasterizer) AddTriangle(v0, v1, v2 HWVertex) {
	if AreQuaternionsOpposite(v0.NormQuat, v1.NormQuat) {
		for i := range v1.NormQuat {
			v1.NormQuat[i] = -v1.NormQuat[i]
		}
	}
	if AreQuaternionsOpposite(v0.NormQuat, v2.NormQuat) {
		for i := range v2.NormQuat {
			v2.NormQuat[i] = -v2.NormQuat[i]
		}
	}
	r.batch = append(r.batch, v0, v1, v2)
}

// DrawTriangles flushes the accumulated vertex batch to the host.
func (r *Rasterizer) DrawTriangles() {
	if len(r.batch) == 0 {
		return
	}
	r.Draw(false, false)
}

// vertexAnalysis is the outcome of scanning a draw's vertex inputs.
type vertexAnalysis struct {
	// the inclusive vertex range the draw touches
	MinVertex uint32
	MaxVertex uint32

	// indices rebased so that MinVertex becomes zero. empty for
	// non-indexed draws
	Indices []uint16
}

// VertexCount returns the number of vertices that must be assembled.
func (a *vertexAnalysis) VertexCount() uint32 {
	return a.MaxVertex - a.MinVertex + 1
}

// AnalyzeVertexArray determines the vertex range of the next draw. For
// indexed draws the index array is flushed and scanned; the indices are
// returned rebased against the smallest one. Returns false when the
// configuration cannot be resolved against guest memory.
func (r *Rasterizer) AnalyzeVertexArray(indexed bool) (vertexAnalysis, bool) {
	regs := &r.state.Regs
	count := regs.NumVertices()
	if count == 0 {
		return vertexAnalysis{}, false
	}

	if !indexed {
		offset := regs.VertexOffset()
		return vertexAnalysis{
			MinVertex: offset,
			MaxVertex: offset + count - 1,
		}, true
	}

	attribs := regs.Attributes()
	offset, format16 := regs.IndexArray()
	addr := attribs.BaseAddr + memorymap.PAddr(offset)

	indexSize := uint32(1)
	if format16 {
		indexSize = 2
	}
	r.surfaces.FlushRegion(addr, count*indexSize)

	ref, ok := r.mem.GetPhysicalRef(addr)
	if !ok || ref.Size() < count*indexSize {
		logger.Logf(logger.Allow, "rasterizer", "index array at %#08x outside guest memory", addr)
		return vertexAnalysis{}, false
	}
	raw := ref.Ptr()

	analysis := vertexAnalysis{
		MinVertex: ^uint32(0),
		Indices:   make([]uint16, count),
	}
	for i := uint32(0); i < count; i++ {
		var idx uint16
		if format16 {
			idx = binary.LittleEndian.Uint16(raw[i*2:])
		} else {
			idx = uint16(raw[i])
		}
		analysis.Indices[i] = idx
		if uint32(idx) < analysis.MinVertex {
			analysis.MinVertex = uint32(idx)
		}
		if uint32(idx) > analysis.MaxVertex {
			analysis.MaxVertex = uint32(idx)
		}
	}
	for i := range analysis.Indices {
		analysis.Indices[i] -= uint16(analysis.MinVertex)
	}

	return analysis, true
}

// attribSource describes where one loaded attribute's raw values live in
// guest memory.
type attribSource struct {
	Attribute  int
	Addr       memorymap.PAddr
	Stride     uint32
	Size       int
	Format     pica.AttribFormat
	Components int
}

func hostAttribType(f pica.AttribFormat) host.AttribType {
	switch f {
	case pica.AttribByte:
		return host.AttribByte
	case pica.AttribUByte:
		return host.AttribUByte
	case pica.AttribShort:
		return host.AttribShort
	}
	return host.AttribFloat
}

// SetupVertexArray assembles the draw's vertex range into the streaming
// vertex buffer and binds the matching layout. Loaded attributes keep
// their guest storage types; attributes without a loader take their
// fixed default value, appended once per vertex as floats. Returns false
// when a loader region falls outside guest memory.
func (r *Rasterizer) SetupVertexArray(analysis *vertexAnalysis) bool {
	regs := &r.state.Regs
	attribs := regs.Attributes()
	inputMap := regs.VSInputRegMap()
	count := analysis.VertexCount()

	var sources []attribSource
	loaded := [pica.NumVertexAttributes]bool{}

	for l := 0; l < pica.NumAttributeLoaders; l++ {
		loader := &attribs.Loaders[l]
		if loader.NumElements == 0 || loader.Stride == 0 {
			continue
		}

		elemOffset := uint32(0)
		for e := 0; e < loader.NumElements; e++ {
			el := loader.Elements[e]
			if el.Attribute < 0 {
				elemOffset += uint32(el.Padding)
				continue
			}
			sources = append(sources, attribSource{
				Attribute:  el.Attribute,
				Addr:       attribs.BaseAddr + memorymap.PAddr(loader.Offset+elemOffset),
				Stride:     loader.Stride,
				Size:       attribs.ElementSize(el.Attribute),
				Format:     attribs.Format[el.Attribute],
				Components: attribs.Components[el.Attribute],
			})
			loaded[el.Attribute] = true
			elemOffset += uint32(attribs.ElementSize(el.Attribute))
		}

		// flush the loader's guest range so CPU writes since the last
		// draw are visible
		regionStart := attribs.BaseAddr + memorymap.PAddr(loader.Offset) +
			memorymap.PAddr(analysis.MinVertex*loader.Stride)
		r.surfaces.FlushRegion(regionStart, count*loader.Stride)
	}

	// assembled layout: loaded attributes first, in raw guest types,
	// then the default attributes as float vectors
	var layout []host.VertexAttrib
	stride := 0
	for _, src := range sources {
		layout = append(layout, host.VertexAttrib{
			Location:   inputMap[src.Attribute],
			Components: src.Components,
			Type:       hostAttribType(src.Format),
			Offset:     stride,
		})
		stride += src.Size
	}
	// pad to a four byte boundary before any float defaults
	stride = (stride + 3) &^ 3

	defaultStart := stride
	var defaults []int
	for a := 0; a < attribs.NumAttribs; a++ {
		if loaded[a] {
			continue
		}
		defaults = append(defaults, a)
		layout = append(layout, host.VertexAttrib{
			Location:   inputMap[a],
			Components: 4,
			Type:       host.AttribFloat,
			Offset:     stride,
		})
		stride += 16
	}

	if stride == 0 {
		return false
	}

	// resolve every source's backing bytes up front
	backing := make([][]byte, len(sources))
	for i, src := range sources {
		base := src.Addr + memorymap.PAddr(analysis.MinVertex*src.Stride)
		ref, ok := r.mem.GetPhysicalRef(base)
		if !ok || ref.Size() < (count-1)*src.Stride+uint32(src.Size) {
			logger.Logf(logger.Allow, "rasterizer", "vertex loader at %#08x outside guest memory", base)
			return false
		}
		backing[i] = ref.Ptr()
	}

	buf := make([]byte, int(count)*stride)
	for v := uint32(0); v < count; v++ {
		dst := buf[int(v)*stride:]
		off := 0
		for i, src := range sources {
			copy(dst[off:off+src.Size], backing[i][v*src.Stride:])
			off += src.Size
		}
		off = defaultStart
		for _, a := range defaults {
			val := r.state.DefaultAttributes[a]
			for c := 0; c < 4; c++ {
				binary.LittleEndian.PutUint32(dst[off+c*4:], math.Float32bits(val[c]))
			}
			off += 16
		}
	}

	first := r.backend.StreamVertices(buf, stride)

	// bake the stream position into the attribute offsets so rebased
	// 16-bit indices address the assembled range directly
	for i := range layout {
		layout[i].Offset += first * stride
	}
	r.backend.SetVertexLayout(stride, layout)

	return true
}
