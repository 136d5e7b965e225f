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
)

// lightUniforms is the per-light slice of the uniform block. It mirrors
// the LightSrc struct of shadergen.UniformBlock.
type lightUniforms struct {
	Specular0      [3]float32
	Specular1      [3]float32
	Diffuse        [3]float32
	Ambient        [3]float32
	Position       [3]float32
	SpotDirection  [3]float32
	DistAttenBias  float32
	DistAttenScale float32
}

// uniformBlock is the CPU shadow of the shader_data uniform block shared
// by every generated shader. The encode method lays the fields out under
// the std140 rules, matching shadergen.UniformBlock member for member.
type uniformBlock struct {
	AlphaTestRef  int32
	DepthScale    float32
	DepthOffset   float32
	Scissor       [4]int32
	FogColor      [3]float32
	ProcTexBias   float32
	ProcTexNoiseF [2]float32
	ProcTexNoiseA [2]float32
	ProcTexNoiseP [2]float32
	GlobalAmbient [3]float32
	Lights        [8]lightUniforms
	ConstColor    [6][4]float32
	BufferColor   [4]float32
	ClipCoef      [4]float32
}

// std140 offsets. vec3 members align to 16 bytes; a trailing float packs
// into the vec3's fourth slot. each LightSrc element rounds up to a
// multiple of 16.
const (
	offAlphaTestRef  = 0
	offDepthScale    = 4
	offDepthOffset   = 8
	offScissor       = 12
	offFogColor      = 32
	offProcTexBias   = 44
	offProcTexNoiseF = 48
	offProcTexNoiseA = 56
	offProcTexNoiseP = 64
	offGlobalAmbient = 80
	offLights        = 96
	lightStride      = 112
	offConstColor    = offLights + 8*lightStride
	offBufferColor   = offConstColor + 6*16
	offClipCoef      = offBufferColor + 16
	uniformBlockSize = offClipCoef + 16
)

func putF32(b []byte, off int, v float32) {
	binary.LittleEndian.PutUint32(b[off:], math.Float32bits(v))
}

func putI32(b []byte, off int, v int32) {
	binary.LittleEndian.PutUint32(b[off:], uint32(v))
}

func putVec(b []byte, off int, v []float32) {
	for i, f := range v {
		putF32(b, off+i*4, f)
	}
}

// encode serializes the shadow into the byte layout the host uniform
// buffer expects.
func (u *uniformBlock) encode() []byte {
	b := make([]byte, uniformBlockSize)

	putI32(b, offAlphaTestRef, u.AlphaTestRef)
	putF32(b, offDepthScale, u.DepthScale)
	putF32(b, offDepthOffset, u.DepthOffset)
	for i, v := range u.Scissor {
		putI32(b, offScissor+i*4, v)
	}
	putVec(b, offFogColor, u.FogColor[:])
	putF32(b, offProcTexBias, u.ProcTexBias)
	putVec(b, offProcTexNoiseF, u.ProcTexNoiseF[:])
	putVec(b, offProcTexNoiseA, u.ProcTexNoiseA[:])
	putVec(b, offProcTexNoiseP, u.ProcTexNoiseP[:])
	putVec(b, offGlobalAmbient, u.GlobalAmbient[:])

	for i := range u.Lights {
		l := &u.Lights[i]
		base := offLights + i*lightStride
		putVec(b, base+0, l.Specular0[:])
		putVec(b, base+16, l.Specular1[:])
		putVec(b, base+32, l.Diffuse[:])
		putVec(b, base+48, l.Ambient[:])
		putVec(b, base+64, l.Position[:])
		putVec(b, base+80, l.SpotDirection[:])
		putF32(b, base+92, l.DistAttenBias)
		putF32(b, base+96, l.DistAttenScale)
	}

	for i := range u.ConstColor {
		putVec(b, offConstColor+i*16, u.ConstColor[i][:])
	}
	putVec(b, offBufferColor, u.BufferColor[:])
	putVec(b, offClipCoef, u.ClipCoef[:])

	return b
}

// colorToFloat converts an 8-bit color channel to the 0..1 range.
func colorToFloat(c uint8) float32 {
	return float32(c) / 255.0
}

func color3ToFloat(c [3]uint8) [3]float32 {
	return [3]float32{colorToFloat(c[0]), colorToFloat(c[1]), colorToFloat(c[2])}
}

func color4ToFloat(c [4]uint8) [4]float32 {
	return [4]float32{colorToFloat(c[0]), colorToFloat(c[1]), colorToFloat(c[2]), colorToFloat(c[3])}
}
