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

// NumRegisters is the size of the guest GPU register file in 32-bit words.
const NumRegisters = 0x300

// RegID identifies a register by its word offset in the register file.
type RegID uint32

// Register offsets. Grouped by the functional block they belong to. Only
// offsets the GPU core reads are named; the register file itself covers the
// full range.
const (
	// rasterizer
	RegCullMode           RegID = 0x040
	RegViewportSizeX      RegID = 0x041
	RegViewportSizeY      RegID = 0x043
	RegDepthmapScale      RegID = 0x04d
	RegDepthmapOffset     RegID = 0x04e
	RegVSOutputSemantics0 RegID = 0x050
	RegScissorMode        RegID = 0x065
	RegScissorMin         RegID = 0x066
	RegScissorMax         RegID = 0x067
	RegViewportCorner     RegID = 0x068
	RegDepthmapEnable     RegID = 0x06d

	// texturing
	RegTexturingMain       RegID = 0x080
	RegTexture0BorderColor RegID = 0x081
	RegTexture0Dim         RegID = 0x082
	RegTexture0Param       RegID = 0x083
	RegTexture0LOD         RegID = 0x084
	RegTexture0Addr        RegID = 0x085
	RegTexture0Format      RegID = 0x08e
	RegTexture1BorderColor RegID = 0x091
	RegTexture1Dim         RegID = 0x092
	RegTexture1Param       RegID = 0x093
	RegTexture1LOD         RegID = 0x094
	RegTexture1Addr        RegID = 0x095
	RegTexture1Format      RegID = 0x096
	RegTexture2BorderColor RegID = 0x099
	RegTexture2Dim         RegID = 0x09a
	RegTexture2Param       RegID = 0x09b
	RegTexture2LOD         RegID = 0x09c
	RegTexture2Addr        RegID = 0x09d
	RegTexture2Format      RegID = 0x09e

	// procedural texture
	RegProcTexConfig    RegID = 0x0a8
	RegProcTexNoiseU    RegID = 0x0a9
	RegProcTexNoiseV    RegID = 0x0aa
	RegProcTexNoiseFreq RegID = 0x0ab
	RegProcTexLUT       RegID = 0x0ac
	RegProcTexLUTOffset RegID = 0x0ad
	RegProcTexLUTConfig RegID = 0x0af
	RegProcTexLUTData0  RegID = 0x0b0
	RegProcTexLUTData7  RegID = 0x0b7

	// texture environment
	RegTexEnv0            RegID = 0x0c0
	RegTexEnv1            RegID = 0x0c8
	RegTexEnv2            RegID = 0x0d0
	RegTexEnv3            RegID = 0x0d8
	RegTexEnvUpdateBuffer RegID = 0x0e0
	RegFogColor           RegID = 0x0e1
	RegFogLUTOffset       RegID = 0x0e6
	RegFogLUTData0        RegID = 0x0e8
	RegFogLUTData7        RegID = 0x0ef
	RegTexEnv4            RegID = 0x0f0
	RegTexEnv5            RegID = 0x0f8
	RegTexEnvBufferColor  RegID = 0x0fd

	// output merger
	RegColorOperation RegID = 0x100
	RegBlendConfig    RegID = 0x101
	RegLogicOp        RegID = 0x102
	RegBlendColor     RegID = 0x103
	RegAlphaTest      RegID = 0x104
	RegStencilTest    RegID = 0x105
	RegStencilOp      RegID = 0x106
	RegDepthColorMask RegID = 0x107

	// framebuffer
	RegDepthFormat     RegID = 0x116
	RegColorFormat     RegID = 0x117
	RegDepthBufferAddr RegID = 0x11c
	RegColorBufferAddr RegID = 0x11d
	RegFramebufferDim  RegID = 0x11e

	// fragment lighting. lights are 0x10 words apart starting at 0x140
	RegLight0Base          RegID = 0x140
	RegLightingAmbient     RegID = 0x1c0
	RegLightingNumLights   RegID = 0x1c2
	RegLightingConfig0     RegID = 0x1c3
	RegLightingConfig1     RegID = 0x1c4
	RegLightingLUTIndex    RegID = 0x1c5
	RegLightingDisable     RegID = 0x1c6
	RegLightingLUTData0    RegID = 0x1c8
	RegLightingLUTData7    RegID = 0x1cf
	RegLightingLUTAbs      RegID = 0x1d0
	RegLightingLUTSelect   RegID = 0x1d1
	RegLightingLUTScale    RegID = 0x1d2
	RegLightingPermutation RegID = 0x1d9

	// vertex pipeline
	RegAttribBase         RegID = 0x200
	RegAttribFormatLow    RegID = 0x201
	RegAttribFormatHigh   RegID = 0x202
	RegLoader0Offset      RegID = 0x203
	RegIndexArray         RegID = 0x227
	RegNumVertices        RegID = 0x228
	RegUseGeometryShader  RegID = 0x229
	RegVertexOffset       RegID = 0x22a
	RegTriggerDraw        RegID = 0x22e
	RegTriggerDrawIndexed RegID = 0x22f
	RegFixedAttribIndex   RegID = 0x232
	RegFixedAttribData0   RegID = 0x233
	RegFixedAttribData2   RegID = 0x235
	RegPrimitiveConfig    RegID = 0x25e
	RegRestartPrimitive   RegID = 0x25f

	// geometry shader unit
	RegGSBoolUniforms      RegID = 0x280
	RegGSIntUniforms0      RegID = 0x281
	RegGSFloatUniformIndex RegID = 0x290
	RegGSFloatUniformData0 RegID = 0x291
	RegGSFloatUniformData7 RegID = 0x298
	RegGSMainOffset        RegID = 0x28a
	RegGSInputBufferConfig RegID = 0x289
	RegGSCodeIndex         RegID = 0x29b
	RegGSCodeData0         RegID = 0x29c
	RegGSCodeData7         RegID = 0x2a3
	RegGSSwizzleIndex      RegID = 0x2a5
	RegGSSwizzleData0      RegID = 0x2a6
	RegGSSwizzleData7      RegID = 0x2ad

	// vertex shader unit
	RegVSBoolUniforms      RegID = 0x2b0
	RegVSIntUniforms0      RegID = 0x2b1
	RegVSFloatUniformIndex RegID = 0x2c0
	RegVSFloatUniformData0 RegID = 0x2c1
	RegVSFloatUniformData7 RegID = 0x2c8
	RegVSInputBufferConfig RegID = 0x2b9
	RegVSMainOffset        RegID = 0x2ba
	RegVSInputRegMapLow    RegID = 0x2bb
	RegVSInputRegMapHigh   RegID = 0x2bc
	RegVSOutputMask        RegID = 0x2bd
	RegVSCodeIndex         RegID = 0x2cb
	RegVSCodeData0         RegID = 0x2cc
	RegVSCodeData7         RegID = 0x2d3
	RegVSSwizzleIndex      RegID = 0x2d5
	RegVSSwizzleData0      RegID = 0x2d6
	RegVSSwizzleData7      RegID = 0x2dd
)

// Regs is the guest GPU register file. The raw array is the single source
// of truth; the typed accessors in this package decode it on demand.
type Regs struct {
	Raw [NumRegisters]uint32
}

// Read returns the raw word of a register.
func (r *Regs) Read(id RegID) uint32 {
	return r.Raw[id]
}

// Write stores the raw word of a register. Side effects (LUT memories,
// fixed attribute collection) are handled by State.WriteRegister, not here.
func (r *Regs) Write(id RegID, value uint32) {
	r.Raw[id] = value
}

// bits extracts n bits starting at bit lo.
func bits(v uint32, lo, n uint) uint32 {
	return (v >> lo) & (1<<n - 1)
}

// bit extracts a single bit as a bool.
func bit(v uint32, n uint) bool {
	return v>>n&1 == 1
}
