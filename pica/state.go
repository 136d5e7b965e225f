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
	"github.com/tangelo-emu/tangelo/logger"
)

// MaxShaderProgramWords is the size of the shader unit code memory in
// 32-bit words.
const MaxShaderProgramWords = 4096

// MaxSwizzleDataWords is the size of the shader unit swizzle memory in
// 32-bit words.
const MaxSwizzleDataWords = 4096

// LightingLUTSize is the number of entries in one lighting lookup table.
const LightingLUTSize = 256

// FogLUTSize is the number of entries in the fog lookup table.
const FogLUTSize = 128

// ProcTexLUTSize is the number of entries in the procedural texture
// noise and color mapping tables.
const ProcTexLUTSize = 128

// ProcTexColorMapSize is the number of entries in the procedural texture
// color table.
const ProcTexColorMapSize = 256

// LUTEntry is one entry of a hardware lookup table. The value and the
// difference to the next entry are packed into a single write.
type LUTEntry struct {
	Value uint32
	Delta uint32
}

// ToFloat returns the entry value as a fraction in the range 0 to 1.
func (e LUTEntry) ToFloat() float32 {
	return float32(e.Value) / 4095.0
}

// DeltaToFloat returns the signed difference to the next entry as a
// fraction.
func (e LUTEntry) DeltaToFloat() float32 {
	return float32(int32(e.Delta)<<19>>19) / 4095.0
}

func decodeLUTEntry(raw uint32) LUTEntry {
	return LUTEntry{
		Value: bits(raw, 0, 12),
		Delta: bits(raw, 12, 13),
	}
}

// ShaderSetup is the uploadable state of one shader unit: its code
// memory, swizzle memory and float uniforms.
type ShaderSetup struct {
	ProgramCode [MaxShaderProgramWords]uint32
	SwizzleData [MaxSwizzleDataWords]uint32

	// write cursors for the indexed upload registers
	programOffset uint32
	swizzleOffset uint32

	// FloatUniforms are the 96 float vector uniforms, stored as decoded
	// host floats.
	FloatUniforms [96][4]float32

	// float uniform upload state
	uniformIndex    uint32
	uniformMode32   bool
	uniformBuffer   [4]uint32
	uniformBuffered int
}

// State is the complete guest GPU state observed by the rasterizer. The
// raw register file is the single source of truth for configuration; the
// auxiliary memories collect the side effects of writes to the indexed
// upload registers.
type State struct {
	Regs Regs

	VS ShaderSetup
	GS ShaderSetup

	// LightingLUTs holds the 24 lighting lookup tables.
	LightingLUTs [NumLightingSamplers][LightingLUTSize]LUTEntry

	// LightingLUTsDirty is set when any lighting LUT entry changed since
	// the rasterizer last consumed them.
	LightingLUTsDirty bool

	FogLUT      [FogLUTSize]LUTEntry
	FogLUTDirty bool

	ProcTexNoiseLUT   [ProcTexLUTSize]LUTEntry
	ProcTexColorMap   [ProcTexLUTSize]LUTEntry
	ProcTexAlphaMap   [ProcTexLUTSize]LUTEntry
	ProcTexColorTable [ProcTexColorMapSize]uint32
	ProcTexDirty      bool

	// DefaultAttributes are the fixed vertex attribute values, decoded
	// from the three-word float24 upload format.
	DefaultAttributes [NumVertexAttributes][4]float32

	// fixed attribute upload state
	fixedAttribIndex    uint32
	fixedAttribBuffer   [3]uint32
	fixedAttribBuffered int

	// ImmediateAttributes collects vertices submitted through the fixed
	// attribute register with the immediate mode index.
	ImmediateAttributes [][4]float32
}

// immediateModeIndex submits a vertex instead of setting a default
// attribute.
const immediateModeIndex = 0xf

// NewState is the preferred method of initialisation for the State type.
func NewState() *State {
	return &State{}
}

// WriteRegister writes a value to the register file and applies any side
// effects of the write. Writes to indexed upload registers update the
// auxiliary memories rather than the register file itself.
func (s *State) WriteRegister(id RegID, value uint32, mask uint32) {
	if id >= NumRegisters {
		logger.Logf(logger.Allow, "pica", "write to out of range register %#03x", uint32(id))
		return
	}

	if mask != 0xffffffff {
		old := s.Regs.Raw[id]
		value = (old &^ mask) | (value & mask)
	}

	s.Regs.Raw[id] = value

	switch {
	case id >= RegLightingLUTData0 && id <= RegLightingLUTData7:
		s.writeLightingLUT(value)
	case id >= RegFogLUTData0 && id <= RegFogLUTData7:
		s.writeFogLUT(value)
	case id >= RegProcTexLUTData0 && id <= RegProcTexLUTData7:
		s.writeProcTexLUT(value)
	case id == RegFixedAttribData0 || id == RegFixedAttribData0+1 || id == RegFixedAttribData2:
		s.writeFixedAttrib(value)
	case id == RegFixedAttribIndex:
		s.fixedAttribIndex = bits(value, 0, 4)
		s.fixedAttribBuffered = 0
	case id >= RegVSCodeData0 && id <= RegVSCodeData7:
		s.VS.writeProgram(value)
	case id == RegVSCodeIndex:
		s.VS.programOffset = bits(value, 0, 12)
	case id >= RegVSSwizzleData0 && id <= RegVSSwizzleData7:
		s.VS.writeSwizzle(value)
	case id == RegVSSwizzleIndex:
		s.VS.swizzleOffset = bits(value, 0, 12)
	case id >= RegVSFloatUniformData0 && id <= RegVSFloatUniformData7:
		s.VS.writeFloatUniform(value)
	case id == RegVSFloatUniformIndex:
		s.VS.setFloatUniformIndex(value)
	case id >= RegGSCodeData0 && id <= RegGSCodeData7:
		s.GS.writeProgram(value)
	case id == RegGSCodeIndex:
		s.GS.programOffset = bits(value, 0, 12)
	case id >= RegGSSwizzleData0 && id <= RegGSSwizzleData7:
		s.GS.writeSwizzle(value)
	case id == RegGSSwizzleIndex:
		s.GS.swizzleOffset = bits(value, 0, 12)
	case id >= RegGSFloatUniformData0 && id <= RegGSFloatUniformData7:
		s.GS.writeFloatUniform(value)
	case id == RegGSFloatUniformIndex:
		s.GS.setFloatUniformIndex(value)
	}
}

func (s *State) writeLightingLUT(value uint32) {
	lut, index := s.Regs.LightingLUTWriteIndex()
	if lut < NumLightingSamplers {
		s.LightingLUTs[lut][index] = decodeLUTEntry(value)
		s.LightingLUTsDirty = true
	}

	// the write index auto-increments
	raw := s.Regs.Raw[RegLightingLUTIndex]
	s.Regs.Raw[RegLightingLUTIndex] = (raw &^ 0xff) | ((raw + 1) & 0xff)
}

func (s *State) writeFogLUT(value uint32) {
	index := bits(s.Regs.Raw[RegFogLUTOffset], 0, 7)
	s.FogLUT[index] = decodeLUTEntry(value)
	s.FogLUTDirty = true
	s.Regs.Raw[RegFogLUTOffset] = (index + 1) & 0x7f
}

func (s *State) writeProcTexLUT(value uint32) {
	raw := s.Regs.Raw[RegProcTexLUTConfig]
	table := bits(raw, 8, 4)
	index := bits(raw, 0, 8)

	switch table {
	case 0:
		s.ProcTexNoiseLUT[index&0x7f] = decodeLUTEntry(value)
	case 2:
		s.ProcTexColorMap[index&0x7f] = decodeLUTEntry(value)
	case 3:
		s.ProcTexAlphaMap[index&0x7f] = decodeLUTEntry(value)
	case 4:
		s.ProcTexColorTable[index] = value
	default:
		logger.Logf(logger.Allow, "pica", "write to unsupported proctex table %d", table)
	}
	s.ProcTexDirty = true

	s.Regs.Raw[RegProcTexLUTConfig] = (raw &^ 0xff) | ((index + 1) & 0xff)
}

// writeFixedAttrib accumulates the three-word upload of one fixed vertex
// attribute. The packed words hold four float24 components.
func (s *State) writeFixedAttrib(value uint32) {
	s.fixedAttribBuffer[s.fixedAttribBuffered] = value
	s.fixedAttribBuffered++
	if s.fixedAttribBuffered < 3 {
		return
	}
	s.fixedAttribBuffered = 0

	b := s.fixedAttribBuffer
	attr := [4]float32{
		Float24FromRaw(b[2] & 0xffffff),
		Float24FromRaw(((b[1] & 0xffff) << 8) | (b[2] >> 24)),
		Float24FromRaw(((b[0] & 0xff) << 16) | (b[1] >> 16)),
		Float24FromRaw(b[0] >> 8),
	}

	if s.fixedAttribIndex == immediateModeIndex {
		s.ImmediateAttributes = append(s.ImmediateAttributes, attr)
		return
	}

	s.DefaultAttributes[s.fixedAttribIndex] = attr
	s.fixedAttribIndex++
}

// ClearImmediateAttributes discards any buffered immediate mode vertices.
func (s *State) ClearImmediateAttributes() {
	s.ImmediateAttributes = s.ImmediateAttributes[:0]
}

func (sh *ShaderSetup) writeProgram(value uint32) {
	if sh.programOffset >= MaxShaderProgramWords {
		logger.Log(logger.Allow, "pica", "shader program upload beyond code memory")
		return
	}
	sh.ProgramCode[sh.programOffset] = value
	sh.programOffset++
}

func (sh *ShaderSetup) writeSwizzle(value uint32) {
	if sh.swizzleOffset >= MaxSwizzleDataWords {
		logger.Log(logger.Allow, "pica", "swizzle upload beyond swizzle memory")
		return
	}
	sh.SwizzleData[sh.swizzleOffset] = value
	sh.swizzleOffset++
}

func (sh *ShaderSetup) setFloatUniformIndex(value uint32) {
	sh.uniformIndex = bits(value, 0, 7)
	sh.uniformMode32 = bit(value, 31)
	sh.uniformBuffered = 0
}

// writeFloatUniform accumulates one float uniform upload. In float32 mode
// a vector takes four words; in float24 mode it takes three.
func (sh *ShaderSetup) writeFloatUniform(value uint32) {
	sh.uniformBuffer[sh.uniformBuffered] = value
	sh.uniformBuffered++

	need := 3
	if sh.uniformMode32 {
		need = 4
	}
	if sh.uniformBuffered < need {
		return
	}
	sh.uniformBuffered = 0

	if sh.uniformIndex >= 96 {
		logger.Log(logger.Allow, "pica", "float uniform upload beyond uniform space")
		return
	}

	b := sh.uniformBuffer
	var u [4]float32
	if sh.uniformMode32 {
		u = [4]float32{
			float32FromBits(b[3]),
			float32FromBits(b[2]),
			float32FromBits(b[1]),
			float32FromBits(b[0]),
		}
	} else {
		u = [4]float32{
			Float24FromRaw(b[2] & 0xffffff),
			Float24FromRaw(((b[1] & 0xffff) << 8) | (b[2] >> 24)),
			Float24FromRaw(((b[0] & 0xff) << 16) | (b[1] >> 16)),
			Float24FromRaw(b[0] >> 8),
		}
	}

	sh.FloatUniforms[sh.uniformIndex] = u
	sh.uniformIndex++
}
