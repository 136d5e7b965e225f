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

// TextureFormat enumerates the guest texture pixel formats.
type TextureFormat uint32

const (
	TexRGBA8 TextureFormat = iota
	TexRGB8
	TexRGB5A1
	TexRGB565
	TexRGBA4
	TexIA8
	TexRG8
	TexI8
	TexA8
	TexIA4
	TexI4
	TexA4
	TexETC1
	TexETC1A4
)

// TexFilter selects texture magnification/minification filtering.
type TexFilter uint32

const (
	TexFilterNearest TexFilter = iota
	TexFilterLinear
)

// TexWrap selects coordinate wrapping behaviour.
type TexWrap uint32

const (
	TexWrapClampToEdge TexWrap = iota
	TexWrapClampToBorder
	TexWrapRepeat
	TexWrapMirroredRepeat

	// values above 3 are not documented. hardware testing shows they
	// behave like the two repeat modes
	texWrapUndocumented4
	texWrapUndocumented5
	texWrapUndocumented6
	texWrapUndocumented7
)

// Normalise folds the undocumented wrap values onto their hardware-tested
// equivalents. The fallback is logged once by the caller.
func (w TexWrap) Normalise() (TexWrap, bool) {
	switch w {
	case texWrapUndocumented4:
		return TexWrapClampToEdge, false
	case texWrapUndocumented5:
		return TexWrapClampToBorder, false
	case texWrapUndocumented6:
		return TexWrapRepeat, false
	case texWrapUndocumented7:
		return TexWrapMirroredRepeat, false
	}
	return w, true
}

// TextureConfig is the decoded configuration of one texture unit.
type TextureConfig struct {
	Enabled     bool
	Addr        memorymap.PAddr
	Width       uint32
	Height      uint32
	Format      TextureFormat
	MagFilter   TexFilter
	MinFilter   TexFilter
	MipFilter   TexFilter
	WrapS       TexWrap
	WrapT       TexWrap
	BorderColor [4]uint8
	LODBias     float32
	LODMin      uint32
	LODMax      uint32
}

// texture unit register layout. units 1 and 2 pack their format register
// directly after the address register; unit 0 keeps it apart
var textureRegBase = [3]RegID{RegTexture0BorderColor, RegTexture1BorderColor, RegTexture2BorderColor}
var textureFormatReg = [3]RegID{RegTexture0Format, RegTexture1Format, RegTexture2Format}

// NumTextureUnits is the number of texture units available to the fragment
// pipeline.
const NumTextureUnits = 3

// Texture returns the decoded configuration of texture unit 0, 1 or 2.
func (r *Regs) Texture(unit int) TextureConfig {
	base := textureRegBase[unit]
	main := r.Raw[RegTexturingMain]

	var enabled bool
	switch unit {
	case 0:
		enabled = bit(main, 0)
	case 1:
		enabled = bit(main, 1)
	case 2:
		enabled = bit(main, 2)
	}

	border := r.Raw[base]
	dim := r.Raw[base+1]
	param := r.Raw[base+2]
	lod := r.Raw[base+3]
	addr := r.Raw[base+4]

	return TextureConfig{
		Enabled:   enabled,
		Addr:      memorymap.PAddr(addr << 3),
		Height:    bits(dim, 0, 11),
		Width:     bits(dim, 16, 11),
		Format:    TextureFormat(bits(r.Raw[textureFormatReg[unit]], 0, 4)),
		MagFilter: TexFilter(bits(param, 1, 1)),
		MinFilter: TexFilter(bits(param, 2, 1)),
		MipFilter: TexFilter(bits(param, 24, 1)),
		WrapT:     TexWrap(bits(param, 8, 3)),
		WrapS:     TexWrap(bits(param, 12, 3)),
		BorderColor: [4]uint8{
			uint8(bits(border, 0, 8)),
			uint8(bits(border, 8, 8)),
			uint8(bits(border, 16, 8)),
			uint8(bits(border, 24, 8)),
		},
		LODBias: float32(int32(bits(lod, 0, 13))<<19>>19) / 256.0,
		LODMax:  bits(lod, 16, 4),
		LODMin:  bits(lod, 24, 4),
	}
}

// Texture2UsesCoord1 returns true when texture unit 2 samples with the
// second set of texture coordinates.
func (r *Regs) Texture2UsesCoord1() bool {
	return bit(r.Raw[RegTexturingMain], 13)
}

// TexEnvSource enumerates the inputs available to a texture environment
// stage.
type TexEnvSource uint32

const (
	SourcePrimaryColor           TexEnvSource = 0
	SourcePrimaryFragmentColor   TexEnvSource = 1
	SourceSecondaryFragmentColor TexEnvSource = 2
	SourceTexture0               TexEnvSource = 3
	SourceTexture1               TexEnvSource = 4
	SourceTexture2               TexEnvSource = 5
	SourceTexture3               TexEnvSource = 6
	SourcePreviousBuffer         TexEnvSource = 13
	SourceConstant               TexEnvSource = 14
	SourcePrevious               TexEnvSource = 15
)

// TexEnvOp enumerates the combine operations of a texture environment
// stage.
type TexEnvOp uint32

const (
	OpReplace TexEnvOp = iota
	OpModulate
	OpAdd
	OpAddSigned
	OpLerp
	OpSubtract
	OpDot3RGB
	OpDot3RGBA
	OpMultiplyThenAdd
	OpAddThenMultiply
)

// TexEnvStage is the decoded configuration of one texture environment
// stage.
type TexEnvStage struct {
	ColorSource   [3]TexEnvSource
	AlphaSource   [3]TexEnvSource
	ColorModifier [3]uint32
	AlphaModifier [3]uint32
	ColorOp       TexEnvOp
	AlphaOp       TexEnvOp
	Const         [4]uint8
	ColorScale    uint32
	AlphaScale    uint32
}

// NumTexEnvStages is the number of texture environment stages in the
// fragment pipeline.
const NumTexEnvStages = 6

var texEnvRegBase = [NumTexEnvStages]RegID{
	RegTexEnv0, RegTexEnv1, RegTexEnv2, RegTexEnv3, RegTexEnv4, RegTexEnv5,
}

// TexEnv returns the decoded configuration of a texture environment stage.
func (r *Regs) TexEnv(stage int) TexEnvStage {
	base := texEnvRegBase[stage]
	source := r.Raw[base]
	modifier := r.Raw[base+1]
	op := r.Raw[base+2]
	color := r.Raw[base+3]
	scale := r.Raw[base+4]

	return TexEnvStage{
		ColorSource: [3]TexEnvSource{
			TexEnvSource(bits(source, 0, 4)),
			TexEnvSource(bits(source, 4, 4)),
			TexEnvSource(bits(source, 8, 4)),
		},
		AlphaSource: [3]TexEnvSource{
			TexEnvSource(bits(source, 16, 4)),
			TexEnvSource(bits(source, 20, 4)),
			TexEnvSource(bits(source, 24, 4)),
		},
		ColorModifier: [3]uint32{
			bits(modifier, 0, 4),
			bits(modifier, 4, 4),
			bits(modifier, 8, 4),
		},
		AlphaModifier: [3]uint32{
			bits(modifier, 12, 3),
			bits(modifier, 16, 3),
			bits(modifier, 20, 3),
		},
		ColorOp: TexEnvOp(bits(op, 0, 4)),
		AlphaOp: TexEnvOp(bits(op, 16, 4)),
		Const: [4]uint8{
			uint8(bits(color, 0, 8)),
			uint8(bits(color, 8, 8)),
			uint8(bits(color, 16, 8)),
			uint8(bits(color, 24, 8)),
		},
		ColorScale: bits(scale, 0, 2),
		AlphaScale: bits(scale, 16, 2),
	}
}

// TexEnvUpdateBufferColor returns true when the given stage writes its
// color result to the combiner buffer for the next stage.
func (r *Regs) TexEnvUpdateBufferColor(stage int) bool {
	// stages 1 to 4 can update the buffer; the flag for stage i lives at
	// bit 8+i-1
	if stage < 1 || stage > 4 {
		return false
	}
	return bit(r.Raw[RegTexEnvUpdateBuffer], uint(8+stage-1))
}

// TexEnvUpdateBufferAlpha returns true when the given stage writes its
// alpha result to the combiner buffer for the next stage.
func (r *Regs) TexEnvUpdateBufferAlpha(stage int) bool {
	if stage < 1 || stage > 4 {
		return false
	}
	return bit(r.Raw[RegTexEnvUpdateBuffer], uint(12+stage-1))
}

// TexEnvBufferColor returns the initial combiner buffer color.
func (r *Regs) TexEnvBufferColor() [4]uint8 {
	v := r.Raw[RegTexEnvBufferColor]
	return [4]uint8{
		uint8(bits(v, 0, 8)),
		uint8(bits(v, 8, 8)),
		uint8(bits(v, 16, 8)),
		uint8(bits(v, 24, 8)),
	}
}

// ProcTexClamp enumerates the coordinate clamping modes of the
// procedural texture unit.
type ProcTexClamp uint32

const (
	ProcTexClampToZero ProcTexClamp = iota
	ProcTexClampToEdge
	ProcTexSymmetricalRepeat
	ProcTexMirroredRepeat
	ProcTexPulse
)

// ProcTexCombiner enumerates the coordinate combining functions of the
// procedural texture unit.
type ProcTexCombiner uint32

const (
	ProcTexCombinerU ProcTexCombiner = iota
	ProcTexCombinerU2
	ProcTexCombinerV
	ProcTexCombinerV2
	ProcTexCombinerAdd
	ProcTexCombinerAdd2
	ProcTexCombinerSqrt2
	ProcTexCombinerMin
	ProcTexCombinerMax
	ProcTexCombinerRMax
)

// ProcTexShift enumerates the odd/even row coordinate shifts.
type ProcTexShift uint32

const (
	ProcTexShiftNone ProcTexShift = iota
	ProcTexShiftOdd
	ProcTexShiftEven
)

// ProcTexFilter enumerates the color table filtering modes.
type ProcTexFilter uint32

const (
	ProcTexFilterNearest ProcTexFilter = iota
	ProcTexFilterLinear
	ProcTexFilterNearestMipmapNearest
	ProcTexFilterLinearMipmapNearest
	ProcTexFilterNearestMipmapLinear
	ProcTexFilterLinearMipmapLinear
)

// ProcTexConfig is the decoded configuration of the procedural texture
// unit.
type ProcTexConfig struct {
	Enabled        bool
	ClampU         ProcTexClamp
	ClampV         ProcTexClamp
	ColorCombiner  ProcTexCombiner
	AlphaCombiner  ProcTexCombiner
	SeparateAlpha  bool
	NoiseEnabled   bool
	ShiftU         ProcTexShift
	ShiftV         ProcTexShift
	Filter         ProcTexFilter
	Width          uint32
	Bias           float32
	NoiseAmplitude [2]float32
	NoisePhase     [2]float32
	NoiseFrequency [2]float32
}

// ProcTex returns the decoded procedural texture configuration. The
// procedural texture replaces texture unit 3 when enabled.
func (r *Regs) ProcTex() ProcTexConfig {
	cfg := r.Raw[RegProcTexConfig]
	lut := r.Raw[RegProcTexLUT]
	noiseU := r.Raw[RegProcTexNoiseU]
	noiseV := r.Raw[RegProcTexNoiseV]
	freq := r.Raw[RegProcTexNoiseFreq]

	// the lod bias is split across the config and lut registers
	biasRaw := bits(cfg, 20, 8) | (bits(lut, 19, 8) << 8)

	return ProcTexConfig{
		Enabled:       bit(r.Raw[RegTexturingMain], 10),
		ClampU:        ProcTexClamp(bits(cfg, 0, 3)),
		ClampV:        ProcTexClamp(bits(cfg, 3, 3)),
		ColorCombiner: ProcTexCombiner(bits(cfg, 6, 4)),
		AlphaCombiner: ProcTexCombiner(bits(cfg, 10, 4)),
		SeparateAlpha: bit(cfg, 14),
		NoiseEnabled:  bit(cfg, 15),
		ShiftU:        ProcTexShift(bits(cfg, 16, 2)),
		ShiftV:        ProcTexShift(bits(cfg, 18, 2)),
		Filter:        ProcTexFilter(bits(lut, 0, 3)),
		Width:         bits(lut, 11, 8),
		Bias:          Float16FromRaw(biasRaw),
		NoiseAmplitude: [2]float32{
			Float16FromRaw(bits(noiseU, 0, 16)),
			Float16FromRaw(bits(noiseV, 0, 16)),
		},
		NoisePhase: [2]float32{
			Float16FromRaw(bits(noiseU, 16, 16)),
			Float16FromRaw(bits(noiseV, 16, 16)),
		},
		NoiseFrequency: [2]float32{
			Float16FromRaw(bits(freq, 0, 16)),
			Float16FromRaw(bits(freq, 16, 16)),
		},
	}
}

// FogMode selects the fog behaviour of the fragment pipeline.
type FogMode uint32

const (
	FogDisabled FogMode = 0
	FogEnabled  FogMode = 5
)

// FogMode returns the configured fog mode.
func (r *Regs) FogMode() FogMode {
	return FogMode(bits(r.Raw[RegTexEnvUpdateBuffer], 0, 3))
}

// FogFlip returns true when the fog factor is applied with a flipped depth.
func (r *Regs) FogFlip() bool {
	return bit(r.Raw[RegTexEnvUpdateBuffer], 16)
}

// FogColor returns the fog color as 8-bit components.
func (r *Regs) FogColor() [3]uint8 {
	v := r.Raw[RegFogColor]
	return [3]uint8{
		uint8(bits(v, 0, 8)),
		uint8(bits(v, 8, 8)),
		uint8(bits(v, 16, 8)),
	}
}
