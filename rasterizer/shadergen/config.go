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

package shadergen

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"

	"github.com/tangelo-emu/tangelo/pica"
)

// TexEnvConfig is the fingerprint of one texture environment stage. The
// constant color is deliberately absent: it rides in the uniform block
// and never changes the generated source.
type TexEnvConfig struct {
	ColorSource   [3]uint8
	AlphaSource   [3]uint8
	ColorModifier [3]uint8
	AlphaModifier [3]uint8
	ColorOp       uint8
	AlphaOp       uint8
	ColorScale    uint8
	AlphaScale    uint8
	UpdateColor   bool
	UpdateAlpha   bool
}

// isPassThrough reports whether the stage leaves the previous stage's
// output untouched.
func (t *TexEnvConfig) isPassThrough() bool {
	return t.ColorOp == uint8(pica.OpReplace) && t.AlphaOp == uint8(pica.OpReplace) &&
		t.ColorSource[0] == uint8(pica.SourcePrevious) &&
		t.AlphaSource[0] == uint8(pica.SourcePrevious) &&
		t.ColorModifier[0] == 0 && t.AlphaModifier[0] == 0 &&
		t.ColorScale == 1 && t.AlphaScale == 1 &&
		!t.UpdateColor && !t.UpdateAlpha
}

// LightSlot is the per-light part of the lighting fingerprint.
type LightSlot struct {
	Num          uint8
	Directional  bool
	TwoSidedDiff bool
	SpotEnabled  bool
	DistAttn     bool
	GeometricL   bool
	GeometricH   bool
}

// LUTSlot is the sampling fingerprint of one lighting LUT.
type LUTSlot struct {
	Enabled bool
	Abs     bool
	Input   uint8
	Scale   float32
}

// LightingState is the lighting part of the fragment fingerprint.
type LightingState struct {
	Enabled   bool
	NumLights uint8
	Lights    [pica.NumLights]LightSlot

	D0, D1, FR, RR, RG, RB LUTSlot

	Fresnel         uint8
	BumpMode        uint8
	BumpSelector    uint8
	BumpRenorm      bool
	ClampHighlights bool
	ShadowPrimary   bool
	ShadowSecondary bool
	ShadowAlpha     bool
}

// ProcTexState is the procedural texture part of the fragment
// fingerprint.
type ProcTexState struct {
	Enabled       bool
	ClampU        uint8
	ClampV        uint8
	ColorCombiner uint8
	AlphaCombiner uint8
	SeparateAlpha bool
	Noise         bool
	ShiftU        uint8
	ShiftV        uint8
	Filter        uint8
	Width         uint8
}

// FSConfig is the fragment shader fingerprint. Everything the generated
// source branches on is here; everything that only changes uniform data
// is not. The struct is comparable and usable as a map key.
type FSConfig struct {
	ScissorMode    uint8
	DepthmapEnable bool

	AlphaTestFunc uint8

	TexEnv [pica.NumTexEnvStages]TexEnvConfig

	Texture0Enabled bool
	Texture1Enabled bool
	Texture2Enabled bool
	Texture2Coord1  bool

	FogMode uint8
	FogFlip bool

	Lighting LightingState
	ProcTex  ProcTexState
}

// FSConfigFromRegs builds the fragment fingerprint from the current
// register state.
func FSConfigFromRegs(r *pica.Regs) FSConfig {
	var cfg FSConfig

	cfg.ScissorMode = uint8(r.ScissorMode())
	cfg.DepthmapEnable = r.DepthmapEnable()

	enabled, fn, _ := r.AlphaTest()
	if enabled {
		cfg.AlphaTestFunc = uint8(fn)
	} else {
		cfg.AlphaTestFunc = uint8(pica.CompareAlways)
	}

	for i := 0; i < pica.NumTexEnvStages; i++ {
		stage := r.TexEnv(i)
		t := &cfg.TexEnv[i]
		for j := 0; j < 3; j++ {
			t.ColorSource[j] = uint8(stage.ColorSource[j])
			t.AlphaSource[j] = uint8(stage.AlphaSource[j])
			t.ColorModifier[j] = uint8(stage.ColorModifier[j])
			t.AlphaModifier[j] = uint8(stage.AlphaModifier[j])
		}
		t.ColorOp = uint8(stage.ColorOp)
		t.AlphaOp = uint8(stage.AlphaOp)
		t.ColorScale = uint8(1 << stage.ColorScale)
		t.AlphaScale = uint8(1 << stage.AlphaScale)
		t.UpdateColor = r.TexEnvUpdateBufferColor(i)
		t.UpdateAlpha = r.TexEnvUpdateBufferAlpha(i)
	}

	cfg.Texture0Enabled = r.Texture(0).Enabled
	cfg.Texture1Enabled = r.Texture(1).Enabled
	cfg.Texture2Enabled = r.Texture(2).Enabled
	cfg.Texture2Coord1 = r.Texture2UsesCoord1()

	cfg.FogMode = uint8(r.FogMode())
	cfg.FogFlip = r.FogFlip()

	cfg.Lighting = lightingStateFromRegs(r)
	cfg.ProcTex = procTexStateFromRegs(r)
	return cfg
}

func lightingStateFromRegs(r *pica.Regs) LightingState {
	var st LightingState

	st.Enabled = r.LightingEnabled()
	if !st.Enabled {
		return st
	}

	st.NumLights = uint8(r.LightingNumLights())
	for i := 0; i < int(st.NumLights); i++ {
		num := r.LightingLightPermutation(i)
		light := r.Light(num)
		st.Lights[i] = LightSlot{
			Num:          uint8(num),
			Directional:  light.Directional,
			TwoSidedDiff: light.TwoSidedDiff,
			SpotEnabled:  light.SpotEnabled,
			DistAttn:     light.DistAttnEnabled,
			GeometricL:   light.GeometricMode&1 != 0,
			GeometricH:   light.GeometricMode&2 != 0,
		}
	}

	shared := r.Lighting()
	st.Fresnel = uint8(shared.Fresnel)
	st.BumpMode = uint8(shared.BumpMode)
	st.BumpSelector = uint8(shared.BumpSelector)
	st.BumpRenorm = shared.BumpRenorm
	st.ClampHighlights = shared.ClampHighlights
	st.ShadowPrimary = shared.ShadowPrimary
	st.ShadowSecondary = shared.ShadowSecondary
	st.ShadowAlpha = shared.ShadowAlpha

	lut := func(enabled bool, sampler pica.LightingSampler) LUTSlot {
		if !enabled {
			return LUTSlot{}
		}
		c := r.LightingLUT(sampler)
		return LUTSlot{
			Enabled: true,
			Abs:     c.Abs,
			Input:   uint8(c.Input),
			Scale:   c.Scale,
		}
	}
	st.D0 = lut(shared.EnableD0, pica.LUTDistribution0)
	st.D1 = lut(shared.EnableD1, pica.LUTDistribution1)
	st.FR = lut(shared.EnableFR, pica.LUTFresnel)
	st.RR = lut(shared.EnableRR, pica.LUTReflectRed)
	st.RG = lut(shared.EnableRG, pica.LUTReflectGreen)
	st.RB = lut(shared.EnableRB, pica.LUTReflectBlue)
	return st
}

func procTexStateFromRegs(r *pica.Regs) ProcTexState {
	p := r.ProcTex()
	if !p.Enabled {
		return ProcTexState{}
	}
	return ProcTexState{
		Enabled:       true,
		ClampU:        uint8(p.ClampU),
		ClampV:        uint8(p.ClampV),
		ColorCombiner: uint8(p.ColorCombiner),
		AlphaCombiner: uint8(p.AlphaCombiner),
		SeparateAlpha: p.SeparateAlpha,
		Noise:         p.NoiseEnabled,
		ShiftU:        uint8(p.ShiftU),
		ShiftV:        uint8(p.ShiftV),
		Filter:        uint8(p.Filter),
		Width:         uint8(p.Width),
	}
}

// VSConfig is the guest vertex shader fingerprint. The program and
// swizzle memories are folded to hashes so the struct stays comparable.
type VSConfig struct {
	CodeHash     uint64
	SwizzleHash  uint64
	MainOffset   uint32
	OutputMask   uint32
	NumOutputs   uint8
	Semantics    [7][4]uint8
	BoolUniforms uint16
	SanitizeMul  bool
}

// VSConfigFromSetup builds the vertex fingerprint from the shader
// engine's loaded program.
func VSConfigFromSetup(r *pica.Regs, setup *pica.ShaderSetup, sanitizeMul bool) VSConfig {
	cfg := VSConfig{
		CodeHash:     hashWords(setup.ProgramCode[:]),
		SwizzleHash:  hashWords(setup.SwizzleData[:]),
		MainOffset:   r.VSMainOffset(),
		OutputMask:   r.VSOutputMask(),
		NumOutputs:   uint8(r.TotalVSOutputs()),
		BoolUniforms: r.VSBoolUniforms(),
		SanitizeMul:  sanitizeMul,
	}
	for i := 0; i < int(cfg.NumOutputs) && i < len(cfg.Semantics); i++ {
		cfg.Semantics[i] = r.VSOutputSemantics(i)
	}
	return cfg
}

// FixedGSConfig is the fixed-function geometry stage fingerprint.
type FixedGSConfig struct {
	TotalOutputs uint8
}

// FixedGSConfigFromRegs builds the geometry fingerprint.
func FixedGSConfigFromRegs(r *pica.Regs) FixedGSConfig {
	return FixedGSConfig{TotalOutputs: uint8(r.TotalVSOutputs())}
}

func hashWords(words []uint32) uint64 {
	d := xxhash.New()
	var b [4]byte
	for _, w := range words {
		binary.LittleEndian.PutUint32(b[:], w)
		_, _ = d.Write(b[:])
	}
	return d.Sum64()
}

// Hash returns the 64-bit identity of the fragment fingerprint, used as
// the disk cache key. Equal configs always hash equally because the
// digest consumes the struct's fixed-size fields in declaration order.
func (cfg *FSConfig) Hash() uint64 {
	d := xxhash.New()
	_ = binary.Write(d, binary.LittleEndian, cfg)
	return d.Sum64()
}

// Hash returns the 64-bit identity of the vertex fingerprint.
func (cfg *VSConfig) Hash() uint64 {
	d := xxhash.New()
	_ = binary.Write(d, binary.LittleEndian, cfg)
	return d.Sum64()
}

// Hash returns the 64-bit identity of the geometry fingerprint.
func (cfg *FixedGSConfig) Hash() uint64 {
	d := xxhash.New()
	_ = binary.Write(d, binary.LittleEndian, cfg)
	return d.Sum64()
}
