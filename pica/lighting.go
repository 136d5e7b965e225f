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

// NumLights is the number of hardware lights in the fragment lighting
// stage.
const NumLights = 8

// NumLightingSamplers is the number of lighting lookup table samplers.
// Only 16 are selectable but the LUT data register accepts indices up to
// 24 to cover the per-light spotlight tables.
const NumLightingSamplers = 24

// LightingSampler identifies one of the lighting lookup tables.
type LightingSampler uint32

const (
	LUTDistribution0 LightingSampler = 0
	LUTDistribution1 LightingSampler = 1
	LUTFresnel       LightingSampler = 3
	LUTReflectRed    LightingSampler = 4
	LUTReflectGreen  LightingSampler = 5
	LUTReflectBlue   LightingSampler = 6
	LUTSpotlight0    LightingSampler = 8
	LUTDistanceAtt0  LightingSampler = 16
)

// LightingFresnel selects which output channels the fresnel factor is
// applied to.
type LightingFresnel uint32

const (
	FresnelNone LightingFresnel = iota
	FresnelPrimaryAlpha
	FresnelSecondaryAlpha
	FresnelBothAlpha
)

// LightingBumpMode selects the bump mapping behaviour.
type LightingBumpMode uint32

const (
	BumpNone LightingBumpMode = iota
	BumpNormalMap
	BumpTangentMap
)

// LightConfig is the decoded configuration of one hardware light.
type LightConfig struct {
	Specular0       [3]uint8
	Specular1       [3]uint8
	Diffuse         [3]uint8
	Ambient         [3]uint8
	Directional     bool
	TwoSidedDiff    bool
	GeometricMode   uint32
	SpotEnabled     bool
	DistAttnEnabled bool
}

// light register layout, relative to RegLight0Base + 0x10*light:
//
//	+0..+3  specular0/specular1/diffuse/ambient colors
//	+4..+6  position xy, position z, spot direction
//	+9      config
//
// attenuation enables live in the shared lighting config register.
const lightStride = 0x10

func decodeLightColor(v uint32) [3]uint8 {
	// light colors are packed 10 bits per channel but only the top 8 bits
	// of each channel are significant on hardware
	return [3]uint8{
		uint8(bits(v, 20, 10) >> 2),
		uint8(bits(v, 10, 10) >> 2),
		uint8(bits(v, 0, 10) >> 2),
	}
}

// Light returns the decoded configuration of a hardware light.
func (r *Regs) Light(n int) LightConfig {
	base := RegLight0Base + RegID(n*lightStride)
	config := r.Raw[base+9]
	config1 := r.Raw[RegLightingConfig1]

	return LightConfig{
		Specular0:       decodeLightColor(r.Raw[base+0]),
		Specular1:       decodeLightColor(r.Raw[base+1]),
		Diffuse:         decodeLightColor(r.Raw[base+2]),
		Ambient:         decodeLightColor(r.Raw[base+3]),
		Directional:     bit(config, 0),
		TwoSidedDiff:    bit(config, 1),
		GeometricMode:   bits(config, 2, 2),
		SpotEnabled:     !bit(config1, uint(8+n)),
		DistAttnEnabled: !bit(config1, uint(24+n)),
	}
}

// LightPosition returns the position of a light, or its direction when
// the light is directional.
func (r *Regs) LightPosition(n int) [3]float32 {
	base := RegLight0Base + RegID(n*lightStride)
	xy := r.Raw[base+4]
	z := r.Raw[base+5]
	return [3]float32{
		Float16FromRaw(bits(xy, 0, 16)),
		Float16FromRaw(bits(xy, 16, 16)),
		Float16FromRaw(bits(z, 0, 16)),
	}
}

// LightSpotDirection returns the spotlight direction of a light. The
// components are signed 13-bit fractions.
func (r *Regs) LightSpotDirection(n int) [3]float32 {
	base := RegLight0Base + RegID(n*lightStride)
	xy := r.Raw[base+6]
	z := r.Raw[base+7]
	signed := func(raw uint32) float32 {
		return float32(int32(raw)<<19>>19) / 2047.0
	}
	return [3]float32{
		signed(bits(xy, 0, 13)),
		signed(bits(xy, 16, 13)),
		signed(bits(z, 0, 13)),
	}
}

// LightDistAttenuation returns the distance attenuation bias and scale
// of a light.
func (r *Regs) LightDistAttenuation(n int) (bias float32, scale float32) {
	base := RegLight0Base + RegID(n*lightStride)
	return Float20FromRaw(bits(r.Raw[base+0xa], 0, 20)),
		Float20FromRaw(bits(r.Raw[base+0xb], 0, 20))
}

// LightingEnabled returns true when fragment lighting is switched on.
func (r *Regs) LightingEnabled() bool {
	return !bit(r.Raw[RegLightingDisable], 0)
}

// LightingGlobalAmbient returns the global ambient color.
func (r *Regs) LightingGlobalAmbient() [3]uint8 {
	return decodeLightColor(r.Raw[RegLightingAmbient])
}

// LightingNumLights returns how many of the eight lights take part in the
// lighting computation.
func (r *Regs) LightingNumLights() int {
	return int(bits(r.Raw[RegLightingNumLights], 0, 3)) + 1
}

// LightingLightPermutation returns the light slot feeding lighting
// stage n.
func (r *Regs) LightingLightPermutation(n int) int {
	return int(bits(r.Raw[RegLightingPermutation], uint(n*4), 3))
}

// LightingConfig describes the shared lighting stage configuration.
type LightingConfig struct {
	ShadowPrimary   bool
	ShadowSecondary bool
	ShadowAlpha     bool
	Fresnel         LightingFresnel
	BumpMode        LightingBumpMode
	BumpSelector    uint32
	BumpRenorm      bool
	ClampHighlights bool
	EnableD0        bool
	EnableD1        bool
	EnableFR        bool
	EnableRR        bool
	EnableRG        bool
	EnableRB        bool
}

// Lighting returns the decoded shared lighting configuration.
func (r *Regs) Lighting() LightingConfig {
	c0 := r.Raw[RegLightingConfig0]
	c1 := r.Raw[RegLightingConfig1]

	cfg := LightingConfig{
		ShadowPrimary:   bit(c0, 16),
		ShadowSecondary: bit(c0, 17),
		ShadowAlpha:     bit(c0, 19),
		Fresnel:         LightingFresnel(bits(c0, 2, 2)),
		BumpMode:        LightingBumpMode(bits(c0, 28, 2)),
		BumpSelector:    bits(c0, 22, 2),
		BumpRenorm:      !bit(c0, 30),
		ClampHighlights: bit(c0, 27),
	}

	// config1 disables individual samplers when the corresponding bit is
	// set
	cfg.EnableD0 = !bit(c1, 16)
	cfg.EnableD1 = !bit(c1, 17)
	cfg.EnableFR = !bit(c1, 19)
	cfg.EnableRB = !bit(c1, 20)
	cfg.EnableRG = !bit(c1, 21)
	cfg.EnableRR = !bit(c1, 22)

	return cfg
}

// LightingLUTInput enumerates the possible inputs to a lighting lookup
// table.
type LightingLUTInput uint32

const (
	LUTInputNH LightingLUTInput = iota
	LUTInputVH
	LUTInputNV
	LUTInputLN
	LUTInputSP
	LUTInputCP
)

// LightingLUTConfig is the decoded sampling configuration of one lighting
// LUT.
type LightingLUTConfig struct {
	Input LightingLUTInput
	Abs   bool
	Scale float32
}

var lutScaleTable = [8]float32{1.0, 2.0, 4.0, 8.0, 0, 0, 0.25, 0.5}

// LightingLUT returns the sampling configuration of the given lighting
// LUT sampler. Only samplers 0 to 7 have configurable inputs.
func (r *Regs) LightingLUT(sampler LightingSampler) LightingLUTConfig {
	shift := uint(sampler) * 4
	return LightingLUTConfig{
		Input: LightingLUTInput(bits(r.Raw[RegLightingLUTSelect], shift, 3)),
		Abs:   !bit(r.Raw[RegLightingLUTAbs], shift+1),
		Scale: lutScaleTable[bits(r.Raw[RegLightingLUTScale], shift, 3)],
	}
}

// LightingLUTWriteIndex returns the LUT and element targeted by the next
// write to a lighting LUT data register. The index auto-increments so the
// decoded value is only valid at the time of the write.
func (r *Regs) LightingLUTWriteIndex() (lut int, index int) {
	v := r.Raw[RegLightingLUTIndex]
	return int(bits(v, 8, 5)), int(bits(v, 0, 8))
}
