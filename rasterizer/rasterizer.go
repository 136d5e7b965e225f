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
	"sync/atomic"

	"github.com/spf13/afero"
	"github.com/tangelo-emu/tangelo/host"
	"github.com/tangelo-emu/tangelo/memory"
	"github.com/tangelo-emu/tangelo/memory/memorymap"
	"github.com/tangelo-emu/tangelo/pica"
	"github.com/tangelo-emu/tangelo/rasterizer/shadercache"
	"github.com/tangelo-emu/tangelo/rasterizer/surfaces"
)

// LUT slot assignments on the host backend. The sampler uniforms of the
// generated fragment shaders are bound in the same order.
const (
	lutSlotLighting     = 0
	lutSlotFog          = 1
	lutSlotProcTex      = 2
	lutSlotProcTexColor = 3
)

// Rasterizer drives the host GPU from the guest register file. It owns
// the surface cache and the shader pipeline cache and implements the
// memory.RasterizerHook interface so guest memory accesses stay coherent
// with cached surfaces.
type Rasterizer struct {
	backend host.Backend
	mem     *memory.Memory
	state   *pica.State

	surfaces *surfaces.Cache
	shaders  *shadercache.Cache

	resScale    uint32
	sanitizeMul bool

	// shaderDirty is set when a register write changes the fragment
	// fingerprint. the cached source is rebuilt on the next draw
	shaderDirty bool
	fsSource    string

	uniforms      uniformBlock
	uniformsDirty bool

	batch []HWVertex

	samplers map[host.SamplerConfig]host.SamplerID

	// clearTexture is bound to disabled or null texture units
	clearTexture host.TextureID

	// feedbackTexture holds a copy of the color target when a unit
	// samples it during a draw
	feedbackTexture      host.TextureID
	feedbackW, feedbackH int
	feedbackFormat       host.PixelFormat
}

// NewRasterizer is the preferred method of initialisation for the
// Rasterizer type. The fs argument roots the shader disk cache and may
// be nil to disable persistence. The rasterizer registers itself as the
// memory system's rasterizer hook.
func NewRasterizer(backend host.Backend, mem *memory.Memory, state *pica.State,
	fs afero.Fs, titleID uint64, resScale uint32, sanitizeMul bool) *Rasterizer {

	if resScale == 0 {
		resScale = 1
	}

	r := &Rasterizer{
		backend:     backend,
		mem:         mem,
		state:       state,
		surfaces:    surfaces.NewCache(backend, mem, resScale),
		shaders:     shadercache.NewCache(backend, fs, titleID, sanitizeMul),
		resScale:    resScale,
		sanitizeMul: sanitizeMul,
		shaderDirty: true,
		samplers:    make(map[host.SamplerConfig]host.SamplerID),
	}

	mem.SetRasterizer(r)
	r.syncAll()

	return r
}

// Close releases the shader cache's disk resources. The host objects the
// rasterizer created are released by the backend's Destroy.
func (r *Rasterizer) Close() {
	r.shaders.Close()
}

// Surfaces exposes the surface cache to the display renderer and the
// transfer engine hints.
func (r *Rasterizer) Surfaces() *surfaces.Cache {
	return r.surfaces
}

// Shaders exposes the shader pipeline cache.
func (r *Rasterizer) Shaders() *shadercache.Cache {
	return r.shaders
}

// LoadDiskResources warms the shader pipeline cache from disk. See
// shadercache.Cache.LoadDiskCache.
func (r *Rasterizer) LoadDiskResources(stop *atomic.Bool, progress shadercache.Progress) error {
	return r.shaders.LoadDiskCache(stop, progress)
}

// NotifyPicaRegisterChanged dispatches a register write to the sync
// routine for the uniform fields it backs. Writes that change a shader
// fingerprint mark the fragment source dirty; everything the pipeline
// state re-reads per draw needs no mirror here.
func (r *Rasterizer) NotifyPicaRegisterChanged(id pica.RegID) {
	switch {
	case id == pica.RegDepthmapEnable:
		r.shaderDirty = true

	case id == pica.RegDepthmapScale || id == pica.RegDepthmapOffset:
		r.syncDepthmap()

	case id == pica.RegScissorMode:
		r.shaderDirty = true

	case id == pica.RegAlphaTest:
		r.shaderDirty = true
		r.syncAlphaTest()

	case id == pica.RegTexturingMain:
		r.shaderDirty = true

	case id == pica.RegTexture0Format || id == pica.RegTexture1Format || id == pica.RegTexture2Format:
		r.shaderDirty = true

	case id >= pica.RegProcTexConfig && id <= pica.RegProcTexLUT:
		r.shaderDirty = true
		r.syncProcTexNoise()

	case id >= pica.RegTexEnv0 && id < pica.RegTexEnvUpdateBuffer:
		r.shaderDirty = true
		r.syncTexEnvConst()

	case id >= pica.RegTexEnv4 && id < pica.RegTexEnvBufferColor:
		r.shaderDirty = true
		r.syncTexEnvConst()

	case id == pica.RegTexEnvUpdateBuffer:
		// combiner buffer routing and the fog mode share a register
		r.shaderDirty = true

	case id == pica.RegFogColor:
		r.syncFogColor()

	case id == pica.RegTexEnvBufferColor:
		r.syncCombinerBuffer()

	case id >= pica.RegLight0Base && id < pica.RegLight0Base+pica.RegID(pica.NumLights*0x10):
		n := int(id-pica.RegLight0Base) / 0x10
		r.syncLight(n)
		// the per-light config word feeds the lighting fingerprint
		if int(id-pica.RegLight0Base)%0x10 == 9 {
			r.shaderDirty = true
		}

	case id == pica.RegLightingAmbient:
		r.syncGlobalAmbient()

	case id >= pica.RegLightingNumLights && id <= pica.RegLightingPermutation:
		r.shaderDirty = true
		r.syncAllLights()

	case id == pica.RegPrimitiveConfig:
		r.shaderDirty = true

	default:
		// remaining registers are either consumed directly at draw time
		// (blend, stencil, framebuffer, loaders) or handled by the
		// register file's own side effects (LUT uploads, shader code)
	}
}

// syncAll primes every uniform field from the current register state.
func (r *Rasterizer) syncAll() {
	r.syncDepthmap()
	r.syncAlphaTest()
	r.syncFogColor()
	r.syncCombinerBuffer()
	r.syncTexEnvConst()
	r.syncGlobalAmbient()
	r.syncAllLights()
	r.syncProcTexNoise()
	r.uniformsDirty = true
}

func (r *Rasterizer) syncDepthmap() {
	regs := &r.state.Regs
	scale := regs.DepthmapScale()
	offset := regs.DepthmapOffset()
	if scale != r.uniforms.DepthScale || offset != r.uniforms.DepthOffset {
		r.uniforms.DepthScale = scale
		r.uniforms.DepthOffset = offset
		r.uniformsDirty = true
	}
}

func (r *Rasterizer) syncAlphaTest() {
	_, _, ref := r.state.Regs.AlphaTest()
	if int32(ref) != r.uniforms.AlphaTestRef {
		r.uniforms.AlphaTestRef = int32(ref)
		r.uniformsDirty = true
	}
}

func (r *Rasterizer) syncFogColor() {
	c := color3ToFloat(r.state.Regs.FogColor())
	if c != r.uniforms.FogColor {
		r.uniforms.FogColor = c
		r.uniformsDirty = true
	}
}

func (r *Rasterizer) syncCombinerBuffer() {
	c := color4ToFloat(r.state.Regs.TexEnvBufferColor())
	if c != r.uniforms.BufferColor {
		r.uniforms.BufferColor = c
		r.uniformsDirty = true
	}
}

func (r *Rasterizer) syncTexEnvConst() {
	for i := 0; i < pica.NumTexEnvStages; i++ {
		c := color4ToFloat(r.state.Regs.TexEnv(i).Const)
		if c != r.uniforms.ConstColor[i] {
			r.uniforms.ConstColor[i] = c
			r.uniformsDirty = true
		}
	}
}

func (r *Rasterizer) syncGlobalAmbient() {
	c := color3ToFloat(r.state.Regs.LightingGlobalAmbient())
	if c != r.uniforms.GlobalAmbient {
		r.uniforms.GlobalAmbient = c
		r.uniformsDirty = true
	}
}

func (r *Rasterizer) syncAllLights() {
	for n := 0; n < pica.NumLights; n++ {
		r.syncLight(n)
	}
}

func (r *Rasterizer) syncLight(n int) {
	regs := &r.state.Regs
	cfg := regs.Light(n)
	bias, scale := regs.LightDistAttenuation(n)

	l := lightUniforms{
		Specular0:      color3ToFloat(cfg.Specular0),
		Specular1:      color3ToFloat(cfg.Specular1),
		Diffuse:        color3ToFloat(cfg.Diffuse),
		Ambient:        color3ToFloat(cfg.Ambient),
		Position:       regs.LightPosition(n),
		SpotDirection:  regs.LightSpotDirection(n),
		DistAttenBias:  bias,
		DistAttenScale: scale,
	}
	if l != r.uniforms.Lights[n] {
		r.uniforms.Lights[n] = l
		r.uniformsDirty = true
	}
}

func (r *Rasterizer) syncProcTexNoise() {
	pt := r.state.Regs.ProcTex()
	changed := pt.Bias != r.uniforms.ProcTexBias ||
		pt.NoiseFrequency != r.uniforms.ProcTexNoiseF ||
		pt.NoiseAmplitude != r.uniforms.ProcTexNoiseA ||
		pt.NoisePhase != r.uniforms.ProcTexNoiseP
	if changed {
		r.uniforms.ProcTexBias = pt.Bias
		r.uniforms.ProcTexNoiseF = pt.NoiseFrequency
		r.uniforms.ProcTexNoiseA = pt.NoiseAmplitude
		r.uniforms.ProcTexNoiseP = pt.NoisePhase
		r.uniformsDirty = true
	}
}

// syncScissorScaled updates the scissor uniforms for the draw rectangle
// currently being rendered. Called from Draw because the values depend
// on the resolved surface scale.
func (r *Rasterizer) syncScissorScaled(scale uint32) {
	regs := &r.state.Regs
	x1, y1 := regs.ScissorMin()
	x2, y2 := regs.ScissorMax()

	s := [4]int32{
		int32(x1 * scale),
		int32(y1 * scale),
		int32((x2 + 1) * scale),
		int32((y2 + 1) * scale),
	}
	if s != r.uniforms.Scissor {
		r.uniforms.Scissor = s
		r.uniformsDirty = true
	}
}

// syncLUTs re-uploads any lookup table whose guest image changed since
// the last draw.
func (r *Rasterizer) syncLUTs() {
	s := r.state

	if s.LightingLUTsDirty {
		texels := make([][2]float32, 0, pica.NumLightingSamplers*pica.LightingLUTSize)
		for lut := range s.LightingLUTs {
			for _, e := range s.LightingLUTs[lut] {
				texels = append(texels, [2]float32{e.ToFloat(), e.DeltaToFloat()})
			}
		}
		r.backend.UploadLUT(lutSlotLighting, 0, texels)
		s.LightingLUTsDirty = false
	}

	if s.FogLUTDirty {
		texels := make([][2]float32, len(s.FogLUT))
		for i, e := range s.FogLUT {
			texels[i] = [2]float32{e.ToFloat(), e.DeltaToFloat()}
		}
		r.backend.UploadLUT(lutSlotFog, 0, texels)
		s.FogLUTDirty = false
	}

	if s.ProcTexDirty {
		texels := make([][2]float32, len(s.ProcTexNoiseLUT))
		for i, e := range s.ProcTexNoiseLUT {
			texels[i] = [2]float32{e.ToFloat(), e.DeltaToFloat()}
		}
		r.backend.UploadLUT(lutSlotProcTex, 0, texels)

		colors := make([][4]float32, len(s.ProcTexColorTable))
		for i, raw := range s.ProcTexColorTable {
			colors[i] = [4]float32{
				colorToFloat(uint8(raw)),
				colorToFloat(uint8(raw >> 8)),
				colorToFloat(uint8(raw >> 16)),
				colorToFloat(uint8(raw >> 24)),
			}
		}
		r.backend.UploadColorLUT(lutSlotProcTexColor, 0, colors)
		s.ProcTexDirty = false
	}
}

// FlushRegion implements the memory.RasterizerHook interface.
func (r *Rasterizer) FlushRegion(addr memorymap.PAddr, size uint32) {
	r.surfaces.FlushRegion(addr, size)
}

// InvalidateRegion implements the memory.RasterizerHook interface.
func (r *Rasterizer) InvalidateRegion(addr memorymap.PAddr, size uint32) {
	r.surfaces.InvalidateRegion(addr, size, nil)
}

// FlushAndInvalidateRegion implements the memory.RasterizerHook
// interface.
func (r *Rasterizer) FlushAndInvalidateRegion(addr memorymap.PAddr, size uint32) {
	r.surfaces.FlushAndInvalidateRegion(addr, size)
}

// ClearAll drops every cached surface. Used when the guest reconfigures
// memory wholesale.
func (r *Rasterizer) ClearAll(flush bool) {
	r.surfaces.ClearAll(flush)
}
