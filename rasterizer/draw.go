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
	"github.com/tangelo-emu/tangelo/host"
	"github.com/tangelo-emu/tangelo/logger"
	"github.com/tangelo-emu/tangelo/pica"
	"github.com/tangelo-emu/tangelo/rasterizer/shadergen"
	"github.com/tangelo-emu/tangelo/rasterizer/surfaces"
)

func hostTopology(t pica.PrimitiveTopology) host.Topology {
	switch t {
	case pica.TopologyTriangleStrip:
		return host.TriangleStrip
	case pica.TopologyTriangleFan:
		return host.TriangleFan
	}
	// shader topology reaches the host as a plain list once the guest
	// geometry stage has been rejected
	return host.Triangles
}

func hostWrap(w pica.TexWrap) host.WrapMode {
	switch w {
	case pica.TexWrapClampToBorder:
		return host.WrapClampToBorder
	case pica.TexWrapRepeat:
		return host.WrapRepeat
	case pica.TexWrapMirroredRepeat:
		return host.WrapMirroredRepeat
	}
	return host.WrapClampToEdge
}

// Draw renders the pending draw call. The accelerate flag selects guest
// vertex shader execution on the host; when false the vertex batch
// filled by AddTriangle is consumed instead. Returns false when the
// draw cannot run on the host, leaving the caller to fall back to a
// software vertex path.
func (r *Rasterizer) Draw(accelerate bool, indexed bool) bool {
	regs := &r.state.Regs

	// 1. resolve render targets
	red, green, blue, alpha := regs.ColorWriteMask()
	usingColor := red || green || blue || alpha
	depthEnabled, _ := regs.DepthTest()
	usingDepth := depthEnabled || regs.DepthWriteEnabled() || regs.Stencil().Enabled

	color, depth, rect := r.surfaces.GetFramebufferSurfaces(regs, usingColor, usingDepth)
	if color == nil && depth == nil {
		// nothing writable resolved. the draw has no observable effect
		return true
	}

	scale := r.resScale
	if color != nil {
		scale = color.ResScale
	} else if depth != nil {
		scale = depth.ResScale
	}

	// 2. scale dependent uniforms
	r.syncScissorScaled(scale)

	// 3. vertex and geometry stages
	var vsSrc, gsSrc string
	if accelerate {
		if regs.UseGeometryShader() {
			// guest geometry programs cannot run on the host pipeline
			return false
		}
		vsCfg := shadergen.VSConfigFromSetup(regs, &r.state.VS, r.sanitizeMul)
		var err error
		vsSrc, err = r.shaders.VertexSource(&vsCfg, regs, &r.state.VS)
		if err != nil {
			logger.Logf(logger.Allow, "rasterizer", "vertex shader rejected: %v", err)
			return false
		}
		gsCfg := shadergen.FixedGSConfigFromRegs(regs)
		gsSrc = r.shaders.GeometrySource(&gsCfg)
	} else {
		vsSrc = r.shaders.TrivialVertexSource()
	}

	// 4. fragment stage
	if r.shaderDirty || r.fsSource == "" {
		cfg := shadergen.FSConfigFromRegs(regs)
		r.fsSource = r.shaders.FragmentSource(&cfg, regs)
		r.shaderDirty = false
	}

	program, err := r.shaders.GetProgram(vsSrc, gsSrc, r.fsSource)
	if err != nil {
		logger.Logf(logger.Allow, "rasterizer", "program link failed: %v", err)
		return false
	}

	// 5. pipeline state
	state := r.drawState(program, color, depth, rect, scale)

	// 6. texture units
	if !r.bindTextures(state, color) {
		return false
	}

	r.backend.DrawState(state)
	r.syncLUTs()

	if r.uniformsDirty {
		r.backend.SetUniforms(r.uniforms.encode())
		r.uniformsDirty = false
	}

	// 7. vertices
	if accelerate {
		analysis, ok := r.AnalyzeVertexArray(indexed)
		if !ok {
			return false
		}
		if !r.SetupVertexArray(&analysis) {
			return false
		}
		topology := hostTopology(regs.Topology())
		if indexed {
			first := r.backend.StreamIndices(analysis.Indices)
			r.backend.DrawIndexed(topology, first, len(analysis.Indices))
		} else {
			r.backend.Draw(topology, 0, int(analysis.VertexCount()))
		}
	} else {
		r.drawBatch()
	}

	// 8. the host textures now hold newer data than guest memory
	if color != nil {
		r.surfaces.InvalidateRegion(color.Addr, color.Size, color)
	}
	if depth != nil {
		r.surfaces.InvalidateRegion(depth.Addr, depth.Size, depth)
	}

	return true
}

// drawBatch streams the software-transformed vertex batch in slices that
// fit the host's fixed streaming buffer.
func (r *Rasterizer) drawBatch() {
	const maxVertices = (4 * 1024 * 1024) / hwVertexStride / 3 * 3

	r.backend.SetVertexLayout(hwVertexStride, hwVertexLayout)

	for start := 0; start < len(r.batch); start += maxVertices {
		end := start + maxVertices
		if end > len(r.batch) {
			end = len(r.batch)
		}
		buf := make([]byte, 0, (end-start)*hwVertexStride)
		for i := start; i < end; i++ {
			buf = r.batch[i].append(buf)
		}
		first := r.backend.StreamVertices(buf, hwVertexStride)
		r.backend.Draw(host.Triangles, first, end-start)
	}

	r.batch = r.batch[:0]
}

// drawState builds the host pipeline description from the register
// file.
func (r *Rasterizer) drawState(program host.ProgramID, color, depth *surfaces.Surface,
	rect host.Rect, scale uint32) *host.DrawState {

	regs := &r.state.Regs

	state := &host.DrawState{
		Program:  program,
		Viewport: r.viewportRect(rect, scale),
		Scissor:  rect,
	}

	if color != nil {
		state.ColorTexture = color.Texture
		state.ColorFormat = color.Format.HostFormat()
	}
	if depth != nil {
		state.DepthTexture = depth.Texture
		state.DepthFormat = depth.Format.HostFormat()
	}

	switch regs.CullMode() {
	case pica.CullClockwise:
		state.CullBack = true
		state.FrontCCW = true
	case pica.CullCounterClockwise:
		state.CullBack = true
		state.FrontCCW = false
	}

	depthEnabled, depthFunc := regs.DepthTest()
	state.DepthTestEnabled = depthEnabled
	state.DepthFunc = host.CompareOp(depthFunc)
	state.DepthWrite = depthEnabled && regs.DepthWriteEnabled()

	red, green, blue, alpha := regs.ColorWriteMask()
	state.ColorMask = [4]bool{red, green, blue, alpha}

	stencil := regs.Stencil()
	state.StencilEnabled = stencil.Enabled && depth != nil && depth.Format == surfaces.PixelD24S8
	state.StencilFunc = host.CompareOp(stencil.Func)
	state.StencilRef = stencil.Ref
	state.StencilInputMask = stencil.InputMask
	state.StencilWriteMask = stencil.WriteMask
	state.StencilFail = host.StencilOp(stencil.FailAction)
	state.StencilZFail = host.StencilOp(stencil.ZFailAction)
	state.StencilZPass = host.StencilOp(stencil.ZPassAction)

	if regs.BlendEnabled() {
		blend := regs.Blend()
		state.BlendEnabled = true
		state.BlendEqRGB = host.BlendEq(blend.EquationRGB)
		state.BlendEqAlpha = host.BlendEq(blend.EquationAlpha)
		state.BlendSrcRGB = host.BlendFn(blend.SrcFactorRGB)
		state.BlendDstRGB = host.BlendFn(blend.DstFactorRGB)
		state.BlendSrcAlpha = host.BlendFn(blend.SrcFactorAlpha)
		state.BlendDstAlpha = host.BlendFn(blend.DstFactorAlpha)
		state.BlendColor = color4ToFloat(blend.Constant)
	} else {
		state.LogicOpEnabled = true
		state.LogicOp = host.LogicOp(regs.LogicOp())
	}

	return state
}

// viewportRect computes the scaled host viewport inside the resolved
// framebuffer rectangle.
func (r *Rasterizer) viewportRect(rect host.Rect, scale uint32) host.Rect {
	regs := &r.state.Regs
	cornerX, cornerY := regs.ViewportCorner()
	return host.Rect{
		X: rect.X + int(cornerX*scale),
		Y: rect.Y + int(cornerY*scale),
		W: int(2 * regs.ViewportSizeX() * float32(scale)),
		H: int(2 * regs.ViewportSizeY() * float32(scale)),
	}
}

// bindTextures resolves the three guest texture units into the pipeline
// state. Disabled and unresolvable units get a 1x1 transparent texture;
// a unit sampling the color target samples a copy of it instead.
func (r *Rasterizer) bindTextures(state *host.DrawState, color *surfaces.Surface) bool {
	regs := &r.state.Regs

	for unit := 0; unit < pica.NumTextureUnits; unit++ {
		cfg := regs.Texture(unit)
		if !cfg.Enabled || cfg.Addr == 0 {
			state.Textures[unit] = r.ensureClearTexture()
			state.Samplers[unit] = r.samplerFor(pica.TextureConfig{})
			continue
		}

		surface := r.surfaces.GetTextureSurface(cfg, cfg.LODMax)
		if surface == nil {
			logger.Logf(logger.Allow, "rasterizer", "no surface for texture unit %d at %#08x", unit, cfg.Addr)
			state.Textures[unit] = r.ensureClearTexture()
			state.Samplers[unit] = r.samplerFor(cfg)
			continue
		}

		tex := surface.Texture
		if color != nil && tex == color.Texture {
			tex = r.copyFeedbackTexture(surface)
		}

		state.Textures[unit] = tex
		state.Samplers[unit] = r.samplerFor(cfg)
	}

	return true
}

// samplerFor returns a cached host sampler for the unit configuration.
func (r *Rasterizer) samplerFor(cfg pica.TextureConfig) host.SamplerID {
	wrapS, okS := cfg.WrapS.Normalise()
	wrapT, okT := cfg.WrapT.Normalise()
	if !okS || !okT {
		logger.Logf(logger.Allow, "rasterizer", "undocumented texture wrap mode %d/%d", cfg.WrapS, cfg.WrapT)
	}

	sc := host.SamplerConfig{
		MagLinear:   cfg.MagFilter == pica.TexFilterLinear,
		MinLinear:   cfg.MinFilter == pica.TexFilterLinear,
		MipLinear:   cfg.MipFilter == pica.TexFilterLinear,
		WrapS:       hostWrap(wrapS),
		WrapT:       hostWrap(wrapT),
		BorderColor: color4ToFloat(cfg.BorderColor),
		LODMin:      int(cfg.LODMin),
		LODMax:      int(cfg.LODMax),
		LODBias:     cfg.LODBias,
	}

	if id, ok := r.samplers[sc]; ok {
		return id
	}
	id := r.backend.CreateSampler(sc)
	r.samplers[sc] = id
	return id
}

// ensureClearTexture lazily creates the shared 1x1 transparent texture.
func (r *Rasterizer) ensureClearTexture() host.TextureID {
	if r.clearTexture == 0 {
		r.clearTexture = r.backend.CreateTexture(host.FormatRGBA8, 1, 1)
		r.backend.Upload(r.clearTexture, host.FormatRGBA8,
			host.Rect{X: 0, Y: 0, W: 1, H: 1}, []byte{0, 0, 0, 0})
	}
	return r.clearTexture
}

// copyFeedbackTexture duplicates a surface that is both sampled and
// rendered to in the same draw, breaking the feedback loop.
func (r *Rasterizer) copyFeedbackTexture(surface *surfaces.Surface) host.TextureID {
	w := int(surface.ScaledWidth())
	h := int(surface.ScaledHeight())
	format := surface.Format.HostFormat()

	if r.feedbackTexture == 0 || r.feedbackW != w || r.feedbackH != h || r.feedbackFormat != format {
		if r.feedbackTexture != 0 {
			r.backend.DestroyTexture(r.feedbackTexture)
		}
		r.feedbackTexture = r.backend.CreateTexture(format, w, h)
		r.feedbackW = w
		r.feedbackH = h
		r.feedbackFormat = format
	}

	full := host.Rect{X: 0, Y: 0, W: w, H: h}
	r.backend.Blit(surface.Texture, full, r.feedbackTexture, full, format)
	return r.feedbackTexture
}
