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

package host

import (
	"strings"

	"github.com/go-gl/gl/v3.2-core/gl"

	"github.com/tangelo-emu/tangelo/curated"
	"github.com/tangelo-emu/tangelo/logger"
)

// sentinel errors for the GL32 backend
const (
	ShaderCompilation   = "gl32: %s shader: %s"
	ProgramLink         = "gl32: program link: %s"
	BinariesUnsupported = "gl32: program binaries not supported by driver"
)

// glFormat is the OpenGL upload tuple of a PixelFormat.
type glFormat struct {
	internal int32
	format   uint32
	typ      uint32
}

func formatTuple(f PixelFormat) glFormat {
	switch f {
	case FormatRGBA8:
		return glFormat{gl.RGBA8, gl.RGBA, gl.UNSIGNED_BYTE}
	case FormatRGB5A1:
		return glFormat{gl.RGB5_A1, gl.RGBA, gl.UNSIGNED_SHORT_5_5_5_1}
	case FormatRGB565:
		return glFormat{gl.RGB, gl.RGB, gl.UNSIGNED_SHORT_5_6_5}
	case FormatRGBA4:
		return glFormat{gl.RGBA4, gl.RGBA, gl.UNSIGNED_SHORT_4_4_4_4}
	case FormatD16:
		return glFormat{gl.DEPTH_COMPONENT16, gl.DEPTH_COMPONENT, gl.UNSIGNED_SHORT}
	case FormatD24:
		return glFormat{gl.DEPTH_COMPONENT24, gl.DEPTH_COMPONENT, gl.UNSIGNED_INT}
	case FormatD24S8:
		return glFormat{gl.DEPTH24_STENCIL8, gl.DEPTH_STENCIL, gl.UNSIGNED_INT_24_8}
	}
	return glFormat{gl.RGBA8, gl.RGBA, gl.UNSIGNED_BYTE}
}

func attachmentFor(f PixelFormat) uint32 {
	switch f {
	case FormatD16, FormatD24:
		return gl.DEPTH_ATTACHMENT
	case FormatD24S8:
		return gl.DEPTH_STENCIL_ATTACHMENT
	}
	return gl.COLOR_ATTACHMENT0
}

// the number of auxiliary LUT texture slots available to fragment
// shaders. slot assignments are decided by the rasterizer
const numLUTSlots = 4

// lutTextureSize is the texel capacity of each LUT slot. The largest
// table is the lighting LUT at 24 ranges of 256 entries each.
const lutTextureSize = 8192

// streamBufferSize is the size of the orphaned vertex stream buffer.
const streamBufferSize = 4 * 1024 * 1024

// indexBufferSize is the size of the orphaned index stream buffer.
const indexBufferSize = 1024 * 1024

// GL32 is a Backend driving the host GPU through OpenGL 3.2. A current
// GL context is required on the calling thread for every method.
type GL32 struct {
	textures map[TextureID]glTexture
	programs map[ProgramID]uint32
	samplers map[SamplerID]uint32

	nextTexture TextureID
	nextProgram ProgramID
	nextSampler SamplerID

	drawFBO uint32
	readFBO uint32

	vao          uint32
	vbo          uint32
	ebo          uint32
	ubo          uint32
	streamOffset int
	streamStride int
	indexOffset  int

	lutTextures [numLUTSlots]uint32
	lutIsColor  [numLUTSlots]bool

	programBinaries bool
}

type glTexture struct {
	name   uint32
	format PixelFormat
	width  int
	height int
}

// NewGL32 is the preferred method of initialisation for the GL32 type. A
// GL context must be current.
func NewGL32() (*GL32, error) {
	if err := gl.Init(); err != nil {
		return nil, curated.Errorf("gl32: %v", err)
	}

	b := &GL32{
		textures: make(map[TextureID]glTexture),
		programs: make(map[ProgramID]uint32),
		samplers: make(map[SamplerID]uint32),
	}

	gl.GenFramebuffers(1, &b.drawFBO)
	gl.GenFramebuffers(1, &b.readFBO)

	gl.GenVertexArrays(1, &b.vao)
	gl.BindVertexArray(b.vao)
	gl.GenBuffers(1, &b.vbo)
	gl.BindBuffer(gl.ARRAY_BUFFER, b.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, streamBufferSize, nil, gl.STREAM_DRAW)
	gl.GenBuffers(1, &b.ebo)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, b.ebo)
	gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, indexBufferSize, nil, gl.STREAM_DRAW)

	gl.GenBuffers(1, &b.ubo)
	gl.BindBuffer(gl.UNIFORM_BUFFER, b.ubo)
	gl.BindBufferBase(gl.UNIFORM_BUFFER, 0, b.ubo)

	for i := range b.lutTextures {
		gl.GenTextures(1, &b.lutTextures[i])
		gl.BindTexture(gl.TEXTURE_1D, b.lutTextures[i])
		gl.TexImage1D(gl.TEXTURE_1D, 0, gl.RG32F, lutTextureSize, 0, gl.RG, gl.FLOAT, nil)
		gl.TexParameteri(gl.TEXTURE_1D, gl.TEXTURE_MAG_FILTER, gl.NEAREST)
		gl.TexParameteri(gl.TEXTURE_1D, gl.TEXTURE_MIN_FILTER, gl.NEAREST)
	}

	// program binary support arrived after GL 3.2 so it must be probed
	var numFormats int32
	gl.GetIntegerv(gl.NUM_PROGRAM_BINARY_FORMATS, &numFormats)
	b.programBinaries = numFormats > 0
	if !b.programBinaries {
		logger.Log(logger.Allow, "gl32", "driver has no program binary formats")
	}

	return b, nil
}

// Caps implements the Backend interface.
func (b *GL32) Caps() Capabilities {
	return Capabilities{
		ProgramBinaries: b.programBinaries,
		ClearTexture:    false,
	}
}

// CreateTexture implements the Backend interface.
func (b *GL32) CreateTexture(format PixelFormat, width int, height int) TextureID {
	t := formatTuple(format)

	var name uint32
	gl.GenTextures(1, &name)
	gl.BindTexture(gl.TEXTURE_2D, name)
	gl.TexImage2D(gl.TEXTURE_2D, 0, t.internal, int32(width), int32(height), 0,
		t.format, t.typ, nil)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.NEAREST)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.NEAREST)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)

	b.nextTexture++
	b.textures[b.nextTexture] = glTexture{
		name:   name,
		format: format,
		width:  width,
		height: height,
	}
	return b.nextTexture
}

// DestroyTexture implements the Backend interface.
func (b *GL32) DestroyTexture(id TextureID) {
	t, ok := b.textures[id]
	if !ok {
		return
	}
	gl.DeleteTextures(1, &t.name)
	delete(b.textures, id)
}

// Upload implements the Backend interface.
func (b *GL32) Upload(id TextureID, format PixelFormat, rect Rect, data []byte) {
	t, ok := b.textures[id]
	if !ok {
		return
	}
	tuple := formatTuple(t.format)

	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	gl.BindTexture(gl.TEXTURE_2D, t.name)
	gl.TexSubImage2D(gl.TEXTURE_2D, 0,
		int32(rect.X), int32(rect.Y), int32(rect.W), int32(rect.H),
		tuple.format, tuple.typ, gl.Ptr(data))
}

// Download implements the Backend interface. The texture is attached to
// the read framebuffer so that subregions can be read back.
func (b *GL32) Download(id TextureID, format PixelFormat, rect Rect, data []byte) {
	t, ok := b.textures[id]
	if !ok {
		return
	}
	tuple := formatTuple(t.format)

	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, b.readFBO)
	gl.FramebufferTexture2D(gl.READ_FRAMEBUFFER, attachmentFor(t.format),
		gl.TEXTURE_2D, t.name, 0)
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
	gl.ReadPixels(int32(rect.X), int32(rect.Y), int32(rect.W), int32(rect.H),
		tuple.format, tuple.typ, gl.Ptr(data))
	gl.FramebufferTexture2D(gl.READ_FRAMEBUFFER, attachmentFor(t.format),
		gl.TEXTURE_2D, 0, 0)
}

// Blit implements the Backend interface.
func (b *GL32) Blit(src TextureID, srcRect Rect, dst TextureID, dstRect Rect, format PixelFormat) bool {
	s, ok := b.textures[src]
	if !ok {
		return false
	}
	d, ok := b.textures[dst]
	if !ok {
		return false
	}

	attachment := attachmentFor(format)

	var mask uint32
	filter := uint32(gl.LINEAR)
	switch attachment {
	case gl.DEPTH_ATTACHMENT:
		mask = gl.DEPTH_BUFFER_BIT
		filter = gl.NEAREST
	case gl.DEPTH_STENCIL_ATTACHMENT:
		mask = gl.DEPTH_BUFFER_BIT | gl.STENCIL_BUFFER_BIT
		filter = gl.NEAREST
	default:
		mask = gl.COLOR_BUFFER_BIT
		if srcRect.W == dstRect.W && srcRect.H == dstRect.H {
			filter = gl.NEAREST
		}
	}

	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, b.readFBO)
	gl.FramebufferTexture2D(gl.READ_FRAMEBUFFER, attachment, gl.TEXTURE_2D, s.name, 0)
	gl.BindFramebuffer(gl.DRAW_FRAMEBUFFER, b.drawFBO)
	gl.FramebufferTexture2D(gl.DRAW_FRAMEBUFFER, attachment, gl.TEXTURE_2D, d.name, 0)

	gl.Disable(gl.SCISSOR_TEST)
	gl.BlitFramebuffer(
		int32(srcRect.X), int32(srcRect.Y),
		int32(srcRect.X+srcRect.W), int32(srcRect.Y+srcRect.H),
		int32(dstRect.X), int32(dstRect.Y),
		int32(dstRect.X+dstRect.W), int32(dstRect.Y+dstRect.H),
		mask, filter)

	gl.FramebufferTexture2D(gl.READ_FRAMEBUFFER, attachment, gl.TEXTURE_2D, 0, 0)
	gl.FramebufferTexture2D(gl.DRAW_FRAMEBUFFER, attachment, gl.TEXTURE_2D, 0, 0)

	return true
}

// Fill implements the Backend interface.
func (b *GL32) Fill(id TextureID, format PixelFormat, rect Rect, value FillValue) {
	t, ok := b.textures[id]
	if !ok {
		return
	}

	attachment := attachmentFor(t.format)

	gl.BindFramebuffer(gl.DRAW_FRAMEBUFFER, b.drawFBO)
	gl.FramebufferTexture2D(gl.DRAW_FRAMEBUFFER, attachment, gl.TEXTURE_2D, t.name, 0)

	gl.Enable(gl.SCISSOR_TEST)
	gl.Scissor(int32(rect.X), int32(rect.Y), int32(rect.W), int32(rect.H))
	gl.ColorMask(true, true, true, true)
	gl.DepthMask(true)
	gl.StencilMask(0xff)

	switch attachment {
	case gl.DEPTH_ATTACHMENT:
		gl.ClearBufferfv(gl.DEPTH, 0, &value.Depth)
	case gl.DEPTH_STENCIL_ATTACHMENT:
		gl.ClearBufferfi(gl.DEPTH_STENCIL, 0, value.Depth, int32(value.Stencil))
	default:
		gl.ClearBufferfv(gl.COLOR, 0, &value.Color[0])
	}

	gl.Disable(gl.SCISSOR_TEST)
	gl.FramebufferTexture2D(gl.DRAW_FRAMEBUFFER, attachment, gl.TEXTURE_2D, 0, 0)
}

func compileShader(typ uint32, source string) (uint32, error) {
	handle := gl.CreateShader(typ)

	csource, free := gl.Strs(source + "\x00")
	gl.ShaderSource(handle, 1, csource, nil)
	free()
	gl.CompileShader(handle)

	var isCompiled int32
	gl.GetShaderiv(handle, gl.COMPILE_STATUS, &isCompiled)
	if isCompiled == 0 {
		var logLength int32
		gl.GetShaderiv(handle, gl.INFO_LOG_LENGTH, &logLength)
		log := strings.Repeat("\x00", int(logLength+1))
		if logLength > 0 {
			gl.GetShaderInfoLog(handle, logLength, &logLength, gl.Str(log))
		}
		gl.DeleteShader(handle)

		name := "vertex"
		switch typ {
		case gl.GEOMETRY_SHADER:
			name = "geometry"
		case gl.FRAGMENT_SHADER:
			name = "fragment"
		}
		return 0, curated.Errorf(ShaderCompilation, name, strings.TrimRight(log, "\x00"))
	}

	return handle, nil
}

// CompileProgram implements the Backend interface.
func (b *GL32) CompileProgram(vertex string, geometry string, fragment string) (ProgramID, error) {
	program := gl.CreateProgram()

	stages := []struct {
		typ    uint32
		source string
	}{
		{gl.VERTEX_SHADER, vertex},
		{gl.GEOMETRY_SHADER, geometry},
		{gl.FRAGMENT_SHADER, fragment},
	}

	var handles []uint32
	for _, s := range stages {
		if s.source == "" {
			continue
		}
		h, err := compileShader(s.typ, s.source)
		if err != nil {
			gl.DeleteProgram(program)
			return 0, err
		}
		gl.AttachShader(program, h)
		handles = append(handles, h)
	}

	if b.programBinaries {
		gl.ProgramParameteri(program, gl.PROGRAM_BINARY_RETRIEVABLE_HINT, gl.TRUE)
	}

	gl.LinkProgram(program)

	// the individual shaders are no longer needed once linked
	for _, h := range handles {
		gl.DeleteShader(h)
	}

	var isLinked int32
	gl.GetProgramiv(program, gl.LINK_STATUS, &isLinked)
	if isLinked == 0 {
		var logLength int32
		gl.GetProgramiv(program, gl.INFO_LOG_LENGTH, &logLength)
		log := strings.Repeat("\x00", int(logLength+1))
		if logLength > 0 {
			gl.GetProgramInfoLog(program, logLength, &logLength, gl.Str(log))
		}
		gl.DeleteProgram(program)
		return 0, curated.Errorf(ProgramLink, strings.TrimRight(log, "\x00"))
	}

	b.bindProgramInterfaces(program)

	b.nextProgram++
	b.programs[b.nextProgram] = program
	return b.nextProgram, nil
}

// bindProgramInterfaces assigns the fixed texture units and the shared
// uniform block. GLSL 330 cannot express the bindings in source.
func (b *GL32) bindProgramInterfaces(program uint32) {
	gl.UseProgram(program)

	samplers := []string{
		"tex0", "tex1", "tex2",
		"lighting_lut", "fog_lut", "proctex_lut", "proctex_color_map",
	}
	for unit, name := range samplers {
		loc := gl.GetUniformLocation(program, gl.Str(name+"\x00"))
		if loc >= 0 {
			gl.Uniform1i(loc, int32(unit))
		}
	}

	idx := gl.GetUniformBlockIndex(program, gl.Str("shader_data\x00"))
	if idx != gl.INVALID_INDEX {
		gl.UniformBlockBinding(program, idx, 0)
	}
}

// DestroyProgram implements the Backend interface.
func (b *GL32) DestroyProgram(id ProgramID) {
	p, ok := b.programs[id]
	if !ok {
		return
	}
	gl.DeleteProgram(p)
	delete(b.programs, id)
}

// ProgramBinary implements the Backend interface.
func (b *GL32) ProgramBinary(id ProgramID) (uint32, []byte, error) {
	if !b.programBinaries {
		return 0, nil, curated.Errorf(BinariesUnsupported)
	}
	p, ok := b.programs[id]
	if !ok {
		return 0, nil, curated.Errorf(NoSuchProgram, id)
	}

	var length int32
	gl.GetProgramiv(p, gl.PROGRAM_BINARY_LENGTH, &length)
	if length <= 0 {
		return 0, nil, curated.Errorf(BinariesUnsupported)
	}

	data := make([]byte, length)
	var format uint32
	gl.GetProgramBinary(p, length, &length, &format, gl.Ptr(data))
	return format, data[:length], nil
}

// LoadProgramBinary implements the Backend interface.
func (b *GL32) LoadProgramBinary(format uint32, data []byte) (ProgramID, error) {
	if !b.programBinaries {
		return 0, curated.Errorf(BinariesUnsupported)
	}

	program := gl.CreateProgram()
	gl.ProgramBinary(program, format, gl.Ptr(data), int32(len(data)))

	var isLinked int32
	gl.GetProgramiv(program, gl.LINK_STATUS, &isLinked)
	if isLinked == 0 {
		gl.DeleteProgram(program)
		return 0, curated.Errorf(ProgramLink, "stale program binary")
	}

	b.bindProgramInterfaces(program)

	b.nextProgram++
	b.programs[b.nextProgram] = program
	return b.nextProgram, nil
}

func glWrap(w WrapMode) int32 {
	switch w {
	case WrapClampToBorder:
		return gl.CLAMP_TO_BORDER
	case WrapRepeat:
		return gl.REPEAT
	case WrapMirroredRepeat:
		return gl.MIRRORED_REPEAT
	}
	return gl.CLAMP_TO_EDGE
}

// CreateSampler implements the Backend interface.
func (b *GL32) CreateSampler(cfg SamplerConfig) SamplerID {
	var name uint32
	gl.GenSamplers(1, &name)

	mag := int32(gl.NEAREST)
	if cfg.MagLinear {
		mag = gl.LINEAR
	}
	min := int32(gl.NEAREST_MIPMAP_NEAREST)
	switch {
	case cfg.MinLinear && cfg.MipLinear:
		min = gl.LINEAR_MIPMAP_LINEAR
	case cfg.MinLinear:
		min = gl.LINEAR_MIPMAP_NEAREST
	case cfg.MipLinear:
		min = gl.NEAREST_MIPMAP_LINEAR
	}

	gl.SamplerParameteri(name, gl.TEXTURE_MAG_FILTER, mag)
	gl.SamplerParameteri(name, gl.TEXTURE_MIN_FILTER, min)
	gl.SamplerParameteri(name, gl.TEXTURE_WRAP_S, glWrap(cfg.WrapS))
	gl.SamplerParameteri(name, gl.TEXTURE_WRAP_T, glWrap(cfg.WrapT))
	gl.SamplerParameterfv(name, gl.TEXTURE_BORDER_COLOR, &cfg.BorderColor[0])
	gl.SamplerParameteri(name, gl.TEXTURE_MIN_LOD, int32(cfg.LODMin))
	gl.SamplerParameteri(name, gl.TEXTURE_MAX_LOD, int32(cfg.LODMax))
	gl.SamplerParameterf(name, gl.TEXTURE_LOD_BIAS, cfg.LODBias)

	b.nextSampler++
	b.samplers[b.nextSampler] = name
	return b.nextSampler
}

// DestroySampler implements the Backend interface.
func (b *GL32) DestroySampler(id SamplerID) {
	s, ok := b.samplers[id]
	if !ok {
		return
	}
	gl.DeleteSamplers(1, &s)
	delete(b.samplers, id)
}

func glCompare(op CompareOp) uint32 {
	switch op {
	case CompareOpNever:
		return gl.NEVER
	case CompareOpEqual:
		return gl.EQUAL
	case CompareOpNotEqual:
		return gl.NOTEQUAL
	case CompareOpLess:
		return gl.LESS
	case CompareOpLessEqual:
		return gl.LEQUAL
	case CompareOpGreater:
		return gl.GREATER
	case CompareOpGreaterEqual:
		return gl.GEQUAL
	}
	return gl.ALWAYS
}

func glStencilOp(op StencilOp) uint32 {
	switch op {
	case StencilOpZero:
		return gl.ZERO
	case StencilOpReplace:
		return gl.REPLACE
	case StencilOpIncrement:
		return gl.INCR
	case StencilOpDecrement:
		return gl.DECR
	case StencilOpInvert:
		return gl.INVERT
	case StencilOpIncrementWrap:
		return gl.INCR_WRAP
	case StencilOpDecrementWrap:
		return gl.DECR_WRAP
	}
	return gl.KEEP
}

func glBlendEq(eq BlendEq) uint32 {
	switch eq {
	case BlendEqSubtract:
		return gl.FUNC_SUBTRACT
	case BlendEqReverseSubtract:
		return gl.FUNC_REVERSE_SUBTRACT
	case BlendEqMin:
		return gl.MIN
	case BlendEqMax:
		return gl.MAX
	}
	return gl.FUNC_ADD
}

func glBlendFn(fn BlendFn) uint32 {
	switch fn {
	case BlendZero:
		return gl.ZERO
	case BlendSrcColor:
		return gl.SRC_COLOR
	case BlendOneMinusSrcColor:
		return gl.ONE_MINUS_SRC_COLOR
	case BlendDstColor:
		return gl.DST_COLOR
	case BlendOneMinusDstColor:
		return gl.ONE_MINUS_DST_COLOR
	case BlendSrcAlpha:
		return gl.SRC_ALPHA
	case BlendOneMinusSrcAlpha:
		return gl.ONE_MINUS_SRC_ALPHA
	case BlendDstAlpha:
		return gl.DST_ALPHA
	case BlendOneMinusDstAlpha:
		return gl.ONE_MINUS_DST_ALPHA
	case BlendConstantColor:
		return gl.CONSTANT_COLOR
	case BlendOneMinusConstantColor:
		return gl.ONE_MINUS_CONSTANT_COLOR
	case BlendConstantAlpha:
		return gl.CONSTANT_ALPHA
	case BlendOneMinusConstantAlpha:
		return gl.ONE_MINUS_CONSTANT_ALPHA
	case BlendSrcAlphaSaturate:
		return gl.SRC_ALPHA_SATURATE
	}
	return gl.ONE
}

func glLogicOp(op LogicOp) uint32 {
	return gl.CLEAR + uint32(op)
}

// DrawState implements the Backend interface.
func (b *GL32) DrawState(state *DrawState) {
	gl.BindFramebuffer(gl.DRAW_FRAMEBUFFER, b.drawFBO)

	if t, ok := b.textures[state.ColorTexture]; ok {
		gl.FramebufferTexture2D(gl.DRAW_FRAMEBUFFER, gl.COLOR_ATTACHMENT0,
			gl.TEXTURE_2D, t.name, 0)
	} else {
		gl.FramebufferTexture2D(gl.DRAW_FRAMEBUFFER, gl.COLOR_ATTACHMENT0,
			gl.TEXTURE_2D, 0, 0)
	}

	gl.FramebufferTexture2D(gl.DRAW_FRAMEBUFFER, gl.DEPTH_STENCIL_ATTACHMENT,
		gl.TEXTURE_2D, 0, 0)
	gl.FramebufferTexture2D(gl.DRAW_FRAMEBUFFER, gl.DEPTH_ATTACHMENT,
		gl.TEXTURE_2D, 0, 0)
	if t, ok := b.textures[state.DepthTexture]; ok {
		gl.FramebufferTexture2D(gl.DRAW_FRAMEBUFFER, attachmentFor(t.format),
			gl.TEXTURE_2D, t.name, 0)
	}

	if p, ok := b.programs[state.Program]; ok {
		gl.UseProgram(p)
	}

	gl.Viewport(int32(state.Viewport.X), int32(state.Viewport.Y),
		int32(state.Viewport.W), int32(state.Viewport.H))

	if state.Scissor.W > 0 && state.Scissor.H > 0 {
		gl.Enable(gl.SCISSOR_TEST)
		gl.Scissor(int32(state.Scissor.X), int32(state.Scissor.Y),
			int32(state.Scissor.W), int32(state.Scissor.H))
	} else {
		gl.Disable(gl.SCISSOR_TEST)
	}

	for i, id := range state.Textures {
		gl.ActiveTexture(uint32(gl.TEXTURE0 + i))
		if t, ok := b.textures[id]; ok {
			gl.BindTexture(gl.TEXTURE_2D, t.name)
		} else {
			gl.BindTexture(gl.TEXTURE_2D, 0)
		}
		if s, ok := b.samplers[state.Samplers[i]]; ok {
			gl.BindSampler(uint32(i), s)
		} else {
			gl.BindSampler(uint32(i), 0)
		}
	}

	for i, name := range b.lutTextures {
		gl.ActiveTexture(uint32(gl.TEXTURE0 + len(state.Textures) + i))
		gl.BindTexture(gl.TEXTURE_1D, name)
	}

	if state.CullFront || state.CullBack {
		gl.Enable(gl.CULL_FACE)
		switch {
		case state.CullFront && state.CullBack:
			gl.CullFace(gl.FRONT_AND_BACK)
		case state.CullFront:
			gl.CullFace(gl.FRONT)
		default:
			gl.CullFace(gl.BACK)
		}
	} else {
		gl.Disable(gl.CULL_FACE)
	}
	if state.FrontCCW {
		gl.FrontFace(gl.CCW)
	} else {
		gl.FrontFace(gl.CW)
	}

	if state.DepthTestEnabled {
		gl.Enable(gl.DEPTH_TEST)
		gl.DepthFunc(glCompare(state.DepthFunc))
	} else {
		gl.Disable(gl.DEPTH_TEST)
	}
	gl.DepthMask(state.DepthWrite)
	gl.ColorMask(state.ColorMask[0], state.ColorMask[1], state.ColorMask[2], state.ColorMask[3])

	if state.StencilEnabled {
		gl.Enable(gl.STENCIL_TEST)
		gl.StencilFunc(glCompare(state.StencilFunc), int32(state.StencilRef), uint32(state.StencilInputMask))
		gl.StencilOp(glStencilOp(state.StencilFail),
			glStencilOp(state.StencilZFail), glStencilOp(state.StencilZPass))
		gl.StencilMask(uint32(state.StencilWriteMask))
	} else {
		gl.Disable(gl.STENCIL_TEST)
	}

	if state.BlendEnabled {
		gl.Disable(gl.COLOR_LOGIC_OP)
		gl.Enable(gl.BLEND)
		gl.BlendEquationSeparate(glBlendEq(state.BlendEqRGB), glBlendEq(state.BlendEqAlpha))
		gl.BlendFuncSeparate(
			glBlendFn(state.BlendSrcRGB), glBlendFn(state.BlendDstRGB),
			glBlendFn(state.BlendSrcAlpha), glBlendFn(state.BlendDstAlpha))
		gl.BlendColor(state.BlendColor[0], state.BlendColor[1],
			state.BlendColor[2], state.BlendColor[3])
	} else {
		gl.Disable(gl.BLEND)
		if state.LogicOpEnabled {
			gl.Enable(gl.COLOR_LOGIC_OP)
			gl.LogicOp(glLogicOp(state.LogicOp))
		} else {
			gl.Disable(gl.COLOR_LOGIC_OP)
		}
	}
}

// Draw implements the Backend interface.
func (b *GL32) Draw(topology Topology, first int, count int) {
	mode := uint32(gl.TRIANGLES)
	switch topology {
	case TriangleStrip:
		mode = gl.TRIANGLE_STRIP
	case TriangleFan:
		mode = gl.TRIANGLE_FAN
	}
	gl.BindVertexArray(b.vao)
	gl.DrawArrays(mode, int32(first), int32(count))
}

// DrawIndexed implements the Backend interface.
func (b *GL32) DrawIndexed(topology Topology, first int, count int) {
	mode := uint32(gl.TRIANGLES)
	switch topology {
	case TriangleStrip:
		mode = gl.TRIANGLE_STRIP
	case TriangleFan:
		mode = gl.TRIANGLE_FAN
	}
	gl.BindVertexArray(b.vao)
	gl.DrawElements(mode, int32(count), gl.UNSIGNED_SHORT,
		gl.PtrOffset(first*2))
}

func glAttribType(t AttribType) uint32 {
	switch t {
	case AttribByte:
		return gl.BYTE
	case AttribUByte:
		return gl.UNSIGNED_BYTE
	case AttribShort:
		return gl.SHORT
	}
	return gl.FLOAT
}

// SetVertexLayout implements the Backend interface.
func (b *GL32) SetVertexLayout(stride int, attrs []VertexAttrib) {
	gl.BindVertexArray(b.vao)
	gl.BindBuffer(gl.ARRAY_BUFFER, b.vbo)
	for loc := 0; loc < 16; loc++ {
		gl.DisableVertexAttribArray(uint32(loc))
	}
	for _, a := range attrs {
		gl.EnableVertexAttribArray(uint32(a.Location))
		gl.VertexAttribPointer(uint32(a.Location), int32(a.Components),
			glAttribType(a.Type), false, int32(stride), gl.PtrOffset(a.Offset))
	}
}

// StreamVertices implements the Backend interface. The buffer is orphaned
// when the new data would not fit.
func (b *GL32) StreamVertices(data []byte, stride int) int {
	gl.BindBuffer(gl.ARRAY_BUFFER, b.vbo)

	if b.streamStride != stride || b.streamOffset+len(data) > streamBufferSize {
		gl.BufferData(gl.ARRAY_BUFFER, streamBufferSize, nil, gl.STREAM_DRAW)
		b.streamOffset = 0
		b.streamStride = stride
	}

	gl.BufferSubData(gl.ARRAY_BUFFER, b.streamOffset, len(data), gl.Ptr(data))
	first := b.streamOffset / stride
	b.streamOffset += len(data)
	return first
}

// StreamIndices implements the Backend interface. The buffer is orphaned
// when the new indices would not fit.
func (b *GL32) StreamIndices(indices []uint16) int {
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, b.ebo)

	size := len(indices) * 2
	if b.indexOffset+size > indexBufferSize {
		gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, indexBufferSize, nil, gl.STREAM_DRAW)
		b.indexOffset = 0
	}

	gl.BufferSubData(gl.ELEMENT_ARRAY_BUFFER, b.indexOffset, size, gl.Ptr(indices))
	first := b.indexOffset / 2
	b.indexOffset += size
	return first
}

// SetUniforms implements the Backend interface. The block is orphaned on
// every update.
func (b *GL32) SetUniforms(data []byte) {
	gl.BindBuffer(gl.UNIFORM_BUFFER, b.ubo)
	gl.BufferData(gl.UNIFORM_BUFFER, len(data), gl.Ptr(data), gl.STREAM_DRAW)
}

// UploadLUT implements the Backend interface.
func (b *GL32) UploadLUT(slot int, offset int, texels [][2]float32) {
	if slot < 0 || slot >= numLUTSlots || len(texels) == 0 {
		return
	}
	gl.BindTexture(gl.TEXTURE_1D, b.lutTextures[slot])
	gl.TexSubImage1D(gl.TEXTURE_1D, 0, int32(offset), int32(len(texels)),
		gl.RG, gl.FLOAT, gl.Ptr(texels))
}

// UploadColorLUT implements the Backend interface.
func (b *GL32) UploadColorLUT(slot int, offset int, texels [][4]float32) {
	if slot < 0 || slot >= numLUTSlots || len(texels) == 0 {
		return
	}
	gl.BindTexture(gl.TEXTURE_1D, b.lutTextures[slot])
	if !b.lutIsColor[slot] {
		gl.TexImage1D(gl.TEXTURE_1D, 0, gl.RGBA32F, lutTextureSize, 0, gl.RGBA, gl.FLOAT, nil)
		b.lutIsColor[slot] = true
	}
	gl.TexSubImage1D(gl.TEXTURE_1D, 0, int32(offset), int32(len(texels)),
		gl.RGBA, gl.FLOAT, gl.Ptr(texels))
}

// BeginPresent readies the window's default framebuffer for a frame of
// screen blits. Only available on the GL backend; used by the display
// layer.
func (b *GL32) BeginPresent(width int, height int) {
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	gl.Disable(gl.SCISSOR_TEST)
	gl.Viewport(0, 0, int32(width), int32(height))
	gl.ClearColor(0, 0, 0, 1)
	gl.Clear(gl.COLOR_BUFFER_BIT)
}

// PresentTexture blits a texture to the window's default framebuffer.
// The destination rectangle counts from the top-left corner of the
// window; the blit flips vertically so the cache's top-to-bottom row
// order lands upright on GL's bottom-left origin. Only available on
// the GL backend; used by the display layer.
func (b *GL32) PresentTexture(id TextureID, srcRect Rect, dstRect Rect, windowHeight int) bool {
	t, ok := b.textures[id]
	if !ok {
		return false
	}

	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, b.readFBO)
	gl.FramebufferTexture2D(gl.READ_FRAMEBUFFER, gl.COLOR_ATTACHMENT0, gl.TEXTURE_2D, t.name, 0)
	gl.BindFramebuffer(gl.DRAW_FRAMEBUFFER, 0)

	gl.Disable(gl.SCISSOR_TEST)
	gl.BlitFramebuffer(
		int32(srcRect.X), int32(srcRect.Y),
		int32(srcRect.X+srcRect.W), int32(srcRect.Y+srcRect.H),
		int32(dstRect.X), int32(windowHeight-dstRect.Y),
		int32(dstRect.X+dstRect.W), int32(windowHeight-(dstRect.Y+dstRect.H)),
		gl.COLOR_BUFFER_BIT, gl.LINEAR)

	gl.FramebufferTexture2D(gl.READ_FRAMEBUFFER, gl.COLOR_ATTACHMENT0, gl.TEXTURE_2D, 0, 0)
	return true
}

// Destroy implements the Backend interface.
func (b *GL32) Destroy() {
	for id := range b.textures {
		b.DestroyTexture(id)
	}
	for id := range b.programs {
		b.DestroyProgram(id)
	}
	for id := range b.samplers {
		b.DestroySampler(id)
	}
	gl.DeleteBuffers(1, &b.vbo)
	gl.DeleteBuffers(1, &b.ebo)
	gl.DeleteBuffers(1, &b.ubo)
	gl.DeleteVertexArrays(1, &b.vao)
	gl.DeleteFramebuffers(1, &b.drawFBO)
	gl.DeleteFramebuffers(1, &b.readFBO)
	for i := range b.lutTextures {
		gl.DeleteTextures(1, &b.lutTextures[i])
	}
}
