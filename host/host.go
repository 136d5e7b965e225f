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

// TextureID identifies a texture owned by a Backend. The zero value is
// never a valid texture.
type TextureID uint64

// ProgramID identifies a linked shader program owned by a Backend. The
// zero value is never a valid program.
type ProgramID uint64

// BufferID identifies a buffer object owned by a Backend.
type BufferID uint64

// SamplerID identifies a sampler object owned by a Backend.
type SamplerID uint64

// SamplerConfig describes texture sampling state.
type SamplerConfig struct {
	MagLinear   bool
	MinLinear   bool
	MipLinear   bool
	WrapS       WrapMode
	WrapT       WrapMode
	BorderColor [4]float32
	LODMin      int
	LODMax      int
	LODBias     float32
}

// WrapMode enumerates the texture coordinate wrap modes a sampler can
// use.
type WrapMode int

const (
	WrapClampToEdge WrapMode = iota
	WrapClampToBorder
	WrapRepeat
	WrapMirroredRepeat
)

// Topology enumerates the primitive types a draw can emit.
type Topology int

const (
	Triangles Topology = iota
	TriangleStrip
	TriangleFan
)

// Capabilities describes optional features of a Backend.
type Capabilities struct {
	// ProgramBinaries is true when program binaries can be retrieved and
	// reloaded. Required by the precompiled shader cache.
	ProgramBinaries bool

	// ClearTexture is true when a texture subregion can be filled
	// without binding it to a framebuffer.
	ClearTexture bool
}

// Backend is the host GPU as seen by the surface cache and the
// rasterizer. All methods must be called from the thread that owns the
// backend's context.
type Backend interface {
	Caps() Capabilities

	// CreateTexture allocates immutable storage of the given format and
	// dimensions.
	CreateTexture(format PixelFormat, width int, height int) TextureID
	DestroyTexture(id TextureID)

	// Upload writes pixels to a texture subregion. The data is tightly
	// packed rows of rect.W pixels in the texture's format.
	Upload(id TextureID, format PixelFormat, rect Rect, data []byte)

	// Download reads a texture subregion into data. The inverse of
	// Upload.
	Download(id TextureID, format PixelFormat, rect Rect, data []byte)

	// Blit copies and scales a subregion between two textures of the
	// same class (color to color, depth to depth). Returns false if the
	// backend cannot perform the blit.
	Blit(src TextureID, srcRect Rect, dst TextureID, dstRect Rect, format PixelFormat) bool

	// Fill sets every pixel of a texture subregion to a fixed value.
	Fill(id TextureID, format PixelFormat, rect Rect, value FillValue)

	// CompileProgram builds a shader program from GLSL sources. The
	// geometry source may be empty.
	CompileProgram(vertex string, geometry string, fragment string) (ProgramID, error)
	DestroyProgram(id ProgramID)

	// ProgramBinary retrieves the driver binary of a linked program.
	// Only valid when Caps().ProgramBinaries is true.
	ProgramBinary(id ProgramID) (format uint32, data []byte, err error)

	// LoadProgramBinary relinks a program from a driver binary
	// previously returned by ProgramBinary.
	LoadProgramBinary(format uint32, data []byte) (ProgramID, error)

	CreateSampler(cfg SamplerConfig) SamplerID
	DestroySampler(id SamplerID)

	// DrawState binds the full pipeline state for the next Draw.
	DrawState(state *DrawState)

	// Draw issues vertices from the currently bound stream.
	Draw(topology Topology, first int, count int)

	// DrawIndexed issues vertices through indices previously written with
	// StreamIndices. first is the value returned by StreamIndices.
	DrawIndexed(topology Topology, first int, count int)

	// SetVertexLayout describes how the vertex stream maps onto shader
	// input attributes. The layout stays bound until replaced.
	SetVertexLayout(stride int, attrs []VertexAttrib)

	// StreamVertices appends vertex data to the backend's vertex stream
	// and returns the index of the first vertex written.
	StreamVertices(data []byte, stride int) int

	// StreamIndices appends 16-bit indices to the backend's index stream
	// and returns the position of the first index written.
	StreamIndices(indices []uint16) int

	// SetUniforms replaces the contents of the uniform block shared by
	// every generated shader.
	SetUniforms(data []byte)

	// UploadLUT writes lookup table texels to one of the auxiliary LUT
	// textures used by the fragment shaders. Each texel is a value and
	// delta pair.
	UploadLUT(slot int, offset int, texels [][2]float32)

	// UploadColorLUT is the RGBA variant of UploadLUT. The first upload
	// to a slot switches the slot's texture to a colour format.
	UploadColorLUT(slot int, offset int, texels [][4]float32)

	Destroy()
}

// AttribType enumerates the component types a vertex attribute can
// carry. All of them arrive in the shader as floats, unconverted.
type AttribType int

const (
	AttribByte AttribType = iota
	AttribUByte
	AttribShort
	AttribFloat
)

// VertexAttrib maps a slice of the vertex stream onto one shader input
// attribute.
type VertexAttrib struct {
	Location   int
	Components int
	Type       AttribType
	Offset     int
}

// DrawState is the pipeline state bound for a draw call.
type DrawState struct {
	Program ProgramID

	// render targets. DepthTexture may be zero when depth is unused
	ColorTexture TextureID
	DepthTexture TextureID
	ColorFormat  PixelFormat
	DepthFormat  PixelFormat

	Viewport Rect
	Scissor  Rect

	// textures bound to the three guest texture units
	Textures [3]TextureID
	Samplers [3]SamplerID

	CullFront        bool
	CullBack         bool
	FrontCCW         bool
	DepthTestEnabled bool
	DepthWrite       bool
	DepthFunc        CompareOp
	ColorMask        [4]bool
	StencilEnabled   bool
	StencilFunc      CompareOp
	StencilRef       uint8
	StencilInputMask uint8
	StencilWriteMask uint8
	StencilFail      StencilOp
	StencilZFail     StencilOp
	StencilZPass     StencilOp
	BlendEnabled     bool
	BlendEqRGB       BlendEq
	BlendEqAlpha     BlendEq
	BlendSrcRGB      BlendFn
	BlendDstRGB      BlendFn
	BlendSrcAlpha    BlendFn
	BlendDstAlpha    BlendFn
	BlendColor       [4]float32
	LogicOpEnabled   bool
	LogicOp          LogicOp
}

// CompareOp enumerates comparison operators for the depth and stencil
// tests.
type CompareOp int

const (
	CompareOpNever CompareOp = iota
	CompareOpAlways
	CompareOpEqual
	CompareOpNotEqual
	CompareOpLess
	CompareOpLessEqual
	CompareOpGreater
	CompareOpGreaterEqual
)

// StencilOp enumerates stencil update operations.
type StencilOp int

const (
	StencilOpKeep StencilOp = iota
	StencilOpZero
	StencilOpReplace
	StencilOpIncrement
	StencilOpDecrement
	StencilOpInvert
	StencilOpIncrementWrap
	StencilOpDecrementWrap
)

// BlendEq enumerates blend equations.
type BlendEq int

const (
	BlendEqAdd BlendEq = iota
	BlendEqSubtract
	BlendEqReverseSubtract
	BlendEqMin
	BlendEqMax
)

// BlendFn enumerates blend factors.
type BlendFn int

const (
	BlendZero BlendFn = iota
	BlendOne
	BlendSrcColor
	BlendOneMinusSrcColor
	BlendDstColor
	BlendOneMinusDstColor
	BlendSrcAlpha
	BlendOneMinusSrcAlpha
	BlendDstAlpha
	BlendOneMinusDstAlpha
	BlendConstantColor
	BlendOneMinusConstantColor
	BlendConstantAlpha
	BlendOneMinusConstantAlpha
	BlendSrcAlphaSaturate
)

// LogicOp enumerates framebuffer logic operations.
type LogicOp int

const (
	LogicClear LogicOp = iota
	LogicAnd
	LogicAndReverse
	LogicCopy
	LogicSet
	LogicCopyInverted
	LogicNoOp
	LogicInvert
	LogicNand
	LogicOr
	LogicNor
	LogicXor
	LogicEquiv
	LogicAndInverted
	LogicOrReverse
	LogicOrInverted
)
