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

// ColorFormat enumerates the guest color buffer pixel formats.
type ColorFormat uint32

const (
	ColorRGBA8 ColorFormat = iota
	ColorRGB8
	ColorRGB5A1
	ColorRGB565
	ColorRGBA4
)

// BytesPerPixel returns the storage size of one pixel in the format.
func (f ColorFormat) BytesPerPixel() int {
	switch f {
	case ColorRGBA8:
		return 4
	case ColorRGB8:
		return 3
	}
	return 2
}

// DepthFormat enumerates the guest depth buffer pixel formats.
type DepthFormat uint32

const (
	DepthD16   DepthFormat = 0
	DepthD24   DepthFormat = 2
	DepthD24S8 DepthFormat = 3
)

// BytesPerPixel returns the storage size of one depth texel.
func (f DepthFormat) BytesPerPixel() int {
	switch f {
	case DepthD16:
		return 2
	case DepthD24:
		return 3
	}
	return 4
}

// CompareFunc enumerates the comparison functions shared by the depth,
// stencil and alpha tests.
type CompareFunc uint32

const (
	CompareNever CompareFunc = iota
	CompareAlways
	CompareEqual
	CompareNotEqual
	CompareLessThan
	CompareLessThanOrEqual
	CompareGreaterThan
	CompareGreaterThanOrEqual
)

// BlendEquation enumerates the blend equations.
type BlendEquation uint32

const (
	BlendEquationAdd BlendEquation = iota
	BlendEquationSubtract
	BlendEquationReverseSubtract
	BlendEquationMin
	BlendEquationMax
)

// BlendFactor enumerates the blend factors.
type BlendFactor uint32

const (
	FactorZero BlendFactor = iota
	FactorOne
	FactorSourceColor
	FactorOneMinusSourceColor
	FactorDestColor
	FactorOneMinusDestColor
	FactorSourceAlpha
	FactorOneMinusSourceAlpha
	FactorDestAlpha
	FactorOneMinusDestAlpha
	FactorConstantColor
	FactorOneMinusConstantColor
	FactorConstantAlpha
	FactorOneMinusConstantAlpha
	FactorSourceAlphaSaturate
)

// LogicOp enumerates the framebuffer logic operations.
type LogicOp uint32

const (
	LogicOpClear LogicOp = iota
	LogicOpAnd
	LogicOpAndReverse
	LogicOpCopy
	LogicOpSet
	LogicOpCopyInverted
	LogicOpNoOp
	LogicOpInvert
	LogicOpNand
	LogicOpOr
	LogicOpNor
	LogicOpXor
	LogicOpEquiv
	LogicOpAndInverted
	LogicOpOrReverse
	LogicOpOrInverted
)

// StencilAction enumerates the stencil buffer update actions.
type StencilAction uint32

const (
	StencilKeep StencilAction = iota
	StencilZero
	StencilReplace
	StencilIncrement
	StencilDecrement
	StencilInvert
	StencilIncrementWrap
	StencilDecrementWrap
)

// BlendConfig is the decoded alpha blending configuration.
type BlendConfig struct {
	EquationRGB    BlendEquation
	EquationAlpha  BlendEquation
	SrcFactorRGB   BlendFactor
	DstFactorRGB   BlendFactor
	SrcFactorAlpha BlendFactor
	DstFactorAlpha BlendFactor
	Constant       [4]uint8
}

// BlendEnabled returns true when alpha blending is selected over logic
// operations.
func (r *Regs) BlendEnabled() bool {
	return bits(r.Raw[RegColorOperation], 8, 2) == 1
}

// Blend returns the decoded blending configuration.
func (r *Regs) Blend() BlendConfig {
	cfg := r.Raw[RegBlendConfig]
	col := r.Raw[RegBlendColor]
	return BlendConfig{
		EquationRGB:    BlendEquation(bits(cfg, 0, 3)),
		EquationAlpha:  BlendEquation(bits(cfg, 8, 3)),
		SrcFactorRGB:   BlendFactor(bits(cfg, 16, 4)),
		DstFactorRGB:   BlendFactor(bits(cfg, 20, 4)),
		SrcFactorAlpha: BlendFactor(bits(cfg, 24, 4)),
		DstFactorAlpha: BlendFactor(bits(cfg, 28, 4)),
		Constant: [4]uint8{
			uint8(bits(col, 0, 8)),
			uint8(bits(col, 8, 8)),
			uint8(bits(col, 16, 8)),
			uint8(bits(col, 24, 8)),
		},
	}
}

// LogicOp returns the configured framebuffer logic operation. It only
// applies when blending is disabled.
func (r *Regs) LogicOp() LogicOp {
	return LogicOp(bits(r.Raw[RegLogicOp], 0, 4))
}

// AlphaTest returns the alpha test configuration. The reference value is
// an 8-bit fixed point fraction.
func (r *Regs) AlphaTest() (enabled bool, fn CompareFunc, ref uint8) {
	v := r.Raw[RegAlphaTest]
	return bit(v, 0), CompareFunc(bits(v, 4, 3)), uint8(bits(v, 8, 8))
}

// StencilTest is the decoded stencil test configuration.
type StencilTest struct {
	Enabled     bool
	Func        CompareFunc
	Ref         uint8
	InputMask   uint8
	WriteMask   uint8
	FailAction  StencilAction
	ZFailAction StencilAction
	ZPassAction StencilAction
}

// Stencil returns the decoded stencil test configuration.
func (r *Regs) Stencil() StencilTest {
	test := r.Raw[RegStencilTest]
	op := r.Raw[RegStencilOp]
	return StencilTest{
		Enabled:     bit(test, 0),
		Func:        CompareFunc(bits(test, 4, 3)),
		WriteMask:   uint8(bits(test, 8, 8)),
		Ref:         uint8(bits(test, 16, 8)),
		InputMask:   uint8(bits(test, 24, 8)),
		FailAction:  StencilAction(bits(op, 0, 3)),
		ZFailAction: StencilAction(bits(op, 4, 3)),
		ZPassAction: StencilAction(bits(op, 8, 3)),
	}
}

// DepthTest returns the depth test configuration along with the color and
// depth write masks.
func (r *Regs) DepthTest() (enabled bool, fn CompareFunc) {
	v := r.Raw[RegDepthColorMask]
	return bit(v, 0), CompareFunc(bits(v, 4, 3))
}

// ColorWriteMask returns the per-channel color write enables.
func (r *Regs) ColorWriteMask() (red, green, blue, alpha bool) {
	v := r.Raw[RegDepthColorMask]
	return bit(v, 8), bit(v, 9), bit(v, 10), bit(v, 11)
}

// DepthWriteEnabled returns true when the depth test writes its result
// back to the depth buffer.
func (r *Regs) DepthWriteEnabled() bool {
	return bit(r.Raw[RegDepthColorMask], 12)
}

// FramebufferConfig describes the current render target.
type FramebufferConfig struct {
	ColorAddr   memorymap.PAddr
	DepthAddr   memorymap.PAddr
	ColorFormat ColorFormat
	DepthFormat DepthFormat
	Width       uint32
	Height      uint32
}

// Framebuffer returns the decoded render target configuration. Buffer
// addresses are stored shifted right by three bits.
func (r *Regs) Framebuffer() FramebufferConfig {
	dim := r.Raw[RegFramebufferDim]
	return FramebufferConfig{
		ColorAddr:   memorymap.PAddr(r.Raw[RegColorBufferAddr] << 3),
		DepthAddr:   memorymap.PAddr(r.Raw[RegDepthBufferAddr] << 3),
		ColorFormat: ColorFormat(bits(r.Raw[RegColorFormat], 16, 3)),
		DepthFormat: DepthFormat(bits(r.Raw[RegDepthFormat], 0, 2)),
		Width:       bits(dim, 0, 11),
		Height:      bits(dim, 12, 10) + 1,
	}
}
