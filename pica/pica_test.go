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

package pica_test

import (
	"testing"

	"github.com/tangelo-emu/tangelo/pica"
	"github.com/tangelo-emu/tangelo/test"
)

func TestFloat24(t *testing.T) {
	// 1.0 in float24: exponent at bias (63), zero mantissa
	test.Equate(t, pica.Float24FromRaw(0x3f0000), float32(1.0))
	test.Equate(t, pica.Float24FromRaw(0x000000), float32(0.0))

	// -2.0: sign bit, exponent 64
	test.Equate(t, pica.Float24FromRaw(0xc00000), float32(-2.0))

	// 0.5: exponent 62
	test.Equate(t, pica.Float24FromRaw(0x3e0000), float32(0.5))

	// 1.5: exponent 63, top mantissa bit
	test.Equate(t, pica.Float24FromRaw(0x3f8000), float32(1.5))
}

func TestFloat16(t *testing.T) {
	test.Equate(t, pica.Float16FromRaw(0x3c00), float32(1.0))
	test.Equate(t, pica.Float16FromRaw(0xc000), float32(-2.0))
}

func TestTextureConfigDecode(t *testing.T) {
	var s pica.State

	// enable texture unit 0
	s.WriteRegister(pica.RegTexturingMain, 0x1, 0xffffffff)

	// height 128, width 256
	s.WriteRegister(pica.RegTexture0Dim, 128|256<<16, 0xffffffff)

	// mag linear, min nearest, wrap t repeat, wrap s mirrored repeat
	s.WriteRegister(pica.RegTexture0Param, 1<<1|2<<8|3<<12, 0xffffffff)

	// address is stored shifted right by 3
	s.WriteRegister(pica.RegTexture0Addr, 0x18000000>>3, 0xffffffff)

	s.WriteRegister(pica.RegTexture0Format, uint32(pica.TexRGB565), 0xffffffff)

	cfg := s.Regs.Texture(0)
	test.Equate(t, cfg.Enabled, true)
	test.Equate(t, cfg.Width, uint32(256))
	test.Equate(t, cfg.Height, uint32(128))
	test.Equate(t, uint32(cfg.Addr), uint32(0x18000000))
	test.Equate(t, int(cfg.Format), int(pica.TexRGB565))
	test.Equate(t, int(cfg.MagFilter), int(pica.TexFilterLinear))
	test.Equate(t, int(cfg.MinFilter), int(pica.TexFilterNearest))
	test.Equate(t, int(cfg.WrapT), int(pica.TexWrapRepeat))
	test.Equate(t, int(cfg.WrapS), int(pica.TexWrapMirroredRepeat))

	// units 1 and 2 remain off
	test.Equate(t, s.Regs.Texture(1).Enabled, false)
	test.Equate(t, s.Regs.Texture(2).Enabled, false)
}

func TestFramebufferDecode(t *testing.T) {
	var s pica.State

	s.WriteRegister(pica.RegColorBufferAddr, 0x18100000>>3, 0xffffffff)
	s.WriteRegister(pica.RegDepthBufferAddr, 0x18200000>>3, 0xffffffff)
	s.WriteRegister(pica.RegColorFormat, uint32(pica.ColorRGBA8)<<16, 0xffffffff)
	s.WriteRegister(pica.RegDepthFormat, uint32(pica.DepthD24S8), 0xffffffff)

	// width 240, height 400 (stored as height-1)
	s.WriteRegister(pica.RegFramebufferDim, 240|399<<12, 0xffffffff)

	fb := s.Regs.Framebuffer()
	test.Equate(t, uint32(fb.ColorAddr), uint32(0x18100000))
	test.Equate(t, uint32(fb.DepthAddr), uint32(0x18200000))
	test.Equate(t, fb.Width, uint32(240))
	test.Equate(t, fb.Height, uint32(400))
	test.Equate(t, int(fb.ColorFormat), int(pica.ColorRGBA8))
	test.Equate(t, int(fb.DepthFormat), int(pica.DepthD24S8))
	test.Equate(t, fb.ColorFormat.BytesPerPixel(), 4)
	test.Equate(t, fb.DepthFormat.BytesPerPixel(), 4)
}

func TestMaskedWrite(t *testing.T) {
	var s pica.State

	s.WriteRegister(pica.RegBlendColor, 0xaabbccdd, 0xffffffff)

	// only the low byte of the mask is applied
	s.WriteRegister(pica.RegBlendColor, 0x11223344, 0x000000ff)
	test.Equate(t, s.Regs.Raw[pica.RegBlendColor], uint32(0xaabbcc44))
}

func TestLightingLUTUpload(t *testing.T) {
	var s pica.State

	// select LUT 3 (fresnel), starting at element 0
	s.WriteRegister(pica.RegLightingLUTIndex, 3<<8, 0xffffffff)

	for i := 0; i < 4; i++ {
		s.WriteRegister(pica.RegLightingLUTData0, uint32(i*100), 0xffffffff)
	}

	test.Equate(t, s.LightingLUTsDirty, true)
	for i := 0; i < 4; i++ {
		test.Equate(t, s.LightingLUTs[3][i].Value, uint32(i*100))
	}

	// the write cursor auto-incremented
	_, index := s.Regs.LightingLUTWriteIndex()
	test.Equate(t, index, 4)
}

func TestShaderProgramUpload(t *testing.T) {
	var s pica.State

	s.WriteRegister(pica.RegVSCodeIndex, 0x10, 0xffffffff)
	s.WriteRegister(pica.RegVSCodeData0, 0xdeadbeef, 0xffffffff)
	s.WriteRegister(pica.RegVSCodeData0, 0xcafef00d, 0xffffffff)

	test.Equate(t, s.VS.ProgramCode[0x10], uint32(0xdeadbeef))
	test.Equate(t, s.VS.ProgramCode[0x11], uint32(0xcafef00d))

	s.WriteRegister(pica.RegVSSwizzleIndex, 0x2, 0xffffffff)
	s.WriteRegister(pica.RegVSSwizzleData0, 0x12345678, 0xffffffff)
	test.Equate(t, s.VS.SwizzleData[0x2], uint32(0x12345678))
}

func TestFloatUniformUpload(t *testing.T) {
	var s pica.State

	// 32-bit mode targeting uniform 5
	s.WriteRegister(pica.RegVSFloatUniformIndex, 5|1<<31, 0xffffffff)

	// components are uploaded in wzyx order
	s.WriteRegister(pica.RegVSFloatUniformData0, 0x40800000, 0xffffffff) // 4.0
	s.WriteRegister(pica.RegVSFloatUniformData0, 0x40400000, 0xffffffff) // 3.0
	s.WriteRegister(pica.RegVSFloatUniformData0, 0x40000000, 0xffffffff) // 2.0
	s.WriteRegister(pica.RegVSFloatUniformData0, 0x3f800000, 0xffffffff) // 1.0

	test.Equate(t, s.VS.FloatUniforms[5][0], float32(1.0))
	test.Equate(t, s.VS.FloatUniforms[5][1], float32(2.0))
	test.Equate(t, s.VS.FloatUniforms[5][2], float32(3.0))
	test.Equate(t, s.VS.FloatUniforms[5][3], float32(4.0))
}

func TestDefaultAttributeUpload(t *testing.T) {
	var s pica.State

	s.WriteRegister(pica.RegFixedAttribIndex, 2, 0xffffffff)

	// upload (1.0, 0.0, 0.0, 1.0) as packed float24. the first word
	// carries w in its top 24 bits, the last word carries x
	s.WriteRegister(pica.RegFixedAttribData0, 0x3f0000<<8, 0xffffffff)
	s.WriteRegister(pica.RegFixedAttribData0, 0x0, 0xffffffff)
	s.WriteRegister(pica.RegFixedAttribData0, 0x3f0000, 0xffffffff)

	test.Equate(t, s.DefaultAttributes[2][0], float32(1.0))
	test.Equate(t, s.DefaultAttributes[2][1], float32(0.0))
	test.Equate(t, s.DefaultAttributes[2][2], float32(0.0))
	test.Equate(t, s.DefaultAttributes[2][3], float32(1.0))
}

func TestAttributeLoaderDecode(t *testing.T) {
	var s pica.State

	s.WriteRegister(pica.RegAttribBase, 0x20000000>>3, 0xffffffff)

	// attribute 0: 3 component float, attribute 1: 2 component short
	s.WriteRegister(pica.RegAttribFormatLow,
		uint32(pica.AttribFloat)|2<<2|(uint32(pica.AttribShort)|1<<2)<<4, 0xffffffff)

	// two attributes in use
	s.WriteRegister(pica.RegAttribFormatHigh, 1<<28, 0xffffffff)

	// loader 0: stride 16, two elements mapping attributes 0 and 1
	s.WriteRegister(pica.RegLoader0Offset, 0x100, 0xffffffff)
	s.WriteRegister(pica.RegLoader0Offset+1, 0|1<<4, 0xffffffff)
	s.WriteRegister(pica.RegLoader0Offset+2, 16<<16|2<<28, 0xffffffff)

	a := s.Regs.Attributes()
	test.Equate(t, uint32(a.BaseAddr), uint32(0x20000000))
	test.Equate(t, a.NumAttribs, 2)
	test.Equate(t, int(a.Format[0]), int(pica.AttribFloat))
	test.Equate(t, a.Components[0], 3)
	test.Equate(t, a.ElementSize(0), 12)
	test.Equate(t, int(a.Format[1]), int(pica.AttribShort))
	test.Equate(t, a.Components[1], 2)
	test.Equate(t, a.ElementSize(1), 4)

	l := a.Loaders[0]
	test.Equate(t, l.Offset, uint32(0x100))
	test.Equate(t, l.Stride, uint32(16))
	test.Equate(t, l.NumElements, 2)
	test.Equate(t, l.Elements[0].Attribute, 0)
	test.Equate(t, l.Elements[1].Attribute, 1)
}

func TestScissorDecode(t *testing.T) {
	var s pica.State

	s.WriteRegister(pica.RegScissorMode, uint32(pica.ScissorInclude), 0xffffffff)
	s.WriteRegister(pica.RegScissorMin, 10|20<<16, 0xffffffff)
	s.WriteRegister(pica.RegScissorMax, 100|200<<16, 0xffffffff)

	test.Equate(t, int(s.Regs.ScissorMode()), int(pica.ScissorInclude))
	x1, y1 := s.Regs.ScissorMin()
	x2, y2 := s.Regs.ScissorMax()
	test.Equate(t, x1, uint32(10))
	test.Equate(t, y1, uint32(20))
	test.Equate(t, x2, uint32(100))
	test.Equate(t, y2, uint32(200))
}
