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

package shadergen_test

import (
	"strings"
	"testing"

	"github.com/tangelo-emu/tangelo/pica"
	"github.com/tangelo-emu/tangelo/rasterizer/shadergen"
	"github.com/tangelo-emu/tangelo/test"
)

func TestFSConfigHashStability(t *testing.T) {
	var regs pica.Regs

	a := shadergen.FSConfigFromRegs(&regs)
	b := shadergen.FSConfigFromRegs(&regs)
	test.Equate(t, a == b, true)
	test.Equate(t, a.Hash() == b.Hash(), true)

	// a register that changes generated source changes the fingerprint
	regs.Raw[pica.RegScissorMode] = uint32(pica.ScissorInclude)
	c := shadergen.FSConfigFromRegs(&regs)
	test.Equate(t, a == c, false)
	test.Equate(t, a.Hash() == c.Hash(), false)
}

func TestFragmentShaderScissor(t *testing.T) {
	var regs pica.Regs

	cfg := shadergen.FSConfigFromRegs(&regs)
	src := shadergen.GenerateFragmentShader(&cfg)
	test.Equate(t, strings.Contains(src, "discard"), false)

	regs.Raw[pica.RegScissorMode] = uint32(pica.ScissorExclude)
	cfg = shadergen.FSConfigFromRegs(&regs)
	src = shadergen.GenerateFragmentShader(&cfg)
	test.Equate(t, strings.Contains(src, "discard"), true)
	test.Equate(t, strings.Contains(src, "scissor_x1"), true)
}

func TestFragmentShaderFog(t *testing.T) {
	var regs pica.Regs
	regs.Raw[pica.RegTexEnvUpdateBuffer] = uint32(pica.FogEnabled)

	cfg := shadergen.FSConfigFromRegs(&regs)
	src := shadergen.GenerateFragmentShader(&cfg)
	test.Equate(t, strings.Contains(src, "fog_lut"), true)
	test.Equate(t, strings.Contains(src, "fog_color"), true)
}

func TestTrivialVertexShader(t *testing.T) {
	src := shadergen.GenerateTrivialVertexShader()
	test.Equate(t, strings.Contains(src, "out VertexData"), true)
	test.Equate(t, strings.Contains(src, "gl_ClipDistance[1] = dot(clip_coef, vert_position);"), true)
}

func TestFixedGeometryShader(t *testing.T) {
	var regs pica.Regs
	cfg := shadergen.FixedGSConfigFromRegs(&regs)
	src := shadergen.GenerateFixedGeometryShader(&cfg)
	test.Equate(t, strings.Contains(src, "layout (triangles) in;"), true)
	test.Equate(t, strings.Contains(src, "EmitVertex();"), true)
}

// assembles a minimal guest program: MOV o0, v0 followed by END, with
// an identity swizzle in descriptor slot 0
func minimalVSSetup() (*pica.ShaderSetup, *pica.Regs) {
	setup := &pica.ShaderSetup{}
	setup.ProgramCode[0] = 0x13 << 26 // MOV o0, v0
	setup.ProgramCode[1] = 0x22 << 26 // END
	setup.SwizzleData[0] = 0x1b<<5 | 0xf

	regs := &pica.Regs{}
	regs.Raw[pica.RegVSOutputMask] = 0x1
	regs.Raw[pica.RegPrimitiveConfig] = 0x0           // one output attribute
	regs.Raw[pica.RegVSOutputSemantics0] = 0x03020100 // position.xyzw

	return setup, regs
}

func TestGenerateVertexShader(t *testing.T) {
	setup, regs := minimalVSSetup()
	cfg := shadergen.VSConfigFromSetup(regs, setup, false)

	src, err := shadergen.GenerateVertexShader(&cfg, setup)
	test.DemandSuccess(t, err)

	test.Equate(t, strings.Contains(src, "vs_out_attr[0].xyzw = (vs_in_reg0.xyzw).xyzw;"), true)
	test.Equate(t, strings.Contains(src, "position.x = vs_out_attr[0].x;"), true)
	test.Equate(t, strings.Contains(src, "gl_Position = position;"), true)
	test.Equate(t, strings.Contains(src, "sanitize_mul"), false)
}

func TestGenerateVertexShaderSanitizedMul(t *testing.T) {
	setup, regs := minimalVSSetup()
	setup.ProgramCode[0] = 0x08 << 26 // MUL o0, v0, v0
	cfg := shadergen.VSConfigFromSetup(regs, setup, true)

	src, err := shadergen.GenerateVertexShader(&cfg, setup)
	test.DemandSuccess(t, err)
	test.Equate(t, strings.Contains(src, "sanitize_mul("), true)
}

func TestGenerateVertexShaderUnsupported(t *testing.T) {
	setup, regs := minimalVSSetup()
	setup.ProgramCode[0] = 0x2a << 26 // EMIT has no host equivalent
	cfg := shadergen.VSConfigFromSetup(regs, setup, false)

	_, err := shadergen.GenerateVertexShader(&cfg, setup)
	test.ExpectedFailure(t, err)
}

func TestVSConfigFingerprint(t *testing.T) {
	setup, regs := minimalVSSetup()
	a := shadergen.VSConfigFromSetup(regs, setup, false)
	b := shadergen.VSConfigFromSetup(regs, setup, false)
	test.Equate(t, a == b, true)
	test.Equate(t, a.Hash() == b.Hash(), true)

	setup.ProgramCode[100] = 0xdeadbeef
	c := shadergen.VSConfigFromSetup(regs, setup, false)
	test.Equate(t, a.Hash() == c.Hash(), false)
}
