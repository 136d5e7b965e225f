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
	"fmt"
	"strings"

	"github.com/tangelo-emu/tangelo/curated"
	"github.com/tangelo-emu/tangelo/pica"
)

// Decompilation failures. A caller that sees one falls back to software
// vertex processing with the trivial shader.
const (
	UnsupportedInstruction = "shadergen: unsupported instruction %#02x at offset %d"
	MalformedProgram       = "shadergen: malformed program: %s"
)

// GenerateTrivialVertexShader produces the pass-through vertex shader
// used with software-transformed vertex batches.
func GenerateTrivialVertexShader() string {
	var b strings.Builder
	b.WriteString("#version 330 core\n")
	b.WriteString("layout (location = 0) in vec4 vert_position;\n")
	b.WriteString("layout (location = 1) in vec4 vert_color;\n")
	b.WriteString("layout (location = 2) in vec2 vert_texcoord0;\n")
	b.WriteString("layout (location = 3) in vec2 vert_texcoord1;\n")
	b.WriteString("layout (location = 4) in vec2 vert_texcoord2;\n")
	b.WriteString("layout (location = 5) in float vert_texcoord0_w;\n")
	b.WriteString("layout (location = 6) in vec4 vert_normquat;\n")
	b.WriteString("layout (location = 7) in vec3 vert_view;\n")
	b.WriteString("out VertexData {")
	b.WriteString(vsOutputAttributes)
	b.WriteString("};\n")
	b.WriteString(UniformBlock)
	b.WriteString(`
void main() {
    primary_color = vert_color;
    texcoord0 = vert_texcoord0;
    texcoord1 = vert_texcoord1;
    texcoord2 = vert_texcoord2;
    texcoord0_w = vert_texcoord0_w;
    normquat = vert_normquat;
    view = vert_view;
    gl_Position = vert_position;
    gl_ClipDistance[0] = -vert_position.z;
    gl_ClipDistance[1] = dot(clip_coef, vert_position);
}
`)
	return b.String()
}

// opcodes of the guest shader instruction set
const (
	opAdd   = 0x00
	opDP3   = 0x01
	opDP4   = 0x02
	opDPH   = 0x03
	opEX2   = 0x05
	opLG2   = 0x06
	opMul   = 0x08
	opSGE   = 0x09
	opSLT   = 0x0a
	opFLR   = 0x0b
	opMax   = 0x0c
	opMin   = 0x0d
	opRCP   = 0x0e
	opRSQ   = 0x0f
	opMOVA  = 0x12
	opMOV   = 0x13
	opDPHI  = 0x18
	opSGEI  = 0x1a
	opSLTI  = 0x1b
	opNOP   = 0x21
	opEND   = 0x22
	opCALL  = 0x24
	opCALLC = 0x25
	opCALLU = 0x26
	opIFU   = 0x27
	opIFC   = 0x28
	opLOOP  = 0x29
	opEMIT  = 0x2a
	opJMPC  = 0x2c
	opJMPU  = 0x2d
	opCMP0  = 0x2e
	opCMP1  = 0x2f
)

// vsDecompiler turns guest vertex shader bytecode into GLSL, one
// structured statement per instruction. Subroutines called by the
// program are emitted as GLSL functions.
type vsDecompiler struct {
	cfg   *VSConfig
	setup *pica.ShaderSetup

	body strings.Builder
	subs []subRange
	done map[subRange]bool

	// outSlot maps output register index to output attribute slot
	outSlot [16]int
}

type subRange struct {
	begin uint32
	end   uint32
}

// GenerateVertexShader decompiles the loaded guest program into GLSL.
// An unsupported instruction returns an error; the caller falls back to
// the trivial shader and software processing.
func GenerateVertexShader(cfg *VSConfig, setup *pica.ShaderSetup) (string, error) {
	d := &vsDecompiler{
		cfg:   cfg,
		setup: setup,
		done:  map[subRange]bool{},
	}

	slot := 0
	for i := 0; i < 16; i++ {
		d.outSlot[i] = -1
		if cfg.OutputMask&(1<<i) != 0 {
			d.outSlot[i] = slot
			slot++
		}
	}

	main := subRange{begin: cfg.MainOffset, end: pica.MaxShaderProgramWords}
	if err := d.writeSub(main); err != nil {
		return "", err
	}
	for len(d.subs) > 0 {
		sub := d.subs[0]
		d.subs = d.subs[1:]
		if d.done[sub] {
			continue
		}
		if err := d.writeSub(sub); err != nil {
			return "", err
		}
	}

	var b strings.Builder
	b.WriteString("#version 330 core\n")
	for i := 0; i < pica.NumVertexAttributes; i++ {
		fmt.Fprintf(&b, "layout (location = %d) in vec4 vs_in_reg%d;\n", i, i)
	}
	b.WriteString("out VertexData {")
	b.WriteString(vsOutputAttributes)
	b.WriteString("};\n")
	b.WriteString(UniformBlock)
	b.WriteString("uniform vec4 vs_uniforms_f[96];\n")
	b.WriteString("uniform ivec4 vs_uniforms_i[4];\n")
	b.WriteString("vec4 vs_out_attr[7];\n")
	b.WriteString("vec4 reg_tmp[16];\n")
	b.WriteString("ivec3 address_registers = ivec3(0);\n")
	b.WriteString("bvec2 conditional_code = bvec2(false);\n")
	if cfg.SanitizeMul {
		b.WriteString(`
vec4 sanitize_mul(vec4 lhs, vec4 rhs) {
    vec4 product = lhs * rhs;
    return mix(product, mix(mix(vec4(0.0), product, isnan(rhs)), product, isnan(lhs)), isnan(product));
}
`)
	}

	b.WriteString(d.body.String())

	b.WriteString("\nvoid main() {\n")
	b.WriteString("for (int i = 0; i < 7; i++) vs_out_attr[i] = vec4(0.0, 0.0, 0.0, 1.0);\n")
	fmt.Fprintf(&b, "sub_%d_%d();\n", main.begin, main.end)
	d.writeEpilogue(&b)
	b.WriteString("}\n")

	return b.String(), nil
}

// writeEpilogue routes the output attribute slots to the varyings the
// fragment stage expects, per the semantic configuration.
func (d *vsDecompiler) writeEpilogue(b *strings.Builder) {
	target := func(s uint8) string {
		switch int(s) {
		case pica.SemanticPositionX:
			return "position.x"
		case pica.SemanticPositionY:
			return "position.y"
		case pica.SemanticPositionZ:
			return "position.z"
		case pica.SemanticPositionW:
			return "position.w"
		case pica.SemanticQuatX:
			return "normquat.x"
		case pica.SemanticQuatY:
			return "normquat.y"
		case pica.SemanticQuatZ:
			return "normquat.z"
		case pica.SemanticQuatW:
			return "normquat.w"
		case pica.SemanticColorR:
			return "primary_color.r"
		case pica.SemanticColorG:
			return "primary_color.g"
		case pica.SemanticColorB:
			return "primary_color.b"
		case pica.SemanticColorA:
			return "primary_color.a"
		case pica.SemanticTexcoord0U:
			return "texcoord0.x"
		case pica.SemanticTexcoord0V:
			return "texcoord0.y"
		case pica.SemanticTexcoord1U:
			return "texcoord1.x"
		case pica.SemanticTexcoord1V:
			return "texcoord1.y"
		case pica.SemanticTexcoord0W:
			return "texcoord0_w"
		case pica.SemanticViewX:
			return "view.x"
		case pica.SemanticViewY:
			return "view.y"
		case pica.SemanticViewZ:
			return "view.z"
		case pica.SemanticTexcoord2U:
			return "texcoord2.x"
		case pica.SemanticTexcoord2V:
			return "texcoord2.y"
		}
		return ""
	}

	b.WriteString("vec4 position = vec4(0.0, 0.0, 0.0, 1.0);\n")
	b.WriteString("primary_color = vec4(0.0, 0.0, 0.0, 1.0);\n")
	b.WriteString("texcoord0 = vec2(0.0); texcoord1 = vec2(0.0); texcoord2 = vec2(0.0);\n")
	b.WriteString("texcoord0_w = 0.0;\n")
	b.WriteString("normquat = vec4(0.0, 0.0, 0.0, 1.0);\n")
	b.WriteString("view = vec3(0.0);\n")

	comps := [4]string{"x", "y", "z", "w"}
	for slot := 0; slot < int(d.cfg.NumOutputs) && slot < len(d.cfg.Semantics); slot++ {
		for c := 0; c < 4; c++ {
			if t := target(d.cfg.Semantics[slot][c]); t != "" {
				fmt.Fprintf(b, "%s = vs_out_attr[%d].%s;\n", t, slot, comps[c])
			}
		}
	}

	b.WriteString("gl_Position = position;\n")
	b.WriteString("gl_ClipDistance[0] = -position.z;\n")
	b.WriteString("gl_ClipDistance[1] = dot(clip_coef, position);\n")
}

// source register expressions

func (d *vsDecompiler) srcReg(reg uint32, addrIndex uint32) (string, error) {
	switch {
	case reg < 0x10:
		return fmt.Sprintf("vs_in_reg%d", reg), nil
	case reg < 0x20:
		return fmt.Sprintf("reg_tmp[%d]", reg-0x10), nil
	case reg < 0x80:
		index := fmt.Sprintf("%d", reg-0x20)
		switch addrIndex {
		case 1:
			index += " + address_registers.x"
		case 2:
			index += " + address_registers.y"
		case 3:
			index += " + address_registers.z"
		}
		return fmt.Sprintf("vs_uniforms_f[%s]", index), nil
	}
	return "", curated.Errorf(MalformedProgram, "source register out of range")
}

func (d *vsDecompiler) destReg(reg uint32) (string, error) {
	if reg < 0x10 {
		slot := d.outSlot[reg]
		if slot < 0 {
			// write to a masked-out output register lands nowhere
			return "", nil
		}
		return fmt.Sprintf("vs_out_attr[%d]", slot), nil
	}
	if reg < 0x20 {
		return fmt.Sprintf("reg_tmp[%d]", reg-0x10), nil
	}
	return "", curated.Errorf(MalformedProgram, "destination register out of range")
}

// selector strings for a packed 8-bit swizzle
func swizzleSelector(sel uint32) string {
	comps := [4]byte{'x', 'y', 'z', 'w'}
	var out [4]byte
	for i := 0; i < 4; i++ {
		out[i] = comps[(sel>>uint(6-2*i))&3]
	}
	return string(out[:])
}

// srcExpr applies a swizzle selector and negation to a source register.
func srcExpr(reg string, sel uint32, negate bool) string {
	s := reg + "." + swizzleSelector(sel)
	if negate {
		s = "-" + s
	}
	return s
}

// destMask extracts the enabled destination components in order.
func destMask(mask uint32) string {
	var out []byte
	comps := [4]byte{'x', 'y', 'z', 'w'}
	for i := 0; i < 4; i++ {
		if mask>>(3-uint(i))&1 != 0 {
			out = append(out, comps[i])
		}
	}
	return string(out)
}

type operands struct {
	dest string
	mask string
	src1 string
	src2 string
	src3 string
}

func (d *vsDecompiler) decodeCommon(w uint32, inverted bool) (operands, error) {
	var ops operands

	descID := w & 0x7f
	desc := d.setup.SwizzleData[descID]

	var src1Reg, src2Reg uint32
	addrIndex := w >> 19 & 3
	if inverted {
		src1Reg = w >> 14 & 0x1f
		src2Reg = w >> 7 & 0x7f
	} else {
		src1Reg = w >> 12 & 0x7f
		src2Reg = w >> 7 & 0x1f
	}

	// the short source of each form is 5 bits wide and can only name an
	// input or temporary register. the wide source carries the address
	// register index.
	var err error
	var s1, s2 string
	if inverted {
		s1, err = d.srcReg(src1Reg, 0)
		if err != nil {
			return ops, err
		}
		s2, err = d.srcReg(src2Reg, addrIndex)
	} else {
		s1, err = d.srcReg(src1Reg, addrIndex)
		if err != nil {
			return ops, err
		}
		s2, err = d.srcReg(src2Reg, 0)
	}
	if err != nil {
		return ops, err
	}

	ops.src1 = srcExpr(s1, desc>>5&0xff, desc>>4&1 != 0)
	ops.src2 = srcExpr(s2, desc>>14&0xff, desc>>13&1 != 0)

	destReg := w >> 21 & 0x1f
	ops.dest, err = d.destReg(destReg)
	if err != nil {
		return ops, err
	}
	ops.mask = destMask(desc & 0xf)
	return ops, nil
}

// assign writes a masked assignment; the rhs is component-reduced to the
// mask.
func (d *vsDecompiler) assign(ops operands, rhs string) {
	if ops.dest == "" || ops.mask == "" {
		return
	}
	fmt.Fprintf(&d.body, "%s.%s = (%s).%s;\n", ops.dest, ops.mask, rhs, ops.mask)
}

// assignScalar broadcasts a scalar rhs across the mask.
func (d *vsDecompiler) assignScalar(ops operands, rhs string) {
	if ops.dest == "" || ops.mask == "" {
		return
	}
	fmt.Fprintf(&d.body, "%s.%s = vec4(%s).%s;\n", ops.dest, ops.mask, rhs, ops.mask)
}

func (d *vsDecompiler) mul(a, b string) string {
	if d.cfg.SanitizeMul {
		return fmt.Sprintf("sanitize_mul(%s, %s)", a, b)
	}
	return fmt.Sprintf("%s * %s", a, b)
}

// flow condition expression for IFC/CALLC/JMPC
func flowCondition(w uint32) string {
	op := w >> 22 & 3
	refX := w>>25&1 != 0
	refY := w>>24&1 != 0

	cond := func(ref bool, comp string) string {
		if ref {
			return "conditional_code." + comp
		}
		return "!conditional_code." + comp
	}

	switch op {
	case 0:
		return fmt.Sprintf("%s || %s", cond(refX, "x"), cond(refY, "y"))
	case 1:
		return fmt.Sprintf("%s && %s", cond(refX, "x"), cond(refY, "y"))
	case 2:
		return cond(refX, "x")
	default:
		return cond(refY, "y")
	}
}

var cmpOps = [8]string{"==", "!=", "<", "<=", ">", ">=", "", ""}

// writeSub emits one subroutine covering [begin, end). Instructions are
// decompiled in order; control flow nests as structured GLSL.
func (d *vsDecompiler) writeSub(sub subRange) error {
	d.done[sub] = true
	fmt.Fprintf(&d.body, "\nvoid sub_%d_%d() {\n", sub.begin, sub.end)

	if err := d.writeRange(sub.begin, sub.end, true); err != nil {
		return err
	}

	d.body.WriteString("}\n")
	return nil
}

// writeRange decompiles instructions in [begin, end). topLevel permits
// END to terminate cleanly.
func (d *vsDecompiler) writeRange(begin, end uint32, topLevel bool) error {
	offset := begin
	for offset < end {
		w := d.setup.ProgramCode[offset]
		opcode := w >> 26

		switch opcode {
		case opAdd:
			ops, err := d.decodeCommon(w, false)
			if err != nil {
				return err
			}
			d.assign(ops, fmt.Sprintf("%s + %s", ops.src1, ops.src2))

		case opMul:
			ops, err := d.decodeCommon(w, false)
			if err != nil {
				return err
			}
			d.assign(ops, d.mul(ops.src1, ops.src2))

		case opDP3:
			ops, err := d.decodeCommon(w, false)
			if err != nil {
				return err
			}
			d.assignScalar(ops, fmt.Sprintf("dot(vec3(%s), vec3(%s))", ops.src1, ops.src2))

		case opDP4:
			ops, err := d.decodeCommon(w, false)
			if err != nil {
				return err
			}
			d.assignScalar(ops, fmt.Sprintf("dot(%s, %s)", ops.src1, ops.src2))

		case opDPH, opDPHI:
			ops, err := d.decodeCommon(w, opcode == opDPHI)
			if err != nil {
				return err
			}
			d.assignScalar(ops, fmt.Sprintf("dot(vec4(vec3(%s), 1.0), %s)", ops.src1, ops.src2))

		case opEX2:
			ops, err := d.decodeCommon(w, false)
			if err != nil {
				return err
			}
			d.assignScalar(ops, fmt.Sprintf("exp2(%s.x)", "("+ops.src1+")"))

		case opLG2:
			ops, err := d.decodeCommon(w, false)
			if err != nil {
				return err
			}
			d.assignScalar(ops, fmt.Sprintf("log2(%s.x)", "("+ops.src1+")"))

		case opSGE, opSGEI:
			ops, err := d.decodeCommon(w, opcode == opSGEI)
			if err != nil {
				return err
			}
			d.assign(ops, fmt.Sprintf("vec4(greaterThanEqual(%s, %s))", ops.src1, ops.src2))

		case opSLT, opSLTI:
			ops, err := d.decodeCommon(w, opcode == opSLTI)
			if err != nil {
				return err
			}
			d.assign(ops, fmt.Sprintf("vec4(lessThan(%s, %s))", ops.src1, ops.src2))

		case opFLR:
			ops, err := d.decodeCommon(w, false)
			if err != nil {
				return err
			}
			d.assign(ops, fmt.Sprintf("floor(%s)", ops.src1))

		case opMax:
			ops, err := d.decodeCommon(w, false)
			if err != nil {
				return err
			}
			d.assign(ops, fmt.Sprintf("max(%s, %s)", ops.src1, ops.src2))

		case opMin:
			ops, err := d.decodeCommon(w, false)
			if err != nil {
				return err
			}
			d.assign(ops, fmt.Sprintf("min(%s, %s)", ops.src1, ops.src2))

		case opRCP:
			ops, err := d.decodeCommon(w, false)
			if err != nil {
				return err
			}
			d.assignScalar(ops, fmt.Sprintf("1.0 / (%s).x", ops.src1))

		case opRSQ:
			ops, err := d.decodeCommon(w, false)
			if err != nil {
				return err
			}
			d.assignScalar(ops, fmt.Sprintf("inversesqrt((%s).x)", ops.src1))

		case opMOV:
			ops, err := d.decodeCommon(w, false)
			if err != nil {
				return err
			}
			d.assign(ops, ops.src1)

		case opMOVA:
			ops, err := d.decodeCommon(w, false)
			if err != nil {
				return err
			}
			if strings.Contains(ops.mask, "x") {
				fmt.Fprintf(&d.body, "address_registers.x = int((%s).x);\n", ops.src1)
			}
			if strings.Contains(ops.mask, "y") {
				fmt.Fprintf(&d.body, "address_registers.y = int((%s).y);\n", ops.src1)
			}

		case opCMP0, opCMP1:
			ops, err := d.decodeCommon(w, false)
			if err != nil {
				return err
			}
			opX := cmpOps[w>>24&7]
			opY := cmpOps[w>>21&7]
			if opX == "" {
				// reserved encodings always pass
				d.body.WriteString("conditional_code.x = true;\n")
			} else {
				fmt.Fprintf(&d.body, "conditional_code.x = (%s).x %s (%s).x;\n", ops.src1, opX, ops.src2)
			}
			if opY == "" {
				d.body.WriteString("conditional_code.y = true;\n")
			} else {
				fmt.Fprintf(&d.body, "conditional_code.y = (%s).y %s (%s).y;\n", ops.src1, opY, ops.src2)
			}

		case opNOP:
			// nothing

		case opEND:
			if !topLevel {
				return curated.Errorf(MalformedProgram, "END inside structured block")
			}
			d.body.WriteString("return;\n")
			return nil

		case opCALL, opCALLC, opCALLU:
			dst := w >> 10 & 0xfff
			num := w & 0xff
			callee := subRange{begin: dst, end: dst + num}
			if !d.done[callee] {
				d.subs = append(d.subs, callee)
			}
			call := fmt.Sprintf("sub_%d_%d();", callee.begin, callee.end)
			switch opcode {
			case opCALL:
				d.body.WriteString(call + "\n")
			case opCALLC:
				fmt.Fprintf(&d.body, "if (%s) { %s }\n", flowCondition(w), call)
			case opCALLU:
				if d.cfg.BoolUniforms&(1<<(w>>22&0xf)) != 0 {
					d.body.WriteString(call + "\n")
				}
			}

		case opIFU, opIFC:
			dst := w >> 10 & 0xfff
			num := w & 0xff
			if dst <= offset || dst > end {
				return curated.Errorf(MalformedProgram, "if branch escapes block")
			}

			taken := true
			cond := ""
			if opcode == opIFU {
				taken = d.cfg.BoolUniforms&(1<<(w>>22&0xf)) != 0
			} else {
				cond = flowCondition(w)
			}

			if cond != "" {
				fmt.Fprintf(&d.body, "if (%s) {\n", cond)
				if err := d.writeRange(offset+1, dst, false); err != nil {
					return err
				}
				if num > 0 {
					d.body.WriteString("} else {\n")
					if err := d.writeRange(dst, dst+num, false); err != nil {
						return err
					}
				}
				d.body.WriteString("}\n")
			} else if taken {
				if err := d.writeRange(offset+1, dst, false); err != nil {
					return err
				}
			} else if num > 0 {
				if err := d.writeRange(dst, dst+num, false); err != nil {
					return err
				}
			}
			offset = dst + num
			continue

		case opLOOP:
			dst := w >> 10 & 0xfff
			if dst < offset {
				return curated.Errorf(MalformedProgram, "backward loop")
			}
			intID := w >> 22 & 3
			fmt.Fprintf(&d.body, "address_registers.z = vs_uniforms_i[%d].y;\n", intID)
			fmt.Fprintf(&d.body, "for (int loop%d = 0; loop%d <= vs_uniforms_i[%d].x; loop%d++) {\n",
				offset, offset, intID, offset)
			if err := d.writeRange(offset+1, dst+1, false); err != nil {
				return err
			}
			fmt.Fprintf(&d.body, "address_registers.z += vs_uniforms_i[%d].z;\n}\n", intID)
			offset = dst + 1
			continue

		case opJMPC, opJMPU, opEMIT:
			return curated.Errorf(UnsupportedInstruction, opcode, offset)

		default:
			if opcode >= 0x30 {
				if err := d.writeMAD(w, opcode < 0x38); err != nil {
					return err
				}
			} else {
				return curated.Errorf(UnsupportedInstruction, opcode, offset)
			}
		}

		offset++
	}
	return nil
}

// writeMAD decompiles the three-operand multiply-add encodings. The
// inverted form widens the third source instead of the second.
func (d *vsDecompiler) writeMAD(w uint32, inverted bool) error {
	descID := w & 0x1f
	desc := d.setup.SwizzleData[descID]

	src1Reg := w >> 17 & 0x1f
	var src2Reg, src3Reg uint32
	if inverted {
		src2Reg = w >> 12 & 0x1f
		src3Reg = w >> 5 & 0x7f
	} else {
		src2Reg = w >> 10 & 0x7f
		src3Reg = w >> 5 & 0x1f
	}

	addrIndex := w >> 3 & 3
	s1, err := d.srcReg(src1Reg, 0)
	if err != nil {
		return err
	}
	var s2, s3 string
	if inverted {
		s2, err = d.srcReg(src2Reg, 0)
		if err != nil {
			return err
		}
		s3, err = d.srcReg(src3Reg, addrIndex)
	} else {
		s2, err = d.srcReg(src2Reg, addrIndex)
		if err != nil {
			return err
		}
		s3, err = d.srcReg(src3Reg, 0)
	}
	if err != nil {
		return err
	}

	var ops operands
	ops.src1 = srcExpr(s1, desc>>5&0xff, desc>>4&1 != 0)
	ops.src2 = srcExpr(s2, desc>>14&0xff, desc>>13&1 != 0)
	ops.src3 = srcExpr(s3, desc>>23&0xff, desc>>22&1 != 0)

	ops.dest, err = d.destReg(w >> 24 & 0x1f)
	if err != nil {
		return err
	}
	ops.mask = destMask(desc & 0xf)

	d.assign(ops, fmt.Sprintf("%s + %s", d.mul(ops.src1, ops.src2), ops.src3))
	return nil
}
