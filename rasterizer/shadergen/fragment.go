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

	"github.com/tangelo-emu/tangelo/pica"
)

// UniformBlock is the GLSL declaration of the shared uniform block. The
// rasterizer's uniform shadow struct must lay out identically under
// std140.
const UniformBlock = `
struct LightSrc {
    vec3 specular_0;
    vec3 specular_1;
    vec3 diffuse;
    vec3 ambient;
    vec3 position;
    vec3 spot_direction;
    float dist_atten_bias;
    float dist_atten_scale;
};

layout (std140) uniform shader_data {
    int alphatest_ref;
    float depth_scale;
    float depth_offset;
    int scissor_x1;
    int scissor_y1;
    int scissor_x2;
    int scissor_y2;
    vec3 fog_color;
    float proctex_bias;
    vec2 proctex_noise_f;
    vec2 proctex_noise_a;
    vec2 proctex_noise_p;
    vec3 lighting_global_ambient;
    LightSrc light_src[8];
    vec4 const_color[6];
    vec4 tev_combiner_buffer_color;
    vec4 clip_coef;
};
`

// vsOutputAttributes are the varyings every vertex stage writes and the
// fragment stage reads.
const vsOutputAttributes = `
    vec4 primary_color;
    vec2 texcoord0;
    vec2 texcoord1;
    vec2 texcoord2;
    float texcoord0_w;
    vec4 normquat;
    vec3 view;
`

func fragmentHeader() string {
	var b strings.Builder
	b.WriteString("#version 330 core\n")
	b.WriteString("in VertexData {")
	b.WriteString(vsOutputAttributes)
	b.WriteString("};\n")
	b.WriteString("out vec4 color;\n")
	b.WriteString("uniform sampler2D tex0;\n")
	b.WriteString("uniform sampler2D tex1;\n")
	b.WriteString("uniform sampler2D tex2;\n")
	b.WriteString("uniform sampler1D lighting_lut;\n")
	b.WriteString("uniform sampler1D fog_lut;\n")
	b.WriteString("uniform sampler1D proctex_lut;\n")
	b.WriteString("uniform sampler1D proctex_color_map;\n")
	b.WriteString(UniformBlock)
	return b.String()
}

// lutLookupHelpers samples the packed (value, delta) LUT texels.
const lutLookupHelpers = `
float LookupLightingLUT(int lut_index, int index, float delta) {
    vec2 entry = texelFetch(lighting_lut, lut_index * 256 + index, 0).rg;
    return entry.r + entry.g * delta;
}

float LookupLightingLUTUnsigned(int lut_index, float pos) {
    int index = int(clamp(floor(pos * 256.0), 0.0, 255.0));
    float delta = pos * 256.0 - float(index);
    return LookupLightingLUT(lut_index, index, delta);
}

float LookupLightingLUTSigned(int lut_index, float pos) {
    int index = int(clamp(floor(pos * 128.0), -128.0, 127.0));
    float delta = pos * 128.0 - float(index);
    if (index < 0) index += 256;
    return LookupLightingLUT(lut_index, index, delta);
}

vec3 quaternion_rotate(vec4 q, vec3 v) {
    return v + 2.0 * cross(q.xyz, cross(q.xyz, v) + q.w * v);
}
`

// texEnvSourceExpr returns the GLSL expression for one combiner input.
func texEnvSourceExpr(cfg *FSConfig, source uint8, stageIndex int) string {
	switch pica.TexEnvSource(source) {
	case pica.SourcePrimaryColor:
		return "rounded_primary_color"
	case pica.SourcePrimaryFragmentColor:
		return "primary_fragment_color"
	case pica.SourceSecondaryFragmentColor:
		return "secondary_fragment_color"
	case pica.SourceTexture0:
		return "texcolor0"
	case pica.SourceTexture1:
		return "texcolor1"
	case pica.SourceTexture2:
		return "texcolor2"
	case pica.SourceTexture3:
		return "texcolor3"
	case pica.SourcePreviousBuffer:
		return "combiner_buffer"
	case pica.SourceConstant:
		return fmt.Sprintf("const_color[%d]", stageIndex)
	case pica.SourcePrevious:
		return "last_tex_env_out"
	}
	return "vec4(0.0)"
}

// colorModifierExpr applies a color operand modifier to a source.
func colorModifierExpr(modifier uint8, src string) string {
	switch modifier {
	case 0:
		return src + ".rgb"
	case 1:
		return "vec3(1.0) - " + src + ".rgb"
	case 2:
		return src + ".aaa"
	case 3:
		return "vec3(1.0) - " + src + ".aaa"
	case 4:
		return src + ".rrr"
	case 5:
		return "vec3(1.0) - " + src + ".rrr"
	case 8:
		return src + ".ggg"
	case 9:
		return "vec3(1.0) - " + src + ".ggg"
	case 12:
		return src + ".bbb"
	case 13:
		return "vec3(1.0) - " + src + ".bbb"
	}
	return "vec3(0.0)"
}

// alphaModifierExpr applies an alpha operand modifier to a source.
func alphaModifierExpr(modifier uint8, src string) string {
	switch modifier {
	case 0:
		return src + ".a"
	case 1:
		return "1.0 - " + src + ".a"
	case 2:
		return src + ".r"
	case 3:
		return "1.0 - " + src + ".r"
	case 4:
		return src + ".g"
	case 5:
		return "1.0 - " + src + ".g"
	case 6:
		return src + ".b"
	case 7:
		return "1.0 - " + src + ".b"
	}
	return "0.0"
}

// colorCombinerExpr combines the three color operands.
func colorCombinerExpr(op uint8) string {
	switch pica.TexEnvOp(op) {
	case pica.OpReplace:
		return "color_results_1"
	case pica.OpModulate:
		return "color_results_1 * color_results_2"
	case pica.OpAdd:
		return "color_results_1 + color_results_2"
	case pica.OpAddSigned:
		return "color_results_1 + color_results_2 - vec3(0.5)"
	case pica.OpLerp:
		return "color_results_1 * color_results_3 + color_results_2 * (vec3(1.0) - color_results_3)"
	case pica.OpSubtract:
		return "color_results_1 - color_results_2"
	case pica.OpMultiplyThenAdd:
		return "color_results_1 * color_results_2 + color_results_3"
	case pica.OpAddThenMultiply:
		return "min(color_results_1 + color_results_2, vec3(1.0)) * color_results_3"
	case pica.OpDot3RGB, pica.OpDot3RGBA:
		return "vec3(dot(color_results_1 - vec3(0.5), color_results_2 - vec3(0.5)) * 4.0)"
	}
	return "vec3(0.0)"
}

// alphaCombinerExpr combines the three alpha operands.
func alphaCombinerExpr(op uint8) string {
	switch pica.TexEnvOp(op) {
	case pica.OpReplace:
		return "alpha_results_1"
	case pica.OpModulate:
		return "alpha_results_1 * alpha_results_2"
	case pica.OpAdd:
		return "alpha_results_1 + alpha_results_2"
	case pica.OpAddSigned:
		return "alpha_results_1 + alpha_results_2 - 0.5"
	case pica.OpLerp:
		return "alpha_results_1 * alpha_results_3 + alpha_results_2 * (1.0 - alpha_results_3)"
	case pica.OpSubtract:
		return "alpha_results_1 - alpha_results_2"
	case pica.OpMultiplyThenAdd:
		return "alpha_results_1 * alpha_results_2 + alpha_results_3"
	case pica.OpAddThenMultiply:
		return "min(alpha_results_1 + alpha_results_2, 1.0) * alpha_results_3"
	}
	return "0.0"
}

// writeTexEnvStage emits the inlined combiner code for one stage.
func writeTexEnvStage(b *strings.Builder, cfg *FSConfig, index int) {
	stage := &cfg.TexEnv[index]
	if stage.isPassThrough() {
		return
	}

	for i := 0; i < 3; i++ {
		src := texEnvSourceExpr(cfg, stage.ColorSource[i], index)
		fmt.Fprintf(b, "color_results_%d = clamp(%s, vec3(0.0), vec3(1.0));\n",
			i+1, colorModifierExpr(stage.ColorModifier[i], src))
	}
	fmt.Fprintf(b, "vec3 color_output_%d = clamp(%s, vec3(0.0), vec3(1.0));\n",
		index, colorCombinerExpr(stage.ColorOp))

	if pica.TexEnvOp(stage.ColorOp) == pica.OpDot3RGBA {
		// the dot product spills into alpha
		fmt.Fprintf(b, "float alpha_output_%d = color_output_%d.r;\n", index, index)
	} else {
		for i := 0; i < 3; i++ {
			src := texEnvSourceExpr(cfg, stage.AlphaSource[i], index)
			fmt.Fprintf(b, "alpha_results_%d = clamp(%s, 0.0, 1.0);\n",
				i+1, alphaModifierExpr(stage.AlphaModifier[i], src))
		}
		fmt.Fprintf(b, "float alpha_output_%d = clamp(%s, 0.0, 1.0);\n",
			index, alphaCombinerExpr(stage.AlphaOp))
	}

	fmt.Fprintf(b, "last_tex_env_out = vec4(clamp(color_output_%d * %d.0, vec3(0.0), vec3(1.0)), clamp(alpha_output_%d * %d.0, 0.0, 1.0));\n",
		index, stage.ColorScale, index, stage.AlphaScale)

	if index < 4 {
		// stages 1 to 4 may feed the next stage's combiner buffer
		b.WriteString("combiner_buffer = next_combiner_buffer;\n")
		if cfg.TexEnv[index+1].UpdateColor {
			b.WriteString("next_combiner_buffer.rgb = last_tex_env_out.rgb;\n")
		}
		if cfg.TexEnv[index+1].UpdateAlpha {
			b.WriteString("next_combiner_buffer.a = last_tex_env_out.a;\n")
		}
	}
}

// alphaTestCondition returns the discard condition for the alpha test
// function, or the empty string when every fragment passes.
func alphaTestCondition(fn uint8) string {
	switch pica.CompareFunc(fn) {
	case pica.CompareNever:
		return "true"
	case pica.CompareAlways:
		return ""
	case pica.CompareEqual:
		return "int_alpha != alphatest_ref"
	case pica.CompareNotEqual:
		return "int_alpha == alphatest_ref"
	case pica.CompareLessThan:
		return "int_alpha >= alphatest_ref"
	case pica.CompareLessThanOrEqual:
		return "int_alpha > alphatest_ref"
	case pica.CompareGreaterThan:
		return "int_alpha <= alphatest_ref"
	case pica.CompareGreaterThanOrEqual:
		return "int_alpha < alphatest_ref"
	}
	return ""
}

// writeLighting emits the per-fragment lighting computation into
// primary_fragment_color and secondary_fragment_color.
func writeLighting(b *strings.Builder, cfg *FSConfig) {
	lighting := &cfg.Lighting

	b.WriteString("vec4 diffuse_sum = vec4(0.0, 0.0, 0.0, 1.0);\n")
	b.WriteString("vec4 specular_sum = vec4(0.0, 0.0, 0.0, 1.0);\n")
	b.WriteString("vec3 light_vector = vec3(0.0);\n")
	b.WriteString("vec3 refl_value = vec3(0.0);\n")

	// surface normal and tangent from the interpolated quaternion
	switch pica.LightingBumpMode(lighting.BumpMode) {
	case pica.BumpNormalMap:
		fmt.Fprintf(b, "vec3 surface_normal = 2.0 * (texcolor%d).rgb - 1.0;\n", lighting.BumpSelector)
		if lighting.BumpRenorm {
			b.WriteString("surface_normal.z = sqrt(max(1.0 - dot(surface_normal.xy, surface_normal.xy), 0.0));\n")
		}
		b.WriteString("vec3 surface_tangent = vec3(1.0, 0.0, 0.0);\n")
	case pica.BumpTangentMap:
		fmt.Fprintf(b, "vec3 surface_tangent = 2.0 * (texcolor%d).rgb - 1.0;\n", lighting.BumpSelector)
		b.WriteString("vec3 surface_normal = vec3(0.0, 0.0, 1.0);\n")
	default:
		b.WriteString("vec3 surface_normal = vec3(0.0, 0.0, 1.0);\n")
		b.WriteString("vec3 surface_tangent = vec3(1.0, 0.0, 0.0);\n")
	}

	b.WriteString("vec4 normalized_normquat = normalize(normquat);\n")
	b.WriteString("vec3 normal = quaternion_rotate(normalized_normquat, surface_normal);\n")
	b.WriteString("vec3 tangent = quaternion_rotate(normalized_normquat, surface_tangent);\n")

	// shadow channels come out neutral: the host pipeline carries no
	// shadow texture, so the combine stays correct with shadow = 1
	b.WriteString("vec4 shadow = vec4(1.0);\n")

	lutBias := func(slot *LUTSlot, lutName string, input string) string {
		if !slot.Enabled {
			return "1.0"
		}
		index := fmt.Sprintf("int(%s)", lutName)
		if slot.Abs {
			return fmt.Sprintf("(%.6f * LookupLightingLUTUnsigned(%s, max(%s, 0.0)))",
				slot.Scale, index, input)
		}
		return fmt.Sprintf("(%.6f * LookupLightingLUTSigned(%s, %s))",
			slot.Scale, index, input)
	}

	lutInput := func(slot *LUTSlot, lightIndex int) string {
		switch pica.LightingLUTInput(slot.Input) {
		case pica.LUTInputNH:
			return "dot(normal, normalize(half_vector))"
		case pica.LUTInputVH:
			return "dot(normalize(view), normalize(half_vector))"
		case pica.LUTInputNV:
			return "dot(normal, normalize(view))"
		case pica.LUTInputLN:
			return "dot(light_vector, normal)"
		case pica.LUTInputSP:
			return fmt.Sprintf("dot(light_vector, -light_src[%d].spot_direction)", lightIndex)
		case pica.LUTInputCP:
			return "dot(normalize(vec3(half_vector.xy, 0.0)), tangent)"
		}
		return "0.0"
	}

	for i := 0; i < int(lighting.NumLights); i++ {
		light := &lighting.Lights[i]
		num := int(light.Num)

		if light.Directional {
			fmt.Fprintf(b, "light_vector = normalize(light_src[%d].position);\n", num)
		} else {
			fmt.Fprintf(b, "light_vector = normalize(light_src[%d].position + view);\n", num)
		}
		b.WriteString("vec3 half_vector = normalize(view) + light_vector;\n")

		diffuseFactor := "max(dot(light_vector, normal), 0.0)"
		if light.TwoSidedDiff {
			diffuseFactor = "abs(dot(light_vector, normal))"
		}

		attenuation := "1.0"
		if light.DistAttn {
			fmt.Fprintf(b, "float dist_atten_%d = LookupLightingLUTUnsigned(%d, clamp(light_src[%d].dist_atten_scale * length(-view - light_src[%d].position) + light_src[%d].dist_atten_bias, 0.0, 1.0));\n",
				i, int(pica.LUTDistanceAtt0)+num, num, num, num)
			attenuation = fmt.Sprintf("dist_atten_%d", i)
		}
		if light.SpotEnabled {
			spotInput := fmt.Sprintf("dot(light_vector, -light_src[%d].spot_direction)", num)
			fmt.Fprintf(b, "float spot_atten_%d = LookupLightingLUTUnsigned(%d, max(%s, 0.0));\n",
				i, int(pica.LUTSpotlight0)+num, spotInput)
			attenuation = fmt.Sprintf("(%s * spot_atten_%d)", attenuation, i)
		}

		d0 := "1.0"
		if lighting.D0.Enabled {
			d0 = lutBias(&lighting.D0, fmt.Sprintf("%d", int(pica.LUTDistribution0)), lutInput(&lighting.D0, num))
		}
		d1 := "1.0"
		if lighting.D1.Enabled {
			d1 = lutBias(&lighting.D1, fmt.Sprintf("%d", int(pica.LUTDistribution1)), lutInput(&lighting.D1, num))
		}

		if lighting.RR.Enabled {
			fmt.Fprintf(b, "refl_value.r = %s;\n",
				lutBias(&lighting.RR, fmt.Sprintf("%d", int(pica.LUTReflectRed)), lutInput(&lighting.RR, num)))
		} else {
			b.WriteString("refl_value.r = 1.0;\n")
		}
		if lighting.RG.Enabled {
			fmt.Fprintf(b, "refl_value.g = %s;\n",
				lutBias(&lighting.RG, fmt.Sprintf("%d", int(pica.LUTReflectGreen)), lutInput(&lighting.RG, num)))
		} else {
			b.WriteString("refl_value.g = refl_value.r;\n")
		}
		if lighting.RB.Enabled {
			fmt.Fprintf(b, "refl_value.b = %s;\n",
				lutBias(&lighting.RB, fmt.Sprintf("%d", int(pica.LUTReflectBlue)), lutInput(&lighting.RB, num)))
		} else {
			b.WriteString("refl_value.b = refl_value.r;\n")
		}

		clamp := ""
		if lighting.ClampHighlights {
			clamp = " * clamp_highlights"
		}
		if lighting.ClampHighlights && i == 0 {
			b.WriteString("float clamp_highlights = sign(max(dot(light_vector, normal), 0.0));\n")
		} else if lighting.ClampHighlights {
			b.WriteString("clamp_highlights = sign(max(dot(light_vector, normal), 0.0));\n")
		}

		fmt.Fprintf(b, "diffuse_sum.rgb += ((light_src[%d].diffuse * %s) + light_src[%d].ambient) * %s;\n",
			num, diffuseFactor, num, attenuation)
		fmt.Fprintf(b, "specular_sum.rgb += (%s * light_src[%d].specular_0 + refl_value * light_src[%d].specular_1 * %s) * %s%s;\n",
			d0, num, num, d1, attenuation, clamp)

		// fresnel applies on the last light only
		if lighting.FR.Enabled && i == int(lighting.NumLights)-1 {
			fresnel := lutBias(&lighting.FR, fmt.Sprintf("%d", int(pica.LUTFresnel)), lutInput(&lighting.FR, num))
			switch pica.LightingFresnel(lighting.Fresnel) {
			case pica.FresnelPrimaryAlpha:
				fmt.Fprintf(b, "diffuse_sum.a = %s;\n", fresnel)
			case pica.FresnelSecondaryAlpha:
				fmt.Fprintf(b, "specular_sum.a = %s;\n", fresnel)
			case pica.FresnelBothAlpha:
				fmt.Fprintf(b, "diffuse_sum.a = %s;\nspecular_sum.a = diffuse_sum.a;\n", fresnel)
			}
		}
	}

	if lighting.ShadowPrimary {
		b.WriteString("diffuse_sum.rgb *= shadow.rgb;\n")
	}
	if lighting.ShadowSecondary {
		b.WriteString("specular_sum.rgb *= shadow.rgb;\n")
	}
	if lighting.ShadowAlpha {
		b.WriteString("diffuse_sum.a *= shadow.a;\n")
	}

	b.WriteString("diffuse_sum.rgb += lighting_global_ambient;\n")
	b.WriteString("primary_fragment_color = clamp(diffuse_sum, vec4(0.0), vec4(1.0));\n")
	b.WriteString("secondary_fragment_color = clamp(specular_sum, vec4(0.0), vec4(1.0));\n")
}

// writeProcTex emits the procedural texture sampler into texcolor3.
func writeProcTex(b *strings.Builder, cfg *FSConfig) {
	pt := &cfg.ProcTex

	clampExpr := func(mode uint8, coord string) string {
		switch pica.ProcTexClamp(mode) {
		case pica.ProcTexClampToZero:
			return fmt.Sprintf("%s > 1.0 ? 0.0 : %s", coord, coord)
		case pica.ProcTexClampToEdge:
			return fmt.Sprintf("min(%s, 1.0)", coord)
		case pica.ProcTexSymmetricalRepeat:
			return fmt.Sprintf("fract(%s)", coord)
		case pica.ProcTexMirroredRepeat:
			return fmt.Sprintf("(int(%s) %% 2 == 0) ? fract(%s) : 1.0 - fract(%s)", coord, coord, coord)
		case pica.ProcTexPulse:
			return fmt.Sprintf("(fract(%s) < 0.5) ? 0.0 : 1.0", coord)
		}
		return coord
	}

	combinerExpr := func(mode uint8) string {
		switch pica.ProcTexCombiner(mode) {
		case pica.ProcTexCombinerU:
			return "u"
		case pica.ProcTexCombinerU2:
			return "u * u"
		case pica.ProcTexCombinerV:
			return "v"
		case pica.ProcTexCombinerV2:
			return "v * v"
		case pica.ProcTexCombinerAdd:
			return "(u + v) * 0.5"
		case pica.ProcTexCombinerAdd2:
			return "(u * u + v * v) * 0.5"
		case pica.ProcTexCombinerSqrt2:
			return "min(sqrt(u * u + v * v), 1.0)"
		case pica.ProcTexCombinerMin:
			return "min(u, v)"
		case pica.ProcTexCombinerMax:
			return "max(u, v)"
		case pica.ProcTexCombinerRMax:
			return "min(((u + v) * 0.5 + sqrt(u * u + v * v)) * 0.5, 1.0)"
		}
		return "0.0"
	}

	shiftExpr := func(mode uint8, other string) string {
		switch pica.ProcTexShift(mode) {
		case pica.ProcTexShiftOdd:
			return fmt.Sprintf("0.5 * float(int(%s) / 2 * 2 + 1)", other)
		case pica.ProcTexShiftEven:
			return fmt.Sprintf("0.5 * float((int(%s) + 1) / 2 * 2)", other)
		}
		return "0.0"
	}

	b.WriteString("vec2 pt_coord = texcoord0;\n")
	if pt.Noise {
		b.WriteString("pt_coord += proctex_noise_a * ProcTexNoiseCoef(pt_coord);\n")
	}
	fmt.Fprintf(b, "pt_coord.x += %s;\n", shiftExpr(pt.ShiftU, "pt_coord.y"))
	fmt.Fprintf(b, "pt_coord.y += %s;\n", shiftExpr(pt.ShiftV, "pt_coord.x"))
	b.WriteString("pt_coord = abs(pt_coord);\n")
	fmt.Fprintf(b, "float u = %s;\n", clampExpr(pt.ClampU, "pt_coord.x"))
	fmt.Fprintf(b, "float v = %s;\n", clampExpr(pt.ClampV, "pt_coord.y"))

	fmt.Fprintf(b, "float lut_coord = clamp(%s, 0.0, 1.0) * float(%d);\n", combinerExpr(pt.ColorCombiner), pt.Width-1)

	switch pica.ProcTexFilter(pt.Filter) {
	case pica.ProcTexFilterLinear, pica.ProcTexFilterLinearMipmapNearest, pica.ProcTexFilterLinearMipmapLinear:
		b.WriteString("int lut_index = int(floor(lut_coord));\n")
		b.WriteString("float lut_frac = lut_coord - float(lut_index);\n")
		b.WriteString("vec4 texcolor3 = mix(texelFetch(proctex_color_map, lut_index, 0), texelFetch(proctex_color_map, lut_index + 1, 0), lut_frac);\n")
	default:
		b.WriteString("vec4 texcolor3 = texelFetch(proctex_color_map, int(round(lut_coord)), 0);\n")
	}

	if pt.SeparateAlpha {
		fmt.Fprintf(b, "float alpha_coord = clamp(%s, 0.0, 1.0) * float(%d);\n", combinerExpr(pt.AlphaCombiner), pt.Width-1)
		b.WriteString("texcolor3.a = texelFetch(proctex_color_map, int(round(alpha_coord)), 0).a;\n")
	}
}

// proctexNoiseHelper is the piecewise-linear noise generator. It is only
// emitted when the fingerprint enables noise.
const proctexNoiseHelper = `
float ProcTexLookupNoise(float coord) {
    coord *= 127.0;
    int index = int(coord);
    float frac = coord - float(index);
    vec2 entry = texelFetch(proctex_lut, index, 0).rg;
    return clamp(entry.r + entry.g * frac, 0.0, 1.0);
}

float ProcTexNoiseRand1D(int v) {
    const int table[] = int[](0,4,10,8,4,9,7,12,5,15,13,14,11,15,2,11);
    return float(table[(v % 9 + 9) % 9]) / 0xf;
}

float ProcTexNoiseRand2D(vec2 point) {
    const int table[] = int[](10,2,15,8,0,7,4,5,5,13,2,6,13,9,3,14);
    int u2 = int(point.x);
    int v2 = int(point.y);
    v2 += ((u2 & 3) == 1) ? 4 : 0;
    v2 ^= (u2 & 1) * 6;
    v2 += (u2 >> 1) & 1;
    u2 &= 0xf;
    v2 &= 0xf;
    return float(table[((u2 * v2) + u2 + v2) & 0xf]) / 0xf;
}

float ProcTexNoiseCoef(vec2 x) {
    vec2 grid  = 9.0 * proctex_noise_f * abs(x + proctex_noise_p);
    vec2 point = floor(grid);
    vec2 frac  = grid - point;

    float g0 = ProcTexNoiseRand2D(point) * (frac.x + frac.y);
    float g1 = ProcTexNoiseRand2D(point + vec2(1.0, 0.0)) * (frac.x + frac.y - 1.0);
    float g2 = ProcTexNoiseRand2D(point + vec2(0.0, 1.0)) * (frac.x + frac.y - 1.0);
    float g3 = ProcTexNoiseRand2D(point + vec2(1.0, 1.0)) * (frac.x + frac.y - 2.0);

    float x_noise = ProcTexLookupNoise(frac.x);
    float y_noise = ProcTexLookupNoise(frac.y);
    return mix(mix(g0, g1, x_noise), mix(g2, g3, x_noise), y_noise);
}
`

// GenerateFragmentShader produces the GLSL source for the fragment
// fingerprint.
func GenerateFragmentShader(cfg *FSConfig) string {
	var b strings.Builder
	b.WriteString(fragmentHeader())
	b.WriteString(lutLookupHelpers)
	if cfg.ProcTex.Enabled && cfg.ProcTex.Noise {
		b.WriteString(proctexNoiseHelper)
	}

	b.WriteString("\nvoid main() {\n")

	// scissor
	switch pica.ScissorMode(cfg.ScissorMode) {
	case pica.ScissorInclude:
		b.WriteString("if (int(gl_FragCoord.x) < scissor_x1 || int(gl_FragCoord.y) < scissor_y1 || int(gl_FragCoord.x) >= scissor_x2 || int(gl_FragCoord.y) >= scissor_y2) discard;\n")
	case pica.ScissorExclude:
		b.WriteString("if (int(gl_FragCoord.x) >= scissor_x1 && int(gl_FragCoord.y) >= scissor_y1 && int(gl_FragCoord.x) < scissor_x2 && int(gl_FragCoord.y) < scissor_y2) discard;\n")
	}

	// guest colors carry 8 bits per channel
	b.WriteString("vec4 rounded_primary_color = round(primary_color * 255.0) / 255.0;\n")
	b.WriteString("vec4 primary_fragment_color = vec4(0.0);\n")
	b.WriteString("vec4 secondary_fragment_color = vec4(0.0);\n")

	// depth remap, with optional w buffering
	b.WriteString("float z_over_w = gl_FragCoord.z * 2.0 - 1.0;\n")
	b.WriteString("float depth = z_over_w * depth_scale + depth_offset;\n")
	if cfg.DepthmapEnable {
		b.WriteString("depth /= gl_FragCoord.w;\n")
	}
	b.WriteString("gl_FragDepth = depth;\n")

	if cfg.Texture0Enabled {
		b.WriteString("vec4 texcolor0 = texture(tex0, texcoord0);\n")
	} else {
		b.WriteString("vec4 texcolor0 = vec4(0.0);\n")
	}
	if cfg.Texture1Enabled {
		b.WriteString("vec4 texcolor1 = texture(tex1, texcoord1);\n")
	} else {
		b.WriteString("vec4 texcolor1 = vec4(0.0);\n")
	}
	if cfg.Texture2Enabled {
		if cfg.Texture2Coord1 {
			b.WriteString("vec4 texcolor2 = texture(tex2, texcoord1);\n")
		} else {
			b.WriteString("vec4 texcolor2 = texture(tex2, texcoord2);\n")
		}
	} else {
		b.WriteString("vec4 texcolor2 = vec4(0.0);\n")
	}

	if cfg.ProcTex.Enabled {
		writeProcTex(&b, cfg)
	} else {
		b.WriteString("vec4 texcolor3 = vec4(0.0);\n")
	}

	if cfg.Lighting.Enabled {
		writeLighting(&b, cfg)
	}

	b.WriteString("vec4 combiner_buffer = vec4(0.0);\n")
	b.WriteString("vec4 next_combiner_buffer = tev_combiner_buffer_color;\n")
	b.WriteString("vec4 last_tex_env_out = rounded_primary_color;\n")
	b.WriteString("vec3 color_results_1, color_results_2, color_results_3;\n")
	b.WriteString("float alpha_results_1, alpha_results_2, alpha_results_3;\n")

	for i := 0; i < pica.NumTexEnvStages; i++ {
		writeTexEnvStage(&b, cfg, i)
	}

	if cond := alphaTestCondition(cfg.AlphaTestFunc); cond != "" {
		b.WriteString("int int_alpha = int(last_tex_env_out.a * 255.0);\n")
		fmt.Fprintf(&b, "if (%s) discard;\n", cond)
	}

	if pica.FogMode(cfg.FogMode) == pica.FogEnabled {
		depth := "depth"
		if cfg.FogFlip {
			depth = "(1.0 - depth)"
		}
		fmt.Fprintf(&b, "float fog_index = clamp(%s, 0.0, 1.0) * 128.0;\n", depth)
		b.WriteString("int fog_i = int(clamp(floor(fog_index), 0.0, 127.0));\n")
		b.WriteString("float fog_f = fog_index - float(fog_i);\n")
		b.WriteString("vec2 fog_lut_entry = texelFetch(fog_lut, fog_i, 0).rg;\n")
		b.WriteString("float fog_factor = clamp(fog_lut_entry.r + fog_lut_entry.g * fog_f, 0.0, 1.0);\n")
		b.WriteString("last_tex_env_out.rgb = mix(fog_color.rgb, last_tex_env_out.rgb, fog_factor);\n")
	}

	b.WriteString("color = last_tex_env_out;\n")
	b.WriteString("}\n")

	return b.String()
}
