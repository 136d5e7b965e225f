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

import "strings"

// GenerateFixedGeometryShader produces the pass-through geometry shader
// used when the guest pipeline runs without a programmable geometry
// stage. It regroups the vertex stream into triangles and forwards the
// interface block unmodified.
func GenerateFixedGeometryShader(cfg *FixedGSConfig) string {
	var b strings.Builder
	b.WriteString("#version 330 core\n")
	b.WriteString("layout (triangles) in;\n")
	b.WriteString("layout (triangle_strip, max_vertices = 3) out;\n")
	b.WriteString("in VertexData {")
	b.WriteString(vsOutputAttributes)
	b.WriteString("} vtx[];\n")
	b.WriteString("out VertexData {")
	b.WriteString(vsOutputAttributes)
	b.WriteString("};\n")
	b.WriteString(`
void main() {
    for (int i = 0; i < 3; i++) {
        primary_color = vtx[i].primary_color;
        texcoord0 = vtx[i].texcoord0;
        texcoord1 = vtx[i].texcoord1;
        texcoord2 = vtx[i].texcoord2;
        texcoord0_w = vtx[i].texcoord0_w;
        normquat = vtx[i].normquat;
        view = vtx[i].view;
        gl_Position = gl_in[i].gl_Position;
        gl_ClipDistance[0] = gl_in[i].gl_ClipDistance[0];
        gl_ClipDistance[1] = gl_in[i].gl_ClipDistance[1];
        EmitVertex();
    }
    EndPrimitive();
}
`)
	return b.String()
}
