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

// Package rasterizer drives the host GPU from the guest register file.
//
// The Rasterizer type is the hub of the GPU core. It mirrors guest
// register writes into a uniform block shadow, keeps the lookup table
// textures current, builds host pipeline state per draw call, and
// assembles guest vertex streams into the host streaming buffers. The
// subordinate packages carry the heavy machinery: surfaces caches guest
// framebuffer and texture images as host textures, shadergen translates
// register fingerprints and guest shader bytecode into GLSL, and
// shadercache deduplicates and persists the generated programs.
//
// Draws arrive on two paths. The accelerated path runs the guest vertex
// shader on the host: the raw attribute loaders are replayed into a
// single interleaved stream and the decompiled shader consumes it. The
// software path receives pre-transformed vertices through AddTriangle
// and renders them with a trivial pass-through vertex shader. Draw
// returns false whenever the accelerated path cannot represent the
// guest configuration, letting the caller re-submit through software.
//
// The rasterizer also answers transfer engine hints (display transfers,
// raw texture copies, memory fills, screen presentation). Each hint
// returns false when it cannot be served from cached surfaces and the
// caller performs the operation through guest memory instead.
package rasterizer
