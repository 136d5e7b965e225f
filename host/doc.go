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

// Package host abstracts the host GPU from the rest of the emulation.
// The Backend interface covers the operations the surface cache and the
// rasterizer need: texture storage, blits, fills, shader programs and
// vertex streams.
//
// Two implementations are provided. The gl32 backend drives a real GPU
// through OpenGL 3.2 and is used when a window is open. The headless
// backend keeps texture storage in ordinary memory and accepts but does
// not execute draw calls; it exists so the cache and rasterizer logic can
// run without a GL context, in tests in particular.
package host
