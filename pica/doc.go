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

// Package pica describes the register file of the guest GPU: the
// memory-mapped control surface whose writes drive all rasterizer state.
//
// The register file is a flat array of 32-bit words. The Regs type wraps the
// array with typed accessors for each functional group: rasterizer state,
// texturing, fragment lighting, the output merger and framebuffer, and the
// vertex pipeline. Accessors decode the packed bitfields; nothing in this
// package holds decoded state of its own, so the raw array is always the
// single source of truth. This matters for two consumers: the shader
// fingerprints, which are derived functions of the raw words, and the disk
// shader cache, which serialises raw register snapshots.
//
// The State type carries the register file together with the LUT memories
// (lighting, fog, procedural texture) and the fixed default attributes,
// which are written through registers with auto-incrementing index/data
// pairs rather than being directly addressable.
//
// Register offsets are fixed properties of the guest hardware.
package pica
