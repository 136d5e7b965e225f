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

// Package surfaces caches host textures against guest physical memory.
//
// A Surface is one host texture backing a contiguous guest range at an
// integer upscale factor. The Cache tracks which parts of each surface
// are stale with respect to guest memory (invalid regions) and which
// surface last wrote each guest range (dirty regions). Validation
// uploads only the touched sub-rectangles; flushing downloads them back
// into the guest's tiled layout.
//
// The cache also maintains the per-page refcounts that flip virtual
// pages in and out of the rasterizer-cached state, which is how CPU
// accesses to cached memory become flushes and invalidations.
package surfaces
