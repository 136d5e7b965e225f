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

// Package display owns the SDL window and the GL context, and presents
// the guest's two screens each frame. The screen framebuffers are
// resolved through the rasterizer's AccelerateDisplay hint; when the
// hint declines, the guest bytes are decoded and uploaded to a scratch
// texture instead.
//
// The package creates the rasterizer it presents for, because the GL
// backend can only be constructed once a context is current. Everything
// else about the rasterizer is reachable through the Rasterizer method.
package display
