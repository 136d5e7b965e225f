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

package host

// PixelFormat enumerates the host texture formats the backends support.
// Guest formats are converted to one of these during upload.
type PixelFormat int

const (
	FormatRGBA8 PixelFormat = iota
	FormatRGB5A1
	FormatRGB565
	FormatRGBA4
	FormatD16
	FormatD24
	FormatD24S8
)

func (f PixelFormat) String() string {
	switch f {
	case FormatRGBA8:
		return "RGBA8"
	case FormatRGB5A1:
		return "RGB5A1"
	case FormatRGB565:
		return "RGB565"
	case FormatRGBA4:
		return "RGBA4"
	case FormatD16:
		return "D16"
	case FormatD24:
		return "D24"
	case FormatD24S8:
		return "D24S8"
	}
	return "unknown"
}

// BytesPerPixel returns the host storage size of one pixel. D24 pixels
// occupy four bytes on the host even though the guest packs them into
// three.
func (f PixelFormat) BytesPerPixel() int {
	switch f {
	case FormatRGBA8, FormatD24, FormatD24S8:
		return 4
	}
	return 2
}

// IsColor reports whether the format holds color rather than depth data.
func (f PixelFormat) IsColor() bool {
	return f <= FormatRGBA4
}

// HasStencil reports whether the format carries a stencil channel.
func (f PixelFormat) HasStencil() bool {
	return f == FormatD24S8
}

// Rect is a rectangle in texture coordinates. The origin is the lower
// left corner, matching the guest's framebuffer orientation.
type Rect struct {
	X, Y, W, H int
}

// Area returns the number of pixels the rectangle covers.
func (r Rect) Area() int {
	return r.W * r.H
}

// Scaled returns the rectangle with all components multiplied by scale.
func (r Rect) Scaled(scale int) Rect {
	return Rect{X: r.X * scale, Y: r.Y * scale, W: r.W * scale, H: r.H * scale}
}

// FillValue carries the value of a fill operation. Which fields are
// meaningful depends on the target format.
type FillValue struct {
	Color   [4]float32
	Depth   float32
	Stencil uint8
}
