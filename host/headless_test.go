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

package host_test

import (
	"testing"

	"github.com/tangelo-emu/tangelo/host"
	"github.com/tangelo-emu/tangelo/test"
)

func TestUploadDownloadRoundTrip(t *testing.T) {
	b := host.NewHeadless()
	defer b.Destroy()

	tex := b.CreateTexture(host.FormatRGBA8, 8, 8)

	// a 2x2 patch at (3,3)
	patch := []byte{
		1, 2, 3, 4, 5, 6, 7, 8,
		9, 10, 11, 12, 13, 14, 15, 16,
	}
	b.Upload(tex, host.FormatRGBA8, host.Rect{X: 3, Y: 3, W: 2, H: 2}, patch)

	got := make([]byte, len(patch))
	b.Download(tex, host.FormatRGBA8, host.Rect{X: 3, Y: 3, W: 2, H: 2}, got)

	for i := range patch {
		test.Equate(t, got[i], patch[i])
	}

	// pixels outside the patch are untouched
	outside := make([]byte, 4)
	b.Download(tex, host.FormatRGBA8, host.Rect{X: 0, Y: 0, W: 1, H: 1}, outside)
	test.Equate(t, outside[0], uint8(0))
}

func TestFill(t *testing.T) {
	b := host.NewHeadless()
	defer b.Destroy()

	tex := b.CreateTexture(host.FormatRGBA8, 4, 4)
	b.Fill(tex, host.FormatRGBA8, host.Rect{X: 0, Y: 0, W: 4, H: 4},
		host.FillValue{Color: [4]float32{1, 0, 0, 1}})

	px := make([]byte, 4)
	b.Download(tex, host.FormatRGBA8, host.Rect{X: 2, Y: 2, W: 1, H: 1}, px)
	test.Equate(t, px[0], uint8(255))
	test.Equate(t, px[1], uint8(0))
	test.Equate(t, px[3], uint8(255))
}

func TestBlitScale(t *testing.T) {
	b := host.NewHeadless()
	defer b.Destroy()

	src := b.CreateTexture(host.FormatRGBA8, 2, 2)
	dst := b.CreateTexture(host.FormatRGBA8, 4, 4)

	b.Fill(src, host.FormatRGBA8, host.Rect{X: 0, Y: 0, W: 2, H: 2},
		host.FillValue{Color: [4]float32{0, 1, 0, 1}})

	ok := b.Blit(src, host.Rect{X: 0, Y: 0, W: 2, H: 2},
		dst, host.Rect{X: 0, Y: 0, W: 4, H: 4}, host.FormatRGBA8)
	test.Equate(t, ok, true)

	px := make([]byte, 4)
	b.Download(dst, host.FormatRGBA8, host.Rect{X: 3, Y: 3, W: 1, H: 1}, px)
	test.Equate(t, px[1], uint8(255))
}

func TestProgramBinaryRoundTrip(t *testing.T) {
	b := host.NewHeadless()
	defer b.Destroy()

	p, err := b.CompileProgram("vs source", "", "fs source")
	test.DemandSuccess(t, err)

	format, bin, err := b.ProgramBinary(p)
	test.DemandSuccess(t, err)

	q, err := b.LoadProgramBinary(format, bin)
	test.DemandSuccess(t, err)

	vs, gs, fs, err := b.ProgramSources(q)
	test.DemandSuccess(t, err)
	test.Equate(t, vs, "vs source")
	test.Equate(t, gs, "")
	test.Equate(t, fs, "fs source")
}
