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

package surfaces

import (
	"testing"

	"github.com/tangelo-emu/tangelo/test"
)

func TestIntervalSetAddMerges(t *testing.T) {
	var s IntervalSet

	s.Add(MakeInterval(0x100, 0x100))
	s.Add(MakeInterval(0x300, 0x100))
	test.Equate(t, len(s.Intervals()), 2)

	// touching intervals coalesce
	s.Add(MakeInterval(0x200, 0x100))
	test.Equate(t, len(s.Intervals()), 1)
	test.Equate(t, s.Intervals()[0], MakeInterval(0x100, 0x300))
	test.Equate(t, s.Size(), uint32(0x300))
}

func TestIntervalSetSubtractSplits(t *testing.T) {
	var s IntervalSet
	s.Add(MakeInterval(0x100, 0x300))

	s.Subtract(MakeInterval(0x200, 0x100))
	iv := s.Intervals()
	test.Equate(t, len(iv), 2)
	test.Equate(t, iv[0], MakeInterval(0x100, 0x100))
	test.Equate(t, iv[1], MakeInterval(0x300, 0x100))

	// subtracting everything empties the set
	s.Subtract(MakeInterval(0x0, 0x1000))
	test.Equate(t, s.Empty(), true)
}

func TestIntervalSetCovers(t *testing.T) {
	var s IntervalSet
	s.Add(MakeInterval(0x100, 0x100))
	s.Add(MakeInterval(0x200, 0x100))

	test.Equate(t, s.Covers(MakeInterval(0x100, 0x200)), true)
	test.Equate(t, s.Covers(MakeInterval(0x100, 0x201)), false)
	test.Equate(t, s.Covers(MakeInterval(0x180, 0x80)), true)
}

func TestIntervalIntersect(t *testing.T) {
	a := MakeInterval(0x100, 0x100)
	b := MakeInterval(0x180, 0x100)

	test.Equate(t, a.Intersect(b), MakeInterval(0x180, 0x80))
	test.Equate(t, a.Intersect(MakeInterval(0x300, 0x100)).Empty(), true)
}
