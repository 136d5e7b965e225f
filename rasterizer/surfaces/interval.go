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
	"github.com/tangelo-emu/tangelo/memory/memorymap"
)

// Interval is a half-open physical address range [Start, End).
type Interval struct {
	Start memorymap.PAddr
	End   memorymap.PAddr
}

// MakeInterval returns the interval covering size bytes from addr.
func MakeInterval(addr memorymap.PAddr, size uint32) Interval {
	return Interval{Start: addr, End: addr + memorymap.PAddr(size)}
}

// Empty reports whether the interval covers no bytes.
func (i Interval) Empty() bool {
	return i.End <= i.Start
}

// Size returns the number of bytes the interval covers.
func (i Interval) Size() uint32 {
	if i.Empty() {
		return 0
	}
	return uint32(i.End - i.Start)
}

// Overlaps reports whether the two intervals share any byte.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start < o.End && o.Start < i.End
}

// Contains reports whether o lies entirely within i.
func (i Interval) Contains(o Interval) bool {
	return i.Start <= o.Start && o.End <= i.End
}

// Intersect returns the overlap of the two intervals. The result may be
// empty.
func (i Interval) Intersect(o Interval) Interval {
	r := Interval{Start: i.Start, End: i.End}
	if o.Start > r.Start {
		r.Start = o.Start
	}
	if o.End < r.End {
		r.End = o.End
	}
	return r
}

// IntervalSet is a set of bytes over physical address space, kept as a
// sorted slice of disjoint non-empty intervals. The zero value is an
// empty set.
type IntervalSet struct {
	intervals []Interval
}

// Empty reports whether the set covers no bytes.
func (s *IntervalSet) Empty() bool {
	return len(s.intervals) == 0
}

// Size returns the total number of bytes covered.
func (s *IntervalSet) Size() uint32 {
	var n uint32
	for _, i := range s.intervals {
		n += i.Size()
	}
	return n
}

// Clear removes every interval from the set.
func (s *IntervalSet) Clear() {
	s.intervals = s.intervals[:0]
}

// Add inserts an interval, merging it with any intervals it touches or
// overlaps.
func (s *IntervalSet) Add(in Interval) {
	if in.Empty() {
		return
	}

	out := s.intervals[:0:0]
	for _, i := range s.intervals {
		switch {
		case i.End < in.Start || in.End < i.Start:
			out = append(out, i)
		default:
			// merge
			if i.Start < in.Start {
				in.Start = i.Start
			}
			if i.End > in.End {
				in.End = i.End
			}
		}
	}

	// insert keeping sort order
	pos := len(out)
	for k, i := range out {
		if in.Start < i.Start {
			pos = k
			break
		}
	}
	out = append(out, Interval{})
	copy(out[pos+1:], out[pos:])
	out[pos] = in
	s.intervals = out
}

// Subtract removes an interval from the set, splitting covered intervals
// as needed.
func (s *IntervalSet) Subtract(in Interval) {
	if in.Empty() {
		return
	}

	out := s.intervals[:0:0]
	for _, i := range s.intervals {
		if !i.Overlaps(in) {
			out = append(out, i)
			continue
		}
		if i.Start < in.Start {
			out = append(out, Interval{Start: i.Start, End: in.Start})
		}
		if in.End < i.End {
			out = append(out, Interval{Start: in.End, End: i.End})
		}
	}
	s.intervals = out
}

// Intersect returns the parts of the set that lie within in.
func (s *IntervalSet) Intersect(in Interval) []Interval {
	var out []Interval
	for _, i := range s.intervals {
		if i.Overlaps(in) {
			out = append(out, i.Intersect(in))
		}
	}
	return out
}

// Intervals returns the intervals of the set in ascending order. The
// returned slice is the set's own storage and must not be modified.
func (s *IntervalSet) Intervals() []Interval {
	return s.intervals
}

// Covers reports whether the set covers every byte of in.
func (s *IntervalSet) Covers(in Interval) bool {
	for _, i := range s.intervals {
		if i.Contains(in) {
			return true
		}
	}
	return false
}
