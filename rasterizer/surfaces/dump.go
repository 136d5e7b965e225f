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
	"fmt"
	"io"

	"github.com/bradleyjkemp/memviz"
)

// dumpEntry is the flattened view of one surface used by Dump. The
// pointer graph of live surfaces is cyclic through the cache, which
// makes the raw structures unreadable when graphed.
type dumpEntry struct {
	Addr     string
	Size     uint32
	Format   PixelFormat
	Type     SurfaceType
	Tiled    bool
	ResScale uint32
	Invalid  []string
	Dirty    bool
}

// Dump writes a graphviz description of the cache's surfaces to w. It
// exists for debugging surface accounting problems.
func (c *Cache) Dump(w io.Writer) {
	entries := make([]dumpEntry, 0, len(c.surfaces))
	for _, s := range c.surfaces {
		e := dumpEntry{
			Addr:     fmt.Sprintf("%#08x-%#08x", s.Addr, s.End),
			Size:     s.Size,
			Format:   s.Format,
			Type:     s.Type,
			Tiled:    s.IsTiled,
			ResScale: s.ResScale,
		}
		for _, iv := range s.InvalidRegions.Intervals() {
			e.Invalid = append(e.Invalid, fmt.Sprintf("%#08x-%#08x", iv.Start, iv.End))
		}
		for _, d := range c.dirty {
			if d.owner == s {
				e.Dirty = true
				break
			}
		}
		entries = append(entries, e)
	}
	memviz.Map(w, &entries)
}
