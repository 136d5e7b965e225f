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
	"github.com/tangelo-emu/tangelo/host"
	"github.com/tangelo-emu/tangelo/memory/memorymap"
)

// Surface is one host texture cached against a guest physical range.
// Surfaces are owned by the Cache; other components hold Watchers.
type Surface struct {
	SurfaceParams

	// Texture is the host texture at scaled dimensions.
	Texture host.TextureID

	// InvalidRegions are the sub-ranges whose guest bytes are newer than
	// the host texture.
	InvalidRegions IntervalSet

	// fill surfaces replicate FillData instead of holding texel storage
	FillData [4]byte
	FillSize int

	// generation is bumped whenever the surface is unregistered or its
	// content is replaced wholesale, invalidating outstanding watchers
	generation uint64

	// levelWatchers track the mip level surfaces below this one
	levelWatchers []*Watcher

	registered bool

	cache *Cache
}

// Watcher observes a surface without extending its lifetime. Get returns
// nil once the watched surface has been evicted or replaced.
type Watcher struct {
	surface    *Surface
	generation uint64
}

// Watch returns a watcher for the surface's current generation.
func (s *Surface) Watch() *Watcher {
	return &Watcher{surface: s, generation: s.generation}
}

// Get returns the watched surface, or nil if it is gone.
func (w *Watcher) Get() *Surface {
	if w == nil || w.surface == nil {
		return nil
	}
	if !w.surface.registered || w.surface.generation != w.generation {
		return nil
	}
	return w.surface
}

// IsRegionValid reports whether the host texture is current for every
// byte of the interval.
func (s *Surface) IsRegionValid(interval Interval) bool {
	for _, i := range s.InvalidRegions.Intervals() {
		if i.Overlaps(interval) {
			return false
		}
	}
	return true
}

// IsFullyInvalid reports whether no byte of the surface is valid.
func (s *Surface) IsFullyInvalid() bool {
	invalid := IntervalSet{}
	for _, i := range s.InvalidRegions.Intervals() {
		invalid.Add(i)
	}
	return invalid.Covers(s.Interval())
}

// CanCopy reports whether s can serve as a blit source to fill dst's
// invalid interval. Fill surfaces can always be replicated; otherwise s
// must be valid across the interval and dst must be a sub-rect of s.
func (s *Surface) CanCopy(dst *SurfaceParams, interval Interval) bool {
	if s.Type == TypeFill && s.Format != PixelInvalid &&
		s.Interval().Contains(interval) {
		// the fill pattern must tile the destination's pixel size
		bpp := dst.Format.BitsPerPixel() / 8
		if bpp == 0 {
			return false
		}
		return uint32(s.FillSize)%bpp == 0 || s.FillSize%4 == 0
	}
	if s.Format != dst.Format || s.IsTiled != dst.IsTiled {
		return false
	}
	sub := dst.FromInterval(interval)
	return s.CanSubRect(&sub) && s.IsRegionValid(interval)
}

// guestBytes returns the backing slice of the surface's interval.
func (s *Surface) guestBytes(interval Interval) []byte {
	ref, ok := s.cache.mem.GetPhysicalRef(interval.Start)
	if !ok || ref.Size() < interval.Size() {
		return nil
	}
	return ref.Ptr()[:interval.Size()]
}

// LoadGPUBuffer decodes guest bytes covering interval into a staging
// buffer of linear host pixels and returns it along with the covered
// sub-surface.
func (s *Surface) LoadGPUBuffer(interval Interval) ([]byte, SurfaceParams) {
	sub := s.FromInterval(interval)

	guest := s.guestBytes(sub.Interval())
	staging := make([]byte, sub.Width*sub.Height*uint32(s.Format.HostFormat().BytesPerPixel()))
	if guest == nil {
		return staging, sub
	}

	// decode with the sub-surface's own geometry; pixel indices are
	// relative to its first byte
	GuestToHost(&sub, guest, staging)
	return staging, sub
}

// UploadGPUTexture uploads a staging buffer to the host texture at the
// sub-surface's rectangle. For upscaled surfaces the data goes through
// an unscaled texture and a blit.
func (s *Surface) UploadGPUTexture(staging []byte, sub *SurfaceParams) {
	rect := s.SubRect(sub)
	hostFormat := s.Format.HostFormat()

	if s.ResScale == 1 {
		s.cache.backend.Upload(s.Texture, hostFormat, rect, staging)
		return
	}

	tmp := s.cache.pool.Get(hostFormat, int(sub.Width), int(sub.Height))
	s.cache.backend.Upload(tmp, hostFormat, host.Rect{W: int(sub.Width), H: int(sub.Height)}, staging)
	s.cache.backend.Blit(tmp, host.Rect{W: int(sub.Width), H: int(sub.Height)},
		s.Texture, rect.Scaled(int(s.ResScale)), hostFormat)
	s.cache.pool.Put(tmp, hostFormat, int(sub.Width), int(sub.Height))
}

// DownloadGPUTexture reads the host texture rectangle covering interval
// back into a staging buffer.
func (s *Surface) DownloadGPUTexture(interval Interval) ([]byte, SurfaceParams) {
	sub := s.FromInterval(interval)
	rect := s.SubRect(&sub)
	hostFormat := s.Format.HostFormat()

	staging := make([]byte, sub.Width*sub.Height*uint32(hostFormat.BytesPerPixel()))

	if s.ResScale == 1 {
		s.cache.backend.Download(s.Texture, hostFormat, rect, staging)
		return staging, sub
	}

	tmp := s.cache.pool.Get(hostFormat, int(sub.Width), int(sub.Height))
	s.cache.backend.Blit(s.Texture, rect.Scaled(int(s.ResScale)),
		tmp, host.Rect{W: int(sub.Width), H: int(sub.Height)}, hostFormat)
	s.cache.backend.Download(tmp, hostFormat, host.Rect{W: int(sub.Width), H: int(sub.Height)}, staging)
	s.cache.pool.Put(tmp, hostFormat, int(sub.Width), int(sub.Height))
	return staging, sub
}

// FlushGPUBuffer writes a staging buffer back to guest memory in the
// guest's layout. Fill surfaces replicate their pattern instead.
func (s *Surface) FlushGPUBuffer(staging []byte, sub *SurfaceParams, interval Interval) {
	if s.Type == TypeFill {
		s.flushFill(interval)
		return
	}

	guest := s.guestBytes(sub.Interval())
	if guest == nil {
		return
	}
	HostToGuest(sub, staging, guest)
}

// flushFill replicates the fill pattern over the guest bytes of
// interval.
func (s *Surface) flushFill(interval Interval) {
	guest := s.guestBytes(interval)
	if guest == nil || s.FillSize == 0 {
		return
	}

	// the pattern phase follows the offset from the fill's own base
	phase := int(interval.Start-s.Addr) % s.FillSize
	for i := range guest {
		guest[i] = s.FillData[(phase+i)%s.FillSize]
	}
}

// pageSpan returns the page-aligned physical span of the surface.
func (s *Surface) pageSpan() (memorymap.PAddr, memorymap.PAddr) {
	start := s.Addr &^ memorymap.PAddr(memorymap.PageSize-1)
	end := (s.End + memorymap.PAddr(memorymap.PageSize-1)) &^ memorymap.PAddr(memorymap.PageSize-1)
	return start, end
}
