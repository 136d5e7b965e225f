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
	"github.com/tangelo-emu/tangelo/logger"
	"github.com/tangelo-emu/tangelo/memory"
	"github.com/tangelo-emu/tangelo/memory/memorymap"
	"github.com/tangelo-emu/tangelo/pica"
)

// dirtyRegion is a guest range whose host texture is newer than guest
// memory. the regions in Cache.dirty are kept disjoint.
type dirtyRegion struct {
	interval Interval
	owner    *Surface
}

// Cache maps guest physical memory ranges to host textures. It is the
// single owner of every Surface and of the page coherency bookkeeping
// that makes guest writes to cached ranges visible.
//
// The Cache is not safe for concurrent use. All calls must come from
// the rasterizer goroutine.
type Cache struct {
	backend host.Backend
	mem     *memory.Memory
	pool    *texturePool

	surfaces []*Surface
	dirty    []dirtyRegion

	// reference counts of pages pinned by registered surfaces
	cachedPages map[memorymap.PAddr]int

	resScale uint32
}

// NewCache is the preferred method of initialisation for the Cache
// type. resScale is the integer upscale factor applied to every new
// surface.
func NewCache(backend host.Backend, mem *memory.Memory, resScale uint32) *Cache {
	if resScale < 1 {
		resScale = 1
	}
	return &Cache{
		backend:     backend,
		mem:         mem,
		pool:        newTexturePool(backend),
		cachedPages: make(map[memorymap.PAddr]int),
		resScale:    resScale,
	}
}

// matchKind orders the ways an existing surface can serve a request.
// Lower values are preferred.
type matchKind int

const (
	matchExact matchKind = iota
	matchSubRect
	matchCopy
	matchExpand
	matchTexCopy
	matchNone
)

// findMatch walks the registered surfaces for the best existing match
// of the given kinds. allowInvalid admits surfaces whose content is
// stale over the requested interval; copy matches always require a
// valid source. validFor is the interval a copy source must cover.
func (c *Cache) findMatch(params *SurfaceParams, scale ScaleMatch, kinds []matchKind, allowInvalid bool, validFor Interval) (*Surface, matchKind) {
	var best *Surface
	bestKind := matchNone

	better := func(s *Surface, kind matchKind) bool {
		if kind != bestKind {
			return kind < bestKind
		}
		if s.ResScale != best.ResScale {
			return s.ResScale > best.ResScale
		}
		return s.Interval().Size() > best.Interval().Size()
	}

	for _, s := range c.surfaces {
		if !s.Interval().Overlaps(params.Interval()) {
			continue
		}
		switch scale {
		case ScaleMatchExact:
			if s.ResScale != params.ResScale {
				continue
			}
		case ScaleMatchUpscale:
			if s.ResScale < params.ResScale {
				continue
			}
		}

		for _, kind := range kinds {
			ok := false
			switch kind {
			case matchExact:
				ok = s.ExactMatch(params)
			case matchSubRect:
				ok = s.CanSubRect(params)
			case matchCopy:
				ok = s.CanCopy(params, validFor)
			case matchExpand:
				ok = s.CanExpand(params)
			case matchTexCopy:
				ok = s.CanTexCopy(params)
			}
			if !ok {
				continue
			}
			if kind != matchCopy && !allowInvalid &&
				!s.IsRegionValid(s.Interval().Intersect(params.Interval())) {
				continue
			}
			if best == nil || better(s, kind) {
				best = s
				bestKind = kind
			}
			break
		}
	}

	return best, bestKind
}

// createSurface allocates an unregistered surface for the given
// parameters. The whole surface starts out invalid.
func (c *Cache) createSurface(params SurfaceParams) *Surface {
	s := &Surface{
		SurfaceParams: params,
		cache:         c,
	}
	if params.Type != TypeFill {
		s.Texture = c.pool.Get(params.Format.HostFormat(),
			int(params.ScaledWidth()), int(params.ScaledHeight()))
	}
	s.InvalidRegions.Add(s.Interval())
	return s
}

// register adds a surface to the cache and pins its pages.
func (c *Cache) register(s *Surface) {
	s.registered = true
	c.surfaces = append(c.surfaces, s)
	c.updatePagesCachedCount(s, 1)
}

// unregister removes a surface, unpins its pages and recycles its
// texture. Outstanding watchers are invalidated by the generation bump.
func (c *Cache) unregister(s *Surface) {
	if !s.registered {
		return
	}
	s.registered = false
	s.generation++
	c.updatePagesCachedCount(s, -1)

	for i, o := range c.surfaces {
		if o == s {
			c.surfaces = append(c.surfaces[:i], c.surfaces[i+1:]...)
			break
		}
	}

	// drop dirty regions the surface still owned. its content is gone
	c.dirtyEraseOwner(s)

	if s.Type != TypeFill {
		c.pool.Put(s.Texture, s.Format.HostFormat(),
			int(s.ScaledWidth()), int(s.ScaledHeight()))
		s.Texture = 0
	}
}

// updatePagesCachedCount adjusts the per-page pin counts for a surface
// and tells the memory system about pages crossing the zero boundary.
// Runs of pages changing state together are batched into one call.
func (c *Cache) updatePagesCachedCount(s *Surface, delta int) {
	start, end := s.pageSpan()

	var runStart memorymap.PAddr
	inRun := false
	flushRun := func(upTo memorymap.PAddr) {
		if inRun {
			c.mem.RasterizerMarkRegionCached(runStart, uint32(upTo-runStart), delta > 0)
			inRun = false
		}
	}

	for page := start; page < end; page += memorymap.PageSize {
		count := c.cachedPages[page] + delta
		if count < 0 {
			count = 0
		}
		if count == 0 {
			delete(c.cachedPages, page)
		} else {
			c.cachedPages[page] = count
		}

		crossing := (delta > 0 && count == 1) || (delta < 0 && count == 0)
		if crossing && !inRun {
			runStart = page
			inRun = true
		} else if !crossing {
			flushRun(page)
		}
	}
	flushRun(end)
}

// GetSurface returns a surface exactly matching params, creating one if
// necessary. With loadIfCreate the whole surface is made valid before
// returning.
func (c *Cache) GetSurface(params SurfaceParams, scale ScaleMatch, loadIfCreate bool) *Surface {
	if params.Addr == 0 || params.Width == 0 || params.Height == 0 {
		return nil
	}
	params.UpdateParams()

	s, _ := c.findMatch(&params, scale, []matchKind{matchExact}, true, Interval{})
	if s == nil {
		s = c.createSurface(params)
		c.register(s)
	}

	if loadIfCreate {
		c.ValidateSurface(s, params.Addr, params.Size)
	}
	return s
}

// GetSurfaceSubRect returns a surface containing the rectangle described
// by params, along with that rectangle in host (scaled) pixels. An
// existing surface is grown when params extends past its rows.
func (c *Cache) GetSurfaceSubRect(params SurfaceParams, scale ScaleMatch, loadIfCreate bool) (*Surface, host.Rect) {
	if params.Addr == 0 || params.Width == 0 || params.Height == 0 {
		return nil, host.Rect{}
	}

	aligned := params
	if aligned.IsTiled {
		aligned.Width = (aligned.Width + tileSize - 1) &^ (tileSize - 1)
		aligned.Height = (aligned.Height + tileSize - 1) &^ (tileSize - 1)
	}
	aligned.UpdateParams()

	s, _ := c.findMatch(&aligned, scale, []matchKind{matchSubRect}, true, Interval{})

	if s == nil {
		if expandable, kind := c.findMatch(&aligned, scale, []matchKind{matchExpand}, true, Interval{}); kind == matchExpand {
			s = c.expandSurface(expandable, &aligned)
		}
	}

	if s == nil {
		newParams := aligned
		// the new surface adopts the request's stride so future
		// requests against the same target sub-rect directly
		newParams.Stride = aligned.Stride
		s = c.createSurface(newParams)
		c.register(s)
	}

	if loadIfCreate {
		c.ValidateSurface(s, aligned.Addr, aligned.Size)
	}

	return s, s.ScaledSubRect(&params)
}

// expandSurface replaces old with a surface covering both old and
// params, carrying old's content, validity and dirty ownership across.
func (c *Cache) expandSurface(old *Surface, params *SurfaceParams) *Surface {
	merged := old.SurfaceParams
	if params.Addr < merged.Addr {
		merged.Addr = params.Addr
	}
	end := merged.End
	if params.End > end {
		end = params.End
	}
	merged.Height = merged.PixelsInBytes(uint32(end-merged.Addr)) / merged.Stride
	merged.UpdateParams()

	s := c.createSurface(merged)
	c.register(s)

	// blit old's texture into place and inherit its validity
	oldSub := old.SurfaceParams
	rect := s.ScaledSubRect(&oldSub)
	if compatibleTypes(old.Type, s.Type) {
		c.backend.Blit(old.Texture,
			host.Rect{W: int(old.ScaledWidth()), H: int(old.ScaledHeight())},
			s.Texture, rect, s.Format.HostFormat())
	}

	s.InvalidRegions.Subtract(old.Interval())
	for _, iv := range old.InvalidRegions.Intervals() {
		s.InvalidRegions.Add(iv)
	}

	// dirty regions owned by old are now owned by the merged surface
	for i := range c.dirty {
		if c.dirty[i].owner == old {
			c.dirty[i].owner = s
		}
	}
	old.InvalidRegions.Clear()
	old.InvalidRegions.Add(old.Interval())

	c.unregister(old)
	return s
}

// GetTextureSurface returns a validated surface for the texture unit
// configuration, or nil when the address is unmapped. Mip levels up to
// maxLevel are kept validated through watchers; sampling binds the base
// image.
func (c *Cache) GetTextureSurface(cfg pica.TextureConfig, maxLevel uint32) *Surface {
	if cfg.Addr == 0 {
		return nil
	}
	if _, ok := c.mem.GetPhysicalRef(cfg.Addr); !ok {
		logger.Logf(logger.Allow, "surfaces", "texture at unmapped address %#08x", cfg.Addr)
		return nil
	}

	params := SurfaceParams{
		Addr:     cfg.Addr,
		Width:    cfg.Width,
		Height:   cfg.Height,
		IsTiled:  true,
		Format:   FromTextureFormat(cfg.Format),
		ResScale: 1,
	}
	if params.Format == PixelInvalid {
		logger.Logf(logger.Allow, "surfaces", "texture with invalid format at %#08x", cfg.Addr)
		return nil
	}
	params.UpdateParams()

	s := c.GetSurface(params, ScaleMatchIgnore, true)
	if s == nil {
		return nil
	}

	// keep the smaller levels current in their own surfaces so a guest
	// write to any level is noticed before the next draw
	level := params
	for l := uint32(1); l <= maxLevel && level.Width >= 2*tileSize && level.Height >= 2*tileSize; l++ {
		level.Addr = level.End
		level.Width /= 2
		level.Height /= 2
		level.Stride = 0
		level.UpdateParams()

		for len(s.levelWatchers) < int(l) {
			s.levelWatchers = append(s.levelWatchers, nil)
		}
		w := s.levelWatchers[l-1]
		if ls := w.Get(); ls != nil && ls.IsRegionValid(ls.Interval()) {
			continue
		}
		if ls := c.GetSurface(level, ScaleMatchIgnore, true); ls != nil {
			s.levelWatchers[l-1] = ls.Watch()
		}
	}

	return s
}

// GetFramebufferSurfaces returns the color and depth surfaces for the
// current render target registers, along with the common draw rectangle
// in host pixels. Either surface may be nil when unused.
func (c *Cache) GetFramebufferSurfaces(regs *pica.Regs, usingColor bool, usingDepth bool) (*Surface, *Surface, host.Rect) {
	fb := regs.Framebuffer()

	colorParams := SurfaceParams{
		Addr:     fb.ColorAddr,
		Width:    fb.Width,
		Height:   fb.Height,
		IsTiled:  true,
		Format:   FromColorFormat(fb.ColorFormat),
		ResScale: c.resScale,
	}
	colorParams.UpdateParams()

	depthParams := colorParams
	depthParams.Addr = fb.DepthAddr
	depthParams.Format = FromDepthFormat(fb.DepthFormat)
	depthParams.UpdateParams()

	// a color buffer overlapping the depth buffer is malformed. drop
	// depth in that order of preference
	if usingColor && usingDepth &&
		colorParams.Interval().Overlaps(depthParams.Interval()) {
		logger.Logf(logger.Allow, "surfaces", "overlapping color and depth buffers at %#08x", fb.ColorAddr)
		usingDepth = false
	}

	var color, depth *Surface
	var colorRect, depthRect host.Rect

	if usingColor && colorParams.Addr != 0 {
		color, colorRect = c.GetSurfaceSubRect(colorParams, ScaleMatchExact, true)
	}
	if usingDepth && depthParams.Addr != 0 {
		depth, depthRect = c.GetSurfaceSubRect(depthParams, ScaleMatchExact, true)
	}

	rect := colorRect
	if color == nil {
		rect = depthRect
	} else if depth != nil && depthRect != colorRect {
		// the buffers resolved to differently placed rectangles. use
		// the intersection so neither surface is drawn out of bounds
		rect = intersectRects(colorRect, depthRect)
	}

	return color, depth, rect
}

func intersectRects(a, b host.Rect) host.Rect {
	x0, y0 := max(a.X, b.X), max(a.Y, b.Y)
	x1, y1 := min(a.X+a.W, b.X+b.W), min(a.Y+a.H, b.Y+b.H)
	if x1 < x0 {
		x1 = x0
	}
	if y1 < y0 {
		y1 = y0
	}
	return host.Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

// GetFillSurface records a memory fill as a surface. The fill becomes
// the owner of its range; readers replicate the pattern on demand.
func (c *Cache) GetFillSurface(addr memorymap.PAddr, size uint32, fillData []byte) *Surface {
	if size == 0 || len(fillData) == 0 || len(fillData) > 4 {
		return nil
	}

	s := &Surface{
		SurfaceParams: SurfaceParams{
			Addr:     addr,
			End:      addr + memorymap.PAddr(size),
			Size:     size,
			Type:     TypeFill,
			Format:   PixelInvalid,
			ResScale: c.resScale,
		},
		FillSize: len(fillData),
		cache:    c,
	}
	copy(s.FillData[:], fillData)

	c.register(s)
	c.InvalidateRegion(addr, size, s)
	return s
}

// GetTexCopySurface serves a raw texture copy. The returned rectangle is
// in host pixels of the returned surface; the surface is nil when no
// registered surface can reproduce the copied bytes.
func (c *Cache) GetTexCopySurface(params SurfaceParams) (*Surface, host.Rect) {
	if params.Addr == 0 || params.Size == 0 {
		return nil, host.Rect{}
	}

	s, kind := c.findMatch(&params, ScaleMatchIgnore, []matchKind{matchTexCopy}, true, Interval{})
	if kind != matchTexCopy {
		return nil, host.Rect{}
	}

	c.ValidateSurface(s, params.Addr, params.Size)

	// reinterpret the byte-unit copy parameters in s's pixel geometry
	var sub SurfaceParams
	if params.Width != params.Stride {
		tiled := uint32(1)
		if s.IsTiled {
			tiled = tileSize
		}
		sub = params
		sub.Width = s.PixelsInBytes(params.Width) / tiled
		sub.Stride = s.PixelsInBytes(params.Stride) / tiled
		sub.Height = params.Height * tiled
	} else {
		sub = s.FromInterval(params.Interval())
	}

	return s, s.ScaledSubRect(&sub)
}

// BlitSurfaces copies a rectangle between two surfaces on the host. It
// fails when the surface types cannot share data.
func (c *Cache) BlitSurfaces(src *Surface, srcRect host.Rect, dst *Surface, dstRect host.Rect) bool {
	if src == nil || dst == nil || !compatibleTypes(src.Type, dst.Type) {
		return false
	}
	c.backend.Blit(src.Texture, srcRect, dst.Texture, dstRect, dst.Format.HostFormat())
	return true
}

// copySurface serves part of dst's guest range from src on the host.
// Fill sources clear, others blit.
func (c *Cache) copySurface(src, dst *Surface, interval Interval) {
	sub := dst.FromInterval(interval)
	rect := dst.ScaledSubRect(&sub)

	if src.Type == TypeFill {
		c.backend.Fill(dst.Texture, dst.Format.HostFormat(), rect,
			src.fillValueFor(dst.Format))
		return
	}

	srcRect := src.ScaledSubRect(&sub)
	c.backend.Blit(src.Texture, srcRect, dst.Texture, rect, dst.Format.HostFormat())
}

// fillValueFor decodes the fill pattern as one pixel of the given
// format.
func (s *Surface) fillValueFor(format PixelFormat) host.FillValue {
	var v host.FillValue

	bpp := int(format.BitsPerPixel() / 8)
	guest := make([]byte, 4)
	for i := 0; i < len(guest); i++ {
		guest[i] = s.FillData[i%s.FillSize]
	}
	guest = guest[:max(bpp, 1)]

	switch format {
	case PixelD16:
		d := uint32(guest[0]) | uint32(guest[1])<<8
		v.Depth = float32(d) / 0xffff
	case PixelD24:
		d := uint32(guest[0]) | uint32(guest[1])<<8 | uint32(guest[2])<<16
		v.Depth = float32(d) / 0xffffff
	case PixelD24S8:
		d := uint32(guest[0]) | uint32(guest[1])<<8 | uint32(guest[2])<<16
		v.Depth = float32(d) / 0xffffff
		v.Stencil = guest[3]
	default:
		px := decodePixel(format, guest, 0)
		for i := 0; i < 4; i++ {
			v.Color[i] = float32(px[i]) / 255
		}
	}
	return v
}

// ValidateSurface makes the host texture current for every byte of the
// range. Stale sub-ranges are served from another surface on the host
// where possible, and decoded from guest memory otherwise.
func (c *Cache) ValidateSurface(s *Surface, addr memorymap.PAddr, size uint32) {
	if size == 0 {
		return
	}
	interval := MakeInterval(addr, size)

	for {
		pending := s.InvalidRegions.Intersect(interval)
		if len(pending) == 0 {
			return
		}
		iv := pending[0]

		params := s.FromInterval(iv)

		if src := c.findCopySource(s, &params, iv); src != nil {
			c.copySurface(src, s, iv)
			s.InvalidRegions.Subtract(iv)
			continue
		}

		// no host source. pull any pending writes covering the range
		// first, then decode from guest memory
		c.FlushRegion(params.Addr, params.Size)
		staging, sub := s.LoadGPUBuffer(params.Interval())
		s.UploadGPUTexture(staging, &sub)
		s.InvalidRegions.Subtract(sub.Interval())
	}
}

// findCopySource returns a registered surface able to fill dst's
// invalid interval on the host, preferring the most recent fill owner.
func (c *Cache) findCopySource(dst *Surface, params *SurfaceParams, interval Interval) *Surface {
	src, kind := c.findMatch(params, ScaleMatchIgnore, []matchKind{matchCopy}, false, interval)
	if kind != matchCopy || src == dst {
		return nil
	}
	if src.Type != TypeFill && src.Format != dst.Format {
		// a differently formatted source would need a format
		// reinterpretation pass, which the cache does not perform.
		// decoding from guest memory is always correct, just slower
		return nil
	}
	return src
}

// FlushRegion writes every pending host write overlapping the range back
// to guest memory.
func (c *Cache) FlushRegion(addr memorymap.PAddr, size uint32) {
	c.flushRegionForOwner(addr, size, nil)
}

// flushRegionForOwner is FlushRegion limited to regions owned by a
// particular surface; a nil owner flushes everything. Flushes of eight
// bytes or less widen to the whole dirty region, matching the small
// stores the guest uses to poll render results.
func (c *Cache) flushRegionForOwner(addr memorymap.PAddr, size uint32, owner *Surface) {
	if size == 0 || len(c.dirty) == 0 {
		return
	}
	interval := MakeInterval(addr, size)

	var flushed []Interval
	for _, d := range c.dirty {
		if owner != nil && d.owner != owner {
			continue
		}
		if !d.interval.Overlaps(interval) {
			continue
		}

		iv := d.interval.Intersect(interval)
		if size <= 8 {
			iv = d.interval
		}

		s := d.owner
		if s.Type == TypeFill {
			s.flushFill(iv)
		} else {
			staging, sub := s.DownloadGPUTexture(iv)
			s.FlushGPUBuffer(staging, &sub, iv)
		}
		flushed = append(flushed, iv)
	}

	for _, iv := range flushed {
		c.dirtyErase(iv)
	}
}

// InvalidateRegion marks the range stale on every surface except the
// owner, which (when given) becomes the holder of the newest copy.
// A nil owner means the guest wrote the bytes directly.
func (c *Cache) InvalidateRegion(addr memorymap.PAddr, size uint32, owner *Surface) {
	if size == 0 {
		return
	}
	interval := MakeInterval(addr, size)

	var remove []*Surface
	for _, s := range c.surfaces {
		if s == owner {
			continue
		}
		if !s.Interval().Overlaps(interval) {
			continue
		}
		s.InvalidRegions.Add(s.Interval().Intersect(interval))

		// a surface with no valid byte left serves no one
		if s.IsFullyInvalid() {
			remove = append(remove, s)
		}
	}

	if owner != nil {
		owner.InvalidRegions.Subtract(interval)
		c.dirtySet(interval.Intersect(owner.Interval()), owner)
	} else {
		c.dirtyErase(interval)
	}

	for _, s := range remove {
		c.unregister(s)
	}
}

// FlushAndInvalidateRegion flushes pending writes then marks the range
// stale everywhere.
func (c *Cache) FlushAndInvalidateRegion(addr memorymap.PAddr, size uint32) {
	c.FlushRegion(addr, size)
	c.InvalidateRegion(addr, size, nil)
}

// FlushAll writes every pending host write back to guest memory.
func (c *Cache) FlushAll() {
	for len(c.dirty) > 0 {
		d := c.dirty[0]
		c.flushRegionForOwner(d.interval.Start, d.interval.Size(), nil)
	}
}

// ClearAll drops every surface. With flush, pending writes reach guest
// memory first; without, host content is discarded.
func (c *Cache) ClearAll(flush bool) {
	if flush {
		c.FlushAll()
	}

	for len(c.surfaces) > 0 {
		c.unregister(c.surfaces[0])
	}
	c.dirty = nil
	c.pool.Clear()

	// pages should all be unpinned by now. clear defensively in case a
	// surface was double registered
	for page := range c.cachedPages {
		c.mem.RasterizerMarkRegionCached(page, memorymap.PageSize, false)
		delete(c.cachedPages, page)
	}
}

// dirtySet records the owner of the newest copy of interval, displacing
// any previous owners of overlapping ranges.
func (c *Cache) dirtySet(interval Interval, owner *Surface) {
	if interval.Empty() {
		return
	}
	c.dirtyErase(interval)
	c.dirty = append(c.dirty, dirtyRegion{interval: interval, owner: owner})
}

// dirtyErase removes interval from the dirty list, splitting regions
// that straddle its edges.
func (c *Cache) dirtyErase(interval Interval) {
	if interval.Empty() {
		return
	}
	out := c.dirty[:0]
	var split []dirtyRegion
	for _, d := range c.dirty {
		if !d.interval.Overlaps(interval) {
			out = append(out, d)
			continue
		}
		if d.interval.Start < interval.Start {
			split = append(split, dirtyRegion{
				interval: Interval{Start: d.interval.Start, End: interval.Start},
				owner:    d.owner,
			})
		}
		if d.interval.End > interval.End {
			split = append(split, dirtyRegion{
				interval: Interval{Start: interval.End, End: d.interval.End},
				owner:    d.owner,
			})
		}
	}
	c.dirty = append(out, split...)
}

// dirtyEraseOwner removes every dirty region owned by s.
func (c *Cache) dirtyEraseOwner(s *Surface) {
	out := c.dirty[:0]
	for _, d := range c.dirty {
		if d.owner != s {
			out = append(out, d)
		}
	}
	c.dirty = out
}
