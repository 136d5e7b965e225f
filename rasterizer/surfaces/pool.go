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
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/tangelo-emu/tangelo/host"
)

// poolShapes is the number of distinct (format, width, height) shapes the
// recycle pool retains before evicting the least recently used shape.
const poolShapes = 64

type poolKey struct {
	format host.PixelFormat
	width  int
	height int
}

// texturePool recycles destroyed surface textures by shape so that
// surface churn does not translate into host allocation churn.
type texturePool struct {
	backend host.Backend
	shapes  *lru.Cache[poolKey, *[]host.TextureID]
}

func newTexturePool(backend host.Backend) *texturePool {
	p := &texturePool{backend: backend}

	// evicting a shape destroys every texture it holds
	p.shapes, _ = lru.NewWithEvict[poolKey, *[]host.TextureID](poolShapes,
		func(_ poolKey, ids *[]host.TextureID) {
			for _, id := range *ids {
				p.backend.DestroyTexture(id)
			}
		})

	return p
}

// Get returns a texture of the given shape, recycled if one is
// available.
func (p *texturePool) Get(format host.PixelFormat, width int, height int) host.TextureID {
	key := poolKey{format: format, width: width, height: height}
	if ids, ok := p.shapes.Get(key); ok && len(*ids) > 0 {
		id := (*ids)[len(*ids)-1]
		*ids = (*ids)[:len(*ids)-1]
		return id
	}
	return p.backend.CreateTexture(format, width, height)
}

// Put returns a texture to the pool.
func (p *texturePool) Put(id host.TextureID, format host.PixelFormat, width int, height int) {
	key := poolKey{format: format, width: width, height: height}
	ids, ok := p.shapes.Get(key)
	if !ok {
		ids = &[]host.TextureID{}
		p.shapes.Add(key, ids)
	}
	*ids = append(*ids, id)
}

// Clear destroys every pooled texture.
func (p *texturePool) Clear() {
	p.shapes.Purge()
}
