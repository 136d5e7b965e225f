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

// Package shadercache maps guest pipeline fingerprints to generated
// GLSL and linked host programs, and persists both across runs.
//
// The runtime caches are keyed by the comparable fingerprint structs of
// the shadergen package. Vertex shaders are double indexed, fingerprint
// to source to program, because distinct fingerprints can decompile to
// identical sources once dead program memory is ignored.
//
// The disk cache keeps two files per title. The transferable file holds
// the guest-side inputs and moves freely between hosts. The precompiled
// file holds generated sources and linked program binaries and is only
// valid for the generator revision and host driver that produced it.
package shadercache

import (
	"os"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/spf13/afero"

	"github.com/tangelo-emu/tangelo/host"
	"github.com/tangelo-emu/tangelo/pica"
	"github.com/tangelo-emu/tangelo/rasterizer/shadergen"
)

const appendFlags = os.O_CREATE | os.O_WRONLY | os.O_APPEND

// Cache holds every compiled shader and linked program of the running
// title. A single mutex guards the maps: it is held only while looking
// up or injecting, never while the host compiler runs on the caller's
// thread during warm-up.
//
// NewCache is the preferred method of initialisation for the Cache type.
type Cache struct {
	crit sync.Mutex

	backend     host.Backend
	sanitizeMul bool

	fragment map[shadergen.FSConfig]string
	vertex   map[shadergen.VSConfig]string
	geometry map[shadergen.FixedGSConfig]string

	// programs are keyed by the combined hash of the three stage sources
	programs map[uint64]host.ProgramID

	trivialVS string

	disk  *diskCache
	pw    *precompiledWriter
	saved map[uint64]bool
}

// NewCache prepares the runtime caches. fs carries the per-title disk
// cache; a nil fs disables persistence.
func NewCache(backend host.Backend, fs afero.Fs, titleID uint64, sanitizeMul bool) *Cache {
	c := &Cache{
		backend:     backend,
		sanitizeMul: sanitizeMul,
		fragment:    map[shadergen.FSConfig]string{},
		vertex:      map[shadergen.VSConfig]string{},
		geometry:    map[shadergen.FixedGSConfig]string{},
		programs:    map[uint64]host.ProgramID{},
		trivialVS:   shadergen.GenerateTrivialVertexShader(),
		saved:       map[uint64]bool{},
	}
	if fs != nil {
		c.disk = newDiskCache(fs, titleID)
	}
	return c
}

// Close flushes the precompiled writer. The host programs themselves
// belong to the backend and die with it.
func (c *Cache) Close() {
	c.crit.Lock()
	defer c.crit.Unlock()
	if c.pw != nil {
		c.pw.close()
		c.pw = nil
	}
}

// TrivialVertexSource returns the pass-through vertex shader used with
// software-transformed batches.
func (c *Cache) TrivialVertexSource() string {
	return c.trivialVS
}

// VertexSource returns the decompiled source for the loaded guest
// program, generating and persisting it on first sight. An error means
// the program cannot run on the host; the caller falls back to software
// vertex processing.
func (c *Cache) VertexSource(cfg *shadergen.VSConfig, regs *pica.Regs, setup *pica.ShaderSetup) (string, error) {
	c.crit.Lock()
	if src, ok := c.vertex[*cfg]; ok {
		c.crit.Unlock()
		return src, nil
	}
	c.crit.Unlock()

	src, err := shadergen.GenerateVertexShader(cfg, setup)
	if err != nil {
		return "", err
	}

	c.crit.Lock()
	defer c.crit.Unlock()
	c.vertex[*cfg] = src
	c.saveRaw(ProgramVertex, regs, setup, src)
	return src, nil
}

// FragmentSource returns the fragment source for the fingerprint,
// generating and persisting it on first sight.
func (c *Cache) FragmentSource(cfg *shadergen.FSConfig, regs *pica.Regs) string {
	c.crit.Lock()
	defer c.crit.Unlock()
	if src, ok := c.fragment[*cfg]; ok {
		return src
	}
	src := shadergen.GenerateFragmentShader(cfg)
	c.fragment[*cfg] = src
	c.saveRaw(ProgramFragment, regs, nil, src)
	return src
}

// GeometrySource returns the fixed-function geometry source for the
// fingerprint. Geometry shaders have no guest-side program so they are
// never persisted.
func (c *Cache) GeometrySource(cfg *shadergen.FixedGSConfig) string {
	c.crit.Lock()
	defer c.crit.Unlock()
	if src, ok := c.geometry[*cfg]; ok {
		return src
	}
	src := shadergen.GenerateFixedGeometryShader(cfg)
	c.geometry[*cfg] = src
	return src
}

func programKey(vsSrc, gsSrc, fsSrc string) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(vsSrc)
	_, _ = d.Write([]byte{0})
	_, _ = d.WriteString(gsSrc)
	_, _ = d.Write([]byte{0})
	_, _ = d.WriteString(fsSrc)
	return d.Sum64()
}

// GetProgram links the three stage sources into a host program, reusing
// a previous link or an injected program binary when available. New
// links are dumped to the precompiled file.
func (c *Cache) GetProgram(vsSrc, gsSrc, fsSrc string) (host.ProgramID, error) {
	key := programKey(vsSrc, gsSrc, fsSrc)

	c.crit.Lock()
	if id, ok := c.programs[key]; ok {
		c.crit.Unlock()
		return id, nil
	}
	c.crit.Unlock()

	id, err := c.backend.CompileProgram(vsSrc, gsSrc, fsSrc)
	if err != nil {
		return 0, err
	}

	c.crit.Lock()
	defer c.crit.Unlock()
	if prev, ok := c.programs[key]; ok {
		// another warm-up worker linked the same triple
		c.backend.DestroyProgram(id)
		return prev, nil
	}
	c.programs[key] = id
	c.saveDump(key, id)
	return id, nil
}

// saveRaw persists the guest-side input and the generated source. The
// caller holds the mutex.
func (c *Cache) saveRaw(typ ProgramType, regs *pica.Regs, setup *pica.ShaderSetup, src string) {
	if c.disk == nil || regs == nil {
		return
	}

	raw := &Raw{Type: typ, Regs: *regs}
	if setup != nil {
		raw.Code = setup.ProgramCode
		raw.Swizzle = setup.SwizzleData
	}
	raw.ID = raw.Identifier()
	if c.saved[raw.ID] {
		return
	}

	if err := c.disk.appendRaw(raw); err != nil {
		return
	}
	c.saved[raw.ID] = true

	if c.ensurePrecompiled() {
		_ = c.pw.writeDecompiled(&Decompiled{
			ID:          raw.ID,
			SanitizeMul: c.sanitizeMul,
			Source:      src,
		})
	}
}

// saveDump persists the linked program binary. The caller holds the
// mutex. Backends without binary support simply skip the dump.
func (c *Cache) saveDump(key uint64, id host.ProgramID) {
	if c.disk == nil || !c.ensurePrecompiled() {
		return
	}
	format, data, err := c.backend.ProgramBinary(id)
	if err != nil {
		return
	}
	_ = c.pw.writeDump(&Dump{ID: key, Format: format, Binary: data})
}

func (c *Cache) ensurePrecompiled() bool {
	if c.pw != nil {
		return true
	}
	if c.disk == nil {
		return false
	}
	pw, err := c.disk.openPrecompiled()
	if err != nil {
		return false
	}
	c.pw = pw
	return true
}

// Stats reports the number of cached entries per stage. Used by the
// performance monitor.
func (c *Cache) Stats() (vertex, fragment, geometry, programs int) {
	c.crit.Lock()
	defer c.crit.Unlock()
	return len(c.vertex), len(c.fragment), len(c.geometry), len(c.programs)
}
