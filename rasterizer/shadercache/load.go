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

package shadercache

import (
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/tangelo-emu/tangelo/curated"
	"github.com/tangelo-emu/tangelo/logger"
	"github.com/tangelo-emu/tangelo/pica"
	"github.com/tangelo-emu/tangelo/rasterizer/shadergen"
)

// LoadStage identifies the phase the disk cache load is in. Reported
// through the progress callback so a launcher can show warm-up state.
type LoadStage int

// Stages of the disk cache load, in order.
const (
	LoadPrepare LoadStage = iota
	LoadDecompile
	LoadBuild
	LoadComplete
)

// Progress receives warm-up updates. current counts processed entries
// within the stage, total is the whole workload.
type Progress func(stage LoadStage, current int, total int)

// poisoned file error
const IdentifierMismatch = "shadercache: identifier mismatch, cache invalidated"

// LoadDiskCache warms the runtime caches from the per-title files. The
// stop flag is observed between entries so a title switch can abandon
// the warm-up. Source regeneration runs across NumCPU workers; host
// compilation is serialised through the backend.
func (c *Cache) LoadDiskCache(stop *atomic.Bool, progress Progress) error {
	if c.disk == nil {
		return nil
	}
	if progress == nil {
		progress = func(LoadStage, int, int) {}
	}

	raws, err := c.disk.loadTransferable()
	if err != nil {
		logger.Logf(logger.Allow, "shadercache", "%v", err)
		return nil
	}
	if len(raws) == 0 {
		progress(LoadComplete, 0, 0)
		return nil
	}

	decompiled, dumps, err := c.disk.loadPrecompiled()
	if err != nil {
		logger.Logf(logger.Allow, "shadercache", "%v", err)
	}

	total := len(raws)
	progress(LoadPrepare, 0, total)

	// a stored identifier that disagrees with the recomputed one means
	// the file was produced from different guest state. nothing in it
	// can be trusted.
	for _, raw := range raws {
		if raw.ID != raw.Identifier() {
			c.disk.invalidateAll()
			return curated.Errorf(IdentifierMismatch)
		}
	}

	for key, dump := range dumps {
		if stop != nil && stop.Load() {
			return nil
		}
		id, err := c.backend.LoadProgramBinary(dump.Format, dump.Binary)
		if err != nil {
			// stale driver or host change. the sources rebuild it.
			continue
		}
		c.crit.Lock()
		c.programs[key] = id
		c.crit.Unlock()
	}

	// first pass: entries with a usable decompiled source
	var second []*Raw
	done := 0
	for _, raw := range raws {
		if stop != nil && stop.Load() {
			return nil
		}
		dec, ok := decompiled[raw.ID]
		if !ok || dec.SanitizeMul != c.sanitizeMul {
			second = append(second, raw)
			continue
		}
		c.inject(raw, dec.Source, false)
		done++
		progress(LoadDecompile, done, total)
	}

	// second pass: regenerate sources in parallel and extend the
	// precompiled file
	var grp errgroup.Group
	grp.SetLimit(runtime.NumCPU())
	var built atomic.Int32
	for _, raw := range second {
		raw := raw
		grp.Go(func() error {
			if stop != nil && stop.Load() {
				return nil
			}
			src, err := c.regenerate(raw)
			if err != nil {
				logger.Logf(logger.Allow, "shadercache", "dropping shader %016x: %v", raw.ID, err)
				return nil
			}
			c.inject(raw, src, true)
			progress(LoadBuild, done+int(built.Add(1)), total)
			return nil
		})
	}
	_ = grp.Wait()

	progress(LoadComplete, total, total)
	return nil
}

// regenerate rebuilds the stage source from the guest-side input.
func (c *Cache) regenerate(raw *Raw) (string, error) {
	switch raw.Type {
	case ProgramVertex:
		setup := &pica.ShaderSetup{ProgramCode: raw.Code, SwizzleData: raw.Swizzle}
		cfg := shadergen.VSConfigFromSetup(&raw.Regs, setup, c.sanitizeMul)
		return shadergen.GenerateVertexShader(&cfg, setup)
	default:
		cfg := shadergen.FSConfigFromRegs(&raw.Regs)
		return shadergen.GenerateFragmentShader(&cfg), nil
	}
}

// inject stores a source in the runtime cache under the fingerprint
// recomputed from the raw record. persist extends the precompiled file
// with sources that were regenerated rather than read from it.
func (c *Cache) inject(raw *Raw, src string, persist bool) {
	c.crit.Lock()
	defer c.crit.Unlock()

	switch raw.Type {
	case ProgramVertex:
		setup := &pica.ShaderSetup{ProgramCode: raw.Code, SwizzleData: raw.Swizzle}
		cfg := shadergen.VSConfigFromSetup(&raw.Regs, setup, c.sanitizeMul)
		c.vertex[cfg] = src
	default:
		cfg := shadergen.FSConfigFromRegs(&raw.Regs)
		c.fragment[cfg] = src
	}
	c.saved[raw.ID] = true

	if persist && c.ensurePrecompiled() {
		_ = c.pw.writeDecompiled(&Decompiled{
			ID:          raw.ID,
			SanitizeMul: c.sanitizeMul,
			Source:      src,
		})
	}
}
