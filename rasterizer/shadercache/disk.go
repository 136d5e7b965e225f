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
	"encoding/binary"
	"fmt"
	"io"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/spf13/afero"

	"github.com/tangelo-emu/tangelo/curated"
	"github.com/tangelo-emu/tangelo/pica"
)

// transferableVersion changes whenever the Raw record layout changes. A
// mismatched file is deleted, not migrated.
const transferableVersion = uint32(1)

// generatorVersion names the source generator revision. The precompiled
// file carries a hash of it: sources generated by an older revision must
// not be injected.
const generatorVersion = "tangelo shadergen 1"

// disk cache errors
const (
	VersionMismatch   = "shadercache: transferable version %d, want %d"
	GeneratorMismatch = "shadercache: precompiled cache from a different generator"
	TruncatedRecord   = "shadercache: truncated %s record"
)

// program stage discriminator in Raw records
type ProgramType uint32

// Raw records describe the guest-side input of either shader stage.
const (
	ProgramVertex ProgramType = iota
	ProgramFragment
)

// record discriminators in the precompiled file
const (
	recordDecompiled = uint32(0)
	recordDump       = uint32(1)
)

// Raw is the transferable form of a shader: the register snapshot and,
// for vertex programs, the shader unit memories. It is enough to
// regenerate the source on any host.
type Raw struct {
	ID      uint64
	Type    ProgramType
	Regs    pica.Regs
	Code    [pica.MaxShaderProgramWords]uint32
	Swizzle [pica.MaxSwizzleDataWords]uint32
}

// Identifier hashes the guest-side input. Recomputed on every load: a
// record whose stored ID disagrees was produced by foreign state and
// poisons the whole file.
func (r *Raw) Identifier() uint64 {
	d := xxhash.New()
	_ = binary.Write(d, binary.LittleEndian, r.Type)
	_ = binary.Write(d, binary.LittleEndian, r.Regs.Raw[:])
	if r.Type == ProgramVertex {
		_ = binary.Write(d, binary.LittleEndian, r.Code[:])
		_ = binary.Write(d, binary.LittleEndian, r.Swizzle[:])
	}
	return d.Sum64()
}

// Decompiled is the precompiled form of a shader: generated source
// ready for the host compiler.
type Decompiled struct {
	ID          uint64
	SanitizeMul bool
	Source      string
}

// Dump is a linked host program binary keyed by the program triple.
type Dump struct {
	ID     uint64
	Format uint32
	Binary []byte
}

// generatorHash is the 64-byte header of the precompiled file.
func generatorHash() [64]byte {
	var h [64]byte
	seed := xxhash.Sum64String(generatorVersion)
	for i := 0; i < 8; i++ {
		binary.LittleEndian.PutUint64(h[i*8:], seed)
		seed = xxhash.Sum64(h[:(i+1)*8])
	}
	return h
}

// diskCache handles the per-title cache files. All filesystem access
// goes through the afero filesystem so tests run against memory.
type diskCache struct {
	fs    afero.Fs
	title string
}

func newDiskCache(fs afero.Fs, titleID uint64) *diskCache {
	return &diskCache{
		fs:    fs,
		title: fmt.Sprintf("%016x", titleID),
	}
}

func (d *diskCache) transferablePath() string {
	return filepath.Join("shaders", "transferable", d.title+".bin")
}

func (d *diskCache) precompiledPath() string {
	return filepath.Join("shaders", "precompiled", "separable", d.title+".bin")
}

func (d *diskCache) invalidateTransferable() {
	_ = d.fs.Remove(d.transferablePath())
}

func (d *diskCache) invalidatePrecompiled() {
	_ = d.fs.Remove(d.precompiledPath())
}

func (d *diskCache) invalidateAll() {
	d.invalidateTransferable()
	d.invalidatePrecompiled()
}

// appendRaw adds one Raw record to the transferable file, creating it
// with a version header when absent.
func (d *diskCache) appendRaw(r *Raw) error {
	p := d.transferablePath()
	if err := d.fs.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return curated.Errorf("shadercache: %v", err)
	}

	exists, _ := afero.Exists(d.fs, p)
	f, err := d.fs.OpenFile(p, appendFlags, 0644)
	if err != nil {
		return curated.Errorf("shadercache: %v", err)
	}
	defer f.Close()

	if !exists {
		if err := binary.Write(f, binary.LittleEndian, transferableVersion); err != nil {
			return curated.Errorf("shadercache: %v", err)
		}
	}
	return writeRaw(f, r)
}

func writeRaw(w io.Writer, r *Raw) error {
	le := binary.LittleEndian
	if err := binary.Write(w, le, r.ID); err != nil {
		return curated.Errorf("shadercache: %v", err)
	}
	_ = binary.Write(w, le, uint32(r.Type))
	_ = binary.Write(w, le, uint64(len(r.Regs.Raw)))
	_ = binary.Write(w, le, r.Regs.Raw[:])
	if r.Type == ProgramVertex {
		_ = binary.Write(w, le, uint64(len(r.Code)+len(r.Swizzle)))
		_ = binary.Write(w, le, r.Code[:])
		if err := binary.Write(w, le, r.Swizzle[:]); err != nil {
			return curated.Errorf("shadercache: %v", err)
		}
	}
	return nil
}

func readRaw(r io.Reader) (*Raw, error) {
	le := binary.LittleEndian
	var raw Raw

	if err := binary.Read(r, le, &raw.ID); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, curated.Errorf(TruncatedRecord, "raw")
	}

	var typ uint32
	var regCount uint64
	if err := binary.Read(r, le, &typ); err != nil {
		return nil, curated.Errorf(TruncatedRecord, "raw")
	}
	raw.Type = ProgramType(typ)
	if err := binary.Read(r, le, &regCount); err != nil {
		return nil, curated.Errorf(TruncatedRecord, "raw")
	}
	if regCount != uint64(len(raw.Regs.Raw)) {
		return nil, curated.Errorf(TruncatedRecord, "raw")
	}
	if err := binary.Read(r, le, raw.Regs.Raw[:]); err != nil {
		return nil, curated.Errorf(TruncatedRecord, "raw")
	}

	if raw.Type == ProgramVertex {
		var codeLen uint64
		if err := binary.Read(r, le, &codeLen); err != nil {
			return nil, curated.Errorf(TruncatedRecord, "raw")
		}
		if codeLen != uint64(len(raw.Code)+len(raw.Swizzle)) {
			return nil, curated.Errorf(TruncatedRecord, "raw")
		}
		if err := binary.Read(r, le, raw.Code[:]); err != nil {
			return nil, curated.Errorf(TruncatedRecord, "raw")
		}
		if err := binary.Read(r, le, raw.Swizzle[:]); err != nil {
			return nil, curated.Errorf(TruncatedRecord, "raw")
		}
	}

	return &raw, nil
}

// loadTransferable reads every Raw record. A version mismatch deletes
// the file and returns an error.
func (d *diskCache) loadTransferable() ([]*Raw, error) {
	f, err := d.fs.Open(d.transferablePath())
	if err != nil {
		return nil, nil
	}
	defer f.Close()

	var version uint32
	if err := binary.Read(f, binary.LittleEndian, &version); err != nil {
		d.invalidateTransferable()
		return nil, curated.Errorf(TruncatedRecord, "header")
	}
	if version != transferableVersion {
		d.invalidateTransferable()
		return nil, curated.Errorf(VersionMismatch, version, transferableVersion)
	}

	var raws []*Raw
	for {
		raw, err := readRaw(f)
		if err == io.EOF {
			break
		}
		if err != nil {
			d.invalidateTransferable()
			return nil, err
		}
		raws = append(raws, raw)
	}
	return raws, nil
}

// loadPrecompiled reads the decompiled sources and program binary dumps.
// A generator hash mismatch deletes the file.
func (d *diskCache) loadPrecompiled() (map[uint64]*Decompiled, map[uint64]*Dump, error) {
	f, err := d.fs.Open(d.precompiledPath())
	if err != nil {
		return nil, nil, nil
	}
	defer f.Close()

	z, err := zstd.NewReader(f)
	if err != nil {
		d.invalidatePrecompiled()
		return nil, nil, curated.Errorf("shadercache: %v", err)
	}
	defer z.Close()

	var header [64]byte
	if _, err := io.ReadFull(z, header[:]); err != nil {
		d.invalidatePrecompiled()
		return nil, nil, curated.Errorf(TruncatedRecord, "header")
	}
	if header != generatorHash() {
		d.invalidatePrecompiled()
		return nil, nil, curated.Errorf(GeneratorMismatch)
	}

	le := binary.LittleEndian
	decompiled := map[uint64]*Decompiled{}
	dumps := map[uint64]*Dump{}
	for {
		var kind uint32
		if err := binary.Read(z, le, &kind); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			d.invalidatePrecompiled()
			return nil, nil, curated.Errorf(TruncatedRecord, "precompiled")
		}

		var id uint64
		if err := binary.Read(z, le, &id); err != nil {
			d.invalidatePrecompiled()
			return nil, nil, curated.Errorf(TruncatedRecord, "precompiled")
		}

		switch kind {
		case recordDecompiled:
			var sanitize uint8
			var srcLen uint32
			if err := binary.Read(z, le, &sanitize); err != nil {
				d.invalidatePrecompiled()
				return nil, nil, curated.Errorf(TruncatedRecord, "decompiled")
			}
			if err := binary.Read(z, le, &srcLen); err != nil {
				d.invalidatePrecompiled()
				return nil, nil, curated.Errorf(TruncatedRecord, "decompiled")
			}
			src := make([]byte, srcLen)
			if _, err := io.ReadFull(z, src); err != nil {
				d.invalidatePrecompiled()
				return nil, nil, curated.Errorf(TruncatedRecord, "decompiled")
			}
			decompiled[id] = &Decompiled{ID: id, SanitizeMul: sanitize != 0, Source: string(src)}

		case recordDump:
			var format, binLen uint32
			if err := binary.Read(z, le, &format); err != nil {
				d.invalidatePrecompiled()
				return nil, nil, curated.Errorf(TruncatedRecord, "dump")
			}
			if err := binary.Read(z, le, &binLen); err != nil {
				d.invalidatePrecompiled()
				return nil, nil, curated.Errorf(TruncatedRecord, "dump")
			}
			bin := make([]byte, binLen)
			if _, err := io.ReadFull(z, bin); err != nil {
				d.invalidatePrecompiled()
				return nil, nil, curated.Errorf(TruncatedRecord, "dump")
			}
			dumps[id] = &Dump{ID: id, Format: format, Binary: bin}

		default:
			d.invalidatePrecompiled()
			return nil, nil, curated.Errorf(TruncatedRecord, "precompiled")
		}
	}

	return decompiled, dumps, nil
}

// precompiledWriter appends records to the precompiled file through a
// fresh zstd frame. Frames concatenate: the reader sees one stream.
type precompiledWriter struct {
	f afero.File
	z *zstd.Encoder
}

func (d *diskCache) openPrecompiled() (*precompiledWriter, error) {
	p := d.precompiledPath()
	if err := d.fs.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return nil, curated.Errorf("shadercache: %v", err)
	}

	exists, _ := afero.Exists(d.fs, p)
	f, err := d.fs.OpenFile(p, appendFlags, 0644)
	if err != nil {
		return nil, curated.Errorf("shadercache: %v", err)
	}

	z, err := zstd.NewWriter(f)
	if err != nil {
		f.Close()
		return nil, curated.Errorf("shadercache: %v", err)
	}

	if !exists {
		h := generatorHash()
		if _, err := z.Write(h[:]); err != nil {
			z.Close()
			f.Close()
			return nil, curated.Errorf("shadercache: %v", err)
		}
	}

	return &precompiledWriter{f: f, z: z}, nil
}

func (w *precompiledWriter) writeDecompiled(dec *Decompiled) error {
	le := binary.LittleEndian
	_ = binary.Write(w.z, le, recordDecompiled)
	_ = binary.Write(w.z, le, dec.ID)
	var sanitize uint8
	if dec.SanitizeMul {
		sanitize = 1
	}
	_ = binary.Write(w.z, le, sanitize)
	_ = binary.Write(w.z, le, uint32(len(dec.Source)))
	if _, err := io.WriteString(w.z, dec.Source); err != nil {
		return curated.Errorf("shadercache: %v", err)
	}
	return nil
}

func (w *precompiledWriter) writeDump(dump *Dump) error {
	le := binary.LittleEndian
	_ = binary.Write(w.z, le, recordDump)
	_ = binary.Write(w.z, le, dump.ID)
	_ = binary.Write(w.z, le, dump.Format)
	_ = binary.Write(w.z, le, uint32(len(dump.Binary)))
	if _, err := w.z.Write(dump.Binary); err != nil {
		return curated.Errorf("shadercache: %v", err)
	}
	return nil
}

func (w *precompiledWriter) close() {
	_ = w.z.Close()
	_ = w.f.Close()
}
