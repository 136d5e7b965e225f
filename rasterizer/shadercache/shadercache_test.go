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

package shadercache_test

import (
	"testing"

	"github.com/spf13/afero"

	"github.com/tangelo-emu/tangelo/host"
	"github.com/tangelo-emu/tangelo/pica"
	"github.com/tangelo-emu/tangelo/rasterizer/shadercache"
	"github.com/tangelo-emu/tangelo/rasterizer/shadergen"
	"github.com/tangelo-emu/tangelo/test"
)

const testTitle = uint64(0x0004000000055d00)

// minimal guest vertex program: MOV o0, v0 then END, identity swizzle
func testVSState() (*pica.Regs, *pica.ShaderSetup) {
	setup := &pica.ShaderSetup{}
	setup.ProgramCode[0] = 0x13 << 26
	setup.ProgramCode[1] = 0x22 << 26
	setup.SwizzleData[0] = 0x1b<<5 | 0xf

	regs := &pica.Regs{}
	regs.Raw[pica.RegVSOutputMask] = 0x1
	regs.Raw[pica.RegVSOutputSemantics0] = 0x03020100

	return regs, setup
}

func TestProgramReuse(t *testing.T) {
	backend := host.NewHeadless()
	defer backend.Destroy()
	c := shadercache.NewCache(backend, nil, testTitle, false)
	defer c.Close()

	var regs pica.Regs
	fsCfg := shadergen.FSConfigFromRegs(&regs)
	fs := c.FragmentSource(&fsCfg, &regs)
	vs := c.TrivialVertexSource()

	a, err := c.GetProgram(vs, "", fs)
	test.DemandSuccess(t, err)
	b, err := c.GetProgram(vs, "", fs)
	test.DemandSuccess(t, err)
	test.Equate(t, a, b)

	_, _, _, programs := c.Stats()
	test.Equate(t, programs, 1)
}

func TestDiskRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	backend := host.NewHeadless()
	defer backend.Destroy()

	// first run generates and persists
	c := shadercache.NewCache(backend, fs, testTitle, false)
	regs, setup := testVSState()
	vsCfg := shadergen.VSConfigFromSetup(regs, setup, false)
	vsSrc, err := c.VertexSource(&vsCfg, regs, setup)
	test.DemandSuccess(t, err)
	fsCfg := shadergen.FSConfigFromRegs(regs)
	fsSrc := c.FragmentSource(&fsCfg, regs)
	_, err = c.GetProgram(vsSrc, "", fsSrc)
	test.DemandSuccess(t, err)
	c.Close()

	// second run warms from disk
	c2 := shadercache.NewCache(backend, fs, testTitle, false)
	defer c2.Close()

	var stages []shadercache.LoadStage
	err = c2.LoadDiskCache(nil, func(stage shadercache.LoadStage, current, total int) {
		stages = append(stages, stage)
	})
	test.DemandSuccess(t, err)

	vertex, fragment, _, programs := c2.Stats()
	test.Equate(t, vertex, 1)
	test.Equate(t, fragment, 1)
	test.Equate(t, programs, 1)
	test.Equate(t, stages[len(stages)-1], shadercache.LoadComplete)

	// the warmed cache serves the same fingerprints without generating
	src, err := c2.VertexSource(&vsCfg, regs, setup)
	test.DemandSuccess(t, err)
	test.Equate(t, src, vsSrc)
}

func TestDiskSanitizeMulMismatch(t *testing.T) {
	fs := afero.NewMemMapFs()
	backend := host.NewHeadless()
	defer backend.Destroy()

	c := shadercache.NewCache(backend, fs, testTitle, false)
	regs, setup := testVSState()
	vsCfg := shadergen.VSConfigFromSetup(regs, setup, false)
	_, err := c.VertexSource(&vsCfg, regs, setup)
	test.DemandSuccess(t, err)
	c.Close()

	// a different multiply semantic ignores the stored source and
	// regenerates in the second pass
	c2 := shadercache.NewCache(backend, fs, testTitle, true)
	defer c2.Close()

	sawBuild := false
	err = c2.LoadDiskCache(nil, func(stage shadercache.LoadStage, current, total int) {
		if stage == shadercache.LoadBuild {
			sawBuild = true
		}
	})
	test.DemandSuccess(t, err)
	test.Equate(t, sawBuild, true)

	vertex, _, _, _ := c2.Stats()
	test.Equate(t, vertex, 1)
}

func TestDiskIdentifierMismatch(t *testing.T) {
	fs := afero.NewMemMapFs()
	backend := host.NewHeadless()
	defer backend.Destroy()

	// persist a legitimate vertex shader
	c := shadercache.NewCache(backend, fs, testTitle, false)
	regs, setup := testVSState()
	vsCfg := shadergen.VSConfigFromSetup(regs, setup, false)
	_, err := c.VertexSource(&vsCfg, regs, setup)
	test.DemandSuccess(t, err)
	c.Close()

	const transferable = "shaders/transferable/0004000000055d00.bin"
	const precompiled = "shaders/precompiled/separable/0004000000055d00.bin"

	exists, _ := afero.Exists(fs, transferable)
	test.Equate(t, exists, true)
	exists, _ = afero.Exists(fs, precompiled)
	test.Equate(t, exists, true)

	// corrupt the stored identifier. the record body is untouched so
	// the recomputed hash disagrees with it
	data, err := afero.ReadFile(fs, transferable)
	test.DemandSuccess(t, err)
	data[4] ^= 0xff
	err = afero.WriteFile(fs, transferable, data, 0644)
	test.DemandSuccess(t, err)

	// nothing in either file can be trusted. both are deleted and the
	// cache comes up empty
	c2 := shadercache.NewCache(backend, fs, testTitle, false)
	defer c2.Close()
	err = c2.LoadDiskCache(nil, nil)
	test.ExpectedFailure(t, err)

	exists, _ = afero.Exists(fs, transferable)
	test.Equate(t, exists, false)
	exists, _ = afero.Exists(fs, precompiled)
	test.Equate(t, exists, false)

	vertex, fragment, geometry, programs := c2.Stats()
	test.Equate(t, vertex, 0)
	test.Equate(t, fragment, 0)
	test.Equate(t, geometry, 0)
	test.Equate(t, programs, 0)
}

func TestDiskVersionMismatch(t *testing.T) {
	fs := afero.NewMemMapFs()
	backend := host.NewHeadless()
	defer backend.Destroy()

	// a transferable file with a bad version is deleted on load
	err := afero.WriteFile(fs, "shaders/transferable/0004000000055d00.bin",
		[]byte{0xff, 0xff, 0xff, 0xff}, 0644)
	test.DemandSuccess(t, err)

	c := shadercache.NewCache(backend, fs, testTitle, false)
	defer c.Close()
	err = c.LoadDiskCache(nil, nil)
	test.DemandSuccess(t, err)

	exists, _ := afero.Exists(fs, "shaders/transferable/0004000000055d00.bin")
	test.Equate(t, exists, false)
}
