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

package main

import (
	"fmt"
	"os"
	"sync/atomic"

	"github.com/spf13/afero"

	"github.com/tangelo-emu/tangelo/display"
	"github.com/tangelo-emu/tangelo/host"
	"github.com/tangelo-emu/tangelo/logger"
	"github.com/tangelo-emu/tangelo/memory"
	"github.com/tangelo-emu/tangelo/memory/memorymap"
	"github.com/tangelo-emu/tangelo/modalflag"
	"github.com/tangelo-emu/tangelo/pica"
	"github.com/tangelo-emu/tangelo/rasterizer"
	"github.com/tangelo-emu/tangelo/rasterizer/shadercache"
	"github.com/tangelo-emu/tangelo/resources"
	"github.com/tangelo-emu/tangelo/statsview"
	"github.com/tangelo-emu/tangelo/version"
)

// default scanout addresses for the two screens. a front end driving
// the GPU core will normally reprogram these through the LCD registers
// but the stand-alone shell needs somewhere to look.
const (
	topScanoutAddr    = memorymap.VRAMPAddr
	bottomScanoutAddr = memorymap.VRAMPAddr + 0x5dc00
)

// SDL requires that window and event handling happens on the main
// thread. everything runs from here, there is no launch goroutine.
//
// #mainthread
func main() {
	md := &modalflag.Modes{Output: os.Stdout}
	md.NewArgs(os.Args[1:])
	md.NewMode()
	md.AddSubModes("RUN", "SHADERS", "VERSION")

	p, err := md.Parse()
	switch p {
	case modalflag.ParseHelp:
		os.Exit(0)
	case modalflag.ParseError:
		fmt.Printf("* error: %v\n", err)
		os.Exit(10)
	}

	switch md.Mode() {
	case "RUN":
		err = run(md)
	case "SHADERS":
		err = shaders(md)
	case "VERSION":
		vers, rev, _ := version.Version()
		fmt.Printf("%s (%s)\n", vers, rev)
	}

	if err != nil {
		fmt.Printf("* error in %s mode: %v\n", md.Path(), err)
		os.Exit(20)
	}
}

// shaderFs roots the per-title shader disk cache in the user's config
// directory.
func shaderFs() afero.Fs {
	base, err := resources.JoinPath()
	if err != nil {
		logger.Logf(logger.Allow, "main", "no shader cache directory: %v", err)
		return nil
	}
	return afero.NewBasePathFs(afero.NewOsFs(), base)
}

// loadProgress prints warm-up state for the shader disk cache.
func loadProgress(stage shadercache.LoadStage, current int, total int) {
	switch stage {
	case shadercache.LoadDecompile:
		fmt.Printf("\rdecompiling shaders %d/%d", current, total)
	case shadercache.LoadBuild:
		fmt.Printf("\rbuilding shaders %d/%d", current, total)
	case shadercache.LoadComplete:
		if total > 0 {
			fmt.Printf("\rloaded %d shaders           \n", total)
		}
	}
}

func run(md *modalflag.Modes) error {
	md.NewMode()

	scale := md.AddUint("scale", 2, "window scale")
	title := md.AddUint64("title", 0, "title ID for the shader disk cache")
	resScale := md.AddUint("res", 1, "internal resolution scale")
	sanitize := md.AddBool("sanitize", false, "clamp multiplication of inf by zero in shaders")
	stats := md.AddBool("statsview", false, "run the statsview HTTP server")
	log := md.AddBool("log", false, "echo debugging log to stdout")

	p, err := md.Parse()
	if err != nil || p != modalflag.ParseContinue {
		return err
	}

	if *log {
		logger.SetEcho(os.Stdout)
	} else {
		logger.SetEcho(nil)
	}

	if *stats {
		if statsview.Available() {
			statsview.Launch(os.Stdout)
		} else {
			fmt.Println("* statsview not available in this build")
		}
	}

	mem := memory.NewMemory()
	state := pica.NewState()

	scr, err := display.NewDisplay(mem, state, shaderFs(), *title,
		uint32(*scale), uint32(*resScale), *sanitize)
	if err != nil {
		return err
	}
	defer scr.Close()

	err = scr.Rasterizer().LoadDiskResources(nil, loadProgress)
	if err != nil {
		return err
	}

	top := rasterizer.DisplayConfig{
		Addr:   topScanoutAddr,
		Width:  uint32(display.ScreenHeight),
		Height: uint32(display.TopWidth),
		Stride: uint32(display.ScreenHeight),
		Format: pica.ColorRGBA8,
	}
	bottom := rasterizer.DisplayConfig{
		Addr:   bottomScanoutAddr,
		Width:  uint32(display.ScreenHeight),
		Height: uint32(display.BottomWidth),
		Stride: uint32(display.ScreenHeight),
		Format: pica.ColorRGBA8,
	}

	for scr.ServiceEvents() {
		scr.Present(&top, &bottom)
	}

	return nil
}

// shaders warms the disk cache without a window and reports what it
// holds. useful for poking at a title's cache from the command line.
func shaders(md *modalflag.Modes) error {
	md.NewMode()

	title := md.AddUint64("title", 0, "title ID for the shader disk cache")
	sanitize := md.AddBool("sanitize", false, "clamp multiplication of inf by zero in shaders")

	p, err := md.Parse()
	if err != nil || p != modalflag.ParseContinue {
		return err
	}

	backend := host.NewHeadless()
	defer backend.Destroy()

	cache := shadercache.NewCache(backend, shaderFs(), *title, *sanitize)
	defer cache.Close()

	var stop atomic.Bool
	err = cache.LoadDiskCache(&stop, loadProgress)
	if err != nil {
		return err
	}

	vertex, fragment, geometry, programs := cache.Stats()
	fmt.Printf("vertex: %d\nfragment: %d\ngeometry: %d\nprograms: %d\n",
		vertex, fragment, geometry, programs)

	return nil
}
