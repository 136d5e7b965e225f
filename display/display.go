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

package display

import (
	"runtime"

	"github.com/spf13/afero"
	"github.com/tangelo-emu/tangelo/curated"
	"github.com/tangelo-emu/tangelo/host"
	"github.com/tangelo-emu/tangelo/logger"
	"github.com/tangelo-emu/tangelo/memory"
	"github.com/tangelo-emu/tangelo/pica"
	"github.com/tangelo-emu/tangelo/rasterizer"
	"github.com/veandco/go-sdl2/sdl"
)

const windowTitle = "Tangelo"

// screen identifiers.
const (
	ScreenTop = iota
	ScreenBottom
	NumScreens
)

// native guest screen dimensions. the bottom screen is narrower and is
// centred below the top screen.
const (
	TopWidth     = 400
	BottomWidth  = 320
	ScreenHeight = 240
)

// presenter is the backend surface the display layer needs beyond the
// common Backend interface. Satisfied by host.GL32 and host.Headless.
type presenter interface {
	host.Backend
	BeginPresent(width int, height int)
	PresentTexture(id host.TextureID, srcRect host.Rect, dstRect host.Rect, windowHeight int) bool
}

// Display owns the SDL window and presents the two guest screens.
type Display struct {
	window  *sdl.Window
	context sdl.GLContext

	backend presenter
	mem     *memory.Memory
	rast    *rasterizer.Rasterizer

	scale  uint32
	width  int
	height int

	// scratch textures for screens the rasterizer cannot resolve
	fallback  [NumScreens]host.TextureID
	fallbackW [NumScreens]int
	fallbackH [NumScreens]int
}

// NewDisplay is the preferred method of initialisation for the Display
// type. It creates the window, a core 3.2 GL context and the rasterizer
// that renders into it. scale sizes the window, resScale the render
// targets. Must be called from the main goroutine; the OS thread is
// locked for the lifetime of the display.
func NewDisplay(mem *memory.Memory, state *pica.State, fs afero.Fs,
	titleID uint64, scale uint32, resScale uint32, sanitizeMul bool) (*Display, error) {

	// the SDL package calls LockOSThread() but we call it here too. it
	// can't hurt and we never unlock it in any case
	runtime.LockOSThread()

	if scale == 0 {
		scale = 1
	}

	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return nil, curated.Errorf("sdl: %v", err)
	}

	attrs := []struct {
		attr  sdl.GLattr
		value int
	}{
		{sdl.GL_CONTEXT_MAJOR_VERSION, 3},
		{sdl.GL_CONTEXT_MINOR_VERSION, 2},
		{sdl.GL_CONTEXT_FLAGS, sdl.GL_CONTEXT_FORWARD_COMPATIBLE_FLAG},
		{sdl.GL_CONTEXT_PROFILE_MASK, sdl.GL_CONTEXT_PROFILE_CORE},
	}
	for _, a := range attrs {
		if err := sdl.GLSetAttribute(a.attr, a.value); err != nil {
			sdl.Quit()
			return nil, curated.Errorf("sdl: %v", err)
		}
	}

	var sdlVersion sdl.Version
	sdl.VERSION(&sdlVersion)
	logger.Logf(logger.Allow, "sdl", "version %d.%d.%d",
		sdlVersion.Major, sdlVersion.Minor, sdlVersion.Patch)

	d := &Display{
		mem:    mem,
		scale:  scale,
		width:  TopWidth * int(scale),
		height: 2 * ScreenHeight * int(scale),
	}

	var err error
	d.window, err = sdl.CreateWindow(windowTitle,
		sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED,
		int32(d.width), int32(d.height),
		sdl.WINDOW_OPENGL|sdl.WINDOW_ALLOW_HIGHDPI)
	if err != nil {
		sdl.Quit()
		return nil, curated.Errorf("sdl: %v", err)
	}

	d.context, err = d.window.GLCreateContext()
	if err != nil {
		d.window.Destroy()
		sdl.Quit()
		return nil, curated.Errorf("sdl: %v", err)
	}
	if err := d.window.GLMakeCurrent(d.context); err != nil {
		d.destroyWindow()
		return nil, curated.Errorf("sdl: %v", err)
	}

	// synchronise with the monitor when the driver allows it
	if err := sdl.GLSetSwapInterval(1); err != nil {
		logger.Logf(logger.Allow, "sdl", "no vsync: %v", err)
	}

	backend, err := host.NewGL32()
	if err != nil {
		d.destroyWindow()
		return nil, err
	}
	d.backend = backend
	d.rast = rasterizer.NewRasterizer(backend, mem, state, fs, titleID, resScale, sanitizeMul)

	return d, nil
}

// Rasterizer exposes the rasterizer rendering into this display. The
// DMA and guest-GPU layers drive it directly.
func (d *Display) Rasterizer() *rasterizer.Rasterizer {
	return d.rast
}

// Present draws one frame of both guest screens and swaps the window.
// A nil configuration leaves that screen black.
func (d *Display) Present(top *rasterizer.DisplayConfig, bottom *rasterizer.DisplayConfig) {
	d.backend.BeginPresent(d.width, d.height)

	if top != nil {
		d.presentScreen(ScreenTop, top)
	}
	if bottom != nil {
		d.presentScreen(ScreenBottom, bottom)
	}

	if d.window != nil {
		d.window.GLSwap()
	}
}

// screenRect returns the window rectangle a screen occupies, counting
// from the top-left corner.
func (d *Display) screenRect(screen int) host.Rect {
	s := int(d.scale)
	if screen == ScreenTop {
		return host.Rect{X: 0, Y: 0, W: TopWidth * s, H: ScreenHeight * s}
	}
	return host.Rect{
		X: (TopWidth - BottomWidth) / 2 * s,
		Y: ScreenHeight * s,
		W: BottomWidth * s,
		H: ScreenHeight * s,
	}
}

func (d *Display) presentScreen(screen int, cfg *rasterizer.DisplayConfig) {
	tex, src, ok := d.rast.AccelerateDisplay(cfg)
	if !ok {
		tex, src, ok = d.uploadScreen(screen, cfg)
	}
	if !ok {
		return
	}
	d.backend.PresentTexture(tex, src, d.screenRect(screen), d.height)
}

// ServiceEvents drains the SDL event queue. Returns false when the
// user has asked for the window to close.
func (d *Display) ServiceEvents() bool {
	if d.window == nil {
		return true
	}
	for ev := sdl.PollEvent(); ev != nil; ev = sdl.PollEvent() {
		switch ev := ev.(type) {
		case *sdl.QuitEvent:
			return false
		case *sdl.WindowEvent:
			if ev.Event == sdl.WINDOWEVENT_CLOSE {
				return false
			}
		}
	}
	return true
}

// Close releases the rasterizer, the GL context and the window.
func (d *Display) Close() {
	if d.rast != nil {
		d.rast.Close()
	}
	if d.backend != nil {
		d.backend.Destroy()
	}
	d.destroyWindow()
}

func (d *Display) destroyWindow() {
	if d.context != nil {
		sdl.GLDeleteContext(d.context)
		d.context = nil
	}
	if d.window != nil {
		d.window.Destroy()
		d.window = nil
	}
	sdl.Quit()
}
