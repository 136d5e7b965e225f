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

package host

import (
	"bytes"

	"github.com/tangelo-emu/tangelo/curated"
)

// sentinel errors for the headless backend
const (
	NoSuchProgram = "headless: no such program: %d"
	NoSuchTexture = "headless: no such texture: %d"
	BadBinary     = "headless: malformed program binary"
)

// headlessTexture is texture storage in ordinary memory.
type headlessTexture struct {
	format PixelFormat
	width  int
	height int
	pixels []byte
}

// headlessProgram records the sources of a compiled program. Nothing is
// actually compiled.
type headlessProgram struct {
	vertex   string
	geometry string
	fragment string
}

// Headless is a Backend with no GPU behind it. Texture operations work on
// byte slices, program compilation records sources, draw calls are
// counted and discarded.
type Headless struct {
	textures map[TextureID]*headlessTexture
	programs map[ProgramID]*headlessProgram
	samplers map[SamplerID]SamplerConfig

	nextTexture TextureID
	nextProgram ProgramID
	nextSampler SamplerID

	// DrawCount is the number of Draw calls issued. Useful in tests.
	DrawCount int

	// LUTWrites counts UploadLUT calls per slot.
	LUTWrites map[int]int

	// Uniforms is the last uniform block written with SetUniforms.
	Uniforms []byte

	// PresentCount is the number of PresentTexture calls issued.
	PresentCount int

	state        DrawState
	stream       []byte
	stride       int
	indices      []uint16
	layout       []VertexAttrib
	layoutStride int
}

// NewHeadless is the preferred method of initialisation for the Headless
// type.
func NewHeadless() *Headless {
	return &Headless{
		textures:  make(map[TextureID]*headlessTexture),
		programs:  make(map[ProgramID]*headlessProgram),
		samplers:  make(map[SamplerID]SamplerConfig),
		LUTWrites: make(map[int]int),
	}
}

// Caps implements the Backend interface. The headless backend advertises
// program binaries so the precompiled shader cache path can be exercised;
// the "binary" is just the recorded sources.
func (h *Headless) Caps() Capabilities {
	return Capabilities{
		ProgramBinaries: true,
		ClearTexture:    true,
	}
}

// CreateTexture implements the Backend interface.
func (h *Headless) CreateTexture(format PixelFormat, width int, height int) TextureID {
	h.nextTexture++
	h.textures[h.nextTexture] = &headlessTexture{
		format: format,
		width:  width,
		height: height,
		pixels: make([]byte, width*height*format.BytesPerPixel()),
	}
	return h.nextTexture
}

// DestroyTexture implements the Backend interface.
func (h *Headless) DestroyTexture(id TextureID) {
	delete(h.textures, id)
}

// Upload implements the Backend interface.
func (h *Headless) Upload(id TextureID, format PixelFormat, rect Rect, data []byte) {
	t, ok := h.textures[id]
	if !ok {
		return
	}
	bpp := t.format.BytesPerPixel()
	for row := 0; row < rect.H; row++ {
		src := data[row*rect.W*bpp : (row+1)*rect.W*bpp]
		off := ((rect.Y+row)*t.width + rect.X) * bpp
		copy(t.pixels[off:off+rect.W*bpp], src)
	}
}

// Download implements the Backend interface.
func (h *Headless) Download(id TextureID, format PixelFormat, rect Rect, data []byte) {
	t, ok := h.textures[id]
	if !ok {
		return
	}
	bpp := t.format.BytesPerPixel()
	for row := 0; row < rect.H; row++ {
		off := ((rect.Y+row)*t.width + rect.X) * bpp
		copy(data[row*rect.W*bpp:(row+1)*rect.W*bpp], t.pixels[off:off+rect.W*bpp])
	}
}

// Blit implements the Backend interface with a nearest neighbour scale.
func (h *Headless) Blit(src TextureID, srcRect Rect, dst TextureID, dstRect Rect, format PixelFormat) bool {
	s, ok := h.textures[src]
	if !ok {
		return false
	}
	d, ok := h.textures[dst]
	if !ok {
		return false
	}
	if srcRect.W <= 0 || srcRect.H <= 0 || dstRect.W <= 0 || dstRect.H <= 0 {
		return false
	}

	bpp := d.format.BytesPerPixel()
	sbpp := s.format.BytesPerPixel()

	for dy := 0; dy < dstRect.H; dy++ {
		sy := srcRect.Y + dy*srcRect.H/dstRect.H
		for dx := 0; dx < dstRect.W; dx++ {
			sx := srcRect.X + dx*srcRect.W/dstRect.W
			soff := (sy*s.width + sx) * sbpp
			doff := ((dstRect.Y+dy)*d.width + dstRect.X + dx) * bpp
			n := bpp
			if sbpp < n {
				n = sbpp
			}
			copy(d.pixels[doff:doff+n], s.pixels[soff:soff+n])
		}
	}
	return true
}

// Fill implements the Backend interface.
func (h *Headless) Fill(id TextureID, format PixelFormat, rect Rect, value FillValue) {
	t, ok := h.textures[id]
	if !ok {
		return
	}

	bpp := t.format.BytesPerPixel()
	pixel := encodeFillValue(t.format, value)

	for row := 0; row < rect.H; row++ {
		off := ((rect.Y+row)*t.width + rect.X) * bpp
		for col := 0; col < rect.W; col++ {
			copy(t.pixels[off+col*bpp:off+(col+1)*bpp], pixel)
		}
	}
}

func clamp8(f float32) byte {
	if f <= 0 {
		return 0
	}
	if f >= 1 {
		return 255
	}
	return byte(f*255 + 0.5)
}

func encodeFillValue(format PixelFormat, value FillValue) []byte {
	switch format {
	case FormatRGBA8:
		return []byte{
			clamp8(value.Color[0]), clamp8(value.Color[1]),
			clamp8(value.Color[2]), clamp8(value.Color[3]),
		}
	case FormatD16:
		d := uint16(value.Depth * 0xffff)
		return []byte{byte(d), byte(d >> 8)}
	case FormatD24:
		d := uint32(value.Depth * 0xffffff)
		return []byte{byte(d), byte(d >> 8), byte(d >> 16)}
	case FormatD24S8:
		d := uint32(value.Depth * 0xffffff)
		return []byte{byte(d), byte(d >> 8), byte(d >> 16), value.Stencil}
	}

	// 16-bit color formats keep only approximate channel values. the
	// headless backend is not a renderer so this is acceptable
	r := uint16(clamp8(value.Color[0]))
	g := uint16(clamp8(value.Color[1]))
	b := uint16(clamp8(value.Color[2]))
	a := uint16(clamp8(value.Color[3]))

	var v uint16
	switch format {
	case FormatRGB5A1:
		v = (r>>3)<<11 | (g>>3)<<6 | (b>>3)<<1 | a>>7
	case FormatRGB565:
		v = (r>>3)<<11 | (g>>2)<<5 | b>>3
	case FormatRGBA4:
		v = (r>>4)<<12 | (g>>4)<<8 | (b>>4)<<4 | a>>4
	}
	return []byte{byte(v), byte(v >> 8)}
}

// CompileProgram implements the Backend interface.
func (h *Headless) CompileProgram(vertex string, geometry string, fragment string) (ProgramID, error) {
	h.nextProgram++
	h.programs[h.nextProgram] = &headlessProgram{
		vertex:   vertex,
		geometry: geometry,
		fragment: fragment,
	}
	return h.nextProgram, nil
}

// DestroyProgram implements the Backend interface.
func (h *Headless) DestroyProgram(id ProgramID) {
	delete(h.programs, id)
}

// ProgramBinary implements the Backend interface. The binary is the
// recorded sources separated by NUL bytes.
func (h *Headless) ProgramBinary(id ProgramID) (uint32, []byte, error) {
	p, ok := h.programs[id]
	if !ok {
		return 0, nil, curated.Errorf(NoSuchProgram, id)
	}
	var b bytes.Buffer
	b.WriteString(p.vertex)
	b.WriteByte(0)
	b.WriteString(p.geometry)
	b.WriteByte(0)
	b.WriteString(p.fragment)
	return 1, b.Bytes(), nil
}

// LoadProgramBinary implements the Backend interface.
func (h *Headless) LoadProgramBinary(format uint32, data []byte) (ProgramID, error) {
	parts := bytes.SplitN(data, []byte{0}, 3)
	if format != 1 || len(parts) != 3 {
		return 0, curated.Errorf(BadBinary)
	}
	return h.CompileProgram(string(parts[0]), string(parts[1]), string(parts[2]))
}

// ProgramSources returns the sources a program was compiled from. Only
// available on the headless backend; used by tests.
func (h *Headless) ProgramSources(id ProgramID) (vertex string, geometry string, fragment string, err error) {
	p, ok := h.programs[id]
	if !ok {
		return "", "", "", curated.Errorf(NoSuchProgram, id)
	}
	return p.vertex, p.geometry, p.fragment, nil
}

// CreateSampler implements the Backend interface.
func (h *Headless) CreateSampler(cfg SamplerConfig) SamplerID {
	h.nextSampler++
	h.samplers[h.nextSampler] = cfg
	return h.nextSampler
}

// DestroySampler implements the Backend interface.
func (h *Headless) DestroySampler(id SamplerID) {
	delete(h.samplers, id)
}

// DrawState implements the Backend interface.
func (h *Headless) DrawState(state *DrawState) {
	h.state = *state
}

// Draw implements the Backend interface. The draw is counted but not
// executed.
func (h *Headless) Draw(topology Topology, first int, count int) {
	h.DrawCount++
}

// DrawIndexed implements the Backend interface. The draw is counted but
// not executed.
func (h *Headless) DrawIndexed(topology Topology, first int, count int) {
	h.DrawCount++
}

// SetVertexLayout implements the Backend interface.
func (h *Headless) SetVertexLayout(stride int, attrs []VertexAttrib) {
	h.layoutStride = stride
	h.layout = append(h.layout[:0], attrs...)
}

// StreamVertices implements the Backend interface.
func (h *Headless) StreamVertices(data []byte, stride int) int {
	if stride <= 0 {
		return 0
	}
	first := 0
	if h.stride == stride {
		first = len(h.stream) / stride
	} else {
		h.stream = h.stream[:0]
		h.stride = stride
	}
	h.stream = append(h.stream, data...)
	return first
}

// StreamIndices implements the Backend interface.
func (h *Headless) StreamIndices(indices []uint16) int {
	first := len(h.indices)
	h.indices = append(h.indices, indices...)
	return first
}

// SetUniforms implements the Backend interface. The block contents are
// retained for inspection by tests.
func (h *Headless) SetUniforms(data []byte) {
	h.Uniforms = append(h.Uniforms[:0], data...)
}

// UploadLUT implements the Backend interface.
func (h *Headless) UploadLUT(slot int, offset int, texels [][2]float32) {
	h.LUTWrites[slot]++
}

// UploadColorLUT implements the Backend interface.
func (h *Headless) UploadColorLUT(slot int, offset int, texels [][4]float32) {
	h.LUTWrites[slot]++
}

// BeginPresent mirrors the GL backend's window framebuffer setup. The
// headless backend has no window so there is nothing to prepare.
func (h *Headless) BeginPresent(width int, height int) {
}

// PresentTexture mirrors the GL backend's window blit. Returns false
// for unknown textures, matching the GL behaviour.
func (h *Headless) PresentTexture(id TextureID, srcRect Rect, dstRect Rect, windowHeight int) bool {
	if _, ok := h.textures[id]; !ok {
		return false
	}
	h.PresentCount++
	return true
}

// Destroy implements the Backend interface.
func (h *Headless) Destroy() {
	h.textures = nil
	h.programs = nil
	h.samplers = nil
}

// LastDrawState returns the most recently bound pipeline state. Only
// available on the headless backend; used by tests.
func (h *Headless) LastDrawState() DrawState {
	return h.state
}

// TexturePixels returns the backing store of a texture. Only available on
// the headless backend; used by tests.
func (h *Headless) TexturePixels(id TextureID) ([]byte, error) {
	t, ok := h.textures[id]
	if !ok {
		return nil, curated.Errorf(NoSuchTexture, id)
	}
	return t.pixels, nil
}
