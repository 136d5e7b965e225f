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

package rasterizer

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/tangelo-emu/tangelo/host"
	"github.com/tangelo-emu/tangelo/memory"
	"github.com/tangelo-emu/tangelo/memory/memorymap"
	"github.com/tangelo-emu/tangelo/pica"
	"github.com/tangelo-emu/tangelo/test"
)

const (
	testFramebuffer = memorymap.VRAMPAddr
	testVertexData  = memorymap.VRAMPAddr + 0x100000
	testTransferSrc = memorymap.VRAMPAddr + 0x300000
	testTransferDst = memorymap.VRAMPAddr + 0x380000
	testFillTarget  = memorymap.VRAMPAddr + 0x500000
)

func newTestRasterizer(t *testing.T) (*Rasterizer, *pica.State, *host.Headless) {
	t.Helper()
	mem := memory.NewMemory()
	backend := host.NewHeadless()
	state := pica.NewState()
	return NewRasterizer(backend, mem, state, nil, 0, 1, false), state, backend
}

func guestBytesAt(t *testing.T, r *Rasterizer, addr memorymap.PAddr, size uint32) []byte {
	t.Helper()
	ref, ok := r.mem.GetPhysicalRef(addr)
	if !ok {
		t.Fatalf("no backing region at %#08x", addr)
	}
	return ref.Ptr()[:size]
}

// points the register file at a 16x16 RGBA8 color target with all color
// channels writable and depth left out of the pipeline
func setTestFramebuffer(state *pica.State) {
	state.Regs.Raw[pica.RegColorBufferAddr] = uint32(testFramebuffer) >> 3
	state.Regs.Raw[pica.RegFramebufferDim] = 16 | (16-1)<<12
	state.Regs.Raw[pica.RegColorFormat] = 0 // RGBA8
	state.Regs.Raw[pica.RegDepthColorMask] = 0xf << 8
}

func testVertex(x, y float32) HWVertex {
	return HWVertex{
		Position: [4]float32{x, y, 0, 1},
		Color:    [4]float32{1, 1, 1, 1},
		NormQuat: [4]float32{0, 0, 0, 1},
	}
}

func TestUniformBlockLayout(t *testing.T) {
	test.Equate(t, offConstColor, 992)
	test.Equate(t, offBufferColor, 1088)
	test.Equate(t, offClipCoef, 1104)
	test.Equate(t, uniformBlockSize, 1120)

	var u uniformBlock
	u.AlphaTestRef = 0x40
	u.FogColor = [3]float32{1, 0.5, 0.25}
	u.Lights[7].DistAttenScale = 2
	u.ConstColor[5] = [4]float32{0, 0, 0, 1}

	b := u.encode()
	test.Equate(t, len(b), uniformBlockSize)
	test.Equate(t, binary.LittleEndian.Uint32(b[offAlphaTestRef:]), uint32(0x40))
	test.Equate(t, binary.LittleEndian.Uint32(b[offFogColor+4:]), math.Float32bits(0.5))
	test.Equate(t, binary.LittleEndian.Uint32(b[offLights+7*lightStride+96:]), math.Float32bits(2))
	test.Equate(t, binary.LittleEndian.Uint32(b[offConstColor+5*16+12:]), math.Float32bits(1))
}

func TestAreQuaternionsOpposite(t *testing.T) {
	q := [4]float32{0, 0, 0, 1}
	n := [4]float32{0, 0, 0, -1}
	test.Equate(t, AreQuaternionsOpposite(q, q), false)
	test.Equate(t, AreQuaternionsOpposite(q, n), true)
	test.Equate(t, AreQuaternionsOpposite(n, n), false)
}

func TestAddTriangleFlipsOpposedQuaternions(t *testing.T) {
	r, _, _ := newTestRasterizer(t)

	v0 := testVertex(0, 0)
	v1 := testVertex(1, 0)
	v1.NormQuat = [4]float32{0, 0, 0, -1}
	v2 := testVertex(0, 1)

	r.AddTriangle(v0, v1, v2)
	test.Equate(t, len(r.batch), 3)

	// the second vertex now shares the first's hemisphere
	test.Equate(t, r.batch[1].NormQuat[3] == 1, true)
	test.Equate(t, AreQuaternionsOpposite(r.batch[0].NormQuat, r.batch[1].NormQuat), false)
	test.Equate(t, r.batch[2].NormQuat[3] == 1, true)
}

func TestSoftwareDraw(t *testing.T) {
	r, state, backend := newTestRasterizer(t)
	setTestFramebuffer(state)

	r.AddTriangle(testVertex(0, 0), testVertex(8, 0), testVertex(0, 8))
	r.DrawTriangles()

	test.Equate(t, backend.DrawCount, 1)
	test.Equate(t, len(r.batch), 0)
	test.Equate(t, backend.LastDrawState().Program != 0, true)
	test.Equate(t, len(backend.Uniforms), uniformBlockSize)

	// an empty batch issues nothing
	r.DrawTriangles()
	test.Equate(t, backend.DrawCount, 1)
}

func TestDrawWithoutRenderTargets(t *testing.T) {
	r, _, backend := newTestRasterizer(t)

	// no color mask, no depth test, no stencil. nothing observable
	test.Equate(t, r.Draw(false, false), true)
	test.Equate(t, backend.DrawCount, 0)
}

func TestNotifyAlphaTestRegister(t *testing.T) {
	r, state, _ := newTestRasterizer(t)
	r.uniformsDirty = false
	r.shaderDirty = false

	state.WriteRegister(pica.RegAlphaTest, 200<<8|1, 0xffffffff)
	r.NotifyPicaRegisterChanged(pica.RegAlphaTest)

	test.Equate(t, r.uniforms.AlphaTestRef == 200, true)
	test.Equate(t, r.uniformsDirty, true)
	test.Equate(t, r.shaderDirty, true)
}

func TestNotifyFogColorRegister(t *testing.T) {
	r, state, _ := newTestRasterizer(t)
	r.uniformsDirty = false

	state.WriteRegister(pica.RegFogColor, 0xff, 0xffffffff)
	r.NotifyPicaRegisterChanged(pica.RegFogColor)

	test.Equate(t, r.uniforms.FogColor[0] == 1, true)
	test.Equate(t, r.uniformsDirty, true)
}

func TestScissorScaling(t *testing.T) {
	r, state, _ := newTestRasterizer(t)

	state.Regs.Raw[pica.RegScissorMin] = 4<<16 | 2
	state.Regs.Raw[pica.RegScissorMax] = 9<<16 | 7
	r.syncScissorScaled(2)

	// the inclusive guest maximum becomes an exclusive host bound
	test.Equate(t, r.uniforms.Scissor == [4]int32{4, 8, 16, 20}, true)
}

func TestLUTUploadOnDraw(t *testing.T) {
	r, state, backend := newTestRasterizer(t)
	setTestFramebuffer(state)

	state.WriteRegister(pica.RegLightingLUTIndex, 0, 0xffffffff)
	state.WriteRegister(pica.RegLightingLUTData0, 0xfff, 0xffffffff)
	state.WriteRegister(pica.RegFogLUTOffset, 0, 0xffffffff)
	state.WriteRegister(pica.RegFogLUTData0, 0xfff, 0xffffffff)
	state.WriteRegister(pica.RegProcTexLUTConfig, 4<<8, 0xffffffff)
	state.WriteRegister(pica.RegProcTexLUTData0, 0xff00ff00, 0xffffffff)

	r.AddTriangle(testVertex(0, 0), testVertex(8, 0), testVertex(0, 8))
	r.DrawTriangles()

	test.Equate(t, backend.LUTWrites[lutSlotLighting], 1)
	test.Equate(t, backend.LUTWrites[lutSlotFog], 1)
	test.Equate(t, backend.LUTWrites[lutSlotProcTex], 1)
	test.Equate(t, backend.LUTWrites[lutSlotProcTexColor], 1)
	test.Equate(t, state.LightingLUTsDirty, false)
	test.Equate(t, state.FogLUTDirty, false)
	test.Equate(t, state.ProcTexDirty, false)

	// a clean state re-uploads nothing
	r.AddTriangle(testVertex(0, 0), testVertex(8, 0), testVertex(0, 8))
	r.DrawTriangles()
	test.Equate(t, backend.LUTWrites[lutSlotLighting], 1)
}

// assembles one attribute loader feeding a MOV/END guest program with an
// indexed triangle in guest memory
func setupAcceleratedDraw(t *testing.T, r *Rasterizer, state *pica.State) {
	t.Helper()

	setTestFramebuffer(state)

	state.VS.ProgramCode[0] = 0x13 << 26 // MOV o0, v0
	state.VS.ProgramCode[1] = 0x22 << 26 // END
	state.VS.SwizzleData[0] = 0x1b<<5 | 0xf
	state.Regs.Raw[pica.RegVSOutputMask] = 0x1
	state.Regs.Raw[pica.RegVSOutputSemantics0] = 0x03020100 // position.xyzw
	state.Regs.Raw[pica.RegPrimitiveConfig] = 0             // list, one output

	// attribute 0: four floats, loaded by loader 0 with a 16 byte stride
	state.Regs.Raw[pica.RegAttribBase] = uint32(testVertexData) >> 3
	state.Regs.Raw[pica.RegAttribFormatLow] = 0xf
	state.Regs.Raw[pica.RegAttribFormatHigh] = 0
	state.Regs.Raw[pica.RegLoader0Offset+0] = 0
	state.Regs.Raw[pica.RegLoader0Offset+1] = 0
	state.Regs.Raw[pica.RegLoader0Offset+2] = 16<<16 | 1<<28

	state.Regs.Raw[pica.RegIndexArray] = 0x8000 | 1<<31 // 16-bit indices
	state.Regs.Raw[pica.RegNumVertices] = 3

	vertices := guestBytesAt(t, r, testVertexData, 48)
	coords := []float32{
		0, 0, 0, 1,
		1, 0, 0, 1,
		0, 1, 0, 1,
	}
	for i, v := range coords {
		binary.LittleEndian.PutUint32(vertices[i*4:], math.Float32bits(v))
	}

	indices := guestBytesAt(t, r, testVertexData+0x8000, 6)
	for i, idx := range []uint16{0, 1, 2} {
		binary.LittleEndian.PutUint16(indices[i*2:], idx)
	}
}

func TestAcceleratedDrawIndexed(t *testing.T) {
	r, state, backend := newTestRasterizer(t)
	setupAcceleratedDraw(t, r, state)

	test.Equate(t, r.Draw(true, true), true)
	test.Equate(t, backend.DrawCount, 1)

	// the guest program and the fixed geometry stage were both compiled
	vertex, fragment, geometry, programs := r.shaders.Stats()
	test.Equate(t, vertex, 1)
	test.Equate(t, fragment, 1)
	test.Equate(t, geometry, 1)
	test.Equate(t, programs, 1)
}

func TestAcceleratedDrawVertexAnalysis(t *testing.T) {
	r, state, _ := newTestRasterizer(t)
	setupAcceleratedDraw(t, r, state)

	analysis, ok := r.AnalyzeVertexArray(true)
	test.Equate(t, ok, true)
	test.Equate(t, analysis.MinVertex, uint32(0))
	test.Equate(t, analysis.MaxVertex, uint32(2))
	test.Equate(t, analysis.VertexCount(), uint32(3))
	test.Equate(t, len(analysis.Indices), 3)

	// indices are rebased against the smallest referenced vertex
	indices := guestBytesAt(t, r, testVertexData+0x8000, 6)
	for i, idx := range []uint16{5, 6, 7} {
		binary.LittleEndian.PutUint16(indices[i*2:], idx)
	}
	analysis, ok = r.AnalyzeVertexArray(true)
	test.Equate(t, ok, true)
	test.Equate(t, analysis.MinVertex, uint32(5))
	test.Equate(t, analysis.MaxVertex, uint32(7))
	test.Equate(t, analysis.Indices[0], uint16(0))
	test.Equate(t, analysis.Indices[2], uint16(2))
}

func TestDrawRejectsGuestGeometryShader(t *testing.T) {
	r, state, backend := newTestRasterizer(t)
	setupAcceleratedDraw(t, r, state)
	state.Regs.Raw[pica.RegUseGeometryShader] = 2

	test.Equate(t, r.Draw(true, true), false)
	test.Equate(t, backend.DrawCount, 0)
}

func TestAccelerateFill(t *testing.T) {
	r, _, _ := newTestRasterizer(t)

	cfg := FillConfig{
		Start: testFillTarget,
		End:   testFillTarget + 0x100,
		Value: 0xaabbccdd,
		Width: 4,
	}
	test.Equate(t, r.AccelerateFill(&cfg), true)

	// flushing the filled range replays the pattern into guest memory
	r.FlushRegion(testFillTarget, 0x100)
	guest := guestBytesAt(t, r, testFillTarget, 8)
	test.Equate(t, guest[0], uint8(0xdd))
	test.Equate(t, guest[1], uint8(0xcc))
	test.Equate(t, guest[2], uint8(0xbb))
	test.Equate(t, guest[3], uint8(0xaa))
	test.Equate(t, guest[4], uint8(0xdd))
}

func TestAccelerateFillRejectsBadPattern(t *testing.T) {
	r, _, _ := newTestRasterizer(t)

	cfg := FillConfig{Start: testFillTarget, End: testFillTarget, Value: 0, Width: 4}
	test.Equate(t, r.AccelerateFill(&cfg), false)

	cfg = FillConfig{Start: testFillTarget, End: testFillTarget + 0x100, Value: 0, Width: 1}
	test.Equate(t, r.AccelerateFill(&cfg), false)
}

func TestAccelerateDisplayTransfer(t *testing.T) {
	r, _, _ := newTestRasterizer(t)

	cfg := DisplayTransferConfig{
		InputAddr:    testTransferSrc,
		OutputAddr:   testTransferDst,
		InputWidth:   64,
		InputHeight:  64,
		OutputWidth:  64,
		OutputHeight: 64,
		InputFormat:  0, // RGBA8
		OutputFormat: 0,
		InputLinear:  false,
		OutputTiled:  false,
	}
	test.Equate(t, r.AccelerateDisplayTransfer(&cfg), true)

	cfg.InputAddr = 0
	test.Equate(t, r.AccelerateDisplayTransfer(&cfg), false)
}

func TestAccelerateTextureCopy(t *testing.T) {
	r, _, _ := newTestRasterizer(t)

	// register the source bytes by transferring into them first
	seed := DisplayTransferConfig{
		InputAddr:    testTransferDst,
		OutputAddr:   testTransferSrc,
		InputWidth:   64,
		InputHeight:  64,
		OutputWidth:  64,
		OutputHeight: 64,
	}
	test.Equate(t, r.AccelerateDisplayTransfer(&seed), true)

	cfg := TextureCopyConfig{
		InputAddr:  testTransferSrc,
		OutputAddr: testFillTarget,
		Size:       64 * 64 * 4,
	}
	test.Equate(t, r.AccelerateTextureCopy(&cfg), true)

	// mismatched line geometry needs a repacking pass. declined
	cfg.InputWidth = 256
	cfg.OutputWidth = 128
	test.Equate(t, r.AccelerateTextureCopy(&cfg), false)

	cfg.OutputWidth = 256
	cfg.InputGap = 64
	cfg.OutputGap = 32
	test.Equate(t, r.AccelerateTextureCopy(&cfg), false)
}

func TestAccelerateDisplay(t *testing.T) {
	r, _, _ := newTestRasterizer(t)

	cfg := DisplayConfig{
		Addr:   testTransferSrc,
		Width:  64,
		Height: 64,
		Stride: 64,
		Format: 0, // RGBA8
	}
	tex, rect, ok := r.AccelerateDisplay(&cfg)
	test.Equate(t, ok, true)
	test.Equate(t, tex != 0, true)
	test.Equate(t, rect.W, 64)
	test.Equate(t, rect.H, 64)

	cfg.Addr = 0
	_, _, ok = r.AccelerateDisplay(&cfg)
	test.Equate(t, ok, false)
}
