package params

import (
	"context"
	"encoding/binary"
	stdmath "math"
	"testing"

	"github.com/spaghettifunk/anima-gpu/engine/core"
	"github.com/spaghettifunk/anima-gpu/engine/math"
	"github.com/spaghettifunk/anima-gpu/engine/renderer"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/software"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDesc() *metadata.GpuParamDesc {
	desc := metadata.NewGpuParamDesc()
	desc.ParamBlocks["PerObject"] = metadata.GpuParamBlockDesc{Name: "PerObject", Slot: 0, BlockSize: 160}
	desc.ParamBlocks["PerFrame"] = metadata.GpuParamBlockDesc{Name: "PerFrame", Slot: 1, BlockSize: 64, IsShareable: true}
	desc.Params["tint"] = metadata.GpuParamDataDesc{Name: "tint", Type: metadata.GpuParamDataTypeFloat4, ParamBlockSlot: 0, CpuMemOffset: 0}
	desc.Params["world"] = metadata.GpuParamDataDesc{Name: "world", Type: metadata.GpuParamDataTypeMatrix4x4, ParamBlockSlot: 0, CpuMemOffset: 16}
	desc.Params["normalMat"] = metadata.GpuParamDataDesc{Name: "normalMat", Type: metadata.GpuParamDataTypeMatrix3x3, ParamBlockSlot: 0, CpuMemOffset: 80}
	desc.Params["weights"] = metadata.GpuParamDataDesc{Name: "weights", Type: metadata.GpuParamDataTypeFloat1, ParamBlockSlot: 0, CpuMemOffset: 116, ArraySize: 4, ArrayElementStride: 8}
	desc.Params["light"] = metadata.GpuParamDataDesc{Name: "light", Type: metadata.GpuParamDataTypeStruct, ParamBlockSlot: 1, CpuMemOffset: 0, ElementSize: 32}
	desc.Params["time"] = metadata.GpuParamDataDesc{Name: "time", Type: metadata.GpuParamDataTypeFloat1, ParamBlockSlot: 1, CpuMemOffset: 32}
	desc.Textures["albedo"] = metadata.GpuParamObjectDesc{Name: "albedo", Type: metadata.GpuParamObjectTypeTexture2D, Slot: 0}
	desc.Samplers["albedoSampler"] = metadata.GpuParamObjectDesc{Name: "albedoSampler", Type: metadata.GpuParamObjectTypeSampler, Slot: 0}
	return desc
}

func newTestParams(t *testing.T, transpose bool) *GpuParams {
	t.Helper()
	p, err := NewGpuParams(testDesc(), transpose)
	require.NoError(t, err)
	return p
}

func floatAt(data []byte, offset int) float32 {
	return stdmath.Float32frombits(binary.LittleEndian.Uint32(data[offset:]))
}

func TestGetParamTint(t *testing.T) {
	p := newTestParams(t, false)

	tint, err := GetParam[math.Vec4](p, "tint")
	require.NoError(t, err)
	tint.Set(math.NewVec4(1, 0.5, 0.25, 1))
	assert.Equal(t, math.NewVec4(1, 0.5, 0.25, 1), tint.Get())

	_, err = GetParam[float32](p, "tint")
	assert.ErrorIs(t, err, core.ErrInvalidParameter)
	_, err = GetParam[math.Vec3](p, "tint")
	assert.ErrorIs(t, err, core.ErrInvalidParameter)
}

func TestParamHandlesAlias(t *testing.T) {
	p := newTestParams(t, false)

	a, err := GetParam[math.Vec4](p, "tint")
	require.NoError(t, err)
	b, err := GetParam[math.Vec4](p, "tint")
	require.NoError(t, err)

	a.Set(math.NewVec4(1, 2, 3, 4))
	assert.Equal(t, math.NewVec4(1, 2, 3, 4), b.Get())
	b.Set(math.NewVec4(5, 6, 7, 8))
	assert.Equal(t, math.NewVec4(5, 6, 7, 8), a.Get())

	block := p.ParamBlock(0)
	assert.True(t, block.IsDirty())
	assert.Equal(t, float32(5), floatAt(block.Data(), 0))
	assert.Equal(t, float32(8), floatAt(block.Data(), 12))
}

func TestAbsentParams(t *testing.T) {
	p := newTestParams(t, false)

	for _, name := range []string{"missing", "", "albedo"} {
		assert.False(t, p.HasParam(name))
		_, err := GetParam[float32](p, name)
		assert.ErrorIs(t, err, core.ErrInvalidParameter)
		assert.Zero(t, p.DataParamSize(name))
	}
	_, err := p.GetStructParam("tint")
	assert.ErrorIs(t, err, core.ErrInvalidParameter)
	_, err = p.GetTextureParam("albedoSampler")
	assert.ErrorIs(t, err, core.ErrInvalidParameter)
	_, err = p.GetSamplerStateParam("albedo")
	assert.ErrorIs(t, err, core.ErrInvalidParameter)

	assert.True(t, p.HasParam("tint"))
	assert.True(t, p.HasTexture("albedo"))
	assert.True(t, p.HasSamplerState("albedoSampler"))
	assert.True(t, p.HasParamBlock("PerFrame"))
	assert.False(t, p.HasParamBlock("PerCamera"))
	assert.Equal(t, uint32(16), p.DataParamSize("tint"))
	assert.Equal(t, uint32(64), p.DataParamSize("world"))
	assert.Equal(t, uint32(32), p.DataParamSize("light"))
}

func testMat4() math.Mat4 {
	var m math.Mat4
	for i := range m.Data {
		m.Data[i] = float32(i)
	}
	return m
}

func TestMatrixTransposeAtWrite(t *testing.T) {
	m := testMat4()

	plain := newTestParams(t, false)
	h, err := GetParam[math.Mat4](plain, "world")
	require.NoError(t, err)
	h.Set(m)
	data := plain.ParamBlock(0).Data()
	// Row 0, column 1.
	assert.Equal(t, float32(1), floatAt(data, 16+1*4))

	transposed := newTestParams(t, true)
	h, err = GetParam[math.Mat4](transposed, "world")
	require.NoError(t, err)
	h.Set(m)
	data = transposed.ParamBlock(0).Data()
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			assert.Equal(t, m.Data[c*4+r], floatAt(data, 16+(r*4+c)*4))
		}
	}
	// Reads undo the transpose.
	assert.Equal(t, m, h.Get())

	var m3 math.Mat3
	for i := range m3.Data {
		m3.Data[i] = float32(i + 1)
	}
	h3, err := GetParam[math.Mat3](transposed, "normalMat")
	require.NoError(t, err)
	h3.Set(m3)
	assert.Equal(t, m3.Data[3], floatAt(data, 80+1*4))
	assert.Equal(t, m3, h3.Get())
}

func TestArrayElements(t *testing.T) {
	p := newTestParams(t, false)
	w, err := GetParam[float32](p, "weights")
	require.NoError(t, err)
	assert.Equal(t, uint32(4), w.ArraySize())

	for i := uint32(0); i < 4; i++ {
		w.SetElement(i, float32(i)+0.5)
	}
	// Out of range writes are ignored.
	w.SetElement(4, 99)

	data := p.ParamBlock(0).Data()
	for i := 0; i < 4; i++ {
		assert.Equal(t, float32(i)+0.5, floatAt(data, 116+i*8))
		assert.Equal(t, float32(i)+0.5, w.GetElement(uint32(i)))
	}
	assert.Zero(t, w.GetElement(4))
}

func TestStructAndObjectParams(t *testing.T) {
	p := newTestParams(t, false)

	light, err := p.GetStructParam("light")
	require.NoError(t, err)
	payload := make([]byte, 40)
	for i := range payload {
		payload[i] = byte(i)
	}
	light.Set(payload)
	assert.Equal(t, payload[:32], light.Get())
	// The neighbouring parameter is untouched by the truncated write.
	tm, err := GetParam[float32](p, "time")
	require.NoError(t, err)
	assert.Zero(t, tm.Get())

	tex, err := p.GetTextureParam("albedo")
	require.NoError(t, err)
	tex.Set(namedObject("bricks"))
	assert.Equal(t, "bricks", tex.Get().Name())

	smp, err := p.GetSamplerStateParam("albedoSampler")
	require.NoError(t, err)
	smp.Set(namedObject("linear"))
	assert.Equal(t, "linear", smp.Get().Name())
}

type namedObject string

func (n namedObject) Name() string { return string(n) }

func TestWritesAfterDestroyAreIgnored(t *testing.T) {
	p := newTestParams(t, false)
	tint, err := GetParam[math.Vec4](p, "tint")
	require.NoError(t, err)
	tint.Set(math.NewVec4(1, 1, 1, 1))

	_, err = p.Destroy().Wait(context.Background())
	require.NoError(t, err)
	assert.True(t, p.IsDestroyed())
	assert.False(t, tint.IsValid())

	tint.Set(math.NewVec4(2, 2, 2, 2))
	assert.Equal(t, math.NewVec4(1, 1, 1, 1), tint.Get())
}

func TestNewGpuParamsValidatesLayout(t *testing.T) {
	desc := testDesc()
	desc.Params["overflow"] = metadata.GpuParamDataDesc{Name: "overflow", Type: metadata.GpuParamDataTypeMatrix4x4, ParamBlockSlot: 1, CpuMemOffset: 32}
	_, err := NewGpuParams(desc, false)
	assert.ErrorIs(t, err, core.ErrInvalidParameter)

	desc = testDesc()
	desc.Params["orphan"] = metadata.GpuParamDataDesc{Name: "orphan", Type: metadata.GpuParamDataTypeFloat1, ParamBlockSlot: 7}
	_, err = NewGpuParams(desc, false)
	assert.ErrorIs(t, err, core.ErrInvalidParameter)

	empty, err := NewGpuParams(nil, false)
	require.NoError(t, err)
	assert.Zero(t, empty.NumParamBlocks())
}

func newTestRenderer(t *testing.T) (*renderer.Renderer, *software.Device) {
	t.Helper()
	th := core.NewCoreThread(core.DefaultConfig().CoreThread)
	t.Cleanup(th.Stop)
	dev := software.New()
	r, err := renderer.New(th, dev)
	require.NoError(t, err)
	return r, dev
}

func readBuffer(t *testing.T, r *renderer.Renderer, buf renderer.Buffer) []byte {
	t.Helper()
	out, err := core.Submit(r.Thread(), func(ctx context.Context) ([]byte, error) {
		var out []byte
		err := renderer.WithLock(ctx, buf, 0, buf.Size(), metadata.GpuLockReadOnly, func(data []byte) error {
			out = data
			return nil
		})
		return out, err
	}).Wait(context.Background())
	require.NoError(t, err)
	return out
}

func TestBindUploadsDirtyBlocks(t *testing.T) {
	r, dev := newTestRenderer(t)
	p := newTestParams(t, false)

	_, err := p.CreateParamBlockBuffers(r, metadata.GpuBufferUsageDynamic).Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), dev.LiveBuffers())
	require.NotNil(t, p.ParamBlockBuffer(0))
	assert.Equal(t, uint32(160), p.ParamBlockBuffer(0).Size())

	tint, err := GetParam[math.Vec4](p, "tint")
	require.NoError(t, err)
	tint.Set(math.NewVec4(3, 0, 0, 0))

	op := p.Bind(r)
	// Writes after Bind do not leak into the scheduled upload.
	tint.Set(math.NewVec4(4, 0, 0, 0))
	_, err = op.Wait(context.Background())
	require.NoError(t, err)

	assert.Equal(t, float32(3), floatAt(readBuffer(t, r, p.ParamBlockBuffer(0)), 0))
	assert.True(t, p.ParamBlock(0).IsDirty())
	assert.False(t, p.ParamBlock(1).IsDirty())
	assert.False(t, p.ParamBlockBuffer(0).IsLocked())

	_, err = p.Destroy().Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), dev.LiveBuffers())
}

func TestSetParamBlockBufferSharing(t *testing.T) {
	r, dev := newTestRenderer(t)
	a := newTestParams(t, false)
	b := newTestParams(t, false)

	shared, err := core.Submit(r.Thread(), func(ctx context.Context) (renderer.ParamBlockBuffer, error) {
		return r.Device().CreateParamBlockBuffer(ctx, 64, metadata.GpuBufferUsageDynamic)
	}).Wait(context.Background())
	require.NoError(t, err)

	require.NoError(t, a.SetParamBlockBufferByName("PerFrame", shared))
	require.NoError(t, b.SetParamBlockBuffer(1, shared))
	assert.Same(t, a.ParamBlockBuffer(1), b.ParamBlockBuffer(1))

	assert.ErrorIs(t, a.SetParamBlockBuffer(9, shared), core.ErrInvalidParameter)
	assert.ErrorIs(t, a.SetParamBlockBufferByName("PerCamera", shared), core.ErrInvalidParameter)

	// Shared buffers are not owned and survive the store.
	_, err = a.Destroy().Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), dev.LiveBuffers())
}
