package software

import (
	"context"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/spaghettifunk/anima-gpu/engine/core"
	"github.com/spaghettifunk/anima-gpu/engine/renderer"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func onCoreThread(t *testing.T, fn func(ctx context.Context)) {
	t.Helper()
	th := core.NewCoreThread(core.DefaultConfig().CoreThread)
	defer th.Stop()
	_, err := th.Queue(func(ctx context.Context) error {
		fn(ctx)
		return nil
	}).Wait(context.Background())
	require.NoError(t, err)
}

func TestIndexBufferLockUnlock(t *testing.T) {
	d := New()
	onCoreThread(t, func(ctx context.Context) {
		ib, err := d.CreateIndexBuffer(ctx, gputypes.IndexFormatUint16, 6, metadata.GpuBufferUsageStatic)
		require.NoError(t, err)
		assert.Equal(t, uint32(12), ib.Size())
		assert.Equal(t, uint32(2), ib.IndexSize())
		assert.Equal(t, uint32(6), ib.NumIndices())
		assert.Equal(t, int64(1), d.LiveBuffers())

		data, err := ib.Lock(ctx, 0, ib.Size(), metadata.GpuLockWriteOnlyDiscard)
		require.NoError(t, err)
		copy(data, []byte{1, 2, 3})
		assert.True(t, ib.IsLocked())

		_, err = ib.Lock(ctx, 0, 1, metadata.GpuLockReadOnly)
		assert.ErrorIs(t, err, core.ErrBufferLocked)
		require.NoError(t, ib.Unlock(ctx))
		assert.ErrorIs(t, ib.Unlock(ctx), core.ErrBufferNotLocked)

		read, err := ib.Lock(ctx, 0, 3, metadata.GpuLockReadOnly)
		require.NoError(t, err)
		assert.Equal(t, []byte{1, 2, 3}, read)
		// Read-only locks hand out a copy.
		read[0] = 9
		require.NoError(t, ib.Unlock(ctx))
		read, err = ib.Lock(ctx, 0, 1, metadata.GpuLockReadOnly)
		require.NoError(t, err)
		assert.Equal(t, byte(1), read[0])
		require.NoError(t, ib.Unlock(ctx))

		_, err = ib.Lock(ctx, 10, 4, metadata.GpuLockReadOnly)
		assert.ErrorIs(t, err, core.ErrIndexOutOfRange)

		ib.Destroy(ctx)
		assert.Equal(t, int64(0), d.LiveBuffers())
		_, err = ib.Lock(ctx, 0, 1, metadata.GpuLockReadOnly)
		assert.ErrorIs(t, err, core.ErrBufferDestroyed)
	})
}

func TestVertexBufferUsage(t *testing.T) {
	d := New()
	onCoreThread(t, func(ctx context.Context) {
		vb, err := d.CreateVertexBuffer(ctx, 12, 4, metadata.GpuBufferUsageDynamic)
		require.NoError(t, err)
		assert.Equal(t, uint32(48), vb.Size())
		sb := vb.(*VertexBuffer)
		assert.NotZero(t, sb.DeviceUsage()&gputypes.BufferUsageVertex)
		assert.Equal(t, metadata.GpuBufferUsageDynamic, sb.Usage())

		_, err = d.CreateVertexBuffer(ctx, 0, 4, metadata.GpuBufferUsageStatic)
		assert.ErrorIs(t, err, core.ErrInvalidParameter)
	})
}

func TestBufferSizeOverflow(t *testing.T) {
	d := New()
	onCoreThread(t, func(ctx context.Context) {
		_, err := d.CreateIndexBuffer(ctx, gputypes.IndexFormatUint32, 1<<30, metadata.GpuBufferUsageStatic)
		assert.ErrorIs(t, err, core.ErrInvalidParameter)
		_, err = d.CreateVertexBuffer(ctx, 1<<16, 1<<16, metadata.GpuBufferUsageStatic)
		assert.ErrorIs(t, err, core.ErrInvalidParameter)
		assert.Equal(t, int64(0), d.LiveBuffers())

		// Sizes that fit are still accepted.
		vb, err := d.CreateVertexBuffer(ctx, 1<<16, 1, metadata.GpuBufferUsageStatic)
		require.NoError(t, err)
		assert.Equal(t, uint32(1<<16), vb.Size())
		vb.Destroy(ctx)
	})
}

func TestBufferOffCoreThreadPanics(t *testing.T) {
	d := New()
	var ib renderer.IndexBuffer
	onCoreThread(t, func(ctx context.Context) {
		ib, _ = d.CreateIndexBuffer(ctx, gputypes.IndexFormatUint32, 3, metadata.GpuBufferUsageStatic)
	})
	require.NotNil(t, ib)
	assert.Panics(t, func() {
		_, _ = ib.Lock(context.Background(), 0, 4, metadata.GpuLockReadOnly)
	})
}

func TestLinkGraphicsPipelineChecksStages(t *testing.T) {
	d := New()
	onCoreThread(t, func(ctx context.Context) {
		vs, err := d.CreateProgram(ctx, &metadata.GpuProgramDesc{Name: "vs", Stage: metadata.ShaderStageVertex})
		require.NoError(t, err)
		fs, err := d.CreateProgram(ctx, &metadata.GpuProgramDesc{Name: "fs", Stage: metadata.ShaderStageFragment})
		require.NoError(t, err)

		var set renderer.GraphicsProgramSet
		set[metadata.ShaderStageVertex] = vs
		set[metadata.ShaderStageFragment] = fs
		linked, err := d.LinkGraphicsPipeline(ctx, set)
		require.NoError(t, err)
		assert.Len(t, linked.(*Pipeline).Programs, 2)

		set[metadata.ShaderStageGeometry] = vs
		_, err = d.LinkGraphicsPipeline(ctx, set)
		assert.ErrorIs(t, err, core.ErrProgramStageMismatch)

		_, err = d.LinkComputePipeline(ctx, vs)
		assert.ErrorIs(t, err, core.ErrProgramStageMismatch)

		_, err = d.CreateProgram(ctx, &metadata.GpuProgramDesc{Stage: metadata.ShaderStage(42)})
		assert.ErrorIs(t, err, core.ErrInvalidParameter)
	})
}
