package systems

import (
	"context"
	"io/fs"
	"path/filepath"
	"testing"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/spaghettifunk/anima-gpu/engine/core"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/pipeline"
	"github.com/spaghettifunk/anima-gpu/engine/resources"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *SystemManager {
	t.Helper()
	cfg := core.DefaultConfig()
	cfg.Log.Level = "warn"
	cfg.CoreThread.LockOSThread = false
	sm, err := NewSystemManager(cfg)
	require.NoError(t, err)
	return sm
}

func TestManagerLifecycle(t *testing.T) {
	sm := newTestManager(t)
	ctx := context.Background()

	dummy := sm.MeshSystem().DummyMesh()
	_, err := dummy.BlockUntilCoreInitialized(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, sm.MeshSystem().DummyMeshData().NumVertices())

	m := sm.MeshSystem().Create(resources.NewDummyMeshData(gputypes.IndexFormatUint16))
	_, err = m.BlockUntilCoreInitialized(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sm.MeshSystem().Count())
	assert.Equal(t, int64(4), sm.Device().LiveBuffers())

	require.NoError(t, sm.Shutdown(ctx))
	assert.Equal(t, int64(0), sm.Device().LiveBuffers())
	assert.True(t, dummy.IsDestroyed())
	assert.True(t, m.IsDestroyed())

	// The core thread is gone.
	_, err = sm.Renderer().Queue(func(ctx context.Context) error { return nil }).Wait(ctx)
	assert.ErrorIs(t, err, core.ErrThreadStopped)
}

func TestManagerRejectsInvalidConfig(t *testing.T) {
	cfg := core.DefaultConfig()
	cfg.Mesh.BufferUsage = "streaming"
	_, err := NewSystemManager(cfg)
	assert.Error(t, err)
}

func TestMeshSystemConfigFrom(t *testing.T) {
	c, err := MeshSystemConfigFrom(core.MeshConfig{BufferUsage: "dynamic", DummyIndexType: "uint16"})
	require.NoError(t, err)
	assert.Equal(t, metadata.GpuBufferUsageDynamic, c.Usage)
	assert.Equal(t, gputypes.IndexFormatUint16, c.DummyIndexFormat)

	c, err = MeshSystemConfigFrom(core.DefaultConfig().Mesh)
	require.NoError(t, err)
	assert.Equal(t, metadata.GpuBufferUsageStatic, c.Usage)
	assert.Equal(t, gputypes.IndexFormatUint32, c.DummyIndexFormat)

	_, err = MeshSystemConfigFrom(core.MeshConfig{BufferUsage: "static", DummyIndexType: "uint8"})
	assert.Error(t, err)
}

func TestMeshRelease(t *testing.T) {
	sm := newTestManager(t)
	ctx := context.Background()
	t.Cleanup(func() { _ = sm.Shutdown(ctx) })

	m := sm.MeshSystem().CreateWithUsage(nil, metadata.GpuBufferUsageDynamic)
	assert.Equal(t, metadata.GpuBufferUsageDynamic, m.Usage())
	_, err := sm.MeshSystem().Release(m).Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, sm.MeshSystem().Count())
}

func TestReleaseTwiceKeepsMeshWithRecycledID(t *testing.T) {
	sm := newTestManager(t)
	ctx := context.Background()
	ms := sm.MeshSystem()

	m1 := ms.Create(nil)
	_, err := ms.Release(m1).Wait(ctx)
	require.NoError(t, err)

	// m2 may be handed the id m1 released.
	m2 := ms.Create(nil)
	_, err = m2.BlockUntilCoreInitialized(ctx)
	require.NoError(t, err)
	_, err = ms.Release(m1).Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, ms.Count())
	assert.False(t, m2.IsDestroyed())

	require.NoError(t, sm.Shutdown(ctx))
	assert.True(t, m2.IsDestroyed())
	assert.Equal(t, int64(0), sm.Device().LiveBuffers())
}

func TestRenderStatesAreShared(t *testing.T) {
	sm := newTestManager(t)
	ctx := context.Background()
	t.Cleanup(func() { _ = sm.Shutdown(ctx) })
	rs := sm.RenderStateSystem()

	assert.Same(t, rs.DefaultBlendState(), rs.BlendState(metadata.DefaultBlendStateDesc()))
	assert.NotSame(t, rs.DefaultBlendState(), rs.BlendState(metadata.PremultipliedBlendStateDesc()))
	assert.Same(t, rs.DefaultRasterizerState(), rs.DefaultRasterizerState())

	wire := metadata.DefaultRasterizerStateDesc()
	wire.Wireframe = true
	assert.NotSame(t, rs.DefaultRasterizerState(), rs.RasterizerState(wire))
	assert.Same(t, rs.DefaultDepthStencilState(), rs.DepthStencilState(metadata.DefaultDepthStencilStateDesc()))
}

func TestCreateGraphicsPipelineUsesDefaults(t *testing.T) {
	sm := newTestManager(t)
	ctx := context.Background()
	rs := sm.RenderStateSystem()

	vs := rs.CreateProgram(metadata.GpuProgramDesc{Name: "basic_vs", Stage: metadata.ShaderStageVertex, EntryPoint: "main"})
	s := rs.CreateGraphicsPipeline(pipeline.GraphicsPipelineStateDesc{VertexProgram: vs})
	c, err := s.BlockUntilCoreInitialized(ctx)
	require.NoError(t, err)

	assert.Same(t, rs.DefaultBlendState(), s.BlendState())
	assert.Equal(t, metadata.DefaultDepthStencilStateDesc(), c.DepthStencilState().Desc())
	assert.True(t, c.HasVertexProgram())

	cs := rs.CreateComputePipeline(nil)
	_, err = cs.BlockUntilCoreInitialized(ctx)
	require.NoError(t, err)

	require.NoError(t, sm.Shutdown(ctx))
	assert.True(t, s.IsDestroyed())
	assert.True(t, vs.IsDestroyed())
	assert.True(t, cs.IsDestroyed())
}

func TestJobSystem(t *testing.T) {
	_, err := NewJobSystem(0, 1)
	assert.ErrorIs(t, err, ErrNoWorkers)
	_, err = NewJobSystem(1, -1)
	assert.ErrorIs(t, err, ErrNegativeChannelSize)

	js, err := NewJobSystem(2, 4)
	require.NoError(t, err)
	ctx := context.Background()

	v, err := RunJob(js, func() (int, error) { return 42, nil }).Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	_, err = RunJob(js, func() (int, error) { panic("boom") }).Wait(ctx)
	assert.ErrorIs(t, err, core.ErrCommandPanicked)

	require.NoError(t, js.Shutdown())
	require.NoError(t, js.Shutdown())
	_, err = RunJob(js, func() (int, error) { return 1, nil }).Wait(ctx)
	assert.ErrorIs(t, err, ErrJobSystemStopped)
}

func TestJobSystemShutdownUnblocksNestedSubmit(t *testing.T) {
	js, err := NewJobSystem(1, 1)
	require.NoError(t, err)
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	var nested *core.AsyncOp[int]
	first := RunJob(js, func() (int, error) {
		close(started)
		<-release
		// The only worker is busy and the queue is full.
		nested = RunJob(js, func() (int, error) { return 3, nil })
		return 1, nil
	})
	<-started
	second := RunJob(js, func() (int, error) { return 2, nil })
	close(release)

	done := make(chan error, 1)
	go func() { done <- js.Shutdown() }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Shutdown blocked on a nested submit")
	}

	v, err := first.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	v, err = second.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
	_, err = nested.Wait(ctx)
	assert.ErrorIs(t, err, ErrJobSystemStopped)
}

func TestMeshSystemLoad(t *testing.T) {
	sm := newTestManager(t)
	ctx := context.Background()
	t.Cleanup(func() { _ = sm.Shutdown(ctx) })

	path := filepath.Join(t.TempDir(), "triangle.amsh")
	src := resources.NewDummyMeshData(gputypes.IndexFormatUint16)
	require.NoError(t, resources.SaveMeshDataFile(path, src))

	m, err := sm.MeshSystem().Load(path).Wait(ctx)
	require.NoError(t, err)
	dst, err := m.AllocateSubresourceBuffer(0).Wait(ctx)
	require.NoError(t, err)
	_, err = m.ReadSubresource(0, dst).Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, src.IndexBytes(), dst.IndexBytes())

	_, err = sm.MeshSystem().Load(filepath.Join(t.TempDir(), "missing.amsh")).Wait(ctx)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}
