package mesh

import (
	"context"
	"fmt"

	"github.com/spaghettifunk/anima-gpu/engine/core"
	"github.com/spaghettifunk/anima-gpu/engine/renderer"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-gpu/engine/resources"
)

/**
 * @brief Simulation-side handle of a mesh. Every operation is queued on the
 * core thread; data handed to a write must not change until the returned
 * op completes.
 */
type Mesh struct {
	renderer.CoreObject[*MeshCore]
	usage metadata.GpuBufferUsage
}

// New returns immediately; the buffers are created on the core thread. A nil
// initialData uploads a placeholder triangle.
func New(r *renderer.Renderer, initialData *resources.MeshData, usage metadata.GpuBufferUsage) *Mesh {
	m := &Mesh{usage: usage}
	m.Init(r, "mesh", m, func(ctx context.Context) (*MeshCore, error) {
		c := NewMeshCore(r, initialData, usage)
		if err := c.Initialize(ctx); err != nil {
			return nil, err
		}
		return c, nil
	})
	return m
}

func (m *Mesh) Usage() metadata.GpuBufferUsage {
	return m.usage
}

// destroyedOp fails calls made after Destroy without queueing them.
func destroyedOp[T any](m *Mesh, op string) (*core.AsyncOp[T], bool) {
	if !m.IsDestroyed() {
		return nil, false
	}
	err := fmt.Errorf("func %s: mesh %s was destroyed: %w", op, m.DebugName(), core.ErrCoreDestroyed)
	core.LogError("%s", err)
	var zero T
	return core.CompletedOp(zero, err), true
}

func (m *Mesh) core(op string) (*MeshCore, error) {
	c := m.Core()
	if c == nil {
		core.LogError("%s on mesh %s without a core", op, m.DebugName())
		return nil, core.ErrCoreNotInitialized
	}
	return c, nil
}

func (m *Mesh) WriteSubresource(index int, data metadata.GpuResourceData) *core.AsyncOp[struct{}] {
	if failed, ok := destroyedOp[struct{}](m, "WriteSubresource"); ok {
		return failed
	}
	if _, err := meshDataOf("WriteSubresource", index, data); err != nil {
		core.LogError("%s", err)
		return core.CompletedOp(struct{}{}, err)
	}
	return m.Renderer().Queue(func(ctx context.Context) error {
		c, err := m.core("WriteSubresource")
		if err != nil {
			return err
		}
		return c.WriteSubresource(ctx, index, data)
	})
}

func (m *Mesh) ReadSubresource(index int, data metadata.GpuResourceData) *core.AsyncOp[struct{}] {
	if failed, ok := destroyedOp[struct{}](m, "ReadSubresource"); ok {
		return failed
	}
	if _, err := meshDataOf("ReadSubresource", index, data); err != nil {
		core.LogError("%s", err)
		return core.CompletedOp(struct{}{}, err)
	}
	return m.Renderer().Queue(func(ctx context.Context) error {
		c, err := m.core("ReadSubresource")
		if err != nil {
			return err
		}
		return c.ReadSubresource(ctx, index, data)
	})
}

func (m *Mesh) AllocateSubresourceBuffer(index int) *core.AsyncOp[*resources.MeshData] {
	if failed, ok := destroyedOp[*resources.MeshData](m, "AllocateSubresourceBuffer"); ok {
		return failed
	}
	return core.Submit(m.Renderer().Thread(), func(ctx context.Context) (*resources.MeshData, error) {
		c, err := m.core("AllocateSubresourceBuffer")
		if err != nil {
			return nil, err
		}
		return c.AllocateSubresourceBuffer(ctx, index)
	})
}

// SubMeshData resolves the draw bundle of one sub-mesh on the core thread.
func (m *Mesh) SubMeshData(index int) *core.AsyncOp[RenderOpMesh] {
	if failed, ok := destroyedOp[RenderOpMesh](m, "SubMeshData"); ok {
		return failed
	}
	return core.Submit(m.Renderer().Thread(), func(ctx context.Context) (RenderOpMesh, error) {
		c, err := m.core("SubMeshData")
		if err != nil {
			return RenderOpMesh{}, err
		}
		return c.SubMeshData(ctx, index)
	})
}
