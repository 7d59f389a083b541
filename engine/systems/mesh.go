package systems

import (
	"context"
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/spaghettifunk/anima-gpu/engine/core"
	"github.com/spaghettifunk/anima-gpu/engine/renderer"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/mesh"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-gpu/engine/resources"
)

/** @brief The mesh system configuration. */
type MeshSystemConfig struct {
	/** @brief Usage hint for meshes created without an explicit one. */
	Usage metadata.GpuBufferUsage
	/** @brief Index format of the placeholder mesh. */
	DummyIndexFormat gputypes.IndexFormat
}

// MeshSystemConfigFrom translates the [mesh] config section.
func MeshSystemConfigFrom(cfg core.MeshConfig) (MeshSystemConfig, error) {
	usage, err := metadata.ParseGpuBufferUsage(cfg.BufferUsage)
	if err != nil {
		return MeshSystemConfig{}, fmt.Errorf("func MeshSystemConfigFrom: %w", err)
	}
	format, err := metadata.ParseIndexFormat(cfg.DummyIndexType)
	if err != nil {
		return MeshSystemConfig{}, fmt.Errorf("func MeshSystemConfigFrom: %w", err)
	}
	return MeshSystemConfig{Usage: usage, DummyIndexFormat: format}, nil
}

/**
 * @brief Creates meshes and keeps track of them so they can all be released
 * on shutdown. Owns a placeholder mesh used when real data is missing.
 */
type MeshSystem struct {
	Config    MeshSystemConfig
	renderer  *renderer.Renderer
	jobs      *JobSystem
	dummyData *resources.MeshData
	dummyMesh *mesh.Mesh

	mutex  sync.Mutex
	// Keyed by pointer, ids are recycled once a mesh is destroyed.
	meshes map[*mesh.Mesh]struct{}
}

func NewMeshSystem(config MeshSystemConfig, r *renderer.Renderer, js *JobSystem) (*MeshSystem, error) {
	if r == nil || js == nil {
		err := fmt.Errorf("func NewMeshSystem: renderer and job system cannot be nil: %w", core.ErrInvalidParameter)
		core.LogError("%s", err)
		return nil, err
	}
	if metadata.IndexElementSize(config.DummyIndexFormat) == 0 {
		err := fmt.Errorf("func NewMeshSystem: unsupported dummy index format %v: %w", config.DummyIndexFormat, core.ErrInvalidParameter)
		core.LogError("%s", err)
		return nil, err
	}
	ms := &MeshSystem{
		Config:    config,
		renderer:  r,
		jobs:      js,
		dummyData: resources.NewDummyMeshData(config.DummyIndexFormat),
		meshes:    make(map[*mesh.Mesh]struct{}),
	}
	ms.dummyMesh = mesh.New(r, ms.dummyData, metadata.GpuBufferUsageStatic)
	return ms, nil
}

// DummyMeshData returns the placeholder triangle. Callers must not modify it.
func (ms *MeshSystem) DummyMeshData() *resources.MeshData {
	return ms.dummyData
}

func (ms *MeshSystem) DummyMesh() *mesh.Mesh {
	return ms.dummyMesh
}

// Create schedules the upload of data with the configured usage hint.
func (ms *MeshSystem) Create(data *resources.MeshData) *mesh.Mesh {
	return ms.CreateWithUsage(data, ms.Config.Usage)
}

func (ms *MeshSystem) CreateWithUsage(data *resources.MeshData, usage metadata.GpuBufferUsage) *mesh.Mesh {
	m := mesh.New(ms.renderer, data, usage)
	ms.mutex.Lock()
	ms.meshes[m] = struct{}{}
	ms.mutex.Unlock()
	core.LogDebug("mesh %s scheduled for creation", m.DebugName())
	return m
}

// Load decodes the mesh file at path on a worker and schedules its upload.
// The op completes once the file is decoded, not once the upload is done.
func (ms *MeshSystem) Load(path string) *core.AsyncOp[*mesh.Mesh] {
	return RunJob(ms.jobs, func() (*mesh.Mesh, error) {
		md, err := resources.LoadMeshDataFile(path)
		if err != nil {
			return nil, fmt.Errorf("func Load: %s: %w", path, err)
		}
		return ms.Create(md), nil
	})
}

// Count returns the number of meshes created and not yet released.
func (ms *MeshSystem) Count() int {
	ms.mutex.Lock()
	defer ms.mutex.Unlock()
	return len(ms.meshes)
}

// Release schedules the destruction of m.
func (ms *MeshSystem) Release(m *mesh.Mesh) *core.AsyncOp[struct{}] {
	ms.mutex.Lock()
	delete(ms.meshes, m)
	ms.mutex.Unlock()
	return m.Destroy()
}

// Shutdown releases every mesh, the placeholder included, and waits for
// the core thread to finish.
func (ms *MeshSystem) Shutdown(ctx context.Context) error {
	ms.mutex.Lock()
	ops := make([]*core.AsyncOp[struct{}], 0, len(ms.meshes)+1)
	for m := range ms.meshes {
		ops = append(ops, m.Destroy())
		delete(ms.meshes, m)
	}
	ms.mutex.Unlock()
	ops = append(ops, ms.dummyMesh.Destroy())
	return waitAll(ctx, ops)
}

func waitAll(ctx context.Context, ops []*core.AsyncOp[struct{}]) error {
	var first error
	for _, op := range ops {
		if _, err := op.Wait(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}
