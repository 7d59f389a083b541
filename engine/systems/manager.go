package systems

import (
	"context"
	"fmt"

	"github.com/spaghettifunk/anima-gpu/engine/core"
	"github.com/spaghettifunk/anima-gpu/engine/renderer"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/software"
)

/**
 * @brief Owns the core thread, the renderer and every system built on top of
 * them. Systems are shut down in reverse creation order.
 */
type SystemManager struct {
	config   *core.Config
	thread   *core.CoreThread
	device   *software.Device
	renderer *renderer.Renderer

	jobSystem         *JobSystem
	meshSystem        *MeshSystem
	renderStateSystem *RenderStateSystem
}

func NewSystemManager(cfg *core.Config) (*SystemManager, error) {
	if cfg == nil {
		cfg = core.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		core.LogError("%s", err)
		return nil, err
	}
	if err := core.ConfigureLogging(cfg.Log); err != nil {
		return nil, fmt.Errorf("func NewSystemManager: %w", err)
	}
	core.SetThreadChecks(cfg.CoreThread.ThreadChecks)

	thread := core.NewCoreThread(cfg.CoreThread)
	device := software.New()
	r, err := renderer.New(thread, device)
	if err != nil {
		thread.Stop()
		return nil, err
	}
	msc, err := MeshSystemConfigFrom(cfg.Mesh)
	if err != nil {
		thread.Stop()
		return nil, err
	}
	js, err := NewJobSystem(cfg.Jobs.Workers, cfg.Jobs.QueueSize)
	if err != nil {
		thread.Stop()
		return nil, err
	}
	ms, err := NewMeshSystem(msc, r, js)
	if err != nil {
		_ = js.Shutdown()
		thread.Stop()
		return nil, err
	}
	rss, err := NewRenderStateSystem(r)
	if err != nil {
		_ = js.Shutdown()
		thread.Stop()
		return nil, err
	}
	return &SystemManager{
		config:            cfg,
		thread:            thread,
		device:            device,
		renderer:          r,
		jobSystem:         js,
		meshSystem:        ms,
		renderStateSystem: rss,
	}, nil
}

func (sm *SystemManager) Config() *core.Config {
	return sm.config
}

func (sm *SystemManager) Renderer() *renderer.Renderer {
	return sm.renderer
}

func (sm *SystemManager) Device() *software.Device {
	return sm.device
}

func (sm *SystemManager) JobSystem() *JobSystem {
	return sm.jobSystem
}

func (sm *SystemManager) MeshSystem() *MeshSystem {
	return sm.meshSystem
}

func (sm *SystemManager) RenderStateSystem() *RenderStateSystem {
	return sm.renderStateSystem
}

// Reconfigure applies the settings that can change at runtime. The core
// thread queue and the mesh defaults are fixed at creation.
func (sm *SystemManager) Reconfigure(cfg *core.Config) {
	if err := core.ConfigureLogging(cfg.Log); err != nil {
		core.LogWarn("reconfigure: %s", err)
	}
	core.SetThreadChecks(cfg.CoreThread.ThreadChecks)
	sm.config = cfg
}

func (sm *SystemManager) Shutdown(ctx context.Context) error {
	defer sm.thread.Stop()
	// Workers may still be queueing uploads.
	if err := sm.jobSystem.Shutdown(); err != nil {
		return err
	}
	if err := sm.renderStateSystem.Shutdown(ctx); err != nil {
		return err
	}
	if err := sm.meshSystem.Shutdown(ctx); err != nil {
		return err
	}
	queued, executed, failed, avg := sm.thread.Metrics().Snapshot()
	core.LogInfo("core thread: %d queued, %d executed, %d failed, %.3fms avg", queued, executed, failed, avg)
	return nil
}
