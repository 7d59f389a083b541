package renderer

import (
	"context"
	"sync/atomic"

	"github.com/spaghettifunk/anima-gpu/engine/core"
)

/**
 * @brief Embedded by every simulation-side GPU object. It owns the creation
 * token of the core counterpart and schedules its destruction.
 */
type CoreObject[C Destroyer] struct {
	id        uint32
	name      string
	renderer  *Renderer
	initOp    *core.AsyncOp[C]
	destroyed atomic.Bool
}

/**
 * @brief Schedules factory on the core thread and returns immediately. The
 * result becomes available through Core once the command has run.
 */
func (o *CoreObject[C]) Init(r *Renderer, kind string, owner interface{}, factory func(ctx context.Context) (C, error)) {
	o.renderer = r
	o.id = core.IdentifierAquireNewID(owner)
	o.name = core.NewDebugName(kind)
	o.initOp = core.Submit(r.Thread(), func(ctx context.Context) (C, error) {
		c, err := factory(ctx)
		if err != nil {
			core.LogError("failed to create core object %s: %s", o.name, err)
		}
		return c, err
	})
}

func (o *CoreObject[C]) ID() uint32 {
	return o.id
}

func (o *CoreObject[C]) DebugName() string {
	return o.name
}

func (o *CoreObject[C]) Renderer() *Renderer {
	return o.renderer
}

// Core returns the core counterpart, or the zero value while it is still
// being created or if creation failed.
func (o *CoreObject[C]) Core() C {
	var zero C
	if o.initOp == nil || !o.initOp.IsComplete() {
		return zero
	}
	c, err := o.initOp.Wait(context.Background())
	if err != nil {
		return zero
	}
	return c
}

func (o *CoreObject[C]) InitOp() *core.AsyncOp[C] {
	return o.initOp
}

func (o *CoreObject[C]) IsCoreInitialized() bool {
	return o.initOp != nil && o.initOp.IsComplete()
}

// BlockUntilCoreInitialized waits for the core counterpart. It must not be
// called from the core thread.
func (o *CoreObject[C]) BlockUntilCoreInitialized(ctx context.Context) (C, error) {
	if o.initOp == nil {
		var zero C
		return zero, core.ErrCoreNotInitialized
	}
	return o.initOp.Wait(ctx)
}

func (o *CoreObject[C]) IsDestroyed() bool {
	return o.destroyed.Load()
}

/**
 * @brief Schedules destruction of the core counterpart behind every command
 * already queued. Calling it more than once is a no-op.
 */
func (o *CoreObject[C]) Destroy() *core.AsyncOp[struct{}] {
	if o.initOp == nil {
		return core.CompletedOp(struct{}{}, core.ErrCoreNotInitialized)
	}
	if !o.destroyed.CompareAndSwap(false, true) {
		return core.CompletedOp(struct{}{}, nil)
	}
	return o.renderer.Queue(func(ctx context.Context) error {
		// Creation was queued first, so it has already run.
		c, err := o.initOp.Wait(ctx)
		if err == nil {
			c.Destroy(ctx)
		}
		return core.IdentifierReleaseID(o.id)
	})
}
