package renderer

import (
	"context"
	"fmt"

	"github.com/spaghettifunk/anima-gpu/engine/core"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/metadata"
)

/**
 * @brief Bundles the core thread and the device it drives. Passed explicitly
 * to everything that needs to create or touch device objects.
 */
type Renderer struct {
	thread *core.CoreThread
	device Device
}

func New(thread *core.CoreThread, device Device) (*Renderer, error) {
	if thread == nil || device == nil {
		return nil, fmt.Errorf("renderer requires a core thread and a device: %w", core.ErrInvalidParameter)
	}
	core.LogInfo("renderer created on device %s", device.Name())
	return &Renderer{thread: thread, device: device}, nil
}

func (r *Renderer) Thread() *core.CoreThread {
	return r.thread
}

func (r *Renderer) Device() Device {
	return r.device
}

// Queue schedules fn on the core thread.
func (r *Renderer) Queue(fn func(ctx context.Context) error) *core.AsyncOp[struct{}] {
	return r.thread.Queue(fn)
}

// WithLock locks buf, hands the mapped bytes to fn and always unlocks
// afterwards. An unlock failure is reported only if fn succeeded.
func WithLock(ctx context.Context, buf Buffer, offset, length uint32, options metadata.GpuLockOptions, fn func(data []byte) error) (err error) {
	data, err := buf.Lock(ctx, offset, length, options)
	if err != nil {
		return err
	}
	defer func() {
		if uerr := buf.Unlock(ctx); uerr != nil && err == nil {
			err = uerr
		}
	}()
	return fn(data)
}

// CopyBuffer copies the contents of src into dst. Both buffers must be the
// same size.
func CopyBuffer(ctx context.Context, src, dst Buffer) error {
	if src.Size() != dst.Size() {
		return fmt.Errorf("func CopyBuffer: size mismatch %d != %d: %w", src.Size(), dst.Size(), core.ErrInvalidParameter)
	}
	if src.Size() == 0 {
		return nil
	}
	return WithLock(ctx, src, 0, src.Size(), metadata.GpuLockReadOnly, func(from []byte) error {
		return WithLock(ctx, dst, 0, dst.Size(), metadata.GpuLockWriteOnlyDiscard, func(to []byte) error {
			copy(to, from)
			return nil
		})
	})
}
