package software

import (
	"context"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/spaghettifunk/anima-gpu/engine/core"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/metadata"
)

/** @brief A device buffer backed by host memory. */
type Buffer struct {
	device    *Device
	data      []byte
	usage     gputypes.BufferUsage
	hint      metadata.GpuBufferUsage
	locked    bool
	destroyed bool
	// Set for read-only locks, the caller works on a copy.
	readOnly bool
}

func newBuffer(device *Device, size uint32, usage gputypes.BufferUsage, hint metadata.GpuBufferUsage) *Buffer {
	device.live.Add(1)
	return &Buffer{
		device: device,
		data:   make([]byte, size),
		usage:  usage,
		hint:   hint,
	}
}

func (b *Buffer) Lock(ctx context.Context, offset, length uint32, options metadata.GpuLockOptions) ([]byte, error) {
	core.AssertCoreThread(ctx, "Buffer.Lock")
	if b.destroyed {
		return nil, fmt.Errorf("func Lock: %w", core.ErrBufferDestroyed)
	}
	if b.locked {
		return nil, fmt.Errorf("func Lock: %w", core.ErrBufferLocked)
	}
	end := uint64(offset) + uint64(length)
	if end > uint64(len(b.data)) {
		return nil, fmt.Errorf("func Lock: range [%d, %d) exceeds buffer size %d: %w", offset, end, len(b.data), core.ErrIndexOutOfRange)
	}
	b.locked = true
	b.readOnly = !options.CanWrite()
	b.device.locks.Add(1)

	view := b.data[offset:end:end]
	if b.readOnly {
		return append([]byte(nil), view...), nil
	}
	if options == metadata.GpuLockWriteOnlyDiscard {
		clear(view)
	}
	return view, nil
}

func (b *Buffer) Unlock(ctx context.Context) error {
	core.AssertCoreThread(ctx, "Buffer.Unlock")
	if !b.locked {
		return fmt.Errorf("func Unlock: %w", core.ErrBufferNotLocked)
	}
	b.locked = false
	b.readOnly = false
	return nil
}

func (b *Buffer) Size() uint32 {
	return uint32(len(b.data))
}

func (b *Buffer) IsLocked() bool {
	return b.locked
}

// DeviceUsage returns the device usage flags the buffer was created with.
func (b *Buffer) DeviceUsage() gputypes.BufferUsage {
	return b.usage
}

func (b *Buffer) Usage() metadata.GpuBufferUsage {
	return b.hint
}

func (b *Buffer) Destroy(ctx context.Context) {
	core.AssertCoreThread(ctx, "Buffer.Destroy")
	if b.destroyed {
		return
	}
	if b.locked {
		core.LogWarn("destroying a locked buffer of %d bytes", len(b.data))
	}
	b.destroyed = true
	b.data = nil
	b.device.live.Add(-1)
}

func (b *Buffer) IsDestroyed() bool {
	return b.destroyed
}

type IndexBuffer struct {
	*Buffer
	format     gputypes.IndexFormat
	numIndices uint32
}

func (ib *IndexBuffer) Format() gputypes.IndexFormat {
	return ib.format
}

func (ib *IndexBuffer) IndexSize() uint32 {
	return uint32(metadata.IndexElementSize(ib.format))
}

func (ib *IndexBuffer) NumIndices() uint32 {
	return ib.numIndices
}

type VertexBuffer struct {
	*Buffer
	vertexSize  uint32
	numVertices uint32
}

func (vb *VertexBuffer) VertexSize() uint32 {
	return vb.vertexSize
}

func (vb *VertexBuffer) NumVertices() uint32 {
	return vb.numVertices
}
