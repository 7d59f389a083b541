package resources

import (
	"context"

	"github.com/spaghettifunk/anima-gpu/engine/core"
	"github.com/spaghettifunk/anima-gpu/engine/renderer"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

/**
 * @brief References the vertex buffers, one per stream, and the declaration
 * describing their layout. The buffers are shared, VertexData does not own
 * them unless Destroy is called.
 */
type VertexData struct {
	Declaration *VertexDeclaration
	VertexStart uint32
	VertexCount uint32

	buffers map[uint32]renderer.VertexBuffer
}

func NewVertexData() *VertexData {
	return &VertexData{
		Declaration: NewVertexDeclaration(),
		buffers:     make(map[uint32]renderer.VertexBuffer),
	}
}

func (d *VertexData) SetBuffer(stream uint32, buffer renderer.VertexBuffer) {
	d.buffers[stream] = buffer
}

func (d *VertexData) Buffer(stream uint32) (renderer.VertexBuffer, bool) {
	b, ok := d.buffers[stream]
	return b, ok
}

func (d *VertexData) UnsetBuffer(stream uint32) {
	delete(d.buffers, stream)
}

// Streams returns the bound stream indices in ascending order.
func (d *VertexData) Streams() []uint32 {
	streams := maps.Keys(d.buffers)
	slices.Sort(streams)
	return streams
}

// Buffers returns the bound buffers ordered by stream index.
func (d *VertexData) Buffers() []renderer.VertexBuffer {
	streams := d.Streams()
	out := make([]renderer.VertexBuffer, len(streams))
	for i, s := range streams {
		out[i] = d.buffers[s]
	}
	return out
}

func (d *VertexData) NumBuffers() int {
	return len(d.buffers)
}

// MaxStreamIndex returns the highest bound stream, or -1 without buffers.
func (d *VertexData) MaxStreamIndex() int {
	streams := d.Streams()
	if len(streams) == 0 {
		return -1
	}
	return int(streams[len(streams)-1])
}

/**
 * @brief Clones the vertex data. With copyData every buffer is duplicated on
 * device, otherwise the buffers are shared. The declaration is always copied.
 */
func (d *VertexData) Clone(ctx context.Context, copyData bool, device renderer.Device) (*VertexData, error) {
	clone := NewVertexData()
	clone.Declaration = d.Declaration.Clone()
	clone.VertexStart = d.VertexStart
	clone.VertexCount = d.VertexCount
	if !copyData {
		maps.Copy(clone.buffers, d.buffers)
		return clone, nil
	}

	core.AssertCoreThread(ctx, "VertexData.Clone")
	for _, stream := range d.Streams() {
		src := d.buffers[stream]
		buf, err := device.CreateVertexBuffer(ctx, src.VertexSize(), src.NumVertices(), src.Usage())
		if err == nil {
			err = renderer.CopyBuffer(ctx, src, buf)
			if err != nil {
				buf.Destroy(ctx)
			}
		}
		if err != nil {
			clone.Destroy(ctx)
			return nil, err
		}
		clone.buffers[stream] = buf
	}
	return clone, nil
}

// Destroy destroys every bound buffer and unbinds it.
func (d *VertexData) Destroy(ctx context.Context) {
	for stream, b := range d.buffers {
		b.Destroy(ctx)
		delete(d.buffers, stream)
	}
}
