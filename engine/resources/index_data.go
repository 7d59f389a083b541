package resources

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/spaghettifunk/anima-gpu/engine/core"
	"github.com/spaghettifunk/anima-gpu/engine/renderer"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/metadata"
)

const vertexCacheSize = 32

/**
 * @brief References the range of an index buffer used by an operation. The
 * buffer is shared, IndexData does not own it.
 */
type IndexData struct {
	IndexBuffer renderer.IndexBuffer
	/** @brief First index of the range. */
	IndexStart uint32
	/** @brief Number of indices in the range. */
	IndexCount uint32
}

/**
 * @brief Clones the index data. With copyData a new buffer is created on
 * device and the indices are copied into it, otherwise the buffer is shared.
 * Must be called on the core thread.
 */
func (d *IndexData) Clone(ctx context.Context, copyData bool, device renderer.Device) (*IndexData, error) {
	clone := &IndexData{
		IndexBuffer: d.IndexBuffer,
		IndexStart:  d.IndexStart,
		IndexCount:  d.IndexCount,
	}
	if !copyData || d.IndexBuffer == nil {
		return clone, nil
	}
	core.AssertCoreThread(ctx, "IndexData.Clone")
	src := d.IndexBuffer
	buf, err := device.CreateIndexBuffer(ctx, src.Format(), src.NumIndices(), src.Usage())
	if err != nil {
		return nil, err
	}
	if err := renderer.CopyBuffer(ctx, src, buf); err != nil {
		buf.Destroy(ctx)
		return nil, err
	}
	clone.IndexBuffer = buf
	return clone, nil
}

/**
 * @brief Re-orders the triangles of the range to reuse recently transformed
 * vertices as much as possible. Only valid for triangle lists. The set of
 * triangles and their winding is preserved.
 */
func (d *IndexData) OptimiseVertexCacheTriList(ctx context.Context) error {
	core.AssertCoreThread(ctx, "IndexData.OptimiseVertexCacheTriList")
	if d.IndexBuffer == nil || d.IndexCount == 0 {
		return nil
	}
	if d.IndexCount%3 != 0 {
		return fmt.Errorf("func OptimiseVertexCacheTriList: %d indices: %w", d.IndexCount, core.ErrInvalidTriangleList)
	}
	width := d.IndexBuffer.IndexSize()
	offset := d.IndexStart * width
	return renderer.WithLock(ctx, d.IndexBuffer, offset, d.IndexCount*width, metadata.GpuLockReadWrite, func(data []byte) error {
		indices := decodeIndices(data, width)
		encodeIndices(data, width, optimiseTriList(indices))
		return nil
	})
}

// optimiseTriList greedily emits the pending triangle with the most vertices
// in a simulated FIFO post-transform cache.
func optimiseTriList(indices []uint32) []uint32 {
	numTris := len(indices) / 3
	adjacency := make(map[uint32][]int)
	for t := 0; t < numTris; t++ {
		for _, v := range indices[t*3 : t*3+3] {
			adjacency[v] = append(adjacency[v], t)
		}
	}

	emitted := make([]bool, numTris)
	cache := make([]uint32, 0, vertexCacheSize+3)
	inCache := func(v uint32) bool {
		for _, c := range cache {
			if c == v {
				return true
			}
		}
		return false
	}

	out := make([]uint32, 0, len(indices))
	next := 0
	for len(out) < len(indices) {
		best, bestScore := -1, 0
		for _, v := range cache {
			for _, t := range adjacency[v] {
				if emitted[t] {
					continue
				}
				score := 0
				for _, tv := range indices[t*3 : t*3+3] {
					if inCache(tv) {
						score++
					}
				}
				if score > bestScore || (score == bestScore && t < best) {
					best, bestScore = t, score
				}
			}
		}
		if best < 0 {
			for emitted[next] {
				next++
			}
			best = next
		}

		emitted[best] = true
		tri := indices[best*3 : best*3+3]
		out = append(out, tri...)
		for _, v := range tri {
			if !inCache(v) {
				cache = append(cache, v)
			}
		}
		if len(cache) > vertexCacheSize {
			cache = cache[len(cache)-vertexCacheSize:]
		}
	}
	return out
}

func decodeIndices(data []byte, width uint32) []uint32 {
	n := uint32(len(data)) / width
	out := make([]uint32, n)
	for i := uint32(0); i < n; i++ {
		if width == 2 {
			out[i] = uint32(binary.LittleEndian.Uint16(data[i*2:]))
		} else {
			out[i] = binary.LittleEndian.Uint32(data[i*4:])
		}
	}
	return out
}

func encodeIndices(data []byte, width uint32, indices []uint32) {
	for i, v := range indices {
		if width == 2 {
			binary.LittleEndian.PutUint16(data[i*2:], uint16(v))
		} else {
			binary.LittleEndian.PutUint32(data[i*4:], v)
		}
	}
}

func (d *IndexData) Destroy(ctx context.Context) {
	if d.IndexBuffer != nil {
		d.IndexBuffer.Destroy(ctx)
		d.IndexBuffer = nil
	}
}
