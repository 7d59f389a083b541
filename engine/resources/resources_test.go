package resources

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/spaghettifunk/anima-gpu/engine/core"
	"github.com/spaghettifunk/anima-gpu/engine/renderer"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/software"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slices"
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

func TestVertexDeclarationOffsets(t *testing.T) {
	d := NewVertexDeclaration()
	pos := d.AddElement(0, gputypes.VertexFormatFloat32x3, metadata.VertexSemanticPosition, 0)
	uv := d.AddElement(1, gputypes.VertexFormatFloat32x2, metadata.VertexSemanticTexCoord, 0)
	nrm := d.AddElement(0, gputypes.VertexFormatFloat32x3, metadata.VertexSemanticNormal, 0)

	assert.Equal(t, uint32(0), pos.Offset)
	assert.Equal(t, uint32(0), uv.Offset)
	assert.Equal(t, uint32(12), nrm.Offset)
	assert.Equal(t, uint32(24), d.VertexSize(0))
	assert.Equal(t, uint32(8), d.VertexSize(1))
	assert.Equal(t, []uint32{0, 1}, d.Streams())
	assert.Len(t, d.ElementsForStream(0), 2)

	e, ok := d.FindElement(metadata.VertexSemanticTexCoord, 0)
	require.True(t, ok)
	assert.Equal(t, uint32(1), e.Stream)
	_, ok = d.FindElement(metadata.VertexSemanticTexCoord, 1)
	assert.False(t, ok)

	clone := d.Clone()
	clone.AddElement(2, gputypes.VertexFormatFloat32, metadata.VertexSemanticBlendWeights, 0)
	assert.Equal(t, 3, d.NumElements())
	assert.Equal(t, 4, clone.NumElements())
}

func TestMeshDataLayout(t *testing.T) {
	md := NewMeshData(4, gputypes.IndexFormatUint16)
	md.BeginDesc()
	md.AddVertElem(gputypes.VertexFormatFloat32x3, metadata.VertexSemanticPosition, 0, 0)
	md.AddVertElem(gputypes.VertexFormatFloat32x4, metadata.VertexSemanticColor, 0, 2)
	md.AddSubMesh(6, gputypes.PrimitiveTopologyTriangleList)
	md.AddSubMesh(2, gputypes.PrimitiveTopologyLineList)
	require.NoError(t, md.EndDesc())

	assert.Equal(t, metadata.GpuResourceDataTypeMesh, md.TypeID())
	assert.Equal(t, 2, md.NumSubMeshes())
	assert.Equal(t, 8, md.TotalIndices())
	assert.Equal(t, 6, md.IndexBufferOffset(1))
	assert.Equal(t, gputypes.PrimitiveTopologyLineList, md.DrawOp(1))
	assert.Equal(t, 16, md.IndexBufferSize())
	assert.True(t, md.HasStream(0))
	assert.False(t, md.HasStream(1))
	assert.True(t, md.HasStream(2))
	assert.Equal(t, 2, md.MaxStreamIndex())
	assert.Equal(t, 48, md.StreamSize(0))
	assert.Equal(t, 64, md.StreamSize(2))

	require.NoError(t, md.SetIndices16(1, []uint16{7, 9}))
	got, err := md.Indices16(1)
	require.NoError(t, err)
	assert.Equal(t, []uint16{7, 9}, got)
	assert.Equal(t, []byte{7, 0, 9, 0}, md.IndexBytes()[12:])

	_, err = md.Indices32(0)
	assert.ErrorIs(t, err, core.ErrInvalidParameter)
	assert.ErrorIs(t, md.SetIndices16(0, []uint16{1}), core.ErrInvalidParameter)
}

func TestMeshDataDescErrors(t *testing.T) {
	md := NewMeshData(3, gputypes.IndexFormatUint32)
	md.AddSubMesh(3, gputypes.PrimitiveTopologyTriangleList)
	assert.ErrorIs(t, md.EndDesc(), core.ErrInvalidParameter)

	md.BeginDesc()
	md.AddVertElem(gputypes.VertexFormatFloat32x3, metadata.VertexSemanticPosition, 0, 0)
	md.AddVertElem(gputypes.VertexFormatFloat32x3, metadata.VertexSemanticPosition, 0, 1)
	assert.ErrorIs(t, md.EndDesc(), core.ErrInvalidParameter)
}

func TestMeshDataVertexElementData(t *testing.T) {
	md := NewMeshData(2, gputypes.IndexFormatUint32)
	md.BeginDesc()
	md.AddVertElem(gputypes.VertexFormatFloat32, metadata.VertexSemanticBlendWeights, 0, 0)
	md.AddVertElem(gputypes.VertexFormatUint32, metadata.VertexSemanticBlendIndices, 0, 0)
	require.NoError(t, md.EndDesc())

	weights := []byte{1, 1, 1, 1, 2, 2, 2, 2}
	indices := []byte{3, 3, 3, 3, 4, 4, 4, 4}
	require.NoError(t, md.SetVertexElementData(metadata.VertexSemanticBlendWeights, 0, 0, weights))
	require.NoError(t, md.SetVertexElementData(metadata.VertexSemanticBlendIndices, 0, 0, indices))
	assert.Equal(t, []byte{1, 1, 1, 1, 3, 3, 3, 3, 2, 2, 2, 2, 4, 4, 4, 4}, md.StreamData(0))

	back, err := md.VertexElementData(metadata.VertexSemanticBlendIndices, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, indices, back)

	assert.ErrorIs(t, md.SetVertexElementData(metadata.VertexSemanticBlendWeights, 0, 0, weights[:4]), core.ErrInvalidParameter)
	assert.ErrorIs(t, md.SetVertexElementData(metadata.VertexSemanticBlendWeights, 0, 1, weights), core.ErrInvalidParameter)
}

func TestDummyMeshData(t *testing.T) {
	md := NewDummyMeshData(gputypes.IndexFormatUint16)
	assert.Equal(t, 1, md.NumSubMeshes())
	assert.Equal(t, 3, md.NumVertices())
	idx, err := md.Indices16(0)
	require.NoError(t, err)
	assert.Equal(t, []uint16{0, 1, 2}, idx)
	assert.Equal(t, 36, md.StreamSize(0))
}

func writeIndices(ctx context.Context, t *testing.T, buf renderer.IndexBuffer, indices []uint32) {
	t.Helper()
	err := renderer.WithLock(ctx, buf, 0, buf.Size(), metadata.GpuLockWriteOnlyDiscard, func(data []byte) error {
		for i, v := range indices {
			binary.LittleEndian.PutUint16(data[i*2:], uint16(v))
		}
		return nil
	})
	require.NoError(t, err)
}

func readIndices(ctx context.Context, t *testing.T, buf renderer.IndexBuffer) []uint32 {
	t.Helper()
	var out []uint32
	err := renderer.WithLock(ctx, buf, 0, buf.Size(), metadata.GpuLockReadOnly, func(data []byte) error {
		out = decodeIndices(data, 2)
		return nil
	})
	require.NoError(t, err)
	return out
}

func triangles(indices []uint32) [][3]uint32 {
	tris := make([][3]uint32, 0, len(indices)/3)
	for i := 0; i+2 < len(indices); i += 3 {
		tris = append(tris, [3]uint32{indices[i], indices[i+1], indices[i+2]})
	}
	slices.SortFunc(tris, func(a, b [3]uint32) int {
		for k := 0; k < 3; k++ {
			if a[k] != b[k] {
				return int(a[k]) - int(b[k])
			}
		}
		return 0
	})
	return tris
}

func TestIndexDataCloneAndOptimise(t *testing.T) {
	dev := software.New()
	onCoreThread(t, func(ctx context.Context) {
		// Two far apart quads, interleaved so the original order thrashes
		// a small cache.
		indices := []uint32{0, 1, 2, 100, 101, 102, 2, 1, 3, 102, 101, 103}
		buf, err := dev.CreateIndexBuffer(ctx, gputypes.IndexFormatUint16, uint32(len(indices)), metadata.GpuBufferUsageStatic)
		require.NoError(t, err)
		writeIndices(ctx, t, buf, indices)

		id := &IndexData{IndexBuffer: buf, IndexCount: uint32(len(indices))}
		shallow, err := id.Clone(ctx, false, dev)
		require.NoError(t, err)
		assert.Same(t, buf, shallow.IndexBuffer)

		deep, err := id.Clone(ctx, true, dev)
		require.NoError(t, err)
		assert.NotSame(t, buf, deep.IndexBuffer)
		assert.Equal(t, indices, readIndices(ctx, t, deep.IndexBuffer))

		require.NoError(t, deep.OptimiseVertexCacheTriList(ctx))
		optimised := readIndices(ctx, t, deep.IndexBuffer)
		assert.Equal(t, triangles(indices), triangles(optimised))
		// Triangles sharing an edge end up next to each other.
		assert.Equal(t, []uint32{0, 1, 2, 2, 1, 3}, optimised[:6])
		// The source is untouched.
		assert.Equal(t, indices, readIndices(ctx, t, buf))

		deep.IndexCount = 4
		assert.ErrorIs(t, deep.OptimiseVertexCacheTriList(ctx), core.ErrInvalidTriangleList)

		deep.Destroy(ctx)
		assert.Nil(t, deep.IndexBuffer)
		assert.Equal(t, int64(1), dev.LiveBuffers())
	})
}

func TestVertexDataClone(t *testing.T) {
	dev := software.New()
	onCoreThread(t, func(ctx context.Context) {
		vd := NewVertexData()
		vd.VertexCount = 4
		vd.Declaration.AddElement(0, gputypes.VertexFormatFloat32x3, metadata.VertexSemanticPosition, 0)
		vd.Declaration.AddElement(3, gputypes.VertexFormatFloat32x2, metadata.VertexSemanticTexCoord, 0)
		for _, s := range []uint32{3, 0} {
			vb, err := dev.CreateVertexBuffer(ctx, vd.Declaration.VertexSize(s), 4, metadata.GpuBufferUsageStatic)
			require.NoError(t, err)
			vd.SetBuffer(s, vb)
		}
		assert.Equal(t, []uint32{0, 3}, vd.Streams())
		assert.Equal(t, 3, vd.MaxStreamIndex())
		assert.Equal(t, uint32(12), vd.Buffers()[0].VertexSize())

		shallow, err := vd.Clone(ctx, false, dev)
		require.NoError(t, err)
		b0, _ := vd.Buffer(0)
		s0, _ := shallow.Buffer(0)
		assert.Same(t, b0, s0)

		deep, err := vd.Clone(ctx, true, dev)
		require.NoError(t, err)
		d0, ok := deep.Buffer(0)
		require.True(t, ok)
		assert.NotSame(t, b0, d0)
		assert.Equal(t, b0.Size(), d0.Size())
		assert.Equal(t, int64(4), dev.LiveBuffers())

		deep.Destroy(ctx)
		assert.Equal(t, 0, deep.NumBuffers())
		assert.Equal(t, int64(2), dev.LiveBuffers())

		vd.UnsetBuffer(3)
		assert.Equal(t, 0, vd.MaxStreamIndex())
		assert.Equal(t, -1, NewVertexData().MaxStreamIndex())
	})
}
