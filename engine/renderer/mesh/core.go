package mesh

import (
	"context"
	"encoding/binary"
	"fmt"
	stdmath "math"

	"github.com/gogpu/gputypes"
	"github.com/spaghettifunk/anima-gpu/engine/core"
	"github.com/spaghettifunk/anima-gpu/engine/math"
	"github.com/spaghettifunk/anima-gpu/engine/renderer"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-gpu/engine/resources"
)

/** @brief Everything needed to draw one sub-mesh. */
type RenderOpMesh struct {
	/** @brief Restricted to the index range of the sub-mesh. */
	IndexData  *resources.IndexData
	VertexData *resources.VertexData
	DrawOp     gputypes.PrimitiveTopology
	UseIndexes bool
}

/**
 * @brief The device side of a mesh. Owns the index and vertex buffers and
 * must only be used on the core thread.
 */
type MeshCore struct {
	renderer    *renderer.Renderer
	usage       metadata.GpuBufferUsage
	initialData *resources.MeshData

	indexData     *resources.IndexData
	vertexData    *resources.VertexData
	subMeshes     []metadata.SubMesh
	bounds        math.Extents3D
	subMeshBounds []math.Extents3D
	destroyed     bool
}

func NewMeshCore(r *renderer.Renderer, initialData *resources.MeshData, usage metadata.GpuBufferUsage) *MeshCore {
	return &MeshCore{
		renderer:    r,
		usage:       usage,
		initialData: initialData,
		bounds:      math.NewExtents3DEmpty(),
	}
}

// Initialize uploads the initial data, a placeholder triangle when the
// mesh was created without data.
func (m *MeshCore) Initialize(ctx context.Context) error {
	core.AssertCoreThread(ctx, "MeshCore.Initialize")
	data := m.initialData
	if data == nil {
		data = resources.NewDummyMeshData(gputypes.IndexFormatUint32)
	}
	m.initialData = nil
	return m.WriteSubresource(ctx, 0, data)
}

func (m *MeshCore) checkAlive(op string) error {
	if !m.destroyed {
		return nil
	}
	err := fmt.Errorf("func %s: mesh was destroyed: %w", op, core.ErrCoreDestroyed)
	core.LogError("%s", err)
	return err
}

func meshDataOf(op string, index int, data metadata.GpuResourceData) (*resources.MeshData, error) {
	if index != 0 {
		return nil, fmt.Errorf("func %s: sub-resource %d, a mesh has a single sub-resource: %w", op, index, core.ErrIndexOutOfRange)
	}
	md, ok := data.(*resources.MeshData)
	if !ok || md == nil || md.TypeID() != metadata.GpuResourceDataTypeMesh {
		return nil, fmt.Errorf("func %s: only MeshData is supported: %w", op, core.ErrInvalidResourceType)
	}
	return md, nil
}

/**
 * @brief Replaces the whole contents of the mesh with data. New buffers are
 * created and filled before the old ones are released, so a failure leaves
 * the mesh untouched.
 */
func (m *MeshCore) WriteSubresource(ctx context.Context, index int, data metadata.GpuResourceData) error {
	core.AssertCoreThread(ctx, "MeshCore.WriteSubresource")
	if err := m.checkAlive("WriteSubresource"); err != nil {
		return err
	}
	md, err := meshDataOf("WriteSubresource", index, data)
	if err != nil {
		core.LogError("%s", err)
		return err
	}
	if md.IndexElementSize() == 0 || (md.TotalIndices() > 0 && md.IndexBufferSize() == 0) {
		return fmt.Errorf("func WriteSubresource: mesh data has no storage, call EndDesc first: %w", core.ErrInvalidParameter)
	}

	var subMeshes []metadata.SubMesh
	for i := 0; i < md.NumSubMeshes(); i++ {
		n := md.NumIndices(i)
		if n == 0 {
			continue
		}
		subMeshes = append(subMeshes, metadata.SubMesh{
			IndexOffset: md.IndexBufferOffset(i),
			IndexCount:  n,
			DrawOp:      md.DrawOp(i),
		})
	}

	device := m.renderer.Device()
	indexBuffer, err := device.CreateIndexBuffer(ctx, md.IndexFormat(), uint32(md.TotalIndices()), m.usage)
	if err != nil {
		return err
	}
	indexData := &resources.IndexData{IndexBuffer: indexBuffer, IndexCount: uint32(md.TotalIndices())}
	vertexData := resources.NewVertexData()
	vertexData.Declaration = md.CreateDeclaration()
	vertexData.VertexCount = uint32(md.NumVertices())

	fail := func(err error) error {
		indexData.Destroy(ctx)
		vertexData.Destroy(ctx)
		core.LogError("%s", err)
		return err
	}

	if err := upload(ctx, indexBuffer, md.IndexBytes()); err != nil {
		return fail(err)
	}
	for _, stream := range vertexData.Declaration.Streams() {
		if md.StreamSize(stream) == 0 {
			continue
		}
		vb, err := device.CreateVertexBuffer(ctx, vertexData.Declaration.VertexSize(stream), uint32(md.NumVertices()), m.usage)
		if err != nil {
			return fail(err)
		}
		vertexData.SetBuffer(stream, vb)
		if err := upload(ctx, vb, md.StreamData(stream)); err != nil {
			return fail(err)
		}
	}

	if m.indexData != nil {
		m.indexData.Destroy(ctx)
	}
	if m.vertexData != nil {
		m.vertexData.Destroy(ctx)
	}
	m.indexData = indexData
	m.vertexData = vertexData
	m.subMeshes = subMeshes
	m.computeBounds(md)
	return nil
}

// upload copies src into buf under a write-discard lock.
func upload(ctx context.Context, buf renderer.Buffer, src []byte) error {
	if len(src) == 0 {
		return nil
	}
	return renderer.WithLock(ctx, buf, 0, uint32(len(src)), metadata.GpuLockWriteOnlyDiscard, func(dst []byte) error {
		copy(dst, src)
		return nil
	})
}

func (m *MeshCore) computeBounds(md *resources.MeshData) {
	m.bounds = math.NewExtents3DEmpty()
	m.subMeshBounds = make([]math.Extents3D, len(m.subMeshes))
	for i := range m.subMeshBounds {
		m.subMeshBounds[i] = math.NewExtents3DEmpty()
	}

	pos, ok := md.Declaration().FindElement(metadata.VertexSemanticPosition, 0)
	if !ok || pos.Format != gputypes.VertexFormatFloat32x3 {
		return
	}
	raw, err := md.VertexElementData(metadata.VertexSemanticPosition, 0, pos.Stream)
	if err != nil {
		return
	}
	positions := make([]math.Vec3, md.NumVertices())
	for v := range positions {
		positions[v] = math.NewVec3(
			stdmath.Float32frombits(binary.LittleEndian.Uint32(raw[v*12:])),
			stdmath.Float32frombits(binary.LittleEndian.Uint32(raw[v*12+4:])),
			stdmath.Float32frombits(binary.LittleEndian.Uint32(raw[v*12+8:])),
		)
		m.bounds = m.bounds.Expand(positions[v])
	}

	width := md.IndexElementSize()
	for i, sm := range m.subMeshes {
		raw := md.IndexBytes()[sm.IndexOffset*width : (sm.IndexOffset+sm.IndexCount)*width]
		for k := 0; k < sm.IndexCount; k++ {
			var idx int
			if width == 2 {
				idx = int(binary.LittleEndian.Uint16(raw[k*2:]))
			} else {
				idx = int(binary.LittleEndian.Uint32(raw[k*4:]))
			}
			if idx < len(positions) {
				m.subMeshBounds[i] = m.subMeshBounds[i].Expand(positions[idx])
			}
		}
	}
}

/**
 * @brief Copies the mesh contents into data, which must be shaped like the
 * result of AllocateSubresourceBuffer.
 */
func (m *MeshCore) ReadSubresource(ctx context.Context, index int, data metadata.GpuResourceData) error {
	core.AssertCoreThread(ctx, "MeshCore.ReadSubresource")
	if err := m.checkAlive("ReadSubresource"); err != nil {
		return err
	}
	md, err := meshDataOf("ReadSubresource", index, data)
	if err != nil {
		core.LogError("%s", err)
		return err
	}
	if err := m.checkReadTarget(md); err != nil {
		core.LogError("%s", err)
		return err
	}

	if ib := m.indexData.IndexBuffer; ib != nil && ib.Size() > 0 {
		width := int(ib.IndexSize())
		err := renderer.WithLock(ctx, ib, 0, ib.Size(), metadata.GpuLockReadOnly, func(src []byte) error {
			for i, sm := range m.subMeshes {
				start := sm.IndexOffset * width
				copy(md.SubMeshIndexBytes(i), src[start:start+sm.IndexCount*width])
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	for _, stream := range m.vertexData.Streams() {
		vb, _ := m.vertexData.Buffer(stream)
		size := vb.VertexSize() * vb.NumVertices()
		err := renderer.WithLock(ctx, vb, 0, size, metadata.GpuLockReadOnly, func(src []byte) error {
			copy(md.StreamData(stream), src)
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (m *MeshCore) checkReadTarget(md *resources.MeshData) error {
	if m.indexData == nil || m.vertexData == nil {
		return fmt.Errorf("func ReadSubresource: mesh not initialized: %w", core.ErrCoreNotInitialized)
	}
	if md.NumSubMeshes() != len(m.subMeshes) {
		return fmt.Errorf("func ReadSubresource: %d sub-meshes, mesh has %d: %w", md.NumSubMeshes(), len(m.subMeshes), core.ErrInvalidParameter)
	}
	if ib := m.indexData.IndexBuffer; ib != nil && md.IndexElementSize() != int(ib.IndexSize()) {
		return fmt.Errorf("func ReadSubresource: index size %d, mesh uses %d: %w", md.IndexElementSize(), ib.IndexSize(), core.ErrInvalidParameter)
	}
	for i, sm := range m.subMeshes {
		if md.NumIndices(i) != sm.IndexCount {
			return fmt.Errorf("func ReadSubresource: sub-mesh %d has %d indices, mesh has %d: %w", i, md.NumIndices(i), sm.IndexCount, core.ErrInvalidParameter)
		}
	}
	for _, stream := range m.vertexData.Streams() {
		vb, _ := m.vertexData.Buffer(stream)
		if want := int(vb.VertexSize() * vb.NumVertices()); md.StreamSize(stream) != want {
			return fmt.Errorf("func ReadSubresource: stream %d holds %d bytes, mesh has %d: %w", stream, md.StreamSize(stream), want, core.ErrInvalidParameter)
		}
	}
	return nil
}

// AllocateSubresourceBuffer returns empty mesh data shaped like the current
// contents of the mesh.
func (m *MeshCore) AllocateSubresourceBuffer(ctx context.Context, index int) (*resources.MeshData, error) {
	core.AssertCoreThread(ctx, "MeshCore.AllocateSubresourceBuffer")
	if err := m.checkAlive("AllocateSubresourceBuffer"); err != nil {
		return nil, err
	}
	if index != 0 {
		return nil, fmt.Errorf("func AllocateSubresourceBuffer: sub-resource %d: %w", index, core.ErrIndexOutOfRange)
	}
	if m.indexData == nil || m.vertexData == nil {
		return nil, fmt.Errorf("func AllocateSubresourceBuffer: %w", core.ErrCoreNotInitialized)
	}

	format := gputypes.IndexFormatUint32
	if ib := m.indexData.IndexBuffer; ib != nil {
		format = ib.Format()
	}
	md := resources.NewMeshData(int(m.vertexData.VertexCount), format)
	md.BeginDesc()
	for _, stream := range m.vertexData.Streams() {
		for _, e := range m.vertexData.Declaration.ElementsForStream(stream) {
			md.AddVertElem(e.Format, e.Semantic, e.SemanticIndex, stream)
		}
	}
	for _, sm := range m.subMeshes {
		md.AddSubMesh(sm.IndexCount, sm.DrawOp)
	}
	if err := md.EndDesc(); err != nil {
		return nil, err
	}
	return md, nil
}

// SubMeshData returns the draw bundle of one sub-mesh.
func (m *MeshCore) SubMeshData(ctx context.Context, index int) (RenderOpMesh, error) {
	core.AssertCoreThread(ctx, "MeshCore.SubMeshData")
	if err := m.checkAlive("SubMeshData"); err != nil {
		return RenderOpMesh{}, err
	}
	if index < 0 || index >= len(m.subMeshes) {
		err := fmt.Errorf("func SubMeshData: sub-mesh %d out of range [0, %d): %w", index, len(m.subMeshes), core.ErrIndexOutOfRange)
		core.LogError("%s", err)
		return RenderOpMesh{}, err
	}
	sm := m.subMeshes[index]
	return RenderOpMesh{
		IndexData: &resources.IndexData{
			IndexBuffer: m.indexData.IndexBuffer,
			IndexStart:  uint32(sm.IndexOffset),
			IndexCount:  uint32(sm.IndexCount),
		},
		VertexData: m.vertexData,
		DrawOp:     sm.DrawOp,
		UseIndexes: true,
	}, nil
}

func (m *MeshCore) NumSubMeshes() int {
	return len(m.subMeshes)
}

func (m *MeshCore) SubMesh(index int) (metadata.SubMesh, error) {
	if index < 0 || index >= len(m.subMeshes) {
		return metadata.SubMesh{}, fmt.Errorf("func SubMesh: sub-mesh %d: %w", index, core.ErrIndexOutOfRange)
	}
	return m.subMeshes[index], nil
}

// Bounds returns the extents of every vertex, empty when the mesh has no
// Float32x3 position element.
func (m *MeshCore) Bounds() math.Extents3D {
	return m.bounds
}

func (m *MeshCore) SubMeshBounds(index int) (math.Extents3D, error) {
	if index < 0 || index >= len(m.subMeshBounds) {
		return math.Extents3D{}, fmt.Errorf("func SubMeshBounds: sub-mesh %d: %w", index, core.ErrIndexOutOfRange)
	}
	return m.subMeshBounds[index], nil
}

func (m *MeshCore) IndexData() *resources.IndexData {
	return m.indexData
}

func (m *MeshCore) VertexData() *resources.VertexData {
	return m.vertexData
}

func (m *MeshCore) Destroy(ctx context.Context) {
	core.AssertCoreThread(ctx, "MeshCore.Destroy")
	if m.indexData != nil {
		m.indexData.Destroy(ctx)
		m.indexData = nil
	}
	if m.vertexData != nil {
		m.vertexData.Destroy(ctx)
		m.vertexData = nil
	}
	m.subMeshes = nil
	m.destroyed = true
}

func (m *MeshCore) IsDestroyed() bool {
	return m.destroyed
}
