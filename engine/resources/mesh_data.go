package resources

import (
	"encoding/binary"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/spaghettifunk/anima-gpu/engine/core"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/metadata"
)

type subMeshDesc struct {
	numIndices int
	drawOp     gputypes.PrimitiveTopology
}

/**
 * @brief API agnostic container of mesh vertices and indices, used as the
 * source of mesh writes and the destination of mesh reads.
 *
 * The layout is described between BeginDesc and EndDesc; EndDesc allocates
 * one contiguous block for all indices and one block per vertex stream.
 */
type MeshData struct {
	numVertices int
	indexFormat gputypes.IndexFormat
	declaration *VertexDeclaration
	subMeshes   []subMeshDesc

	indexData []byte
	streams   map[uint32][]byte

	describing bool
	descErr    error
}

func NewMeshData(numVertices int, indexFormat gputypes.IndexFormat) *MeshData {
	return &MeshData{
		numVertices: numVertices,
		indexFormat: indexFormat,
		declaration: NewVertexDeclaration(),
		streams:     make(map[uint32][]byte),
	}
}

/**
 * @brief A single degenerate triangle, used as the initial contents of every
 * mesh until real data is written.
 */
func NewDummyMeshData(indexFormat gputypes.IndexFormat) *MeshData {
	md := NewMeshData(3, indexFormat)
	md.BeginDesc()
	md.AddVertElem(gputypes.VertexFormatFloat32x3, metadata.VertexSemanticPosition, 0, 0)
	md.AddSubMesh(3, gputypes.PrimitiveTopologyTriangleList)
	if err := md.EndDesc(); err != nil {
		core.LogFatal("dummy mesh data: %s", err)
	}
	if indexFormat == gputypes.IndexFormatUint16 {
		_ = md.SetIndices16(0, []uint16{0, 1, 2})
	} else {
		_ = md.SetIndices32(0, []uint32{0, 1, 2})
	}
	return md
}

func (md *MeshData) TypeID() metadata.GpuResourceDataType {
	return metadata.GpuResourceDataTypeMesh
}

// BeginDesc starts a new layout description, dropping any previous layout
// and data.
func (md *MeshData) BeginDesc() {
	md.declaration = NewVertexDeclaration()
	md.subMeshes = nil
	md.indexData = nil
	md.streams = make(map[uint32][]byte)
	md.describing = true
	md.descErr = nil
}

func (md *MeshData) AddVertElem(format gputypes.VertexFormat, semantic metadata.VertexElementSemantic, semanticIdx, stream uint32) {
	if !md.checkDescribing("AddVertElem") {
		return
	}
	if metadata.VertexFormatSize(format) == 0 {
		md.setDescErr(fmt.Errorf("func AddVertElem: unsupported vertex format %v: %w", format, core.ErrInvalidParameter))
		return
	}
	if _, exists := md.declaration.FindElement(semantic, semanticIdx); exists {
		md.setDescErr(fmt.Errorf("func AddVertElem: duplicate element %s/%d: %w", semantic, semanticIdx, core.ErrInvalidParameter))
		return
	}
	md.declaration.AddElement(stream, format, semantic, semanticIdx)
}

func (md *MeshData) AddSubMesh(numIndices int, drawOp gputypes.PrimitiveTopology) {
	if !md.checkDescribing("AddSubMesh") {
		return
	}
	if numIndices < 0 {
		md.setDescErr(fmt.Errorf("func AddSubMesh: negative index count %d: %w", numIndices, core.ErrInvalidParameter))
		return
	}
	md.subMeshes = append(md.subMeshes, subMeshDesc{numIndices: numIndices, drawOp: drawOp})
}

// EndDesc allocates the index and vertex storage. It returns the first error
// recorded while describing the layout.
func (md *MeshData) EndDesc() error {
	if !md.describing {
		return fmt.Errorf("func EndDesc: called without BeginDesc: %w", core.ErrInvalidParameter)
	}
	md.describing = false
	if md.descErr != nil {
		return md.descErr
	}
	if md.IndexElementSize() == 0 {
		return fmt.Errorf("func EndDesc: unsupported index format %v: %w", md.indexFormat, core.ErrInvalidParameter)
	}
	md.indexData = make([]byte, md.TotalIndices()*md.IndexElementSize())
	for _, stream := range md.declaration.Streams() {
		md.streams[stream] = make([]byte, md.numVertices*int(md.declaration.VertexSize(stream)))
	}
	return nil
}

func (md *MeshData) checkDescribing(op string) bool {
	if md.describing {
		return true
	}
	md.setDescErr(fmt.Errorf("func %s: called outside BeginDesc/EndDesc: %w", op, core.ErrInvalidParameter))
	return false
}

func (md *MeshData) setDescErr(err error) {
	core.LogError("%s", err)
	if md.descErr == nil {
		md.descErr = err
	}
}

func (md *MeshData) NumSubMeshes() int {
	return len(md.subMeshes)
}

func (md *MeshData) NumIndices(subMesh int) int {
	return md.subMeshes[subMesh].numIndices
}

func (md *MeshData) DrawOp(subMesh int) gputypes.PrimitiveTopology {
	return md.subMeshes[subMesh].drawOp
}

func (md *MeshData) TotalIndices() int {
	total := 0
	for _, sm := range md.subMeshes {
		total += sm.numIndices
	}
	return total
}

// IndexBufferOffset returns the position, in indices, of the first index
// of subMesh.
func (md *MeshData) IndexBufferOffset(subMesh int) int {
	offset := 0
	for i := 0; i < subMesh; i++ {
		offset += md.subMeshes[i].numIndices
	}
	return offset
}

func (md *MeshData) IndexFormat() gputypes.IndexFormat {
	return md.indexFormat
}

func (md *MeshData) IndexElementSize() int {
	return metadata.IndexElementSize(md.indexFormat)
}

// IndexBytes returns the raw index storage of all sub-meshes.
func (md *MeshData) IndexBytes() []byte {
	return md.indexData
}

func (md *MeshData) IndexBufferSize() int {
	return len(md.indexData)
}

// SubMeshIndexBytes returns the raw index storage of one sub-mesh.
func (md *MeshData) SubMeshIndexBytes(subMesh int) []byte {
	size := md.IndexElementSize()
	start := md.IndexBufferOffset(subMesh) * size
	end := start + md.NumIndices(subMesh)*size
	return md.indexData[start:end:end]
}

func (md *MeshData) Indices16(subMesh int) ([]uint16, error) {
	if md.indexFormat != gputypes.IndexFormatUint16 {
		return nil, fmt.Errorf("func Indices16: mesh data uses 32 bit indices: %w", core.ErrInvalidParameter)
	}
	raw := md.SubMeshIndexBytes(subMesh)
	out := make([]uint16, len(raw)/2)
	for i := range out {
		out[i] = binary.LittleEndian.Uint16(raw[i*2:])
	}
	return out, nil
}

func (md *MeshData) Indices32(subMesh int) ([]uint32, error) {
	if md.indexFormat != gputypes.IndexFormatUint32 {
		return nil, fmt.Errorf("func Indices32: mesh data uses 16 bit indices: %w", core.ErrInvalidParameter)
	}
	raw := md.SubMeshIndexBytes(subMesh)
	out := make([]uint32, len(raw)/4)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(raw[i*4:])
	}
	return out, nil
}

func (md *MeshData) SetIndices16(subMesh int, indices []uint16) error {
	if md.indexFormat != gputypes.IndexFormatUint16 {
		return fmt.Errorf("func SetIndices16: mesh data uses 32 bit indices: %w", core.ErrInvalidParameter)
	}
	raw := md.SubMeshIndexBytes(subMesh)
	if len(indices)*2 != len(raw) {
		return fmt.Errorf("func SetIndices16: sub-mesh %d holds %d indices, got %d: %w", subMesh, len(raw)/2, len(indices), core.ErrInvalidParameter)
	}
	for i, v := range indices {
		binary.LittleEndian.PutUint16(raw[i*2:], v)
	}
	return nil
}

func (md *MeshData) SetIndices32(subMesh int, indices []uint32) error {
	if md.indexFormat != gputypes.IndexFormatUint32 {
		return fmt.Errorf("func SetIndices32: mesh data uses 16 bit indices: %w", core.ErrInvalidParameter)
	}
	raw := md.SubMeshIndexBytes(subMesh)
	if len(indices)*4 != len(raw) {
		return fmt.Errorf("func SetIndices32: sub-mesh %d holds %d indices, got %d: %w", subMesh, len(raw)/4, len(indices), core.ErrInvalidParameter)
	}
	for i, v := range indices {
		binary.LittleEndian.PutUint32(raw[i*4:], v)
	}
	return nil
}

func (md *MeshData) NumVertices() int {
	return md.numVertices
}

func (md *MeshData) HasStream(stream uint32) bool {
	_, ok := md.streams[stream]
	return ok
}

// MaxStreamIndex returns the highest populated stream, or -1 when no vertex
// elements were declared.
func (md *MeshData) MaxStreamIndex() int {
	streams := md.declaration.Streams()
	if len(streams) == 0 {
		return -1
	}
	return int(streams[len(streams)-1])
}

// StreamData returns the interleaved vertex bytes of stream, nil when the
// stream is not populated.
func (md *MeshData) StreamData(stream uint32) []byte {
	return md.streams[stream]
}

func (md *MeshData) StreamSize(stream uint32) int {
	return len(md.streams[stream])
}

// Declaration returns the layout of the vertices. It must not be modified.
func (md *MeshData) Declaration() *VertexDeclaration {
	return md.declaration
}

// CreateDeclaration returns a copy of the vertex layout.
func (md *MeshData) CreateDeclaration() *VertexDeclaration {
	return md.declaration.Clone()
}

/**
 * @brief Writes data, tightly packed per vertex, into the interleaved storage
 * of one element.
 */
func (md *MeshData) SetVertexElementData(semantic metadata.VertexElementSemantic, semanticIdx, stream uint32, data []byte) error {
	e, vertexSize, err := md.element(semantic, semanticIdx, stream)
	if err != nil {
		return err
	}
	size := int(e.Size())
	if len(data) != size*md.numVertices {
		return fmt.Errorf("func SetVertexElementData: expected %d bytes, got %d: %w", size*md.numVertices, len(data), core.ErrInvalidParameter)
	}
	dst := md.streams[stream]
	for v := 0; v < md.numVertices; v++ {
		at := v*vertexSize + int(e.Offset)
		copy(dst[at:at+size], data[v*size:(v+1)*size])
	}
	return nil
}

// VertexElementData returns the bytes of one element, tightly packed per
// vertex.
func (md *MeshData) VertexElementData(semantic metadata.VertexElementSemantic, semanticIdx, stream uint32) ([]byte, error) {
	e, vertexSize, err := md.element(semantic, semanticIdx, stream)
	if err != nil {
		return nil, err
	}
	size := int(e.Size())
	src := md.streams[stream]
	out := make([]byte, size*md.numVertices)
	for v := 0; v < md.numVertices; v++ {
		at := v*vertexSize + int(e.Offset)
		copy(out[v*size:(v+1)*size], src[at:at+size])
	}
	return out, nil
}

func (md *MeshData) element(semantic metadata.VertexElementSemantic, semanticIdx, stream uint32) (VertexElement, int, error) {
	e, ok := md.declaration.FindElement(semantic, semanticIdx)
	if !ok || e.Stream != stream {
		return VertexElement{}, 0, fmt.Errorf("no element %s/%d in stream %d: %w", semantic, semanticIdx, stream, core.ErrInvalidParameter)
	}
	if !md.HasStream(stream) {
		return VertexElement{}, 0, fmt.Errorf("stream %d not allocated, call EndDesc first: %w", stream, core.ErrInvalidParameter)
	}
	return e, int(md.declaration.VertexSize(stream)), nil
}
