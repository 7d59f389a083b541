package resources

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/gogpu/gputypes"
	"github.com/spaghettifunk/anima-gpu/engine/core"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/metadata"
)

/*
Mesh files are little endian:

	magic "AMSH", header, elements, sub-meshes, index bytes, then the bytes
	of every used vertex stream in ascending stream order.
*/
const (
	meshFileMagic   = "AMSH"
	meshFileVersion = 1

	// Upper bounds for the header counts.
	meshFileMaxCount    = 1 << 24
	meshFileMaxElements = 64
	// Index and vertex bytes together, checked before anything is allocated.
	meshFileMaxBytes = 1 << 28
)

type meshFileHeader struct {
	Version      uint32
	NumVertices  uint32
	IndexSize    uint32
	NumElements  uint32
	NumSubMeshes uint32
}

type meshFileElement struct {
	Stream        uint32
	Format        uint32
	Semantic      uint32
	SemanticIndex uint32
}

type meshFileSubMesh struct {
	NumIndices uint32
	DrawOp     uint32
}

// WriteMeshData encodes md, which must have a complete layout.
func WriteMeshData(w io.Writer, md *MeshData) error {
	if md.describing || md.indexData == nil {
		return fmt.Errorf("func WriteMeshData: mesh data layout is incomplete: %w", core.ErrInvalidParameter)
	}
	elements := md.declaration.Elements()
	header := meshFileHeader{
		Version:      meshFileVersion,
		NumVertices:  uint32(md.numVertices),
		IndexSize:    uint32(md.IndexElementSize()),
		NumElements:  uint32(len(elements)),
		NumSubMeshes: uint32(len(md.subMeshes)),
	}

	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(meshFileMagic); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, header); err != nil {
		return err
	}
	for _, e := range elements {
		fe := meshFileElement{Stream: e.Stream, Format: uint32(e.Format), Semantic: uint32(e.Semantic), SemanticIndex: e.SemanticIndex}
		if err := binary.Write(bw, binary.LittleEndian, fe); err != nil {
			return err
		}
	}
	for _, sm := range md.subMeshes {
		if err := binary.Write(bw, binary.LittleEndian, meshFileSubMesh{NumIndices: uint32(sm.numIndices), DrawOp: uint32(sm.drawOp)}); err != nil {
			return err
		}
	}
	if _, err := bw.Write(md.indexData); err != nil {
		return err
	}
	for _, stream := range md.declaration.Streams() {
		if _, err := bw.Write(md.streams[stream]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadMeshData decodes a mesh written by WriteMeshData.
func ReadMeshData(r io.Reader) (*MeshData, error) {
	br := bufio.NewReader(r)
	magic := make([]byte, len(meshFileMagic))
	if _, err := io.ReadFull(br, magic); err != nil {
		return nil, fmt.Errorf("func ReadMeshData: %w: %w", core.ErrInvalidMeshFile, err)
	}
	if string(magic) != meshFileMagic {
		return nil, fmt.Errorf("func ReadMeshData: bad magic %q: %w", magic, core.ErrInvalidMeshFile)
	}
	var header meshFileHeader
	if err := binary.Read(br, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("func ReadMeshData: header: %w: %w", core.ErrInvalidMeshFile, err)
	}
	if header.Version != meshFileVersion {
		return nil, fmt.Errorf("func ReadMeshData: unsupported version %d: %w", header.Version, core.ErrInvalidMeshFile)
	}
	if header.NumVertices > meshFileMaxCount || header.NumElements > meshFileMaxElements || header.NumSubMeshes > meshFileMaxCount {
		return nil, fmt.Errorf("func ReadMeshData: header counts out of range: %w", core.ErrInvalidMeshFile)
	}

	var format gputypes.IndexFormat
	switch header.IndexSize {
	case 2:
		format = gputypes.IndexFormatUint16
	case 4:
		format = gputypes.IndexFormatUint32
	default:
		return nil, fmt.Errorf("func ReadMeshData: index size %d: %w", header.IndexSize, core.ErrInvalidMeshFile)
	}

	md := NewMeshData(int(header.NumVertices), format)
	md.BeginDesc()
	for i := uint32(0); i < header.NumElements; i++ {
		var fe meshFileElement
		if err := binary.Read(br, binary.LittleEndian, &fe); err != nil {
			return nil, fmt.Errorf("func ReadMeshData: element %d: %w: %w", i, core.ErrInvalidMeshFile, err)
		}
		md.AddVertElem(gputypes.VertexFormat(fe.Format), metadata.VertexElementSemantic(fe.Semantic), fe.SemanticIndex, fe.Stream)
	}
	var totalIndices uint64
	for i := uint32(0); i < header.NumSubMeshes; i++ {
		var fs meshFileSubMesh
		if err := binary.Read(br, binary.LittleEndian, &fs); err != nil {
			return nil, fmt.Errorf("func ReadMeshData: sub-mesh %d: %w: %w", i, core.ErrInvalidMeshFile, err)
		}
		totalIndices += uint64(fs.NumIndices)
		if totalIndices > meshFileMaxCount {
			return nil, fmt.Errorf("func ReadMeshData: too many indices: %w", core.ErrInvalidMeshFile)
		}
		md.AddSubMesh(int(fs.NumIndices), gputypes.PrimitiveTopology(fs.DrawOp))
	}
	payload := totalIndices * uint64(header.IndexSize)
	for _, stream := range md.declaration.Streams() {
		payload += uint64(header.NumVertices) * uint64(md.declaration.VertexSize(stream))
	}
	if payload > meshFileMaxBytes {
		return nil, fmt.Errorf("func ReadMeshData: payload of %d bytes exceeds %d: %w", payload, meshFileMaxBytes, core.ErrInvalidMeshFile)
	}
	if err := md.EndDesc(); err != nil {
		return nil, fmt.Errorf("func ReadMeshData: %w: %w", core.ErrInvalidMeshFile, err)
	}

	if _, err := io.ReadFull(br, md.indexData); err != nil {
		return nil, fmt.Errorf("func ReadMeshData: indices: %w: %w", core.ErrInvalidMeshFile, err)
	}
	for _, stream := range md.declaration.Streams() {
		if _, err := io.ReadFull(br, md.streams[stream]); err != nil {
			return nil, fmt.Errorf("func ReadMeshData: stream %d: %w: %w", stream, core.ErrInvalidMeshFile, err)
		}
	}
	return md, nil
}

func LoadMeshDataFile(path string) (*MeshData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadMeshData(f)
}

func SaveMeshDataFile(path string, md *MeshData) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteMeshData(f, md); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
