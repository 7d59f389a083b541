package resources

import (
	"github.com/gogpu/gputypes"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/metadata"
	"golang.org/x/exp/slices"
)

/**
 * @brief A single element of a vertex, e.g. its position or one set of
 * texture coordinates.
 */
type VertexElement struct {
	/** @brief The vertex stream (buffer) holding the element. */
	Stream uint32
	/** @brief Offset in bytes from the start of the vertex. */
	Offset uint32
	Format gputypes.VertexFormat
	/** @brief The intended use of the element. */
	Semantic metadata.VertexElementSemantic
	/** @brief Distinguishes elements sharing a semantic, e.g. multiple texture coordinates. */
	SemanticIndex uint32
}

// Size returns the size of the element in bytes.
func (e VertexElement) Size() uint32 {
	return uint32(metadata.VertexFormatSize(e.Format))
}

/**
 * @brief Describes the layout of a vertex across one or more streams. Element
 * order within a stream is the order in memory.
 */
type VertexDeclaration struct {
	elements []VertexElement
}

func NewVertexDeclaration() *VertexDeclaration {
	return &VertexDeclaration{}
}

// AddElement appends an element to the end of stream.
func (d *VertexDeclaration) AddElement(stream uint32, format gputypes.VertexFormat, semantic metadata.VertexElementSemantic, semanticIdx uint32) VertexElement {
	e := VertexElement{
		Stream:        stream,
		Offset:        d.VertexSize(stream),
		Format:        format,
		Semantic:      semantic,
		SemanticIndex: semanticIdx,
	}
	d.elements = append(d.elements, e)
	return e
}

func (d *VertexDeclaration) Elements() []VertexElement {
	return slices.Clone(d.elements)
}

func (d *VertexDeclaration) NumElements() int {
	return len(d.elements)
}

func (d *VertexDeclaration) ElementsForStream(stream uint32) []VertexElement {
	var out []VertexElement
	for _, e := range d.elements {
		if e.Stream == stream {
			out = append(out, e)
		}
	}
	return out
}

// VertexSize returns the size in bytes of one vertex in stream.
func (d *VertexDeclaration) VertexSize(stream uint32) uint32 {
	var size uint32
	for _, e := range d.elements {
		if e.Stream == stream {
			size += e.Size()
		}
	}
	return size
}

func (d *VertexDeclaration) FindElement(semantic metadata.VertexElementSemantic, semanticIdx uint32) (VertexElement, bool) {
	for _, e := range d.elements {
		if e.Semantic == semantic && e.SemanticIndex == semanticIdx {
			return e, true
		}
	}
	return VertexElement{}, false
}

// Streams returns the used stream indices in ascending order.
func (d *VertexDeclaration) Streams() []uint32 {
	streams := make([]uint32, 0, len(d.elements))
	for _, e := range d.elements {
		streams = append(streams, e.Stream)
	}
	slices.Sort(streams)
	return slices.Compact(streams)
}

func (d *VertexDeclaration) Clone() *VertexDeclaration {
	return &VertexDeclaration{elements: slices.Clone(d.elements)}
}
