package metadata

import "github.com/gogpu/gputypes"

/** @brief The intended use of a vertex element. */
type VertexElementSemantic int

const (
	VertexSemanticPosition VertexElementSemantic = iota + 1
	VertexSemanticBlendWeights
	VertexSemanticBlendIndices
	VertexSemanticNormal
	VertexSemanticColor
	VertexSemanticTexCoord
	VertexSemanticBitangent
	VertexSemanticTangent
)

func (s VertexElementSemantic) String() string {
	switch s {
	case VertexSemanticPosition:
		return "Position"
	case VertexSemanticBlendWeights:
		return "BlendWeights"
	case VertexSemanticBlendIndices:
		return "BlendIndices"
	case VertexSemanticNormal:
		return "Normal"
	case VertexSemanticColor:
		return "Color"
	case VertexSemanticTexCoord:
		return "TexCoord"
	case VertexSemanticBitangent:
		return "Bitangent"
	case VertexSemanticTangent:
		return "Tangent"
	default:
		return "[!] invalid VertexElementSemantic value"
	}
}

// VertexFormatSize returns the size in bytes of one element of format, or 0
// when the format is not supported by the engine.
func VertexFormatSize(format gputypes.VertexFormat) int {
	switch format {
	case gputypes.VertexFormatFloat32, gputypes.VertexFormatUint32, gputypes.VertexFormatSint32:
		return 4
	case gputypes.VertexFormatFloat32x2, gputypes.VertexFormatUint32x2, gputypes.VertexFormatSint32x2:
		return 8
	case gputypes.VertexFormatFloat32x3, gputypes.VertexFormatUint32x3, gputypes.VertexFormatSint32x3:
		return 12
	case gputypes.VertexFormatFloat32x4, gputypes.VertexFormatUint32x4, gputypes.VertexFormatSint32x4:
		return 16
	}
	return 0
}
