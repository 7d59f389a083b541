package metadata

type GpuResourceDataType int

/** @brief Types of data containers accepted by sub-resource reads and writes. */
const (
	GpuResourceDataTypeUnknown GpuResourceDataType = iota
	/** @brief A mesh data container, see resources.MeshData. */
	GpuResourceDataTypeMesh
	/** @brief A pixel data container. Not handled by this engine core. */
	GpuResourceDataTypePixels
)

func (t GpuResourceDataType) String() string {
	switch t {
	case GpuResourceDataTypeMesh:
		return "MeshData"
	case GpuResourceDataTypePixels:
		return "PixelData"
	default:
		return "Unknown"
	}
}

/**
 * @brief An opaque data container written to or read from a GPU resource.
 * Resources check TypeID before interpreting the container.
 */
type GpuResourceData interface {
	TypeID() GpuResourceDataType
}
