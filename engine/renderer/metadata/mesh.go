package metadata

import "github.com/gogpu/gputypes"

/**
 * @brief A contiguous range of a mesh's index buffer drawn with one
 * draw operation.
 */
type SubMesh struct {
	/** @brief Offset of the first index, in indices. */
	IndexOffset int
	/** @brief Number of indices. */
	IndexCount int
	/** @brief The primitive topology used to draw the range. */
	DrawOp gputypes.PrimitiveTopology
}
