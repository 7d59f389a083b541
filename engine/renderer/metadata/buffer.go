package metadata

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

/** @brief How often a device buffer is expected to change. */
type GpuBufferUsage int

const (
	/** @brief Written rarely, typically once after creation. */
	GpuBufferUsageStatic GpuBufferUsage = iota
	/** @brief Written often, possibly every frame. */
	GpuBufferUsageDynamic
)

func ParseGpuBufferUsage(s string) (GpuBufferUsage, error) {
	switch s {
	case "static":
		return GpuBufferUsageStatic, nil
	case "dynamic":
		return GpuBufferUsageDynamic, nil
	}
	return 0, fmt.Errorf("string %s is not a valid GpuBufferUsage", s)
}

func (u GpuBufferUsage) String() string {
	if u == GpuBufferUsageDynamic {
		return "dynamic"
	}
	return "static"
}

/** @brief Access modes for locking a device buffer. */
type GpuLockOptions int

const (
	/** @brief Read and write access. */
	GpuLockReadWrite GpuLockOptions = iota
	/** @brief Write access; the previous contents are discarded. */
	GpuLockWriteOnlyDiscard
	/** @brief Write access; the caller promises not to touch data in use by the GPU. */
	GpuLockWriteOnlyNoOverwrite
	/** @brief Write access, previous contents preserved. */
	GpuLockWriteOnly
	/** @brief Read access only. */
	GpuLockReadOnly
)

func (o GpuLockOptions) CanRead() bool {
	return o == GpuLockReadWrite || o == GpuLockReadOnly
}

func (o GpuLockOptions) CanWrite() bool {
	return o != GpuLockReadOnly
}

// IndexElementSize returns the size in bytes of one index, or 0 for an
// undefined format.
func IndexElementSize(format gputypes.IndexFormat) int {
	switch format {
	case gputypes.IndexFormatUint16:
		return 2
	case gputypes.IndexFormatUint32:
		return 4
	}
	return 0
}

func ParseIndexFormat(s string) (gputypes.IndexFormat, error) {
	switch s {
	case "uint16":
		return gputypes.IndexFormatUint16, nil
	case "uint32":
		return gputypes.IndexFormatUint32, nil
	}
	return 0, fmt.Errorf("string %s is not a valid IndexFormat", s)
}
