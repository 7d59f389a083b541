package params

/**
 * @brief The CPU staged contents of one parameter block. The bytes are a
 * window into the arena of the owning GpuParams.
 */
type GpuParamBlock struct {
	slot  uint32
	data  []byte
	dirty bool
}

func (b *GpuParamBlock) Slot() uint32 {
	return b.slot
}

// Data returns the staged bytes. Writes through it are not tracked, use
// MarkDirty afterwards.
func (b *GpuParamBlock) Data() []byte {
	return b.data
}

func (b *GpuParamBlock) Size() uint32 {
	return uint32(len(b.data))
}

// IsDirty reports whether the block changed since it was last uploaded.
func (b *GpuParamBlock) IsDirty() bool {
	return b.dirty
}

func (b *GpuParamBlock) MarkDirty() {
	b.dirty = true
}

func (b *GpuParamBlock) MarkClean() {
	b.dirty = false
}

func (b *GpuParamBlock) write(offset uint32, src []byte) {
	copy(b.data[offset:], src)
	b.dirty = true
}
