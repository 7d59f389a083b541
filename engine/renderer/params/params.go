package params

import (
	"context"
	"fmt"
	"sync"

	"github.com/spaghettifunk/anima-gpu/engine/core"
	"github.com/spaghettifunk/anima-gpu/engine/renderer"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/metadata"
)

// Every block starts on a 16 byte boundary of the arena.
const paramBlockAlignment = 16

// store is the state shared by a GpuParams and every handle obtained from it.
type store struct {
	arena    []byte
	blocks   []*GpuParamBlock
	textures []renderer.Texture
	samplers []renderer.SamplerState

	mutex        sync.Mutex
	blockBuffers []renderer.ParamBlockBuffer
	ownedBuffers []bool
	renderer     *renderer.Renderer
	destroyed    bool
}

func (s *store) isDestroyed() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.destroyed
}

/**
 * @brief CPU staging area for the parameters of a GPU program, addressed by
 * name. Data parameters live in one arena carved into parameter blocks;
 * textures, samplers and block buffers each have their own slots.
 */
type GpuParams struct {
	desc              *metadata.GpuParamDesc
	transposeMatrices bool
	data              *store
}

/**
 * @brief Creates a store for desc. When transposeMatrices is set matrix
 * parameters are transposed as they are written. Fails when a data parameter
 * does not fit inside its block.
 */
func NewGpuParams(desc *metadata.GpuParamDesc, transposeMatrices bool) (*GpuParams, error) {
	if desc == nil {
		desc = metadata.NewGpuParamDesc()
	}

	numBlocks := desc.NumParamBlocks()
	sizes := make([]uint32, numBlocks)
	for _, b := range desc.ParamBlocks {
		sizes[b.Slot] = b.BlockSize
	}
	for _, p := range desc.Params {
		if p.ParamBlockSlot >= numBlocks {
			return nil, fmt.Errorf("func NewGpuParams: parameter %s references missing block %d: %w", p.Name, p.ParamBlockSlot, core.ErrInvalidParameter)
		}
		if p.ElemSize() == 0 {
			return nil, fmt.Errorf("func NewGpuParams: parameter %s has no size: %w", p.Name, core.ErrInvalidParameter)
		}
		if uint64(p.CpuMemOffset)+uint64(p.TotalSize()) > uint64(sizes[p.ParamBlockSlot]) {
			return nil, fmt.Errorf("func NewGpuParams: parameter %s overflows block %d: %w", p.Name, p.ParamBlockSlot, core.ErrInvalidParameter)
		}
	}

	offsets := make([]uint64, numBlocks)
	var total uint64
	for slot, size := range sizes {
		offsets[slot] = total
		total = metadata.GetAligned(total+uint64(size), paramBlockAlignment)
	}
	s := &store{
		arena:        make([]byte, total),
		blocks:       make([]*GpuParamBlock, numBlocks),
		textures:     make([]renderer.Texture, desc.NumTextures()),
		samplers:     make([]renderer.SamplerState, desc.NumSamplers()),
		blockBuffers: make([]renderer.ParamBlockBuffer, numBlocks),
		ownedBuffers: make([]bool, numBlocks),
	}
	for slot, size := range sizes {
		start := offsets[slot]
		end := start + uint64(size)
		s.blocks[slot] = &GpuParamBlock{slot: uint32(slot), data: s.arena[start:end:end]}
	}

	return &GpuParams{desc: desc, transposeMatrices: transposeMatrices, data: s}, nil
}

func (p *GpuParams) Desc() *metadata.GpuParamDesc {
	return p.desc
}

func (p *GpuParams) TransposeMatrices() bool {
	return p.transposeMatrices
}

func (p *GpuParams) NumParamBlocks() int {
	return len(p.data.blocks)
}

// ParamBlock returns the staged block in slot, nil when out of range.
func (p *GpuParams) ParamBlock(slot uint32) *GpuParamBlock {
	if slot >= uint32(len(p.data.blocks)) {
		return nil
	}
	return p.data.blocks[slot]
}

/**
 * @brief Replaces the device buffer backing a parameter block. The buffer
 * layout is not checked against the block description.
 */
func (p *GpuParams) SetParamBlockBuffer(slot uint32, buffer renderer.ParamBlockBuffer) error {
	s := p.data
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if slot >= uint32(len(s.blockBuffers)) {
		err := fmt.Errorf("func SetParamBlockBuffer: slot %d out of range [0, %d): %w", slot, len(s.blockBuffers), core.ErrInvalidParameter)
		core.LogError("%s", err)
		return err
	}
	s.blockBuffers[slot] = buffer
	s.ownedBuffers[slot] = false
	// The new buffer does not hold the staged contents yet.
	s.blocks[slot].MarkDirty()
	return nil
}

func (p *GpuParams) SetParamBlockBufferByName(name string, buffer renderer.ParamBlockBuffer) error {
	b, ok := p.desc.ParamBlocks[name]
	if !ok {
		err := fmt.Errorf("func SetParamBlockBufferByName: no parameter block %s: %w", name, core.ErrInvalidParameter)
		core.LogError("%s", err)
		return err
	}
	return p.SetParamBlockBuffer(b.Slot, buffer)
}

func (p *GpuParams) ParamBlockBuffer(slot uint32) renderer.ParamBlockBuffer {
	s := p.data
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if slot >= uint32(len(s.blockBuffers)) {
		return nil
	}
	return s.blockBuffers[slot]
}

func (p *GpuParams) HasParam(name string) bool {
	_, ok := p.desc.Params[name]
	return ok
}

func (p *GpuParams) HasTexture(name string) bool {
	_, ok := p.desc.Textures[name]
	return ok
}

func (p *GpuParams) HasSamplerState(name string) bool {
	_, ok := p.desc.Samplers[name]
	return ok
}

func (p *GpuParams) HasParamBlock(name string) bool {
	_, ok := p.desc.ParamBlocks[name]
	return ok
}

// DataParamSize returns the size in bytes of one element of a data
// parameter, 0 when there is no such parameter.
func (p *GpuParams) DataParamSize(name string) uint32 {
	d, ok := p.desc.Params[name]
	if !ok {
		return 0
	}
	return d.ElemSize()
}

func (p *GpuParams) IsDestroyed() bool {
	return p.data.isDestroyed()
}

/**
 * @brief Creates a device buffer for every described block that has none.
 * Buffers created here are owned by the store and released by Destroy.
 */
func (p *GpuParams) CreateParamBlockBuffers(r *renderer.Renderer, usage metadata.GpuBufferUsage) *core.AsyncOp[struct{}] {
	s := p.data
	return r.Queue(func(ctx context.Context) error {
		s.mutex.Lock()
		defer s.mutex.Unlock()
		if s.destroyed {
			return fmt.Errorf("func CreateParamBlockBuffers: parameters destroyed: %w", core.ErrInvalidParameter)
		}
		s.renderer = r
		for slot, block := range s.blocks {
			if s.blockBuffers[slot] != nil || block.Size() == 0 {
				continue
			}
			buf, err := r.Device().CreateParamBlockBuffer(ctx, block.Size(), usage)
			if err != nil {
				return err
			}
			s.blockBuffers[slot] = buf
			s.ownedBuffers[slot] = true
			block.MarkDirty()
		}
		return nil
	})
}

type blockUpload struct {
	slot   uint32
	buffer renderer.ParamBlockBuffer
	data   []byte
}

/**
 * @brief Snapshots every dirty block that has a buffer and schedules the
 * upload. Later writes do not affect the scheduled upload.
 */
func (p *GpuParams) Bind(r *renderer.Renderer) *core.AsyncOp[struct{}] {
	s := p.data
	s.mutex.Lock()
	var uploads []blockUpload
	for slot, block := range s.blocks {
		buf := s.blockBuffers[slot]
		if !block.IsDirty() || buf == nil {
			continue
		}
		uploads = append(uploads, blockUpload{
			slot:   uint32(slot),
			buffer: buf,
			data:   append([]byte(nil), block.Data()...),
		})
		block.MarkClean()
	}
	s.mutex.Unlock()

	return r.Queue(func(ctx context.Context) error {
		for _, u := range uploads {
			length := min(uint32(len(u.data)), u.buffer.Size())
			err := renderer.WithLock(ctx, u.buffer, 0, length, metadata.GpuLockWriteOnlyDiscard, func(dst []byte) error {
				copy(dst, u.data)
				return nil
			})
			if err != nil {
				return fmt.Errorf("func Bind: block %d: %w", u.slot, err)
			}
		}
		return nil
	})
}

/**
 * @brief Marks the store destroyed; handles stop writing. Block buffers
 * created by CreateParamBlockBuffers are destroyed on the core thread.
 */
func (p *GpuParams) Destroy() *core.AsyncOp[struct{}] {
	s := p.data
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.destroyed {
		return core.CompletedOp(struct{}{}, nil)
	}
	s.destroyed = true

	var owned []renderer.ParamBlockBuffer
	for slot, buf := range s.blockBuffers {
		if buf != nil && s.ownedBuffers[slot] {
			owned = append(owned, buf)
		}
		s.blockBuffers[slot] = nil
	}
	if len(owned) == 0 || s.renderer == nil {
		return core.CompletedOp(struct{}{}, nil)
	}
	return s.renderer.Queue(func(ctx context.Context) error {
		for _, buf := range owned {
			buf.Destroy(ctx)
		}
		return nil
	})
}
