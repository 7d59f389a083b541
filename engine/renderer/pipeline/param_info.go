package pipeline

import (
	"fmt"

	"github.com/spaghettifunk/anima-gpu/engine/core"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/params"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

/**
 * @brief Parameter layout of a whole pipeline: the descriptor of every stage
 * and their union. In the union the first stage (vertex first) declaring a
 * name wins, and blocks, textures and samplers get fresh consecutive slots.
 */
type ParamInfo struct {
	stages [metadata.ShaderStageCount]*metadata.GpuParamDesc
	merged *metadata.GpuParamDesc
}

func NewParamInfo(stages map[metadata.ShaderStage]*metadata.GpuParamDesc) *ParamInfo {
	info := &ParamInfo{merged: metadata.NewGpuParamDesc()}
	for stage, desc := range stages {
		if stage >= 0 && stage < metadata.ShaderStageCount {
			info.stages[stage] = desc
		}
	}

	var nextBlock, nextTexture, nextSampler uint32
	for stage, desc := range info.stages {
		if desc == nil {
			continue
		}
		where := metadata.ShaderStage(stage).String()

		remap := make(map[uint32]uint32)
		for _, name := range sortedKeys(desc.ParamBlocks) {
			b := desc.ParamBlocks[name]
			if prev, ok := info.merged.ParamBlocks[name]; ok {
				if prev.BlockSize != b.BlockSize {
					core.LogWarn("param block %s of the %s stage is %d bytes, keeping %d", name, where, b.BlockSize, prev.BlockSize)
				}
				remap[b.Slot] = prev.Slot
				continue
			}
			remap[b.Slot] = nextBlock
			b.Slot = nextBlock
			nextBlock++
			info.merged.ParamBlocks[name] = b
		}

		for _, name := range sortedKeys(desc.Params) {
			p := desc.Params[name]
			if prev, ok := info.merged.Params[name]; ok {
				if prev.Type != p.Type || prev.Elements() != p.Elements() {
					core.LogWarn("parameter %s of the %s stage is %s[%d], keeping %s[%d]", name, where, p.Type, p.Elements(), prev.Type, prev.Elements())
				}
				continue
			}
			slot, ok := remap[p.ParamBlockSlot]
			if !ok {
				core.LogWarn("parameter %s of the %s stage references undeclared block %d", name, where, p.ParamBlockSlot)
				continue
			}
			p.ParamBlockSlot = slot
			info.merged.Params[name] = p
		}

		nextTexture = mergeObjects(info.merged.Textures, desc.Textures, nextTexture, where)
		nextSampler = mergeObjects(info.merged.Samplers, desc.Samplers, nextSampler, where)
	}
	return info
}

func mergeObjects(dst, src map[string]metadata.GpuParamObjectDesc, next uint32, where string) uint32 {
	for _, name := range sortedKeys(src) {
		o := src[name]
		if prev, ok := dst[name]; ok {
			if prev.Type != o.Type {
				core.LogWarn("object parameter %s of the %s stage changes type, keeping the first", name, where)
			}
			continue
		}
		o.Slot = next
		next++
		dst[name] = o
	}
	return next
}

func sortedKeys[V any](m map[string]V) []string {
	keys := maps.Keys(m)
	slices.Sort(keys)
	return keys
}

// StageDesc returns the parameters of one stage, nil when the stage has no
// program or the program no parameters.
func (i *ParamInfo) StageDesc(stage metadata.ShaderStage) *metadata.GpuParamDesc {
	if stage < 0 || stage >= metadata.ShaderStageCount {
		return nil
	}
	return i.stages[stage]
}

func (i *ParamInfo) HasStage(stage metadata.ShaderStage) bool {
	return i.StageDesc(stage) != nil
}

// Merged returns the union of every stage's parameters.
func (i *ParamInfo) Merged() *metadata.GpuParamDesc {
	return i.merged
}

// NewGpuParams creates a parameter store for one stage.
func (i *ParamInfo) NewGpuParams(stage metadata.ShaderStage, transposeMatrices bool) (*params.GpuParams, error) {
	desc := i.StageDesc(stage)
	if desc == nil {
		return nil, fmt.Errorf("func NewGpuParams: no parameters for the %s stage: %w", stage, core.ErrInvalidParameter)
	}
	return params.NewGpuParams(desc, transposeMatrices)
}

// NewMergedGpuParams creates a parameter store laid out like Merged.
func (i *ParamInfo) NewMergedGpuParams(transposeMatrices bool) (*params.GpuParams, error) {
	return params.NewGpuParams(i.merged, transposeMatrices)
}
