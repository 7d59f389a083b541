package systems

import (
	"context"
	"fmt"
	"sync"

	"github.com/spaghettifunk/anima-gpu/engine/core"
	"github.com/spaghettifunk/anima-gpu/engine/renderer"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/pipeline"
)

/**
 * @brief Hands out fixed-function states, programs and pipelines. States are
 * immutable so equal descriptors share a single object.
 */
type RenderStateSystem struct {
	renderer *renderer.Renderer

	mutex        sync.Mutex
	blendStates  map[metadata.BlendStateDesc]*pipeline.BlendState
	rasterStates map[metadata.RasterizerStateDesc]*pipeline.RasterizerState
	depthStates  map[metadata.DepthStencilStateDesc]*pipeline.DepthStencilState
	programs     []*renderer.GpuProgram
	graphics     []*pipeline.GraphicsPipelineState
	compute      []*pipeline.ComputePipelineState
}

func NewRenderStateSystem(r *renderer.Renderer) (*RenderStateSystem, error) {
	if r == nil {
		err := fmt.Errorf("func NewRenderStateSystem: renderer cannot be nil: %w", core.ErrInvalidParameter)
		core.LogError("%s", err)
		return nil, err
	}
	return &RenderStateSystem{
		renderer:     r,
		blendStates:  make(map[metadata.BlendStateDesc]*pipeline.BlendState),
		rasterStates: make(map[metadata.RasterizerStateDesc]*pipeline.RasterizerState),
		depthStates:  make(map[metadata.DepthStencilStateDesc]*pipeline.DepthStencilState),
	}, nil
}

func (rs *RenderStateSystem) BlendState(desc metadata.BlendStateDesc) *pipeline.BlendState {
	rs.mutex.Lock()
	defer rs.mutex.Unlock()
	if s, ok := rs.blendStates[desc]; ok {
		return s
	}
	s := pipeline.NewBlendState(rs.renderer, desc)
	rs.blendStates[desc] = s
	return s
}

func (rs *RenderStateSystem) RasterizerState(desc metadata.RasterizerStateDesc) *pipeline.RasterizerState {
	rs.mutex.Lock()
	defer rs.mutex.Unlock()
	if s, ok := rs.rasterStates[desc]; ok {
		return s
	}
	s := pipeline.NewRasterizerState(rs.renderer, desc)
	rs.rasterStates[desc] = s
	return s
}

func (rs *RenderStateSystem) DepthStencilState(desc metadata.DepthStencilStateDesc) *pipeline.DepthStencilState {
	rs.mutex.Lock()
	defer rs.mutex.Unlock()
	if s, ok := rs.depthStates[desc]; ok {
		return s
	}
	s := pipeline.NewDepthStencilState(rs.renderer, desc)
	rs.depthStates[desc] = s
	return s
}

func (rs *RenderStateSystem) DefaultBlendState() *pipeline.BlendState {
	return rs.BlendState(metadata.DefaultBlendStateDesc())
}

func (rs *RenderStateSystem) DefaultRasterizerState() *pipeline.RasterizerState {
	return rs.RasterizerState(metadata.DefaultRasterizerStateDesc())
}

func (rs *RenderStateSystem) DefaultDepthStencilState() *pipeline.DepthStencilState {
	return rs.DepthStencilState(metadata.DefaultDepthStencilStateDesc())
}

func (rs *RenderStateSystem) CreateProgram(desc metadata.GpuProgramDesc) *renderer.GpuProgram {
	p := renderer.NewGpuProgram(rs.renderer, desc)
	rs.mutex.Lock()
	rs.programs = append(rs.programs, p)
	rs.mutex.Unlock()
	return p
}

// CreateGraphicsPipeline fills the missing fixed states with the defaults.
func (rs *RenderStateSystem) CreateGraphicsPipeline(desc pipeline.GraphicsPipelineStateDesc) *pipeline.GraphicsPipelineState {
	if desc.BlendState == nil {
		desc.BlendState = rs.DefaultBlendState()
	}
	if desc.RasterizerState == nil {
		desc.RasterizerState = rs.DefaultRasterizerState()
	}
	if desc.DepthStencilState == nil {
		desc.DepthStencilState = rs.DefaultDepthStencilState()
	}
	s := pipeline.NewGraphicsPipelineState(rs.renderer, desc)
	rs.mutex.Lock()
	rs.graphics = append(rs.graphics, s)
	rs.mutex.Unlock()
	return s
}

func (rs *RenderStateSystem) CreateComputePipeline(program *renderer.GpuProgram) *pipeline.ComputePipelineState {
	s := pipeline.NewComputePipelineState(rs.renderer, program)
	rs.mutex.Lock()
	rs.compute = append(rs.compute, s)
	rs.mutex.Unlock()
	return s
}

// Shutdown destroys pipelines first, then the programs and states they use.
func (rs *RenderStateSystem) Shutdown(ctx context.Context) error {
	rs.mutex.Lock()
	var ops []*core.AsyncOp[struct{}]
	for _, s := range rs.graphics {
		ops = append(ops, s.Destroy())
	}
	for _, s := range rs.compute {
		ops = append(ops, s.Destroy())
	}
	for _, p := range rs.programs {
		ops = append(ops, p.Destroy())
	}
	for _, s := range rs.blendStates {
		ops = append(ops, s.Destroy())
	}
	for _, s := range rs.rasterStates {
		ops = append(ops, s.Destroy())
	}
	for _, s := range rs.depthStates {
		ops = append(ops, s.Destroy())
	}
	rs.graphics, rs.compute, rs.programs = nil, nil, nil
	rs.blendStates = make(map[metadata.BlendStateDesc]*pipeline.BlendState)
	rs.rasterStates = make(map[metadata.RasterizerStateDesc]*pipeline.RasterizerState)
	rs.depthStates = make(map[metadata.DepthStencilStateDesc]*pipeline.DepthStencilState)
	rs.mutex.Unlock()
	return waitAll(ctx, ops)
}
