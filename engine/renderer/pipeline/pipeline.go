package pipeline

import (
	"context"
	"fmt"

	"github.com/spaghettifunk/anima-gpu/engine/core"
	"github.com/spaghettifunk/anima-gpu/engine/renderer"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/metadata"
)

/**
 * @brief Accessors shared by the simulation and core views of a graphics
 * pipeline. P is the program type, B, R and D the fixed state types.
 */
type graphicsPipeline[P comparable, B, R, D any] struct {
	programs     [metadata.ShaderStageCompute]P
	blend        B
	rasterizer   R
	depthStencil D
	paramInfo    *ParamInfo
}

func (g *graphicsPipeline[P, B, R, D]) has(stage metadata.ShaderStage) bool {
	var zero P
	return g.programs[stage] != zero
}

func (g *graphicsPipeline[P, B, R, D]) HasVertexProgram() bool { return g.has(metadata.ShaderStageVertex) }
func (g *graphicsPipeline[P, B, R, D]) HasFragmentProgram() bool { return g.has(metadata.ShaderStageFragment) }
func (g *graphicsPipeline[P, B, R, D]) HasGeometryProgram() bool { return g.has(metadata.ShaderStageGeometry) }
func (g *graphicsPipeline[P, B, R, D]) HasHullProgram() bool { return g.has(metadata.ShaderStageHull) }
func (g *graphicsPipeline[P, B, R, D]) HasDomainProgram() bool { return g.has(metadata.ShaderStageDomain) }

func (g *graphicsPipeline[P, B, R, D]) VertexProgram() P { return g.programs[metadata.ShaderStageVertex] }
func (g *graphicsPipeline[P, B, R, D]) FragmentProgram() P { return g.programs[metadata.ShaderStageFragment] }
func (g *graphicsPipeline[P, B, R, D]) GeometryProgram() P { return g.programs[metadata.ShaderStageGeometry] }
func (g *graphicsPipeline[P, B, R, D]) HullProgram() P { return g.programs[metadata.ShaderStageHull] }
func (g *graphicsPipeline[P, B, R, D]) DomainProgram() P { return g.programs[metadata.ShaderStageDomain] }

func (g *graphicsPipeline[P, B, R, D]) BlendState() B { return g.blend }
func (g *graphicsPipeline[P, B, R, D]) RasterizerState() R { return g.rasterizer }
func (g *graphicsPipeline[P, B, R, D]) DepthStencilState() D { return g.depthStencil }

// ParamInfo describes the parameters of every stage and their union.
func (g *graphicsPipeline[P, B, R, D]) ParamInfo() *ParamInfo { return g.paramInfo }

/** @brief Programs and fixed states of a graphics pipeline. Any field may be nil. */
type GraphicsPipelineStateDesc struct {
	VertexProgram   *renderer.GpuProgram
	FragmentProgram *renderer.GpuProgram
	GeometryProgram *renderer.GpuProgram
	HullProgram     *renderer.GpuProgram
	DomainProgram   *renderer.GpuProgram

	BlendState        *BlendState
	RasterizerState   *RasterizerState
	DepthStencilState *DepthStencilState
}

func (d GraphicsPipelineStateDesc) programs() [metadata.ShaderStageCompute]*renderer.GpuProgram {
	var out [metadata.ShaderStageCompute]*renderer.GpuProgram
	out[metadata.ShaderStageVertex] = d.VertexProgram
	out[metadata.ShaderStageFragment] = d.FragmentProgram
	out[metadata.ShaderStageGeometry] = d.GeometryProgram
	out[metadata.ShaderStageHull] = d.HullProgram
	out[metadata.ShaderStageDomain] = d.DomainProgram
	return out
}

func paramInfoOf(programs ...*renderer.GpuProgram) *ParamInfo {
	stages := make(map[metadata.ShaderStage]*metadata.GpuParamDesc)
	for _, p := range programs {
		if p != nil && p.ParamDesc() != nil {
			stages[p.Stage()] = p.ParamDesc()
		}
	}
	return NewParamInfo(stages)
}

/** @brief Device view of a graphics pipeline. Core thread only. */
type GraphicsPipelineStateCore struct {
	graphicsPipeline[renderer.GpuProgramCore, renderer.BlendStateCore, renderer.RasterizerStateCore, renderer.DepthStencilStateCore]
	linked renderer.LinkedPipeline
}

// Linked returns the device pipeline object.
func (c *GraphicsPipelineStateCore) Linked() renderer.LinkedPipeline {
	return c.linked
}

// Destroy releases the linked pipeline. Programs and states are shared and
// stay alive.
func (c *GraphicsPipelineStateCore) Destroy(ctx context.Context) {
	core.AssertCoreThread(ctx, "GraphicsPipelineStateCore.Destroy")
	if c.linked != nil {
		c.linked.Destroy(ctx)
		c.linked = nil
	}
}

/**
 * @brief Immutable bundle of programs and fixed states. Linking happens on
 * the core thread; a stage/program mismatch fails the init op.
 */
type GraphicsPipelineState struct {
	graphicsPipeline[*renderer.GpuProgram, *BlendState, *RasterizerState, *DepthStencilState]
	renderer.CoreObject[*GraphicsPipelineStateCore]
}

func NewGraphicsPipelineState(r *renderer.Renderer, desc GraphicsPipelineStateDesc) *GraphicsPipelineState {
	programs := desc.programs()
	s := &GraphicsPipelineState{}
	s.programs = programs
	s.blend = desc.BlendState
	s.rasterizer = desc.RasterizerState
	s.depthStencil = desc.DepthStencilState
	s.paramInfo = paramInfoOf(programs[:]...)

	s.Init(r, "graphics-pipeline", s, func(ctx context.Context) (*GraphicsPipelineStateCore, error) {
		c := &GraphicsPipelineStateCore{}
		c.paramInfo = s.paramInfo
		for stage, p := range s.programs {
			if p == nil {
				continue
			}
			pc := p.Core()
			if pc == nil {
				return nil, fmt.Errorf("func NewGraphicsPipelineState: %s program %s has no core: %w", metadata.ShaderStage(stage), p.Name(), core.ErrCoreNotInitialized)
			}
			c.programs[stage] = pc
		}
		if s.blend != nil {
			c.blend = s.blend.Core()
		}
		if s.rasterizer != nil {
			c.rasterizer = s.rasterizer.Core()
		}
		if s.depthStencil != nil {
			c.depthStencil = s.depthStencil.Core()
		}

		linked, err := r.Device().LinkGraphicsPipeline(ctx, renderer.GraphicsProgramSet(c.programs))
		if err != nil {
			return nil, err
		}
		c.linked = linked
		return c, nil
	})
	return s
}

/** @brief Accessors shared by both views of a compute pipeline. */
type computePipeline[P comparable] struct {
	program   P
	paramInfo *ParamInfo
}

func (c *computePipeline[P]) HasProgram() bool {
	var zero P
	return c.program != zero
}

func (c *computePipeline[P]) Program() P { return c.program }
func (c *computePipeline[P]) ParamInfo() *ParamInfo { return c.paramInfo }

/** @brief Device view of a compute pipeline. Core thread only. */
type ComputePipelineStateCore struct {
	computePipeline[renderer.GpuProgramCore]
	linked renderer.LinkedPipeline
}

func (c *ComputePipelineStateCore) Linked() renderer.LinkedPipeline {
	return c.linked
}

func (c *ComputePipelineStateCore) Destroy(ctx context.Context) {
	core.AssertCoreThread(ctx, "ComputePipelineStateCore.Destroy")
	if c.linked != nil {
		c.linked.Destroy(ctx)
		c.linked = nil
	}
}

/** @brief Immutable compute pipeline wrapping a single program. */
type ComputePipelineState struct {
	computePipeline[*renderer.GpuProgram]
	renderer.CoreObject[*ComputePipelineStateCore]
}

func NewComputePipelineState(r *renderer.Renderer, program *renderer.GpuProgram) *ComputePipelineState {
	s := &ComputePipelineState{}
	s.program = program
	s.paramInfo = paramInfoOf(program)

	s.Init(r, "compute-pipeline", s, func(ctx context.Context) (*ComputePipelineStateCore, error) {
		c := &ComputePipelineStateCore{}
		c.paramInfo = s.paramInfo
		if s.program != nil {
			c.program = s.program.Core()
			if c.program == nil {
				return nil, fmt.Errorf("func NewComputePipelineState: program %s has no core: %w", s.program.Name(), core.ErrCoreNotInitialized)
			}
		}
		linked, err := r.Device().LinkComputePipeline(ctx, c.program)
		if err != nil {
			return nil, err
		}
		c.linked = linked
		return c, nil
	})
	return s
}
