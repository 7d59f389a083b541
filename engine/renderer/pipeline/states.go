package pipeline

import (
	"context"

	"github.com/spaghettifunk/anima-gpu/engine/renderer"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/metadata"
)

/** @brief Immutable blend state. The device object is created on the core thread. */
type BlendState struct {
	renderer.CoreObject[renderer.BlendStateCore]
	desc metadata.BlendStateDesc
}

func NewBlendState(r *renderer.Renderer, desc metadata.BlendStateDesc) *BlendState {
	s := &BlendState{desc: desc}
	s.Init(r, "blend-state", s, func(ctx context.Context) (renderer.BlendStateCore, error) {
		return r.Device().CreateBlendState(ctx, s.desc)
	})
	return s
}

func (s *BlendState) Desc() metadata.BlendStateDesc {
	return s.desc
}

/** @brief Immutable rasterizer state. */
type RasterizerState struct {
	renderer.CoreObject[renderer.RasterizerStateCore]
	desc metadata.RasterizerStateDesc
}

func NewRasterizerState(r *renderer.Renderer, desc metadata.RasterizerStateDesc) *RasterizerState {
	s := &RasterizerState{desc: desc}
	s.Init(r, "rasterizer-state", s, func(ctx context.Context) (renderer.RasterizerStateCore, error) {
		return r.Device().CreateRasterizerState(ctx, s.desc)
	})
	return s
}

func (s *RasterizerState) Desc() metadata.RasterizerStateDesc {
	return s.desc
}

/** @brief Immutable depth-stencil state. */
type DepthStencilState struct {
	renderer.CoreObject[renderer.DepthStencilStateCore]
	desc metadata.DepthStencilStateDesc
}

func NewDepthStencilState(r *renderer.Renderer, desc metadata.DepthStencilStateDesc) *DepthStencilState {
	s := &DepthStencilState{desc: desc}
	s.Init(r, "depth-stencil-state", s, func(ctx context.Context) (renderer.DepthStencilStateCore, error) {
		return r.Device().CreateDepthStencilState(ctx, s.desc)
	})
	return s
}

func (s *DepthStencilState) Desc() metadata.DepthStencilStateDesc {
	return s.desc
}
