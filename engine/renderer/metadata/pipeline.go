package metadata

import "github.com/gogpu/gputypes"

const MaxRenderTargets = 8

/** @brief Blending setup of one render target. */
type RenderTargetBlendDesc struct {
	BlendEnable bool
	/** @brief Color and alpha blend equations. Ignored unless BlendEnable. */
	Blend     gputypes.BlendState
	WriteMask gputypes.ColorWriteMask
}

/** @brief Descriptor of a blend state object. Comparable, so it can key caches. */
type BlendStateDesc struct {
	AlphaToCoverage bool
	/** @brief When false only RenderTargets[0] is used for every target. */
	IndependentBlend bool
	RenderTargets    [MaxRenderTargets]RenderTargetBlendDesc
}

func DefaultBlendStateDesc() BlendStateDesc {
	var desc BlendStateDesc
	for i := range desc.RenderTargets {
		desc.RenderTargets[i].WriteMask = gputypes.ColorWriteMaskAll
	}
	return desc
}

// PremultipliedBlendStateDesc enables premultiplied alpha blending on the
// first render target.
func PremultipliedBlendStateDesc() BlendStateDesc {
	desc := DefaultBlendStateDesc()
	desc.RenderTargets[0].BlendEnable = true
	desc.RenderTargets[0].Blend = gputypes.BlendStatePremultiplied()
	return desc
}

/** @brief Descriptor of a rasterizer state object. */
type RasterizerStateDesc struct {
	CullMode             gputypes.CullMode
	FrontFace            gputypes.FrontFace
	Wireframe            bool
	DepthBias            float32
	DepthBiasClamp       float32
	SlopeScaledDepthBias float32
	DepthClipEnable      bool
	ScissorEnable        bool
	MultisampleEnable    bool
	AntialiasedLine      bool
}

func DefaultRasterizerStateDesc() RasterizerStateDesc {
	return RasterizerStateDesc{
		CullMode:          gputypes.CullModeBack,
		FrontFace:         gputypes.FrontFaceCCW,
		DepthClipEnable:   true,
		MultisampleEnable: true,
	}
}

/** @brief Operations applied to the stencil buffer. */
type StencilOperation int

const (
	StencilOperationKeep StencilOperation = iota
	StencilOperationZero
	StencilOperationReplace
	StencilOperationIncrement
	StencilOperationDecrement
	StencilOperationIncrementWrap
	StencilOperationDecrementWrap
	StencilOperationInvert
)

type StencilFaceDesc struct {
	FailOp      StencilOperation
	DepthFailOp StencilOperation
	PassOp      StencilOperation
	Compare     gputypes.CompareFunction
}

/** @brief Descriptor of a depth-stencil state object. */
type DepthStencilStateDesc struct {
	DepthReadEnable  bool
	DepthWriteEnable bool
	DepthCompare     gputypes.CompareFunction
	StencilEnable    bool
	StencilReadMask  uint8
	StencilWriteMask uint8
	StencilFront     StencilFaceDesc
	StencilBack      StencilFaceDesc
}

func DefaultDepthStencilStateDesc() DepthStencilStateDesc {
	face := StencilFaceDesc{Compare: gputypes.CompareFunctionAlways}
	return DepthStencilStateDesc{
		DepthReadEnable:  true,
		DepthWriteEnable: true,
		DepthCompare:     gputypes.CompareFunctionLess,
		StencilReadMask:  0xFF,
		StencilWriteMask: 0xFF,
		StencilFront:     face,
		StencilBack:      face,
	}
}
