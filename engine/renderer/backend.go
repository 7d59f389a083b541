package renderer

import (
	"context"

	"github.com/gogpu/gputypes"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/metadata"
)

// Destroyer is implemented by every object that owns device state. Destroy
// must be called on the core thread.
type Destroyer interface {
	Destroy(ctx context.Context)
}

/**
 * @brief A device buffer. Every method except Size and IsLocked must be
 * called on the core thread.
 */
type Buffer interface {
	Destroyer
	/**
	 * @brief Maps length bytes starting at offset. The returned slice is only
	 * valid until Unlock. A buffer can be locked once at a time.
	 */
	Lock(ctx context.Context, offset, length uint32, options metadata.GpuLockOptions) ([]byte, error)
	Unlock(ctx context.Context) error
	/** @brief Size of the buffer in bytes. */
	Size() uint32
	IsLocked() bool
	Usage() metadata.GpuBufferUsage
}

type IndexBuffer interface {
	Buffer
	Format() gputypes.IndexFormat
	/** @brief Size in bytes of a single index. */
	IndexSize() uint32
	NumIndices() uint32
}

type VertexBuffer interface {
	Buffer
	/** @brief Size in bytes of a single vertex of the stream. */
	VertexSize() uint32
	NumVertices() uint32
}

// ParamBlockBuffer backs one parameter block of a GpuParams store.
type ParamBlockBuffer interface {
	Buffer
}

type Texture interface {
	Name() string
}

type SamplerState interface {
	Name() string
}

// GpuProgramCore is the device side of a compiled program.
type GpuProgramCore interface {
	Destroyer
	Name() string
	Stage() metadata.ShaderStage
	ParamDesc() *metadata.GpuParamDesc
}

type BlendStateCore interface {
	Destroyer
	Desc() metadata.BlendStateDesc
}

type RasterizerStateCore interface {
	Destroyer
	Desc() metadata.RasterizerStateDesc
}

type DepthStencilStateCore interface {
	Destroyer
	Desc() metadata.DepthStencilStateDesc
}

// GraphicsProgramSet holds one program per graphics stage, indexed by
// metadata.ShaderStage. Unused stages are nil.
type GraphicsProgramSet [metadata.ShaderStageCompute]GpuProgramCore

// LinkedPipeline is a device pipeline object produced by linking programs.
type LinkedPipeline interface {
	Destroyer
}

/**
 * @brief The device backend. Everything it creates is owned by the caller;
 * every method must be called on the core thread.
 */
type Device interface {
	Name() string
	CreateIndexBuffer(ctx context.Context, format gputypes.IndexFormat, numIndices uint32, usage metadata.GpuBufferUsage) (IndexBuffer, error)
	CreateVertexBuffer(ctx context.Context, vertexSize, numVertices uint32, usage metadata.GpuBufferUsage) (VertexBuffer, error)
	CreateParamBlockBuffer(ctx context.Context, size uint32, usage metadata.GpuBufferUsage) (ParamBlockBuffer, error)
	CreateProgram(ctx context.Context, desc *metadata.GpuProgramDesc) (GpuProgramCore, error)
	CreateBlendState(ctx context.Context, desc metadata.BlendStateDesc) (BlendStateCore, error)
	CreateRasterizerState(ctx context.Context, desc metadata.RasterizerStateDesc) (RasterizerStateCore, error)
	CreateDepthStencilState(ctx context.Context, desc metadata.DepthStencilStateDesc) (DepthStencilStateCore, error)
	LinkGraphicsPipeline(ctx context.Context, programs GraphicsProgramSet) (LinkedPipeline, error)
	LinkComputePipeline(ctx context.Context, program GpuProgramCore) (LinkedPipeline, error)
}
