package software

import (
	"context"
	"fmt"
	stdmath "math"
	"sync/atomic"

	"github.com/gogpu/gputypes"
	"github.com/spaghettifunk/anima-gpu/engine/core"
	"github.com/spaghettifunk/anima-gpu/engine/renderer"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/metadata"
)

/**
 * @brief An in-memory device. Buffers live in host memory and programs are
 * kept as their descriptors; nothing is ever drawn.
 */
type Device struct {
	live  atomic.Int64
	locks atomic.Int64
}

var _ renderer.Device = (*Device)(nil)

func New() *Device {
	return &Device{}
}

func (d *Device) Name() string {
	return "software"
}

// LiveBuffers returns the number of buffers created and not yet destroyed.
func (d *Device) LiveBuffers() int64 {
	return d.live.Load()
}

// LockCount returns the number of successful buffer locks so far.
func (d *Device) LockCount() int64 {
	return d.locks.Load()
}

// bufferSize rejects element counts whose byte size does not fit a buffer.
func bufferSize(op string, elemSize, count uint32) (uint32, error) {
	total := uint64(elemSize) * uint64(count)
	if total > stdmath.MaxUint32 {
		return 0, fmt.Errorf("func %s: %d elements of %d bytes exceed the maximum buffer size: %w", op, count, elemSize, core.ErrInvalidParameter)
	}
	return uint32(total), nil
}

func (d *Device) CreateIndexBuffer(ctx context.Context, format gputypes.IndexFormat, numIndices uint32, usage metadata.GpuBufferUsage) (renderer.IndexBuffer, error) {
	core.AssertCoreThread(ctx, "Device.CreateIndexBuffer")
	size := metadata.IndexElementSize(format)
	if size == 0 {
		return nil, fmt.Errorf("func CreateIndexBuffer: unsupported index format %v: %w", format, core.ErrInvalidParameter)
	}
	total, err := bufferSize("CreateIndexBuffer", uint32(size), numIndices)
	if err != nil {
		return nil, err
	}
	buf := newBuffer(d, total, gputypes.BufferUsageIndex|gputypes.BufferUsageCopyDst|gputypes.BufferUsageCopySrc, usage)
	return &IndexBuffer{Buffer: buf, format: format, numIndices: numIndices}, nil
}

func (d *Device) CreateVertexBuffer(ctx context.Context, vertexSize, numVertices uint32, usage metadata.GpuBufferUsage) (renderer.VertexBuffer, error) {
	core.AssertCoreThread(ctx, "Device.CreateVertexBuffer")
	if vertexSize == 0 {
		return nil, fmt.Errorf("func CreateVertexBuffer: vertex size cannot be 0: %w", core.ErrInvalidParameter)
	}
	total, err := bufferSize("CreateVertexBuffer", vertexSize, numVertices)
	if err != nil {
		return nil, err
	}
	buf := newBuffer(d, total, gputypes.BufferUsageVertex|gputypes.BufferUsageCopyDst|gputypes.BufferUsageCopySrc, usage)
	return &VertexBuffer{Buffer: buf, vertexSize: vertexSize, numVertices: numVertices}, nil
}

func (d *Device) CreateParamBlockBuffer(ctx context.Context, size uint32, usage metadata.GpuBufferUsage) (renderer.ParamBlockBuffer, error) {
	core.AssertCoreThread(ctx, "Device.CreateParamBlockBuffer")
	return newBuffer(d, size, gputypes.BufferUsageUniform|gputypes.BufferUsageCopyDst, usage), nil
}

type program struct {
	desc metadata.GpuProgramDesc
}

func (p *program) Name() string { return p.desc.Name }
func (p *program) Stage() metadata.ShaderStage { return p.desc.Stage }
func (p *program) ParamDesc() *metadata.GpuParamDesc { return p.desc.ParamDesc }
func (p *program) Destroy(ctx context.Context) { core.AssertCoreThread(ctx, "GpuProgram.Destroy") }

func (d *Device) CreateProgram(ctx context.Context, desc *metadata.GpuProgramDesc) (renderer.GpuProgramCore, error) {
	core.AssertCoreThread(ctx, "Device.CreateProgram")
	if desc == nil {
		return nil, fmt.Errorf("func CreateProgram: nil descriptor: %w", core.ErrInvalidParameter)
	}
	if desc.Stage < 0 || desc.Stage >= metadata.ShaderStageCount {
		return nil, fmt.Errorf("func CreateProgram: invalid stage %d: %w", desc.Stage, core.ErrInvalidParameter)
	}
	return &program{desc: *desc}, nil
}

type state[D any] struct {
	desc D
}

func (s *state[D]) Desc() D { return s.desc }
func (s *state[D]) Destroy(ctx context.Context) { core.AssertCoreThread(ctx, "State.Destroy") }

func (d *Device) CreateBlendState(ctx context.Context, desc metadata.BlendStateDesc) (renderer.BlendStateCore, error) {
	core.AssertCoreThread(ctx, "Device.CreateBlendState")
	return &state[metadata.BlendStateDesc]{desc: desc}, nil
}

func (d *Device) CreateRasterizerState(ctx context.Context, desc metadata.RasterizerStateDesc) (renderer.RasterizerStateCore, error) {
	core.AssertCoreThread(ctx, "Device.CreateRasterizerState")
	return &state[metadata.RasterizerStateDesc]{desc: desc}, nil
}

func (d *Device) CreateDepthStencilState(ctx context.Context, desc metadata.DepthStencilStateDesc) (renderer.DepthStencilStateCore, error) {
	core.AssertCoreThread(ctx, "Device.CreateDepthStencilState")
	return &state[metadata.DepthStencilStateDesc]{desc: desc}, nil
}

/** @brief A linked set of programs. */
type Pipeline struct {
	Programs []renderer.GpuProgramCore
	Compute  bool
}

func (p *Pipeline) Destroy(ctx context.Context) {
	core.AssertCoreThread(ctx, "Pipeline.Destroy")
}

func (d *Device) LinkGraphicsPipeline(ctx context.Context, programs renderer.GraphicsProgramSet) (renderer.LinkedPipeline, error) {
	core.AssertCoreThread(ctx, "Device.LinkGraphicsPipeline")
	p := &Pipeline{}
	for slot, prog := range programs {
		if prog == nil {
			continue
		}
		want := metadata.ShaderStage(slot)
		if prog.Stage() != want {
			return nil, fmt.Errorf("func LinkGraphicsPipeline: program %s is a %s program bound as %s: %w",
				prog.Name(), prog.Stage(), want, core.ErrProgramStageMismatch)
		}
		p.Programs = append(p.Programs, prog)
	}
	return p, nil
}

func (d *Device) LinkComputePipeline(ctx context.Context, program renderer.GpuProgramCore) (renderer.LinkedPipeline, error) {
	core.AssertCoreThread(ctx, "Device.LinkComputePipeline")
	p := &Pipeline{Compute: true}
	if program == nil {
		return p, nil
	}
	if program.Stage() != metadata.ShaderStageCompute {
		return nil, fmt.Errorf("func LinkComputePipeline: program %s is a %s program: %w",
			program.Name(), program.Stage(), core.ErrProgramStageMismatch)
	}
	p.Programs = append(p.Programs, program)
	return p, nil
}
