/*
Small driver that uploads a quad through the engine, reads it back and
builds a pipeline with parameters for it.
*/
package main

import (
	"context"
	"encoding/binary"
	"flag"
	stdmath "math"
	"os"
	"os/signal"
	"syscall"

	"github.com/gogpu/gputypes"
	"github.com/spaghettifunk/anima-gpu/engine/core"
	"github.com/spaghettifunk/anima-gpu/engine/math"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/params"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/pipeline"
	"github.com/spaghettifunk/anima-gpu/engine/resources"
	"github.com/spaghettifunk/anima-gpu/engine/systems"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML configuration file")
	watch := flag.Bool("watch", false, "reload the configuration when the file changes and wait for a signal")
	flag.Parse()

	cfg := core.DefaultConfig()
	if *configPath != "" {
		c, err := core.LoadConfig(*configPath)
		if err != nil {
			core.LogFatal("%s", err)
		}
		cfg = c
	}

	sm, err := systems.NewSystemManager(cfg)
	if err != nil {
		core.LogFatal("%s", err)
	}
	ctx := context.Background()

	if err := run(ctx, sm); err != nil {
		core.LogError("%s", err)
	}

	if *watch && *configPath != "" {
		cw, err := core.WatchConfig(*configPath, sm.Reconfigure)
		if err != nil {
			core.LogError("%s", err)
		} else {
			defer cw.Close()
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
			core.LogInfo("watching %s, press ctrl+c to exit", *configPath)
			<-sigCh
		}
	}

	if err := sm.Shutdown(ctx); err != nil {
		core.LogError("%s", err)
	}
}

func run(ctx context.Context, sm *systems.SystemManager) error {
	quad := resources.NewMeshData(4, gputypes.IndexFormatUint16)
	quad.BeginDesc()
	quad.AddVertElem(gputypes.VertexFormatFloat32x3, metadata.VertexSemanticPosition, 0, 0)
	quad.AddSubMesh(6, gputypes.PrimitiveTopologyTriangleList)
	if err := quad.EndDesc(); err != nil {
		return err
	}
	if err := quad.SetIndices16(0, []uint16{0, 1, 2, 2, 1, 3}); err != nil {
		return err
	}
	var positions []byte
	for _, f := range []float32{-1, -1, 0, 1, -1, 0, -1, 1, 0, 1, 1, 0} {
		positions = binary.LittleEndian.AppendUint32(positions, stdmath.Float32bits(f))
	}
	if err := quad.SetVertexElementData(metadata.VertexSemanticPosition, 0, 0, positions); err != nil {
		return err
	}

	m := sm.MeshSystem().Create(quad)
	mc, err := m.BlockUntilCoreInitialized(ctx)
	if err != nil {
		return err
	}
	readBack, err := m.AllocateSubresourceBuffer(0).Wait(ctx)
	if err != nil {
		return err
	}
	if _, err := m.ReadSubresource(0, readBack).Wait(ctx); err != nil {
		return err
	}
	indices, err := readBack.Indices16(0)
	if err != nil {
		return err
	}
	core.LogInfo("mesh %s read back indices %v, bounds %v", m.DebugName(), indices, mc.Bounds())

	desc := metadata.NewGpuParamDesc()
	desc.ParamBlocks["PerObject"] = metadata.GpuParamBlockDesc{Name: "PerObject", Slot: 0, BlockSize: 80, IsShareable: true}
	desc.Params["gWorld"] = metadata.GpuParamDataDesc{Name: "gWorld", Type: metadata.GpuParamDataTypeMatrix4x4}
	desc.Params["gTint"] = metadata.GpuParamDataDesc{Name: "gTint", Type: metadata.GpuParamDataTypeFloat4, CpuMemOffset: 64}

	rs := sm.RenderStateSystem()
	vs := rs.CreateProgram(metadata.GpuProgramDesc{Name: "quad_vs", Stage: metadata.ShaderStageVertex, EntryPoint: "main", ParamDesc: desc})
	fs := rs.CreateProgram(metadata.GpuProgramDesc{Name: "quad_fs", Stage: metadata.ShaderStageFragment, EntryPoint: "main"})
	state := rs.CreateGraphicsPipeline(pipeline.GraphicsPipelineStateDesc{
		VertexProgram:   vs,
		FragmentProgram: fs,
		BlendState:      rs.BlendState(metadata.PremultipliedBlendStateDesc()),
	})
	if _, err := state.BlockUntilCoreInitialized(ctx); err != nil {
		return err
	}

	gp, err := state.ParamInfo().NewGpuParams(metadata.ShaderStageVertex, sm.Config().Params.TransposeMatrices)
	if err != nil {
		return err
	}
	defer gp.Destroy()
	world, err := params.GetParam[math.Mat4](gp, "gWorld")
	if err != nil {
		return err
	}
	tint, err := params.GetParam[math.Vec4](gp, "gTint")
	if err != nil {
		return err
	}
	world.Set(math.NewMat4Identity())
	tint.Set(math.NewVec4(1, 0.5, 0.25, 1))

	r := sm.Renderer()
	if _, err := gp.CreateParamBlockBuffers(r, metadata.GpuBufferUsageDynamic).Wait(ctx); err != nil {
		return err
	}
	if _, err := gp.Bind(r).Wait(ctx); err != nil {
		return err
	}
	core.LogInfo("pipeline %s bound, tint %v, %d buffer locks", state.DebugName(), tint.Get(), sm.Device().LockCount())
	return nil
}
