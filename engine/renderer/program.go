package renderer

import (
	"context"

	"github.com/spaghettifunk/anima-gpu/engine/renderer/metadata"
)

/**
 * @brief Simulation-side handle of a compiled GPU program. Immutable after
 * creation, so it can be shared freely between pipelines.
 */
type GpuProgram struct {
	CoreObject[GpuProgramCore]
	desc metadata.GpuProgramDesc
}

func NewGpuProgram(r *Renderer, desc metadata.GpuProgramDesc) *GpuProgram {
	p := &GpuProgram{desc: desc}
	p.Init(r, "program-"+desc.Stage.String(), p, func(ctx context.Context) (GpuProgramCore, error) {
		return r.Device().CreateProgram(ctx, &p.desc)
	})
	return p
}

func (p *GpuProgram) Name() string {
	return p.desc.Name
}

func (p *GpuProgram) Stage() metadata.ShaderStage {
	return p.desc.Stage
}

// ParamDesc returns the parameter descriptor of the program, nil if it has
// no parameters.
func (p *GpuProgram) ParamDesc() *metadata.GpuParamDesc {
	return p.desc.ParamDesc
}
