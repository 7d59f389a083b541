package params

import (
	"encoding/binary"
	"fmt"
	stdmath "math"

	"github.com/spaghettifunk/anima-gpu/engine/core"
	"github.com/spaghettifunk/anima-gpu/engine/math"
	"github.com/spaghettifunk/anima-gpu/engine/renderer"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/metadata"
)

// DataValue lists the Go types a data parameter can be accessed as.
type DataValue interface {
	float32 | math.Vec2 | math.Vec3 | math.Vec4 | math.Mat3 | math.Mat4
}

// dataTypeOf returns the parameter type tag matching T.
func dataTypeOf[T DataValue]() metadata.GpuParamDataType {
	var zero T
	switch any(zero).(type) {
	case float32:
		return metadata.GpuParamDataTypeFloat1
	case math.Vec2:
		return metadata.GpuParamDataTypeFloat2
	case math.Vec3:
		return metadata.GpuParamDataTypeFloat3
	case math.Vec4:
		return metadata.GpuParamDataTypeFloat4
	case math.Mat3:
		return metadata.GpuParamDataTypeMatrix3x3
	case math.Mat4:
		return metadata.GpuParamDataTypeMatrix4x4
	}
	return metadata.GpuParamDataTypeUnknown
}

func toFloats[T DataValue](v T, transpose bool) []float32 {
	switch x := any(v).(type) {
	case float32:
		return []float32{x}
	case math.Vec2:
		return []float32{x.X, x.Y}
	case math.Vec3:
		return []float32{x.X, x.Y, x.Z}
	case math.Vec4:
		return []float32{x.X, x.Y, x.Z, x.W}
	case math.Mat3:
		if transpose {
			x = math.NewMat3Transposed(x)
		}
		return x.Data[:]
	case math.Mat4:
		if transpose {
			x = math.NewMat4Transposed(x)
		}
		return x.Data[:]
	}
	return nil
}

func fromFloats[T DataValue](f []float32, transpose bool) T {
	var out T
	switch p := any(&out).(type) {
	case *float32:
		*p = f[0]
	case *math.Vec2:
		*p = math.NewVec2(f[0], f[1])
	case *math.Vec3:
		*p = math.NewVec3(f[0], f[1], f[2])
	case *math.Vec4:
		*p = math.NewVec4(f[0], f[1], f[2], f[3])
	case *math.Mat3:
		copy(p.Data[:], f)
		if transpose {
			*p = math.NewMat3Transposed(*p)
		}
	case *math.Mat4:
		copy(p.Data[:], f)
		if transpose {
			*p = math.NewMat4Transposed(*p)
		}
	}
	return out
}

func isMatrix(t metadata.GpuParamDataType) bool {
	return t == metadata.GpuParamDataTypeMatrix3x3 || t == metadata.GpuParamDataTypeMatrix4x4
}

/**
 * @brief Typed handle to a data parameter. Reads and writes go straight to
 * the staged bytes shared with every other handle of the same store.
 */
type GpuDataParam[T DataValue] struct {
	data      *store
	desc      *metadata.GpuParamDataDesc
	transpose bool
}

/**
 * @brief Resolves a data parameter. Fails with ErrInvalidParameter when name
 * is unknown or its declared type is not T.
 */
func GetParam[T DataValue](p *GpuParams, name string) (GpuDataParam[T], error) {
	d, ok := p.desc.Params[name]
	if !ok {
		err := fmt.Errorf("func GetParam: no data parameter %s: %w", name, core.ErrInvalidParameter)
		core.LogError("%s", err)
		return GpuDataParam[T]{}, err
	}
	if want := dataTypeOf[T](); d.Type != want {
		err := fmt.Errorf("func GetParam: parameter %s is %s, requested %s: %w", name, d.Type, want, core.ErrInvalidParameter)
		core.LogError("%s", err)
		return GpuDataParam[T]{}, err
	}
	return GpuDataParam[T]{
		data:      p.data,
		desc:      &d,
		transpose: p.transposeMatrices && isMatrix(d.Type),
	}, nil
}

func (h GpuDataParam[T]) IsValid() bool {
	return h.data != nil && !h.data.isDestroyed()
}

func (h GpuDataParam[T]) Name() string {
	if h.desc == nil {
		return ""
	}
	return h.desc.Name
}

func (h GpuDataParam[T]) ArraySize() uint32 {
	if h.desc == nil {
		return 0
	}
	return h.desc.Elements()
}

func (h GpuDataParam[T]) Set(value T) {
	h.SetElement(0, value)
}

func (h GpuDataParam[T]) Get() T {
	return h.GetElement(0)
}

// SetElement writes one array element and marks its block dirty.
func (h GpuDataParam[T]) SetElement(index uint32, value T) {
	if !h.writable("SetElement", index) {
		return
	}
	floats := toFloats(value, h.transpose)
	size := min(uint32(len(floats))*4, h.desc.ElemSize())
	buf := make([]byte, size)
	for i := uint32(0); i < size/4; i++ {
		binary.LittleEndian.PutUint32(buf[i*4:], stdmath.Float32bits(floats[i]))
	}
	block := h.data.blocks[h.desc.ParamBlockSlot]
	block.write(h.desc.CpuMemOffset+index*h.desc.Stride(), buf)
}

func (h GpuDataParam[T]) GetElement(index uint32) T {
	var zero T
	if h.desc == nil || index >= h.desc.Elements() {
		return zero
	}
	n := len(toFloats(zero, false))
	floats := make([]float32, n)
	block := h.data.blocks[h.desc.ParamBlockSlot]
	at := h.desc.CpuMemOffset + index*h.desc.Stride()
	limit := min(uint32(n)*4, h.desc.ElemSize())
	for i := uint32(0); i < limit/4; i++ {
		floats[i] = stdmath.Float32frombits(binary.LittleEndian.Uint32(block.data[at+i*4:]))
	}
	return fromFloats[T](floats, h.transpose)
}

func (h GpuDataParam[T]) writable(op string, index uint32) bool {
	if h.desc == nil {
		core.LogWarn("%s on an unresolved parameter handle", op)
		return false
	}
	return checkWritable(h.data, h.desc.Name, op, index, h.desc.Elements())
}

func checkWritable(s *store, name, op string, index, elements uint32) bool {
	if s.isDestroyed() {
		core.LogWarn("%s on parameter %s of destroyed parameters ignored", op, name)
		return false
	}
	if index >= elements {
		core.LogWarn("%s on parameter %s: index %d out of range [0, %d)", op, name, index, elements)
		return false
	}
	return true
}

/** @brief Handle to a struct parameter, accessed as raw bytes. */
type GpuParamStruct struct {
	data *store
	desc *metadata.GpuParamDataDesc
}

func (p *GpuParams) GetStructParam(name string) (GpuParamStruct, error) {
	d, ok := p.desc.Params[name]
	if !ok || d.Type != metadata.GpuParamDataTypeStruct {
		err := fmt.Errorf("func GetStructParam: no struct parameter %s: %w", name, core.ErrInvalidParameter)
		core.LogError("%s", err)
		return GpuParamStruct{}, err
	}
	return GpuParamStruct{data: p.data, desc: &d}, nil
}

// ElementSize returns the size in bytes of one struct element.
func (h GpuParamStruct) ElementSize() uint32 {
	if h.desc == nil {
		return 0
	}
	return h.desc.ElemSize()
}

func (h GpuParamStruct) Set(value []byte) {
	h.SetElement(0, value)
}

func (h GpuParamStruct) Get() []byte {
	return h.GetElement(0)
}

// SetElement copies value into one element. Values larger than the struct
// are truncated, smaller ones leave the remaining bytes untouched.
func (h GpuParamStruct) SetElement(index uint32, value []byte) {
	if h.desc == nil || !checkWritable(h.data, h.desc.Name, "SetElement", index, h.desc.Elements()) {
		return
	}
	if uint32(len(value)) > h.desc.ElemSize() {
		core.LogWarn("struct parameter %s: %d bytes truncated to %d", h.desc.Name, len(value), h.desc.ElemSize())
		value = value[:h.desc.ElemSize()]
	}
	h.data.blocks[h.desc.ParamBlockSlot].write(h.desc.CpuMemOffset+index*h.desc.Stride(), value)
}

func (h GpuParamStruct) GetElement(index uint32) []byte {
	if h.desc == nil || index >= h.desc.Elements() {
		return nil
	}
	at := h.desc.CpuMemOffset + index*h.desc.Stride()
	block := h.data.blocks[h.desc.ParamBlockSlot]
	return append([]byte(nil), block.data[at:at+h.desc.ElemSize()]...)
}

/** @brief Handle to a texture slot. */
type GpuParamTexture struct {
	data *store
	desc metadata.GpuParamObjectDesc
}

func (p *GpuParams) GetTextureParam(name string) (GpuParamTexture, error) {
	d, ok := p.desc.Textures[name]
	if !ok {
		err := fmt.Errorf("func GetTextureParam: no texture parameter %s: %w", name, core.ErrInvalidParameter)
		core.LogError("%s", err)
		return GpuParamTexture{}, err
	}
	return GpuParamTexture{data: p.data, desc: d}, nil
}

func (h GpuParamTexture) Set(texture renderer.Texture) {
	if h.data == nil || !checkWritable(h.data, h.desc.Name, "Set", 0, 1) {
		return
	}
	h.data.textures[h.desc.Slot] = texture
}

func (h GpuParamTexture) Get() renderer.Texture {
	if h.data == nil {
		return nil
	}
	return h.data.textures[h.desc.Slot]
}

/** @brief Handle to a sampler state slot. */
type GpuParamSamplerState struct {
	data *store
	desc metadata.GpuParamObjectDesc
}

func (p *GpuParams) GetSamplerStateParam(name string) (GpuParamSamplerState, error) {
	d, ok := p.desc.Samplers[name]
	if !ok {
		err := fmt.Errorf("func GetSamplerStateParam: no sampler parameter %s: %w", name, core.ErrInvalidParameter)
		core.LogError("%s", err)
		return GpuParamSamplerState{}, err
	}
	return GpuParamSamplerState{data: p.data, desc: d}, nil
}

func (h GpuParamSamplerState) Set(sampler renderer.SamplerState) {
	if h.data == nil || !checkWritable(h.data, h.desc.Name, "Set", 0, 1) {
		return
	}
	h.data.samplers[h.desc.Slot] = sampler
}

func (h GpuParamSamplerState) Get() renderer.SamplerState {
	if h.data == nil {
		return nil
	}
	return h.data.samplers[h.desc.Slot]
}
