package metadata

/** @brief Programmable pipeline stages. */
type ShaderStage int

const (
	ShaderStageVertex ShaderStage = iota
	ShaderStageFragment
	ShaderStageGeometry
	ShaderStageHull
	ShaderStageDomain
	ShaderStageCompute

	ShaderStageCount = iota
)

func (s ShaderStage) String() string {
	switch s {
	case ShaderStageVertex:
		return "vertex"
	case ShaderStageFragment:
		return "fragment"
	case ShaderStageGeometry:
		return "geometry"
	case ShaderStageHull:
		return "hull"
	case ShaderStageDomain:
		return "domain"
	case ShaderStageCompute:
		return "compute"
	default:
		return "[!] invalid ShaderStage value"
	}
}

/** @brief Types of data (non-object) shader parameters. */
type GpuParamDataType int

const (
	GpuParamDataTypeUnknown GpuParamDataType = iota
	GpuParamDataTypeFloat1
	GpuParamDataTypeFloat2
	GpuParamDataTypeFloat3
	GpuParamDataTypeFloat4
	GpuParamDataTypeMatrix3x3
	GpuParamDataTypeMatrix4x4
	GpuParamDataTypeInt1
	GpuParamDataTypeInt2
	GpuParamDataTypeInt3
	GpuParamDataTypeInt4
	GpuParamDataTypeBool
	/** @brief Opaque structure, its size comes from the descriptor. */
	GpuParamDataTypeStruct
)

func (t GpuParamDataType) String() string {
	switch t {
	case GpuParamDataTypeFloat1:
		return "float"
	case GpuParamDataTypeFloat2:
		return "float2"
	case GpuParamDataTypeFloat3:
		return "float3"
	case GpuParamDataTypeFloat4:
		return "float4"
	case GpuParamDataTypeMatrix3x3:
		return "float3x3"
	case GpuParamDataTypeMatrix4x4:
		return "float4x4"
	case GpuParamDataTypeInt1:
		return "int"
	case GpuParamDataTypeInt2:
		return "int2"
	case GpuParamDataTypeInt3:
		return "int3"
	case GpuParamDataTypeInt4:
		return "int4"
	case GpuParamDataTypeBool:
		return "bool"
	case GpuParamDataTypeStruct:
		return "struct"
	default:
		return "unknown"
	}
}

// Size returns the packed size in bytes of one element of the type. Structs
// return 0, their size is declared per parameter.
func (t GpuParamDataType) Size() uint32 {
	switch t {
	case GpuParamDataTypeFloat1, GpuParamDataTypeInt1, GpuParamDataTypeBool:
		return 4
	case GpuParamDataTypeFloat2, GpuParamDataTypeInt2:
		return 8
	case GpuParamDataTypeFloat3, GpuParamDataTypeInt3:
		return 12
	case GpuParamDataTypeFloat4, GpuParamDataTypeInt4:
		return 16
	case GpuParamDataTypeMatrix3x3:
		return 36
	case GpuParamDataTypeMatrix4x4:
		return 64
	}
	return 0
}

/** @brief Types of object shader parameters. */
type GpuParamObjectType int

const (
	GpuParamObjectTypeTexture1D GpuParamObjectType = iota
	GpuParamObjectTypeTexture2D
	GpuParamObjectTypeTexture3D
	GpuParamObjectTypeTextureCube
	GpuParamObjectTypeSampler
)

/**
 * @brief Describes a single data parameter inside a parameter block.
 */
type GpuParamDataDesc struct {
	Name string
	Type GpuParamDataType
	/** @brief The parameter block slot holding the parameter. */
	ParamBlockSlot uint32
	/** @brief Offset in bytes from the start of the parameter block. */
	CpuMemOffset uint32
	/** @brief Size in bytes of one element. Defaults to Type.Size() when 0. */
	ElementSize uint32
	/** @brief Number of array elements, 1 for non-arrays. */
	ArraySize uint32
	/** @brief Distance in bytes between array elements. Defaults to ElementSize when 0. */
	ArrayElementStride uint32
}

// Stride returns the distance in bytes between two array elements.
func (d *GpuParamDataDesc) Stride() uint32 {
	if d.ArrayElementStride != 0 {
		return d.ArrayElementStride
	}
	return d.ElemSize()
}

func (d *GpuParamDataDesc) ElemSize() uint32 {
	if d.ElementSize != 0 {
		return d.ElementSize
	}
	return d.Type.Size()
}

func (d *GpuParamDataDesc) Elements() uint32 {
	if d.ArraySize == 0 {
		return 1
	}
	return d.ArraySize
}

// TotalSize is the number of bytes the parameter occupies in its block.
func (d *GpuParamDataDesc) TotalSize() uint32 {
	return d.Stride()*(d.Elements()-1) + d.ElemSize()
}

/** @brief Describes a texture or sampler parameter. */
type GpuParamObjectDesc struct {
	Name string
	Type GpuParamObjectType
	Slot uint32
}

/** @brief Describes a fixed-layout block of data parameters. */
type GpuParamBlockDesc struct {
	Name string
	Slot uint32
	/** @brief Size of the block in bytes. */
	BlockSize uint32
	/** @brief Whether the block buffer may be shared between parameter stores. */
	IsShareable bool
}

/**
 * @brief Describes every parameter of a GPU program. Shared by reference
 * between all parameter stores created for the program and never modified
 * after creation.
 */
type GpuParamDesc struct {
	Params      map[string]GpuParamDataDesc
	Textures    map[string]GpuParamObjectDesc
	Samplers    map[string]GpuParamObjectDesc
	ParamBlocks map[string]GpuParamBlockDesc
}

func NewGpuParamDesc() *GpuParamDesc {
	return &GpuParamDesc{
		Params:      make(map[string]GpuParamDataDesc),
		Textures:    make(map[string]GpuParamObjectDesc),
		Samplers:    make(map[string]GpuParamObjectDesc),
		ParamBlocks: make(map[string]GpuParamBlockDesc),
	}
}

// NumParamBlocks returns the number of block slots, the highest slot + 1.
func (d *GpuParamDesc) NumParamBlocks() uint32 {
	var n uint32
	for _, b := range d.ParamBlocks {
		n = max(n, b.Slot+1)
	}
	return n
}

func (d *GpuParamDesc) NumTextures() uint32 {
	return numObjectSlots(d.Textures)
}

func (d *GpuParamDesc) NumSamplers() uint32 {
	return numObjectSlots(d.Samplers)
}

func numObjectSlots(objects map[string]GpuParamObjectDesc) uint32 {
	var n uint32
	for _, o := range objects {
		n = max(n, o.Slot+1)
	}
	return n
}

/** @brief Configuration of an already compiled GPU program. */
type GpuProgramDesc struct {
	Name       string
	Stage      ShaderStage
	EntryPoint string
	/** @brief Compiled byte code. Compilation happens outside the engine core. */
	ByteCode []byte
	/** @brief Parameters exposed by the program. May be nil. */
	ParamDesc *GpuParamDesc
}
