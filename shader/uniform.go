package shader

import (
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/runtimefx/sampler"
)

// Stage identifies a shader stage.
type Stage int

// Shader stages. Runtime programs are fragment-stage only; the vertex
// stage is fixed and owned by the render context.
const (
	StageVertex Stage = iota
	StageFragment
)

// String returns a human-readable stage name.
func (s Stage) String() string {
	switch s {
	case StageVertex:
		return "vertex"
	case StageFragment:
		return "fragment"
	default:
		return "unknown"
	}
}

// UniformType is the declared primitive type of a uniform input.
type UniformType int

// Uniform types as declared by runtime program metadata. Only
// TypeFloat and TypeSampledImage are bindable; the rest are recognized
// so that binding can report them precisely.
const (
	TypeSampledImage UniformType = iota
	TypeFloat
	TypeBoolean
	TypeSignedByte
	TypeUnsignedByte
	TypeSignedShort
	TypeUnsignedShort
	TypeSignedInt
	TypeUnsignedInt
	TypeSignedInt64
	TypeUnsignedInt64
	TypeHalfFloat
	TypeDouble
)

// String returns a human-readable type name.
func (t UniformType) String() string {
	switch t {
	case TypeSampledImage:
		return "sampled_image"
	case TypeFloat:
		return "float"
	case TypeBoolean:
		return "boolean"
	case TypeSignedByte:
		return "signed_byte"
	case TypeUnsignedByte:
		return "unsigned_byte"
	case TypeSignedShort:
		return "signed_short"
	case TypeUnsignedShort:
		return "unsigned_short"
	case TypeSignedInt:
		return "signed_int"
	case TypeUnsignedInt:
		return "unsigned_int"
	case TypeSignedInt64:
		return "signed_int64"
	case TypeUnsignedInt64:
		return "unsigned_int64"
	case TypeHalfFloat:
		return "half_float"
	case TypeDouble:
		return "double"
	default:
		return "unknown"
	}
}

// Uniform describes one declared input of a runtime program.
//
// Location is an element offset into the raw uniform buffer in float
// units: a float-typed uniform's data occupies bytes
// [Location*4, Location*4+ByteSize). Ordering within a program's uniform
// list is significant; binding slots are assigned in list order.
type Uniform struct {
	Name     string
	Type     UniformType
	BitWidth int
	Location int
	ByteSize int
}

// TextureInput pairs a texture view with the sampler state to use for
// it. The i-th input feeds the i-th sampled-image uniform in program
// declaration order.
type TextureInput struct {
	Texture hal.TextureView
	Sampler sampler.Descriptor
}
