package tensor

import (
	"fmt"
	"strings"
	"unsafe"
)

// RawTensor is a dense, row-major array with runtime type information.
//
// Views returned by the As* accessors alias the underlying buffer.
type RawTensor struct {
	data   []byte
	shape  Shape
	stride []int
	dtype  DataType
}

// NewRaw creates a new RawTensor with the given shape and type.
// Memory is zero-initialized.
func NewRaw(shape Shape, dtype DataType) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	return &RawTensor{
		data:   make([]byte, shape.NumElements()*dtype.Size()),
		shape:  shape.Clone(),
		stride: shape.ComputeStrides(),
		dtype:  dtype,
	}, nil
}

// MustNewRaw is like NewRaw but panics on an invalid shape.
func MustNewRaw(shape Shape, dtype DataType) *RawTensor {
	r, err := NewRaw(shape, dtype)
	if err != nil {
		panic(err)
	}
	return r
}

// FromFloat32s creates a float32 tensor, copying data.
func FromFloat32s(data []float32, shape Shape) (*RawTensor, error) {
	if shape.NumElements() != len(data) {
		return nil, fmt.Errorf("shape %v requires %d elements, but got %d", shape, shape.NumElements(), len(data))
	}
	r, err := NewRaw(shape, Float32)
	if err != nil {
		return nil, err
	}
	copy(r.AsFloat32(), data)
	return r, nil
}

// FromFloat64s creates a float64 tensor, copying data.
func FromFloat64s(data []float64, shape Shape) (*RawTensor, error) {
	if shape.NumElements() != len(data) {
		return nil, fmt.Errorf("shape %v requires %d elements, but got %d", shape, shape.NumElements(), len(data))
	}
	r, err := NewRaw(shape, Float64)
	if err != nil {
		return nil, err
	}
	copy(r.AsFloat64(), data)
	return r, nil
}

// Scalar creates a 0-D tensor holding v converted to dtype.
func Scalar(v float64, dtype DataType) *RawTensor {
	return Full(Shape{}, v, dtype)
}

// Full creates a tensor of the given shape filled with v converted to dtype.
func Full(shape Shape, v float64, dtype DataType) *RawTensor {
	r := MustNewRaw(shape, dtype)
	r.Fill(v)
	return r
}

// Fill sets every element to v converted to the tensor's dtype.
func (r *RawTensor) Fill(v float64) {
	switch r.dtype {
	case Float32:
		data := r.AsFloat32()
		for i := range data {
			data[i] = float32(v)
		}
	case Float64:
		data := r.AsFloat64()
		for i := range data {
			data[i] = v
		}
	case Int32:
		data := r.AsInt32()
		for i := range data {
			data[i] = int32(v)
		}
	case Int64:
		data := r.AsInt64()
		for i := range data {
			data[i] = int64(v)
		}
	case Bool:
		data := r.AsBool()
		for i := range data {
			data[i] = v != 0
		}
	}
}

// Shape returns the tensor's shape.
func (r *RawTensor) Shape() Shape {
	return r.shape
}

// Strides returns the tensor's memory strides.
func (r *RawTensor) Strides() []int {
	return r.stride
}

// DType returns the tensor's data type.
func (r *RawTensor) DType() DataType {
	return r.dtype
}

// NumElements returns the total number of elements.
func (r *RawTensor) NumElements() int {
	return r.shape.NumElements()
}

// ByteSize returns the total memory size in bytes.
func (r *RawTensor) ByteSize() int {
	return len(r.data)
}

// Data returns the raw byte slice.
// WARNING: Direct access to underlying memory. Use with caution.
func (r *RawTensor) Data() []byte {
	return r.data
}

// AsFloat32 interprets the data as []float32.
// Panics if the tensor's dtype is not Float32.
func (r *RawTensor) AsFloat32() []float32 {
	r.mustBe(Float32)
	//nolint:gosec // unsafe.Slice for zero-copy access, bounds given by NumElements()
	return unsafe.Slice((*float32)(unsafe.Pointer(&r.data[0])), r.NumElements())
}

// AsFloat64 interprets the data as []float64.
// Panics if the tensor's dtype is not Float64.
func (r *RawTensor) AsFloat64() []float64 {
	r.mustBe(Float64)
	//nolint:gosec // unsafe.Slice for zero-copy access, bounds given by NumElements()
	return unsafe.Slice((*float64)(unsafe.Pointer(&r.data[0])), r.NumElements())
}

// AsInt32 interprets the data as []int32.
// Panics if the tensor's dtype is not Int32.
func (r *RawTensor) AsInt32() []int32 {
	r.mustBe(Int32)
	//nolint:gosec // unsafe.Slice for zero-copy access, bounds given by NumElements()
	return unsafe.Slice((*int32)(unsafe.Pointer(&r.data[0])), r.NumElements())
}

// AsInt64 interprets the data as []int64.
// Panics if the tensor's dtype is not Int64.
func (r *RawTensor) AsInt64() []int64 {
	r.mustBe(Int64)
	//nolint:gosec // unsafe.Slice for zero-copy access, bounds given by NumElements()
	return unsafe.Slice((*int64)(unsafe.Pointer(&r.data[0])), r.NumElements())
}

// AsBool interprets the data as []bool.
// Panics if the tensor's dtype is not Bool.
func (r *RawTensor) AsBool() []bool {
	r.mustBe(Bool)
	//nolint:gosec // unsafe.Slice for zero-copy access, bounds given by NumElements()
	return unsafe.Slice((*bool)(unsafe.Pointer(&r.data[0])), r.NumElements())
}

func (r *RawTensor) mustBe(dtype DataType) {
	if r.dtype != dtype {
		panic(fmt.Sprintf("tensor dtype is %s, not %s", r.dtype, dtype))
	}
}

// Float64s returns a converted copy of the elements as float64.
func (r *RawTensor) Float64s() []float64 {
	out := make([]float64, r.NumElements())
	switch r.dtype {
	case Float32:
		for i, v := range r.AsFloat32() {
			out[i] = float64(v)
		}
	case Float64:
		copy(out, r.AsFloat64())
	case Int32:
		for i, v := range r.AsInt32() {
			out[i] = float64(v)
		}
	case Int64:
		for i, v := range r.AsInt64() {
			out[i] = float64(v)
		}
	case Bool:
		for i, v := range r.AsBool() {
			if v {
				out[i] = 1
			}
		}
	}
	return out
}

// Float32s returns a converted copy of the elements as float32.
func (r *RawTensor) Float32s() []float32 {
	if r.dtype == Float32 {
		return append([]float32(nil), r.AsFloat32()...)
	}
	f64 := r.Float64s()
	out := make([]float32, len(f64))
	for i, v := range f64 {
		out[i] = float32(v)
	}
	return out
}

// Item returns the value of a single-element tensor as float64.
// Panics if the tensor holds more than one element.
func (r *RawTensor) Item() float64 {
	if r.NumElements() != 1 {
		panic(fmt.Sprintf("Item() only works for single-element tensors, got shape %v", r.shape))
	}
	return r.Float64s()[0]
}

// Clone creates a deep copy of the tensor.
func (r *RawTensor) Clone() *RawTensor {
	return &RawTensor{
		data:   append([]byte(nil), r.data...),
		shape:  r.shape.Clone(),
		stride: append([]int(nil), r.stride...),
		dtype:  r.dtype,
	}
}

// Reshape returns a view with a new shape sharing the same buffer.
func (r *RawTensor) Reshape(shape Shape) (*RawTensor, error) {
	if shape.NumElements() != r.NumElements() {
		return nil, fmt.Errorf("cannot reshape %v (%d elements) into %v", r.shape, r.NumElements(), shape)
	}
	return &RawTensor{
		data:   r.data,
		shape:  shape.Clone(),
		stride: shape.ComputeStrides(),
		dtype:  r.dtype,
	}, nil
}

// String returns a human-readable representation of the tensor.
func (r *RawTensor) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Tensor[%s]%v", r.dtype, []int(r.shape))
	if r.NumElements() <= 16 {
		fmt.Fprintf(&sb, " %v", r.Float64s())
	}
	return sb.String()
}
