// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import "github.com/born-ml/agents/internal/tensor"

// RawTensor is a dense row-major array.
type RawTensor = tensor.RawTensor

// Shape is the concrete shape of a RawTensor.
type Shape = tensor.Shape

// DataType is the element type of a RawTensor.
type DataType = tensor.DataType

// Supported data types.
const (
	Float32 = tensor.Float32
	Float64 = tensor.Float64
	Int32   = tensor.Int32
	Int64   = tensor.Int64
	Bool    = tensor.Bool
)

// NewRaw allocates a zero-filled tensor.
func NewRaw(shape Shape, dtype DataType) (*RawTensor, error) {
	return tensor.NewRaw(shape, dtype)
}

// FromFloat32s copies data into a float32 tensor of the given shape.
func FromFloat32s(data []float32, shape Shape) (*RawTensor, error) {
	return tensor.FromFloat32s(data, shape)
}

// FromFloat64s copies data into a float64 tensor of the given shape.
func FromFloat64s(data []float64, shape Shape) (*RawTensor, error) {
	return tensor.FromFloat64s(data, shape)
}

// Scalar creates a rank-0 tensor holding v.
func Scalar(v float64, dtype DataType) *RawTensor {
	return tensor.Scalar(v, dtype)
}

// Full creates a tensor with every element set to v.
func Full(shape Shape, v float64, dtype DataType) *RawTensor {
	return tensor.Full(shape, v, dtype)
}
