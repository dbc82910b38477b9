package cpu

import (
	"fmt"

	"github.com/born-ml/agents/internal/tensor"
)

// Reshape returns a copy of x with a new shape holding the same number of elements.
func (cpu *CPUBackend) Reshape(x *tensor.RawTensor, shape tensor.Shape) *tensor.RawTensor {
	if shape.NumElements() != x.NumElements() {
		panic(fmt.Sprintf("reshape: cannot reshape %v (%d elements) to %v (%d elements)",
			x.Shape(), x.NumElements(), shape, shape.NumElements()))
	}
	result := newResult("reshape", shape, x.DType())
	copy(result.Data(), x.Data())
	return result
}

// Transpose permutes the axes of x. With no axes, the axes are reversed.
func (cpu *CPUBackend) Transpose(x *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	shape := x.Shape()
	ndim := len(shape)
	if len(axes) == 0 {
		axes = make([]int, ndim)
		for i := range axes {
			axes[i] = ndim - 1 - i
		}
	}
	if len(axes) != ndim {
		panic(fmt.Sprintf("transpose: got %d axes for tensor of rank %d", len(axes), ndim))
	}
	seen := make([]bool, ndim)
	perm := make([]int, ndim)
	newShape := make(tensor.Shape, ndim)
	for i, ax := range axes {
		ax = normalizeAxis("transpose", ax, ndim)
		if seen[ax] {
			panic(fmt.Sprintf("transpose: duplicate axis %d", ax))
		}
		seen[ax] = true
		perm[i] = ax
		newShape[i] = shape[ax]
	}

	result := newResult("transpose", newShape, x.DType())
	elem := x.DType().Size()
	src, dst := x.Data(), result.Data()
	inStrides := x.Strides()
	outStrides := newShape.ComputeStrides()
	for outIdx := 0; outIdx < result.NumElements(); outIdx++ {
		rem := outIdx
		inIdx := 0
		for d := 0; d < ndim; d++ {
			coord := rem / outStrides[d]
			rem %= outStrides[d]
			inIdx += coord * inStrides[perm[d]]
		}
		copy(dst[outIdx*elem:(outIdx+1)*elem], src[inIdx*elem:(inIdx+1)*elem])
	}
	return result
}

// BroadcastTo expands x to shape following NumPy broadcasting rules.
func (cpu *CPUBackend) BroadcastTo(x *tensor.RawTensor, shape tensor.Shape) *tensor.RawTensor {
	out, _, err := tensor.BroadcastShapes(x.Shape(), shape)
	if err != nil || !out.Equal(shape) {
		panic(fmt.Sprintf("broadcast_to: cannot broadcast %v to %v", x.Shape(), shape))
	}
	result := newResult("broadcast_to", shape, x.DType())
	elem := x.DType().Size()
	src, dst := x.Data(), result.Data()
	bi := newBroadcastIndexer(x.Shape(), shape)
	for i := 0; i < result.NumElements(); i++ {
		j := bi.index(i)
		copy(dst[i*elem:(i+1)*elem], src[j*elem:(j+1)*elem])
	}
	return result
}

// SumTo reduces x to target by summing over the broadcast dimensions.
// It is the adjoint of BroadcastTo.
func (cpu *CPUBackend) SumTo(x *tensor.RawTensor, target tensor.Shape) *tensor.RawTensor {
	mustFloat("sum_to", x)
	if x.Shape().Equal(target) {
		return x.Clone()
	}
	out, _, err := tensor.BroadcastShapes(target, x.Shape())
	if err != nil || !out.Equal(x.Shape()) {
		panic(fmt.Sprintf("sum_to: cannot reduce %v to %v", x.Shape(), target))
	}
	result := newResult("sum_to", target, x.DType())
	bi := newBroadcastIndexer(target, x.Shape())
	switch x.DType() {
	case tensor.Float32:
		sumToLoop(result.AsFloat32(), x.AsFloat32(), bi)
	case tensor.Float64:
		sumToLoop(result.AsFloat64(), x.AsFloat64(), bi)
	}
	return result
}

func sumToLoop[T float](dst, src []T, bi broadcastIndexer) {
	for i, v := range src {
		dst[bi.index(i)] += v
	}
}
