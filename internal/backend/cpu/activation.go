package cpu

import (
	"math"

	"github.com/born-ml/agents/internal/tensor"
)

// Softmax computes softmax along the specified axis.
// Softmax(x_i) = exp(x_i - max) / sum(exp(x_j - max)) for all j in the axis.
func (cpu *CPUBackend) Softmax(x *tensor.RawTensor, axis int) *tensor.RawTensor {
	mustFloat("softmax", x)
	shape := x.Shape()
	axis = normalizeAxis("softmax", axis, len(shape))

	result := newResult("softmax", shape, x.DType())
	switch x.DType() {
	case tensor.Float32:
		softmax(result.AsFloat32(), x.AsFloat32(), shape, axis)
	case tensor.Float64:
		softmax(result.AsFloat64(), x.AsFloat64(), shape, axis)
	}
	return result
}

func softmax[T float](dst, src []T, shape tensor.Shape, axis int) {
	strides := shape.ComputeStrides()
	dimSize := shape[axis]
	dimStride := strides[axis]

	// Number of "rows" (groups of elements that share a softmax).
	numRows := len(src) / dimSize
	for row := 0; row < numRows; row++ {
		// Base offset of this row: outer index * (dimSize*dimStride) + inner index.
		outer := row / dimStride
		inner := row % dimStride
		base := outer*dimSize*dimStride + inner

		maxVal := math.Inf(-1)
		for i := 0; i < dimSize; i++ {
			maxVal = math.Max(maxVal, float64(src[base+i*dimStride]))
		}
		var sum float64
		for i := 0; i < dimSize; i++ {
			idx := base + i*dimStride
			e := math.Exp(float64(src[idx]) - maxVal)
			dst[idx] = T(e)
			sum += e
		}
		for i := 0; i < dimSize; i++ {
			idx := base + i*dimStride
			dst[idx] = T(float64(dst[idx]) / sum)
		}
	}
}
