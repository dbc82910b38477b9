package cpu

import (
	"fmt"
	"math"
	"sort"

	"github.com/born-ml/agents/internal/tensor"
)

type reduceKind int

const (
	reduceSum reduceKind = iota
	reduceMean
	reduceMax
)

func (k reduceKind) String() string {
	switch k {
	case reduceSum:
		return "reduce_sum"
	case reduceMean:
		return "reduce_mean"
	default:
		return "reduce_max"
	}
}

// ReduceSum sums x over axes. No axes reduces over every axis.
func (cpu *CPUBackend) ReduceSum(x *tensor.RawTensor, axes []int, keepDims bool) *tensor.RawTensor {
	return reduce(x, axes, keepDims, reduceSum)
}

// ReduceMean averages x over axes. No axes reduces over every axis.
func (cpu *CPUBackend) ReduceMean(x *tensor.RawTensor, axes []int, keepDims bool) *tensor.RawTensor {
	return reduce(x, axes, keepDims, reduceMean)
}

// ReduceMax takes the maximum of x over axes. No axes reduces over every axis.
func (cpu *CPUBackend) ReduceMax(x *tensor.RawTensor, axes []int, keepDims bool) *tensor.RawTensor {
	return reduce(x, axes, keepDims, reduceMax)
}

// ReducedShape returns the shape of x reduced over axes, and the normalized,
// sorted, de-duplicated axes.
func ReducedShape(shape tensor.Shape, axes []int, keepDims bool) (tensor.Shape, []int) {
	ndim := len(shape)
	reduced := make([]bool, ndim)
	if len(axes) == 0 {
		for i := range reduced {
			reduced[i] = true
		}
	}
	for _, ax := range axes {
		reduced[normalizeAxis("reduce", ax, ndim)] = true
	}
	out := make(tensor.Shape, 0, ndim)
	norm := make([]int, 0, ndim)
	for i, dim := range shape {
		switch {
		case !reduced[i]:
			out = append(out, dim)
		case keepDims:
			out = append(out, 1)
		}
		if reduced[i] {
			norm = append(norm, i)
		}
	}
	sort.Ints(norm)
	return out, norm
}

func reduce(x *tensor.RawTensor, axes []int, keepDims bool, kind reduceKind) *tensor.RawTensor {
	op := kind.String()
	mustFloat(op, x)
	shape := x.Shape()
	outShape, norm := ReducedShape(shape, axes, keepDims)

	// keptShape has the rank of x with reduced axes set to 1, so each input
	// element maps to its output slot through broadcast strides.
	keptShape := shape.Clone()
	count := 1
	for _, ax := range norm {
		count *= keptShape[ax]
		keptShape[ax] = 1
	}
	if count == 0 {
		panic(fmt.Sprintf("%s: cannot reduce over an empty axis", op))
	}

	result := newResult(op, outShape, x.DType())
	bi := newBroadcastIndexer(keptShape, shape)
	switch x.DType() {
	case tensor.Float32:
		reduceLoop(result.AsFloat32(), x.AsFloat32(), bi, kind, count)
	case tensor.Float64:
		reduceLoop(result.AsFloat64(), x.AsFloat64(), bi, kind, count)
	}
	return result
}

func reduceLoop[T float](dst, src []T, bi broadcastIndexer, kind reduceKind, count int) {
	if kind == reduceMax {
		for i := range dst {
			dst[i] = T(math.Inf(-1))
		}
		for i, v := range src {
			j := bi.index(i)
			if v > dst[j] {
				dst[j] = v
			}
		}
		return
	}
	for i, v := range src {
		dst[bi.index(i)] += v
	}
	if kind == reduceMean {
		n := T(count)
		for i := range dst {
			dst[i] /= n
		}
	}
}
