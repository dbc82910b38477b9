package cpu

import (
	"fmt"

	"github.com/born-ml/agents/internal/tensor"
)

// Greater returns a bool tensor: a > b, with broadcasting.
func (cpu *CPUBackend) Greater(a, b *tensor.RawTensor) *tensor.RawTensor {
	return compare("greater", a, b, func(x, y float64) bool { return x > y })
}

// GreaterEqual returns a bool tensor: a >= b, with broadcasting.
func (cpu *CPUBackend) GreaterEqual(a, b *tensor.RawTensor) *tensor.RawTensor {
	return compare("greater_equal", a, b, func(x, y float64) bool { return x >= y })
}

// Less returns a bool tensor: a < b, with broadcasting.
func (cpu *CPUBackend) Less(a, b *tensor.RawTensor) *tensor.RawTensor {
	return compare("less", a, b, func(x, y float64) bool { return x < y })
}

// LessEqual returns a bool tensor: a <= b, with broadcasting.
func (cpu *CPUBackend) LessEqual(a, b *tensor.RawTensor) *tensor.RawTensor {
	return compare("less_equal", a, b, func(x, y float64) bool { return x <= y })
}

// Equal returns a bool tensor: a == b, with broadcasting.
func (cpu *CPUBackend) Equal(a, b *tensor.RawTensor) *tensor.RawTensor {
	return compare("equal", a, b, func(x, y float64) bool { return x == y })
}

func compare(op string, a, b *tensor.RawTensor, f func(x, y float64) bool) *tensor.RawTensor {
	mustSameDType(op, a, b)
	outShape, _, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("%s: %v", op, err))
	}
	result := newResult(op, outShape, tensor.Bool)
	av, bv := a.Float64s(), b.Float64s()
	ai := newBroadcastIndexer(a.Shape(), outShape)
	bi := newBroadcastIndexer(b.Shape(), outShape)
	dst := result.AsBool()
	for i := range dst {
		dst[i] = f(av[ai.index(i)], bv[bi.index(i)])
	}
	return result
}

// Where selects x where condition is true and y elsewhere, broadcasting all three.
func (cpu *CPUBackend) Where(condition, x, y *tensor.RawTensor) *tensor.RawTensor {
	if condition.DType() != tensor.Bool {
		panic(fmt.Sprintf("where: condition must be bool, got %s", condition.DType()))
	}
	mustSameDType("where", x, y)
	mustFloat("where", x)
	xyShape, _, err := tensor.BroadcastShapes(x.Shape(), y.Shape())
	if err != nil {
		panic(fmt.Sprintf("where: %v", err))
	}
	outShape, _, err := tensor.BroadcastShapes(condition.Shape(), xyShape)
	if err != nil {
		panic(fmt.Sprintf("where: %v", err))
	}

	result := newResult("where", outShape, x.DType())
	cond := condition.AsBool()
	ci := newBroadcastIndexer(condition.Shape(), outShape)
	xi := newBroadcastIndexer(x.Shape(), outShape)
	yi := newBroadcastIndexer(y.Shape(), outShape)
	switch x.DType() {
	case tensor.Float32:
		whereLoop(result.AsFloat32(), cond, x.AsFloat32(), y.AsFloat32(), ci, xi, yi)
	case tensor.Float64:
		whereLoop(result.AsFloat64(), cond, x.AsFloat64(), y.AsFloat64(), ci, xi, yi)
	}
	return result
}

func whereLoop[T float](dst []T, cond []bool, x, y []T, ci, xi, yi broadcastIndexer) {
	for i := range dst {
		if cond[ci.index(i)] {
			dst[i] = x[xi.index(i)]
		} else {
			dst[i] = y[yi.index(i)]
		}
	}
}

// Cast converts x to the given data type. Bool converts to 0/1 and any
// non-zero value converts to true.
func (cpu *CPUBackend) Cast(x *tensor.RawTensor, dtype tensor.DataType) *tensor.RawTensor {
	if x.DType() == dtype {
		return x.Clone()
	}
	result := newResult("cast", x.Shape(), dtype)
	src := x.Float64s()
	switch dtype {
	case tensor.Float32:
		dst := result.AsFloat32()
		for i, v := range src {
			dst[i] = float32(v)
		}
	case tensor.Float64:
		copy(result.AsFloat64(), src)
	case tensor.Int32:
		dst := result.AsInt32()
		for i, v := range src {
			dst[i] = int32(v)
		}
	case tensor.Int64:
		dst := result.AsInt64()
		for i, v := range src {
			dst[i] = int64(v)
		}
	case tensor.Bool:
		dst := result.AsBool()
		for i, v := range src {
			dst[i] = v != 0
		}
	default:
		panic(fmt.Sprintf("cast: unsupported dtype %s", dtype))
	}
	return result
}
