package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/agents/internal/tensor"
)

// Add performs element-wise addition with NumPy-style broadcasting.
func (cpu *CPUBackend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	return binaryFloat("add", a, b,
		func(x, y float32) float32 { return x + y },
		func(x, y float64) float64 { return x + y })
}

// Sub performs element-wise subtraction with broadcasting.
func (cpu *CPUBackend) Sub(a, b *tensor.RawTensor) *tensor.RawTensor {
	return binaryFloat("sub", a, b,
		func(x, y float32) float32 { return x - y },
		func(x, y float64) float64 { return x - y })
}

// Mul performs element-wise multiplication with broadcasting.
func (cpu *CPUBackend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return binaryFloat("mul", a, b,
		func(x, y float32) float32 { return x * y },
		func(x, y float64) float64 { return x * y })
}

// Div performs element-wise division with broadcasting.
func (cpu *CPUBackend) Div(a, b *tensor.RawTensor) *tensor.RawTensor {
	return binaryFloat("div", a, b,
		func(x, y float32) float32 { return x / y },
		func(x, y float64) float64 { return x / y })
}

// Maximum returns the element-wise maximum with broadcasting.
func (cpu *CPUBackend) Maximum(a, b *tensor.RawTensor) *tensor.RawTensor {
	return binaryFloat("maximum", a, b, maxOf[float32], maxOf[float64])
}

// Minimum returns the element-wise minimum with broadcasting.
func (cpu *CPUBackend) Minimum(a, b *tensor.RawTensor) *tensor.RawTensor {
	return binaryFloat("minimum", a, b, minOf[float32], minOf[float64])
}

// Pow raises a to the power b element-wise with broadcasting.
func (cpu *CPUBackend) Pow(a, b *tensor.RawTensor) *tensor.RawTensor {
	return binaryFloat("pow", a, b,
		func(x, y float32) float32 { return float32(math.Pow(float64(x), float64(y))) },
		math.Pow)
}

func maxOf[T float](x, y T) T {
	if x > y {
		return x
	}
	return y
}

func minOf[T float](x, y T) T {
	if x < y {
		return x
	}
	return y
}

// Neg negates every element.
func (cpu *CPUBackend) Neg(x *tensor.RawTensor) *tensor.RawTensor {
	return unaryFloat("neg", x, func(v float64) float64 { return -v })
}

// Exp computes e^x element-wise.
func (cpu *CPUBackend) Exp(x *tensor.RawTensor) *tensor.RawTensor {
	return unaryFloat("exp", x, math.Exp)
}

// Log computes the natural logarithm element-wise.
func (cpu *CPUBackend) Log(x *tensor.RawTensor) *tensor.RawTensor {
	return unaryFloat("log", x, math.Log)
}

// Sqrt computes the square root element-wise.
func (cpu *CPUBackend) Sqrt(x *tensor.RawTensor) *tensor.RawTensor {
	return unaryFloat("sqrt", x, math.Sqrt)
}

// Square computes x² element-wise.
func (cpu *CPUBackend) Square(x *tensor.RawTensor) *tensor.RawTensor {
	return unaryFloat("square", x, func(v float64) float64 { return v * v })
}

// Abs computes |x| element-wise.
func (cpu *CPUBackend) Abs(x *tensor.RawTensor) *tensor.RawTensor {
	return unaryFloat("abs", x, math.Abs)
}

// Sign returns -1, 0 or 1 element-wise.
func (cpu *CPUBackend) Sign(x *tensor.RawTensor) *tensor.RawTensor {
	return unaryFloat("sign", x, func(v float64) float64 {
		switch {
		case v > 0:
			return 1
		case v < 0:
			return -1
		default:
			return 0
		}
	})
}

// ReLU computes max(0, x) element-wise.
func (cpu *CPUBackend) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	return unaryFloat("relu", x, func(v float64) float64 { return math.Max(0, v) })
}

// Sigmoid computes 1 / (1 + exp(-x)) element-wise.
func (cpu *CPUBackend) Sigmoid(x *tensor.RawTensor) *tensor.RawTensor {
	return unaryFloat("sigmoid", x, sigmoid)
}

// Tanh computes the hyperbolic tangent element-wise.
func (cpu *CPUBackend) Tanh(x *tensor.RawTensor) *tensor.RawTensor {
	return unaryFloat("tanh", x, math.Tanh)
}

// Softplus computes log(1 + exp(x)) element-wise, stable for large |x|.
func (cpu *CPUBackend) Softplus(x *tensor.RawTensor) *tensor.RawTensor {
	return unaryFloat("softplus", x, func(v float64) float64 {
		if v > 30 {
			return v
		}
		return math.Log1p(math.Exp(v))
	})
}

func sigmoid(v float64) float64 {
	if v >= 0 {
		return 1 / (1 + math.Exp(-v))
	}
	e := math.Exp(v)
	return e / (1 + e)
}

// binaryFloat applies f element-wise over the broadcast of a and b.
func binaryFloat(op string, a, b *tensor.RawTensor,
	f32 func(x, y float32) float32, f64 func(x, y float64) float64,
) *tensor.RawTensor {
	mustSameDType(op, a, b)
	mustFloat(op, a)
	outShape, _, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("%s: %v", op, err))
	}
	result := newResult(op, outShape, a.DType())
	ai := newBroadcastIndexer(a.Shape(), outShape)
	bi := newBroadcastIndexer(b.Shape(), outShape)

	switch a.DType() {
	case tensor.Float32:
		binaryLoop(result.AsFloat32(), a.AsFloat32(), b.AsFloat32(), ai, bi, f32)
	case tensor.Float64:
		binaryLoop(result.AsFloat64(), a.AsFloat64(), b.AsFloat64(), ai, bi, f64)
	}
	return result
}

func binaryLoop[T float](dst, a, b []T, ai, bi broadcastIndexer, f func(x, y T) T) {
	if ai.identity && bi.identity {
		for i := range dst {
			dst[i] = f(a[i], b[i])
		}
		return
	}
	for i := range dst {
		dst[i] = f(a[ai.index(i)], b[bi.index(i)])
	}
}

// unaryFloat applies f element-wise; float32 values round-trip through float64.
func unaryFloat(op string, x *tensor.RawTensor, f func(float64) float64) *tensor.RawTensor {
	mustFloat(op, x)
	result := newResult(op, x.Shape(), x.DType())
	switch x.DType() {
	case tensor.Float32:
		src, dst := x.AsFloat32(), result.AsFloat32()
		for i, v := range src {
			dst[i] = float32(f(float64(v)))
		}
	case tensor.Float64:
		src, dst := x.AsFloat64(), result.AsFloat64()
		for i, v := range src {
			dst[i] = f(v)
		}
	}
	return result
}
