package backend

import (
	"github.com/born-ml/agents/internal/graph"
	"github.com/born-ml/agents/internal/tensor"
	. "github.com/gomlx/exceptions" //nolint:revive // Panicf reads better unqualified, as in gomlx.
)

func (k *Backend) binary(op string, fn func(a, b graph.Output) graph.Output, a, b *Tensor) *Tensor {
	k.check(op, a, b)
	return k.wrap(fn(a.out, b.out), "")
}

func (k *Backend) unary(op string, fn func(x graph.Output) graph.Output, x *Tensor) *Tensor {
	k.check(op, x)
	return k.wrap(fn(x.out), "")
}

// Add returns a + b.
func (k *Backend) Add(a, b *Tensor) *Tensor { return k.binary("Add", graph.Add, a, b) }

// Sub returns a - b.
func (k *Backend) Sub(a, b *Tensor) *Tensor { return k.binary("Sub", graph.Sub, a, b) }

// Mul returns a * b.
func (k *Backend) Mul(a, b *Tensor) *Tensor { return k.binary("Mul", graph.Mul, a, b) }

// Div returns a / b.
func (k *Backend) Div(a, b *Tensor) *Tensor { return k.binary("Div", graph.Div, a, b) }

// Maximum returns the element-wise maximum.
func (k *Backend) Maximum(a, b *Tensor) *Tensor { return k.binary("Maximum", graph.Maximum, a, b) }

// Minimum returns the element-wise minimum.
func (k *Backend) Minimum(a, b *Tensor) *Tensor { return k.binary("Minimum", graph.Minimum, a, b) }

// Greater returns the bool tensor a > b.
func (k *Backend) Greater(a, b *Tensor) *Tensor { return k.binary("Greater", graph.Greater, a, b) }

// GreaterEqual returns the bool tensor a >= b.
func (k *Backend) GreaterEqual(a, b *Tensor) *Tensor {
	return k.binary("GreaterEqual", graph.GreaterEqual, a, b)
}

// Less returns the bool tensor a < b.
func (k *Backend) Less(a, b *Tensor) *Tensor { return k.binary("Less", graph.Less, a, b) }

// LessEqual returns the bool tensor a <= b.
func (k *Backend) LessEqual(a, b *Tensor) *Tensor { return k.binary("LessEqual", graph.LessEqual, a, b) }

// Equal returns the bool tensor a == b.
func (k *Backend) Equal(a, b *Tensor) *Tensor { return k.binary("Equal", graph.Equal, a, b) }

// Neg returns -x.
func (k *Backend) Neg(x *Tensor) *Tensor { return k.unary("Neg", graph.Neg, x) }

// Exp returns e^x.
func (k *Backend) Exp(x *Tensor) *Tensor { return k.unary("Exp", graph.Exp, x) }

// Log returns the natural logarithm.
func (k *Backend) Log(x *Tensor) *Tensor { return k.unary("Log", graph.Log, x) }

// Sqrt returns the square root.
func (k *Backend) Sqrt(x *Tensor) *Tensor { return k.unary("Sqrt", graph.Sqrt, x) }

// Square returns x².
func (k *Backend) Square(x *Tensor) *Tensor { return k.unary("Square", graph.Square, x) }

// Abs returns |x|.
func (k *Backend) Abs(x *Tensor) *Tensor { return k.unary("Abs", graph.Abs, x) }

// Sign returns -1, 0 or 1.
func (k *Backend) Sign(x *Tensor) *Tensor { return k.unary("Sign", graph.Sign, x) }

// Relu returns max(x, 0).
func (k *Backend) Relu(x *Tensor) *Tensor { return k.unary("Relu", graph.Relu, x) }

// Sigmoid returns the logistic function of x.
func (k *Backend) Sigmoid(x *Tensor) *Tensor { return k.unary("Sigmoid", graph.Sigmoid, x) }

// Tanh returns the hyperbolic tangent.
func (k *Backend) Tanh(x *Tensor) *Tensor { return k.unary("Tanh", graph.Tanh, x) }

// Softplus returns log(1 + e^x).
func (k *Backend) Softplus(x *Tensor) *Tensor { return k.unary("Softplus", graph.Softplus, x) }

// StopGradient blocks gradients flowing into x.
func (k *Backend) StopGradient(x *Tensor) *Tensor {
	return k.unary("StopGradient", graph.StopGradient, x)
}

// ZerosLike returns zeros shaped like x.
func (k *Backend) ZerosLike(x *Tensor) *Tensor { return k.unary("ZerosLike", graph.ZerosLike, x) }

// OnesLike returns ones shaped like x.
func (k *Backend) OnesLike(x *Tensor) *Tensor { return k.unary("OnesLike", graph.OnesLike, x) }

// Identity returns x under a new name.
func (k *Backend) Identity(x *Tensor, name string) *Tensor {
	k.check("Identity", x)
	return k.wrap(graph.Identity(x.out, name), name)
}

// Softmax normalizes x along axis.
func (k *Backend) Softmax(x *Tensor, axis int) *Tensor {
	k.check("Softmax", x)
	return k.wrap(graph.Softmax(x.out, axis), "")
}

// Where selects onTrue where condition holds and onFalse elsewhere.
func (k *Backend) Where(condition, onTrue, onFalse *Tensor) *Tensor {
	k.check("Where", condition, onTrue, onFalse)
	return k.wrap(graph.Where(condition.out, onTrue.out, onFalse.out), "")
}

// Cast converts x to dtype.
func (k *Backend) Cast(x *Tensor, dtype tensor.DataType) *Tensor {
	k.check("Cast", x)
	return k.wrap(graph.Cast(x.out, dtype), "")
}

// Dot multiplies two matrices.
func (k *Backend) Dot(a, b *Tensor) *Tensor { return k.binary("Dot", graph.MatMul, a, b) }

// Transpose permutes the axes of x; with no axes the axes are reversed.
func (k *Backend) Transpose(x *Tensor, axes ...int) *Tensor {
	k.check("Transpose", x)
	return k.wrap(graph.Transpose(x.out, axes...), "")
}

// Reshape changes the shape of x; one dimension may be graph.Dynamic.
func (k *Backend) Reshape(x *Tensor, dims ...int) *Tensor {
	k.check("Reshape", x)
	return k.wrap(graph.Reshape(x.out, dims...), "")
}

// Sum reduces x over axes (all axes when none are given).
func (k *Backend) Sum(x *Tensor, keepDims bool, axes ...int) *Tensor {
	k.check("Sum", x)
	return k.wrap(graph.ReduceSum(x.out, keepDims, axes...), "")
}

// Mean averages x over axes (all axes when none are given).
func (k *Backend) Mean(x *Tensor, keepDims bool, axes ...int) *Tensor {
	k.check("Mean", x)
	return k.wrap(graph.ReduceMean(x.out, keepDims, axes...), "")
}

// Max takes the maximum of x over axes (all axes when none are given).
func (k *Backend) Max(x *Tensor, keepDims bool, axes ...int) *Tensor {
	k.check("Max", x)
	return k.wrap(graph.ReduceMax(x.out, keepDims, axes...), "")
}

// Clip bounds x to [minVal, maxVal].
func (k *Backend) Clip(x *Tensor, minVal, maxVal float64) *Tensor {
	k.check("Clip", x)
	if maxVal < minVal {
		maxVal = minVal
	}
	return k.wrap(graph.ClipByValue(x.out, minVal, maxVal), "")
}

// Pow raises x to a scalar power.
func (k *Backend) Pow(x *Tensor, a float64) *Tensor {
	k.check("Pow", x)
	return k.wrap(graph.Pow(x.out, k.scalarLike(x, a)), "")
}

// AddScalar returns x + c.
func (k *Backend) AddScalar(x *Tensor, c float64) *Tensor {
	k.check("AddScalar", x)
	return k.wrap(graph.Add(x.out, k.scalarLike(x, c)), "")
}

// MulScalar returns x * c.
func (k *Backend) MulScalar(x *Tensor, c float64) *Tensor {
	k.check("MulScalar", x)
	return k.wrap(graph.Mul(x.out, k.scalarLike(x, c)), "")
}

// L2Normalize divides x by its L2 norm along axis.
func (k *Backend) L2Normalize(x *Tensor, axis int) *Tensor {
	k.check("L2Normalize", x)
	sq := graph.ReduceSum(graph.Square(x.out), true, axis)
	norm := graph.Sqrt(graph.Maximum(sq, k.scalarLike(x, k.epsilon)))
	return k.wrap(graph.Div(x.out, norm), "")
}

// RandomNormal samples N(mean, stddev²) on every evaluation.
func (k *Backend) RandomNormal(shape tensor.Shape, mean, stddev float64, dtype tensor.DataType) *Tensor {
	return k.wrap(k.graph.RandomNormal(shape, dtype, mean, stddev), "")
}

// RandomUniform samples U[minVal, maxVal) on every evaluation.
func (k *Backend) RandomUniform(shape tensor.Shape, minVal, maxVal float64, dtype tensor.DataType) *Tensor {
	return k.wrap(k.graph.RandomUniform(shape, dtype, minVal, maxVal), "")
}

// TruncatedNormal samples N(mean, stddev²) truncated at two standard deviations.
func (k *Backend) TruncatedNormal(shape tensor.Shape, mean, stddev float64, dtype tensor.DataType) *Tensor {
	return k.wrap(k.graph.TruncatedNormal(shape, dtype, mean, stddev), "")
}

// Gradients returns the gradient of the scalar loss with respect to each variable.
func (k *Backend) Gradients(loss *Tensor, variables []*Tensor) []*Tensor {
	k.check("Gradients", loss)
	k.check("Gradients", variables...)
	xs := make([]graph.Output, len(variables))
	for i, v := range variables {
		xs[i] = v.out
	}
	grads := graph.Gradients(loss.out, xs...)
	result := make([]*Tensor, len(grads))
	for i, g := range grads {
		result[i] = k.wrap(g, "")
	}
	return result
}

// Update returns newValue carrying the assignment variable <- newValue, to be
// passed to Function as an update.
func (k *Backend) Update(variable, newValue *Tensor) *Tensor {
	k.check("Update", variable, newValue)
	if !variable.IsVariable() {
		Panicf("Update: %q is not a variable", variable.name)
	}
	t := k.wrap(newValue.out, variable.name+"/update")
	t.assignment = graph.Assign(variable.out, newValue.out)
	return t
}

// UpdateAdd is Update(variable, variable + delta).
func (k *Backend) UpdateAdd(variable, delta *Tensor) *Tensor {
	return k.Update(variable, k.Add(variable, delta))
}

// UpdateSub is Update(variable, variable - delta).
func (k *Backend) UpdateSub(variable, delta *Tensor) *Tensor {
	return k.Update(variable, k.Sub(variable, delta))
}
