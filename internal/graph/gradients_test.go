package graph

import (
	"math/rand"
	"testing"

	"github.com/born-ml/agents/internal/tensor"
	"github.com/gomlx/exceptions"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// checkGradient compares the symbolic gradient of loss(x) with central
// finite differences, perturbing each element of the variable x.
func checkGradient(t *testing.T, shape tensor.Shape, init func(i int) float64, loss func(g *Graph, x Output) Output) {
	t.Helper()
	g := New(WithSeed(3))
	data := make([]float64, shape.NumElements())
	for i := range data {
		data[i] = init(i)
	}
	x := g.VariableFromValue("x", must.M1(tensor.FromFloat64s(data, shape)))
	y := loss(g, x)
	grad := Gradients(y, x)[0]
	require.Equal(t, x.Shape(), grad.Shape())

	symbolic := must.M1(g.Eval(grad)).AsFloat64()
	const eps = 1e-6
	for i := range data {
		perturbed := append([]float64{}, data...)
		perturbed[i] = data[i] + eps
		require.NoError(t, g.SetValue(x, must.M1(tensor.FromFloat64s(perturbed, shape))))
		plus := must.M1(g.Eval(y)).Item()
		perturbed[i] = data[i] - eps
		require.NoError(t, g.SetValue(x, must.M1(tensor.FromFloat64s(perturbed, shape))))
		minus := must.M1(g.Eval(y)).Item()
		numeric := (plus - minus) / (2 * eps)
		assert.InDelta(t, numeric, symbolic[i], 1e-5, "element %d", i)
	}
}

func TestGradientsMatchFiniteDifferences(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	random := func(int) float64 { return rng.Float64()*2 - 1 }
	positive := func(int) float64 { return 0.5 + rng.Float64() }
	distinct := func(i int) float64 { return float64(i)*0.37 - 1 }

	tests := []struct {
		name  string
		shape tensor.Shape
		init  func(int) float64
		loss  func(g *Graph, x Output) Output
	}{
		{"add broadcast", tensor.Shape{3}, random, func(g *Graph, x Output) Output {
			return ReduceSum(Square(Add(constF64(g, []float64{1, 2, 3, 4, 5, 6}, 2, 3), x)), false)
		}},
		{"sub mul div", tensor.Shape{2, 2}, positive, func(g *Graph, x Output) Output {
			c := constF64(g, []float64{1, -2, 3, 0.5}, 2, 2)
			return ReduceSum(Div(Mul(Sub(c, x), x), Add(x, c)), false)
		}},
		{"div denominator broadcast", tensor.Shape{2, 1}, positive, func(g *Graph, x Output) Output {
			return ReduceSum(Div(constF64(g, []float64{1, 2, 3, 4, 5, 6}, 2, 3), x), false)
		}},
		{"exp log sqrt", tensor.Shape{4}, positive, func(_ *Graph, x Output) Output {
			return ReduceSum(Add(Exp(x), Mul(Log(x), Sqrt(x))), false)
		}},
		{"activations", tensor.Shape{5}, distinct, func(_ *Graph, x Output) Output {
			return ReduceSum(Add(Add(Sigmoid(x), Tanh(x)), Add(Softplus(x), Mul(Relu(x), x))), false)
		}},
		{"abs neg", tensor.Shape{5}, distinct, func(_ *Graph, x Output) Output {
			return ReduceSum(Neg(Abs(Mul(x, x))), false)
		}},
		{"maximum minimum", tensor.Shape{5}, distinct, func(g *Graph, x Output) Output {
			return ReduceSum(Mul(Maximum(x, g.Scalar(tensor.Float64, 0.1)), Minimum(x, g.Scalar(tensor.Float64, 0.6))), false)
		}},
		{"pow", tensor.Shape{3}, positive, func(g *Graph, x Output) Output {
			return ReduceSum(Pow(x, g.Scalar(tensor.Float64, 2.5)), false)
		}},
		{"matmul", tensor.Shape{3, 2}, random, func(g *Graph, x Output) Output {
			a := constF64(g, []float64{1, 2, 3, 4, 5, 6}, 2, 3)
			return ReduceSum(Square(MatMul(a, x)), false)
		}},
		{"matmul left", tensor.Shape{2, 3}, random, func(g *Graph, x Output) Output {
			b := constF64(g, []float64{1, -1, 0.5, 2, 3, -2}, 3, 2)
			return ReduceSum(Tanh(MatMul(x, b)), false)
		}},
		{"transpose reshape", tensor.Shape{2, 3}, random, func(g *Graph, x Output) Output {
			w := constF64(g, []float64{1, 2, 3, 4, 5, 6}, 3, 2)
			return ReduceSum(Mul(Reshape(Transpose(x), 6, 1), Reshape(w, 6, 1)), false)
		}},
		{"softmax", tensor.Shape{2, 3}, random, func(g *Graph, x Output) Output {
			w := constF64(g, []float64{1, 2, 3, -1, 0, 4}, 2, 3)
			return ReduceSum(Mul(Softmax(x, -1), w), false)
		}},
		{"reduce mean keepdims", tensor.Shape{2, 3}, random, func(_ *Graph, x Output) Output {
			return ReduceSum(Square(Sub(x, ReduceMean(x, true, 1))), false)
		}},
		{"reduce sum axis", tensor.Shape{2, 3}, random, func(_ *Graph, x Output) Output {
			return ReduceMean(Square(ReduceSum(x, false, 0)), false)
		}},
		{"reduce max", tensor.Shape{2, 3}, distinct, func(_ *Graph, x Output) Output {
			return ReduceSum(Square(ReduceMax(x, false, 1)), false)
		}},
		{"where", tensor.Shape{4}, distinct, func(g *Graph, x Output) Output {
			return ReduceSum(Where(Greater(x, g.Scalar(tensor.Float64, 0)), Square(x), Neg(x)), false)
		}},
		{"clip", tensor.Shape{5}, distinct, func(_ *Graph, x Output) Output {
			return ReduceSum(Mul(ClipByValue(x, -0.5, 0.5), x), false)
		}},
		{"x used twice", tensor.Shape{3}, random, func(_ *Graph, x Output) Output {
			return ReduceSum(Add(Mul(x, x), Exp(x)), false)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkGradient(t, tt.shape, tt.init, tt.loss)
		})
	}
}

func TestGradientsCastToFloat32(t *testing.T) {
	g := New()
	x := g.VariableFromValue("x", must.M1(tensor.FromFloat64s([]float64{1, 2, 3}, tensor.Shape{3})))
	y := Cast(ReduceSum(Square(Cast(x, tensor.Float32)), false), tensor.Float64)
	grad := must.M1(g.Eval(Gradients(y, x)[0]))
	assert.Equal(t, tensor.Float64, grad.DType())
	assert.InDeltaSlice(t, []float64{2, 4, 6}, grad.AsFloat64(), 1e-6)
}

func TestStopGradient(t *testing.T) {
	g := New()
	x := g.VariableFromValue("x", tensor.Full(tensor.Shape{2}, 3, tensor.Float64))
	// y = sum(x * stop(x)): the stopped factor is treated as a constant.
	y := ReduceSum(Mul(x, StopGradient(x)), false)
	grad := must.M1(g.Eval(Gradients(y, x)[0]))
	assert.Equal(t, []float64{3, 3}, grad.AsFloat64())
}

func TestGradientsUnconnected(t *testing.T) {
	g := New()
	x := g.VariableFromValue("x", tensor.Full(tensor.Shape{2}, 3, tensor.Float64))
	z := g.VariableFromValue("z", tensor.Full(tensor.Shape{2}, 1, tensor.Float64))
	y := ReduceSum(Square(x), false)

	grads := Gradients(y, x, z)
	assert.Equal(t, []float64{6, 6}, must.M1(g.Eval(grads[0])).AsFloat64())
	assert.Equal(t, []float64{0, 0}, must.M1(g.Eval(grads[1])).AsFloat64())
}

func TestGradientsWithPlaceholderBatch(t *testing.T) {
	g := New()
	x := g.Placeholder(tensor.Float64, Shape{Dynamic, 2}, "x")
	w := g.VariableFromValue("w", must.M1(tensor.FromFloat64s([]float64{1, 2}, tensor.Shape{2, 1})))
	b := g.VariableFromValue("b", tensor.Full(tensor.Shape{1}, 0.5, tensor.Float64))
	loss := ReduceMean(Square(Add(MatMul(x, w), b)), false)
	grads := Gradients(loss, w, b)
	fn := g.Compile([]Output{x}, grads, nil)

	// Rows [1, 0] and [0, 1]: predictions 1.5 and 2.5.
	in := must.M1(tensor.FromFloat64s([]float64{1, 0, 0, 1}, tensor.Shape{2, 2}))
	out := must.M1(fn.Call(in))
	// dL/dp = p (mean over 2 of 2p); dw = xᵀ·p, db = Σp.
	assert.InDeltaSlice(t, []float64{1.5, 2.5}, out[0].AsFloat64(), 1e-12)
	assert.InDeltaSlice(t, []float64{4}, out[1].AsFloat64(), 1e-12)
}

func TestGradientsUnknownOp(t *testing.T) {
	g := New()
	x := g.VariableFromValue("x", tensor.Scalar(1, tensor.Float64))
	y := Exp(x)
	delete(vjpRegistry, OpExp)
	defer RegisterVJP(OpExp, expVJP)
	assert.NotNil(t, exceptions.Try(func() { Gradients(y, x) }))
}
