package nn

import (
	"math"
	"testing"

	"github.com/born-ml/agents/internal/backend"
	"github.com/born-ml/agents/internal/graph"
	"github.com/born-ml/agents/internal/tensor"
	"github.com/gomlx/exceptions"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBackend() *backend.Backend {
	cfg := backend.DefaultConfig()
	cfg.Seed = 42
	cfg.FloatX = tensor.Float64
	return backend.New(cfg)
}

// run evaluates outputs for a single feed of the placeholder x.
func run(t *testing.T, k *backend.Backend, x *backend.Tensor, feed *tensor.RawTensor, outputs ...*backend.Tensor) []*tensor.RawTensor {
	t.Helper()
	fn := k.Function("test", []*backend.Tensor{x}, outputs, nil)
	out, err := fn.Call(feed)
	require.NoError(t, err)
	return out
}

func TestDenseBuildsOnce(t *testing.T) {
	k := newTestBackend()
	x := k.Placeholder(graph.Shape{graph.Dynamic, 3}, tensor.Float64, "x")
	dense := NewDense(DefaultDenseConfig(4).WithActivation("relu"))
	assert.False(t, dense.Built())
	assert.Empty(t, dense.Weights())

	y1 := dense.Call(k, x)
	weights := dense.Weights()
	require.Len(t, weights, 2)
	assert.Equal(t, "dense_1", dense.Name())
	assert.Equal(t, "dense_1/kernel", weights[0].Name())
	assert.Equal(t, "dense_1/bias", weights[1].Name())
	assert.Equal(t, graph.Shape{3, 4}, weights[0].Shape())
	assert.Equal(t, graph.Shape{4}, weights[1].Shape())
	assert.Equal(t, graph.Shape{graph.Dynamic, 4}, y1.Shape())

	// A second call reuses the very same weight tensors.
	numVariables := len(k.Graph().Variables())
	y2 := dense.Call(k, x)
	assert.Same(t, weights[0], dense.Weights()[0])
	assert.Same(t, weights[1], dense.Weights()[1])
	assert.Len(t, k.Graph().Variables(), numVariables)

	feed := must.M1(tensor.FromFloat64s([]float64{1, -2, 3, 0, 0.5, -1}, tensor.Shape{2, 3}))
	out := run(t, k, x, feed, y1, y2)
	assert.Equal(t, out[0].AsFloat64(), out[1].AsFloat64())
	for _, v := range out[0].AsFloat64() {
		assert.GreaterOrEqual(t, v, 0.0)
	}
}

func TestDenseComputesAffineMap(t *testing.T) {
	k := newTestBackend()
	x := k.Placeholder(graph.Shape{graph.Dynamic, 2}, tensor.Float64, "x")
	cfg := DefaultDenseConfig(1)
	cfg.KernelInitializer = Constant(2)
	cfg.BiasInitializer = Constant(0.5)
	y := NewDense(cfg).Call(k, x)

	feed := must.M1(tensor.FromFloat64s([]float64{1, 2, -1, 3}, tensor.Shape{2, 2}))
	out := run(t, k, x, feed, y)
	assert.InDeltaSlice(t, []float64{6.5, 4.5}, out[0].AsFloat64(), 1e-12)
}

func TestDenseWithoutBias(t *testing.T) {
	k := newTestBackend()
	x := k.Placeholder(graph.Shape{graph.Dynamic, 2}, tensor.Float64, "x")
	cfg := DefaultDenseConfig(3)
	cfg.UseBias = false
	dense := NewDense(cfg)
	dense.Call(k, x)
	assert.Len(t, dense.Weights(), 1)
	assert.Nil(t, dense.Bias())
}

func TestDenseMisuse(t *testing.T) {
	k := newTestBackend()
	x := k.Placeholder(graph.Shape{graph.Dynamic, 2}, tensor.Float64, "x")

	tests := map[string]func(){
		"zero units":      func() { NewDense(DefaultDenseConfig(0)) },
		"bad activation":  func() { DefaultDenseConfig(2).WithActivation("swish2") },
		"rank 1 input":    func() { NewDense(DefaultDenseConfig(2)).Call(k, k.Placeholder(graph.Shape{3}, tensor.Float64, "")) },
		"dynamic feature": func() { NewDense(DefaultDenseConfig(2)).Call(k, k.Placeholder(graph.Shape{2, graph.Dynamic}, tensor.Float64, "")) },
		"other backend": func() {
			d := NewDense(DefaultDenseConfig(2))
			d.Call(k, x)
			k2 := newTestBackend()
			d.Call(k2, k2.Placeholder(graph.Shape{graph.Dynamic, 2}, tensor.Float64, ""))
		},
		"input width changed": func() {
			d := NewDense(DefaultDenseConfig(2))
			d.Call(k, x)
			d.Call(k, k.Placeholder(graph.Shape{graph.Dynamic, 5}, tensor.Float64, ""))
		},
	}
	for name, fn := range tests {
		t.Run(name, func(t *testing.T) {
			assert.NotNil(t, exceptions.Try(fn))
		})
	}
}

func TestSequential(t *testing.T) {
	k := newTestBackend()
	x := k.Placeholder(graph.Shape{graph.Dynamic, 3}, tensor.Float64, "x")
	model := NewSequential(
		NewDense(DefaultDenseConfig(5).WithActivation("tanh")),
		NewActivationLayer(ReLU),
	)
	model.Add(NewDense(DefaultDenseConfig(2)))
	assert.Equal(t, 3, model.Len())

	y := model.Call(k, x)
	assert.Equal(t, graph.Shape{graph.Dynamic, 2}, y.Shape())
	assert.Len(t, model.Weights(), 4)
	assert.Equal(t, "sequential_1", model.Name())
	assert.Equal(t, "dense_1/kernel", model.Weights()[0].Name())
	assert.Equal(t, "dense_2/bias", model.Weights()[3].Name())
}

func TestRegularizerLosses(t *testing.T) {
	k := newTestBackend()
	x := k.Placeholder(graph.Shape{graph.Dynamic, 2}, tensor.Float64, "x")
	cfg := DefaultDenseConfig(2)
	cfg.KernelInitializer = Constant(-1)
	cfg.BiasInitializer = Constant(3)
	cfg.KernelRegularizer = L1(0.5)
	cfg.BiasRegularizer = L2(0.1)
	dense := NewDense(cfg)
	y := dense.Call(k, x)
	require.Len(t, dense.Losses(), 2)

	// 0.5 * 4 = 2 and 0.1 * (9 + 9) = 1.8
	assert.InDelta(t, 2.0, must.M1(k.Eval(dense.Losses()[0])).Item(), 1e-12)
	assert.InDelta(t, 1.8, must.M1(k.Eval(dense.Losses()[1])).Item(), 1e-12)

	mse := MSE(k, y, k.ZerosLike(y))
	total := TotalLoss(k, mse, dense)
	feed := must.M1(tensor.FromFloat64s([]float64{0, 0}, tensor.Shape{1, 2}))
	out := run(t, k, x, feed, mse, total)
	assert.InDelta(t, 9.0, out[0].Item(), 1e-12)
	assert.InDelta(t, 12.8, out[1].Item(), 1e-12)

	assert.InDelta(t, 4.8, must.M1(k.Eval(L1L2(0.5, 0.1)(k, dense.Bias()))).Item(), 1e-12)
	assert.Equal(t, 0.0, must.M1(k.Eval(Combine()(k, dense.Bias()))).Item())
}

func TestConstraintsBoundNorms(t *testing.T) {
	k := newTestBackend()
	w := k.Variable(must.M1(tensor.FromFloat64s([]float64{3, 0.3, 4, 0.4}, tensor.Shape{2, 2})), "w")
	columnNorms := func(v *tensor.RawTensor) []float64 {
		d := v.AsFloat64()
		return []float64{math.Hypot(d[0], d[2]), math.Hypot(d[1], d[3])}
	}

	maxNorm := must.M1(k.Eval(MaxNorm(2, 0)(k, w)))
	assert.InDeltaSlice(t, []float64{2, 0.5}, columnNorms(maxNorm), 1e-6)

	unit := must.M1(k.Eval(UnitNorm(0)(k, w)))
	assert.InDeltaSlice(t, []float64{1, 1}, columnNorms(unit), 1e-6)

	minMax := must.M1(k.Eval(MinMaxNorm(1, 2, 1, 0)(k, w)))
	assert.InDeltaSlice(t, []float64{2, 1}, columnNorms(minMax), 1e-6)

	halfway := must.M1(k.Eval(MinMaxNorm(1, 2, 0.5, 0)(k, w)))
	assert.InDeltaSlice(t, []float64{3.5, 0.75}, columnNorms(halfway), 1e-6)

	neg := k.Variable(must.M1(tensor.FromFloat64s([]float64{-1, 2, 0, -3}, tensor.Shape{4})), "neg")
	assert.Equal(t, []float64{0, 2, 0, 0}, must.M1(k.Eval(NonNeg()(k, neg))).AsFloat64())
}

func TestConstraintAppliesInForwardGraph(t *testing.T) {
	k := newTestBackend()
	x := k.Placeholder(graph.Shape{graph.Dynamic, 1}, tensor.Float64, "x")
	cfg := DefaultDenseConfig(1)
	cfg.KernelInitializer = Constant(-4)
	cfg.KernelConstraint = NonNeg()
	cfg.UseBias = false
	dense := NewDense(cfg)
	y := dense.Call(k, x)

	out := run(t, k, x, must.M1(tensor.FromFloat64s([]float64{5}, tensor.Shape{1, 1})), y)
	assert.Equal(t, 0.0, out[0].Item())
	// The stored variable itself is not modified.
	assert.Equal(t, -4.0, must.M1(k.GetValue(dense.Kernel())).Item())
}

func TestInitializerStatistics(t *testing.T) {
	k := newTestBackend()
	shape := tensor.Shape{200, 300}
	stats := func(init Initializer) (mean, std, maxAbs float64) {
		values := must.M1(k.Eval(init(k, shape, tensor.Float64))).AsFloat64()
		for _, v := range values {
			mean += v
			maxAbs = math.Max(maxAbs, math.Abs(v))
		}
		mean /= float64(len(values))
		for _, v := range values {
			std += (v - mean) * (v - mean)
		}
		return mean, math.Sqrt(std / float64(len(values))), maxAbs
	}

	limit := math.Sqrt(6.0 / 500)
	mean, std, maxAbs := stats(GlorotUniform())
	assert.InDelta(t, 0, mean, 0.01)
	assert.InDelta(t, limit/math.Sqrt(3), std, 0.01)
	assert.LessOrEqual(t, maxAbs, limit)

	target := math.Sqrt(2.0 / 200)
	_, std, maxAbs = stats(HeNormal())
	assert.InDelta(t, target, std, 0.01)
	assert.LessOrEqual(t, maxAbs, 2*target/truncatedStddevCorrection+1e-9)

	_, std, _ = stats(RandomNormal(0, 0.5))
	assert.InDelta(t, 0.5, std, 0.02)

	_, _, maxAbs = stats(TruncatedNormal(0, 1))
	assert.LessOrEqual(t, maxAbs, 2.0)

	mean, std, _ = stats(Constant(0.25))
	assert.Equal(t, 0.25, mean)
	assert.Equal(t, 0.0, std)
}

func TestIdentityInitializer(t *testing.T) {
	k := newTestBackend()
	v := must.M1(k.Eval(Identity(2)(k, tensor.Shape{2, 2}, tensor.Float32)))
	assert.Equal(t, tensor.Float32, v.DType())
	assert.Equal(t, []float32{2, 0, 0, 2}, v.AsFloat32())
	assert.NotNil(t, exceptions.Try(func() { Identity(1)(k, tensor.Shape{2, 3}, tensor.Float64) }))
}

func TestInitializerByName(t *testing.T) {
	for _, name := range []string{"", "zeros", "ones", "random_normal", "random_uniform",
		"truncated_normal", "glorot_uniform", "glorot_normal", "he_normal", "he_uniform",
		"lecun_normal", "lecun_uniform", "identity"} {
		init, err := InitializerByName(name)
		require.NoError(t, err, name)
		assert.NotNil(t, init, name)
	}
	_, err := InitializerByName("orthogonal")
	assert.ErrorContains(t, err, "orthogonal")
}

func TestLosses(t *testing.T) {
	k := newTestBackend()
	p := k.Constant(must.M1(tensor.FromFloat64s([]float64{1, 2, 5}, tensor.Shape{3})), "p")
	y := k.Constant(must.M1(tensor.FromFloat64s([]float64{1, 0, 2}, tensor.Shape{3})), "y")

	assert.InDelta(t, 13.0/3, must.M1(k.Eval(MSE(k, p, y))).Item(), 1e-12)
	assert.InDelta(t, 5.0/3, must.M1(k.Eval(MAE(k, p, y))).Item(), 1e-12)
	// errors 0, 2, 3 with delta 1: 0, 1.5, 2.5
	assert.InDelta(t, 4.0/3, must.M1(k.Eval(Huber(1)(k, p, y))).Item(), 1e-12)
}
