package optim

import (
	"math"
	"testing"

	"github.com/born-ml/agents/internal/backend"
	"github.com/born-ml/agents/internal/tensor"
	"github.com/gomlx/exceptions"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBackend() *backend.Backend {
	cfg := backend.DefaultConfig()
	cfg.FloatX = tensor.Float64
	return backend.New(cfg)
}

// quadratic returns a variable x = init and the loss sum(x²), whose gradient is 2x.
func quadratic(k *backend.Backend, init ...float64) (x, loss *backend.Tensor) {
	x = k.Variable(must.M1(tensor.FromFloat64s(init, tensor.Shape{len(init)})), "x")
	return x, k.Sum(k.Square(x), false)
}

// train runs steps calls of a function applying updates and returns x after each.
func train(t *testing.T, k *backend.Backend, x, loss *backend.Tensor, updates []*backend.Tensor, steps int) [][]float64 {
	t.Helper()
	fn := k.Function("train", nil, []*backend.Tensor{loss}, updates)
	var history [][]float64
	for range steps {
		_, err := fn.Call()
		require.NoError(t, err)
		history = append(history, must.M1(k.GetValue(x)).AsFloat64())
	}
	return history
}

func TestSGD(t *testing.T) {
	tests := []struct {
		name   string
		config SGDConfig
		want   [][]float64
	}{
		// grad = 2x: x <- x - 0.1 * 2x = 0.8x
		{"plain", SGDConfig{Config: Config{LR: 0.1}}, [][]float64{{1.6}, {1.28}}},
		// v1 = -0.4, x1 = 1.6; v2 = 0.9*-0.4 - 0.32 = -0.68, x2 = 0.92
		{"momentum", SGDConfig{Config: Config{LR: 0.1}, Momentum: 0.9}, [][]float64{{1.6}, {0.92}}},
		// x1 = 2 + 0.9*-0.4 - 0.4 = 1.24; g = 2.48, v2 = -0.36 - 0.248 = -0.608
		// x2 = 1.24 + 0.9*-0.608 - 0.248 = 0.4448
		{"nesterov", SGDConfig{Config: Config{LR: 0.1}, Momentum: 0.9, Nesterov: true}, [][]float64{{1.24}, {0.4448}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := newTestBackend()
			x, loss := quadratic(k, 2)
			opt := NewSGD(k, tt.config)
			got := train(t, k, x, loss, opt.Updates(loss, []*backend.Tensor{x}), 2)
			for i := range tt.want {
				assert.InDeltaSlice(t, tt.want[i], got[i], 1e-12, "step %d", i+1)
			}
			assert.Equal(t, 2, opt.Iterations())
		})
	}
}

func TestSGDDefaults(t *testing.T) {
	k := newTestBackend()
	opt := NewSGD(k, SGDConfig{})
	assert.Equal(t, 0.01, opt.LearningRate())
}

func TestAdamMatchesClosedForm(t *testing.T) {
	k := newTestBackend()
	x, loss := quadratic(k, 1, -3)
	opt := NewAdam(k, AdamConfig{Config: Config{LR: 0.05}})
	got := train(t, k, x, loss, opt.Updates(loss, []*backend.Tensor{x}), 5)

	want := []float64{1, -3}
	m := make([]float64, 2)
	v := make([]float64, 2)
	const b1, b2, eps, lr = 0.9, 0.999, 1e-8, 0.05
	for step := 1; step <= 5; step++ {
		lrT := lr * math.Sqrt(1-math.Pow(b2, float64(step))) / (1 - math.Pow(b1, float64(step)))
		for i := range want {
			g := 2 * want[i]
			m[i] = b1*m[i] + (1-b1)*g
			v[i] = b2*v[i] + (1-b2)*g*g
			want[i] -= lrT * m[i] / (math.Sqrt(v[i]) + eps)
		}
		assert.InDeltaSlice(t, want, got[step-1], 1e-9, "step %d", step)
	}
}

func TestRMSPropMatchesClosedForm(t *testing.T) {
	k := newTestBackend()
	x, loss := quadratic(k, 0.5, 4)
	opt := NewRMSProp(k, RMSPropConfig{Config: Config{LR: 0.01}})
	got := train(t, k, x, loss, opt.Updates(loss, []*backend.Tensor{x}), 3)

	want := []float64{0.5, 4}
	acc := make([]float64, 2)
	for step := range 3 {
		for i := range want {
			g := 2 * want[i]
			acc[i] = 0.9*acc[i] + 0.1*g*g
			want[i] -= 0.01 * g / (math.Sqrt(acc[i]) + 1e-7)
		}
		assert.InDeltaSlice(t, want, got[step], 1e-9, "step %d", step+1)
	}
}

func TestLearningRateVariable(t *testing.T) {
	k := newTestBackend()
	x, loss := quadratic(k, 2)
	opt := NewSGD(k, SGDConfig{Config: Config{LR: 0.1}})
	updates := opt.Updates(loss, []*backend.Tensor{x})
	fn := k.Function("train", nil, nil, updates)

	require.NoError(t, opt.SetLearningRate(0.25))
	assert.Equal(t, 0.25, opt.LearningRate())
	_, err := fn.Call()
	require.NoError(t, err)
	// x <- 2 - 0.25 * 4
	assert.InDelta(t, 1.0, must.M1(k.GetValue(x)).Item(), 1e-12)
}

func TestClipByGlobalNorm(t *testing.T) {
	k := newTestBackend()
	a := k.Constant(must.M1(tensor.FromFloat64s([]float64{3}, tensor.Shape{1})), "a")
	b := k.Constant(must.M1(tensor.FromFloat64s([]float64{4}, tensor.Shape{1})), "b")

	clipped := ClipByGlobalNorm(k, []*backend.Tensor{a, b}, 1)
	assert.InDelta(t, 0.6, must.M1(k.Eval(clipped[0])).Item(), 1e-12)
	assert.InDelta(t, 0.8, must.M1(k.Eval(clipped[1])).Item(), 1e-12)

	unchanged := ClipByGlobalNorm(k, []*backend.Tensor{a, b}, 10)
	assert.InDelta(t, 3.0, must.M1(k.Eval(unchanged[0])).Item(), 1e-12)
}

func TestMaxGradNorm(t *testing.T) {
	k := newTestBackend()
	x, loss := quadratic(k, 3, 4) // grad (6, 8), norm 10
	opt := NewSGD(k, SGDConfig{Config: Config{LR: 1, MaxGradNorm: 1}})
	got := train(t, k, x, loss, opt.Updates(loss, []*backend.Tensor{x}), 1)
	assert.InDeltaSlice(t, []float64{2.4, 3.2}, got[0], 1e-12)
}

func TestStateDictRoundTrip(t *testing.T) {
	k := newTestBackend()
	x, loss := quadratic(k, 1)
	opt := NewAdam(k, AdamConfig{})
	updates := opt.Updates(loss, []*backend.Tensor{x})
	train(t, k, x, loss, updates, 2)

	state, err := opt.StateDict()
	require.NoError(t, err)
	assert.Len(t, state, 4)
	assert.Equal(t, 2.0, state["adam_1/iterations"].Item())
	require.Contains(t, state, "adam_1/x/m")

	train(t, k, x, loss, updates, 1)
	require.NoError(t, opt.LoadStateDict(state))
	assert.Equal(t, 2, opt.Iterations())

	bad := map[string]*tensor.RawTensor{"adam_1/x/m": tensor.Full(tensor.Shape{7}, 0, tensor.Float64)}
	assert.Error(t, opt.LoadStateDict(bad))
}

func TestUpdatesTwicePanics(t *testing.T) {
	k := newTestBackend()
	x, loss := quadratic(k, 1)
	opt := NewRMSProp(k, RMSPropConfig{})
	opt.Updates(loss, []*backend.Tensor{x})
	assert.NotNil(t, exceptions.Try(func() { opt.Updates(loss, []*backend.Tensor{x}) }))
}

var (
	_ Optimizer = (*SGD)(nil)
	_ Optimizer = (*Adam)(nil)
	_ Optimizer = (*RMSProp)(nil)
)
