package nn

import (
	"math"
	"testing"

	"github.com/born-ml/agents/internal/tensor"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActivations(t *testing.T) {
	input := []float64{-2, -0.5, 0, 0.5, 3}
	sig := func(v float64) float64 { return 1 / (1 + math.Exp(-v)) }

	tests := []struct {
		name string
		want func(v float64) float64
	}{
		{"linear", func(v float64) float64 { return v }},
		{"relu", func(v float64) float64 { return math.Max(0, v) }},
		{"sigmoid", sig},
		{"tanh", math.Tanh},
		{"softplus", func(v float64) float64 { return math.Log1p(math.Exp(v)) }},
		{"softsign", func(v float64) float64 { return v / (1 + math.Abs(v)) }},
		{"hard_sigmoid", func(v float64) float64 { return math.Min(1, math.Max(0, 0.2*v+0.5)) }},
		{"elu", func(v float64) float64 {
			if v > 0 {
				return v
			}
			return math.Exp(v) - 1
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := newTestBackend()
			act, err := ActivationByName(tt.name)
			require.NoError(t, err)
			x := k.Constant(must.M1(tensor.FromFloat64s(input, tensor.Shape{5})), "x")
			got := must.M1(k.Eval(act(k, x))).AsFloat64()
			for i, v := range input {
				assert.InDelta(t, tt.want(v), got[i], 1e-9, "input %g", v)
			}
		})
	}
}

func TestSoftmaxActivation(t *testing.T) {
	k := newTestBackend()
	x := k.Constant(must.M1(tensor.FromFloat64s([]float64{1, 2, 3, 0, 0, 0}, tensor.Shape{2, 3})), "x")
	got := must.M1(k.Eval(Softmax(k, x))).AsFloat64()
	assert.InDelta(t, 1.0, got[0]+got[1]+got[2], 1e-12)
	assert.InDelta(t, 1.0/3, got[4], 1e-12)
	assert.Greater(t, got[2], got[1])
}

func TestActivationByNameUnknown(t *testing.T) {
	_, err := ActivationByName("gelu_fast")
	assert.ErrorContains(t, err, "gelu_fast")

	act, err := ActivationByName("")
	require.NoError(t, err)
	assert.NotNil(t, act)
}

func TestActivationLayer(t *testing.T) {
	k := newTestBackend()
	layer := NewActivationLayer(ReLU)
	x := k.Constant(must.M1(tensor.FromFloat64s([]float64{-1, 1}, tensor.Shape{2})), "x")
	y := layer.Call(k, x)
	assert.Equal(t, []float64{0, 1}, must.M1(k.Eval(y)).AsFloat64())
	assert.Equal(t, "activation_1", layer.Name())
	assert.Empty(t, layer.Weights())
	assert.Empty(t, layer.Losses())
}
