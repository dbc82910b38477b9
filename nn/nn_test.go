// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn_test

import (
	"testing"

	"github.com/born-ml/agents/backend"
	"github.com/born-ml/agents/nn"
	"github.com/born-ml/agents/optim"
	"github.com/born-ml/agents/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRegression fits y = 2x + 1 with a single Dense unit.
func TestRegression(t *testing.T) {
	cfg := backend.DefaultConfig()
	cfg.Seed = 1
	cfg.FloatX = tensor.Float64
	k := backend.New(cfg)

	x := k.Placeholder(backend.Shape{backend.Dynamic, 1}, k.Floatx(), "x")
	y := k.Placeholder(backend.Shape{backend.Dynamic, 1}, k.Floatx(), "y")
	model := nn.NewSequential(nn.NewDense(nn.DefaultDenseConfig(1)))
	loss := nn.MSE(k, model.Call(k, x), y)
	opt := optim.NewSGD(k, optim.SGDConfig{Config: optim.Config{LR: 0.1}})
	train := k.Function("train", []*backend.Tensor{x, y}, []*backend.Tensor{loss}, opt.Updates(loss, model.Weights()))

	xs, err := tensor.FromFloat64s([]float64{-1, 0, 1, 2}, tensor.Shape{4, 1})
	require.NoError(t, err)
	ys, err := tensor.FromFloat64s([]float64{-1, 1, 3, 5}, tensor.Shape{4, 1})
	require.NoError(t, err)
	var last float64
	for range 300 {
		out, err := train.Call(xs, ys)
		require.NoError(t, err)
		last = out[0].Item()
	}
	assert.Less(t, last, 1e-6)

	kernel, err := k.GetValue(model.Weights()[0])
	require.NoError(t, err)
	assert.InDelta(t, 2.0, kernel.Item(), 1e-3)
}

func TestActivationByName(t *testing.T) {
	for _, name := range []string{"relu", "tanh", "softmax", "elu", "linear"} {
		_, err := nn.ActivationByName(name)
		assert.NoError(t, err, name)
	}
	_, err := nn.ActivationByName("swish")
	assert.Error(t, err)
}
