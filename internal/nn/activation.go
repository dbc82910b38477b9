package nn

import (
	"github.com/born-ml/agents/internal/backend"
	"github.com/pkg/errors"
)

// Activation is an element-wise (or, for softmax, per-row) function applied
// to a layer output.
type Activation func(k *backend.Backend, x *backend.Tensor) *backend.Tensor

// Linear returns x unchanged.
func Linear(_ *backend.Backend, x *backend.Tensor) *backend.Tensor { return x }

// ReLU applies f(x) = max(0, x).
func ReLU(k *backend.Backend, x *backend.Tensor) *backend.Tensor { return k.Relu(x) }

// Sigmoid applies f(x) = 1 / (1 + exp(-x)).
func Sigmoid(k *backend.Backend, x *backend.Tensor) *backend.Tensor { return k.Sigmoid(x) }

// Tanh applies the hyperbolic tangent.
func Tanh(k *backend.Backend, x *backend.Tensor) *backend.Tensor { return k.Tanh(x) }

// Softplus applies f(x) = log(1 + exp(x)).
func Softplus(k *backend.Backend, x *backend.Tensor) *backend.Tensor { return k.Softplus(x) }

// Softmax normalizes the last axis into a probability distribution.
func Softmax(k *backend.Backend, x *backend.Tensor) *backend.Tensor { return k.Softmax(x, -1) }

// Softsign applies f(x) = x / (1 + |x|).
func Softsign(k *backend.Backend, x *backend.Tensor) *backend.Tensor {
	return k.Div(x, k.AddScalar(k.Abs(x), 1))
}

// HardSigmoid applies the piecewise linear f(x) = clip(0.2x + 0.5, 0, 1).
func HardSigmoid(k *backend.Backend, x *backend.Tensor) *backend.Tensor {
	return k.Clip(k.AddScalar(k.MulScalar(x, 0.2), 0.5), 0, 1)
}

// ELU applies x for x > 0 and exp(x) - 1 otherwise.
func ELU(k *backend.Backend, x *backend.Tensor) *backend.Tensor {
	negative := k.AddScalar(k.Exp(k.Minimum(x, k.ZerosLike(x))), -1)
	return k.Where(k.Greater(x, k.ZerosLike(x)), x, negative)
}

// ActivationByName returns the activation with a Keras name. The empty name
// is the linear activation.
func ActivationByName(name string) (Activation, error) {
	switch name {
	case "", "linear":
		return Linear, nil
	case "relu":
		return ReLU, nil
	case "sigmoid":
		return Sigmoid, nil
	case "tanh":
		return Tanh, nil
	case "softplus":
		return Softplus, nil
	case "softmax":
		return Softmax, nil
	case "softsign":
		return Softsign, nil
	case "hard_sigmoid":
		return HardSigmoid, nil
	case "elu":
		return ELU, nil
	}
	return nil, errors.Errorf("unknown activation %q", name)
}

// ActivationLayer applies an activation as a layer without weights.
//
// Example:
//
//	act := nn.NewActivationLayer(nn.Tanh)
//	y := act.Call(k, x)
type ActivationLayer struct {
	name       string
	activation Activation
}

// NewActivationLayer wraps activation as a Layer.
func NewActivationLayer(activation Activation) *ActivationLayer {
	return &ActivationLayer{activation: activation}
}

// Name returns the layer name.
func (a *ActivationLayer) Name() string { return a.name }

// Call applies the activation.
func (a *ActivationLayer) Call(k *backend.Backend, x *backend.Tensor) *backend.Tensor {
	if a.name == "" {
		a.name = k.UniqueName("activation")
	}
	return a.activation(k, x)
}

// Weights returns nil (activations have no trainable weights).
func (a *ActivationLayer) Weights() []*backend.Tensor { return nil }

// Losses returns nil.
func (a *ActivationLayer) Losses() []*backend.Tensor { return nil }
