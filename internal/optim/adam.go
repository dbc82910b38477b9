package optim

import (
	"math"

	"github.com/born-ml/agents/internal/backend"
)

// Adam implements the Adam optimizer (Adaptive Moment Estimation).
//
// Adam combines momentum with per-parameter adaptive learning rates.
//
// Update rule, with t the 1-based step:
//
//	m = beta1 * m + (1 - beta1) * gradient
//	v = beta2 * v + (1 - beta2) * gradient²
//	lr_t = lr * sqrt(1 - beta2^t) / (1 - beta1^t)
//	param = param - lr_t * m / (sqrt(v) + epsilon)
//
// Reference: "Adam: A Method for Stochastic Optimization" (Kingma & Ba, 2014)
// https://arxiv.org/abs/1412.6980
type Adam struct {
	base
	beta1, beta2, epsilon float64
}

// AdamConfig holds configuration for Adam optimizer.
type AdamConfig struct {
	Config
	Beta1   float64 // Exponential decay rate for first moment (default: 0.9)
	Beta2   float64 // Exponential decay rate for second moment (default: 0.999)
	Epsilon float64 // Numerical stability constant (default: 1e-8)
}

// NewAdam creates a new Adam optimizer, filling zero fields with defaults
// (LR 0.001).
func NewAdam(k *backend.Backend, config AdamConfig) *Adam {
	if config.LR == 0 {
		config.LR = 0.001
	}
	if config.Beta1 == 0 {
		config.Beta1 = 0.9
	}
	if config.Beta2 == 0 {
		config.Beta2 = 0.999
	}
	if config.Epsilon == 0 {
		config.Epsilon = 1e-8
	}
	return &Adam{
		base:    newBase(k, "adam", config.Config),
		beta1:   config.Beta1,
		beta2:   config.Beta2,
		epsilon: config.Epsilon,
	}
}

// Updates builds one Adam step for params.
func (a *Adam) Updates(loss *backend.Tensor, params []*backend.Tensor) []*backend.Tensor {
	k := a.k
	grads := a.gradients(loss, params)
	stepUpdate, t := a.step()
	updates := []*backend.Tensor{stepUpdate}

	// beta^t = exp(t * ln(beta)); t is a graph value.
	pow := func(beta float64) *backend.Tensor { return k.Exp(k.MulScalar(t, math.Log(beta))) }
	correction := k.Div(
		k.Sqrt(k.AddScalar(k.Neg(pow(a.beta2)), 1)),
		k.AddScalar(k.Neg(pow(a.beta1)), 1))
	lrT := k.Mul(a.lr, correction)

	for i, p := range params {
		g := grads[i]
		m := a.slot(p, "m")
		v := a.slot(p, "v")
		newM := k.Add(k.MulScalar(m, a.beta1), k.MulScalar(g, 1-a.beta1))
		newV := k.Add(k.MulScalar(v, a.beta2), k.MulScalar(k.Square(g), 1-a.beta2))
		delta := k.Mul(lrT, k.Div(newM, k.AddScalar(k.Sqrt(newV), a.epsilon)))
		updates = append(updates, k.Update(m, newM), k.Update(v, newV), k.UpdateSub(p, delta))
	}
	return updates
}
