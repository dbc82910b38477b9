package optim

import (
	"github.com/born-ml/agents/internal/backend"
)

// RMSProp divides the gradient by a running average of its magnitude.
//
//	a = rho * a + (1 - rho) * gradient²
//	param = param - lr * gradient / (sqrt(a) + epsilon)
type RMSProp struct {
	base
	rho, epsilon float64
}

// RMSPropConfig holds configuration for RMSProp.
type RMSPropConfig struct {
	Config
	Rho     float64 // Decay of the running average (default: 0.9)
	Epsilon float64 // Numerical stability constant (default: 1e-7)
}

// NewRMSProp creates an RMSProp optimizer, filling zero fields with defaults
// (LR 0.001).
func NewRMSProp(k *backend.Backend, config RMSPropConfig) *RMSProp {
	if config.LR == 0 {
		config.LR = 0.001
	}
	if config.Rho == 0 {
		config.Rho = 0.9
	}
	if config.Epsilon == 0 {
		config.Epsilon = 1e-7
	}
	return &RMSProp{
		base:    newBase(k, "rmsprop", config.Config),
		rho:     config.Rho,
		epsilon: config.Epsilon,
	}
}

// Updates builds one RMSProp step for params.
func (r *RMSProp) Updates(loss *backend.Tensor, params []*backend.Tensor) []*backend.Tensor {
	k := r.k
	grads := r.gradients(loss, params)
	stepUpdate, _ := r.step()
	updates := []*backend.Tensor{stepUpdate}
	for i, p := range params {
		g := grads[i]
		acc := r.slot(p, "rms")
		newAcc := k.Add(k.MulScalar(acc, r.rho), k.MulScalar(k.Square(g), 1-r.rho))
		delta := k.Mul(r.lr, k.Div(g, k.AddScalar(k.Sqrt(newAcc), r.epsilon)))
		updates = append(updates, k.Update(acc, newAcc), k.UpdateSub(p, delta))
	}
	return updates
}
