package optim

import (
	"github.com/born-ml/agents/internal/backend"
)

// SGD implements Stochastic Gradient Descent optimizer with optional momentum.
//
// Update rule without momentum:
//
//	param = param - lr * gradient
//
// Update rule with momentum:
//
//	velocity = momentum * velocity - lr * gradient
//	param = param + velocity
//
// With Nesterov momentum the parameter moves by
// momentum * velocity - lr * gradient instead.
type SGD struct {
	base
	momentum float64
	nesterov bool
}

// SGDConfig holds configuration for SGD optimizer.
type SGDConfig struct {
	Config
	Momentum float64 // Momentum factor (default: 0.0, range: [0, 1))
	Nesterov bool    // Use Nesterov momentum
}

// NewSGD creates a new SGD optimizer. A zero LR defaults to 0.01.
func NewSGD(k *backend.Backend, config SGDConfig) *SGD {
	if config.LR == 0 {
		config.LR = 0.01
	}
	return &SGD{
		base:     newBase(k, "sgd", config.Config),
		momentum: config.Momentum,
		nesterov: config.Nesterov,
	}
}

// Updates builds one SGD step for params.
func (s *SGD) Updates(loss *backend.Tensor, params []*backend.Tensor) []*backend.Tensor {
	k := s.k
	grads := s.gradients(loss, params)
	stepUpdate, _ := s.step()
	updates := []*backend.Tensor{stepUpdate}

	for i, p := range params {
		g := grads[i]
		lrGrad := k.Mul(g, s.lr)
		if s.momentum == 0 {
			updates = append(updates, k.UpdateSub(p, lrGrad))
			continue
		}
		velocity := s.slot(p, "velocity")
		newVelocity := k.Sub(k.MulScalar(velocity, s.momentum), lrGrad)
		updates = append(updates, k.Update(velocity, newVelocity))
		if s.nesterov {
			updates = append(updates, k.UpdateAdd(p, k.Sub(k.MulScalar(newVelocity, s.momentum), lrGrad)))
		} else {
			updates = append(updates, k.UpdateAdd(p, newVelocity))
		}
	}
	return updates
}
