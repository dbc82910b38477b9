// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package optim

import (
	"github.com/born-ml/agents/internal/backend"
	"github.com/born-ml/agents/internal/optim"
)

// Optimizer builds the update operations of a training step.
type Optimizer = optim.Optimizer

// Config represents the base configuration for optimizers.
type Config = optim.Config

// SGD (Stochastic Gradient Descent)

// SGD represents the SGD optimizer with optional momentum.
type SGD = optim.SGD

// SGDConfig contains configuration for SGD optimizer.
type SGDConfig = optim.SGDConfig

// NewSGD creates a new SGD optimizer.
//
// Example:
//
//	opt := optim.NewSGD(k, optim.SGDConfig{
//	    Config:   optim.Config{LR: 0.01},
//	    Momentum: 0.9,
//	})
func NewSGD(k *backend.Backend, config SGDConfig) *SGD {
	return optim.NewSGD(k, config)
}

// Adam (Adaptive Moment Estimation)

// Adam represents the Adam optimizer.
type Adam = optim.Adam

// AdamConfig contains configuration for Adam optimizer.
type AdamConfig = optim.AdamConfig

// NewAdam creates a new Adam optimizer with bias correction.
func NewAdam(k *backend.Backend, config AdamConfig) *Adam {
	return optim.NewAdam(k, config)
}

// RMSProp

// RMSProp represents the RMSProp optimizer.
type RMSProp = optim.RMSProp

// RMSPropConfig contains configuration for RMSProp optimizer.
type RMSPropConfig = optim.RMSPropConfig

// NewRMSProp creates a new RMSProp optimizer.
func NewRMSProp(k *backend.Backend, config RMSPropConfig) *RMSProp {
	return optim.NewRMSProp(k, config)
}

// ClipByGlobalNorm scales grads so that their joint L2 norm is at most maxNorm.
func ClipByGlobalNorm(k *backend.Backend, grads []*backend.Tensor, maxNorm float64) []*backend.Tensor {
	return optim.ClipByGlobalNorm(k, grads, maxNorm)
}
