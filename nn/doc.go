// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides Keras-style layers and the pieces they are built from.
//
// # Overview
//
// This package contains:
//   - Layers: Dense, ActivationLayer, Sequential
//   - Activations: Linear, ReLU, Sigmoid, Tanh, Softplus, Softmax, Softsign, HardSigmoid, ELU
//   - Initializers: Zeros, Ones, Constant, random, VarianceScaling and the Glorot/He/Lecun families
//   - Constraints: MaxNorm, NonNeg, UnitNorm, MinMaxNorm
//   - Regularizers: L1, L2, L1L2
//   - Losses: MSE, MAE, Huber
//
// # Basic Usage
//
//	k := backend.New(backend.DefaultConfig())
//	x := k.Placeholder(backend.Shape{backend.Dynamic, 4}, k.Floatx(), "obs")
//
//	model := nn.NewSequential(
//	    nn.NewDense(nn.DefaultDenseConfig(64).WithActivation("relu")),
//	    nn.NewDense(nn.DefaultDenseConfig(2)),
//	)
//	y := model.Call(k, x)
//
// A layer creates its weights the first time it is called and reuses them on
// every later call.
package nn
