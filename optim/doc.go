// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides graph-mode optimizers.
//
// An optimizer does not change weights itself: Updates builds the update
// operations of one step, to be compiled into a training function together
// with the loss.
//
// # Basic Usage
//
//	opt := optim.NewAdam(k, optim.AdamConfig{Config: optim.Config{LR: 3e-4, MaxGradNorm: 0.5}})
//	updates := opt.Updates(loss, model.Weights())
//	train := k.Function("train", []*backend.Tensor{x, y}, []*backend.Tensor{loss}, updates)
//
//	for _, batch := range batches {
//	    if _, err := train.Call(batch.X, batch.Y); err != nil {
//	        return err
//	    }
//	}
//
// Update rules follow Keras: SGD with optional (Nesterov) momentum, Adam
// and RMSProp. All optimizer state lives in graph variables and can be
// saved with StateDict.
package optim
