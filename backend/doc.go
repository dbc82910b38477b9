// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package backend is the Keras-style backend: a Backend issues primitive
// operations against one computation graph and returns symbolic Tensors.
//
// Nothing is computed while the graph is built. Values are produced by
// compiling a Function from input placeholders to outputs, optionally with
// variable updates, and calling it with concrete tensors.
//
// # Basic Usage
//
//	k := backend.New(backend.DefaultConfig())
//	x := k.Placeholder(backend.Shape{backend.Dynamic, 3}, k.Floatx(), "x")
//	w := k.VariableFrom(k.RandomNormal(tensor.Shape{3, 1}, 0, 0.1, k.Floatx()), "w")
//	y := k.Dot(x, w)
//
//	predict := k.Function("predict", []*backend.Tensor{x}, []*backend.Tensor{y}, nil)
//	out, err := predict.Call(batch)
//
// Misuse while building (mismatched shapes, tensors of another backend)
// panics; Function.Call reports errors.
package backend
