// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the concrete arrays fed to and returned by
// compiled graph functions.
//
// A RawTensor is a dense, row-major array of one DataType. Graph code never
// touches RawTensors directly: they enter a graph as constants, variable
// values or placeholder feeds, and come back out of backend.Function calls.
//
// # Basic Usage
//
//	x, err := tensor.FromFloat64s([]float64{1, 2, 3, 4}, tensor.Shape{2, 2})
//	if err != nil {
//	    return err
//	}
//	fmt.Println(x.Shape(), x.DType(), x.Float64s())
package tensor
