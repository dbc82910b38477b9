// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package backend

import (
	"github.com/born-ml/agents/internal/backend"
	"github.com/born-ml/agents/internal/graph"
)

// Backend issues operations against one graph.
type Backend = backend.Backend

// Config holds backend settings.
type Config = backend.Config

// Tensor is a symbolic handle on a graph output.
type Tensor = backend.Tensor

// Function is a compiled graph function.
type Function = backend.Function

// Shape is a symbolic shape; dimensions may be Dynamic.
type Shape = graph.Shape

// Dynamic marks a dimension known only when the graph runs.
const Dynamic = graph.Dynamic

// New creates a backend with its own graph.
func New(cfg Config) *Backend {
	return backend.New(cfg)
}

// DefaultConfig returns float32 with epsilon 1e-7.
func DefaultConfig() Config {
	return backend.DefaultConfig()
}
