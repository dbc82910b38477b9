// Package cpu implements the pure Go kernels that execute graph operations.
//
// Kernels take and return *tensor.RawTensor and never modify their inputs.
// Misuse (shape or dtype mismatch) panics with a message prefixed by the
// kernel name; the graph executor converts those panics into errors.
package cpu

import (
	"fmt"

	"github.com/born-ml/agents/internal/parallel"
	"github.com/born-ml/agents/internal/tensor"
)

// CPUBackend executes kernels on the host CPU.
type CPUBackend struct {
	parallel parallel.Config
}

// New creates a new CPU backend using all available cores for the kernels
// that can be split (MatMul).
func New() *CPUBackend {
	return &CPUBackend{parallel: parallel.DefaultConfig()}
}

// NewWithConfig creates a CPU backend with an explicit parallelism configuration.
func NewWithConfig(cfg parallel.Config) *CPUBackend {
	return &CPUBackend{parallel: cfg}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// float is the constraint of the floating point kernels.
type float interface {
	~float32 | ~float64
}

func newResult(op string, shape tensor.Shape, dtype tensor.DataType) *tensor.RawTensor {
	result, err := tensor.NewRaw(shape, dtype)
	if err != nil {
		panic(fmt.Sprintf("%s: failed to create result tensor: %v", op, err))
	}
	return result
}

func mustFloat(op string, x *tensor.RawTensor) {
	if !x.DType().IsFloat() {
		panic(fmt.Sprintf("%s: unsupported dtype %s (only float32/float64 supported)", op, x.DType()))
	}
}

func mustSameDType(op string, a, b *tensor.RawTensor) {
	if a.DType() != b.DType() {
		panic(fmt.Sprintf("%s: dtype mismatch %s vs %s", op, a.DType(), b.DType()))
	}
}

// normalizeAxis maps a possibly negative axis into [0, rank).
func normalizeAxis(op string, axis, rank int) int {
	if axis < 0 {
		axis += rank
	}
	if axis < 0 || axis >= rank {
		panic(fmt.Sprintf("%s: axis %d out of range for tensor of rank %d", op, axis, rank))
	}
	return axis
}

// forRows runs f over [0, n) in contiguous chunks, in parallel when configured.
func (cpu *CPUBackend) forRows(n int, f func(start, end int)) {
	parallel.ForRange(n, f, cpu.parallel)
}
