package cpu

import (
	"fmt"

	"github.com/born-ml/agents/internal/tensor"
)

// MatMul performs matrix multiplication.
// For 2D tensors: (M, K) @ (K, N) -> (M, N).
// Rows of the result are split across workers when M is large enough.
func (cpu *CPUBackend) MatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	aShape := a.Shape()
	bShape := b.Shape()

	if len(aShape) != 2 || len(bShape) != 2 {
		panic(fmt.Sprintf("matmul: only 2D tensors supported, got %dD and %dD", len(aShape), len(bShape)))
	}
	mustSameDType("matmul", a, b)
	mustFloat("matmul", a)

	m, k := aShape[0], aShape[1]
	kAlt, n := bShape[0], bShape[1]
	if k != kAlt {
		panic(fmt.Sprintf("matmul: shape mismatch [%d,%d] @ [%d,%d]", m, k, kAlt, n))
	}

	result := newResult("matmul", tensor.Shape{m, n}, a.DType())
	switch a.DType() {
	case tensor.Float32:
		matmul(cpu, result.AsFloat32(), a.AsFloat32(), b.AsFloat32(), m, k, n)
	case tensor.Float64:
		matmul(cpu, result.AsFloat64(), a.AsFloat64(), b.AsFloat64(), m, k, n)
	}
	return result
}

// matmul computes C[i,j] = sum_k A[i,k] * B[k,j] using the i-k-j loop order.
func matmul[T float](cpu *CPUBackend, c, a, b []T, m, k, n int) {
	cpu.forRows(m, func(start, end int) {
		for i := start; i < end; i++ {
			row := c[i*n : (i+1)*n]
			for kIdx := 0; kIdx < k; kIdx++ {
				aik := a[i*k+kIdx]
				if aik == 0 {
					continue
				}
				bRow := b[kIdx*n : (kIdx+1)*n]
				for j, bv := range bRow {
					row[j] += aik * bv
				}
			}
		}
	})
}
