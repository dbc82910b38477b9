package cpu

import (
	"math/rand"

	"github.com/born-ml/agents/internal/tensor"
)

// RandomNormal samples a tensor from N(mean, stddev²).
func (cpu *CPUBackend) RandomNormal(rng *rand.Rand, shape tensor.Shape, dtype tensor.DataType, mean, stddev float64) *tensor.RawTensor {
	return sample("random_normal", shape, dtype, func() float64 {
		return mean + stddev*rng.NormFloat64()
	})
}

// RandomUniform samples a tensor from U[minVal, maxVal).
func (cpu *CPUBackend) RandomUniform(rng *rand.Rand, shape tensor.Shape, dtype tensor.DataType, minVal, maxVal float64) *tensor.RawTensor {
	return sample("random_uniform", shape, dtype, func() float64 {
		return minVal + (maxVal-minVal)*rng.Float64()
	})
}

// TruncatedNormal samples N(mean, stddev²), redrawing values further than two
// standard deviations from the mean.
func (cpu *CPUBackend) TruncatedNormal(rng *rand.Rand, shape tensor.Shape, dtype tensor.DataType, mean, stddev float64) *tensor.RawTensor {
	return sample("truncated_normal", shape, dtype, func() float64 {
		for {
			v := rng.NormFloat64()
			if v >= -2 && v <= 2 {
				return mean + stddev*v
			}
		}
	})
}

func sample(op string, shape tensor.Shape, dtype tensor.DataType, next func() float64) *tensor.RawTensor {
	result := newResult(op, shape, dtype)
	mustFloat(op, result)
	switch dtype {
	case tensor.Float32:
		dst := result.AsFloat32()
		for i := range dst {
			dst[i] = float32(next())
		}
	case tensor.Float64:
		dst := result.AsFloat64()
		for i := range dst {
			dst[i] = next()
		}
	}
	return result
}
