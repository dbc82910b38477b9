package nn

import (
	"math"

	"github.com/born-ml/agents/internal/backend"
	"github.com/born-ml/agents/internal/tensor"
	. "github.com/gomlx/exceptions" //nolint:revive // Panicf reads better unqualified, as in gomlx.
	"github.com/pkg/errors"
)

// Initializer builds the initial value of a weight. The returned tensor is
// evaluated once, when the weight is created.
type Initializer func(k *backend.Backend, shape tensor.Shape, dtype tensor.DataType) *backend.Tensor

// Zeros initializes weights to 0.
func Zeros() Initializer {
	return Constant(0)
}

// Ones initializes weights to 1.
func Ones() Initializer {
	return Constant(1)
}

// Constant initializes every element to value.
func Constant(value float64) Initializer {
	return func(k *backend.Backend, shape tensor.Shape, dtype tensor.DataType) *backend.Tensor {
		return k.Constant(tensor.Full(shape, value, dtype), "")
	}
}

// RandomNormal draws from N(mean, stddev²).
func RandomNormal(mean, stddev float64) Initializer {
	return func(k *backend.Backend, shape tensor.Shape, dtype tensor.DataType) *backend.Tensor {
		return k.RandomNormal(shape, mean, stddev, dtype)
	}
}

// RandomUniform draws from U[minVal, maxVal).
func RandomUniform(minVal, maxVal float64) Initializer {
	return func(k *backend.Backend, shape tensor.Shape, dtype tensor.DataType) *backend.Tensor {
		return k.RandomUniform(shape, minVal, maxVal, dtype)
	}
}

// TruncatedNormal draws from N(mean, stddev²), redrawing values more than two
// standard deviations away from the mean.
func TruncatedNormal(mean, stddev float64) Initializer {
	return func(k *backend.Backend, shape tensor.Shape, dtype tensor.DataType) *backend.Tensor {
		return k.TruncatedNormal(shape, mean, stddev, dtype)
	}
}

// FanMode selects which fan VarianceScaling divides by.
type FanMode string

// Fan modes.
const (
	FanIn  FanMode = "fan_in"
	FanOut FanMode = "fan_out"
	FanAvg FanMode = "fan_avg"
)

// Distribution selects the distribution VarianceScaling samples from.
type Distribution string

// Distributions. Normal is a normal truncated at two standard deviations.
const (
	Normal            Distribution = "normal"
	UntruncatedNormal Distribution = "untruncated_normal"
	Uniform           Distribution = "uniform"
)

// truncatedStddevCorrection is the stddev of a unit normal truncated to [-2, 2].
const truncatedStddevCorrection = 0.87962566103423978

// VarianceScaling adapts its scale to the shape of the weight:
// the variance is scale / n, with n the fan selected by mode.
//
// Parameters:
//   - scale: positive scaling factor
//   - mode: FanIn, FanOut or FanAvg
//   - distribution: Normal (truncated), UntruncatedNormal or Uniform
func VarianceScaling(scale float64, mode FanMode, distribution Distribution) Initializer {
	if scale <= 0 {
		Panicf("VarianceScaling: scale must be positive, got %g", scale)
	}
	return func(k *backend.Backend, shape tensor.Shape, dtype tensor.DataType) *backend.Tensor {
		fanIn, fanOut := computeFans(shape)
		var n float64
		switch mode {
		case FanIn:
			n = fanIn
		case FanOut:
			n = fanOut
		case FanAvg:
			n = (fanIn + fanOut) / 2
		default:
			Panicf("VarianceScaling: unknown mode %q", mode)
		}
		variance := scale / math.Max(1, n)
		switch distribution {
		case Normal:
			return k.TruncatedNormal(shape, 0, math.Sqrt(variance)/truncatedStddevCorrection, dtype)
		case UntruncatedNormal:
			return k.RandomNormal(shape, 0, math.Sqrt(variance), dtype)
		case Uniform:
			limit := math.Sqrt(3 * variance)
			return k.RandomUniform(shape, -limit, limit, dtype)
		}
		Panicf("VarianceScaling: unknown distribution %q", distribution)
		return nil
	}
}

// computeFans returns the fan-in and fan-out of a weight shape. For kernels
// of rank > 2 the leading dimensions form the receptive field.
func computeFans(shape tensor.Shape) (fanIn, fanOut float64) {
	switch len(shape) {
	case 0:
		return 1, 1
	case 1:
		return float64(shape[0]), float64(shape[0])
	case 2:
		return float64(shape[0]), float64(shape[1])
	}
	receptive := 1
	for _, d := range shape[:len(shape)-2] {
		receptive *= d
	}
	return float64(shape[len(shape)-2] * receptive), float64(shape[len(shape)-1] * receptive)
}

// GlorotUniform draws from U[-limit, limit) with limit = sqrt(6 / (fan_in + fan_out)).
func GlorotUniform() Initializer { return VarianceScaling(1, FanAvg, Uniform) }

// GlorotNormal draws from a truncated normal with stddev sqrt(2 / (fan_in + fan_out)).
func GlorotNormal() Initializer { return VarianceScaling(1, FanAvg, Normal) }

// HeNormal draws from a truncated normal with stddev sqrt(2 / fan_in).
func HeNormal() Initializer { return VarianceScaling(2, FanIn, Normal) }

// HeUniform draws from U[-limit, limit) with limit = sqrt(6 / fan_in).
func HeUniform() Initializer { return VarianceScaling(2, FanIn, Uniform) }

// LecunNormal draws from a truncated normal with stddev sqrt(1 / fan_in).
func LecunNormal() Initializer { return VarianceScaling(1, FanIn, Normal) }

// LecunUniform draws from U[-limit, limit) with limit = sqrt(3 / fan_in).
func LecunUniform() Initializer { return VarianceScaling(1, FanIn, Uniform) }

// Identity initializes a square matrix to gain times the identity.
func Identity(gain float64) Initializer {
	return func(k *backend.Backend, shape tensor.Shape, dtype tensor.DataType) *backend.Tensor {
		if len(shape) != 2 || shape[0] != shape[1] {
			Panicf("Identity initializer requires a square matrix, got shape %v", shape)
		}
		values := make([]float64, shape.NumElements())
		for i := 0; i < shape[0]; i++ {
			values[i*shape[0]+i] = gain
		}
		raw := tensor.MustNewRaw(shape, tensor.Float64)
		copy(raw.AsFloat64(), values)
		return k.Cast(k.Constant(raw, ""), dtype)
	}
}

// InitializerByName returns the initializer with a Keras name, using the
// Keras default arguments.
func InitializerByName(name string) (Initializer, error) {
	switch name {
	case "zeros":
		return Zeros(), nil
	case "ones":
		return Ones(), nil
	case "random_normal":
		return RandomNormal(0, 0.05), nil
	case "random_uniform":
		return RandomUniform(-0.05, 0.05), nil
	case "truncated_normal":
		return TruncatedNormal(0, 0.05), nil
	case "glorot_uniform", "":
		return GlorotUniform(), nil
	case "glorot_normal":
		return GlorotNormal(), nil
	case "he_normal":
		return HeNormal(), nil
	case "he_uniform":
		return HeUniform(), nil
	case "lecun_normal":
		return LecunNormal(), nil
	case "lecun_uniform":
		return LecunUniform(), nil
	case "identity":
		return Identity(1), nil
	}
	return nil, errors.Errorf("unknown initializer %q", name)
}
