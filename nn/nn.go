// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"github.com/born-ml/agents/internal/nn"
)

// Layer is a callable building block owning weights.
type Layer = nn.Layer

// Layers

// Dense is a fully connected layer: activation(x·kernel + bias).
type Dense = nn.Dense

// DenseConfig configures a Dense layer.
type DenseConfig = nn.DenseConfig

// DefaultDenseConfig returns the Keras defaults for a Dense layer of units
// outputs: linear activation, bias, Glorot uniform kernel and zero bias.
func DefaultDenseConfig(units int) DenseConfig {
	return nn.DefaultDenseConfig(units)
}

// NewDense creates a Dense layer. Weights are created on the first call.
//
// Example:
//
//	hidden := nn.NewDense(nn.DefaultDenseConfig(128).WithActivation("relu"))
func NewDense(config DenseConfig) *Dense {
	return nn.NewDense(config)
}

// Sequential chains layers.
type Sequential = nn.Sequential

// NewSequential creates a Sequential model from layers.
func NewSequential(layers ...Layer) *Sequential {
	return nn.NewSequential(layers...)
}

// ActivationLayer applies an activation as a layer.
type ActivationLayer = nn.ActivationLayer

// NewActivationLayer wraps activation into a layer.
func NewActivationLayer(activation Activation) *ActivationLayer {
	return nn.NewActivationLayer(activation)
}

// Activations

// Activation is an element-wise (or, for Softmax, row-wise) function.
type Activation = nn.Activation

// Activation functions.
var (
	Linear      Activation = nn.Linear
	ReLU        Activation = nn.ReLU
	Sigmoid     Activation = nn.Sigmoid
	Tanh        Activation = nn.Tanh
	Softplus    Activation = nn.Softplus
	Softmax     Activation = nn.Softmax
	Softsign    Activation = nn.Softsign
	HardSigmoid Activation = nn.HardSigmoid
	ELU         Activation = nn.ELU
)

// ActivationByName returns the activation with a Keras name ("relu", "tanh", ...).
func ActivationByName(name string) (Activation, error) {
	return nn.ActivationByName(name)
}

// Initializers

// Initializer builds the initial value of a weight.
type Initializer = nn.Initializer

// Zeros initializes weights to 0.
func Zeros() Initializer { return nn.Zeros() }

// Ones initializes weights to 1.
func Ones() Initializer { return nn.Ones() }

// Constant initializes every element to value.
func Constant(value float64) Initializer { return nn.Constant(value) }

// RandomNormal draws from N(mean, stddev²).
func RandomNormal(mean, stddev float64) Initializer { return nn.RandomNormal(mean, stddev) }

// RandomUniform draws from U[minVal, maxVal).
func RandomUniform(minVal, maxVal float64) Initializer { return nn.RandomUniform(minVal, maxVal) }

// TruncatedNormal draws from N(mean, stddev²) truncated at two standard deviations.
func TruncatedNormal(mean, stddev float64) Initializer { return nn.TruncatedNormal(mean, stddev) }

// FanMode selects the fan VarianceScaling divides by.
type FanMode = nn.FanMode

// Distribution selects the distribution VarianceScaling samples from.
type Distribution = nn.Distribution

// Fan modes and distributions of VarianceScaling.
const (
	FanIn             = nn.FanIn
	FanOut            = nn.FanOut
	FanAvg            = nn.FanAvg
	Normal            = nn.Normal
	UntruncatedNormal = nn.UntruncatedNormal
	Uniform           = nn.Uniform
)

// VarianceScaling samples with variance scale / fan.
func VarianceScaling(scale float64, mode FanMode, distribution Distribution) Initializer {
	return nn.VarianceScaling(scale, mode, distribution)
}

// GlorotUniform is the Keras default kernel initializer.
func GlorotUniform() Initializer { return nn.GlorotUniform() }

// GlorotNormal is VarianceScaling(1, FanAvg, Normal).
func GlorotNormal() Initializer { return nn.GlorotNormal() }

// HeNormal is VarianceScaling(2, FanIn, Normal).
func HeNormal() Initializer { return nn.HeNormal() }

// HeUniform is VarianceScaling(2, FanIn, Uniform).
func HeUniform() Initializer { return nn.HeUniform() }

// LecunNormal is VarianceScaling(1, FanIn, Normal).
func LecunNormal() Initializer { return nn.LecunNormal() }

// LecunUniform is VarianceScaling(1, FanIn, Uniform).
func LecunUniform() Initializer { return nn.LecunUniform() }

// Identity initializes a square matrix to gain times the identity.
func Identity(gain float64) Initializer { return nn.Identity(gain) }

// InitializerByName returns the initializer with a Keras name.
func InitializerByName(name string) (Initializer, error) { return nn.InitializerByName(name) }

// Constraints

// Constraint projects a weight back into its feasible set.
type Constraint = nn.Constraint

// MaxNorm bounds the norm of the weights along axis.
func MaxNorm(maxValue float64, axis int) Constraint { return nn.MaxNorm(maxValue, axis) }

// NonNeg clips weights to be non-negative.
func NonNeg() Constraint { return nn.NonNeg() }

// UnitNorm rescales weights to unit norm along axis.
func UnitNorm(axis int) Constraint { return nn.UnitNorm(axis) }

// MinMaxNorm keeps the norm along axis within [minValue, maxValue].
func MinMaxNorm(minValue, maxValue, rate float64, axis int) Constraint {
	return nn.MinMaxNorm(minValue, maxValue, rate, axis)
}

// Regularizers

// Regularizer computes a scalar penalty of a weight.
type Regularizer = nn.Regularizer

// L1 penalizes l * sum(|w|).
func L1(l float64) Regularizer { return nn.L1(l) }

// L2 penalizes l * sum(w²).
func L2(l float64) Regularizer { return nn.L2(l) }

// L1L2 combines L1 and L2 penalties.
func L1L2(l1, l2 float64) Regularizer { return nn.L1L2(l1, l2) }

// Losses

// Loss compares predictions with targets and returns a scalar.
type Loss = nn.Loss

// Loss functions.
var (
	MSE Loss = nn.MSE
	MAE Loss = nn.MAE
)

// Huber is quadratic for errors below delta and linear above.
func Huber(delta float64) Loss { return nn.Huber(delta) }
