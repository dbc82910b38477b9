// Package nn implements Keras-style layers over the symbolic backend.
//
// This package provides building blocks for constructing networks:
//   - Layer interface: base interface for all layers
//   - Dense: fully connected layer with lazily created weights
//   - Activations: linear, relu, sigmoid, tanh, softmax, ...
//   - Initializers, constraints and regularizers for weights
//   - Sequential: container for stacking layers
//   - Losses: mean squared error, mean absolute error
//
// Layers create their weights on the first Call and reuse them afterwards,
// so one layer applied to two inputs shares its weights.
package nn

import (
	"github.com/born-ml/agents/internal/backend"
)

// Layer is the base interface for all layers.
//
// Every layer must implement:
//   - Call: build the output tensor for an input tensor
//   - Weights: return the trainable weights created so far
//   - Losses: return the extra loss terms (regularization) of the layer
//
// Layers can be composed to build networks:
//
//	model := nn.NewSequential(
//	    nn.NewDense(nn.DefaultDenseConfig(64).WithActivation("relu")),
//	    nn.NewDense(nn.DefaultDenseConfig(2)),
//	)
//	y := model.Call(k, x)
type Layer interface {
	// Name returns the layer name. Layers without a configured name get a
	// unique one from the backend when first called.
	Name() string

	// Call applies the layer to x. The first call creates the weights; later
	// calls must use the same backend and reuse them.
	Call(k *backend.Backend, x *backend.Tensor) *backend.Tensor

	// Weights returns the trainable weights, empty before the first call.
	Weights() []*backend.Tensor

	// Losses returns scalar loss terms to add to the training loss.
	Losses() []*backend.Tensor
}
