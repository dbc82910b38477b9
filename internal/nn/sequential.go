package nn

import (
	"github.com/born-ml/agents/internal/backend"
)

// Sequential is a container layer that chains multiple layers together.
//
// Each layer's output becomes the next layer's input.
//
// Example:
//
//	model := nn.NewSequential(
//	    nn.NewDense(nn.DefaultDenseConfig(128).WithActivation("relu")),
//	    nn.NewDense(nn.DefaultDenseConfig(10)),
//	)
//
//	output := model.Call(k, input)
type Sequential struct {
	name   string
	layers []Layer
}

// NewSequential creates a new Sequential container.
func NewSequential(layers ...Layer) *Sequential {
	return &Sequential{layers: layers}
}

// Add appends a layer to the container.
func (s *Sequential) Add(layer Layer) {
	s.layers = append(s.layers, layer)
}

// Name returns the container name.
func (s *Sequential) Name() string { return s.name }

// Call applies all layers in sequence.
func (s *Sequential) Call(k *backend.Backend, x *backend.Tensor) *backend.Tensor {
	if s.name == "" {
		s.name = k.UniqueName("sequential")
	}
	output := x
	for _, layer := range s.layers {
		output = layer.Call(k, output)
	}
	return output
}

// Weights returns the weights of all layers, in layer order.
func (s *Sequential) Weights() []*backend.Tensor {
	var weights []*backend.Tensor
	for _, layer := range s.layers {
		weights = append(weights, layer.Weights()...)
	}
	return weights
}

// Losses returns the regularization losses of all layers.
func (s *Sequential) Losses() []*backend.Tensor {
	var losses []*backend.Tensor
	for _, layer := range s.layers {
		losses = append(losses, layer.Losses()...)
	}
	return losses
}

// Layers returns the contained layers.
func (s *Sequential) Layers() []Layer {
	return s.layers
}

// Len returns the number of layers.
func (s *Sequential) Len() int {
	return len(s.layers)
}
