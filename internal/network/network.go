// Package network builds actor-critic networks out of Dense layers.
//
// An actor-critic network reads one state tensor and produces two heads: the
// action head (distribution mean for continuous actions, unnormalized scores
// for discrete ones) and the value head estimating the expected return.
// Actor and critic paths never share weights.
package network

import (
	"github.com/born-ml/agents/internal/agent"
	"github.com/born-ml/agents/internal/backend"
	"github.com/born-ml/agents/internal/graph"
	"github.com/born-ml/agents/internal/nn"
	. "github.com/gomlx/exceptions" //nolint:revive // Panicf reads better unqualified, as in gomlx.
	"k8s.io/klog/v2"
)

// Inputs are the tensors an actor-critic network may read. Only State is
// supported; the other modalities need convolutional or recurrent branches.
type Inputs struct {
	State          *backend.Tensor
	Visual         []*backend.Tensor
	Memory         *backend.Tensor
	PreviousAction *backend.Tensor
}

// ActorCritic is a built actor-critic network.
type ActorCritic interface {
	// Action returns the action head, shape [?, ActionSize].
	Action() *backend.Tensor
	// Value returns the value head, shape [?, 1].
	Value() *backend.Tensor
	// Weights returns the weights of the actor path followed by those of the
	// critic path.
	Weights() []*backend.Tensor
	// Losses returns the regularization losses of all layers.
	Losses() []*backend.Tensor
}

// Config configures SimpleActorCritic.
type Config struct {
	ActorHiddenLayers  int
	ActorHiddenUnits   int
	CriticHiddenLayers int
	CriticHiddenUnits  int

	ActionSize int
	SpaceType  agent.SpaceType

	// KernelInitializer for every Dense layer; nil means glorot_uniform.
	KernelInitializer nn.Initializer
	// KernelRegularizer for every Dense layer; nil means none.
	KernelRegularizer nn.Regularizer
}

// DefaultConfig returns two hidden layers of 128 units on both paths.
func DefaultConfig(actionSize int, spaceType agent.SpaceType) Config {
	return Config{
		ActorHiddenLayers:  2,
		ActorHiddenUnits:   128,
		CriticHiddenLayers: 2,
		CriticHiddenUnits:  128,
		ActionSize:         actionSize,
		SpaceType:          spaceType,
		KernelInitializer:  nn.GlorotUniform(),
	}
}

func (c Config) check() {
	switch {
	case c.ActorHiddenLayers < 0 || c.CriticHiddenLayers < 0:
		Panicf("network: hidden layer counts must be >= 0, got actor=%d critic=%d",
			c.ActorHiddenLayers, c.CriticHiddenLayers)
	case c.ActorHiddenLayers > 0 && c.ActorHiddenUnits < 1:
		Panicf("network: actor hidden units must be >= 1, got %d", c.ActorHiddenUnits)
	case c.CriticHiddenLayers > 0 && c.CriticHiddenUnits < 1:
		Panicf("network: critic hidden units must be >= 1, got %d", c.CriticHiddenUnits)
	case c.ActionSize < 1:
		Panicf("network: action size must be >= 1, got %d", c.ActionSize)
	case c.SpaceType != agent.Discrete && c.SpaceType != agent.Continuous:
		Panicf("network: invalid action space type %d", int(c.SpaceType))
	}
}

// SimpleActorCritic is an actor-critic network made of two independent
// stacks of ReLU Dense layers, each ending in one linear Dense layer.
type SimpleActorCritic struct {
	config Config
	actor  *nn.Sequential
	critic *nn.Sequential
	action *backend.Tensor
	value  *backend.Tensor
}

// NewSimpleActorCritic builds the network on k from inputs.
//
// It panics if inputs carry visual, memory or previous-action tensors, if
// the state is not [?, n] with n known, or if the sizes are invalid.
func NewSimpleActorCritic(k *backend.Backend, inputs Inputs, config Config) *SimpleActorCritic {
	config.check()
	switch {
	case len(inputs.Visual) > 0:
		Panicf("network: visual observations are not supported by SimpleActorCritic")
	case inputs.Memory != nil:
		Panicf("network: memory input is not supported by SimpleActorCritic")
	case inputs.PreviousAction != nil:
		Panicf("network: previous action input is not supported by SimpleActorCritic")
	case inputs.State == nil:
		Panicf("network: state input is required")
	}
	if shape := inputs.State.Shape(); shape.Rank() != 2 || shape[1] == graph.Dynamic {
		Panicf("network: state must have shape (?, n), got %s", shape)
	}
	if config.KernelInitializer == nil {
		config.KernelInitializer = nn.GlorotUniform()
	}

	n := &SimpleActorCritic{
		config: config,
		actor:  stack(config, config.ActorHiddenLayers, config.ActorHiddenUnits, config.ActionSize),
		critic: stack(config, config.CriticHiddenLayers, config.CriticHiddenUnits, 1),
	}
	n.action = n.actor.Call(k, inputs.State)
	n.value = n.critic.Call(k, inputs.State)
	klog.V(1).Infof("network: actor %d×%d -> %d (%s), critic %d×%d -> 1, %d weights",
		config.ActorHiddenLayers, config.ActorHiddenUnits, config.ActionSize, config.SpaceType,
		config.CriticHiddenLayers, config.CriticHiddenUnits, len(n.Weights()))
	return n
}

// stack returns hidden ReLU Dense layers followed by a linear Dense of outputs units.
func stack(config Config, hidden, units, outputs int) *nn.Sequential {
	s := nn.NewSequential()
	for range hidden {
		cfg := nn.DefaultDenseConfig(units).WithKernelInitializer(config.KernelInitializer)
		cfg.Activation = nn.ReLU
		cfg.KernelRegularizer = config.KernelRegularizer
		s.Add(nn.NewDense(cfg))
	}
	cfg := nn.DefaultDenseConfig(outputs).WithKernelInitializer(config.KernelInitializer)
	cfg.KernelRegularizer = config.KernelRegularizer
	s.Add(nn.NewDense(cfg))
	return s
}

// Action returns the action head.
func (n *SimpleActorCritic) Action() *backend.Tensor { return n.action }

// Value returns the value head.
func (n *SimpleActorCritic) Value() *backend.Tensor { return n.value }

// Config returns the configuration the network was built with.
func (n *SimpleActorCritic) Config() Config { return n.config }

// ActorWeights returns the kernel and bias of every actor layer.
func (n *SimpleActorCritic) ActorWeights() []*backend.Tensor { return n.actor.Weights() }

// CriticWeights returns the kernel and bias of every critic layer.
func (n *SimpleActorCritic) CriticWeights() []*backend.Tensor { return n.critic.Weights() }

// Weights returns the actor weights followed by the critic weights.
func (n *SimpleActorCritic) Weights() []*backend.Tensor {
	return append(n.ActorWeights(), n.CriticWeights()...)
}

// Layers returns the Dense layers of the actor path followed by those of
// the critic path.
func (n *SimpleActorCritic) Layers() []nn.Layer {
	layers := append([]nn.Layer{}, n.actor.Layers()...)
	return append(layers, n.critic.Layers()...)
}

// Losses returns the regularization losses of both paths.
func (n *SimpleActorCritic) Losses() []*backend.Tensor {
	return append(n.actor.Losses(), n.critic.Losses()...)
}
