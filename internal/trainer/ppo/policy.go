package ppo

import (
	"math"

	"github.com/born-ml/agents/internal/agent"
	"github.com/born-ml/agents/internal/backend"
	"github.com/born-ml/agents/internal/graph"
	"github.com/born-ml/agents/internal/network"
	"github.com/born-ml/agents/internal/nn"
	"github.com/born-ml/agents/internal/optim"
	"github.com/born-ml/agents/internal/tensor"
	"k8s.io/klog/v2"
)

// halfLog2Pi is 0.5 * ln(2π).
var halfLog2Pi = 0.5 * math.Log(2*math.Pi)

// policy is the PPO graph: the actor-critic network, the action
// distribution, the clipped surrogate loss and the optimizer updates.
type policy struct {
	k         *backend.Backend
	params    agent.BrainParameters
	net       *network.SimpleActorCritic
	logStd    *backend.Tensor // continuous only, shape [1, ActionSize]
	optimizer *optim.Adam

	state     *backend.Tensor
	actions   *backend.Tensor // action index one-hot (discrete) or action values
	oldLogP   *backend.Tensor
	advantage *backend.Tensor
	returns   *backend.Tensor
	oldValue  *backend.Tensor

	policyLoss *backend.Tensor
	valueLoss  *backend.Tensor
	entropy    *backend.Tensor

	act   *backend.Function // state -> distribution parameters, value
	value *backend.Function // state -> value
	train *backend.Function // batch -> losses, with updates
}

// policyConfig holds the hyperparameters the graph depends on.
type policyConfig struct {
	HiddenLayers int
	HiddenUnits  int
	Epsilon      float64
	Beta         float64
	LearningRate float64
	MaxGradNorm  float64
	Seed         int64
}

func newPolicy(params agent.BrainParameters, cfg policyConfig) *policy {
	kcfg := backend.DefaultConfig()
	kcfg.Name = params.BrainName
	kcfg.Seed = cfg.Seed
	k := backend.New(kcfg)
	dtype := k.Floatx()
	actionSize := params.ActionSize

	p := &policy{k: k, params: params}
	p.state = k.Placeholder(graph.Shape{graph.Dynamic, params.StateSize()}, dtype, "vector_observation")
	netCfg := network.DefaultConfig(actionSize, params.ActionSpaceType)
	netCfg.ActorHiddenLayers, netCfg.ActorHiddenUnits = cfg.HiddenLayers, cfg.HiddenUnits
	netCfg.CriticHiddenLayers, netCfg.CriticHiddenUnits = cfg.HiddenLayers, cfg.HiddenUnits
	p.net = network.NewSimpleActorCritic(k, network.Inputs{State: p.state}, netCfg)

	p.actions = k.Placeholder(graph.Shape{graph.Dynamic, actionSize}, dtype, "action_holder")
	p.oldLogP = k.Placeholder(graph.Shape{graph.Dynamic}, dtype, "old_log_probs")
	p.advantage = k.Placeholder(graph.Shape{graph.Dynamic}, dtype, "advantages")
	p.returns = k.Placeholder(graph.Shape{graph.Dynamic}, dtype, "discounted_rewards")
	p.oldValue = k.Placeholder(graph.Shape{graph.Dynamic}, dtype, "old_value_estimates")

	value := k.Reshape(p.net.Value(), graph.Dynamic)
	var logP, entropy *backend.Tensor
	var actOutputs []*backend.Tensor
	if params.ActionSpaceType == agent.Continuous {
		p.logStd = k.Variable(tensor.Full(tensor.Shape{1, actionSize}, 0, dtype), "log_std")
		mu := p.net.Action()
		z := k.Div(k.Sub(p.actions, mu), k.Exp(p.logStd))
		logP = k.Sum(k.AddScalar(k.Neg(k.Add(k.MulScalar(k.Square(z), 0.5), p.logStd)), -halfLog2Pi), false, 1)
		entropy = k.Sum(k.AddScalar(p.logStd, 0.5+halfLog2Pi), false)
		actOutputs = []*backend.Tensor{mu, k.Exp(p.logStd), p.net.Value()}
	} else {
		probs := nn.Softmax(k, p.net.Action())
		logProbs := k.Log(k.AddScalar(probs, k.Epsilon()))
		logP = k.Sum(k.Mul(p.actions, logProbs), false, 1)
		entropy = k.Mean(k.Neg(k.Sum(k.Mul(probs, logProbs), false, 1)), false)
		actOutputs = []*backend.Tensor{probs, p.net.Value()}
	}

	// Clipped surrogate objective.
	ratio := k.Exp(k.Sub(logP, p.oldLogP))
	surr1 := k.Mul(ratio, p.advantage)
	surr2 := k.Mul(k.Clip(ratio, 1-cfg.Epsilon, 1+cfg.Epsilon), p.advantage)
	p.policyLoss = k.Neg(k.Mean(k.Minimum(surr1, surr2), false))

	// Clipped value loss.
	clippedValue := k.Add(p.oldValue, k.Clip(k.Sub(value, p.oldValue), -cfg.Epsilon, cfg.Epsilon))
	p.valueLoss = k.Mean(k.Maximum(
		k.Square(k.Sub(p.returns, value)),
		k.Square(k.Sub(p.returns, clippedValue))), false)
	p.entropy = entropy

	loss := k.Sub(k.Add(p.policyLoss, k.MulScalar(p.valueLoss, 0.5)), k.MulScalar(entropy, cfg.Beta))
	for _, l := range p.net.Losses() {
		loss = k.Add(loss, l)
	}

	p.optimizer = optim.NewAdam(k, optim.AdamConfig{Config: optim.Config{
		LR:          cfg.LearningRate,
		MaxGradNorm: cfg.MaxGradNorm,
	}})
	updates := p.optimizer.Updates(loss, p.trainable())

	p.act = k.Function("act", []*backend.Tensor{p.state}, actOutputs, nil)
	p.value = k.Function("value", []*backend.Tensor{p.state}, []*backend.Tensor{p.net.Value()}, nil)
	p.train = k.Function("train",
		[]*backend.Tensor{p.state, p.actions, p.oldLogP, p.advantage, p.returns, p.oldValue},
		[]*backend.Tensor{p.policyLoss, p.valueLoss, p.entropy}, updates)
	klog.V(1).Infof("ppo: built policy graph for %s with %d nodes", params.BrainName, k.Graph().NumNodes())
	return p
}

// trainable returns the network weights plus the log standard deviation.
func (p *policy) trainable() []*backend.Tensor {
	weights := p.net.Weights()
	if p.logStd != nil {
		weights = append(weights, p.logStd)
	}
	return weights
}

// feedRows converts rows of equal length into a [len(rows), width] tensor.
func (p *policy) feedRows(rows [][]float64, width int) (*tensor.RawTensor, error) {
	flat := make([]float64, 0, len(rows)*width)
	for _, row := range rows {
		flat = append(flat, row...)
	}
	return p.feed(flat, tensor.Shape{len(rows), width})
}

// feed converts values to a floatx tensor of the given shape.
func (p *policy) feed(values []float64, shape tensor.Shape) (*tensor.RawTensor, error) {
	raw, err := tensor.FromFloat64s(values, shape)
	if err != nil || p.k.Floatx() == tensor.Float64 {
		return raw, err
	}
	return tensor.FromFloat32s(raw.Float32s(), shape)
}
