// Package ppo implements the Proximal Policy Optimization trainer: a
// SimpleActorCritic policy trained with the clipped surrogate objective on
// experience processed with generalized advantage estimation (GAE).
package ppo

import (
	"math"
	"math/rand"

	"github.com/born-ml/agents/internal/agent"
	"github.com/born-ml/agents/internal/config"
	"github.com/born-ml/agents/internal/tensor"
	"github.com/born-ml/agents/internal/trainer"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// minLearningRate is the learning rate reached at MaxSteps.
const minLearningRate = 1e-10

// Trainer trains one brain with PPO. It implements trainer.Trainer.
type Trainer struct {
	params   agent.BrainParameters
	config   config.Trainer
	training bool
	policy   *policy
	rng      *rand.Rand

	step       int
	lastReward float64

	trajectories *trainer.Buffer // in-progress experience per agent
	update       *trainer.Batch  // processed experience waiting for UpdateModel
	stats        *trainer.Stats

	cumulativeRewards map[int]float64
	episodeSteps      map[int]int
}

var _ trainer.Trainer = (*Trainer)(nil)

// New creates a PPO trainer for the brain described by params. With training
// false the trainer acts deterministically and never updates its model.
func New(params agent.BrainParameters, cfg config.Trainer, training bool) (*Trainer, error) {
	if err := params.Validate(); err != nil {
		return nil, errors.WithMessage(err, "ppo")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.WithMessagef(err, "ppo: brain %q", params.BrainName)
	}
	if params.NumVisualObservations > 0 || params.MemorySize > 0 {
		return nil, errors.Errorf("ppo: brain %q: visual observations and memories are not supported", params.BrainName)
	}
	t := &Trainer{
		params:            params,
		config:            cfg,
		training:          training,
		rng:               rand.New(rand.NewSource(cfg.Seed)),
		trajectories:      trainer.NewBuffer(),
		update:            &trainer.Batch{},
		stats:             trainer.NewStats(),
		cumulativeRewards: make(map[int]float64),
		episodeSteps:      make(map[int]int),
	}
	t.policy = newPolicy(params, policyConfig{
		HiddenLayers: cfg.NumLayers,
		HiddenUnits:  cfg.HiddenUnits,
		Epsilon:      cfg.Epsilon,
		Beta:         cfg.Beta,
		LearningRate: cfg.LearningRate,
		MaxGradNorm:  cfg.MaxGradNorm,
		Seed:         cfg.Seed,
	})
	klog.Infof("ppo: trainer for %s: %d observations, %d %s actions, %d x %d hidden, training=%v",
		params.BrainName, params.StateSize(), params.ActionSize, params.ActionSpaceType,
		cfg.NumLayers, cfg.HiddenUnits, training)
	return t, nil
}

// BrainName implements trainer.Trainer.
func (t *Trainer) BrainName() string { return t.params.BrainName }

// Step implements trainer.Trainer.
func (t *Trainer) Step() int { return t.step }

// MaxStep implements trainer.Trainer.
func (t *Trainer) MaxStep() int { return int(t.config.MaxSteps) }

// IsTraining implements trainer.Trainer.
func (t *Trainer) IsTraining() bool { return t.training }

// Config returns the trainer configuration.
func (t *Trainer) Config() config.Trainer { return t.config }

// Statistics implements trainer.Trainer.
func (t *Trainer) Statistics() *trainer.Stats { return t.stats }

// LastReward implements trainer.Trainer.
func (t *Trainer) LastReward() float64 { return t.lastReward }

// LearningRate returns the learning rate scheduled for the current step:
// a linear decay from learning_rate to 1e-10 over max_steps.
func (t *Trainer) LearningRate() float64 {
	maxSteps := float64(t.config.MaxSteps)
	if maxSteps <= 0 {
		return t.config.LearningRate
	}
	progress := math.Min(float64(t.step), maxSteps) / maxSteps
	return (t.config.LearningRate-minLearningRate)*(1-progress) + minLearningRate
}

// TakeAction implements trainer.Trainer. All agents are evaluated with one
// call of the policy graph; actions are sampled on the host.
func (t *Trainer) TakeAction(cur agent.BrainInfo) (agent.TakeActionOutput, error) {
	out := agent.TakeActionOutput{LearningRate: t.LearningRate()}
	n := cur.Len()
	if n == 0 {
		return out, nil
	}
	obs, err := cur.Observations(t.params.StateSize())
	if err != nil {
		return out, errors.WithMessage(err, "ppo: take action")
	}
	feed, err := t.policy.feed(obs, tensor.Shape{n, t.params.StateSize()})
	if err != nil {
		return out, errors.WithMessage(err, "ppo: take action")
	}
	results, err := t.policy.act.Call(feed)
	if err != nil {
		return out, errors.WithMessage(err, "ppo: take action")
	}

	out.Actions = make([][]float64, n)
	out.Probabilities = make([][]float64, n)
	out.LogProbs = make([]float64, n)
	out.Values = results[len(results)-1].Float64s()
	size := t.params.ActionSize
	if t.params.ActionSpaceType == agent.Continuous {
		mu, std := results[0].Float64s(), results[1].Float64s()
		for i := range n {
			out.Actions[i], out.LogProbs[i] = t.sampleGaussian(mu[i*size:(i+1)*size], std)
			out.Probabilities[i] = []float64{out.LogProbs[i]}
		}
		out.Entropy = gaussianEntropy(std)
	} else {
		probs := results[0].Float64s()
		for i := range n {
			row := probs[i*size : (i+1)*size]
			idx := t.sampleCategorical(row)
			out.Actions[i] = []float64{float64(idx)}
			out.Probabilities[i] = row
			out.LogProbs[i] = math.Log(row[idx] + t.policy.k.Epsilon())
			out.Entropy += categoricalEntropy(row, t.policy.k.Epsilon()) / float64(n)
		}
	}
	if t.training {
		t.stats.Add(trainer.StatValueEstimate, mean(out.Values))
		t.stats.Add(trainer.StatEntropy, out.Entropy)
		t.stats.Add(trainer.StatLearningRate, out.LearningRate)
	}
	return out, nil
}

// sampleGaussian draws an action from N(mu, std²), or returns mu when not
// training, together with its log-probability.
func (t *Trainer) sampleGaussian(mu, std []float64) ([]float64, float64) {
	action := make([]float64, len(mu))
	logProb := 0.0
	for j := range mu {
		z := 0.0
		if t.training {
			z = t.rng.NormFloat64()
		}
		action[j] = mu[j] + std[j]*z
		logProb += -0.5*z*z - math.Log(std[j]) - halfLog2Pi
	}
	return action, logProb
}

// sampleCategorical draws an index from probs, or returns the argmax when
// not training.
func (t *Trainer) sampleCategorical(probs []float64) int {
	if !t.training {
		best := 0
		for j, p := range probs {
			if p > probs[best] {
				best = j
			}
		}
		return best
	}
	u := t.rng.Float64()
	cumulative := 0.0
	for j, p := range probs {
		cumulative += p
		if u < cumulative {
			return j
		}
	}
	return len(probs) - 1
}

func gaussianEntropy(std []float64) float64 {
	h := 0.0
	for _, s := range std {
		h += 0.5 + halfLog2Pi + math.Log(s)
	}
	return h
}

func categoricalEntropy(probs []float64, eps float64) float64 {
	h := 0.0
	for _, p := range probs {
		h -= p * math.Log(p+eps)
	}
	return h
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// AddExperiences implements trainer.Trainer. Agents that were done in cur
// are skipped: the environment ignored their action and reset them.
func (t *Trainer) AddExperiences(cur, next agent.BrainInfo, out agent.TakeActionOutput) {
	if !t.training {
		return
	}
	for i, info := range cur.Agents {
		if info.Done {
			continue
		}
		nextInfo, ok := next.Get(info.ID)
		if !ok {
			klog.Warningf("ppo: %s: agent %d missing from next step, transition dropped", t.params.BrainName, info.ID)
			continue
		}
		if i >= len(out.Actions) {
			klog.Warningf("ppo: %s: no action for agent %d, transition dropped", t.params.BrainName, info.ID)
			continue
		}
		obs := append([]float64(nil), info.VectorObservation...)
		action := append([]float64(nil), out.Actions[i]...)
		t.trajectories.Get(info.ID).Append(obs, action, out.LogProbs[i], out.Values[i], nextInfo.Reward, nextInfo.Done)
		t.cumulativeRewards[info.ID] += nextInfo.Reward
		t.episodeSteps[info.ID]++
	}
}

// ProcessExperiences implements trainer.Trainer. Trajectories that ended or
// reached time_horizon are turned into advantages and returns and moved into
// the update buffer.
func (t *Trainer) ProcessExperiences(_, next agent.BrainInfo) error {
	if !t.training {
		return nil
	}
	var ready []agent.Info
	var bootstrapObs []float64
	for _, info := range next.Agents {
		if !t.trajectories.Has(info.ID) {
			continue
		}
		traj := t.trajectories.Get(info.ID)
		if !info.Done && traj.Len() < t.config.TimeHorizon {
			continue
		}
		ready = append(ready, info)
		bootstrapObs = append(bootstrapObs, info.VectorObservation...)
	}
	if len(ready) == 0 {
		return nil
	}

	values, err := t.values(bootstrapObs, len(ready))
	if err != nil {
		return errors.WithMessage(err, "ppo: bootstrap values")
	}
	for i, info := range ready {
		bootstrap := values[i]
		if info.Done && !info.MaxStepReached {
			bootstrap = 0
		}
		traj := t.trajectories.Get(info.ID)
		advantages, returns := GAE(traj.Rewards, traj.Values, bootstrap, t.config.Gamma, t.config.Lambd)
		if err := t.update.AppendTrajectory(traj, advantages, returns); err != nil {
			return errors.WithMessagef(err, "ppo: agent %d", info.ID)
		}
		traj.Reset()
		if info.Done {
			t.stats.Add(trainer.StatCumulativeReward, t.cumulativeRewards[info.ID])
			t.stats.Add(trainer.StatEpisodeLength, float64(t.episodeSteps[info.ID]))
			delete(t.cumulativeRewards, info.ID)
			delete(t.episodeSteps, info.ID)
		}
	}
	klog.V(2).Infof("ppo: %s: processed %d trajectories, update buffer holds %d", t.params.BrainName, len(ready), t.update.Len())
	return nil
}

// values evaluates the value estimate of n observations.
func (t *Trainer) values(obs []float64, n int) ([]float64, error) {
	feed, err := t.policy.feed(obs, tensor.Shape{n, t.params.StateSize()})
	if err != nil {
		return nil, err
	}
	results, err := t.policy.value.Call(feed)
	if err != nil {
		return nil, err
	}
	return results[0].Float64s(), nil
}

// GAE computes generalized advantage estimates and discounted returns of one
// trajectory. bootstrap is the value estimate of the state that follows the
// last transition (0 when the episode terminated).
//
//	delta_t = r_t + gamma * V(s_t+1) - V(s_t)
//	A_t     = delta_t + gamma * lambda * A_t+1
//	R_t     = A_t + V(s_t)
func GAE(rewards, values []float64, bootstrap, gamma, lambda float64) (advantages, returns []float64) {
	n := len(rewards)
	advantages = make([]float64, n)
	returns = make([]float64, n)
	nextValue, nextAdvantage := bootstrap, 0.0
	for i := n - 1; i >= 0; i-- {
		delta := rewards[i] + gamma*nextValue - values[i]
		nextAdvantage = delta + gamma*lambda*nextAdvantage
		advantages[i] = nextAdvantage
		returns[i] = nextAdvantage + values[i]
		nextValue = values[i]
	}
	return advantages, returns
}

// IsReadyUpdate implements trainer.Trainer.
func (t *Trainer) IsReadyUpdate() bool {
	return t.training && t.update.Len() >= t.config.BufferSize
}

// UpdateModel implements trainer.Trainer: num_epoch passes over shuffled
// minibatches of batch_size transitions.
func (t *Trainer) UpdateModel() error {
	if !t.training {
		klog.Warningf("ppo: %s: UpdateModel called on an inference trainer, skipped", t.params.BrainName)
		return nil
	}
	if t.update.Len() == 0 {
		klog.Warningf("ppo: %s: UpdateModel called with an empty buffer, skipped", t.params.BrainName)
		return nil
	}
	if err := t.policy.optimizer.SetLearningRate(t.LearningRate()); err != nil {
		return errors.WithMessage(err, "ppo: update")
	}
	t.update.NormalizeAdvantages()
	var policyLosses, valueLosses []float64
	for epoch := 0; epoch < t.config.NumEpoch; epoch++ {
		t.update.Shuffle(t.rng)
		for _, mb := range t.update.Minibatches(t.config.BatchSize) {
			losses, err := t.train(mb)
			if err != nil {
				return errors.WithMessagef(err, "ppo: %s: epoch %d", t.params.BrainName, epoch)
			}
			policyLosses = append(policyLosses, losses[0])
			valueLosses = append(valueLosses, losses[1])
		}
	}
	t.stats.Add(trainer.StatPolicyLoss, mean(policyLosses))
	t.stats.Add(trainer.StatValueLoss, mean(valueLosses))
	klog.V(1).Infof("ppo: %s: step %d: updated on %d transitions, policy loss %.4f, value loss %.4f",
		t.params.BrainName, t.step, t.update.Len(), mean(policyLosses), mean(valueLosses))
	t.update.Reset()
	return nil
}

// train runs one optimization step on mb and returns the policy loss, the
// value loss and the entropy.
func (t *Trainer) train(mb *trainer.Batch) ([]float64, error) {
	n, size := mb.Len(), t.params.ActionSize
	actions := mb.Actions
	if t.params.ActionSpaceType == agent.Discrete {
		actions = make([][]float64, n)
		for i, a := range mb.Actions {
			actions[i] = make([]float64, size)
			actions[i][int(a[0])] = 1
		}
	}
	p := t.policy
	state, err := p.feedRows(mb.Observations, t.params.StateSize())
	if err != nil {
		return nil, err
	}
	action, err := p.feedRows(actions, size)
	if err != nil {
		return nil, err
	}
	feeds := []*tensor.RawTensor{state, action}
	for _, column := range [][]float64{mb.LogProbs, mb.Advantages, mb.Returns, mb.Values} {
		raw, err := p.feed(column, tensor.Shape{n})
		if err != nil {
			return nil, err
		}
		feeds = append(feeds, raw)
	}
	results, err := p.train.Call(feeds...)
	if err != nil {
		return nil, err
	}
	losses := make([]float64, len(results))
	for i, r := range results {
		losses[i] = r.Item()
	}
	return losses, nil
}

// IncrementStep implements trainer.Trainer.
func (t *Trainer) IncrementStep() { t.step++ }

// UpdateLastReward implements trainer.Trainer.
func (t *Trainer) UpdateLastReward() {
	if t.stats.Len(trainer.StatCumulativeReward) > 0 {
		t.lastReward = t.stats.Mean(trainer.StatCumulativeReward)
	}
}

// EndEpisode implements trainer.Trainer.
func (t *Trainer) EndEpisode() {
	t.trajectories.Reset()
	clear(t.cumulativeRewards)
	clear(t.episodeSteps)
}
