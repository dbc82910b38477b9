package ppo

import (
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/born-ml/agents/internal/agent"
	"github.com/born-ml/agents/internal/config"
	"github.com/born-ml/agents/internal/env"
	"github.com/born-ml/agents/internal/serialization"
	"github.com/born-ml/agents/internal/tensor"
	"github.com/born-ml/agents/internal/trainer"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallConfig() config.Trainer {
	cfg := config.Default()
	cfg.BatchSize = 8
	cfg.BufferSize = 16
	cfg.TimeHorizon = 4
	cfg.NumLayers = 1
	cfg.HiddenUnits = 8
	cfg.NumEpoch = 2
	cfg.MaxSteps = 1000
	cfg.Seed = 3
	return cfg
}

// tick runs one step of the trainer loop and reports whether the model was updated.
func tick(t *testing.T, tr *Trainer, e env.Environment, cur agent.BrainInfo) (agent.BrainInfo, bool) {
	t.Helper()
	out, err := tr.TakeAction(cur)
	require.NoError(t, err)
	next, err := e.Step(out)
	require.NoError(t, err)
	tr.AddExperiences(cur, next, out)
	require.NoError(t, tr.ProcessExperiences(cur, next))
	updated := false
	if tr.IsReadyUpdate() {
		require.NoError(t, tr.UpdateModel())
		updated = true
	}
	tr.IncrementStep()
	tr.UpdateLastReward()
	return next, updated
}

func TestGAE(t *testing.T) {
	rewards := []float64{1, 1, 1}
	values := []float64{0.5, 0.5, 0.5}

	// With lambda 1 and a terminal end, returns are the discounted rewards.
	adv, ret := GAE(rewards, values, 0, 0.9, 1)
	assert.InDeltaSlice(t, []float64{2.71, 1.9, 1}, ret, 1e-12)
	assert.InDeltaSlice(t, []float64{2.21, 1.4, 0.5}, adv, 1e-12)

	// With lambda 0 advantages are the one-step TD errors.
	adv, ret = GAE(rewards, values, 0, 0.9, 0)
	assert.InDeltaSlice(t, []float64{0.95, 0.95, 0.5}, adv, 1e-12)
	assert.InDeltaSlice(t, []float64{1.45, 1.45, 1}, ret, 1e-12)

	// A truncated trajectory bootstraps from the next value.
	adv, ret = GAE([]float64{0}, []float64{1}, 2, 0.5, 0.95)
	assert.InDeltaSlice(t, []float64{0}, adv, 1e-12)
	assert.InDeltaSlice(t, []float64{1}, ret, 1e-12)

	adv, ret = GAE(nil, nil, 1, 0.99, 0.95)
	assert.Empty(t, adv)
	assert.Empty(t, ret)
}

func TestNewRejectsUnsupported(t *testing.T) {
	params := env.NewCartPole(1, 0).BrainParameters()

	visual := params
	visual.NumVisualObservations = 1
	_, err := New(visual, smallConfig(), true)
	assert.Error(t, err)

	cfg := smallConfig()
	cfg.UseRecurrent = true
	_, err = New(params, cfg, true)
	assert.ErrorContains(t, err, "use_recurrent")

	cfg = smallConfig()
	cfg.BatchSize = cfg.BufferSize + 1
	_, err = New(params, cfg, true)
	assert.Error(t, err)
}

func TestTrainingLoopDiscrete(t *testing.T) {
	e := env.NewCartPole(2, 11)
	tr := must.M1(New(e.BrainParameters(), smallConfig(), true))
	assert.Equal(t, "CartPoleBrain", tr.BrainName())
	assert.Equal(t, 1000, tr.MaxStep())
	assert.True(t, tr.IsTraining())

	before := must.M1(tr.Weights())
	cur := e.Reset()
	updates := 0
	for range 60 {
		var updated bool
		cur, updated = tick(t, tr, e, cur)
		if updated {
			updates++
		}
	}
	assert.Equal(t, 60, tr.Step())
	assert.GreaterOrEqual(t, updates, 2)

	stats := tr.Statistics()
	assert.Equal(t, updates, stats.Len(trainer.StatPolicyLoss))
	assert.Equal(t, updates, stats.Len(trainer.StatValueLoss))
	assert.Equal(t, 60, stats.Len(trainer.StatValueEstimate))
	assert.False(t, math.IsNaN(stats.Mean(trainer.StatPolicyLoss)))
	if stats.Len(trainer.StatCumulativeReward) > 0 {
		// CartPole pays 1 per step, so episode reward equals episode length.
		assert.Equal(t, stats.Values(trainer.StatEpisodeLength), stats.Values(trainer.StatCumulativeReward))
		assert.Equal(t, stats.Mean(trainer.StatCumulativeReward), tr.LastReward())
	}

	after := must.M1(tr.Weights())
	require.Equal(t, len(before), len(after))
	changed := false
	for name, w := range before {
		require.Contains(t, after, name)
		assert.Equal(t, w.Shape(), after[name].Shape())
		if !assert.ObjectsAreEqual(w.Float64s(), after[name].Float64s()) {
			changed = true
		}
	}
	assert.True(t, changed, "weights did not change after %d updates", updates)
}

func TestTakeActionDiscrete(t *testing.T) {
	e := env.NewCartPole(3, 5)
	tr := must.M1(New(e.BrainParameters(), smallConfig(), true))
	out := must.M1(tr.TakeAction(e.Reset()))
	require.Len(t, out.Actions, 3)
	require.Len(t, out.Values, 3)
	for i, a := range out.Actions {
		require.Len(t, a, 1)
		idx := int(a[0])
		assert.True(t, idx == 0 || idx == 1)
		probs := out.Probabilities[i]
		assert.InDelta(t, 1, probs[0]+probs[1], 1e-5)
		assert.InDelta(t, math.Log(probs[idx]), out.LogProbs[i], 1e-5)
	}
	assert.Greater(t, out.Entropy, 0.0)
	assert.LessOrEqual(t, out.Entropy, math.Log(2)+1e-6)
	assert.InDelta(t, smallConfig().LearningRate, out.LearningRate, 1e-12)

	empty := must.M1(tr.TakeAction(agent.BrainInfo{}))
	assert.Empty(t, empty.Actions)
}

func TestTakeActionContinuous(t *testing.T) {
	e := env.NewPointMass(4, 2)
	tr := must.M1(New(e.BrainParameters(), smallConfig(), true))
	out := must.M1(tr.TakeAction(e.Reset()))
	require.Len(t, out.Actions, 4)
	for i, a := range out.Actions {
		require.Len(t, a, 1)
		assert.Equal(t, out.LogProbs[i], out.Probabilities[i][0])
		// log_std starts at 0: the log-density of a unit normal is at most -0.5 ln 2π.
		assert.LessOrEqual(t, out.LogProbs[i], -halfLog2Pi+1e-9)
	}
	assert.InDelta(t, 0.5+halfLog2Pi, out.Entropy, 1e-6)

	weights := must.M1(tr.Weights())
	assert.Contains(t, weights, "log_std")
}

func TestTrainingLoopContinuous(t *testing.T) {
	e := env.NewPointMass(2, 8)
	tr := must.M1(New(e.BrainParameters(), smallConfig(), true))
	cur := e.Reset()
	updates := 0
	for range 24 {
		var updated bool
		cur, updated = tick(t, tr, e, cur)
		if updated {
			updates++
		}
	}
	assert.GreaterOrEqual(t, updates, 1)
	for _, loss := range tr.Statistics().Values(trainer.StatValueLoss) {
		assert.False(t, math.IsNaN(loss) || math.IsInf(loss, 0))
	}
}

func TestInferenceIsDeterministic(t *testing.T) {
	e := env.NewCartPole(2, 4)
	tr := must.M1(New(e.BrainParameters(), smallConfig(), false))
	assert.False(t, tr.IsTraining())

	cur := e.Reset()
	first := must.M1(tr.TakeAction(cur))
	second := must.M1(tr.TakeAction(cur))
	assert.Equal(t, first.Actions, second.Actions)

	next := must.M1(e.Step(first))
	tr.AddExperiences(cur, next, first)
	require.NoError(t, tr.ProcessExperiences(cur, next))
	assert.False(t, tr.IsReadyUpdate())
	require.NoError(t, tr.UpdateModel())
	assert.Zero(t, tr.Statistics().Len(trainer.StatValueEstimate))
}

func TestDoneAgentsAreSkipped(t *testing.T) {
	e := env.NewCartPole(1, 1)
	tr := must.M1(New(e.BrainParameters(), smallConfig(), true))
	cur := e.Reset()
	cur.Agents[0].Done = true
	out := must.M1(tr.TakeAction(cur))
	next := agent.BrainInfo{Agents: []agent.Info{{ID: 0, VectorObservation: make([]float64, 4), Reward: 5}}}
	tr.AddExperiences(cur, next, out)
	require.NoError(t, tr.ProcessExperiences(cur, next))
	assert.False(t, tr.trajectories.Has(0))
}

func TestTerminalTrajectoryIsProcessed(t *testing.T) {
	e := env.NewCartPole(1, 1)
	cfg := smallConfig()
	cfg.TimeHorizon = 100
	tr := must.M1(New(e.BrainParameters(), cfg, true))
	cur := e.Reset()
	for step := 0; step < 3; step++ {
		out := must.M1(tr.TakeAction(cur))
		next := agent.BrainInfo{Agents: []agent.Info{{
			ID:                0,
			VectorObservation: make([]float64, 4),
			Reward:            1,
			Done:              step == 2,
		}}}
		tr.AddExperiences(cur, next, out)
		require.NoError(t, tr.ProcessExperiences(cur, next))
		cur = next
	}
	assert.Equal(t, 3, tr.update.Len())
	assert.Equal(t, []float64{3}, tr.Statistics().Values(trainer.StatCumulativeReward))
	assert.Equal(t, []float64{3}, tr.Statistics().Values(trainer.StatEpisodeLength))

	// Terminal trajectories bootstrap from 0.
	wantAdv, wantRet := GAE([]float64{1, 1, 1}, tr.update.Values, 0, cfg.Gamma, cfg.Lambd)
	assert.InDeltaSlice(t, wantRet, tr.update.Returns, 1e-9)
	assert.InDeltaSlice(t, wantAdv, tr.update.Advantages, 1e-9)
	assert.InDelta(t, 1.0, tr.update.Returns[2], 1e-9)

	tr.UpdateLastReward()
	assert.Equal(t, 3.0, tr.LastReward())
}

func TestLearningRateDecay(t *testing.T) {
	cfg := smallConfig()
	cfg.MaxSteps = 10
	tr := must.M1(New(env.NewPointMass(1, 0).BrainParameters(), cfg, true))
	assert.InDelta(t, cfg.LearningRate, tr.LearningRate(), 1e-15)
	for range 5 {
		tr.IncrementStep()
	}
	assert.InDelta(t, (cfg.LearningRate-minLearningRate)/2+minLearningRate, tr.LearningRate(), 1e-15)
	for range 10 {
		tr.IncrementStep()
	}
	assert.InDelta(t, minLearningRate, tr.LearningRate(), 1e-20)
}

func TestEndEpisode(t *testing.T) {
	e := env.NewCartPole(2, 9)
	tr := must.M1(New(e.BrainParameters(), smallConfig(), true))
	cur := e.Reset()
	cur, _ = tick(t, tr, e, cur)
	require.NotEmpty(t, cur.Agents)
	assert.True(t, tr.trajectories.Has(0))
	tr.EndEpisode()
	assert.False(t, tr.trajectories.Has(0))
	assert.Empty(t, tr.cumulativeRewards)
}

func TestSaveLoad(t *testing.T) {
	e := env.NewCartPole(2, 11)
	tr := must.M1(New(e.BrainParameters(), smallConfig(), true))
	cur := e.Reset()
	for range 20 {
		cur, _ = tick(t, tr, e, cur)
	}
	path := filepath.Join(t.TempDir(), "cartpole.born")
	require.NoError(t, tr.Save(path, CheckpointOptions{Metadata: map[string]string{"env": "cartpole"}}))

	cfg := smallConfig()
	cfg.Seed = 99
	restored := must.M1(New(e.BrainParameters(), cfg, true))
	require.NoError(t, restored.Load(path))
	assert.Equal(t, 20, restored.Step())
	assert.Equal(t, tr.LastReward(), restored.LastReward())

	want := must.M1(tr.StateDict())
	got := must.M1(restored.StateDict())
	require.Equal(t, len(want), len(got))
	for name, w := range want {
		require.Contains(t, got, name)
		assert.Equal(t, w.Float64s(), got[name].Float64s(), name)
	}

	// Same observations, same deterministic decisions.
	inference := must.M1(New(e.BrainParameters(), cfg, false))
	require.NoError(t, inference.Load(path))
	obs := e.Reset()
	reference := must.M1(New(e.BrainParameters(), smallConfig(), false))
	require.NoError(t, reference.LoadStateDict(want))
	assert.Equal(t, must.M1(reference.TakeAction(obs)).Values, must.M1(inference.TakeAction(obs)).Values)

	other := must.M1(New(env.NewPointMass(1, 0).BrainParameters(), smallConfig(), true))
	assert.ErrorContains(t, other.Load(path), "CartPoleBrain")
	assert.Error(t, tr.Load(filepath.Join(t.TempDir(), "missing.born")))
}

func TestSaveHalfPrecisionKeepsOptimizerState(t *testing.T) {
	e := env.NewCartPole(2, 5)
	tr := must.M1(New(e.BrainParameters(), smallConfig(), true))
	cur := e.Reset()
	for range 40 {
		cur, _ = tick(t, tr, e, cur)
	}

	// A step counter beyond the float16 range and a moment below its
	// smallest subnormal.
	state := must.M1(tr.StateDict())
	var iterations, moment string
	for name := range state {
		switch {
		case strings.HasSuffix(name, "/iterations"):
			iterations = name
		case strings.HasSuffix(name, "/v") && moment == "":
			moment = name
		}
	}
	require.NotEmpty(t, iterations)
	require.NotEmpty(t, moment)
	state[iterations] = tensor.Full(state[iterations].Shape(), 70000, state[iterations].DType())
	tiny := state[moment].Clone()
	tiny.Fill(1e-9)
	state[moment] = tiny
	require.NoError(t, tr.LoadStateDict(state))

	path := filepath.Join(t.TempDir(), "half.born")
	require.NoError(t, tr.Save(path, CheckpointOptions{HalfPrecision: true}))
	header := must.M1(serialization.ReadHeader(path))
	for _, m := range header.Tensors {
		if m.Name == iterations || m.Name == moment {
			assert.Empty(t, m.StoredDType, m.Name)
		}
	}

	restored := must.M1(New(e.BrainParameters(), smallConfig(), true))
	require.NoError(t, restored.Load(path))
	want, got := must.M1(tr.StateDict()), must.M1(restored.StateDict())
	assert.Equal(t, 70000.0, got[iterations].Item())
	assert.Equal(t, want[moment].Float64s(), got[moment].Float64s())
	weights := must.M1(tr.Weights())
	for name, w := range weights {
		assert.InDeltaSlice(t, w.Float64s(), got[name].Float64s(), 1e-2, name)
	}
}
