package ppo

import (
	"github.com/born-ml/agents/internal/config"
	"github.com/born-ml/agents/internal/serialization"
	"github.com/born-ml/agents/internal/tensor"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// ModelType is the model type recorded in PPO checkpoints.
const ModelType = "ppo"

// Weights returns copies of the policy weights keyed by variable name, e.g.
// "dense_1/kernel" or "log_std".
func (t *Trainer) Weights() (map[string]*tensor.RawTensor, error) {
	state := make(map[string]*tensor.RawTensor)
	for _, v := range t.policy.trainable() {
		value, err := t.policy.k.GetValue(v)
		if err != nil {
			return nil, errors.WithMessagef(err, "ppo: reading %s", v.Name())
		}
		state[v.Name()] = value
	}
	return state, nil
}

// StateDict returns the policy weights and the optimizer state.
func (t *Trainer) StateDict() (map[string]*tensor.RawTensor, error) {
	state, _, err := t.stateDict()
	return state, err
}

// stateDict returns StateDict and the names of the optimizer entries.
func (t *Trainer) stateDict() (map[string]*tensor.RawTensor, []string, error) {
	state, err := t.Weights()
	if err != nil {
		return nil, nil, err
	}
	optState, err := t.policy.optimizer.StateDict()
	if err != nil {
		return nil, nil, errors.WithMessage(err, "ppo")
	}
	optNames := make([]string, 0, len(optState))
	for name, value := range optState {
		state[name] = value
		optNames = append(optNames, name)
	}
	return state, optNames, nil
}

// LoadStateDict restores the policy weights and, when present, the
// optimizer state. Every weight must be present.
func (t *Trainer) LoadStateDict(state map[string]*tensor.RawTensor) error {
	for _, v := range t.policy.trainable() {
		value, ok := state[v.Name()]
		if !ok {
			return errors.Errorf("ppo: %s: no saved value for %s", t.params.BrainName, v.Name())
		}
		if err := t.policy.k.SetValue(v, value); err != nil {
			return errors.WithMessagef(err, "ppo: %s: loading %s", t.params.BrainName, v.Name())
		}
	}
	return errors.WithMessage(t.policy.optimizer.LoadStateDict(state), "ppo")
}

// CheckpointOptions configures Save.
type CheckpointOptions struct {
	// RunID identifies the training run; a new UUID is used when empty.
	RunID string
	// HalfPrecision stores the policy weights as float16. The optimizer
	// state is always kept at full precision.
	HalfPrecision bool
	// Metadata is stored verbatim in the header.
	Metadata map[string]string
}

// Save writes the trainer state to a .born checkpoint at path.
func (t *Trainer) Save(path string, opts CheckpointOptions) error {
	state, optNames, err := t.stateDict()
	if err != nil {
		return err
	}
	trainerConfig, err := config.ToMap(t.config)
	if err != nil {
		return errors.WithMessage(err, "ppo")
	}
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	header := serialization.Header{
		ModelType: ModelType,
		RunID:     runID,
		Metadata:  opts.Metadata,
		Checkpoint: &serialization.CheckpointMeta{
			BrainName:     t.params.BrainName,
			Step:          t.step,
			MaxStep:       t.MaxStep(),
			LastReward:    t.lastReward,
			OptimizerType: "adam",
			TrainerConfig: trainerConfig,
		},
	}
	if err := serialization.Save(path, state, header, serialization.WriteOptions{
		HalfPrecision: opts.HalfPrecision,
		FullPrecision: optNames,
	}); err != nil {
		return errors.WithMessagef(err, "ppo: saving %s", t.params.BrainName)
	}
	klog.V(1).Infof("ppo: %s: saved checkpoint at step %d to %s", t.params.BrainName, t.step, path)
	return nil
}

// Load restores a checkpoint written by Save for the same brain, including
// the step counter and last reward.
func (t *Trainer) Load(path string) error {
	state, header, err := serialization.Load(path, serialization.ReaderOptions{})
	if err != nil {
		return errors.WithMessagef(err, "ppo: loading %s", t.params.BrainName)
	}
	if header.ModelType != ModelType {
		return errors.Errorf("ppo: %s holds a %q model", path, header.ModelType)
	}
	if header.Checkpoint == nil {
		return errors.Errorf("ppo: %s has no training state", path)
	}
	if header.Checkpoint.BrainName != t.params.BrainName {
		return errors.Errorf("ppo: %s was saved for brain %q, not %q", path, header.Checkpoint.BrainName, t.params.BrainName)
	}
	if err := t.LoadStateDict(state); err != nil {
		return err
	}
	t.step = header.Checkpoint.Step
	t.lastReward = header.Checkpoint.LastReward
	klog.V(1).Infof("ppo: %s: restored checkpoint of step %d from %s", t.params.BrainName, t.step, path)
	return nil
}
