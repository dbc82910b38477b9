// Package agent defines the data exchanged between environments and
// trainers: brain descriptions, per-agent observations and the per-step
// action record.
package agent

import (
	"strings"

	"github.com/pkg/errors"
)

// SpaceType is the kind of an action space.
type SpaceType int

const (
	// Discrete actions are integer indices in [0, ActionSize).
	Discrete SpaceType = iota
	// Continuous actions are real vectors of length ActionSize.
	Continuous
)

// String returns "discrete" or "continuous".
func (s SpaceType) String() string {
	switch s {
	case Discrete:
		return "discrete"
	case Continuous:
		return "continuous"
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (s SpaceType) MarshalText() ([]byte, error) {
	if s != Discrete && s != Continuous {
		return nil, errors.Errorf("invalid space type %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler; matching is case-insensitive.
func (s *SpaceType) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "discrete":
		*s = Discrete
	case "continuous":
		*s = Continuous
	default:
		return errors.Errorf("unknown space type %q", text)
	}
	return nil
}

// BrainParameters describes the observations and actions of a brain.
type BrainParameters struct {
	BrainName              string    `yaml:"brain_name"`
	VectorObservationSize  int       `yaml:"vector_observation_size"`
	NumStackedObservations int       `yaml:"num_stacked_vector_observations"`
	ActionSize             int       `yaml:"vector_action_size"`
	ActionSpaceType        SpaceType `yaml:"vector_action_space_type"`
	NumVisualObservations  int       `yaml:"number_visual_observations"`
	MemorySize             int       `yaml:"memory_size"`
	ActionDescriptions     []string  `yaml:"vector_action_descriptions,omitempty"`
}

// StateSize returns the size of the (stacked) vector observation.
func (p BrainParameters) StateSize() int {
	if p.NumStackedObservations > 1 {
		return p.VectorObservationSize * p.NumStackedObservations
	}
	return p.VectorObservationSize
}

// Validate checks the sizes.
func (p BrainParameters) Validate() error {
	switch {
	case p.VectorObservationSize < 1:
		return errors.Errorf("brain %q: vector observation size must be >= 1, got %d", p.BrainName, p.VectorObservationSize)
	case p.ActionSize < 1:
		return errors.Errorf("brain %q: action size must be >= 1, got %d", p.BrainName, p.ActionSize)
	case p.ActionSpaceType != Discrete && p.ActionSpaceType != Continuous:
		return errors.Errorf("brain %q: invalid action space type %d", p.BrainName, int(p.ActionSpaceType))
	}
	return nil
}

// Info is the snapshot of one agent at one step.
type Info struct {
	ID                 int
	VectorObservation  []float64
	VisualObservations [][]float64
	PreviousAction     []float64
	Memories           []float64
	TextObservation    string
	Reward             float64
	Done               bool
	MaxStepReached     bool
}

// BrainInfo holds the snapshots of all agents of a brain, in a stable order.
type BrainInfo struct {
	Agents []Info
}

// Len returns the number of agents.
func (b BrainInfo) Len() int { return len(b.Agents) }

// IDs returns the agent ids in order.
func (b BrainInfo) IDs() []int {
	ids := make([]int, len(b.Agents))
	for i, a := range b.Agents {
		ids[i] = a.ID
	}
	return ids
}

// Index returns the position of the agent with the given id, or -1.
func (b BrainInfo) Index(id int) int {
	for i, a := range b.Agents {
		if a.ID == id {
			return i
		}
	}
	return -1
}

// Get returns the snapshot of the agent with the given id.
func (b BrainInfo) Get(id int) (Info, bool) {
	if i := b.Index(id); i >= 0 {
		return b.Agents[i], true
	}
	return Info{}, false
}

// Observations returns the vector observations as a row-major [agents, size] slice.
func (b BrainInfo) Observations(size int) ([]float64, error) {
	obs := make([]float64, 0, len(b.Agents)*size)
	for _, a := range b.Agents {
		if len(a.VectorObservation) != size {
			return nil, errors.Errorf("agent %d: observation has %d values, want %d", a.ID, len(a.VectorObservation), size)
		}
		obs = append(obs, a.VectorObservation...)
	}
	return obs, nil
}

// TakeActionOutput is the decision of one step for all agents of a brain.
// Per-agent slices follow the order of the BrainInfo the decision was made on.
type TakeActionOutput struct {
	// Actions holds one action vector per agent: a single index for
	// discrete spaces, ActionSize values for continuous ones.
	Actions [][]float64
	// Probabilities holds the per-agent action probabilities (discrete) or
	// the log-probability of the chosen action (continuous).
	Probabilities [][]float64
	// LogProbs is the log-probability of each chosen action.
	LogProbs []float64
	// Values is the value estimate of each agent's observation.
	Values       []float64
	Entropy      float64
	LearningRate float64
	Memories     [][]float64
	TextActions  []string
}

// Agent receives rewards and done signals from the host loop.
type Agent interface {
	ID() int
	SetReward(reward float64)
	AddReward(reward float64)
	Done()
}

// RewardAccumulator is a minimal Agent that accumulates reward between steps.
type RewardAccumulator struct {
	id     int
	reward float64
	done   bool
}

// NewRewardAccumulator creates an agent with the given id.
func NewRewardAccumulator(id int) *RewardAccumulator {
	return &RewardAccumulator{id: id}
}

// ID returns the agent id.
func (a *RewardAccumulator) ID() int { return a.id }

// SetReward replaces the reward of the current step.
func (a *RewardAccumulator) SetReward(reward float64) { a.reward = reward }

// AddReward adds to the reward of the current step.
func (a *RewardAccumulator) AddReward(reward float64) { a.reward += reward }

// Done marks the episode as finished.
func (a *RewardAccumulator) Done() { a.done = true }

// Collect returns the reward and done flag of the step and resets them.
func (a *RewardAccumulator) Collect() (reward float64, done bool) {
	reward, done = a.reward, a.done
	a.reward, a.done = 0, false
	return reward, done
}
