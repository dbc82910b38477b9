package trainer

import (
	"math"
	"math/rand"

	"github.com/pkg/errors"
)

// Trajectory is the experience of one agent since its last processing.
type Trajectory struct {
	Observations [][]float64
	Actions      [][]float64
	LogProbs     []float64
	Values       []float64
	Rewards      []float64
	Dones        []bool
}

// Append records one transition.
func (t *Trajectory) Append(obs, action []float64, logProb, value, reward float64, done bool) {
	t.Observations = append(t.Observations, obs)
	t.Actions = append(t.Actions, action)
	t.LogProbs = append(t.LogProbs, logProb)
	t.Values = append(t.Values, value)
	t.Rewards = append(t.Rewards, reward)
	t.Dones = append(t.Dones, done)
}

// Len returns the number of transitions.
func (t *Trajectory) Len() int { return len(t.Rewards) }

// Reset drops all transitions, keeping the allocated memory.
func (t *Trajectory) Reset() {
	t.Observations = t.Observations[:0]
	t.Actions = t.Actions[:0]
	t.LogProbs = t.LogProbs[:0]
	t.Values = t.Values[:0]
	t.Rewards = t.Rewards[:0]
	t.Dones = t.Dones[:0]
}

// Buffer holds the in-progress trajectory of every agent, keyed by agent id.
type Buffer struct {
	trajectories map[int]*Trajectory
}

// NewBuffer creates an empty buffer.
func NewBuffer() *Buffer {
	return &Buffer{trajectories: make(map[int]*Trajectory)}
}

// Get returns the trajectory of agent id, creating it when missing.
func (b *Buffer) Get(id int) *Trajectory {
	t, ok := b.trajectories[id]
	if !ok {
		t = &Trajectory{}
		b.trajectories[id] = t
	}
	return t
}

// Has reports whether agent id has recorded transitions.
func (b *Buffer) Has(id int) bool {
	t, ok := b.trajectories[id]
	return ok && t.Len() > 0
}

// Reset drops the trajectories of all agents.
func (b *Buffer) Reset() {
	clear(b.trajectories)
}

// Batch is a set of processed transitions ready for optimization: row i of
// every field belongs to the same transition.
type Batch struct {
	Observations [][]float64
	Actions      [][]float64
	LogProbs     []float64
	Values       []float64
	Advantages   []float64
	Returns      []float64
}

// Len returns the number of transitions.
func (b *Batch) Len() int { return len(b.Returns) }

// AppendTrajectory moves the transitions of t together with their advantages
// and returns into the batch.
func (b *Batch) AppendTrajectory(t *Trajectory, advantages, returns []float64) error {
	if len(advantages) != t.Len() || len(returns) != t.Len() {
		return errors.Errorf("trajectory has %d transitions but %d advantages and %d returns",
			t.Len(), len(advantages), len(returns))
	}
	b.Observations = append(b.Observations, t.Observations...)
	b.Actions = append(b.Actions, t.Actions...)
	b.LogProbs = append(b.LogProbs, t.LogProbs...)
	b.Values = append(b.Values, t.Values...)
	b.Advantages = append(b.Advantages, advantages...)
	b.Returns = append(b.Returns, returns...)
	return nil
}

// Reset drops all transitions.
func (b *Batch) Reset() {
	*b = Batch{}
}

// Shuffle permutes the transitions in place.
func (b *Batch) Shuffle(rng *rand.Rand) {
	rng.Shuffle(b.Len(), func(i, j int) {
		b.Observations[i], b.Observations[j] = b.Observations[j], b.Observations[i]
		b.Actions[i], b.Actions[j] = b.Actions[j], b.Actions[i]
		b.LogProbs[i], b.LogProbs[j] = b.LogProbs[j], b.LogProbs[i]
		b.Values[i], b.Values[j] = b.Values[j], b.Values[i]
		b.Advantages[i], b.Advantages[j] = b.Advantages[j], b.Advantages[i]
		b.Returns[i], b.Returns[j] = b.Returns[j], b.Returns[i]
	})
}

// Slice returns the transitions [start, end) sharing memory with b.
func (b *Batch) Slice(start, end int) *Batch {
	return &Batch{
		Observations: b.Observations[start:end],
		Actions:      b.Actions[start:end],
		LogProbs:     b.LogProbs[start:end],
		Values:       b.Values[start:end],
		Advantages:   b.Advantages[start:end],
		Returns:      b.Returns[start:end],
	}
}

// Minibatches splits b into consecutive minibatches of size transitions; the
// remainder smaller than size is dropped unless it is the only minibatch.
func (b *Batch) Minibatches(size int) []*Batch {
	if size <= 0 || size >= b.Len() {
		return []*Batch{b}
	}
	var batches []*Batch
	for start := 0; start+size <= b.Len(); start += size {
		batches = append(batches, b.Slice(start, start+size))
	}
	return batches
}

// NormalizeAdvantages rescales the advantages to zero mean and unit variance.
func (b *Batch) NormalizeAdvantages() {
	n := float64(len(b.Advantages))
	if n == 0 {
		return
	}
	mean := 0.0
	for _, a := range b.Advantages {
		mean += a
	}
	mean /= n
	variance := 0.0
	for _, a := range b.Advantages {
		variance += (a - mean) * (a - mean)
	}
	std := math.Sqrt(variance/n) + 1e-10
	for i, a := range b.Advantages {
		b.Advantages[i] = (a - mean) / std
	}
}
