package trainer

import (
	"math"
	"slices"
	"sort"
)

// Well known statistic names.
const (
	StatCumulativeReward = "Environment/Cumulative Reward"
	StatEpisodeLength    = "Environment/Episode Length"
	StatPolicyLoss       = "Losses/Policy Loss"
	StatValueLoss        = "Losses/Value Loss"
	StatEntropy          = "Policy/Entropy"
	StatLearningRate     = "Policy/Learning Rate"
	StatValueEstimate    = "Policy/Value Estimate"
)

// Stats accumulates named series of values between summaries.
type Stats struct {
	values map[string][]float64
}

// NewStats creates an empty collection.
func NewStats() *Stats {
	return &Stats{values: make(map[string][]float64)}
}

// Add appends values to the series name.
func (s *Stats) Add(name string, values ...float64) {
	s.values[name] = append(s.values[name], values...)
}

// Values returns the series name.
func (s *Stats) Values(name string) []float64 {
	return s.values[name]
}

// Len returns the number of values in the series name.
func (s *Stats) Len(name string) int {
	return len(s.values[name])
}

// Mean returns the mean of the series name, NaN when empty.
func (s *Stats) Mean(name string) float64 {
	v := s.values[name]
	if len(v) == 0 {
		return math.NaN()
	}
	sum := 0.0
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}

// Std returns the population standard deviation of the series name, NaN when empty.
func (s *Stats) Std(name string) float64 {
	v := s.values[name]
	if len(v) == 0 {
		return math.NaN()
	}
	mean := s.Mean(name)
	sum := 0.0
	for _, x := range v {
		sum += (x - mean) * (x - mean)
	}
	return math.Sqrt(sum / float64(len(v)))
}

// Names returns the names of the non-empty series, sorted.
func (s *Stats) Names() []string {
	names := make([]string, 0, len(s.values))
	for name, v := range s.values {
		if len(v) > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Snapshot returns the mean of every non-empty series.
func (s *Stats) Snapshot() map[string]float64 {
	snapshot := make(map[string]float64, len(s.values))
	for _, name := range s.Names() {
		snapshot[name] = s.Mean(name)
	}
	return snapshot
}

// Clone returns a deep copy.
func (s *Stats) Clone() *Stats {
	c := NewStats()
	for name, v := range s.values {
		c.values[name] = slices.Clone(v)
	}
	return c
}

// Reset clears every series.
func (s *Stats) Reset() {
	clear(s.values)
}
