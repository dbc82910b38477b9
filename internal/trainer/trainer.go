// Package trainer defines the contract between the environment loop and a
// learning algorithm, plus the experience buffers and statistics shared by
// trainer implementations.
//
// A trainer is driven once per tick in a fixed order:
//
//	out := t.TakeAction(cur)
//	next := env.Step(out)
//	t.AddExperiences(cur, next, out)
//	t.ProcessExperiences(cur, next)
//	if t.IsReadyUpdate() {
//	    t.UpdateModel()
//	}
//	t.IncrementStep()
//	t.UpdateLastReward()
//
// Trainers are not safe for concurrent use.
package trainer

import (
	"github.com/born-ml/agents/internal/agent"
)

// Trainer is a learning algorithm for one brain.
type Trainer interface {
	// BrainName returns the name of the brain being trained.
	BrainName() string

	// Step returns the number of steps taken so far.
	Step() int

	// MaxStep returns the number of steps after which training stops.
	MaxStep() int

	// IsTraining reports whether the trainer updates its model. Inference-only
	// trainers act deterministically.
	IsTraining() bool

	// TakeAction decides the actions of all agents in cur.
	TakeAction(cur agent.BrainInfo) (agent.TakeActionOutput, error)

	// AddExperiences records the transition cur -> next produced by out.
	AddExperiences(cur, next agent.BrainInfo, out agent.TakeActionOutput)

	// ProcessExperiences moves finished trajectories into the update buffer.
	ProcessExperiences(cur, next agent.BrainInfo) error

	// IsReadyUpdate reports whether enough experience was collected for UpdateModel.
	IsReadyUpdate() bool

	// UpdateModel runs one optimization update and clears the update buffer.
	UpdateModel() error

	// Statistics returns the statistics accumulated since the last summary.
	Statistics() *Stats

	// IncrementStep advances the step counter (and any schedule tied to it).
	IncrementStep()

	// UpdateLastReward refreshes LastReward from the recent episode rewards.
	UpdateLastReward()

	// LastReward returns the mean cumulative reward of recent episodes.
	LastReward() float64

	// EndEpisode discards unfinished trajectories and resets per-episode trackers.
	EndEpisode()
}
