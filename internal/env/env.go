// Package env provides seeded multi-agent environments to train against.
//
// Environments follow the ML-Agents stepping rules: Step applies one action
// per agent, in the agent order of the last returned BrainInfo. An agent that
// reported Done is reset by the following Step and its action is ignored.
package env

import (
	"math/rand"
	"sort"

	"github.com/born-ml/agents/internal/agent"
	"github.com/pkg/errors"
)

// Environment is a set of agents sharing one brain.
type Environment interface {
	// BrainParameters describes observations and actions.
	BrainParameters() agent.BrainParameters

	// Reset restarts every agent and returns the initial observations.
	Reset() agent.BrainInfo

	// Step applies out.Actions and returns the resulting snapshots.
	Step(out agent.TakeActionOutput) (agent.BrainInfo, error)
}

// task is the single-agent dynamics of an environment.
type task interface {
	reset(rng *rand.Rand)
	observe() []float64
	// apply advances one step and returns the reward and whether the
	// episode terminated.
	apply(action []float64) (reward float64, terminal bool)
}

// multiAgent runs one task per agent and implements Environment.
type multiAgent struct {
	params   agent.BrainParameters
	rng      *rand.Rand
	maxSteps int
	tasks    []task
	steps    []int
	done     []bool
}

func newMultiAgent(params agent.BrainParameters, numAgents, maxSteps int, seed int64, newTask func() task) *multiAgent {
	m := &multiAgent{
		params:   params,
		rng:      rand.New(rand.NewSource(seed)),
		maxSteps: maxSteps,
		tasks:    make([]task, numAgents),
		steps:    make([]int, numAgents),
		done:     make([]bool, numAgents),
	}
	for i := range m.tasks {
		m.tasks[i] = newTask()
	}
	return m
}

// BrainParameters describes observations and actions.
func (m *multiAgent) BrainParameters() agent.BrainParameters { return m.params }

// Reset restarts every agent.
func (m *multiAgent) Reset() agent.BrainInfo {
	info := agent.BrainInfo{Agents: make([]agent.Info, len(m.tasks))}
	for i, t := range m.tasks {
		t.reset(m.rng)
		m.steps[i] = 0
		m.done[i] = false
		info.Agents[i] = agent.Info{ID: i, VectorObservation: t.observe()}
	}
	return info
}

// Step applies one action per agent. All actions are checked before any is
// applied, so an invalid action leaves the environment unchanged.
func (m *multiAgent) Step(out agent.TakeActionOutput) (agent.BrainInfo, error) {
	if len(out.Actions) != len(m.tasks) {
		return agent.BrainInfo{}, errors.Errorf("%s: got %d actions for %d agents",
			m.params.BrainName, len(out.Actions), len(m.tasks))
	}
	for i, action := range out.Actions {
		if m.done[i] {
			continue
		}
		if err := m.checkAction(action); err != nil {
			return agent.BrainInfo{}, errors.WithMessagef(err, "%s: agent %d", m.params.BrainName, i)
		}
	}
	info := agent.BrainInfo{Agents: make([]agent.Info, len(m.tasks))}
	for i, t := range m.tasks {
		if m.done[i] {
			t.reset(m.rng)
			m.steps[i] = 0
			m.done[i] = false
			info.Agents[i] = agent.Info{ID: i, VectorObservation: t.observe()}
			continue
		}
		action := out.Actions[i]
		reward, terminal := t.apply(action)
		m.steps[i]++
		maxStep := !terminal && m.maxSteps > 0 && m.steps[i] >= m.maxSteps
		m.done[i] = terminal || maxStep
		info.Agents[i] = agent.Info{
			ID:                i,
			VectorObservation: t.observe(),
			PreviousAction:    append([]float64(nil), action...),
			Reward:            reward,
			Done:              m.done[i],
			MaxStepReached:    maxStep,
		}
	}
	return info, nil
}

func (m *multiAgent) checkAction(action []float64) error {
	switch m.params.ActionSpaceType {
	case agent.Discrete:
		if len(action) != 1 {
			return errors.Errorf("discrete action must hold 1 value, got %d", len(action))
		}
		if a := int(action[0]); a < 0 || a >= m.params.ActionSize || float64(a) != action[0] {
			return errors.Errorf("discrete action %g out of range [0, %d)", action[0], m.params.ActionSize)
		}
	case agent.Continuous:
		if len(action) != m.params.ActionSize {
			return errors.Errorf("continuous action must hold %d values, got %d", m.params.ActionSize, len(action))
		}
	}
	return nil
}

// Factory creates an environment with numAgents agents.
type Factory func(numAgents int, seed int64) Environment

var registry = map[string]Factory{
	"cartpole":  func(n int, seed int64) Environment { return NewCartPole(n, seed) },
	"pointmass": func(n int, seed int64) Environment { return NewPointMass(n, seed) },
}

// New creates the environment registered under name.
func New(name string, numAgents int, seed int64) (Environment, error) {
	factory, ok := registry[name]
	if !ok {
		return nil, errors.Errorf("unknown environment %q (available: %v)", name, Names())
	}
	if numAgents < 1 {
		return nil, errors.Errorf("number of agents must be >= 1, got %d", numAgents)
	}
	return factory(numAgents, seed), nil
}

// Names returns the registered environment names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
