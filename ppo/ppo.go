// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package ppo

import (
	"github.com/born-ml/agents/internal/academy"
	"github.com/born-ml/agents/internal/agent"
	"github.com/born-ml/agents/internal/config"
	"github.com/born-ml/agents/internal/env"
	"github.com/born-ml/agents/internal/trainer"
	"github.com/born-ml/agents/internal/trainer/ppo"
)

// Trainer

// Trainer trains one brain with PPO.
type Trainer = ppo.Trainer

// CheckpointOptions configures Trainer.Save.
type CheckpointOptions = ppo.CheckpointOptions

// Stats holds the statistics a trainer accumulates between summaries.
type Stats = trainer.Stats

// Statistics recorded by the trainer.
const (
	StatCumulativeReward = trainer.StatCumulativeReward
	StatEpisodeLength    = trainer.StatEpisodeLength
	StatPolicyLoss       = trainer.StatPolicyLoss
	StatValueLoss        = trainer.StatValueLoss
	StatEntropy          = trainer.StatEntropy
	StatLearningRate     = trainer.StatLearningRate
	StatValueEstimate    = trainer.StatValueEstimate
)

// New creates a PPO trainer for the brain described by params. With training
// false the trainer acts deterministically and never updates its model.
func New(params BrainParameters, cfg Config, training bool) (*Trainer, error) {
	return ppo.New(params, cfg, training)
}

// GAE computes generalized advantage estimates and discounted returns of one
// trajectory.
func GAE(rewards, values []float64, bootstrap, gamma, lambda float64) (advantages, returns []float64) {
	return ppo.GAE(rewards, values, bootstrap, gamma, lambda)
}

// Configuration

// Config is the trainer configuration of one brain.
type Config = config.Trainer

// Steps is a step count that also accepts YAML floats such as 5.0e5.
type Steps = config.Steps

// DefaultConfig returns the ML-Agents PPO defaults.
func DefaultConfig() Config {
	return config.Default()
}

// LoadConfig reads the configuration of brain from an ML-Agents style
// trainer_config.yaml: defaults, then the "default" section, then the
// brain's section.
func LoadConfig(path, brain string) (Config, error) {
	f, err := config.Load(path)
	if err != nil {
		return Config{}, err
	}
	return f.ForBrain(brain)
}

// Environments

// BrainParameters describes the observations and actions of a brain.
type BrainParameters = agent.BrainParameters

// BrainInfo holds the snapshots of all agents of a brain.
type BrainInfo = agent.BrainInfo

// TakeActionOutput is the decision of one step for all agents of a brain.
type TakeActionOutput = agent.TakeActionOutput

// Environment is a set of agents sharing one brain.
type Environment = env.Environment

// NewCartPole creates the discrete-action pole balancing environment.
func NewCartPole(numAgents int, seed int64) Environment {
	return env.NewCartPole(numAgents, seed)
}

// NewPointMass creates the continuous-action point mass environment.
func NewPointMass(numAgents int, seed int64) Environment {
	return env.NewPointMass(numAgents, seed)
}

// NewEnvironment creates a built-in environment by name.
func NewEnvironment(name string, numAgents int, seed int64) (Environment, error) {
	return env.New(name, numAgents, seed)
}

// Academy

// Academy runs a trainer against an environment.
type Academy = academy.Academy

// AcademyOptions configures an Academy.
type AcademyOptions = academy.Options

// Hooks are called by the Academy at the configured frequencies.
type Hooks = academy.Hooks

// NewAcademy creates an Academy driving t against e.
func NewAcademy(e Environment, t *Trainer, opts AcademyOptions) (*Academy, error) {
	return academy.New(e, t, opts)
}
