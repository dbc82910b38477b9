// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package ppo trains actor-critic policies with Proximal Policy Optimization.
//
// # Overview
//
// A Trainer owns the policy graph of one brain: a SimpleActorCritic network,
// the action distribution (softmax for discrete actions, a Gaussian with a
// learned log standard deviation for continuous ones) and the clipped
// surrogate loss optimized with Adam. An Academy drives a Trainer against an
// Environment tick by tick:
//
//	collect -> decide -> apply -> record -> update if ready -> advance step
//
// # Basic Usage
//
//	e := ppo.NewCartPole(8, 1)
//	cfg := ppo.DefaultConfig()
//	cfg.MaxSteps = 50000
//	t, err := ppo.New(e.BrainParameters(), cfg, true)
//	if err != nil {
//	    return err
//	}
//	a, err := ppo.NewAcademy(e, t, ppo.AcademyOptions{SummaryFreq: 1000})
//	if err != nil {
//	    return err
//	}
//	if err := a.Run(ctx); err != nil {
//	    return err
//	}
//	return t.Save("cartpole.born", ppo.CheckpointOptions{})
//
// Configuration files use the ML-Agents trainer_config.yaml layout; see
// LoadConfig.
package ppo
