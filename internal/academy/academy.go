// Package academy drives one environment and one trainer through the
// per-tick loop:
//
//	collect -> decide -> apply -> record -> update if ready -> advance step
//
// Each phase is exposed on its own so hosts can interleave their own work,
// and Tick composes them. Calling a phase out of order is an error.
package academy

import (
	"context"

	"github.com/born-ml/agents/internal/agent"
	"github.com/born-ml/agents/internal/env"
	"github.com/born-ml/agents/internal/trainer"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// phase is the last completed phase of the current tick.
type phase int

const (
	uninitialized phase = iota
	// collected: the current BrainInfo is available.
	collected
	decided
	applied
	recorded
)

// Hooks are called by Tick at the configured frequencies. Nil hooks are skipped.
type Hooks struct {
	// Summary receives the trainer statistics every SummaryFreq steps. The
	// statistics are reset after it returns.
	Summary func(step int, stats *trainer.Stats) error
	// Checkpoint is called every SaveFreq steps and once when Run ends.
	Checkpoint func(step int) error
	// Step is called after every tick.
	Step func(step int)
}

// Options configures an Academy.
type Options struct {
	SummaryFreq int
	SaveFreq    int
	Hooks       Hooks
}

// Academy runs a trainer against an environment. It is not safe for
// concurrent use.
type Academy struct {
	Env     env.Environment
	Trainer trainer.Trainer
	opts    Options

	phase phase
	cur   agent.BrainInfo
	out   agent.TakeActionOutput
	next  agent.BrainInfo
}

// New creates an Academy. The environment's brain must be the one the
// trainer was built for.
func New(e env.Environment, t trainer.Trainer, opts Options) (*Academy, error) {
	if name := e.BrainParameters().BrainName; name != t.BrainName() {
		return nil, errors.Errorf("academy: environment brain %q does not match trainer brain %q", name, t.BrainName())
	}
	if opts.SummaryFreq < 0 || opts.SaveFreq < 0 {
		return nil, errors.Errorf("academy: frequencies must be >= 0, got summary %d and save %d", opts.SummaryFreq, opts.SaveFreq)
	}
	return &Academy{Env: e, Trainer: t, opts: opts}, nil
}

// Initialize resets the environment and collects the first observations.
func (a *Academy) Initialize() {
	a.Trainer.EndEpisode()
	a.cur = a.Env.Reset()
	a.phase = collected
	klog.V(1).Infof("academy: %s: initialized with %d agents", a.Trainer.BrainName(), a.cur.Len())
}

// Current returns the BrainInfo the next decision is made on.
func (a *Academy) Current() agent.BrainInfo { return a.cur }

func (a *Academy) expect(want phase, op string) error {
	if a.phase != want {
		return errors.Errorf("academy: %s called out of order", op)
	}
	return nil
}

// DecideActions asks the trainer for the actions of the current agents.
func (a *Academy) DecideActions() error {
	if err := a.expect(collected, "DecideActions"); err != nil {
		return err
	}
	out, err := a.Trainer.TakeAction(a.cur)
	if err != nil {
		return err
	}
	a.out = out
	a.phase = decided
	return nil
}

// ApplyActions steps the environment with the decided actions.
func (a *Academy) ApplyActions() error {
	if err := a.expect(decided, "ApplyActions"); err != nil {
		return err
	}
	next, err := a.Env.Step(a.out)
	if err != nil {
		return err
	}
	a.next = next
	a.phase = applied
	return nil
}

// RecordExperience hands the transition to the trainer.
func (a *Academy) RecordExperience() error {
	if err := a.expect(applied, "RecordExperience"); err != nil {
		return err
	}
	if a.Trainer.IsTraining() {
		a.Trainer.AddExperiences(a.cur, a.next, a.out)
		if err := a.Trainer.ProcessExperiences(a.cur, a.next); err != nil {
			return err
		}
	}
	a.phase = recorded
	return nil
}

// MaybeUpdate updates the model when the trainer is ready and reports
// whether it did.
func (a *Academy) MaybeUpdate() (bool, error) {
	if err := a.expect(recorded, "MaybeUpdate"); err != nil {
		return false, err
	}
	if !a.Trainer.IsTraining() || !a.Trainer.IsReadyUpdate() {
		return false, nil
	}
	return true, a.Trainer.UpdateModel()
}

// Tick runs one full step of the loop, advances the trainer step and runs
// the hooks that are due.
//
// A failed Tick leaves the Academy ready for the next one: when the
// environment did not step, the next Tick decides again on the same
// observations; otherwise it continues from the environment's new state and
// the failed transition is not counted as a step.
func (a *Academy) Tick() error {
	if a.phase == uninitialized {
		a.Initialize()
	}
	if err := a.DecideActions(); err != nil {
		a.phase = collected
		return err
	}
	if err := a.ApplyActions(); err != nil {
		a.phase = collected
		return err
	}
	if err := a.RecordExperience(); err != nil {
		a.advance()
		return err
	}
	if _, err := a.MaybeUpdate(); err != nil {
		a.advance()
		return err
	}
	a.Trainer.IncrementStep()
	a.Trainer.UpdateLastReward()
	a.advance()
	return a.runHooks(a.Trainer.Step())
}

// advance makes the observations after the applied actions current.
func (a *Academy) advance() {
	a.cur, a.next = a.next, agent.BrainInfo{}
	a.phase = collected
}

func (a *Academy) runHooks(step int) error {
	hooks := a.opts.Hooks
	if hooks.Step != nil {
		hooks.Step(step)
	}
	if a.opts.SummaryFreq > 0 && step%a.opts.SummaryFreq == 0 && a.Trainer.IsTraining() {
		stats := a.Trainer.Statistics()
		if hooks.Summary != nil {
			if err := hooks.Summary(step, stats); err != nil {
				return errors.WithMessagef(err, "academy: summary at step %d", step)
			}
		}
		stats.Reset()
	}
	if a.opts.SaveFreq > 0 && step%a.opts.SaveFreq == 0 && a.Trainer.IsTraining() && hooks.Checkpoint != nil {
		if err := hooks.Checkpoint(step); err != nil {
			return errors.WithMessagef(err, "academy: checkpoint at step %d", step)
		}
	}
	return nil
}

// Run ticks until the trainer reaches its max step or ctx is done. A final
// checkpoint is written in both cases when training. It returns ctx.Err()
// when interrupted.
func (a *Academy) Run(ctx context.Context) error {
	if a.phase == uninitialized {
		a.Initialize()
	}
	for a.Trainer.Step() < a.Trainer.MaxStep() {
		if err := ctx.Err(); err != nil {
			klog.Infof("academy: %s: interrupted at step %d", a.Trainer.BrainName(), a.Trainer.Step())
			if finishErr := a.finish(); finishErr != nil {
				return finishErr
			}
			return err
		}
		if err := a.Tick(); err != nil {
			return err
		}
	}
	klog.Infof("academy: %s: reached max step %d, last reward %.3f",
		a.Trainer.BrainName(), a.Trainer.MaxStep(), a.Trainer.LastReward())
	return a.finish()
}

// finish writes the final checkpoint.
func (a *Academy) finish() error {
	if !a.Trainer.IsTraining() || a.opts.Hooks.Checkpoint == nil {
		return nil
	}
	step := a.Trainer.Step()
	if a.opts.SaveFreq > 0 && step%a.opts.SaveFreq == 0 && step > 0 {
		// Already saved by the last tick.
		return nil
	}
	return errors.WithMessagef(a.opts.Hooks.Checkpoint(step), "academy: final checkpoint")
}
