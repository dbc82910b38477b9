// Package config reads trainer configuration files in the ML-Agents
// trainer_config.yaml layout: a "default" section plus one optional section
// per brain overriding some of its keys.
//
//	default:
//	  trainer: ppo
//	  batch_size: 1024
//	  max_steps: 5.0e5
//	CartPoleBrain:
//	  batch_size: 64
//	  hidden_units: 32
package config

import (
	"math"
	"os"
	"strconv"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
	"k8s.io/klog/v2"
)

// DefaultSection is the name of the section every brain inherits from.
const DefaultSection = "default"

// Steps is a step count that also accepts YAML floats such as 5.0e5.
type Steps int

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *Steps) UnmarshalYAML(node *yaml.Node) error {
	f, err := strconv.ParseFloat(node.Value, 64)
	if err != nil {
		return errors.Errorf("line %d: invalid step count %q", node.Line, node.Value)
	}
	if f < 0 || f != math.Trunc(f) || f > math.MaxInt32 {
		return errors.Errorf("line %d: step count must be a non-negative integer, got %q", node.Line, node.Value)
	}
	*s = Steps(f)
	return nil
}

// Trainer is the configuration of one brain's trainer.
type Trainer struct {
	Trainer      string  `yaml:"trainer"`
	BatchSize    int     `yaml:"batch_size"`
	Beta         float64 `yaml:"beta"`
	BufferSize   int     `yaml:"buffer_size"`
	Epsilon      float64 `yaml:"epsilon"`
	Gamma        float64 `yaml:"gamma"`
	HiddenUnits  int     `yaml:"hidden_units"`
	Lambd        float64 `yaml:"lambd"`
	LearningRate float64 `yaml:"learning_rate"`
	MaxSteps     Steps   `yaml:"max_steps"`
	NumEpoch     int     `yaml:"num_epoch"`
	NumLayers    int     `yaml:"num_layers"`
	TimeHorizon  int     `yaml:"time_horizon"`
	SummaryFreq  Steps   `yaml:"summary_freq"`
	SaveFreq     Steps   `yaml:"save_freq"`
	MaxGradNorm  float64 `yaml:"max_grad_norm"`
	Normalize    bool    `yaml:"normalize"`
	UseRecurrent bool    `yaml:"use_recurrent"`
	UseCuriosity bool    `yaml:"use_curiosity"`
	Seed         int64   `yaml:"seed"`
}

// Default returns the ML-Agents PPO defaults.
func Default() Trainer {
	return Trainer{
		Trainer:      "ppo",
		BatchSize:    1024,
		Beta:         5e-3,
		BufferSize:   10240,
		Epsilon:      0.2,
		Gamma:        0.99,
		HiddenUnits:  128,
		Lambd:        0.95,
		LearningRate: 3e-4,
		MaxSteps:     5e5,
		NumEpoch:     3,
		NumLayers:    2,
		TimeHorizon:  64,
		SummaryFreq:  1000,
		SaveFreq:     50000,
	}
}

// Validate checks the values and rejects the features this trainer does not
// implement.
func (c Trainer) Validate() error {
	switch {
	case c.Trainer != "ppo":
		return errors.Errorf("unsupported trainer %q, only \"ppo\" is available", c.Trainer)
	case c.UseRecurrent:
		return errors.New("use_recurrent is not supported")
	case c.UseCuriosity:
		return errors.New("use_curiosity is not supported")
	case c.BatchSize < 1:
		return errors.Errorf("batch_size must be >= 1, got %d", c.BatchSize)
	case c.BufferSize < c.BatchSize:
		return errors.Errorf("buffer_size (%d) must be >= batch_size (%d)", c.BufferSize, c.BatchSize)
	case c.Gamma <= 0 || c.Gamma > 1:
		return errors.Errorf("gamma must be in (0, 1], got %g", c.Gamma)
	case c.Lambd < 0 || c.Lambd > 1:
		return errors.Errorf("lambd must be in [0, 1], got %g", c.Lambd)
	case c.Epsilon <= 0:
		return errors.Errorf("epsilon must be > 0, got %g", c.Epsilon)
	case c.Beta < 0:
		return errors.Errorf("beta must be >= 0, got %g", c.Beta)
	case c.LearningRate <= 0:
		return errors.Errorf("learning_rate must be > 0, got %g", c.LearningRate)
	case c.NumEpoch < 1:
		return errors.Errorf("num_epoch must be >= 1, got %d", c.NumEpoch)
	case c.NumLayers < 0:
		return errors.Errorf("num_layers must be >= 0, got %d", c.NumLayers)
	case c.NumLayers > 0 && c.HiddenUnits < 1:
		return errors.Errorf("hidden_units must be >= 1, got %d", c.HiddenUnits)
	case c.TimeHorizon < 1:
		return errors.Errorf("time_horizon must be >= 1, got %d", c.TimeHorizon)
	case c.SummaryFreq < 1:
		return errors.Errorf("summary_freq must be >= 1, got %d", c.SummaryFreq)
	case c.MaxGradNorm < 0:
		return errors.Errorf("max_grad_norm must be >= 0, got %g", c.MaxGradNorm)
	}
	return nil
}

// File is a parsed trainer configuration file.
type File struct {
	sections map[string]yaml.Node
}

// Parse parses a configuration file's content.
func Parse(data []byte) (*File, error) {
	f := &File{}
	if err := yaml.Unmarshal(data, &f.sections); err != nil {
		return nil, errors.Wrap(err, "parsing trainer configuration")
	}
	if f.sections == nil {
		f.sections = make(map[string]yaml.Node)
	}
	return f, nil
}

// Load reads and parses the configuration file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading trainer configuration")
	}
	f, err := Parse(data)
	if err != nil {
		return nil, errors.WithMessage(err, path)
	}
	return f, nil
}

// Brains returns the names of the brain sections.
func (f *File) Brains() []string {
	var names []string
	for name := range f.sections {
		if name != DefaultSection {
			names = append(names, name)
		}
	}
	return names
}

// ForBrain returns the validated configuration of brainName: Default(),
// overridden by the default section, overridden by the brain's section.
func (f *File) ForBrain(brainName string) (Trainer, error) {
	cfg := Default()
	if node, ok := f.sections[DefaultSection]; ok {
		if err := node.Decode(&cfg); err != nil {
			return Trainer{}, errors.Wrapf(err, "section %q", DefaultSection)
		}
	}
	if node, ok := f.sections[brainName]; ok {
		if err := node.Decode(&cfg); err != nil {
			return Trainer{}, errors.Wrapf(err, "section %q", brainName)
		}
	} else {
		klog.V(1).Infof("config: no section for brain %q, using defaults", brainName)
	}
	if cfg.Normalize {
		klog.Warningf("config: brain %q: normalize is not implemented and is ignored", brainName)
	}
	if err := cfg.Validate(); err != nil {
		return Trainer{}, errors.WithMessagef(err, "brain %q", brainName)
	}
	return cfg, nil
}

// Marshal renders cfg as a YAML section, e.g. to record the configuration
// used for a run next to its checkpoints.
func Marshal(brainName string, cfg Trainer) ([]byte, error) {
	data, err := yaml.Marshal(map[string]Trainer{brainName: cfg})
	return data, errors.Wrap(err, "marshaling trainer configuration")
}

// ToMap renders cfg as a map keyed by the YAML names, as stored in
// checkpoint headers.
func ToMap(cfg Trainer) (map[string]any, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "encoding trainer configuration")
	}
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(err, "encoding trainer configuration")
	}
	return m, nil
}

// FromMap is the inverse of ToMap. Missing keys keep their Default() value
// and the result is validated.
func FromMap(m map[string]any) (Trainer, error) {
	cfg := Default()
	data, err := yaml.Marshal(m)
	if err != nil {
		return Trainer{}, errors.Wrap(err, "decoding trainer configuration")
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Trainer{}, errors.Wrap(err, "decoding trainer configuration")
	}
	return cfg, cfg.Validate()
}
