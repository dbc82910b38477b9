package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/born-ml/agents/internal/academy"
	"github.com/born-ml/agents/internal/config"
	"github.com/born-ml/agents/internal/env"
	"github.com/born-ml/agents/internal/stats"
	"github.com/born-ml/agents/internal/trainer"
	"github.com/born-ml/agents/internal/trainer/ppo"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"
)

// trainFlags are the flags of the train command.
type trainFlags struct {
	configPath string
	envName    string
	numAgents  int
	seed       int64
	runDir     string
	runID      string
	load       string
	inference  bool
	maxSteps   int
	half       bool
	progress   bool
}

func parseTrainFlags(args []string) (trainFlags, error) {
	var f trainFlags
	fs := flag.NewFlagSet("train", flag.ContinueOnError)
	fs.StringVar(&f.configPath, "config", "", "Trainer configuration YAML (ML-Agents trainer_config layout); defaults when empty")
	fs.StringVar(&f.envName, "env", "cartpole", fmt.Sprintf("Environment, one of %v", env.Names()))
	fs.IntVar(&f.numAgents, "agents", 8, "Number of agents sharing the brain")
	fs.Int64Var(&f.seed, "seed", 0, "Environment seed")
	fs.StringVar(&f.runDir, "run-dir", "runs", "Directory of checkpoints and summaries")
	fs.StringVar(&f.runID, "run-id", "", "Run identifier; a new UUID when empty")
	fs.StringVar(&f.load, "load", "", "Checkpoint to resume from")
	fs.BoolVar(&f.inference, "inference", false, "Run the policy without training")
	fs.IntVar(&f.maxSteps, "max-steps", 0, "Override max_steps of the configuration")
	fs.BoolVar(&f.half, "half", false, "Store checkpoints in half precision")
	fs.BoolVar(&f.progress, "progress", true, "Show a progress bar")
	if err := fs.Parse(args); err != nil {
		return f, err
	}
	if f.numAgents < 1 {
		return f, errors.Errorf("-agents must be >= 1, got %d", f.numAgents)
	}
	if f.runID == "" {
		f.runID = uuid.NewString()
	}
	return f, nil
}

// loadConfig returns the trainer configuration of brain.
func loadConfig(path, brain string) (config.Trainer, error) {
	if path == "" {
		cfg := config.Default()
		return cfg, cfg.Validate()
	}
	file, err := config.Load(path)
	if err != nil {
		return config.Trainer{}, err
	}
	return file.ForBrain(brain)
}

func runTrain(args []string) error {
	f, err := parseTrainFlags(args)
	if err != nil {
		return err
	}
	e, err := env.New(f.envName, f.numAgents, f.seed)
	if err != nil {
		return err
	}
	params := e.BrainParameters()
	cfg, err := loadConfig(f.configPath, params.BrainName)
	if err != nil {
		return err
	}
	if f.maxSteps > 0 {
		cfg.MaxSteps = config.Steps(f.maxSteps)
	}
	t, err := ppo.New(params, cfg, !f.inference)
	if err != nil {
		return err
	}
	if f.load != "" {
		if err := t.Load(f.load); err != nil {
			return err
		}
	}

	dir := filepath.Join(f.runDir, f.runID)
	writer, err := stats.NewWriter(dir, params.BrainName, f.runID)
	if err != nil {
		return err
	}
	defer func() { _ = writer.Close() }()
	if data, err := config.Marshal(params.BrainName, cfg); err == nil {
		if err := os.WriteFile(filepath.Join(dir, "trainer_config.yaml"), data, 0o644); err != nil {
			klog.Warningf("train: saving configuration: %v", err)
		}
	}
	klog.Infof("train: run %s on %s with %d agents, checkpoints in %s", f.runID, f.envName, f.numAgents, dir)

	var bar *progressbar.ProgressBar
	if f.progress {
		bar = progressbar.NewOptions(t.MaxStep(),
			progressbar.OptionSetDescription(params.BrainName),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("steps"),
			progressbar.OptionSetTheme(progressbar.ThemeASCII),
			progressbar.OptionClearOnFinish())
		_ = bar.Set(t.Step())
	}

	checkpoint := func(step int) error {
		path := filepath.Join(dir, fmt.Sprintf("%s-%d.born", params.BrainName, step))
		err := t.Save(path, ppo.CheckpointOptions{
			RunID:         f.runID,
			HalfPrecision: f.half,
			Metadata:      map[string]string{"env": f.envName, "agents": strconv.Itoa(f.numAgents)},
		})
		if err != nil {
			return err
		}
		if info, err := os.Stat(path); err == nil {
			klog.Infof("train: saved %s (%s)", path, humanize.Bytes(uint64(info.Size())))
		}
		return nil
	}
	a, err := academy.New(e, t, academy.Options{
		SummaryFreq: int(cfg.SummaryFreq),
		SaveFreq:    int(cfg.SaveFreq),
		Hooks: academy.Hooks{
			Summary: func(step int, s *trainer.Stats) error {
				if err := writer.Write(step, s); err != nil {
					return err
				}
				if bar != nil {
					_ = bar.Clear()
				}
				fmt.Println(writer.Table())
				return nil
			},
			Checkpoint: checkpoint,
			Step: func(step int) {
				if bar != nil {
					_ = bar.Set(step)
				}
			},
		},
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err = a.Run(ctx)
	if bar != nil {
		_ = bar.Finish()
	}
	if plotErr := writer.Plot(); plotErr != nil {
		klog.Warningf("train: %v", plotErr)
	}
	if errors.Is(err, context.Canceled) {
		klog.Infof("train: interrupted at step %s", humanize.Comma(int64(t.Step())))
		return nil
	}
	return err
}
