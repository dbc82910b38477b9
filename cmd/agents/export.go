package main

import (
	"flag"
	"os"
	"strconv"
	"strings"

	"github.com/born-ml/agents/internal/config"
	"github.com/born-ml/agents/internal/env"
	"github.com/born-ml/agents/internal/serialization"
	"github.com/born-ml/agents/internal/trainer/ppo"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// runExport writes the policy weights of a checkpoint as SafeTensors,
// leaving out the optimizer state.
func runExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	checkpoint := fs.String("checkpoint", "", "Checkpoint (.born) to export")
	out := fs.String("out", "", "Output file; the checkpoint path with a .safetensors extension when empty")
	half := fs.Bool("half", false, "Store float tensors as F16")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *checkpoint == "" {
		return errors.New("-checkpoint is required")
	}
	if *out == "" {
		*out = strings.TrimSuffix(*checkpoint, ".born") + ".safetensors"
	}

	header, err := serialization.ReadHeader(*checkpoint)
	if err != nil {
		return err
	}
	if header.Checkpoint == nil {
		return errors.Errorf("%s has no training state", *checkpoint)
	}
	envName := header.Metadata["env"]
	if envName == "" {
		return errors.Errorf("%s does not record its environment", *checkpoint)
	}
	e, err := env.New(envName, 1, 0)
	if err != nil {
		return err
	}
	cfg, err := config.FromMap(header.Checkpoint.TrainerConfig)
	if err != nil {
		return err
	}
	t, err := ppo.New(e.BrainParameters(), cfg, false)
	if err != nil {
		return err
	}
	if err := t.Load(*checkpoint); err != nil {
		return err
	}
	weights, err := t.Weights()
	if err != nil {
		return err
	}
	metadata := map[string]string{
		"brain":  header.Checkpoint.BrainName,
		"step":   strconv.Itoa(header.Checkpoint.Step),
		"run_id": header.RunID,
		"format": "born-agents",
	}
	if err := serialization.WriteSafeTensors(*out, weights, metadata, serialization.WriteOptions{HalfPrecision: *half}); err != nil {
		return err
	}
	if info, err := os.Stat(*out); err == nil {
		klog.Infof("export: wrote %d tensors to %s (%s)", len(weights), *out, humanize.Bytes(uint64(info.Size())))
	}
	return nil
}
