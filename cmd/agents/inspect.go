package main

import (
	"flag"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/born-ml/agents/internal/serialization"
	"github.com/born-ml/agents/internal/tensor"
	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
)

// runInspect prints the tensors and metadata of a .born checkpoint or an
// exported .safetensors file.
func runInspect(args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: inspect <file.born|file.safetensors>")
	}
	path := fs.Arg(0)

	var (
		state    map[string]*tensor.RawTensor
		metadata map[string]string
		err      error
	)
	if strings.EqualFold(filepath.Ext(path), ".safetensors") {
		state, metadata, err = serialization.ReadSafeTensors(path)
	} else {
		var header serialization.Header
		state, header, err = serialization.Load(path, serialization.ReaderOptions{})
		metadata = header.Metadata
		if err == nil {
			fmt.Printf("model %q, run %s, written %s\n", header.ModelType, header.RunID, humanize.Time(header.CreatedAt))
			if cp := header.Checkpoint; cp != nil {
				fmt.Printf("brain %s at step %s of %s, last reward %.3f\n",
					cp.BrainName, humanize.Comma(int64(cp.Step)), humanize.Comma(int64(cp.MaxStep)), cp.LastReward)
			}
		}
	}
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %s: %s\n", k, metadata[k])
	}
	fmt.Println(tensorTable(state))
	return nil
}

func tensorTable(state map[string]*tensor.RawTensor) string {
	names := make([]string, 0, len(state))
	for name := range state {
		names = append(names, name)
	}
	sort.Strings(names)

	table := lgtable.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == lgtable.HeaderRow {
				return lipgloss.NewStyle().Bold(true).Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		Headers("Tensor", "DType", "Shape", "Size")
	var total int
	for _, name := range names {
		t := state[name]
		total += t.ByteSize()
		table.Row(name, t.DType().String(), fmt.Sprint([]int(t.Shape())), humanize.Bytes(uint64(t.ByteSize())))
	}
	table.Row("total", "", humanize.Comma(int64(len(names)))+" tensors", humanize.Bytes(uint64(total)))
	return table.String()
}
