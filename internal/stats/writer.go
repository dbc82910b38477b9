// Package stats writes training summaries: a CSV log of every statistic, a
// terminal table of the latest summary and a PNG plot of the reward curve.
package stats

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/born-ml/agents/internal/trainer"
	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"k8s.io/klog/v2"
)

// csvHeader is the first row of the summary log.
var csvHeader = []string{"step", "statistic", "mean", "std", "count"}

var (
	cellStyle        = lipgloss.NewStyle().Padding(0, 1)
	rightCellStyle   = lipgloss.NewStyle().Align(lipgloss.Right).Padding(0, 1)
	headerStyle      = lipgloss.NewStyle().Padding(0, 1).Bold(true).Reverse(true)
	tableBorderColor = "#705090"
)

// Summary is the aggregate of one statistic over a summary period.
type Summary struct {
	Name  string
	Mean  float64
	Std   float64
	Count int
}

// Summarize aggregates every non-empty statistic of s, sorted by name.
func Summarize(s *trainer.Stats) []Summary {
	var summaries []Summary
	for _, name := range s.Names() {
		if s.Len(name) == 0 {
			continue
		}
		summaries = append(summaries, Summary{Name: name, Mean: s.Mean(name), Std: s.Std(name), Count: s.Len(name)})
	}
	return summaries
}

// Writer records the summaries of one brain's training run under a
// directory:
//
//	<dir>/<brain>_summary.csv
//	<dir>/<brain>_reward.png
type Writer struct {
	dir   string
	brain string
	runID string

	file *os.File
	csv  *csv.Writer

	rewards plotter.XYs
	last    []Summary
	step    int
}

// NewWriter creates dir if needed and opens the summary log of brain.
func NewWriter(dir, brain, runID string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "stats: creating %s", dir)
	}
	path := filepath.Join(dir, brain+"_summary.csv")
	//nolint:gosec // G304: the summary directory is chosen by the user.
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrapf(err, "stats: creating %s", path)
	}
	w := &Writer{dir: dir, brain: brain, runID: runID, file: f, csv: csv.NewWriter(f)}
	if err := w.csv.Write(csvHeader); err != nil {
		_ = f.Close()
		return nil, errors.Wrap(err, "stats: writing header")
	}
	return w, nil
}

// RunID returns the identifier of the run being recorded.
func (w *Writer) RunID() string { return w.runID }

// Write records the summary of s at step. It does not reset s.
func (w *Writer) Write(step int, s *trainer.Stats) error {
	summaries := Summarize(s)
	for _, sum := range summaries {
		row := []string{
			strconv.Itoa(step),
			sum.Name,
			strconv.FormatFloat(sum.Mean, 'g', -1, 64),
			strconv.FormatFloat(sum.Std, 'g', -1, 64),
			strconv.Itoa(sum.Count),
		}
		if err := w.csv.Write(row); err != nil {
			return errors.Wrap(err, "stats: writing summary")
		}
	}
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		return errors.Wrap(err, "stats: writing summary")
	}
	w.last, w.step = summaries, step

	if s.Len(trainer.StatCumulativeReward) > 0 {
		mean, std := s.Mean(trainer.StatCumulativeReward), s.Std(trainer.StatCumulativeReward)
		w.rewards = append(w.rewards, plotter.XY{X: float64(step), Y: mean})
		klog.Infof("%s: Step: %s. Mean Reward: %.3f. Std of Reward: %.3f.",
			w.brain, humanize.Comma(int64(step)), mean, std)
	} else {
		klog.Infof("%s: Step: %s. No episode was completed since last summary.",
			w.brain, humanize.Comma(int64(step)))
	}
	return nil
}

// Table renders the last written summary as a terminal table.
func (w *Writer) Table() string {
	table := lgtable.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color(tableBorderColor))).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == lgtable.HeaderRow:
				return headerStyle
			case col == 0:
				return cellStyle
			}
			return rightCellStyle
		})
	table.Headers(fmt.Sprintf("%s @ %s", w.brain, humanize.Comma(int64(w.step))), "Mean", "Std", "Count")
	for _, sum := range w.last {
		table.Row(sum.Name, formatValue(sum.Mean), formatValue(sum.Std), humanize.Comma(int64(sum.Count)))
	}
	return table.String()
}

func formatValue(v float64) string {
	if math.IsNaN(v) {
		return "-"
	}
	return humanize.FormatFloat("#,###.####", v)
}

// PlotPath returns the path of the reward plot.
func (w *Writer) PlotPath() string {
	return filepath.Join(w.dir, w.brain+"_reward.png")
}

// Plot saves the mean cumulative reward of every summary written so far. It
// is a no-op before the first completed episode.
func (w *Writer) Plot() error {
	if len(w.rewards) == 0 {
		klog.Warningf("stats: %s: no reward recorded yet, plot skipped", w.brain)
		return nil
	}
	p := plot.New()
	p.Title.Text = w.brain
	p.X.Label.Text = "Step"
	p.Y.Label.Text = "Mean cumulative reward"
	p.Add(plotter.NewGrid())
	line, points, err := plotter.NewLinePoints(w.rewards)
	if err != nil {
		return errors.Wrap(err, "stats: plotting rewards")
	}
	p.Add(line, points)
	if err := p.Save(8*vg.Inch, 4*vg.Inch, w.PlotPath()); err != nil {
		return errors.Wrapf(err, "stats: saving %s", w.PlotPath())
	}
	return nil
}

// Close flushes and closes the summary log.
func (w *Writer) Close() error {
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		_ = w.file.Close()
		return errors.Wrap(err, "stats: flushing summary")
	}
	return errors.Wrap(w.file.Close(), "stats: closing summary")
}
