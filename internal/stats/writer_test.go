package stats

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/born-ml/agents/internal/trainer"
	"github.com/google/uuid"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize(t *testing.T) {
	s := trainer.NewStats()
	s.Add(trainer.StatCumulativeReward, 1, 3)
	s.Add(trainer.StatPolicyLoss, 0.5)
	s.Add(trainer.StatValueLoss)

	summaries := Summarize(s)
	require.Len(t, summaries, 2)
	assert.Equal(t, trainer.StatCumulativeReward, summaries[0].Name)
	assert.Equal(t, 2.0, summaries[0].Mean)
	assert.Equal(t, 1.0, summaries[0].Std)
	assert.Equal(t, 2, summaries[0].Count)
	assert.Equal(t, trainer.StatPolicyLoss, summaries[1].Name)
}

func TestWriter(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "summaries")
	runID := uuid.NewString()
	w := must.M1(NewWriter(dir, "CartPoleBrain", runID))
	assert.Equal(t, runID, w.RunID())

	// Nothing to plot yet.
	require.NoError(t, w.Plot())
	assert.NoFileExists(t, w.PlotPath())

	for step, rewards := range map[int][]float64{1000: {10, 20}, 2000: {30, 50}} {
		s := trainer.NewStats()
		s.Add(trainer.StatCumulativeReward, rewards...)
		s.Add(trainer.StatEpisodeLength, rewards...)
		require.NoError(t, w.Write(step, s))
	}
	table := w.Table()
	assert.Contains(t, table, "CartPoleBrain")
	assert.Contains(t, table, trainer.StatEpisodeLength)

	require.NoError(t, w.Plot())
	assert.FileExists(t, w.PlotPath())
	require.NoError(t, w.Close())

	f := must.M1(os.Open(filepath.Join(dir, "CartPoleBrain_summary.csv")))
	defer func() { _ = f.Close() }()
	rows := must.M1(csv.NewReader(f).ReadAll())
	require.Len(t, rows, 5)
	assert.Equal(t, csvHeader, rows[0])
	for _, row := range rows[1:] {
		assert.Contains(t, []string{"1000", "2000"}, row[0])
		assert.Equal(t, "2", row[4])
	}
}
