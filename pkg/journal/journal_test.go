package journal

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWriteRun(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)
	w.nowFn = func() time.Time { return time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC) }

	path, err := w.WriteRun(&RunRecord{
		Trigger: "interval",
		Session: "regular_trading",
		Symbols: []SymbolOutcome{
			{Symbol: "AAPL", Fetched: 12, Stored: 5},
			{Symbol: "TSLA", Error: "fetch failed"},
		},
		TotalStored: 5,
		Success:     true,
	})
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "run_20250602_093000_00001.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var rec RunRecord
	require.NoError(t, json.Unmarshal(data, &rec))
	require.Equal(t, 1, rec.RunNumber)
	require.Len(t, rec.Symbols, 2)
	require.Equal(t, "AAPL", rec.Symbols[0].Symbol)
	require.Equal(t, 5, rec.TotalStored)
	require.False(t, rec.StartedAt.IsZero())
}

func TestWriteRunSequencesFiles(t *testing.T) {
	w := NewWriter(t.TempDir())
	first, err := w.WriteRun(&RunRecord{Success: true})
	require.NoError(t, err)
	second, err := w.WriteRun(&RunRecord{Success: true})
	require.NoError(t, err)
	require.NotEqual(t, first, second)
}

func TestNewWriterEmptyDirDisablesJournaling(t *testing.T) {
	require.Nil(t, NewWriter(""))
}

func TestWriteRunNilRecord(t *testing.T) {
	w := NewWriter(t.TempDir())
	_, err := w.WriteRun(nil)
	require.Error(t, err)
}
