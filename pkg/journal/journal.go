package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// SymbolOutcome records what happened for one tracked symbol within a run.
type SymbolOutcome struct {
	Symbol  string `json:"symbol"`
	Fetched int    `json:"fetched"`
	Stored  int    `json:"stored"`
	Error   string `json:"error,omitempty"`
}

// RunRecord captures an end-to-end collection run for audit and analysis.
type RunRecord struct {
	StartedAt   time.Time       `json:"started_at"`
	FinishedAt  time.Time       `json:"finished_at"`
	RunNumber   int             `json:"run_number"`
	Trigger     string          `json:"trigger,omitempty"`
	Session     string          `json:"trading_session,omitempty"`
	Symbols     []SymbolOutcome `json:"symbols,omitempty"`
	TotalStored int             `json:"total_stored"`
	Success     bool            `json:"success"`
	ErrorMsg    string          `json:"error_message,omitempty"`
}

// Writer persists run records to a directory as JSON files (journal style).
type Writer struct {
	dir   string
	seq   int
	nowFn func() time.Time
}

// NewWriter constructs a journal writer. An empty directory disables
// journaling: the returned writer is nil and callers skip it.
func NewWriter(dir string) *Writer {
	if dir == "" {
		return nil
	}
	_ = os.MkdirAll(dir, 0o755)
	return &Writer{dir: dir, nowFn: time.Now}
}

// WriteRun writes a run record to a timestamped JSON file.
func (w *Writer) WriteRun(rec *RunRecord) (string, error) {
	if rec == nil {
		return "", fmt.Errorf("journal: nil record")
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = w.nowFn()
	}
	if rec.FinishedAt.IsZero() {
		rec.FinishedAt = w.nowFn()
	}
	w.seq++
	rec.RunNumber = w.seq
	name := fmt.Sprintf("run_%s_%05d.json", rec.StartedAt.UTC().Format("20060102_150405"), w.seq)
	path := filepath.Join(w.dir, name)
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
