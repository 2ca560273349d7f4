// Package report turns an engine's tick history into CSV exports and summary statistics.
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"github.com/hydroedu/hydrosim/internal/engine"
)

// WriteHistoryCSV writes readings to w with a header row.
func WriteHistoryCSV(w io.Writer, readings []engine.Reading) error {
	if readings == nil {
		readings = []engine.Reading{}
	}
	if err := gocsv.Marshal(readings, w); err != nil {
		return fmt.Errorf("writing history: %w", err)
	}
	return nil
}

// HistoryFile appends readings to history.csv in an output directory as a run progresses.
type HistoryFile struct {
	f             *os.File
	headerWritten bool
}

// NewHistoryFile creates dir and opens history.csv inside it.
// Returns nil if dir is empty (output disabled).
func NewHistoryFile(dir string) (*HistoryFile, error) {
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	f, err := os.Create(filepath.Join(dir, "history.csv"))
	if err != nil {
		return nil, fmt.Errorf("creating history.csv: %w", err)
	}
	return &HistoryFile{f: f}, nil
}

// Write appends readings. The first call also writes the header.
func (h *HistoryFile) Write(readings ...engine.Reading) error {
	if h == nil || len(readings) == 0 {
		return nil
	}

	if !h.headerWritten {
		if err := gocsv.Marshal(readings, h.f); err != nil {
			return fmt.Errorf("writing history: %w", err)
		}
		h.headerWritten = true
		return nil
	}
	if err := gocsv.MarshalWithoutHeaders(readings, h.f); err != nil {
		return fmt.Errorf("writing history: %w", err)
	}
	return nil
}

// Path returns the file path, or "" when output is disabled.
func (h *HistoryFile) Path() string {
	if h == nil {
		return ""
	}
	return h.f.Name()
}

// Close closes the underlying file.
func (h *HistoryFile) Close() error {
	if h == nil {
		return nil
	}
	return h.f.Close()
}
