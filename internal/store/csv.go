// internal/store/csv.go
//
// Trial-wise CSV output. One row per trial, flushed after every block so a
// crash mid-session loses at most the current block. An aborted session
// discards the file entirely; partial data is never kept by policy.

package store

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/attnlab/nback/internal/trial"
)

// fieldnames is the persisted row schema, in column order.
var fieldnames = []string{
	"participant_id", "session_timestamp", "block_idx", "trial_idx",
	"n_back", "stimulus", "is_target", "lure_type", "iti_ms",
	"stim_onset_time", "response_key", "rt_ms", "correct",
	"marker_code_stim", "marker_code_resp",
}

// SessionInfo identifies the session a row belongs to.
type SessionInfo struct {
	Participant string
	SessionID   string
	Timestamp   string
}

// CSVWriter appends trial rows to a session CSV file.
type CSVWriter struct {
	path string
	file *os.File
	w    *csv.Writer
}

// NewCSVWriter creates the file (and its directory) and writes the header.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("store: ensure data dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("store: create %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(fieldnames); err != nil {
		f.Close()
		return nil, fmt.Errorf("store: write header: %w", err)
	}
	return &CSVWriter{path: path, file: f, w: w}, nil
}

// Path returns the file backing this writer.
func (c *CSVWriter) Path() string { return c.path }

// WriteBlock appends one row per record and flushes to disk.
func (c *CSVWriter) WriteBlock(info SessionInfo, blockIdx, nBack int, records []trial.Record) error {
	for _, rec := range records {
		row := []string{
			info.Participant,
			info.Timestamp,
			strconv.Itoa(blockIdx),
			strconv.Itoa(rec.Index + 1),
			strconv.Itoa(nBack),
			rec.Stimulus,
			boolField(rec.IsTarget),
			string(rec.Lure),
			strconv.Itoa(rec.ITIMs),
			fmt.Sprintf("%.6f", rec.Onset.Seconds()),
			rec.ResponseKey,
			rtField(rec),
			boolField(rec.Correct),
			strconv.Itoa(rec.StimCode),
			respCodeField(rec),
		}
		if err := c.w.Write(row); err != nil {
			return fmt.Errorf("store: write row: %w", err)
		}
	}
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		return fmt.Errorf("store: flush rows: %w", err)
	}
	return c.file.Sync()
}

// Close flushes and closes the file, keeping it on disk.
func (c *CSVWriter) Close() error {
	if c == nil || c.file == nil {
		return nil
	}
	c.w.Flush()
	return c.file.Close()
}

// Discard closes and deletes the file; used when the session is aborted.
func (c *CSVWriter) Discard() error {
	if c == nil || c.file == nil {
		return nil
	}
	c.w.Flush()
	_ = c.file.Close()
	if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("store: discard %s: %w", c.path, err)
	}
	return nil
}

func boolField(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func rtField(rec trial.Record) string {
	if !rec.Responded {
		return ""
	}
	return fmt.Sprintf("%.2f", float64(rec.RT.Microseconds())/1000.0)
}

func respCodeField(rec trial.Record) string {
	if !rec.Responded {
		return ""
	}
	return strconv.Itoa(rec.RespCode)
}
