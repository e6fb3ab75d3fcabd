// internal/store/meta.go
//
// Session metadata sidecar. A small JSON file written next to the trial CSV
// so every dataset carries the exact configuration that produced it.

package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Meta records the resolved session configuration for reproducibility.
type Meta struct {
	SessionID          string   `json:"session_id"`
	Participant        string   `json:"participant_id"`
	SessionTimestamp   string   `json:"session_timestamp"`
	Version            string   `json:"version"`
	LoadOrder          [2]int   `json:"load_order"`
	PracticeNBack      int      `json:"practice_n_back"`
	BlocksPerLoad      int      `json:"blocks_per_load"`
	TotalBlocks        int      `json:"total_blocks"`
	TrialsPerBlock     int      `json:"trials_per_block"`
	PracticeTrials     int      `json:"practice_trials"`
	PracticeTargetRate float64  `json:"practice_target_rate"`
	PracticeHasLures   bool     `json:"practice_has_lures"`
	TargetRate         float64  `json:"target_rate"`
	LureNMinusOneRate  float64  `json:"lure_nminus1_rate"`
	LureNPlusOneRate   float64  `json:"lure_nplus1_rate"`
	MaxConsecTargets   int      `json:"max_consec_targets"`
	MaxIdenticalRun    int      `json:"max_identical_run"`
	Seed               int64    `json:"seed"`
	Letters            []string `json:"letters"`
	SOAMs              int      `json:"soa_ms"`
	StimulusMs         int      `json:"stimulus_ms"`
	FixedITIMs         int      `json:"fixed_iti_ms"`
}

// WriteMeta writes the sidecar JSON with indentation for human inspection.
func WriteMeta(path string, meta Meta) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("store: ensure data dir: %w", err)
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encode meta: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("store: write meta: %w", err)
	}
	return nil
}

// ReadMeta loads a sidecar back; used by tooling and tests.
func ReadMeta(path string) (Meta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Meta{}, fmt.Errorf("store: read meta: %w", err)
	}
	var meta Meta
	if err := json.Unmarshal(data, &meta); err != nil {
		return Meta{}, fmt.Errorf("store: parse meta: %w", err)
	}
	return meta, nil
}
