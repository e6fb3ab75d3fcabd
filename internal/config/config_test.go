package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nback.yaml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Version != "A" {
		t.Fatalf("default version %q, want A", cfg.Version)
	}
	if cfg.LoadOrder() != [2]int{1, 3} {
		t.Fatalf("load order %v, want [1 3]", cfg.LoadOrder())
	}
	if cfg.SOAMs != 2500 || cfg.StimulusMs != 500 {
		t.Fatalf("timing defaults %d/%d, want 2500/500", cfg.SOAMs, cfg.StimulusMs)
	}
	if cfg.FixedITIMs() != 2000 {
		t.Fatalf("fixed ITI %d, want 2000", cfg.FixedITIMs())
	}
}

func TestLoadParsesYaml(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nback.yaml")
	yamlBody := strings.TrimSpace(`
participant: p01
version: b
trials_per_block: 40
target_rate: 0.25
soa_ms: 2000
stimulus_ms: 400
sqlite_path: sessions.db
`)
	if err := os.WriteFile(path, []byte(yamlBody), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Participant != "p01" {
		t.Fatalf("participant %q, want p01", cfg.Participant)
	}
	if cfg.Version != "B" || cfg.LoadOrder() != [2]int{3, 1} {
		t.Fatalf("version %q order %v, want B [3 1]", cfg.Version, cfg.LoadOrder())
	}
	if cfg.FixedITIMs() != 1600 {
		t.Fatalf("fixed ITI %d, want 1600", cfg.FixedITIMs())
	}
	if cfg.SQLitePath != "sessions.db" {
		t.Fatalf("sqlite path %q", cfg.SQLitePath)
	}
	// Untouched fields keep their defaults.
	if cfg.BlocksPerLoad != DefaultBlocksPerLoad {
		t.Fatalf("blocks per load %d, want default %d", cfg.BlocksPerLoad, DefaultBlocksPerLoad)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nback.yaml")
	if err := os.WriteFile(path, []byte("target_rate: 0.25\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("NBACK_TARGET_RATE", "0.5")
	t.Setenv("NBACK_PARTICIPANT", "env subject")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.TargetRate != 0.5 {
		t.Fatalf("target rate %f, want env override 0.5", cfg.TargetRate)
	}
	// Participant identifiers are sanitized for file names.
	if cfg.Participant != "env_subject" {
		t.Fatalf("participant %q, want env_subject", cfg.Participant)
	}
}

func TestLoadRejectsUnknownVersion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nback.yaml")
	if err := os.WriteFile(path, []byte("version: C\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for version C")
	}
}

func TestNormalizeClampsRates(t *testing.T) {
	cfg := Default()
	cfg.TargetRate = 1.7
	cfg.LureNMinusOneRate = -0.2
	cfg.MaxConsecTargets = 0
	cfg.SOAMs = -5
	cfg.normalize()
	if cfg.TargetRate != 1 || cfg.LureNMinusOneRate != 0 {
		t.Fatalf("rates not clamped: %f / %f", cfg.TargetRate, cfg.LureNMinusOneRate)
	}
	if cfg.MaxConsecTargets != 1 || cfg.SOAMs != 1 {
		t.Fatalf("minimums not enforced: %d / %d", cfg.MaxConsecTargets, cfg.SOAMs)
	}
}

func TestPracticeGenerator(t *testing.T) {
	cfg := Default()
	gen := cfg.PracticeGenerator()
	if gen.TargetRate != DefaultPracticeTargetRate {
		t.Fatalf("practice target rate %f, want %f", gen.TargetRate, DefaultPracticeTargetRate)
	}
	if gen.IncludeLures || gen.LureNMinusOneRate != 0 || gen.LureNPlusOneRate != 0 {
		t.Fatal("practice without lures must zero the lure settings")
	}
	// Main-task generator keeps lures on.
	if !cfg.Generator().IncludeLures {
		t.Fatal("main generator must include lures")
	}
}
