// internal/config/config.go
//
// Task configuration. Values resolve in three layers: built-in defaults,
// an optional YAML file, then environment variables. The result is an
// immutable value threaded explicitly through the generator, the session
// and the UI; nothing reads configuration from globals at runtime.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/attnlab/nback/internal/sequence"
)

// Defaults mirror the reference task parameters.
const (
	DefaultBlocksPerLoad  = 3
	DefaultTrialsPerBlock = 60

	DefaultPracticeTrials     = 30
	DefaultPracticeTargetRate = 0.40
	DefaultPracticePassAcc    = 0.75
	PracticeNBack             = 2

	DefaultTargetRate        = 0.30
	DefaultLureNMinusOneRate = 0.05
	DefaultLureNPlusOneRate  = 0.05
	DefaultMaxConsecTargets  = 1
	DefaultMaxIdenticalRun   = 2
	DefaultMaxAttempts       = 300

	DefaultStimulusMs = 500
	DefaultSOAMs      = 2500
)

// Load orders by session version: A runs 1-back then 3-back, B the reverse.
var loadOrders = map[string][2]int{
	"A": {1, 3},
	"B": {3, 1},
}

// Config is the resolved, immutable task configuration.
type Config struct {
	Participant string `yaml:"participant" env:"NBACK_PARTICIPANT"`
	// Version selects the load order: "A" = 1-back then 3-back, "B" = 3-back
	// then 1-back.
	Version        string `yaml:"version" env:"NBACK_VERSION"`
	BlocksPerLoad  int    `yaml:"blocks_per_load" env:"NBACK_BLOCKS_PER_LOAD"`
	TrialsPerBlock int    `yaml:"trials_per_block" env:"NBACK_TRIALS_PER_BLOCK"`

	SkipPractice       bool    `yaml:"skip_practice" env:"NBACK_SKIP_PRACTICE"`
	PracticeTrials     int     `yaml:"practice_trials" env:"NBACK_PRACTICE_TRIALS"`
	PracticeTargetRate float64 `yaml:"practice_target_rate" env:"NBACK_PRACTICE_TARGET_RATE"`
	PracticeHasLures   bool    `yaml:"practice_has_lures" env:"NBACK_PRACTICE_HAS_LURES"`
	PracticePassAcc    float64 `yaml:"practice_pass_acc" env:"NBACK_PRACTICE_PASS_ACC"`

	TargetRate        float64 `yaml:"target_rate" env:"NBACK_TARGET_RATE"`
	LureNMinusOneRate float64 `yaml:"lure_nminus1_rate" env:"NBACK_LURE_NMINUS1_RATE"`
	LureNPlusOneRate  float64 `yaml:"lure_nplus1_rate" env:"NBACK_LURE_NPLUS1_RATE"`
	MaxConsecTargets  int     `yaml:"max_consec_targets" env:"NBACK_MAX_CONSEC_TARGETS"`
	MaxIdenticalRun   int     `yaml:"max_identical_run" env:"NBACK_MAX_IDENTICAL_RUN"`
	MaxAttempts       int     `yaml:"max_attempts" env:"NBACK_MAX_ATTEMPTS"`
	SoftBalance       bool    `yaml:"soft_balance" env:"NBACK_SOFT_BALANCE"`

	StimulusMs int `yaml:"stimulus_ms" env:"NBACK_STIMULUS_MS"`
	SOAMs      int `yaml:"soa_ms" env:"NBACK_SOA_MS"`

	// Seed fixes the random source; 0 seeds from the current time.
	Seed int64 `yaml:"seed" env:"NBACK_SEED"`

	DataDir  string `yaml:"data_dir" env:"NBACK_DATA_DIR"`
	TextsDir string `yaml:"texts_dir" env:"NBACK_TEXTS_DIR"`
	// SQLitePath, when set, archives sessions into a SQLite database next to
	// the CSV output.
	SQLitePath string `yaml:"sqlite_path" env:"NBACK_SQLITE_PATH"`
	// MarkerLog, when set, appends emitted event markers to this file.
	MarkerLog string `yaml:"marker_log" env:"NBACK_MARKER_LOG"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Participant:        "anon",
		Version:            "A",
		BlocksPerLoad:      DefaultBlocksPerLoad,
		TrialsPerBlock:     DefaultTrialsPerBlock,
		PracticeTrials:     DefaultPracticeTrials,
		PracticeTargetRate: DefaultPracticeTargetRate,
		PracticeHasLures:   false,
		PracticePassAcc:    DefaultPracticePassAcc,
		TargetRate:         DefaultTargetRate,
		LureNMinusOneRate:  DefaultLureNMinusOneRate,
		LureNPlusOneRate:   DefaultLureNPlusOneRate,
		MaxConsecTargets:   DefaultMaxConsecTargets,
		MaxIdenticalRun:    DefaultMaxIdenticalRun,
		MaxAttempts:        DefaultMaxAttempts,
		SoftBalance:        true,
		StimulusMs:         DefaultStimulusMs,
		SOAMs:              DefaultSOAMs,
		DataDir:            "data",
		TextsDir:           "texts",
	}
}

// Load resolves the configuration: defaults, then the YAML file at path (a
// missing file is fine), then environment overrides. The result is
// normalized and validated.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			// Defaults stand.
		case err != nil:
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse env: %w", err)
	}

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Revalidate re-applies normalization and validation after the caller has
// overridden fields, typically from command-line flags.
func Revalidate(cfg Config) (Config, error) {
	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// normalize clamps out-of-range values instead of failing on them; the
// generator and the engine are always called with already-sane inputs.
func (c *Config) normalize() {
	c.Participant = safeFilename(c.Participant)
	if c.Participant == "" {
		c.Participant = "anon"
	}
	c.Version = strings.ToUpper(strings.TrimSpace(c.Version))
	if c.BlocksPerLoad < 1 {
		c.BlocksPerLoad = 1
	}
	if c.TrialsPerBlock < 0 {
		c.TrialsPerBlock = 0
	}
	if c.PracticeTrials < 1 {
		c.PracticeTrials = 1
	}
	c.PracticeTargetRate = clampRate(c.PracticeTargetRate)
	c.PracticePassAcc = clampRate(c.PracticePassAcc)
	c.TargetRate = clampRate(c.TargetRate)
	c.LureNMinusOneRate = clampRate(c.LureNMinusOneRate)
	c.LureNPlusOneRate = clampRate(c.LureNPlusOneRate)
	if c.MaxConsecTargets < 1 {
		c.MaxConsecTargets = 1
	}
	if c.MaxIdenticalRun < 1 {
		c.MaxIdenticalRun = 1
	}
	if c.MaxAttempts < 0 {
		c.MaxAttempts = 0
	}
	if c.StimulusMs < 1 {
		c.StimulusMs = 1
	}
	if c.SOAMs < 1 {
		c.SOAMs = 1
	}
}

func (c Config) validate() error {
	if _, ok := loadOrders[c.Version]; !ok {
		return fmt.Errorf("version must be A or B, got %q", c.Version)
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return errors.New("data_dir is required")
	}
	return nil
}

// LoadOrder returns the two N-back loads in session order.
func (c Config) LoadOrder() [2]int {
	return loadOrders[c.Version]
}

// FixedITIMs is the per-trial inter-trial remainder: SOA minus the stimulus
// visible duration, clamped to zero.
func (c Config) FixedITIMs() int {
	if c.SOAMs <= c.StimulusMs {
		return 0
	}
	return c.SOAMs - c.StimulusMs
}

// StimulusDur returns the stimulus-visible duration.
func (c Config) StimulusDur() time.Duration {
	return time.Duration(c.StimulusMs) * time.Millisecond
}

// SOA returns the fixed trial period.
func (c Config) SOA() time.Duration {
	return time.Duration(c.SOAMs) * time.Millisecond
}

// Generator returns the sequence configuration for a main-task block.
func (c Config) Generator() sequence.Config {
	return sequence.Config{
		TargetRate:            c.TargetRate,
		LureNMinusOneRate:     c.LureNMinusOneRate,
		LureNPlusOneRate:      c.LureNPlusOneRate,
		MaxConsecutiveTargets: c.MaxConsecTargets,
		MaxIdenticalRun:       c.MaxIdenticalRun,
		FixedITIMs:            c.FixedITIMs(),
		MaxAttempts:           c.MaxAttempts,
		SoftBalance:           c.SoftBalance,
		IncludeLures:          true,
	}
}

// PracticeGenerator returns the sequence configuration for practice blocks:
// the practice target rate applies and lures only when enabled.
func (c Config) PracticeGenerator() sequence.Config {
	gen := c.Generator()
	gen.TargetRate = c.PracticeTargetRate
	gen.IncludeLures = c.PracticeHasLures
	if !c.PracticeHasLures {
		gen.LureNMinusOneRate = 0
		gen.LureNPlusOneRate = 0
	}
	return gen
}

func clampRate(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// SanitizeParticipant maps free-form input to a path-safe participant
// identifier, falling back to "anon" when nothing usable remains.
func SanitizeParticipant(name string) string {
	s := safeFilename(name)
	if s == "" {
		return "anon"
	}
	return s
}

// safeFilename keeps participant identifiers path-safe.
func safeFilename(name string) string {
	name = strings.TrimSpace(name)
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

// DataPath joins a file name onto the data directory.
func (c Config) DataPath(name string) string {
	return filepath.Join(c.DataDir, name)
}
