// cmd/nback/main.go
//
// This is the entry point for the letter N-back task.
//
// Flow:
// 1. Resolve configuration: defaults, optional YAML file, env, then flags
// 2. Wire the optional marker log and SQLite archive
// 3. Launch the terminal UI and run the session
// 4. Print the session summary (or the abort notice) on exit

package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/attnlab/nback/internal/config"
	"github.com/attnlab/nback/internal/markers"
	"github.com/attnlab/nback/internal/sequence"
	"github.com/attnlab/nback/internal/store"
	"github.com/attnlab/nback/internal/tui"
)

func main() {
	var (
		configPath  = flag.String("config", "nback.yaml", "path to the YAML configuration file")
		participant = flag.String("participant", "", "participant identifier")
		version     = flag.String("version", "", "session version: A (1-back first) or B (3-back first)")
		blocks      = flag.Int("blocks-per-load", 0, "main blocks per N-back load")
		trials      = flag.Int("trials", 0, "trials per main block")
		noPractice  = flag.Bool("no-practice", false, "skip the practice phase")
		seed        = flag.Int64("seed", 0, "random seed (0 seeds from the clock)")
		soaMs       = flag.Int("soa-ms", 0, "stimulus onset asynchrony in milliseconds")
		dataDir     = flag.String("data-dir", "", "directory for session output")
		sqlitePath  = flag.String("sqlite", "", "SQLite archive path (empty disables archiving)")
		markerLog   = flag.String("marker-log", "", "marker log path (empty disables the file emitter)")
		preview     = flag.Int("preview", 0, "print a generated N-back sequence at this load and exit")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal(err)
	}

	// Flags given on the command line win over file and environment.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "participant":
			cfg.Participant = config.SanitizeParticipant(*participant)
		case "version":
			cfg.Version = *version
		case "blocks-per-load":
			cfg.BlocksPerLoad = *blocks
		case "trials":
			cfg.TrialsPerBlock = *trials
		case "no-practice":
			cfg.SkipPractice = *noPractice
		case "seed":
			cfg.Seed = *seed
		case "soa-ms":
			cfg.SOAMs = *soaMs
		case "data-dir":
			cfg.DataDir = *dataDir
		case "sqlite":
			cfg.SQLitePath = *sqlitePath
		case "marker-log":
			cfg.MarkerLog = *markerLog
		}
	})
	cfg, err = config.Revalidate(cfg)
	if err != nil {
		fatal(err)
	}

	if *preview > 0 {
		previewSequence(cfg, *preview)
		return
	}

	emit, closeEmit, err := buildEmitter(cfg)
	if err != nil {
		fatal(err)
	}
	defer closeEmit()

	var archive *store.Archive
	if cfg.SQLitePath != "" {
		archive, err = store.OpenArchive(cfg.SQLitePath)
		if err != nil {
			fatal(err)
		}
		defer archive.Close()
	}

	app, err := tui.NewApp(cfg, emit, archive)
	if err != nil {
		fatal(err)
	}

	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fatal(fmt.Errorf("run task: %w", err))
	}

	if app.Aborted() {
		fmt.Println("session aborted; no data was kept")
		return
	}
	fmt.Println(app.Summary())
	if path := app.DataPath(); path != "" {
		fmt.Printf("data: %s\n", path)
	}
}

// buildEmitter assembles the marker transport stack. With no marker log
// configured, events are dropped.
func buildEmitter(cfg config.Config) (markers.Emitter, func(), error) {
	if cfg.MarkerLog == "" {
		return markers.Nop{}, func() {}, nil
	}
	file, err := markers.NewFileEmitter(cfg.MarkerLog)
	if err != nil {
		return nil, nil, err
	}
	return file, func() { _ = file.Close() }, nil
}

// previewSequence prints one generated block to stdout so sequences can be
// eyeballed without running a session.
func previewSequence(cfg config.Config, nBack int) {
	s := cfg.Seed
	if s == 0 {
		s = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(s))
	plans := sequence.Generate(rng, nBack, cfg.TrialsPerBlock, cfg.Generator())

	targets := 0
	fmt.Printf("%d-back, %d trials, seed %d\n", nBack, len(plans), s)
	for i, p := range plans {
		tag := " "
		if p.IsTarget {
			tag = "T"
			targets++
		} else if p.Lure != sequence.LureNone {
			tag = string(p.Lure)
		}
		fmt.Printf("%3d  %s  %s\n", i+1, p.Stimulus, tag)
	}
	if len(plans) > 0 {
		fmt.Printf("targets: %d (%.0f%%)\n", targets, 100*float64(targets)/float64(len(plans)))
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "nback: %v\n", err)
	os.Exit(1)
}
