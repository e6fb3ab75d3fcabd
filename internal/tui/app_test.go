package tui

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/attnlab/nback/internal/config"
	"github.com/attnlab/nback/internal/markers"
)

type testHarness struct {
	app *App
	now time.Duration
}

func newTestHarness(t *testing.T, mutate func(*config.Config)) *testHarness {
	t.Helper()
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.Participant = "p09"
	cfg.Seed = 1
	cfg.BlocksPerLoad = 1
	cfg.TrialsPerBlock = 2
	cfg.SkipPractice = true
	if mutate != nil {
		mutate(&cfg)
	}
	h := &testHarness{}
	app, err := NewApp(cfg, markers.Nop{}, nil, WithClock(func() time.Duration { return h.now }))
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	h.app = app
	return h
}

func (h *testHarness) key(k tea.KeyType) {
	h.app.Update(tea.KeyMsg{Type: k})
}

func (h *testHarness) space() { h.key(tea.KeySpace) }

func (h *testHarness) tick(at time.Duration) {
	h.now = at
	h.app.Update(tickMsg(time.Time{}))
}

// toBlockIntro advances through the intro screens up to the first block.
func (h *testHarness) toBlockIntro(t *testing.T) {
	t.Helper()
	h.key(tea.KeyEnter) // participant
	h.space()           // welcome
	h.space()           // consent
	h.space()           // instructions
	if h.app.state != stateBlockIntro {
		t.Fatalf("state = %d, want stateBlockIntro", h.app.state)
	}
}

func TestScreenProgression(t *testing.T) {
	h := newTestHarness(t, nil)
	if h.app.state != stateParticipant {
		t.Fatalf("initial state = %d", h.app.state)
	}
	h.toBlockIntro(t)
	if h.app.ses == nil {
		t.Fatal("session must exist after participant entry")
	}
	if got := h.app.cfg.Participant; got != "p09" {
		t.Fatalf("participant = %q", got)
	}
}

func TestFullSessionReachesThanksAndSaves(t *testing.T) {
	h := newTestHarness(t, nil)
	h.toBlockIntro(t)

	soa := h.app.cfg.SOA()
	// Two loads of one block, two trials each.
	for block := 0; block < 2; block++ {
		h.space()
		if h.app.state != stateBlock {
			t.Fatalf("block %d: state = %d, want stateBlock", block, h.app.state)
		}
		start := h.now
		h.tick(start + 2*soa)
		if block == 0 {
			if h.app.state != stateBlockBreak {
				t.Fatalf("state = %d, want stateBlockBreak", h.app.state)
			}
			h.space() // break -> next block intro
		}
	}
	if h.app.state != stateThanks {
		t.Fatalf("state = %d, want stateThanks", h.app.state)
	}
	if h.app.Aborted() {
		t.Fatal("completed session must not report aborted")
	}
	if h.app.Summary().Trials != 4 {
		t.Fatalf("summary trials = %d, want 4", h.app.Summary().Trials)
	}

	csvPath := h.app.DataPath()
	if csvPath == "" {
		t.Fatal("completed session must report a data path")
	}
	if _, err := os.Stat(csvPath); err != nil {
		t.Fatalf("csv missing: %v", err)
	}
	metaPath := strings.TrimSuffix(csvPath, ".csv") + ".meta.json"
	if _, err := os.Stat(metaPath); err != nil {
		t.Fatalf("meta sidecar missing: %v", err)
	}
}

func TestTrialScreenShowsStimulusThenFixation(t *testing.T) {
	h := newTestHarness(t, nil)
	h.toBlockIntro(t)
	h.space()

	start := h.now
	letter := h.app.engine.Frame(start).Stimulus
	if letter == "" {
		t.Fatal("expected a stimulus letter at onset")
	}
	h.now = start + 100*time.Millisecond
	if view := h.app.View(); !strings.Contains(view, letter) {
		t.Fatalf("view during stimulus must show %q", letter)
	}
	h.now = start + h.app.cfg.StimulusDur() + 100*time.Millisecond
	if view := h.app.View(); !strings.Contains(view, "+") {
		t.Fatal("view during fixation must show the cross")
	}
}

func TestAbortDiscardsData(t *testing.T) {
	h := newTestHarness(t, nil)
	h.toBlockIntro(t)
	h.space()

	csvPath := h.app.csv.Path()
	if _, err := os.Stat(csvPath); err != nil {
		t.Fatalf("csv must exist while running: %v", err)
	}
	h.key(tea.KeyEsc)
	if !h.app.Aborted() {
		t.Fatal("esc mid-block must abort")
	}
	if _, err := os.Stat(csvPath); !os.IsNotExist(err) {
		t.Fatal("aborted session must discard the csv")
	}
	if h.app.DataPath() != "" {
		t.Fatal("aborted session must not report a data path")
	}
}

func TestPracticeRepeatsUntilPassed(t *testing.T) {
	h := newTestHarness(t, func(cfg *config.Config) {
		cfg.SkipPractice = false
		cfg.PracticeTrials = 6
	})
	h.key(tea.KeyEnter)
	h.space()
	h.space()
	h.space() // instructions -> practice intro
	if h.app.state != statePracticeIntro {
		t.Fatalf("state = %d, want statePracticeIntro", h.app.state)
	}

	soa := h.app.cfg.SOA()
	h.space() // start practice round 1
	if h.app.state != statePractice {
		t.Fatalf("state = %d, want statePractice", h.app.state)
	}
	// Let every trial lapse unanswered; with targets present the round fails.
	h.tick(h.now + 6*soa)
	if h.app.state != statePracticeFeedback {
		t.Fatalf("state = %d, want statePracticeFeedback", h.app.state)
	}
	if h.app.ses.PracticePassed(h.app.practiceRes) {
		t.Skip("seeded practice round had no targets")
	}
	h.space() // retry
	if h.app.state != statePractice || h.app.practiceRound != 2 {
		t.Fatalf("failed practice must restart: state=%d round=%d", h.app.state, h.app.practiceRound)
	}
}

func TestQuitClosesLogbook(t *testing.T) {
	h := newTestHarness(t, nil)
	h.toBlockIntro(t)
	h.space()
	h.key(tea.KeyEsc) // abort quits through the logbook close path

	before := len(h.app.book.Tail(50))
	h.app.book.Info("after quit")
	if got := len(h.app.book.Tail(50)); got != before {
		t.Fatalf("journal grew after quit: %d -> %d", before, got)
	}
}

func TestLogbookRecordsJourney(t *testing.T) {
	h := newTestHarness(t, nil)
	h.toBlockIntro(t)
	logPath := filepath.Join(h.app.cfg.DataDir, "logs", "journey.log")
	if _, err := os.Stat(logPath); err != nil {
		t.Fatalf("journey log missing: %v", err)
	}
	lines := h.app.book.Tail(10)
	if len(lines) == 0 {
		t.Fatal("expected journey entries")
	}
}
