// internal/tui/app.go
//
// This is the terminal UI for the letter N-back task.
// It uses bubbletea, which follows The Elm Architecture:
//
// 1. Model: Your application state
// 2. Update: A function that updates state based on messages
// 3. View: A function that renders state to a string
//
// The flow is: User Input -> Message -> Update -> New Model -> View -> Screen
//
// Trial pacing does not belong to the UI. The engine in internal/trial owns
// all timing decisions; this model only feeds it clock readings on every
// tick and key press, and renders whatever frame the engine reports.

package tui

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/attnlab/nback/internal/config"
	"github.com/attnlab/nback/internal/logbook"
	"github.com/attnlab/nback/internal/markers"
	"github.com/attnlab/nback/internal/session"
	"github.com/attnlab/nback/internal/store"
	"github.com/attnlab/nback/internal/texts"
	"github.com/attnlab/nback/internal/trial"
)

// appState represents which "screen" we're on
type appState int

const (
	stateParticipant      appState = iota // participant ID entry
	stateWelcome                          // welcome screen
	stateConsent                          // consent confirmation
	stateInstructions                     // task instructions
	statePracticeIntro                    // practice heads-up
	statePractice                         // running a practice round
	statePracticeFeedback                 // practice result, pass or repeat
	stateBlockIntro                       // next main block announcement
	stateBlock                            // running a main block
	stateBlockBreak                       // between-block break or load switch
	stateThanks                           // debrief, data saved
	stateError                            // unrecoverable error, key to quit
)

// pollInterval is how often the trial screen asks the engine to advance.
// It bounds how late a trial boundary can be noticed; the engine schedules
// onsets on the clock, so polling jitter never accumulates.
const pollInterval = 4 * time.Millisecond

const (
	keyRespond = " "
	keyQuit    = "esc"
)

// tickMsg drives the trial poll loop.
type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// AppOption customizes App construction for tests and alternate runtimes.
type AppOption func(*App)

// WithClock overrides the monotonic clock the trial engine is driven by.
func WithClock(now func() time.Duration) AppOption {
	return func(a *App) {
		if now != nil {
			a.now = now
		}
	}
}

// App is the main application model. In bubbletea, this holds ALL the state.
type App struct {
	cfg  config.Config
	ses  *session.Session
	lib  *texts.Library
	book *logbook.Logbook
	emit markers.Emitter

	csv     *store.CSVWriter
	archive *store.Archive

	state     appState
	nameInput textinput.Model
	now       func() time.Duration

	// Trial state for the screen currently running a block.
	engine      *trial.Engine
	engineNBack int
	engineBlock int
	practice    bool

	blocks        []session.Block
	blockPos      int
	practiceRound int
	practiceRes   trial.BlockResult

	width   int
	height  int
	err     error
	aborted bool
	saved   bool
}

// NewApp creates the task UI. The emitter may be nil when markers are off;
// the archive may be nil when SQLite archiving is not configured.
func NewApp(cfg config.Config, emit markers.Emitter, archive *store.Archive, opts ...AppOption) (*App, error) {
	book, err := logbook.New(filepath.Join(cfg.DataDir, "logs", "journey.log"))
	if err != nil {
		return nil, fmt.Errorf("tui: open logbook: %w", err)
	}

	input := textinput.New()
	input.Placeholder = "participant id"
	input.SetValue(cfg.Participant)
	input.CharLimit = 32
	input.Focus()

	base := time.Now()
	app := &App{
		cfg:       cfg,
		lib:       texts.NewLibrary(cfg.TextsDir),
		book:      book,
		emit:      emit,
		archive:   archive,
		state:     stateParticipant,
		nameInput: input,
		now:       func() time.Duration { return time.Since(base) },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(app)
		}
	}
	book.Info("task opened, version %s", cfg.Version)
	return app, nil
}

// Aborted reports whether the session ended early and its data was discarded.
func (a *App) Aborted() bool { return a.aborted }

// Summary returns the session totals; meaningful once the task finished.
func (a *App) Summary() session.Summary {
	if a.ses == nil {
		return session.Summary{}
	}
	return a.ses.Summary
}

// DataPath returns the trial CSV path, or "" when nothing was saved.
func (a *App) DataPath() string {
	if !a.saved || a.csv == nil {
		return ""
	}
	return a.csv.Path()
}

// Init is called once when the program starts.
func (a *App) Init() tea.Cmd {
	markers.Fire(a.emit, markers.EventExperimentStart)
	return textinput.Blink
}

// Update is called when a message is received.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		return a, nil

	case tickMsg:
		if a.state != statePractice && a.state != stateBlock {
			return a, nil
		}
		if a.engine.Advance(a.now()) {
			return a.finishBlock()
		}
		return a, tick()

	case tea.KeyMsg:
		return a.handleKey(msg)
	}

	if a.state == stateParticipant {
		var cmd tea.Cmd
		a.nameInput, cmd = a.nameInput.Update(msg)
		return a, cmd
	}
	return a, nil
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	if key == "ctrl+c" {
		return a.abort("interrupted")
	}

	switch a.state {

	case stateParticipant:
		switch key {
		case keyQuit:
			return a.abort("quit at participant entry")
		case "enter":
			a.cfg.Participant = config.SanitizeParticipant(a.nameInput.Value())
			a.ses = session.New(a.cfg)
			a.blocks = a.ses.Blocks()
			a.book.Info("session %s for %s (order %v)", a.ses.ID, a.cfg.Participant, a.cfg.LoadOrder())
			if err := a.openStores(); err != nil {
				return a.fail(err)
			}
			a.state = stateWelcome
			return a, nil
		default:
			var cmd tea.Cmd
			a.nameInput, cmd = a.nameInput.Update(msg)
			return a, cmd
		}

	case stateWelcome:
		if key == keyQuit {
			return a.abort("quit at welcome")
		}
		if key == keyRespond {
			a.state = stateConsent
			markers.Fire(a.emit, markers.EventConsentShown)
		}
		return a, nil

	case stateConsent:
		if key == keyQuit {
			return a.abort("consent declined")
		}
		if key == keyRespond {
			a.state = stateInstructions
			markers.Fire(a.emit, markers.EventInstructionsShown)
		}
		return a, nil

	case stateInstructions:
		if key == keyQuit {
			return a.abort("quit at instructions")
		}
		if key == keyRespond {
			if a.cfg.SkipPractice {
				a.book.Info("practice skipped")
				a.state = stateBlockIntro
			} else {
				a.state = statePracticeIntro
			}
		}
		return a, nil

	case statePracticeIntro:
		if key == keyQuit {
			return a.abort("quit before practice")
		}
		if key == keyRespond {
			return a.startPractice()
		}
		return a, nil

	case statePractice, stateBlock:
		switch key {
		case keyQuit:
			return a.abort("quit mid-block")
		case keyRespond:
			a.engine.Respond("space", a.now())
		}
		return a, nil

	case statePracticeFeedback:
		if key == keyQuit {
			return a.abort("quit at practice feedback")
		}
		if key == keyRespond {
			if a.ses.PracticePassed(a.practiceRes) {
				a.state = stateBlockIntro
			} else {
				return a.startPractice()
			}
		}
		return a, nil

	case stateBlockIntro:
		if key == keyQuit {
			return a.abort("quit at block intro")
		}
		if key == keyRespond {
			return a.startBlock()
		}
		return a, nil

	case stateBlockBreak:
		if key == keyQuit {
			return a.abort("quit at break")
		}
		if key == keyRespond {
			a.state = stateBlockIntro
		}
		return a, nil

	case stateThanks:
		if key == keyRespond || key == keyQuit || key == "enter" {
			return a.quit()
		}
		return a, nil

	case stateError:
		return a.quit()
	}

	return a, nil
}

// openStores creates the session's output files before the first trial so a
// permission problem surfaces up front, not after twenty minutes of task.
func (a *App) openStores() error {
	csvPath := a.cfg.DataPath(a.ses.BaseName() + ".csv")
	w, err := store.NewCSVWriter(csvPath)
	if err != nil {
		return err
	}
	a.csv = w
	if a.archive != nil {
		if err := a.archive.BeginSession(context.Background(), a.ses.Meta(), a.ses.StartedAt); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) startPractice() (tea.Model, tea.Cmd) {
	a.practiceRound++
	a.practice = true
	a.engineNBack = config.PracticeNBack
	// Practice rounds are numbered downward from -1 so their rows can never
	// collide with main block indices.
	a.engineBlock = -a.practiceRound
	plans := a.ses.GeneratePractice()
	a.engine = trial.NewEngine(plans, a.engineNBack, a.ses.Timing(), a.emit)
	a.book.Info("practice round %d start (%d trials)", a.practiceRound, len(plans))
	markers.Fire(a.emit, markers.EventPracticeStart)
	a.state = statePractice
	a.engine.Start(a.now())
	return a, tick()
}

func (a *App) startBlock() (tea.Model, tea.Cmd) {
	block := a.blocks[a.blockPos]
	a.practice = false
	a.engineNBack = block.NBack
	a.engineBlock = block.Index
	plans := a.ses.GenerateBlock(block.NBack)
	a.engine = trial.NewEngine(plans, block.NBack, a.ses.Timing(), a.emit)
	a.book.Info("block %d start (%d-back, %d trials)", block.Index, block.NBack, len(plans))
	a.state = stateBlock
	a.engine.Start(a.now())
	return a, tick()
}

func (a *App) finishBlock() (tea.Model, tea.Cmd) {
	res := a.engine.Result()

	if err := a.csv.WriteBlock(a.ses.Info(), a.engineBlock, a.engineNBack, res.Records); err != nil {
		return a.fail(err)
	}
	if a.archive != nil {
		err := a.archive.SaveBlock(context.Background(), a.ses.ID, a.engineBlock, a.engineNBack, a.practice, res.Records)
		if err != nil {
			// The CSV is the primary record; a sick archive is logged, not fatal.
			a.book.Error("archive block %d: %v", a.engineBlock, err)
		}
	}

	if a.practice {
		markers.Fire(a.emit, markers.EventPracticeEnd)
		a.practiceRes = res
		a.book.Info("practice round %d: %.0f%% correct", a.practiceRound, 100*res.Accuracy())
		a.state = statePracticeFeedback
		return a, nil
	}

	a.ses.Record(res)
	a.book.Info("block %d done: %.0f%% correct", a.engineBlock, 100*res.Accuracy())
	a.blockPos++
	if a.blockPos >= len(a.blocks) {
		return a.finishSession()
	}
	a.state = stateBlockBreak
	return a, nil
}

func (a *App) finishSession() (tea.Model, tea.Cmd) {
	if err := a.csv.Close(); err != nil {
		return a.fail(err)
	}
	metaPath := a.cfg.DataPath(a.ses.BaseName() + ".meta.json")
	if err := store.WriteMeta(metaPath, a.ses.Meta()); err != nil {
		return a.fail(err)
	}
	if a.archive != nil {
		if err := a.archive.FinishSession(context.Background(), a.ses.ID); err != nil {
			a.book.Error("finish session in archive: %v", err)
		}
	}
	a.saved = true
	a.book.Info("session %s complete, data saved to %s", a.ses.ID, a.csv.Path())
	markers.Fire(a.emit, markers.EventDebriefShown)
	markers.Fire(a.emit, markers.EventExperimentEnd)
	a.state = stateThanks
	return a, nil
}

// abort discards the session's data files and quits. Partial sessions are
// never kept; a participant who stops consents only to what completes.
func (a *App) abort(reason string) (tea.Model, tea.Cmd) {
	a.aborted = true
	a.book.Warn("session aborted: %s", reason)
	if a.csv != nil {
		if err := a.csv.Discard(); err != nil {
			a.book.Error("discard csv: %v", err)
		}
	}
	markers.Fire(a.emit, markers.EventExperimentEnd)
	return a.quit()
}

// quit closes the journey log before handing control back to bubbletea.
func (a *App) quit() (tea.Model, tea.Cmd) {
	_ = a.book.Close()
	return a, tea.Quit
}

func (a *App) fail(err error) (tea.Model, tea.Cmd) {
	a.err = err
	a.book.Error("%v", err)
	a.state = stateError
	return a, nil
}

// render helpers shared between screen states.

func (a *App) screenVars() map[string]string {
	vars := map[string]string{
		"CRIT": strconv.Itoa(int(a.cfg.PracticePassAcc * 100)),
	}
	if a.ses != nil {
		vars["TOTAL"] = strconv.Itoa(len(a.blocks))
	}
	return vars
}

func (a *App) renderScreen(screen string, extra map[string]string) string {
	vars := a.screenVars()
	for k, v := range extra {
		vars[k] = v
	}
	text, err := a.lib.Render(screen, vars)
	if err != nil {
		// A broken override falls back to naming the screen rather than
		// stranding the participant on a blank page.
		a.book.Error("render %s: %v", screen, err)
		text = strings.ToUpper(screen) + "\n\nPress SPACE to continue."
	}
	return text
}
