// internal/markers/markers.go
//
// Named event markers for physio/EEG alignment. The trial engine and session
// flow only ever ask for a named event to be emitted; transports live behind
// the Emitter interface and their failures are swallowed at the call site so
// a dead marker backend can never stall a running trial.

package markers

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Trigger codes are unique and fit in 8 bits so they can drive a parallel
// port directly.
var triggers = map[string]int{
	EventExperimentStart:   1,
	EventConsentShown:      2,
	EventInstructionsShown: 3,
	EventPracticeStart:     10,
	EventPracticeEnd:       11,
	EventBlockLowStart:     20,
	EventBlockLowEnd:       21,
	EventBlockHighStart:    30,
	EventBlockHighEnd:      31,
	EventStimPresentation:  40,
	EventFixationOnset:     41,
	EventResponseLow:       50,
	EventResponseHigh:      51,
	EventDebriefShown:      90,
	EventExperimentEnd:     99,
}

// Named events understood by the trigger map.
const (
	EventExperimentStart   = "experiment_start"
	EventConsentShown      = "consent_shown"
	EventInstructionsShown = "instructions_shown"
	EventPracticeStart     = "practice_start"
	EventPracticeEnd       = "practice_end"
	EventBlockLowStart     = "block_ll_start"
	EventBlockLowEnd       = "block_ll_end"
	EventBlockHighStart    = "block_hl_start"
	EventBlockHighEnd      = "block_hl_end"
	EventStimPresentation  = "stim_presentation"
	EventFixationOnset     = "fixation_onset"
	EventResponseLow       = "response_ll"
	EventResponseHigh      = "response_hl"
	EventDebriefShown      = "debrief_shown"
	EventExperimentEnd     = "experiment_end"
)

// Code resolves a named trigger to its numeric code.
func Code(name string) (int, bool) {
	code, ok := triggers[name]
	return code, ok
}

// BlockStart returns the load-tagged block-start event: 1-back counts as the
// low-load condition, anything higher as high load.
func BlockStart(nBack int) string {
	if nBack == 1 {
		return EventBlockLowStart
	}
	return EventBlockHighStart
}

// BlockEnd returns the load-tagged block-end event.
func BlockEnd(nBack int) string {
	if nBack == 1 {
		return EventBlockLowEnd
	}
	return EventBlockHighEnd
}

// Response returns the load-tagged response event.
func Response(nBack int) string {
	if nBack == 1 {
		return EventResponseLow
	}
	return EventResponseHigh
}

// ResponseCode is the numeric code recorded alongside a response row.
func ResponseCode(nBack int) int {
	code, _ := Code(Response(nBack))
	return code
}

// Stimulus-class codes recorded per trial row. These tag what kind of
// stimulus was on screen, independent of the transport-level triggers.
const (
	StimCodeTarget    = 41
	StimCodeFiller    = 42
	StimCodeLureMinus = 43
	StimCodeLurePlus  = 44
)

// Emitter is the fire-and-forget capability the trial engine depends on.
// Implementations must be cheap to call from the per-trial poll loop.
type Emitter interface {
	Emit(name string) error
}

// Fire emits a named event and discards any transport error. A nil emitter
// is a no-op, so callers never need to guard the capability.
func Fire(e Emitter, name string) {
	if e == nil {
		return
	}
	_ = e.Emit(name)
}

// Nop is an Emitter that drops every event. Used when markers are disabled.
type Nop struct{}

// Emit implements Emitter.
func (Nop) Emit(string) error { return nil }

// Multi fans an event out to several transports. Every transport is tried;
// the first error is reported but later transports still run.
type Multi []Emitter

// Emit implements Emitter.
func (m Multi) Emit(name string) error {
	var first error
	for _, e := range m {
		if e == nil {
			continue
		}
		if err := e.Emit(name); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// FileEmitter appends timestamped marker lines to a log file. It stands in
// for hardware transports during development and leaves an offline record
// that can be cross-checked against the trial CSV.
type FileEmitter struct {
	mu   sync.Mutex
	file *os.File
}

// NewFileEmitter opens (or creates) the marker log at path.
func NewFileEmitter(path string) (*FileEmitter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("markers: ensure marker dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("markers: open marker log: %w", err)
	}
	return &FileEmitter{file: f}, nil
}

// Emit implements Emitter. Unknown names are an error so typos surface in
// tests rather than silently dropping a trigger.
func (f *FileEmitter) Emit(name string) error {
	code, ok := Code(name)
	if !ok {
		return fmt.Errorf("markers: unknown trigger %q", name)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	_, err := fmt.Fprintf(f.file, "%s\t%d\t%s\n",
		time.Now().UTC().Format(time.RFC3339Nano), code, name)
	if err != nil {
		return fmt.Errorf("markers: write marker: %w", err)
	}
	return nil
}

// Close releases the underlying file handle.
func (f *FileEmitter) Close() error {
	if f == nil || f.file == nil {
		return nil
	}
	return f.file.Close()
}
