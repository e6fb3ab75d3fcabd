// internal/trial/runner.go
//
// Cooperative busy-poll driver for the trial engine. One loop iteration
// reads the clock, drains pending key events, advances the state machine and
// renders the current frame. The render call is the only yield point; pacing
// never sleeps, so the SOA deadline cannot be overshot by a missed wakeup.

package trial

import (
	"errors"
	"time"

	"github.com/attnlab/nback/internal/markers"
	"github.com/attnlab/nback/internal/sequence"
)

// ErrAborted is returned when the quit key cuts a block short. Records
// finalized before the abort are still present in the result; discarding
// them is the caller's policy.
var ErrAborted = errors.New("trial: block aborted")

// Clock yields monotonic elapsed time. Real runs use NewWallClock; tests
// substitute a simulated clock.
type Clock interface {
	Now() time.Duration
}

// Input drains key events that arrived since the previous poll. Poll must
// never block.
type Input interface {
	Poll() []string
}

// Display presents a frame. The call is expected to block until the next
// refresh; the runner treats it as opaque I/O.
type Display interface {
	Render(Frame)
}

// Keys names the response and quit keys for a run.
type Keys struct {
	Respond string
	Quit    string
}

// NewWallClock returns a Clock anchored at the moment of the call, backed by
// the runtime's monotonic reading.
func NewWallClock() Clock {
	return wallClock{base: time.Now()}
}

type wallClock struct{ base time.Time }

func (c wallClock) Now() time.Duration { return time.Since(c.base) }

// RunBlock drives one block to completion. The quit key aborts immediately
// with ErrAborted; everything else follows the fixed-SOA schedule.
func RunBlock(plans []sequence.TrialPlan, nBack int, timing Timing, keys Keys, clock Clock, input Input, display Display, emit markers.Emitter) (BlockResult, error) {
	eng := NewEngine(plans, nBack, timing, emit)
	eng.Start(clock.Now())

	for !eng.Done() {
		now := clock.Now()
		for _, key := range input.Poll() {
			switch key {
			case keys.Quit:
				return eng.Result(), ErrAborted
			case keys.Respond:
				eng.Respond(key, now)
			}
		}
		if eng.Advance(clock.Now()) {
			break
		}
		display.Render(eng.Frame(clock.Now()))
	}
	return eng.Result(), nil
}
