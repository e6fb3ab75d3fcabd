// internal/trial/engine.go
//
// Fixed-SOA trial state machine. Each trial shows the stimulus for a fixed
// duration, then fixation until the SOA elapses; responses are accepted for
// the whole SOA window and time-locked to stimulus onset. The engine is a
// pure state machine advanced by monotonic clock readings, so the same
// transitions can be driven by the busy-poll runner, the terminal UI, or a
// simulated clock in tests.

package trial

import (
	"time"

	"github.com/attnlab/nback/internal/markers"
	"github.com/attnlab/nback/internal/sequence"
)

// Timing holds the per-trial pacing constants.
type Timing struct {
	// StimulusDur is how long the letter stays on screen.
	StimulusDur time.Duration
	// SOA is the fixed trial period from one stimulus onset to the next.
	SOA time.Duration
}

// ITI returns the planned inter-trial remainder, SOA minus the stimulus
// visible duration, clamped to zero.
func (t Timing) ITI() time.Duration {
	if t.SOA <= t.StimulusDur {
		return 0
	}
	return t.SOA - t.StimulusDur
}

// Record is the immutable per-trial outcome handed to persistence.
type Record struct {
	Index       int
	Stimulus    string
	IsTarget    bool
	Lure        sequence.LureType
	ITIMs       int
	Onset       time.Duration
	ResponseKey string
	Responded   bool
	RT          time.Duration
	Correct     bool
	StimCode    int
	RespCode    int
}

// Frame describes what the display should show right now.
type Frame struct {
	// Fixation is true during the fixation part of the trial.
	Fixation bool
	// Stimulus is the letter on screen when Fixation is false.
	Stimulus string
}

// BlockResult aggregates a finished (or aborted) block.
type BlockResult struct {
	Records           []Record
	CorrectCount      int
	Hits              int
	Omissions         int
	Commissions       int
	CorrectRejections int

	rtSum time.Duration
	rtN   int
}

// Accuracy is the fraction of correct trials, 0 for an empty block.
func (r BlockResult) Accuracy() float64 {
	if len(r.Records) == 0 {
		return 0
	}
	return float64(r.CorrectCount) / float64(len(r.Records))
}

// MeanRT is the mean reaction time over correct, responded trials. The
// second return is false when no such trial exists.
func (r BlockResult) MeanRT() (time.Duration, bool) {
	if r.rtN == 0 {
		return 0, false
	}
	return r.rtSum / time.Duration(r.rtN), true
}

// Engine runs one block of trial plans against a monotonic clock. It is not
// safe for concurrent use; the whole design is single-threaded cooperative
// polling with exactly one mutator of trial state.
type Engine struct {
	plans  []sequence.TrialPlan
	nBack  int
	timing Timing
	emit   markers.Emitter

	idx            int
	onset          time.Duration
	fixationMarked bool
	responded      bool
	responseKey    string
	rt             time.Duration
	started        bool
	done           bool

	result BlockResult
}

// NewEngine builds an engine for one block. The emitter may be nil.
func NewEngine(plans []sequence.TrialPlan, nBack int, timing Timing, emit markers.Emitter) *Engine {
	return &Engine{
		plans:  plans,
		nBack:  nBack,
		timing: timing,
		emit:   emit,
		result: BlockResult{Records: make([]Record, 0, len(plans))},
	}
}

// Start anchors the first trial at now and emits the load-tagged block-start
// and first stimulus markers. An empty block completes immediately.
func (e *Engine) Start(now time.Duration) {
	if e.started {
		return
	}
	e.started = true
	e.onset = now
	markers.Fire(e.emit, markers.BlockStart(e.nBack))
	if len(e.plans) == 0 {
		e.done = true
		markers.Fire(e.emit, markers.BlockEnd(e.nBack))
		return
	}
	markers.Fire(e.emit, markers.EventStimPresentation)
}

// Done reports whether every trial has been finalized.
func (e *Engine) Done() bool { return e.done }

// Respond latches the first qualifying key press of the current trial.
// Presses outside [onset, onset+SOA) and repeated presses are ignored.
// Reaction time is measured from stimulus onset regardless of which
// sub-state the response arrived in.
func (e *Engine) Respond(key string, now time.Duration) {
	if !e.started || e.done || e.responded {
		return
	}
	elapsed := now - e.onset
	if elapsed < 0 || elapsed >= e.timing.SOA {
		return
	}
	e.responded = true
	e.responseKey = key
	e.rt = elapsed
	markers.Fire(e.emit, markers.Response(e.nBack))
}

// Advance moves the state machine to the state implied by now. It fires the
// fixation-onset marker exactly once per trial and finalizes trials whose
// SOA elapsed; pacing is clock-driven, so a late poll can close more than
// one trial. Returns true when the block is done.
func (e *Engine) Advance(now time.Duration) bool {
	if !e.started || e.done {
		return e.done
	}
	for {
		elapsed := now - e.onset
		if elapsed >= e.timing.StimulusDur && !e.fixationMarked {
			e.fixationMarked = true
			markers.Fire(e.emit, markers.EventFixationOnset)
		}
		if elapsed < e.timing.SOA {
			return false
		}
		e.finalizeTrial()
		if e.idx >= len(e.plans) {
			e.done = true
			markers.Fire(e.emit, markers.BlockEnd(e.nBack))
			return true
		}
		// Next onset is scheduled exactly one SOA after the previous one.
		e.onset += e.timing.SOA
		e.fixationMarked = false
		e.responded = false
		e.responseKey = ""
		e.rt = 0
		markers.Fire(e.emit, markers.EventStimPresentation)
	}
}

// Frame reports what should be on screen at now.
func (e *Engine) Frame(now time.Duration) Frame {
	if !e.started || e.done {
		return Frame{Fixation: true}
	}
	if now-e.onset < e.timing.StimulusDur {
		return Frame{Stimulus: e.plans[e.idx].Stimulus}
	}
	return Frame{Fixation: true}
}

// Result returns the block aggregate; valid after Done, and on abort it
// covers the trials finalized so far.
func (e *Engine) Result() BlockResult { return e.result }

func (e *Engine) finalizeTrial() {
	plan := e.plans[e.idx]
	// Go/no-go scoring: any press means "match", silence means "no match".
	correct := plan.IsTarget == e.responded

	rec := Record{
		Index:       e.idx,
		Stimulus:    plan.Stimulus,
		IsTarget:    plan.IsTarget,
		Lure:        plan.Lure,
		ITIMs:       plan.ITIMs,
		Onset:       e.onset,
		ResponseKey: e.responseKey,
		Responded:   e.responded,
		RT:          e.rt,
		Correct:     correct,
		StimCode:    stimCode(plan),
	}
	if e.responded {
		rec.RespCode = markers.ResponseCode(e.nBack)
	}
	e.result.Records = append(e.result.Records, rec)

	if correct {
		e.result.CorrectCount++
		if e.responded {
			e.result.rtSum += e.rt
			e.result.rtN++
		}
	}
	switch {
	case plan.IsTarget && e.responded:
		e.result.Hits++
	case plan.IsTarget:
		e.result.Omissions++
	case e.responded:
		e.result.Commissions++
	default:
		e.result.CorrectRejections++
	}

	e.idx++
}

func stimCode(plan sequence.TrialPlan) int {
	if plan.IsTarget {
		return markers.StimCodeTarget
	}
	switch plan.Lure {
	case sequence.LureNMinusOne:
		return markers.StimCodeLureMinus
	case sequence.LureNPlusOne:
		return markers.StimCodeLurePlus
	}
	return markers.StimCodeFiller
}
