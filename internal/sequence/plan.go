// internal/sequence/plan.go
//
// Trial plan types shared between the generator and the trial engine.

package sequence

// LureType classifies a deliberately interfering non-target stimulus.
type LureType string

const (
	// LureNone marks a plain filler or target trial.
	LureNone LureType = "none"
	// LureNMinusOne matches the letter N-1 positions back.
	LureNMinusOne LureType = "n-1"
	// LureNPlusOne matches the letter N+1 positions back.
	LureNPlusOne LureType = "n+1"
)

// TrialPlan is the per-trial presentation plan produced by Generate. Exactly
// one of target, lure, or plain filler holds for each trial.
type TrialPlan struct {
	// Stimulus is the letter to present.
	Stimulus string
	// IsTarget is true iff Stimulus equals the letter N positions earlier.
	IsTarget bool
	// Lure is the lure category; LureNone unless a lure was placed.
	Lure LureType
	// ITIMs is the planned inter-trial remainder: SOA minus the stimulus
	// visible duration.
	ITIMs int
}

// Config carries the generator tunables. It is passed by value and never
// mutated; callers are expected to hand in already-clamped values.
type Config struct {
	Letters               []string
	TargetRate            float64
	LureNMinusOneRate     float64
	LureNPlusOneRate      float64
	MaxConsecutiveTargets int
	MaxIdenticalRun       int
	FixedITIMs            int
	MaxAttempts           int
	SoftBalance           bool
	IncludeLures          bool
}

func (c Config) letters() []string {
	if len(c.Letters) == 0 {
		return DefaultLetters
	}
	return c.Letters
}
