// internal/session/session.go
//
// Block orchestration. A session is: practice (always 2-back, repeated until
// the accuracy criterion passes) followed by two sequential N-back loads of
// a fixed number of blocks each. This package owns the session identity and
// random source and hands generated trial plans to the timing engine; it
// performs no I/O itself.

package session

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/attnlab/nback/internal/config"
	"github.com/attnlab/nback/internal/sequence"
	"github.com/attnlab/nback/internal/store"
	"github.com/attnlab/nback/internal/trial"
)

// Block describes one main-task block in session order.
type Block struct {
	// Index is 1-based and continues across the load switch.
	Index int
	// Phase is 1 for the first load, 2 for the second.
	Phase int
	NBack int
}

// Session carries the identity, random source and running totals of one
// participant session.
type Session struct {
	cfg config.Config
	rng *rand.Rand
	// seed is the resolved value actually feeding rng; it goes into the
	// metadata so an unseeded session stays reproducible.
	seed int64

	ID        string
	Timestamp string
	StartedAt time.Time

	Summary Summary
}

// New creates a session. A zero seed falls back to the current time, so two
// unseeded sessions never share a sequence.
func New(cfg config.Config) *Session {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	now := time.Now()
	return &Session{
		cfg:       cfg,
		rng:       rand.New(rand.NewSource(seed)),
		seed:      seed,
		ID:        uuid.NewString(),
		Timestamp: now.Format("20060102_150405"),
		StartedAt: now,
	}
}

// Seed returns the resolved random seed driving this session's sequences.
func (s *Session) Seed() int64 { return s.seed }

// Config returns the session's immutable configuration.
func (s *Session) Config() config.Config { return s.cfg }

// Blocks lists the main-task blocks in presentation order.
func (s *Session) Blocks() []Block {
	order := s.cfg.LoadOrder()
	blocks := make([]Block, 0, 2*s.cfg.BlocksPerLoad)
	idx := 0
	for phase, nBack := range order {
		for b := 0; b < s.cfg.BlocksPerLoad; b++ {
			idx++
			blocks = append(blocks, Block{Index: idx, Phase: phase + 1, NBack: nBack})
		}
	}
	return blocks
}

// GenerateBlock produces the trial plans for a main-task block.
func (s *Session) GenerateBlock(nBack int) []sequence.TrialPlan {
	return sequence.Generate(s.rng, nBack, s.cfg.TrialsPerBlock, s.cfg.Generator())
}

// GeneratePractice produces the plans for one practice round. Practice is
// always 2-back regardless of the session's load order.
func (s *Session) GeneratePractice() []sequence.TrialPlan {
	return sequence.Generate(s.rng, config.PracticeNBack, s.cfg.PracticeTrials, s.cfg.PracticeGenerator())
}

// PracticePassed applies the accuracy criterion to a practice round.
func (s *Session) PracticePassed(res trial.BlockResult) bool {
	return res.Accuracy() >= s.cfg.PracticePassAcc
}

// Timing returns the engine pacing constants for this session.
func (s *Session) Timing() trial.Timing {
	return trial.Timing{StimulusDur: s.cfg.StimulusDur(), SOA: s.cfg.SOA()}
}

// Info identifies this session for row output.
func (s *Session) Info() store.SessionInfo {
	return store.SessionInfo{
		Participant: s.cfg.Participant,
		SessionID:   s.ID,
		Timestamp:   s.Timestamp,
	}
}

// BaseName is the stem for this session's output files.
func (s *Session) BaseName() string {
	return fmt.Sprintf("nback_%s_%s", s.cfg.Participant, s.Timestamp)
}

// Meta builds the metadata sidecar for this session.
func (s *Session) Meta() store.Meta {
	return store.Meta{
		SessionID:          s.ID,
		Participant:        s.cfg.Participant,
		SessionTimestamp:   s.Timestamp,
		Version:            s.cfg.Version,
		LoadOrder:          s.cfg.LoadOrder(),
		PracticeNBack:      config.PracticeNBack,
		BlocksPerLoad:      s.cfg.BlocksPerLoad,
		TotalBlocks:        2 * s.cfg.BlocksPerLoad,
		TrialsPerBlock:     s.cfg.TrialsPerBlock,
		PracticeTrials:     s.cfg.PracticeTrials,
		PracticeTargetRate: s.cfg.PracticeTargetRate,
		PracticeHasLures:   s.cfg.PracticeHasLures,
		TargetRate:         s.cfg.TargetRate,
		LureNMinusOneRate:  s.cfg.LureNMinusOneRate,
		LureNPlusOneRate:   s.cfg.LureNPlusOneRate,
		MaxConsecTargets:   s.cfg.MaxConsecTargets,
		MaxIdenticalRun:    s.cfg.MaxIdenticalRun,
		Seed:               s.seed,
		Letters:            sequence.DefaultLetters,
		SOAMs:              s.cfg.SOAMs,
		StimulusMs:         s.cfg.StimulusMs,
		FixedITIMs:         s.cfg.FixedITIMs(),
	}
}

// Record folds a finished main-task block into the session totals.
func (s *Session) Record(res trial.BlockResult) {
	s.Summary.Add(res)
}
