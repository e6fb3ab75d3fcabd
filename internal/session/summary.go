// internal/session/summary.go

package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/attnlab/nback/internal/trial"
)

// Summary accumulates performance totals across main-task blocks. Practice
// rounds are scored per round and never enter the session totals.
type Summary struct {
	Blocks int
	Trials int

	Correct           int
	Hits              int
	Omissions         int
	Commissions       int
	CorrectRejections int

	rtSum time.Duration
	rtN   int
}

// Add folds one finished block into the totals.
func (s *Summary) Add(res trial.BlockResult) {
	s.Blocks++
	s.Trials += len(res.Records)
	s.Correct += res.CorrectCount
	s.Hits += res.Hits
	s.Omissions += res.Omissions
	s.Commissions += res.Commissions
	s.CorrectRejections += res.CorrectRejections
	for _, rec := range res.Records {
		if rec.IsTarget && rec.Responded {
			s.rtSum += rec.RT
			s.rtN++
		}
	}
}

// Accuracy is the overall proportion of correctly handled trials.
func (s Summary) Accuracy() float64 {
	if s.Trials == 0 {
		return 0
	}
	return float64(s.Correct) / float64(s.Trials)
}

// TargetAccuracy is the hit rate over target trials.
func (s Summary) TargetAccuracy() float64 {
	targets := s.Hits + s.Omissions
	if targets == 0 {
		return 0
	}
	return float64(s.Hits) / float64(targets)
}

// NonTargetAccuracy is the correct-rejection rate over non-target trials.
func (s Summary) NonTargetAccuracy() float64 {
	nonTargets := s.CorrectRejections + s.Commissions
	if nonTargets == 0 {
		return 0
	}
	return float64(s.CorrectRejections) / float64(nonTargets)
}

// MeanHitRT is the mean response time over hits. ok is false when no target
// drew a response.
func (s Summary) MeanHitRT() (time.Duration, bool) {
	if s.rtN == 0 {
		return 0, false
	}
	return s.rtSum / time.Duration(s.rtN), true
}

// String renders the end-of-session report printed to the operator.
func (s Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "blocks: %d, trials: %d\n", s.Blocks, s.Trials)
	fmt.Fprintf(&b, "overall accuracy: %.1f%%\n", 100*s.Accuracy())
	fmt.Fprintf(&b, "target accuracy: %.1f%% (hits %d, omissions %d)\n",
		100*s.TargetAccuracy(), s.Hits, s.Omissions)
	fmt.Fprintf(&b, "non-target accuracy: %.1f%% (correct rejections %d, false alarms %d)\n",
		100*s.NonTargetAccuracy(), s.CorrectRejections, s.Commissions)
	if rt, ok := s.MeanHitRT(); ok {
		fmt.Fprintf(&b, "mean hit RT: %.0f ms", float64(rt.Microseconds())/1000.0)
	} else {
		b.WriteString("mean hit RT: n/a")
	}
	return b.String()
}
