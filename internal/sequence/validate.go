// internal/sequence/validate.go
//
// Whole-sequence constraint checks. Validate is a pure predicate over a
// completed candidate sequence; the generator retries on any failure. The
// reason string is diagnostic only and never shown to participants.

package sequence

import (
	"fmt"
	"math"
)

// Validate checks a candidate sequence against the core constraints and
// returns (false, reason) on the first violated rule.
func Validate(seq []string, targets []bool, lures []LureType, nBack int, targetRate float64, maxConsecTargets int) (bool, string) {
	nTrials := len(seq)

	// 1. The first N trials have no history to match against.
	lead := nBack
	if lead > nTrials {
		lead = nTrials
	}
	for i := 0; i < lead; i++ {
		if targets[i] {
			return false, "target in first N trials"
		}
	}

	// 2. Target count within +/-1 of the desired count.
	desired := roundRate(targetRate, nTrials)
	total := 0
	for _, t := range targets {
		if t {
			total++
		}
	}
	if total < desired-1 || total > desired+1 {
		return false, fmt.Sprintf("target count %d outside +/-1 around %d", total, desired)
	}

	// 3. For N>1, an immediate repeat that is neither target nor lure would
	// read as an unintended 1-back match.
	if nBack > 1 {
		for i := 1; i < nTrials; i++ {
			if seq[i] == seq[i-1] && !targets[i] && lures[i] == LureNone {
				return false, "immediate repeat without target/lure"
			}
		}
	}

	// 4 & 5. Lure structure.
	for i := 0; i < nTrials; i++ {
		switch lures[i] {
		case LureNMinusOne:
			if nBack-1 <= 0 || i < nBack-1 {
				return false, "n-1 lure too early"
			}
			if targets[i] {
				return false, "lure double-counted as target"
			}
			if seq[i] != seq[i-(nBack-1)] {
				return false, "n-1 lure mismatch"
			}
			if i >= nBack && seq[i] == seq[i-nBack] {
				return false, "n-1 lure equals target"
			}
		case LureNPlusOne:
			if i < nBack+1 {
				return false, "n+1 lure too early"
			}
			if targets[i] {
				return false, "lure double-counted as target"
			}
			if seq[i] != seq[i-(nBack+1)] {
				return false, "n+1 lure mismatch"
			}
			if i >= nBack && seq[i] == seq[i-nBack] {
				return false, "n+1 lure equals target"
			}
		}
	}

	// 6. Bounded consecutive targets.
	consec := 0
	for _, t := range targets {
		if t {
			consec++
			if consec > maxConsecTargets {
				return false, fmt.Sprintf("more than %d consecutive targets", maxConsecTargets)
			}
		} else {
			consec = 0
		}
	}

	return true, "ok"
}

// roundRate derives the desired count from rate*n with exact ties rounding
// to even, the same tie rule the reference parameter tables were built with.
// Generator and validator both use it, so the derived count is consistent
// across the whole pipeline.
func roundRate(rate float64, n int) int {
	return int(math.RoundToEven(rate * float64(n)))
}
