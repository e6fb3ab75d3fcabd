// internal/sequence/generate.go
//
// Constrained sequence generation. The primary path is a bounded
// shuffle-and-test search: sample a feasible set of target indices, fill the
// remaining positions left to right (optionally injecting lures), then run
// the whole-sequence validator. If every attempt fails, a simplified greedy
// fallback guarantees a structurally valid sequence, possibly undershooting
// the desired target count by one and never placing lures.
//
// All randomness flows through the caller's *rand.Rand, so a seeded source
// reproduces the same plans for the same configuration.

package sequence

import "math/rand"

const targetSampleAttempts = 200

// Generate builds the trial plans for one block. It never fails: infeasible
// configurations fall through to the greedy fallback, whose output is
// structurally valid but not guaranteed to hit the exact target or lure
// rates. Callers needing hard rate guarantees must pre-validate their
// configuration.
func Generate(rng *rand.Rand, nBack, nTrials int, cfg Config) []TrialPlan {
	letters := cfg.letters()
	desired := roundRate(cfg.TargetRate, nTrials)

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		seq := make([]string, 0, nTrials)
		targets := make([]bool, 0, nTrials)
		lures := make([]LureType, 0, nTrials)
		freq := make(map[string]int, len(letters))
		for _, c := range letters {
			freq[c] = 0
		}

		targetSet := sampleTargetIndices(rng, nBack, nTrials, desired, cfg.MaxConsecutiveTargets)
		if targetSet == nil {
			continue
		}

		for i := 0; i < nTrials; i++ {
			var letter string
			lure := LureNone

			if targetSet[i] && i >= nBack {
				// Forced: a target repeats the letter N back.
				letter = seq[i-nBack]
				targets = append(targets, true)
				lures = append(lures, LureNone)
			} else {
				if cfg.IncludeLures {
					letter, lure = tryLure(rng, seq, i, nBack, cfg)
				}
				if lure == LureNone {
					letter = pickFiller(rng, seq, i, nBack, letters, freq, cfg)
				}
				// The chosen letter can still breach the identical-run cap
				// (the balancer does not forbid repeats); re-select among
				// run-safe candidates if so. Forced target letters are left
				// alone, the validator arbitrates those.
				if !runWithin(seq, letter, cfg.MaxIdenticalRun) {
					letter = reselectRunSafe(rng, seq, i, nBack, letters, freq, cfg)
					lure = LureNone
				}
				targets = append(targets, false)
				lures = append(lures, lure)
			}

			seq = append(seq, letter)
			freq[letter]++
		}

		if ok, _ := Validate(seq, targets, lures, nBack, cfg.TargetRate, cfg.MaxConsecutiveTargets); !ok {
			continue
		}
		return buildPlans(seq, targets, lures, cfg.FixedITIMs)
	}

	return fallback(rng, nBack, nTrials, desired, letters, cfg)
}

// sampleTargetIndices draws a set of exactly desired target positions from
// [nBack, nTrials) such that no projected run of consecutive targets exceeds
// maxConsec. Chains where both i and i-nBack are targets are allowed on
// purpose: they keep high target rates feasible. Returns nil if no feasible
// set was found within the attempt budget.
func sampleTargetIndices(rng *rand.Rand, nBack, nTrials, desired, maxConsec int) map[int]bool {
	if desired <= 0 {
		return map[int]bool{}
	}
	if maxConsec <= 0 {
		return nil
	}
	positions := make([]int, 0, max(0, nTrials-nBack))
	for i := nBack; i < nTrials; i++ {
		positions = append(positions, i)
	}

	for attempt := 0; attempt < targetSampleAttempts; attempt++ {
		rng.Shuffle(len(positions), func(a, b int) {
			positions[a], positions[b] = positions[b], positions[a]
		})
		chosen := make(map[int]bool, desired)
		for _, i := range positions {
			if len(chosen) >= desired {
				break
			}
			if runIfAdded(chosen, i) > maxConsec {
				continue
			}
			chosen[i] = true
		}
		if len(chosen) == desired {
			return chosen
		}
	}
	return nil
}

// runIfAdded returns the length of the consecutive-index run containing i
// once i joins the chosen set.
func runIfAdded(chosen map[int]bool, i int) int {
	run := 1
	for j := i - 1; chosen[j]; j-- {
		run++
	}
	for j := i + 1; chosen[j]; j++ {
		run++
	}
	return run
}

// tryLure attempts to place an n-1 or n+1 lure at position i. The n-1 draw
// happens first; a lure is only accepted when its source letter differs from
// the true N-back letter (so it cannot double as a target) and keeps the
// identical-run cap intact.
func tryLure(rng *rand.Rand, seq []string, i, nBack int, cfg Config) (string, LureType) {
	if nBack-1 > 0 && i >= nBack-1 && rng.Float64() < cfg.LureNMinusOneRate {
		src := seq[i-(nBack-1)]
		if lureAcceptable(seq, src, i, nBack, cfg.MaxIdenticalRun) {
			return src, LureNMinusOne
		}
	}
	if i >= nBack+1 && rng.Float64() < cfg.LureNPlusOneRate {
		src := seq[i-(nBack+1)]
		if lureAcceptable(seq, src, i, nBack, cfg.MaxIdenticalRun) {
			return src, LureNPlusOne
		}
	}
	return "", LureNone
}

func lureAcceptable(seq []string, src string, i, nBack, maxRun int) bool {
	if src == "" {
		return false
	}
	if i >= nBack && src == seq[i-nBack] {
		return false
	}
	return runWithin(seq, src, maxRun)
}

// pickFiller chooses a plain non-target letter via the balancer. Candidates
// exclude the true N-back letter (when defined) and the immediately
// preceding letter when repeating it would bring the run to the cap.
func pickFiller(rng *rand.Rand, seq []string, i, nBack int, letters []string, freq map[string]int, cfg Config) string {
	candidates := letters
	if i >= nBack {
		candidates = without(candidates, seq[i-nBack])
	}
	if len(seq) > 0 {
		last := seq[len(seq)-1]
		if !runWithin(seq, last, cfg.MaxIdenticalRun-1) {
			candidates = without(candidates, last)
		}
	}
	return chooseLetter(rng, letters, candidates, freq, cfg.SoftBalance)
}

// reselectRunSafe repeats the filler selection restricted to letters that
// keep identical runs within the cap.
func reselectRunSafe(rng *rand.Rand, seq []string, i, nBack int, letters []string, freq map[string]int, cfg Config) string {
	candidates := make([]string, 0, len(letters))
	for _, c := range letters {
		if runWithin(seq, c, cfg.MaxIdenticalRun) {
			candidates = append(candidates, c)
		}
	}
	if i >= nBack {
		candidates = without(candidates, seq[i-nBack])
	}
	if len(seq) > 0 {
		last := seq[len(seq)-1]
		if !runWithin(seq, last, cfg.MaxIdenticalRun-1) {
			candidates = without(candidates, last)
		}
	}
	return chooseLetter(rng, letters, candidates, freq, cfg.SoftBalance)
}

// fallback is the emergency construction used when every primary attempt
// fails: greedily scatter targets with only a local neighbor check,
// accepting an undershoot of at most one, then fill the rest avoiding
// immediate repeats and accidental N-back matches. No lures are placed.
func fallback(rng *rand.Rand, nBack, nTrials, desired int, letters []string, cfg Config) []TrialPlan {
	targets := make([]bool, nTrials)
	placed := 0
	candidates := make([]int, 0, max(0, nTrials-nBack))
	for i := nBack; i < nTrials; i++ {
		candidates = append(candidates, i)
	}

	for attempt := 0; attempt < 50 && placed < desired; attempt++ {
		rng.Shuffle(len(candidates), func(a, b int) {
			candidates[a], candidates[b] = candidates[b], candidates[a]
		})
		for _, i := range candidates {
			if placed >= desired {
				break
			}
			if cfg.MaxConsecutiveTargets <= 0 || targets[i] {
				continue
			}
			neighbors := 0
			if i-1 >= 0 && targets[i-1] {
				neighbors++
			}
			if i+1 < nTrials && targets[i+1] {
				neighbors++
			}
			if neighbors >= cfg.MaxConsecutiveTargets {
				continue
			}
			targets[i] = true
			placed++
		}
	}

	// If still short by more than one, take a final strict pass that only
	// accepts fully isolated positions.
	if placed < desired-1 {
		pool := make([]int, 0, nTrials)
		for i := nBack; i < nTrials; i++ {
			if !targets[i] {
				pool = append(pool, i)
			}
		}
		rng.Shuffle(len(pool), func(a, b int) { pool[a], pool[b] = pool[b], pool[a] })
		for _, i := range pool {
			if placed >= desired {
				break
			}
			left := i-1 >= 0 && targets[i-1]
			right := i+1 < nTrials && targets[i+1]
			if !left && !right {
				targets[i] = true
				placed++
			}
		}
	}

	seq := make([]string, 0, nTrials)
	lures := make([]LureType, nTrials)
	for i := range lures {
		lures[i] = LureNone
	}
	for i := 0; i < nTrials; i++ {
		var letter string
		if targets[i] && i >= nBack {
			letter = seq[i-nBack]
		} else {
			candidates := letters
			if i >= nBack {
				candidates = without(candidates, seq[i-nBack])
			}
			if i >= 1 {
				candidates = without(candidates, seq[i-1])
			}
			if len(candidates) == 0 {
				letter = letters[0]
			} else {
				letter = candidates[rng.Intn(len(candidates))]
			}
		}
		seq = append(seq, letter)
	}

	return buildPlans(seq, targets, lures, cfg.FixedITIMs)
}

func buildPlans(seq []string, targets []bool, lures []LureType, itiMs int) []TrialPlan {
	plans := make([]TrialPlan, len(seq))
	for i := range seq {
		plans[i] = TrialPlan{
			Stimulus: seq[i],
			IsTarget: targets[i],
			Lure:     lures[i],
			ITIMs:    itiMs,
		}
	}
	return plans
}
