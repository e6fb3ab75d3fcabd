// internal/sequence/letters.go
//
// Letter pool and soft-balanced selection. The balancer biases picks toward
// letters that have appeared less often so far without ever forbidding a
// repeat; the caller owns the frequency counts and updates them after
// accepting a letter.

package sequence

import "math/rand"

// DefaultLetters is the stimulus alphabet: uppercase A-Z with the easily
// confused I, O and Q removed.
var DefaultLetters = []string{
	"A", "B", "C", "D", "E", "F", "G", "H", "J", "K", "L", "M",
	"N", "P", "R", "S", "T", "U", "V", "W", "X", "Y", "Z",
}

// chooseLetter picks one letter from candidates. With softBalance enabled the
// draw is weighted by max(maxFreq - freq(c) + 1, 1) over the candidates, so
// under-used letters are favored. An empty candidate list falls back to the
// full pool. The function has no side effects on freq.
func chooseLetter(rng *rand.Rand, pool, candidates []string, freq map[string]int, softBalance bool) string {
	if len(candidates) == 0 {
		candidates = pool
	}
	if !softBalance {
		return candidates[rng.Intn(len(candidates))]
	}

	maxCount := 1
	for _, c := range candidates {
		if n := freq[c]; n > maxCount {
			maxCount = n
		}
	}
	weights := make([]int, len(candidates))
	total := 0.0
	for i, c := range candidates {
		w := maxCount - freq[c] + 1
		if w < 1 {
			w = 1
		}
		weights[i] = w
		total += float64(w)
	}

	r := rng.Float64() * total
	acc := 0.0
	for i, c := range candidates {
		acc += float64(weights[i])
		if r <= acc {
			return c
		}
	}
	return candidates[len(candidates)-1]
}

// runWithin reports whether appending candidate to seq keeps the trailing
// identical-letter run at or below maxRun. A maxRun <= 0 disables the check.
func runWithin(seq []string, candidate string, maxRun int) bool {
	if maxRun <= 0 {
		return true
	}
	run := 1
	for i := len(seq) - 1; i >= 0 && seq[i] == candidate; i-- {
		run++
	}
	return run <= maxRun
}

// without returns letters minus the excluded ones, preserving order.
func without(letters []string, excluded ...string) []string {
	out := make([]string, 0, len(letters))
	for _, c := range letters {
		skip := false
		for _, x := range excluded {
			if c == x {
				skip = true
				break
			}
		}
		if !skip {
			out = append(out, c)
		}
	}
	return out
}
