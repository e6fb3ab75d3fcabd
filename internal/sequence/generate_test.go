package sequence

import (
	"math/rand"
	"testing"
)

func testConfig() Config {
	return Config{
		TargetRate:            0.30,
		LureNMinusOneRate:     0.05,
		LureNPlusOneRate:      0.05,
		MaxConsecutiveTargets: 1,
		MaxIdenticalRun:       2,
		FixedITIMs:            2000,
		MaxAttempts:           300,
		SoftBalance:           true,
		IncludeLures:          true,
	}
}

func countTargets(plans []TrialPlan) int {
	n := 0
	for _, p := range plans {
		if p.IsTarget {
			n++
		}
	}
	return n
}

func TestGenerateStructure(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	cfg := testConfig()

	for _, nBack := range []int{1, 2, 3} {
		for round := 0; round < 20; round++ {
			plans := Generate(rng, nBack, 60, cfg)
			if len(plans) != 60 {
				t.Fatalf("nBack=%d: expected 60 plans, got %d", nBack, len(plans))
			}

			// No target before position N.
			for i := 0; i < nBack; i++ {
				if plans[i].IsTarget {
					t.Fatalf("nBack=%d: target at lead-in position %d", nBack, i)
				}
			}

			// Target count within +/-1 of round(rate*trials).
			desired := roundRate(cfg.TargetRate, 60)
			total := countTargets(plans)
			if total < desired-1 || total > desired+1 {
				t.Fatalf("nBack=%d: target count %d outside [%d,%d]", nBack, total, desired-1, desired+1)
			}

			// Targets actually match the letter N back; consecutive cap holds.
			consec := 0
			for i, p := range plans {
				if p.IsTarget {
					consec++
					if consec > cfg.MaxConsecutiveTargets {
						t.Fatalf("nBack=%d: %d consecutive targets at %d", nBack, consec, i)
					}
					if plans[i].Stimulus != plans[i-nBack].Stimulus {
						t.Fatalf("nBack=%d: target at %d does not match N back", nBack, i)
					}
				} else {
					consec = 0
				}
			}

			// Every plan carries the fixed inter-trial remainder.
			for i, p := range plans {
				if p.ITIMs != cfg.FixedITIMs {
					t.Fatalf("nBack=%d: plan %d ITI %d, want %d", nBack, i, p.ITIMs, cfg.FixedITIMs)
				}
			}
		}
	}
}

func TestGenerateLureStructure(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	cfg := testConfig()
	cfg.LureNMinusOneRate = 0.25
	cfg.LureNPlusOneRate = 0.25

	sawLure := false
	for round := 0; round < 30; round++ {
		plans := Generate(rng, 2, 60, cfg)
		for i, p := range plans {
			switch p.Lure {
			case LureNMinusOne:
				sawLure = true
				if p.IsTarget {
					t.Fatalf("lure at %d double-counted as target", i)
				}
				if i < 1 || p.Stimulus != plans[i-1].Stimulus {
					t.Fatalf("n-1 lure at %d does not match position i-1", i)
				}
				if i >= 2 && p.Stimulus == plans[i-2].Stimulus {
					t.Fatalf("n-1 lure at %d equals true N-back letter", i)
				}
			case LureNPlusOne:
				sawLure = true
				if p.IsTarget {
					t.Fatalf("lure at %d double-counted as target", i)
				}
				if i < 3 || p.Stimulus != plans[i-3].Stimulus {
					t.Fatalf("n+1 lure at %d does not match position i-3", i)
				}
				if i >= 2 && p.Stimulus == plans[i-2].Stimulus {
					t.Fatalf("n+1 lure at %d equals true N-back letter", i)
				}
			}
		}
	}
	if !sawLure {
		t.Fatal("expected at least one lure across 30 blocks at 25% rates")
	}
}

func TestGenerateDeterministicWithSeed(t *testing.T) {
	cfg := testConfig()
	a := Generate(rand.New(rand.NewSource(42)), 2, 60, cfg)
	b := Generate(rand.New(rand.NewSource(42)), 2, 60, cfg)
	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("plans diverge at %d: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestGenerateFallbackPath(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	cfg := testConfig()
	cfg.MaxAttempts = 0 // force the fallback

	plans := Generate(rng, 2, 60, cfg)
	if len(plans) != 60 {
		t.Fatalf("fallback returned %d plans, want 60", len(plans))
	}
	desired := roundRate(cfg.TargetRate, 60)
	total := countTargets(plans)
	if total < desired-1 || total > desired {
		t.Fatalf("fallback target count %d outside [%d,%d]", total, desired-1, desired)
	}
	for i, p := range plans {
		if p.Lure != LureNone {
			t.Fatalf("fallback placed a lure at %d", i)
		}
		if i < 2 && p.IsTarget {
			t.Fatalf("fallback target at lead-in position %d", i)
		}
		if p.IsTarget && p.Stimulus != plans[i-2].Stimulus {
			t.Fatalf("fallback target at %d does not match N back", i)
		}
	}
}

func TestGenerateSmallBlockExample(t *testing.T) {
	// nBack=2, 10 trials, rate 0.3: desired 3 targets, accepted range {2,3,4},
	// none at positions 0 or 1.
	rng := rand.New(rand.NewSource(5))
	cfg := testConfig()
	for round := 0; round < 50; round++ {
		plans := Generate(rng, 2, 10, cfg)
		if len(plans) != 10 {
			t.Fatalf("expected 10 plans, got %d", len(plans))
		}
		total := countTargets(plans)
		if total < 2 || total > 4 {
			t.Fatalf("target count %d outside {2,3,4}", total)
		}
		if plans[0].IsTarget || plans[1].IsTarget {
			t.Fatal("target in first two positions")
		}
	}
}

func TestGenerateZeroTrials(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	plans := Generate(rng, 2, 0, testConfig())
	if len(plans) != 0 {
		t.Fatalf("expected empty plan list, got %d", len(plans))
	}
}
