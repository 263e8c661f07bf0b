package sampler

import (
	"math"
	"math/rand"
)

// RoundProb rounds n to an integer probabilistically: round up with
// probability equal to the fractional part. Over many calls the mean of
// the returned integers converges to n, so small per-segment demand
// volumes are neither always dropped nor always inflated.
func RoundProb(rng *rand.Rand, n float64) int {
	floor := math.Floor(n)
	if rng.Float64() < n-floor {
		return int(floor) + 1
	}
	return int(floor)
}

// SizeController converts unbounded source demand volumes into bounded
// per-call sample sizes, applying the sampling percentage and an
// optional hard cap shared across every call of a run. It is mutated
// exactly once per decision, strictly sequentially.
type SizeController struct {
	rng        *rand.Rand
	adjustment float64
	limit      int

	counter  int
	hitLimit bool
}

// NewSizeController builds a controller for a sampling percentage in
// (0, 100] and an optional cap (0 disables the cap).
func NewSizeController(rng *rand.Rand, percent float64, limit int) *SizeController {
	return &SizeController{
		rng:        rng,
		adjustment: percent / 100,
		limit:      limit,
	}
}

// SampleSize returns the number of itineraries to build for a segment
// with nAvailable nominal trips. Once the cap is consumed every
// subsequent call returns zero.
func (s *SizeController) SampleSize(nAvailable float64) int {
	if nAvailable == 0 {
		return 0
	}
	count := RoundProb(s.rng, nAvailable*s.adjustment)

	if s.limit > 0 {
		headroom := s.limit - s.counter
		if headroom <= 0 {
			s.hitLimit = true
			return 0
		}
		if count >= headroom {
			s.hitLimit = true
			count = headroom
		}
	}

	s.counter += count
	return count
}

// Count reports the running total of sample sizes returned so far.
func (s *SizeController) Count() int {
	return s.counter
}

// LimitReached reports whether the cap has been consumed. Not an error:
// a clean stop signal for the remaining segments of a source.
func (s *SizeController) LimitReached() bool {
	return s.hitLimit
}

// RateGate admits a fixed percentage of a sequence of candidate items.
// It pre-selects percent×100 residues out of 10000 positions, then
// admits an item when its position's residue is in the selected set.
// Used by the survey source, where each person-day row expands into
// frequency-weighted copies and each copy consults the gate.
type RateGate struct {
	admit    map[int]struct{}
	position int
	admitted int
}

// NewRateGate builds a gate admitting the given percentage of items.
func NewRateGate(rng *rand.Rand, percent float64) *RateGate {
	k := int(percent * 100)
	if k > 10000 {
		k = 10000
	}
	admit := make(map[int]struct{}, k)
	for _, residue := range rng.Perm(10000)[:k] {
		admit[residue] = struct{}{}
	}
	return &RateGate{admit: admit}
}

// Admit advances the gate one position and reports whether the item at
// that position is in the sample.
func (g *RateGate) Admit() bool {
	_, ok := g.admit[g.position%10000]
	g.position++
	if ok {
		g.admitted++
	}
	return ok
}

// Admitted reports how many items the gate has admitted.
func (g *RateGate) Admitted() int {
	return g.admitted
}
