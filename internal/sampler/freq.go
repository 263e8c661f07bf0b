// Package sampler holds the random primitives behind population
// synthesis: weighted frequency distributions, the sample-size
// controller enforcing the global cap, geometry point sampling and the
// journey-time model.
//
// Every draw flows through an injected *rand.Rand seeded once per run;
// call order fully determines the output sequence, so callers must keep
// sampling strictly sequential.
package sampler

import (
	"math/rand"
	"sort"

	"github.com/rotisserie/eris"
)

// ErrExhaustedRetries reports a bounded retry loop that ran out of
// patience. It is fatal for the one derived value, not for the run.
var ErrExhaustedRetries = eris.New("sampler: retries exhausted")

// defaultPatience bounds SampleExclude retries.
const defaultPatience = 10

// FrequencyDist draws discrete outcomes weighted by a parallel
// frequency vector. Weights need not sum to one; probability of
// outcome i is weight[i] / sum(weights).
type FrequencyDist[T comparable] struct {
	outcomes []T
	cum      []float64
	total    float64
}

// NewFrequencyDist builds a weighted distribution over the given
// outcomes. Weights must be non-negative with positive total mass.
func NewFrequencyDist[T comparable](outcomes []T, weights []float64) (*FrequencyDist[T], error) {
	if len(outcomes) == 0 {
		return nil, eris.New("sampler: frequency distribution needs outcomes")
	}
	if len(outcomes) != len(weights) {
		return nil, eris.Errorf("sampler: %d outcomes for %d weights", len(outcomes), len(weights))
	}
	cum := make([]float64, len(weights))
	total := 0.0
	for i, w := range weights {
		if w < 0 {
			return nil, eris.Errorf("sampler: negative weight %f at index %d", w, i)
		}
		total += w
		cum[i] = total
	}
	if total <= 0 {
		return nil, eris.New("sampler: frequency distribution has zero total weight")
	}
	out := make([]T, len(outcomes))
	copy(out, outcomes)
	return &FrequencyDist[T]{outcomes: out, cum: cum, total: total}, nil
}

// Sample returns one weighted draw.
func (d *FrequencyDist[T]) Sample(rng *rand.Rand) T {
	target := rng.Float64() * d.total
	idx := sort.SearchFloat64s(d.cum, target)
	if idx >= len(d.outcomes) {
		idx = len(d.outcomes) - 1
	}
	// Skip zero-weight outcomes that share a cumulative value.
	for idx < len(d.cum)-1 && d.cum[idx] <= target {
		idx++
	}
	return d.outcomes[idx]
}

// SampleN returns n independent draws with replacement.
func (d *FrequencyDist[T]) SampleN(rng *rand.Rand, n int) []T {
	out := make([]T, n)
	for i := range out {
		out[i] = d.Sample(rng)
	}
	return out
}

// SampleExclude resamples up to patience times to avoid the excluded
// outcome. Best effort only: a dominant excluded weight can exhaust the
// retry budget, in which case ErrExhaustedRetries is returned.
func (d *FrequencyDist[T]) SampleExclude(rng *rand.Rand, exclude T, patience int) (T, error) {
	if patience <= 0 {
		patience = defaultPatience
	}
	for attempt := 0; attempt < patience; attempt++ {
		provisional := d.Sample(rng)
		if provisional != exclude {
			return provisional, nil
		}
	}
	var zero T
	return zero, eris.Wrapf(ErrExhaustedRetries, "sampler: no sample avoiding excluded value after %d attempts", patience)
}

// Total returns the distribution's total weight mass.
func (d *FrequencyDist[T]) Total() float64 {
	return d.total
}
