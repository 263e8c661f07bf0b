package sampler

import (
	"math/rand"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRNG() *rand.Rand {
	return rand.New(rand.NewSource(1234))
}

func TestFrequencyDistValidation(t *testing.T) {
	_, err := NewFrequencyDist([]string{}, []float64{})
	assert.Error(t, err)

	_, err = NewFrequencyDist([]string{"a", "b"}, []float64{1})
	assert.Error(t, err)

	_, err = NewFrequencyDist([]string{"a"}, []float64{-1})
	assert.Error(t, err)

	_, err = NewFrequencyDist([]string{"a", "b"}, []float64{0, 0})
	assert.Error(t, err)
}

func TestFrequencyDistZeroWeightNeverDrawn(t *testing.T) {
	dist, err := NewFrequencyDist([]string{"a", "b"}, []float64{1, 0})
	require.NoError(t, err)

	rng := testRNG()
	for i := 0; i < 1000; i++ {
		assert.Equal(t, "a", dist.Sample(rng))
	}
}

func TestFrequencyDistProportions(t *testing.T) {
	dist, err := NewFrequencyDist([]string{"x", "y"}, []float64{3, 1})
	require.NoError(t, err)

	rng := testRNG()
	counts := map[string]int{}
	n := 20000
	for _, v := range dist.SampleN(rng, n) {
		counts[v]++
	}
	assert.InDelta(t, 0.75, float64(counts["x"])/float64(n), 0.02)
}

func TestSampleExclude(t *testing.T) {
	dist, err := NewFrequencyDist([]string{"am", "pm"}, []float64{1, 1})
	require.NoError(t, err)

	rng := testRNG()
	for i := 0; i < 100; i++ {
		got, err := dist.SampleExclude(rng, "am", 10)
		require.NoError(t, err)
		assert.Equal(t, "pm", got)
	}
}

func TestSampleExcludeExhausts(t *testing.T) {
	// A single dominant outcome cannot be avoided: best-effort policy.
	dist, err := NewFrequencyDist([]string{"am"}, []float64{1}) //nolint:staticcheck
	require.NoError(t, err)

	_, err = dist.SampleExclude(testRNG(), "am", 5)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrExhaustedRetries))
}

func TestFrequencyDistODPairs(t *testing.T) {
	type od struct{ o, d string }
	dist, err := NewFrequencyDist(
		[]od{{"z1", "z2"}, {"z2", "z3"}},
		[]float64{0, 2.5},
	)
	require.NoError(t, err)
	assert.Equal(t, od{"z2", "z3"}, dist.Sample(testRNG()))
	assert.InDelta(t, 2.5, dist.Total(), 1e-9)
}
