package sampler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/citymodel/popsynth/internal/population"
)

func TestJourneyTimeBySpeed(t *testing.T) {
	// 4 mph walk = 1.777... m/s; 1000m * 1.5 factor = 843.75s.
	got := JourneyTime(1000, "walk", JourneyOptions{})
	assert.InDelta(t, 843.75, got.Seconds(), 0.5)

	// Unknown mode falls back to the default 30 mph.
	unknown := JourneyTime(1000, "hovercraft", JourneyOptions{})
	fast := JourneyTime(1000, "car", JourneyOptions{})
	assert.Greater(t, unknown, fast)
}

func TestJourneyTimeCeiling(t *testing.T) {
	got := JourneyTime(1e9, "walk", JourneyOptions{})
	assert.Equal(t, 5400*time.Second, got)

	long := JourneyTime(1e9, "car", JourneyOptions{Limit: 72000 * time.Second})
	assert.Equal(t, 72000*time.Second, long)
}

func TestTripTimesNoWrap(t *testing.T) {
	depart, arrive := TripTimes(ClockTime(12, 0), 60*time.Minute, PushForward)
	assert.Equal(t, "11:30:00", Clock(depart))
	assert.Equal(t, "12:30:00", Clock(arrive))
}

func TestTripTimesPushForward(t *testing.T) {
	// Nominal 23:30 with a 90 minute journey straddles midnight.
	depart, arrive := TripTimes(ClockTime(23, 30), 90*time.Minute, PushForward)
	assert.Equal(t, "00:00:00", Clock(depart))
	assert.Equal(t, "01:30:00", Clock(arrive))
}

func TestTripTimesPushBack(t *testing.T) {
	depart, arrive := TripTimes(ClockTime(0, 10), 90*time.Minute, PushBack)
	assert.Equal(t, "23:59:00", Clock(arrive))
	assert.Equal(t, "22:29:00", Clock(depart))
}

func TestEuclidean(t *testing.T) {
	a := population.Point{X: 0, Y: 0}
	b := population.Point{X: 3, Y: 4}
	assert.InDelta(t, 5, Euclidean(a, b), 1e-9)
}

func TestFormatHHMM(t *testing.T) {
	tests := []struct {
		in   int
		want string
	}{
		{5, "00:05:00"},
		{45, "00:45:00"},
		{930, "09:30:00"},
		{2359, "23:59:00"},
		{0, "00:00:00"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, FormatHHMM(tc.in))
	}
}

func TestMinuteWithinHour(t *testing.T) {
	rng := testRNG()
	for i := 0; i < 100; i++ {
		got := Minute(rng, 9, 5)
		assert.Equal(t, 9, got.Hour())
		assert.Zero(t, got.Minute()%5)
	}
}
