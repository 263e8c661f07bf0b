package sampler

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/citymodel/popsynth/internal/population"
)

// ModeSpeeds maps transport mode labels to assumed speeds in miles per
// hour, for converting sampled distances into journey times.
var ModeSpeeds = map[string]float64{
	"car":  40,
	"rail": 40,
	"pt":   25,
	"bus":  20,
	"bike": 15,
	"walk": 4,
	"taxi": 30,
}

// JourneyOptions tune the journey-time model.
type JourneyOptions struct {
	DefaultSpeed float64       // mph, used for unknown modes (default 30)
	Limit        time.Duration // travel-time ceiling (default 5400s)
	Factor       float64       // crow-flies to network distance factor (default 1.5)
}

func (o JourneyOptions) withDefaults() JourneyOptions {
	if o.DefaultSpeed == 0 {
		o.DefaultSpeed = 30
	}
	if o.Limit == 0 {
		o.Limit = 5400 * time.Second
	}
	if o.Factor == 0 {
		o.Factor = 1.5
	}
	return o
}

// JourneyTime converts a crow-flies distance in metres into a journey
// duration for the given mode. Unrealistically long implied journeys
// are truncated at the ceiling rather than rejected.
func JourneyTime(distance float64, mode string, opts JourneyOptions) time.Duration {
	opts = opts.withDefaults()
	speed, ok := ModeSpeeds[mode]
	if !ok {
		speed = opts.DefaultSpeed
	}
	speed = speed * 1600 / 3600 // mph to metres per second
	journey := time.Duration(distance * opts.Factor / speed * float64(time.Second))
	if journey > opts.Limit {
		return opts.Limit
	}
	return journey
}

// Push selects which end of the day a midnight-straddling leg is
// anchored to.
type Push int

const (
	// PushForward anchors the leg to the start of the day: depart
	// 00:00, arrive 00:00 plus the journey.
	PushForward Push = iota
	// PushBack anchors the leg to the end of the day: arrive 23:59,
	// depart 23:59 minus the journey.
	PushBack
)

// refDay anchors clock arithmetic; only the time of day is meaningful.
var refDay = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// ClockTime places a wall-clock hour and minute on the reference day.
func ClockTime(hour, minute int) time.Time {
	return refDay.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

// TripTimes computes depart/arrive times symmetric around the nominal
// time. A leg that would straddle midnight is pushed whole into the
// chosen end of the day, so no leg runs backward in wall-clock terms
// within the single-day representation.
func TripTimes(nominal time.Time, journey time.Duration, push Push) (depart, arrive time.Time) {
	depart = nominal.Add(-journey / 2)
	arrive = nominal.Add(journey / 2)
	if depart.Day() == arrive.Day() {
		return depart, arrive
	}
	if push == PushForward {
		depart = refDay
		arrive = depart.Add(journey)
	} else {
		arrive = refDay.Add(23*time.Hour + 59*time.Minute)
		depart = arrive.Add(-journey)
	}
	return depart, arrive
}

// Clock formats a time as the HH:MM:SS string used throughout plans.
func Clock(t time.Time) string {
	return t.Format("15:04:05")
}

// Minute returns a random time within the given hour at the given
// minute precision.
func Minute(rng *rand.Rand, hour, step int) time.Time {
	if step <= 0 {
		step = 1
	}
	minute := rng.Intn(60/step) * step
	return ClockTime(hour, minute)
}

// UniformHour draws an hour uniformly from the given set.
func UniformHour(rng *rand.Rand, hours []int) int {
	return hours[rng.Intn(len(hours))]
}

// Euclidean returns the straight-line distance between two points.
func Euclidean(a, b population.Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// FormatHHMM converts the survey's integer clock stamps (hmm or hhmm)
// into HH:MM:SS strings. Values under 100 carry minutes only.
func FormatHHMM(stamp int) string {
	hours := stamp / 100
	minutes := stamp % 100
	return fmt.Sprintf("%02d:%02d:00", hours, minutes)
}
