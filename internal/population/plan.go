package population

import (
	"fmt"

	"github.com/rotisserie/eris"
)

// minutesPerDay is the wrap modulus for clock arithmetic.
const minutesPerDay = 24 * 60

// Point is a coordinate in the single projected CRS shared by a run.
type Point struct {
	X float64
	Y float64
}

// ParseClock parses an "HH:MM:SS" wall-clock string into minutes past
// midnight. Seconds are accepted but ignored, matching the minute
// resolution of all input demand data.
func ParseClock(s string) (int, error) {
	var h, m, sec int
	if _, err := fmt.Sscanf(s, "%d:%d:%d", &h, &m, &sec); err != nil {
		return 0, eris.Wrapf(err, "population: parse clock %q", s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 || sec < 0 || sec > 59 {
		return 0, eris.Errorf("population: clock %q out of range", s)
	}
	return h*60 + m, nil
}

// wrapDuration returns end-start in minutes, wrapped past midnight when
// negative. The result is always >= 0.
func wrapDuration(startMins, endMins int) int {
	d := endMins - startMins
	if d < 0 {
		d += minutesPerDay
	}
	return d
}

// Activity is a stationary period at a location with a purpose label.
type Activity struct {
	UID          string
	Sequence     int
	Type         string
	Point        Point
	StartTime    string
	EndTime      string
	StartMins    int
	EndMins      int
	DurationMins int
}

// NewActivity builds an activity from HH:MM:SS clock strings. Malformed
// clocks indicate a builder bug and fail loudly.
func NewActivity(uid string, seq int, actType string, point Point, startTime, endTime string) (*Activity, error) {
	start, err := ParseClock(startTime)
	if err != nil {
		return nil, eris.Wrapf(err, "population: activity %s[%d] start", uid, seq)
	}
	end, err := ParseClock(endTime)
	if err != nil {
		return nil, eris.Wrapf(err, "population: activity %s[%d] end", uid, seq)
	}
	return &Activity{
		UID:          uid,
		Sequence:     seq,
		Type:         actType,
		Point:        point,
		StartTime:    startTime,
		EndTime:      endTime,
		StartMins:    start,
		EndMins:      end,
		DurationMins: wrapDuration(start, end),
	}, nil
}

// Leg is a movement between two activities via a transport mode.
type Leg struct {
	UID          string
	Sequence     int
	Mode         string
	StartLoc     Point
	EndLoc       Point
	StartTime    string
	EndTime      string
	StartMins    int
	EndMins      int
	DurationMins int
	Distance     float64
}

// NewLeg builds a leg from HH:MM:SS clock strings, with the same
// midnight-wrap rule as activities.
func NewLeg(uid string, seq int, mode string, startLoc, endLoc Point, startTime, endTime string, dist float64) (*Leg, error) {
	start, err := ParseClock(startTime)
	if err != nil {
		return nil, eris.Wrapf(err, "population: leg %s[%d] start", uid, seq)
	}
	end, err := ParseClock(endTime)
	if err != nil {
		return nil, eris.Wrapf(err, "population: leg %s[%d] end", uid, seq)
	}
	return &Leg{
		UID:          uid,
		Sequence:     seq,
		Mode:         mode,
		StartLoc:     startLoc,
		EndLoc:       endLoc,
		StartTime:    startTime,
		EndTime:      endTime,
		StartMins:    start,
		EndMins:      end,
		DurationMins: wrapDuration(start, end),
		Distance:     dist,
	}, nil
}

// Plan is one agent's ordered activity/leg chain for a simulated day.
// Legs interleave activities: activity[i] -> leg[i] -> activity[i+1].
type Plan struct {
	Activities []*Activity
	Legs       []*Leg
	Source     string

	// Wrapped marks a closed day loop: first and last activity share
	// both type and location. Tabular reports suppress the duplicate
	// final activity; the serialized plan keeps it.
	Wrapped bool
}

// NewPlan validates the activity/leg interleaving invariant. A count
// mismatch is a builder bug, never bad input data.
func NewPlan(activities []*Activity, legs []*Leg, source string) (*Plan, error) {
	if len(activities) == 0 {
		return nil, eris.Errorf("population: plan for source %s has no activities", source)
	}
	if len(activities) != len(legs)+1 {
		return nil, eris.Errorf(
			"population: plan for source %s has %d activities for %d legs, want legs+1",
			source, len(activities), len(legs),
		)
	}
	first, last := activities[0], activities[len(activities)-1]
	wrapped := first.Type == last.Type && first.Point == last.Point
	return &Plan{
		Activities: activities,
		Legs:       legs,
		Source:     source,
		Wrapped:    wrapped,
	}, nil
}

// reportedActivities returns the activities that belong in tabular
// output, dropping the duplicated final activity of a wrapped plan.
func (p *Plan) reportedActivities() []*Activity {
	if p.Wrapped {
		return p.Activities[:len(p.Activities)-1]
	}
	return p.Activities
}
