package population

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustActivity(t *testing.T, seq int, actType string, pt Point, start, end string) *Activity {
	t.Helper()
	act, err := NewActivity("a1", seq, actType, pt, start, end)
	require.NoError(t, err)
	return act
}

func mustLeg(t *testing.T, seq int, from, to Point, start, end string) *Leg {
	t.Helper()
	leg, err := NewLeg("a1", seq, "car", from, to, start, end, 100)
	require.NoError(t, err)
	return leg
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		mins    int
		wantErr bool
	}{
		{"00:00:00", 0, false},
		{"08:30:00", 510, false},
		{"23:59:00", 1439, false},
		{"23:59:59", 1439, false},
		{"24:00:00", 0, true},
		{"08:61:00", 0, true},
		{"garbage", 0, true},
	}
	for _, tc := range tests {
		mins, err := ParseClock(tc.in)
		if tc.wantErr {
			assert.Error(t, err, tc.in)
			continue
		}
		assert.NoError(t, err, tc.in)
		assert.Equal(t, tc.mins, mins, tc.in)
	}
}

func TestActivityDurationWrapsMidnight(t *testing.T) {
	act := mustActivity(t, 0, "home", Point{X: 1, Y: 2}, "22:00:00", "06:00:00")
	assert.Equal(t, 8*60, act.DurationMins)

	act = mustActivity(t, 1, "work", Point{}, "09:00:00", "17:30:00")
	assert.Equal(t, 510, act.DurationMins)
}

func TestLegDurationNonNegative(t *testing.T) {
	leg := mustLeg(t, 0, Point{}, Point{X: 10}, "23:45:00", "00:15:00")
	assert.Equal(t, 30, leg.DurationMins)
	assert.GreaterOrEqual(t, leg.DurationMins, 0)
}

func TestNewPlanInvariant(t *testing.T) {
	home := Point{X: 100, Y: 100}
	acts := []*Activity{
		mustActivity(t, 0, "home", home, "17:00:00", "08:00:00"),
		mustActivity(t, 1, "work", Point{X: 500, Y: 500}, "09:00:00", "16:00:00"),
		mustActivity(t, 2, "home", home, "17:00:00", "08:00:00"),
	}
	legs := []*Leg{
		mustLeg(t, 0, home, Point{X: 500, Y: 500}, "08:00:00", "09:00:00"),
		mustLeg(t, 1, Point{X: 500, Y: 500}, home, "16:00:00", "17:00:00"),
	}

	plan, err := NewPlan(acts, legs, "survey")
	require.NoError(t, err)
	assert.Len(t, plan.Activities, len(plan.Legs)+1)
	assert.True(t, plan.Wrapped)

	// Leg endpoints chain the activity locations by construction.
	for i, leg := range plan.Legs {
		assert.Equal(t, plan.Activities[i].Point, leg.StartLoc, "leg %d start", i)
		assert.Equal(t, plan.Activities[i+1].Point, leg.EndLoc, "leg %d end", i)
	}
}

func TestNewPlanRejectsMismatch(t *testing.T) {
	acts := []*Activity{
		mustActivity(t, 0, "depot", Point{}, "10:00:00", "08:00:00"),
		mustActivity(t, 1, "delivery", Point{X: 1}, "09:00:00", "10:00:00"),
	}
	_, err := NewPlan(acts, nil, "freight-lgv")
	assert.Error(t, err)

	_, err = NewPlan(nil, nil, "freight-lgv")
	assert.Error(t, err)
}

func TestWrappedNeedsTypeAndLocation(t *testing.T) {
	home := Point{X: 100, Y: 100}
	elsewhere := Point{X: 900, Y: 900}

	acts := []*Activity{
		mustActivity(t, 0, "home", home, "17:00:00", "08:00:00"),
		mustActivity(t, 1, "home", elsewhere, "09:00:00", "16:00:00"),
	}
	legs := []*Leg{mustLeg(t, 0, home, elsewhere, "08:00:00", "09:00:00")}

	plan, err := NewPlan(acts, legs, "survey")
	require.NoError(t, err)
	assert.False(t, plan.Wrapped, "same type at different locations is not wrapped")
}

func TestReportedActivitiesSuppressWrappedTail(t *testing.T) {
	home := Point{X: 1, Y: 1}
	acts := []*Activity{
		mustActivity(t, 0, "home", home, "17:00:00", "08:00:00"),
		mustActivity(t, 1, "shop", Point{X: 2, Y: 2}, "09:00:00", "10:00:00"),
		mustActivity(t, 2, "home", home, "11:00:00", "08:00:00"),
	}
	legs := []*Leg{
		mustLeg(t, 0, home, Point{X: 2, Y: 2}, "08:00:00", "09:00:00"),
		mustLeg(t, 1, Point{X: 2, Y: 2}, home, "10:00:00", "11:00:00"),
	}
	plan, err := NewPlan(acts, legs, "survey")
	require.NoError(t, err)
	require.True(t, plan.Wrapped)
	assert.Len(t, plan.reportedActivities(), 2)

	// The serialized plan keeps the explicit final activity.
	assert.Len(t, plan.Activities, 3)
}
