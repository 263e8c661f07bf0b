package population

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func planWithActivities(t *testing.T, acts []*Activity) *Plan {
	t.Helper()
	legs := make([]*Leg, 0, len(acts)-1)
	for i := 0; i < len(acts)-1; i++ {
		legs = append(legs, mustLeg(t, i, acts[i].Point, acts[i+1].Point, acts[i].EndTime, acts[i+1].StartTime))
	}
	plan, err := NewPlan(acts, legs, "test")
	require.NoError(t, err)
	return plan
}

func TestSubCategoriesWork9to5(t *testing.T) {
	// Single work block, 500 minutes starting 08:00.
	plan := planWithActivities(t, []*Activity{
		mustActivity(t, 0, "home", Point{X: 1}, "17:00:00", "07:30:00"),
		mustActivity(t, 1, "work", Point{X: 2}, "08:00:00", "16:20:00"),
		mustActivity(t, 2, "home", Point{X: 1}, "17:00:00", "07:30:00"),
	})
	plan.BuildSubCategories()
	assert.Equal(t, "work_9to5", plan.Activities[1].Type)
	assert.Equal(t, "home_8_p", plan.Activities[0].Type)
}

func TestSubCategoriesWorkSplitDay(t *testing.T) {
	// Two work blocks totalling over 7h, second ending before 20:00.
	plan := planWithActivities(t, []*Activity{
		mustActivity(t, 0, "home", Point{X: 1}, "20:00:00", "07:30:00"),
		mustActivity(t, 1, "work", Point{X: 2}, "08:00:00", "12:00:00"),
		mustActivity(t, 2, "work", Point{X: 3}, "13:00:00", "17:30:00"),
		mustActivity(t, 3, "home", Point{X: 1}, "18:00:00", "07:30:00"),
	})
	plan.BuildSubCategories()
	assert.Equal(t, "work_9to5am", plan.Activities[1].Type)
	assert.Equal(t, "work_9to5pm", plan.Activities[2].Type)
}

func TestSubCategoriesWorkDurationBands(t *testing.T) {
	// 200 minute single block: under 7h total, so banded by duration.
	plan := planWithActivities(t, []*Activity{
		mustActivity(t, 0, "home", Point{X: 1}, "14:00:00", "08:00:00"),
		mustActivity(t, 1, "work", Point{X: 2}, "09:00:00", "12:20:00"),
		mustActivity(t, 2, "home", Point{X: 1}, "13:00:00", "08:00:00"),
	})
	plan.BuildSubCategories()
	assert.Equal(t, "work_3_7", plan.Activities[1].Type)
}

func TestSubCategoriesLateStartFallsThrough(t *testing.T) {
	// Over 7h but starting after 11:30: banded, not 9to5.
	plan := planWithActivities(t, []*Activity{
		mustActivity(t, 0, "other", Point{X: 1}, "21:00:00", "11:00:00"),
		mustActivity(t, 1, "work", Point{X: 2}, "12:00:00", "20:00:00"),
		mustActivity(t, 2, "other", Point{X: 1}, "20:30:00", "11:00:00"),
	})
	plan.BuildSubCategories()
	assert.Equal(t, "work_7_p", plan.Activities[1].Type)
}

func TestSubCategoriesHomeBands(t *testing.T) {
	plan := planWithActivities(t, []*Activity{
		mustActivity(t, 0, "home", Point{X: 1}, "22:00:00", "08:00:00"), // 10h
		mustActivity(t, 1, "shop", Point{X: 2}, "09:00:00", "10:00:00"),
		mustActivity(t, 2, "home", Point{X: 3}, "11:00:00", "15:00:00"), // 4h
	})
	plan.BuildSubCategories()
	assert.Equal(t, "home_8_p", plan.Activities[0].Type)
	assert.Equal(t, "home_0_8", plan.Activities[2].Type)
}

func TestSubCategoriesIdempotentGuard(t *testing.T) {
	plan := planWithActivities(t, []*Activity{
		mustActivity(t, 0, "home", Point{X: 1}, "17:00:00", "07:30:00"),
		mustActivity(t, 1, "work", Point{X: 2}, "08:00:00", "16:20:00"),
		mustActivity(t, 2, "home", Point{X: 1}, "17:00:00", "07:30:00"),
	})
	plan.BuildSubCategories()
	first := []string{plan.Activities[0].Type, plan.Activities[1].Type, plan.Activities[2].Type}

	// Relabeled activities no longer match the work/home sentinels.
	plan.BuildSubCategories()
	second := []string{plan.Activities[0].Type, plan.Activities[1].Type, plan.Activities[2].Type}
	assert.Equal(t, first, second)
}
