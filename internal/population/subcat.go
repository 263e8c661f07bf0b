package population

// Sub-categorization breaks the broad "work" and "home" labels into
// duration and time-of-day bands for downstream scoring. The pass only
// matches the sentinel labels, so running it a second time is a no-op:
// that is the guard against double-processing.

const (
	workLabel = "work"
	homeLabel = "home"
)

// BuildSubCategories relabels work and home activities in place.
func (p *Plan) BuildSubCategories() {
	p.buildSubWorkCategories()
	p.buildSubHomeCategories()
}

func (p *Plan) buildSubWorkCategories() {
	var work []*Activity
	total := 0
	for _, act := range p.Activities {
		if act.Type == workLabel {
			total += act.DurationMins
			work = append(work, act)
		}
	}
	if len(work) == 0 {
		return
	}

	// A long working day starting mid-morning is a conventional shift.
	if total > 7*60 {
		firstStart := work[0].StartMins
		if firstStart > 390 && firstStart < 690 { // 06:30 - 11:30 exclusive
			if len(work) == 1 {
				work[0].Type = "work_9to5"
				return
			}
			if len(work) == 2 && work[1].EndMins < 20*60 {
				work[0].Type = "work_9to5am"
				work[1].Type = "work_9to5pm"
				return
			}
		}
	}

	for _, act := range work {
		switch {
		case act.DurationMins > 7*60:
			act.Type = "work_7_p"
		case act.DurationMins > 3*60:
			act.Type = "work_3_7"
		default:
			act.Type = "work_0_3"
		}
	}
}

func (p *Plan) buildSubHomeCategories() {
	for _, act := range p.Activities {
		if act.Type != homeLabel {
			continue
		}
		if act.DurationMins > 8*60 {
			act.Type = "home_8_p"
		} else {
			act.Type = "home_0_8"
		}
	}
}
