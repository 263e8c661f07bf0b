package population

import "strconv"

// ActivityColumns is the header row for activity tables.
var ActivityColumns = []string{
	"source", "uid", "sequence", "activity", "x", "y",
	"start_time", "end_time", "start_time_mins", "end_time_mins", "duration_mins",
}

// LegColumns is the header row for leg tables.
var LegColumns = []string{
	"source", "uid", "sequence", "mode", "ox", "oy", "dx", "dy",
	"start_time", "end_time", "start_time_mins", "end_time_mins",
	"duration_mins", "distance",
}

func activityRow(source string, a *Activity) []string {
	return []string{
		source,
		a.UID,
		strconv.Itoa(a.Sequence),
		a.Type,
		strconv.Itoa(int(a.Point.X)),
		strconv.Itoa(int(a.Point.Y)),
		a.StartTime,
		a.EndTime,
		strconv.Itoa(a.StartMins),
		strconv.Itoa(a.EndMins),
		strconv.Itoa(a.DurationMins),
	}
}

func legRow(source string, l *Leg) []string {
	return []string{
		source,
		l.UID,
		strconv.Itoa(l.Sequence),
		l.Mode,
		strconv.Itoa(int(l.StartLoc.X)),
		strconv.Itoa(int(l.StartLoc.Y)),
		strconv.Itoa(int(l.EndLoc.X)),
		strconv.Itoa(int(l.EndLoc.Y)),
		l.StartTime,
		l.EndTime,
		strconv.Itoa(l.StartMins),
		strconv.Itoa(l.EndMins),
		strconv.Itoa(l.DurationMins),
		strconv.FormatFloat(l.Distance, 'f', 1, 64),
	}
}
