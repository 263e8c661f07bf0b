package demand

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// TraceTrip is one smartphone-recorded trip. Coordinates are WGS84
// degrees; projection to the working grid happens downstream.
type TraceTrip struct {
	User     string
	Start    time.Time
	End      time.Time
	OLon     float64
	OLat     float64
	DLon     float64
	DLat     float64
	Mode     string
	Distance float64
}

// Day returns the trip's calendar date in the timestamp's location.
func (t TraceTrip) Day() string {
	return t.Start.Format("2006-01-02")
}

// modeSynonyms folds app-reported mode labels onto the four working
// modes. Unknown labels pass through lowercased.
var modeSynonyms = map[string]string{
	"walking":    "walk",
	"on_foot":    "walk",
	"foot":       "walk",
	"run":        "walk",
	"cycling":    "bike",
	"bicycle":    "bike",
	"ebike":      "bike",
	"automotive": "car",
	"driving":    "car",
	"taxi":       "car",
	"motorbike":  "car",
	"bus":        "pt",
	"tram":       "pt",
	"train":      "pt",
	"subway":     "pt",
	"rail":       "pt",
	"ferry":      "pt",
}

// NormalizeMode maps a recorded transport label to a working mode.
func NormalizeMode(label string) string {
	label = strings.ToLower(strings.TrimSpace(label))
	if mode, ok := modeSynonyms[label]; ok {
		return mode
	}
	return label
}

// ReadTraceTrips parses a headed smartphone trace CSV.
func ReadTraceTrips(r io.Reader) ([]TraceTrip, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err != nil {
		return nil, eris.Wrap(err, "demand: read trace header")
	}
	idx, err := headerIndex(header,
		"user", "started_at", "finished_at", "olon", "olat", "dlon", "dlat", "mode", "distance")
	if err != nil {
		return nil, err
	}

	parseF := func(record []string, col string) (float64, error) {
		return strconv.ParseFloat(strings.TrimSpace(record[idx[col]]), 64)
	}

	var trips []TraceTrip
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "demand: read trace row")
		}
		line++

		start, err := time.Parse(time.RFC3339, strings.TrimSpace(record[idx["started_at"]]))
		if err != nil {
			return nil, eris.Wrapf(err, "demand: trace row %d started_at", line)
		}
		end, err := time.Parse(time.RFC3339, strings.TrimSpace(record[idx["finished_at"]]))
		if err != nil {
			return nil, eris.Wrapf(err, "demand: trace row %d finished_at", line)
		}

		trip := TraceTrip{
			User:  strings.TrimSpace(record[idx["user"]]),
			Start: start,
			End:   end,
			Mode:  NormalizeMode(record[idx["mode"]]),
		}
		for col, dst := range map[string]*float64{
			"olon": &trip.OLon, "olat": &trip.OLat,
			"dlon": &trip.DLon, "dlat": &trip.DLat,
			"distance": &trip.Distance,
		} {
			v, err := parseF(record, col)
			if err != nil {
				return nil, eris.Wrapf(err, "demand: trace row %d %s", line, col)
			}
			*dst = v
		}
		trips = append(trips, trip)
	}
	return trips, nil
}

// LoadTraceTrips reads smartphone trace trips from disk.
func LoadTraceTrips(path string) ([]TraceTrip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "demand: open trace trips %s", path)
	}
	defer func() { _ = f.Close() }()

	trips, err := ReadTraceTrips(f)
	if err != nil {
		return nil, eris.Wrapf(err, "demand: parse trace trips %s", path)
	}
	zap.L().Info("trace trips loaded", zap.String("path", path), zap.Int("trips", len(trips)))
	return trips, nil
}
