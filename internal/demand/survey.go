package demand

import (
	"encoding/csv"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// SurveyTrip is one reported trip from a travel diary.
type SurveyTrip struct {
	PersonID  string
	Seq       int
	OZone     string
	DZone     string
	Purpose   string
	Mode      string
	StartHHMM int
	EndHHMM   int
	Freq      float64
}

// PersonDay is one diarist's ordered trip chain plus their expansion
// weight. Weight is taken from the first trip row.
type PersonDay struct {
	PersonID string
	Trips    []SurveyTrip
	Freq     float64
}

func headerIndex(header []string, required ...string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range required {
		if _, ok := idx[name]; !ok {
			return nil, eris.Errorf("demand: missing column %q", name)
		}
	}
	return idx, nil
}

// ReadSurveyTrips parses a headed travel-survey CSV and groups trips into
// person-days. Persons keep their input order; trips within a person are
// ordered by sequence number.
func ReadSurveyTrips(r io.Reader) ([]PersonDay, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, eris.Wrap(err, "demand: read survey header")
	}
	idx, err := headerIndex(header,
		"tpid", "tseqno", "ozone", "dzone", "dpurp", "mdname", "tstime", "tetime", "freq")
	if err != nil {
		return nil, err
	}

	var order []string
	groups := map[string]*PersonDay{}
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "demand: read survey row")
		}
		line++

		seq, err := strconv.Atoi(strings.TrimSpace(record[idx["tseqno"]]))
		if err != nil {
			return nil, eris.Wrapf(err, "demand: survey row %d tseqno", line)
		}
		start, err := strconv.Atoi(strings.TrimSpace(record[idx["tstime"]]))
		if err != nil {
			return nil, eris.Wrapf(err, "demand: survey row %d tstime", line)
		}
		end, err := strconv.Atoi(strings.TrimSpace(record[idx["tetime"]]))
		if err != nil {
			return nil, eris.Wrapf(err, "demand: survey row %d tetime", line)
		}
		freq, err := strconv.ParseFloat(strings.TrimSpace(record[idx["freq"]]), 64)
		if err != nil {
			return nil, eris.Wrapf(err, "demand: survey row %d freq", line)
		}

		trip := SurveyTrip{
			PersonID:  strings.TrimSpace(record[idx["tpid"]]),
			Seq:       seq,
			OZone:     strings.TrimSpace(record[idx["ozone"]]),
			DZone:     strings.TrimSpace(record[idx["dzone"]]),
			Purpose:   strings.TrimSpace(record[idx["dpurp"]]),
			Mode:      strings.TrimSpace(record[idx["mdname"]]),
			StartHHMM: start,
			EndHHMM:   end,
			Freq:      freq,
		}

		day, ok := groups[trip.PersonID]
		if !ok {
			day = &PersonDay{PersonID: trip.PersonID, Freq: trip.Freq}
			groups[trip.PersonID] = day
			order = append(order, trip.PersonID)
		}
		day.Trips = append(day.Trips, trip)
	}

	days := make([]PersonDay, 0, len(order))
	for _, id := range order {
		day := groups[id]
		sort.SliceStable(day.Trips, func(i, j int) bool {
			return day.Trips[i].Seq < day.Trips[j].Seq
		})
		days = append(days, *day)
	}
	return days, nil
}

// LoadSurveyTrips reads a survey trip diary from disk.
func LoadSurveyTrips(path string) ([]PersonDay, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "demand: open survey trips %s", path)
	}
	defer func() { _ = f.Close() }()

	days, err := ReadSurveyTrips(f)
	if err != nil {
		return nil, eris.Wrapf(err, "demand: parse survey trips %s", path)
	}
	zap.L().Info("survey trips loaded", zap.String("path", path), zap.Int("persons", len(days)))
	return days, nil
}

// AttributeTable holds categorical person attributes keyed by record id.
type AttributeTable struct {
	Columns []string
	Rows    map[string]map[string]string
}

// Get returns the attribute map for a record id.
func (t AttributeTable) Get(recID string) (map[string]string, bool) {
	row, ok := t.Rows[recID]
	return row, ok
}

// ReadAttributeTable parses a headed CSV whose named key column holds the
// record id. Every other column becomes a categorical attribute.
func ReadAttributeTable(r io.Reader, keyColumn string) (AttributeTable, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err != nil {
		return AttributeTable{}, eris.Wrap(err, "demand: read attribute header")
	}
	key := strings.ToLower(strings.TrimSpace(keyColumn))
	idx, err := headerIndex(header, key)
	if err != nil {
		return AttributeTable{}, err
	}

	var columns []string
	for _, name := range header {
		name = strings.ToLower(strings.TrimSpace(name))
		if name != key {
			columns = append(columns, name)
		}
	}

	rows := map[string]map[string]string{}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return AttributeTable{}, eris.Wrap(err, "demand: read attribute row")
		}
		attrs := make(map[string]string, len(columns))
		for i, name := range header {
			name = strings.ToLower(strings.TrimSpace(name))
			if name == key {
				continue
			}
			attrs[name] = strings.TrimSpace(record[i])
		}
		rows[strings.TrimSpace(record[idx[key]])] = attrs
	}
	return AttributeTable{Columns: columns, Rows: rows}, nil
}

// LoadAttributeTable reads a categorical attribute table from disk.
func LoadAttributeTable(path, keyColumn string) (AttributeTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return AttributeTable{}, eris.Wrapf(err, "demand: open attribute table %s", path)
	}
	defer func() { _ = f.Close() }()

	table, err := ReadAttributeTable(f, keyColumn)
	if err != nil {
		return AttributeTable{}, eris.Wrapf(err, "demand: parse attribute table %s", path)
	}
	return table, nil
}
