package commute

import (
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// Segment is one demand segmentation row: the categorical attributes
// shared by every agent synthesized from that segment's matrix.
type Segment struct {
	No     int
	Car    string
	Gender string
	Job    string
	Occ    string
	Income string
}

// loadSegments reads the segment-attribute workbook: one sheet per
// tour, columns seg_no, car, gender, job, occ, inc.
func loadSegments(path string) (map[string][]Segment, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "commute: open segments workbook %s", path)
	}

	out := make(map[string][]Segment, len(f.Sheets))
	for _, sheet := range f.Sheets {
		if len(sheet.Rows) < 2 {
			continue
		}
		cols, err := columnIndex(sheet.Rows[0], "seg_no", "car", "gender", "job", "occ", "inc")
		if err != nil {
			return nil, eris.Wrapf(err, "commute: segments sheet %s", sheet.Name)
		}

		var segments []Segment
		for _, row := range sheet.Rows[1:] {
			cells := cellStrings(row)
			if len(cells) == 0 || cells[cols["seg_no"]] == "" {
				continue
			}
			no, err := strconv.Atoi(cells[cols["seg_no"]])
			if err != nil {
				return nil, eris.Wrapf(err, "commute: segments sheet %s seg_no", sheet.Name)
			}
			segments = append(segments, Segment{
				No:     no,
				Car:    cells[cols["car"]],
				Gender: cells[cols["gender"]],
				Job:    cells[cols["job"]],
				Occ:    cells[cols["occ"]],
				Income: cells[cols["inc"]],
			})
		}
		sort.Slice(segments, func(i, j int) bool { return segments[i].No < segments[j].No })
		out[sheet.Name] = segments
	}
	if len(out) == 0 {
		return nil, eris.Errorf("commute: no segment sheets in %s", path)
	}
	return out, nil
}

// RegionPair keys period factors by origin and destination region.
type RegionPair struct {
	O string
	D string
}

type factorRow struct {
	mode    string
	income  string
	period  string
	regions RegionPair
	factor  float64
}

// Factors holds the period-factor workbook: one sheet per tour, tidy
// columns mode, income, period, o_region, d_region, factor.
type Factors struct {
	sheets map[string][]factorRow
}

// loadFactors reads the period-factor workbook.
func loadFactors(path string) (*Factors, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "commute: open factors workbook %s", path)
	}

	sheets := make(map[string][]factorRow, len(f.Sheets))
	for _, sheet := range f.Sheets {
		if len(sheet.Rows) < 2 {
			continue
		}
		cols, err := columnIndex(sheet.Rows[0], "mode", "income", "period", "o_region", "d_region", "factor")
		if err != nil {
			return nil, eris.Wrapf(err, "commute: factors sheet %s", sheet.Name)
		}

		var rows []factorRow
		for _, row := range sheet.Rows[1:] {
			cells := cellStrings(row)
			if len(cells) == 0 || cells[cols["mode"]] == "" {
				continue
			}
			factor, err := strconv.ParseFloat(cells[cols["factor"]], 64)
			if err != nil {
				return nil, eris.Wrapf(err, "commute: factors sheet %s factor", sheet.Name)
			}
			rows = append(rows, factorRow{
				mode:   cells[cols["mode"]],
				income: cells[cols["income"]],
				period: cells[cols["period"]],
				regions: RegionPair{
					O: cells[cols["o_region"]],
					D: cells[cols["d_region"]],
				},
				factor: factor,
			})
		}
		sheets[sheet.Name] = rows
	}
	if len(sheets) == 0 {
		return nil, eris.Errorf("commute: no factor sheets in %s", path)
	}
	return &Factors{sheets: sheets}, nil
}

// FactorMap returns period -> region pair -> share of daily demand for
// the given tour, mode key and income group. The workbook carries AM,
// IP and PM; night is the remainder per region pair.
func (f *Factors) FactorMap(tour, mode, income string) (map[string]map[RegionPair]float64, error) {
	rows, ok := f.sheets[tour]
	if !ok {
		return nil, eris.Errorf("commute: no factor sheet for tour %q", tour)
	}

	out := map[string]map[RegionPair]float64{}
	for _, period := range periods {
		out[period] = map[RegionPair]float64{}
	}
	night := map[RegionPair]float64{}

	matched := false
	for _, row := range rows {
		if row.mode != mode || row.income != income {
			continue
		}
		periodMap, ok := out[row.period]
		if !ok {
			return nil, eris.Errorf("commute: tour %q has unknown period %q", tour, row.period)
		}
		matched = true
		periodMap[row.regions] += row.factor
		if _, seen := night[row.regions]; !seen {
			night[row.regions] = 1
		}
		night[row.regions] -= row.factor
	}
	if !matched {
		return nil, eris.Errorf("commute: tour %q has no factors for mode %q income %q", tour, mode, income)
	}

	for pair, remainder := range night {
		if remainder < 0 {
			remainder = 0
		}
		out[periodNight][pair] = remainder
	}
	return out, nil
}

func columnIndex(header *xlsx.Row, required ...string) (map[string]int, error) {
	cells := cellStrings(header)
	idx := make(map[string]int, len(cells))
	for i, name := range cells {
		idx[strings.ToLower(name)] = i
	}
	for _, name := range required {
		if _, ok := idx[name]; !ok {
			return nil, eris.Errorf("missing column %q", name)
		}
	}
	return idx, nil
}

func cellStrings(row *xlsx.Row) []string {
	out := make([]string, len(row.Cells))
	for i, cell := range row.Cells {
		out[i] = strings.TrimSpace(cell.String())
	}
	return out
}
