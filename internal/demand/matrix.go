// Package demand parses cleaned tabular demand inputs: origin-destination
// frequency matrices, survey trip diaries, categorical attribute tables
// and smartphone trip traces.
package demand

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ODPair identifies one origin-destination zone pair.
type ODPair struct {
	O string
	D string
}

// ODRow is one row of a narrow demand matrix.
type ODRow struct {
	ODPair
	Freq float64
}

// Matrix is a narrow origin-destination frequency table.
type Matrix struct {
	Rows []ODRow
}

// Total returns the matrix's summed frequency weight.
func (m Matrix) Total() float64 {
	total := 0.0
	for _, r := range m.Rows {
		total += r.Freq
	}
	return total
}

// Scale multiplies every frequency in place and returns the matrix.
func (m Matrix) Scale(factor float64) Matrix {
	for i := range m.Rows {
		m.Rows[i].Freq *= factor
	}
	return m
}

// Filter keeps rows accepted by the predicate.
func (m Matrix) Filter(keep func(ODRow) bool) Matrix {
	var rows []ODRow
	for _, r := range m.Rows {
		if keep(r) {
			rows = append(rows, r)
		}
	}
	return Matrix{Rows: rows}
}

// Split returns the parallel outcome and weight slices for building a
// frequency distribution over the matrix.
func (m Matrix) Split() ([]ODPair, []float64) {
	pairs := make([]ODPair, len(m.Rows))
	weights := make([]float64, len(m.Rows))
	for i, r := range m.Rows {
		pairs[i] = r.ODPair
		weights[i] = r.Freq
	}
	return pairs, weights
}

// ReadMatrix parses a headerless narrow o,d,freq CSV.
func ReadMatrix(r io.Reader) (Matrix, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	var rows []ODRow
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Matrix{}, eris.Wrap(err, "demand: read matrix row")
		}
		line++
		if len(record) < 3 {
			return Matrix{}, eris.Errorf("demand: matrix row %d has %d fields, want 3", line, len(record))
		}
		freq, err := strconv.ParseFloat(strings.TrimSpace(record[2]), 64)
		if err != nil {
			return Matrix{}, eris.Wrapf(err, "demand: matrix row %d freq", line)
		}
		rows = append(rows, ODRow{
			ODPair: ODPair{O: strings.TrimSpace(record[0]), D: strings.TrimSpace(record[1])},
			Freq:   freq,
		})
	}
	return Matrix{Rows: rows}, nil
}

// LoadMatrix reads a narrow matrix from disk.
func LoadMatrix(path string) (Matrix, error) {
	f, err := os.Open(path)
	if err != nil {
		return Matrix{}, eris.Wrapf(err, "demand: open matrix %s", path)
	}
	defer func() { _ = f.Close() }()

	m, err := ReadMatrix(f)
	if err != nil {
		return Matrix{}, eris.Wrapf(err, "demand: parse matrix %s", path)
	}
	zap.L().Debug("demand matrix loaded", zap.String("path", path), zap.Int("rows", len(m.Rows)))
	return m, nil
}

// LoadMatrices loads several period matrices concurrently. Results keep
// the input path order. Sampling remains sequential; only this I/O runs
// in parallel.
func LoadMatrices(paths ...string) ([]Matrix, error) {
	out := make([]Matrix, len(paths))
	var g errgroup.Group
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			m, err := LoadMatrix(path)
			if err != nil {
				return err
			}
			out[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// ReadWideMatrix parses a wide-format matrix: a header of destination
// zone ids, then one row per origin with the origin id in the first
// column. Melted to narrow rows in column-major destination order.
func ReadWideMatrix(r io.Reader) (Matrix, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return Matrix{}, eris.Wrap(err, "demand: read wide matrix")
	}
	if len(records) < 2 || len(records[0]) < 2 {
		return Matrix{}, eris.New("demand: wide matrix needs a destination header and origin rows")
	}

	dests := make([]string, 0, len(records[0])-1)
	for _, d := range records[0][1:] {
		dests = append(dests, strings.TrimSpace(d))
	}

	var rows []ODRow
	for i, record := range records[1:] {
		if len(record) != len(dests)+1 {
			return Matrix{}, eris.Errorf("demand: wide matrix row %d has %d fields, want %d", i+2, len(record), len(dests)+1)
		}
		origin := strings.TrimSpace(record[0])
		for j, cell := range record[1:] {
			freq, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil {
				return Matrix{}, eris.Wrapf(err, "demand: wide matrix cell (%s, %s)", origin, dests[j])
			}
			rows = append(rows, ODRow{ODPair: ODPair{O: origin, D: dests[j]}, Freq: freq})
		}
	}
	return Matrix{Rows: rows}, nil
}

// LoadWideMatrix reads a wide matrix from disk.
func LoadWideMatrix(path string) (Matrix, error) {
	f, err := os.Open(path)
	if err != nil {
		return Matrix{}, eris.Wrapf(err, "demand: open wide matrix %s", path)
	}
	defer func() { _ = f.Close() }()

	m, err := ReadWideMatrix(f)
	if err != nil {
		return Matrix{}, eris.Wrapf(err, "demand: parse wide matrix %s", path)
	}
	return m, nil
}
