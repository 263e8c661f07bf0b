package output

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/citymodel/popsynth/internal/population"
)

// WriteTables writes activities.csv, legs.csv and attributes.csv into
// the given directory. Wrapped plans report their duplicated final
// activity only once.
func WriteTables(pop *population.Population, dir string) error {
	if err := writeCSV(filepath.Join(dir, "activities.csv"), population.ActivityColumns, pop.ActivityRows()); err != nil {
		return err
	}
	if err := writeCSV(filepath.Join(dir, "legs.csv"), population.LegColumns, pop.LegRows()); err != nil {
		return err
	}
	if err := writeAttributeTable(pop, filepath.Join(dir, "attributes.csv")); err != nil {
		return err
	}
	zap.L().Info("tables written", zap.String("dir", dir))
	return nil
}

// writeAttributeTable writes one row per agent over the union of all
// attribute keys, blank where an agent lacks a key.
func writeAttributeTable(pop *population.Population, path string) error {
	keySet := map[string]bool{}
	for _, agent := range pop.Agents {
		for _, key := range agent.Attributes.Keys() {
			keySet[key] = true
		}
	}
	keys := make([]string, 0, len(keySet))
	for key := range keySet {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	header := append([]string{"uid"}, keys...)
	rows := make([][]string, 0, len(pop.Agents))
	for _, agent := range pop.Agents {
		flat := agent.Attributes.Flatten()
		row := make([]string, 0, len(header))
		row = append(row, agent.UID)
		for _, key := range keys {
			row = append(row, flat[key])
		}
		rows = append(rows, row)
	}
	return writeCSV(path, header, rows)
}

func writeCSV(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "output: create %s", path)
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return eris.Wrapf(err, "output: write header to %s", path)
	}
	if err := w.WriteAll(rows); err != nil {
		return eris.Wrapf(err, "output: write rows to %s", path)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrapf(err, "output: flush %s", path)
	}
	return nil
}
