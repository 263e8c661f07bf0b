package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, "output:\n  dir: "+filepath.Join(dir, "out")+"\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, int64(1234), cfg.Run.Seed)
	assert.InDelta(t, 100.0, cfg.Run.Sample, 1e-9)
	assert.Equal(t, "ZoneID", cfg.Zones.IDField)
	assert.Equal(t, 14, cfg.Trace.CellLevel)
	assert.Equal(t, []float64{0.35, 0.4, 0.2, 0.05}, cfg.Freight.Weights)
	assert.True(t, cfg.Survey.Dummies)
	assert.DirExists(t, cfg.Output.Dir)
}

func TestLoadOverrides(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, `
run:
  seed: 42
  sample: 2.5
  limit: 100
  sources: [survey]
zones:
  shapefile: zones.shp
  id_field: code
survey:
  trips_path: trips.csv
  attributes_path: attrs.csv
  allcars: true
output:
  dir: `+filepath.Join(dir, "out")+`
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, int64(42), cfg.Run.Seed)
	assert.InDelta(t, 2.5, cfg.Run.Sample, 1e-9)
	assert.Equal(t, []string{"survey"}, cfg.Run.Sources)
	assert.Equal(t, "code", cfg.Zones.IDField)
	assert.True(t, cfg.Survey.AllCars)
}

func TestValidateSampleRange(t *testing.T) {
	cfg := &Config{
		Run:    RunConfig{Sample: 0.001},
		Output: OutputConfig{Dir: t.TempDir()},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run.sample")

	cfg.Run.Sample = 101
	assert.Error(t, cfg.Validate())
}

func TestValidateUnknownSource(t *testing.T) {
	cfg := &Config{
		Run: RunConfig{
			Sample:  10,
			Sources: []string{"pigeon"},
		},
		Zones:  ZonesConfig{Shapefile: "z.shp"},
		Output: OutputConfig{Dir: t.TempDir()},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown source")
}

func TestValidateRequiresShapefileWithSources(t *testing.T) {
	cfg := &Config{
		Run: RunConfig{
			Sample:  10,
			Sources: []string{"survey"},
		},
		Output: OutputConfig{Dir: t.TempDir()},
	}
	assert.Error(t, cfg.Validate())
}

func TestLoadMissingExplicitPath(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
