package zones

import (
	"path/filepath"
	"testing"

	shp "github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func square(minX, minY, size float64) []shp.Point {
	return []shp.Point{
		{X: minX, Y: minY},
		{X: minX, Y: minY + size},
		{X: minX + size, Y: minY + size},
		{X: minX + size, Y: minY},
		{X: minX, Y: minY},
	}
}

// writeZoneShapefile writes two square zones with id and name columns.
func writeZoneShapefile(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "zones.shp")

	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)
	require.NoError(t, w.SetFields([]shp.Field{
		shp.StringField("ZoneID", 16),
		shp.StringField("Name", 32),
	}))

	rows := []struct {
		id, name string
		ring     []shp.Point
	}{
		{"z1", "east", square(0, 0, 100)},
		{"z2", "west", square(200, 0, 100)},
	}
	for i, row := range rows {
		poly := shp.Polygon(*shp.NewPolyLine([][]shp.Point{row.ring}))
		w.Write(&poly)
		require.NoError(t, w.WriteAttribute(i, 0, row.id))
		require.NoError(t, w.WriteAttribute(i, 1, row.name))
	}
	w.Close()
	return path
}

func TestLoadShapefile(t *testing.T) {
	path := writeZoneShapefile(t, t.TempDir())

	set, err := LoadShapefile(path, "zoneid")
	require.NoError(t, err)
	require.Equal(t, 2, set.Len())
	assert.Equal(t, []string{"z1", "z2"}, set.IDs())

	z1, ok := set.Get("z1")
	require.True(t, ok)
	assert.Equal(t, "east", z1.Fields["Name"])
	assert.True(t, z1.Contains(50, 50))
	assert.False(t, z1.Contains(150, 50))

	z2, ok := set.Get("z2")
	require.True(t, ok)
	assert.True(t, z2.Contains(250, 50))
}

func TestLoadShapefileMissingIDField(t *testing.T) {
	path := writeZoneShapefile(t, t.TempDir())

	_, err := LoadShapefile(path, "nonesuch")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "id field")
}

func TestLoadShapefileMissingFile(t *testing.T) {
	_, err := LoadShapefile(filepath.Join(t.TempDir(), "absent.shp"), "id")
	assert.Error(t, err)
}

func TestLoadFilter(t *testing.T) {
	path := writeZoneShapefile(t, t.TempDir())

	filter, err := LoadFilter(path)
	require.NoError(t, err)
	require.Len(t, filter, 2)
	assert.True(t, filter[0].Contains(50, 50) || filter[1].Contains(50, 50))
}
