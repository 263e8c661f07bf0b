package freight

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/citymodel/popsynth/internal/config"
	"github.com/citymodel/popsynth/internal/population"
	"github.com/citymodel/popsynth/internal/zones"
)

func testZone(id string, minX, minY, size float64) *zones.Zone {
	mp := geom.NewMultiPolygon(geom.XY)
	poly := geom.NewPolygon(geom.XY)
	ring := geom.NewLinearRingFlat(geom.XY, []float64{
		minX, minY,
		minX + size, minY,
		minX + size, minY + size,
		minX, minY + size,
		minX, minY,
	})
	if err := poly.Push(ring); err != nil {
		panic(err)
	}
	if err := mp.Push(poly); err != nil {
		panic(err)
	}
	return &zones.Zone{ID: id, Geometry: mp, Bounds: mp.Bounds()}
}

func writeMatrix(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func testConfig(t *testing.T, body string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		Run: config.RunConfig{Sample: 100},
		Freight: config.FreightConfig{
			LGV: config.FreightVehicleConfig{
				AMPath: writeMatrix(t, dir, "am.csv", body),
				IPPath: writeMatrix(t, dir, "ip.csv", body),
				PMPath: writeMatrix(t, dir, "pm.csv", body),
			},
			Weights: []float64{0.35, 0.4, 0.2, 0.05},
		},
	}
	return cfg
}

func checkPlan(t *testing.T, plan *population.Plan) {
	t.Helper()
	require.Equal(t, len(plan.Activities), len(plan.Legs)+1)
	for i, leg := range plan.Legs {
		assert.Equal(t, plan.Activities[i].Point, leg.StartLoc)
		assert.Equal(t, plan.Activities[i+1].Point, leg.EndLoc)
	}
}

func TestBuildNearbyZonesReturns(t *testing.T) {
	// Adjacent zones: every tour fits the day, so plans are three
	// activities around an out-and-back.
	set := zones.NewSet([]*zones.Zone{
		testZone("1", 0, 0, 1000),
		testZone("2", 2000, 0, 1000),
	})
	cfg := testConfig(t, "1,2,20\n")

	b, err := New("lgv", cfg, set, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	assert.Equal(t, "freight-lgv", b.Name())

	pop := population.New()
	require.NoError(t, b.Build(pop))
	require.NotEmpty(t, pop.Agents)

	for _, agent := range pop.Agents {
		require.Len(t, agent.Plans, 1)
		plan := agent.Plans[0]
		checkPlan(t, plan)
		require.Len(t, plan.Activities, 3)
		assert.True(t, plan.Wrapped)
		assert.Equal(t, "freight-lgv", agent.Attributes.Source)
		assert.Equal(t, "freight-lgv", agent.Attributes.Demographics["car"])
	}
}

func TestBuildDistantZonesOneWay(t *testing.T) {
	// Zones ~600km apart: the journey caps past the 12 hour return
	// threshold, so tours are one-way depot to delivery.
	set := zones.NewSet([]*zones.Zone{
		testZone("1", 0, 0, 1000),
		testZone("2", 600000, 0, 1000),
	})
	cfg := testConfig(t, "1,2,10\n")

	b, err := New("lgv", cfg, set, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	pop := population.New()
	require.NoError(t, b.Build(pop))
	require.NotEmpty(t, pop.Agents)

	for _, agent := range pop.Agents {
		plan := agent.Plans[0]
		checkPlan(t, plan)
		require.Len(t, plan.Activities, 2)
		assert.Equal(t, "depot", plan.Activities[0].Type)
		assert.Equal(t, "delivery", plan.Activities[1].Type)
	}
}

func TestBuildRespectsLimit(t *testing.T) {
	set := zones.NewSet([]*zones.Zone{
		testZone("1", 0, 0, 1000),
		testZone("2", 2000, 0, 1000),
	})
	cfg := testConfig(t, "1,2,100\n")
	cfg.Run.Limit = 5

	b, err := New("lgv", cfg, set, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	pop := population.New()
	require.NoError(t, b.Build(pop))
	assert.LessOrEqual(t, len(pop.Agents), 5)
	assert.True(t, b.LimitReached())
}

func TestBuildNormalizesDemand(t *testing.T) {
	set := zones.NewSet([]*zones.Zone{
		testZone("1", 0, 0, 1000),
		testZone("2", 2000, 0, 1000),
	})
	cfg := testConfig(t, "1,2,1000\n")
	cfg.Freight.Norm = 10

	b, err := New("lgv", cfg, set, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	pop := population.New()
	require.NoError(t, b.Build(pop))
	// Probabilistic rounding keeps the total near the normalized 10.
	assert.InDelta(t, 10, len(pop.Agents), 1)
}

func TestNewRejectsBadVehicle(t *testing.T) {
	cfg := testConfig(t, "1,2,1\n")
	_, err := New("tractor", cfg, zones.NewSet(nil), rand.New(rand.NewSource(1)))
	assert.Error(t, err)
}

func TestNewRequiresMatrixPaths(t *testing.T) {
	cfg := testConfig(t, "1,2,1\n")
	cfg.Freight.HGV = config.FreightVehicleConfig{}
	_, err := New("hgv", cfg, zones.NewSet(nil), rand.New(rand.NewSource(1)))
	assert.Error(t, err)
}

func TestAreaFilterKeepsTouchingRows(t *testing.T) {
	inside := testZone("1", 0, 0, 1000)
	outside := testZone("2", 2000, 0, 1000)
	far := testZone("3", 5000, 0, 1000)
	set := zones.NewSet([]*zones.Zone{inside, outside, far})
	set.MarkWithin([]*zones.Zone{testZone("area", -100, -100, 1500)})

	// Only the 2->3 row misses the area entirely.
	cfg := testConfig(t, "1,2,40\n2,3,40\n")

	b, err := New("lgv", cfg, set, rand.New(rand.NewSource(7)))
	require.NoError(t, err)
	for _, m := range b.periods {
		require.Len(t, m.Rows, 1)
		assert.Equal(t, "1", m.Rows[0].O)
	}
}
