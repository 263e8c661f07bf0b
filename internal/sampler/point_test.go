package sampler

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/citymodel/popsynth/internal/population"
	"github.com/citymodel/popsynth/internal/zones"
)

func zoneFromRings(id string, rings ...[]float64) *zones.Zone {
	mp := geom.NewMultiPolygon(geom.XY)
	for _, flat := range rings {
		poly := geom.NewPolygon(geom.XY)
		if err := poly.Push(geom.NewLinearRingFlat(geom.XY, flat)); err != nil {
			panic(err)
		}
		if err := mp.Push(poly); err != nil {
			panic(err)
		}
	}
	return &zones.Zone{ID: id, Geometry: mp, Bounds: mp.Bounds()}
}

func squareZone(id string, minX, minY, size float64) *zones.Zone {
	return zoneFromRings(id, []float64{
		minX, minY,
		minX + size, minY,
		minX + size, minY + size,
		minX, minY + size,
		minX, minY,
	})
}

func TestSamplePointWithinZone(t *testing.T) {
	zone := squareZone("z1", 100, 200, 50)
	set := zones.NewSet([]*zones.Zone{zone})
	ps := NewPointSampler(testRNG(), set, population.Point{})

	for i := 0; i < 200; i++ {
		pt, err := ps.Sample("z1")
		require.NoError(t, err)
		assert.True(t, zone.Contains(pt.X, pt.Y), "point (%f, %f) outside zone", pt.X, pt.Y)
	}
}

func TestSamplePointLShape(t *testing.T) {
	// Concave zone: points in the notch of the L must be rejected.
	zone := zoneFromRings("L", []float64{
		0, 0, 10, 0, 10, 4, 4, 4, 4, 10, 0, 10, 0, 0,
	})
	set := zones.NewSet([]*zones.Zone{zone})
	ps := NewPointSampler(testRNG(), set, population.Point{})

	for i := 0; i < 500; i++ {
		pt, err := ps.Sample("L")
		require.NoError(t, err)
		inNotch := pt.X > 4 && pt.Y > 4
		assert.False(t, inNotch, "point (%f, %f) in the notch", pt.X, pt.Y)
	}
}

func TestSamplePointUnknownZoneFallsBack(t *testing.T) {
	set := zones.NewSet([]*zones.Zone{squareZone("z1", 0, 0, 10)})
	fallback := population.Point{X: 530000, Y: 180000}
	ps := NewPointSampler(testRNG(), set, fallback)

	pt, err := ps.Sample("missing")
	require.NoError(t, err)
	assert.Equal(t, fallback, pt)
}

func TestSamplePointDegenerateGeometryExhausts(t *testing.T) {
	// A hairline diagonal sliver fills a vanishing share of its own
	// bounding box, so rejection sampling runs out of patience.
	zone := zoneFromRings("sliver", []float64{
		0, 0, 1000, 1000, 1000, 1000.001, 0, 0.001, 0, 0,
	})
	set := zones.NewSet([]*zones.Zone{zone})
	ps := NewPointSampler(testRNG(), set, population.Point{})

	_, err := ps.Sample("sliver")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrGeometrySampling))
}

func TestZoneWithHole(t *testing.T) {
	// Outer square with an inner hole ring: even-odd containment.
	zone := zoneFromRings("donut",
		[]float64{0, 0, 10, 0, 10, 10, 0, 10, 0, 0},
		[]float64{4, 4, 6, 4, 6, 6, 4, 6, 4, 4},
	)
	assert.True(t, zone.Contains(1, 1))
	assert.False(t, zone.Contains(5, 5))
	set := zones.NewSet([]*zones.Zone{zone})
	ps := NewPointSampler(testRNG(), set, population.Point{})
	for i := 0; i < 300; i++ {
		pt, err := ps.Sample("donut")
		require.NoError(t, err)
		inHole := pt.X > 4 && pt.X < 6 && pt.Y > 4 && pt.Y < 6
		assert.False(t, inHole, "point (%f, %f) inside hole", pt.X, pt.Y)
	}
}
