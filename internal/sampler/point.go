package sampler

import (
	"math/rand"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/citymodel/popsynth/internal/population"
	"github.com/citymodel/popsynth/internal/zones"
)

// ErrGeometrySampling reports a zone whose geometry defeated the
// rejection-sampling retry budget. Fatal for the one agent under
// construction; callers skip the agent and count the failure.
var ErrGeometrySampling = eris.New("sampler: unable to sample point from geometry")

// pointPatience bounds bounding-box rejection sampling per call.
const pointPatience = 1000

// PointSampler draws uniformly random points inside zone polygons.
// Unknown zone ids fall back to a fixed point rather than failing the
// run; this is a deliberate best-effort policy for bad references in
// otherwise usable demand data.
type PointSampler struct {
	rng      *rand.Rand
	set      *zones.Set
	fallback population.Point
	log      *zap.Logger
}

// NewPointSampler builds a sampler over the given zone set with the
// configured fallback point for unknown ids.
func NewPointSampler(rng *rand.Rand, set *zones.Set, fallback population.Point) *PointSampler {
	return &PointSampler{
		rng:      rng,
		set:      set,
		fallback: fallback,
		log:      zap.L().With(zap.String("component", "sampler.point")),
	}
}

// Sample returns a uniformly random point within the identified zone,
// by rejection sampling over the zone's bounding box.
func (p *PointSampler) Sample(zoneID string) (population.Point, error) {
	zone, ok := p.set.Get(zoneID)
	if !ok {
		p.log.Warn("unknown zone id, using fallback point", zap.String("zone", zoneID))
		return p.fallback, nil
	}

	minX, maxX := zone.Bounds.Min(0), zone.Bounds.Max(0)
	minY, maxY := zone.Bounds.Min(1), zone.Bounds.Max(1)

	for attempt := 0; attempt < pointPatience; attempt++ {
		x := minX + p.rng.Float64()*(maxX-minX)
		y := minY + p.rng.Float64()*(maxY-minY)
		if zone.Contains(x, y) {
			return population.Point{X: x, Y: y}, nil
		}
	}

	return population.Point{}, eris.Wrapf(ErrGeometrySampling,
		"sampler: zone %s after %d attempts", zoneID, pointPatience)
}
