// Package zones loads demand-zone geometries from shapefiles into
// go-geom multipolygons and answers the containment queries behind
// point sampling.
package zones

import (
	"sort"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
)

// Zone is one demand zone: an identifier, its polygon geometry and the
// attribute columns carried by the source shapefile.
type Zone struct {
	ID       string
	Geometry *geom.MultiPolygon
	Bounds   *geom.Bounds
	Fields   map[string]string

	// InArea marks zones inside the study-area filter, set by
	// Set.MarkWithin. Sources use it to keep only demand rows that
	// touch the modelled area.
	InArea bool
}

// Contains reports whether the point lies inside the zone geometry.
// Containment is an even-odd crossing count over every ring, which
// tolerates the self-intersecting rings that shapely's zero-buffer
// repair fixed in the original pipeline.
func (z *Zone) Contains(x, y float64) bool {
	pt := geom.Coord{x, y}
	if z.Bounds != nil && !z.Bounds.OverlapsPoint(geom.XY, pt) {
		return false
	}
	inside := false
	mp := z.Geometry
	for i := 0; i < mp.NumPolygons(); i++ {
		poly := mp.Polygon(i)
		for r := 0; r < poly.NumLinearRings(); r++ {
			if xy.IsPointInRing(geom.XY, pt, poly.LinearRing(r).FlatCoords()) {
				inside = !inside
			}
		}
	}
	return inside
}

// RepresentativePoint returns the zone's bounds centre, used for
// coarse area-membership tests.
func (z *Zone) RepresentativePoint() (x, y float64) {
	b := z.Bounds
	return (b.Min(0) + b.Max(0)) / 2, (b.Min(1) + b.Max(1)) / 2
}

// Set is a read-only zone lookup keyed by zone identifier.
type Set struct {
	zones map[string]*Zone
}

// NewSet builds a set from loaded zones.
func NewSet(zs []*Zone) *Set {
	m := make(map[string]*Zone, len(zs))
	for _, z := range zs {
		m[z.ID] = z
	}
	return &Set{zones: m}
}

// Get returns the zone for the given identifier.
func (s *Set) Get(id string) (*Zone, bool) {
	z, ok := s.zones[id]
	return z, ok
}

// Len returns the number of zones.
func (s *Set) Len() int {
	return len(s.zones)
}

// IDs returns the sorted zone identifiers.
func (s *Set) IDs() []string {
	ids := make([]string, 0, len(s.zones))
	for id := range s.zones {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// MarkWithin flags every zone whose representative point falls inside
// any of the filter zones, and returns how many were marked.
func (s *Set) MarkWithin(filter []*Zone) int {
	marked := 0
	for _, z := range s.zones {
		x, y := z.RepresentativePoint()
		for _, f := range filter {
			if f.Contains(x, y) {
				z.InArea = true
				marked++
				break
			}
		}
	}
	return marked
}

// InAreaIDs returns the identifiers of zones marked inside the filter.
func (s *Set) InAreaIDs() map[string]bool {
	out := make(map[string]bool)
	for id, z := range s.zones {
		if z.InArea {
			out[id] = true
		}
	}
	return out
}
