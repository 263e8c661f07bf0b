package zones

import (
	"strings"

	shp "github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

// LoadShapefile reads zone polygons from a shapefile, keyed by the
// given attribute field. Records without polygon geometry are skipped
// and counted. All attribute columns are retained on each zone.
func LoadShapefile(path, idField string) (*Set, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "zones: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	names := make([]string, len(fields))
	idIdx := -1
	for i, f := range fields {
		name := strings.TrimRight(f.String(), "\x00")
		names[i] = name
		if strings.EqualFold(name, idField) {
			idIdx = i
		}
	}
	if idIdx < 0 {
		return nil, eris.Errorf("zones: id field %q not found in %s", idField, path)
	}

	var loaded []*Zone
	var skipped int
	for reader.Next() {
		_, shape := reader.Shape()
		poly, ok := shape.(*shp.Polygon)
		if !ok {
			skipped++
			continue
		}
		mp := polygonToMultiPolygon(poly)
		if mp == nil {
			skipped++
			continue
		}

		attrs := make(map[string]string, len(names))
		for i, name := range names {
			attrs[name] = strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00"))
		}
		id := attrs[names[idIdx]]
		if id == "" {
			skipped++
			continue
		}

		loaded = append(loaded, &Zone{
			ID:       id,
			Geometry: mp,
			Bounds:   mp.Bounds(),
			Fields:   attrs,
		})
	}

	if skipped > 0 {
		zap.L().Debug("zones: skipped shapefile records",
			zap.String("path", path),
			zap.Int("skipped", skipped),
		)
	}
	if len(loaded) == 0 {
		return nil, eris.Errorf("zones: no polygon zones loaded from %s", path)
	}

	zap.L().Info("zones loaded",
		zap.String("path", path),
		zap.Int("zones", len(loaded)),
	)
	return NewSet(loaded), nil
}

// LoadFilter reads a study-area shapefile and returns its polygons as
// anonymous zones for use with Set.MarkWithin.
func LoadFilter(path string) ([]*Zone, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "zones: open filter shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	var filter []*Zone
	n := 0
	for reader.Next() {
		_, shape := reader.Shape()
		poly, ok := shape.(*shp.Polygon)
		if !ok {
			continue
		}
		mp := polygonToMultiPolygon(poly)
		if mp == nil {
			continue
		}
		n++
		filter = append(filter, &Zone{
			ID:       "filter",
			Geometry: mp,
			Bounds:   mp.Bounds(),
		})
	}
	if len(filter) == 0 {
		return nil, eris.Errorf("zones: no filter polygons loaded from %s", path)
	}
	zap.L().Info("filter loaded", zap.String("path", path), zap.Int("polygons", n))
	return filter, nil
}

// polygonToMultiPolygon converts a shapefile polygon record into a
// go-geom multipolygon, one single-ring polygon per part. Hole rings
// stay as separate parts; the even-odd containment test accounts for
// them.
func polygonToMultiPolygon(p *shp.Polygon) *geom.MultiPolygon {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY)
	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}

		flat := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}
		if len(flat) < 8 { // a closed ring needs at least 4 vertices
			continue
		}

		ring := geom.NewLinearRingFlat(geom.XY, flat)
		poly := geom.NewPolygon(geom.XY)
		if err := poly.Push(ring); err != nil {
			zap.L().Debug("zones: skipping malformed ring", zap.Int32("part", i), zap.Error(err))
			continue
		}
		if err := mp.Push(poly); err != nil {
			zap.L().Debug("zones: skipping malformed polygon part", zap.Int32("part", i), zap.Error(err))
			continue
		}
	}

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}
