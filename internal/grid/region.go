package grid

import (
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/uber/h3-go/v4"
)

// RegionToCells returns every cell at the given resolution that overlaps the
// polygon. Interior rings are honored: cells entirely inside a hole are excluded.
func RegionToCells(poly orb.Polygon, resolution int) (CellSet, error) {
	cells := make(CellSet)
	if len(poly) == 0 || len(poly[0]) < 3 {
		return cells, nil
	}

	gp := h3.GeoPolygon{GeoLoop: toGeoLoop(poly[0])}
	for _, hole := range poly[1:] {
		if len(hole) < 3 {
			continue
		}
		gp.Holes = append(gp.Holes, toGeoLoop(hole))
	}

	found, err := h3.PolygonToCellsExperimental(gp, resolution, h3.ContainmentOverlapping)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRegion, err)
	}

	for _, c := range found {
		cells.Add(c.String())
	}
	return cells, nil
}

// RegionSetToCells returns the union of RegionToCells over every polygon.
func RegionSetToCells(polys orb.MultiPolygon, resolution int) (CellSet, error) {
	cells := make(CellSet)
	for i, poly := range polys {
		c, err := RegionToCells(poly, resolution)
		if err != nil {
			return nil, fmt.Errorf("polygon %d: %w", i, err)
		}
		cells.Union(c)
	}
	return cells, nil
}

// RegionToCells maps a polygon at the mapper's resolution.
func (m *Mapper) RegionToCells(poly orb.Polygon) (CellSet, error) {
	return RegionToCells(poly, m.resolution)
}

// RegionSetToCells maps a multipolygon at the mapper's resolution.
func (m *Mapper) RegionSetToCells(polys orb.MultiPolygon) (CellSet, error) {
	return RegionSetToCells(polys, m.resolution)
}

// toGeoLoop converts an orb ring into an H3 loop, dropping the closing vertex.
func toGeoLoop(ring orb.Ring) h3.GeoLoop {
	if len(ring) > 1 && ring[0].Equal(ring[len(ring)-1]) {
		ring = ring[:len(ring)-1]
	}
	loop := make(h3.GeoLoop, len(ring))
	for i, p := range ring {
		loop[i] = h3.NewLatLng(p.Lat(), p.Lon())
	}
	return loop
}

// RegionFromGeoJSON decodes a GeoJSON geometry, feature or feature collection
// and returns all the polygons it contains. Non-areal geometries are ignored.
func RegionFromGeoJSON(data []byte) (orb.MultiPolygon, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRegion, err)
	}

	var out orb.MultiPolygon
	switch probe.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRegion, err)
		}
		for _, f := range fc.Features {
			out = appendPolygons(out, f.Geometry)
		}
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRegion, err)
		}
		out = appendPolygons(out, f.Geometry)
	default:
		g, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRegion, err)
		}
		out = appendPolygons(out, g.Geometry())
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no polygons found", ErrInvalidRegion)
	}
	return out, nil
}

func appendPolygons(out orb.MultiPolygon, g orb.Geometry) orb.MultiPolygon {
	switch v := g.(type) {
	case orb.Polygon:
		return append(out, v)
	case orb.MultiPolygon:
		return append(out, v...)
	case orb.Collection:
		for _, child := range v {
			out = appendPolygons(out, child)
		}
	case orb.Bound:
		return append(out, v.ToPolygon())
	}
	return out
}
