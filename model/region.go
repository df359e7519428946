package model

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Coordinate is a WGS84 position in degrees.
type Coordinate struct {
	Lng float64
	Lat float64
}

// Region is the single polygon ring the user has drawn, in the order the
// drawing tool emitted its vertices.
type Region struct {
	Coordinates []Coordinate
}

// Len returns the number of vertices in the ring.
func (r Region) Len() int { return len(r.Coordinates) }

// IsZero reports whether no region is set.
func (r Region) IsZero() bool { return len(r.Coordinates) == 0 }

// Pairs returns the ring as [lng, lat] pairs, the layout both the drawing
// tool and the analytics backend use.
func (r Region) Pairs() [][2]float64 {
	out := make([][2]float64, len(r.Coordinates))
	for i, c := range r.Coordinates {
		out[i] = [2]float64{c.Lng, c.Lat}
	}
	return out
}

// Ring converts the region to an orb ring in drawing order. The ring is not
// closed unless the drawing tool already repeated the first vertex.
func (r Region) Ring() orb.Ring {
	ring := make(orb.Ring, len(r.Coordinates))
	for i, c := range r.Coordinates {
		ring[i] = orb.Point{c.Lng, c.Lat}
	}
	return ring
}

// ClosedRing is Ring with the first vertex repeated at the end when needed.
func (r Region) ClosedRing() orb.Ring {
	ring := r.Ring()
	if len(ring) > 0 && !ring.Closed() {
		ring = append(ring, ring[0])
	}
	return ring
}

// Feature wraps the region as a GeoJSON polygon feature so the map page can
// echo the active shape. Nil for the zero region.
func (r Region) Feature() *geojson.Feature {
	if r.IsZero() {
		return nil
	}
	return geojson.NewFeature(orb.Polygon{r.ClosedRing()})
}
