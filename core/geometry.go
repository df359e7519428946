package core

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/signalsfoundry/ndvi-overlay/model"
)

// MinRingVertices is the smallest vertex count that describes a polygon ring.
const MinRingVertices = 3

// ErrInvalidGeometry is returned when a drawn shape cannot form a region.
var ErrInvalidGeometry = errors.New("invalid geometry")

// Normalize converts the raw vertex list emitted by the drawing tool into a
// Region. Each vertex is [lng, lat]. The result is a fresh copy in the order
// received; the ring is neither reordered nor closed.
func Normalize(raw [][]float64) (model.Region, error) {
	if len(raw) < MinRingVertices {
		return model.Region{}, fmt.Errorf("%w: need at least %d vertices, got %d", ErrInvalidGeometry, MinRingVertices, len(raw))
	}

	coords := make([]model.Coordinate, len(raw))
	for i, v := range raw {
		if len(v) < 2 {
			return model.Region{}, fmt.Errorf("%w: vertex %d has %d components", ErrInvalidGeometry, i, len(v))
		}
		lng, lat := v[0], v[1]
		if !finite(lng) || !finite(lat) {
			return model.Region{}, fmt.Errorf("%w: vertex %d is not finite", ErrInvalidGeometry, i)
		}
		coords[i] = model.Coordinate{Lng: lng, Lat: lat}
	}
	return model.Region{Coordinates: coords}, nil
}

// Summary describes a region for logs and the map page.
type Summary struct {
	Vertices int
	Bound    orb.Bound
	Centroid orb.Point
	// Area is the planar area in square degrees; only meaningful for
	// comparing shapes drawn in the same session.
	Area float64
}

// Summarize computes the bound, centroid and planar area of a region.
func Summarize(r model.Region) Summary {
	if r.IsZero() {
		return Summary{}
	}
	vertices := r.Len()
	ring := r.ClosedRing()
	centroid, area := planar.CentroidArea(orb.Polygon{ring})
	return Summary{
		Vertices: vertices,
		Bound:    ring.Bound(),
		Centroid: centroid,
		Area:     math.Abs(area),
	}
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
