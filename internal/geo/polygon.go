// Package geo holds the containment geometry used for zone evaluation. It is
// deliberately free of any other package in this module so it can be tested
// and reused on raw coordinate slices.
package geo

import (
	"fmt"
	"math"
)

// PointInRing reports whether the point (lat, lng) lies inside the closed
// ring. Vertices are [longitude, latitude] pairs with the first vertex
// repeated as the last. Points exactly on an edge or vertex count as inside,
// so telemetry landing on a boundary does not flap between sides.
func PointInRing(lat, lng float64, ring [][2]float64) bool {
	n := len(ring)
	if n < 4 {
		return false
	}

	inside := false
	j := n - 1
	for i := 0; i < n; i++ {
		xi, yi := ring[i][0], ring[i][1]
		xj, yj := ring[j][0], ring[j][1]

		if onSegment(lat, lng, xi, yi, xj, yj) {
			return true
		}

		if (yi > lat) != (yj > lat) &&
			lng < (xj-xi)*(lat-yi)/(yj-yi)+xi {
			inside = !inside
		}
		j = i
	}
	return inside
}

// onSegment reports whether (lng, lat) lies on the segment from (x1, y1) to
// (x2, y2), within a small tolerance for float noise.
func onSegment(lat, lng, x1, y1, x2, y2 float64) bool {
	const eps = 1e-12

	cross := (x2-x1)*(lat-y1) - (y2-y1)*(lng-x1)
	if math.Abs(cross) > eps {
		return false
	}
	if lng < math.Min(x1, x2)-eps || lng > math.Max(x1, x2)+eps {
		return false
	}
	if lat < math.Min(y1, y2)-eps || lat > math.Max(y1, y2)+eps {
		return false
	}
	return true
}

// ValidateRing checks the structural invariants for a zone boundary: closed,
// at least 3 distinct vertices, all coordinates finite and in range.
func ValidateRing(ring [][2]float64) error {
	if len(ring) < 4 {
		return fmt.Errorf("ring has %d vertices, need at least 3 plus closure", len(ring))
	}
	if ring[0] != ring[len(ring)-1] {
		return fmt.Errorf("ring is not closed: first vertex %v != last vertex %v", ring[0], ring[len(ring)-1])
	}
	distinct := make(map[[2]float64]struct{}, len(ring)-1)
	for _, v := range ring[:len(ring)-1] {
		lng, lat := v[0], v[1]
		if math.IsNaN(lng) || math.IsInf(lng, 0) || lng < -180 || lng > 180 {
			return fmt.Errorf("vertex longitude %v out of range", lng)
		}
		if math.IsNaN(lat) || math.IsInf(lat, 0) || lat < -90 || lat > 90 {
			return fmt.Errorf("vertex latitude %v out of range", lat)
		}
		distinct[v] = struct{}{}
	}
	if len(distinct) < 3 {
		return fmt.Errorf("ring has only %d distinct vertices, need at least 3", len(distinct))
	}
	return nil
}
