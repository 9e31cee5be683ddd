package geofence

import (
	"errors"
	"fmt"
	"math"
	"sync"
)

// MinRingPoints is the smallest closed ring: three vertices plus the
// repeated closing point.
const MinRingPoints = 4

// ErrInsufficientVertices is returned by Close when the draft cannot
// enclose an area yet. The draft is left untouched.
var ErrInsufficientVertices = errors.New("geofence: at least 3 vertices are required to close a polygon")

// GeoPoint is a WGS84 coordinate
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Validate checks that the point is finite and inside the lat/lng ranges
func (p GeoPoint) Validate() error {
	if math.IsNaN(p.Lat) || math.IsInf(p.Lat, 0) {
		return fmt.Errorf("latitude: must be a finite number")
	}
	if math.IsNaN(p.Lng) || math.IsInf(p.Lng, 0) {
		return fmt.Errorf("longitude: must be a finite number")
	}
	if p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("latitude: must be between -90 and 90")
	}
	if p.Lng < -180 || p.Lng > 180 {
		return fmt.Errorf("longitude: must be between -180 and 180")
	}
	return nil
}

// ClosedRing is a point sequence whose first and last points are
// identical and which holds at least MinRingPoints points.
type ClosedRing []GeoPoint

// Coordinates returns the ring as [lat, lng] pairs, the shape the backend
// expects in a geofence body.
func (r ClosedRing) Coordinates() [][2]float64 {
	out := make([][2]float64, len(r))
	for i, p := range r {
		out[i] = [2]float64{p.Lat, p.Lng}
	}
	return out
}

// Draft accumulates authored vertices until they are closed into a ring.
// The zero value is an empty draft ready for use.
type Draft struct {
	mu     sync.Mutex
	points []GeoPoint
}

// AddPoint appends p as drawn. Consecutive duplicates and crossing edges
// are accepted; geometry is the backend's call.
func (d *Draft) AddPoint(p GeoPoint) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.points = append(d.points, p)
	return len(d.points)
}

// Len returns the number of points drawn so far
func (d *Draft) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.points)
}

// Points returns a copy of the drawn points
func (d *Draft) Points() []GeoPoint {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]GeoPoint, len(d.points))
	copy(out, d.points)
	return out
}

// Close normalizes the draft into a ClosedRing without clearing it.
//
// Endpoints are compared by exact equality: a last point that merely
// drifted close to the first one still gets the first point appended.
func (d *Draft) Close() (ClosedRing, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return CloseRing(d.points)
}

// CloseRing closes points the way Draft.Close does. points is not modified.
func CloseRing(points []GeoPoint) (ClosedRing, error) {
	if len(points) < MinRingPoints {
		return nil, ErrInsufficientVertices
	}

	first, last := points[0], points[len(points)-1]
	ring := make(ClosedRing, len(points), len(points)+1)
	copy(ring, points)
	if first != last {
		ring = append(ring, first)
	}
	return ring, nil
}

// Reset discards every point
func (d *Draft) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.points = nil
}

// TrimPrefix removes prefix from the front of the draft and keeps any
// points drawn after it. If the draft no longer starts with prefix, it is
// left alone and TrimPrefix reports false.
func (d *Draft) TrimPrefix(prefix []GeoPoint) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(prefix) > len(d.points) {
		return false
	}
	for i, p := range prefix {
		if d.points[i] != p {
			return false
		}
	}
	rest := d.points[len(prefix):]
	if len(rest) == 0 {
		d.points = nil
		return true
	}
	d.points = append([]GeoPoint(nil), rest...)
	return true
}
