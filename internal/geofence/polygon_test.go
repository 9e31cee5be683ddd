package geofence

import (
	"errors"
	"math"
	"reflect"
	"testing"
)

var (
	ptA = GeoPoint{Lat: -6.2088, Lng: 106.8456}
	ptB = GeoPoint{Lat: -6.2100, Lng: 106.8456}
	ptC = GeoPoint{Lat: -6.2100, Lng: 106.8500}
	ptD = GeoPoint{Lat: -6.2088, Lng: 106.8500}
)

func draftOf(points ...GeoPoint) *Draft {
	d := &Draft{}
	for _, p := range points {
		d.AddPoint(p)
	}
	return d
}

func TestCloseThreePointsInsufficient(t *testing.T) {
	d := draftOf(ptA, ptB, ptC)

	_, err := d.Close()
	if !errors.Is(err, ErrInsufficientVertices) {
		t.Fatalf("expected ErrInsufficientVertices, got %v", err)
	}
	if d.Len() != 3 {
		t.Errorf("failed close must not mutate the draft, got %d points", d.Len())
	}
}

func TestCloseAlreadyClosedUnchanged(t *testing.T) {
	d := draftOf(ptA, ptB, ptC, ptA)

	ring, err := d.Close()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := ClosedRing{ptA, ptB, ptC, ptA}
	if !reflect.DeepEqual(ring, want) {
		t.Errorf("expected %v, got %v", want, ring)
	}
}

func TestCloseAppendsFirstPoint(t *testing.T) {
	d := draftOf(ptA, ptB, ptC, ptD)

	ring, err := d.Close()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := ClosedRing{ptA, ptB, ptC, ptD, ptA}
	if !reflect.DeepEqual(ring, want) {
		t.Errorf("expected %v, got %v", want, ring)
	}
	if d.Len() != 4 {
		t.Errorf("close must not modify the draft, got %d points", d.Len())
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	d := draftOf(ptA, ptB, ptC, ptD)
	first, err := d.Close()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	again := draftOf(first...)
	second, err := again.Close()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("closing a closed ring changed it: %v -> %v", first, second)
	}

	third, _ := d.Close()
	if !reflect.DeepEqual(first, third) {
		t.Errorf("repeated close on the same draft differs: %v vs %v", first, third)
	}
}

func TestCloseNearEqualEndpointsAppendsFirst(t *testing.T) {
	drifted := GeoPoint{Lat: ptA.Lat + 1e-12, Lng: ptA.Lng}
	d := draftOf(ptA, ptB, ptC, drifted)

	ring, err := d.Close()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ring) != 5 {
		t.Fatalf("expected 5 points, got %d", len(ring))
	}
	if ring[4] != ptA {
		t.Errorf("expected closing point %v, got %v", ptA, ring[4])
	}
}

func TestAddPointKeepsDuplicates(t *testing.T) {
	d := &Draft{}
	d.AddPoint(ptA)
	n := d.AddPoint(ptA)
	if n != 2 {
		t.Fatalf("expected 2 points, got %d", n)
	}
}

func TestCloseReturnsCopy(t *testing.T) {
	d := draftOf(ptA, ptB, ptC, ptA)
	ring, _ := d.Close()
	ring[1] = ptD
	if got := d.Points(); got[1] != ptB {
		t.Errorf("ring aliases draft storage: %v", got)
	}
}

func TestReset(t *testing.T) {
	d := draftOf(ptA, ptB)
	d.Reset()
	if d.Len() != 0 {
		t.Fatalf("expected empty draft, got %d", d.Len())
	}
	d.Reset()
	if _, err := d.Close(); !errors.Is(err, ErrInsufficientVertices) {
		t.Errorf("expected ErrInsufficientVertices after reset, got %v", err)
	}
}

func TestTrimPrefixKeepsLaterPoints(t *testing.T) {
	d := draftOf(ptA, ptB, ptC, ptA, ptD)
	if !d.TrimPrefix([]GeoPoint{ptA, ptB, ptC, ptA}) {
		t.Fatal("expected prefix to be trimmed")
	}
	if got := d.Points(); !reflect.DeepEqual(got, []GeoPoint{ptD}) {
		t.Errorf("expected [D] left, got %v", got)
	}

	d = draftOf(ptA, ptB, ptC, ptD)
	if !d.TrimPrefix(d.Points()) || d.Len() != 0 {
		t.Errorf("expected whole draft trimmed, got %d points", d.Len())
	}
}

func TestTrimPrefixMismatchLeavesDraft(t *testing.T) {
	d := draftOf(ptB, ptC)
	if d.TrimPrefix([]GeoPoint{ptA, ptB, ptC, ptA}) {
		t.Error("expected no trim for a longer prefix")
	}
	if d.TrimPrefix([]GeoPoint{ptA}) {
		t.Error("expected no trim for a different first point")
	}
	if got := d.Points(); !reflect.DeepEqual(got, []GeoPoint{ptB, ptC}) {
		t.Errorf("draft changed: %v", got)
	}
}

func TestCoordinates(t *testing.T) {
	ring := ClosedRing{ptA, ptB, ptC, ptA}
	coords := ring.Coordinates()
	if len(coords) != 4 {
		t.Fatalf("expected 4 pairs, got %d", len(coords))
	}
	if coords[1] != [2]float64{ptB.Lat, ptB.Lng} {
		t.Errorf("expected [lat lng] order, got %v", coords[1])
	}
}

func TestGeoPointValidate(t *testing.T) {
	tests := []struct {
		name    string
		p       GeoPoint
		wantErr bool
	}{
		{"valid", GeoPoint{Lat: 0, Lng: 0}, false},
		{"bounds", GeoPoint{Lat: -90, Lng: 180}, false},
		{"lat too low", GeoPoint{Lat: -91, Lng: 0}, true},
		{"lat too high", GeoPoint{Lat: 91, Lng: 0}, true},
		{"lng too low", GeoPoint{Lat: 0, Lng: -181}, true},
		{"lng too high", GeoPoint{Lat: 0, Lng: 181}, true},
		{"nan", GeoPoint{Lat: math.NaN(), Lng: 0}, true},
		{"inf", GeoPoint{Lat: 0, Lng: math.Inf(1)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.p.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
