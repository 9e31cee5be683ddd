package collector

import (
	"errors"
	"testing"
	"time"

	"github.com/fencewatch/fencewatch/internal/types"
)

const validAlert = `{
	"vehicle": {"id": 7, "vehicle_number": "B1234XYZ", "driver_name": "Budi"},
	"geofence": {"id": "g-1", "geofence_name": "Depot", "category": "restricted_zone"},
	"event_type": "entry",
	"timestamp": "2024-05-06T13:50:56Z"
}`

func TestDecodeAlert_Success(t *testing.T) {
	ev, err := DecodeAlert([]byte(validAlert))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Vehicle.ID != "7" {
		t.Errorf("expected vehicle id 7, got %s", ev.Vehicle.ID)
	}
	if ev.Vehicle.VehicleNumber != "B1234XYZ" {
		t.Errorf("expected B1234XYZ, got %s", ev.Vehicle.VehicleNumber)
	}
	if ev.Geofence.GeofenceName != "Depot" {
		t.Errorf("expected Depot, got %s", ev.Geofence.GeofenceName)
	}
	if ev.EventType != types.EventEntry {
		t.Errorf("expected entry, got %s", ev.EventType)
	}
	want := time.Date(2024, 5, 6, 13, 50, 56, 0, time.UTC)
	if !ev.Timestamp.Equal(want) {
		t.Errorf("expected %v, got %v", want, ev.Timestamp)
	}
}

func TestDecodeAlert_Timestamps(t *testing.T) {
	tests := []struct {
		name string
		ts   string
		want time.Time
	}{
		{"rfc3339 offset", `"2024-05-06T20:50:56+07:00"`, time.Date(2024, 5, 6, 13, 50, 56, 0, time.UTC)},
		{"unix seconds", `1715003456`, time.Unix(1715003456, 0)},
		{"unix millis", `1715003456000`, time.Unix(1715003456, 0)},
		{"numeric string", `"1715003456"`, time.Unix(1715003456, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := `{"vehicle":{"id":"v"},"geofence":{"id":"g"},"event_type":"exit","timestamp":` + tt.ts + `}`
			ev, err := DecodeAlert([]byte(payload))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !ev.Timestamp.Equal(tt.want) {
				t.Errorf("expected %v, got %v", tt.want, ev.Timestamp)
			}
		})
	}
}

func TestDecodeAlert_Errors(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"not json", `invalid`},
		{"array", `[]`},
		{"missing vehicle", `{"geofence":{"id":"g"},"event_type":"entry","timestamp":1}`},
		{"missing geofence", `{"vehicle":{"id":"v"},"event_type":"entry","timestamp":1}`},
		{"unknown event type", `{"vehicle":{"id":"v"},"geofence":{"id":"g"},"event_type":"hover","timestamp":1}`},
		{"missing timestamp", `{"vehicle":{"id":"v"},"geofence":{"id":"g"},"event_type":"entry"}`},
		{"bad timestamp", `{"vehicle":{"id":"v"},"geofence":{"id":"g"},"event_type":"entry","timestamp":"yesterday"}`},
		{"bad id", `{"vehicle":{"id":true},"geofence":{"id":"g"},"event_type":"entry","timestamp":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeAlert([]byte(tt.payload))
			var de *DecodeError
			if !errors.As(err, &de) {
				t.Fatalf("expected *DecodeError, got %v", err)
			}
		})
	}
}
