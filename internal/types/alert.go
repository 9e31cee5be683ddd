package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// EventType is the direction of a geofence crossing
type EventType string

const (
	EventEntry EventType = "entry"
	EventExit  EventType = "exit"
)

// Valid reports whether t is one of the known crossing directions
func (t EventType) Valid() bool {
	return t == EventEntry || t == EventExit
}

// Verb returns the past-tense verb used in operator notices
func (t EventType) Verb() string {
	if t == EventEntry {
		return "entered"
	}
	return "exited"
}

// ID is a backend identifier. The backend is free to send it as a JSON
// string or number; it is always carried as a string.
type ID string

// UnmarshalJSON accepts both "42" and 42
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	if _, err := strconv.ParseFloat(string(data), 64); err != nil {
		return fmt.Errorf("id: expected string or number, got %s", data)
	}
	*id = ID(data)
	return nil
}

// VehicleRef identifies the vehicle involved in a crossing
type VehicleRef struct {
	ID            ID     `json:"id"`
	VehicleNumber string `json:"vehicle_number"`
	DriverName    string `json:"driver_name"`
}

// GeofenceRef identifies the geofence that was crossed
type GeofenceRef struct {
	ID           ID     `json:"id"`
	GeofenceName string `json:"geofence_name"`
	Category     string `json:"category"`
}

// AlertEvent is a single crossing pushed by the alert stream. Values are
// passed by copy and never modified after decoding.
type AlertEvent struct {
	Vehicle   VehicleRef  `json:"vehicle"`
	Geofence  GeofenceRef `json:"geofence"`
	EventType EventType   `json:"event_type"`
	Timestamp time.Time   `json:"timestamp"`
}
