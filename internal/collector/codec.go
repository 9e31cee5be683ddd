package collector

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/fencewatch/fencewatch/internal/types"
)

// DecodeError marks a single alert stream message that could not be turned
// into an AlertEvent. It never affects the connection.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode alert: %s: %v", e.Reason, e.Err)
	}
	return "decode alert: " + e.Reason
}

func (e *DecodeError) Unwrap() error { return e.Err }

// wireAlert mirrors the stream payload; vehicle and geofence are pointers
// so a missing object can be told apart from an empty one.
type wireAlert struct {
	Vehicle   *types.VehicleRef  `json:"vehicle"`
	Geofence  *types.GeofenceRef `json:"geofence"`
	EventType types.EventType    `json:"event_type"`
	Timestamp json.RawMessage    `json:"timestamp"`
}

// DecodeAlert parses one stream message
func DecodeAlert(data []byte) (types.AlertEvent, error) {
	var w wireAlert
	if err := json.Unmarshal(data, &w); err != nil {
		return types.AlertEvent{}, &DecodeError{Reason: "invalid json", Err: err}
	}
	if w.Vehicle == nil {
		return types.AlertEvent{}, &DecodeError{Reason: "vehicle: required"}
	}
	if w.Geofence == nil {
		return types.AlertEvent{}, &DecodeError{Reason: "geofence: required"}
	}
	if !w.EventType.Valid() {
		return types.AlertEvent{}, &DecodeError{Reason: fmt.Sprintf("event_type: unknown value %q", w.EventType)}
	}
	ts, err := parseInstant(w.Timestamp)
	if err != nil {
		return types.AlertEvent{}, &DecodeError{Reason: "timestamp", Err: err}
	}

	return types.AlertEvent{
		Vehicle:   *w.Vehicle,
		Geofence:  *w.Geofence,
		EventType: w.EventType,
		Timestamp: ts,
	}, nil
}

// parseInstant accepts an RFC 3339 string, a numeric string, or a JSON
// number of unix seconds (milliseconds when the value is large enough to
// only make sense as such).
func parseInstant(raw json.RawMessage) (time.Time, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}, fmt.Errorf("required")
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}, err
		}
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return t, nil
		}
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			return fromUnix(n), nil
		}
		return time.Time{}, fmt.Errorf("unrecognized instant %q", s)
	}

	n, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized instant %s", raw)
	}
	return fromUnix(n), nil
}

const unixMilliThreshold = 1e12

func fromUnix(n float64) time.Time {
	if n >= unixMilliThreshold {
		return time.UnixMilli(int64(n)).UTC()
	}
	sec := int64(n)
	nsec := int64((n - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC()
}
