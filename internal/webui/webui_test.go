package webui

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/fencewatch/fencewatch/internal/backend"
	"github.com/fencewatch/fencewatch/internal/collector"
	"github.com/fencewatch/fencewatch/internal/types"
	"github.com/rs/zerolog"
)

func TestLogBufferParsesZerolog(t *testing.T) {
	lb := NewLogBuffer(10)
	logger := zerolog.New(lb).With().Timestamp().Str("component", "collector").Logger()

	logger.Warn().Str("url", "ws://x").Msg("Alert stream disconnected, will reconnect")
	_, _ = lb.Write([]byte("plain line\n"))

	entries := lb.GetEntries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Level != "warn" || entries[0].Component != "collector" {
		t.Errorf("unexpected entry %+v", entries[0])
	}
	if entries[0].Message != "Alert stream disconnected, will reconnect" {
		t.Errorf("unexpected message %q", entries[0].Message)
	}
	if entries[1].Level != "info" || entries[1].Message != "plain line" {
		t.Errorf("unexpected plain entry %+v", entries[1])
	}
}

func TestLogBufferTimestampFormats(t *testing.T) {
	lb := NewLogBuffer(4)
	fmt.Fprintln(lb, `{"level":"info","time":"2024-05-01T10:00:00Z","message":"rfc"}`)
	fmt.Fprintln(lb, `{"level":"info","time":1714557600,"message":"unix"}`)

	want := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	entries := lb.GetEntries()
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	for _, e := range entries {
		if !e.Timestamp.Equal(want) {
			t.Errorf("%s: timestamp = %v, want %v", e.Message, e.Timestamp, want)
		}
	}
}

func TestLogBufferBounded(t *testing.T) {
	lb := NewLogBuffer(3)
	for i := 0; i < 5; i++ {
		_, _ = fmt.Fprintf(lb, `{"level":"info","message":"line %d"}`+"\n", i)
	}
	entries := lb.GetEntries()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].Message != "line 2" || entries[2].Message != "line 4" {
		t.Errorf("unexpected window: %q .. %q", entries[0].Message, entries[2].Message)
	}

	recent := lb.GetRecentEntries(2)
	if len(recent) != 2 || recent[1].Message != "line 4" {
		t.Errorf("unexpected recent entries %+v", recent)
	}

	lb.Clear()
	if len(lb.GetEntries()) != 0 {
		t.Error("expected empty buffer after clear")
	}
}

func TestDashboardRenders(t *testing.T) {
	data := DashboardData{
		Version: "1.0.0",
		Uptime:  "5m",
		Stream:  collector.Health{State: "open", Connected: true},
		Stats:   &backend.Stats{Geofences: 4, Vehicles: 7},
		Alerts: []types.AlertEvent{{
			Vehicle:   types.VehicleRef{ID: "1", VehicleNumber: "B1234XYZ", DriverName: "Budi"},
			Geofence:  types.GeofenceRef{ID: "g", GeofenceName: "<Depot>"},
			EventType: types.EventEntry,
			Timestamp: time.Unix(1715003456, 0),
		}},
		FeedCap: 50,
	}

	var buf bytes.Buffer
	if err := Templates.ExecuteTemplate(&buf, "base", data); err != nil {
		t.Fatalf("render: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"B1234XYZ", "&lt;Depot&gt;", "Live alerts (1/50)", `class="event entry"`, "pagehide"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q", want)
		}
	}
}

func TestDashboardRendersWithoutBackend(t *testing.T) {
	var buf bytes.Buffer
	data := DashboardData{Stream: collector.Health{State: "reconnecting"}, StatsErr: "connection refused"}
	if err := Templates.ExecuteTemplate(&buf, "base", data); err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(buf.String(), "No alerts yet") || !strings.Contains(buf.String(), "connection refused") {
		t.Error("expected empty feed and backend error to render")
	}
}
