package alerter

import (
	"fmt"
	"testing"
	"time"

	"github.com/fencewatch/fencewatch/internal/types"
	"github.com/rs/zerolog"
)

func event(vehicle string, kind types.EventType, ts time.Time) types.AlertEvent {
	return types.AlertEvent{
		Vehicle:   types.VehicleRef{ID: types.ID(vehicle), VehicleNumber: vehicle, DriverName: "Budi"},
		Geofence:  types.GeofenceRef{ID: "G1", GeofenceName: "Depot", Category: "delivery_zone"},
		EventType: kind,
		Timestamp: ts,
	}
}

func TestFeedBoundAndHead(t *testing.T) {
	f := NewFeed(DefaultFeedSize)
	base := time.Unix(1715003456, 0)

	for i := 0; i < 3*DefaultFeedSize; i++ {
		ev := event(fmt.Sprintf("V%d", i), types.EventEntry, base.Add(time.Duration(i)*time.Second))
		n := f.Record(ev)
		if n > DefaultFeedSize {
			t.Fatalf("feed length %d exceeds bound after %d records", n, i+1)
		}
		snap := f.Snapshot()
		if snap[0] != ev {
			t.Fatalf("record %d: expected newest at index 0, got %v", i, snap[0].Vehicle.VehicleNumber)
		}
	}
	if f.Len() != DefaultFeedSize {
		t.Errorf("expected %d events, got %d", DefaultFeedSize, f.Len())
	}
	last := f.Snapshot()[DefaultFeedSize-1]
	if last.Vehicle.VehicleNumber != fmt.Sprintf("V%d", 2*DefaultFeedSize) {
		t.Errorf("expected oldest surviving V%d, got %s", 2*DefaultFeedSize, last.Vehicle.VehicleNumber)
	}
}

func TestFeedOrderIsArrivalNotTimestamp(t *testing.T) {
	f := NewFeed(10)
	base := time.Unix(1715003456, 0)

	// timestamps deliberately go backwards
	arrivals := []types.AlertEvent{
		event("V1", types.EventEntry, base.Add(30*time.Second)),
		event("V2", types.EventEntry, base.Add(10*time.Second)),
		event("V3", types.EventExit, base.Add(20*time.Second)),
	}
	for _, ev := range arrivals {
		f.Record(ev)
	}

	snap := f.Snapshot()
	for i := range arrivals {
		want := arrivals[len(arrivals)-1-i]
		if snap[i] != want {
			t.Errorf("index %d: expected %s, got %s", i, want.Vehicle.VehicleNumber, snap[i].Vehicle.VehicleNumber)
		}
	}
}

func TestFeedKeepsDuplicates(t *testing.T) {
	f := NewFeed(10)
	ev := event("V1", types.EventEntry, time.Unix(1715003456, 0))
	f.Record(ev)
	f.Record(ev)
	if f.Len() != 2 {
		t.Fatalf("expected replayed event to appear twice, got %d", f.Len())
	}
}

func TestFeedSnapshotsAreIndependent(t *testing.T) {
	f := NewFeed(10)
	f.Record(event("V1", types.EventEntry, time.Unix(1, 0)))
	before := f.Snapshot()
	v1 := f.Version()

	f.Record(event("V2", types.EventExit, time.Unix(2, 0)))
	if len(before) != 1 {
		t.Errorf("old snapshot changed length to %d", len(before))
	}
	if f.Version() == v1 {
		t.Error("expected version to change on record")
	}

	before[0].Vehicle.VehicleNumber = "mutated"
	if f.Snapshot()[1].Vehicle.VehicleNumber != "V1" {
		t.Error("feed mutated through a snapshot")
	}
}

func TestFeedRecent(t *testing.T) {
	f := NewFeed(DefaultFeedSize)
	for i := 0; i < 15; i++ {
		f.Record(event(fmt.Sprintf("V%d", i), types.EventEntry, time.Unix(int64(i), 0)))
	}
	recent := f.Recent(10)
	if len(recent) != 10 {
		t.Fatalf("expected 10, got %d", len(recent))
	}
	if recent[0].Vehicle.VehicleNumber != "V14" {
		t.Errorf("expected V14 first, got %s", recent[0].Vehicle.VehicleNumber)
	}
}

type recordingSink struct {
	messages []string
	kinds    []types.EventType
	feed     *Feed
	lens     []int
}

func (s *recordingSink) Notify(message string, kind types.EventType) {
	s.messages = append(s.messages, message)
	s.kinds = append(s.kinds, kind)
	if s.feed != nil {
		s.lens = append(s.lens, s.feed.Len())
	}
}

func TestEngineEntryThenExit(t *testing.T) {
	feed := NewFeed(DefaultFeedSize)
	sink := &recordingSink{feed: feed}
	eng := NewEngine(feed, sink, nil, zerolog.Nop())

	t0 := time.Unix(1715003456, 0)
	entry := event("V1", types.EventEntry, t0)
	exit := event("V1", types.EventExit, t0.Add(10*time.Second))

	eng.HandleEvent(entry)
	eng.HandleEvent(exit)

	snap := feed.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("expected 2 events, got %d", len(snap))
	}
	if snap[0] != exit || snap[1] != entry {
		t.Errorf("expected [exit, entry], got [%s, %s]", snap[0].EventType, snap[1].EventType)
	}

	if len(sink.messages) != 2 {
		t.Fatalf("expected 2 notices, got %d", len(sink.messages))
	}
	if sink.messages[0] != "V1 entered Depot" || sink.messages[1] != "V1 exited Depot" {
		t.Errorf("unexpected notices: %v", sink.messages)
	}
	if sink.kinds[0] != types.EventEntry || sink.kinds[1] != types.EventExit {
		t.Errorf("unexpected kinds: %v", sink.kinds)
	}
	// the sink must observe the feed already updated
	if sink.lens[0] != 1 || sink.lens[1] != 2 {
		t.Errorf("sink ran before feed update: %v", sink.lens)
	}
}

func TestEngineWithoutSink(t *testing.T) {
	feed := NewFeed(5)
	eng := NewEngine(feed, nil, nil, zerolog.Nop())
	eng.HandleEvent(event("V1", types.EventEntry, time.Unix(1, 0)))
	if eng.Feed().Len() != 1 {
		t.Fatalf("expected 1 event, got %d", eng.Feed().Len())
	}
}
