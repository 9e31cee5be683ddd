package webui

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/fencewatch/fencewatch/internal/ring"
)

// LogEntry represents a single log entry
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Component string    `json:"component,omitempty"`
	Message   string    `json:"message"`
	Raw       string    `json:"raw"`
}

// LogBuffer keeps the most recent log lines for the dashboard. It is an
// io.Writer so it can sit behind zerolog next to stdout.
type LogBuffer struct {
	mu      sync.RWMutex
	entries *ring.Ring[LogEntry]
}

// NewLogBuffer creates a new log buffer with the specified capacity
func NewLogBuffer(size int) *LogBuffer {
	return &LogBuffer{entries: ring.New[LogEntry](size)}
}

// Write implements io.Writer. zerolog calls it once per event.
func (lb *LogBuffer) Write(p []byte) (int, error) {
	entry := parseLine(p)

	lb.mu.Lock()
	lb.entries.Push(entry)
	lb.mu.Unlock()

	return len(p), nil
}

// GetEntries returns all log entries in chronological order
func (lb *LogBuffer) GetEntries() []LogEntry {
	lb.mu.RLock()
	defer lb.mu.RUnlock()
	return lb.entries.Oldest()
}

// GetRecentEntries returns the most recent n entries, oldest first
func (lb *LogBuffer) GetRecentEntries(n int) []LogEntry {
	entries := lb.GetEntries()
	if n <= 0 || len(entries) <= n {
		return entries
	}
	return entries[len(entries)-n:]
}

// Clear clears all log entries
func (lb *LogBuffer) Clear() {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	lb.entries.Clear()
}

type zerologLine struct {
	Level     string          `json:"level"`
	Message   string          `json:"message"`
	Component string          `json:"component"`
	Time      json.RawMessage `json:"time"`
}

// parseLine reads a zerolog JSON line; anything else is kept verbatim at info
func parseLine(p []byte) LogEntry {
	raw := strings.TrimRight(string(p), "\n")
	entry := LogEntry{
		Timestamp: time.Now(),
		Level:     "info",
		Message:   raw,
		Raw:       raw,
	}

	var line zerologLine
	if err := json.Unmarshal(p, &line); err != nil {
		return entry
	}
	if line.Level != "" {
		entry.Level = line.Level
	}
	if line.Message != "" {
		entry.Message = line.Message
	}
	entry.Component = line.Component
	if ts, ok := parseTime(line.Time); ok {
		entry.Timestamp = ts
	}
	return entry
}

// parseTime handles both zerolog time formats: RFC 3339 strings and unix seconds
func parseTime(raw json.RawMessage) (time.Time, bool) {
	if len(raw) == 0 {
		return time.Time{}, false
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		ts, err := time.Parse(time.RFC3339Nano, s)
		return ts, err == nil
	}
	var sec int64
	if json.Unmarshal(raw, &sec) == nil {
		return time.Unix(sec, 0), true
	}
	return time.Time{}, false
}
