package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/fencewatch/fencewatch/internal/ring"
	"github.com/fencewatch/fencewatch/internal/types"
	"github.com/rs/zerolog"
)

const (
	DefaultCapacity = 20
	// DefaultTTL is how long a notice stays on screen
	DefaultTTL = 5 * time.Second
	// DefaultQueueSize bounds notices waiting for Apprise; extras are dropped
	DefaultQueueSize = 64
)

// Notice is one transient operator notification
type Notice struct {
	Message   string          `json:"message"`
	Kind      types.EventType `json:"kind"`
	Level     string          `json:"level"`
	CreatedAt time.Time       `json:"created_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// Config controls where notices go besides the dashboard
type Config struct {
	// AppriseURL is the Apprise API base, e.g. http://apprise:8000
	AppriseURL string
	// AppriseTag selects the configured Apprise targets; "all" when empty
	AppriseTag string
	Capacity   int
	TTL        time.Duration
	QueueSize  int
}

// Notifier shows crossing notices on the dashboard and forwards them to
// Apprise when configured.
type Notifier struct {
	logger zerolog.Logger
	client *http.Client
	cfg    Config
	now    func() time.Time

	mu      sync.Mutex
	notices *ring.Ring[Notice]
	closed  bool

	// queue feeds the single Apprise sender, which delivers in order
	queue     chan Notice
	done      chan struct{}
	closeOnce sync.Once
}

// NewNotifier creates a new notifier
func NewNotifier(cfg Config, logger zerolog.Logger) *Notifier {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.AppriseTag == "" {
		cfg.AppriseTag = "all"
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	cfg.AppriseURL = strings.TrimRight(cfg.AppriseURL, "/")

	n := &Notifier{
		logger: logger.With().Str("component", "notifier").Logger(),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		cfg:     cfg,
		now:     time.Now,
		notices: ring.New[Notice](cfg.Capacity),
		done:    make(chan struct{}),
	}
	if cfg.AppriseURL == "" {
		close(n.done)
		return n
	}
	n.queue = make(chan Notice, cfg.QueueSize)
	go n.deliver()
	return n
}

// Notify records a notice and queues it for Apprise. It never blocks on
// the network.
func (n *Notifier) Notify(message string, kind types.EventType) {
	now := n.now()
	notice := Notice{
		Message:   message,
		Kind:      kind,
		Level:     levelFor(kind),
		CreatedAt: now,
		ExpiresAt: now.Add(n.cfg.TTL),
	}

	n.logger.Info().
		Str("kind", string(kind)).
		Str("level", notice.Level).
		Msg(message)

	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices.Push(notice)
	if n.queue == nil || n.closed {
		return
	}
	select {
	case n.queue <- notice:
	default:
		n.logger.Warn().
			Str("kind", string(kind)).
			Int("queue_size", cap(n.queue)).
			Msg("Apprise queue full, dropping notification")
	}
}

// deliver sends queued notices to Apprise one at a time
func (n *Notifier) deliver() {
	defer close(n.done)
	for notice := range n.queue {
		ctx, cancel := context.WithTimeout(context.Background(), n.client.Timeout)
		err := n.sendToApprise(ctx, notice)
		cancel()
		if err != nil {
			n.logger.Error().
				Err(err).
				Msg("Failed to send notification")
			continue
		}
		n.logger.Debug().Msg("Notification sent")
	}
}

// Recent returns the notices still visible at now, newest first
func (n *Notifier) Recent(now time.Time) []Notice {
	n.mu.Lock()
	all := n.notices.Newest(0)
	n.mu.Unlock()

	visible := all[:0]
	for _, notice := range all {
		if now.Before(notice.ExpiresAt) {
			visible = append(visible, notice)
		}
	}
	return visible
}

// Close stops accepting Apprise deliveries and waits for the queued ones
// to finish. Notices are still recorded for the dashboard afterwards.
func (n *Notifier) Close() {
	n.closeOnce.Do(func() {
		n.mu.Lock()
		n.closed = true
		if n.queue != nil {
			close(n.queue)
		}
		n.mu.Unlock()
	})
	<-n.done
}

// entries are informational, exits are warnings
func levelFor(kind types.EventType) string {
	if kind == types.EventExit {
		return "warning"
	}
	return "info"
}

// sendToApprise posts to the Apprise API stateful notify endpoint
func (n *Notifier) sendToApprise(ctx context.Context, notice Notice) error {
	payload := map[string]string{
		"title":  fmt.Sprintf("Fencewatch: vehicle %s", notice.Kind.Verb()),
		"body":   notice.Message,
		"type":   notice.Level,
		"tag":    n.cfg.AppriseTag,
		"format": "text",
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.AppriseURL+"/notify", bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("apprise API error: %d - %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
