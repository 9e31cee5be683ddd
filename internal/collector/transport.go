package collector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/fencewatch/fencewatch/internal/metrics"
	"github.com/fencewatch/fencewatch/internal/types"
	"github.com/rs/zerolog"
)

const (
	// DefaultURL is the backend's alert stream endpoint
	DefaultURL            = "ws://localhost:8080/ws/alerts"
	DefaultReconnectDelay = 3 * time.Second
	defaultDialTimeout    = 10 * time.Second
)

// ErrAlreadySubscribed is returned when a second consumer tries to
// subscribe to a transport that already has one.
var ErrAlreadySubscribed = errors.New("collector: transport already has a subscriber")

// State is the connection state of the alert stream
type State int

const (
	// StateIdle means nobody is subscribed, or retries were exhausted
	StateIdle State = iota
	StateConnecting
	StateOpen
	// StateClosed means the connection ended and a retry is pending
	StateClosed
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateReconnecting:
		return "reconnecting"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Handler receives every decoded alert, in arrival order. Unsubscribe
// waits for a running Handler to return, so a Handler must not
// unsubscribe or Close the transport itself.
type Handler func(types.AlertEvent)

// Conn is one live alert stream connection
type Conn interface {
	// Receive blocks until the next message arrives or the connection ends
	Receive() ([]byte, error)
	Close() error
}

// Dialer opens alert stream connections
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// Timer is a pending scheduled call
type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type wallClock struct{}

func (wallClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Options configures a Transport. Zero values fall back to the defaults.
type Options struct {
	URL            string
	Origin         string
	ReconnectDelay time.Duration
	// MaxRetries bounds consecutive failed attempts; 0 retries forever
	MaxRetries  int
	DialTimeout time.Duration

	Dialer    Dialer
	Scheduler Scheduler
	Metrics   *metrics.Metrics

	// OnStateChange is called on every transition while the transport's
	// lock is held; it must not call back into the transport.
	OnStateChange func(State)
}

// Health is a point-in-time view of the stream for the status API
type Health struct {
	State          string    `json:"state"`
	Connected      bool      `json:"connected"`
	ConnectedSince time.Time `json:"connected_since"`
	LastMessage    time.Time `json:"last_message"`
	LastError      string    `json:"last_error,omitempty"`
	ReconnectCount int       `json:"reconnect_count"`
	MessageCount   int64     `json:"message_count"`
	DecodeErrors   int64     `json:"decode_errors"`
}

// Transport keeps a single logical connection to the alert stream and
// delivers decoded alerts to its one subscriber, reconnecting after a
// fixed delay whenever the connection fails or closes.
type Transport struct {
	url           string
	dialer        Dialer
	scheduler     Scheduler
	backoff       backoff.BackOff
	maxRetries    int
	metrics       *metrics.Metrics
	onStateChange func(State)
	logger        zerolog.Logger

	// deliverMu is held across the generation check and the handler
	// call, so teardown can wait out an in-flight delivery.
	deliverMu sync.Mutex

	mu       sync.Mutex
	state    State
	handler  Handler
	gen      uint64 // bumped on subscribe and teardown; stale work checks it
	ctx      context.Context
	cancel   context.CancelFunc
	conn     Conn
	retry    Timer
	retrySeq uint64
	failures int
	health   Health
}

// NewTransport creates an idle transport. Nothing is dialed until Subscribe.
func NewTransport(opts Options, logger zerolog.Logger) *Transport {
	if opts.URL == "" {
		opts.URL = DefaultURL
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = defaultDialTimeout
	}
	if opts.Dialer == nil {
		opts.Dialer = &WebsocketDialer{Origin: opts.Origin, Timeout: opts.DialTimeout}
	}
	if opts.Scheduler == nil {
		opts.Scheduler = wallClock{}
	}

	return &Transport{
		url:           opts.URL,
		dialer:        opts.Dialer,
		scheduler:     opts.Scheduler,
		backoff:       backoff.NewConstantBackOff(opts.ReconnectDelay),
		maxRetries:    opts.MaxRetries,
		metrics:       opts.Metrics,
		onStateChange: opts.OnStateChange,
		logger:        logger.With().Str("component", "collector").Str("url", opts.URL).Logger(),
		state:         StateIdle,
	}
}

// Subscribe registers h as the only consumer and starts connecting. The
// returned function tears the subscription down; it is safe to call more
// than once and never triggers a reconnect.
func (t *Transport) Subscribe(h Handler) (func(), error) {
	if h == nil {
		return nil, errors.New("collector: nil handler")
	}

	t.mu.Lock()
	if t.handler != nil {
		t.mu.Unlock()
		return nil, ErrAlreadySubscribed
	}
	t.gen++
	gen := t.gen
	t.handler = h
	t.failures = 0
	t.backoff.Reset()
	t.ctx, t.cancel = context.WithCancel(context.Background())
	t.connectLocked(gen)
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { t.teardown(gen) })
	}, nil
}

// Close tears down the current subscription, if any
func (t *Transport) Close() {
	t.mu.Lock()
	if t.handler == nil {
		t.mu.Unlock()
		return
	}
	gen := t.gen
	t.mu.Unlock()
	t.teardown(gen)
}

// State returns the current connection state
func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Health returns the current health snapshot
func (t *Transport) Health() Health {
	t.mu.Lock()
	defer t.mu.Unlock()
	h := t.health
	h.State = t.state.String()
	return h
}

func (t *Transport) connectLocked(gen uint64) {
	t.setStateLocked(StateConnecting)
	go t.run(t.ctx, gen)
}

// run owns one connection attempt and, if it succeeds, the reader loop
// for that connection.
func (t *Transport) run(ctx context.Context, gen uint64) {
	t.logger.Info().Msg("Connecting to alert stream")

	conn, err := t.dialer.Dial(ctx, t.url)

	t.mu.Lock()
	if gen != t.gen {
		t.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	if err != nil {
		t.failLocked(gen, fmt.Errorf("dial: %w", err))
		t.mu.Unlock()
		return
	}
	t.stopRetryLocked()
	t.conn = conn
	t.failures = 0
	t.backoff.Reset()
	t.health.Connected = true
	t.health.ConnectedSince = time.Now()
	t.health.LastError = ""
	t.setStateLocked(StateOpen)
	t.mu.Unlock()

	t.metrics.StreamConnected()
	t.logger.Info().Msg("Alert stream connected")

	for {
		data, err := conn.Receive()
		if err != nil {
			t.mu.Lock()
			if gen == t.gen && t.conn == conn {
				t.conn = nil
				_ = conn.Close()
				t.failLocked(gen, fmt.Errorf("receive: %w", err))
			}
			t.mu.Unlock()
			return
		}
		t.dispatch(gen, data)
	}
}

// dispatch decodes one message and hands it to the subscriber. A message
// that fails to decode is dropped; the connection stays open.
func (t *Transport) dispatch(gen uint64, data []byte) {
	ev, err := DecodeAlert(data)

	t.deliverMu.Lock()
	defer t.deliverMu.Unlock()

	t.mu.Lock()
	if gen != t.gen {
		t.mu.Unlock()
		return
	}
	h := t.handler
	if err != nil {
		t.health.DecodeErrors++
		t.mu.Unlock()
		t.metrics.DecodeError()
		t.logger.Warn().
			Err(err).
			Int("bytes", len(data)).
			Msg("Dropping malformed alert message")
		return
	}
	t.health.MessageCount++
	t.health.LastMessage = time.Now()
	t.mu.Unlock()

	h(ev)
}

// failLocked records a failed dial or a lost connection and arms the retry
func (t *Transport) failLocked(gen uint64, err error) {
	t.failures++
	t.health.Connected = false
	t.health.LastError = err.Error()
	t.metrics.StreamDisconnected()
	t.setStateLocked(StateClosed)

	if t.maxRetries > 0 && t.failures > t.maxRetries {
		t.logger.Error().
			Err(err).
			Int("attempts", t.failures).
			Msg("Alert stream retries exhausted, giving up")
		t.setStateLocked(StateIdle)
		return
	}

	if t.retry != nil {
		return
	}
	delay := t.backoff.NextBackOff()
	t.health.ReconnectCount++
	t.retrySeq++
	seq := t.retrySeq

	t.logger.Warn().
		Err(err).
		Dur("retry_in", delay).
		Int("attempt", t.failures).
		Msg("Alert stream disconnected, will reconnect")

	t.retry = t.scheduler.AfterFunc(delay, func() { t.fireRetry(gen, seq) })
}

func (t *Transport) fireRetry(gen, seq uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.gen || seq != t.retrySeq || t.retry == nil {
		return
	}
	t.retry = nil
	t.setStateLocked(StateReconnecting)
	t.connectLocked(gen)
}

func (t *Transport) stopRetryLocked() {
	if t.retry != nil {
		t.retry.Stop()
		t.retry = nil
	}
	t.retrySeq++
}

// teardown ends subscription gen. Bumping the generation turns any
// in-flight dial, reader or timer for it into a no-op.
func (t *Transport) teardown(gen uint64) {
	t.mu.Lock()
	if gen != t.gen || t.handler == nil {
		t.mu.Unlock()
		return
	}
	t.gen++
	t.stopRetryLocked()
	conn := t.conn
	t.conn = nil
	cancel := t.cancel
	t.cancel = nil
	t.handler = nil
	t.health.Connected = false
	t.setStateLocked(StateIdle)
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			t.logger.Debug().Err(err).Msg("Error closing alert stream")
		}
	}

	// Later deliveries see the new generation; wait for one already past the check.
	t.deliverMu.Lock()
	t.deliverMu.Unlock()

	t.logger.Info().Msg("Alert stream subscription closed")
}

func (t *Transport) setStateLocked(s State) {
	if t.state == s {
		return
	}
	t.state = s
	t.metrics.StreamState(int(s))
	if t.onStateChange != nil {
		t.onStateChange(s)
	}
}
