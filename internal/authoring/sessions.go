package authoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fencewatch/fencewatch/internal/backend"
	"github.com/fencewatch/fencewatch/internal/geofence"
	"github.com/fencewatch/fencewatch/internal/metrics"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	DefaultCategory = "delivery_zone"

	DefaultMaxSessions = 256
	// DefaultIdleTTL drops drafts whose tab went away without deleting them
	DefaultIdleTTL = 30 * time.Minute
)

var (
	ErrSessionNotFound = errors.New("authoring: session not found")
	ErrNameRequired    = errors.New("authoring: geofence name is required")
)

// Submitter creates geofences on the backend
type Submitter interface {
	CreateGeofence(ctx context.Context, req backend.GeofenceRequest) (json.RawMessage, error)
}

// GeofenceSpec is the operator-entered metadata for a new geofence
type GeofenceSpec struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// Limits bounds the session registry. Zero values fall back to the defaults.
type Limits struct {
	MaxSessions int
	IdleTTL     time.Duration
}

// Session is one operator's polygon draft
type Session struct {
	ID        string
	CreatedAt time.Time

	lastUsed  atomic.Int64 // unix nanos
	draft     geofence.Draft
	submitMu  sync.Mutex
	submitter Submitter
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

// AddPoint validates p and appends it to the draft
func (s *Session) AddPoint(p geofence.GeoPoint) (int, error) {
	if err := p.Validate(); err != nil {
		return s.draft.Len(), err
	}
	return s.draft.AddPoint(p), nil
}

// Points returns a copy of the draft's vertices
func (s *Session) Points() []geofence.GeoPoint {
	return s.draft.Points()
}

// Close previews the closed ring without submitting it
func (s *Session) Close() (geofence.ClosedRing, error) {
	return s.draft.Close()
}

func (s *Session) Reset() {
	s.draft.Reset()
}

// Submit closes the draft and sends it to the backend. The submitted
// points are removed from the draft only when the backend accepts them.
func (s *Session) Submit(ctx context.Context, gs GeofenceSpec) (json.RawMessage, error) {
	gs.Name = strings.TrimSpace(gs.Name)
	if gs.Name == "" {
		return nil, ErrNameRequired
	}
	if gs.Category == "" {
		gs.Category = DefaultCategory
	}

	s.submitMu.Lock()
	defer s.submitMu.Unlock()

	submitted := s.draft.Points()
	ring, err := geofence.CloseRing(submitted)
	if err != nil {
		s.metrics.Submission(metrics.SubmissionInvalid)
		return nil, err
	}

	resp, err := s.submitter.CreateGeofence(ctx, backend.GeofenceRequest{
		Name:        gs.Name,
		Description: gs.Description,
		Category:    gs.Category,
		Coordinates: ring.Coordinates(),
	})
	if err != nil {
		s.metrics.Submission(metrics.SubmissionRejected)
		s.logger.Warn().
			Err(err).
			Str("session", s.ID).
			Str("name", gs.Name).
			Int("points", len(ring)).
			Msg("Geofence submission failed, draft kept")
		return nil, fmt.Errorf("submit geofence %q: %w", gs.Name, err)
	}

	// points drawn while the request was in flight stay in the draft
	if !s.draft.TrimPrefix(submitted) {
		s.logger.Debug().
			Str("session", s.ID).
			Msg("Draft reset during submission, leaving it as is")
	}
	s.metrics.Submission(metrics.SubmissionAccepted)
	s.logger.Info().
		Str("session", s.ID).
		Str("name", gs.Name).
		Str("category", gs.Category).
		Int("points", len(ring)).
		Msg("Geofence created")
	return resp, nil
}

// Sessions tracks open authoring sessions by id. Sessions idle for longer
// than IdleTTL are dropped, and the least recently used one is evicted
// when MaxSessions is reached.
type Sessions struct {
	submitter Submitter
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	limits    Limits
	now       func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessions creates an empty session registry
func NewSessions(submitter Submitter, m *metrics.Metrics, limits Limits, logger zerolog.Logger) *Sessions {
	if limits.MaxSessions <= 0 {
		limits.MaxSessions = DefaultMaxSessions
	}
	if limits.IdleTTL <= 0 {
		limits.IdleTTL = DefaultIdleTTL
	}
	return &Sessions{
		submitter: submitter,
		metrics:   m,
		logger:    logger.With().Str("component", "authoring").Logger(),
		limits:    limits,
		now:       time.Now,
		sessions:  make(map[string]*Session),
	}
}

// Create opens a new session with an empty draft
func (s *Sessions) Create() *Session {
	now := s.now()
	sess := &Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		submitter: s.submitter,
		metrics:   s.metrics,
		logger:    s.logger,
	}
	sess.lastUsed.Store(now.UnixNano())

	s.mu.Lock()
	s.sweepLocked(now)
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	return sess
}

// Get returns the session and marks it as used
func (s *Sessions) Get(id string) (*Session, error) {
	now := s.now()
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok || s.expired(sess, now) {
		return nil, ErrSessionNotFound
	}
	sess.lastUsed.Store(now.UnixNano())
	return sess, nil
}

func (s *Sessions) expired(sess *Session, now time.Time) bool {
	return now.Sub(time.Unix(0, sess.lastUsed.Load())) > s.limits.IdleTTL
}

// sweepLocked drops idle sessions, then evicts the least recently used
// until there is room for one more.
func (s *Sessions) sweepLocked(now time.Time) {
	for id, sess := range s.sessions {
		if s.expired(sess, now) {
			delete(s.sessions, id)
			s.logger.Debug().Str("session", id).Msg("Dropped idle draft session")
		}
	}
	for len(s.sessions) >= s.limits.MaxSessions {
		var oldestID string
		var oldest int64
		for id, sess := range s.sessions {
			if used := sess.lastUsed.Load(); oldestID == "" || used < oldest {
				oldestID, oldest = id, used
			}
		}
		delete(s.sessions, oldestID)
		s.logger.Debug().Str("session", oldestID).Msg("Evicted least recently used draft session")
	}
}

func (s *Sessions) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, id)
	return nil
}

// Len returns the number of open sessions
func (s *Sessions) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
