package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/fencewatch/fencewatch/internal/alerter"
	"github.com/fencewatch/fencewatch/internal/authoring"
	"github.com/fencewatch/fencewatch/internal/backend"
	"github.com/fencewatch/fencewatch/internal/collector"
	"github.com/fencewatch/fencewatch/internal/config"
	"github.com/fencewatch/fencewatch/internal/metrics"
	"github.com/fencewatch/fencewatch/internal/notifier"
	"github.com/fencewatch/fencewatch/internal/version"
	"github.com/fencewatch/fencewatch/internal/webui"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const (
	recentStatsAlerts = 10
	dashboardLogLines = 100
	statsTimeout      = 3 * time.Second
)

type streamStatus interface {
	Health() collector.Health
}

type noticeSource interface {
	Recent(now time.Time) []notifier.Notice
}

// backendAPI is the subset of backend.Client the server proxies
type backendAPI interface {
	Stats(ctx context.Context) (backend.Stats, error)
	ListGeofences(ctx context.Context, category string) (json.RawMessage, error)
	ListVehicles(ctx context.Context) (json.RawMessage, error)
	CreateVehicle(ctx context.Context, body json.RawMessage) (json.RawMessage, error)
	VehicleLocation(ctx context.Context, vehicleID string) (json.RawMessage, error)
	UpdateLocation(ctx context.Context, body json.RawMessage) (json.RawMessage, error)
	ListAlertRules(ctx context.Context, filter url.Values) (json.RawMessage, error)
	ConfigureAlert(ctx context.Context, body json.RawMessage) (json.RawMessage, error)
	ViolationHistory(ctx context.Context, filter url.Values) (json.RawMessage, error)
}

// Deps are the components the server reads from
type Deps struct {
	Feed       *alerter.Feed
	Stream     streamStatus
	Notices    noticeSource
	Sessions   *authoring.Sessions
	Backend    backendAPI
	Metrics    *metrics.Metrics
	LogBuffer  *webui.LogBuffer
	Config     *config.Config
	ConfigPath string
}

// Server provides HTTP API endpoints and web UI
type Server struct {
	deps      Deps
	logger    zerolog.Logger
	port      int
	startTime time.Time
	version   version.Info
	router    *gin.Engine
	http      *http.Server
}

// NewServer creates a new API server
func NewServer(deps Deps, logger zerolog.Logger, port int) *Server {
	s := &Server{
		deps:      deps,
		logger:    logger.With().Str("component", "api").Logger(),
		port:      port,
		startTime: time.Now(),
		version:   version.Get(),
	}
	s.router = s.buildRouter()
	return s
}

// SetVersion overrides the reported build metadata
func (s *Server) SetVersion(info version.Info) {
	s.version = info
}

// Router exposes the handler, mainly for tests
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) buildRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())
	r.SetHTMLTemplate(webui.Templates)

	r.GET("/health", s.handleHealth)
	r.GET("/status", s.handleStatus)
	if s.deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(s.deps.Metrics.Handler()))
	}
	r.GET("/", s.handleWebUI)

	api := r.Group("/api")
	api.GET("/alerts", s.handleAlerts)
	api.GET("/notices", s.handleNotices)
	api.GET("/logs", s.handleLogs)
	api.GET("/stats", s.handleStats)

	if s.deps.Sessions != nil {
		newDraftHandler(s.deps.Sessions).Register(api)
	}
	if s.deps.Backend != nil {
		newPassthroughHandler(s.deps.Backend).Register(api)
	}
	return r
}

// Start serves HTTP until Shutdown is called
func (s *Server) Start() error {
	addr := ":" + strconv.Itoa(s.port)
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info().
		Str("address", addr).
		Msg("Starting API server with Web UI")

	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	}
}

func (s *Server) streamHealth() collector.Health {
	if s.deps.Stream == nil {
		return collector.Health{State: collector.StateIdle.String()}
	}
	return s.deps.Stream.Health()
}

// handleHealth reports liveness; a stream that is not open degrades it
func (s *Server) handleHealth(c *gin.Context) {
	stream := s.streamHealth()
	status := "healthy"
	if !stream.Connected {
		status = "degraded"
	}
	c.JSON(http.StatusOK, gin.H{
		"status": status,
		"stream": stream.State,
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleStatus(c *gin.Context) {
	resp := gin.H{
		"time":       time.Now().UTC().Format(time.RFC3339),
		"uptime":     formatDuration(time.Since(s.startTime)),
		"version":    s.version.Version,
		"commit":     s.version.Commit,
		"build_date": s.version.BuildDate,
		"stream":     s.streamHealth(),
	}
	if s.deps.Feed != nil {
		resp["alerts"] = gin.H{"count": s.deps.Feed.Len(), "capacity": s.deps.Feed.Cap()}
	}
	if s.deps.Sessions != nil {
		resp["drafts"] = s.deps.Sessions.Len()
	}
	c.JSON(http.StatusOK, resp)
}

// handleAlerts returns the feed newest first; ?limit=n trims it
func (s *Server) handleAlerts(c *gin.Context) {
	if s.deps.Feed == nil {
		c.JSON(http.StatusOK, gin.H{"alerts": []any{}, "count": 0})
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	alerts := s.deps.Feed.Recent(limit)
	c.JSON(http.StatusOK, gin.H{
		"alerts":   alerts,
		"count":    len(alerts),
		"capacity": s.deps.Feed.Cap(),
		"version":  s.deps.Feed.Version(),
	})
}

func (s *Server) handleNotices(c *gin.Context) {
	notices := []notifier.Notice{}
	if s.deps.Notices != nil {
		notices = s.deps.Notices.Recent(time.Now())
	}
	c.JSON(http.StatusOK, gin.H{"notices": notices})
}

func (s *Server) handleLogs(c *gin.Context) {
	entries := []webui.LogEntry{}
	if s.deps.LogBuffer != nil {
		entries = s.deps.LogBuffer.GetEntries()
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries, "count": len(entries)})
}

// handleStats returns the backend counters plus the latest feed entries
func (s *Server) handleStats(c *gin.Context) {
	if s.deps.Backend == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "backend not configured"})
		return
	}
	stats, err := s.deps.Backend.Stats(c.Request.Context())
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to fetch dashboard stats")
		writeBackendError(c, err)
		return
	}
	var recent any = []any{}
	if s.deps.Feed != nil {
		recent = s.deps.Feed.Recent(recentStatsAlerts)
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats, "recent_alerts": recent})
}

func (s *Server) handleWebUI(c *gin.Context) {
	data := webui.DashboardData{
		Version:   s.version.Version,
		Commit:    s.version.Commit,
		BuildDate: s.version.BuildDate,
		Uptime:    formatDuration(time.Since(s.startTime)),
		Stream:    s.streamHealth(),
	}
	if s.deps.Feed != nil {
		data.Alerts = s.deps.Feed.Snapshot()
		data.FeedCap = s.deps.Feed.Cap()
	}
	if s.deps.Notices != nil {
		data.Notices = s.deps.Notices.Recent(time.Now())
	}
	if s.deps.LogBuffer != nil {
		data.Logs = s.deps.LogBuffer.GetRecentEntries(dashboardLogLines)
	}
	if s.deps.Config != nil {
		data.StreamURL = s.deps.Config.Stream.URL
		data.BackendURL = s.deps.Config.Backend.URL
		data.ConfigPath = s.deps.ConfigPath
	}
	if s.deps.Backend != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), statsTimeout)
		stats, err := s.deps.Backend.Stats(ctx)
		cancel()
		if err != nil {
			data.StatsErr = err.Error()
		} else {
			data.Stats = &stats
		}
	} else {
		data.StatsErr = "backend not configured"
	}

	c.HTML(http.StatusOK, "base", data)
}

// writeBackendError maps backend failures onto the response: backend
// 4xx answers are relayed, everything else is a bad gateway.
func writeBackendError(c *gin.Context, err error) {
	var se *backend.SubmissionError
	if errors.As(err, &se) {
		status := http.StatusBadGateway
		if se.Status >= 400 && se.Status < 500 {
			status = se.Status
		}
		msg := se.Message
		if msg == "" {
			msg = fmt.Sprintf("backend returned %d", se.Status)
		}
		c.JSON(status, gin.H{"error": msg, "backend_status": se.Status})
		return
	}
	c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return d.Round(time.Second).String()
	}
	if d < 24*time.Hour {
		return d.Round(time.Minute).String()
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	if hours == 0 {
		return fmt.Sprintf("%dd", days)
	}
	return fmt.Sprintf("%dd %dh", days, hours)
}
