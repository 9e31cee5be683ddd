package api

import (
	"errors"
	"net/http"

	"github.com/fencewatch/fencewatch/internal/authoring"
	"github.com/fencewatch/fencewatch/internal/geofence"
	"github.com/gin-gonic/gin"
)

type draftResponse struct {
	ID     string              `json:"id"`
	Points []geofence.GeoPoint `json:"points"`
}

type pointRequest struct {
	Lat *float64 `json:"lat" binding:"required"`
	Lng *float64 `json:"lng" binding:"required"`
}

// DraftHandler exposes polygon authoring sessions
type DraftHandler struct {
	sessions *authoring.Sessions
}

func newDraftHandler(sessions *authoring.Sessions) *DraftHandler {
	return &DraftHandler{sessions: sessions}
}

func (h *DraftHandler) Register(r *gin.RouterGroup) {
	r.POST("/drafts", h.Create)
	r.GET("/drafts/:id", h.Get)
	r.DELETE("/drafts/:id", h.Delete)
	r.POST("/drafts/:id/points", h.AddPoint)
	r.POST("/drafts/:id/close", h.Close)
	r.POST("/drafts/:id/reset", h.Reset)
	r.POST("/drafts/:id/submit", h.Submit)
}

func (h *DraftHandler) Create(c *gin.Context) {
	sess := h.sessions.Create()
	c.JSON(http.StatusCreated, toDraftResponse(sess))
}

func (h *DraftHandler) Get(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, toDraftResponse(sess))
}

func (h *DraftHandler) Delete(c *gin.Context) {
	if err := h.sessions.Delete(c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "draft not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *DraftHandler) AddPoint(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	var req pointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lat and lng are required numbers"})
		return
	}
	if _, err := sess.AddPoint(geofence.GeoPoint{Lat: *req.Lat, Lng: *req.Lng}); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, toDraftResponse(sess))
}

// Close previews the ring that Submit would send; the draft is unchanged
func (h *DraftHandler) Close(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	ring, err := sess.Close()
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "points": sess.Points()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": sess.ID, "ring": ring, "coordinates": ring.Coordinates()})
}

func (h *DraftHandler) Reset(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	sess.Reset()
	c.JSON(http.StatusOK, toDraftResponse(sess))
}

func (h *DraftHandler) Submit(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	var req authoring.GeofenceSpec
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid geofence body"})
		return
	}

	created, err := sess.Submit(c.Request.Context(), req)
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, gin.H{"id": sess.ID, "points": sess.Points(), "geofence": created})
	case errors.Is(err, authoring.ErrNameRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, geofence.ErrInsufficientVertices):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "points": sess.Points()})
	default:
		writeBackendError(c, err)
	}
}

func (h *DraftHandler) session(c *gin.Context) (*authoring.Session, bool) {
	sess, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "draft not found"})
		return nil, false
	}
	return sess, true
}

func toDraftResponse(sess *authoring.Session) draftResponse {
	return draftResponse{ID: sess.ID, Points: sess.Points()}
}
