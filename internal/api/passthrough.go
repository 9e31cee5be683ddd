package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
)

// PassthroughHandler relays backend CRUD endpoints without interpreting them
type PassthroughHandler struct {
	backend backendAPI
}

func newPassthroughHandler(b backendAPI) *PassthroughHandler {
	return &PassthroughHandler{backend: b}
}

func (h *PassthroughHandler) Register(r *gin.RouterGroup) {
	r.GET("/geofences", h.ListGeofences)
	r.GET("/vehicles", h.ListVehicles)
	r.POST("/vehicles", h.CreateVehicle)
	r.GET("/vehicles/location/:vehicle_id", h.VehicleLocation)
	r.POST("/vehicles/location", h.UpdateLocation)
	r.GET("/alert-rules", h.ListAlertRules)
	r.POST("/alert-rules", h.ConfigureAlert)
	r.GET("/violations", h.ViolationHistory)
}

func (h *PassthroughHandler) ListGeofences(c *gin.Context) {
	relay(c, func(ctx context.Context) (json.RawMessage, error) {
		return h.backend.ListGeofences(ctx, c.Query("category"))
	})
}

func (h *PassthroughHandler) ListVehicles(c *gin.Context) {
	relay(c, h.backend.ListVehicles)
}

func (h *PassthroughHandler) CreateVehicle(c *gin.Context) {
	relayBody(c, h.backend.CreateVehicle)
}

func (h *PassthroughHandler) VehicleLocation(c *gin.Context) {
	relay(c, func(ctx context.Context) (json.RawMessage, error) {
		return h.backend.VehicleLocation(ctx, c.Param("vehicle_id"))
	})
}

func (h *PassthroughHandler) UpdateLocation(c *gin.Context) {
	relayBody(c, h.backend.UpdateLocation)
}

func (h *PassthroughHandler) ListAlertRules(c *gin.Context) {
	relay(c, func(ctx context.Context) (json.RawMessage, error) {
		return h.backend.ListAlertRules(ctx, c.Request.URL.Query())
	})
}

func (h *PassthroughHandler) ConfigureAlert(c *gin.Context) {
	relayBody(c, h.backend.ConfigureAlert)
}

func (h *PassthroughHandler) ViolationHistory(c *gin.Context) {
	relay(c, func(ctx context.Context) (json.RawMessage, error) {
		return h.backend.ViolationHistory(ctx, c.Request.URL.Query())
	})
}

func relay(c *gin.Context, call func(ctx context.Context) (json.RawMessage, error)) {
	data, err := call(c.Request.Context())
	if err != nil {
		writeBackendError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}

func relayBody(c *gin.Context, call func(ctx context.Context, body json.RawMessage) (json.RawMessage, error)) {
	body, err := c.GetRawData()
	if err != nil || !json.Valid(body) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request body must be JSON"})
		return
	}
	relay(c, func(ctx context.Context) (json.RawMessage, error) {
		return call(ctx, body)
	})
}
