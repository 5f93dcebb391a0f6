// Package http exposes the REST and WebSocket surface of the realtime
// service: telemetry ingest, vehicle queries, alert queries, and the two
// subscription channels.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"fleet-monitor/realtime/internal/domain"
	"fleet-monitor/realtime/internal/hub"
	"fleet-monitor/realtime/internal/metrics"
	"fleet-monitor/realtime/internal/state"
)

type Ingestor interface {
	Ingest(u *domain.TelemetryUpdate) error
}

type AlertStore interface {
	ListAlerts(ctx context.Context, limit int, unreadOnly bool) ([]domain.Alert, error)
	UnreadAlertCount(ctx context.Context) (int64, error)
	MarkAlertRead(ctx context.Context, id int64) error
	MarkAlertAcknowledged(ctx context.Context, id int64) error
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Handler struct {
	ingest    Ingestor
	vehicles  *state.Store
	hub       *hub.Hub
	alerts    AlertStore
	clientCfg hub.ClientConfig
	log       *logrus.Logger
}

func NewHandler(ingest Ingestor, vehicles *state.Store, h *hub.Hub, alerts AlertStore, clientCfg hub.ClientConfig, log *logrus.Logger) *Handler {
	return &Handler{
		ingest:    ingest,
		vehicles:  vehicles,
		hub:       h,
		alerts:    alerts,
		clientCfg: clientCfg,
		log:       log,
	}
}

func (h *Handler) Register(r *gin.Engine) {
	api := r.Group("/api")
	api.POST("/telemetry", h.PostTelemetry)
	api.GET("/vehicles", h.GetVehicles)
	api.GET("/vehicles/:vehicle_id", h.GetVehicle)
	api.GET("/fleet/summary", h.GetFleetSummary)
	api.GET("/alerts", h.GetAlerts)
	api.GET("/alerts/unread-count", h.GetUnreadAlertCount)
	api.POST("/alerts/:id/read", h.MarkAlertRead)
	api.POST("/alerts/:id/acknowledge", h.MarkAlertAcknowledged)

	r.GET("/ws/telemetry", h.TelemetryWebsocket)
	r.GET("/ws/alerts", h.AlertsWebsocket)
	r.GET("/metrics", gin.WrapF(metrics.HandleMetrics))
}

// PostTelemetry accepts a single telemetry update over HTTP, for producers
// that do not publish to the stream transport.
func (h *Handler) PostTelemetry(c *gin.Context) {
	var update domain.TelemetryUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid telemetry payload"})
		return
	}
	if err := h.ingest.Ingest(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

func (h *Handler) GetVehicles(c *gin.Context) {
	vehicles := h.vehicles.List()
	c.JSON(http.StatusOK, gin.H{
		"vehicles":  vehicles,
		"total":     len(vehicles),
		"timestamp": time.Now().UTC(),
	})
}

func (h *Handler) GetVehicle(c *gin.Context) {
	status, ok := h.vehicles.Get(c.Param("vehicle_id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "vehicle not found"})
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *Handler) GetFleetSummary(c *gin.Context) {
	c.JSON(http.StatusOK, h.vehicles.Summary())
}

func (h *Handler) GetAlerts(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 500 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit parameter"})
			return
		}
		limit = n
	}
	unreadOnly := c.Query("unread") == "true"

	alerts, err := h.alerts.ListAlerts(c.Request.Context(), limit, unreadOnly)
	if err != nil {
		h.log.WithError(err).Error("failed to list alerts")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch alerts"})
		return
	}
	if alerts == nil {
		alerts = []domain.Alert{}
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts, "total": len(alerts)})
}

func (h *Handler) GetUnreadAlertCount(c *gin.Context) {
	count, err := h.alerts.UnreadAlertCount(c.Request.Context())
	if err != nil {
		h.log.WithError(err).Error("failed to count unread alerts")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count alerts"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread_count": count})
}

func (h *Handler) MarkAlertRead(c *gin.Context) {
	h.updateAlert(c, h.alerts.MarkAlertRead)
}

func (h *Handler) MarkAlertAcknowledged(c *gin.Context) {
	h.updateAlert(c, h.alerts.MarkAlertAcknowledged)
}

func (h *Handler) updateAlert(c *gin.Context, fn func(ctx context.Context, id int64) error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid alert id"})
		return
	}
	if err := fn(c.Request.Context(), id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "alert not found"})
			return
		}
		h.log.WithError(err).Error("failed to update alert")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update alert"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// TelemetryWebsocket upgrades the connection and streams every telemetry
// update, starting with an initial_state snapshot of the live fleet.
func (h *Handler) TelemetryWebsocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	// The snapshot is built before ServeConn subscribes, so an update landing
	// in that window reaches neither. Acceptable: statuses replace in place,
	// so the vehicle's next update carries the current state anyway.
	initial, err := h.initialState()
	if err != nil {
		h.log.WithError(err).Error("failed to build initial state")
		conn.Close()
		return
	}

	h.log.WithField("subscribers", h.hub.SubscriberCount(hub.TopicTelemetry)+1).Info("telemetry subscriber connected")
	h.hub.ServeConn(conn, hub.TopicTelemetry, initial, h.clientCfg)
	h.log.WithField("subscribers", h.hub.SubscriberCount(hub.TopicTelemetry)).Info("telemetry subscriber disconnected")
}

// AlertsWebsocket upgrades the connection and streams alerts as they pass
// the cooldown and are persisted.
func (h *Handler) AlertsWebsocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	h.hub.ServeConn(conn, hub.TopicAlerts, nil, h.clientCfg)
}

func (h *Handler) initialState() ([]byte, error) {
	vehicles := h.vehicles.List()
	return json.Marshal(gin.H{
		"type":     "initial_state",
		"vehicles": vehicles,
		"count":    len(vehicles),
	})
}
