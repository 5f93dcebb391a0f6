// Package notify delivers accepted alerts to their notification channels.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"fleet-monitor/realtime/internal/domain"
	"fleet-monitor/realtime/internal/hub"
)

// alertMessage is the wire shape viewers receive on the alerts channel.
type alertMessage struct {
	Type      string    `json:"type"`
	AlertType string    `json:"alert_type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Severity  string    `json:"severity"`
	VehicleID string    `json:"vehicle_id"`
	ZoneID    int64     `json:"geofence_id"`
	CreatedAt time.Time `json:"created_at"`
}

func encodeAlert(a *domain.Alert) ([]byte, error) {
	payload, err := json.Marshal(alertMessage{
		Type:      "alert",
		AlertType: string(a.Kind),
		Title:     a.Title,
		Message:   a.Message,
		Severity:  string(a.Severity),
		VehicleID: a.VehicleID,
		ZoneID:    a.ZoneID,
		CreatedAt: a.CreatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal alert: %w", err)
	}
	return payload, nil
}

// HubPublisher fans an alert out on the hub's alerts topic.
type HubPublisher struct {
	hub *hub.Hub
}

func NewHubPublisher(h *hub.Hub) *HubPublisher {
	return &HubPublisher{hub: h}
}

func (p *HubPublisher) PublishAlert(_ context.Context, a *domain.Alert) error {
	payload, err := encodeAlert(a)
	if err != nil {
		return err
	}
	p.hub.Publish(hub.TopicAlerts, payload)
	return nil
}
