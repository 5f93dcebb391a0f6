package domain

import "time"

// Zone is a user-defined polygonal region. Zones are owned and mutated by the
// persistence layer; this service only ever reads snapshots of them.
type Zone struct {
	ID      int64  `json:"id"`
	OwnerID int64  `json:"user_id"`
	Name    string `json:"name"`

	// Boundary is the outer ring as [longitude, latitude] pairs, first
	// vertex repeated as the last.
	Boundary [][2]float64 `json:"boundary"`

	AlertOnEnter bool `json:"alert_on_enter"`
	AlertOnExit  bool `json:"alert_on_exit"`
	Active       bool `json:"is_active"`
}

type TransitionKind string

const (
	TransitionEnter TransitionKind = "enter"
	TransitionExit  TransitionKind = "exit"
)

// Transition is one boundary crossing detected for a (vehicle, zone) pair.
type Transition struct {
	Zone Zone
	Kind TransitionKind
}

type AlertKind string

const (
	AlertZoneEnter AlertKind = "geofence_enter"
	AlertZoneExit  AlertKind = "geofence_exit"
)

type AlertSeverity string

const (
	SeverityInfo     AlertSeverity = "info"
	SeverityWarning  AlertSeverity = "warning"
	SeverityCritical AlertSeverity = "critical"
)

type Alert struct {
	ID           int64         `json:"id"`
	Kind         AlertKind     `json:"alert_type"`
	Title        string        `json:"title"`
	Message      string        `json:"message"`
	Severity     AlertSeverity `json:"severity"`
	VehicleID    string        `json:"vehicle_id"`
	ZoneID       int64         `json:"geofence_id"`
	OwnerID      int64         `json:"user_id"`
	Read         bool          `json:"is_read"`
	Acknowledged bool          `json:"is_acknowledged"`
	CreatedAt    time.Time     `json:"created_at"`
}
