package domain

import (
	"fmt"
	"math"
	"time"
)

type ConsentStatus string

const (
	ConsentGranted   ConsentStatus = "granted"
	ConsentPending   ConsentStatus = "pending"
	ConsentWithdrawn ConsentStatus = "withdrawn"
)

func (c ConsentStatus) Valid() bool {
	switch c {
	case ConsentGranted, ConsentPending, ConsentWithdrawn:
		return true
	}
	return false
}

type GPSLocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// TelemetryUpdate is a single inbound event from a vehicle. The JSON shape
// matches what the edge devices publish on the telemetry topic.
type TelemetryUpdate struct {
	VehicleID          string        `json:"vehicle_id"`
	Timestamp          time.Time     `json:"timestamp"`
	OccupancyCount     int           `json:"occupancy_count"`
	InferenceLatencyMS float64       `json:"inference_latency_ms"`
	Location           GPSLocation   `json:"location"`
	ConsentStatus      ConsentStatus `json:"consent_status"`
	RouteID            string        `json:"route_id,omitempty"`
	SpeedKmh           *float64      `json:"speed_kmh,omitempty"`

	ReceivedAt time.Time `json:"-"`
}

// Validate rejects updates that must not reach the state store. A rejected
// update leaves any prior VehicleStatus untouched. maxOccupancy caps the
// plausible passenger count per vehicle; zero or negative disables the cap.
func (u *TelemetryUpdate) Validate(maxOccupancy int) error {
	if u.VehicleID == "" {
		return fmt.Errorf("missing vehicle_id")
	}
	if u.Timestamp.IsZero() {
		return fmt.Errorf("missing timestamp")
	}
	lat, lng := u.Location.Latitude, u.Location.Longitude
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return fmt.Errorf("latitude %v out of range", lat)
	}
	if math.IsNaN(lng) || lng < -180 || lng > 180 {
		return fmt.Errorf("longitude %v out of range", lng)
	}
	if u.OccupancyCount < 0 {
		return fmt.Errorf("occupancy_count %d is negative", u.OccupancyCount)
	}
	if maxOccupancy > 0 && u.OccupancyCount > maxOccupancy {
		return fmt.Errorf("occupancy_count %d exceeds maximum %d", u.OccupancyCount, maxOccupancy)
	}
	if u.InferenceLatencyMS < 0 {
		return fmt.Errorf("inference_latency_ms %v is negative", u.InferenceLatencyMS)
	}
	if u.ConsentStatus == "" {
		u.ConsentStatus = ConsentGranted
	} else if !u.ConsentStatus.Valid() {
		return fmt.Errorf("unknown consent_status %q", u.ConsentStatus)
	}
	return nil
}

// VehicleStatus is the authoritative latest-known state for one vehicle.
// Exactly one live VehicleStatus exists per vehicle id; updates replace the
// previous value in place.
type VehicleStatus struct {
	VehicleID          string        `json:"vehicle_id"`
	LastSeen           time.Time     `json:"last_seen"`
	OccupancyCount     int           `json:"occupancy_count"`
	Location           GPSLocation   `json:"location"`
	InferenceLatencyMS float64       `json:"inference_latency_ms"`
	ConsentStatus      ConsentStatus `json:"consent_status"`
	RouteID            string        `json:"route_id,omitempty"`
	SpeedKmh           *float64      `json:"speed_kmh,omitempty"`
	IsActive           bool          `json:"is_active"`
}

// FleetSummary aggregates the live fleet for the dashboard.
type FleetSummary struct {
	TotalVehicles       int       `json:"total_vehicles"`
	ActiveVehicles      int       `json:"active_vehicles"`
	TotalPassengers     int       `json:"total_passengers"`
	AverageOccupancy    float64   `json:"average_occupancy"`
	AverageLatencyMS    float64   `json:"average_latency_ms"`
	ConsentGrantedCount int       `json:"consent_granted_count"`
	Timestamp           time.Time `json:"timestamp"`
}
