// Package store talks to the external persistence collaborators: Postgres
// for zones and alerts, Redis for the live-state mirror.
package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"fleet-monitor/realtime/internal/config"
	"fleet-monitor/realtime/internal/domain"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, cfg *config.Config) (*PostgresStore, error) {
	connStr := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?pool_max_conns=%d",
		cfg.DBUser,
		cfg.DBPassword,
		cfg.DBHost,
		cfg.DBPort,
		cfg.DBName,
		cfg.DBMaxConns,
	)

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to create db pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// geoJSONPolygon is the stored boundary format: the first coordinate ring is
// the zone's outer boundary, [lng, lat] pairs, closed.
type geoJSONPolygon struct {
	Type        string         `json:"type"`
	Coordinates [][][2]float64 `json:"coordinates"`
}

func decodeBoundary(raw string) ([][2]float64, error) {
	var poly geoJSONPolygon
	if err := json.Unmarshal([]byte(raw), &poly); err != nil {
		return nil, fmt.Errorf("decode polygon: %w", err)
	}
	if poly.Type != "Polygon" || len(poly.Coordinates) == 0 {
		return nil, fmt.Errorf("polygon has no outer ring")
	}
	return poly.Coordinates[0], nil
}

func encodeBoundary(ring [][2]float64) (string, error) {
	raw, err := json.Marshal(geoJSONPolygon{Type: "Polygon", Coordinates: [][][2]float64{ring}})
	if err != nil {
		return "", fmt.Errorf("encode polygon: %w", err)
	}
	return string(raw), nil
}

// ListActiveZones returns every zone with the active flag set.
func (s *PostgresStore) ListActiveZones(ctx context.Context) ([]domain.Zone, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, name, polygon, alert_on_enter, alert_on_exit, is_active
		FROM geofences
		WHERE is_active
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query geofences: %w", err)
	}
	defer rows.Close()

	var zones []domain.Zone
	for rows.Next() {
		var z domain.Zone
		var polygon string
		if err := rows.Scan(&z.ID, &z.OwnerID, &z.Name, &polygon, &z.AlertOnEnter, &z.AlertOnExit, &z.Active); err != nil {
			return nil, fmt.Errorf("scan geofence: %w", err)
		}
		ring, err := decodeBoundary(polygon)
		if err != nil {
			return nil, fmt.Errorf("geofence %d: %w", z.ID, err)
		}
		z.Boundary = ring
		zones = append(zones, z)
	}
	return zones, rows.Err()
}

// ListZonesByOwner returns one owner's zones, active or not.
func (s *PostgresStore) ListZonesByOwner(ctx context.Context, ownerID int64) ([]domain.Zone, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, name, polygon, alert_on_enter, alert_on_exit, is_active
		FROM geofences
		WHERE user_id = $1
		ORDER BY id
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query geofences for owner %d: %w", ownerID, err)
	}
	defer rows.Close()

	var zones []domain.Zone
	for rows.Next() {
		var z domain.Zone
		var polygon string
		if err := rows.Scan(&z.ID, &z.OwnerID, &z.Name, &polygon, &z.AlertOnEnter, &z.AlertOnExit, &z.Active); err != nil {
			return nil, fmt.Errorf("scan geofence: %w", err)
		}
		ring, err := decodeBoundary(polygon)
		if err != nil {
			return nil, fmt.Errorf("geofence %d: %w", z.ID, err)
		}
		z.Boundary = ring
		zones = append(zones, z)
	}
	return zones, rows.Err()
}

// InsertAlert persists an alert and returns its server-assigned id.
func (s *PostgresStore) InsertAlert(ctx context.Context, a *domain.Alert) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO alerts
			(user_id, alert_type, title, message, severity, vehicle_id, geofence_id, is_read, is_acknowledged, created_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, false, false, $8)
		RETURNING id
	`, a.OwnerID, string(a.Kind), a.Title, a.Message, string(a.Severity), a.VehicleID, a.ZoneID, a.CreatedAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert alert: %w", err)
	}
	return id, nil
}

// ListAlerts returns the most recent alerts, newest first.
func (s *PostgresStore) ListAlerts(ctx context.Context, limit int, unreadOnly bool) ([]domain.Alert, error) {
	query := `
		SELECT id, user_id, alert_type, title, message, severity, vehicle_id, geofence_id, is_read, is_acknowledged, created_at
		FROM alerts
	`
	if unreadOnly {
		query += ` WHERE NOT is_read`
	}
	query += ` ORDER BY created_at DESC LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []domain.Alert
	for rows.Next() {
		var a domain.Alert
		var kind, severity string
		if err := rows.Scan(&a.ID, &a.OwnerID, &kind, &a.Title, &a.Message, &severity, &a.VehicleID, &a.ZoneID, &a.Read, &a.Acknowledged, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		a.Kind = domain.AlertKind(kind)
		a.Severity = domain.AlertSeverity(severity)
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

func (s *PostgresStore) UnreadAlertCount(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM alerts WHERE NOT is_read`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread alerts: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) MarkAlertRead(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `UPDATE alerts SET is_read = true WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark alert %d read: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) MarkAlertAcknowledged(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `UPDATE alerts SET is_acknowledged = true, is_read = true WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark alert %d acknowledged: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
