package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"fleet-monitor/realtime/internal/config"
	"fleet-monitor/realtime/internal/domain"
)

type RedisStore struct {
	client   *redis.Client
	stateTTL time.Duration
}

func NewRedisStore(ctx context.Context, cfg *config.Config) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		PoolSize:     20,
		MinIdleConns: 5,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{
		client:   client,
		stateTTL: time.Duration(cfg.RedisStateTTLSeconds) * time.Second,
	}, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// MirrorState replicates a vehicle's live status into Redis for sibling
// services: a per-vehicle hash with a freshness TTL plus a fleet-wide geo
// set. The in-process state store stays authoritative; this is a mirror.
func (r *RedisStore) MirrorState(ctx context.Context, status *domain.VehicleStatus) error {
	stateData := map[string]interface{}{
		"vehicle_id":     status.VehicleID,
		"lat":            status.Location.Latitude,
		"lng":            status.Location.Longitude,
		"occupancy":      status.OccupancyCount,
		"latency_ms":     status.InferenceLatencyMS,
		"consent_status": string(status.ConsentStatus),
		"route_id":       status.RouteID,
		"last_seen":      status.LastSeen.Unix(),
	}
	if status.SpeedKmh != nil {
		stateData["speed_kmh"] = *status.SpeedKmh
	}

	vehicleStateKey := fmt.Sprintf("vehicle:%s:state", status.VehicleID)

	pipe := r.client.Pipeline()
	pipe.HSet(ctx, vehicleStateKey, stateData)
	pipe.Expire(ctx, vehicleStateKey, r.stateTTL)
	pipe.GeoAdd(ctx, "fleet:geo", &redis.GeoLocation{
		Name:      status.VehicleID,
		Longitude: status.Location.Longitude,
		Latitude:  status.Location.Latitude,
	})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline failed: %w", err)
	}
	return nil
}
