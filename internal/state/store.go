// Package state holds the authoritative latest-known status per vehicle.
// The map is sharded by vehicle id so concurrent updates to different
// vehicles never contend on a single lock.
package state

import (
	"hash/fnv"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"fleet-monitor/realtime/internal/domain"
)

const shardCount = 32

type entry struct {
	status       domain.VehicleStatus
	messageCount int64
}

type shard struct {
	mu       sync.RWMutex
	vehicles map[string]*entry
}

type Store struct {
	shards        [shardCount]shard
	inactiveAfter time.Duration
	processed     atomic.Int64

	now func() time.Time
}

func NewStore(inactiveAfter time.Duration) *Store {
	s := &Store{
		inactiveAfter: inactiveAfter,
		now:           time.Now,
	}
	for i := range s.shards {
		s.shards[i].vehicles = make(map[string]*entry)
	}
	return s
}

func (s *Store) shardFor(vehicleID string) *shard {
	h := fnv.New32a()
	h.Write([]byte(vehicleID))
	return &s.shards[h.Sum32()%shardCount]
}

// Upsert replaces the stored status for the update's vehicle, creating it on
// first sight. It returns the previous status and whether one existed.
// Last writer wins by arrival order at the shard lock.
func (s *Store) Upsert(u *domain.TelemetryUpdate) (prev domain.VehicleStatus, existed bool) {
	status := domain.VehicleStatus{
		VehicleID:          u.VehicleID,
		LastSeen:           s.now(),
		OccupancyCount:     u.OccupancyCount,
		Location:           u.Location,
		InferenceLatencyMS: u.InferenceLatencyMS,
		ConsentStatus:      u.ConsentStatus,
		RouteID:            u.RouteID,
		SpeedKmh:           u.SpeedKmh,
	}

	sh := s.shardFor(u.VehicleID)
	sh.mu.Lock()
	e, ok := sh.vehicles[u.VehicleID]
	if ok {
		prev = e.status
		e.status = status
		e.messageCount++
	} else {
		sh.vehicles[u.VehicleID] = &entry{status: status, messageCount: 1}
	}
	sh.mu.Unlock()

	s.processed.Add(1)
	return prev, ok
}

// Get returns the current status for a vehicle, with IsActive derived from
// last-seen age at read time.
func (s *Store) Get(vehicleID string) (domain.VehicleStatus, bool) {
	sh := s.shardFor(vehicleID)
	sh.mu.RLock()
	e, ok := sh.vehicles[vehicleID]
	if !ok {
		sh.mu.RUnlock()
		return domain.VehicleStatus{}, false
	}
	status := e.status
	sh.mu.RUnlock()

	status.IsActive = s.now().Sub(status.LastSeen) < s.inactiveAfter
	return status, true
}

// List returns a snapshot of every tracked vehicle, sorted by vehicle id.
// Each shard is read under its lock, so every returned status is one that
// was current at some single point during the call.
func (s *Store) List() []domain.VehicleStatus {
	now := s.now()
	out := make([]domain.VehicleStatus, 0, 64)
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		for _, e := range sh.vehicles {
			status := e.status
			status.IsActive = now.Sub(status.LastSeen) < s.inactiveAfter
			out = append(out, status)
		}
		sh.mu.RUnlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VehicleID < out[j].VehicleID })
	return out
}

func (s *Store) Count() int {
	n := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		n += len(sh.vehicles)
		sh.mu.RUnlock()
	}
	return n
}

func (s *Store) MessagesProcessed() int64 {
	return s.processed.Load()
}

// Summary aggregates the live fleet in one pass over the snapshot.
func (s *Store) Summary() domain.FleetSummary {
	vehicles := s.List()
	summary := domain.FleetSummary{
		TotalVehicles: len(vehicles),
		Timestamp:     s.now(),
	}
	if len(vehicles) == 0 {
		return summary
	}

	var latencySum float64
	for _, v := range vehicles {
		if v.IsActive {
			summary.ActiveVehicles++
		}
		summary.TotalPassengers += v.OccupancyCount
		latencySum += v.InferenceLatencyMS
		if v.ConsentStatus == domain.ConsentGranted {
			summary.ConsentGrantedCount++
		}
	}
	summary.AverageOccupancy = float64(summary.TotalPassengers) / float64(len(vehicles))
	summary.AverageLatencyMS = latencySum / float64(len(vehicles))
	return summary
}
