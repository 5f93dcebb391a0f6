package state

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"fleet-monitor/realtime/internal/domain"
)

func update(vehicleID string, lat, lng float64, occupancy int) *domain.TelemetryUpdate {
	return &domain.TelemetryUpdate{
		VehicleID:      vehicleID,
		Timestamp:      time.Unix(1715003456, 0),
		OccupancyCount: occupancy,
		Location:       domain.GPSLocation{Latitude: lat, Longitude: lng},
		ConsentStatus:  domain.ConsentGranted,
	}
}

func TestUpsert_CreateThenReplace(t *testing.T) {
	s := NewStore(30 * time.Second)

	_, existed := s.Upsert(update("vehicle-001", 35.68, 139.76, 3))
	if existed {
		t.Fatal("first upsert should not report an existing status")
	}

	prev, existed := s.Upsert(update("vehicle-001", 35.69, 139.77, 5))
	if !existed {
		t.Fatal("second upsert should report an existing status")
	}
	if prev.OccupancyCount != 3 {
		t.Errorf("previous occupancy = %d, want 3", prev.OccupancyCount)
	}

	got, ok := s.Get("vehicle-001")
	if !ok {
		t.Fatal("expected vehicle to exist")
	}
	if got.OccupancyCount != 5 || got.Location.Latitude != 35.69 {
		t.Errorf("get did not reflect latest update: %+v", got)
	}
	if s.Count() != 1 {
		t.Errorf("count = %d, want 1 (replace, not append)", s.Count())
	}
}

func TestGet_NotFound(t *testing.T) {
	s := NewStore(30 * time.Second)
	if _, ok := s.Get("missing"); ok {
		t.Error("expected not-found for unknown vehicle")
	}
}

func TestGet_IsActiveFromLastSeen(t *testing.T) {
	s := NewStore(30 * time.Second)
	base := time.Unix(1715003456, 0)
	s.now = func() time.Time { return base }

	s.Upsert(update("vehicle-001", 35.68, 139.76, 1))

	got, _ := s.Get("vehicle-001")
	if !got.IsActive {
		t.Error("vehicle seen just now should be active")
	}

	s.now = func() time.Time { return base.Add(31 * time.Second) }
	got, _ = s.Get("vehicle-001")
	if got.IsActive {
		t.Error("vehicle silent past the threshold should be inactive")
	}
}

func TestList_SortedSnapshot(t *testing.T) {
	s := NewStore(30 * time.Second)
	for i := 9; i >= 0; i-- {
		s.Upsert(update(fmt.Sprintf("vehicle-%03d", i), 35.0, 139.0, i))
	}

	list := s.List()
	if len(list) != 10 {
		t.Fatalf("expected 10 vehicles, got %d", len(list))
	}
	for i := 1; i < len(list); i++ {
		if list[i-1].VehicleID >= list[i].VehicleID {
			t.Fatalf("list not sorted: %s before %s", list[i-1].VehicleID, list[i].VehicleID)
		}
	}
}

func TestUpsert_ConcurrentDistinctKeys(t *testing.T) {
	s := NewStore(30 * time.Second)
	const vehicles = 50
	const updates = 20

	var wg sync.WaitGroup
	for v := 0; v < vehicles; v++ {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			id := fmt.Sprintf("vehicle-%03d", v)
			for i := 0; i < updates; i++ {
				s.Upsert(update(id, 35.0, 139.0, i))
			}
		}(v)
	}
	wg.Wait()

	if s.Count() != vehicles {
		t.Errorf("count = %d, want %d", s.Count(), vehicles)
	}
	if s.MessagesProcessed() != vehicles*updates {
		t.Errorf("processed = %d, want %d", s.MessagesProcessed(), vehicles*updates)
	}
	// each vehicle's final state is its own last write
	for v := 0; v < vehicles; v++ {
		got, ok := s.Get(fmt.Sprintf("vehicle-%03d", v))
		if !ok || got.OccupancyCount != updates-1 {
			t.Fatalf("vehicle %d final occupancy = %+v, want %d", v, got.OccupancyCount, updates-1)
		}
	}
}

func TestSummary(t *testing.T) {
	s := NewStore(30 * time.Second)
	base := time.Unix(1715003456, 0)
	s.now = func() time.Time { return base }

	u1 := update("vehicle-001", 35.68, 139.76, 4)
	u1.InferenceLatencyMS = 10
	s.Upsert(u1)

	u2 := update("vehicle-002", 35.69, 139.77, 2)
	u2.InferenceLatencyMS = 20
	u2.ConsentStatus = domain.ConsentWithdrawn
	s.Upsert(u2)

	got := s.Summary()
	if got.TotalVehicles != 2 || got.ActiveVehicles != 2 {
		t.Errorf("totals = %d/%d, want 2/2", got.TotalVehicles, got.ActiveVehicles)
	}
	if got.TotalPassengers != 6 || got.AverageOccupancy != 3 {
		t.Errorf("passengers = %d avg %f, want 6 avg 3", got.TotalPassengers, got.AverageOccupancy)
	}
	if got.AverageLatencyMS != 15 {
		t.Errorf("average latency = %f, want 15", got.AverageLatencyMS)
	}
	if got.ConsentGrantedCount != 1 {
		t.Errorf("consent granted = %d, want 1", got.ConsentGrantedCount)
	}
}

func TestSummary_Empty(t *testing.T) {
	s := NewStore(30 * time.Second)
	got := s.Summary()
	if got.TotalVehicles != 0 || got.AverageOccupancy != 0 {
		t.Errorf("empty summary should be all zero, got %+v", got)
	}
}
