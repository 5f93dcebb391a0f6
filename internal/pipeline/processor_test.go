package pipeline

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"fleet-monitor/realtime/internal/alert"
	"fleet-monitor/realtime/internal/domain"
	"fleet-monitor/realtime/internal/hub"
	"fleet-monitor/realtime/internal/membership"
	"fleet-monitor/realtime/internal/notify"
	"fleet-monitor/realtime/internal/state"
)

type staticZones struct {
	zones []domain.Zone
}

func (s *staticZones) All() []domain.Zone { return s.zones }

type recordingAlertStore struct {
	inserted []*domain.Alert
}

func (r *recordingAlertStore) InsertAlert(_ context.Context, a *domain.Alert) (int64, error) {
	r.inserted = append(r.inserted, a)
	return int64(len(r.inserted)), nil
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

var tokyoRect = [][2]float64{
	{139.68, 35.70}, {139.78, 35.70}, {139.78, 35.65}, {139.68, 35.65}, {139.68, 35.70},
}

func telemetry(vehicleID string, lat, lng float64) *domain.TelemetryUpdate {
	return &domain.TelemetryUpdate{
		VehicleID:      vehicleID,
		Timestamp:      time.Now(),
		OccupancyCount: 3,
		Location:       domain.GPSLocation{Latitude: lat, Longitude: lng},
		ConsentStatus:  domain.ConsentGranted,
	}
}

type testRig struct {
	processor  *Processor
	hub        *hub.Hub
	store      *state.Store
	alertStore *recordingAlertStore
	cancel     context.CancelFunc
}

func newTestRig(t *testing.T, zones []domain.Zone) *testRig {
	t.Helper()
	log := quietLogger()
	h := hub.New(64, log)
	store := state.NewStore(30 * time.Second)
	alertStore := &recordingAlertStore{}
	dispatcher := alert.NewDispatcher(alertStore, 5*time.Minute, log, notify.NewHubPublisher(h))
	p := NewProcessor(store, &staticZones{zones: zones}, membership.NewEngine(), dispatcher, h, log, Options{Workers: 2, QueueSize: 64})

	ctx, cancel := context.WithCancel(context.Background())
	go p.Run(ctx)
	t.Cleanup(cancel)
	return &testRig{processor: p, hub: h, store: store, alertStore: alertStore, cancel: cancel}
}

func receive(t *testing.T, sub *hub.Subscription) []byte {
	t.Helper()
	select {
	case msg, ok := <-sub.C():
		if !ok {
			t.Fatal("subscription closed unexpectedly")
		}
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for hub message")
		return nil
	}
}

func expectNoMessage(t *testing.T, sub *hub.Subscription) {
	t.Helper()
	select {
	case msg := <-sub.C():
		t.Fatalf("unexpected message: %s", msg)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestIngest_RejectsMalformed(t *testing.T) {
	rig := newTestRig(t, nil)
	sub := rig.hub.Subscribe(hub.TopicTelemetry)

	bad := telemetry("vehicle-001", 95.0, 139.73) // latitude out of range
	if err := rig.processor.Ingest(bad); err == nil {
		t.Fatal("expected validation error")
	}

	expectNoMessage(t, sub)
	if rig.store.Count() != 0 {
		t.Error("rejected update must not touch the state store")
	}
}

func TestIngest_RejectsOverCapOccupancy(t *testing.T) {
	rig := newTestRig(t, nil)
	sub := rig.hub.Subscribe(hub.TopicTelemetry)

	crowded := telemetry("vehicle-001", 35.67, 139.73)
	crowded.OccupancyCount = 1 << 40
	if err := rig.processor.Ingest(crowded); err == nil {
		t.Fatal("expected occupancy cap error")
	}

	expectNoMessage(t, sub)
	if rig.store.Count() != 0 {
		t.Error("over-cap update must not touch the state store")
	}
}

func TestIngest_UpdatesStateAndBroadcasts(t *testing.T) {
	rig := newTestRig(t, nil)
	sub := rig.hub.Subscribe(hub.TopicTelemetry)

	if err := rig.processor.Ingest(telemetry("vehicle-001", 35.67, 139.73)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	msg := receive(t, sub)
	var got domain.TelemetryUpdate
	if err := json.Unmarshal(msg, &got); err != nil {
		t.Fatalf("broadcast is not valid telemetry JSON: %v", err)
	}
	if got.VehicleID != "vehicle-001" || got.Location.Longitude != 139.73 {
		t.Errorf("broadcast = %+v", got)
	}

	status, ok := rig.store.Get("vehicle-001")
	if !ok || status.Location.Latitude != 35.67 {
		t.Errorf("state store not updated: %+v", status)
	}
}

func TestIngest_PerVehicleOrder(t *testing.T) {
	rig := newTestRig(t, nil)
	sub := rig.hub.Subscribe(hub.TopicTelemetry)

	for i := 0; i < 5; i++ {
		u := telemetry("vehicle-001", 35.0, 139.0)
		u.OccupancyCount = i
		if err := rig.processor.Ingest(u); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	for i := 0; i < 5; i++ {
		var got domain.TelemetryUpdate
		if err := json.Unmarshal(receive(t, sub), &got); err != nil {
			t.Fatal(err)
		}
		if got.OccupancyCount != i {
			t.Fatalf("message %d has occupancy %d, want %d (out of order)", i, got.OccupancyCount, i)
		}
	}

	status, _ := rig.store.Get("vehicle-001")
	if status.OccupancyCount != 4 {
		t.Errorf("final state occupancy = %d, want 4", status.OccupancyCount)
	}
}

// Full enter/exit/re-enter scenario against a rectangle around central
// Tokyo, with both alert flags on and a 5 minute cooldown.
func TestScenario_EnterExitReenter(t *testing.T) {
	zone := domain.Zone{
		ID: 1, OwnerID: 7, Name: "Tokyo Station",
		Boundary:     tokyoRect,
		AlertOnEnter: true, AlertOnExit: true, Active: true,
	}
	rig := newTestRig(t, []domain.Zone{zone})
	alerts := rig.hub.Subscribe(hub.TopicAlerts)

	type alertMsg struct {
		Type      string `json:"type"`
		AlertType string `json:"alert_type"`
		VehicleID string `json:"vehicle_id"`
		ZoneID    int64  `json:"geofence_id"`
	}

	// inside -> one enter alert
	if err := rig.processor.Ingest(telemetry("V1", 35.67, 139.73)); err != nil {
		t.Fatal(err)
	}
	var enter alertMsg
	if err := json.Unmarshal(receive(t, alerts), &enter); err != nil {
		t.Fatal(err)
	}
	if enter.Type != "alert" || enter.AlertType != "geofence_enter" || enter.VehicleID != "V1" || enter.ZoneID != 1 {
		t.Fatalf("enter alert = %+v", enter)
	}

	// outside -> one exit alert, not suppressed by the recent enter
	if err := rig.processor.Ingest(telemetry("V1", 35.67, 139.90)); err != nil {
		t.Fatal(err)
	}
	var exit alertMsg
	if err := json.Unmarshal(receive(t, alerts), &exit); err != nil {
		t.Fatal(err)
	}
	if exit.AlertType != "geofence_exit" {
		t.Fatalf("exit alert = %+v", exit)
	}

	// re-enter within the cooldown of the first enter -> suppressed
	if err := rig.processor.Ingest(telemetry("V1", 35.67, 139.73)); err != nil {
		t.Fatal(err)
	}
	expectNoMessage(t, alerts)

	if len(rig.alertStore.inserted) != 2 {
		t.Fatalf("persisted alerts = %d, want 2", len(rig.alertStore.inserted))
	}
}

func TestScenario_ManyUpdatesInsideYieldOneAlert(t *testing.T) {
	zone := domain.Zone{
		ID: 1, OwnerID: 7, Name: "Tokyo Station",
		Boundary:     tokyoRect,
		AlertOnEnter: true, AlertOnExit: true, Active: true,
	}
	rig := newTestRig(t, []domain.Zone{zone})
	telemetrySub := rig.hub.Subscribe(hub.TopicTelemetry)

	for i := 0; i < 10; i++ {
		if err := rig.processor.Ingest(telemetry("V1", 35.67, 139.73)); err != nil {
			t.Fatal(err)
		}
	}
	// drain telemetry to confirm all ten were processed
	for i := 0; i < 10; i++ {
		receive(t, telemetrySub)
	}

	if len(rig.alertStore.inserted) != 1 {
		t.Fatalf("persisted alerts = %d, want exactly 1 per cooldown window", len(rig.alertStore.inserted))
	}
}
