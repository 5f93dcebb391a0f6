// Package alert converts zone transitions into persisted, published alerts.
//
// Cooldown state lives in memory keyed by (vehicle, zone, kind), matching the
// persisted-alert history only on a best-effort basis: a restart resets the
// cooldown clock and can produce one duplicate alert shortly after a
// deployment. Delivery is at-most-once per occurrence, never exactly-once.
package alert

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"fleet-monitor/realtime/internal/domain"
	"fleet-monitor/realtime/internal/metrics"
)

// Store persists alerts. An alert must be durably recorded before it is
// published, so the UI never shows alerts that vanish on reload.
type Store interface {
	InsertAlert(ctx context.Context, a *domain.Alert) (int64, error)
}

// Publisher delivers an accepted alert to a notification channel.
type Publisher interface {
	PublishAlert(ctx context.Context, a *domain.Alert) error
}

type Dispatcher struct {
	store      Store
	publishers []Publisher
	cooldown   time.Duration
	log        *logrus.Logger

	mu        sync.Mutex
	lastAlert map[string]time.Time

	now func() time.Time
}

func NewDispatcher(store Store, cooldown time.Duration, log *logrus.Logger, publishers ...Publisher) *Dispatcher {
	return &Dispatcher{
		store:      store,
		publishers: publishers,
		cooldown:   cooldown,
		log:        log,
		lastAlert:  make(map[string]time.Time),
		now:        time.Now,
	}
}

func cooldownKey(vehicleID string, zoneID int64, kind domain.TransitionKind) string {
	return fmt.Sprintf("%s|%d|%s", vehicleID, zoneID, kind)
}

// Dispatch applies the cooldown policy, persists the alert, then publishes
// it. Suppression is silent. A persistence failure drops this occurrence
// without updating the cooldown, so the next qualifying transition gets a
// fresh chance.
func (d *Dispatcher) Dispatch(ctx context.Context, vehicleID string, tr domain.Transition) {
	key := cooldownKey(vehicleID, tr.Zone.ID, tr.Kind)
	now := d.now()

	d.mu.Lock()
	last, seen := d.lastAlert[key]
	d.mu.Unlock()
	if seen && now.Sub(last) < d.cooldown {
		metrics.AlertsSuppressed.Add(1)
		return
	}

	a := buildAlert(vehicleID, tr, now)
	id, err := d.store.InsertAlert(ctx, a)
	if err != nil {
		metrics.AlertPersistFailed.Add(1)
		d.log.WithFields(logrus.Fields{
			"vehicle_id": vehicleID,
			"zone_id":    tr.Zone.ID,
			"kind":       tr.Kind,
			"error":      err,
		}).Error("alert persist failed, dropping occurrence")
		return
	}
	a.ID = id

	d.mu.Lock()
	d.lastAlert[key] = now
	d.mu.Unlock()
	metrics.AlertsCreated.Add(1)

	for _, pub := range d.publishers {
		if err := pub.PublishAlert(ctx, a); err != nil {
			d.log.WithFields(logrus.Fields{
				"alert_id": a.ID,
				"error":    err,
			}).Warn("alert publish failed")
		}
	}
}

func buildAlert(vehicleID string, tr domain.Transition, now time.Time) *domain.Alert {
	verb := "entered"
	kind := domain.AlertZoneEnter
	title := "Vehicle Entered Zone"
	if tr.Kind == domain.TransitionExit {
		verb = "exited"
		kind = domain.AlertZoneExit
		title = "Vehicle Exited Zone"
	}

	return &domain.Alert{
		Kind:      kind,
		Title:     title,
		Message:   fmt.Sprintf("Vehicle %s has %s geofence '%s'", vehicleID, verb, tr.Zone.Name),
		Severity:  domain.SeverityInfo,
		VehicleID: vehicleID,
		ZoneID:    tr.Zone.ID,
		OwnerID:   tr.Zone.OwnerID,
		CreatedAt: now,
	}
}
