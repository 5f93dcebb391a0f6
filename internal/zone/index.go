// Package zone maintains the working set of active zones for evaluation.
// The hot telemetry path only ever reads an immutable snapshot; refresh
// builds a new snapshot off to the side and swaps it in atomically.
package zone

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"fleet-monitor/realtime/internal/domain"
	"fleet-monitor/realtime/internal/geo"
	"fleet-monitor/realtime/internal/metrics"
)

// Source lists the active zones from the owning persistence layer.
type Source interface {
	ListActiveZones(ctx context.Context) ([]domain.Zone, error)
}

type snapshot struct {
	all     []domain.Zone
	byOwner map[int64][]domain.Zone
}

var emptySnapshot = &snapshot{byOwner: map[int64][]domain.Zone{}}

type Index struct {
	source   Source
	interval time.Duration
	log      *logrus.Logger

	snap atomic.Pointer[snapshot]
}

func NewIndex(source Source, interval time.Duration, log *logrus.Logger) *Index {
	idx := &Index{
		source:   source,
		interval: interval,
		log:      log,
	}
	idx.snap.Store(emptySnapshot)
	return idx
}

// Refresh loads zones from the source and swaps in a new snapshot. On error
// the previous snapshot keeps serving.
func (idx *Index) Refresh(ctx context.Context) error {
	zones, err := idx.source.ListActiveZones(ctx)
	if err != nil {
		metrics.ZoneRefreshFailures.Add(1)
		return fmt.Errorf("list active zones: %w", err)
	}

	next := &snapshot{
		all:     make([]domain.Zone, 0, len(zones)),
		byOwner: make(map[int64][]domain.Zone),
	}
	for _, z := range zones {
		if !z.Active {
			continue
		}
		if err := geo.ValidateRing(z.Boundary); err != nil {
			idx.log.WithFields(logrus.Fields{
				"zone_id": z.ID,
				"error":   err,
			}).Warn("skipping zone with invalid boundary")
			continue
		}
		next.all = append(next.all, z)
		next.byOwner[z.OwnerID] = append(next.byOwner[z.OwnerID], z)
	}

	idx.snap.Store(next)
	return nil
}

// Run refreshes once immediately, then on every tick until ctx is cancelled.
// Refresh errors are logged and never propagate into telemetry processing.
func (idx *Index) Run(ctx context.Context) {
	if err := idx.Refresh(ctx); err != nil {
		idx.log.WithError(err).Error("initial zone refresh failed")
	}

	ticker := time.NewTicker(idx.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := idx.Refresh(ctx); err != nil {
				idx.log.WithError(err).Error("zone refresh failed, serving stale snapshot")
			}
		case <-ctx.Done():
			return
		}
	}
}

// All returns every active zone in the current snapshot. Callers must not
// mutate the returned slice.
func (idx *Index) All() []domain.Zone {
	return idx.snap.Load().all
}

// ByOwner returns the active zones for one owner.
func (idx *Index) ByOwner(ownerID int64) []domain.Zone {
	return idx.snap.Load().byOwner[ownerID]
}
