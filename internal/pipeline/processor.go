// Package pipeline moves each telemetry update through the core: state
// upsert, fan-out, zone evaluation, alert dispatch. Updates are routed to a
// worker by vehicle id hash, so one vehicle's updates are processed in
// arrival order while distinct vehicles proceed in parallel.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"fleet-monitor/realtime/internal/domain"
	"fleet-monitor/realtime/internal/hub"
	"fleet-monitor/realtime/internal/metrics"
	"fleet-monitor/realtime/internal/state"
)

type ZoneProvider interface {
	All() []domain.Zone
}

type AlertDispatcher interface {
	Dispatch(ctx context.Context, vehicleID string, tr domain.Transition)
}

// Mirror replicates live vehicle state to a secondary store for sibling
// services. Mirror failures never affect the update's own processing.
type Mirror interface {
	MirrorState(ctx context.Context, status *domain.VehicleStatus) error
}

type Processor struct {
	store        *state.Store
	zones        ZoneProvider
	engine       Evaluator
	alerts       AlertDispatcher
	hub          *hub.Hub
	mirror       Mirror
	log          *logrus.Logger
	maxOccupancy int

	queues []chan *domain.TelemetryUpdate
	wg     sync.WaitGroup
}

type Evaluator interface {
	Evaluate(vehicleID string, lat, lng float64, zones []domain.Zone) []domain.Transition
}

type Options struct {
	Workers      int
	QueueSize    int
	MaxOccupancy int
	Mirror       Mirror // optional
}

func NewProcessor(
	store *state.Store,
	zones ZoneProvider,
	engine Evaluator,
	alerts AlertDispatcher,
	h *hub.Hub,
	log *logrus.Logger,
	opts Options,
) *Processor {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1024
	}
	if opts.MaxOccupancy == 0 {
		opts.MaxOccupancy = 10
	}

	p := &Processor{
		store:        store,
		zones:        zones,
		engine:       engine,
		alerts:       alerts,
		hub:          h,
		mirror:       opts.Mirror,
		log:          log,
		maxOccupancy: opts.MaxOccupancy,
		queues:       make([]chan *domain.TelemetryUpdate, opts.Workers),
	}
	for i := range p.queues {
		p.queues[i] = make(chan *domain.TelemetryUpdate, opts.QueueSize)
	}
	return p
}

// Run starts one goroutine per queue and blocks until ctx is cancelled.
// Updates still queued at cancellation are discarded, not drained.
func (p *Processor) Run(ctx context.Context) {
	for _, q := range p.queues {
		p.wg.Add(1)
		go p.worker(ctx, q)
	}
	p.wg.Wait()
}

func (p *Processor) worker(ctx context.Context, q <-chan *domain.TelemetryUpdate) {
	defer p.wg.Done()
	for {
		select {
		case u := <-q:
			p.process(ctx, u)
		case <-ctx.Done():
			return
		}
	}
}

// Ingest validates the update and enqueues it for its vehicle's worker. A
// malformed update is rejected without touching any state. A full queue
// drops the update and counts it rather than blocking the producer.
func (p *Processor) Ingest(u *domain.TelemetryUpdate) error {
	if err := u.Validate(p.maxOccupancy); err != nil {
		metrics.TelemetryRejected.Add(1)
		return fmt.Errorf("invalid telemetry: %w", err)
	}
	metrics.TelemetryReceived.Add(1)

	if u.ReceivedAt.IsZero() {
		u.ReceivedAt = time.Now()
	}

	h := fnv.New32a()
	h.Write([]byte(u.VehicleID))
	q := p.queues[h.Sum32()%uint32(len(p.queues))]

	select {
	case q <- u:
	default:
		metrics.PipelineDrops.Add(1)
		p.log.WithField("vehicle_id", u.VehicleID).Warn("pipeline queue full, dropping update")
	}
	return nil
}

func (p *Processor) process(ctx context.Context, u *domain.TelemetryUpdate) {
	p.store.Upsert(u)

	payload, err := json.Marshal(u)
	if err == nil {
		p.hub.Publish(hub.TopicTelemetry, payload)
	}

	zones := p.zones.All()
	if len(zones) > 0 {
		transitions := p.engine.Evaluate(u.VehicleID, u.Location.Latitude, u.Location.Longitude, zones)
		for _, tr := range transitions {
			p.alerts.Dispatch(ctx, u.VehicleID, tr)
		}
	}

	if p.mirror != nil {
		status, ok := p.store.Get(u.VehicleID)
		if ok {
			if err := p.mirror.MirrorState(ctx, &status); err != nil {
				metrics.MirrorWriteFailures.Add(1)
				p.log.WithError(err).Warn("state mirror write failed")
			}
		}
	}
}
