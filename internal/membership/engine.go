// Package membership tracks which zones each vehicle is currently inside and
// turns containment changes into enter/exit transitions.
package membership

import (
	"hash/fnv"
	"sync"

	"fleet-monitor/realtime/internal/domain"
	"fleet-monitor/realtime/internal/geo"
)

const shardCount = 32

type shard struct {
	mu sync.Mutex
	// vehicle id -> zone id -> currently inside
	inside map[string]map[int64]bool
}

// Engine owns the only mutable state of the membership layer: a derived,
// process-lifetime cache of (vehicle, zone) containment booleans. It is not
// a source of truth; a restart starts every vehicle as outside.
type Engine struct {
	shards [shardCount]shard
}

func NewEngine() *Engine {
	e := &Engine{}
	for i := range e.shards {
		e.shards[i].inside = make(map[string]map[int64]bool)
	}
	return e
}

func (e *Engine) shardFor(vehicleID string) *shard {
	h := fnv.New32a()
	h.Write([]byte(vehicleID))
	return &e.shards[h.Sum32()%shardCount]
}

// Evaluate tests the position against every candidate zone and returns the
// transitions whose alert flag is set. Containment state updates
// unconditionally so membership stays correct even for zones that never
// alert. A vehicle with no prior state counts as outside, so a vehicle first
// seen inside a zone fires an enter transition on that first update.
func (e *Engine) Evaluate(vehicleID string, lat, lng float64, zones []domain.Zone) []domain.Transition {
	sh := e.shardFor(vehicleID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	states, ok := sh.inside[vehicleID]
	if !ok {
		states = make(map[int64]bool, len(zones))
		sh.inside[vehicleID] = states
	}

	var transitions []domain.Transition
	for _, z := range zones {
		isInside := geo.PointInRing(lat, lng, z.Boundary)
		wasInside := states[z.ID]
		states[z.ID] = isInside

		switch {
		case isInside && !wasInside:
			if z.AlertOnEnter {
				transitions = append(transitions, domain.Transition{Zone: z, Kind: domain.TransitionEnter})
			}
		case !isInside && wasInside:
			if z.AlertOnExit {
				transitions = append(transitions, domain.Transition{Zone: z, Kind: domain.TransitionExit})
			}
		}
	}
	return transitions
}

// Forget drops all containment state for a vehicle, e.g. after a silence
// timeout. The next update re-evaluates it as first seen.
func (e *Engine) Forget(vehicleID string) {
	sh := e.shardFor(vehicleID)
	sh.mu.Lock()
	delete(sh.inside, vehicleID)
	sh.mu.Unlock()
}
