package flapping

import (
	"log/slog"
	"math"
	"sync"
	"time"
)

// Transition is one recorded state change for an entity.
// Params: transition timestamp and the states on both sides.
// Returns: one history sample for flap analysis.
type Transition struct {
	At       time.Time `json:"timestamp"`
	OldState string    `json:"old_state"`
	NewState string    `json:"new_state"`
}

// Analysis is the flapping verdict for one entity at one instant.
// Params: in-window flap counters and derived stability metrics.
// Returns: oscillation assessment for router and dashboards.
type Analysis struct {
	IsFlapping     bool    `json:"is_flapping"`
	FlapCount      int     `json:"flap_count"`
	RatePerMinute  float64 `json:"flap_rate_per_minute"`
	StabilityScore float64 `json:"stability_score"`
	Recommendation string  `json:"recommendation"`
}

// entityState keeps the bounded transition ring and current state per entity.
// Params: fixed-capacity ring indexed by insertion order.
// Returns: mutable per-entity flap state.
type entityState struct {
	ring       []Transition
	head       int
	size       int
	current    string
	lastChange time.Time
}

// Detector counts genuine state oscillations per entity over a sliding window.
// Params: flap threshold, analysis window, ring capacity, and stability period.
// Returns: per-entity flap analysis under concurrent updates.
type Detector struct {
	mu              sync.Mutex
	threshold       int
	window          time.Duration
	historyCap      int
	stabilityPeriod time.Duration
	entities        map[string]*entityState
	logger          *slog.Logger
}

// NewDetector creates flap detector with bounded per-entity history.
// Params: flap threshold, trailing window, ring capacity, stability period, and optional logger.
// Returns: initialized detector.
func NewDetector(threshold int, window time.Duration, historyCap int, stabilityPeriod time.Duration, logger *slog.Logger) *Detector {
	if threshold <= 0 {
		threshold = 3
	}
	if window <= 0 {
		window = 300 * time.Second
	}
	if historyCap <= 0 {
		historyCap = 100
	}
	if stabilityPeriod <= 0 {
		stabilityPeriod = 600 * time.Second
	}
	return &Detector{
		threshold:       threshold,
		window:          window,
		historyCap:      historyCap,
		stabilityPeriod: stabilityPeriod,
		entities:        make(map[string]*entityState),
		logger:          logger,
	}
}

// RecordTransition records a state observation and analyzes for flapping.
// Params: entity id (device:interface style), observed state, and observation time.
// Returns: flap analysis after the update.
func (d *Detector) RecordTransition(entityID, newState string, at time.Time) Analysis {
	d.mu.Lock()
	defer d.mu.Unlock()

	entity, ok := d.entities[entityID]
	if !ok {
		d.entities[entityID] = &entityState{
			ring:       make([]Transition, 0, d.historyCap),
			current:    newState,
			lastChange: at,
		}
		return Analysis{
			StabilityScore: 1.0,
			Recommendation: "New entity, monitoring started",
		}
	}

	// Only genuine state changes append history.
	if entity.current != newState {
		entity.push(Transition{At: at, OldState: entity.current, NewState: newState}, d.historyCap)
		entity.current = newState
		entity.lastChange = at
	}

	return d.analyzeLocked(entity, at)
}

// IsFlapping reports whether entity currently exceeds the flap threshold.
// Params: entity id and evaluation time.
// Returns: true when in-window flap count reaches the threshold.
func (d *Detector) IsFlapping(entityID string, at time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	entity, ok := d.entities[entityID]
	if !ok {
		return false
	}
	return d.analyzeLocked(entity, at).IsFlapping
}

// CurrentState returns the last recorded state for one entity.
// Params: entity id.
// Returns: state string and existence flag.
func (d *Detector) CurrentState(entityID string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	entity, ok := d.entities[entityID]
	if !ok {
		return "", false
	}
	return entity.current, true
}

// History returns transitions not older than the given age, oldest first.
// Params: entity id, maximum age, and evaluation time.
// Returns: detached transition slice.
func (d *Detector) History(entityID string, maxAge time.Duration, at time.Time) []Transition {
	cutoff := at.Add(-maxAge)

	d.mu.Lock()
	defer d.mu.Unlock()
	entity, ok := d.entities[entityID]
	if !ok {
		return nil
	}
	out := make([]Transition, 0, entity.size)
	entity.each(func(transition Transition) {
		if !transition.At.Before(cutoff) {
			out = append(out, transition)
		}
	})
	return out
}

// Reset clears transition history for one entity keeping its current state.
// Params: entity id.
// Returns: history cleared side effect.
func (d *Detector) Reset(entityID string) {
	d.mu.Lock()
	entity, ok := d.entities[entityID]
	if ok {
		entity.ring = entity.ring[:0]
		entity.head = 0
		entity.size = 0
	}
	d.mu.Unlock()
	if ok && d.logger != nil {
		d.logger.Info("flap history reset", "entity", entityID)
	}
}

// FlappingEntities lists entities currently above the flap threshold.
// Params: evaluation time.
// Returns: entity id list in map order.
func (d *Detector) FlappingEntities(at time.Time) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	flapping := make([]string, 0)
	for entityID, entity := range d.entities {
		if d.analyzeLocked(entity, at).IsFlapping {
			flapping = append(flapping, entityID)
		}
	}
	return flapping
}

// analyzeLocked computes the flap verdict for one entity; caller holds the lock.
// Params: entity state and evaluation time.
// Returns: analysis over transitions inside the trailing window.
func (d *Detector) analyzeLocked(entity *entityState, at time.Time) Analysis {
	if entity.size < 2 {
		return Analysis{
			FlapCount:      entity.size,
			StabilityScore: 1.0,
			Recommendation: "Insufficient history",
		}
	}

	windowStart := at.Add(-d.window)
	var (
		count    int
		earliest time.Time
		latest   time.Time
	)
	entity.each(func(transition Transition) {
		if transition.At.Before(windowStart) {
			return
		}
		if count == 0 {
			earliest = transition.At
		}
		latest = transition.At
		count++
	})

	rate := 0.0
	if count >= 2 {
		span := latest.Sub(earliest).Seconds()
		if span > 0 {
			rate = float64(count) / span * 60
		}
	}

	isFlapping := count >= d.threshold

	var stability float64
	if isFlapping {
		stability = math.Max(0, 1.0-float64(count)/float64(d.threshold*2))
	} else {
		stability = math.Min(1.0, 0.5+(1.0-float64(count)/float64(d.threshold))*0.5)
	}

	var recommendation string
	switch {
	case isFlapping && rate > 10:
		recommendation = "CRITICAL: Severe flapping detected. Check physical connection immediately."
	case isFlapping && rate > 5:
		recommendation = "WARNING: Significant flapping. Investigate link stability."
	case isFlapping:
		recommendation = "Moderate flapping detected. Monitor for patterns."
	case at.Sub(entity.lastChange) > d.stabilityPeriod:
		recommendation = "Entity is stable."
	default:
		recommendation = "Monitoring for stability..."
	}

	return Analysis{
		IsFlapping:     isFlapping,
		FlapCount:      count,
		RatePerMinute:  math.Round(rate*100) / 100,
		StabilityScore: math.Round(stability*100) / 100,
		Recommendation: recommendation,
	}
}

// push appends one transition evicting the oldest entry on overflow.
// Params: transition and ring capacity.
// Returns: ring mutated in place.
func (e *entityState) push(transition Transition, capacity int) {
	if len(e.ring) < capacity {
		e.ring = append(e.ring, transition)
		e.size++
		return
	}
	e.ring[e.head] = transition
	e.head = (e.head + 1) % capacity
}

// each visits ring entries oldest first.
// Params: visitor callback.
// Returns: every stored transition visited in insertion order.
func (e *entityState) each(visit func(Transition)) {
	for i := 0; i < e.size; i++ {
		visit(e.ring[(e.head+i)%len(e.ring)])
	}
}
