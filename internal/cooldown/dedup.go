package cooldown

import (
	"sync"
	"time"

	"nocalert/internal/domain"
)

// Deduplicator collapses near-identical repeated raises of one fingerprint.
// Params: rolling similarity window distinct from the cooldown table.
// Returns: coarse always-on suppression backstop.
type Deduplicator struct {
	mu     sync.Mutex
	window time.Duration
	recent map[string]time.Time
	now    func() time.Time
}

// NewDeduplicator creates fingerprint deduplicator.
// Params: similarity window and clock function.
// Returns: initialized deduplicator.
func NewDeduplicator(window time.Duration, now func() time.Time) *Deduplicator {
	if window <= 0 {
		window = 60 * time.Second
	}
	if now == nil {
		now = time.Now
	}
	return &Deduplicator{
		window: window,
		recent: make(map[string]time.Time),
		now:    now,
	}
}

// IsDuplicate reports whether the key repeats a recent raise and refreshes its fingerprint.
// Params: alert key to fingerprint.
// Returns: true when a raise for the same fingerprint landed inside the window.
func (d *Deduplicator) IsDuplicate(key domain.AlertKey) bool {
	fingerprint := key.Fingerprint()
	now := d.now()

	d.mu.Lock()
	defer d.mu.Unlock()

	if last, ok := d.recent[fingerprint]; ok && now.Sub(last) < d.window {
		d.recent[fingerprint] = now
		return true
	}
	d.recent[fingerprint] = now
	return false
}

// Record registers one fingerprint without a duplicate check.
// Params: alert key to fingerprint.
// Returns: fingerprint timestamp refreshed.
func (d *Deduplicator) Record(key domain.AlertKey) {
	d.mu.Lock()
	d.recent[key.Fingerprint()] = d.now()
	d.mu.Unlock()
}

// Cleanup removes fingerprints older than the given age.
// Params: maximum fingerprint age.
// Returns: number of removed fingerprints.
func (d *Deduplicator) Cleanup(maxAge time.Duration) int {
	cutoff := d.now().Add(-maxAge)

	d.mu.Lock()
	defer d.mu.Unlock()
	removed := 0
	for fingerprint, seen := range d.recent {
		if seen.Before(cutoff) {
			delete(d.recent, fingerprint)
			removed++
		}
	}
	return removed
}
