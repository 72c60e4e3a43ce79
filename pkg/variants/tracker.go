/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: tracker.go
Description: Recency-weighted usage tracking for captured variants. Recently drawn
variants are disfavored but never excluded, so exploration keeps revisiting old
values at a reduced rate. Bounded by LRU eviction at draw-recording time.
*/

package variants

import (
	"math/rand"
	"sync"
)

// DefaultDecay is the recency decay constant: a variant drawn `decay`
// steps ago carries weight 0.5.
const DefaultDecay = 8.0

// DefaultMaxTracked caps how many variant keys the tracker remembers.
const DefaultMaxTracked = 4096

// UsageTracker assigns selection weights to variant keys based on how
// recently each was drawn: weight = age / (age + decay), with unseen keys
// at full weight 1.0. All access goes through one mutex; call volume is
// bounded by request rate, not a hot loop.
type UsageTracker struct {
	mu        sync.Mutex
	decay     float64
	max       int
	step      uint64
	lastDrawn map[string]uint64
	order     []string // draw order, oldest first
}

// NewUsageTracker creates a tracker with the given capacity and decay.
// Non-positive arguments fall back to the defaults.
func NewUsageTracker(max int, decay float64) *UsageTracker {
	if max <= 0 {
		max = DefaultMaxTracked
	}
	if decay <= 0 {
		decay = DefaultDecay
	}
	return &UsageTracker{
		decay:     decay,
		max:       max,
		lastDrawn: make(map[string]uint64),
	}
}

// WeightedSelect draws one index from keys, disfavoring recently used
// entries. The candidate order is shuffled before the weighted draw so
// the underlying random source cannot systematically favor low indices.
// Returns -1 for an empty candidate list. Does not record the draw;
// callers confirm with RecordDraw.
func (t *UsageTracker) WeightedSelect(rng *rand.Rand, keys []string) int {
	if len(keys) == 0 {
		return -1
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	perm := rng.Perm(len(keys))
	total := 0.0
	weights := make([]float64, len(keys))
	for i, key := range keys {
		weights[i] = t.weightLocked(key)
		total += weights[i]
	}
	if total == 0 {
		// Everything was just drawn; fall back to a uniform pick.
		return perm[0]
	}

	target := rng.Float64() * total
	for _, idx := range perm {
		target -= weights[idx]
		if target < 0 {
			return idx
		}
	}
	return perm[len(perm)-1]
}

// RecordDraw marks a key as drawn at the current step and evicts the
// least recently drawn keys beyond capacity. Eviction happens only here,
// after selection, so it can never remove a value needed by the current
// draw.
func (t *UsageTracker) RecordDraw(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.step++
	if _, seen := t.lastDrawn[key]; seen {
		for i, existing := range t.order {
			if existing == key {
				t.order = append(t.order[:i], t.order[i+1:]...)
				break
			}
		}
	}
	t.lastDrawn[key] = t.step
	t.order = append(t.order, key)

	for len(t.order) > t.max {
		evicted := t.order[0]
		t.order = t.order[1:]
		delete(t.lastDrawn, evicted)
	}
}

// Size returns the number of tracked keys.
func (t *UsageTracker) Size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.order)
}

func (t *UsageTracker) weightLocked(key string) float64 {
	last, seen := t.lastDrawn[key]
	if !seen {
		return 1.0
	}
	age := float64(t.step - last)
	return age / (age + t.decay)
}
