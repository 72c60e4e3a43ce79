/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: failures.go
Description: Failure deduplication registries. Check failures are tracked at suite
and run granularity so re-discovering a known bug stays silent and exploration can
progress past it. Extraction failures deduplicate on failure shape across
scenarios, keeping only the first full diagnostic record.
*/

package stateful

import (
	"sync"

	"github.com/kleascm/akaylee-explorer/pkg/interfaces"
)

// FailureRegistry remembers which check failures have been seen in the
// current suite and across the whole run. A failure already known at
// either level is uninteresting; only genuinely new failures raise.
type FailureRegistry struct {
	mu        sync.Mutex
	suiteSeen map[interfaces.FailureKey]bool
	runSeen   map[interfaces.FailureKey]bool
}

// NewFailureRegistry creates an empty registry.
func NewFailureRegistry() *FailureRegistry {
	return &FailureRegistry{
		suiteSeen: make(map[interfaces.FailureKey]bool),
		runSeen:   make(map[interfaces.FailureKey]bool),
	}
}

// BeginSuite clears the suite-level set for a fresh suite attempt. The
// run-level set carries over so failures promoted by earlier suites stay
// suppressed.
func (r *FailureRegistry) BeginSuite() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.suiteSeen = make(map[interfaces.FailureKey]bool)
}

// Observe records a failure and reports whether it is new, i.e. unseen in
// both the current suite and the whole run. New failures are the ones the
// engine raises.
func (r *FailureRegistry) Observe(f *interfaces.Failure) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := f.Key()
	if r.suiteSeen[key] || r.runSeen[key] {
		r.suiteSeen[key] = true
		return false
	}
	r.suiteSeen[key] = true
	return true
}

// MarkSeen force-registers a failure at suite level without the newness
// check. Used for flaky classifications, which are discovered but
// unreliable.
func (r *FailureRegistry) MarkSeen(key interfaces.FailureKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.suiteSeen[key] = true
}

// PromoteSuiteToRun marks every failure of the finished suite as seen for
// the whole run and returns how many were not already known. Called before
// a suite retry so the next attempt suppresses them.
func (r *FailureRegistry) PromoteSuiteToRun() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	promoted := 0
	for key := range r.suiteSeen {
		if !r.runSeen[key] {
			r.runSeen[key] = true
			promoted++
		}
	}
	return promoted
}

// SuiteFailureCount returns how many distinct failures the current suite
// has observed.
func (r *FailureRegistry) SuiteFailureCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.suiteSeen)
}

// RunFailureCount returns how many distinct failures the run has promoted.
func (r *FailureRegistry) RunFailureCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.runSeen)
}

// ExtractionFailureLog collects declared-link extraction failures,
// deduplicated by shape so the same broken expression across many
// scenarios yields one diagnostic record.
type ExtractionFailureLog struct {
	mu       sync.Mutex
	seen     map[interfaces.ExtractionFailureKey]bool
	failures []*interfaces.ExtractionFailure
}

// NewExtractionFailureLog creates an empty log.
func NewExtractionFailureLog() *ExtractionFailureLog {
	return &ExtractionFailureLog{seen: make(map[interfaces.ExtractionFailureKey]bool)}
}

// Record stores a failure unless its shape was already seen. Returns true
// when the record was kept.
func (l *ExtractionFailureLog) Record(f *interfaces.ExtractionFailure) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := f.Key()
	if l.seen[key] {
		return false
	}
	l.seen[key] = true
	l.failures = append(l.failures, f)
	return true
}

// All returns the recorded failures in discovery order.
func (l *ExtractionFailureLog) All() []*interfaces.ExtractionFailure {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*interfaces.ExtractionFailure, len(l.failures))
	copy(out, l.failures)
	return out
}
