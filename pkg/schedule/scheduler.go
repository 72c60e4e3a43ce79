/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: scheduler.go
Description: Barrier-synchronized work queue over dependency layers. Workers pull
operations concurrently; a new layer only opens once the previous one is fully
claimed. Orders dispatch, not completion: callers needing completion ordering
add their own join barrier.
*/

package schedule

import (
	"sync"
	"time"

	"github.com/kleascm/akaylee-explorer/pkg/interfaces"
)

// LayeredScheduler hands out operations layer by layer. Safe for
// concurrent use by any number of workers; the single mutex protects both
// the cursor and the layer-advance barrier.
type LayeredScheduler struct {
	graph  *interfaces.DependencyGraph
	layers [][]string

	mu    sync.Mutex
	layer int
	index int

	// Performance tracking
	dispatched int64
	lastAccess time.Time
}

// NewLayeredScheduler builds a scheduler over precomputed layers. A nil
// or empty layer list produces a scheduler that is immediately exhausted.
func NewLayeredScheduler(graph *interfaces.DependencyGraph, layers [][]string) *LayeredScheduler {
	return &LayeredScheduler{graph: graph, layers: layers}
}

// NextOperation claims the next operation to dispatch. When the current
// layer is exhausted the scheduler advances to the next non-empty layer
// automatically; nil is returned only once every layer is drained.
func (s *LayeredScheduler) NextOperation() *interfaces.OperationNode {
	s.mu.Lock()
	defer s.mu.Unlock()

	for s.layer < len(s.layers) {
		if s.index < len(s.layers[s.layer]) {
			label := s.layers[s.layer][s.index]
			s.index++
			s.dispatched++
			s.lastAccess = time.Now()
			return s.graph.Operations[label]
		}
		s.layer++
		s.index = 0
	}
	return nil
}

// Dispatched returns how many operations have been claimed so far.
func (s *LayeredScheduler) Dispatched() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dispatched
}

// Remaining returns how many operations are still unclaimed.
func (s *LayeredScheduler) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	remaining := 0
	for layer := s.layer; layer < len(s.layers); layer++ {
		remaining += len(s.layers[layer])
		if layer == s.layer {
			remaining -= s.index
		}
	}
	return remaining
}
