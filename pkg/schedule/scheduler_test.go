/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: scheduler_test.go
Description: Unit tests for the barrier scheduler: layer-ordered dispatch,
exactly-once claiming under concurrent workers, and progress counters.
*/

package schedule_test

import (
	"sync"
	"testing"

	"github.com/kleascm/akaylee-explorer/pkg/interfaces"
	"github.com/kleascm/akaylee-explorer/pkg/schedule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func schedulerGraph() (*interfaces.DependencyGraph, [][]string) {
	graph := &interfaces.DependencyGraph{
		Operations: map[string]*interfaces.OperationNode{
			"POST /users":          {Method: "POST", Path: "/users"},
			"POST /projects":       {Method: "POST", Path: "/projects"},
			"GET /users/{userId}":  {Method: "GET", Path: "/users/{userId}"},
			"DELETE /users/{userId}": {Method: "DELETE", Path: "/users/{userId}"},
		},
	}
	layers := [][]string{
		{"POST /projects", "POST /users"},
		{"DELETE /users/{userId}", "GET /users/{userId}"},
	}
	return graph, layers
}

func TestSchedulerDispatchOrder(t *testing.T) {
	graph, layers := schedulerGraph()
	scheduler := schedule.NewLayeredScheduler(graph, layers)

	assert.Equal(t, 4, scheduler.Remaining())

	var order []string
	for {
		node := scheduler.NextOperation()
		if node == nil {
			break
		}
		order = append(order, node.Label())
	}
	assert.Equal(t, []string{
		"POST /projects", "POST /users",
		"DELETE /users/{userId}", "GET /users/{userId}",
	}, order)
	assert.Equal(t, int64(4), scheduler.Dispatched())
	assert.Equal(t, 0, scheduler.Remaining())
	assert.Nil(t, scheduler.NextOperation())
}

func TestSchedulerConcurrentWorkersClaimExactlyOnce(t *testing.T) {
	graph, layers := schedulerGraph()
	scheduler := schedule.NewLayeredScheduler(graph, layers)

	var mu sync.Mutex
	claims := make(map[string]int)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				node := scheduler.NextOperation()
				if node == nil {
					return
				}
				mu.Lock()
				claims[node.Label()]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, claims, 4)
	for label, count := range claims {
		assert.Equal(t, 1, count, "operation %s", label)
	}
	assert.Equal(t, int64(4), scheduler.Dispatched())
}

func TestSchedulerEmptyLayers(t *testing.T) {
	graph, _ := schedulerGraph()
	assert.Nil(t, schedule.NewLayeredScheduler(graph, nil).NextOperation())
	assert.Nil(t, schedule.NewLayeredScheduler(graph, [][]string{{}, {}}).NextOperation())
}
