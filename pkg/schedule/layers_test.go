/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: layers_test.go
Description: Unit tests for dependency layering: chain ordering, cycle collapse
through SCC condensation, the no-edges sentinel, and determinism.
*/

package schedule_test

import (
	"testing"

	"github.com/kleascm/akaylee-explorer/pkg/interfaces"
	"github.com/kleascm/akaylee-explorer/pkg/schedule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chainGraph() *interfaces.DependencyGraph {
	const (
		org  interfaces.ResourceRef = 0
		team interfaces.ResourceRef = 1
	)
	return &interfaces.DependencyGraph{
		Operations: map[string]*interfaces.OperationNode{
			"POST /orgs": {
				Method: "POST", Path: "/orgs",
				Outputs: []interfaces.OutputSlot{{Resource: org, Pointer: "/", StatusCode: "201"}},
			},
			"POST /orgs/{orgId}/teams": {
				Method: "POST", Path: "/orgs/{orgId}/teams",
				Inputs:  []interfaces.InputSlot{{Resource: org, ResourceField: "id", ParameterName: "orgId", Location: interfaces.LocationPath}},
				Outputs: []interfaces.OutputSlot{{Resource: team, Pointer: "/", StatusCode: "201"}},
			},
			"GET /teams/{teamId}": {
				Method: "GET", Path: "/teams/{teamId}",
				Inputs: []interfaces.InputSlot{{Resource: team, ResourceField: "id", ParameterName: "teamId", Location: interfaces.LocationPath}},
			},
		},
		Resources: []*interfaces.ResourceDefinition{
			{Name: "Org", Fields: []string{"id"}},
			{Name: "Team", Fields: []string{"id"}},
		},
	}
}

func TestComputeDependencyLayersChain(t *testing.T) {
	layers := schedule.ComputeDependencyLayers(chainGraph())
	require.Equal(t, [][]string{
		{"POST /orgs"},
		{"POST /orgs/{orgId}/teams"},
		{"GET /teams/{teamId}"},
	}, layers)
}

func TestComputeDependencyLayersNoEdges(t *testing.T) {
	graph := &interfaces.DependencyGraph{
		Operations: map[string]*interfaces.OperationNode{
			"GET /health":  {Method: "GET", Path: "/health"},
			"GET /version": {Method: "GET", Path: "/version"},
		},
	}
	assert.Nil(t, schedule.ComputeDependencyLayers(graph))
}

func TestComputeDependencyLayersCycle(t *testing.T) {
	const (
		r0 interfaces.ResourceRef = 0
		r1 interfaces.ResourceRef = 1
	)
	graph := &interfaces.DependencyGraph{
		Operations: map[string]*interfaces.OperationNode{
			"GET /a": {
				Method: "GET", Path: "/a",
				Inputs:  []interfaces.InputSlot{{Resource: r1, ResourceField: "id", ParameterName: "id", Location: interfaces.LocationQuery}},
				Outputs: []interfaces.OutputSlot{{Resource: r0, Pointer: "/", StatusCode: "200"}},
			},
			"GET /b": {
				Method: "GET", Path: "/b",
				Inputs:  []interfaces.InputSlot{{Resource: r0, ResourceField: "id", ParameterName: "id", Location: interfaces.LocationQuery}},
				Outputs: []interfaces.OutputSlot{{Resource: r1, Pointer: "/", StatusCode: "200"}},
			},
			"GET /c": {
				Method: "GET", Path: "/c",
				Inputs: []interfaces.InputSlot{{Resource: r0, ResourceField: "id", ParameterName: "id", Location: interfaces.LocationQuery}},
			},
		},
		Resources: []*interfaces.ResourceDefinition{
			{Name: "A", Fields: []string{"id"}},
			{Name: "B", Fields: []string{"id"}},
		},
	}

	layers := schedule.ComputeDependencyLayers(graph)
	require.Len(t, layers, 2)
	// The mutually dependent pair collapses into one layer.
	assert.Equal(t, []string{"GET /a", "GET /b"}, layers[0])
	assert.Equal(t, []string{"GET /c"}, layers[1])
}

func TestComputeDependencyLayersMutualPairCollapses(t *testing.T) {
	const sandbox interfaces.ResourceRef = 0
	graph := &interfaces.DependencyGraph{
		Operations: map[string]*interfaces.OperationNode{
			"POST /sandbox": {
				Method: "POST", Path: "/sandbox",
				Inputs:  []interfaces.InputSlot{{Resource: sandbox, ResourceField: "name", ParameterName: "name", Location: interfaces.LocationBody}},
				Outputs: []interfaces.OutputSlot{{Resource: sandbox, Pointer: "/", StatusCode: "201"}},
			},
			"GET /sandbox/{sandboxId}": {
				Method: "GET", Path: "/sandbox/{sandboxId}",
				Inputs:  []interfaces.InputSlot{{Resource: sandbox, ResourceField: "id", ParameterName: "sandboxId", Location: interfaces.LocationPath}},
				Outputs: []interfaces.OutputSlot{{Resource: sandbox, Pointer: "/", StatusCode: "200"}},
			},
		},
		Resources: []*interfaces.ResourceDefinition{
			{Name: "Sandbox", Fields: []string{"id", "name"}},
		},
	}

	// Two operations feeding each other collapse into exactly one layer.
	layers := schedule.ComputeDependencyLayers(graph)
	require.Equal(t, [][]string{
		{"GET /sandbox/{sandboxId}", "POST /sandbox"},
	}, layers)
}

func TestComputeDependencyLayersProducerThenCycle(t *testing.T) {
	const (
		user interfaces.ResourceRef = 0
		view interfaces.ResourceRef = 1
	)
	graph := &interfaces.DependencyGraph{
		Operations: map[string]*interfaces.OperationNode{
			"POST /users": {
				Method: "POST", Path: "/users",
				Outputs: []interfaces.OutputSlot{{Resource: user, Pointer: "/", StatusCode: "201"}},
			},
			"GET /users/{id}": {
				Method: "GET", Path: "/users/{id}",
				Inputs: []interfaces.InputSlot{
					{Resource: user, ResourceField: "id", ParameterName: "id", Location: interfaces.LocationPath},
					{Resource: view, ResourceField: "cursor", ParameterName: "cursor", Location: interfaces.LocationQuery},
				},
				Outputs: []interfaces.OutputSlot{{Resource: view, Pointer: "/", StatusCode: "200"}},
			},
			"PATCH /users/{id}": {
				Method: "PATCH", Path: "/users/{id}",
				Inputs: []interfaces.InputSlot{
					{Resource: user, ResourceField: "id", ParameterName: "id", Location: interfaces.LocationPath},
					{Resource: view, ResourceField: "cursor", ParameterName: "cursor", Location: interfaces.LocationQuery},
				},
				Outputs: []interfaces.OutputSlot{{Resource: view, Pointer: "/", StatusCode: "200"}},
			},
		},
		Resources: []*interfaces.ResourceDefinition{
			{Name: "User", Fields: []string{"id"}},
			{Name: "UserView", Fields: []string{"cursor"}},
		},
	}

	// The independent producer stays alone in layer zero; the mutually
	// dependent pair condenses and lands behind it.
	layers := schedule.ComputeDependencyLayers(graph)
	require.Equal(t, [][]string{
		{"POST /users"},
		{"GET /users/{id}", "PATCH /users/{id}"},
	}, layers)
}

func TestComputeDependencyLayersDeterministic(t *testing.T) {
	first := schedule.ComputeDependencyLayers(chainGraph())
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, schedule.ComputeDependencyLayers(chainGraph()))
	}
}
