/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: store_test.go
Description: Unit tests for the variant store: response capture through output
slots, value deduplication, and relationship-preserving multi-parameter variants
assembled from capture context.
*/

package variants_test

import (
	"math/rand"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/kleascm/akaylee-explorer/pkg/interfaces"
	"github.com/kleascm/akaylee-explorer/pkg/variants"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	projectRef interfaces.ResourceRef = 0
	taskRef    interfaces.ResourceRef = 1
)

func projectGraph() *interfaces.DependencyGraph {
	return &interfaces.DependencyGraph{
		Operations: map[string]*interfaces.OperationNode{
			"POST /projects": {
				Method: "POST", Path: "/projects",
				Outputs: []interfaces.OutputSlot{{Resource: projectRef, Pointer: "/", Cardinality: interfaces.One, StatusCode: "201"}},
			},
			"GET /projects/{projectId}": {
				Method: "GET", Path: "/projects/{projectId}",
				Inputs: []interfaces.InputSlot{
					{Resource: projectRef, ResourceField: "id", ParameterName: "projectId", Location: interfaces.LocationPath},
				},
			},
			"GET /projects/{projectId}/tasks": {
				Method: "GET", Path: "/projects/{projectId}/tasks",
				Inputs: []interfaces.InputSlot{
					{Resource: projectRef, ResourceField: "id", ParameterName: "projectId", Location: interfaces.LocationPath},
				},
				Outputs: []interfaces.OutputSlot{{Resource: taskRef, Pointer: "/", Cardinality: interfaces.Many, StatusCode: "200"}},
			},
			"GET /projects/{projectId}/tasks/{taskId}": {
				Method: "GET", Path: "/projects/{projectId}/tasks/{taskId}",
				Inputs: []interfaces.InputSlot{
					{Resource: projectRef, ResourceField: "id", ParameterName: "projectId", Location: interfaces.LocationPath},
					{Resource: taskRef, ResourceField: "id", ParameterName: "taskId", Location: interfaces.LocationPath},
				},
			},
		},
		Resources: []*interfaces.ResourceDefinition{
			{Name: "Project", Fields: []string{"id", "name"}},
			{Name: "Task", Fields: []string{"id"}},
		},
	}
}

func pathSchema(params ...string) *openapi3.Schema {
	props := make(openapi3.Schemas, len(params))
	for _, p := range params {
		props[p] = openapi3.NewSchemaRef("", &openapi3.Schema{Type: &openapi3.Types{openapi3.TypeString}})
	}
	return &openapi3.Schema{Type: &openapi3.Types{openapi3.TypeObject}, Properties: props}
}

func newProjectStore() *variants.Store {
	tracker := variants.NewUsageTracker(64, 8.0)
	return variants.NewStore(projectGraph(), tracker, nil)
}

func TestCaptureAndSingleVariants(t *testing.T) {
	store := newProjectStore()
	createCase := &interfaces.Case{Operation: "POST /projects", Method: "POST", Path: "/projects"}

	store.CaptureResponse("POST /projects", createCase, &interfaces.Response{
		StatusCode: 201, Body: []byte(`{"id": "p1", "name": "alpha"}`),
	})
	store.CaptureResponse("POST /projects", createCase, &interfaces.Response{
		StatusCode: 201, Body: []byte(`{"id": "p2", "name": "beta"}`),
	})
	// Same value again: deduplicated on lookup.
	store.CaptureResponse("POST /projects", createCase, &interfaces.Response{
		StatusCode: 201, Body: []byte(`{"id": "p1", "name": "alpha"}`),
	})

	got := store.GetCapturedVariants("GET /projects/{projectId}", interfaces.LocationPath, pathSchema("projectId"))
	assert.ElementsMatch(t, []map[string]interface{}{
		{"projectId": "p1"},
		{"projectId": "p2"},
	}, got)
}

func TestCaptureIgnoresMismatchedStatus(t *testing.T) {
	store := newProjectStore()
	c := &interfaces.Case{Operation: "POST /projects"}

	store.CaptureResponse("POST /projects", c, &interfaces.Response{
		StatusCode: 500, Body: []byte(`{"id": "bad"}`),
	})
	assert.Nil(t, store.GetCapturedVariants("GET /projects/{projectId}", interfaces.LocationPath, pathSchema("projectId")))

	store.CaptureResponse("POST /projects", c, &interfaces.Response{
		StatusCode: 201, Body: []byte(`not json`),
	})
	assert.Nil(t, store.GetCapturedVariants("GET /projects/{projectId}", interfaces.LocationPath, pathSchema("projectId")))
}

func TestMultiParameterVariantsPreserveRelationships(t *testing.T) {
	store := newProjectStore()

	store.CaptureResponse("POST /projects", &interfaces.Case{Operation: "POST /projects"}, &interfaces.Response{
		StatusCode: 201, Body: []byte(`{"id": "p1"}`),
	})

	// Tasks captured under project p1 carry that binding in their context.
	listCase := &interfaces.Case{
		Operation:  "GET /projects/{projectId}/tasks",
		PathParams: map[string]string{"projectId": "p1"},
	}
	store.CaptureResponse("GET /projects/{projectId}/tasks", listCase, &interfaces.Response{
		StatusCode: 200, Body: []byte(`[{"id": "t1"}, {"id": "t2"}]`),
	})

	got := store.GetCapturedVariants("GET /projects/{projectId}/tasks/{taskId}", interfaces.LocationPath, pathSchema("projectId", "taskId"))
	assert.ElementsMatch(t, []map[string]interface{}{
		{"projectId": "p1", "taskId": "t1"},
		{"projectId": "p1", "taskId": "t2"},
	}, got)
}

func TestMultiParameterVariantsAllOrNothing(t *testing.T) {
	store := newProjectStore()

	// A lone project instance cannot satisfy the task requirement and no
	// task instances exist, so the multi-parameter lookup yields nothing.
	store.CaptureResponse("POST /projects", &interfaces.Case{Operation: "POST /projects"}, &interfaces.Response{
		StatusCode: 201, Body: []byte(`{"id": "p1"}`),
	})
	got := store.GetCapturedVariants("GET /projects/{projectId}/tasks/{taskId}", interfaces.LocationPath, pathSchema("projectId", "taskId"))
	assert.Empty(t, got)
}

func TestSelectVariant(t *testing.T) {
	store := newProjectStore()
	rng := rand.New(rand.NewSource(7))

	assert.Nil(t, store.SelectVariant(rng, "GET /projects/{projectId}", interfaces.LocationPath, pathSchema("projectId")))

	store.CaptureResponse("POST /projects", &interfaces.Case{Operation: "POST /projects"}, &interfaces.Response{
		StatusCode: 201, Body: []byte(`{"id": "p1"}`),
	})

	picked := store.SelectVariant(rng, "GET /projects/{projectId}", interfaces.LocationPath, pathSchema("projectId"))
	require.NotNil(t, picked)
	assert.Equal(t, map[string]interface{}{"projectId": "p1"}, picked)
}

func TestVariantsIgnoreUnknownProperties(t *testing.T) {
	store := newProjectStore()
	store.CaptureResponse("POST /projects", &interfaces.Case{Operation: "POST /projects"}, &interfaces.Response{
		StatusCode: 201, Body: []byte(`{"id": "p1"}`),
	})

	// A schema whose properties match no input slot yields no requirements.
	assert.Nil(t, store.GetCapturedVariants("GET /projects/{projectId}", interfaces.LocationQuery, pathSchema("projectId")))
	assert.Nil(t, store.GetCapturedVariants("GET /projects/{projectId}", interfaces.LocationPath, pathSchema("unrelated")))
}
