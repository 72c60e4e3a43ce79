/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: generator_test.go
Description: Unit tests for the random-walk scenario generator: seeded determinism,
scenario and step budgets, link following, variant preference, and warmup case
construction.
*/

package stateful_test

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/kleascm/akaylee-explorer/pkg/apigraph"
	"github.com/kleascm/akaylee-explorer/pkg/interfaces"
	"github.com/kleascm/akaylee-explorer/pkg/stateful"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func paramSchema(typ string) *openapi3.SchemaRef {
	return openapi3.NewSchemaRef("", &openapi3.Schema{Type: &openapi3.Types{typ}})
}

func walkOperations() map[string]*interfaces.APIOperation {
	return map[string]*interfaces.APIOperation{
		"POST /users": {
			Method: "POST",
			Path:   "/users",
			RequestBody: openapi3.NewSchemaRef("", &openapi3.Schema{
				Type: &openapi3.Types{openapi3.TypeObject},
				Properties: openapi3.Schemas{
					"name": paramSchema(openapi3.TypeString),
					"age":  paramSchema(openapi3.TypeInteger),
				},
			}),
			Responses: map[string]*interfaces.APIResponse{"201": {}},
		},
		"GET /users/{userId}": {
			Method: "GET",
			Path:   "/users/{userId}",
			Parameters: []interfaces.APIParameter{
				{Name: "userId", Location: interfaces.LocationPath, Required: true, Schema: paramSchema(openapi3.TypeString)},
				{Name: "verbose", Location: interfaces.LocationQuery, Required: true, Schema: paramSchema(openapi3.TypeBoolean)},
			},
			Responses: map[string]*interfaces.APIResponse{"200": {}},
		},
	}
}

func userLink() interfaces.LinkDefinition {
	return interfaces.LinkDefinition{
		Name:         "UserGet",
		OperationRef: "#/paths/~1users~1{userId}/get",
		Parameters:   map[string]string{"path.userId": "$response.body#/id"},
		Inferred:     true,
	}
}

func TestGeneratorDeterministicForSeed(t *testing.T) {
	build := func() *interfaces.Case {
		g := stateful.NewRandomWalkGenerator(walkOperations(), make(apigraph.LinkIndex), nil, nil, 5, 10)
		g.BeginSuite(42)
		require.True(t, g.NextScenario())
		input, err := g.NextStep(nil)
		require.NoError(t, err)
		require.NotNil(t, input)
		return input.Case
	}

	first := build()
	second := build()
	assert.Equal(t, first.Operation, second.Operation)
	assert.Equal(t, first.PathParams, second.PathParams)
	assert.Equal(t, first.Query, second.Query)
	assert.Equal(t, first.Body, second.Body)
}

func TestGeneratorScenarioBudget(t *testing.T) {
	g := stateful.NewRandomWalkGenerator(walkOperations(), make(apigraph.LinkIndex), nil, nil, 5, 3)
	g.BeginSuite(1)
	for i := 0; i < 3; i++ {
		assert.True(t, g.NextScenario())
	}
	assert.False(t, g.NextScenario())

	// A fresh suite resets the budget.
	g.BeginSuite(2)
	assert.True(t, g.NextScenario())
}

func TestGeneratorStepBudget(t *testing.T) {
	g := stateful.NewRandomWalkGenerator(walkOperations(), make(apigraph.LinkIndex), nil, nil, 1, 10)
	g.BeginSuite(1)
	require.True(t, g.NextScenario())

	input, err := g.NextStep(nil)
	require.NoError(t, err)
	require.NotNil(t, input)

	next, err := g.NextStep(&interfaces.StepOutput{
		Case:     input.Case,
		Response: &interfaces.Response{StatusCode: 200},
	})
	require.NoError(t, err)
	assert.Nil(t, next)
}

func TestGeneratorFollowsLinks(t *testing.T) {
	links := make(apigraph.LinkIndex)
	links.Add("POST /users", "201", userLink())

	layers := [][]string{{"POST /users"}, {"GET /users/{userId}"}}
	g := stateful.NewRandomWalkGenerator(walkOperations(), links, layers, nil, 5, 10)
	g.BeginSuite(7)
	require.True(t, g.NextScenario())

	first, err := g.NextStep(nil)
	require.NoError(t, err)
	require.NotNil(t, first)
	// Scenario roots come from the first dependency layer.
	assert.Equal(t, "POST /users", first.Case.Operation)
	assert.Nil(t, first.Transition)
	require.NotNil(t, first.Case.Body)

	second, err := g.NextStep(&interfaces.StepOutput{
		Case:     first.Case,
		Response: &interfaces.Response{StatusCode: 201, Body: []byte(`{"id": "u1"}`)},
	})
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, "GET /users/{userId}", second.Case.Operation)
	require.NotNil(t, second.Transition)
	assert.Equal(t, first.Case.ID, second.Transition.ParentID)
	assert.Equal(t, "UserGet", second.Transition.Link.Name)

	// Declared parameters are pre-bound; the engine overwrites the linked
	// slot after expression evaluation.
	assert.NotEmpty(t, second.Case.PathParams["userId"])
	assert.NotEmpty(t, second.Case.Query["verbose"])
}

func TestGeneratorEndsScenarioWithoutUsableLinks(t *testing.T) {
	g := stateful.NewRandomWalkGenerator(walkOperations(), make(apigraph.LinkIndex), nil, nil, 5, 10)
	g.BeginSuite(1)
	require.True(t, g.NextScenario())
	first, err := g.NextStep(nil)
	require.NoError(t, err)

	// No outgoing links for the response: the walk ends.
	next, err := g.NextStep(&interfaces.StepOutput{
		Case:     first.Case,
		Response: &interfaces.Response{StatusCode: 200},
	})
	require.NoError(t, err)
	assert.Nil(t, next)

	// Links into operations missing from the schema are skipped.
	links := make(apigraph.LinkIndex)
	links.Add("POST /users", "201", interfaces.LinkDefinition{
		Name:         "Ghost",
		OperationRef: "#/paths/~1ghosts~1{ghostId}/get",
	})
	g = stateful.NewRandomWalkGenerator(walkOperations(), links, nil, nil, 5, 10)
	g.BeginSuite(1)
	require.True(t, g.NextScenario())
	next, err = g.NextStep(&interfaces.StepOutput{
		Case:     &interfaces.Case{ID: "c1", Operation: "POST /users"},
		Response: &interfaces.Response{StatusCode: 201},
	})
	require.NoError(t, err)
	assert.Nil(t, next)
}

func TestGeneratorStepWithoutResponseEndsScenario(t *testing.T) {
	g := stateful.NewRandomWalkGenerator(walkOperations(), make(apigraph.LinkIndex), nil, nil, 5, 10)
	g.BeginSuite(1)
	require.True(t, g.NextScenario())
	first, err := g.NextStep(nil)
	require.NoError(t, err)

	next, err := g.NextStep(&interfaces.StepOutput{Case: first.Case, Status: interfaces.StepErrored})
	require.NoError(t, err)
	assert.Nil(t, next)
}

func TestGeneratorUnsatisfiableWithoutOperations(t *testing.T) {
	g := stateful.NewRandomWalkGenerator(map[string]*interfaces.APIOperation{}, make(apigraph.LinkIndex), nil, nil, 5, 10)
	g.BeginSuite(1)
	require.True(t, g.NextScenario())

	_, err := g.NextStep(nil)
	assert.ErrorIs(t, err, interfaces.ErrUnsatisfiable)
}

// fixedPicker always offers the same captured variant.
type fixedPicker struct {
	values map[string]interface{}
}

func (p *fixedPicker) SelectVariant(rng *rand.Rand, operation string, location interfaces.ParameterLocation, schema *openapi3.Schema) map[string]interface{} {
	return p.values
}

func TestGeneratorPrefersCapturedVariants(t *testing.T) {
	picker := &fixedPicker{values: map[string]interface{}{"userId": "captured-id"}}
	layers := [][]string{{"GET /users/{userId}"}}
	g := stateful.NewRandomWalkGenerator(walkOperations(), make(apigraph.LinkIndex), layers, picker, 5, 10)
	g.BeginSuite(3)
	require.True(t, g.NextScenario())

	input, err := g.NextStep(nil)
	require.NoError(t, err)
	require.NotNil(t, input)
	assert.Equal(t, "captured-id", input.Case.PathParams["userId"])
}

func TestGeneratorSeedCaseWithOwnedSources(t *testing.T) {
	g := stateful.NewRandomWalkGenerator(walkOperations(), make(apigraph.LinkIndex), nil, nil, 5, 10)

	// Equal seeds reproduce the same case shape.
	first := g.SeedCaseWith(rand.New(rand.NewSource(9)), "GET /users/{userId}")
	second := g.SeedCaseWith(rand.New(rand.NewSource(9)), "GET /users/{userId}")
	require.NotNil(t, first)
	assert.Equal(t, first.PathParams, second.PathParams)
	assert.Equal(t, first.Query, second.Query)

	// Warmup workers share the generator but each hold their own source.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for j := 0; j < 50; j++ {
				c := g.SeedCaseWith(rng, "POST /users")
				if c == nil || c.Body == nil {
					t.Error("seed case missing body")
					return
				}
			}
		}(int64(i))
	}
	wg.Wait()
}

func TestGeneratorLeavesLinkIndexOrderIntact(t *testing.T) {
	links := make(apigraph.LinkIndex)
	links.Add("POST /users", "201", userLink())
	audit := userLink()
	audit.Name = "UserAudit"
	links.Add("POST /users", "201", audit)

	var before []string
	for _, l := range links.From("POST /users", 201) {
		before = append(before, l.Name)
	}

	g := stateful.NewRandomWalkGenerator(walkOperations(), links, nil, nil, 5, 10)
	for seed := int64(0); seed < 10; seed++ {
		g.BeginSuite(seed)
		require.True(t, g.NextScenario())
		_, err := g.NextStep(&interfaces.StepOutput{
			Case:     &interfaces.Case{ID: "c1", Operation: "POST /users"},
			Response: &interfaces.Response{StatusCode: 201, Body: []byte(`{"id": "u1"}`)},
		})
		require.NoError(t, err)
	}

	// The walk shuffles a copy; the index keeps its insertion order.
	var after []string
	for _, l := range links.From("POST /users", 201) {
		after = append(after, l.Name)
	}
	assert.Equal(t, before, after)
}

func TestGeneratorSeedCase(t *testing.T) {
	g := stateful.NewRandomWalkGenerator(walkOperations(), make(apigraph.LinkIndex), nil, nil, 5, 10)

	c := g.SeedCase("GET /users/{userId}")
	require.NotNil(t, c)
	assert.Equal(t, "GET /users/{userId}", c.Operation)
	assert.NotEmpty(t, c.PathParams["userId"])

	assert.Nil(t, g.SeedCase("GET /missing"))
}
