/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: checks_test.go
Description: Unit tests for the default response checks: server error detection,
status code documentation, and response schema conformance.
*/

package checks_test

import (
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/kleascm/akaylee-explorer/pkg/checks"
	"github.com/kleascm/akaylee-explorer/pkg/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCase() *interfaces.Case {
	return &interfaces.Case{ID: "c1", Operation: "GET /users/{userId}", Method: "GET", Path: "/users/{userId}"}
}

func contextFor(op *interfaces.APIOperation) *interfaces.ValidationContext {
	return &interfaces.ValidationContext{Operation: op}
}

func TestNotAServerError(t *testing.T) {
	check := &checks.NotAServerError{}
	vctx := contextFor(nil)

	assert.Nil(t, check.Run(testCase(), &interfaces.Response{StatusCode: 200}, vctx))
	assert.Nil(t, check.Run(testCase(), &interfaces.Response{StatusCode: 404}, vctx))

	failure := check.Run(testCase(), &interfaces.Response{StatusCode: 503}, vctx)
	require.NotNil(t, failure)
	assert.Equal(t, "not_a_server_error", failure.Check)
	assert.Equal(t, "server error: 503", failure.Message)
	assert.Equal(t, "GET /users/{userId}", failure.Operation)
}

func TestStatusCodeConformance(t *testing.T) {
	check := &checks.StatusCodeConformance{}
	op := &interfaces.APIOperation{
		Method: "GET",
		Path:   "/users/{userId}",
		Responses: map[string]*interfaces.APIResponse{
			"200": {},
			"4XX": {},
		},
	}
	vctx := contextFor(op)

	assert.Nil(t, check.Run(testCase(), &interfaces.Response{StatusCode: 200}, vctx))
	// Wildcard entries document the whole class.
	assert.Nil(t, check.Run(testCase(), &interfaces.Response{StatusCode: 418}, vctx))

	failure := check.Run(testCase(), &interfaces.Response{StatusCode: 500}, vctx)
	require.NotNil(t, failure)
	assert.Equal(t, "undocumented status code: 500", failure.Message)

	// Operations without documented responses are out of scope.
	assert.Nil(t, check.Run(testCase(), &interfaces.Response{StatusCode: 500}, contextFor(nil)))
	assert.Nil(t, check.Run(testCase(), &interfaces.Response{StatusCode: 500}, contextFor(&interfaces.APIOperation{})))
}

func conformanceOperation() *interfaces.APIOperation {
	schema := &openapi3.Schema{
		Type: &openapi3.Types{openapi3.TypeObject},
		Properties: openapi3.Schemas{
			"id":   openapi3.NewSchemaRef("", &openapi3.Schema{Type: &openapi3.Types{openapi3.TypeString}}),
			"name": openapi3.NewSchemaRef("", &openapi3.Schema{Type: &openapi3.Types{openapi3.TypeString}}),
		},
		Required: []string{"id"},
	}
	return &interfaces.APIOperation{
		Method: "GET",
		Path:   "/users/{userId}",
		Responses: map[string]*interfaces.APIResponse{
			"200": {Schema: openapi3.NewSchemaRef("", schema)},
		},
	}
}

func TestResponseSchemaConformance(t *testing.T) {
	check := &checks.ResponseSchemaConformance{}
	vctx := contextFor(conformanceOperation())

	ok := &interfaces.Response{StatusCode: 200, Body: []byte(`{"id": "u1", "name": "ada"}`)}
	assert.Nil(t, check.Run(testCase(), ok, vctx))

	missing := &interfaces.Response{StatusCode: 200, Body: []byte(`{"name": "ada"}`)}
	failure := check.Run(testCase(), missing, vctx)
	require.NotNil(t, failure)
	assert.Equal(t, "response_schema_conformance", failure.Check)
	assert.Contains(t, failure.Message, "does not conform")

	wrongType := &interfaces.Response{StatusCode: 200, Body: []byte(`{"id": 42}`)}
	assert.NotNil(t, check.Run(testCase(), wrongType, vctx))
}

func TestResponseSchemaConformanceSkips(t *testing.T) {
	check := &checks.ResponseSchemaConformance{}
	vctx := contextFor(conformanceOperation())

	// Statuses without a schema, empty bodies, and absent operations all
	// pass without validation.
	assert.Nil(t, check.Run(testCase(), &interfaces.Response{StatusCode: 404, Body: []byte(`{}`)}, vctx))
	assert.Nil(t, check.Run(testCase(), &interfaces.Response{StatusCode: 200}, vctx))
	assert.Nil(t, check.Run(testCase(), &interfaces.Response{StatusCode: 200, Body: []byte(`{}`)}, contextFor(nil)))
}

func TestResponseSchemaConformanceNonJSONBody(t *testing.T) {
	check := &checks.ResponseSchemaConformance{}
	vctx := contextFor(conformanceOperation())

	failure := check.Run(testCase(), &interfaces.Response{StatusCode: 200, Body: []byte(`<html>`)}, vctx)
	require.NotNil(t, failure)
	assert.Equal(t, "response body is not valid JSON", failure.Message)
}

func TestDefaultChecksOrder(t *testing.T) {
	all := checks.DefaultChecks()
	require.Len(t, all, 3)
	assert.Equal(t, "not_a_server_error", all[0].Name())
	assert.Equal(t, "status_code_conformance", all[1].Name())
	assert.Equal(t, "response_schema_conformance", all[2].Name())
}
