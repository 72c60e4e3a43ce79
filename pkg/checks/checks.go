/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: checks.go
Description: Response checks run after every executed step. Each check is a pure
assertion over the case/response pair; a violated expectation comes back as a
structured Failure whose message doubles as its deduplication identity.
*/

package checks

import (
	"fmt"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/kleascm/akaylee-explorer/pkg/interfaces"
)

// DefaultChecks returns the standard check set in execution order.
func DefaultChecks() []interfaces.Check {
	return []interfaces.Check{
		&NotAServerError{},
		&StatusCodeConformance{},
		&ResponseSchemaConformance{},
	}
}

// NotAServerError fails on any 5xx response.
type NotAServerError struct{}

// Name implements interfaces.Check.
func (c *NotAServerError) Name() string { return "not_a_server_error" }

// Run implements interfaces.Check.
func (c *NotAServerError) Run(tc *interfaces.Case, r *interfaces.Response, vctx *interfaces.ValidationContext) *interfaces.Failure {
	if r.StatusCode < 500 {
		return nil
	}
	return &interfaces.Failure{
		Check:     c.Name(),
		Operation: tc.Operation,
		Message:   fmt.Sprintf("server error: %d", r.StatusCode),
		Response:  r,
	}
}

// StatusCodeConformance fails when the response status is not documented
// for the operation, counting wildcard ("2XX") and "default" entries as
// documentation.
type StatusCodeConformance struct{}

// Name implements interfaces.Check.
func (c *StatusCodeConformance) Name() string { return "status_code_conformance" }

// Run implements interfaces.Check.
func (c *StatusCodeConformance) Run(tc *interfaces.Case, r *interfaces.Response, vctx *interfaces.ValidationContext) *interfaces.Failure {
	op := vctx.Operation
	if op == nil || len(op.Responses) == 0 {
		return nil
	}
	if op.DocumentsStatus(r.StatusCode) {
		return nil
	}
	return &interfaces.Failure{
		Check:     c.Name(),
		Operation: tc.Operation,
		Message:   fmt.Sprintf("undocumented status code: %d", r.StatusCode),
		Response:  r,
	}
}

// ResponseSchemaConformance validates the decoded JSON body against the
// documented response schema. Responses without a JSON schema, and bodies
// that are not JSON at all, are out of scope for this check.
type ResponseSchemaConformance struct{}

// Name implements interfaces.Check.
func (c *ResponseSchemaConformance) Name() string { return "response_schema_conformance" }

// Run implements interfaces.Check.
func (c *ResponseSchemaConformance) Run(tc *interfaces.Case, r *interfaces.Response, vctx *interfaces.ValidationContext) *interfaces.Failure {
	op := vctx.Operation
	if op == nil {
		return nil
	}
	response := op.ResponseFor(r.StatusCode)
	if response == nil || response.Schema == nil || response.Schema.Value == nil {
		return nil
	}
	decoded, err := r.Decoded()
	if err != nil {
		return &interfaces.Failure{
			Check:     c.Name(),
			Operation: tc.Operation,
			Message:   "response body is not valid JSON",
			Response:  r,
		}
	}
	if decoded == nil {
		return nil
	}
	if err := response.Schema.Value.VisitJSON(decoded, openapi3.MultiErrors()); err != nil {
		return &interfaces.Failure{
			Check:     c.Name(),
			Operation: tc.Operation,
			Message:   fmt.Sprintf("response does not conform to schema: %s", firstLine(err.Error())),
			Response:  r,
		}
	}
	return nil
}

// firstLine trims a multi-error message down to a stable, deduplicatable
// first line.
func firstLine(message string) string {
	if idx := strings.IndexByte(message, '\n'); idx >= 0 {
		return message[:idx]
	}
	return message
}
