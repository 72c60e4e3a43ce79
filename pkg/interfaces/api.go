/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: api.go
Description: Schema-level operation model for the Akaylee Explorer. Wraps the
kin-openapi schema objects the loader produces into the resolved APIOperation
form the extractor and checks consume.
*/

package interfaces

import (
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

// APIParameter is one resolved operation parameter.
type APIParameter struct {
	Name     string
	Location ParameterLocation
	Required bool
	Schema   *openapi3.SchemaRef
}

// APIResponse is one resolved response definition: the JSON body schema
// (nil when the response declares no JSON content) plus any declared links.
type APIResponse struct {
	Schema *openapi3.SchemaRef
	Links  []LinkDefinition
}

// APIOperation is one method+path pair from the API description, with
// reference resolution already performed by the loader. The extractor
// still performs its own scoped allOf canonicalization on top.
type APIOperation struct {
	Method      string
	Path        string
	OperationID string
	Parameters  []APIParameter
	RequestBody *openapi3.SchemaRef
	// Responses is keyed by the literal status code string from the
	// schema ("200", "2XX", "default").
	Responses map[string]*APIResponse
}

// Label returns the unique "METHOD path" key for the operation.
func (o *APIOperation) Label() string {
	return o.Method + " " + o.Path
}

// ResponseEntry pairs a status code string with its response definition.
type ResponseEntry struct {
	Status   string
	Response *APIResponse
}

// SuccessfulResponses returns the 2xx response definitions in sorted
// status-code order. Wildcard "2XX" entries are included.
func (o *APIOperation) SuccessfulResponses() []ResponseEntry {
	statuses := make([]string, 0, len(o.Responses))
	for status := range o.Responses {
		if strings.HasPrefix(status, "2") {
			statuses = append(statuses, status)
		}
	}
	sort.Strings(statuses)
	out := make([]ResponseEntry, 0, len(statuses))
	for _, status := range statuses {
		out = append(out, ResponseEntry{Status: status, Response: o.Responses[status]})
	}
	return out
}

// ResponseFor returns the response definition matching a concrete status
// code, trying the exact code, then the "2XX"-style wildcard, then
// "default". Returns nil when nothing matches.
func (o *APIOperation) ResponseFor(statusCode int) *APIResponse {
	exact := statusString(statusCode)
	if r, ok := o.Responses[exact]; ok {
		return r
	}
	wildcard := exact[:1] + "XX"
	if r, ok := o.Responses[wildcard]; ok {
		return r
	}
	if r, ok := o.Responses["default"]; ok {
		return r
	}
	return nil
}

// DocumentsStatus reports whether the schema declares the given status
// code for this operation, including wildcard and default entries.
func (o *APIOperation) DocumentsStatus(statusCode int) bool {
	return o.ResponseFor(statusCode) != nil
}

func statusString(code int) string {
	digits := [3]byte{}
	digits[0] = byte('0' + code/100)
	digits[1] = byte('0' + (code/10)%10)
	digits[2] = byte('0' + code%10)
	return string(digits[:])
}
