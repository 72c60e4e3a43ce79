/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: types.go
Description: Shared data model for the Akaylee Explorer. Defines the dependency graph
of API operations and inferred resources, slot-based producer/consumer edges, link
definitions, and the runtime transition records used by the stateful execution engine.
Kept in one package to break import cycles across the extractor, scheduler, and engine.
*/

package interfaces

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"
)

// ResourceRef is an arena index identifying a ResourceDefinition inside a
// DependencyGraph. Edges compare refs, never names, so two resources that
// happen to share a name stay distinct.
type ResourceRef int

// NoResource is the zero-value sentinel for an unset ResourceRef.
const NoResource ResourceRef = -1

// ResourceScope ranks how much evidence backs a ResourceDefinition.
// Higher scopes always win on merge; equal scopes merge fields as a union.
type ResourceScope int

const (
	// ScopeSchemaWithoutProperties marks a resource seen only as a schema
	// with no property information.
	ScopeSchemaWithoutProperties ResourceScope = iota
	// ScopeParameterInference marks a resource inferred purely from
	// parameter name heuristics.
	ScopeParameterInference
	// ScopeSchemaWithProperties marks a resource backed by a schema that
	// declares concrete properties. The strongest evidence level.
	ScopeSchemaWithProperties
)

// String returns a human-readable scope name for logs and diagnostics.
func (s ResourceScope) String() string {
	switch s {
	case ScopeSchemaWithoutProperties:
		return "schema-without-properties"
	case ScopeParameterInference:
		return "parameter-inference"
	case ScopeSchemaWithProperties:
		return "schema-with-properties"
	default:
		return fmt.Sprintf("unknown-scope(%d)", int(s))
	}
}

// ResourceDefinition is a named, inferred entity type (e.g. "User").
// Fields is kept sorted so extraction is idempotent and serialization stable.
type ResourceDefinition struct {
	Name   string        `json:"name"`
	Fields []string      `json:"fields"`
	Scope  ResourceScope `json:"-"`
}

// HasField reports whether the definition lists the given field.
func (r *ResourceDefinition) HasField(field string) bool {
	for _, f := range r.Fields {
		if f == field {
			return true
		}
	}
	return false
}

// MergeResource combines an existing definition with newly discovered evidence.
// All upgrade logic lives here: a higher scope replaces the old definition
// outright, a lower scope is ignored, and equal scopes union their fields.
// The inputs are never mutated.
func MergeResource(old, new ResourceDefinition) ResourceDefinition {
	switch {
	case new.Scope > old.Scope:
		merged := ResourceDefinition{Name: old.Name, Scope: new.Scope}
		merged.Fields = append(merged.Fields, new.Fields...)
		sort.Strings(merged.Fields)
		return merged
	case new.Scope < old.Scope:
		return old
	default:
		seen := make(map[string]bool, len(old.Fields)+len(new.Fields))
		merged := ResourceDefinition{Name: old.Name, Scope: old.Scope}
		for _, f := range old.Fields {
			if !seen[f] {
				seen[f] = true
				merged.Fields = append(merged.Fields, f)
			}
		}
		for _, f := range new.Fields {
			if !seen[f] {
				seen[f] = true
				merged.Fields = append(merged.Fields, f)
			}
		}
		sort.Strings(merged.Fields)
		return merged
	}
}

// Cardinality says whether an output slot yields one instance or an array.
type Cardinality int

const (
	// One means the response body location holds a single resource instance.
	One Cardinality = iota
	// Many means the location holds an array of resource instances.
	Many
)

// String returns "one" or "many".
func (c Cardinality) String() string {
	if c == Many {
		return "many"
	}
	return "one"
}

// ParameterLocation is where an operation accepts a parameter.
type ParameterLocation string

const (
	LocationQuery  ParameterLocation = "query"
	LocationPath   ParameterLocation = "path"
	LocationHeader ParameterLocation = "header"
	LocationCookie ParameterLocation = "cookie"
	LocationBody   ParameterLocation = "body"
)

// InputSlot records that an operation accepts resource.field through a
// named parameter at a given location.
type InputSlot struct {
	Resource      ResourceRef       `json:"-"`
	ResourceField string            `json:"resource_field"`
	ParameterName string            `json:"parameter_name"`
	Location      ParameterLocation `json:"location"`
}

// OutputSlot records that on a given status code, the response body,
// navigated by Pointer, yields instances of a resource.
type OutputSlot struct {
	Resource    ResourceRef `json:"-"`
	Pointer     string      `json:"pointer"`
	Cardinality Cardinality `json:"cardinality"`
	StatusCode  string      `json:"status_code"`
}

// OperationNode is one API operation in the dependency graph. Owned
// exclusively by the graph and immutable once construction finishes.
type OperationNode struct {
	Method  string       `json:"-"`
	Path    string       `json:"-"`
	Inputs  []InputSlot  `json:"inputs,omitempty"`
	Outputs []OutputSlot `json:"outputs,omitempty"`
}

// Label returns the unique "METHOD path" key for the operation.
func (o *OperationNode) Label() string {
	return o.Method + " " + o.Path
}

// DependencyGraph holds every operation and the resource arena they share.
// Built once per loaded schema and read-only afterwards, so unsynchronized
// concurrent reads are safe.
type DependencyGraph struct {
	Operations map[string]*OperationNode
	Resources  []*ResourceDefinition
}

// Resource returns the definition behind an arena index, or nil for an
// out-of-range ref.
func (g *DependencyGraph) Resource(ref ResourceRef) *ResourceDefinition {
	if ref < 0 || int(ref) >= len(g.Resources) {
		return nil
	}
	return g.Resources[ref]
}

// ResourceByName looks a definition up by name. Intended for tests and
// diagnostics; edges always compare arena indices.
func (g *DependencyGraph) ResourceByName(name string) (ResourceRef, *ResourceDefinition) {
	for i, def := range g.Resources {
		if def.Name == name {
			return ResourceRef(i), def
		}
	}
	return NoResource, nil
}

// SortedLabels returns every operation label in lexicographic order.
func (g *DependencyGraph) SortedLabels() []string {
	labels := make([]string, 0, len(g.Operations))
	for label := range g.Operations {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// Serializable returns the introspection form of the graph: operations
// minus internal method/path fields, resources minus internal scope data.
func (g *DependencyGraph) Serializable() map[string]interface{} {
	operations := make(map[string]interface{}, len(g.Operations))
	for _, label := range g.SortedLabels() {
		node := g.Operations[label]
		inputs := make([]map[string]interface{}, 0, len(node.Inputs))
		for _, slot := range node.Inputs {
			inputs = append(inputs, map[string]interface{}{
				"resource":       g.Resources[slot.Resource].Name,
				"resource_field": slot.ResourceField,
				"parameter_name": slot.ParameterName,
				"location":       string(slot.Location),
			})
		}
		outputs := make([]map[string]interface{}, 0, len(node.Outputs))
		for _, slot := range node.Outputs {
			outputs = append(outputs, map[string]interface{}{
				"resource":    g.Resources[slot.Resource].Name,
				"pointer":     slot.Pointer,
				"cardinality": slot.Cardinality.String(),
				"status_code": slot.StatusCode,
			})
		}
		operations[label] = map[string]interface{}{
			"inputs":  inputs,
			"outputs": outputs,
		}
	}
	resources := make(map[string]interface{}, len(g.Resources))
	for _, def := range g.Resources {
		resources[def.Name] = map[string]interface{}{"fields": def.Fields}
	}
	return map[string]interface{}{
		"operations": operations,
		"resources":  resources,
	}
}

// LinkDefinition is a declared or synthesized transition rule: how to build
// the next operation's inputs from a producer's request/response pair.
// Expression values use OpenAPI runtime-expression syntax
// ("$response.body#/id", "$request.path.name", ...).
type LinkDefinition struct {
	Name         string            `json:"name"`
	OperationRef string            `json:"operationRef"`
	Parameters   map[string]string `json:"parameters,omitempty"`
	RequestBody  map[string]string `json:"requestBody,omitempty"`
	// MergeBody means the extracted body fields merge into the generated
	// request body instead of replacing it.
	MergeBody bool `json:"-"`
	// Inferred marks links synthesized from the dependency graph rather
	// than declared in the schema. Inferred links never produce
	// extraction failures.
	Inferred bool `json:"-"`
}

// OpenAPIShape serializes the link in OpenAPI Links JSON form, including
// the vendor extension flag for body-merging links.
func (l *LinkDefinition) OpenAPIShape() map[string]interface{} {
	shape := map[string]interface{}{
		"operationRef": l.OperationRef,
	}
	if len(l.Parameters) > 0 {
		params := make(map[string]interface{}, len(l.Parameters))
		for name, expr := range l.Parameters {
			params[name] = expr
		}
		shape["parameters"] = params
	}
	if len(l.RequestBody) > 0 {
		body := make(map[string]interface{}, len(l.RequestBody))
		for name, expr := range l.RequestBody {
			body[name] = expr
		}
		shape["requestBody"] = body
	}
	if l.MergeBody {
		shape["x-akaylee-merge-body"] = true
	}
	return shape
}

// ResponseLinks groups the links that hang off one producer response.
type ResponseLinks struct {
	Producer   string           `json:"producer"`
	StatusCode string           `json:"status_code"`
	Links      []LinkDefinition `json:"links"`
}

// ResolutionKind is the three-state outcome of evaluating one runtime
// expression. "Unresolvable" (pointer has no target, e.g. an empty array)
// is first-class and never conflated with a nil value or an error.
type ResolutionKind int

const (
	// Resolved means the expression produced a concrete value.
	Resolved ResolutionKind = iota
	// Unresolvable means the expression's target does not exist in the
	// parent response. Not an error.
	Unresolvable
	// ResolutionFailed means evaluating the expression raised an error.
	ResolutionFailed
)

// ExtractedParam is one slot of a transition: the expression that defines
// it plus its evaluation outcome against a concrete step.
type ExtractedParam struct {
	Definition string
	Kind       ResolutionKind
	Value      interface{}
	Err        error
}

// ResolvedParam builds a successfully evaluated slot.
func ResolvedParam(definition string, value interface{}) ExtractedParam {
	return ExtractedParam{Definition: definition, Kind: Resolved, Value: value}
}

// UnresolvableParam builds a slot whose pointer had no target.
func UnresolvableParam(definition string) ExtractedParam {
	return ExtractedParam{Definition: definition, Kind: Unresolvable}
}

// FailedParam builds a slot whose evaluation errored.
func FailedParam(definition string, err error) ExtractedParam {
	return ExtractedParam{Definition: definition, Kind: ResolutionFailed, Err: err}
}

// Transition is the runtime record of one graph traversal: which link was
// followed and what each of its expressions evaluated to.
type Transition struct {
	ID       string
	ParentID string
	// Link is the definition this transition instantiates.
	Link *LinkDefinition
	// Parameters holds evaluated slots keyed by location then parameter name.
	Parameters map[ParameterLocation]map[string]ExtractedParam
	// RequestBody holds evaluated body fields keyed by field name.
	RequestBody map[string]ExtractedParam
}

// Case is one concrete request the engine executes: a fully bound
// operation invocation.
type Case struct {
	ID         string
	Operation  string // "METHOD path" label
	Method     string
	Path       string // path template, placeholders substituted at call time
	PathParams map[string]string
	Query      map[string]string
	Headers    map[string]string
	Cookies    map[string]string
	Body       interface{}
	Metadata   map[string]interface{}
}

// Fingerprint returns a stable identity for re-execution comparison:
// two cases with the same fingerprint should behave identically against
// a deterministic target.
func (c *Case) Fingerprint() string {
	var buf bytes.Buffer
	buf.WriteString(c.Operation)
	writeSortedMap(&buf, c.PathParams)
	writeSortedMap(&buf, c.Query)
	writeSortedMap(&buf, c.Headers)
	writeSortedMap(&buf, c.Cookies)
	if c.Body != nil {
		if raw, err := json.Marshal(c.Body); err == nil {
			buf.Write(raw)
		}
	}
	return buf.String()
}

func writeSortedMap(buf *bytes.Buffer, m map[string]string) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		buf.WriteByte('|')
		buf.WriteString(k)
		buf.WriteByte('=')
		buf.WriteString(m[k])
	}
	buf.WriteByte(';')
}

// Response is a captured HTTP response with the fields the engine and
// checks need. Headers keep their multi-valued order.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	Elapsed    time.Duration

	decoded    interface{}
	decodeErr  error
	decodeDone bool
}

// Decoded returns the JSON-decoded body, caching the result. An empty
// body decodes to nil without error.
func (r *Response) Decoded() (interface{}, error) {
	if !r.decodeDone {
		r.decodeDone = true
		if len(r.Body) > 0 {
			r.decodeErr = json.Unmarshal(r.Body, &r.decoded)
		}
	}
	return r.decoded, r.decodeErr
}

// StepInput is what the generation engine hands the step hook: the case to
// run and the transition that produced it. Transition is nil only for a
// scenario's first step.
type StepInput struct {
	Case       *Case
	Transition *Transition
}

// StepOutput is the step hook's result, fed back to the generator so it
// can pick the next transition.
type StepOutput struct {
	Case     *Case
	Response *Response
	Status   StepStatus
}

// Failure is a domain-level check failure. Identity (for deduplication)
// covers the check class, the operation, and the message; the response is
// carried for diagnostics only.
type Failure struct {
	Check     string
	Operation string
	Message   string
	Response  *Response
}

// FailureKey is the comparable identity used for run/suite deduplication.
type FailureKey struct {
	Check     string
	Operation string
	Message   string
}

// Key returns the failure's deduplication identity.
func (f *Failure) Key() FailureKey {
	return FailureKey{Check: f.Check, Operation: f.Operation, Message: f.Message}
}

// Error implements the error interface.
func (f *Failure) Error() string {
	return fmt.Sprintf("[%s] %s: %s", f.Check, f.Operation, f.Message)
}

// FailureGroup aggregates every check failure from a single step so all
// of them surface together instead of just the first.
type FailureGroup struct {
	Operation string
	Failures  []*Failure
}

// Error implements the error interface.
func (g *FailureGroup) Error() string {
	if len(g.Failures) == 1 {
		return g.Failures[0].Error()
	}
	return fmt.Sprintf("%d check failures on %s", len(g.Failures), g.Operation)
}

// CheckResult records one check's verdict for a case.
type CheckResult struct {
	Name    string
	Passed  bool
	Failure *Failure
}

// HistoryEntry pairs a case with the response it produced, used to carry
// the ancestor chain of an extraction failure.
type HistoryEntry struct {
	Case     *Case
	Response *Response
}

// ExtractionFailure diagnoses a declared link whose expression could not
// produce a usable value. Identity deliberately excludes the case id so
// the same failure shape across scenarios collapses to one record.
type ExtractionFailure struct {
	ID            string // link name
	CaseID        string
	Source        string // producer operation label
	Target        string // consumer operation label
	ParameterName string
	Expression    string
	History       []HistoryEntry
	Response      *Response
	Err           error
}

// ExtractionFailureKey is the comparable identity for deduplication.
type ExtractionFailureKey struct {
	Source        string
	Target        string
	ID            string
	ParameterName string
	Expression    string
}

// Key returns the failure's deduplication identity.
func (e *ExtractionFailure) Key() ExtractionFailureKey {
	return ExtractionFailureKey{
		Source:        e.Source,
		Target:        e.Target,
		ID:            e.ID,
		ParameterName: e.ParameterName,
		Expression:    e.Expression,
	}
}
