/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: extractor.go
Description: Resource extraction from response schemas. Canonicalizes allOf
compositions, unwraps HAL/pagination/externally-tagged wrappers, infers resource
identity from refs or URL paths, and discovers sub-resources. Malformed schemas
are skipped, never fatal: extraction is best-effort by design.
*/

package apigraph

import (
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/kleascm/akaylee-explorer/pkg/interfaces"
	"github.com/sirupsen/logrus"
)

// maxSubResourceDepth bounds recursive sub-resource discovery so cyclic
// schema references cannot loop forever.
const maxSubResourceDepth = 4

// extractedResource is one resource yielded by a response: where in the
// body it lives and whether one or many instances appear there.
type extractedResource struct {
	resource    interfaces.ResourceRef
	pointer     string
	cardinality interfaces.Cardinality
}

// canonResult caches the canonicalization of one $ref so repeated
// responses referencing the same schema do the flattening work once.
type canonResult struct {
	schema *openapi3.Schema
	names  []string
}

type extractor struct {
	arena  *arena
	cache  map[string]*canonResult
	logger *logrus.Logger
}

func newExtractor(a *arena, logger *logrus.Logger) *extractor {
	return &extractor{arena: a, cache: make(map[string]*canonResult), logger: logger}
}

// extractResponse analyzes one successful response definition and returns
// the resources it yields. A nil or boolean schema yields nothing.
func (e *extractor) extractResponse(op *interfaces.APIOperation, status string, root *openapi3.SchemaRef) []extractedResource {
	if root == nil || root.Value == nil {
		return nil
	}
	canonical, names := e.resolve(root, nil)
	if canonical == nil {
		return nil
	}

	// Resource name priority: explicit ref, ref recovered from allOf
	// branches, then the URL path.
	name := firstName(names)
	if name == "" {
		name = PathResourceName(op.Path)
	}
	if name == "" {
		return nil
	}

	pointer := "/"
	target := &openapi3.SchemaRef{Ref: root.Ref, Value: canonical}
	if isObject(canonical) {
		if inner, ptr, ok := e.unwrap(canonical, name); ok {
			pointer = ptr
			target = inner
		}
	}

	targetSchema, targetNames := e.resolve(target, nil)
	if targetSchema == nil {
		return nil
	}
	if n := firstName(targetNames); n != "" {
		name = n
	}

	cardinality := interfaces.One
	elem := target
	elemSchema := targetSchema
	if isArray(targetSchema) {
		cardinality = interfaces.Many
		elem = targetSchema.Items
		if elem == nil || elem.Value == nil {
			return nil
		}
		var elemNames []string
		elemSchema, elemNames = e.resolve(elem, nil)
		if elemSchema == nil {
			return nil
		}
		if n := firstName(elemNames); n != "" {
			name = n
		}
	}

	var out []extractedResource
	e.emit(name, pointer, cardinality, elemSchema, 0, &out)
	return out
}

// emit defines (or upgrades) a resource from a schema's properties and
// recursively discovers ref-typed sub-resources.
func (e *extractor) emit(name, pointer string, cardinality interfaces.Cardinality, schema *openapi3.Schema, depth int, out *[]extractedResource) {
	fields := make([]string, 0, len(schema.Properties))
	for field := range schema.Properties {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	scope := interfaces.ScopeSchemaWithoutProperties
	if len(fields) > 0 {
		scope = interfaces.ScopeSchemaWithProperties
	}
	ref := e.arena.define(interfaces.ResourceDefinition{Name: name, Fields: fields, Scope: scope})
	*out = append(*out, extractedResource{resource: ref, pointer: pointer, cardinality: cardinality})

	if depth >= maxSubResourceDepth {
		return
	}
	base := pointer
	if cardinality == interfaces.Many {
		base = joinPointer(base, "0")
	}
	for _, field := range fields {
		prop := schema.Properties[field]
		if prop == nil || prop.Value == nil {
			continue
		}
		switch {
		case prop.Ref != "" && isObject(prop.Value):
			subSchema, _ := e.resolve(prop, nil)
			if subSchema != nil {
				e.emit(refName(prop.Ref), joinPointer(base, field), interfaces.One, subSchema, depth+1, out)
			}
		case isArray(prop.Value) && prop.Value.Items != nil && prop.Value.Items.Ref != "" &&
			prop.Value.Items.Value != nil && isObject(prop.Value.Items.Value):
			items := prop.Value.Items
			subSchema, _ := e.resolve(items, nil)
			if subSchema != nil {
				// First element stands in for the whole array.
				e.emit(refName(items.Ref), joinPointer(base, field, "0"), interfaces.One, subSchema, depth+1, out)
			}
		}
	}
}

// resolve canonicalizes a schema ref: allOf compositions flatten into one
// self-contained schema, anyOf/oneOf pick the first interesting branch.
// The returned names are candidate resource identities recovered before
// flattening, strongest first. Canonicalization is cached per $ref.
func (e *extractor) resolve(ref *openapi3.SchemaRef, visited map[*openapi3.Schema]bool) (*openapi3.Schema, []string) {
	if ref == nil || ref.Value == nil {
		return nil, nil
	}
	if ref.Ref != "" {
		if cached, ok := e.cache[ref.Ref]; ok {
			return cached.schema, cached.names
		}
	}
	if visited == nil {
		visited = make(map[*openapi3.Schema]bool)
	}
	if visited[ref.Value] {
		// Recursive composition; fall back to the unresolved schema
		// rather than aborting extraction.
		return ref.Value, refNames(ref.Ref)
	}
	visited[ref.Value] = true

	schema := ref.Value
	names := refNames(ref.Ref)
	result := schema

	switch {
	case len(schema.AllOf) > 0:
		result, names = e.flattenAllOf(schema, names, visited)
	case len(schema.AnyOf) > 0:
		result, names = e.chooseBranch(schema.AnyOf, names, visited)
	case len(schema.OneOf) > 0:
		result, names = e.chooseBranch(schema.OneOf, names, visited)
	}

	if ref.Ref != "" {
		e.cache[ref.Ref] = &canonResult{schema: result, names: names}
	}
	return result, names
}

// flattenAllOf merges every allOf branch (plus the parent's own
// properties) into a single flattened schema, collecting branch refs so
// identity lost by flattening can be recovered.
func (e *extractor) flattenAllOf(schema *openapi3.Schema, names []string, visited map[*openapi3.Schema]bool) (*openapi3.Schema, []string) {
	merged := &openapi3.Schema{Properties: openapi3.Schemas{}}
	absorb := func(s *openapi3.Schema) {
		if s == nil {
			return
		}
		if merged.Type == nil && s.Type != nil {
			merged.Type = s.Type
		}
		if merged.Items == nil && s.Items != nil {
			merged.Items = s.Items
		}
		for field, prop := range s.Properties {
			if _, exists := merged.Properties[field]; !exists {
				merged.Properties[field] = prop
			}
		}
		merged.Required = append(merged.Required, s.Required...)
	}

	for _, branch := range schema.AllOf {
		if branch == nil || branch.Value == nil {
			continue
		}
		if branch.Ref != "" {
			names = append(names, refName(branch.Ref))
		}
		flat, branchNames := e.resolve(branch, visited)
		names = append(names, branchNames...)
		absorb(flat)
	}
	absorb(&openapi3.Schema{
		Type:       schema.Type,
		Items:      schema.Items,
		Properties: schema.Properties,
		Required:   schema.Required,
	})
	return merged, dedupeNames(names)
}

// chooseBranch implements the anyOf/oneOf heuristic: filter out bare
// primitives and take the first interesting branch. Only that branch's
// resources are modeled; a known precision loss, kept deliberately.
func (e *extractor) chooseBranch(branches openapi3.SchemaRefs, names []string, visited map[*openapi3.Schema]bool) (*openapi3.Schema, []string) {
	for _, branch := range branches {
		if branch == nil || branch.Value == nil || !isInteresting(branch.Value) {
			continue
		}
		if branch.Ref != "" {
			names = append(names, refName(branch.Ref))
		}
		flat, branchNames := e.resolve(branch, visited)
		if flat != nil {
			return flat, dedupeNames(append(names, branchNames...))
		}
	}
	return nil, names
}

// knownDataFields are wrapper property names that conventionally hold the
// payload array.
var knownDataFields = map[string]bool{
	"data": true, "items": true, "results": true, "records": true,
	"entries": true, "values": true, "content": true, "elements": true,
	"objects": true, "rows": true, "list": true,
}

// paginationMetaFields look like pagination bookkeeping when seen next to
// a single array property.
var paginationMetaFields = map[string]bool{
	"page": true, "pages": true, "per_page": true, "page_size": true,
	"total": true, "total_count": true, "total_pages": true,
	"cursor": true, "next": true, "next_cursor": true, "prev": true,
	"previous": true, "has_more": true, "has_next": true,
	"offset": true, "limit": true, "count": true, "size": true,
}

// unwrap peels one wrapper layer off a response object. Tried in priority
// order, first match wins: HAL _embedded, single-array pagination wrapper,
// externally tagged {ResourceName: [...]}.
func (e *extractor) unwrap(schema *openapi3.Schema, resourceName string) (*openapi3.SchemaRef, string, bool) {
	// (a) HAL: _embedded.<field> containing an array.
	if embedded, ok := schema.Properties["_embedded"]; ok && embedded != nil && embedded.Value != nil {
		for _, field := range sortedPropertyNames(embedded.Value) {
			prop := embedded.Value.Properties[field]
			if prop != nil && prop.Value != nil && isArray(prop.Value) {
				return prop, joinPointer("/", "_embedded", field), true
			}
		}
	}

	// (b) Pagination wrapper: exactly one array property, recognized by
	// name, by the pluralized resource name, by pagination-looking
	// siblings, or simply by the wrapper being small.
	var arrayFields []string
	for _, field := range sortedPropertyNames(schema) {
		prop := schema.Properties[field]
		if prop != nil && prop.Value != nil && isArray(prop.Value) {
			arrayFields = append(arrayFields, field)
		}
	}
	if len(arrayFields) == 1 {
		field := arrayFields[0]
		lower := strings.ToLower(field)
		accepted := knownDataFields[lower] ||
			lower == PluralizeSnake(resourceName) ||
			hasPaginationSiblings(schema, field) ||
			len(schema.Properties) <= 2
		if accepted {
			return schema.Properties[field], joinPointer("/", field), true
		}
	}

	// (c) Externally tagged: {ResourceName: [...]} keyed by the
	// path-derived resource name, any casing.
	normalized := normalizeName(resourceName)
	for _, field := range sortedPropertyNames(schema) {
		prop := schema.Properties[field]
		if prop != nil && prop.Value != nil && isArray(prop.Value) && normalizeName(field) == normalized {
			return prop, joinPointer("/", field), true
		}
	}

	return nil, "", false
}

func hasPaginationSiblings(schema *openapi3.Schema, arrayField string) bool {
	for field := range schema.Properties {
		if field == arrayField {
			continue
		}
		if paginationMetaFields[strings.ToLower(field)] {
			return true
		}
	}
	return false
}

func sortedPropertyNames(schema *openapi3.Schema) []string {
	names := make([]string, 0, len(schema.Properties))
	for name := range schema.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func isObject(s *openapi3.Schema) bool {
	if s == nil {
		return false
	}
	if s.Type.Is("object") {
		return true
	}
	return (s.Type == nil || len(*s.Type) == 0) && len(s.Properties) > 0
}

func isArray(s *openapi3.Schema) bool {
	return s != nil && s.Type.Is("array")
}

// isInteresting filters out bare primitive branches in anyOf/oneOf.
func isInteresting(s *openapi3.Schema) bool {
	if s == nil {
		return false
	}
	return isObject(s) || isArray(s) || len(s.AllOf) > 0 || len(s.AnyOf) > 0 || len(s.OneOf) > 0
}

// refName extracts the terminal component of a $ref
// ("#/components/schemas/User" -> "User").
func refName(ref string) string {
	if ref == "" {
		return ""
	}
	idx := strings.LastIndex(ref, "/")
	if idx < 0 {
		return ref
	}
	return ref[idx+1:]
}

func refNames(ref string) []string {
	if name := refName(ref); name != "" {
		return []string{name}
	}
	return nil
}

func firstName(names []string) string {
	for _, n := range names {
		if n != "" {
			return n
		}
	}
	return ""
}

func dedupeNames(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := names[:0]
	for _, n := range names {
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

// joinPointer appends JSON-pointer segments to a base pointer, escaping
// per RFC 6901. The root pointer "/" joins cleanly: join("/", "id") is
// "/id".
func joinPointer(base string, segments ...string) string {
	b := strings.TrimSuffix(base, "/")
	var sb strings.Builder
	sb.WriteString(b)
	for _, seg := range segments {
		sb.WriteByte('/')
		seg = strings.ReplaceAll(seg, "~", "~0")
		seg = strings.ReplaceAll(seg, "/", "~1")
		sb.WriteString(seg)
	}
	return sb.String()
}
