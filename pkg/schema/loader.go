/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: loader.go
Description: OpenAPI schema loading. Resolves a spec from a local file or URL
(with HTML documentation pages probed for an embedded spec link), flattens it
into the resolved APIOperation form, and lifts declared response links into the
shared link model.
*/

package schema

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/kleascm/akaylee-explorer/pkg/interfaces"
	"github.com/sirupsen/logrus"
)

// Loader resolves and flattens OpenAPI documents.
type Loader struct {
	logger *logrus.Logger
}

// NewLoader creates a schema loader.
func NewLoader(logger *logrus.Logger) *Loader {
	if logger == nil {
		logger = logrus.New()
	}
	return &Loader{logger: logger}
}

// Load resolves the document at the given location (file path or URL) and
// returns the flattened operations. A URL that serves an HTML page instead
// of a spec is probed for a spec link before giving up.
func (l *Loader) Load(location string) ([]*interfaces.APIOperation, error) {
	doc, err := l.loadDocument(location)
	if err != nil {
		return nil, err
	}
	return l.BuildOperations(doc)
}

func (l *Loader) loadDocument(location string) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = true

	if !isURL(location) {
		doc, err := loader.LoadFromFile(location)
		if err != nil {
			return nil, fmt.Errorf("loading schema from file %s: %w", location, err)
		}
		return doc, nil
	}

	parsed, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("invalid schema url %s: %w", location, err)
	}
	doc, err := loader.LoadFromURI(parsed)
	if err == nil {
		return doc, nil
	}

	// Maybe a documentation page rather than the spec itself.
	discovered, discoverErr := DiscoverSpecURL(location)
	if discoverErr != nil {
		return nil, fmt.Errorf("loading schema from %s: %w", location, err)
	}
	l.logger.WithFields(logrus.Fields{
		"page": location,
		"spec": discovered,
	}).Info("discovered spec link on documentation page")
	parsed, err = url.Parse(discovered)
	if err != nil {
		return nil, fmt.Errorf("invalid discovered spec url %s: %w", discovered, err)
	}
	doc, err = loader.LoadFromURI(parsed)
	if err != nil {
		return nil, fmt.Errorf("loading discovered schema %s: %w", discovered, err)
	}
	return doc, nil
}

// BuildOperations flattens a resolved document into one APIOperation per
// method+path pair, sorted by label. Declared response links come along;
// malformed path items are skipped, never fatal.
func (l *Loader) BuildOperations(doc *openapi3.T) ([]*interfaces.APIOperation, error) {
	if doc.Paths == nil {
		return nil, fmt.Errorf("schema declares no paths")
	}
	operationIDs := collectOperationIDs(doc)

	var operations []*interfaces.APIOperation
	for path, item := range doc.Paths.Map() {
		if item == nil {
			continue
		}
		for method, op := range item.Operations() {
			if op == nil {
				continue
			}
			built := &interfaces.APIOperation{
				Method:      method,
				Path:        path,
				OperationID: op.OperationID,
				Parameters:  buildParameters(item.Parameters, op.Parameters),
				RequestBody: requestBodySchema(op),
				Responses:   l.buildResponses(op, operationIDs),
			}
			operations = append(operations, built)
		}
	}
	sort.Slice(operations, func(i, j int) bool { return operations[i].Label() < operations[j].Label() })

	l.logger.WithField("operations", len(operations)).Debug("schema flattened")
	return operations, nil
}

// buildParameters merges path-item level parameters with operation level
// ones; the operation wins on name+location conflicts.
func buildParameters(itemParams, opParams openapi3.Parameters) []interfaces.APIParameter {
	type paramKey struct {
		name     string
		location string
	}
	merged := make(map[paramKey]interfaces.APIParameter)
	var order []paramKey
	for _, refs := range [][]*openapi3.ParameterRef{itemParams, opParams} {
		for _, ref := range refs {
			if ref == nil || ref.Value == nil {
				continue
			}
			p := ref.Value
			key := paramKey{name: p.Name, location: p.In}
			if _, seen := merged[key]; !seen {
				order = append(order, key)
			}
			merged[key] = interfaces.APIParameter{
				Name:     p.Name,
				Location: interfaces.ParameterLocation(p.In),
				Required: p.Required,
				Schema:   p.Schema,
			}
		}
	}
	out := make([]interfaces.APIParameter, 0, len(order))
	for _, key := range order {
		out = append(out, merged[key])
	}
	return out
}

func requestBodySchema(op *openapi3.Operation) *openapi3.SchemaRef {
	if op.RequestBody == nil || op.RequestBody.Value == nil {
		return nil
	}
	return jsonContentSchema(op.RequestBody.Value.Content)
}

func (l *Loader) buildResponses(op *openapi3.Operation, operationIDs map[string]string) map[string]*interfaces.APIResponse {
	if op.Responses == nil {
		return nil
	}
	responses := make(map[string]*interfaces.APIResponse)
	for status, ref := range op.Responses.Map() {
		if ref == nil || ref.Value == nil {
			continue
		}
		responses[status] = &interfaces.APIResponse{
			Schema: jsonContentSchema(ref.Value.Content),
			Links:  l.buildLinks(ref.Value.Links, operationIDs),
		}
	}
	return responses
}

// buildLinks converts declared OpenAPI links into the shared link model.
// A link addressed by operationId is rewritten to the equivalent local
// operationRef; links targeting unknown operations are dropped with a log.
func (l *Loader) buildLinks(links openapi3.Links, operationIDs map[string]string) []interfaces.LinkDefinition {
	if len(links) == 0 {
		return nil
	}
	names := make([]string, 0, len(links))
	for name := range links {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []interfaces.LinkDefinition
	for _, name := range names {
		ref := links[name]
		if ref == nil || ref.Value == nil {
			continue
		}
		link := ref.Value

		operationRef := link.OperationRef
		if operationRef == "" && link.OperationID != "" {
			resolved, ok := operationIDs[link.OperationID]
			if !ok {
				l.logger.WithFields(logrus.Fields{
					"link":        name,
					"operationId": link.OperationID,
				}).Warn("declared link targets unknown operationId, dropping")
				continue
			}
			operationRef = resolved
		}
		if operationRef == "" {
			continue
		}

		parameters := make(map[string]string, len(link.Parameters))
		for param, expr := range link.Parameters {
			parameters[param] = fmt.Sprint(expr)
		}
		definition := interfaces.LinkDefinition{
			Name:         name,
			OperationRef: operationRef,
			Parameters:   parameters,
		}
		if body, ok := link.RequestBody.(map[string]interface{}); ok {
			definition.RequestBody = make(map[string]string, len(body))
			for field, expr := range body {
				definition.RequestBody[field] = fmt.Sprint(expr)
			}
		}
		out = append(out, definition)
	}
	return out
}

// collectOperationIDs maps every declared operationId to its local
// operationRef so id-addressed links can be normalized.
func collectOperationIDs(doc *openapi3.T) map[string]string {
	ids := make(map[string]string)
	for path, item := range doc.Paths.Map() {
		if item == nil {
			continue
		}
		for method, op := range item.Operations() {
			if op == nil || op.OperationID == "" {
				continue
			}
			escaped := strings.ReplaceAll(strings.ReplaceAll(path, "~", "~0"), "/", "~1")
			ids[op.OperationID] = "#/paths/" + escaped + "/" + strings.ToLower(method)
		}
	}
	return ids
}

// jsonContentSchema picks the JSON media type's schema out of a content
// map, accepting structured-suffix types like application/hal+json.
func jsonContentSchema(content openapi3.Content) *openapi3.SchemaRef {
	if content == nil {
		return nil
	}
	if media, ok := content["application/json"]; ok && media != nil {
		return media.Schema
	}
	types := make([]string, 0, len(content))
	for mediaType := range content {
		types = append(types, mediaType)
	}
	sort.Strings(types)
	for _, mediaType := range types {
		if strings.HasSuffix(mediaType, "+json") || strings.HasPrefix(mediaType, "application/json") {
			if media := content[mediaType]; media != nil {
				return media.Schema
			}
		}
	}
	return nil
}

func isURL(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}
