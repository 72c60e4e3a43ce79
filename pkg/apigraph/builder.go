/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: builder.go
Description: Dependency graph construction. Runs resource extraction over every
operation's successful responses, infers input slots from parameters via the
naming heuristics, prunes unreferenced resources, and exposes a consistency
check for tests and diagnostics.
*/

package apigraph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kleascm/akaylee-explorer/pkg/interfaces"
	"github.com/sirupsen/logrus"
)

// Builder constructs a DependencyGraph from resolved API operations.
// Build is a one-shot pass; the resulting graph is read-only.
type Builder struct {
	logger *logrus.Logger
}

// NewBuilder creates a graph builder.
func NewBuilder(logger *logrus.Logger) *Builder {
	if logger == nil {
		logger = logrus.New()
	}
	return &Builder{logger: logger}
}

// Build analyzes every operation's response schemas and parameters and
// returns the dependency graph. Schema-analysis problems skip the
// offending operation or response; they never abort the whole build.
func (b *Builder) Build(operations []*interfaces.APIOperation) *interfaces.DependencyGraph {
	a := newArena()
	ext := newExtractor(a, b.logger)

	sorted := make([]*interfaces.APIOperation, len(operations))
	copy(sorted, operations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Label() < sorted[j].Label() })

	nodes := make(map[string]*interfaces.OperationNode, len(sorted))
	for _, op := range sorted {
		nodes[op.Label()] = &interfaces.OperationNode{Method: op.Method, Path: op.Path}
	}

	// Outputs first, across every operation, so input matching can see
	// schema-derived fields instead of guessing from names alone.
	for _, op := range sorted {
		node := nodes[op.Label()]
		for _, entry := range op.SuccessfulResponses() {
			if entry.Response == nil || entry.Response.Schema == nil {
				continue
			}
			for _, er := range ext.extractResponse(op, entry.Status, entry.Response.Schema) {
				node.Outputs = append(node.Outputs, interfaces.OutputSlot{
					Resource:    er.resource,
					Pointer:     er.pointer,
					Cardinality: er.cardinality,
					StatusCode:  entry.Status,
				})
			}
		}
	}

	for _, op := range sorted {
		b.buildInputs(a, op, nodes[op.Label()])
	}

	resources := a.compact(nodes)
	graph := &interfaces.DependencyGraph{Operations: nodes, Resources: resources}
	b.logger.WithFields(logrus.Fields{
		"operations": len(nodes),
		"resources":  len(resources),
	}).Debug("Dependency graph constructed")
	return graph
}

// buildInputs matches the operation's parameters (and request body
// properties) against resources implied by its path segments. A failed
// match just means no edge; the heuristics are allowed to be wrong.
func (b *Builder) buildInputs(a *arena, op *interfaces.APIOperation, node *interfaces.OperationNode) {
	candidates := pathResourceCandidates(op.Path)
	if len(candidates) == 0 {
		return
	}
	segments := strings.Split(strings.Trim(op.Path, "/"), "/")

	for _, param := range op.Parameters {
		var slot *interfaces.InputSlot
		if param.Location == interfaces.LocationPath {
			slot = b.matchAgainst(a, ownerForPathParam(candidates, segments, param.Name), param.Name, param.Location)
		} else {
			// Non-path parameters try the primary (last) resource
			// first, then earlier path ancestors.
			for i := len(candidates) - 1; i >= 0 && slot == nil; i-- {
				slot = b.matchAgainst(a, candidates[i].name, param.Name, param.Location)
			}
		}
		if slot != nil {
			node.Inputs = append(node.Inputs, *slot)
		}
	}

	if op.RequestBody != nil && op.RequestBody.Value != nil {
		for _, field := range sortedPropertyNames(op.RequestBody.Value) {
			var slot *interfaces.InputSlot
			for i := len(candidates) - 1; i >= 0 && slot == nil; i-- {
				slot = b.matchAgainst(a, candidates[i].name, field, interfaces.LocationBody)
			}
			if slot != nil {
				node.Inputs = append(node.Inputs, *slot)
			}
		}
	}
}

// matchAgainst tries to bind one parameter to one resource, creating the
// resource lazily at parameter-inference quality when the match succeeds.
func (b *Builder) matchAgainst(a *arena, resourceName, paramName string, location interfaces.ParameterLocation) *interfaces.InputSlot {
	if resourceName == "" {
		return nil
	}
	var fields []string
	if def, ok := a.lookup(resourceName); ok {
		fields = def.Fields
	}
	field, ok := MatchParameter(resourceName, fields, paramName)
	if !ok {
		return nil
	}
	ref := a.define(interfaces.ResourceDefinition{
		Name:   resourceName,
		Fields: []string{field},
		Scope:  interfaces.ScopeParameterInference,
	})
	return &interfaces.InputSlot{
		Resource:      ref,
		ResourceField: field,
		ParameterName: paramName,
		Location:      location,
	}
}

// ownerForPathParam finds the resource owning a path parameter: the
// nearest non-parameter segment preceding its placeholder. Parameters
// without a preceding segment fall back to the primary resource.
func ownerForPathParam(candidates []pathCandidate, segments []string, paramName string) string {
	placeholder := "{" + paramName + "}"
	position := -1
	for i, seg := range segments {
		if seg == placeholder {
			position = i
			break
		}
	}
	owner := ""
	for _, c := range candidates {
		if position >= 0 && c.segmentIndex > position {
			break
		}
		owner = c.name
	}
	if owner == "" && len(candidates) > 0 {
		owner = candidates[len(candidates)-1].name
	}
	return owner
}

// CheckConsistency asserts that every input slot's field exists among its
// resource's known fields, excluding resources known only through
// parameter inference. Used by tests and diagnostics, never on the hot
// path.
func CheckConsistency(g *interfaces.DependencyGraph) error {
	for label, node := range g.Operations {
		for _, slot := range node.Inputs {
			def := g.Resource(slot.Resource)
			if def == nil {
				return fmt.Errorf("operation %q input %q references missing resource %d", label, slot.ParameterName, slot.Resource)
			}
			if def.Scope == interfaces.ScopeParameterInference {
				continue
			}
			if !def.HasField(slot.ResourceField) {
				return fmt.Errorf("operation %q input %q expects %s.%s which is not a known field",
					label, slot.ParameterName, def.Name, slot.ResourceField)
			}
		}
	}
	return nil
}
