/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: links.go
Description: Link synthesis from the dependency graph. For every producer output
slot and consumer input slot sharing a resource, derives an OpenAPI-Link-shaped
transition whose expressions point into the producer's response body. Runs
independently of, and in addition to, links declared in the schema.
*/

package apigraph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kleascm/akaylee-explorer/pkg/interfaces"
)

// LinkIndex maps producer label -> status code -> outgoing links, merging
// synthesized and declared transitions for the execution engine.
type LinkIndex map[string]map[string][]interfaces.LinkDefinition

// Add appends a link under a producer response, keeping insertion order.
func (idx LinkIndex) Add(producer, status string, link interfaces.LinkDefinition) {
	byStatus, ok := idx[producer]
	if !ok {
		byStatus = make(map[string][]interfaces.LinkDefinition)
		idx[producer] = byStatus
	}
	byStatus[status] = append(byStatus[status], link)
}

// From returns the links reachable from one producer response. The exact
// status code is tried first, then its "2XX"-style wildcard.
func (idx LinkIndex) From(producer string, statusCode int) []interfaces.LinkDefinition {
	byStatus, ok := idx[producer]
	if !ok {
		return nil
	}
	exact := fmt.Sprintf("%d", statusCode)
	if links, ok := byStatus[exact]; ok {
		return links
	}
	if statusCode >= 100 && statusCode < 600 {
		wildcard := exact[:1] + "XX"
		if links, ok := byStatus[wildcard]; ok {
			return links
		}
	}
	return nil
}

// ResponseLinks flattens the index into its serializable grouped form,
// sorted for stable output.
func (idx LinkIndex) ResponseLinks() []interfaces.ResponseLinks {
	producers := make([]string, 0, len(idx))
	for producer := range idx {
		producers = append(producers, producer)
	}
	sort.Strings(producers)

	var out []interfaces.ResponseLinks
	for _, producer := range producers {
		statuses := make([]string, 0, len(idx[producer]))
		for status := range idx[producer] {
			statuses = append(statuses, status)
		}
		sort.Strings(statuses)
		for _, status := range statuses {
			out = append(out, interfaces.ResponseLinks{
				Producer:   producer,
				StatusCode: status,
				Links:      idx[producer][status],
			})
		}
	}
	return out
}

// SynthesizeLinks derives transitions for every (producer output slot,
// consumer input slot) pair referencing the same resource arena index.
// Matching slots for the same producer response and consumer collapse
// into one link carrying all parameter and body expressions.
func SynthesizeLinks(g *interfaces.DependencyGraph) LinkIndex {
	idx := make(LinkIndex)
	labels := g.SortedLabels()

	for _, producer := range labels {
		pnode := g.Operations[producer]
		for _, output := range pnode.Outputs {
			for _, consumer := range labels {
				if consumer == producer {
					continue
				}
				link := synthesizeLink(g, output, consumer)
				if link == nil {
					continue
				}
				idx.Add(producer, output.StatusCode, *link)
			}
		}
	}
	return idx
}

// synthesizeLink builds one inferred link from a producer output slot to
// every matching input slot of one consumer, or nil when nothing matches.
func synthesizeLink(g *interfaces.DependencyGraph, output interfaces.OutputSlot, consumer string) *interfaces.LinkDefinition {
	cnode := g.Operations[consumer]
	base := output.Pointer
	if output.Cardinality == interfaces.Many {
		// Array outputs reference the first element.
		base = joinPointer(base, "0")
	}

	var link *interfaces.LinkDefinition
	for _, input := range cnode.Inputs {
		if input.Resource != output.Resource {
			continue
		}
		if link == nil {
			link = &interfaces.LinkDefinition{
				Name:         linkName(g, output, cnode),
				OperationRef: operationRef(cnode),
				Parameters:   make(map[string]string),
				Inferred:     true,
			}
		}
		expr := "$response.body#" + joinPointer(base, input.ResourceField)
		if input.Location == interfaces.LocationBody {
			if link.RequestBody == nil {
				link.RequestBody = make(map[string]string)
			}
			link.RequestBody[input.ParameterName] = expr
			link.MergeBody = true
		} else {
			link.Parameters[string(input.Location)+"."+input.ParameterName] = expr
		}
	}
	return link
}

// linkName produces a stable human-readable link identifier, e.g.
// "UserGet" for a link feeding User data into a GET consumer.
func linkName(g *interfaces.DependencyGraph, output interfaces.OutputSlot, consumer *interfaces.OperationNode) string {
	resource := g.Resource(output.Resource)
	name := "Resource"
	if resource != nil {
		name = PascalCase(resource.Name)
	}
	return name + PascalCase(consumer.Method)
}

// operationRef renders the consumer as a local operationRef pointer,
// matching the OpenAPI Links wire shape.
func operationRef(node *interfaces.OperationNode) string {
	escaped := joinPointer("", node.Path) // escapes the path's slashes
	return fmt.Sprintf("#/paths/%s/%s", escaped[1:], strings.ToLower(node.Method))
}
