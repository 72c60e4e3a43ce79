/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: store.go
Description: Resource instance repository fed by observed responses. Offers
previously-seen field values as alternative inputs for later requests, either as
single-parameter variants or as relationship-preserving multi-parameter variants
assembled from one instance plus its capture-time context.
*/

package variants

import (
	"math/rand"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/kleascm/akaylee-explorer/pkg/interfaces"
	"github.com/kleascm/akaylee-explorer/pkg/utils"
	"github.com/sirupsen/logrus"
)

// maxInstancesPerResource bounds the repository per resource; the oldest
// instances roll off first.
const maxInstancesPerResource = 256

// maxElementsPerCapture bounds how many elements one array response
// contributes.
const maxElementsPerCapture = 10

// capturedInstance is one observed resource occurrence: its own fields
// plus the request context (path and query parameters) recorded at
// capture time.
type capturedInstance struct {
	fields  map[string]interface{}
	context map[string]interface{}
}

// Store implements interfaces.VariantSource over a repository of
// response-derived resource instances.
type Store struct {
	mu        sync.RWMutex
	graph     *interfaces.DependencyGraph
	tracker   *UsageTracker
	logger    *logrus.Logger
	instances map[string][]capturedInstance // keyed by resource name
}

// NewStore creates an empty variant store over the dependency graph.
func NewStore(graph *interfaces.DependencyGraph, tracker *UsageTracker, logger *logrus.Logger) *Store {
	if logger == nil {
		logger = logrus.New()
	}
	return &Store{
		graph:     graph,
		tracker:   tracker,
		logger:    logger,
		instances: make(map[string][]capturedInstance),
	}
}

// CaptureResponse walks the operation's output slots that match the
// response status and records every resource instance the body yields.
// Undecodable bodies are skipped silently; capture is best-effort.
func (s *Store) CaptureResponse(operation string, c *interfaces.Case, r *interfaces.Response) {
	node, ok := s.graph.Operations[operation]
	if !ok || r == nil {
		return
	}
	decoded, err := r.Decoded()
	if err != nil || decoded == nil {
		return
	}
	context := captureContext(c)

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, output := range node.Outputs {
		if !statusMatches(output.StatusCode, r.StatusCode) {
			continue
		}
		def := s.graph.Resource(output.Resource)
		if def == nil {
			continue
		}
		target, found := utils.ResolvePointer(decoded, output.Pointer)
		if !found {
			continue
		}
		switch output.Cardinality {
		case interfaces.Many:
			elements, ok := target.([]interface{})
			if !ok {
				continue
			}
			for i, element := range elements {
				if i >= maxElementsPerCapture {
					break
				}
				s.recordLocked(def.Name, element, context)
			}
		default:
			s.recordLocked(def.Name, target, context)
		}
	}
}

func (s *Store) recordLocked(resource string, value interface{}, context map[string]interface{}) {
	fields, ok := value.(map[string]interface{})
	if !ok {
		return
	}
	list := append(s.instances[resource], capturedInstance{fields: fields, context: context})
	if len(list) > maxInstancesPerResource {
		list = list[len(list)-maxInstancesPerResource:]
	}
	s.instances[resource] = list
}

// requirement is one schema property bound to a known input slot.
type requirement struct {
	parameter string
	resource  string
	field     string
}

// GetCapturedVariants returns previously observed values for the schema
// properties that correspond to known input slots of the operation at
// the given location. Single-requirement lookups return one single-key
// map per distinct value; multi-requirement lookups return only complete,
// relationship-preserving variants. Returns nil when nothing applies.
func (s *Store) GetCapturedVariants(operation string, location interfaces.ParameterLocation, schema *openapi3.Schema) []map[string]interface{} {
	requirements := s.requirementsFor(operation, location, schema)
	if len(requirements) == 0 {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(requirements) == 1 {
		return s.singleVariantsLocked(requirements[0])
	}
	return s.completeVariantsLocked(requirements)
}

// SelectVariant picks one captured variant with recency weighting and
// records the draw. Returns nil when no variants exist.
func (s *Store) SelectVariant(rng *rand.Rand, operation string, location interfaces.ParameterLocation, schema *openapi3.Schema) map[string]interface{} {
	candidates := s.GetCapturedVariants(operation, location, schema)
	if len(candidates) == 0 {
		return nil
	}
	keys := make([]string, len(candidates))
	for i, candidate := range candidates {
		keys[i] = utils.CanonicalJSON(candidate)
	}
	idx := s.tracker.WeightedSelect(rng, keys)
	if idx < 0 {
		return nil
	}
	s.tracker.RecordDraw(keys[idx])
	return candidates[idx]
}

func (s *Store) requirementsFor(operation string, location interfaces.ParameterLocation, schema *openapi3.Schema) []requirement {
	node, ok := s.graph.Operations[operation]
	if !ok || schema == nil {
		return nil
	}
	var requirements []requirement
	for property := range schema.Properties {
		for _, input := range node.Inputs {
			if input.Location != location || input.ParameterName != property {
				continue
			}
			def := s.graph.Resource(input.Resource)
			if def == nil {
				continue
			}
			requirements = append(requirements, requirement{
				parameter: property,
				resource:  def.Name,
				field:     input.ResourceField,
			})
			break
		}
	}
	// Stable order regardless of map iteration.
	sortRequirements(requirements)
	return requirements
}

func (s *Store) singleVariantsLocked(req requirement) []map[string]interface{} {
	seen := make(map[string]bool)
	var out []map[string]interface{}
	for _, instance := range s.instances[req.resource] {
		value, ok := instance.fields[req.field]
		if !ok {
			continue
		}
		key := utils.ValueKey(value)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, map[string]interface{}{req.parameter: value})
	}
	return out
}

// completeVariantsLocked assembles multi-parameter variants: for each
// instance, every requirement must be fillable from the instance's own
// fields or from its capture context, otherwise the variant is dropped.
func (s *Store) completeVariantsLocked(requirements []requirement) []map[string]interface{} {
	resources := make(map[string]bool)
	for _, req := range requirements {
		resources[req.resource] = true
	}

	seen := make(map[string]bool)
	var out []map[string]interface{}
	for resource := range resources {
		for _, instance := range s.instances[resource] {
			variant := make(map[string]interface{}, len(requirements))
			complete := true
			for _, req := range requirements {
				if req.resource == resource {
					if value, ok := instance.fields[req.field]; ok {
						variant[req.parameter] = value
						continue
					}
				}
				if value, ok := instance.context[req.parameter]; ok {
					variant[req.parameter] = value
					continue
				}
				complete = false
				break
			}
			if !complete {
				continue
			}
			key := utils.CanonicalJSON(variant)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, variant)
		}
	}
	return out
}

func captureContext(c *interfaces.Case) map[string]interface{} {
	context := make(map[string]interface{})
	if c == nil {
		return context
	}
	for name, value := range c.PathParams {
		context[name] = value
	}
	for name, value := range c.Query {
		context[name] = value
	}
	return context
}

func statusMatches(declared string, code int) bool {
	switch {
	case declared == "default":
		return true
	case strings.HasSuffix(declared, "XX") && len(declared) == 3:
		return int(declared[0]-'0') == code/100
	default:
		return declared == strconv.Itoa(code)
	}
}

func sortRequirements(requirements []requirement) {
	sort.Slice(requirements, func(i, j int) bool {
		return requirements[i].parameter < requirements[j].parameter
	})
}
