/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: generator.go
Description: Randomized scenario generation over the link graph. Each scenario
starts at a dependency-layer-zero operation and walks outgoing links at random,
preferring captured variant values for parameters and falling back to
schema-driven synthetic values. Deterministic for a fixed seed.
*/

package stateful

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/google/uuid"
	"github.com/kleascm/akaylee-explorer/pkg/apigraph"
	"github.com/kleascm/akaylee-explorer/pkg/interfaces"
)

// VariantPicker supplies recency-weighted captured values for an
// operation's parameters. Optional; nil means synthetic values only.
type VariantPicker interface {
	SelectVariant(rng *rand.Rand, operation string, location interfaces.ParameterLocation, schema *openapi3.Schema) map[string]interface{}
}

// RandomWalkGenerator implements interfaces.CaseGenerator with a seeded
// random walk: layer-zero operations seed scenarios, outgoing links
// (declared and synthesized) pick each following step.
type RandomWalkGenerator struct {
	operations map[string]*interfaces.APIOperation
	links      apigraph.LinkIndex
	variants   VariantPicker

	stepCount   int
	maxExamples int

	// startOps are the operations eligible as scenario roots: the first
	// dependency layer, or every operation when layering found no edges.
	startOps []string

	rng       *rand.Rand
	scenarios int
	steps     int
}

// NewRandomWalkGenerator builds a generator over the schema operations,
// the combined link index, and the precomputed dependency layers (nil
// layers means every operation can start a scenario).
func NewRandomWalkGenerator(operations map[string]*interfaces.APIOperation, links apigraph.LinkIndex, layers [][]string, variants VariantPicker, stepCount, maxExamples int) *RandomWalkGenerator {
	var startOps []string
	if len(layers) > 0 {
		startOps = append(startOps, layers[0]...)
	} else {
		for label := range operations {
			startOps = append(startOps, label)
		}
		sort.Strings(startOps)
	}
	if stepCount <= 0 {
		stepCount = 5
	}
	if maxExamples <= 0 {
		maxExamples = 50
	}
	return &RandomWalkGenerator{
		operations:  operations,
		links:       links,
		variants:    variants,
		stepCount:   stepCount,
		maxExamples: maxExamples,
		startOps:    startOps,
	}
}

// BeginSuite re-seeds the walk for a fresh suite attempt.
func (g *RandomWalkGenerator) BeginSuite(seed int64) {
	g.rng = rand.New(rand.NewSource(seed))
	g.scenarios = 0
}

// NextScenario opens a new scenario until the example budget runs out.
func (g *RandomWalkGenerator) NextScenario() bool {
	if g.scenarios >= g.maxExamples {
		return false
	}
	g.scenarios++
	g.steps = 0
	return true
}

// NextStep produces the next step of the current scenario. The first step
// starts at a random root operation; later steps follow a random outgoing
// link of the previous response. A nil input ends the scenario.
func (g *RandomWalkGenerator) NextStep(prev *interfaces.StepOutput) (*interfaces.StepInput, error) {
	if g.steps >= g.stepCount {
		return nil, nil
	}

	if prev == nil {
		if len(g.startOps) == 0 {
			return nil, fmt.Errorf("%w: no operations to start from", interfaces.ErrUnsatisfiable)
		}
		label := g.startOps[g.rng.Intn(len(g.startOps))]
		op, ok := g.operations[label]
		if !ok {
			return nil, fmt.Errorf("%w: unknown start operation %s", interfaces.ErrUnsatisfiable, label)
		}
		g.steps++
		return &interfaces.StepInput{Case: g.buildCase(g.rng, op)}, nil
	}

	// A step without a response (recoverable transport error) leaves
	// nothing to extract from; end the scenario.
	if prev.Response == nil {
		return nil, nil
	}
	// Copy before shuffling: the index hands out its internal slice and
	// other readers depend on its stable ordering.
	outgoing := g.links.From(prev.Case.Operation, prev.Response.StatusCode)
	candidates := make([]interfaces.LinkDefinition, len(outgoing))
	copy(candidates, outgoing)
	g.rng.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	for i := range candidates {
		link := candidates[i]
		method, path, ok := operationFromRef(link.OperationRef)
		if !ok {
			continue
		}
		op, known := g.operations[method+" "+path]
		if !known {
			continue
		}
		g.steps++
		return &interfaces.StepInput{
			Case: g.buildCase(g.rng, op),
			Transition: &interfaces.Transition{
				ID:       uuid.New().String(),
				ParentID: prev.Case.ID,
				Link:     &link,
			},
		}, nil
	}
	return nil, nil
}

// SeedCase builds a standalone case for one operation using the
// generator's own walk source. Not safe for concurrent callers; they use
// SeedCaseWith.
func (g *RandomWalkGenerator) SeedCase(label string) *interfaces.Case {
	if g.rng == nil {
		g.rng = rand.New(rand.NewSource(1))
	}
	return g.SeedCaseWith(g.rng, label)
}

// SeedCaseWith builds a standalone case for one operation with a
// caller-owned random source. The layer-ordered warmup pass gives each
// worker its own seeded source, so workers never share a *rand.Rand.
func (g *RandomWalkGenerator) SeedCaseWith(rng *rand.Rand, label string) *interfaces.Case {
	op, ok := g.operations[label]
	if !ok {
		return nil
	}
	return g.buildCase(rng, op)
}

// buildCase binds every declared parameter of the operation: captured
// variants first, schema-driven synthetic values otherwise. The engine
// overwrites slots the transition resolves. All randomness flows through
// the passed source so concurrent callers can hold their own.
func (g *RandomWalkGenerator) buildCase(rng *rand.Rand, op *interfaces.APIOperation) *interfaces.Case {
	c := &interfaces.Case{
		ID:        uuid.New().String(),
		Operation: op.Label(),
		Method:    op.Method,
		Path:      op.Path,
	}

	byLocation := make(map[interfaces.ParameterLocation][]interfaces.APIParameter)
	for _, param := range op.Parameters {
		byLocation[param.Location] = append(byLocation[param.Location], param)
	}
	locations := make([]interfaces.ParameterLocation, 0, len(byLocation))
	for location := range byLocation {
		locations = append(locations, location)
	}
	// Fixed location order keeps the walk deterministic for a seed.
	sort.Slice(locations, func(i, j int) bool { return locations[i] < locations[j] })
	for _, location := range locations {
		params := byLocation[location]
		picked := g.pickVariant(rng, op.Label(), location, params)
		for _, param := range params {
			if location == interfaces.LocationQuery && !param.Required && rng.Intn(2) == 0 {
				continue
			}
			value, ok := picked[param.Name]
			if !ok {
				value = g.syntheticValue(rng, param.Schema)
			}
			setParam(locationTarget(c, location), param.Name, fmt.Sprint(value))
		}
	}

	if op.RequestBody != nil && op.RequestBody.Value != nil {
		c.Body = g.syntheticObject(rng, op.RequestBody.Value)
	}
	return c
}

// pickVariant asks the variant source for a captured value set covering
// the location's parameters.
func (g *RandomWalkGenerator) pickVariant(rng *rand.Rand, operation string, location interfaces.ParameterLocation, params []interfaces.APIParameter) map[string]interface{} {
	if g.variants == nil {
		return nil
	}
	properties := make(openapi3.Schemas, len(params))
	for _, param := range params {
		properties[param.Name] = param.Schema
	}
	return g.variants.SelectVariant(rng, operation, location, &openapi3.Schema{Properties: properties})
}

// syntheticValue produces a plausible value for a parameter schema.
func (g *RandomWalkGenerator) syntheticValue(rng *rand.Rand, ref *openapi3.SchemaRef) interface{} {
	if ref == nil || ref.Value == nil {
		return rng.Intn(1000)
	}
	schema := ref.Value
	if len(schema.Enum) > 0 {
		return schema.Enum[rng.Intn(len(schema.Enum))]
	}
	switch {
	case schema.Type.Is(openapi3.TypeInteger):
		return rng.Intn(1000)
	case schema.Type.Is(openapi3.TypeNumber):
		return rng.Float64() * 1000
	case schema.Type.Is(openapi3.TypeBoolean):
		return rng.Intn(2) == 0
	case schema.Type.Is(openapi3.TypeArray):
		return []interface{}{g.syntheticValue(rng, schema.Items)}
	case schema.Type.Is(openapi3.TypeObject):
		return g.syntheticObject(rng, schema)
	default:
		if schema.Format == "uuid" {
			return uuid.New().String()
		}
		return fmt.Sprintf("value-%d", rng.Intn(100000))
	}
}

func (g *RandomWalkGenerator) syntheticObject(rng *rand.Rand, schema *openapi3.Schema) map[string]interface{} {
	object := make(map[string]interface{}, len(schema.Properties))
	names := make([]string, 0, len(schema.Properties))
	for name := range schema.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		object[name] = g.syntheticValue(rng, schema.Properties[name])
	}
	return object
}

func locationTarget(c *interfaces.Case, location interfaces.ParameterLocation) *map[string]string {
	switch location {
	case interfaces.LocationPath:
		return &c.PathParams
	case interfaces.LocationHeader:
		return &c.Headers
	case interfaces.LocationCookie:
		return &c.Cookies
	default:
		return &c.Query
	}
}

// operationFromRef decodes a local "#/paths/{escaped path}/{method}"
// operation reference back into its method and path.
func operationFromRef(ref string) (method, path string, ok bool) {
	rest := strings.TrimPrefix(ref, "#/paths/")
	if rest == ref {
		return "", "", false
	}
	slash := strings.LastIndex(rest, "/")
	if slash <= 0 {
		return "", "", false
	}
	escaped, method := rest[:slash], rest[slash+1:]
	path = strings.ReplaceAll(escaped, "~1", "/")
	path = strings.ReplaceAll(path, "~0", "~")
	return strings.ToUpper(method), path, true
}
