/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: layers.go
Description: Dependency layering for the operation graph. Builds the operation-level
dependency relation from shared resource identity, peels layers with Kahn's
algorithm, and falls back to Tarjan SCC condensation when cycles block layering.
Output is deterministic: every layer is sorted lexicographically.
*/

package schedule

import (
	"sort"
	"strconv"

	"github.com/kleascm/akaylee-explorer/pkg/interfaces"
)

// ComputeDependencyLayers orders the graph's operations into layers where
// layer N operations depend only on layers < N. Within a layer, operations
// are independent and safe to dispatch concurrently. Returns nil when the
// graph has no dependency edges at all, signalling the caller to fall back
// to an unordered heuristic.
func ComputeDependencyLayers(g *interfaces.DependencyGraph) [][]string {
	deps, edgeCount := dependencyRelation(g)
	if edgeCount == 0 {
		return nil
	}

	layers, placed := kahnLayers(deps)
	if placed == len(deps) {
		return layers
	}

	// A cycle blocked layering. Collapse each strongly connected
	// component into one super-node, layer the condensed acyclic graph,
	// then expand components back into flat sorted layers.
	return cycleAwareLayers(deps)
}

// dependencyRelation builds, for every operation, the set of operations it
// depends on: A depends on B when some input slot of A and some output
// slot of B reference the same resource arena index, A != B. Multiple
// resource links between one pair collapse to a single edge.
func dependencyRelation(g *interfaces.DependencyGraph) (map[string]map[string]bool, int) {
	producers := make(map[interfaces.ResourceRef][]string)
	for _, label := range g.SortedLabels() {
		node := g.Operations[label]
		seen := make(map[interfaces.ResourceRef]bool, len(node.Outputs))
		for _, output := range node.Outputs {
			if !seen[output.Resource] {
				seen[output.Resource] = true
				producers[output.Resource] = append(producers[output.Resource], label)
			}
		}
	}

	deps := make(map[string]map[string]bool, len(g.Operations))
	edges := 0
	for _, label := range g.SortedLabels() {
		deps[label] = make(map[string]bool)
		for _, input := range g.Operations[label].Inputs {
			for _, producer := range producers[input.Resource] {
				if producer == label || deps[label][producer] {
					continue
				}
				deps[label][producer] = true
				edges++
			}
		}
	}
	return deps, edges
}

// kahnLayers peels off zero-in-degree operations as successive layers.
// Returns the layers plus how many operations were placed; fewer than the
// total means a cycle got in the way.
func kahnLayers(deps map[string]map[string]bool) ([][]string, int) {
	remaining := make(map[string]int, len(deps))
	dependents := make(map[string][]string, len(deps))
	for label, set := range deps {
		remaining[label] = len(set)
		for dep := range set {
			dependents[dep] = append(dependents[dep], label)
		}
	}

	var layers [][]string
	placed := 0
	for {
		var layer []string
		for label, degree := range remaining {
			if degree == 0 {
				layer = append(layer, label)
			}
		}
		if len(layer) == 0 {
			break
		}
		sort.Strings(layer)
		layers = append(layers, layer)
		placed += len(layer)
		for _, label := range layer {
			delete(remaining, label)
			for _, dependent := range dependents[label] {
				if _, ok := remaining[dependent]; ok {
					remaining[dependent]--
				}
			}
		}
	}
	return layers, placed
}

// cycleAwareLayers condenses strongly connected components and layers the
// resulting acyclic graph, expanding each component back into a single
// flat, lexicographically sorted layer slice.
func cycleAwareLayers(deps map[string]map[string]bool) [][]string {
	components := stronglyConnected(deps)

	componentOf := make(map[string]int, len(deps))
	for i, members := range components {
		for _, label := range members {
			componentOf[label] = i
		}
	}

	// Condensed dependency relation between components.
	condensed := make(map[string]map[string]bool, len(components))
	names := make([]string, len(components))
	for i := range components {
		names[i] = componentName(i)
		condensed[names[i]] = make(map[string]bool)
	}
	for label, set := range deps {
		from := componentOf[label]
		for dep := range set {
			to := componentOf[dep]
			if from != to {
				condensed[names[from]][names[to]] = true
			}
		}
	}

	condensedLayers, _ := kahnLayers(condensed) // acyclic, places everything
	layers := make([][]string, 0, len(condensedLayers))
	for _, layer := range condensedLayers {
		var expanded []string
		for _, name := range layer {
			expanded = append(expanded, components[componentIndex(name)]...)
		}
		sort.Strings(expanded)
		layers = append(layers, expanded)
	}
	return layers
}

// stronglyConnected runs Tarjan's algorithm iteratively with an explicit
// stack, so pathological schemas with thousands of operations cannot
// overflow the goroutine stack. Components come back with sorted members,
// ordered by their lowest member for determinism.
func stronglyConnected(deps map[string]map[string]bool) [][]string {
	labels := make([]string, 0, len(deps))
	for label := range deps {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	adjacency := make(map[string][]string, len(deps))
	for label, set := range deps {
		targets := make([]string, 0, len(set))
		for dep := range set {
			targets = append(targets, dep)
		}
		sort.Strings(targets)
		adjacency[label] = targets
	}

	index := make(map[string]int, len(deps))
	lowlink := make(map[string]int, len(deps))
	onStack := make(map[string]bool, len(deps))
	var stack []string
	var components [][]string
	counter := 0

	type frame struct {
		label string
		next  int // next adjacency edge to examine
	}

	for _, start := range labels {
		if _, visited := index[start]; visited {
			continue
		}
		callStack := []frame{{label: start}}
		index[start] = counter
		lowlink[start] = counter
		counter++
		stack = append(stack, start)
		onStack[start] = true

		for len(callStack) > 0 {
			top := &callStack[len(callStack)-1]
			if top.next < len(adjacency[top.label]) {
				target := adjacency[top.label][top.next]
				top.next++
				if _, visited := index[target]; !visited {
					index[target] = counter
					lowlink[target] = counter
					counter++
					stack = append(stack, target)
					onStack[target] = true
					callStack = append(callStack, frame{label: target})
				} else if onStack[target] {
					if index[target] < lowlink[top.label] {
						lowlink[top.label] = index[target]
					}
				}
				continue
			}

			// All edges examined: pop the frame, maybe emit a component.
			finished := top.label
			callStack = callStack[:len(callStack)-1]
			if len(callStack) > 0 {
				parent := &callStack[len(callStack)-1]
				if lowlink[finished] < lowlink[parent.label] {
					lowlink[parent.label] = lowlink[finished]
				}
			}
			if lowlink[finished] == index[finished] {
				var members []string
				for {
					popped := stack[len(stack)-1]
					stack = stack[:len(stack)-1]
					onStack[popped] = false
					members = append(members, popped)
					if popped == finished {
						break
					}
				}
				sort.Strings(members)
				components = append(components, members)
			}
		}
	}

	sort.Slice(components, func(i, j int) bool { return components[i][0] < components[j][0] })
	return components
}

// componentName/componentIndex give condensed super-nodes stable string
// identities so kahnLayers can be reused unchanged.
func componentName(i int) string {
	return "scc:" + strconv.Itoa(i)
}

func componentIndex(name string) int {
	i, _ := strconv.Atoi(name[4:])
	return i
}
