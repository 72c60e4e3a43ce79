/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: resources.go
Description: Resource arena for dependency graph construction. Resource definitions
live in a flat slice and are referenced by integer index, so "same resource" checks
between slots are a plain integer comparison with no pointer aliasing concerns.
*/

package apigraph

import (
	"sort"

	"github.com/kleascm/akaylee-explorer/pkg/interfaces"
)

// arena owns every ResourceDefinition created during one graph build.
// Definitions are created lazily and upgraded in place via MergeResource.
type arena struct {
	defs   []*interfaces.ResourceDefinition
	byName map[string]interfaces.ResourceRef
}

func newArena() *arena {
	return &arena{byName: make(map[string]interfaces.ResourceRef)}
}

// define creates the named resource or merges new evidence into the
// existing definition, returning its stable arena index.
func (a *arena) define(def interfaces.ResourceDefinition) interfaces.ResourceRef {
	sort.Strings(def.Fields)
	if ref, ok := a.byName[def.Name]; ok {
		merged := interfaces.MergeResource(*a.defs[ref], def)
		a.defs[ref] = &merged
		return ref
	}
	ref := interfaces.ResourceRef(len(a.defs))
	copied := def
	copied.Fields = append([]string(nil), def.Fields...)
	a.defs = append(a.defs, &copied)
	a.byName[def.Name] = ref
	return ref
}

// lookup returns the current definition for a name, if any.
func (a *arena) lookup(name string) (*interfaces.ResourceDefinition, bool) {
	ref, ok := a.byName[name]
	if !ok {
		return nil, false
	}
	return a.defs[ref], true
}

// compact drops definitions unreferenced by any slot and rewrites every
// slot's ref to the compacted index space. Run once, at the end of graph
// construction.
func (a *arena) compact(operations map[string]*interfaces.OperationNode) []*interfaces.ResourceDefinition {
	used := make(map[interfaces.ResourceRef]bool)
	for _, node := range operations {
		for _, slot := range node.Inputs {
			used[slot.Resource] = true
		}
		for _, slot := range node.Outputs {
			used[slot.Resource] = true
		}
	}

	remap := make(map[interfaces.ResourceRef]interfaces.ResourceRef, len(used))
	kept := make([]*interfaces.ResourceDefinition, 0, len(used))
	for i, def := range a.defs {
		old := interfaces.ResourceRef(i)
		if !used[old] {
			continue
		}
		remap[old] = interfaces.ResourceRef(len(kept))
		kept = append(kept, def)
	}

	for _, node := range operations {
		for i := range node.Inputs {
			node.Inputs[i].Resource = remap[node.Inputs[i].Resource]
		}
		for i := range node.Outputs {
			node.Outputs[i].Resource = remap[node.Outputs[i].Resource]
		}
	}
	return kept
}
