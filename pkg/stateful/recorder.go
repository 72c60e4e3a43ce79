/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: recorder.go
Description: Per-scenario execution forest. Records every case, its response, its
check verdicts, and its parent edge so an extraction failure can reproduce the
full ancestor chain from scenario root to failing step. Owned by exactly one
scenario execution; no synchronization.
*/

package stateful

import (
	"github.com/kleascm/akaylee-explorer/pkg/interfaces"
)

// ScenarioRecorder tracks the cases executed by one scenario as a forest:
// first steps are roots, every later step hangs off the step whose response
// fed its transition.
type ScenarioRecorder struct {
	cases        map[string]*interfaces.Case
	responses    map[string]*interfaces.Response
	parents      map[string]string
	checkResults map[string][]interfaces.CheckResult
	order        []string // execution order of case ids
}

// NewScenarioRecorder creates an empty recorder.
func NewScenarioRecorder() *ScenarioRecorder {
	return &ScenarioRecorder{
		cases:        make(map[string]*interfaces.Case),
		responses:    make(map[string]*interfaces.Response),
		parents:      make(map[string]string),
		checkResults: make(map[string][]interfaces.CheckResult),
	}
}

// RecordCase registers a case and its parent edge. parentID is empty for a
// scenario's first step.
func (r *ScenarioRecorder) RecordCase(c *interfaces.Case, parentID string) {
	r.cases[c.ID] = c
	r.order = append(r.order, c.ID)
	if parentID != "" {
		r.parents[c.ID] = parentID
	}
}

// RecordResponse attaches the observed response to an executed case.
func (r *ScenarioRecorder) RecordResponse(caseID string, response *interfaces.Response) {
	r.responses[caseID] = response
}

// RecordCheck appends one check verdict for a case.
func (r *ScenarioRecorder) RecordCheck(caseID string, result interfaces.CheckResult) {
	r.checkResults[caseID] = append(r.checkResults[caseID], result)
}

// Case returns a recorded case by id, or nil.
func (r *ScenarioRecorder) Case(caseID string) *interfaces.Case {
	return r.cases[caseID]
}

// Response returns the recorded response for a case, or nil.
func (r *ScenarioRecorder) Response(caseID string) *interfaces.Response {
	return r.responses[caseID]
}

// Checks returns the recorded check verdicts for a case.
func (r *ScenarioRecorder) Checks(caseID string) []interfaces.CheckResult {
	return r.checkResults[caseID]
}

// Steps returns the executed case ids in execution order.
func (r *ScenarioRecorder) Steps() []string {
	return r.order
}

// History returns the ancestor chain for a case, root first, ending at the
// case itself. Each entry pairs the case with the response it produced
// (nil when the case never got one).
func (r *ScenarioRecorder) History(caseID string) []interfaces.HistoryEntry {
	var chain []interfaces.HistoryEntry
	for id := caseID; id != ""; id = r.parents[id] {
		c, ok := r.cases[id]
		if !ok {
			break
		}
		chain = append(chain, interfaces.HistoryEntry{Case: c, Response: r.responses[id]})
	}
	// Reverse in place: collected leaf-to-root, reported root-to-leaf.
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}
