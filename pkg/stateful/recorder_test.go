/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: recorder_test.go
Description: Unit tests for the scenario recorder: parent edges, execution order,
and root-first ancestor chains.
*/

package stateful_test

import (
	"testing"

	"github.com/kleascm/akaylee-explorer/pkg/interfaces"
	"github.com/kleascm/akaylee-explorer/pkg/stateful"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderHistoryRootFirst(t *testing.T) {
	r := stateful.NewScenarioRecorder()

	root := &interfaces.Case{ID: "c1", Operation: "POST /users"}
	child := &interfaces.Case{ID: "c2", Operation: "GET /users/{userId}"}
	grandchild := &interfaces.Case{ID: "c3", Operation: "DELETE /users/{userId}"}

	r.RecordCase(root, "")
	r.RecordResponse("c1", &interfaces.Response{StatusCode: 201})
	r.RecordCase(child, "c1")
	r.RecordResponse("c2", &interfaces.Response{StatusCode: 200})
	r.RecordCase(grandchild, "c2")

	chain := r.History("c3")
	require.Len(t, chain, 3)
	assert.Same(t, root, chain[0].Case)
	assert.Same(t, child, chain[1].Case)
	assert.Same(t, grandchild, chain[2].Case)
	assert.Equal(t, 201, chain[0].Response.StatusCode)
	// The failing step itself may not have a response yet.
	assert.Nil(t, chain[2].Response)

	assert.Equal(t, []string{"c1", "c2", "c3"}, r.Steps())
}

func TestRecorderLookups(t *testing.T) {
	r := stateful.NewScenarioRecorder()
	c := &interfaces.Case{ID: "c1", Operation: "GET /health"}
	r.RecordCase(c, "")
	r.RecordCheck("c1", interfaces.CheckResult{Name: "not_a_server_error", Passed: true})

	assert.Same(t, c, r.Case("c1"))
	assert.Nil(t, r.Case("missing"))
	assert.Nil(t, r.Response("c1"))
	require.Len(t, r.Checks("c1"), 1)
	assert.True(t, r.Checks("c1")[0].Passed)

	assert.Empty(t, r.History("missing"))
}
