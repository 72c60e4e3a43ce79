/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: links_test.go
Description: Unit tests for link synthesis and the link index: expression shapes
for single and array-valued outputs, body-merging links, operationRef rendering,
and status wildcard lookup.
*/

package apigraph_test

import (
	"testing"

	"github.com/kleascm/akaylee-explorer/pkg/apigraph"
	"github.com/kleascm/akaylee-explorer/pkg/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findLink(links []interfaces.LinkDefinition, operationRef string) *interfaces.LinkDefinition {
	for i := range links {
		if links[i].OperationRef == operationRef {
			return &links[i]
		}
	}
	return nil
}

func TestSynthesizeLinksSingleOutput(t *testing.T) {
	graph := apigraph.NewBuilder(nil).Build(userAPI())
	links := apigraph.SynthesizeLinks(graph)

	// Creating a user feeds its id into the fetch-by-id consumer.
	fromCreate := links.From("POST /users", 201)
	require.Len(t, fromCreate, 1)
	link := fromCreate[0]
	assert.True(t, link.Inferred)
	assert.Equal(t, "UserGet", link.Name)
	assert.Equal(t, "#/paths/~1users~1{userId}/get", link.OperationRef)
	assert.Equal(t, map[string]string{"path.userId": "$response.body#/id"}, link.Parameters)
	assert.Empty(t, link.RequestBody)
}

func TestSynthesizeLinksArrayOutput(t *testing.T) {
	graph := apigraph.NewBuilder(nil).Build(userAPI())
	links := apigraph.SynthesizeLinks(graph)

	// Listing users references the first element of the wrapped array.
	fromList := links.From("GET /users", 200)
	require.Len(t, fromList, 2)

	get := findLink(fromList, "#/paths/~1users~1{userId}/get")
	require.NotNil(t, get)
	assert.Equal(t, "$response.body#/data/0/id", get.Parameters["path.userId"])

	create := findLink(fromList, "#/paths/~1users/post")
	require.NotNil(t, create)
	assert.Equal(t, map[string]string{"name": "$response.body#/data/0/name"}, create.RequestBody)
	assert.True(t, create.MergeBody)
}

func TestSynthesizeLinksBodyConsumer(t *testing.T) {
	graph := apigraph.NewBuilder(nil).Build(userAPI())
	links := apigraph.SynthesizeLinks(graph)

	// A fetched user can seed the create body; the extracted field merges
	// into the generated payload rather than replacing it.
	fromGet := links.From("GET /users/{userId}", 200)
	require.Len(t, fromGet, 1)
	link := fromGet[0]
	assert.Equal(t, "UserPost", link.Name)
	assert.Equal(t, map[string]string{"name": "$response.body#/name"}, link.RequestBody)
	assert.True(t, link.MergeBody)
	assert.Empty(t, link.Parameters)
}

func TestLinkIndexWildcardLookup(t *testing.T) {
	idx := make(apigraph.LinkIndex)
	wildcard := interfaces.LinkDefinition{Name: "Wildcard", OperationRef: "#/paths/~1a/get"}
	exact := interfaces.LinkDefinition{Name: "Exact", OperationRef: "#/paths/~1b/get"}
	idx.Add("GET /items", "2XX", wildcard)
	idx.Add("GET /items", "200", exact)

	// The exact status wins over its wildcard.
	links := idx.From("GET /items", 200)
	require.Len(t, links, 1)
	assert.Equal(t, "Exact", links[0].Name)

	// Other 2xx codes fall through to the wildcard entry.
	links = idx.From("GET /items", 204)
	require.Len(t, links, 1)
	assert.Equal(t, "Wildcard", links[0].Name)

	assert.Nil(t, idx.From("GET /items", 404))
	assert.Nil(t, idx.From("GET /missing", 200))
}

func TestLinkIndexResponseLinksOrdering(t *testing.T) {
	idx := make(apigraph.LinkIndex)
	idx.Add("POST /b", "201", interfaces.LinkDefinition{Name: "B"})
	idx.Add("GET /a", "200", interfaces.LinkDefinition{Name: "A2"})
	idx.Add("GET /a", "200", interfaces.LinkDefinition{Name: "A3"})
	idx.Add("GET /a", "2XX", interfaces.LinkDefinition{Name: "A1"})

	grouped := idx.ResponseLinks()
	require.Len(t, grouped, 3)
	assert.Equal(t, "GET /a", grouped[0].Producer)
	assert.Equal(t, "200", grouped[0].StatusCode)
	assert.Equal(t, "A2", grouped[0].Links[0].Name)
	assert.Equal(t, "A3", grouped[0].Links[1].Name)
	assert.Equal(t, "2XX", grouped[1].StatusCode)
	assert.Equal(t, "POST /b", grouped[2].Producer)
}
