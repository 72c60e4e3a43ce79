/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: graph.go
Description: Graph command implementation for the Akaylee Explorer. Performs the
offline analysis half of the pipeline: dependency graph construction, layer
computation, and link synthesis, printed as YAML or JSON for inspection.
*/

package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/kleascm/akaylee-explorer/pkg/apigraph"
	"github.com/kleascm/akaylee-explorer/pkg/interfaces"
	"github.com/kleascm/akaylee-explorer/pkg/schedule"
	"github.com/kleascm/akaylee-explorer/pkg/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// RunGraph builds and prints the dependency graph for a schema
func RunGraph(cmd *cobra.Command, args []string) error {
	if err := LoadConfig(); err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	explorerLogger, err := SetupLogging()
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer explorerLogger.Close()
	log := explorerLogger.GetLogger()

	location := viper.GetString("graph_schema")
	loader := schema.NewLoader(log)
	operations, err := loader.Load(location)
	if err != nil {
		return fmt.Errorf("failed to load schema: %w", err)
	}

	builder := apigraph.NewBuilder(log)
	graph := builder.Build(operations)
	if err := apigraph.CheckConsistency(graph); err != nil {
		log.WithError(err).Warn("dependency graph consistency check failed")
	}

	links := apigraph.SynthesizeLinks(graph)
	for _, op := range operations {
		for status, response := range op.Responses {
			for _, link := range response.Links {
				links.Add(op.Label(), status, link)
			}
		}
	}
	layers := schedule.ComputeDependencyLayers(graph)

	document := map[string]interface{}{
		"graph":  graph.Serializable(),
		"layers": layers,
		"links":  linkDocument(links.ResponseLinks()),
	}

	rendered, err := renderDocument(document, viper.GetString("graph_format"))
	if err != nil {
		return err
	}

	if out := viper.GetString("graph_out"); out != "" {
		if err := os.WriteFile(out, rendered, 0644); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		fmt.Printf("📄 Graph written to %s\n", out)
		return nil
	}
	fmt.Print(string(rendered))
	return nil
}

// linkDocument renders synthesized links in OpenAPI Links shape, grouped
// by producer and status code.
func linkDocument(responseLinks []interfaces.ResponseLinks) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(responseLinks))
	for _, group := range responseLinks {
		shaped := make(map[string]interface{}, len(group.Links))
		for i := range group.Links {
			link := group.Links[i]
			shaped[link.Name] = link.OpenAPIShape()
		}
		out = append(out, map[string]interface{}{
			"producer":    group.Producer,
			"status_code": group.StatusCode,
			"links":       shaped,
		})
	}
	return out
}

func renderDocument(document map[string]interface{}, format string) ([]byte, error) {
	switch format {
	case "json":
		return json.MarshalIndent(document, "", "  ")
	case "yaml", "":
		return yaml.Marshal(document)
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}
