/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: explore.go
Description: Explore command implementation for the Akaylee Explorer. Builds the
dependency graph from the schema, runs a layer-ordered warmup pass through the
barrier scheduler, then drives the stateful engine until a suite completes clean.
*/

package commands

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/kleascm/akaylee-explorer/pkg/apigraph"
	"github.com/kleascm/akaylee-explorer/pkg/checks"
	"github.com/kleascm/akaylee-explorer/pkg/execution"
	"github.com/kleascm/akaylee-explorer/pkg/interfaces"
	"github.com/kleascm/akaylee-explorer/pkg/logging"
	"github.com/kleascm/akaylee-explorer/pkg/schedule"
	"github.com/kleascm/akaylee-explorer/pkg/schema"
	"github.com/kleascm/akaylee-explorer/pkg/stateful"
	"github.com/kleascm/akaylee-explorer/pkg/utils"
	"github.com/kleascm/akaylee-explorer/pkg/variants"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// RunExplore executes the main exploration process
func RunExplore(cmd *cobra.Command, args []string) error {
	fmt.Println("🧭 Akaylee Explorer - Starting Exploration Session")
	fmt.Println("==================================================")
	fmt.Println()

	// Load configuration first
	if err := LoadConfig(); err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Setup logging
	explorerLogger, err := SetupLogging()
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer explorerLogger.Close()
	log := explorerLogger.GetLogger()

	// Create explorer configuration
	config := createExplorerConfig()
	if err := validateExplorerConfig(config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Load and flatten the schema
	loader := schema.NewLoader(log)
	operations, err := loader.Load(config.SchemaLocation)
	if err != nil {
		return fmt.Errorf("failed to load schema: %w", err)
	}
	operationIndex := make(map[string]*interfaces.APIOperation, len(operations))
	for _, op := range operations {
		operationIndex[op.Label()] = op
	}
	fmt.Printf("📋 Schema loaded: %d operations\n", len(operations))

	// Build the dependency graph
	builder := apigraph.NewBuilder(log)
	graph := builder.Build(operations)
	if err := apigraph.CheckConsistency(graph); err != nil {
		log.WithError(err).Warn("dependency graph consistency check failed")
	}
	fmt.Printf("🕸️  Dependency graph: %d operations, %d resources\n", len(graph.Operations), len(graph.Resources))

	// Combine declared and synthesized links
	links := apigraph.SynthesizeLinks(graph)
	for _, op := range operations {
		for status, response := range op.Responses {
			for _, link := range response.Links {
				links.Add(op.Label(), status, link)
			}
		}
	}

	// Compute dependency layers
	layers := schedule.ComputeDependencyLayers(graph)
	if layers == nil {
		fmt.Println("📐 No dependency edges found, scheduling unordered")
	} else {
		fmt.Printf("📐 Dependency layers: %d\n", len(layers))
	}

	// Variant tracking
	tracker := variants.NewUsageTracker(config.MaxVariants, config.VariantDecay)
	store := variants.NewStore(graph, tracker, log)

	// Build collaborators
	transport := execution.NewHTTPTransport(viper.GetInt("rate_limit"), log)
	generator := stateful.NewRandomWalkGenerator(operationIndex, links, layers, store, config.StepCount, config.MaxExamples)

	// Create and wire the engine
	engine := stateful.NewEngine(graph, operationIndex)
	engine.SetLogger(log)
	engine.SetTransport(transport)
	engine.SetGenerator(generator)
	engine.SetChecks(checks.DefaultChecks())
	engine.SetResponseSink(store)
	engine.AddReporter(logging.NewLogReporter(explorerLogger))

	if err := engine.Initialize(config); err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}

	// Set up signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\n🛑 Received shutdown signal, stopping exploration...")
		engine.Stop()
		cancel()
	}()

	// Layer-ordered warmup pass to seed the variant store
	if layers != nil {
		warmup(ctx, config, graph, layers, generator, transport, store)
	}

	// Run the exploration loop
	start := time.Now()
	outcome, err := engine.Explore(ctx)
	if err != nil && outcome != interfaces.SuiteInterrupted {
		log.WithError(err).Error("exploration ended with error")
	}

	// Write run summary
	stats := engine.Stats()
	summary := map[string]interface{}{
		"schema":              config.SchemaLocation,
		"base_url":            config.BaseURL,
		"outcome":             outcome.String(),
		"elapsed":             formatDuration(time.Since(start)),
		"suites":              stats.SuitesRun,
		"scenarios":           stats.ScenariosRun,
		"steps":               stats.StepsExecuted,
		"step_errors":         stats.StepErrors,
		"new_failures":        stats.NewFailures,
		"flaky_suites":        stats.FlakySuites,
		"extraction_failures": extractionSummaries(engine.ExtractionFailures()),
		"graph":               graph.Serializable(),
	}
	if path, err := utils.WriteRunSummary(viper.GetString("output_dir"), summary); err != nil {
		log.WithError(err).Warn("failed to write run summary")
	} else {
		fmt.Printf("📄 Run summary written to %s\n", path)
	}

	// Print final statistics
	explorerLogger.LogStats(stats.SuitesRun, stats.ScenariosRun, stats.StepsExecuted, stats.NewFailures, nil)
	printFinalStats(stats, outcome)

	fmt.Println("\n✨ Exploration session completed!")
	if err != nil {
		return err
	}
	return nil
}

// warmup dispatches every operation once in dependency order: N workers
// pull from the barrier scheduler, execute, and feed responses into the
// variant store so the first scenarios already have real values to chain.
func warmup(ctx context.Context, config *interfaces.ExplorerConfig, graph *interfaces.DependencyGraph, layers [][]string, generator *stateful.RandomWalkGenerator, transport interfaces.Transport, store *variants.Store) {
	fmt.Printf("🔥 Warmup pass: %d workers over %d layers\n", config.Workers, len(layers))

	scheduler := schedule.NewLayeredScheduler(graph, layers)
	options := &interfaces.TransportOptions{
		BaseURL:         config.BaseURL,
		Timeout:         config.RequestTimeout,
		FollowRedirects: config.FollowRedirects,
		VerifySSL:       config.VerifySSL,
		Headers:         config.Headers,
	}
	var wg sync.WaitGroup
	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func(workerSeed int64) {
			defer wg.Done()
			// Each worker owns its random source; *rand.Rand is not safe
			// for concurrent use.
			rng := rand.New(rand.NewSource(workerSeed))
			for {
				if ctx.Err() != nil {
					return
				}
				node := scheduler.NextOperation()
				if node == nil {
					return
				}
				c := generator.SeedCaseWith(rng, node.Label())
				if c == nil {
					continue
				}
				response, err := transport.Call(ctx, c, options)
				if err != nil {
					continue
				}
				store.CaptureResponse(c.Operation, c, response)
			}
		}(config.Seed + int64(i))
	}
	wg.Wait()
}

func extractionSummaries(failures []*interfaces.ExtractionFailure) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(failures))
	for _, f := range failures {
		entry := map[string]interface{}{
			"link":       f.ID,
			"source":     f.Source,
			"target":     f.Target,
			"parameter":  f.ParameterName,
			"expression": f.Expression,
		}
		if f.Err != nil {
			entry["error"] = f.Err.Error()
		}
		out = append(out, entry)
	}
	return out
}

// printFinalStats prints the exploration results
func printFinalStats(stats stateful.EngineStats, outcome interfaces.SuiteOutcome) {
	fmt.Println("\n📊 Exploration Results")
	fmt.Println("======================")
	fmt.Printf("  Outcome:              %s\n", outcome.String())
	fmt.Printf("  Suites run:           %d\n", stats.SuitesRun)
	fmt.Printf("  Scenarios run:        %d\n", stats.ScenariosRun)
	fmt.Printf("  Steps executed:       %d\n", stats.StepsExecuted)
	fmt.Printf("  Step errors:          %d\n", stats.StepErrors)
	fmt.Printf("  New failures:         %d\n", stats.NewFailures)
	fmt.Printf("  Flaky suites:         %d\n", stats.FlakySuites)
	fmt.Printf("  Extraction failures:  %d\n", stats.ExtractionFailures)
}
