/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: main.go
Description: Main command-line interface for the Akaylee Explorer. Provides commands
for stateful API exploration and dependency graph inspection, with comprehensive
configuration management and advanced logging capabilities.
*/

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/kleascm/akaylee-explorer/cmd/explorer/commands"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Configuration
	configFile string
	logLevel   string
	jsonLogs   bool

	// Schema configuration
	schemaLocation string
	baseURL        string

	// Execution configuration
	workers         int
	stepCount       int
	maxExamples     int
	deadline        time.Duration
	seed            int64
	maxSuiteRetries int

	// Transport configuration
	requestTimeout  time.Duration
	followRedirects bool
	verifySSL       bool
	headers         []string
	rateLimit       int

	// Variant configuration
	maxVariants  int
	variantDecay float64

	// Check configuration
	suppressedChecks []string

	// Output configuration
	outputDir string

	// Logging configuration
	logDir      string
	logFormat   string
	logMaxFiles int
	logMaxSize  int64
	logCompress bool
)

func main() {
	// Create root command
	rootCmd := &cobra.Command{
		Use:   "akaylee-explorer",
		Short: "Akaylee Explorer - Stateful API exploration engine",
		Long: `Akaylee Explorer is a dependency-graph-driven API testing engine. It infers
resources and producer/consumer relationships from an OpenAPI description, orders
operations into dependency layers, and explores the live service with randomized
stateful scenarios that chain real response data into subsequent requests.`,
		Version: "1.0.0",
	}

	// Add persistent flags
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Logging level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "Use JSON log format")

	// Add logging-specific flags
	rootCmd.PersistentFlags().StringVar(&logDir, "log-dir", "./logs", "Log output directory")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "custom", "Log format (text, json, custom)")
	rootCmd.PersistentFlags().IntVar(&logMaxFiles, "log-max-files", 10, "Maximum number of log files to keep")
	rootCmd.PersistentFlags().Int64Var(&logMaxSize, "log-max-size", 100*1024*1024, "Maximum log file size in bytes")
	rootCmd.PersistentFlags().BoolVar(&logCompress, "log-compress", false, "Compress rotated log files")

	// Bind flags to viper
	viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("json_logs", rootCmd.PersistentFlags().Lookup("json-logs"))
	viper.BindPFlag("log_dir", rootCmd.PersistentFlags().Lookup("log-dir"))
	viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("log_max_files", rootCmd.PersistentFlags().Lookup("log-max-files"))
	viper.BindPFlag("log_max_size", rootCmd.PersistentFlags().Lookup("log-max-size"))
	viper.BindPFlag("log_compress", rootCmd.PersistentFlags().Lookup("log-compress"))

	// Add explore command
	exploreCmd := &cobra.Command{
		Use:   "explore",
		Short: "Explore a live API from its OpenAPI description",
		Long: `Start stateful exploration of a live API. The explorer builds the dependency
graph from the schema, runs a layer-ordered warmup pass to seed captured values,
then drives randomized scenarios until a full suite completes with no new failures.`,
		RunE: commands.RunExplore,
	}

	// Add explore command flags
	exploreCmd.Flags().StringVar(&schemaLocation, "schema", "", "OpenAPI schema location, file path or URL (required)")
	exploreCmd.Flags().StringVar(&baseURL, "base-url", "", "Base URL of the live service (required)")

	exploreCmd.Flags().IntVar(&workers, "workers", 4, "Number of warmup workers pulling from the layer scheduler")
	exploreCmd.Flags().IntVar(&stepCount, "steps", 6, "Maximum steps per scenario")
	exploreCmd.Flags().IntVar(&maxExamples, "max-examples", 50, "Scenarios per suite attempt")
	exploreCmd.Flags().DurationVar(&deadline, "deadline", 0, "Overall exploration deadline (0 = unlimited)")
	exploreCmd.Flags().Int64Var(&seed, "seed", 1, "Base random seed")
	exploreCmd.Flags().IntVar(&maxSuiteRetries, "max-suite-retries", 15, "Maximum suite retry attempts")

	exploreCmd.Flags().DurationVar(&requestTimeout, "request-timeout", 10*time.Second, "Per-request timeout")
	exploreCmd.Flags().BoolVar(&followRedirects, "follow-redirects", true, "Follow HTTP redirects")
	exploreCmd.Flags().BoolVar(&verifySSL, "verify-ssl", true, "Verify TLS certificates")
	exploreCmd.Flags().StringSliceVar(&headers, "header", []string{}, "Extra request headers (key=value)")
	exploreCmd.Flags().IntVar(&rateLimit, "rate-limit", 0, "Maximum requests per second (0 = unlimited)")

	exploreCmd.Flags().IntVar(&maxVariants, "max-variants", 4096, "Maximum tracked variant keys")
	exploreCmd.Flags().Float64Var(&variantDecay, "variant-decay", 8.0, "Recency decay constant for variant selection")

	exploreCmd.Flags().StringSliceVar(&suppressedChecks, "suppress-check", []string{}, "Check names to suppress")
	exploreCmd.Flags().StringVar(&outputDir, "output", "./explorer_output", "Directory for run summaries")

	// Mark required flags
	exploreCmd.MarkFlagRequired("schema")
	exploreCmd.MarkFlagRequired("base-url")

	// Bind flags to viper
	viper.BindPFlag("schema", exploreCmd.Flags().Lookup("schema"))
	viper.BindPFlag("base_url", exploreCmd.Flags().Lookup("base-url"))
	viper.BindPFlag("workers", exploreCmd.Flags().Lookup("workers"))
	viper.BindPFlag("steps", exploreCmd.Flags().Lookup("steps"))
	viper.BindPFlag("max_examples", exploreCmd.Flags().Lookup("max-examples"))
	viper.BindPFlag("deadline", exploreCmd.Flags().Lookup("deadline"))
	viper.BindPFlag("seed", exploreCmd.Flags().Lookup("seed"))
	viper.BindPFlag("max_suite_retries", exploreCmd.Flags().Lookup("max-suite-retries"))
	viper.BindPFlag("request_timeout", exploreCmd.Flags().Lookup("request-timeout"))
	viper.BindPFlag("follow_redirects", exploreCmd.Flags().Lookup("follow-redirects"))
	viper.BindPFlag("verify_ssl", exploreCmd.Flags().Lookup("verify-ssl"))
	viper.BindPFlag("headers", exploreCmd.Flags().Lookup("header"))
	viper.BindPFlag("rate_limit", exploreCmd.Flags().Lookup("rate-limit"))
	viper.BindPFlag("max_variants", exploreCmd.Flags().Lookup("max-variants"))
	viper.BindPFlag("variant_decay", exploreCmd.Flags().Lookup("variant-decay"))
	viper.BindPFlag("suppressed_checks", exploreCmd.Flags().Lookup("suppress-check"))
	viper.BindPFlag("output_dir", exploreCmd.Flags().Lookup("output"))

	rootCmd.AddCommand(exploreCmd)

	// Add graph command for dependency graph inspection
	graphCmd := &cobra.Command{
		Use:   "graph",
		Short: "Build and print the dependency graph for a schema",
		Long: `Analyze an OpenAPI description without touching the live service: infer
resources and producer/consumer edges, compute dependency layers, synthesize
links, and print the result for inspection.`,
		RunE: commands.RunGraph,
	}

	graphCmd.Flags().StringVar(&schemaLocation, "schema", "", "OpenAPI schema location, file path or URL (required)")
	graphCmd.Flags().String("format", "yaml", "Output format (yaml, json)")
	graphCmd.Flags().String("out", "", "Write output to a file instead of stdout")

	graphCmd.MarkFlagRequired("schema")

	viper.BindPFlag("graph_schema", graphCmd.Flags().Lookup("schema"))
	viper.BindPFlag("graph_format", graphCmd.Flags().Lookup("format"))
	viper.BindPFlag("graph_out", graphCmd.Flags().Lookup("out"))

	rootCmd.AddCommand(graphCmd)

	// Add logs command for log analysis
	rootCmd.AddCommand(&cobra.Command{
		Use:   "logs",
		Short: "Analyze past exploration logs",
		Long: `Scan the log directory and summarize past exploration runs: step volume,
discovered failures, extraction failures, and suite outcomes.`,
		RunE: commands.AnalyzeLogs,
	})

	// Execute root command
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
