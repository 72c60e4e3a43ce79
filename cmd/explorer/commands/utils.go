/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: utils.go
Description: Shared utilities for the Akaylee Explorer commands. Provides common
configuration loading, logging setup, and helpers used across all command
implementations.
*/

package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/kleascm/akaylee-explorer/pkg/interfaces"
	"github.com/kleascm/akaylee-explorer/pkg/logging"
	"github.com/spf13/viper"
)

// LoadConfig loads configuration from files and environment
func LoadConfig() error {
	// Set config file if specified
	if configFile := viper.GetString("config"); configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Set environment variable prefix
	viper.SetEnvPrefix("AKAYLEE")
	viper.AutomaticEnv()

	return nil
}

// SetupLogging creates the explorer logger from the configured options
func SetupLogging() (*logging.Logger, error) {
	format := logging.LogFormat(viper.GetString("log_format"))
	if viper.GetBool("json_logs") {
		format = logging.LogFormatJSON
	}

	config := &logging.LoggerConfig{
		Level:     logging.LogLevel(viper.GetString("log_level")),
		Format:    format,
		OutputDir: viper.GetString("log_dir"),
		MaxFiles:  viper.GetInt("log_max_files"),
		MaxSize:   viper.GetInt64("log_max_size"),
		Timestamp: true,
		Caller:    false,
		Colors:    !viper.GetBool("json_logs"),
		Compress:  viper.GetBool("log_compress"),
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid logging configuration: %w", err)
	}

	return logging.NewLogger(config)
}

// createExplorerConfig assembles the engine configuration from viper
func createExplorerConfig() *interfaces.ExplorerConfig {
	return &interfaces.ExplorerConfig{
		SchemaLocation: viper.GetString("schema"),
		BaseURL:        viper.GetString("base_url"),

		Workers:         viper.GetInt("workers"),
		StepCount:       viper.GetInt("steps"),
		MaxExamples:     viper.GetInt("max_examples"),
		Deadline:        viper.GetDuration("deadline"),
		Seed:            viper.GetInt64("seed"),
		MaxSuiteRetries: viper.GetInt("max_suite_retries"),

		RequestTimeout:  viper.GetDuration("request_timeout"),
		FollowRedirects: viper.GetBool("follow_redirects"),
		VerifySSL:       viper.GetBool("verify_ssl"),
		Headers:         parseHeaders(viper.GetStringSlice("headers")),

		MaxVariants:  viper.GetInt("max_variants"),
		VariantDecay: viper.GetFloat64("variant_decay"),

		SuppressedChecks: viper.GetStringSlice("suppressed_checks"),

		LogLevel: viper.GetString("log_level"),
		LogFile:  viper.GetString("log_dir"),
		JSONLogs: viper.GetBool("json_logs"),
	}
}

// validateExplorerConfig rejects configurations the engine cannot run
func validateExplorerConfig(config *interfaces.ExplorerConfig) error {
	if config.SchemaLocation == "" {
		return fmt.Errorf("schema location is required")
	}
	if config.BaseURL == "" {
		return fmt.Errorf("base URL is required")
	}
	if config.Workers <= 0 {
		return fmt.Errorf("workers must be positive")
	}
	if config.MaxSuiteRetries < 0 {
		return fmt.Errorf("max suite retries must not be negative")
	}
	if config.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}
	return nil
}

// parseHeaders converts "key=value" pairs into a header map
func parseHeaders(pairs []string) map[string]string {
	if len(pairs) == 0 {
		return nil
	}
	headers := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		headers[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return headers
}

// formatDuration renders a duration for the final report
func formatDuration(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}
