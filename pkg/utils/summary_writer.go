/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: summary_writer.go
Description: Utility for writing exploration run summaries to the output directory.
Handles timestamped file naming, ensures directories exist, and writes indented
JSON for easy post-run analysis.
*/

package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// WriteRunSummary writes a run summary to the output directory with a
// timestamped name and returns the written path.
func WriteRunSummary(outputDir string, summary interface{}) (string, error) {
	if outputDir == "" {
		outputDir = "explorer-output"
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	path := filepath.Join(outputDir, fmt.Sprintf("run_%s.json", timestamp))

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal run summary: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write run summary: %w", err)
	}
	return path, nil
}
