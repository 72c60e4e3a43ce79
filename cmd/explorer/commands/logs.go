/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: logs.go
Description: Logs command implementation for the Akaylee Explorer. Summarizes past
exploration runs from the log directory and reports file retention statistics.
*/

package commands

import (
	"fmt"

	"github.com/kleascm/akaylee-explorer/pkg/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// AnalyzeLogs scans the log directory and prints a summary
func AnalyzeLogs(cmd *cobra.Command, args []string) error {
	if err := LoadConfig(); err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logDir := viper.GetString("log_dir")

	analyzer := logging.NewLogAnalyzer(logDir)
	analysis, err := analyzer.AnalyzeLogs()
	if err != nil {
		return fmt.Errorf("failed to analyze logs: %w", err)
	}
	fmt.Println(analysis.GetLogSummary())

	manager := logging.NewLogManager(
		logDir,
		viper.GetInt("log_max_files"),
		viper.GetInt64("log_max_size"),
		viper.GetBool("log_compress"),
	)
	stats, err := manager.GetLogStats()
	if err != nil {
		return fmt.Errorf("failed to collect log stats: %w", err)
	}
	fmt.Println()
	fmt.Printf("Log files: %d (%d compressed), total size %d bytes\n",
		stats.TotalFiles, stats.CompressedFiles, stats.TotalSize)

	if err := manager.CleanupOldLogs(); err != nil {
		return fmt.Errorf("failed to cleanup old logs: %w", err)
	}
	return nil
}
