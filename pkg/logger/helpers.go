package logger

import (
	"fmt"

	"github.com/rs/zerolog"
)

// LogDiagnostic logs a generation-time diagnostic
func LogDiagnostic(file string, err error) {
	GetLogger().WithField("file", file).WithError(err).Warn("Expansion rejected")
}

// LogFileGenerated logs the outcome of writing one generated file
func LogFileGenerated(source, output string, functions int, written bool) {
	fields := map[string]interface{}{
		"source":    source,
		"output":    output,
		"functions": functions,
	}

	logger := GetLogger().WithFields(fields)

	if written {
		logger.Info("Generated file written")
	} else {
		logger.Debug("Generated file up to date")
	}
}

// LogGenerationProgress logs how many template files have been processed
func LogGenerationProgress(processed, total int) {
	percentage := 0.0
	if total > 0 {
		percentage = float64(processed) / float64(total) * 100
	}

	GetLogger().WithFields(map[string]interface{}{
		"processed":  processed,
		"total":      total,
		"percentage": fmt.Sprintf("%.1f%%", percentage),
	}).Debug("Generation progress")
}

// LogComponentStart logs when a component starts
func LogComponentStart(component string, config map[string]interface{}) {
	logger := GetLogger().WithField("component", component)

	if len(config) > 0 {
		logger = logger.WithFields(config)
	}

	logger.Info("Component started")
}

// LogComponentStop logs when a component stops
func LogComponentStop(component string, reason string) {
	GetLogger().WithFields(map[string]interface{}{
		"component": component,
		"reason":    reason,
	}).Info("Component stopped")
}

// LogMetrics logs performance metrics
func LogMetrics(operation string, metrics map[string]interface{}) {
	fields := map[string]interface{}{
		"operation": operation,
		"type":      "metrics",
	}

	// Merge metrics into fields
	for k, v := range metrics {
		fields[k] = v
	}

	GetLogger().InfoWithFields("Performance metrics", fields)
}

// NewNopLogger creates a no-operation logger for testing
func NewNopLogger() Logger {
	return &nopLogger{}
}

// nopLogger is a logger that does nothing (useful for testing)
type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) GetZerolog() *zerolog.Logger                               { return nil }