// Package logger provides a structured logging interface for the backon generator.
//
// It wraps the zerolog library to provide a clean, easy-to-use API with support for:
// - Multiple log levels (Debug, Info, Warn, Error)
// - Structured logging with fields
// - Console output on stderr, coloured when stderr is a terminal
// - Additional JSON output to a file
// - Global logger instance for easy access
// - TestLogger, which captures entries for assertions
//
// Basic Usage:
//
//	import "github.com/bxb100/backon/pkg/logger"
//
//	// Initialize the global logger
//	cfg := &config.LoggingConfig{
//	    Level: "info",
//	    File: "/tmp/backon.log",
//	}
//	err := logger.Initialize(cfg)
//
//	// Use the global logger
//	logger.Info("Generation started")
//	logger.WithField("file", "client.go").Info("Template found")
//	logger.WithError(err).Error("Failed to write output")
//
// Domain helpers such as LogFileGenerated and LogDiagnostic keep field names
// consistent across the generator.
package logger
