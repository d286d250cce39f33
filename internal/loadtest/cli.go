package loadtest

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/okian/feedrank/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging sends log output to stdout and to logFile. If logFile is empty,
// a timestamped filename is generated. The returned closer flushes the file.
func SetupLogging(logFile string, verbose bool) (io.Closer, error) {
	if logFile == "" {
		timestamp := time.Now().Format("20060102_150405")
		logFile = "loadtest_" + timestamp + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}

	if err := logger.Init(logger.WithWriter(io.MultiWriter(os.Stdout, file))); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		_ = logger.SetLevelString("debug")
	}
	return file, nil
}

// ShowHelp prints usage information for the load test tool.
func ShowHelp() {
	os.Stdout.WriteString(`Feedrank Load Test Tool
=======================

Sends randomly generated ranking requests to a running feedrank service and
checks every response: valid status, scores sorted best first, "empty" exactly
when no posts were sent, only submitted post ids, no duplicates.

Usage:
  go run ./cmd/loadtest [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -requests int
        Number of ranking requests to send (default 1000)
  -posts int
        Maximum posts per request (default 50)
  -workers int
        Number of concurrent workers (default CPU cores * 2)
  -timeout duration
        HTTP request timeout (default 30s)
  -log string
        Log file for test output (default: loadtest_TIMESTAMP.log)
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  # Test with default settings
  go run ./cmd/loadtest

  # Heavier run against another port
  go run ./cmd/loadtest -requests 20000 -posts 200 -workers 32 -url http://localhost:8080
`)
}
