package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
)

// setupLog routes logging to the file named by READANYTHING_LOG, or to
// stderr when unset. The returned closer flushes the file at exit.
func setupLog() (func() error, error) {
	log.SetOutput(os.Stderr)
	log.SetReportTimestamp(false)

	if path := os.Getenv("READANYTHING_LOG"); path != "" {
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("unable to open log file: %w", err)
		}
		log.SetOutput(f)
		log.SetReportTimestamp(true)
		return f.Close, nil
	}
	return func() error { return nil }, nil
}
