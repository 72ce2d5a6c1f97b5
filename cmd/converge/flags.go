package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// exitError carries a distinct process exit code out of a command.
type exitError struct {
	code   int
	reason string
}

func (e *exitError) Error() string {
	return e.reason
}

func validatePlanPath(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("plan file is required")
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve plan path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("plan file does not exist: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("plan path %s is a directory", abs)
	}

	return nil
}
