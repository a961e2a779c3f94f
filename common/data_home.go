// Package common holds small process-wide helpers shared across packages.
package common

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

// DataHome returns a directory for storing server-managed data (primarily
// the default sqlite database file). It creates the directory if needed.
// Can be overridden by setting the PARLEY_DATA_HOME environment variable.
func DataHome() (string, error) {
	if dir := os.Getenv("PARLEY_DATA_HOME"); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create data directory from PARLEY_DATA_HOME: %w", err)
		}
		return dir, nil
	}

	dir := filepath.Join(xdg.DataHome, "parley")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	return dir, nil
}

// StateHome returns a directory for storing runtime state (log files).
// Can be overridden by setting the PARLEY_STATE_HOME environment variable.
func StateHome() (string, error) {
	if dir := os.Getenv("PARLEY_STATE_HOME"); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create state directory from PARLEY_STATE_HOME: %w", err)
		}
		return dir, nil
	}

	dir := filepath.Join(xdg.StateHome, "parley")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create state directory: %w", err)
	}
	return dir, nil
}
