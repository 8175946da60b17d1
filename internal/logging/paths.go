package logging

import (
	"os"
	"path/filepath"
)

// DefaultLogDir returns ~/.rustrag/logs, or a temp-dir equivalent when the
// home directory is unknown.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".rustrag", "logs")
	}
	return filepath.Join(home, ".rustrag", "logs")
}

// DefaultLogPath returns the default log file path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "rustrag.log")
}
