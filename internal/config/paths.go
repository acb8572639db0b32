package config

import (
	"os"
	"path/filepath"
	"strings"
)

// ExpandPath expands a leading "~" to the user's home directory and cleans
// the result. Relative paths stay relative to the working directory, which is
// where the progress ledger and log file live by default.
func ExpandPath(p string) string {
	if p == "" {
		return ""
	}
	if p == "~" || strings.HasPrefix(p, "~/") || strings.HasPrefix(p, `~\`) {
		home, err := os.UserHomeDir()
		if err == nil {
			p = filepath.Join(home, p[1:])
		}
	}
	return filepath.Clean(p)
}

// ProgressFilePath returns the ledger path, honoring an explicit override.
func (cfg *Config) ProgressFilePath(override string) string {
	if override != "" {
		return ExpandPath(override)
	}
	return ExpandPath(cfg.Uploader.ProgressFile)
}

// LogFilePath returns the log file path, honoring an explicit override.
func (cfg *Config) LogFilePath(override string) string {
	if override != "" {
		return ExpandPath(override)
	}
	return ExpandPath(cfg.Uploader.LogFile)
}
