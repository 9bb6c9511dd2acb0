// Package logutil locates the log files written by the logging file sink.
package logutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/grovetools/editsync/config"
	"github.com/grovetools/editsync/logging"
	"github.com/grovetools/editsync/pkg/paths"
)

// FindLogFile returns the log file for component and the directory holding
// it. An explicit logging.file.path wins; otherwise the newest
// <component>-*.log in the state log directory is used.
func FindLogFile(cfg *config.Config, component string) (logFile string, logsDir string, err error) {
	var logCfg logging.Config
	if cfg != nil {
		if err := cfg.UnmarshalSection("logging", &logCfg); err != nil {
			return "", "", err
		}
	}

	if logCfg.File.Path != "" {
		expanded := logging.ExpandPath(logCfg.File.Path)
		return expanded, filepath.Dir(expanded), nil
	}

	logsDir = filepath.Join(paths.StateDir(), "logs")
	logFile, err = FindLatestLogFile(logsDir, component+"-")
	return logFile, logsDir, err
}

// FindLatestLogFile finds the most recently modified file in dir whose name
// starts with prefix. Non-empty files are preferred over empty ones.
func FindLatestLogFile(dir, prefix string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("could not read log directory %s: %w", dir, err)
	}

	var latest, latestNonEmpty os.FileInfo
	var latestPath, latestNonEmptyPath string

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if latest == nil || info.ModTime().After(latest.ModTime()) {
			latest = info
			latestPath = filepath.Join(dir, entry.Name())
		}
		if info.Size() > 0 && (latestNonEmpty == nil || info.ModTime().After(latestNonEmpty.ModTime())) {
			latestNonEmpty = info
			latestNonEmptyPath = filepath.Join(dir, entry.Name())
		}
	}

	if latestNonEmpty != nil {
		return latestNonEmptyPath, nil
	}
	if latest == nil {
		return "", fmt.Errorf("no log files found in %s", dir)
	}
	return latestPath, nil
}
