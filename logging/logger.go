package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/grovetools/editsync/config"
	"github.com/grovetools/editsync/pkg/paths"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

var (
	loggers   = make(map[string]*logrus.Entry)
	loggersMu sync.Mutex
)

// NewLogger creates and returns a pre-configured logger for a specific component.
// Loggers are cached per component.
func NewLogger(component string) *logrus.Entry {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	if logger, exists := loggers[component]; exists {
		return logger
	}

	var logCfg Config
	if cwd, err := os.Getwd(); err == nil {
		if cfg, err := config.LoadOrDefault(cwd); err == nil {
			if err := cfg.UnmarshalSection("logging", &logCfg); err != nil {
				logrus.Warnf("Failed to parse 'logging' config: %v", err)
			}
		}
	}

	entry := newLoggerFromConfig(component, logCfg, os.Stderr)
	loggers[component] = entry
	return entry
}

// Reset drops all cached loggers so the next NewLogger call re-reads
// configuration and environment.
func Reset() {
	loggersMu.Lock()
	loggers = make(map[string]*logrus.Entry)
	loggersMu.Unlock()
}

func newLoggerFromConfig(component string, logCfg Config, stderr *os.File) *logrus.Entry {
	logger := logrus.New()

	levelStr := "info"
	if env := os.Getenv("EDITSYNC_LOG_LEVEL"); env != "" {
		levelStr = env
	} else if logCfg.Level != "" {
		levelStr = logCfg.Level
	}
	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if os.Getenv("EDITSYNC_LOG_CALLER") == "true" || logCfg.ReportCaller {
		logger.SetReportCaller(true)
	}

	logger.SetFormatter(formatterFor(logCfg.Format))

	var writers []io.Writer

	if logCfg.File.Enabled {
		logFilePath := ExpandPath(logCfg.File.Path)
		if logFilePath == "" {
			dateStr := time.Now().Format("2006-01-02")
			logFilePath = filepath.Join(paths.StateDir(), "logs", fmt.Sprintf("%s-%s.log", component, dateStr))
		}
		if file, err := openLogFile(logFilePath); err != nil {
			logger.Warnf("Failed to open log file %s: %v", logFilePath, err)
		} else {
			logger.AddHook(&fileHook{writer: file, formatter: fileFormatter(logCfg.File.Format)})
		}
	}

	if stderr != nil && shouldLogToStderr(logCfg.Format.StructuredToStderr, logger.GetLevel(), stderr) {
		writers = append(writers, stderr)
	}

	switch len(writers) {
	case 0:
		// Interactive sessions without a file sink stay quiet.
		logger.SetOutput(io.Discard)
	case 1:
		logger.SetOutput(writers[0])
	default:
		logger.SetOutput(io.MultiWriter(writers...))
	}

	return logger.WithField("component", component)
}

func formatterFor(format FormatConfig) logrus.Formatter {
	switch format.Preset {
	case "json":
		return &logrus.JSONFormatter{}
	case "simple":
		return &TextFormatter{Config: FormatConfig{
			DisableTimestamp: true,
			DisableComponent: true,
		}}
	default:
		return &TextFormatter{Config: format}
	}
}

// fileHook writes every entry to the log file with its own formatter, so the
// file can be JSON while stderr stays human readable.
type fileHook struct {
	mu        sync.Mutex
	writer    io.Writer
	formatter logrus.Formatter
}

func (h *fileHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *fileHook) Fire(entry *logrus.Entry) error {
	line, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err = h.writer.Write(line)
	return err
}

func fileFormatter(format string) logrus.Formatter {
	if format == "json" {
		return &logrus.JSONFormatter{}
	}
	return &TextFormatter{Config: FormatConfig{}}
}

// shouldLogToStderr decides whether structured logs reach stderr. In "auto"
// mode they do when debugging or when stderr is not a terminal.
func shouldLogToStderr(mode string, level logrus.Level, stderr *os.File) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	}

	isDebug := os.Getenv("EDITSYNC_DEBUG") == "1" || level >= logrus.DebugLevel
	if stderr == nil {
		return isDebug
	}
	isInteractive := isatty.IsTerminal(stderr.Fd()) || isatty.IsCygwinTerminal(stderr.Fd())
	return isDebug || !isInteractive
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
}

// ExpandPath expands a leading tilde to the home directory.
func ExpandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
