package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNewLogger(t *testing.T) {
	t.Cleanup(Reset)

	logger := NewLogger("test-component")
	if logger == nil {
		t.Fatal("Expected logger to be created")
	}
	if logger.Data["component"] != "test-component" {
		t.Errorf("Expected component to be 'test-component', got %v", logger.Data["component"])
	}
	if NewLogger("test-component") != logger {
		t.Error("Expected the cached logger to be returned for the same component")
	}
}

func TestTextFormatter(t *testing.T) {
	tests := []struct {
		name    string
		config  FormatConfig
		entry   *logrus.Entry
		want    []string
		notWant []string
	}{
		{
			name:   "default format",
			config: FormatConfig{},
			entry: &logrus.Entry{
				Level:   logrus.InfoLevel,
				Message: "applied batch",
				Data: logrus.Fields{
					"component": "session",
					"paths":     2,
				},
			},
			want: []string{"[INFO]", "session", "applied batch", "paths=2"},
		},
		{
			name: "simple format",
			config: FormatConfig{
				DisableTimestamp: true,
				DisableComponent: true,
			},
			entry: &logrus.Entry{
				Level:   logrus.WarnLevel,
				Message: "mailbox full",
				Data: logrus.Fields{
					"component": "session",
				},
			},
			want:    []string{"[WARN]", "mailbox full"},
			notWant: []string{"session"},
		},
		{
			name:   "caller information with function name",
			config: FormatConfig{},
			entry: func() *logrus.Entry {
				logger := logrus.New()
				logger.SetReportCaller(true)
				return &logrus.Entry{
					Logger:  logger,
					Level:   logrus.InfoLevel,
					Message: "with caller",
					Data:    logrus.Fields{"component": "session"},
					Caller: &runtime.Frame{
						File:     "/path/to/session.go",
						Line:     42,
						Function: "github.com/grovetools/editsync/pkg/editorsync.(*Session).Initialize",
					},
				}
			}(),
			want: []string{"[session.go:42 editorsync.(*Session).Initialize]"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			formatter := &TextFormatter{Config: tt.config}
			output, err := formatter.Format(tt.entry)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}

			outputStr := string(output)
			for _, want := range tt.want {
				if !strings.Contains(outputStr, want) {
					t.Errorf("Expected output to contain '%s', got: %s", want, outputStr)
				}
			}
			for _, notWant := range tt.notWant {
				if strings.Contains(outputStr, notWant) {
					t.Errorf("Expected output NOT to contain '%s', got: %s", notWant, outputStr)
				}
			}
		})
	}
}

func TestFieldsAreSorted(t *testing.T) {
	formatter := &TextFormatter{Config: FormatConfig{DisableTimestamp: true}}
	output, err := formatter.Format(&logrus.Entry{
		Level:   logrus.InfoLevel,
		Message: "m",
		Data:    logrus.Fields{"zeta": 1, "alpha": 2, "mid": 3},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(string(output), "m alpha=2 mid=3 zeta=1\n") {
		t.Errorf("Expected sorted fields, got: %s", output)
	}
}

func TestEnvironmentVariables(t *testing.T) {
	t.Setenv("EDITSYNC_LOG_LEVEL", "debug")
	t.Setenv("EDITSYNC_LOG_CALLER", "true")

	entry := newLoggerFromConfig("env-test", Config{Level: "error"}, nil)

	if entry.Logger.Level != logrus.DebugLevel {
		t.Errorf("Expected debug level from env var, got %v", entry.Logger.Level)
	}
	if !entry.Logger.ReportCaller {
		t.Error("Expected caller reporting to be enabled from env var")
	}
}

func TestConfigLevel(t *testing.T) {
	t.Setenv("EDITSYNC_LOG_LEVEL", "")

	entry := newLoggerFromConfig("cfg-test", Config{Level: "warn"}, nil)
	if entry.Logger.Level != logrus.WarnLevel {
		t.Errorf("Expected warn level from config, got %v", entry.Logger.Level)
	}

	entry = newLoggerFromConfig("bad-level", Config{Level: "loud"}, nil)
	if entry.Logger.Level != logrus.InfoLevel {
		t.Errorf("Expected info level fallback, got %v", entry.Logger.Level)
	}
}

func TestShouldLogToStderr(t *testing.T) {
	t.Setenv("EDITSYNC_DEBUG", "")

	if !shouldLogToStderr("always", logrus.InfoLevel, nil) {
		t.Error("always should log to stderr")
	}
	if shouldLogToStderr("never", logrus.DebugLevel, nil) {
		t.Error("never should not log to stderr")
	}
	if !shouldLogToStderr("auto", logrus.DebugLevel, nil) {
		t.Error("auto should log to stderr at debug level")
	}

	// A regular file is not a terminal, so auto mode logs.
	f, err := os.CreateTemp(t.TempDir(), "stderr")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if !shouldLogToStderr("auto", logrus.InfoLevel, f) {
		t.Error("auto should log to stderr when it is not a terminal")
	}
}

func TestFileSinkJSON(t *testing.T) {
	t.Setenv("EDITSYNC_LOG_LEVEL", "")
	path := filepath.Join(t.TempDir(), "logs", "session.log")

	entry := newLoggerFromConfig("session", Config{
		File:   FileSinkConfig{Enabled: true, Path: path, Format: "json"},
		Format: FormatConfig{StructuredToStderr: "never"},
	}, nil)
	entry.WithField("id", "cb-1").Info("callback resolved")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Expected log file to exist: %v", err)
	}

	var record map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(data), &record); err != nil {
		t.Fatalf("Expected JSON log line, got %s: %v", data, err)
	}
	if record["msg"] != "callback resolved" || record["id"] != "cb-1" || record["component"] != "session" {
		t.Errorf("Unexpected record: %v", record)
	}
}

func TestPrettyLogger(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrettyLogger().WithWriter(&buf)

	p.Success("Answered callback %s", "cb-1")
	p.Warn("No pending callback %s", "cb-2")
	p.Field("Runtime", "nvim")

	out := buf.String()
	for _, want := range []string{"✓ Answered callback cb-1", "! No pending callback cb-2", "Runtime: nvim"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q, got: %s", want, out)
		}
	}
}
