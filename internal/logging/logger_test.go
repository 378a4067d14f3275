package logging_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"leadscore/internal/config"
	"leadscore/internal/logging"
	"leadscore/internal/services"
)

func TestConsoleLoggerWritesSubjectAndFields(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := services.WithIteration(services.WithRunID(context.Background(), "run-1"), 2)
	ctx = services.WithCandidate(ctx, 1)
	logging.WithContext(ctx, logging.NewComponentLogger(logger, "optimizer")).Info(
		"candidate evaluated",
		logging.Float64("mae", 1.234567),
		logging.String("prompt_preview", "Score the lead"),
	)

	content := readFile(t, logPath)
	for _, want := range []string{"INFO [optimizer]", "Iteration 2 · Candidate 1", "candidate evaluated", "- mae: 1.2346", "- prompt_preview: Score the lead"} {
		if !strings.Contains(content, want) {
			t.Fatalf("expected %q in console output, got %q", want, content)
		}
	}
	if strings.Contains(content, "run-1") {
		t.Fatalf("expected run id hidden at info level, got %q", content)
	}
	if strings.Contains(content, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", content)
	}
}

func TestConsoleLoggerRespectsLevel(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "level.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "warn", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("hidden")
	logger.Warn("shown")
	content := readFile(t, logPath)
	if strings.Contains(content, "hidden") || !strings.Contains(content, "shown") {
		t.Fatalf("unexpected level filtering: %q", content)
	}
}

func TestJSONLoggerIncludesContextFields(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "json.log")
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	ctx := services.WithPhase(services.WithRunID(context.Background(), "run-7"), "baseline")
	logging.WithContext(ctx, logger).Info("baseline evaluated", logging.Int("records", 4))

	var entry map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(readFile(t, logPath))), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry["run_id"] != "run-7" || entry["phase"] != "baseline" {
		t.Fatalf("missing context fields: %v", entry)
	}
	if entry["level"] != "info" {
		t.Fatalf("expected lowercase level, got %v", entry["level"])
	}
	if _, ok := entry["ts"]; !ok {
		t.Fatalf("expected ts key, got %v", entry)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected unsupported format error")
	}
}

func TestNewFromConfigWritesJSONFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Logging.Level = "error"

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Error("checkpoint write failed", logging.Error(errors.New("disk full")))

	content := readFile(t, filepath.Join(cfg.Paths.LogDir, "leadscore.log"))
	if !strings.Contains(content, `"msg":"checkpoint write failed"`) || !strings.Contains(content, "disk full") {
		t.Fatalf("unexpected log file content: %q", content)
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "warn.log")
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.WarnWithContext(logger, "generation failed", "candidate_generation_failed",
		logging.String(logging.FieldImpact, "iteration continues with fewer candidates"))

	content := readFile(t, logPath)
	for _, want := range []string{`"event_type":"candidate_generation_failed"`, `"error_hint":"check logs for details"`, `"impact":"iteration continues with fewer candidates"`} {
		if !strings.Contains(content, want) {
			t.Fatalf("expected %s in %q", want, content)
		}
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := logging.NewNop()
	if logger.Enabled(context.Background(), 12) {
		t.Fatal("expected nop logger to be disabled")
	}
	logging.WarnWithContext(nil, "ignored", "noop")
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}
