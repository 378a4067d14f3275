package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"leadscore/internal/config"
	"leadscore/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	llm        *testsupport.FakeLLM
}

// setupCLITestEnv writes an evaluation file and a config pointing at a fake
// model. Scoring calls return 5 for the baseline prompt and the labeled score
// for generated prompts, so any generated candidate beats the baseline.
func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	t.Setenv("HOME", t.TempDir())
	for _, key := range []string{"LEADSCORE_API_KEY", "OPENROUTER_API_KEY", "OPENAI_API_KEY"} {
		t.Setenv(key, "")
	}

	records := testsupport.SampleRecords()
	expected := make(map[string]int, len(records))
	for _, r := range records {
		expected[r.Title] = r.ExpectedScore
	}

	var generated atomic.Int32
	fake := testsupport.NewFakeLLM(t, func(req testsupport.LLMRequest) string {
		switch {
		case strings.Contains(req.Prompt, `{"ok":true}`):
			return `{"ok":true}`
		case req.Temperature > 0:
			return fmt.Sprintf("Improved lead scoring prompt %d.", generated.Add(1))
		case strings.Contains(req.Prompt, "Improved lead scoring prompt"):
			for title, score := range expected {
				if strings.Contains(req.Prompt, "- Title: "+title+"\n") {
					return fmt.Sprintf(`{"score": %d}`, score)
				}
			}
			return `{"score": 5}`
		default:
			return `{"score": 5}`
		}
	})

	opts = append([]testsupport.ConfigOption{testsupport.WithLLMServer(fake.URL())}, opts...)
	cfg := testsupport.NewConfig(t, opts...)
	testsupport.WriteEvalCSV(t, cfg.Paths.EvalFile, records)
	configPath := testsupport.WriteConfigFile(t, cfg)

	return &cliTestEnv{cfg: cfg, configPath: configPath, llm: fake}
}

func runCLI(t *testing.T, configPath string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func requireFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return data
}

func outputPath(env *cliTestEnv, name string) string {
	return filepath.Join(env.cfg.Paths.OutputDir, name)
}
