package main

import (
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"leadscore/internal/logging"
	"leadscore/internal/optimizer"
	"leadscore/internal/services"
	"leadscore/internal/testsupport"
)

func TestEvaluateJSON(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env.configPath, "evaluate", "--json", "--worst", "2")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	var got evaluateOutput
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode output %q: %v", out, err)
	}
	if got.Prompt != "built-in" || got.Leads != 4 {
		t.Fatalf("unexpected header: %+v", got)
	}
	if math.Abs(got.MAE-2.75) > 1e-9 || math.Abs(got.Accuracy-0.25) > 1e-9 {
		t.Fatalf("unexpected metrics: mae %v accuracy %v", got.MAE, got.Accuracy)
	}
	if got.LLMCalls != 4 {
		t.Fatalf("expected 4 model calls, got %d", got.LLMCalls)
	}
	if len(got.Worst) != 2 || got.Worst[0].Error != 4 || got.Worst[1].Error != 4 {
		t.Fatalf("unexpected worst predictions: %+v", got.Worst)
	}
}

func TestEvaluatePromptFileAndSubset(t *testing.T) {
	env := setupCLITestEnv(t)
	promptPath := filepath.Join(testsupport.BaseDir(env.cfg), "candidate.txt")
	testsupport.WriteFile(t, promptPath, "Improved lead scoring prompt 7.\n")

	out, _, err := runCLI(t, env.configPath, "evaluate", "--prompt", promptPath, "--subset", "2")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	requireContains(t, out, "0.000")
	requireContains(t, out, "100.0%")
	if got := len(env.llm.Requests()); got != 2 {
		t.Fatalf("expected 2 scoring calls, got %d", got)
	}
}

func TestEvaluateMissingPromptFile(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, env.configPath, "evaluate", "--prompt", filepath.Join(t.TempDir(), "missing.txt"))
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func saveTestCheckpoint(t *testing.T, path string) {
	t.Helper()
	store := optimizer.NewCheckpointStore(path, logging.NewNop())
	state := optimizer.State{
		RunID:               "run-checkpoint",
		BaselineScore:       2.5,
		BaselineAccuracy:    0.25,
		CompletedIterations: 1,
		PreviousBestScore:   1.5,
		Beam: []optimizer.Candidate{
			{Prompt: "Score leads by seniority.", MAE: 1.5, Accuracy: 0.5, Iteration: 1},
			{Prompt: "Baseline prompt.", MAE: 2.5, Accuracy: 0.25},
		},
	}
	if err := store.Save(state, optimizer.Settings{MaxIterations: 5, StagnationLimit: 2}); err != nil {
		t.Fatalf("save checkpoint: %v", err)
	}
}

func TestCheckpointShowAndClear(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env.configPath, "checkpoint", "show")
	if err != nil {
		t.Fatalf("checkpoint show: %v", err)
	}
	requireContains(t, out, "No checkpoint")

	saveTestCheckpoint(t, env.cfg.Paths.Checkpoint)

	out, _, err = runCLI(t, env.configPath, "checkpoint", "show")
	if err != nil {
		t.Fatalf("checkpoint show: %v", err)
	}
	requireContains(t, out, "run-checkpoint")
	requireContains(t, out, "1 of 5")
	requireContains(t, out, "Score leads by seniority.")

	out, _, err = runCLI(t, env.configPath, "checkpoint", "show", "--json")
	if err != nil {
		t.Fatalf("checkpoint show --json: %v", err)
	}
	var cp optimizer.Checkpoint
	if err := json.Unmarshal([]byte(out), &cp); err != nil {
		t.Fatalf("decode checkpoint: %v", err)
	}
	if cp.RunID != "run-checkpoint" || len(cp.Beam) != 2 {
		t.Fatalf("unexpected checkpoint: %+v", cp)
	}

	out, _, err = runCLI(t, env.configPath, "checkpoint", "clear")
	if err != nil {
		t.Fatalf("checkpoint clear: %v", err)
	}
	requireContains(t, out, "Checkpoint cleared")
	if _, err := os.Stat(env.cfg.Paths.Checkpoint); !os.IsNotExist(err) {
		t.Fatalf("expected checkpoint removed, stat err=%v", err)
	}
}

func TestCheckpointClearRefusesWhileLocked(t *testing.T) {
	env := setupCLITestEnv(t)
	saveTestCheckpoint(t, env.cfg.Paths.Checkpoint)

	holder := optimizer.NewCheckpointStore(env.cfg.Paths.Checkpoint, logging.NewNop())
	if err := holder.Lock(); err != nil {
		t.Fatalf("lock: %v", err)
	}
	t.Cleanup(func() { _ = holder.Unlock() })

	_, _, err := runCLI(t, env.configPath, "checkpoint", "clear")
	if !errors.Is(err, services.ErrLocked) {
		t.Fatalf("expected locked error, got %v", err)
	}
	if _, err := os.Stat(env.cfg.Paths.Checkpoint); err != nil {
		t.Fatalf("expected checkpoint kept: %v", err)
	}
}

func TestHistoryListEmptyAndUnknownRun(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env.configPath, "history", "list")
	if err != nil {
		t.Fatalf("history list: %v", err)
	}
	requireContains(t, out, "No runs recorded")

	out, _, err = runCLI(t, env.configPath, "history", "list", "--json")
	if err != nil {
		t.Fatalf("history list --json: %v", err)
	}
	if strings.TrimSpace(out) != "[]" {
		t.Fatalf("expected empty JSON array, got %q", out)
	}

	_, _, err = runCLI(t, env.configPath, "history", "show", "nope")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestStatusReportsChecks(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env.configPath, "status")
	if err != nil {
		t.Fatalf("status: %v\n%s", err, out)
	}
	requireContains(t, out, "== Checks ==")
	requireContains(t, out, "(4 leads)")
	requireContains(t, out, "reachable")
	if strings.Contains(out, "[ERROR]") {
		t.Fatalf("expected no failing checks, got:\n%s", out)
	}
}

func TestStatusFailsWhenEvalFileMissing(t *testing.T) {
	env := setupCLITestEnv(t)
	if err := os.Remove(env.cfg.Paths.EvalFile); err != nil {
		t.Fatalf("remove eval file: %v", err)
	}

	out, _, err := runCLI(t, env.configPath, "status")
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	requireContains(t, out, "[ERROR]")
	requireContains(t, err.Error(), "Evaluation file")
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env.configPath, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, env.configPath)

	target := filepath.Join(t.TempDir(), "nested", "config.toml")
	out, _, err = runCLI(t, "", "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, "", "config", "init", "--path", target); err == nil {
		t.Fatal("expected init to refuse overwriting")
	}
	if _, _, err := runCLI(t, "", "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestConfigInitSkipsBrokenConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	broken := filepath.Join(t.TempDir(), "broken.toml")
	testsupport.WriteFile(t, broken, "[optimizer]\nmax_iterations = -1\n")

	target := filepath.Join(t.TempDir(), "config.toml")
	if _, _, err := runCLI(t, broken, "config", "init", "--path", target); err != nil {
		t.Fatalf("config init with broken --config: %v", err)
	}
	if _, _, err := runCLI(t, broken, "config", "validate"); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
