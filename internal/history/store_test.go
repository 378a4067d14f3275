package history_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"leadscore/internal/history"
	"leadscore/internal/optimizer"
	"leadscore/internal/services"
)

func openStore(t *testing.T) *history.Store {
	t.Helper()
	store, err := history.Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleReport(id string, finished time.Time) optimizer.Report {
	return optimizer.Report{
		RunID:            id,
		Config:           optimizer.Settings{MaxIterations: 2, ScoringModel: "demo/scorer", GeneratorModel: "demo/writer", EvalFile: "/data/eval.csv"},
		BaselineScore:    2.0,
		BaselineAccuracy: 0.5,
		Iterations: []optimizer.IterationSummary{
			{Iteration: 1, Candidates: []optimizer.CandidateSummary{
				{Index: 1, MAE: 1.5, Accuracy: 0.6, PromptPreview: "first", SimilarityToParent: 0.8},
				{Index: 2, MAE: 1.8, Accuracy: 0.55, PromptPreview: "second", SimilarityToParent: 0.7},
			}, BestScore: 1.5, BestAccuracy: 0.6},
			{Iteration: 2, Candidates: []optimizer.CandidateSummary{
				{Index: 1, MAE: 1.2, Accuracy: 0.7, PromptPreview: "third", SimilarityToParent: 0.9},
			}, BestScore: 1.2, BestAccuracy: 0.7},
		},
		FinalBestPrompt:   "final prompt",
		FinalBestScore:    1.2,
		FinalBestAccuracy: 0.7,
		Improvement:       0.8,
		TotalLLMCalls:     42,
		StoppedEarly:      true,
		StartedAt:         finished.Add(-time.Hour),
		FinishedAt:        finished,
	}
}

func TestRecordAndListRuns(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	older := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	newer := older.Add(24 * time.Hour)

	if err := store.RecordRun(ctx, sampleReport("run-old", older)); err != nil {
		t.Fatalf("RecordRun failed: %v", err)
	}
	if err := store.RecordRun(ctx, sampleReport("run-new", newer)); err != nil {
		t.Fatalf("RecordRun failed: %v", err)
	}

	runs, err := store.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "run-new" || runs[1].ID != "run-old" {
		t.Fatalf("unexpected runs: %+v", runs)
	}
	run := runs[0]
	if run.Iterations != 2 || run.FinalScore != 1.2 || run.LLMCalls != 42 || !run.StoppedEarly || run.Resumed {
		t.Fatalf("unexpected run fields: %+v", run)
	}
	if run.ScoringModel != "demo/scorer" || run.GeneratorModel != "demo/writer" {
		t.Fatalf("unexpected models: %+v", run)
	}
	if !run.FinishedAt.Equal(newer) {
		t.Fatalf("finished at %v, want %v", run.FinishedAt, newer)
	}

	limited, err := store.ListRuns(ctx, 1)
	if err != nil || len(limited) != 1 {
		t.Fatalf("ListRuns(1) = %d runs, err %v", len(limited), err)
	}
}

func TestCandidatesAndReport(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	if err := store.RecordRun(ctx, sampleReport("run-1", time.Now())); err != nil {
		t.Fatalf("RecordRun failed: %v", err)
	}

	candidates, err := store.Candidates(ctx, "run-1")
	if err != nil {
		t.Fatalf("Candidates failed: %v", err)
	}
	if len(candidates) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(candidates))
	}
	if candidates[0].Preview != "first" || candidates[2].Iteration != 2 || candidates[2].MAE != 1.2 {
		t.Fatalf("unexpected candidates: %+v", candidates)
	}

	report, err := store.Report(ctx, "run-1")
	if err != nil || report == nil {
		t.Fatalf("Report = %v, %v", report, err)
	}
	if report.FinalBestPrompt != "final prompt" || len(report.Iterations) != 2 {
		t.Fatalf("unexpected stored report: %+v", report)
	}

	missing, err := store.Report(ctx, "nope")
	if err != nil || missing != nil {
		t.Fatalf("expected (nil, nil) for missing report, got %v, %v", missing, err)
	}
}

func TestRecordRunReplacesSameID(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	report := sampleReport("run-1", time.Now())
	if err := store.RecordRun(ctx, report); err != nil {
		t.Fatalf("RecordRun failed: %v", err)
	}
	report.Iterations = report.Iterations[:1]
	if err := store.RecordRun(ctx, report); err != nil {
		t.Fatalf("second RecordRun failed: %v", err)
	}
	candidates, err := store.Candidates(ctx, "run-1")
	if err != nil {
		t.Fatalf("Candidates failed: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("expected replaced candidates, got %d", len(candidates))
	}
}

func TestFindRunByPrefix(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	for _, id := range []string{"abc-111", "abc-222", "def-333"} {
		if err := store.RecordRun(ctx, sampleReport(id, time.Now())); err != nil {
			t.Fatalf("RecordRun %s failed: %v", id, err)
		}
	}

	run, err := store.FindRun(ctx, "def")
	if err != nil || run == nil || run.ID != "def-333" {
		t.Fatalf("FindRun(def) = %+v, %v", run, err)
	}
	run, err = store.FindRun(ctx, "abc-222")
	if err != nil || run == nil || run.ID != "abc-222" {
		t.Fatalf("FindRun(exact) = %+v, %v", run, err)
	}
	if _, err := store.FindRun(ctx, "abc"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ambiguous prefix error, got %v", err)
	}
	run, err = store.FindRun(ctx, "zzz")
	if err != nil || run != nil {
		t.Fatalf("expected no match, got %+v, %v", run, err)
	}
}

func TestRecordRunRequiresID(t *testing.T) {
	store := openStore(t)
	if err := store.RecordRun(context.Background(), optimizer.Report{}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestReopenKeepsSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := history.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := store.RecordRun(context.Background(), sampleReport("run-1", time.Now())); err != nil {
		t.Fatalf("RecordRun failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := history.Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()
	runs, err := reopened.ListRuns(context.Background(), 0)
	if err != nil || len(runs) != 1 {
		t.Fatalf("expected persisted run, got %d, %v", len(runs), err)
	}
}
