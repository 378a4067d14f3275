package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"leadscore/internal/optimizer"
	"leadscore/internal/services"
)

// Store persists finished runs.
type Store struct {
	db   *sql.DB
	path string
}

// Run is the summary row of one finished optimization.
type Run struct {
	ID               string
	StartedAt        time.Time
	FinishedAt       time.Time
	EvalFile         string
	ScoringModel     string
	GeneratorModel   string
	Iterations       int
	BaselineScore    float64
	BaselineAccuracy float64
	FinalScore       float64
	FinalAccuracy    float64
	Improvement      float64
	LLMCalls         int64
	StoppedEarly     bool
	Resumed          bool
	BestPrompt       string
}

// Candidate is one evaluated prompt of a run.
type Candidate struct {
	RunID      string
	Iteration  int
	Index      int
	MAE        float64
	Accuracy   float64
	Similarity float64
	Preview    string
}

const runColumns = "id, started_at, finished_at, eval_file, scoring_model, generator_model, iterations, baseline_score, baseline_accuracy, final_score, final_accuracy, improvement, llm_calls, stopped_early, resumed, best_prompt"

// Open initializes or connects to the history database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database location.
func (s *Store) Path() string { return s.path }

// RecordRun stores a finished run and its candidates. Recording the same run
// id again replaces the earlier rows.
func (s *Store) RecordRun(ctx context.Context, report optimizer.Report) error {
	if strings.TrimSpace(report.RunID) == "" {
		return services.Wrap(services.ErrValidation, "history", "record", "report has no run id", nil)
	}
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	return retryOnBusy(ctx, func() error {
		return s.recordRunTx(ctx, report, string(reportJSON))
	})
}

func (s *Store) recordRunTx(ctx context.Context, report optimizer.Report, reportJSON string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin record tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM candidates WHERE run_id = ?", report.RunID); err != nil {
		return fmt.Errorf("replace candidates: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM runs WHERE id = ?", report.RunID); err != nil {
		return fmt.Errorf("replace run: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (`+runColumns+`, report_json)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		report.RunID,
		formatTime(report.StartedAt),
		formatTime(report.FinishedAt),
		report.Config.EvalFile,
		report.Config.ScoringModel,
		report.Config.GeneratorModel,
		len(report.Iterations),
		report.BaselineScore,
		report.BaselineAccuracy,
		report.FinalBestScore,
		report.FinalBestAccuracy,
		report.Improvement,
		report.TotalLLMCalls,
		boolToInt(report.StoppedEarly),
		boolToInt(report.Resumed),
		report.FinalBestPrompt,
		reportJSON,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, it := range report.Iterations {
		for _, c := range it.Candidates {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO candidates (run_id, iteration, candidate_index, mae, accuracy, similarity, preview)
                VALUES (?, ?, ?, ?, ?, ?, ?)`,
				report.RunID, it.Iteration, c.Index, c.MAE, c.Accuracy, c.SimilarityToParent, c.PromptPreview,
			); err != nil {
				return fmt.Errorf("insert candidate %d/%d: %w", it.Iteration, c.Index, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit record tx: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs first. A limit <= 0 returns all runs.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY finished_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// FindRun looks up a run by full id or unique id prefix. It returns (nil, nil)
// when nothing matches and ErrValidation when a prefix is ambiguous.
func (s *Store) FindRun(ctx context.Context, idOrPrefix string) (*Run, error) {
	idOrPrefix = strings.TrimSpace(idOrPrefix)
	if idOrPrefix == "" {
		return nil, services.Wrap(services.ErrValidation, "history", "find", "run id is required", nil)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id = ? OR id LIKE ? ESCAPE '\' ORDER BY id LIMIT 2`,
		idOrPrefix, escapeLike(idOrPrefix)+"%",
	)
	if err != nil {
		return nil, fmt.Errorf("find run: %w", err)
	}
	defer rows.Close()

	var matches []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if run.ID == idOrPrefix {
			return run, nil
		}
		matches = append(matches, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	switch len(matches) {
	case 0:
		return nil, nil
	case 1:
		return matches[0], nil
	default:
		return nil, services.Wrap(services.ErrValidation, "history", "find",
			fmt.Sprintf("run id prefix %q is ambiguous", idOrPrefix), nil)
	}
}

// Candidates returns every candidate of a run ordered by iteration and index.
func (s *Store) Candidates(ctx context.Context, runID string) ([]Candidate, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, iteration, candidate_index, mae, accuracy, similarity, preview
        FROM candidates WHERE run_id = ? ORDER BY iteration, candidate_index`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		var c Candidate
		if err := rows.Scan(&c.RunID, &c.Iteration, &c.Index, &c.MAE, &c.Accuracy, &c.Similarity, &c.Preview); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Report returns the stored JSON report of a run.
func (s *Store) Report(ctx context.Context, runID string) (*optimizer.Report, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, "SELECT report_json FROM runs WHERE id = ?", runID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get report: %w", err)
	}
	var report optimizer.Report
	if err := json.Unmarshal([]byte(raw), &report); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return &report, nil
}

func scanRun(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		run            Run
		startedRaw     string
		finishedRaw    string
		evalFile       sql.NullString
		scoringModel   sql.NullString
		generatorModel sql.NullString
		stoppedEarly   int
		resumed        int
	)
	if err := scanner.Scan(
		&run.ID,
		&startedRaw,
		&finishedRaw,
		&evalFile,
		&scoringModel,
		&generatorModel,
		&run.Iterations,
		&run.BaselineScore,
		&run.BaselineAccuracy,
		&run.FinalScore,
		&run.FinalAccuracy,
		&run.Improvement,
		&run.LLMCalls,
		&stoppedEarly,
		&resumed,
		&run.BestPrompt,
	); err != nil {
		return nil, err
	}
	run.StartedAt = parseTime(startedRaw)
	run.FinishedAt = parseTime(finishedRaw)
	run.EvalFile = evalFile.String
	run.ScoringModel = scoringModel.String
	run.GeneratorModel = generatorModel.String
	run.StoppedEarly = stoppedEarly != 0
	run.Resumed = resumed != 0
	return &run, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(raw string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
