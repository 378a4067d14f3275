package logging

import (
	"context"
	"log/slog"

	"leadscore/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldRunID is the standardized structured logging key for optimizer run identifiers.
	FieldRunID = "run_id"
	// FieldIteration is the standardized structured logging key for the beam iteration.
	FieldIteration = "iteration"
	// FieldCandidate is the standardized structured logging key for the candidate index.
	FieldCandidate = "candidate"
	// FieldPhase is the standardized structured logging key for the run phase.
	FieldPhase = "phase"
	// FieldEventType classifies warnings and errors for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint carries the next step an operator should take.
	FieldErrorHint = "error_hint"
	// FieldImpact is the standardized key for user-facing consequence of a warning.
	FieldImpact = "impact"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if id, ok := services.RunIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRunID, id))
	}
	if phase, ok := services.PhaseFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldPhase, phase))
	}
	if iteration, ok := services.IterationFromContext(ctx); ok {
		fields = append(fields, slog.Int(FieldIteration, iteration))
	}
	if candidate, ok := services.CandidateFromContext(ctx); ok {
		fields = append(fields, slog.Int(FieldCandidate, candidate))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	args := make([]any, len(fields))
	for i, f := range fields {
		args[i] = f
	}
	return logger.With(args...)
}
