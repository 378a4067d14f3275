package services

import "context"

type contextKey string

const (
	runIDKey     contextKey = "run_id"
	iterationKey contextKey = "iteration"
	candidateKey contextKey = "candidate"
	phaseKey     contextKey = "phase"
)

// WithRunID annotates context with the optimizer run identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext extracts the run identifier if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(runIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithIteration annotates context with the 1-based beam iteration.
func WithIteration(ctx context.Context, iteration int) context.Context {
	return context.WithValue(ctx, iterationKey, iteration)
}

// IterationFromContext returns the iteration if present.
func IterationFromContext(ctx context.Context) (int, bool) {
	v, ok := ctx.Value(iterationKey).(int)
	return v, ok
}

// WithCandidate annotates context with the 1-based candidate index within an iteration.
func WithCandidate(ctx context.Context, index int) context.Context {
	return context.WithValue(ctx, candidateKey, index)
}

// CandidateFromContext returns the candidate index if present.
func CandidateFromContext(ctx context.Context) (int, bool) {
	v, ok := ctx.Value(candidateKey).(int)
	return v, ok
}

// WithPhase annotates context with the run phase (baseline, generate, evaluate, resume).
func WithPhase(ctx context.Context, phase string) context.Context {
	if phase == "" {
		return ctx
	}
	return context.WithValue(ctx, phaseKey, phase)
}

// PhaseFromContext returns the phase if present.
func PhaseFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(phaseKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
