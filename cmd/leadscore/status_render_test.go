package main

import (
	"fmt"
	"io"
	"strings"
	"testing"

	"leadscore/internal/preflight"
	"leadscore/internal/scoring"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("Checkpoint", statusError, "unreadable", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Checkpoint:", "[ERROR] unreadable")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("Scoring LLM", statusOK, "reachable", true)
	if !strings.HasPrefix(got, ansiGreen) {
		t.Fatalf("expected green prefix, got %q", got)
	}
	if !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected reset suffix, got %q", got)
	}
}

func TestPreflightLines(t *testing.T) {
	lines := preflightLines([]preflight.Result{
		{Name: "Evaluation file", Passed: true, Detail: "leads.csv (4 leads)"},
		{Name: "Scoring LLM", Detail: "API key missing"},
		{Name: "Evaluation rows", Passed: true, Warning: true, Detail: "2 rows skipped"},
	}, false)
	if len(lines) != 5 {
		t.Fatalf("expected header, rule, and three checks, got %d lines", len(lines))
	}
	if !strings.Contains(lines[4], "[WARN] 2 rows skipped") {
		t.Fatalf("unexpected warning line %q", lines[4])
	}
	if !strings.Contains(lines[2], "[OK] leads.csv (4 leads)") {
		t.Fatalf("unexpected passing line %q", lines[2])
	}
	if !strings.Contains(lines[3], "[ERROR] API key missing") {
		t.Fatalf("unexpected failing line %q", lines[3])
	}
}

func TestRenderStatusLineUnknownKindFallsBackToInfo(t *testing.T) {
	got := renderStatusLine("Config file", statusKind(42), "", false)
	if !strings.HasSuffix(got, "[INFO]") {
		t.Fatalf("expected INFO badge, got %q", got)
	}
}

func TestRenderSectionHeaderRuleMatchesWidth(t *testing.T) {
	lines := renderSectionHeader(" Checks ", false)
	if lines[0] != "== Checks ==" {
		t.Fatalf("unexpected heading %q", lines[0])
	}
	if len(lines[1]) != len(lines[0]) || strings.Trim(lines[1], "-") != "" {
		t.Fatalf("unexpected rule %q", lines[1])
	}
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(io.Discard) {
		t.Fatalf("expected non-file writer to disable color")
	}
}

func TestFallbackFormatting(t *testing.T) {
	if got := fallbackLabel(scoring.FallbackCallFailed); got != "Call Failed" {
		t.Fatalf("fallbackLabel = %q", got)
	}
	if got := fallbackLabel(scoring.FallbackNone); got != "" {
		t.Fatalf("expected empty label, got %q", got)
	}
	got := formatFallbacks(scoring.FallbackCounts{Unparseable: 2, CallFailed: 1})
	if got != "2 unparseable, 1 call failed" {
		t.Fatalf("formatFallbacks = %q", got)
	}
	if formatFallbacks(scoring.FallbackCounts{}) != "-" {
		t.Fatal("expected dash for no fallbacks")
	}
}

func TestFormatPredicted(t *testing.T) {
	if got := formatPredicted(7); got != "7" {
		t.Fatalf("formatPredicted(7) = %q", got)
	}
	if got := formatPredicted(6.5); got != "6.50" {
		t.Fatalf("formatPredicted(6.5) = %q", got)
	}
}
