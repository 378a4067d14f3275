package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func TestRenderTableUpperCasesHeadersAndPadsRows(t *testing.T) {
	out := renderTable(
		[]string{"Iteration", "Similarity", "Prompt"},
		[][]string{{"1", "0.82"}},
		[]columnAlignment{alignRight, alignRight},
	)
	if !strings.Contains(out, "SIMILARITY") {
		t.Fatalf("expected upper-case header, got:\n%s", out)
	}
	if strings.Contains(out, "Similarity") {
		t.Fatalf("expected header casing to be normalized, got:\n%s", out)
	}
	if !strings.Contains(out, "0.82") {
		t.Fatalf("expected row cell, got:\n%s", out)
	}
}

func TestRenderTableWithoutHeaders(t *testing.T) {
	if got := renderTable(nil, [][]string{{"x"}}, nil); got != "" {
		t.Fatalf("expected empty output, got %q", got)
	}
}

func TestWriteJSONKeepsPromptMarkup(t *testing.T) {
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	if err := writeJSON(cmd, map[string]string{"prompt": `Return {"score": <number>} & nothing else`}); err != nil {
		t.Fatalf("writeJSON: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "<number>") || !strings.Contains(out, "& nothing") {
		t.Fatalf("expected unescaped prompt text, got %q", out)
	}
	if !strings.HasPrefix(out, "{\n  \"prompt\"") {
		t.Fatalf("expected indented output, got %q", out)
	}
}
