package testsupport

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"leadscore/internal/evalset"
)

// WriteFile writes content to path, creating parent directories.
func WriteFile(t testing.TB, path, content string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteEvalCSV writes records as an evaluation file with the canonical header.
func WriteEvalCSV(t testing.TB, path string, records []evalset.Record) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	rows := [][]string{{"Name", "Title", "Company", "LinkedIn", "EmployeeRange", "ExpectedScore"}}
	for _, r := range records {
		rows = append(rows, []string{r.Name, r.Title, r.Company, r.LinkedIn, r.EmployeeRange, strconv.Itoa(r.ExpectedScore)})
	}
	if err := w.WriteAll(rows); err != nil {
		t.Fatalf("write csv %s: %v", path, err)
	}
}

// SampleRecords returns a small labeled set covering the score range.
func SampleRecords() []evalset.Record {
	return []evalset.Record{
		{Name: "Jane Doe", Title: "VP Operations", Company: "Acme", EmployeeRange: "51-200", ExpectedScore: 9},
		{Name: "Sam Lee", Title: "Intern", Company: "Beta", EmployeeRange: "1-10", ExpectedScore: 1},
		{Name: "Ana Ruiz", Title: "Software Engineer", Company: "Gamma", EmployeeRange: "201-500", ExpectedScore: 5},
		{Name: "Li Wei", Title: "Head of IT", Company: "Delta", EmployeeRange: "501-1000", ExpectedScore: 8},
	}
}
