package evalset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/text/cases"

	"leadscore/internal/services"
)

// SkippedRow describes a data row that was not loaded.
type SkippedRow struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// Dataset is the loaded evaluation set in file order.
type Dataset struct {
	Path    string
	Records []Record
	Skipped []SkippedRow
}

// First returns the first n records in file order. n <= 0 or n beyond the
// dataset size returns every record.
func (d Dataset) First(n int) []Record {
	if n <= 0 || n >= len(d.Records) {
		return d.Records
	}
	return d.Records[:n]
}

type column int

const (
	colName column = iota
	colTitle
	colCompany
	colLinkedIn
	colEmployeeRange
	colExpectedScore
	columnCount
)

var headerAliases = map[string]column{
	"name":          colName,
	"fullname":      colName,
	"title":         colTitle,
	"jobtitle":      colTitle,
	"company":       colCompany,
	"companyname":   colCompany,
	"linkedin":      colLinkedIn,
	"linkedinurl":   colLinkedIn,
	"employeerange": colEmployeeRange,
	"employees":     colEmployeeRange,
	"companysize":   colEmployeeRange,
	"expectedscore": colExpectedScore,
	"score":         colExpectedScore,
}

var requiredColumns = map[column]string{
	colName:          "Name",
	colTitle:         "Title",
	colCompany:       "Company",
	colEmployeeRange: "EmployeeRange",
	colExpectedScore: "ExpectedScore",
}

// Load reads an evaluation CSV from disk.
func Load(path string) (Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Dataset{}, services.Wrap(services.ErrNotFound, "evalset", "load", "evaluation file "+path+" does not exist", err)
		}
		return Dataset{}, fmt.Errorf("open evaluation file: %w", err)
	}
	defer file.Close()

	ds, err := Parse(file)
	if err != nil {
		return Dataset{}, err
	}
	ds.Path = path
	return ds, nil
}

// Parse reads evaluation rows from r.
func Parse(r io.Reader) (Dataset, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Dataset{}, services.Wrap(services.ErrValidation, "evalset", "parse", "evaluation file is empty", nil)
		}
		return Dataset{}, services.Wrap(services.ErrValidation, "evalset", "parse", "read header", err)
	}
	index, err := mapHeader(header)
	if err != nil {
		return Dataset{}, err
	}

	var ds Dataset
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				ds.Skipped = append(ds.Skipped, SkippedRow{Line: parseErr.Line, Reason: parseErr.Err.Error()})
				continue
			}
			return Dataset{}, fmt.Errorf("read evaluation row: %w", err)
		}
		if blankRow(row) {
			continue
		}
		line, _ := reader.FieldPos(0)
		record, reason := buildRecord(row, index)
		if reason != "" {
			ds.Skipped = append(ds.Skipped, SkippedRow{Line: line, Reason: reason})
			continue
		}
		record.Line = line
		ds.Records = append(ds.Records, record)
	}

	if len(ds.Records) == 0 {
		msg := "evaluation file has no usable rows"
		if len(ds.Skipped) > 0 {
			msg = fmt.Sprintf("%s (%d skipped, first at line %d: %s)", msg, len(ds.Skipped), ds.Skipped[0].Line, ds.Skipped[0].Reason)
		}
		return Dataset{}, services.Wrap(services.ErrValidation, "evalset", "parse", msg, nil)
	}
	return ds, nil
}

func mapHeader(header []string) ([fieldCount]int, error) {
	var index [fieldCount]int
	for i := range index {
		index[i] = -1
	}
	fold := cases.Fold()
	for pos, raw := range header {
		key := normalizeHeader(fold.String(raw))
		if col, ok := headerAliases[key]; ok && index[col] == -1 {
			index[col] = pos
		}
	}
	var missing []string
	for col := column(0); col < columnCount; col++ {
		if name, required := requiredColumns[col]; required && index[col] == -1 {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return index, services.Wrap(services.ErrValidation, "evalset", "parse",
			"missing required column(s): "+strings.Join(missing, ", "), nil)
	}
	return index, nil
}

const fieldCount = int(columnCount)

func normalizeHeader(value string) string {
	value = strings.TrimPrefix(value, "\ufeff")
	var b strings.Builder
	for _, r := range value {
		switch r {
		case ' ', '_', '-', '\t':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func buildRecord(row []string, index [fieldCount]int) (Record, string) {
	field := func(col column) string {
		pos := index[col]
		if pos < 0 || pos >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[pos])
	}
	raw := field(colExpectedScore)
	if raw == "" {
		return Record{}, "ExpectedScore is empty"
	}
	score, err := strconv.Atoi(raw)
	if err != nil {
		return Record{}, fmt.Sprintf("ExpectedScore %q is not an integer", raw)
	}
	if score < MinScore || score > MaxScore {
		return Record{}, fmt.Sprintf("ExpectedScore %d is outside %d..%d", score, MinScore, MaxScore)
	}
	return Record{
		Name:          field(colName),
		Title:         field(colTitle),
		Company:       field(colCompany),
		LinkedIn:      field(colLinkedIn),
		EmployeeRange: field(colEmployeeRange),
		ExpectedScore: score,
	}, ""
}

func blankRow(row []string) bool {
	for _, value := range row {
		if strings.TrimSpace(value) != "" {
			return false
		}
	}
	return true
}
