package optimizer

import (
	"fmt"
	"os"
	"path/filepath"

	"leadscore/internal/fileutil"
	"leadscore/internal/services"
)

const (
	// BestPromptFile holds the winning prompt text.
	BestPromptFile = "best_prompt.txt"
	// ReportFile holds the JSON report.
	ReportFile = "apo_report.json"
)

// Outputs names the files written for a finished run.
type Outputs struct {
	BestPromptPath string
	ReportPath     string
}

// WriteOutputs writes the best prompt and the report into dir.
func WriteOutputs(dir string, report Report) (Outputs, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Outputs{}, services.Wrap(services.ErrConfiguration, "report", "write", "create output directory", err)
	}
	out := Outputs{
		BestPromptPath: filepath.Join(dir, BestPromptFile),
		ReportPath:     filepath.Join(dir, ReportFile),
	}
	prompt := report.FinalBestPrompt
	if prompt != "" && prompt[len(prompt)-1] != '\n' {
		prompt += "\n"
	}
	if err := fileutil.WriteFileAtomic(out.BestPromptPath, []byte(prompt), 0o644); err != nil {
		return Outputs{}, services.Wrap(services.ErrTransient, "report", "write", fmt.Sprintf("write %s", BestPromptFile), err)
	}
	if err := fileutil.WriteJSONAtomic(out.ReportPath, report); err != nil {
		return Outputs{}, services.Wrap(services.ErrTransient, "report", "write", fmt.Sprintf("write %s", ReportFile), err)
	}
	return out, nil
}
