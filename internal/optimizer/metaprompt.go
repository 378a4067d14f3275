package optimizer

import (
	"fmt"
	"sort"
	"strings"

	"leadscore/internal/evalset"
	"leadscore/internal/scoring"
	"leadscore/internal/textutil"
)

// ScoreInstruction is the output contract every scoring prompt must end with.
const ScoreInstruction = `Return only JSON in the form {"score": <number>}.`

// MetaPromptInput is everything the generator model sees for one request.
type MetaPromptInput struct {
	Beam         []Candidate
	Examples     []evalset.Record
	Worst        []scoring.Prediction
	PreviewChars int
}

// BuildMetaPrompt renders the instruction that asks the generator model for
// one improved scoring prompt. Prior prompts are listed worst to best so the
// strongest one sits closest to the model's answer.
func BuildMetaPrompt(in MetaPromptInput) string {
	var b strings.Builder

	b.WriteString("You improve prompts that score sales leads from 0 to 10. ")
	b.WriteString("Each prompt is followed by one lead's details and must make the model return a score ")
	b.WriteString("that matches the expected score a human analyst assigned. Lower mean absolute error (MAE) is better.\n\n")

	b.WriteString("## Previous prompts (worst to best)\n\n")
	ordered := append([]Candidate(nil), in.Beam...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].MAE > ordered[j].MAE
	})
	for i, c := range ordered {
		fmt.Fprintf(&b, "### Prompt %d (MAE %.3f, accuracy %.1f%%)\n", i+1, c.MAE, c.Accuracy*100)
		b.WriteString("<prompt>\n")
		b.WriteString(textutil.Truncate(strings.TrimSpace(c.Prompt), in.PreviewChars))
		b.WriteString("\n</prompt>\n\n")
	}

	if len(in.Examples) > 0 {
		b.WriteString("## Labeled examples\n\n")
		for _, r := range in.Examples {
			fmt.Fprintf(&b, "- %s | %s | %s | %s employees -> expected %d\n",
				strings.TrimSpace(r.Name), strings.TrimSpace(r.Title), strings.TrimSpace(r.Company),
				strings.TrimSpace(r.EmployeeRange), r.ExpectedScore)
		}
		b.WriteString("\n")
	}

	if len(in.Worst) > 0 {
		b.WriteString("## Largest errors of the best prompt\n\n")
		for _, p := range in.Worst {
			fmt.Fprintf(&b, "- %s | %s | %s | %s employees: expected %d, predicted %s, error %s\n",
				strings.TrimSpace(p.Record.Name), strings.TrimSpace(p.Record.Title), strings.TrimSpace(p.Record.Company),
				strings.TrimSpace(p.Record.EmployeeRange), p.Expected, formatScore(p.Predicted), formatScore(p.Error))
		}
		b.WriteString("\n")
	}

	b.WriteString("## Task\n\n")
	b.WriteString("Analyze why the best prompt fails on the cases above. Consider:\n")
	b.WriteString("- ambiguous or unusual job titles\n")
	b.WriteString("- how company size should move the score\n")
	b.WriteString("- missing industry or department signals\n")
	b.WriteString("- inconsistent use of the 0-10 scale\n\n")
	b.WriteString("Then write ONE improved prompt. Output only the prompt text in plain text, ")
	b.WriteString("with no markdown fences, headings about your analysis, or commentary. ")
	fmt.Fprintf(&b, "The prompt must end with this exact instruction:\n%s\n", ScoreInstruction)

	return b.String()
}

func formatScore(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.2f", v)
}
