package decision

import (
	"fmt"
	"strings"
)

// RenderMarkdown renders a Result as a Markdown section.
func RenderMarkdown(result *Result) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("## Verdict: %s\n\n", result.Verdict))

	sb.WriteString("| # | Criterion | Threshold | Actual | Pass |\n")
	sb.WriteString("|---|-----------|-----------|--------|------|\n")
	for i, c := range result.Criteria {
		passStr := "PASS"
		switch {
		case c.NotApplicable:
			passStr = "N/A"
		case !c.Pass:
			passStr = "FAIL"
		}
		sb.WriteString(fmt.Sprintf("| %d | %s | %s | %s | %s |\n",
			i+1, c.Name, c.Threshold, c.Actual, passStr))
	}
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Criteria: %d/%d passed\n\n", result.Passed(), result.Applicable()))

	switch result.Verdict {
	case VerdictImproves:
		sb.WriteString("Following after losses beat the full sequence on every criterion.\n")
	case VerdictInsufficientData:
		sb.WriteString("Not enough data to judge the strategy.\n")
	default:
		sb.WriteString("Following after losses did not improve on the full sequence:\n")
		for _, c := range result.Criteria {
			if !c.Pass && !c.NotApplicable {
				sb.WriteString(fmt.Sprintf("- %s (actual: %s, wanted %s)\n", c.Name, c.Actual, c.Threshold))
			}
		}
	}

	return sb.String()
}
