package report

import (
	"fmt"
	"strings"

	"github.com/marcohefti/docseal/internal/schema"
)

// RenderMarkdown produces the human summary. It is derived entirely from rec
// so the two outputs never disagree.
func RenderMarkdown(rec schema.ValidationReportV1) string {
	var b strings.Builder
	b.WriteString("# Schema Validation Summary\n\n")
	fmt.Fprintf(&b, "- Status: **%s**\n", rec.Status)
	fmt.Fprintf(&b, "- Timestamp (UTC): %s\n", rec.TimestampUTC)
	fmt.Fprintf(&b, "- Run: `%s`\n\n", rec.RunID)

	b.WriteString("## Metrics\n\n")
	b.WriteString("| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Total validated | %d |\n", rec.TotalValidated)
	fmt.Fprintf(&b, "| Valid | %d |\n", rec.ValidCount)
	fmt.Fprintf(&b, "| Invalid | %d |\n", rec.InvalidCount)
	fmt.Fprintf(&b, "| Missing | %d |\n", rec.MissingCount)
	fmt.Fprintf(&b, "| Completeness | %s%% |\n\n", FormatPercent(rec.CompletenessPercent))

	b.WriteString("## Draft-07 enforcement\n\n")
	de := rec.DraftEnforcement
	fmt.Fprintf(&b, "- Status: %s\n", de.Status)
	fmt.Fprintf(&b, "- Schemas checked: %d\n", de.CheckedCount)
	if len(de.NonCompliant) == 0 {
		b.WriteString("- Non-compliant: none\n\n")
	} else {
		fmt.Fprintf(&b, "- Non-compliant: %s\n\n", strings.Join(de.NonCompliant, ", "))
	}

	if fc := rec.FooterCheck; fc != nil {
		b.WriteString("## Compliance matrix footer\n\n")
		fmt.Fprintf(&b, "- Status: %s\n", fc.Status)
		fmt.Fprintf(&b, "- Path: `%s`\n", fc.Path)
		if fc.Timestamp != "" {
			fmt.Fprintf(&b, "- Last updated: %s\n", fc.Timestamp)
		}
		if fc.AgeHours != nil {
			fmt.Fprintf(&b, "- Age (hours): %s\n", FormatPercent(*fc.AgeHours))
		}
		if fc.Message != "" {
			fmt.Fprintf(&b, "- Note: %s\n", fc.Message)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Review reasons\n\n")
	if len(rec.ReviewReasons) == 0 {
		b.WriteString("- none\n\n")
	}
	for _, r := range rec.ReviewReasons {
		fmt.Fprintf(&b, "- %s\n", r)
	}
	if len(rec.ReviewReasons) > 0 {
		b.WriteString("\n")
	}

	b.WriteString("## Results\n\n")
	b.WriteString("| Schema | Evidence file | Valid | Detail |\n|---|---|---|---|\n")
	for _, r := range rec.Results {
		file := "_none_"
		if r.EvidenceFile != nil {
			file = "`" + cell(*r.EvidenceFile) + "`"
		}
		valid := "no"
		if r.Valid {
			valid = "yes"
		}
		var detail []string
		if r.Error != nil {
			detail = append(detail, cell(*r.Error))
		}
		if r.Note != "" {
			detail = append(detail, cell(r.Note))
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", cell(r.Schema), file, valid, strings.Join(detail, "<br>"))
	}
	return b.String()
}

func cell(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", `\|`)
}
