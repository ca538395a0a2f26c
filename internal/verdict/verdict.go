// Package verdict turns audit counts and draft enforcement into the final
// SUCCESS / REVIEW_REQUIRED decision.
package verdict

import (
	"github.com/marcohefti/docseal/internal/audit"
	"github.com/marcohefti/docseal/internal/schema"
)

// Aggregate builds the run verdict. Reasons are appended in a fixed order so
// identical inputs always produce identical reports. The footer is attached
// for reporting only and never contributes a reason.
func Aggregate(c audit.Counts, enf schema.DraftEnforcement, footer *schema.FooterCheck) schema.AggregateReport {
	reasons := make([]string, 0, 3)
	if c.Invalid > 0 {
		reasons = append(reasons, schema.ReasonInvalidFiles)
	}
	if c.Missing > 0 {
		reasons = append(reasons, schema.ReasonMissingSchemas)
	}
	if enf.Status == schema.StatusFail {
		reasons = append(reasons, schema.ReasonNonDraft7)
	}

	status := schema.VerdictSuccess
	if len(reasons) > 0 {
		status = schema.VerdictReviewRequired
	}
	if enf.NonCompliant == nil {
		enf.NonCompliant = []string{}
	}
	return schema.AggregateReport{
		TotalValidated:      c.Total,
		ValidCount:          c.Valid,
		InvalidCount:        c.Invalid,
		MissingCount:        c.Missing,
		CompletenessPercent: c.CompletenessPercent,
		DraftEnforcement:    enf,
		Footer:              footer,
		ReviewReasons:       reasons,
		FinalStatus:         status,
	}
}
