// Package audit counts validation outcomes.
package audit

import (
	"math"

	"github.com/marcohefti/docseal/internal/schema"
)

// Counts always satisfies Valid + Invalid + Missing == Total.
type Counts struct {
	Total               int     `json:"total"`
	Valid               int     `json:"valid"`
	Invalid             int     `json:"invalid"`
	Missing             int     `json:"missing"`
	CompletenessPercent float64 `json:"completenessPercent"`
}

func Audit(results []schema.ValidationResult) Counts {
	c := Counts{Total: len(results)}
	for _, r := range results {
		switch {
		case r.IsPlaceholder():
			c.Missing++
		case !r.Valid:
			c.Invalid++
		}
	}
	c.Valid = c.Total - c.Invalid - c.Missing
	c.CompletenessPercent = Completeness(c.Valid, c.Total)
	return c
}

// Completeness is valid/total as a percentage rounded to two decimals, and 0
// for an empty run.
func Completeness(valid, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(valid)/float64(total)*100*100) / 100
}
