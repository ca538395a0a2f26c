// Package report writes the structured validation record and its Markdown
// summary next to the evidence they describe.
package report

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/marcohefti/docseal/internal/codes"
	"github.com/marcohefti/docseal/internal/ids"
	"github.com/marcohefti/docseal/internal/schema"
	"github.com/marcohefti/docseal/internal/store"
)

const (
	JSONPrefix    = "SchemaValidation_"
	SummaryPrefix = "SchemaValidationSummary_"
)

type Options struct {
	OutDir string
	Now    time.Time
	RunID  string
}

type Emitted struct {
	JSONPath    string
	SummaryPath string
	Record      schema.ValidationReportV1
}

// Build assembles the on-disk record. Slices are never nil so consumers
// always see arrays.
func Build(agg schema.AggregateReport, results []schema.ValidationResult, env schema.Environment, runID string, now time.Time) schema.ValidationReportV1 {
	if results == nil {
		results = []schema.ValidationResult{}
	}
	reasons := agg.ReviewReasons
	if reasons == nil {
		reasons = []string{}
	}
	enf := agg.DraftEnforcement
	if enf.NonCompliant == nil {
		enf.NonCompliant = []string{}
	}
	return schema.ValidationReportV1{
		SchemaVersion:       schema.ValidationReportSchemaV1,
		EvidenceType:        schema.EvidenceTypeValidation,
		RunID:               runID,
		TimestampUTC:        now.UTC().Format(time.RFC3339),
		TotalValidated:      agg.TotalValidated,
		ValidCount:          agg.ValidCount,
		InvalidCount:        agg.InvalidCount,
		MissingCount:        agg.MissingCount,
		CompletenessPercent: agg.CompletenessPercent,
		DraftEnforcement:    enf,
		FooterCheck:         agg.Footer,
		ReviewReasons:       reasons,
		Results:             results,
		Environment:         env,
		Status:              agg.FinalStatus,
	}
}

// Emit writes SchemaValidation_<ts>.json and SchemaValidationSummary_<ts>.md
// into opts.OutDir. Both files share one suffix when a run in the same second
// already claimed the plain names.
func Emit(agg schema.AggregateReport, results []schema.ValidationResult, env schema.Environment, opts Options) (Emitted, error) {
	if strings.TrimSpace(opts.OutDir) == "" {
		return Emitted{}, codes.New(codes.Usage, "missing output directory", "")
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	runID := opts.RunID
	if runID == "" {
		runID = ids.NewRunID()
	}
	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return Emitted{}, codes.Wrap(codes.IO, "create output directory", opts.OutDir, err)
	}

	rec := Build(agg, results, env, runID, now)
	jsonPath, mdPath, err := claimPaths(opts.OutDir, ids.CompactTimestamp(now))
	if err != nil {
		return Emitted{}, codes.Wrap(codes.IO, "choose report file name", opts.OutDir, err)
	}
	if err := store.WriteJSONAtomic(jsonPath, rec); err != nil {
		return Emitted{}, codes.Wrap(codes.IO, "write report", jsonPath, err)
	}
	if err := store.WriteFileAtomic(mdPath, []byte(RenderMarkdown(rec))); err != nil {
		return Emitted{}, codes.Wrap(codes.IO, "write summary", mdPath, err)
	}
	return Emitted{JSONPath: jsonPath, SummaryPath: mdPath, Record: rec}, nil
}

func claimPaths(dir, ts string) (string, string, error) {
	for i := 1; i < 1000; i++ {
		suffix := ts
		if i > 1 {
			suffix = ts + "-" + strconv.Itoa(i)
		}
		j := filepath.Join(dir, JSONPrefix+suffix+".json")
		m := filepath.Join(dir, SummaryPrefix+suffix+".md")
		jFree, err := free(j)
		if err != nil {
			return "", "", err
		}
		mFree, err := free(m)
		if err != nil {
			return "", "", err
		}
		if jFree && mFree {
			return j, m, nil
		}
	}
	return "", "", fmt.Errorf("no free report name for %s", ts)
}

func free(path string) (bool, error) {
	_, err := os.Lstat(path)
	if errors.Is(err, os.ErrNotExist) {
		return true, nil
	}
	return false, err
}

// SummaryLine is the single stdout line scripts grep for.
func SummaryLine(rec schema.ValidationReportV1) string {
	reasons := "none"
	if len(rec.ReviewReasons) > 0 {
		reasons = strings.Join(rec.ReviewReasons, ",")
	}
	return fmt.Sprintf("SUMMARY: VALID=%d INVALID=%d MISSING=%d COMPLETENESS=%s%% ENFORCEMENT=%s STATUS=%s REASONS=%s",
		rec.ValidCount, rec.InvalidCount, rec.MissingCount,
		FormatPercent(rec.CompletenessPercent),
		rec.DraftEnforcement.Status, rec.Status, reasons)
}

// FormatPercent prints at most two decimals without trailing zeros.
func FormatPercent(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}
