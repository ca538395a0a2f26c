package schema

// Status values shared by evidence records and checks.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"

	StatusPass    = "PASS"
	StatusFail    = "FAIL"
	StatusMissing = "MISSING"
	StatusError   = "ERROR"
)

// Final verdicts.
const (
	VerdictSuccess        = "SUCCESS"
	VerdictReviewRequired = "REVIEW_REQUIRED"
)

// Review reasons, listed in the order they are accumulated.
const (
	ReasonInvalidFiles   = "invalid_files"
	ReasonMissingSchemas = "missing_schemas"
	ReasonNonDraft7      = "non_draft7"
)

const (
	NotePlaceholder      = "Placeholder entry — schema validated but no corresponding evidence JSON found."
	NoteValidationFailed = "Schema validation failed — review required."
)

// DraftStandard is the only JSON Schema dialect accepted for schema documents.
const DraftStandard = "draft-07"

// EvidenceRecord is written by a producing stage to: docs/_evidence/<Kind>_<ts>.json
// Records are immutable once written.
type EvidenceRecord struct {
	SchemaVersion int    `json:"schemaVersion"`
	ID            string `json:"id"`
	Kind          string `json:"kind"`
	SchemaRef     string `json:"schemaRef"`
	Timestamp     string `json:"timestamp"` // RFC3339 UTC
	Status        string `json:"status"`    // success|failure
	Tool          string `json:"tool,omitempty"`
	Target        string `json:"target,omitempty"`
	Message       string `json:"message,omitempty"`
	// Payload is stage specific (page counts, digests, signer ids...).
	Payload map[string]any `json:"payload,omitempty"`
}

// IndexEntryV1 is appended to docs/_evidence/index.jsonl for every record written.
type IndexEntryV1 struct {
	V         int    `json:"v"`
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	File      string `json:"file"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// Definition is one schema document found in the schema directory.
type Definition struct {
	Kind         string `json:"kind"`
	Path         string `json:"path"`
	DraftVersion string `json:"draftVersion"`
	Compliant    bool   `json:"compliant"`
	Body         []byte `json:"-"`
	// Err is set when the schema file could not be read.
	Err error `json:"-"`
}

// ValidationResult is one row of the report. A nil EvidenceFile marks a
// placeholder for a schema kind with no evidence at all.
type ValidationResult struct {
	Schema       string  `json:"schema"`
	EvidenceFile *string `json:"evidence_file"`
	Valid        bool    `json:"valid"`
	Error        *string `json:"error"`
	Note         string  `json:"note,omitempty"`
}

func (r ValidationResult) IsPlaceholder() bool { return r.EvidenceFile == nil }

type DraftEnforcement struct {
	Enforced     bool     `json:"enforced"`
	Standard     string   `json:"standard"`
	NonCompliant []string `json:"non_compliant"`
	Status       string   `json:"status"` // PASS|FAIL
	CheckedCount int      `json:"checked_count"`
}

type FooterCheck struct {
	Status         string   `json:"status"` // PASS|FAIL|MISSING|ERROR
	Path           string   `json:"path"`
	Timestamp      string   `json:"timestamp,omitempty"`
	AgeHours       *float64 `json:"age_hours,omitempty"`
	NewestEvidence string   `json:"newest_evidence,omitempty"`
	Message        string   `json:"message,omitempty"`
}

type Environment struct {
	OS        string `json:"os"`
	PSVersion string `json:"ps_version"`
	Hostname  string `json:"hostname"`
	GitCommit string `json:"git_commit,omitempty"`
	GitBranch string `json:"git_branch,omitempty"`
}

// ValidationReportV1 is written to: docs/_evidence/SchemaValidation_<ts>.json
// Field names are a contract consumed by other tools.
type ValidationReportV1 struct {
	SchemaVersion       string             `json:"schema_version"`
	EvidenceType        string             `json:"evidence_type"`
	RunID               string             `json:"run_id"`
	TimestampUTC        string             `json:"timestamp_utc"`
	TotalValidated      int                `json:"total_validated"`
	ValidCount          int                `json:"valid_count"`
	InvalidCount        int                `json:"invalid_count"`
	MissingCount        int                `json:"missing_count"`
	CompletenessPercent float64            `json:"completeness_percent"`
	DraftEnforcement    DraftEnforcement   `json:"draft_enforcement"`
	FooterCheck         *FooterCheck       `json:"footer_check,omitempty"`
	ReviewReasons       []string           `json:"review_reasons"`
	Results             []ValidationResult `json:"results"`
	Environment         Environment        `json:"environment"`
	Status              string             `json:"status"`
}

// AggregateReport is the verdict of one run. FinalStatus is REVIEW_REQUIRED
// exactly when ReviewReasons is non-empty.
type AggregateReport struct {
	TotalValidated      int              `json:"totalValidated"`
	ValidCount          int              `json:"validCount"`
	InvalidCount        int              `json:"invalidCount"`
	MissingCount        int              `json:"missingCount"`
	CompletenessPercent float64          `json:"completenessPercent"`
	DraftEnforcement    DraftEnforcement `json:"draftEnforcement"`
	Footer              *FooterCheck     `json:"footer,omitempty"`
	ReviewReasons       []string         `json:"reviewReasons"`
	FinalStatus         string           `json:"finalStatus"`
}

// ExitCode maps the verdict to the process exit status.
func (r AggregateReport) ExitCode() int {
	if r.FinalStatus == VerdictReviewRequired {
		return 1
	}
	return 0
}
