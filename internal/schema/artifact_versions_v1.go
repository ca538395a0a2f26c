package schema

// Artifact schema versions are per-artifact on purpose. The validation report
// can evolve without forcing a change to the evidence record envelope.
const (
	ValidationReportSchemaV1 = "1.0"
	EvidenceRecordSchemaV1   = 1
	IndexEntrySchemaV1       = 1
)

// EvidenceTypeValidation tags the structured report emitted by the pipeline.
const EvidenceTypeValidation = "SchemaValidationResult"

// Evidence kinds produced by docseal's own collaborator stages.
const (
	KindBuild  = "BuildResult"
	KindSign   = "SignResult"
	KindHash   = "HashResult"
	KindVerify = "VerifyResult"
	KindLint   = "LintResult"
)
