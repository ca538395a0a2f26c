package ids

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CompactLayout is the UTC timestamp embedded in every generated file name.
const CompactLayout = "20060102T150405Z"

var reKind = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_.-]*$`)

func CompactTimestamp(now time.Time) string {
	return now.UTC().Format(CompactLayout)
}

// NewRunID identifies one pipeline invocation in its report.
func NewRunID() string {
	return uuid.NewString()
}

// NewRecordID identifies one evidence record.
func NewRecordID() string {
	return uuid.NewString()
}

// IsValidKind reports whether s can be used as an evidence kind and therefore
// as a file name prefix.
func IsValidKind(s string) bool {
	return reKind.MatchString(strings.TrimSpace(s))
}

// EvidenceFileName is the canonical name a producing stage writes: <Kind>_<ts>.json
func EvidenceFileName(kind string, now time.Time) string {
	return kind + "_" + CompactTimestamp(now) + ".json"
}
