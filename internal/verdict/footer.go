package verdict

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"regexp"
	"time"

	"github.com/marcohefti/docseal/internal/schema"
)

const (
	DefaultFooterMaxAge = 24 * time.Hour
	footerLayout        = "2006-01-02 15:04:05 UTC"
)

var footerRe = regexp.MustCompile(`\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2} UTC`)

// CheckFooter inspects the "last updated" footer of the compliance matrix.
// The last timestamp in the document wins. A zero newest skips the
// comparison against evidence modification times.
func CheckFooter(matrixPath string, newest time.Time, now time.Time, maxAge time.Duration) schema.FooterCheck {
	if maxAge <= 0 {
		maxAge = DefaultFooterMaxAge
	}
	fc := schema.FooterCheck{Path: matrixPath}
	if !newest.IsZero() {
		fc.NewestEvidence = newest.UTC().Format(time.RFC3339)
	}

	b, err := os.ReadFile(matrixPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			fc.Status = schema.StatusMissing
			fc.Message = "compliance matrix not found"
			return fc
		}
		fc.Status = schema.StatusError
		fc.Message = err.Error()
		return fc
	}

	matches := footerRe.FindAll(b, -1)
	if len(matches) == 0 {
		fc.Status = schema.StatusMissing
		fc.Message = "no footer timestamp found"
		return fc
	}
	raw := string(matches[len(matches)-1])
	fc.Timestamp = raw
	ts, err := time.Parse(footerLayout, raw)
	if err != nil {
		fc.Status = schema.StatusError
		fc.Message = fmt.Sprintf("unparseable footer timestamp %q", raw)
		return fc
	}

	age := now.UTC().Sub(ts)
	hours := math.Round(age.Hours()*100) / 100
	fc.AgeHours = &hours

	switch {
	case age > maxAge:
		fc.Status = schema.StatusFail
		fc.Message = fmt.Sprintf("footer older than %s", maxAge)
	case !newest.IsZero() && ts.Before(newest.UTC().Truncate(time.Second)):
		fc.Status = schema.StatusFail
		fc.Message = "footer predates newest evidence"
	default:
		fc.Status = schema.StatusPass
	}
	return fc
}
