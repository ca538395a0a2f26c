package stages

import (
	"context"
	"strings"

	"github.com/marcohefti/docseal/internal/schema"
)

// DefaultLintPattern is used when lint is given no globs.
const DefaultLintPattern = "**/*.md"

// Lint runs markdownlint over patterns. The globs are passed through
// unexpanded; markdownlint resolves them itself.
func (e Env) Lint(ctx context.Context, patterns []string) (Result, error) {
	if len(patterns) == 0 {
		patterns = []string{DefaultLintPattern}
	}
	payload := map[string]any{"patterns": patterns, "exitCode": 0}
	rec := schema.EvidenceRecord{Kind: schema.KindLint, Tool: e.Tools.Markdownlint, Target: strings.Join(patterns, " "), Payload: payload}

	res, err := e.run(ctx, e.Tools.Markdownlint, patterns...)
	if err != nil && notRun(err) {
		return Result{}, err
	}
	payload["exitCode"] = res.ExitCode
	if err != nil {
		if out := strings.TrimSpace(res.OutPreview + "\n" + res.ErrPreview); out != "" {
			rec.Message = out
		}
	}
	return e.finish(rec, err)
}
