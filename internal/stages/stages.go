// Package stages wraps the external collaborators that produce evidence.
// Each stage runs its tool once, writes one evidence record describing the
// outcome and reports tool failures as errors after the record is on disk.
package stages

import (
	"context"
	"io"

	"github.com/go-logr/logr"

	"github.com/marcohefti/docseal/internal/codes"
	"github.com/marcohefti/docseal/internal/config"
	"github.com/marcohefti/docseal/internal/evidence"
	"github.com/marcohefti/docseal/internal/redact"
	"github.com/marcohefti/docseal/internal/schema"
	"github.com/marcohefti/docseal/internal/toolexec"
)

type Env struct {
	Tools    config.ToolsConfigV1
	Evidence evidence.Writer
	Log      logr.Logger
	// Stderr receives the collaborator's stderr as it runs. Nil discards it.
	Stderr io.Writer
}

type Result struct {
	Kind         string
	Status       string
	EvidencePath string
	Record       schema.EvidenceRecord
}

func (e Env) log() logr.Logger {
	if e.Log.GetSink() == nil {
		return logr.Discard()
	}
	return e.Log
}

func (e Env) run(ctx context.Context, tool string, args ...string) (toolexec.Result, error) {
	e.log().V(1).Info("running collaborator", "tool", tool, "args", args)
	return toolexec.Run(ctx, toolexec.Spec{Tool: tool, Args: args, Stderr: e.Stderr})
}

// finish writes rec and returns stageErr (or the write error) so callers
// see the tool failure while the failure record still exists on disk.
func (e Env) finish(rec schema.EvidenceRecord, stageErr error) (Result, error) {
	if stageErr != nil {
		rec.Status = schema.StatusFailure
		if rec.Message == "" {
			rec.Message = stageErr.Error()
		}
	} else if rec.Status == "" {
		rec.Status = schema.StatusSuccess
	}
	if rec.Message != "" {
		msg, applied := redact.Text(rec.Message)
		if len(applied.Names) > 0 {
			e.log().Info("redacted collaborator output", "kind", rec.Kind, "rules", applied.Names)
		}
		rec.Message = msg
	}
	path, err := e.Evidence.Write(rec)
	if err != nil {
		return Result{}, err
	}
	res := Result{Kind: rec.Kind, Status: rec.Status, EvidencePath: path, Record: rec}
	return res, stageErr
}

// notRun reports whether err means the tool never started. No evidence is
// written in that case; the environment needs fixing, not the document.
func notRun(err error) bool {
	return codes.Is(err, codes.ToolMissing) || codes.Is(err, codes.Usage)
}
