package stages

import (
	"context"
	"os"
	"strings"

	"github.com/marcohefti/docseal/internal/codes"
	"github.com/marcohefti/docseal/internal/schema"
)

// SignatureSuffix is appended to a document name for its detached signature.
const SignatureSuffix = ".asc"

type SignOpts struct {
	File string
	// KeyID selects the signing key (gpg --local-user). Empty uses gpg's default.
	KeyID string
}

func (e Env) Sign(ctx context.Context, opts SignOpts) (Result, error) {
	if strings.TrimSpace(opts.File) == "" {
		return Result{}, codes.New(codes.Usage, "missing file to sign", "")
	}
	if _, err := os.Stat(opts.File); err != nil {
		return Result{}, codes.Wrap(codes.MissingArtifact, "file to sign not readable", opts.File, err)
	}
	sig := opts.File + SignatureSuffix
	args := []string{"--batch", "--yes", "--armor", "--detach-sign", "--output", sig}
	if opts.KeyID != "" {
		args = append(args, "--local-user", opts.KeyID)
	}
	args = append(args, opts.File)

	payload := map[string]any{"file": opts.File, "signature": sig}
	if opts.KeyID != "" {
		payload["keyId"] = opts.KeyID
	}
	rec := schema.EvidenceRecord{Kind: schema.KindSign, Tool: e.Tools.GPG, Target: opts.File, Payload: payload}

	if _, err := e.run(ctx, e.Tools.GPG, args...); err != nil {
		if notRun(err) {
			return Result{}, err
		}
		return e.finish(rec, err)
	}
	if _, err := os.Stat(sig); err != nil {
		return e.finish(rec, codes.Wrap(codes.MissingArtifact, "signer produced no signature", sig, err))
	}
	return e.finish(rec, nil)
}
