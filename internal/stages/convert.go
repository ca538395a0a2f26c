package stages

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/marcohefti/docseal/internal/codes"
	"github.com/marcohefti/docseal/internal/schema"
)

type ConvertOpts struct {
	Source string
	// Output defaults to Source with a .pdf extension.
	Output string
}

// Convert renders Markdown to PDF with pandoc and checks the result opens as
// a PDF. The page count goes into the BuildResult payload.
func (e Env) Convert(ctx context.Context, opts ConvertOpts) (Result, error) {
	if strings.TrimSpace(opts.Source) == "" {
		return Result{}, codes.New(codes.Usage, "missing source document", "")
	}
	if _, err := os.Stat(opts.Source); err != nil {
		return Result{}, codes.Wrap(codes.MissingArtifact, "source document not readable", opts.Source, err)
	}
	out := opts.Output
	if out == "" {
		out = strings.TrimSuffix(opts.Source, filepath.Ext(opts.Source)) + ".pdf"
	}

	args := []string{opts.Source, "-o", out}
	if eng := strings.TrimSpace(e.Tools.PDFEngine); eng != "" {
		args = append(args, "--pdf-engine="+eng)
	}
	payload := map[string]any{"source": opts.Source, "output": out, "converter": e.Tools.Pandoc}
	rec := schema.EvidenceRecord{Kind: schema.KindBuild, Tool: e.Tools.Pandoc, Target: opts.Source, Payload: payload}

	if _, err := e.run(ctx, e.Tools.Pandoc, args...); err != nil {
		if notRun(err) {
			return Result{}, err
		}
		return e.finish(rec, err)
	}
	pages, err := pageCount(out)
	if err != nil {
		return e.finish(rec, err)
	}
	payload["pages"] = pages
	rec.Message = fmt.Sprintf("rendered %d page(s)", pages)
	return e.finish(rec, nil)
}

func pageCount(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, codes.Wrap(codes.MissingArtifact, "converter produced no output", path, err)
	}
	defer func() { _ = f.Close() }()
	info, err := f.Stat()
	if err != nil {
		return 0, codes.Wrap(codes.IO, "stat output", path, err)
	}
	r, err := pdf.NewReader(f, info.Size())
	if err != nil {
		return 0, codes.Wrap(codes.ToolFailed, "output is not a readable PDF", path, err)
	}
	return r.NumPage(), nil
}
