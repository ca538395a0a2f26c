package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/marcohefti/docseal/internal/codes"
	"github.com/marcohefti/docseal/internal/config"
	"github.com/marcohefti/docseal/internal/evidence"
	"github.com/marcohefti/docseal/internal/schema"
	"github.com/marcohefti/docseal/internal/stages"
)

type stageOutput struct {
	OK       bool   `json:"ok"`
	Kind     string `json:"kind"`
	Status   string `json:"status"`
	Evidence string `json:"evidence,omitempty"`
	Error    string `json:"error,omitempty"`
	Code     string `json:"code,omitempty"`

	Record *schema.EvidenceRecord `json:"record,omitempty"`
}

func (r Runner) stageEnv(e env) stages.Env {
	return stages.Env{
		Tools:    e.cfg.Tools,
		Evidence: evidence.Writer{Dir: e.cfg.EvidenceDir, Now: r.Now, Log: e.log},
		Log:      e.log,
		Stderr:   r.Stderr,
	}
}

// finishStage prints the outcome of a producing stage. A stage can fail and
// still have written evidence; both are reported.
func (r Runner) finishStage(jsonOut bool, res stages.Result, err error) int {
	if jsonOut {
		out := stageOutput{OK: err == nil, Kind: res.Kind, Status: res.Status, Evidence: res.EvidencePath}
		if res.EvidencePath != "" {
			rec := res.Record
			out.Record = &rec
		}
		code := 0
		if err != nil {
			out.Error = err.Error()
			out.Code = codes.CodeOf(err)
			code = 1
			if out.Code == codes.Usage {
				code = 2
			}
		}
		if c := r.writeJSON(out); c != 0 {
			return c
		}
		return code
	}
	if res.EvidencePath != "" {
		fmt.Fprintf(r.Stdout, "EVIDENCE: %s\n", res.EvidencePath)
	}
	if err != nil {
		return r.fail(err)
	}
	r.status(true, "%s %s", res.Kind, res.Status)
	return 0
}

func (r Runner) runConvert(args []string) int {
	fs, cf := newFlagSet("convert")
	out := fs.String("out", "", "output PDF (default: source with .pdf)")
	evidenceDir := fs.String("evidence", "", "evidence directory")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return r.failUsage("convert: invalid flags")
	}
	if *cf.help {
		printConvertHelp(r.Stdout)
		return 0
	}
	if len(pos) != 1 {
		printConvertHelp(r.Stderr)
		return r.failUsage("convert: require exactly one <file.md>")
	}
	e, err := r.setup("convert", cf, config.Overrides{EvidenceDir: *evidenceDir})
	if err != nil {
		return r.fail(err)
	}
	defer e.flush()

	res, err := r.stageEnv(e).Convert(context.Background(), stages.ConvertOpts{Source: pos[0], Output: *out})
	return r.finishStage(*cf.jsonOut, res, err)
}

func (r Runner) runSign(args []string) int {
	fs, cf := newFlagSet("sign")
	key := fs.String("key", "", "signing key id (gpg --local-user)")
	evidenceDir := fs.String("evidence", "", "evidence directory")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return r.failUsage("sign: invalid flags")
	}
	if *cf.help {
		printSignHelp(r.Stdout)
		return 0
	}
	if len(pos) != 1 {
		printSignHelp(r.Stderr)
		return r.failUsage("sign: require exactly one <file>")
	}
	e, err := r.setup("sign", cf, config.Overrides{EvidenceDir: *evidenceDir})
	if err != nil {
		return r.fail(err)
	}
	defer e.flush()

	res, err := r.stageEnv(e).Sign(context.Background(), stages.SignOpts{File: pos[0], KeyID: *key})
	return r.finishStage(*cf.jsonOut, res, err)
}

func (r Runner) runHash(args []string) int {
	fs, cf := newFlagSet("hash")
	evidenceDir := fs.String("evidence", "", "evidence directory")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return r.failUsage("hash: invalid flags")
	}
	if *cf.help {
		printHashHelp(r.Stdout)
		return 0
	}
	if len(pos) != 1 {
		printHashHelp(r.Stderr)
		return r.failUsage("hash: require exactly one <file>")
	}
	e, err := r.setup("hash", cf, config.Overrides{EvidenceDir: *evidenceDir})
	if err != nil {
		return r.fail(err)
	}
	defer e.flush()

	res, err := r.stageEnv(e).Hash(pos[0])
	return r.finishStage(*cf.jsonOut, res, err)
}

func (r Runner) runVerify(args []string) int {
	fs, cf := newFlagSet("verify")
	keyring := fs.String("keyring", "", "armored public keyring for in-process signature checks")
	evidenceDir := fs.String("evidence", "", "evidence directory")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return r.failUsage("verify: invalid flags")
	}
	if *cf.help {
		printVerifyHelp(r.Stdout)
		return 0
	}
	if len(pos) != 1 {
		printVerifyHelp(r.Stderr)
		return r.failUsage("verify: require exactly one <file>")
	}
	e, err := r.setup("verify", cf, config.Overrides{EvidenceDir: *evidenceDir})
	if err != nil {
		return r.fail(err)
	}
	defer e.flush()

	res, err := r.stageEnv(e).Verify(context.Background(), stages.VerifyOpts{File: pos[0], Keyring: *keyring})
	return r.finishStage(*cf.jsonOut, res, err)
}

func (r Runner) runLint(args []string) int {
	fs, cf := newFlagSet("lint")
	evidenceDir := fs.String("evidence", "", "evidence directory")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return r.failUsage("lint: invalid flags")
	}
	if *cf.help {
		printLintHelp(r.Stdout)
		return 0
	}
	e, err := r.setup("lint", cf, config.Overrides{EvidenceDir: *evidenceDir})
	if err != nil {
		return r.fail(err)
	}
	defer e.flush()

	res, err := r.stageEnv(e).Lint(context.Background(), pos)
	return r.finishStage(*cf.jsonOut, res, err)
}

func printConvertHelp(w io.Writer) {
	fmt.Fprint(w, `Usage:
  docseal convert <file.md> [--out file.pdf] [--evidence dir] [--config file] [--json]
`)
}

func printSignHelp(w io.Writer) {
	fmt.Fprint(w, `Usage:
  docseal sign <file> [--key id] [--evidence dir] [--config file] [--json]
`)
}

func printHashHelp(w io.Writer) {
	fmt.Fprint(w, `Usage:
  docseal hash <file> [--evidence dir] [--config file] [--json]
`)
}

func printVerifyHelp(w io.Writer) {
	fmt.Fprint(w, `Usage:
  docseal verify <file> [--keyring pub.asc] [--evidence dir] [--config file] [--json]

Checks <file>.sha256 and <file>.asc. Without --keyring the signature is
checked with gpg --verify against the default keyring.
`)
}

func printLintHelp(w io.Writer) {
	fmt.Fprint(w, `Usage:
  docseal lint [glob...] [--evidence dir] [--config file] [--json]

Globs default to **/*.md and are passed to markdownlint unexpanded.
`)
}
