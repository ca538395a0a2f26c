package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/marcohefti/docseal/internal/config"
	"github.com/marcohefti/docseal/internal/pipeline"
	"github.com/marcohefti/docseal/internal/report"
	"github.com/marcohefti/docseal/internal/schema"
)

func (r Runner) runValidate(args []string) int {
	fs, cf := newFlagSet("validate")
	schemasDir := fs.String("schemas", "", "schema directory (default schemas)")
	evidenceDir := fs.String("evidence", "", "evidence directory (default docs/_evidence)")
	outDir := fs.String("out", "", "report output directory (default: evidence directory)")
	matrix := fs.String("matrix", "", "compliance matrix checked for a fresh footer")
	metricsFile := fs.String("metrics-file", "", "write Prometheus textfile gauges here")

	pos, err := parseArgs(fs, args)
	if err != nil {
		return r.failUsage("validate: invalid flags")
	}
	if *cf.help {
		printValidateHelp(r.Stdout)
		return 0
	}
	if len(pos) > 0 {
		printValidateHelp(r.Stderr)
		return r.failUsage("validate: unexpected arguments")
	}

	e, err := r.setup("validate", cf, config.Overrides{
		SchemasDir:       *schemasDir,
		EvidenceDir:      *evidenceDir,
		OutputDir:        *outDir,
		ComplianceMatrix: *matrix,
		MetricsFile:      *metricsFile,
	})
	if err != nil {
		return r.fail(err)
	}
	defer e.flush()

	out, err := pipeline.Run(context.Background(), pipeline.Opts{
		SchemasDir:       e.cfg.SchemasDir,
		EvidenceDir:      e.cfg.EvidenceDir,
		OutputDir:        e.cfg.OutputDir,
		ComplianceMatrix: e.cfg.ComplianceMatrix,
		FooterMaxAge:     e.cfg.FooterMaxAge,
		ProbeLines:       e.cfg.DraftProbeLines,
		MetricsFile:      e.cfg.MetricsFile,
		Now:              r.Now,
		Log:              e.log,
	})
	if err != nil {
		return r.fail(err)
	}

	if *cf.jsonOut {
		if code := r.writeJSON(out.Report); code != 0 {
			return code
		}
		return out.ExitCode()
	}
	fmt.Fprintln(r.Stdout, report.SummaryLine(out.Report))
	fmt.Fprintf(r.Stdout, "REPORT: %s\n", out.ReportPath)
	ok := out.Aggregate.FinalStatus == schema.VerdictSuccess
	r.status(ok, "%s (%s%% complete)", out.Aggregate.FinalStatus, report.FormatPercent(out.Aggregate.CompletenessPercent))
	return out.ExitCode()
}

func printValidateHelp(w io.Writer) {
	fmt.Fprint(w, `Usage:
  docseal validate [--schemas dir] [--evidence dir] [--out dir] [--matrix file] [--metrics-file file] [--config file] [--json] [-v N]

Validates every evidence JSON file against its schema kind and writes
SchemaValidation_<ts>.json and SchemaValidationSummary_<ts>.md.

Exit codes:
  0  SUCCESS
  1  REVIEW_REQUIRED, or a schema/evidence directory is missing
  2  usage error
`)
}
