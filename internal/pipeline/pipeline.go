// Package pipeline runs one validation pass: registry, scan, validate,
// audit, verdict, footer check, report and optional metrics export.
package pipeline

import (
	"context"
	"time"

	"github.com/go-logr/logr"

	"github.com/marcohefti/docseal/internal/audit"
	"github.com/marcohefti/docseal/internal/envinfo"
	"github.com/marcohefti/docseal/internal/ids"
	"github.com/marcohefti/docseal/internal/metrics"
	"github.com/marcohefti/docseal/internal/registry"
	"github.com/marcohefti/docseal/internal/report"
	"github.com/marcohefti/docseal/internal/scan"
	"github.com/marcohefti/docseal/internal/schema"
	"github.com/marcohefti/docseal/internal/validate"
	"github.com/marcohefti/docseal/internal/verdict"
)

type Opts struct {
	SchemasDir       string
	EvidenceDir      string
	OutputDir        string
	ComplianceMatrix string
	FooterMaxAge     time.Duration
	ProbeLines       int
	MetricsFile      string

	// RepoDir is where git HEAD is looked up for the environment block.
	// Defaults to EvidenceDir.
	RepoDir string
	RunID   string
	Now     func() time.Time
	Log     logr.Logger
}

type Outcome struct {
	Aggregate   schema.AggregateReport
	Report      schema.ValidationReportV1
	Results     []schema.ValidationResult
	ReportPath  string
	SummaryPath string
	MetricsPath string
}

func (o Outcome) ExitCode() int { return o.Aggregate.ExitCode() }

// runState is threaded through the stages. Each stage reads what earlier
// stages produced and fills in its own part.
type runState struct {
	opts    Opts
	log     logr.Logger
	now     time.Time
	defs    []schema.Definition
	enf     schema.DraftEnforcement
	index   scan.Index
	results []schema.ValidationResult
	counts  audit.Counts
	footer  schema.FooterCheck
	agg     schema.AggregateReport
	emitted report.Emitted
}

type stage struct {
	name string
	run  func(context.Context, *runState) error
}

var stages = []stage{
	{"registry", loadRegistry},
	{"scan", scanEvidence},
	{"validate", validateAll},
	{"audit", auditResults},
	{"footer", checkFooter},
	{"verdict", aggregate},
	{"emit", emit},
	{"metrics", exportMetrics},
}

// Run executes a full pass. Only directory-level failures are returned as
// errors, and in that case nothing is written. Per-file problems end up in
// the report.
func Run(ctx context.Context, opts Opts) (Outcome, error) {
	st := &runState{opts: opts, log: opts.Log}
	if st.log.GetSink() == nil {
		st.log = logr.Discard()
	}
	st.now = time.Now().UTC()
	if opts.Now != nil {
		st.now = opts.Now().UTC()
	}
	if st.opts.OutputDir == "" {
		st.opts.OutputDir = opts.EvidenceDir
	}
	if st.opts.RepoDir == "" {
		st.opts.RepoDir = opts.EvidenceDir
	}
	if st.opts.RunID == "" {
		st.opts.RunID = ids.NewRunID()
	}

	for _, s := range stages {
		if err := ctx.Err(); err != nil {
			return Outcome{}, err
		}
		start := time.Now()
		if err := s.run(ctx, st); err != nil {
			st.log.Error(err, "stage failed", "stage", s.name)
			return Outcome{}, err
		}
		st.log.V(1).Info("stage done", "stage", s.name, "elapsed", time.Since(start).String())
	}

	return Outcome{
		Aggregate:   st.agg,
		Report:      st.emitted.Record,
		Results:     st.results,
		ReportPath:  st.emitted.JSONPath,
		SummaryPath: st.emitted.SummaryPath,
		MetricsPath: st.opts.MetricsFile,
	}, nil
}

func loadRegistry(_ context.Context, st *runState) error {
	defs, enf, err := registry.Load(st.opts.SchemasDir, registry.Options{ProbeLines: st.opts.ProbeLines, Log: st.log})
	if err != nil {
		return err
	}
	st.defs, st.enf = defs, enf
	st.log.Info("schemas loaded", "dir", st.opts.SchemasDir, "count", len(defs), "enforcement", enf.Status)
	return nil
}

func scanEvidence(_ context.Context, st *runState) error {
	ix, err := scan.Evidence(st.opts.EvidenceDir, registry.Kinds(st.defs), scan.Options{Log: st.log})
	if err != nil {
		return err
	}
	st.index = ix
	return nil
}

func validateAll(_ context.Context, st *runState) error {
	st.results = validate.New(validate.Options{Log: st.log}).All(st.defs, st.index)
	return nil
}

func auditResults(_ context.Context, st *runState) error {
	st.counts = audit.Audit(st.results)
	return nil
}

func checkFooter(_ context.Context, st *runState) error {
	st.footer = verdict.CheckFooter(st.opts.ComplianceMatrix, st.index.NewestModTime, st.now, st.opts.FooterMaxAge)
	if st.footer.Status != schema.StatusPass {
		st.log.Info("compliance matrix footer not fresh", "status", st.footer.Status, "path", st.footer.Path, "message", st.footer.Message)
	}
	return nil
}

func aggregate(_ context.Context, st *runState) error {
	footer := st.footer
	st.agg = verdict.Aggregate(st.counts, st.enf, &footer)
	return nil
}

func emit(_ context.Context, st *runState) error {
	env := envinfo.Capture(st.opts.RepoDir, st.log)
	out, err := report.Emit(st.agg, st.results, env, report.Options{OutDir: st.opts.OutputDir, Now: st.now, RunID: st.opts.RunID})
	if err != nil {
		return err
	}
	st.emitted = out
	st.log.Info("report written", "path", out.JSONPath, "status", st.agg.FinalStatus)
	return nil
}

func exportMetrics(_ context.Context, st *runState) error {
	if st.opts.MetricsFile == "" {
		return nil
	}
	c := metrics.NewCollector()
	c.Observe(st.agg)
	if err := c.WriteTextfile(st.opts.MetricsFile); err != nil {
		// The report is already on disk; a metrics failure must not hide it.
		st.log.Error(err, "metrics export failed", "path", st.opts.MetricsFile)
		st.opts.MetricsFile = ""
	}
	return nil
}
