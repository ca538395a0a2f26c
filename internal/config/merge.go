package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultSchemasDir       = "schemas"
	DefaultEvidenceDir      = "docs/_evidence"
	DefaultComplianceMatrix = "docs/compliance/ComplianceMatrix.md"
	DefaultFooterMaxAge     = 24 * time.Hour
	DefaultDraftProbeLines  = 5
	DefaultRetentionDays    = 90
	DefaultArchiveSubdir    = "archive"

	DefaultPandoc       = "pandoc"
	DefaultGPG          = "gpg"
	DefaultMarkdownlint = "markdownlint"
)

// Overrides carries values set by CLI flags. Empty means "not set".
type Overrides struct {
	SchemasDir       string
	EvidenceDir      string
	OutputDir        string
	ComplianceMatrix string
	MetricsFile      string
	LogLevel         string
}

// Merged is the resolved configuration for one invocation.
type Merged struct {
	SchemasDir       string
	EvidenceDir      string
	OutputDir        string
	ComplianceMatrix string
	FooterMaxAge     time.Duration
	DraftProbeLines  int
	LogLevel         string
	MetricsFile      string
	ArchiveDir       string
	RetentionDays    int
	Tools            ToolsConfigV1

	// ConfigPath is the project config that was read, if any.
	ConfigPath string
	// Sources maps a field name to where its value came from (flag, env:NAME,
	// the config path, or default). Informational only.
	Sources map[string]string
}

// Load resolves configuration with precedence:
// 1) CLI flags
// 2) env vars (DOCSEAL_*)
// 3) project config (docseal.yaml, or configPath when given)
// 4) defaults
func Load(configPath string, flags Overrides) (Merged, error) {
	var (
		project    ProjectConfigV1
		hasProject bool
		err        error
	)
	if strings.TrimSpace(configPath) != "" {
		project, hasProject, err = loadProject(configPath)
		if err != nil {
			return Merged{}, err
		}
		if !hasProject {
			return Merged{}, fmt.Errorf("config file not found: %s", configPath)
		}
	} else if p, ok := FindProjectConfig("."); ok {
		configPath = p
		project, hasProject, err = loadProject(p)
		if err != nil {
			return Merged{}, err
		}
	}

	m := Merged{Sources: map[string]string{}}
	if hasProject {
		m.ConfigPath = configPath
	}
	r := resolver{m: &m, configPath: configPath, hasProject: hasProject}

	m.SchemasDir = r.str("schemasDir", flags.SchemasDir, "DOCSEAL_SCHEMAS_DIR", project.SchemasDir, DefaultSchemasDir)
	m.EvidenceDir = r.str("evidenceDir", flags.EvidenceDir, "DOCSEAL_EVIDENCE_DIR", project.EvidenceDir, DefaultEvidenceDir)
	m.OutputDir = r.str("outputDir", flags.OutputDir, "DOCSEAL_OUTPUT_DIR", project.OutputDir, m.EvidenceDir)
	m.ComplianceMatrix = r.str("complianceMatrix", flags.ComplianceMatrix, "DOCSEAL_COMPLIANCE_MATRIX", project.ComplianceMatrix, DefaultComplianceMatrix)
	m.LogLevel = r.str("logLevel", flags.LogLevel, "DOCSEAL_LOG_LEVEL", project.LogLevel, "")
	m.MetricsFile = r.str("metricsFile", flags.MetricsFile, "DOCSEAL_METRICS_FILE", project.MetricsFile, "")
	m.ArchiveDir = r.str("archive.dir", "", "DOCSEAL_ARCHIVE_DIR", project.Archive.Dir, filepath.Join(m.EvidenceDir, DefaultArchiveSubdir))

	m.Tools.Pandoc = r.str("tools.pandoc", "", "DOCSEAL_PANDOC", project.Tools.Pandoc, DefaultPandoc)
	m.Tools.PDFEngine = r.str("tools.pdfEngine", "", "DOCSEAL_PDF_ENGINE", project.Tools.PDFEngine, "")
	m.Tools.GPG = r.str("tools.gpg", "", "DOCSEAL_GPG", project.Tools.GPG, DefaultGPG)
	m.Tools.Markdownlint = r.str("tools.markdownlint", "", "DOCSEAL_MARKDOWNLINT", project.Tools.Markdownlint, DefaultMarkdownlint)

	maxAge := r.str("footerMaxAge", "", "DOCSEAL_FOOTER_MAX_AGE", project.FooterMaxAge, DefaultFooterMaxAge.String())
	if m.FooterMaxAge, err = time.ParseDuration(maxAge); err != nil || m.FooterMaxAge <= 0 {
		return Merged{}, fmt.Errorf("invalid footerMaxAge %q (from %s)", maxAge, m.Sources["footerMaxAge"])
	}

	probe := r.str("draftProbeLines", "", "DOCSEAL_DRAFT_PROBE_LINES", itoaNonZero(project.DraftProbeLines), strconv.Itoa(DefaultDraftProbeLines))
	if m.DraftProbeLines, err = strconv.Atoi(probe); err != nil || m.DraftProbeLines <= 0 {
		return Merged{}, fmt.Errorf("invalid draftProbeLines %q (from %s)", probe, m.Sources["draftProbeLines"])
	}

	retention := r.str("archive.retentionDays", "", "DOCSEAL_RETENTION_DAYS", itoaNonZero(project.Archive.RetentionDays), strconv.Itoa(DefaultRetentionDays))
	if m.RetentionDays, err = strconv.Atoi(retention); err != nil || m.RetentionDays <= 0 {
		return Merged{}, fmt.Errorf("invalid archive.retentionDays %q (from %s)", retention, m.Sources["archive.retentionDays"])
	}

	return m, nil
}

type resolver struct {
	m          *Merged
	configPath string
	hasProject bool
}

func (r resolver) str(field, flag, env, project, def string) string {
	if v := strings.TrimSpace(flag); v != "" {
		r.m.Sources[field] = "flag"
		return v
	}
	if v := strings.TrimSpace(os.Getenv(env)); v != "" {
		r.m.Sources[field] = "env:" + env
		return v
	}
	if v := strings.TrimSpace(project); v != "" && r.hasProject {
		r.m.Sources[field] = r.configPath
		return v
	}
	r.m.Sources[field] = "default"
	return def
}

func itoaNonZero(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
