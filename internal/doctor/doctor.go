// Package doctor checks that a checkout is ready for docseal: config parses,
// directories exist and are writable, collaborator binaries resolve.
package doctor

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/marcohefti/docseal/internal/config"
	"github.com/marcohefti/docseal/internal/evidence"
	"github.com/marcohefti/docseal/internal/registry"
	"github.com/marcohefti/docseal/internal/schema"
	"github.com/marcohefti/docseal/internal/store"
	"github.com/marcohefti/docseal/internal/toolexec"
	"github.com/marcohefti/docseal/internal/verdict"
)

type Check struct {
	ID string `json:"id"`
	OK bool   `json:"ok"`
	// Required checks decide the overall result. Optional ones only inform.
	Required bool   `json:"required"`
	Message  string `json:"message,omitempty"`
}

type Result struct {
	OK         bool    `json:"ok"`
	ConfigPath string  `json:"configPath,omitempty"`
	Checks     []Check `json:"checks"`
}

func (r *Result) add(c Check) {
	r.Checks = append(r.Checks, c)
	if c.Required && !c.OK {
		r.OK = false
	}
}

func Run(m config.Merged, now time.Time) Result {
	res := Result{OK: true, ConfigPath: m.ConfigPath}

	if m.ConfigPath != "" {
		res.add(Check{ID: "project_config", OK: true, Required: true, Message: m.ConfigPath})
	} else {
		res.add(Check{ID: "project_config", OK: true, Message: "missing (defaults in use; run docseal init)"})
	}

	defs, enf, err := registry.Load(m.SchemasDir, registry.Options{ProbeLines: m.DraftProbeLines})
	switch {
	case err != nil:
		res.add(Check{ID: "schemas_dir", OK: false, Required: true, Message: err.Error()})
	default:
		res.add(Check{ID: "schemas_dir", OK: true, Required: true, Message: fmt.Sprintf("%d schema(s) in %s", len(defs), m.SchemasDir)})
		msg := "all schemas declare " + schema.DraftStandard
		if enf.Status != schema.StatusPass {
			msg = "not " + schema.DraftStandard + ": " + strings.Join(enf.NonCompliant, ", ")
		}
		res.add(Check{ID: "draft_enforcement", OK: enf.Status == schema.StatusPass, Message: msg})
		if reserved := registry.ReservedKinds(m.SchemasDir); len(reserved) > 0 {
			res.add(Check{ID: "schema_kinds", OK: false, Required: true, Message: "kinds collide with the report prefix and are ignored: " + strings.Join(reserved, ", ")})
		}
	}

	res.add(writable("evidence_dir", m.EvidenceDir))
	if filepath.Clean(m.OutputDir) != filepath.Clean(m.EvidenceDir) {
		res.add(writable("output_dir", m.OutputDir))
	}

	if entries, err := evidence.ReadIndex(m.EvidenceDir); err != nil {
		res.add(Check{ID: "evidence_index", OK: false, Message: err.Error()})
	} else {
		res.add(Check{ID: "evidence_index", OK: true, Message: strconv.Itoa(len(entries)) + " entries"})
	}

	fc := verdict.CheckFooter(m.ComplianceMatrix, time.Time{}, now, m.FooterMaxAge)
	footerMsg := fc.Status + " " + fc.Path
	if fc.Message != "" {
		footerMsg += ": " + fc.Message
	}
	res.add(Check{ID: "compliance_matrix", OK: fc.Status == schema.StatusPass, Message: footerMsg})

	tools := []struct{ id, bin, use string }{
		{"tool_pandoc", m.Tools.Pandoc, "convert"},
		{"tool_gpg", m.Tools.GPG, "sign, verify without --keyring"},
		{"tool_markdownlint", m.Tools.Markdownlint, "lint"},
	}
	if m.Tools.PDFEngine != "" {
		tools = append(tools, struct{ id, bin, use string }{"tool_pdf_engine", m.Tools.PDFEngine, "convert"})
	}
	for _, t := range tools {
		p, err := toolexec.Lookup(t.bin)
		if err != nil {
			res.add(Check{ID: t.id, OK: false, Message: t.bin + " not found (needed by " + t.use + ")"})
			continue
		}
		res.add(Check{ID: t.id, OK: true, Message: p})
	}
	return res
}

// writable probes dir with a temp file named so the scanner ignores it.
func writable(id, dir string) Check {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return Check{ID: id, OK: false, Required: true, Message: "missing: " + dir}
	}
	probe := filepath.Join(dir, "doctor"+store.TempMarker+strconv.FormatInt(time.Now().UnixNano(), 10))
	if err := os.WriteFile(probe, []byte("ok\n"), 0o644); err != nil {
		return Check{ID: id, OK: false, Required: true, Message: err.Error()}
	}
	_ = os.Remove(probe)
	return Check{ID: id, OK: true, Required: true, Message: dir}
}
