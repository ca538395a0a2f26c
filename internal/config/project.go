package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/marcohefti/docseal/internal/store"
)

const (
	ProjectConfigSchemaV1    = 1
	DefaultProjectConfigPath = "docseal.yaml"
)

// Candidate names probed, in order, when no --config is given.
var projectConfigCandidates = []string{"docseal.yaml", "docseal.yml", "docseal.json"}

// ProjectConfigV1 is the per-repo config created by `docseal init`.
// Empty fields fall through to env vars and then to defaults.
type ProjectConfigV1 struct {
	SchemaVersion    int             `yaml:"schemaVersion" json:"schemaVersion"`
	SchemasDir       string          `yaml:"schemasDir,omitempty" json:"schemasDir,omitempty"`
	EvidenceDir      string          `yaml:"evidenceDir,omitempty" json:"evidenceDir,omitempty"`
	OutputDir        string          `yaml:"outputDir,omitempty" json:"outputDir,omitempty"`
	ComplianceMatrix string          `yaml:"complianceMatrix,omitempty" json:"complianceMatrix,omitempty"`
	FooterMaxAge     string          `yaml:"footerMaxAge,omitempty" json:"footerMaxAge,omitempty"`
	DraftProbeLines  int             `yaml:"draftProbeLines,omitempty" json:"draftProbeLines,omitempty"`
	LogLevel         string          `yaml:"logLevel,omitempty" json:"logLevel,omitempty"`
	MetricsFile      string          `yaml:"metricsFile,omitempty" json:"metricsFile,omitempty"`
	Archive          ArchiveConfigV1 `yaml:"archive,omitempty" json:"archive,omitempty"`
	Tools            ToolsConfigV1   `yaml:"tools,omitempty" json:"tools,omitempty"`
}

type ArchiveConfigV1 struct {
	Dir           string `yaml:"dir,omitempty" json:"dir,omitempty"`
	RetentionDays int    `yaml:"retentionDays,omitempty" json:"retentionDays,omitempty"`
}

// ToolsConfigV1 names the external collaborator binaries.
type ToolsConfigV1 struct {
	Pandoc       string `yaml:"pandoc,omitempty" json:"pandoc,omitempty"`
	PDFEngine    string `yaml:"pdfEngine,omitempty" json:"pdfEngine,omitempty"`
	GPG          string `yaml:"gpg,omitempty" json:"gpg,omitempty"`
	Markdownlint string `yaml:"markdownlint,omitempty" json:"markdownlint,omitempty"`
}

type InitResult struct {
	OK          bool   `json:"ok"`
	ConfigPath  string `json:"configPath"`
	Created     bool   `json:"created"`
	SchemasDir  string `json:"schemasDir"`
	EvidenceDir string `json:"evidenceDir"`
}

// InitProject writes a default config (unless one exists) and creates the
// schema and evidence directories.
func InitProject(configPath string) (*InitResult, error) {
	if strings.TrimSpace(configPath) == "" {
		configPath = DefaultProjectConfigPath
	}

	created := false
	cfg, ok, err := loadProject(configPath)
	if err != nil {
		return nil, err
	}
	if !ok {
		cfg = ProjectConfigV1{
			SchemaVersion:    ProjectConfigSchemaV1,
			SchemasDir:       DefaultSchemasDir,
			EvidenceDir:      DefaultEvidenceDir,
			ComplianceMatrix: DefaultComplianceMatrix,
			FooterMaxAge:     DefaultFooterMaxAge.String(),
			DraftProbeLines:  DefaultDraftProbeLines,
			Archive: ArchiveConfigV1{
				RetentionDays: DefaultRetentionDays,
			},
		}
		b, err := encodeProject(configPath, cfg)
		if err != nil {
			return nil, err
		}
		if err := store.WriteFileAtomic(configPath, b); err != nil {
			return nil, err
		}
		created = true
	}

	schemasDir := firstNonEmpty(cfg.SchemasDir, DefaultSchemasDir)
	evidenceDir := firstNonEmpty(cfg.EvidenceDir, DefaultEvidenceDir)
	for _, dir := range []string{schemasDir, evidenceDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	return &InitResult{
		OK:          true,
		ConfigPath:  configPath,
		Created:     created,
		SchemasDir:  schemasDir,
		EvidenceDir: evidenceDir,
	}, nil
}

// FindProjectConfig returns the first default config file present in dir.
func FindProjectConfig(dir string) (string, bool) {
	for _, name := range projectConfigCandidates {
		p := filepath.Join(dir, name)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, true
		}
	}
	return "", false
}

func loadProject(path string) (ProjectConfigV1, bool, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ProjectConfigV1{}, false, nil
		}
		return ProjectConfigV1{}, false, err
	}
	var cfg ProjectConfigV1
	if isJSONPath(path) {
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return ProjectConfigV1{}, false, fmt.Errorf("invalid config json %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return ProjectConfigV1{}, false, fmt.Errorf("invalid config yaml %s: %w", path, err)
	}
	if cfg.SchemaVersion == 0 {
		cfg.SchemaVersion = ProjectConfigSchemaV1
	}
	if cfg.SchemaVersion != ProjectConfigSchemaV1 {
		return ProjectConfigV1{}, false, fmt.Errorf("config %s has unsupported schemaVersion=%d", path, cfg.SchemaVersion)
	}
	if cfg.DraftProbeLines < 0 {
		return ProjectConfigV1{}, false, fmt.Errorf("config %s: draftProbeLines must be positive", path)
	}
	if cfg.Archive.RetentionDays < 0 {
		return ProjectConfigV1{}, false, fmt.Errorf("config %s: archive.retentionDays must be positive", path)
	}
	return cfg, true, nil
}

func encodeProject(path string, cfg ProjectConfigV1) ([]byte, error) {
	if isJSONPath(path) {
		return store.EncodeJSON(cfg)
	}
	return yaml.Marshal(cfg)
}

func isJSONPath(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}
