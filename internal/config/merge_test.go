package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_PrecedenceFlagEnvProjectDefault(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	m, err := Load("", Overrides{})
	require.NoError(t, err)
	assert.Equal(t, DefaultSchemasDir, m.SchemasDir)
	assert.Equal(t, DefaultEvidenceDir, m.EvidenceDir)
	assert.Equal(t, DefaultEvidenceDir, m.OutputDir, "output dir follows evidence dir")
	assert.Equal(t, DefaultFooterMaxAge, m.FooterMaxAge)
	assert.Equal(t, DefaultDraftProbeLines, m.DraftProbeLines)
	assert.Equal(t, "default", m.Sources["schemasDir"])
	assert.Empty(t, m.ConfigPath)

	project := "schemaVersion: 1\nschemasDir: contracts\nevidenceDir: proof\nfooterMaxAge: 48h\ntools:\n  gpg: gpg2\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "docseal.yaml"), []byte(project), 0o644))

	m, err = Load("", Overrides{})
	require.NoError(t, err)
	assert.Equal(t, "contracts", m.SchemasDir)
	assert.Equal(t, "proof", m.EvidenceDir)
	assert.Equal(t, "proof", m.OutputDir)
	assert.Equal(t, filepath.Join("proof", DefaultArchiveSubdir), m.ArchiveDir)
	assert.Equal(t, 48*time.Hour, m.FooterMaxAge)
	assert.Equal(t, "gpg2", m.Tools.GPG)
	assert.Equal(t, DefaultPandoc, m.Tools.Pandoc)
	assert.Equal(t, filepath.Join(".", "docseal.yaml"), m.Sources["schemasDir"])

	t.Setenv("DOCSEAL_SCHEMAS_DIR", "env-schemas")
	m, err = Load("", Overrides{})
	require.NoError(t, err)
	assert.Equal(t, "env-schemas", m.SchemasDir)
	assert.Equal(t, "env:DOCSEAL_SCHEMAS_DIR", m.Sources["schemasDir"])

	m, err = Load("", Overrides{SchemasDir: "flag-schemas", OutputDir: "out"})
	require.NoError(t, err)
	assert.Equal(t, "flag-schemas", m.SchemasDir)
	assert.Equal(t, "out", m.OutputDir)
	assert.Equal(t, "flag", m.Sources["schemasDir"])
}

func TestLoad_ExplicitJSONConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"schemaVersion":1,"draftProbeLines":10,"archive":{"retentionDays":7}}`), 0o644))

	m, err := Load(path, Overrides{})
	require.NoError(t, err)
	assert.Equal(t, 10, m.DraftProbeLines)
	assert.Equal(t, 7, m.RetentionDays)
	assert.Equal(t, path, m.ConfigPath)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	_, err := Load(filepath.Join(dir, "missing.yaml"), Overrides{})
	require.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("schemaVersion: 2\n"), 0o644))
	_, err = Load(bad, Overrides{})
	require.ErrorContains(t, err, "unsupported schemaVersion")

	t.Setenv("DOCSEAL_FOOTER_MAX_AGE", "soon")
	_, err = Load("", Overrides{})
	require.ErrorContains(t, err, "footerMaxAge")
}

func TestInitProject_CreatesConfigAndDirsOnce(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	res, err := InitProject("")
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.DirExists(t, filepath.Join(dir, DefaultSchemasDir))
	assert.DirExists(t, filepath.Join(dir, DefaultEvidenceDir))

	m, err := Load("", Overrides{})
	require.NoError(t, err)
	assert.Equal(t, DefaultProjectConfigPath, filepath.Base(m.ConfigPath))
	assert.Equal(t, DefaultRetentionDays, m.RetentionDays)

	res, err = InitProject("")
	require.NoError(t, err)
	assert.False(t, res.Created)
}
