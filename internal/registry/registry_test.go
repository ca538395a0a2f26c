package registry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcohefti/docseal/internal/codes"
	"github.com/marcohefti/docseal/internal/schema"
)

const draft7Schema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object"
}
`

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestLoad_ClassifiesDraft(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, dir, "Foo.schema.json", draft7Schema)
	writeFile(t, dir, "Bar.schema.json", `{"$schema": "https://json-schema.org/draft/2020-12/schema", "type": "object"}`)
	writeFile(t, dir, "notes.json", `{}`)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "Nested.schema.json"), 0o755))

	defs, enf, err := Load(dir, Options{})
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, []string{"Bar", "Foo"}, Kinds(defs))

	assert.False(t, defs[0].Compliant)
	assert.Equal(t, "unknown", defs[0].DraftVersion)
	assert.True(t, defs[1].Compliant)
	assert.Equal(t, schema.DraftStandard, defs[1].DraftVersion)
	assert.NotEmpty(t, defs[1].Body)

	assert.Equal(t, schema.StatusFail, enf.Status)
	assert.Equal(t, []string{"Bar"}, enf.NonCompliant)
	assert.Equal(t, 2, enf.CheckedCount)
	assert.True(t, enf.Enforced)
	assert.Equal(t, schema.DraftStandard, enf.Standard)
}

func TestLoad_MarkerBeyondProbeWindowIsNonCompliant(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	body := "{\n" + strings.Repeat("  \"x\": 1,\n", 5) + "  \"$schema\": \"http://json-schema.org/draft-07/schema#\"\n}\n"
	writeFile(t, dir, "Late.schema.json", body)

	_, enf, err := Load(dir, Options{ProbeLines: 5})
	require.NoError(t, err)
	assert.Equal(t, schema.StatusFail, enf.Status)
	assert.Equal(t, []string{"Late"}, enf.NonCompliant)

	_, enf, err = Load(dir, Options{ProbeLines: 10})
	require.NoError(t, err)
	assert.Equal(t, schema.StatusPass, enf.Status)
}

func TestLoad_MinifiedSchemaWithHugeFirstLine(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	body := `{"$schema":"http://json-schema.org/draft-07/schema#","description":"` + strings.Repeat("x", 2<<20) + `","type":"object"}`
	writeFile(t, dir, "Foo.schema.json", body)
	tail := `{"description":"` + strings.Repeat("y", 2<<20) + `","$schema":"http://json-schema.org/draft-07/schema#"}`
	writeFile(t, dir, "Bar.schema.json", tail)

	defs, enf, err := Load(dir, Options{})
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, schema.StatusPass, enf.Status)
	assert.Empty(t, enf.NonCompliant)
	for _, d := range defs {
		assert.Equal(t, schema.DraftStandard, d.DraftVersion, d.Kind)
	}
}

func TestLoad_SkipsKindsThatCollideWithReports(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, dir, "SchemaValidation.schema.json", draft7Schema)
	writeFile(t, dir, "SchemaValidationSummary.schema.json", draft7Schema)
	writeFile(t, dir, "Foo.schema.json", draft7Schema)

	defs, enf, err := Load(dir, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Foo"}, Kinds(defs))
	assert.Equal(t, 1, enf.CheckedCount)
	assert.Equal(t, []string{"SchemaValidation", "SchemaValidationSummary"}, ReservedKinds(dir))
}

func TestLoad_EmptyDirPasses(t *testing.T) {
	t.Parallel()
	defs, enf, err := Load(t.TempDir(), Options{})
	require.NoError(t, err)
	assert.Empty(t, defs)
	assert.Equal(t, schema.StatusPass, enf.Status)
	assert.Equal(t, 0, enf.CheckedCount)
	assert.NotNil(t, enf.NonCompliant)
}

func TestLoad_MissingDirIsFatal(t *testing.T) {
	t.Parallel()
	_, _, err := Load(filepath.Join(t.TempDir(), "nope"), Options{})
	require.Error(t, err)
	assert.True(t, codes.Is(err, codes.DirNotFound), "got %v", err)
}

func TestWriteDefaults_AreDraft07AndNotOverwritten(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	written, err := WriteDefaults(dir, false)
	require.NoError(t, err)
	require.Len(t, written, len(DefaultKinds()))

	defs, enf, err := Load(dir, Options{})
	require.NoError(t, err)
	assert.Equal(t, schema.StatusPass, enf.Status)
	assert.ElementsMatch(t, DefaultKinds(), Kinds(defs))

	again, err := WriteDefaults(dir, false)
	require.NoError(t, err)
	assert.Empty(t, again)
}
