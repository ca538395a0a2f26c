package stages

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcohefti/docseal/internal/codes"
	"github.com/marcohefti/docseal/internal/evidence"
	"github.com/marcohefti/docseal/internal/registry"
	"github.com/marcohefti/docseal/internal/schema"
	"github.com/marcohefti/docseal/internal/validate"
)

// assertSchemaValid checks a written record against the bundled schema for
// its kind, the same way the validation pipeline will.
func assertSchemaValid(t *testing.T, res Result) {
	t.Helper()
	dir := t.TempDir()
	_, err := registry.WriteDefaults(dir, false)
	require.NoError(t, err)
	defs, _, err := registry.Load(dir, registry.Options{})
	require.NoError(t, err)
	for _, def := range defs {
		if def.Kind != res.Kind {
			continue
		}
		vr := validate.New(validate.Options{}).Validate(res.EvidencePath, def)
		if vr.Error != nil {
			t.Fatalf("%s does not match %s: %s", res.EvidencePath, def.Kind, *vr.Error)
		}
		assert.True(t, vr.Valid)
		return
	}
	t.Fatalf("no bundled schema for %s", res.Kind)
}

func TestConvert_Success(t *testing.T) {
	h := newHarness(t)
	fixture := filepath.Join(h.dir, "fixture.pdf")
	require.NoError(t, os.WriteFile(fixture, minimalPDF(2), 0o644))
	h.env.Tools.Pandoc = h.script(t, "pandoc", `out=""
while [ $# -gt 0 ]; do
  case "$1" in
    -o) out="$2"; shift 2 ;;
    *) shift ;;
  esac
done
cp "`+fixture+`" "$out"
`)
	src := h.file(t, "Policy.md", "# Policy\n")

	res, err := h.env.Convert(context.Background(), ConvertOpts{Source: src})
	require.NoError(t, err)
	assert.Equal(t, schema.StatusSuccess, res.Status)
	assert.Equal(t, schema.KindBuild, res.Kind)
	assert.Equal(t, 2, res.Record.Payload["pages"])
	assert.Equal(t, filepath.Join(h.dir, "Policy.pdf"), res.Record.Payload["output"])
	assert.FileExists(t, filepath.Join(h.dir, "Policy.pdf"))
	assertSchemaValid(t, res)

	entries, err := evidence.ReadIndex(h.evidence)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, schema.KindBuild, entries[0].Kind)
}

func TestConvert_ToolFailureIsRecorded(t *testing.T) {
	h := newHarness(t)
	h.env.Tools.Pandoc = h.script(t, "pandoc", "echo 'pdflatex not found' >&2\nexit 43\n")
	src := h.file(t, "Policy.md", "# Policy\n")

	res, err := h.env.Convert(context.Background(), ConvertOpts{Source: src, Output: filepath.Join(h.dir, "out.pdf")})
	require.Error(t, err)
	assert.True(t, codes.Is(err, codes.ToolFailed))
	assert.Equal(t, schema.StatusFailure, res.Status)
	assert.Contains(t, res.Record.Message, "pdflatex not found")
	assertSchemaValid(t, res)
}

func TestConvert_UnreadablePDFIsFailure(t *testing.T) {
	h := newHarness(t)
	h.env.Tools.Pandoc = h.script(t, "pandoc", `while [ $# -gt 0 ]; do
  case "$1" in
    -o) echo "not a pdf" > "$2"; shift 2 ;;
    *) shift ;;
  esac
done
`)
	src := h.file(t, "Policy.md", "# Policy\n")

	res, err := h.env.Convert(context.Background(), ConvertOpts{Source: src})
	require.Error(t, err)
	assert.Equal(t, schema.StatusFailure, res.Status)
	assert.Contains(t, err.Error(), "not a readable PDF")
}

func TestConvert_MissingToolWritesNoEvidence(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	src := h.file(t, "Policy.md", "# Policy\n")

	_, err := h.env.Convert(context.Background(), ConvertOpts{Source: src})
	require.Error(t, err)
	assert.True(t, codes.Is(err, codes.ToolMissing))
	_, statErr := os.Stat(h.evidence)
	assert.True(t, os.IsNotExist(statErr))
}

func TestSign_PassesKeyAndRecordsSignature(t *testing.T) {
	h := newHarness(t)
	argsFile := filepath.Join(h.dir, "gpg-args.txt")
	h.env.Tools.GPG = h.script(t, "gpg", `echo "$@" > "`+argsFile+`"
out=""
while [ $# -gt 0 ]; do
  case "$1" in
    --output) out="$2"; shift 2 ;;
    *) shift ;;
  esac
done
printf -- '-----BEGIN PGP SIGNATURE-----\nfake\n-----END PGP SIGNATURE-----\n' > "$out"
`)
	doc := h.file(t, "Policy.pdf", "%PDF-1.4 fake")

	res, err := h.env.Sign(context.Background(), SignOpts{File: doc, KeyID: "ops@example.com"})
	require.NoError(t, err)
	assert.Equal(t, schema.StatusSuccess, res.Status)
	assert.Equal(t, doc+".asc", res.Record.Payload["signature"])
	assert.FileExists(t, doc+".asc")
	assertSchemaValid(t, res)

	args, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	assert.Equal(t, "--batch --yes --armor --detach-sign --output "+doc+".asc --local-user ops@example.com "+doc, strings.TrimSpace(string(args)))
}

func TestSign_NoSignatureProduced(t *testing.T) {
	h := newHarness(t)
	h.env.Tools.GPG = h.script(t, "gpg", "exit 0\n")
	doc := h.file(t, "Policy.pdf", "%PDF-1.4 fake")

	res, err := h.env.Sign(context.Background(), SignOpts{File: doc})
	require.Error(t, err)
	assert.True(t, codes.Is(err, codes.MissingArtifact))
	assert.Equal(t, schema.StatusFailure, res.Status)
	_, hasKey := res.Record.Payload["keyId"]
	assert.False(t, hasKey)
}

func TestHash_WritesSidecar(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	doc := h.file(t, "Policy.pdf", "hello\n")

	res, err := h.env.Hash(doc)
	require.NoError(t, err)
	const want = "5891b5b522d5df086d0ff0b110fbd9d21bb4fc7163af34d08286a2e846f6be03"
	assert.Equal(t, want, res.Record.Payload["sha256"])

	b, err := os.ReadFile(doc + ".sha256")
	require.NoError(t, err)
	assert.Equal(t, want+"  Policy.pdf\n", string(b))
	assertSchemaValid(t, res)

	got, err := ReadSidecar(doc + ".sha256")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestHash_MissingFile(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	_, err := h.env.Hash(filepath.Join(h.dir, "nope.pdf"))
	require.Error(t, err)
	assert.True(t, codes.Is(err, codes.MissingArtifact))
}

func TestReadSidecar_Malformed(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	for name, body := range map[string]string{"empty": "", "short": "abc  x\n", "nothex": strings.Repeat("z", 64) + "  x\n"} {
		_, err := ReadSidecar(h.file(t, name+".sha256", body))
		assert.True(t, codes.Is(err, codes.HashMismatch), name)
	}
}

func TestLint_RecordsExitCode(t *testing.T) {
	h := newHarness(t)
	h.env.Tools.Markdownlint = h.script(t, "markdownlint", "echo 'README.md:3 MD009/no-trailing-spaces' >&2\nexit 1\n")

	res, err := h.env.Lint(context.Background(), []string{"docs/**/*.md"})
	require.Error(t, err)
	assert.True(t, codes.Is(err, codes.ToolFailed))
	assert.Equal(t, schema.StatusFailure, res.Status)
	assert.Equal(t, 1, res.Record.Payload["exitCode"])
	assert.Contains(t, res.Record.Message, "MD009")
	assertSchemaValid(t, res)
}

func TestLint_RedactsSecretsInMessage(t *testing.T) {
	h := newHarness(t)
	h.env.Tools.Markdownlint = h.script(t, "markdownlint", "echo 'auth failed for ghp_1234567890abcdef' >&2\nexit 1\n")

	res, err := h.env.Lint(context.Background(), nil)
	require.Error(t, err)
	assert.NotContains(t, res.Record.Message, "ghp_1234567890abcdef")
	assert.Contains(t, res.Record.Message, "[REDACTED:GITHUB_TOKEN]")

	raw, err := os.ReadFile(res.EvidencePath)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "ghp_1234567890abcdef")
}

func TestLint_DefaultPattern(t *testing.T) {
	h := newHarness(t)
	argsFile := filepath.Join(h.dir, "args.txt")
	h.env.Tools.Markdownlint = h.script(t, "markdownlint", `echo "$@" > "`+argsFile+`"`+"\n")

	res, err := h.env.Lint(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, schema.StatusSuccess, res.Status)
	args, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	assert.Equal(t, DefaultLintPattern, strings.TrimSpace(string(args)))
}
