package stages

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/marcohefti/docseal/internal/config"
	"github.com/marcohefti/docseal/internal/evidence"
)

var testNow = time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

type harness struct {
	dir      string
	evidence string
	env      Env
}

// newHarness returns an Env whose tools are all unresolvable until a test
// installs a fake. Tests that write scripts do not run in parallel: exec of a
// freshly written file can fail with ETXTBSY while another test forks.
func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	h := &harness{dir: dir, evidence: filepath.Join(dir, "_evidence")}
	h.env = Env{
		Tools: config.ToolsConfigV1{
			Pandoc:       "docseal-missing-pandoc",
			GPG:          "docseal-missing-gpg",
			Markdownlint: "docseal-missing-markdownlint",
		},
		Evidence: evidence.Writer{Dir: h.evidence, Now: func() time.Time { return testNow }},
	}
	return h
}

func (h *harness) script(t *testing.T, name, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake collaborators are shell scripts")
	}
	p := filepath.Join(h.dir, "bin", name)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte("#!/bin/sh\n"+body), 0o755))
	return p
}

func (h *harness) file(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(h.dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

// minimalPDF builds a structurally valid PDF with the given number of empty
// pages and a correct cross-reference table.
func minimalPDF(pages int) []byte {
	var b bytes.Buffer
	b.WriteString("%PDF-1.4\n")

	objs := []string{"<< /Type /Catalog /Pages 2 0 R >>"}
	kids := ""
	for i := 0; i < pages; i++ {
		kids += fmt.Sprintf("%d 0 R ", i+3)
	}
	objs = append(objs, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids, pages))
	for i := 0; i < pages; i++ {
		objs = append(objs, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>")
	}

	offsets := make([]int, len(objs))
	for i, o := range objs {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, o)
	}
	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n", len(objs)+1)
	b.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	return b.Bytes()
}
