package archive

import (
	"archive/tar"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/marcohefti/docseal/internal/codes"
	"github.com/marcohefti/docseal/internal/store"
)

var now = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

func writeRecord(t *testing.T, dir, name, ts string) {
	t.Helper()
	body := `{"kind":"HashResult","timestamp":"` + ts + `"}`
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func seed(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeRecord(t, dir, "HashResult_20260101T000000Z.json", "2026-01-01T00:00:00Z")
	writeRecord(t, dir, "HashResult_20260520T000000Z.json", "2026-05-20T00:00:00Z")
	writeRecord(t, dir, "SchemaValidation_20260102T000000Z.json", "")
	// No usable timestamp: age comes from mtime.
	old := now.Add(-200 * 24 * time.Hour)
	for _, n := range []string{"SchemaValidation_20260102T000000Z.json", "SchemaValidationSummary_20260102T000000Z.md"} {
		p := filepath.Join(dir, n)
		if n != "SchemaValidation_20260102T000000Z.json" {
			if err := os.WriteFile(p, []byte("# summary\n"), 0o644); err != nil {
				t.Fatal(err)
			}
		}
		if err := os.Chtimes(p, old, old); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "index.jsonl"), []byte("{}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(filepath.Join(dir, "index.jsonl"), old, old); err != nil {
		t.Fatal(err)
	}
	return dir
}

func bundleNames(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open bundle: %v", err)
	}
	defer func() { _ = f.Close() }()
	zr, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("gzip: %v", err)
	}
	tr := tar.NewReader(zr)
	var names []string
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("tar: %v", err)
		}
		names = append(names, hdr.Name)
	}
	sort.Strings(names)
	return names
}

func TestRun_BundlesAgedEvidence(t *testing.T) {
	t.Parallel()
	dir := seed(t)

	res, err := Run(Opts{EvidenceDir: dir, Now: now, RetentionDays: 90})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []string{
		"HashResult_20260101T000000Z.json",
		"SchemaValidationSummary_20260102T000000Z.md",
		"SchemaValidation_20260102T000000Z.json",
	}
	if len(res.Archived) != len(want) {
		t.Fatalf("archived=%+v", res.Archived)
	}
	if res.Bundle != filepath.Join(dir, "archive", "evidence_20260601T000000Z.tar.gz") {
		t.Fatalf("bundle=%q", res.Bundle)
	}
	got := bundleNames(t, res.Bundle)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("bundle names=%v want %v", got, want)
		}
		if _, err := os.Stat(filepath.Join(dir, want[i])); !os.IsNotExist(err) {
			t.Fatalf("expected %s removed, stat err=%v", want[i], err)
		}
	}
	for _, keep := range []string{"HashResult_20260520T000000Z.json", "index.jsonl"} {
		if _, err := os.Stat(filepath.Join(dir, keep)); err != nil {
			t.Fatalf("expected %s kept: %v", keep, err)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, LockName)); !os.IsNotExist(err) {
		t.Fatalf("lock dir left behind: %v", err)
	}

	bundles, err := List(filepath.Join(dir, "archive"))
	if err != nil || len(bundles) != 1 {
		t.Fatalf("List=%v err=%v", bundles, err)
	}
}

func TestRun_DryRunChangesNothing(t *testing.T) {
	t.Parallel()
	dir := seed(t)

	res, err := Run(Opts{EvidenceDir: dir, Now: now, RetentionDays: 90, DryRun: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Archived) != 3 || res.Bundle != "" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if _, err := os.Stat(filepath.Join(dir, "HashResult_20260101T000000Z.json")); err != nil {
		t.Fatalf("dry run removed a file: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "archive")); !os.IsNotExist(err) {
		t.Fatalf("dry run created archive dir: %v", err)
	}
}

func TestRun_NothingToArchive(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeRecord(t, dir, "HashResult_1.json", now.Format(time.RFC3339))

	res, err := Run(Opts{EvidenceDir: dir, Now: now, RetentionDays: 1})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Bundle != "" || len(res.Kept) != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestRun_BusyDirectory(t *testing.T) {
	t.Parallel()
	dir := seed(t)
	err := store.WithDirLock(filepath.Join(dir, LockName), time.Second, func() error {
		_, err := Run(Opts{EvidenceDir: dir, Now: now, RetentionDays: 90, LockWait: 50 * time.Millisecond})
		return err
	})
	if !codes.Is(err, codes.LockTimeout) {
		t.Fatalf("expected lock timeout, got %v", err)
	}
}

func TestRun_Errors(t *testing.T) {
	t.Parallel()
	if _, err := Run(Opts{EvidenceDir: filepath.Join(t.TempDir(), "nope"), RetentionDays: 1}); !codes.Is(err, codes.DirNotFound) {
		t.Fatalf("expected dir not found, got %v", err)
	}
	if _, err := Run(Opts{EvidenceDir: t.TempDir()}); !codes.Is(err, codes.Usage) {
		t.Fatalf("expected usage error, got %v", err)
	}
}
