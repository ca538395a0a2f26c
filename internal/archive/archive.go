// Package archive moves aged evidence out of the evidence directory into
// compressed tar bundles.
package archive

import (
	"archive/tar"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/klauspost/compress/gzip"

	"github.com/marcohefti/docseal/internal/codes"
	"github.com/marcohefti/docseal/internal/evidence"
	"github.com/marcohefti/docseal/internal/ids"
	"github.com/marcohefti/docseal/internal/store"
)

const (
	BundlePrefix = "evidence_"
	BundleSuffix = ".tar.gz"
	// LockName is the lock directory created inside the evidence directory.
	LockName = ".docseal.lock"

	defaultLockWait = 10 * time.Second
)

type FileInfo struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"createdAt"`
	Bytes     int64     `json:"bytes"`
}

type Result struct {
	OK          bool       `json:"ok"`
	EvidenceDir string     `json:"evidenceDir"`
	Bundle      string     `json:"bundle,omitempty"`
	DryRun      bool       `json:"dryRun"`
	Cutoff      time.Time  `json:"cutoff"`
	Archived    []FileInfo `json:"archived,omitempty"`
	Kept        []FileInfo `json:"kept,omitempty"`
	Errors      []string   `json:"errors,omitempty"`
	Bytes       int64      `json:"archivedBytes"`
}

type Opts struct {
	EvidenceDir   string
	ArchiveDir    string
	Now           time.Time
	RetentionDays int
	DryRun        bool
	LockWait      time.Duration
	Log           logr.Logger
}

// Run bundles every top-level evidence file older than RetentionDays into
// <ArchiveDir>/evidence_<ts>.tar.gz and removes the originals. Originals are
// only removed once the bundle is fully on disk. The index manifest is
// never archived.
func Run(opts Opts) (Result, error) {
	if strings.TrimSpace(opts.EvidenceDir) == "" {
		return Result{}, codes.New(codes.Usage, "missing evidence directory", "")
	}
	if opts.RetentionDays <= 0 {
		return Result{}, codes.New(codes.Usage, "retention days must be positive", "")
	}
	if info, err := os.Stat(opts.EvidenceDir); err != nil || !info.IsDir() {
		return Result{}, codes.Wrap(codes.DirNotFound, "evidence directory not found", opts.EvidenceDir, err)
	}
	if opts.ArchiveDir == "" {
		opts.ArchiveDir = filepath.Join(opts.EvidenceDir, "archive")
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	if opts.LockWait <= 0 {
		opts.LockWait = defaultLockWait
	}
	if opts.Log.GetSink() == nil {
		opts.Log = logr.Discard()
	}

	var res Result
	err := store.WithDirLock(filepath.Join(opts.EvidenceDir, LockName), opts.LockWait, func() error {
		var err error
		res, err = run(opts)
		return err
	})
	if store.IsLockTimeout(err) {
		return Result{}, codes.Wrap(codes.LockTimeout, "evidence directory is busy", opts.EvidenceDir, err)
	}
	return res, err
}

func run(opts Opts) (Result, error) {
	cutoff := opts.Now.Add(-time.Duration(opts.RetentionDays) * 24 * time.Hour)
	res := Result{OK: true, EvidenceDir: opts.EvidenceDir, DryRun: opts.DryRun, Cutoff: cutoff.UTC()}

	files, err := listEvidence(opts.EvidenceDir)
	if err != nil {
		return Result{}, err
	}
	for _, f := range files {
		if f.CreatedAt.Before(cutoff) {
			res.Archived = append(res.Archived, f)
			res.Bytes += f.Bytes
		} else {
			res.Kept = append(res.Kept, f)
		}
	}
	if len(res.Archived) == 0 || opts.DryRun {
		return res, nil
	}

	bundle, err := store.UniquePath(filepath.Join(opts.ArchiveDir, BundlePrefix+ids.CompactTimestamp(opts.Now)+BundleSuffix))
	if err != nil {
		return Result{}, codes.Wrap(codes.IO, "choose bundle name", opts.ArchiveDir, err)
	}
	b, err := buildBundle(res.Archived)
	if err != nil {
		return Result{}, err
	}
	if err := store.WriteFileAtomic(bundle, b); err != nil {
		return Result{}, codes.Wrap(codes.IO, "write bundle", bundle, err)
	}
	res.Bundle = bundle
	opts.Log.Info("archive bundle written", "path", bundle, "files", len(res.Archived), "bytes", res.Bytes)

	for _, f := range res.Archived {
		if err := os.Remove(f.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			res.OK = false
			res.Errors = append(res.Errors, err.Error())
		}
	}
	return res, nil
}

func listEvidence(dir string) ([]FileInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, codes.Wrap(codes.IO, "list evidence directory", dir, err)
	}
	var out []FileInfo
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || name == evidence.IndexFile || store.IsTempFile(name) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		p := filepath.Join(dir, name)
		out = append(out, FileInfo{Name: name, Path: p, CreatedAt: createdAt(p, info), Bytes: info.Size()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// createdAt prefers the timestamp a record carries about itself and falls
// back to the file modification time.
func createdAt(path string, info fs.FileInfo) time.Time {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		if raw, err := os.ReadFile(path); err == nil {
			var meta struct {
				Timestamp    string `json:"timestamp"`
				TimestampUTC string `json:"timestamp_utc"`
			}
			if json.Unmarshal(raw, &meta) == nil {
				for _, s := range []string{meta.Timestamp, meta.TimestampUTC} {
					if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
						return ts
					}
				}
			}
		}
	}
	return info.ModTime()
}

func buildBundle(files []FileInfo) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(zw)
	for _, f := range files {
		data, err := os.ReadFile(f.Path)
		if err != nil {
			return nil, codes.Wrap(codes.IO, "read evidence for archive", f.Path, err)
		}
		hdr := &tar.Header{
			Name:    f.Name,
			Mode:    0o644,
			Size:    int64(len(data)),
			ModTime: f.CreatedAt.UTC(),
			Format:  tar.FormatPAX,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return nil, fmt.Errorf("tar header %s: %w", f.Name, err)
		}
		if _, err := tw.Write(data); err != nil {
			return nil, fmt.Errorf("tar write %s: %w", f.Name, err)
		}
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// List returns the bundles in dir, oldest first.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), BundlePrefix) && strings.HasSuffix(e.Name(), BundleSuffix) {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}
