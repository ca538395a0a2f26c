// Package scan associates evidence files on disk with schema kinds.
package scan

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-logr/logr"

	"github.com/marcohefti/docseal/internal/codes"
	"github.com/marcohefti/docseal/internal/store"
)

// ReportPrefix marks files the validation pipeline writes itself; they are
// never treated as evidence.
const ReportPrefix = "SchemaValidation"

// Binding says how a file was attached to its kind.
type Binding string

const (
	BoundByRef    Binding = "schemaRef"
	BoundByPrefix Binding = "prefix"
)

type Match struct {
	Path    string
	Binding Binding
}

// Index is the scan result. Every requested kind has an entry in ByKind,
// possibly empty.
type Index struct {
	Dir    string
	Kinds  []string
	ByKind map[string][]Match
	// Unbound lists evidence files no kind claimed.
	Unbound []string
	// Newest is the most recently modified evidence file, zero when there is none.
	Newest        string
	NewestModTime time.Time
}

// Paths returns the file paths bound to kind.
func (ix Index) Paths(kind string) []string {
	ms := ix.ByKind[kind]
	out := make([]string, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.Path)
	}
	return out
}

type Options struct {
	Log logr.Logger
}

// Evidence lists the top-level *.json files in dir and binds each to kinds.
//
// An explicit "schemaRef" (or string "schema") field naming a known kind wins
// and binds the file to that kind only. Otherwise the file binds to every
// kind whose name prefixes the file name.
func Evidence(dir string, kinds []string, opts Options) (Index, error) {
	log := opts.Log
	if log.GetSink() == nil {
		log = logr.Discard()
	}

	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Index{}, codes.New(codes.DirNotFound, "evidence directory not found", dir)
		}
		return Index{}, codes.Wrap(codes.IO, "cannot stat evidence directory", dir, err)
	}
	if !info.IsDir() {
		return Index{}, codes.New(codes.DirNotFound, "evidence path is not a directory", dir)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Index{}, codes.Wrap(codes.IO, "cannot list evidence directory", dir, err)
	}

	ix := Index{
		Dir:    dir,
		Kinds:  append([]string(nil), kinds...),
		ByKind: make(map[string][]Match, len(kinds)),
	}
	known := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		known[k] = true
		ix.ByKind[k] = []Match{}
	}

	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !IsEvidenceName(name) {
			continue
		}
		path := filepath.Join(dir, name)
		if fi, err := e.Info(); err == nil && fi.ModTime().After(ix.NewestModTime) {
			ix.NewestModTime = fi.ModTime()
			ix.Newest = path
		}

		if ref := declaredRef(path); ref != "" {
			if known[ref] {
				ix.ByKind[ref] = append(ix.ByKind[ref], Match{Path: path, Binding: BoundByRef})
				continue
			}
			log.V(1).Info("schemaRef names no loaded schema, falling back to prefix", "file", name, "schemaRef", ref)
		}

		bound := false
		for _, k := range kinds {
			if strings.HasPrefix(name, k) {
				ix.ByKind[k] = append(ix.ByKind[k], Match{Path: path, Binding: BoundByPrefix})
				bound = true
			}
		}
		if !bound {
			ix.Unbound = append(ix.Unbound, path)
		}
	}

	for k := range ix.ByKind {
		ms := ix.ByKind[k]
		sort.Slice(ms, func(i, j int) bool { return ms[i].Path < ms[j].Path })
	}
	sort.Strings(ix.Unbound)
	return ix, nil
}

// IsReservedKind reports whether kind collides with the report file names.
// Evidence for such a kind would be skipped as a report, so the registry
// refuses to load it.
func IsReservedKind(kind string) bool {
	return kind == ReportPrefix || strings.HasPrefix(kind, ReportPrefix+"_") || kind == ReportPrefix+"Summary" || strings.HasPrefix(kind, ReportPrefix+"Summary_")
}

// IsEvidenceName reports whether a directory entry name is a candidate
// evidence file: *.json, not a pipeline report, not an in-flight temp file.
func IsEvidenceName(name string) bool {
	if !strings.HasSuffix(name, ".json") {
		return false
	}
	if strings.HasPrefix(name, ReportPrefix+"_") || strings.HasPrefix(name, ReportPrefix+"Summary_") {
		return false
	}
	return !store.IsTempFile(name)
}

type refProbe struct {
	SchemaRef string          `json:"schemaRef"`
	Schema    json.RawMessage `json:"schema"`
}

// declaredRef returns the explicit schema reference of an evidence file, or
// "" when the file is unreadable, not a JSON object, or carries none.
func declaredRef(path string) string {
	raw, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	var p refProbe
	if err := json.Unmarshal(raw, &p); err != nil {
		return ""
	}
	if ref := strings.TrimSpace(p.SchemaRef); ref != "" {
		return ref
	}
	var s string
	if len(p.Schema) > 0 && json.Unmarshal(p.Schema, &s) == nil {
		return strings.TrimSpace(s)
	}
	return ""
}
