// Package registry loads the JSON Schema documents that define evidence kinds.
package registry

import (
	"bytes"
	"embed"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-logr/logr"

	"github.com/marcohefti/docseal/internal/codes"
	"github.com/marcohefti/docseal/internal/scan"
	"github.com/marcohefti/docseal/internal/schema"
	"github.com/marcohefti/docseal/internal/store"
)

// SchemaSuffix is the file name suffix that marks a schema document. The kind
// is the file name with the suffix removed.
const SchemaSuffix = ".schema.json"

const unknownDraft = "unknown"

//go:embed defaults/*.schema.json
var defaultSchemas embed.FS

type Options struct {
	// ProbeLines is how many leading lines are searched for the draft-07 marker.
	ProbeLines int
	Log        logr.Logger
}

// Load reads every *.schema.json in dir. Draft detection is a plain substring
// probe of the first ProbeLines lines; the $schema URI is not parsed.
//
// A missing dir is fatal. Unreadable schema files are not: they come back as
// non-compliant definitions with Err set so every evidence row for that kind
// can report it.
func Load(dir string, opts Options) ([]schema.Definition, schema.DraftEnforcement, error) {
	if opts.ProbeLines <= 0 {
		opts.ProbeLines = 5
	}
	log := opts.Log
	if log.GetSink() == nil {
		log = logr.Discard()
	}

	if err := requireDir(dir); err != nil {
		return nil, schema.DraftEnforcement{}, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, schema.DraftEnforcement{}, codes.Wrap(codes.IO, "cannot list schema directory", dir, err)
	}

	var defs []schema.Definition
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), SchemaSuffix) {
			continue
		}
		kind := strings.TrimSuffix(e.Name(), SchemaSuffix)
		if kind == "" {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if scan.IsReservedKind(kind) {
			log.Error(codes.New(codes.Config, "schema kind collides with the validation report prefix", path),
				"schema skipped; rename it", "kind", kind)
			continue
		}
		def := schema.Definition{Kind: kind, Path: path, DraftVersion: unknownDraft}

		body, err := os.ReadFile(path)
		if err != nil {
			def.Err = err
			log.Error(err, "schema unreadable", "kind", kind, "path", path)
			defs = append(defs, def)
			continue
		}
		def.Body = body
		if declaresDraft07(body, opts.ProbeLines) {
			def.DraftVersion = schema.DraftStandard
			def.Compliant = true
		}
		log.V(1).Info("schema loaded", "kind", kind, "draft", def.DraftVersion)
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Kind < defs[j].Kind })

	return defs, Enforce(defs), nil
}

// Enforce summarizes draft compliance. It passes only when every definition
// carries the draft-07 marker; an empty registry passes vacuously.
func Enforce(defs []schema.Definition) schema.DraftEnforcement {
	out := schema.DraftEnforcement{
		Enforced:     true,
		Standard:     schema.DraftStandard,
		NonCompliant: []string{},
		Status:       schema.StatusPass,
		CheckedCount: len(defs),
	}
	for _, d := range defs {
		if !d.Compliant {
			out.NonCompliant = append(out.NonCompliant, d.Kind)
		}
	}
	if len(out.NonCompliant) > 0 {
		out.Status = schema.StatusFail
	}
	return out
}

// ReservedKinds lists schema files in dir whose kind Load refuses because it
// collides with the validation report prefix.
func ReservedKinds(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), SchemaSuffix) {
			continue
		}
		if kind := strings.TrimSuffix(e.Name(), SchemaSuffix); scan.IsReservedKind(kind) {
			out = append(out, kind)
		}
	}
	return out
}

// Kinds returns the kind names of defs, in order.
func Kinds(defs []schema.Definition) []string {
	out := make([]string, 0, len(defs))
	for _, d := range defs {
		out = append(out, d.Kind)
	}
	return out
}

// declaresDraft07 searches the first probeLines lines of body for the marker.
// Lines have no length limit; minified schemas are often one line.
func declaresDraft07(body []byte, probeLines int) bool {
	marker := []byte(schema.DraftStandard)
	rest := body
	for n := 0; n < probeLines && len(rest) > 0; n++ {
		line := rest
		if i := bytes.IndexByte(rest, '\n'); i >= 0 {
			line, rest = rest[:i], rest[i+1:]
		} else {
			rest = nil
		}
		if bytes.Contains(line, marker) {
			return true
		}
	}
	return false
}

func requireDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return codes.New(codes.DirNotFound, "schema directory not found", dir)
		}
		return codes.Wrap(codes.IO, "cannot stat schema directory", dir, err)
	}
	if !info.IsDir() {
		return codes.New(codes.DirNotFound, "schema path is not a directory", dir)
	}
	return nil
}

// DefaultKinds lists the evidence kinds docseal's own stages produce.
func DefaultKinds() []string {
	entries, _ := fs.ReadDir(defaultSchemas, "defaults")
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, strings.TrimSuffix(e.Name(), SchemaSuffix))
	}
	return out
}

// WriteDefaults materializes the bundled schemas into dir. Existing files are
// kept unless overwrite is set. It returns the paths it wrote.
func WriteDefaults(dir string, overwrite bool) ([]string, error) {
	entries, err := fs.ReadDir(defaultSchemas, "defaults")
	if err != nil {
		return nil, err
	}
	var written []string
	for _, e := range entries {
		dst := filepath.Join(dir, e.Name())
		if !overwrite {
			if _, err := os.Stat(dst); err == nil {
				continue
			}
		}
		b, err := defaultSchemas.ReadFile("defaults/" + e.Name())
		if err != nil {
			return written, err
		}
		if err := store.WriteFileAtomic(dst, b); err != nil {
			return written, err
		}
		written = append(written, dst)
	}
	return written, nil
}
