// Package validate checks evidence files against their kind's schema and
// turns every outcome, including failures, into a result row.
package validate

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/go-logr/logr"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/marcohefti/docseal/internal/scan"
	"github.com/marcohefti/docseal/internal/schema"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Validator compiles each schema at most once per run.
type Validator struct {
	log   logr.Logger
	cache map[string]compiled
}

type compiled struct {
	sch *jsonschema.Schema
	err error
}

type Options struct {
	Log logr.Logger
}

func New(opts Options) *Validator {
	log := opts.Log
	if log.GetSink() == nil {
		log = logr.Discard()
	}
	return &Validator{log: log, cache: map[string]compiled{}}
}

// All validates every file the scan bound to each definition, in definition
// order. Kinds without evidence contribute exactly one placeholder row.
func (v *Validator) All(defs []schema.Definition, ix scan.Index) []schema.ValidationResult {
	var out []schema.ValidationResult
	for _, def := range defs {
		files := ix.Paths(def.Kind)
		if len(files) == 0 {
			v.log.Info("no evidence for schema", "kind", def.Kind)
			out = append(out, Placeholder(def.Kind))
			continue
		}
		for _, f := range files {
			out = append(out, v.Validate(f, def))
		}
	}
	return Annotate(out)
}

// Validate never fails: parse errors, schema mismatches, unreadable files and
// broken schemas all come back as valid=false with the message attached.
func (v *Validator) Validate(file string, def schema.Definition) schema.ValidationResult {
	name := filepath.Base(file)
	res := schema.ValidationResult{Schema: def.Kind, EvidenceFile: &name}

	fail := func(msg string) schema.ValidationResult {
		res.Valid = false
		res.Error = &msg
		v.log.Info("evidence invalid", "kind", def.Kind, "file", name, "error", msg)
		return res
	}

	raw, err := os.ReadFile(file)
	if err != nil {
		return fail(fmt.Sprintf("read evidence: %v", err))
	}
	raw = bytes.TrimPrefix(raw, utf8BOM)
	if !utf8.Valid(raw) {
		return fail("invalid JSON: file is not valid UTF-8")
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return fail(fmt.Sprintf("invalid JSON: %v", err))
	}

	sch, err := v.compile(def)
	if err != nil {
		return fail(fmt.Sprintf("schema %s unusable: %v", def.Kind, err))
	}
	if err := sch.Validate(inst); err != nil {
		return fail(flatten(err.Error()))
	}

	res.Valid = true
	v.log.V(1).Info("evidence valid", "kind", def.Kind, "file", name)
	return res
}

func (v *Validator) compile(def schema.Definition) (*jsonschema.Schema, error) {
	if c, ok := v.cache[def.Kind]; ok {
		return c.sch, c.err
	}
	sch, err := compileDefinition(def)
	v.cache[def.Kind] = compiled{sch: sch, err: err}
	return sch, err
}

func compileDefinition(def schema.Definition) (*jsonschema.Schema, error) {
	if def.Err != nil {
		return nil, def.Err
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(bytes.TrimPrefix(def.Body, utf8BOM)))
	if err != nil {
		return nil, fmt.Errorf("parse schema json: %w", err)
	}

	loc := def.Path
	if abs, err := filepath.Abs(loc); err == nil {
		loc = abs
	}

	c := jsonschema.NewCompiler()
	c.DefaultDraft(jsonschema.Draft7)
	c.AssertFormat()
	if err := c.AddResource(loc, doc); err != nil {
		return nil, fmt.Errorf("add resource: %w", err)
	}
	sch, err := c.Compile(loc)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return sch, nil
}

// Placeholder is the row for a kind that has no evidence at all.
func Placeholder(kind string) schema.ValidationResult {
	return schema.ValidationResult{
		Schema: kind,
		Valid:  false,
		Note:   schema.NotePlaceholder,
	}
}

// Annotate gives every failed row without a note the generic review note.
func Annotate(results []schema.ValidationResult) []schema.ValidationResult {
	for i := range results {
		if !results[i].Valid && results[i].Note == "" {
			results[i].Note = schema.NoteValidationFailed
		}
	}
	return results
}

// flatten folds the validator's indented multi-line output into one line so
// the report and CI logs stay greppable.
func flatten(msg string) string {
	lines := strings.Split(msg, "\n")
	parts := make([]string, 0, len(lines))
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			parts = append(parts, l)
		}
	}
	return strings.Join(parts, "; ")
}
