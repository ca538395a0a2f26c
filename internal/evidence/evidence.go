// Package evidence writes the immutable records producing stages leave
// behind, plus the index.jsonl manifest that lists them.
package evidence

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/go-logr/logr"

	"github.com/marcohefti/docseal/internal/codes"
	"github.com/marcohefti/docseal/internal/ids"
	"github.com/marcohefti/docseal/internal/schema"
	"github.com/marcohefti/docseal/internal/store"
)

// IndexFile is the append-only manifest kept next to the records.
const IndexFile = "index.jsonl"

type Writer struct {
	Dir string
	Now func() time.Time
	Log logr.Logger
}

// Write stores rec as <Kind>_<ts>.json and appends it to the index. Missing
// id, timestamp and schemaRef are filled in. The returned path is never an
// existing file.
func (w Writer) Write(rec schema.EvidenceRecord) (string, error) {
	if !ids.IsValidKind(rec.Kind) {
		return "", codes.New(codes.Usage, fmt.Sprintf("invalid evidence kind %q", rec.Kind), "")
	}
	if rec.Status != schema.StatusSuccess && rec.Status != schema.StatusFailure {
		return "", codes.New(codes.Usage, fmt.Sprintf("invalid evidence status %q", rec.Status), "")
	}
	now := time.Now()
	if w.Now != nil {
		now = w.Now()
	}
	now = now.UTC()

	rec.SchemaVersion = schema.EvidenceRecordSchemaV1
	if rec.ID == "" {
		rec.ID = ids.NewRecordID()
	}
	if rec.SchemaRef == "" {
		rec.SchemaRef = rec.Kind
	}
	if rec.Timestamp == "" {
		rec.Timestamp = now.Format(time.RFC3339)
	}

	path, err := store.UniquePath(filepath.Join(w.Dir, ids.EvidenceFileName(rec.Kind, now)))
	if err != nil {
		return "", codes.Wrap(codes.IO, "choose evidence file name", w.Dir, err)
	}
	if err := store.WriteJSONAtomic(path, rec); err != nil {
		return "", codes.Wrap(codes.IO, "write evidence", path, err)
	}
	entry := schema.IndexEntryV1{
		V:         schema.IndexEntrySchemaV1,
		ID:        rec.ID,
		Kind:      rec.Kind,
		File:      filepath.Base(path),
		Status:    rec.Status,
		Timestamp: rec.Timestamp,
	}
	if err := store.AppendJSONL(filepath.Join(w.Dir, IndexFile), entry); err != nil {
		return "", codes.Wrap(codes.IO, "append evidence index", w.Dir, err)
	}

	log := w.Log
	if log.GetSink() == nil {
		log = logr.Discard()
	}
	log.Info("evidence written", "kind", rec.Kind, "status", rec.Status, "path", path)
	return path, nil
}

// ReadIndex returns the manifest entries in append order. A missing index is
// an empty one.
func ReadIndex(dir string) ([]schema.IndexEntryV1, error) {
	var out []schema.IndexEntryV1
	err := store.ReadJSONL(filepath.Join(dir, IndexFile), func(line []byte) error {
		var e schema.IndexEntryV1
		if err := json.Unmarshal(line, &e); err != nil {
			return codes.Wrap(codes.InvalidJSON, "bad index line", filepath.Join(dir, IndexFile), err)
		}
		out = append(out, e)
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return out, err
}

// Latest returns the most recent index entry for kind.
func Latest(entries []schema.IndexEntryV1, kind string) (schema.IndexEntryV1, bool) {
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Kind == kind {
			return entries[i], true
		}
	}
	return schema.IndexEntryV1{}, false
}
