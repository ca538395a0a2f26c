package store

import (
	"bytes"
	"encoding/json"
)

// EncodeJSON renders v the way every docseal artifact is written: two-space
// indent, no HTML escaping, trailing newline.
func EncodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func WriteJSONAtomic(path string, v any) error {
	b, err := EncodeJSON(v)
	if err != nil {
		return err
	}
	return WriteFileAtomic(path, b)
}
