package stages

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/marcohefti/docseal/internal/codes"
	"github.com/marcohefti/docseal/internal/schema"
	"github.com/marcohefti/docseal/internal/store"
)

// HashSuffix is appended to a document name for its SHA-256 sidecar.
const HashSuffix = ".sha256"

const hashTool = "docseal"

// Hash writes <file>.sha256 in sha256sum format and records a HashResult.
func (e Env) Hash(file string) (Result, error) {
	if strings.TrimSpace(file) == "" {
		return Result{}, codes.New(codes.Usage, "missing file to hash", "")
	}
	sum, err := FileSHA256(file)
	if err != nil {
		return Result{}, err
	}
	sidecar := file + HashSuffix
	line := fmt.Sprintf("%s  %s\n", sum, filepath.Base(file))
	if err := store.WriteFileAtomic(sidecar, []byte(line)); err != nil {
		return Result{}, codes.Wrap(codes.IO, "write hash sidecar", sidecar, err)
	}
	rec := schema.EvidenceRecord{
		Kind:    schema.KindHash,
		Tool:    hashTool,
		Target:  file,
		Payload: map[string]any{"file": file, "sidecar": sidecar, "sha256": sum},
	}
	return e.finish(rec, nil)
}

func FileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", codes.Wrap(codes.MissingArtifact, "file not readable", path, err)
	}
	defer func() { _ = f.Close() }()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", codes.Wrap(codes.IO, "read file", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ReadSidecar returns the digest recorded in a sha256sum-style file. Only the
// first line is read.
func ReadSidecar(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()
	sc := bufio.NewScanner(f)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return "", err
		}
		return "", codes.New(codes.HashMismatch, "empty hash sidecar", path)
	}
	fields := strings.Fields(sc.Text())
	if len(fields) == 0 {
		return "", codes.New(codes.HashMismatch, "empty hash sidecar", path)
	}
	sum := strings.ToLower(fields[0])
	if len(sum) != sha256.Size*2 {
		return "", codes.New(codes.HashMismatch, "malformed hash sidecar", path)
	}
	if _, err := hex.DecodeString(sum); err != nil {
		return "", codes.New(codes.HashMismatch, "malformed hash sidecar", path)
	}
	return sum, nil
}
