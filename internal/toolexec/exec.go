// Package toolexec runs external collaborator tools (pandoc, gpg,
// markdownlint) once, fail fast, with bounded output capture.
package toolexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/marcohefti/docseal/internal/codes"
)

const DefaultMaxPreviewBytes = 16 * 1024

type Spec struct {
	// Tool is a binary name resolved on PATH, or a path to an executable.
	Tool string
	Args []string
	Dir  string
	// Env is appended to the current environment.
	Env   []string
	Stdin io.Reader
	// Stdout and Stderr, when set, receive the full streams in addition to
	// the bounded previews.
	Stdout io.Writer
	Stderr io.Writer

	MaxPreviewBytes int
}

type Result struct {
	Tool       string `json:"tool"`
	Path       string `json:"path"`
	ExitCode   int    `json:"exitCode"`
	DurationMs int64  `json:"durationMs"`

	OutBytes   int64  `json:"outBytes"`
	ErrBytes   int64  `json:"errBytes"`
	OutPreview string `json:"outPreview,omitempty"`
	ErrPreview string `json:"errPreview,omitempty"`

	OutTruncated bool `json:"outTruncated,omitempty"`
	ErrTruncated bool `json:"errTruncated,omitempty"`
}

type boundedCapture struct {
	max int
	mu  sync.Mutex
	buf bytes.Buffer

	total     int64
	truncated bool
}

func (c *boundedCapture) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.total += int64(len(p))
	remaining := c.max - c.buf.Len()
	if remaining <= 0 {
		if len(p) > 0 {
			c.truncated = true
		}
		return len(p), nil
	}
	if len(p) > remaining {
		_, _ = c.buf.Write(p[:remaining])
		c.truncated = true
		return len(p), nil
	}
	_, _ = c.buf.Write(p)
	return len(p), nil
}

func (c *boundedCapture) snapshot() (string, int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String(), c.total, c.truncated
}

// Lookup resolves tool to an executable path.
func Lookup(tool string) (string, error) {
	if strings.TrimSpace(tool) == "" {
		return "", codes.New(codes.Usage, "missing tool name", "")
	}
	p, err := exec.LookPath(tool)
	if err != nil {
		return "", codes.Wrap(codes.ToolMissing, fmt.Sprintf("%s not found", tool), tool, err)
	}
	return p, nil
}

// Run executes the tool once. A non-zero exit returns the populated Result
// together with a DOCSEAL_E_TOOL_FAILED error so callers can still record
// what happened.
func Run(ctx context.Context, spec Spec) (Result, error) {
	path, err := Lookup(spec.Tool)
	if err != nil {
		return Result{Tool: spec.Tool, ExitCode: -1}, err
	}
	limit := spec.MaxPreviewBytes
	if limit <= 0 {
		limit = DefaultMaxPreviewBytes
	}

	cmd := exec.CommandContext(ctx, path, spec.Args...)
	cmd.Dir = spec.Dir
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}
	cmd.Stdin = spec.Stdin

	outCap := &boundedCapture{max: limit}
	errCap := &boundedCapture{max: limit}
	cmd.Stdout = tee(spec.Stdout, outCap)
	cmd.Stderr = tee(spec.Stderr, errCap)

	start := time.Now()
	runErr := cmd.Run()
	res := Result{Tool: spec.Tool, Path: path, DurationMs: time.Since(start).Milliseconds()}
	res.OutPreview, res.OutBytes, res.OutTruncated = outCap.snapshot()
	res.ErrPreview, res.ErrBytes, res.ErrTruncated = errCap.snapshot()

	if runErr != nil {
		var ee *exec.ExitError
		if !errors.As(runErr, &ee) {
			res.ExitCode = -1
			return res, codes.Wrap(codes.ToolFailed, fmt.Sprintf("%s could not run", spec.Tool), path, runErr)
		}
		res.ExitCode = ee.ExitCode()
		msg := fmt.Sprintf("%s exited with code %d", spec.Tool, res.ExitCode)
		if tail := firstLine(res.ErrPreview); tail != "" {
			msg += ": " + tail
		}
		return res, codes.New(codes.ToolFailed, msg, path)
	}
	return res, nil
}

func tee(full io.Writer, capture io.Writer) io.Writer {
	if full == nil {
		return capture
	}
	return io.MultiWriter(full, capture)
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
