// Package codes holds the stable error codes printed by docseal on stderr.
// CI logs and wrapper scripts match on these strings, so values never change.
package codes

import (
	"errors"
	"strings"
)

const (
	Usage           = "DOCSEAL_E_USAGE"
	IO              = "DOCSEAL_E_IO"
	DirNotFound     = "DOCSEAL_E_DIR_NOT_FOUND"
	Config          = "DOCSEAL_E_CONFIG"
	ToolMissing     = "DOCSEAL_E_TOOL_MISSING"
	ToolFailed      = "DOCSEAL_E_TOOL_FAILED"
	HashMismatch    = "DOCSEAL_E_HASH_MISMATCH"
	Signature       = "DOCSEAL_E_SIGNATURE"
	LockTimeout     = "DOCSEAL_E_LOCK_TIMEOUT"
	InvalidJSON     = "DOCSEAL_E_INVALID_JSON"
	MissingArtifact = "DOCSEAL_E_MISSING_ARTIFACT"
)

// Error is a classified failure. Path is optional and names the file or
// directory the failure is about.
type Error struct {
	Code    string
	Message string
	Path    string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Code)
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Path != "" {
		b.WriteString(" (")
		b.WriteString(e.Path)
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

func New(code, msg, path string) *Error {
	return &Error{Code: code, Message: msg, Path: path}
}

func Wrap(code, msg, path string, err error) *Error {
	return &Error{Code: code, Message: msg, Path: path, Err: err}
}

// Is reports whether err, or anything it wraps (joined errors included), is
// an *Error with the given code.
func Is(err error, code string) bool {
	if err == nil {
		return false
	}
	if e, ok := err.(*Error); ok && e.Code == code {
		return true
	}
	switch u := err.(type) {
	case interface{ Unwrap() []error }:
		for _, inner := range u.Unwrap() {
			if Is(inner, code) {
				return true
			}
		}
	case interface{ Unwrap() error }:
		return Is(u.Unwrap(), code)
	}
	return false
}

// CodeOf returns the code carried by err, or IO for unclassified errors.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return IO
}
