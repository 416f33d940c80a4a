// Package errors provides structured errors for textsniff.
// Errors carry a code for programmatic handling, free-form context and a
// short stack trace captured at construction.
package errors

import (
	"errors"
	"fmt"
	"maps"
	"runtime"
	"slices"
	"strings"
)

// Code identifies a class of failure.
type Code string

const (
	// Source errors (1xx)
	CodeSourceNotFound   Code = "E101"
	CodeSourcePermission Code = "E102"
	CodeSourceOpen       Code = "E103"
	CodeSourceRead       Code = "E104"
	CodeInvalidLocation  Code = "E105"

	// Detection errors (2xx)
	CodeUnsupportedEncoding Code = "E201"
	CodeDetectorUnavailable Code = "E202"
	CodeDetectionFailed     Code = "E203"
	CodeUnknownCharset      Code = "E204"

	// Decoding errors (3xx)
	CodeDecodeFailed      Code = "E301"
	CodeFallbackExhausted Code = "E302"

	// System errors (4xx)
	CodeContextCanceled Code = "E401"
	CodeConfig          Code = "E402"
	CodeCache           Code = "E403"

	// Unknown
	CodeUnknown Code = "E999"
)

// Sentinels for errors.Is comparisons. Matching is by code, so any Error
// carrying the same code satisfies errors.Is against these.
var (
	ErrUnsupportedEncoding = &Error{Code: CodeUnsupportedEncoding, Message: "unsupported encoding"}
	ErrDetectorUnavailable = &Error{Code: CodeDetectorUnavailable, Message: "detector unavailable"}
	ErrDetectionFailed     = &Error{Code: CodeDetectionFailed, Message: "detection failed"}
	ErrDecodeFailed        = &Error{Code: CodeDecodeFailed, Message: "decode failed"}
	ErrSourceNotFound      = &Error{Code: CodeSourceNotFound, Message: "source not found"}
)

// Error is the base error type for all textsniff errors.
type Error struct {
	Code       Code
	Message    string
	Cause      error
	Context    map[string]interface{}
	StackTrace []Frame
}

// Frame is one caller recorded when an Error is built.
type Frame struct {
	Function string
	File     string
	Line     int
}

func (e *Error) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s", e.Code, e.Message)

	if len(e.Context) > 0 {
		pairs := make([]string, 0, len(e.Context))
		for _, k := range slices.Sorted(maps.Keys(e.Context)) {
			pairs = append(pairs, fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		fmt.Fprintf(&sb, " (%s)", strings.Join(pairs, ", "))
	}
	if e.Cause != nil {
		fmt.Fprintf(&sb, ": %v", e.Cause)
	}
	return sb.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e.Code == t.Code
}

// WithContext attaches a key/value pair and returns e for chaining.
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{}, 2)
	}
	e.Context[key] = value
	return e
}

func New(code Code, message string) *Error {
	return build(code, message, nil)
}

func Newf(code Code, format string, args ...interface{}) *Error {
	return build(code, fmt.Sprintf(format, args...), nil)
}

// Wrap attaches a code and message to err. A nil err gives nil.
func Wrap(err error, code Code, message string) *Error {
	if err == nil {
		return nil
	}
	return build(code, message, err)
}

func Wrapf(err error, code Code, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}
	return build(code, fmt.Sprintf(format, args...), err)
}

// build is only called from the exported constructors; the stack starts at
// their caller.
func build(code Code, message string, cause error) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Cause:      cause,
		StackTrace: callers(4),
	}
}

const maxFrames = 10

func callers(skip int) []Frame {
	var pcs [maxFrames]uintptr
	n := runtime.Callers(skip, pcs[:])
	if n == 0 {
		return nil
	}

	out := make([]Frame, 0, n)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		f, more := frames.Next()
		out = append(out, Frame{Function: f.Function, File: f.File, Line: f.Line})
		if !more {
			return out
		}
	}
}

// FormatStack renders the recorded callers, innermost first.
func (e *Error) FormatStack() string {
	var sb strings.Builder
	for _, f := range e.StackTrace {
		fmt.Fprintf(&sb, "%s\n\t%s:%d\n", f.Function, f.File, f.Line)
	}
	return sb.String()
}

// SourceNotFound is returned when a location does not resolve to anything.
func SourceNotFound(location string) *Error {
	return New(CodeSourceNotFound, "source not found").WithContext("location", location)
}

// UnsupportedEncoding creates the fatal error for encodings outside the supported set.
func UnsupportedEncoding(name string) *Error {
	return New(CodeUnsupportedEncoding, "unsupported encoding").WithContext("encoding", name)
}

// DecodeFailed wraps a decoder error with the line it occurred on.
func DecodeFailed(encoding string, line int, err error) *Error {
	return Wrap(err, CodeDecodeFailed, "decode failed").
		WithContext("encoding", encoding).
		WithContext("line", line)
}

// ContextCanceled reports an operation abandoned because its context ended.
func ContextCanceled(operation string) *Error {
	return New(CodeContextCanceled, "operation canceled").
		WithContext("operation", operation)
}

// IsCode reports whether err or anything it wraps carries code.
func IsCode(err error, code Code) bool {
	return GetCode(err) == code
}

// GetCode returns the code of the first *Error in err's chain, or CodeUnknown.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// IsFatal returns true if the error must be surfaced without recovery.
func IsFatal(err error) bool {
	switch GetCode(err) {
	case CodeUnsupportedEncoding, CodeFallbackExhausted:
		return true
	}
	return false
}

// IsRecoverable returns true if the error is absorbed by a local fallback.
func IsRecoverable(err error) bool {
	switch GetCode(err) {
	case CodeDetectorUnavailable, CodeDetectionFailed, CodeCache:
		return true
	}
	return false
}

// MultiError accumulates independent failures, e.g. from validating every
// field of a configuration.
type MultiError struct {
	Errors []error
}

func (m *MultiError) Error() string {
	switch len(m.Errors) {
	case 0:
		return "no errors"
	case 1:
		return m.Errors[0].Error()
	}
	msgs := make([]string, len(m.Errors))
	for i, err := range m.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("%d errors: %s", len(m.Errors), strings.Join(msgs, "; "))
}

// Add records err unless it is nil.
func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (m *MultiError) Unwrap() []error { return m.Errors }

func (m *MultiError) HasErrors() bool { return len(m.Errors) > 0 }

// Combined returns nil, the only error, or m itself.
func (m *MultiError) Combined() error {
	switch len(m.Errors) {
	case 0:
		return nil
	case 1:
		return m.Errors[0]
	}
	return m
}
