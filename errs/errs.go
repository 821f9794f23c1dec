// Package errs provides the structured error envelope shared by the hookpubsub packages.
//
// Every failure surfaced by the reconciliation layer carries a Code. Callers match
// categories with errors.Is against the exported sentinels:
//
//	if errors.Is(err, errs.ErrNotFound) { ... }
package errs

import (
	"sort"
	"strconv"
	"strings"
)

// Code identifies an error category.
type Code string

const (
	// CodeConfiguration indicates a missing or invalid client configuration.
	CodeConfiguration Code = "configuration"
	// CodeAuthMismatch indicates an existing channel enforces a different inbound auth kind.
	CodeAuthMismatch Code = "auth_mismatch"
	// CodeTransport indicates a network or HTTP failure talking to the backend.
	CodeTransport Code = "transport"
	// CodeNotFound indicates the referenced backend resource does not exist.
	CodeNotFound Code = "not_found"
	// CodeTimeout indicates a bounded poll exhausted its attempts.
	CodeTimeout Code = "timeout"
	// CodeInvalid indicates invalid input provided by the caller.
	CodeInvalid Code = "invalid_request"
)

// Sentinels for errors.Is matching. Only the Code is compared.
var (
	ErrConfiguration = &E{Code: CodeConfiguration}
	ErrAuthMismatch  = &E{Code: CodeAuthMismatch}
	ErrTransport     = &E{Code: CodeTransport}
	ErrNotFound      = &E{Code: CodeNotFound}
	ErrTimeout       = &E{Code: CodeTimeout}
	ErrInvalid       = &E{Code: CodeInvalid}
)

// E captures structured error information.
type E struct {
	Op      string
	Code    Code
	HTTP    int
	Message string
	Fields  map[string]string

	cause error
}

// Option configures an error envelope.
type Option func(*E)

// New constructs an error envelope for the operation and code.
func New(op string, code Code, opts ...Option) *E {
	e := &E{
		Op:   strings.TrimSpace(op),
		Code: code,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// WithMessage attaches a human-readable message.
func WithMessage(message string) Option {
	trimmed := strings.TrimSpace(message)
	return func(e *E) {
		e.Message = trimmed
	}
}

// WithHTTP records the associated HTTP status code.
func WithHTTP(status int) Option {
	return func(e *E) {
		e.HTTP = status
	}
}

// WithCause sets the underlying cause error.
func WithCause(err error) Option {
	return func(e *E) {
		e.cause = err
	}
}

// WithField appends a single key/value pair.
func WithField(key, value string) Option {
	return func(e *E) {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" {
			return
		}
		if e.Fields == nil {
			e.Fields = make(map[string]string, 1)
		}
		e.Fields[trimmedKey] = value
	}
}

func (e *E) Error() string {
	if e == nil {
		return "<nil>"
	}
	var parts []string

	if e.Op != "" {
		parts = append(parts, "op="+e.Op)
	}

	code := strings.TrimSpace(string(e.Code))
	if code == "" {
		code = "unknown"
	}
	parts = append(parts, "code="+code)

	if e.HTTP > 0 {
		parts = append(parts, "http="+strconv.Itoa(e.HTTP))
	}
	if e.Message != "" {
		parts = append(parts, "message="+strconv.Quote(e.Message))
	}
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]string, 0, len(keys))
		for _, k := range keys {
			pairs = append(pairs, k+"="+strconv.Quote(e.Fields[k]))
		}
		parts = append(parts, "fields="+strings.Join(pairs, ","))
	}
	if e.cause != nil {
		parts = append(parts, "cause="+strconv.Quote(e.cause.Error()))
	}

	return strings.Join(parts, " ")
}

func (e *E) Unwrap() error { return e.cause }

// Is reports whether target is an envelope with the same Code.
func (e *E) Is(target error) bool {
	t, ok := target.(*E)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// Field returns the value recorded under key.
func (e *E) Field(key string) string {
	if e == nil || e.Fields == nil {
		return ""
	}
	return e.Fields[key]
}
