package domain

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

type ErrorCode string

const (
	CodeInvalidArgument  ErrorCode = "INVALID_ARGUMENT"
	CodeNotFound         ErrorCode = "NOT_FOUND"
	CodeUnavailable      ErrorCode = "UNAVAILABLE"
	CodeFailedPrecond    ErrorCode = "FAILED_PRECONDITION"
	CodeAborted          ErrorCode = "ABORTED"
	CodeInternal         ErrorCode = "INTERNAL"
	CodeCanceled         ErrorCode = "CANCELED"
	CodeDeadlineExceeded ErrorCode = "DEADLINE_EXCEEDED"
)

var (
	// ErrToolNotFound is returned when a tool name is not in the current snapshot.
	ErrToolNotFound = errors.New("tool not found")
	// ErrRefreshInProgress is returned by non-blocking refresh requests while another refresh holds the gate.
	ErrRefreshInProgress = errors.New("refresh already in progress")
	// ErrEmptyCatalog aborts a refresh whose result contains no tools.
	ErrEmptyCatalog = errors.New("refresh produced no tools")
	// ErrServiceClosed is returned by operations on a closed service.
	ErrServiceClosed = errors.New("tool service is closed")
	// ErrConnectionClosed is returned when a provider connection was closed.
	ErrConnectionClosed = errors.New("provider connection closed")
	// ErrNoConnection is returned when a tool's provider has no open connection.
	ErrNoConnection = errors.New("no connection for provider")
)

type Error struct {
	Code      ErrorCode
	Op        string
	Message   string
	Cause     error
	Retryable bool
	Meta      map[string]string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	if e.Op == "" {
		if msg == "" {
			return string(e.Code)
		}
		return fmt.Sprintf("%s: %s", e.Code, msg)
	}
	if msg == "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Code, msg)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func E(code ErrorCode, op, msg string, cause error) *Error {
	if msg == "" && cause != nil {
		msg = cause.Error()
	}
	return &Error{
		Code:    code,
		Op:      op,
		Message: msg,
		Cause:   cause,
	}
}

// Wrap attaches an operation and a code to err. The code is derived from err
// when it is recognised, otherwise the provided fallback is used.
func Wrap(code ErrorCode, op string, err error) *Error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		if existing.Op != "" || op == "" {
			return existing
		}
		return &Error{
			Code:      existing.Code,
			Op:        op,
			Message:   existing.Message,
			Cause:     existing.Cause,
			Retryable: existing.Retryable,
			Meta:      existing.Meta,
		}
	}
	if derived, ok := CodeFrom(err); ok {
		code = derived
	}
	wrapped := E(code, op, "", err)
	wrapped.Retryable = code == CodeUnavailable || code == CodeDeadlineExceeded || code == CodeAborted
	return wrapped
}

func CodeFrom(err error) (ErrorCode, bool) {
	if err == nil {
		return "", false
	}
	var domainErr *Error
	if errors.As(err, &domainErr) && domainErr.Code != "" {
		return domainErr.Code, true
	}
	var (
		cfgErr        *ConfigError
		validationErr *ValidationError
		schemaErr     *SchemaError
		invocationErr *InvocationError
		providerErr   *ProviderError
	)
	switch {
	case errors.Is(err, ErrToolNotFound):
		return CodeNotFound, true
	case errors.Is(err, ErrRefreshInProgress):
		return CodeAborted, true
	case errors.Is(err, ErrEmptyCatalog), errors.Is(err, ErrServiceClosed):
		return CodeFailedPrecond, true
	case errors.As(err, &cfgErr), errors.As(err, &validationErr), errors.As(err, &schemaErr):
		return CodeInvalidArgument, true
	case errors.Is(err, context.DeadlineExceeded):
		return CodeDeadlineExceeded, true
	case errors.Is(err, context.Canceled):
		return CodeCanceled, true
	case errors.As(err, &invocationErr), errors.As(err, &providerErr), errors.Is(err, ErrConnectionClosed), errors.Is(err, ErrNoConnection):
		return CodeUnavailable, true
	default:
		return "", false
	}
}

// ConfigError reports malformed or missing configuration. It is fatal at startup.
type ConfigError struct {
	Problems []string
}

func (e *ConfigError) Error() string {
	if e == nil || len(e.Problems) == 0 {
		return "invalid configuration"
	}
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

// ProviderError reports a provider that could not be queried or returned a malformed discovery response.
type ProviderError struct {
	Provider string
	Endpoint string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Endpoint == "" {
		return fmt.Sprintf("provider %q: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("provider %q %s: %v", e.Provider, e.Endpoint, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// SchemaError reports a single malformed tool descriptor. Index is the position
// of the record in the provider response, or -1 when not applicable.
type SchemaError struct {
	Provider string
	Tool     string
	Index    int
	Err      error
}

func (e *SchemaError) Error() string {
	name := e.Tool
	if name == "" {
		name = fmt.Sprintf("#%d", e.Index)
	}
	if e.Provider == "" {
		return fmt.Sprintf("tool %s: %v", name, e.Err)
	}
	return fmt.Sprintf("provider %q tool %s: %v", e.Provider, name, e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// FieldIssue describes one offending parameter of an invocation.
type FieldIssue struct {
	Param  string `json:"param"`
	Reason string `json:"reason"`
}

// ValidationError reports invocation arguments that do not satisfy a tool contract.
type ValidationError struct {
	Tool   string
	Issues []FieldIssue
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		parts = append(parts, fmt.Sprintf("%s: %s", issue.Param, issue.Reason))
	}
	return fmt.Sprintf("invalid arguments for tool %q: %s", e.Tool, strings.Join(parts, "; "))
}

// Params returns the sorted names of the offending parameters.
func (e *ValidationError) Params() []string {
	out := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		out = append(out, issue.Param)
	}
	sort.Strings(out)
	return out
}

// InvocationError reports a transport, timeout or remote status failure of a tool call.
type InvocationError struct {
	Tool       string
	Provider   string
	StatusCode int
	Err        error
}

func (e *InvocationError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("invoke tool %q: status %d: %v", e.Tool, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("invoke tool %q: %v", e.Tool, e.Err)
}

func (e *InvocationError) Unwrap() error { return e.Err }
