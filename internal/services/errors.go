package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tracksmith/internal/textutil"
)

// Kind identifies a failure class persisted into project state.
type Kind string

const (
	KindAuth                Kind = "auth"
	KindRateLimit           Kind = "rate_limit"
	KindTimeout             Kind = "timeout"
	KindProviderHTTP        Kind = "provider_http"
	KindValidation          Kind = "validation"
	KindEncoding            Kind = "encoding"
	KindOutOfOrderStep      Kind = "out_of_order_step"
	KindAttemptCapExhausted Kind = "attempt_cap_exhausted"
	KindUnknown             Kind = "unknown"
)

// Sentinel markers used to tag errors for later classification. Auth and
// validation failures are fatal; rate-limit, timeout, and provider HTTP
// failures are retriable under the retry policy.
var (
	ErrAuth           = errors.New("authentication error")
	ErrRateLimit      = errors.New("rate limit exceeded")
	ErrTimeout        = errors.New("timeout")
	ErrProviderHTTP   = errors.New("provider http error")
	ErrValidation          = errors.New("validation error")
	ErrEncoding            = errors.New("encoding error")
	ErrOutOfOrderStep      = errors.New("out of order step")
	ErrAttemptCapExhausted = errors.New("attempt cap exhausted")
)

// RawDiagnosticLimit bounds the raw diagnostic persisted into project state.
// Durable step logs receive the untruncated form.
const RawDiagnosticLimit = 2000

// Known provider names recorded on classified errors.
const (
	ProviderGemini  = "gemini"
	ProviderSuno    = "suno"
	ProviderYouTube = "youtube"
)

// Wrap builds an error message that includes step context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, step, operation, message string, err error) error {
	detail := buildDetail(step, operation, message)
	if marker == nil {
		marker = ErrProviderHTTP
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

type providerError struct {
	provider string
	err      error
}

func (e *providerError) Error() string { return e.err.Error() }

func (e *providerError) Unwrap() error { return e.err }

// TagProvider annotates err with the originating provider name so Classify
// can attribute the failure without string matching.
func TagProvider(provider string, err error) error {
	if err == nil {
		return nil
	}
	return &providerError{provider: provider, err: err}
}

// ProviderOf extracts the provider name from a tagged error chain.
func ProviderOf(err error) string {
	var tagged *providerError
	if errors.As(err, &tagged) {
		return tagged.provider
	}
	return ""
}

// KindOf maps an error to its failure class.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAuth):
		return KindAuth
	case errors.Is(err, ErrRateLimit):
		return KindRateLimit
	case errors.Is(err, ErrTimeout),
		errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrEncoding):
		return KindEncoding
	case errors.Is(err, ErrOutOfOrderStep):
		return KindOutOfOrderStep
	case errors.Is(err, ErrAttemptCapExhausted):
		return KindAttemptCapExhausted
	case errors.Is(err, ErrProviderHTTP):
		return KindProviderHTTP
	default:
		return KindUnknown
	}
}

// IsRetriable reports whether the retry policy may attempt err again.
// Auth, validation, and control-flow failures are always fatal.
func IsRetriable(err error) bool {
	switch KindOf(err) {
	case KindRateLimit, KindTimeout, KindProviderHTTP:
		return true
	default:
		return false
	}
}

// Details captures the classified form of an error for persistence.
type Details struct {
	Kind     Kind
	Provider string
	Message  string
	Raw      string
}

// Classify maps any error to the persisted taxonomy. Raw diagnostics are
// truncated to RawDiagnosticLimit.
func Classify(err error) Details {
	if err == nil {
		return Details{}
	}
	return Details{
		Kind:     KindOf(err),
		Provider: ProviderOf(err),
		Message:  err.Error(),
		Raw:      textutil.Truncate(err.Error(), RawDiagnosticLimit),
	}
}

func buildDetail(step, operation, message string) string {
	parts := make([]string, 0, 3)
	if step = strings.TrimSpace(step); step != "" {
		parts = append(parts, step)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
