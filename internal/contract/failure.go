package contract

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/spigell/programme-advisor/internal/ai"
)

// Kind classifies a pipeline failure.
type Kind string

const (
	KindInvalidInput         Kind = "invalid_input"
	KindCatalogueUnavailable Kind = "catalogue_unavailable"
	KindRateLimited          Kind = "rate_limited"
	KindQuotaExceeded        Kind = "quota_exceeded"
	KindUpstreamError        Kind = "upstream_error"
	KindUpstreamFormatError  Kind = "upstream_format_error"
)

// Kinds lists every failure kind.
var Kinds = []Kind{
	KindInvalidInput,
	KindCatalogueUnavailable,
	KindRateLimited,
	KindQuotaExceeded,
	KindUpstreamError,
	KindUpstreamFormatError,
}

// Failure is the only error type returned across component boundaries.
// It never carries partial results.
type Failure struct {
	Kind Kind
	// Status is the upstream status code when the model call returned one.
	Status  int
	Message string
	Cause   error
}

func (f *Failure) Error() string {
	msg := fmt.Sprintf("%s: %s", f.Kind, f.Message)
	if f.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, f.Status)
	}
	if f.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, f.Cause)
	}
	return msg
}

func (f *Failure) Unwrap() error {
	return f.Cause
}

// Retryable reports whether repeating the same call later may succeed.
func (f *Failure) Retryable() bool {
	return f.Kind == KindRateLimited || f.Kind == KindUpstreamError
}

// NewFailure builds a Failure of the given kind.
func NewFailure(kind Kind, message string, cause error) *Failure {
	return &Failure{Kind: kind, Message: message, Cause: cause}
}

// InvalidInput reports a caller error.
func InvalidInput(format string, args ...any) *Failure {
	return &Failure{Kind: KindInvalidInput, Message: fmt.Sprintf(format, args...)}
}

// FormatError reports a successful upstream response that did not match the contract.
func FormatError(message string, cause error) *Failure {
	return &Failure{Kind: KindUpstreamFormatError, Message: message, Cause: cause}
}

// AsFailure extracts a Failure from err's chain.
func AsFailure(err error) (*Failure, bool) {
	var failure *Failure
	if errors.As(err, &failure) {
		return failure, true
	}
	return nil, false
}

// FromUpstream classifies an error returned by a model call. Throttling and quota
// are told apart by status code alone.
func FromUpstream(err error) *Failure {
	if err == nil {
		return nil
	}
	if failure, ok := AsFailure(err); ok {
		return failure
	}

	var statusErr *ai.StatusError
	if errors.As(err, &statusErr) {
		failure := &Failure{Status: statusErr.Code, Cause: err}
		switch statusErr.Code {
		case http.StatusTooManyRequests:
			failure.Kind = KindRateLimited
			failure.Message = "model provider is throttling requests"
		case http.StatusPaymentRequired:
			failure.Kind = KindQuotaExceeded
			failure.Message = "model provider quota is exhausted"
		default:
			failure.Kind = KindUpstreamError
			failure.Message = "model provider returned a non-success response"
		}
		return failure
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &Failure{Kind: KindUpstreamError, Message: "model call timed out", Cause: err}
	}
	if errors.Is(err, context.Canceled) {
		return &Failure{Kind: KindUpstreamError, Message: "model call was cancelled", Cause: err}
	}

	return &Failure{Kind: KindUpstreamError, Message: "model call failed", Cause: err}
}
