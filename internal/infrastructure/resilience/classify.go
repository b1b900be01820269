package resilience

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/kirillkom/campus-assistant/internal/core/domain"
)

// StatusOf extracts an HTTP status code from a backend-specific error.
type StatusOf func(err error) (int, bool)

// TransportClassifier classifies errors of HTTP-based backends. Caller
// cancellation never counts against the breaker; 5xx, 408, 429 and network
// errors are retried.
func TransportClassifier(statusOf StatusOf) ErrorClassifier {
	return func(err error) ErrorClassification {
		if err == nil {
			return ErrorClassification{}
		}
		if errors.Is(err, context.Canceled) {
			return ErrorClassification{Retryable: false, RecordFailure: false}
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return ErrorClassification{Retryable: false, RecordFailure: true}
		}
		if IsCircuitOpen(err) {
			return ErrorClassification{Retryable: false, RecordFailure: false}
		}
		if statusOf != nil {
			if code, ok := statusOf(err); ok {
				retryable := RetryableHTTPStatus(code)
				return ErrorClassification{Retryable: retryable, RecordFailure: retryable}
			}
		}
		var netErr net.Error
		if errors.As(err, &netErr) {
			return ErrorClassification{Retryable: true, RecordFailure: true}
		}
		return ErrorClassification{Retryable: false, RecordFailure: true}
	}
}

func RetryableHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// WrapUnavailable marks err as a generation outage, additionally tagging it
// temporary when a retry later could succeed.
func WrapUnavailable(operation string, err error, classifier ErrorClassifier) error {
	if err == nil {
		return nil
	}
	if domain.IsKind(err, domain.ErrGenerationUnavailable) {
		return err
	}
	if IsCircuitOpen(err) || classifier(err).Retryable {
		return domain.WrapError(domain.ErrGenerationUnavailable, operation, domain.WrapError(domain.ErrTemporary, operation, err))
	}
	return domain.WrapError(domain.ErrGenerationUnavailable, operation, err)
}
