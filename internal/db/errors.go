package db

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrNotFound is returned when a document does not exist. For profiles and
// subscriptions, absence is a meaningful state and callers branch on it.
var ErrNotFound = errors.New("document not found")

// IsTransient classifies a lookup failure as retryable: the backend was
// temporarily unavailable and a later attempt may succeed. Everything else
// (malformed data, permission denied, not-found) is permanent and must not be
// retried.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotFound) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	switch status.Code(err) {
	case codes.Unavailable,
		codes.DeadlineExceeded,
		codes.ResourceExhausted,
		codes.Aborted,
		codes.Internal,
		codes.Unknown:
		return true
	default:
		return false
	}
}
