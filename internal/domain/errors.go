package domain

import "errors"

// Sentinel errors for domain-level error handling.
// The handler layer maps these to HTTP status codes.
var (
	ErrIntentNotFound         = errors.New("intent_not_found")
	ErrIntentNotCancellable   = errors.New("intent_not_cancellable")
	ErrMatchNotFound          = errors.New("match_not_found")
	ErrCaseNotFound           = errors.New("settlement_case_not_found")
	ErrCaseNotCancellable     = errors.New("settlement_case_not_cancellable")
	ErrConcurrentModification = errors.New("concurrent_modification")
	ErrCycleInProgress        = errors.New("cycle_in_progress")
	ErrCycleConflict          = errors.New("cycle_conflict")
	ErrStaleRate              = errors.New("stale_rate")
	ErrWebhookNotFound        = errors.New("webhook_not_found")
	ErrUnknownPair            = errors.New("unknown_pair")
)

// ValidationError represents a request validation failure.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// RailError represents a failure reported by a settlement rail. Terminal
// errors (invalid account, insufficient funds) must not be retried;
// transient errors (timeouts, 5xx) are retried with backoff.
type RailError struct {
	Code     string
	Message  string
	Terminal bool
}

func (e *RailError) Error() string {
	if e.Code != "" {
		return e.Code + ": " + e.Message
	}
	return e.Message
}

// IsTerminalRailError reports whether err is a RailError flagged terminal.
func IsTerminalRailError(err error) bool {
	var re *RailError
	return errors.As(err, &re) && re.Terminal
}
