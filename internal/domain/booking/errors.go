package booking

import (
	"errors"
	"fmt"

	"github.com/homease/service-booking/internal/pkg/apperr"
)

// Sentinel precondition errors. These are deterministic: the caller must
// change its input or wait for external state to change, never retry as-is.
var (
	ErrProviderUnavailable     = apperr.NewPreconditionError("PROVIDER_UNAVAILABLE", "provider is not available")
	ErrServiceNotFound         = apperr.NewPreconditionError("SERVICE_NOT_FOUND", "service not found or inactive")
	ErrDuplicateActiveBooking  = apperr.NewPreconditionError("DUPLICATE_ACTIVE_BOOKING", "an active booking already exists for this service")
	ErrProviderBusy            = apperr.NewPreconditionError("PROVIDER_BUSY", "provider already has a booking in progress")
	ErrTerminalState           = apperr.NewPreconditionError("TERMINAL_STATE", "booking is in a terminal state")
	ErrInvalidTransition       = apperr.NewPreconditionError("INVALID_TRANSITION", "transition not permitted")
	ErrInvalidCompletionCode   = apperr.NewPreconditionError("INVALID_COMPLETION_CODE", "completion code does not match")
	ErrCompletionNotInitiated  = apperr.NewPreconditionError("COMPLETION_NOT_INITIATED", "completion has not been initiated")
	ErrCompletionRequired      = apperr.NewPreconditionError("COMPLETION_REQUIRED", "completed is reachable only through completion code verification")
)

// IsCompletionCodeFailure reports whether err is a failed code check, as
// opposed to an authorization or persistence failure.
func IsCompletionCodeFailure(err error) bool {
	return errors.Is(err, ErrInvalidCompletionCode) || errors.Is(err, ErrCompletionNotInitiated)
}

// NewTerminalStateError reports an attempted transition out of a terminal state.
func NewTerminalStateError(from BookingStatus) *apperr.Error {
	return apperr.NewPreconditionError("TERMINAL_STATE",
		fmt.Sprintf("booking is already %s; no further transition is permitted", from))
}

// NewInvalidTransitionError reports a transition absent from the table.
func NewInvalidTransitionError(from, to BookingStatus) *apperr.Error {
	return apperr.NewPreconditionError("INVALID_TRANSITION",
		fmt.Sprintf("cannot transition booking from %s to %s", from, to))
}
