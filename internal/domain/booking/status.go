package booking

import "fmt"

// BookingStatus represents the current state of a booking in its lifecycle.
type BookingStatus string

const (
	StatusPending    BookingStatus = "pending"
	StatusConfirmed  BookingStatus = "confirmed"
	StatusInProgress BookingStatus = "in_progress"
	StatusCompleted  BookingStatus = "completed"
	StatusCancelled  BookingStatus = "cancelled"
	StatusRejected   BookingStatus = "rejected"
	StatusExpired    BookingStatus = "expired"
)

// PaymentStatus tracks the out-of-band payment independently of the
// workflow status.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentSuccess PaymentStatus = "success"
	PaymentFailed  PaymentStatus = "failed"
)

// IsValid returns true if the payment status is recognized.
func (p PaymentStatus) IsValid() bool {
	switch p {
	case PaymentPending, PaymentSuccess, PaymentFailed:
		return true
	}
	return false
}

type transitionKey struct {
	from BookingStatus
	to   BookingStatus
}

// transitionTable is the single source of truth for transition legality:
// which actor roles may move a booking from one status to another.
// COMPLETED is reachable only through code verification (RoleSystem), and
// EXPIRED only through the sweeper. An absent entry means the transition is
// never permitted for anyone.
var transitionTable = map[transitionKey][]ActorRole{
	{StatusPending, StatusConfirmed}:     {RoleProvider},
	{StatusPending, StatusRejected}:      {RoleProvider},
	{StatusPending, StatusCancelled}:     {RoleCustomer},
	{StatusPending, StatusExpired}:       {RoleSystem},
	{StatusConfirmed, StatusInProgress}:  {RoleProvider},
	{StatusConfirmed, StatusCancelled}:   {RoleCustomer, RoleProvider},
	{StatusInProgress, StatusCompleted}:  {RoleSystem},
}

// allStatuses enumerates every recognized workflow status.
var allStatuses = []BookingStatus{
	StatusPending, StatusConfirmed, StatusInProgress,
	StatusCompleted, StatusCancelled, StatusRejected, StatusExpired,
}

// IsValid returns true if the status is a recognized booking status.
func (s BookingStatus) IsValid() bool {
	for _, known := range allStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// IsTerminal returns true if no transition out of this status is permitted.
func (s BookingStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusRejected, StatusExpired:
		return true
	}
	return false
}

// CanTransitionTo returns true if some role may move a booking from this
// status to the target.
func (s BookingStatus) CanTransitionTo(target BookingStatus) bool {
	_, ok := transitionTable[transitionKey{s, target}]
	return ok
}

// RoleMayTransition returns true if the given role may move a booking from
// this status to the target. An administrative actor may act in place of
// either the customer or the provider, but not in place of the system.
func (s BookingStatus) RoleMayTransition(target BookingStatus, role ActorRole) bool {
	roles, ok := transitionTable[transitionKey{s, target}]
	if !ok {
		return false
	}
	for _, r := range roles {
		if r == role {
			return true
		}
		if role == RoleAdmin && (r == RoleCustomer || r == RoleProvider) {
			return true
		}
	}
	return false
}

// String returns the string representation of the status.
func (s BookingStatus) String() string {
	return string(s)
}

// ParseBookingStatus converts a string to a BookingStatus, returning an error if invalid.
func ParseBookingStatus(s string) (BookingStatus, error) {
	status := BookingStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid booking status: %s", s)
	}
	return status, nil
}
