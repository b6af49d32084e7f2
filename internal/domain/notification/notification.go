package notification

import (
	"context"

	"github.com/google/uuid"
)

// Type classifies a notification for the client's rendering.
type Type string

const (
	TypeBookingRequested   Type = "booking_requested"
	TypeBookingConfirmed   Type = "booking_confirmed"
	TypeBookingRejected    Type = "booking_rejected"
	TypeBookingCancelled   Type = "booking_cancelled"
	TypeBookingStarted     Type = "booking_started"
	TypeBookingExpired     Type = "booking_expired"
	TypeCompletionCode     Type = "completion_code"
	TypeCompletionStarted  Type = "completion_started"
	TypeBookingCompleted   Type = "booking_completed"
)

// Notification is a row addressed to one user about a booking event. The
// engine creates these inside the same transaction as the state change they
// describe; delivery transports consume them elsewhere.
type Notification struct {
	ID      uuid.UUID
	UserID  uuid.UUID
	Type    Type
	Title   string
	Body    string
	Payload map[string]string
}

// New creates a notification addressed to userID.
func New(userID uuid.UUID, t Type, title, body string, payload map[string]string) *Notification {
	return &Notification{
		ID:      uuid.New(),
		UserID:  userID,
		Type:    t,
		Title:   title,
		Body:    body,
		Payload: payload,
	}
}

// Sink is the external collaborator contract for notification writes. When
// called inside a transaction the write commits or rolls back with it.
type Sink interface {
	CreateNotification(ctx context.Context, n *Notification) error
}
