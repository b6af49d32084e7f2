package booking

import (
	"time"

	"github.com/google/uuid"
)

// Cancellation is the optional 1:1 child row of a cancelled booking,
// recording who cancelled and why. It is created atomically with the
// transition to cancelled when a reason is supplied.
type Cancellation struct {
	ID          uuid.UUID
	BookingID   uuid.UUID
	CancelledBy uuid.UUID
	Role        ActorRole
	Reason      string
	CreatedAt   time.Time
}

// NewCancellation creates a cancellation record for the given booking.
func NewCancellation(bookingID uuid.UUID, actor Actor, reason string) *Cancellation {
	return &Cancellation{
		ID:          uuid.New(),
		BookingID:   bookingID,
		CancelledBy: actor.ID,
		Role:        actor.Role,
		Reason:      reason,
		CreatedAt:   time.Now().UTC(),
	}
}
