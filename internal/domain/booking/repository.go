package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines the persistence contract for booking aggregates.
// Methods that take part in a transition must be called inside a TxManager
// transaction; FindByIDForUpdate takes the row lock that serializes
// concurrent transitions on the same booking.
type Repository interface {
	// FindByID retrieves a booking by its unique identifier.
	FindByID(ctx context.Context, id uuid.UUID) (*Booking, error)

	// FindByIDForUpdate retrieves a booking and locks its row for the
	// duration of the surrounding transaction.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Booking, error)

	// FindByCustomerID retrieves a customer's bookings with pagination.
	FindByCustomerID(ctx context.Context, customerID uuid.UUID, page, limit int) ([]*Booking, int64, error)

	// FindByProviderID retrieves a provider's bookings with pagination.
	FindByProviderID(ctx context.Context, providerID uuid.UUID, page, limit int) ([]*Booking, int64, error)

	// ListAll retrieves all bookings with pagination (admin).
	ListAll(ctx context.Context, page, limit int) ([]*Booking, int64, error)

	// CountByStatus returns booking counts grouped by status (admin).
	CountByStatus(ctx context.Context) (map[string]int64, error)

	// HasActiveBooking reports whether the customer already has a booking
	// for the service in a non-terminal state.
	HasActiveBooking(ctx context.Context, customerID, serviceID uuid.UUID) (bool, error)

	// ProviderHasInProgress reports whether the provider has any booking in
	// progress other than the one given.
	ProviderHasInProgress(ctx context.Context, providerID, excludeBookingID uuid.UUID) (bool, error)

	// FindStalePendingIDs returns IDs of pending bookings created before the
	// cutoff, oldest first, capped at limit.
	FindStalePendingIDs(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error)

	// Create persists a new booking.
	Create(ctx context.Context, booking *Booking) error

	// Update persists changes to an existing booking with optimistic locking.
	Update(ctx context.Context, booking *Booking) error

	// CreateCancellation persists a cancellation record.
	CreateCancellation(ctx context.Context, cancellation *Cancellation) error
}

// TxManager runs a function inside a single database transaction. Everything
// written through repositories within fn commits or rolls back as one unit;
// a lock that cannot be acquired within the bounded timeout surfaces as a
// retryable conflict error.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// FinancialCounters is the audit/financial collaborator contract. Both
// increments participate in the completion-verification transaction.
type FinancialCounters interface {
	IncrementProviderRevenue(ctx context.Context, providerID uuid.UUID, amount int64) error
	IncrementCustomerSpend(ctx context.Context, userID uuid.UUID, amount int64) error
}
