package provider

import (
	"context"

	"github.com/google/uuid"
)

// Status is the provider's approval state, owned by the identity service.
type Status string

const (
	StatusPendingApproval Status = "pending_approval"
	StatusApproved        Status = "approved"
	StatusSuspended       Status = "suspended"
)

// Provider is the read-only view of a provider the booking engine needs:
// approval state plus the contact and payment-QR data attached to new
// bookings for customer display.
type Provider struct {
	ID          uuid.UUID
	OwnerUserID uuid.UUID
	Status      Status
	Phone       string
	QRCodeURL   string
}

// IsApproved reports whether the provider may receive bookings.
func (p Provider) IsApproved() bool {
	return p.Status == StatusApproved
}

// Lookup is the external collaborator contract for provider reads.
type Lookup interface {
	// GetProvider returns the provider, or a not-found error.
	GetProvider(ctx context.Context, id uuid.UUID) (*Provider, error)
}
