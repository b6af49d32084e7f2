package catalog

import (
	"context"

	"github.com/google/uuid"
)

// Service is the read-only view of a provider's service offering. The
// booking engine snapshots its price at creation time and never rereads it.
type Service struct {
	ID         uuid.UUID
	ProviderID uuid.UUID
	Name       string
	Price      int64
	Currency   string
	Active     bool
}

// Lookup is the external collaborator contract for service reads.
type Lookup interface {
	// GetService returns the service if it belongs to the provider,
	// or a not-found error.
	GetService(ctx context.Context, id, providerID uuid.UUID) (*Service, error)
}
