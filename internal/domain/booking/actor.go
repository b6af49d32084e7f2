package booking

import "github.com/google/uuid"

// ActorRole identifies who is requesting a transition.
type ActorRole string

const (
	RoleCustomer ActorRole = "customer"
	RoleProvider ActorRole = "provider"
	RoleAdmin    ActorRole = "admin"

	// RoleSystem marks engine-initiated transitions (sweeper expiry,
	// completion after code verification). It is never assigned to a request.
	RoleSystem ActorRole = "system"
)

// Actor is the identity behind a transition request.
type Actor struct {
	ID   uuid.UUID
	Role ActorRole
}

// SystemActor returns the actor used for engine-initiated transitions.
func SystemActor() Actor {
	return Actor{ID: uuid.Nil, Role: RoleSystem}
}
