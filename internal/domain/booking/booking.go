package booking

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/homease/service-booking/internal/pkg/apperr"
)

const completionCodeDigits = 6

// Address is the snapshot of where the service occurs.
type Address struct {
	Line1   string `json:"line1"`
	City    string `json:"city"`
	Pincode string `json:"pincode"`
}

// Booking is the aggregate root for the booking lifecycle. All mutation
// goes through its methods; the engine persists the result atomically.
type Booking struct {
	id         uuid.UUID
	customerID uuid.UUID
	providerID uuid.UUID
	serviceID  uuid.UUID

	status        BookingStatus
	paymentStatus PaymentStatus

	totalAmount      int64
	platformFee      int64
	providerEarnings int64
	currency         string

	scheduledAt  time.Time
	address      Address
	requirements string

	completionCode *string

	version   int64
	createdAt time.Time
	updatedAt time.Time
}

// GenerateCompletionCode creates a 6-digit numeric one-time code.
func GenerateCompletionCode() (string, error) {
	const digits = "0123456789"
	result := make([]byte, completionCodeDigits)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(digits))))
		if err != nil {
			return "", fmt.Errorf("failed to generate completion code: %w", err)
		}
		result[i] = digits[n.Int64()]
	}
	return string(result), nil
}

// NewBooking creates a new Booking aggregate with status=pending, snapshotting
// the service price into the fee split.
func NewBooking(
	customerID uuid.UUID,
	providerID uuid.UUID,
	serviceID uuid.UUID,
	scheduledAt time.Time,
	address Address,
	requirements string,
	priceAmount int64,
	currency string,
) (*Booking, error) {
	if customerID == uuid.Nil {
		return nil, apperr.NewValidationError("customer ID is required")
	}
	if providerID == uuid.Nil {
		return nil, apperr.NewValidationError("provider ID is required")
	}
	if serviceID == uuid.Nil {
		return nil, apperr.NewValidationError("service ID is required")
	}
	if scheduledAt.IsZero() {
		return nil, apperr.NewValidationError("scheduled time is required")
	}
	if address.Line1 == "" {
		return nil, apperr.NewValidationError("service address is required")
	}

	fees, err := CalculateFees(priceAmount)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &Booking{
		id:               uuid.New(),
		customerID:       customerID,
		providerID:       providerID,
		serviceID:        serviceID,
		status:           StatusPending,
		paymentStatus:    PaymentPending,
		totalAmount:      fees.TotalAmount,
		platformFee:      fees.PlatformFee,
		providerEarnings: fees.ProviderEarnings,
		currency:         currency,
		scheduledAt:      scheduledAt,
		address:          address,
		requirements:     requirements,
		version:          1,
		createdAt:        now,
		updatedAt:        now,
	}, nil
}

// ReconstructBooking rebuilds a Booking from persistence data (no validation).
func ReconstructBooking(
	id uuid.UUID,
	customerID uuid.UUID,
	providerID uuid.UUID,
	serviceID uuid.UUID,
	status BookingStatus,
	paymentStatus PaymentStatus,
	totalAmount int64,
	platformFee int64,
	providerEarnings int64,
	currency string,
	scheduledAt time.Time,
	address Address,
	requirements string,
	completionCode *string,
	version int64,
	createdAt time.Time,
	updatedAt time.Time,
) *Booking {
	return &Booking{
		id:               id,
		customerID:       customerID,
		providerID:       providerID,
		serviceID:        serviceID,
		status:           status,
		paymentStatus:    paymentStatus,
		totalAmount:      totalAmount,
		platformFee:      platformFee,
		providerEarnings: providerEarnings,
		currency:         currency,
		scheduledAt:      scheduledAt,
		address:          address,
		requirements:     requirements,
		completionCode:   completionCode,
		version:          version,
		createdAt:        createdAt,
		updatedAt:        updatedAt,
	}
}

// --- Getters ---

// ID returns the booking's unique identifier.
func (b *Booking) ID() uuid.UUID { return b.id }

// CustomerID returns the booking customer's user ID.
func (b *Booking) CustomerID() uuid.UUID { return b.customerID }

// ProviderID returns the provider's ID.
func (b *Booking) ProviderID() uuid.UUID { return b.providerID }

// ServiceID returns the booked service's ID.
func (b *Booking) ServiceID() uuid.UUID { return b.serviceID }

// Status returns the current workflow status.
func (b *Booking) Status() BookingStatus { return b.status }

// PaymentStatus returns the out-of-band payment status.
func (b *Booking) PaymentStatus() PaymentStatus { return b.paymentStatus }

// TotalAmount returns the customer-facing price snapshotted at creation.
func (b *Booking) TotalAmount() int64 { return b.totalAmount }

// PlatformFee returns the marketplace's cut snapshotted at creation.
func (b *Booking) PlatformFee() int64 { return b.platformFee }

// ProviderEarnings returns what the provider is owed.
func (b *Booking) ProviderEarnings() int64 { return b.providerEarnings }

// Currency returns the currency code.
func (b *Booking) Currency() string { return b.currency }

// ScheduledAt returns the customer-requested service time.
func (b *Booking) ScheduledAt() time.Time { return b.scheduledAt }

// Address returns the service location snapshot.
func (b *Booking) Address() Address { return b.address }

// Requirements returns the customer's free-text requirements.
func (b *Booking) Requirements() string { return b.requirements }

// CompletionCode returns the active one-time code, or nil. Callers serving
// the provider channel must never expose this value.
func (b *Booking) CompletionCode() *string { return b.completionCode }

// Version returns the entity version for optimistic locking.
func (b *Booking) Version() int64 { return b.version }

// CreatedAt returns the creation timestamp.
func (b *Booking) CreatedAt() time.Time { return b.createdAt }

// UpdatedAt returns the last-updated timestamp.
func (b *Booking) UpdatedAt() time.Time { return b.updatedAt }

// --- Behavior ---

// Authorize checks, in order, that the booking is not terminal, that the
// transition exists in the table, and that the actor is permitted to request
// it and owns the side it claims to act for. It does not mutate the booking.
func (b *Booking) Authorize(target BookingStatus, actor Actor) error {
	if b.status.IsTerminal() {
		return NewTerminalStateError(b.status)
	}
	if !b.status.CanTransitionTo(target) {
		return NewInvalidTransitionError(b.status, target)
	}
	if !b.status.RoleMayTransition(target, actor.Role) {
		return apperr.NewForbiddenError(
			fmt.Sprintf("role %s may not transition booking from %s to %s", actor.Role, b.status, target))
	}

	switch actor.Role {
	case RoleCustomer:
		if actor.ID != b.customerID {
			return apperr.NewForbiddenError("booking does not belong to this customer")
		}
	case RoleProvider:
		if actor.ID != b.providerID {
			return apperr.NewForbiddenError("booking does not belong to this provider")
		}
	}
	return nil
}

// TransitionTo applies an authorized transition. The completion code is
// cleared on every terminal transition.
func (b *Booking) TransitionTo(target BookingStatus, actor Actor) error {
	if err := b.Authorize(target, actor); err != nil {
		return err
	}
	b.status = target
	if target.IsTerminal() {
		b.completionCode = nil
	}
	b.updatedAt = time.Now().UTC()
	return nil
}

// AuthorizeCompletion checks that the actor may drive the completion
// handshake for this booking: its own provider, or an admin. Knowing the
// code is never enough on its own.
func (b *Booking) AuthorizeCompletion(actor Actor) error {
	if actor.Role != RoleProvider && actor.Role != RoleAdmin {
		return apperr.NewForbiddenError("only the provider may complete a booking")
	}
	if actor.Role == RoleProvider && actor.ID != b.providerID {
		return apperr.NewForbiddenError("booking does not belong to this provider")
	}
	return nil
}

// InitiateCompletion stores a fresh one-time code, overwriting any stale
// prior code. Only permitted while the booking is confirmed.
func (b *Booking) InitiateCompletion(code string, actor Actor) error {
	if b.status != StatusConfirmed {
		if b.status.IsTerminal() {
			return NewTerminalStateError(b.status)
		}
		return NewInvalidTransitionError(b.status, StatusInProgress)
	}
	if err := b.AuthorizeCompletion(actor); err != nil {
		return err
	}
	if len(code) != completionCodeDigits {
		return apperr.NewValidationError("completion code must be 6 digits")
	}
	b.completionCode = &code
	b.updatedAt = time.Now().UTC()
	return nil
}

// VerifyCompletionCode compares the supplied code against the stored one by
// exact string equality. A mismatch leaves the booking untouched.
func (b *Booking) VerifyCompletionCode(supplied string) error {
	if b.completionCode == nil {
		return ErrCompletionNotInitiated
	}
	if *b.completionCode != supplied {
		return ErrInvalidCompletionCode
	}
	return nil
}

// RecordPayment updates the out-of-band payment status.
func (b *Booking) RecordPayment(status PaymentStatus) error {
	if !status.IsValid() {
		return apperr.NewValidationError(fmt.Sprintf("invalid payment status: %s", status))
	}
	b.paymentStatus = status
	b.updatedAt = time.Now().UTC()
	return nil
}

// IncrementVersion bumps the version for optimistic locking.
func (b *Booking) IncrementVersion() {
	b.version++
	b.updatedAt = time.Now().UTC()
}
