package application

import (
	"time"

	"github.com/google/uuid"

	bookingDomain "github.com/homease/service-booking/internal/domain/booking"
)

// CreateBookingRequest holds the data needed to create a new booking.
type CreateBookingRequest struct {
	ProviderID   uuid.UUID             `json:"provider_id" binding:"required"`
	ServiceID    uuid.UUID             `json:"service_id" binding:"required"`
	ScheduledAt  time.Time             `json:"scheduled_at" binding:"required"`
	Address      bookingDomain.Address `json:"address" binding:"required"`
	Requirements string                `json:"requirements"`
}

// BookingDTO is the response representation of a booking. The completion
// code is present only on customer- and admin-facing views; the provider
// channel always sees it redacted.
type BookingDTO struct {
	ID               uuid.UUID             `json:"id"`
	CustomerID       uuid.UUID             `json:"customer_id"`
	ProviderID       uuid.UUID             `json:"provider_id"`
	ServiceID        uuid.UUID             `json:"service_id"`
	Status           string                `json:"status"`
	PaymentStatus    string                `json:"payment_status"`
	TotalAmount      int64                 `json:"total_amount"`
	PlatformFee      int64                 `json:"platform_fee"`
	ProviderEarnings int64                 `json:"provider_earnings"`
	Currency         string                `json:"currency"`
	ScheduledAt      time.Time             `json:"scheduled_at"`
	Address          bookingDomain.Address `json:"address"`
	Requirements     string                `json:"requirements,omitempty"`
	CompletionCode   *string               `json:"completion_code,omitempty"`
	Version          int64                 `json:"version"`
	CreatedAt        time.Time             `json:"created_at"`
	UpdatedAt        time.Time             `json:"updated_at"`
}

// ProviderContact is the provider data attached to a freshly created
// booking for customer display: how to reach them and where to pay.
type ProviderContact struct {
	Phone     string `json:"phone"`
	QRCodeURL string `json:"qr_code_url,omitempty"`
}

// CreateBookingResponse is the creation result returned to the customer.
type CreateBookingResponse struct {
	Booking  BookingDTO      `json:"booking"`
	Provider ProviderContact `json:"provider"`
}

// BookingStatsDTO holds booking statistics for the admin dashboard.
type BookingStatsDTO struct {
	TotalBookings int64            `json:"total_bookings"`
	ByStatus      map[string]int64 `json:"by_status"`
}

// SweepResult summarizes one sweeper run.
type SweepResult struct {
	Scanned int `json:"scanned"`
	Expired int `json:"expired"`
	Failed  int `json:"failed"`
}

// toBookingDTO converts the aggregate to its response shape for the given
// viewer. The completion code must never reach the provider channel.
func toBookingDTO(bk *bookingDomain.Booking, viewer bookingDomain.ActorRole) BookingDTO {
	dto := BookingDTO{
		ID:               bk.ID(),
		CustomerID:       bk.CustomerID(),
		ProviderID:       bk.ProviderID(),
		ServiceID:        bk.ServiceID(),
		Status:           string(bk.Status()),
		PaymentStatus:    string(bk.PaymentStatus()),
		TotalAmount:      bk.TotalAmount(),
		PlatformFee:      bk.PlatformFee(),
		ProviderEarnings: bk.ProviderEarnings(),
		Currency:         bk.Currency(),
		ScheduledAt:      bk.ScheduledAt(),
		Address:          bk.Address(),
		Requirements:     bk.Requirements(),
		Version:          bk.Version(),
		CreatedAt:        bk.CreatedAt(),
		UpdatedAt:        bk.UpdatedAt(),
	}
	if viewer == bookingDomain.RoleCustomer || viewer == bookingDomain.RoleAdmin {
		dto.CompletionCode = bk.CompletionCode()
	}
	return dto
}
