package application

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	bookingDomain "github.com/homease/service-booking/internal/domain/booking"
	"github.com/homease/service-booking/internal/domain/notification"
	"github.com/homease/service-booking/internal/events"
	"github.com/homease/service-booking/internal/pkg/metrics"
)

// InitiateCompletion generates a fresh 6-digit completion code for a
// confirmed booking and hands it to the customer. The provider gets a
// confirmation notification with the code redacted. Re-initiating
// overwrites any stale prior code.
func (s *BookingService) InitiateCompletion(ctx context.Context, bookingID uuid.UUID, actor bookingDomain.Actor) (*BookingDTO, error) {
	code, err := bookingDomain.GenerateCompletionCode()
	if err != nil {
		return nil, err
	}

	var bk *bookingDomain.Booking
	err = s.tx.WithinTx(ctx, func(txCtx context.Context) error {
		var err error
		bk, err = s.bookings.FindByIDForUpdate(txCtx, bookingID)
		if err != nil {
			return err
		}

		if err := bk.InitiateCompletion(code, actor); err != nil {
			return err
		}

		bk.IncrementVersion()
		if err := s.bookings.Update(txCtx, bk); err != nil {
			return err
		}

		customerNote := notification.New(bk.CustomerID(), notification.TypeCompletionCode,
			"Your completion code",
			fmt.Sprintf("Share code %s with your provider once the service is done", code),
			map[string]string{
				"booking_id":      bk.ID().String(),
				"completion_code": code,
			})
		if err := s.notifs.CreateNotification(txCtx, customerNote); err != nil {
			return err
		}

		prov, err := s.providers.GetProvider(txCtx, bk.ProviderID())
		if err != nil {
			return err
		}
		providerNote := notification.New(prov.OwnerUserID, notification.TypeCompletionStarted,
			"Completion initiated",
			"Ask the customer for their completion code to finish this booking",
			bookingPayload(bk))
		return s.notifs.CreateNotification(txCtx, providerNote)
	})
	if err != nil {
		return nil, err
	}

	// The engine response goes back to the provider, so the code is
	// redacted here as well.
	dto := toBookingDTO(bk, bookingDomain.RoleProvider)
	return &dto, nil
}

// VerifyCompletion checks the supplied code against the stored one and, on
// match, completes the booking: the code is cleared, status moves to
// COMPLETED, the provider's revenue and the customer's spend counters are
// incremented, and the customer is notified. All of it commits as one
// transaction. A mismatch changes nothing.
func (s *BookingService) VerifyCompletion(ctx context.Context, bookingID uuid.UUID, actor bookingDomain.Actor, suppliedCode string) (*BookingDTO, error) {
	var bk *bookingDomain.Booking
	err := s.tx.WithinTx(ctx, func(txCtx context.Context) error {
		var err error
		bk, err = s.bookings.FindByIDForUpdate(txCtx, bookingID)
		if err != nil {
			return err
		}

		// Authorization comes first and does not depend on the starting
		// state: once the booking is already IN_PROGRESS no transition
		// below re-checks the actor.
		if err := bk.AuthorizeCompletion(actor); err != nil {
			return err
		}

		if err := bk.VerifyCompletionCode(suppliedCode); err != nil {
			return err
		}

		// The code gates the whole tail of the lifecycle: verifying a
		// confirmed booking passes through IN_PROGRESS on its way out.
		if bk.Status() == bookingDomain.StatusConfirmed {
			if err := bk.TransitionTo(bookingDomain.StatusInProgress, actor); err != nil {
				return err
			}
		}
		if err := bk.TransitionTo(bookingDomain.StatusCompleted, bookingDomain.SystemActor()); err != nil {
			return err
		}

		bk.IncrementVersion()
		if err := s.bookings.Update(txCtx, bk); err != nil {
			return err
		}

		if err := s.counters.IncrementProviderRevenue(txCtx, bk.ProviderID(), bk.ProviderEarnings()); err != nil {
			return err
		}
		if err := s.counters.IncrementCustomerSpend(txCtx, bk.CustomerID(), bk.TotalAmount()); err != nil {
			return err
		}

		customerNote := notification.New(bk.CustomerID(), notification.TypeBookingCompleted,
			"Booking completed",
			"Your booking has been completed. Thank you for using our service",
			bookingPayload(bk))
		return s.notifs.CreateNotification(txCtx, customerNote)
	})
	if err != nil {
		if bookingDomain.IsCompletionCodeFailure(err) {
			metrics.CompletionVerifyFailures.Inc()
		}
		return nil, err
	}

	metrics.BookingTransitionsTotal.WithLabelValues(string(bookingDomain.StatusCompleted)).Inc()
	s.emitter.Emit(ctx, events.BookingCompleted, bk.ID().String(), events.BookingCompletedEvent{
		BookingStateChangedEvent: stateEvent(bk),
		TotalAmount:              bk.TotalAmount(),
		PlatformFee:              bk.PlatformFee(),
		ProviderEarnings:         bk.ProviderEarnings(),
		Currency:                 bk.Currency(),
	})

	dto := toBookingDTO(bk, actor.Role)
	return &dto, nil
}
