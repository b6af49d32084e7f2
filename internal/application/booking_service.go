package application

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	bookingDomain "github.com/homease/service-booking/internal/domain/booking"
	"github.com/homease/service-booking/internal/domain/catalog"
	"github.com/homease/service-booking/internal/domain/notification"
	"github.com/homease/service-booking/internal/domain/provider"
	"github.com/homease/service-booking/internal/events"
	"github.com/homease/service-booking/internal/pkg/apperr"
	"github.com/homease/service-booking/internal/pkg/metrics"
)

// LifecycleEmitter publishes booking lifecycle events after commit,
// best-effort.
type LifecycleEmitter interface {
	Emit(ctx context.Context, eventType string, key string, data interface{})
}

// BookingService is the lifecycle engine: it owns the booking state machine,
// computes the fee split on creation, and performs every transition as one
// atomic unit of status write, child-row writes, and notification record.
type BookingService struct {
	bookings  bookingDomain.Repository
	tx        bookingDomain.TxManager
	notifs    notification.Sink
	providers provider.Lookup
	services  catalog.Lookup
	counters  bookingDomain.FinancialCounters
	emitter   LifecycleEmitter
	logger    *zap.Logger
}

// NewBookingService creates a new BookingService.
func NewBookingService(
	bookings bookingDomain.Repository,
	tx bookingDomain.TxManager,
	notifs notification.Sink,
	providers provider.Lookup,
	services catalog.Lookup,
	counters bookingDomain.FinancialCounters,
	emitter LifecycleEmitter,
	logger *zap.Logger,
) *BookingService {
	return &BookingService{
		bookings:  bookings,
		tx:        tx,
		notifs:    notifs,
		providers: providers,
		services:  services,
		counters:  counters,
		emitter:   emitter,
		logger:    logger,
	}
}

// CreateBooking creates a new booking for the given customer, snapshotting
// the service price and fee split. The uniqueness check and the insert share
// one transaction; a partial unique index on active (customer, service)
// pairs backstops the check against concurrent creators.
func (s *BookingService) CreateBooking(ctx context.Context, customerID uuid.UUID, req CreateBookingRequest) (*CreateBookingResponse, error) {
	prov, err := s.providers.GetProvider(ctx, req.ProviderID)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil, bookingDomain.ErrProviderUnavailable
		}
		return nil, err
	}
	if !prov.IsApproved() {
		return nil, bookingDomain.ErrProviderUnavailable
	}

	svc, err := s.services.GetService(ctx, req.ServiceID, req.ProviderID)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil, bookingDomain.ErrServiceNotFound
		}
		return nil, err
	}
	if !svc.Active {
		return nil, bookingDomain.ErrServiceNotFound
	}

	bk, err := bookingDomain.NewBooking(
		customerID,
		req.ProviderID,
		req.ServiceID,
		req.ScheduledAt,
		req.Address,
		req.Requirements,
		svc.Price,
		svc.Currency,
	)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithinTx(ctx, func(txCtx context.Context) error {
		active, err := s.bookings.HasActiveBooking(txCtx, customerID, req.ServiceID)
		if err != nil {
			return err
		}
		if active {
			return bookingDomain.ErrDuplicateActiveBooking
		}

		if err := s.bookings.Create(txCtx, bk); err != nil {
			return err
		}

		n := notification.New(prov.OwnerUserID, notification.TypeBookingRequested,
			"New booking request",
			fmt.Sprintf("You have a new booking request for %s", svc.Name),
			bookingPayload(bk))
		return s.notifs.CreateNotification(txCtx, n)
	})
	if err != nil {
		return nil, err
	}

	metrics.BookingsCreatedTotal.Inc()
	s.emitter.Emit(ctx, events.BookingRequested, bk.ID().String(), stateEvent(bk))

	return &CreateBookingResponse{
		Booking:  toBookingDTO(bk, bookingDomain.RoleCustomer),
		Provider: ProviderContact{Phone: prov.Phone, QRCodeURL: prov.QRCodeURL},
	}, nil
}

// Transition moves a booking to the target status on behalf of the actor.
// Status write, cancellation row and notification commit as one unit; the
// lifecycle event is emitted only after the commit succeeds.
func (s *BookingService) Transition(
	ctx context.Context,
	bookingID uuid.UUID,
	actor bookingDomain.Actor,
	target bookingDomain.BookingStatus,
	reason string,
) (*BookingDTO, error) {
	if target == bookingDomain.StatusCompleted {
		return nil, bookingDomain.ErrCompletionRequired
	}

	var bk *bookingDomain.Booking
	err := s.tx.WithinTx(ctx, func(txCtx context.Context) error {
		var err error
		bk, err = s.bookings.FindByIDForUpdate(txCtx, bookingID)
		if err != nil {
			return err
		}

		if err := bk.Authorize(target, actor); err != nil {
			return err
		}

		// A provider serves one job at a time: starting a second job while
		// another is in progress is refused under the same row locks.
		if target == bookingDomain.StatusInProgress {
			busy, err := s.bookings.ProviderHasInProgress(txCtx, bk.ProviderID(), bk.ID())
			if err != nil {
				return err
			}
			if busy {
				return bookingDomain.ErrProviderBusy
			}
		}

		if err := bk.TransitionTo(target, actor); err != nil {
			return err
		}

		if target == bookingDomain.StatusCancelled && reason != "" {
			cancellation := bookingDomain.NewCancellation(bk.ID(), actor, reason)
			if err := s.bookings.CreateCancellation(txCtx, cancellation); err != nil {
				return err
			}
		}

		bk.IncrementVersion()
		if err := s.bookings.Update(txCtx, bk); err != nil {
			return err
		}

		return s.notifyCounterparty(txCtx, bk, actor, target, reason)
	})
	if err != nil {
		metrics.BookingTransitionsRejected.WithLabelValues(string(apperr.KindOf(err))).Inc()
		return nil, err
	}

	metrics.BookingTransitionsTotal.WithLabelValues(string(target)).Inc()
	s.emitter.Emit(ctx, eventTypeFor(target), bk.ID().String(), stateEvent(bk))

	dto := toBookingDTO(bk, actor.Role)
	return &dto, nil
}

// GetBooking retrieves a single booking, redacted for the viewer, enforcing
// that only the booking's parties (or an admin) may read it.
func (s *BookingService) GetBooking(ctx context.Context, bookingID uuid.UUID, viewer bookingDomain.Actor) (*BookingDTO, error) {
	bk, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	switch viewer.Role {
	case bookingDomain.RoleCustomer:
		if viewer.ID != bk.CustomerID() {
			return nil, apperr.NewForbiddenError("booking does not belong to this customer")
		}
	case bookingDomain.RoleProvider:
		if viewer.ID != bk.ProviderID() {
			return nil, apperr.NewForbiddenError("booking does not belong to this provider")
		}
	}

	dto := toBookingDTO(bk, viewer.Role)
	return &dto, nil
}

// ListForCustomer retrieves paginated bookings for a customer.
func (s *BookingService) ListForCustomer(ctx context.Context, customerID uuid.UUID, page, limit int) ([]BookingDTO, int64, error) {
	bookings, total, err := s.bookings.FindByCustomerID(ctx, customerID, page, limit)
	if err != nil {
		return nil, 0, err
	}
	return toDTOs(bookings, bookingDomain.RoleCustomer), total, nil
}

// ListForProvider retrieves paginated bookings for a provider. Completion
// codes are redacted from every entry.
func (s *BookingService) ListForProvider(ctx context.Context, providerID uuid.UUID, page, limit int) ([]BookingDTO, int64, error) {
	bookings, total, err := s.bookings.FindByProviderID(ctx, providerID, page, limit)
	if err != nil {
		return nil, 0, err
	}
	return toDTOs(bookings, bookingDomain.RoleProvider), total, nil
}

// ListAllBookings returns a paginated list of all bookings (admin).
func (s *BookingService) ListAllBookings(ctx context.Context, page, limit int) ([]BookingDTO, int64, error) {
	bookings, total, err := s.bookings.ListAll(ctx, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list bookings: %w", err)
	}
	return toDTOs(bookings, bookingDomain.RoleAdmin), total, nil
}

// GetBookingStats returns aggregate booking statistics (admin).
func (s *BookingService) GetBookingStats(ctx context.Context) (*BookingStatsDTO, error) {
	counts, err := s.bookings.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get booking stats: %w", err)
	}

	var total int64
	for _, c := range counts {
		total += c
	}
	return &BookingStatsDTO{TotalBookings: total, ByStatus: counts}, nil
}

// ComputeInvoice derives the read-only invoice for a booking. Tax is
// computed at read time and never stored.
func (s *BookingService) ComputeInvoice(ctx context.Context, bookingID uuid.UUID, viewer bookingDomain.Actor) (*bookingDomain.Invoice, error) {
	bk, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	switch viewer.Role {
	case bookingDomain.RoleCustomer:
		if viewer.ID != bk.CustomerID() {
			return nil, apperr.NewForbiddenError("booking does not belong to this customer")
		}
	case bookingDomain.RoleProvider:
		if viewer.ID != bk.ProviderID() {
			return nil, apperr.NewForbiddenError("booking does not belong to this provider")
		}
	}

	invoice := bookingDomain.ComputeInvoice(bk)
	return &invoice, nil
}

// RecordPayment updates a booking's out-of-band payment status on behalf of
// the provider (or an admin).
func (s *BookingService) RecordPayment(
	ctx context.Context,
	bookingID uuid.UUID,
	actor bookingDomain.Actor,
	status bookingDomain.PaymentStatus,
) (*BookingDTO, error) {
	if actor.Role != bookingDomain.RoleProvider && actor.Role != bookingDomain.RoleAdmin {
		return nil, apperr.NewForbiddenError("only the provider may record payment")
	}

	var bk *bookingDomain.Booking
	err := s.tx.WithinTx(ctx, func(txCtx context.Context) error {
		var err error
		bk, err = s.bookings.FindByIDForUpdate(txCtx, bookingID)
		if err != nil {
			return err
		}
		if actor.Role == bookingDomain.RoleProvider && actor.ID != bk.ProviderID() {
			return apperr.NewForbiddenError("booking does not belong to this provider")
		}
		if err := bk.RecordPayment(status); err != nil {
			return err
		}
		bk.IncrementVersion()
		return s.bookings.Update(txCtx, bk)
	})
	if err != nil {
		return nil, err
	}

	dto := toBookingDTO(bk, actor.Role)
	return &dto, nil
}

// ApplyPaymentResult applies a gateway payment event to a booking.
func (s *BookingService) ApplyPaymentResult(ctx context.Context, bookingID uuid.UUID, status bookingDomain.PaymentStatus) error {
	return s.tx.WithinTx(ctx, func(txCtx context.Context) error {
		bk, err := s.bookings.FindByIDForUpdate(txCtx, bookingID)
		if err != nil {
			return err
		}
		if err := bk.RecordPayment(status); err != nil {
			return err
		}
		bk.IncrementVersion()
		return s.bookings.Update(txCtx, bk)
	})
}

// ExpireBooking force-transitions one stale pending booking to expired as a
// system action and notifies both parties. The status re-check runs under
// the row lock so a concurrent confirm wins cleanly.
func (s *BookingService) ExpireBooking(ctx context.Context, bookingID uuid.UUID) error {
	var bk *bookingDomain.Booking
	err := s.tx.WithinTx(ctx, func(txCtx context.Context) error {
		var err error
		bk, err = s.bookings.FindByIDForUpdate(txCtx, bookingID)
		if err != nil {
			return err
		}

		if err := bk.TransitionTo(bookingDomain.StatusExpired, bookingDomain.SystemActor()); err != nil {
			return err
		}

		bk.IncrementVersion()
		if err := s.bookings.Update(txCtx, bk); err != nil {
			return err
		}

		prov, err := s.providers.GetProvider(txCtx, bk.ProviderID())
		if err != nil {
			return err
		}

		customerNote := notification.New(bk.CustomerID(), notification.TypeBookingExpired,
			"Booking expired",
			"Your booking expired because the provider did not respond in time",
			bookingPayload(bk))
		if err := s.notifs.CreateNotification(txCtx, customerNote); err != nil {
			return err
		}

		providerNote := notification.New(prov.OwnerUserID, notification.TypeBookingExpired,
			"Booking expired",
			"A pending booking request expired before you responded",
			bookingPayload(bk))
		return s.notifs.CreateNotification(txCtx, providerNote)
	})
	if err != nil {
		return err
	}

	s.emitter.Emit(ctx, events.BookingExpired, bk.ID().String(), stateEvent(bk))
	return nil
}

// --- Helpers ---

func toDTOs(bookings []*bookingDomain.Booking, viewer bookingDomain.ActorRole) []BookingDTO {
	dtos := make([]BookingDTO, len(bookings))
	for i, bk := range bookings {
		dtos[i] = toBookingDTO(bk, viewer)
	}
	return dtos
}

func stateEvent(bk *bookingDomain.Booking) events.BookingStateChangedEvent {
	return events.BookingStateChangedEvent{
		BookingID:  bk.ID(),
		CustomerID: bk.CustomerID(),
		ProviderID: bk.ProviderID(),
		ServiceID:  bk.ServiceID(),
		Status:     string(bk.Status()),
		OccurredAt: bk.UpdatedAt(),
	}
}

func eventTypeFor(target bookingDomain.BookingStatus) string {
	switch target {
	case bookingDomain.StatusConfirmed:
		return events.BookingConfirmed
	case bookingDomain.StatusRejected:
		return events.BookingRejected
	case bookingDomain.StatusCancelled:
		return events.BookingCancelled
	case bookingDomain.StatusInProgress:
		return events.BookingStarted
	case bookingDomain.StatusExpired:
		return events.BookingExpired
	default:
		return events.BookingRequested
	}
}

// notifyCounterparty creates the in-transaction notification addressed to
// the party who did not request the transition. An admin cancellation does
// not say which side the admin acts for, so both parties hear about it.
func (s *BookingService) notifyCounterparty(
	ctx context.Context,
	bk *bookingDomain.Booking,
	actor bookingDomain.Actor,
	target bookingDomain.BookingStatus,
	reason string,
) error {
	var (
		t     notification.Type
		title string
		body  string
	)
	toCustomer, toProvider := true, false

	switch target {
	case bookingDomain.StatusConfirmed:
		t, title, body = notification.TypeBookingConfirmed, "Booking confirmed", "Your booking has been confirmed by the provider"
	case bookingDomain.StatusRejected:
		t, title, body = notification.TypeBookingRejected, "Booking rejected", "Your booking was rejected by the provider"
	case bookingDomain.StatusInProgress:
		t, title, body = notification.TypeBookingStarted, "Service started", "The provider has started working on your booking"
	case bookingDomain.StatusCancelled:
		t, title = notification.TypeBookingCancelled, "Booking cancelled"
		body = "The booking has been cancelled"
		if reason != "" {
			body = fmt.Sprintf("The booking has been cancelled: %s", reason)
		}
		toCustomer = actor.Role != bookingDomain.RoleCustomer
		toProvider = actor.Role != bookingDomain.RoleProvider
	default:
		return nil
	}

	if toCustomer {
		note := notification.New(bk.CustomerID(), t, title, body, bookingPayload(bk))
		if err := s.notifs.CreateNotification(ctx, note); err != nil {
			return err
		}
	}
	if toProvider {
		prov, err := s.providers.GetProvider(ctx, bk.ProviderID())
		if err != nil {
			return err
		}
		note := notification.New(prov.OwnerUserID, t, title, body, bookingPayload(bk))
		if err := s.notifs.CreateNotification(ctx, note); err != nil {
			return err
		}
	}
	return nil
}

func bookingPayload(bk *bookingDomain.Booking) map[string]string {
	return map[string]string{
		"booking_id": bk.ID().String(),
		"status":     string(bk.Status()),
	}
}
