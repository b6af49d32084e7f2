package application

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/homease/service-booking/internal/domain/booking"
	"github.com/homease/service-booking/internal/domain/catalog"
	"github.com/homease/service-booking/internal/domain/notification"
	"github.com/homease/service-booking/internal/domain/provider"
	"github.com/homease/service-booking/internal/pkg/apperr"
)

type testEnv struct {
	store   *memStore
	emitter *spyEmitter
	svc     *BookingService

	customerID uuid.UUID
	providerID uuid.UUID
	ownerID    uuid.UUID
	serviceID  uuid.UUID
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		store:      newMemStore(),
		emitter:    &spyEmitter{},
		customerID: uuid.New(),
		providerID: uuid.New(),
		ownerID:    uuid.New(),
		serviceID:  uuid.New(),
	}

	providers := &fakeProviderLookup{providers: map[uuid.UUID]*provider.Provider{
		env.providerID: {
			ID:          env.providerID,
			OwnerUserID: env.ownerID,
			Status:      provider.StatusApproved,
			Phone:       "+919800000000",
			QRCodeURL:   "https://cdn.example.com/qr/provider.png",
		},
	}}
	services := &fakeServiceLookup{services: map[uuid.UUID]*catalog.Service{
		env.serviceID: {
			ID:         env.serviceID,
			ProviderID: env.providerID,
			Name:       "Deep home cleaning",
			Price:      1000,
			Currency:   "INR",
			Active:     true,
		},
	}}

	env.svc = NewBookingService(
		env.store, env.store, env.store,
		providers, services, env.store,
		env.emitter, zap.NewNop(),
	)
	return env
}

func (env *testEnv) createRequest() CreateBookingRequest {
	return CreateBookingRequest{
		ProviderID:  env.providerID,
		ServiceID:   env.serviceID,
		ScheduledAt: time.Now().Add(24 * time.Hour),
		Address: booking.Address{
			Line1:   "14 MG Road",
			City:    "Bengaluru",
			Pincode: "560001",
		},
		Requirements: "two bedrooms, one balcony",
	}
}

func (env *testEnv) createBooking(t *testing.T) *CreateBookingResponse {
	t.Helper()
	resp, err := env.svc.CreateBooking(context.Background(), env.customerID, env.createRequest())
	require.NoError(t, err)
	return resp
}

func (env *testEnv) storedBooking(t *testing.T, id uuid.UUID) *booking.Booking {
	t.Helper()
	bk, err := env.store.FindByID(context.Background(), id)
	require.NoError(t, err)
	return bk
}

func TestCreateBooking(t *testing.T) {
	env := newTestEnv(t)

	resp := env.createBooking(t)

	assert.Equal(t, string(booking.StatusPending), resp.Booking.Status)
	assert.Equal(t, string(booking.PaymentPending), resp.Booking.PaymentStatus)
	assert.Equal(t, int64(1000), resp.Booking.TotalAmount)
	assert.Equal(t, int64(70), resp.Booking.PlatformFee)
	assert.Equal(t, int64(930), resp.Booking.ProviderEarnings)
	assert.Equal(t, "+919800000000", resp.Provider.Phone)

	// The provider gets the request notification in the same unit.
	notes := env.store.notificationsFor(env.ownerID)
	require.Len(t, notes, 1)
	assert.Equal(t, notification.TypeBookingRequested, notes[0].Type)

	assert.Equal(t, []string{"booking.requested"}, env.emitter.emitted())
}

func TestCreateBookingProviderNotApproved(t *testing.T) {
	env := newTestEnv(t)

	suspendedID := uuid.New()
	env.svc.providers.(*fakeProviderLookup).providers[suspendedID] = &provider.Provider{
		ID:          suspendedID,
		OwnerUserID: uuid.New(),
		Status:      provider.StatusSuspended,
	}

	req := env.createRequest()
	req.ProviderID = suspendedID
	_, err := env.svc.CreateBooking(context.Background(), env.customerID, req)
	assert.ErrorIs(t, err, booking.ErrProviderUnavailable)
}

func TestCreateBookingUnknownService(t *testing.T) {
	env := newTestEnv(t)

	req := env.createRequest()
	req.ServiceID = uuid.New()
	_, err := env.svc.CreateBooking(context.Background(), env.customerID, req)
	assert.ErrorIs(t, err, booking.ErrServiceNotFound)
}

func TestCreateBookingDuplicateActive(t *testing.T) {
	env := newTestEnv(t)

	env.createBooking(t)

	_, err := env.svc.CreateBooking(context.Background(), env.customerID, env.createRequest())
	assert.ErrorIs(t, err, booking.ErrDuplicateActiveBooking)

	// Only the first booking's notification survived the rollback.
	assert.Len(t, env.store.notificationsFor(env.ownerID), 1)
}

func TestCreateBookingAllowedAfterTerminal(t *testing.T) {
	env := newTestEnv(t)

	resp := env.createBooking(t)
	_, err := env.svc.Transition(context.Background(), resp.Booking.ID,
		booking.Actor{ID: env.providerID, Role: booking.RoleProvider},
		booking.StatusRejected, "")
	require.NoError(t, err)

	// A rejected booking no longer blocks a fresh request for the same pair.
	_, err = env.svc.CreateBooking(context.Background(), env.customerID, env.createRequest())
	assert.NoError(t, err)
}

func TestTransitionConfirm(t *testing.T) {
	env := newTestEnv(t)
	resp := env.createBooking(t)

	dto, err := env.svc.Transition(context.Background(), resp.Booking.ID,
		booking.Actor{ID: env.providerID, Role: booking.RoleProvider},
		booking.StatusConfirmed, "")
	require.NoError(t, err)
	assert.Equal(t, string(booking.StatusConfirmed), dto.Status)

	// Customer is notified as the counter-party.
	notes := env.store.notificationsFor(env.customerID)
	require.Len(t, notes, 1)
	assert.Equal(t, notification.TypeBookingConfirmed, notes[0].Type)
}

func TestTransitionWrongActor(t *testing.T) {
	env := newTestEnv(t)
	resp := env.createBooking(t)

	// A customer cannot confirm their own booking.
	_, err := env.svc.Transition(context.Background(), resp.Booking.ID,
		booking.Actor{ID: env.customerID, Role: booking.RoleCustomer},
		booking.StatusConfirmed, "")
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	// A different provider cannot confirm it either.
	_, err = env.svc.Transition(context.Background(), resp.Booking.ID,
		booking.Actor{ID: uuid.New(), Role: booking.RoleProvider},
		booking.StatusConfirmed, "")
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	// Status is untouched.
	bk := env.storedBooking(t, resp.Booking.ID)
	assert.Equal(t, booking.StatusPending, bk.Status())
}

func TestTransitionTerminalIsFinal(t *testing.T) {
	env := newTestEnv(t)
	resp := env.createBooking(t)

	_, err := env.svc.Transition(context.Background(), resp.Booking.ID,
		booking.Actor{ID: env.customerID, Role: booking.RoleCustomer},
		booking.StatusCancelled, "changed my mind")
	require.NoError(t, err)

	// No transition out of a terminal state, not even for an admin.
	_, err = env.svc.Transition(context.Background(), resp.Booking.ID,
		booking.Actor{ID: uuid.New(), Role: booking.RoleAdmin},
		booking.StatusConfirmed, "")
	assert.ErrorIs(t, err, booking.ErrTerminalState)
}

func TestTransitionCancelledWithReasonWritesCancellationRow(t *testing.T) {
	env := newTestEnv(t)
	resp := env.createBooking(t)

	_, err := env.svc.Transition(context.Background(), resp.Booking.ID,
		booking.Actor{ID: env.customerID, Role: booking.RoleCustomer},
		booking.StatusCancelled, "found another provider")
	require.NoError(t, err)

	require.Len(t, env.store.cancellations, 1)
	assert.Equal(t, resp.Booking.ID, env.store.cancellations[0].BookingID)
	assert.Equal(t, "found another provider", env.store.cancellations[0].Reason)

	// Provider is the counter-party on a customer cancellation.
	notes := env.store.notificationsFor(env.ownerID)
	require.Len(t, notes, 2) // request + cancellation
	assert.Equal(t, notification.TypeBookingCancelled, notes[1].Type)
}

func TestTransitionAdminCancelNotifiesBothParties(t *testing.T) {
	env := newTestEnv(t)
	resp := env.createBooking(t)

	_, err := env.svc.Transition(context.Background(), resp.Booking.ID,
		booking.Actor{ID: uuid.New(), Role: booking.RoleAdmin},
		booking.StatusCancelled, "provider account suspended")
	require.NoError(t, err)

	// The engine cannot tell which side the admin acted for.
	custNotes := env.store.notificationsFor(env.customerID)
	require.NotEmpty(t, custNotes)
	assert.Equal(t, notification.TypeBookingCancelled, custNotes[len(custNotes)-1].Type)

	provNotes := env.store.notificationsFor(env.ownerID)
	require.NotEmpty(t, provNotes)
	assert.Equal(t, notification.TypeBookingCancelled, provNotes[len(provNotes)-1].Type)
}

func TestTransitionCompletedBlockedOnGenericPath(t *testing.T) {
	env := newTestEnv(t)
	resp := env.createBooking(t)

	_, err := env.svc.Transition(context.Background(), resp.Booking.ID,
		booking.Actor{ID: env.providerID, Role: booking.RoleProvider},
		booking.StatusCompleted, "")
	assert.ErrorIs(t, err, booking.ErrCompletionRequired)

	// The message never claims a state the booking is not in.
	assert.NotContains(t, err.Error(), string(booking.StatusInProgress))
}

func TestTransitionAtomicRollback(t *testing.T) {
	env := newTestEnv(t)
	resp := env.createBooking(t)

	env.store.failCreateNotification = true
	_, err := env.svc.Transition(context.Background(), resp.Booking.ID,
		booking.Actor{ID: env.providerID, Role: booking.RoleProvider},
		booking.StatusConfirmed, "")
	require.Error(t, err)

	// The status write rolled back with the notification write.
	bk := env.storedBooking(t, resp.Booking.ID)
	assert.Equal(t, booking.StatusPending, bk.Status())
	assert.Empty(t, env.store.notificationsFor(env.customerID))
	assert.Equal(t, []string{"booking.requested"}, env.emitter.emitted())
}

func TestTransitionStaleVersionConflicts(t *testing.T) {
	env := newTestEnv(t)
	resp := env.createBooking(t)

	// A copy loaded before a concurrent transition carries a stale version.
	stale := env.storedBooking(t, resp.Booking.ID)

	_, err := env.svc.Transition(context.Background(), resp.Booking.ID,
		booking.Actor{ID: env.providerID, Role: booking.RoleProvider},
		booking.StatusConfirmed, "")
	require.NoError(t, err)

	require.NoError(t, stale.TransitionTo(booking.StatusCancelled,
		booking.Actor{ID: env.customerID, Role: booking.RoleCustomer}))
	stale.IncrementVersion()
	err = env.store.Update(context.Background(), stale)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	// The committed transition stands.
	assert.Equal(t, booking.StatusConfirmed, env.storedBooking(t, resp.Booking.ID).Status())
}

func TestTransitionProviderBusy(t *testing.T) {
	env := newTestEnv(t)

	// First booking goes in progress.
	first := env.createBooking(t)
	providerActor := booking.Actor{ID: env.providerID, Role: booking.RoleProvider}
	_, err := env.svc.Transition(context.Background(), first.Booking.ID, providerActor, booking.StatusConfirmed, "")
	require.NoError(t, err)
	_, err = env.svc.Transition(context.Background(), first.Booking.ID, providerActor, booking.StatusInProgress, "")
	require.NoError(t, err)

	// A second booking for the same provider can still be created and
	// confirmed while the first is in progress.
	otherCustomer := uuid.New()
	second, err := env.svc.CreateBooking(context.Background(), otherCustomer, env.createRequest())
	require.NoError(t, err)
	_, err = env.svc.Transition(context.Background(), second.Booking.ID, providerActor, booking.StatusConfirmed, "")
	require.NoError(t, err)

	// But it cannot start until the first one finishes.
	_, err = env.svc.Transition(context.Background(), second.Booking.ID, providerActor, booking.StatusInProgress, "")
	assert.ErrorIs(t, err, booking.ErrProviderBusy)
}

func TestRecordPayment(t *testing.T) {
	env := newTestEnv(t)
	resp := env.createBooking(t)

	dto, err := env.svc.RecordPayment(context.Background(), resp.Booking.ID,
		booking.Actor{ID: env.providerID, Role: booking.RoleProvider},
		booking.PaymentSuccess)
	require.NoError(t, err)
	assert.Equal(t, string(booking.PaymentSuccess), dto.PaymentStatus)

	// Payment status is independent of workflow status.
	assert.Equal(t, string(booking.StatusPending), dto.Status)

	_, err = env.svc.RecordPayment(context.Background(), resp.Booking.ID,
		booking.Actor{ID: env.customerID, Role: booking.RoleCustomer},
		booking.PaymentSuccess)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
}

func TestApplyPaymentResult(t *testing.T) {
	env := newTestEnv(t)
	resp := env.createBooking(t)

	err := env.svc.ApplyPaymentResult(context.Background(), resp.Booking.ID, booking.PaymentFailed)
	require.NoError(t, err)

	bk := env.storedBooking(t, resp.Booking.ID)
	assert.Equal(t, booking.PaymentFailed, bk.PaymentStatus())
}

func TestGetBookingRedactsCodeForProvider(t *testing.T) {
	env := newTestEnv(t)
	resp := env.createBooking(t)
	providerActor := booking.Actor{ID: env.providerID, Role: booking.RoleProvider}

	_, err := env.svc.Transition(context.Background(), resp.Booking.ID, providerActor, booking.StatusConfirmed, "")
	require.NoError(t, err)
	_, err = env.svc.InitiateCompletion(context.Background(), resp.Booking.ID, providerActor)
	require.NoError(t, err)

	providerView, err := env.svc.GetBooking(context.Background(), resp.Booking.ID, providerActor)
	require.NoError(t, err)
	assert.Nil(t, providerView.CompletionCode)

	customerView, err := env.svc.GetBooking(context.Background(), resp.Booking.ID,
		booking.Actor{ID: env.customerID, Role: booking.RoleCustomer})
	require.NoError(t, err)
	require.NotNil(t, customerView.CompletionCode)
	assert.Len(t, *customerView.CompletionCode, 6)
}

func TestGetBookingForbiddenForStranger(t *testing.T) {
	env := newTestEnv(t)
	resp := env.createBooking(t)

	_, err := env.svc.GetBooking(context.Background(), resp.Booking.ID,
		booking.Actor{ID: uuid.New(), Role: booking.RoleCustomer})
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
}

func TestComputeInvoice(t *testing.T) {
	env := newTestEnv(t)
	resp := env.createBooking(t)

	inv, err := env.svc.ComputeInvoice(context.Background(), resp.Booking.ID,
		booking.Actor{ID: env.customerID, Role: booking.RoleCustomer})
	require.NoError(t, err)

	assert.Equal(t, int64(1000), inv.Subtotal)
	assert.Equal(t, int64(70), inv.PlatformFee)
	assert.Equal(t, int64(930), inv.ProviderEarnings)
	assert.Equal(t, int64(80), inv.Tax)
	assert.Equal(t, int64(1080), inv.GrandTotal)
	assert.Equal(t, "INR", inv.Currency)
}

func TestGetBookingStats(t *testing.T) {
	env := newTestEnv(t)
	resp := env.createBooking(t)
	_, err := env.svc.Transition(context.Background(), resp.Booking.ID,
		booking.Actor{ID: env.providerID, Role: booking.RoleProvider},
		booking.StatusConfirmed, "")
	require.NoError(t, err)

	otherCustomer := uuid.New()
	_, err = env.svc.CreateBooking(context.Background(), otherCustomer, env.createRequest())
	require.NoError(t, err)

	stats, err := env.svc.GetBookingStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalBookings)
	assert.Equal(t, int64(1), stats.ByStatus[string(booking.StatusConfirmed)])
	assert.Equal(t, int64(1), stats.ByStatus[string(booking.StatusPending)])
}
