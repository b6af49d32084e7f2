package application

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/homease/service-booking/internal/domain/booking"
	"github.com/homease/service-booking/internal/domain/catalog"
	"github.com/homease/service-booking/internal/domain/notification"
	"github.com/homease/service-booking/internal/domain/provider"
	"github.com/homease/service-booking/internal/pkg/apperr"
)

// memStore backs the application tests: one in-memory world implementing
// Repository, Sink, FinancialCounters and TxManager with copy-in/copy-out
// semantics so a failed transaction leaves no partial writes, matching what
// the real Postgres-backed transaction guarantees.
type memStore struct {
	mu            sync.Mutex
	bookings      map[uuid.UUID]*booking.Booking
	cancellations []*booking.Cancellation
	notifications []*notification.Notification
	revenue       map[uuid.UUID]int64
	spend         map[uuid.UUID]int64

	failCreateNotification bool
}

func newMemStore() *memStore {
	return &memStore{
		bookings: make(map[uuid.UUID]*booking.Booking),
		revenue:  make(map[uuid.UUID]int64),
		spend:    make(map[uuid.UUID]int64),
	}
}

func cloneBooking(b *booking.Booking) *booking.Booking {
	return booking.ReconstructBooking(
		b.ID(), b.CustomerID(), b.ProviderID(), b.ServiceID(),
		b.Status(), b.PaymentStatus(),
		b.TotalAmount(), b.PlatformFee(), b.ProviderEarnings(), b.Currency(),
		b.ScheduledAt(), b.Address(), b.Requirements(),
		b.CompletionCode(), b.Version(), b.CreatedAt(), b.UpdatedAt(),
	)
}

func (m *memStore) FindByID(_ context.Context, id uuid.UUID) (*booking.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bk, ok := m.bookings[id]
	if !ok {
		return nil, apperr.NewNotFoundError("booking", id.String())
	}
	return cloneBooking(bk), nil
}

func (m *memStore) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*booking.Booking, error) {
	return m.FindByID(ctx, id)
}

func (m *memStore) FindByCustomerID(_ context.Context, customerID uuid.UUID, _, _ int) ([]*booking.Booking, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*booking.Booking
	for _, bk := range m.bookings {
		if bk.CustomerID() == customerID {
			out = append(out, cloneBooking(bk))
		}
	}
	return out, int64(len(out)), nil
}

func (m *memStore) FindByProviderID(_ context.Context, providerID uuid.UUID, _, _ int) ([]*booking.Booking, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*booking.Booking
	for _, bk := range m.bookings {
		if bk.ProviderID() == providerID {
			out = append(out, cloneBooking(bk))
		}
	}
	return out, int64(len(out)), nil
}

func (m *memStore) ListAll(_ context.Context, _, _ int) ([]*booking.Booking, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*booking.Booking, 0, len(m.bookings))
	for _, bk := range m.bookings {
		out = append(out, cloneBooking(bk))
	}
	return out, int64(len(out)), nil
}

func (m *memStore) CountByStatus(_ context.Context) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[string]int64)
	for _, bk := range m.bookings {
		counts[string(bk.Status())]++
	}
	return counts, nil
}

func (m *memStore) HasActiveBooking(_ context.Context, customerID, serviceID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, bk := range m.bookings {
		if bk.CustomerID() == customerID && bk.ServiceID() == serviceID && !bk.Status().IsTerminal() {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) ProviderHasInProgress(_ context.Context, providerID, excludeBookingID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, bk := range m.bookings {
		if bk.ProviderID() == providerID && bk.ID() != excludeBookingID && bk.Status() == booking.StatusInProgress {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) FindStalePendingIDs(_ context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []uuid.UUID
	for _, bk := range m.bookings {
		if bk.Status() == booking.StatusPending && bk.CreatedAt().Before(cutoff) {
			ids = append(ids, bk.ID())
			if len(ids) == limit {
				break
			}
		}
	}
	return ids, nil
}

func (m *memStore) Create(_ context.Context, bk *booking.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookings[bk.ID()] = cloneBooking(bk)
	return nil
}

func (m *memStore) Update(_ context.Context, bk *booking.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.bookings[bk.ID()]
	if !ok {
		return apperr.NewNotFoundError("booking", bk.ID().String())
	}
	// Same optimistic check the database makes: the write carries the
	// already-bumped version and only lands on its predecessor.
	if cur.Version() != bk.Version()-1 {
		return apperr.NewConflictError("booking was modified by another transaction")
	}
	m.bookings[bk.ID()] = cloneBooking(bk)
	return nil
}

func (m *memStore) CreateCancellation(_ context.Context, c *booking.Cancellation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancellations = append(m.cancellations, c)
	return nil
}

func (m *memStore) CreateNotification(_ context.Context, n *notification.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreateNotification {
		return apperr.Wrap(apperr.KindInternal, "NOTIFY_FAILED", "notification write failed", nil)
	}
	m.notifications = append(m.notifications, n)
	return nil
}

func (m *memStore) IncrementProviderRevenue(_ context.Context, providerID uuid.UUID, amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revenue[providerID] += amount
	return nil
}

func (m *memStore) IncrementCustomerSpend(_ context.Context, userID uuid.UUID, amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.spend[userID] += amount
	return nil
}

// WithinTx snapshots the whole store and restores it when fn fails, so the
// engine's all-or-nothing expectations hold against the fake too.
func (m *memStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	snapBookings := make(map[uuid.UUID]*booking.Booking, len(m.bookings))
	for id, bk := range m.bookings {
		snapBookings[id] = bk
	}
	snapCancellations := len(m.cancellations)
	snapNotifications := len(m.notifications)
	snapRevenue := make(map[uuid.UUID]int64, len(m.revenue))
	for id, v := range m.revenue {
		snapRevenue[id] = v
	}
	snapSpend := make(map[uuid.UUID]int64, len(m.spend))
	for id, v := range m.spend {
		snapSpend[id] = v
	}
	m.mu.Unlock()

	if err := fn(ctx); err != nil {
		m.mu.Lock()
		m.bookings = snapBookings
		m.cancellations = m.cancellations[:snapCancellations]
		m.notifications = m.notifications[:snapNotifications]
		m.revenue = snapRevenue
		m.spend = snapSpend
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memStore) notificationsFor(userID uuid.UUID) []*notification.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*notification.Notification
	for _, n := range m.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out
}

// fakeProviderLookup serves provider records keyed by ID.
type fakeProviderLookup struct {
	providers map[uuid.UUID]*provider.Provider
}

func (f *fakeProviderLookup) GetProvider(_ context.Context, id uuid.UUID) (*provider.Provider, error) {
	p, ok := f.providers[id]
	if !ok {
		return nil, apperr.NewNotFoundError("provider", id.String())
	}
	return p, nil
}

// fakeServiceLookup serves catalog services keyed by ID.
type fakeServiceLookup struct {
	services map[uuid.UUID]*catalog.Service
}

func (f *fakeServiceLookup) GetService(_ context.Context, id, providerID uuid.UUID) (*catalog.Service, error) {
	svc, ok := f.services[id]
	if !ok || svc.ProviderID != providerID {
		return nil, apperr.NewNotFoundError("service", id.String())
	}
	return svc, nil
}

// spyEmitter records emitted lifecycle events.
type spyEmitter struct {
	mu     sync.Mutex
	events []string
}

func (s *spyEmitter) Emit(_ context.Context, eventType string, _ string, _ interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, eventType)
}

func (s *spyEmitter) emitted() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.events...)
}
