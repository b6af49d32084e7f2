package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	bookingDomain "github.com/homease/service-booking/internal/domain/booking"
	"github.com/homease/service-booking/internal/pkg/apperr"
)

// BookingModel is the GORM model for the bookings table.
type BookingModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	CustomerID uuid.UUID `gorm:"type:uuid;index;not null"`
	ProviderID uuid.UUID `gorm:"type:uuid;index;not null"`
	ServiceID  uuid.UUID `gorm:"type:uuid;index;not null"`

	Status        string `gorm:"not null;size:30;index"`
	PaymentStatus string `gorm:"not null;size:30;default:'pending'"`

	TotalAmount      int64  `gorm:"not null"`
	PlatformFee      int64  `gorm:"not null"`
	ProviderEarnings int64  `gorm:"not null"`
	Currency         string `gorm:"not null;size:3;default:'INR'"`

	ScheduledAt  time.Time `gorm:"not null"`
	AddressLine1 string    `gorm:"not null;size:500"`
	City         string    `gorm:"size:100"`
	Pincode      string    `gorm:"size:10"`
	Requirements string    `gorm:"size:1000"`

	CompletionCode *string `gorm:"size:6"`

	Version   int64     `gorm:"not null;default:1"`
	CreatedAt time.Time `gorm:"not null;index"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (BookingModel) TableName() string {
	return "bookings"
}

// CancellationModel is the GORM model for the booking_cancellations table.
type CancellationModel struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	BookingID   uuid.UUID `gorm:"type:uuid;uniqueIndex;not null"`
	CancelledBy uuid.UUID `gorm:"type:uuid;not null"`
	Role        string    `gorm:"not null;size:20"`
	Reason      string    `gorm:"size:500"`
	CreatedAt   time.Time `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (CancellationModel) TableName() string {
	return "booking_cancellations"
}

// activeStatuses are the non-terminal workflow states that make a
// (customer, service) pair count as already booked.
var activeStatuses = []string{
	string(bookingDomain.StatusPending),
	string(bookingDomain.StatusConfirmed),
	string(bookingDomain.StatusInProgress),
}

// GormBookingRepository is the GORM-based implementation of the booking
// Repository. All methods join an ambient transaction when one is active.
type GormBookingRepository struct {
	db *gorm.DB
}

// NewGormBookingRepository creates a new GormBookingRepository.
func NewGormBookingRepository(db *gorm.DB) *GormBookingRepository {
	return &GormBookingRepository{db: db}
}

// FindByID retrieves a booking by its unique identifier.
func (r *GormBookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*bookingDomain.Booking, error) {
	var model BookingModel
	if err := conn(ctx, r.db).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NewNotFoundError("Booking", id.String())
		}
		return nil, fmt.Errorf("failed to find booking by ID: %w", err)
	}
	return toDomainBooking(&model)
}

// FindByIDForUpdate retrieves a booking and locks its row until the
// surrounding transaction commits or rolls back.
func (r *GormBookingRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*bookingDomain.Booking, error) {
	var model BookingModel
	err := conn(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NewNotFoundError("Booking", id.String())
		}
		if translated := translateLockError(err); apperr.IsRetryable(translated) {
			return nil, translated
		}
		return nil, fmt.Errorf("failed to lock booking row: %w", err)
	}
	return toDomainBooking(&model)
}

// FindByCustomerID retrieves a customer's bookings with pagination.
func (r *GormBookingRepository) FindByCustomerID(ctx context.Context, customerID uuid.UUID, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	return r.findPage(ctx, "customer_id = ?", customerID, page, limit)
}

// FindByProviderID retrieves a provider's bookings with pagination.
func (r *GormBookingRepository) FindByProviderID(ctx context.Context, providerID uuid.UUID, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	return r.findPage(ctx, "provider_id = ?", providerID, page, limit)
}

func (r *GormBookingRepository) findPage(ctx context.Context, cond string, arg interface{}, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	db := conn(ctx, r.db)

	var total int64
	if err := db.Model(&BookingModel{}).Where(cond, arg).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count bookings: %w", err)
	}

	var models []BookingModel
	offset := (page - 1) * limit
	if err := db.
		Where(cond, arg).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to find bookings: %w", err)
	}

	return toDomainBookings(models, total)
}

// ListAll retrieves all bookings with pagination (admin).
func (r *GormBookingRepository) ListAll(ctx context.Context, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	db := conn(ctx, r.db)

	var total int64
	if err := db.Model(&BookingModel{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count bookings: %w", err)
	}

	var models []BookingModel
	offset := (page - 1) * limit
	if err := db.
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list bookings: %w", err)
	}

	return toDomainBookings(models, total)
}

// CountByStatus returns booking counts grouped by status (admin).
func (r *GormBookingRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	type statusCount struct {
		Status string
		Count  int64
	}
	var results []statusCount
	if err := conn(ctx, r.db).Model(&BookingModel{}).
		Select("status, count(*) as count").
		Group("status").
		Find(&results).Error; err != nil {
		return nil, fmt.Errorf("failed to count by status: %w", err)
	}

	counts := make(map[string]int64)
	for _, sc := range results {
		counts[sc.Status] = sc.Count
	}
	return counts, nil
}

// HasActiveBooking reports whether the customer already has a booking for
// the service in a non-terminal state. Must run inside the same transaction
// as the insert it guards to close the race window.
func (r *GormBookingRepository) HasActiveBooking(ctx context.Context, customerID, serviceID uuid.UUID) (bool, error) {
	var count int64
	err := conn(ctx, r.db).Model(&BookingModel{}).
		Where("customer_id = ? AND service_id = ? AND status IN ?", customerID, serviceID, activeStatuses).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check active bookings: %w", err)
	}
	return count > 0, nil
}

// ProviderHasInProgress reports whether the provider has a booking in
// progress other than the one given.
func (r *GormBookingRepository) ProviderHasInProgress(ctx context.Context, providerID, excludeBookingID uuid.UUID) (bool, error) {
	var count int64
	err := conn(ctx, r.db).Model(&BookingModel{}).
		Where("provider_id = ? AND status = ? AND id <> ?",
			providerID, string(bookingDomain.StatusInProgress), excludeBookingID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check provider workload: %w", err)
	}
	return count > 0, nil
}

// FindStalePendingIDs returns IDs of pending bookings created before the
// cutoff, oldest first.
func (r *GormBookingRepository) FindStalePendingIDs(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := conn(ctx, r.db).Model(&BookingModel{}).
		Where("status = ? AND created_at < ?", string(bookingDomain.StatusPending), cutoff).
		Order("created_at ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find stale pending bookings: %w", err)
	}
	return ids, nil
}

// Create persists a new booking. The partial unique index on active
// (customer, service) pairs backstops the in-transaction uniqueness check;
// a violation surfaces as the duplicate-booking error.
func (r *GormBookingRepository) Create(ctx context.Context, bk *bookingDomain.Booking) error {
	model := toBookingModel(bk)
	if err := conn(ctx, r.db).Create(model).Error; err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return bookingDomain.ErrDuplicateActiveBooking
		}
		return fmt.Errorf("failed to create booking: %w", err)
	}
	return nil
}

// Update persists changes to an existing booking with optimistic locking.
func (r *GormBookingRepository) Update(ctx context.Context, bk *bookingDomain.Booking) error {
	model := toBookingModel(bk)

	// Only update if the version matches (current version - 1, since
	// IncrementVersion was called before persisting).
	expectedVersion := bk.Version() - 1
	result := conn(ctx, r.db).
		Model(&BookingModel{}).
		Where("id = ? AND version = ?", model.ID, expectedVersion).
		Updates(map[string]interface{}{
			"status":          model.Status,
			"payment_status":  model.PaymentStatus,
			"completion_code": model.CompletionCode,
			"version":         model.Version,
			"updated_at":      model.UpdatedAt,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to update booking: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.NewConflictError("booking was modified by another transaction")
	}
	return nil
}

// CreateCancellation persists a cancellation record.
func (r *GormBookingRepository) CreateCancellation(ctx context.Context, c *bookingDomain.Cancellation) error {
	model := CancellationModel{
		ID:          c.ID,
		BookingID:   c.BookingID,
		CancelledBy: c.CancelledBy,
		Role:        string(c.Role),
		Reason:      c.Reason,
		CreatedAt:   c.CreatedAt,
	}
	if err := conn(ctx, r.db).Create(&model).Error; err != nil {
		return fmt.Errorf("failed to create cancellation: %w", err)
	}
	return nil
}

// --- Conversion Helpers ---

func toBookingModel(bk *bookingDomain.Booking) *BookingModel {
	addr := bk.Address()
	return &BookingModel{
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
		AddressLine1:     addr.Line1,
		City:             addr.City,
		Pincode:          addr.Pincode,
		Requirements:     bk.Requirements(),
		CompletionCode:   bk.CompletionCode(),
		Version:          bk.Version(),
		CreatedAt:        bk.CreatedAt(),
		UpdatedAt:        bk.UpdatedAt(),
	}
}

func toDomainBooking(m *BookingModel) (*bookingDomain.Booking, error) {
	status, err := bookingDomain.ParseBookingStatus(m.Status)
	if err != nil {
		return nil, err
	}

	return bookingDomain.ReconstructBooking(
		m.ID,
		m.CustomerID,
		m.ProviderID,
		m.ServiceID,
		status,
		bookingDomain.PaymentStatus(m.PaymentStatus),
		m.TotalAmount,
		m.PlatformFee,
		m.ProviderEarnings,
		m.Currency,
		m.ScheduledAt,
		bookingDomain.Address{Line1: m.AddressLine1, City: m.City, Pincode: m.Pincode},
		m.Requirements,
		m.CompletionCode,
		m.Version,
		m.CreatedAt,
		m.UpdatedAt,
	), nil
}

func toDomainBookings(models []BookingModel, total int64) ([]*bookingDomain.Booking, int64, error) {
	bookings := make([]*bookingDomain.Booking, len(models))
	for i, m := range models {
		bk, err := toDomainBooking(&m)
		if err != nil {
			return nil, 0, err
		}
		bookings[i] = bk
	}
	return bookings, total, nil
}
