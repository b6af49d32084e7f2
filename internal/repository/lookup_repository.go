package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/homease/service-booking/internal/domain/catalog"
	"github.com/homease/service-booking/internal/domain/provider"
	"github.com/homease/service-booking/internal/pkg/apperr"
)

// ProviderModel is the read-only GORM view of the providers table, owned by
// the identity/provider service.
type ProviderModel struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	OwnerUserID uuid.UUID `gorm:"type:uuid;not null"`
	Status      string    `gorm:"not null;size:30"`
	Phone       string    `gorm:"size:20"`
	QRCodeURL   string    `gorm:"size:500"`
}

// TableName returns the table name for the GORM model.
func (ProviderModel) TableName() string {
	return "providers"
}

// ServiceModel is the read-only GORM view of the services table, owned by
// the catalog service.
type ServiceModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	ProviderID uuid.UUID `gorm:"type:uuid;index;not null"`
	Name       string    `gorm:"not null;size:200"`
	Price      int64     `gorm:"not null"`
	Currency   string    `gorm:"not null;size:3;default:'INR'"`
	Active     bool      `gorm:"not null;default:true"`
}

// TableName returns the table name for the GORM model.
func (ServiceModel) TableName() string {
	return "services"
}

// GormProviderLookup implements the provider lookup collaborator.
type GormProviderLookup struct {
	db *gorm.DB
}

// NewGormProviderLookup creates a new GormProviderLookup.
func NewGormProviderLookup(db *gorm.DB) *GormProviderLookup {
	return &GormProviderLookup{db: db}
}

// GetProvider returns the provider, or a not-found error.
func (r *GormProviderLookup) GetProvider(ctx context.Context, id uuid.UUID) (*provider.Provider, error) {
	var model ProviderModel
	if err := conn(ctx, r.db).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NewNotFoundError("Provider", id.String())
		}
		return nil, fmt.Errorf("failed to find provider: %w", err)
	}
	return &provider.Provider{
		ID:          model.ID,
		OwnerUserID: model.OwnerUserID,
		Status:      provider.Status(model.Status),
		Phone:       model.Phone,
		QRCodeURL:   model.QRCodeURL,
	}, nil
}

// GormServiceLookup implements the service lookup collaborator.
type GormServiceLookup struct {
	db *gorm.DB
}

// NewGormServiceLookup creates a new GormServiceLookup.
func NewGormServiceLookup(db *gorm.DB) *GormServiceLookup {
	return &GormServiceLookup{db: db}
}

// GetService returns the service if it belongs to the provider.
func (r *GormServiceLookup) GetService(ctx context.Context, id, providerID uuid.UUID) (*catalog.Service, error) {
	var model ServiceModel
	err := conn(ctx, r.db).Where("id = ? AND provider_id = ?", id, providerID).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NewNotFoundError("Service", id.String())
		}
		return nil, fmt.Errorf("failed to find service: %w", err)
	}
	return &catalog.Service{
		ID:         model.ID,
		ProviderID: model.ProviderID,
		Name:       model.Name,
		Price:      model.Price,
		Currency:   model.Currency,
		Active:     model.Active,
	}, nil
}
