package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProviderAccountModel holds the provider's cumulative revenue counter.
type ProviderAccountModel struct {
	ProviderID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	TotalRevenue int64     `gorm:"not null;default:0"`
}

// TableName returns the table name for the GORM model.
func (ProviderAccountModel) TableName() string {
	return "provider_accounts"
}

// CustomerAccountModel holds the customer's cumulative spend counter.
type CustomerAccountModel struct {
	UserID     uuid.UUID `gorm:"type:uuid;primaryKey"`
	TotalSpend int64     `gorm:"not null;default:0"`
}

// TableName returns the table name for the GORM model.
func (CustomerAccountModel) TableName() string {
	return "customer_accounts"
}

// GormFinancialCounters implements the financial-counter collaborator over
// GORM. Increments are upserts so the first completed booking creates the
// row; inside a transaction they commit or roll back with it.
type GormFinancialCounters struct {
	db *gorm.DB
}

// NewGormFinancialCounters creates a new GormFinancialCounters.
func NewGormFinancialCounters(db *gorm.DB) *GormFinancialCounters {
	return &GormFinancialCounters{db: db}
}

// IncrementProviderRevenue adds amount to the provider's cumulative revenue.
func (r *GormFinancialCounters) IncrementProviderRevenue(ctx context.Context, providerID uuid.UUID, amount int64) error {
	err := conn(ctx, r.db).Exec(`
		INSERT INTO provider_accounts (provider_id, total_revenue)
		VALUES (?, ?)
		ON CONFLICT (provider_id) DO UPDATE SET total_revenue = provider_accounts.total_revenue + EXCLUDED.total_revenue`,
		providerID, amount).Error
	if err != nil {
		return fmt.Errorf("failed to increment provider revenue: %w", err)
	}
	return nil
}

// IncrementCustomerSpend adds amount to the customer's cumulative spend.
func (r *GormFinancialCounters) IncrementCustomerSpend(ctx context.Context, userID uuid.UUID, amount int64) error {
	err := conn(ctx, r.db).Exec(`
		INSERT INTO customer_accounts (user_id, total_spend)
		VALUES (?, ?)
		ON CONFLICT (user_id) DO UPDATE SET total_spend = customer_accounts.total_spend + EXCLUDED.total_spend`,
		userID, amount).Error
	if err != nil {
		return fmt.Errorf("failed to increment customer spend: %w", err)
	}
	return nil
}
