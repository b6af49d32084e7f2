package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/homease/service-booking/internal/pkg/apperr"
)

type txKey struct{}

// GormTxManager runs callbacks inside a single database transaction. The
// transaction handle travels in the context so every repository call made
// within the callback joins the same unit of work.
type GormTxManager struct {
	db *gorm.DB
}

// NewGormTxManager creates a GormTxManager.
func NewGormTxManager(db *gorm.DB) *GormTxManager {
	return &GormTxManager{db: db}
}

// WithinTx executes fn inside a transaction. Row locks taken inside are
// bounded by lock_timeout so a contended transition fails fast with a
// retryable conflict error instead of blocking indefinitely.
func (m *GormTxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("SET LOCAL lock_timeout = '3s'").Error; err != nil {
			return err
		}
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
	return translateLockError(err)
}

// conn returns the transaction handle from ctx if one is active, the root
// connection otherwise.
func conn(ctx context.Context, fallback *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return fallback.WithContext(ctx)
}

// translateLockError maps lock-acquisition and serialization failures to the
// retryable conflict kind; everything else passes through unchanged.
func translateLockError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "55P03": // lock_not_available
			return apperr.Wrap(apperr.KindConflict, "CONFLICT", "could not acquire booking lock in time", err)
		case "40001": // serialization_failure
			return apperr.Wrap(apperr.KindConflict, "CONFLICT", "transaction serialization failure", err)
		case "40P01": // deadlock_detected
			return apperr.Wrap(apperr.KindConflict, "CONFLICT", "deadlock detected", err)
		}
	}
	return err
}
