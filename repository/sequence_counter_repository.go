package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/printshop-os/pricing-engine/models"
	"gorm.io/gorm"
)

// SequenceCounterRepositoryImpl implements SequenceCounterRepository
type SequenceCounterRepositoryImpl struct {
	DB *gorm.DB
}

// NewSequenceCounterRepository creates a new repository for named monotonic counters
func NewSequenceCounterRepository(db *gorm.DB) SequenceCounterRepository {
	return &SequenceCounterRepositoryImpl{DB: db}
}

func (r *SequenceCounterRepositoryImpl) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(TxContextKey).(*gorm.DB); ok && tx != nil {
		return tx
	}
	return r.DB
}

// Next atomically increments the named counter and returns the new value.
// The upsert keeps the increment race-free across concurrent transactions.
func (r *SequenceCounterRepositoryImpl) Next(ctx context.Context, name string) (uint64, error) {
	db := r.getDB(ctx)

	var next uint64
	err := db.Raw(`
		INSERT INTO sequence_counters (name, last_value, created_at, updated_at)
		VALUES (?, 1, CURRENT_TIMESTAMP AT TIME ZONE 'UTC', CURRENT_TIMESTAMP AT TIME ZONE 'UTC')
		ON CONFLICT (name) DO UPDATE
		SET last_value = sequence_counters.last_value + 1,
		    updated_at = CURRENT_TIMESTAMP AT TIME ZONE 'UTC'
		RETURNING last_value
	`, name).Scan(&next).Error
	if err != nil {
		return 0, fmt.Errorf("failed to advance sequence counter %s: %w", name, err)
	}

	return next, nil
}

// Current returns the counter's last value, 0 when the counter has never advanced.
func (r *SequenceCounterRepositoryImpl) Current(ctx context.Context, name string) (uint64, error) {
	db := r.getDB(ctx)

	var counter models.SequenceCounter
	err := db.Where("name = ?", name).First(&counter).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return counter.LastValue, nil
}
