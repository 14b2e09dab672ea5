// Package repository provides the data access layer for pricing rules,
// calculation history, and the ruleset generation counter
package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

const createBatchSize = 100

// BaseRepository carries the shared persistence plumbing of the concrete
// repositories: transaction-aware handle selection and the generic write
// paths.
type BaseRepository[T any, F any] struct {
	DB *gorm.DB
}

func NewBaseRepository[T any, F any](db *gorm.DB) *BaseRepository[T, F] {
	return &BaseRepository[T, F]{
		DB: db,
	}
}

// getDB returns the transaction bound to the context when one is in flight,
// the root handle otherwise.
func (r *BaseRepository[T, F]) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(TxContextKey).(*gorm.DB); ok && tx != nil {
		return tx
	}
	return r.DB
}

// write runs fn on the ambient transaction when the context carries one, so
// multi-repository mutations commit or roll back together. Without one, fn
// gets its own transaction.
func (r *BaseRepository[T, F]) write(ctx context.Context, fn func(*gorm.DB) error) error {
	if tx, ok := ctx.Value(TxContextKey).(*gorm.DB); ok && tx != nil {
		return fn(tx)
	}
	return r.DB.Transaction(fn)
}

// ByID retrieves a row by its surrogate primary key. A missing row is
// (nil, nil), not an error.
func (r *BaseRepository[T, F]) ByID(ctx context.Context, id uint) (*T, error) {
	var entity T
	if err := r.getDB(ctx).First(&entity, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load row %d: %w", id, err)
	}
	return &entity, nil
}

// Save inserts one row.
func (r *BaseRepository[T, F]) Save(ctx context.Context, entity *T) error {
	return r.write(ctx, func(db *gorm.DB) error {
		if err := db.Create(entity).Error; err != nil {
			return fmt.Errorf("failed to insert row: %w", err)
		}
		return nil
	})
}

// SaveBatch inserts rows in batches under a single transaction.
func (r *BaseRepository[T, F]) SaveBatch(ctx context.Context, entities []*T) error {
	if len(entities) == 0 {
		return nil
	}
	return r.write(ctx, func(db *gorm.DB) error {
		if err := db.CreateInBatches(entities, createBatchSize).Error; err != nil {
			return fmt.Errorf("failed to insert batch: %w", err)
		}
		return nil
	})
}

// WithTransaction runs fn with a transaction bound to the context, so every
// repository call inside joins it. A nil handle runs fn directly, in-memory
// repositories ignore transaction context anyway.
func WithTransaction(ctx context.Context, db *gorm.DB, fn func(context.Context) error) error {
	if db == nil {
		return fn(ctx)
	}
	return db.Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, TxContextKey, tx))
	})
}
