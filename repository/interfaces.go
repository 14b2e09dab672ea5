// Package repository provides the data access layer for pricing rules,
// calculation history, and the ruleset generation counter
package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/printshop-os/pricing-engine/models"
)

type contextKey string

// TxContextKey carries an ambient gorm transaction; repositories join it
// instead of opening their own.
const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// PricingRuleRepository defines operations for versioned pricing rules.
// Versions are immutable once written; the only permitted update is flipping
// a superseded row's is_current flag off.
type PricingRuleRepository interface {
	Repository[models.PricingRule, models.PricingRuleFilter]
	CurrentByRuleID(ctx context.Context, ruleID uuid.UUID) (*models.PricingRule, error)
	ByRuleIDAndVersion(ctx context.Context, ruleID uuid.UUID, version int) (*models.PricingRule, error)
	VersionsByRuleID(ctx context.Context, ruleID uuid.UUID) ([]*models.PricingRule, error)
	MaxVersion(ctx context.Context, ruleID uuid.UUID) (int, error)
	ListMatchable(ctx context.Context) ([]*models.PricingRule, error)
	ClearCurrent(ctx context.Context, ruleID uuid.UUID) error
}

// CalculationHistoryRepository defines operations for the append-only
// calculation audit log. No update, no delete.
type CalculationHistoryRepository interface {
	Repository[models.CalculationHistory, models.CalculationHistoryFilter]
}

// SequenceCounterRepository defines operations for named monotonic counters
type SequenceCounterRepository interface {
	Next(ctx context.Context, name string) (uint64, error)
	Current(ctx context.Context, name string) (uint64, error)
}
