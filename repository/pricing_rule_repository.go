package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/printshop-os/pricing-engine/models"
	"gorm.io/gorm"
)

// PricingRuleRepositoryImpl implements PricingRuleRepository
type PricingRuleRepositoryImpl struct {
	*BaseRepository[models.PricingRule, models.PricingRuleFilter]
}

// NewPricingRuleRepository creates a new repository for versioned pricing rules
func NewPricingRuleRepository(db *gorm.DB) PricingRuleRepository {
	return &PricingRuleRepositoryImpl{
		BaseRepository: NewBaseRepository[models.PricingRule, models.PricingRuleFilter](db),
	}
}

// CurrentByRuleID returns the current version of a rule, or nil when the rule is unknown.
func (r *PricingRuleRepositoryImpl) CurrentByRuleID(ctx context.Context, ruleID uuid.UUID) (*models.PricingRule, error) {
	db := r.getDB(ctx)

	var rule models.PricingRule
	err := db.Where("rule_id = ? AND is_current = ?", ruleID, true).First(&rule).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rule, nil
}

// ByRuleIDAndVersion returns one specific version of a rule, or nil when absent.
func (r *PricingRuleRepositoryImpl) ByRuleIDAndVersion(ctx context.Context, ruleID uuid.UUID, version int) (*models.PricingRule, error) {
	db := r.getDB(ctx)

	var rule models.PricingRule
	err := db.Where("rule_id = ? AND version = ?", ruleID, version).First(&rule).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rule, nil
}

// VersionsByRuleID returns the full version chain of a rule, newest first.
func (r *PricingRuleRepositoryImpl) VersionsByRuleID(ctx context.Context, ruleID uuid.UUID) ([]*models.PricingRule, error) {
	db := r.getDB(ctx)

	var rows []*models.PricingRule
	err := db.Where("rule_id = ?", ruleID).Order("version DESC").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// MaxVersion returns the highest version written for a rule, 0 when the rule is unknown.
func (r *PricingRuleRepositoryImpl) MaxVersion(ctx context.Context, ruleID uuid.UUID) (int, error) {
	db := r.getDB(ctx)

	var max int
	err := db.Raw(`SELECT COALESCE(MAX(version), 0) FROM pricing_rules WHERE rule_id = ?`, ruleID).Scan(&max).Error
	if err != nil {
		return 0, err
	}
	return max, nil
}

// ListMatchable returns every current, active rule version: the matcher's input set.
func (r *PricingRuleRepositoryImpl) ListMatchable(ctx context.Context) ([]*models.PricingRule, error) {
	db := r.getDB(ctx)

	var rows []*models.PricingRule
	err := db.Where("is_current = ? AND is_active = ?", true, true).Order("created_at ASC").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ClearCurrent flips is_current off on the rule's current version. Called
// inside the same transaction that inserts the superseding version.
func (r *PricingRuleRepositoryImpl) ClearCurrent(ctx context.Context, ruleID uuid.UUID) error {
	return r.write(ctx, func(db *gorm.DB) error {
		err := db.Model(&models.PricingRule{}).
			Where("rule_id = ? AND is_current = ?", ruleID, true).
			Update("is_current", false).Error
		if err != nil {
			return fmt.Errorf("failed to clear current version for rule %s: %w", ruleID, err)
		}
		return nil
	})
}

// applyFilter narrows the query to the set filter fields. The service type
// condition matches inside the conditions JSON column.
func (r *PricingRuleRepositoryImpl) applyFilter(db *gorm.DB, filter models.PricingRuleFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.RuleID != nil {
		db = db.Where("rule_id = ?", *filter.RuleID)
	}
	if filter.Name != nil {
		db = db.Where("name ILIKE ?", "%"+*filter.Name+"%")
	}
	if filter.Version != nil {
		db = db.Where("version = ?", *filter.Version)
	}
	if filter.IsCurrent != nil {
		db = db.Where("is_current = ?", *filter.IsCurrent)
	}
	if filter.IsActive != nil {
		db = db.Where("is_active = ?", *filter.IsActive)
	}
	if filter.ServiceType != nil {
		// Wildcard rules (no service_types key) apply to every service.
		db = db.Where(
			"(conditions->'service_types' IS NULL OR conditions->'service_types' @> ?)",
			fmt.Sprintf(`["%s"]`, filter.ServiceType.String()),
		)
	}
	if filter.ChangeType != nil {
		db = db.Where("change_type = ?", *filter.ChangeType)
	}
	if filter.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		db = db.Where("created_at <= ?", *filter.CreatedBefore)
	}
	return db
}

// ByFilter retrieves pricing rule versions based on filter criteria.
func (r *PricingRuleRepositoryImpl) ByFilter(ctx context.Context, filter models.PricingRuleFilter, orderBy string, limit, offset int) ([]*models.PricingRule, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.PricingRule{})

	query = r.applyFilter(query, filter)

	if orderBy == "" {
		orderBy = "created_at DESC"
	}
	query = query.Order(orderBy)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var rows []*models.PricingRule
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of rule versions matching the filter.
func (r *PricingRuleRepositoryImpl) Count(ctx context.Context, filter models.PricingRuleFilter) (int64, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.PricingRule{})
	query = r.applyFilter(query, filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any rule version matching the filter exists.
func (r *PricingRuleRepositoryImpl) Exists(ctx context.Context, filter models.PricingRuleFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
