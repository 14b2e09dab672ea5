package repository

import (
	"context"

	"github.com/printshop-os/pricing-engine/models"
	"gorm.io/gorm"
)

// CalculationHistoryRepositoryImpl implements CalculationHistoryRepository.
// The base Save/SaveBatch are the only write paths; nothing in the codebase
// updates or deletes history rows.
type CalculationHistoryRepositoryImpl struct {
	*BaseRepository[models.CalculationHistory, models.CalculationHistoryFilter]
}

// NewCalculationHistoryRepository creates a new repository for calculation history
func NewCalculationHistoryRepository(db *gorm.DB) CalculationHistoryRepository {
	return &CalculationHistoryRepositoryImpl{
		BaseRepository: NewBaseRepository[models.CalculationHistory, models.CalculationHistoryFilter](db),
	}
}

// applyFilter narrows the query to the set filter fields.
func (r *CalculationHistoryRepositoryImpl) applyFilter(db *gorm.DB, filter models.CalculationHistoryFilter) *gorm.DB {
	if filter.GarmentID != nil {
		db = db.Where("garment_id = ?", *filter.GarmentID)
	}
	if filter.ServiceType != nil {
		db = db.Where("service_type = ?", *filter.ServiceType)
	}
	if filter.CustomerType != nil {
		db = db.Where("customer_type = ?", *filter.CustomerType)
	}
	if filter.MatchedRuleID != nil {
		db = db.Where("matched_rule_id = ?", *filter.MatchedRuleID)
	}
	if filter.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		db = db.Where("created_at <= ?", *filter.CreatedBefore)
	}
	return db
}

// ByFilter retrieves history entries based on filter criteria, newest first by default.
func (r *CalculationHistoryRepositoryImpl) ByFilter(ctx context.Context, filter models.CalculationHistoryFilter, orderBy string, limit, offset int) ([]*models.CalculationHistory, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.CalculationHistory{})

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

	var rows []*models.CalculationHistory
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of history entries matching the filter.
func (r *CalculationHistoryRepositoryImpl) Count(ctx context.Context, filter models.CalculationHistoryFilter) (int64, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.CalculationHistory{})
	query = r.applyFilter(query, filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any history entry matching the filter exists.
func (r *CalculationHistoryRepositoryImpl) Exists(ctx context.Context, filter models.CalculationHistoryFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
