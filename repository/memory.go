package repository

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/printshop-os/pricing-engine/models"
	"github.com/printshop-os/pricing-engine/utils"
)

// In-memory repository implementations backing the swappable persistence
// contract: production wires the Postgres repositories, tests and local runs
// wire these. Semantics mirror the gorm implementations (nil result for
// missing entities, newest-first default ordering, creation hooks applied).

// MemoryPricingRuleRepository is a mutex-guarded in-memory PricingRuleRepository
type MemoryPricingRuleRepository struct {
	mu     sync.RWMutex
	nextID uint
	rows   []*models.PricingRule
}

// NewMemoryPricingRuleRepository creates an empty in-memory rule store
func NewMemoryPricingRuleRepository() *MemoryPricingRuleRepository {
	return &MemoryPricingRuleRepository{nextID: 1}
}

func (r *MemoryPricingRuleRepository) ByID(ctx context.Context, id uint) (*models.PricingRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, row := range r.rows {
		if row.ID == id {
			return row.Snapshot(), nil
		}
	}
	return nil, nil
}

func (r *MemoryPricingRuleRepository) Save(ctx context.Context, entity *models.PricingRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Same defaults the gorm hook applies on insert.
	if err := entity.BeforeCreate(nil); err != nil {
		return err
	}
	if entity.ID == 0 {
		entity.ID = r.nextID
		r.nextID++
	} else if entity.ID >= r.nextID {
		r.nextID = entity.ID + 1
	}
	r.rows = append(r.rows, entity.Snapshot())
	return nil
}

func (r *MemoryPricingRuleRepository) SaveBatch(ctx context.Context, entities []*models.PricingRule) error {
	for _, e := range entities {
		if err := r.Save(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (r *MemoryPricingRuleRepository) matchFilter(row *models.PricingRule, filter models.PricingRuleFilter) bool {
	if filter.ID != nil && row.ID != *filter.ID {
		return false
	}
	if filter.RuleID != nil && row.RuleID != *filter.RuleID {
		return false
	}
	if filter.Name != nil && !containsFold(row.Name, *filter.Name) {
		return false
	}
	if filter.Version != nil && row.Version != *filter.Version {
		return false
	}
	if filter.IsCurrent != nil && utils.IsTrue(row.IsCurrent) != *filter.IsCurrent {
		return false
	}
	if filter.IsActive != nil && utils.IsTrue(row.IsActive) != *filter.IsActive {
		return false
	}
	if filter.ServiceType != nil && len(row.Conditions.ServiceTypes) > 0 {
		found := false
		for _, st := range row.Conditions.ServiceTypes {
			if st == *filter.ServiceType {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.ChangeType != nil && row.ChangeType != *filter.ChangeType {
		return false
	}
	if filter.CreatedAfter != nil && row.CreatedAt.Before(*filter.CreatedAfter) {
		return false
	}
	if filter.CreatedBefore != nil && row.CreatedAt.After(*filter.CreatedBefore) {
		return false
	}
	return true
}

func (r *MemoryPricingRuleRepository) ByFilter(ctx context.Context, filter models.PricingRuleFilter, orderBy string, limit, offset int) ([]*models.PricingRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.PricingRule
	for _, row := range r.rows {
		if r.matchFilter(row, filter) {
			out = append(out, row.Snapshot())
		}
	}
	sortRules(out, orderBy)
	return paginate(out, limit, offset), nil
}

func (r *MemoryPricingRuleRepository) Count(ctx context.Context, filter models.PricingRuleFilter) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var count int64
	for _, row := range r.rows {
		if r.matchFilter(row, filter) {
			count++
		}
	}
	return count, nil
}

func (r *MemoryPricingRuleRepository) Exists(ctx context.Context, filter models.PricingRuleFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *MemoryPricingRuleRepository) CurrentByRuleID(ctx context.Context, ruleID uuid.UUID) (*models.PricingRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, row := range r.rows {
		if row.RuleID == ruleID && utils.IsTrue(row.IsCurrent) {
			return row.Snapshot(), nil
		}
	}
	return nil, nil
}

func (r *MemoryPricingRuleRepository) ByRuleIDAndVersion(ctx context.Context, ruleID uuid.UUID, version int) (*models.PricingRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, row := range r.rows {
		if row.RuleID == ruleID && row.Version == version {
			return row.Snapshot(), nil
		}
	}
	return nil, nil
}

func (r *MemoryPricingRuleRepository) VersionsByRuleID(ctx context.Context, ruleID uuid.UUID) ([]*models.PricingRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.PricingRule
	for _, row := range r.rows {
		if row.RuleID == ruleID {
			out = append(out, row.Snapshot())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version > out[j].Version })
	return out, nil
}

func (r *MemoryPricingRuleRepository) MaxVersion(ctx context.Context, ruleID uuid.UUID) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	max := 0
	for _, row := range r.rows {
		if row.RuleID == ruleID && row.Version > max {
			max = row.Version
		}
	}
	return max, nil
}

func (r *MemoryPricingRuleRepository) ListMatchable(ctx context.Context) ([]*models.PricingRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.PricingRule
	for _, row := range r.rows {
		if row.IsUsable() {
			out = append(out, row.Snapshot())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryPricingRuleRepository) ClearCurrent(ctx context.Context, ruleID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, row := range r.rows {
		if row.RuleID == ruleID && utils.IsTrue(row.IsCurrent) {
			row.IsCurrent = utils.ToPtr(false)
			row.UpdatedAt = utils.UTCNowPtr()
		}
	}
	return nil
}

// MemoryCalculationHistoryRepository is a mutex-guarded in-memory CalculationHistoryRepository
type MemoryCalculationHistoryRepository struct {
	mu     sync.RWMutex
	nextID uint
	rows   []*models.CalculationHistory
}

// NewMemoryCalculationHistoryRepository creates an empty in-memory history store
func NewMemoryCalculationHistoryRepository() *MemoryCalculationHistoryRepository {
	return &MemoryCalculationHistoryRepository{nextID: 1}
}

func (r *MemoryCalculationHistoryRepository) ByID(ctx context.Context, id uint) (*models.CalculationHistory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, row := range r.rows {
		if row.ID == id {
			cp := *row
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *MemoryCalculationHistoryRepository) Save(ctx context.Context, entity *models.CalculationHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := entity.BeforeCreate(nil); err != nil {
		return err
	}
	if entity.ID == 0 {
		entity.ID = r.nextID
		r.nextID++
	} else if entity.ID >= r.nextID {
		r.nextID = entity.ID + 1
	}
	cp := *entity
	r.rows = append(r.rows, &cp)
	return nil
}

func (r *MemoryCalculationHistoryRepository) SaveBatch(ctx context.Context, entities []*models.CalculationHistory) error {
	for _, e := range entities {
		if err := r.Save(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (r *MemoryCalculationHistoryRepository) matchFilter(row *models.CalculationHistory, filter models.CalculationHistoryFilter) bool {
	if filter.GarmentID != nil && row.GarmentID != *filter.GarmentID {
		return false
	}
	if filter.ServiceType != nil && row.ServiceType != *filter.ServiceType {
		return false
	}
	if filter.CustomerType != nil && row.CustomerType != *filter.CustomerType {
		return false
	}
	if filter.MatchedRuleID != nil && row.MatchedRuleID != *filter.MatchedRuleID {
		return false
	}
	if filter.CreatedAfter != nil && row.CreatedAt.Before(*filter.CreatedAfter) {
		return false
	}
	if filter.CreatedBefore != nil && row.CreatedAt.After(*filter.CreatedBefore) {
		return false
	}
	return true
}

func (r *MemoryCalculationHistoryRepository) ByFilter(ctx context.Context, filter models.CalculationHistoryFilter, orderBy string, limit, offset int) ([]*models.CalculationHistory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.CalculationHistory
	for _, row := range r.rows {
		if r.matchFilter(row, filter) {
			cp := *row
			out = append(out, &cp)
		}
	}

	asc := orderBy == "created_at ASC"
	sort.SliceStable(out, func(i, j int) bool {
		if asc {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	return paginate(out, limit, offset), nil
}

func (r *MemoryCalculationHistoryRepository) Count(ctx context.Context, filter models.CalculationHistoryFilter) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var count int64
	for _, row := range r.rows {
		if r.matchFilter(row, filter) {
			count++
		}
	}
	return count, nil
}

func (r *MemoryCalculationHistoryRepository) Exists(ctx context.Context, filter models.CalculationHistoryFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// MemorySequenceCounterRepository is a mutex-guarded in-memory SequenceCounterRepository
type MemorySequenceCounterRepository struct {
	mu       sync.Mutex
	counters map[string]uint64
}

// NewMemorySequenceCounterRepository creates an empty in-memory counter store
func NewMemorySequenceCounterRepository() *MemorySequenceCounterRepository {
	return &MemorySequenceCounterRepository{counters: make(map[string]uint64)}
}

func (r *MemorySequenceCounterRepository) Next(ctx context.Context, name string) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.counters[name]++
	return r.counters[name], nil
}

func (r *MemorySequenceCounterRepository) Current(ctx context.Context, name string) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.counters[name], nil
}

// sortRules orders rule slices for the handful of orderings the flows request
func sortRules(rows []*models.PricingRule, orderBy string) {
	switch orderBy {
	case "created_at ASC":
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].CreatedAt.Before(rows[j].CreatedAt) })
	case "version DESC":
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].Version > rows[j].Version })
	case "name ASC":
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].Name < rows[j].Name })
	default: // created_at DESC
		sort.SliceStable(rows, func(i, j int) bool {
			if rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
				return rows[i].ID > rows[j].ID
			}
			return rows[i].CreatedAt.After(rows[j].CreatedAt)
		})
	}
}

func paginate[T any](rows []*T, limit, offset int) []*T {
	if offset > 0 {
		if offset >= len(rows) {
			return nil
		}
		rows = rows[offset:]
	}
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
