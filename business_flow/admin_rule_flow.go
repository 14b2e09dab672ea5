package businessflow

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/printshop-os/pricing-engine/app/dto"
	"github.com/printshop-os/pricing-engine/app/services"
	"github.com/printshop-os/pricing-engine/config"
	"github.com/printshop-os/pricing-engine/models"
	"github.com/printshop-os/pricing-engine/repository"
	"github.com/printshop-os/pricing-engine/utils"
	"gorm.io/gorm"
)

// AdminRuleFlow defines the admin-side rule management operations
type AdminRuleFlow interface {
	CreateRule(ctx context.Context, req *dto.CreateRuleRequest) (*dto.CreateRuleResponse, error)
	UpdateRule(ctx context.Context, req *dto.UpdateRuleRequest) (*dto.UpdateRuleResponse, error)
	RollbackRule(ctx context.Context, req *dto.RollbackRuleRequest) (*dto.RollbackRuleResponse, error)
	DeactivateRule(ctx context.Context, req *dto.DeactivateRuleRequest) (*dto.DeactivateRuleResponse, error)
	GetRule(ctx context.Context, ruleID string, version int) (*dto.GetRuleResponse, error)
	ListRules(ctx context.Context, req *dto.ListRulesRequest) (*dto.ListRulesResponse, error)
	ListRuleVersions(ctx context.Context, ruleID string) (*dto.ListRuleVersionsResponse, error)
	ClearCache(ctx context.Context) (*dto.ClearCacheResponse, error)
}

// AdminRuleFlowImpl implements the admin rule management flow
type AdminRuleFlowImpl struct {
	db         *gorm.DB
	ruleRepo   repository.PricingRuleRepository
	generation *GenerationCounter
	cache      services.CacheStore
	locks      *ruleLockRegistry
	keyPrefix  string
}

// NewAdminRuleFlow creates a new admin rule flow instance
func NewAdminRuleFlow(
	db *gorm.DB,
	ruleRepo repository.PricingRuleRepository,
	generation *GenerationCounter,
	cache services.CacheStore,
	cacheConfig *config.CacheConfig,
) AdminRuleFlow {
	return &AdminRuleFlowImpl{
		db:         db,
		ruleRepo:   ruleRepo,
		generation: generation,
		cache:      cache,
		locks:      newRuleLockRegistry(),
		keyPrefix:  CalculationKeyPrefix(cacheConfig),
	}
}

// CreateRule validates and stores a brand new rule as version 1 of a fresh
// rule id, then advances the ruleset generation.
func (f *AdminRuleFlowImpl) CreateRule(ctx context.Context, req *dto.CreateRuleRequest) (*dto.CreateRuleResponse, error) {
	conditions := conditionsFromDTO(req.Conditions)
	effects := effectsFromDTO(req.Effects)
	if err := validateRuleDefinition(&conditions, &effects, req.Priority); err != nil {
		return nil, err
	}

	rule := &models.PricingRule{
		RuleID:     uuid.New(),
		Version:    1,
		Name:       req.Name,
		Conditions: conditions,
		Effects:    effects,
		Priority:   req.Priority,
		IsCurrent:  utils.ToPtr(true),
		IsActive:   utils.ToPtr(true),
		ChangeType: models.RuleChangeTypeCreated,
		ChangeNote: req.ChangeNote,
	}

	var generation uint64
	err := repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		if err := f.ruleRepo.Save(txCtx, rule); err != nil {
			return NewBusinessError("RULE_SAVE_FAILED", "Failed to save pricing rule", errors.Join(ErrPersistence, err))
		}
		gen, err := f.generation.Next(txCtx)
		if err != nil {
			return NewBusinessError("GENERATION_BUMP_FAILED", "Failed to advance ruleset generation", errors.Join(ErrPersistence, err))
		}
		generation = gen
		return nil
	})
	if err != nil {
		return nil, err
	}

	f.publishGeneration(ctx, generation)
	f.auditMutation(ctx, "created", rule, generation)

	return &dto.CreateRuleResponse{
		Message: "Pricing rule created successfully",
		Rule:    ToRuleDTO(rule),
	}, nil
}

// UpdateRule writes a new version of an existing rule. The superseded version
// stays in the chain unmodified, the new one becomes current.
func (f *AdminRuleFlowImpl) UpdateRule(ctx context.Context, req *dto.UpdateRuleRequest) (*dto.UpdateRuleResponse, error) {
	ruleID, err := parseRuleID(req.RuleID)
	if err != nil {
		return nil, err
	}

	conditions := conditionsFromDTO(req.Conditions)
	effects := effectsFromDTO(req.Effects)
	if err := validateRuleDefinition(&conditions, &effects, req.Priority); err != nil {
		return nil, err
	}

	f.locks.lock(ruleID)
	defer f.locks.unlock(ruleID)

	var next *models.PricingRule
	var generation uint64
	err = repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		current, err := f.loadCurrent(txCtx, ruleID)
		if err != nil {
			return err
		}

		maxVersion, err := f.ruleRepo.MaxVersion(txCtx, ruleID)
		if err != nil {
			return NewBusinessError("RULE_FETCH_FAILED", "Failed to load pricing rule versions", errors.Join(ErrPersistence, err))
		}
		if err := f.ruleRepo.ClearCurrent(txCtx, ruleID); err != nil {
			return NewBusinessError("RULE_SAVE_FAILED", "Failed to supersede current rule version", errors.Join(ErrPersistence, err))
		}

		next = &models.PricingRule{
			RuleID:            ruleID,
			Version:           maxVersion + 1,
			Name:              req.Name,
			Conditions:        conditions,
			Effects:           effects,
			Priority:          req.Priority,
			IsCurrent:         utils.ToPtr(true),
			IsActive:          utils.ToPtr(true),
			ChangeType:        models.RuleChangeTypeUpdated,
			ChangeNote:        req.ChangeNote,
			PreviousVersionID: &current.ID,
		}
		if err := f.ruleRepo.Save(txCtx, next); err != nil {
			return NewBusinessError("RULE_SAVE_FAILED", "Failed to save pricing rule", errors.Join(ErrPersistence, err))
		}

		generation, err = f.generation.Next(txCtx)
		if err != nil {
			return NewBusinessError("GENERATION_BUMP_FAILED", "Failed to advance ruleset generation", errors.Join(ErrPersistence, err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	f.publishGeneration(ctx, generation)
	f.auditMutation(ctx, "updated", next, generation)

	return &dto.UpdateRuleResponse{
		Message: "Pricing rule updated successfully",
		Rule:    ToRuleDTO(next),
	}, nil
}

// RollbackRule duplicates the conditions, effects, and priority of an older
// version into a new current version. The version counter never rewinds.
func (f *AdminRuleFlowImpl) RollbackRule(ctx context.Context, req *dto.RollbackRuleRequest) (*dto.RollbackRuleResponse, error) {
	ruleID, err := parseRuleID(req.RuleID)
	if err != nil {
		return nil, err
	}

	f.locks.lock(ruleID)
	defer f.locks.unlock(ruleID)

	var next *models.PricingRule
	var generation uint64
	err = repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		current, err := f.loadCurrent(txCtx, ruleID)
		if err != nil {
			return err
		}
		if current.Version == req.ToVersion {
			return NewBusinessError("ROLLBACK_TO_CURRENT_VERSION", "Rule is already at this version", ErrRollbackToCurrentVersion)
		}

		target, err := f.ruleRepo.ByRuleIDAndVersion(txCtx, ruleID, req.ToVersion)
		if err != nil {
			return NewBusinessError("RULE_FETCH_FAILED", "Failed to load pricing rule version", errors.Join(ErrPersistence, err))
		}
		if target == nil {
			return NewBusinessError("RULE_VERSION_NOT_FOUND", "Pricing rule version not found", ErrRuleVersionNotFound)
		}

		maxVersion, err := f.ruleRepo.MaxVersion(txCtx, ruleID)
		if err != nil {
			return NewBusinessError("RULE_FETCH_FAILED", "Failed to load pricing rule versions", errors.Join(ErrPersistence, err))
		}
		if err := f.ruleRepo.ClearCurrent(txCtx, ruleID); err != nil {
			return NewBusinessError("RULE_SAVE_FAILED", "Failed to supersede current rule version", errors.Join(ErrPersistence, err))
		}

		note := fmt.Sprintf("rollback to version %d", req.ToVersion)
		next = &models.PricingRule{
			RuleID:            ruleID,
			Version:           maxVersion + 1,
			Name:              target.Name,
			Conditions:        target.Conditions,
			Effects:           target.Effects,
			Priority:          target.Priority,
			IsCurrent:         utils.ToPtr(true),
			IsActive:          utils.ToPtr(true),
			ChangeType:        models.RuleChangeTypeRollback,
			ChangeNote:        &note,
			PreviousVersionID: &current.ID,
		}
		if err := f.ruleRepo.Save(txCtx, next); err != nil {
			return NewBusinessError("RULE_SAVE_FAILED", "Failed to save pricing rule", errors.Join(ErrPersistence, err))
		}

		generation, err = f.generation.Next(txCtx)
		if err != nil {
			return NewBusinessError("GENERATION_BUMP_FAILED", "Failed to advance ruleset generation", errors.Join(ErrPersistence, err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	f.publishGeneration(ctx, generation)
	f.auditMutation(ctx, "rolled back", next, generation)

	return &dto.RollbackRuleResponse{
		Message: "Pricing rule rolled back successfully",
		Rule:    ToRuleDTO(next),
	}, nil
}

// DeactivateRule soft-deletes a rule by writing a new inactive version. The
// chain stays queryable and the rule can come back through a later update.
func (f *AdminRuleFlowImpl) DeactivateRule(ctx context.Context, req *dto.DeactivateRuleRequest) (*dto.DeactivateRuleResponse, error) {
	ruleID, err := parseRuleID(req.RuleID)
	if err != nil {
		return nil, err
	}

	f.locks.lock(ruleID)
	defer f.locks.unlock(ruleID)

	var next *models.PricingRule
	var generation uint64
	err = repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		current, err := f.loadCurrent(txCtx, ruleID)
		if err != nil {
			return err
		}
		if !utils.IsTrue(current.IsActive) {
			return NewBusinessError("RULE_ALREADY_INACTIVE", "Pricing rule is already inactive", ErrRuleAlreadyInactive)
		}

		maxVersion, err := f.ruleRepo.MaxVersion(txCtx, ruleID)
		if err != nil {
			return NewBusinessError("RULE_FETCH_FAILED", "Failed to load pricing rule versions", errors.Join(ErrPersistence, err))
		}
		if err := f.ruleRepo.ClearCurrent(txCtx, ruleID); err != nil {
			return NewBusinessError("RULE_SAVE_FAILED", "Failed to supersede current rule version", errors.Join(ErrPersistence, err))
		}

		next = &models.PricingRule{
			RuleID:            ruleID,
			Version:           maxVersion + 1,
			Name:              current.Name,
			Conditions:        current.Conditions,
			Effects:           current.Effects,
			Priority:          current.Priority,
			IsCurrent:         utils.ToPtr(true),
			IsActive:          utils.ToPtr(false),
			ChangeType:        models.RuleChangeTypeDeactivated,
			ChangeNote:        current.ChangeNote,
			PreviousVersionID: &current.ID,
		}
		if err := f.ruleRepo.Save(txCtx, next); err != nil {
			return NewBusinessError("RULE_SAVE_FAILED", "Failed to save pricing rule", errors.Join(ErrPersistence, err))
		}

		generation, err = f.generation.Next(txCtx)
		if err != nil {
			return NewBusinessError("GENERATION_BUMP_FAILED", "Failed to advance ruleset generation", errors.Join(ErrPersistence, err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	f.publishGeneration(ctx, generation)
	f.auditMutation(ctx, "deactivated", next, generation)

	return &dto.DeactivateRuleResponse{
		Message: "Pricing rule deactivated successfully",
		Rule:    ToRuleDTO(next),
	}, nil
}

// GetRule returns one version of a rule: the current version when version is
// zero, the named version otherwise
func (f *AdminRuleFlowImpl) GetRule(ctx context.Context, rawRuleID string, version int) (*dto.GetRuleResponse, error) {
	ruleID, err := parseRuleID(rawRuleID)
	if err != nil {
		return nil, err
	}

	if version < 0 {
		return nil, NewValidationError([]FieldViolation{
			{Field: "version", Message: "version must be at least 1"},
		})
	}

	var rule *models.PricingRule
	if version == 0 {
		rule, err = f.loadCurrent(ctx, ruleID)
		if err != nil {
			return nil, err
		}
	} else {
		rule, err = f.ruleRepo.ByRuleIDAndVersion(ctx, ruleID, version)
		if err != nil {
			return nil, NewBusinessError("RULE_FETCH_FAILED", "Failed to load pricing rule version", errors.Join(ErrPersistence, err))
		}
		if rule == nil {
			// Distinguish an unknown rule from a known rule lacking the version
			current, cerr := f.ruleRepo.CurrentByRuleID(ctx, ruleID)
			if cerr != nil {
				return nil, NewBusinessError("RULE_FETCH_FAILED", "Failed to load pricing rule", errors.Join(ErrPersistence, cerr))
			}
			if current == nil {
				return nil, NewBusinessError("RULE_NOT_FOUND", "Pricing rule not found", ErrRuleNotFound)
			}
			return nil, NewBusinessErrorf("RULE_VERSION_NOT_FOUND", "Pricing rule version %d not found", ErrRuleVersionNotFound, version)
		}
	}

	return &dto.GetRuleResponse{
		Message: "Pricing rule retrieved successfully",
		Rule:    ToRuleDTO(rule),
	}, nil
}

// ListRules returns a page of current rule versions
func (f *AdminRuleFlowImpl) ListRules(ctx context.Context, req *dto.ListRulesRequest) (*dto.ListRulesResponse, error) {
	page := req.Page
	if page < 0 {
		return nil, NewBusinessError("PAGE_INVALID", "Page must be at least 1", ErrInvalidPage)
	}
	if page == 0 {
		page = 1
	}
	limit := req.Limit
	if limit < 0 || limit > utils.MaxPageSize {
		return nil, NewBusinessError("PAGE_SIZE_INVALID", "Page size must be between 1 and 100", ErrInvalidPageSize)
	}
	if limit == 0 {
		limit = utils.DefaultPageSize
	}

	filter := models.PricingRuleFilter{IsCurrent: utils.ToPtr(true)}
	if req.Filter != nil {
		if req.Filter.Name != nil && *req.Filter.Name != "" {
			filter.Name = req.Filter.Name
		}
		filter.IsActive = req.Filter.IsActive
		if req.Filter.ServiceType != nil && *req.Filter.ServiceType != "" {
			st := models.ServiceType(*req.Filter.ServiceType)
			if !st.Valid() {
				return nil, NewValidationError([]FieldViolation{
					{Field: "service_type", Message: fmt.Sprintf("unknown service type %q", st)},
				})
			}
			filter.ServiceType = &st
		}
	}

	order := "created_at DESC"
	if req.OrderBy == "oldest" {
		order = "created_at ASC"
	}

	total, err := f.ruleRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("RULE_FETCH_FAILED", "Failed to count pricing rules", errors.Join(ErrPersistence, err))
	}
	rows, err := f.ruleRepo.ByFilter(ctx, filter, order, limit, (page-1)*limit)
	if err != nil {
		return nil, NewBusinessError("RULE_FETCH_FAILED", "Failed to load pricing rules", errors.Join(ErrPersistence, err))
	}

	items := make([]dto.RuleDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, ToRuleDTO(row))
	}

	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return &dto.ListRulesResponse{
		Message: "Pricing rules retrieved successfully",
		Items:   items,
		Pagination: dto.PaginationInfo{
			Total:      total,
			Page:       page,
			Limit:      limit,
			TotalPages: totalPages,
		},
	}, nil
}

// ListRuleVersions returns the full version chain of a rule, newest first
func (f *AdminRuleFlowImpl) ListRuleVersions(ctx context.Context, rawRuleID string) (*dto.ListRuleVersionsResponse, error) {
	ruleID, err := parseRuleID(rawRuleID)
	if err != nil {
		return nil, err
	}

	rows, err := f.ruleRepo.VersionsByRuleID(ctx, ruleID)
	if err != nil {
		return nil, NewBusinessError("RULE_FETCH_FAILED", "Failed to load pricing rule versions", errors.Join(ErrPersistence, err))
	}
	if len(rows) == 0 {
		return nil, NewBusinessError("RULE_NOT_FOUND", "Pricing rule not found", ErrRuleNotFound)
	}

	items := make([]dto.RuleDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, ToRuleDTO(row))
	}

	return &dto.ListRuleVersionsResponse{
		Message: "Pricing rule versions retrieved successfully",
		Items:   items,
	}, nil
}

// ClearCache drops every cached calculation. Manual invalidation does not
// touch the ruleset generation, only mutations advance it.
func (f *AdminRuleFlowImpl) ClearCache(ctx context.Context) (*dto.ClearCacheResponse, error) {
	if f.cache == nil {
		return nil, NewBusinessError("CACHE_NOT_AVAILABLE", "Cache is not available", ErrCacheNotAvailable)
	}
	if err := f.cache.FlushPrefix(ctx, f.keyPrefix); err != nil {
		return nil, NewBusinessError("CACHE_CLEAR_FAILED", "Failed to clear calculation cache", err)
	}
	return &dto.ClearCacheResponse{
		Message:           "Calculation cache cleared successfully",
		RulesetGeneration: f.generation.Current(),
	}, nil
}

// loadCurrent fetches the current version of a rule, mapping absence to the
// not-found business error
func (f *AdminRuleFlowImpl) loadCurrent(ctx context.Context, ruleID uuid.UUID) (*models.PricingRule, error) {
	current, err := f.ruleRepo.CurrentByRuleID(ctx, ruleID)
	if err != nil {
		return nil, NewBusinessError("RULE_FETCH_FAILED", "Failed to load pricing rule", errors.Join(ErrPersistence, err))
	}
	if current == nil {
		return nil, NewBusinessError("RULE_NOT_FOUND", "Pricing rule not found", ErrRuleNotFound)
	}
	return current, nil
}

// publishGeneration exposes a committed generation to calculation traffic and
// drops cache entries priced under older generations
func (f *AdminRuleFlowImpl) publishGeneration(ctx context.Context, generation uint64) {
	f.generation.Set(generation)
	if f.cache != nil {
		if err := f.cache.FlushPrefix(ctx, f.keyPrefix); err != nil {
			log.Printf("calculation cache flush failed after rule change: %v", err)
		}
	}
}

// auditMutation records who changed which rule. The subject comes from the
// admin bearer token; requests through a disabled guard log as unknown.
func (f *AdminRuleFlowImpl) auditMutation(ctx context.Context, action string, rule *models.PricingRule, generation uint64) {
	actor := "unknown"
	if subject, ok := ctx.Value(utils.AdminSubjectKey).(string); ok && subject != "" {
		actor = subject
	}
	log.Printf("rule %s %s by %s: version %d current, ruleset generation %d",
		rule.RuleID, action, actor, rule.Version, generation)
}

// validateRuleDefinition checks an incoming rule definition, collecting every
// violated field so the admin sees the full list in one round trip. Empty
// conditions are allowed, that is an explicit catch-all rule.
func validateRuleDefinition(conditions *models.RuleConditions, effects *models.RuleEffects, priority int) error {
	var violations []FieldViolation

	if priority < 0 {
		violations = append(violations, FieldViolation{Field: "priority", Message: "priority cannot be negative"})
	}
	violations = append(violations, validateRuleConditions(conditions)...)
	violations = append(violations, validateRuleEffects(effects)...)

	if len(violations) > 0 {
		return NewValidationError(violations)
	}
	return nil
}

func validateRuleConditions(c *models.RuleConditions) []FieldViolation {
	var violations []FieldViolation

	for _, st := range c.ServiceTypes {
		if !st.Valid() {
			violations = append(violations, FieldViolation{Field: "conditions.service_types", Message: fmt.Sprintf("unknown service type %q", st)})
		}
	}
	for _, ct := range c.CustomerTypes {
		if !ct.Valid() {
			violations = append(violations, FieldViolation{Field: "conditions.customer_types", Message: fmt.Sprintf("unknown customer type %q", ct)})
		}
	}
	for _, loc := range c.PrintLocations {
		if !loc.Valid() {
			violations = append(violations, FieldViolation{Field: "conditions.print_locations", Message: fmt.Sprintf("unknown print location %q", loc)})
		}
	}
	for _, id := range c.GarmentIDs {
		if id == "" {
			violations = append(violations, FieldViolation{Field: "conditions.garment_ids", Message: "garment id cannot be empty"})
		}
	}
	if c.MinQuantity != nil && *c.MinQuantity < 1 {
		violations = append(violations, FieldViolation{Field: "conditions.min_quantity", Message: "min quantity must be at least 1"})
	}
	if c.MaxQuantity != nil && *c.MaxQuantity < 1 {
		violations = append(violations, FieldViolation{Field: "conditions.max_quantity", Message: "max quantity must be at least 1"})
	}
	if c.MinQuantity != nil && c.MaxQuantity != nil && *c.MinQuantity > *c.MaxQuantity {
		violations = append(violations, FieldViolation{Field: "conditions.min_quantity", Message: "min quantity cannot exceed max quantity"})
	}
	return violations
}

func validateRuleEffects(e *models.RuleEffects) []FieldViolation {
	var violations []FieldViolation

	for garmentID, price := range e.BaseUnitPrices {
		if price.IsNegative() {
			violations = append(violations, FieldViolation{Field: "effects.base_unit_prices", Message: fmt.Sprintf("price for garment %s cannot be negative", garmentID)})
		}
	}
	for loc, surcharge := range e.LocationSurcharges {
		if !loc.Valid() {
			violations = append(violations, FieldViolation{Field: "effects.location_surcharges", Message: fmt.Sprintf("unknown print location %q", loc)})
		}
		if surcharge.IsNegative() {
			violations = append(violations, FieldViolation{Field: "effects.location_surcharges", Message: fmt.Sprintf("surcharge for location %s cannot be negative", loc)})
		}
	}

	violations = append(violations, validateColorMultipliers(e.ColorMultipliers)...)

	if e.StitchRatePerThousand.IsNegative() {
		violations = append(violations, FieldViolation{Field: "effects.stitch_rate_per_thousand", Message: "stitch rate cannot be negative"})
	}
	if e.SetupFees.NewDesign.IsNegative() {
		violations = append(violations, FieldViolation{Field: "effects.setup_fees.new_design", Message: "setup fee cannot be negative"})
	}
	if e.SetupFees.RepeatDesign.IsNegative() {
		violations = append(violations, FieldViolation{Field: "effects.setup_fees.repeat_design", Message: "setup fee cannot be negative"})
	}

	violations = append(violations, validateVolumeTiers(e.VolumeTiers)...)

	for t, rule := range e.AddOnRules {
		field := fmt.Sprintf("effects.add_on_rules.%s", t)
		if !t.Valid() {
			violations = append(violations, FieldViolation{Field: field, Message: fmt.Sprintf("unknown add-on type %q", t)})
		}
		switch rule.Kind {
		case models.AddOnKindFlat:
			if rule.Amount.IsNegative() {
				violations = append(violations, FieldViolation{Field: field, Message: "flat amount cannot be negative"})
			}
		case models.AddOnKindPercentage:
			if rule.Amount.IsNegative() || rule.Amount.GreaterThanOrEqual(decimalOne) {
				violations = append(violations, FieldViolation{Field: field, Message: "percentage amount must be at least 0 and below 1"})
			}
		default:
			violations = append(violations, FieldViolation{Field: field, Message: fmt.Sprintf("unknown add-on kind %q", rule.Kind)})
		}
	}

	if e.MarginPct.IsNegative() || e.MarginPct.GreaterThanOrEqual(decimalOne) {
		violations = append(violations, FieldViolation{Field: "effects.margin_pct", Message: "margin must be at least 0 and below 1"})
	}
	return violations
}

func validateColorMultipliers(buckets []models.ColorMultiplier) []FieldViolation {
	var violations []FieldViolation
	for i, b := range buckets {
		field := fmt.Sprintf("effects.color_multipliers[%d]", i)
		if b.MinColors < 1 {
			violations = append(violations, FieldViolation{Field: field, Message: "min colors must be at least 1"})
		}
		if b.MaxColors != 0 && b.MaxColors < b.MinColors {
			violations = append(violations, FieldViolation{Field: field, Message: "max colors cannot be below min colors"})
		}
		if !b.Multiplier.IsPositive() {
			violations = append(violations, FieldViolation{Field: field, Message: "multiplier must be positive"})
		}
		if i > 0 {
			prev := buckets[i-1]
			if prev.MaxColors == 0 {
				violations = append(violations, FieldViolation{Field: field, Message: "only the last bucket may be open-ended"})
			} else if b.MinColors <= prev.MaxColors {
				violations = append(violations, FieldViolation{Field: field, Message: "buckets must be ordered and non-overlapping"})
			}
		}
	}
	return violations
}

func validateVolumeTiers(tiers []models.VolumeTier) []FieldViolation {
	var violations []FieldViolation
	for i, t := range tiers {
		field := fmt.Sprintf("effects.volume_tiers[%d]", i)
		if t.MinQuantity < 1 {
			violations = append(violations, FieldViolation{Field: field, Message: "min quantity must be at least 1"})
		}
		if t.MaxQuantity != 0 && t.MaxQuantity < t.MinQuantity {
			violations = append(violations, FieldViolation{Field: field, Message: "max quantity cannot be below min quantity"})
		}
		if t.DiscountPct.IsNegative() || t.DiscountPct.GreaterThanOrEqual(decimalOne) {
			violations = append(violations, FieldViolation{Field: field, Message: "discount must be at least 0 and below 1"})
		}
		if i > 0 {
			prev := tiers[i-1]
			if prev.MaxQuantity == 0 {
				violations = append(violations, FieldViolation{Field: field, Message: "only the last tier may be open-ended"})
			} else if t.MinQuantity <= prev.MaxQuantity {
				violations = append(violations, FieldViolation{Field: field, Message: "tiers must be ordered and non-overlapping"})
			}
		}
	}
	return violations
}
