package dto

import (
	"github.com/shopspring/decimal"
)

// RuleConditionsDTO represents the predicate set of a pricing rule. Every
// field is optional; an omitted field matches any request.
type RuleConditionsDTO struct {
	ServiceTypes   []string `json:"service_types,omitempty" validate:"omitempty,dive,oneof=screen_print embroidery dtg vinyl"`
	CustomerTypes  []string `json:"customer_types,omitempty" validate:"omitempty,dive,oneof=standard contract wholesale education"`
	MinQuantity    *int     `json:"min_quantity,omitempty" validate:"omitempty,gte=1"`
	MaxQuantity    *int     `json:"max_quantity,omitempty" validate:"omitempty,gte=1"`
	PrintLocations []string `json:"print_locations,omitempty" validate:"omitempty,dive,oneof=front back left_sleeve right_sleeve neck"`
	GarmentIDs     []string `json:"garment_ids,omitempty" validate:"omitempty,dive,max=64"`
	IsRush         *bool    `json:"is_rush,omitempty"`
}

// ColorMultiplierDTO represents one color-count bucket. A max_colors of zero
// leaves the bucket open-ended.
type ColorMultiplierDTO struct {
	MinColors  int             `json:"min_colors" validate:"gte=1"`
	MaxColors  int             `json:"max_colors" validate:"gte=0"`
	Multiplier decimal.Decimal `json:"multiplier"`
}

// VolumeTierDTO represents one quantity range mapped to a discount fraction.
// A max_quantity of zero leaves the tier open-ended.
type VolumeTierDTO struct {
	MinQuantity int             `json:"min_quantity" validate:"gte=1"`
	MaxQuantity int             `json:"max_quantity" validate:"gte=0"`
	DiscountPct decimal.Decimal `json:"discount_pct"`
}

// SetupFeesDTO represents the flat setup charges for new and repeat designs
type SetupFeesDTO struct {
	NewDesign    decimal.Decimal `json:"new_design"`
	RepeatDesign decimal.Decimal `json:"repeat_design"`
}

// AddOnRuleDTO represents how one add-on type is charged
type AddOnRuleDTO struct {
	Kind   string          `json:"kind" validate:"required,oneof=flat percentage"`
	Amount decimal.Decimal `json:"amount"`
}

// RuleEffectsDTO represents the effect set of a pricing rule
type RuleEffectsDTO struct {
	BaseUnitPrices        map[string]decimal.Decimal `json:"base_unit_prices,omitempty"`
	LocationSurcharges    map[string]decimal.Decimal `json:"location_surcharges,omitempty"`
	ColorMultipliers      []ColorMultiplierDTO       `json:"color_multipliers,omitempty" validate:"omitempty,dive"`
	StitchRatePerThousand decimal.Decimal            `json:"stitch_rate_per_thousand"`
	SetupFees             SetupFeesDTO               `json:"setup_fees"`
	VolumeTiers           []VolumeTierDTO            `json:"volume_tiers,omitempty" validate:"omitempty,dive"`
	AddOnRules            map[string]AddOnRuleDTO    `json:"add_on_rules,omitempty" validate:"omitempty,dive"`
	MarginPct             decimal.Decimal            `json:"margin_pct"`
}

// RuleDTO represents one pricing rule version in API responses
type RuleDTO struct {
	ID                uint              `json:"id"`
	RuleID            string            `json:"rule_id"`
	Version           int               `json:"version"`
	Name              string            `json:"name"`
	Conditions        RuleConditionsDTO `json:"conditions"`
	Effects           RuleEffectsDTO    `json:"effects"`
	Priority          int               `json:"priority"`
	IsCurrent         bool              `json:"is_current"`
	IsActive          bool              `json:"is_active"`
	ChangeType        string            `json:"change_type"`
	ChangeNote        *string           `json:"change_note,omitempty"`
	PreviousVersionID *uint             `json:"previous_version_id,omitempty"`
	CreatedAt         string            `json:"created_at"`
	UpdatedAt         *string           `json:"updated_at,omitempty"`
}

// CreateRuleRequest represents the request to create a new pricing rule
type CreateRuleRequest struct {
	Name       string            `json:"name" validate:"required,max=255"`
	Conditions RuleConditionsDTO `json:"conditions"`
	Effects    RuleEffectsDTO    `json:"effects"`
	Priority   int               `json:"priority" validate:"gte=0"`
	ChangeNote *string           `json:"change_note,omitempty" validate:"omitempty,max=1000"`
}

// CreateRuleResponse represents the response to create a new pricing rule
type CreateRuleResponse struct {
	Message string  `json:"message"`
	Rule    RuleDTO `json:"rule"`
}

// UpdateRuleRequest represents the request to write a new version of a rule
type UpdateRuleRequest struct {
	RuleID     string            `json:"-"`
	Name       string            `json:"name" validate:"required,max=255"`
	Conditions RuleConditionsDTO `json:"conditions"`
	Effects    RuleEffectsDTO    `json:"effects"`
	Priority   int               `json:"priority" validate:"gte=0"`
	ChangeNote *string           `json:"change_note,omitempty" validate:"omitempty,max=1000"`
}

// UpdateRuleResponse represents the response to a rule update
type UpdateRuleResponse struct {
	Message string  `json:"message"`
	Rule    RuleDTO `json:"rule"`
}

// RollbackRuleRequest represents the request to restore an earlier version's
// content as a new version
type RollbackRuleRequest struct {
	RuleID    string `json:"-"`
	ToVersion int    `json:"to_version" validate:"required,gte=1"`
}

// RollbackRuleResponse represents the response to a rule rollback
type RollbackRuleResponse struct {
	Message string  `json:"message"`
	Rule    RuleDTO `json:"rule"`
}

// DeactivateRuleRequest represents the request to soft delete a rule
type DeactivateRuleRequest struct {
	RuleID string `json:"-"`
}

// DeactivateRuleResponse represents the response to a rule deactivation
type DeactivateRuleResponse struct {
	Message string  `json:"message"`
	Rule    RuleDTO `json:"rule"`
}

// GetRuleResponse represents the response of fetching a single rule
type GetRuleResponse struct {
	Message string  `json:"message"`
	Rule    RuleDTO `json:"rule"`
}

// ListRulesFilter represents filter criteria for listing rules
type ListRulesFilter struct {
	Name        *string `json:"name,omitempty"`
	IsActive    *bool   `json:"is_active,omitempty"`
	ServiceType *string `json:"service_type,omitempty" validate:"omitempty,oneof=screen_print embroidery dtg vinyl"`
}

// ListRulesRequest represents a paginated list request for current rules
type ListRulesRequest struct {
	Page    int              `json:"page"`
	Limit   int              `json:"limit"`
	OrderBy string           `json:"orderby"` // newest, oldest
	Filter  *ListRulesFilter `json:"filter,omitempty"`
}

// ListRulesResponse represents a paginated list of current rule versions
type ListRulesResponse struct {
	Message    string         `json:"message"`
	Items      []RuleDTO      `json:"items"`
	Pagination PaginationInfo `json:"pagination"`
}

// ListRuleVersionsResponse represents the full version chain of one rule,
// newest first
type ListRuleVersionsResponse struct {
	Message string    `json:"message"`
	Items   []RuleDTO `json:"items"`
}
