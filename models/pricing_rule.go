package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/printshop-os/pricing-engine/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ServiceType represents the decoration service a job is priced for
type ServiceType string

const (
	ServiceTypeScreenPrint ServiceType = "screen_print"
	ServiceTypeEmbroidery  ServiceType = "embroidery"
	ServiceTypeDTG         ServiceType = "dtg"
	ServiceTypeVinyl       ServiceType = "vinyl"
)

// String returns the string representation of the service type
func (s ServiceType) String() string {
	return string(s)
}

// Valid checks if the service type is valid
func (s ServiceType) Valid() bool {
	switch s {
	case ServiceTypeScreenPrint, ServiceTypeEmbroidery, ServiceTypeDTG, ServiceTypeVinyl:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for ServiceType
func (s *ServiceType) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = ServiceType(v)
	case []byte:
		*s = ServiceType(string(v))
	default:
		return fmt.Errorf("cannot scan %T into ServiceType", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for ServiceType
func (s ServiceType) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid ServiceType: %s", s)
	}
	return string(s), nil
}

// CustomerType represents the commercial relationship of the requesting customer
type CustomerType string

const (
	CustomerTypeStandard  CustomerType = "standard"
	CustomerTypeContract  CustomerType = "contract"
	CustomerTypeWholesale CustomerType = "wholesale"
	CustomerTypeEducation CustomerType = "education"
)

// String returns the string representation of the customer type
func (t CustomerType) String() string {
	return string(t)
}

// Valid checks if the customer type is valid
func (t CustomerType) Valid() bool {
	switch t {
	case CustomerTypeStandard, CustomerTypeContract, CustomerTypeWholesale, CustomerTypeEducation:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for CustomerType
func (t *CustomerType) Scan(value any) error {
	if value == nil {
		*t = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*t = CustomerType(v)
	case []byte:
		*t = CustomerType(string(v))
	default:
		return fmt.Errorf("cannot scan %T into CustomerType", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for CustomerType
func (t CustomerType) Value() (driver.Value, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid CustomerType: %s", t)
	}
	return string(t), nil
}

// PrintLocation represents a decoration placement on a garment
type PrintLocation string

const (
	PrintLocationFront       PrintLocation = "front"
	PrintLocationBack        PrintLocation = "back"
	PrintLocationLeftSleeve  PrintLocation = "left_sleeve"
	PrintLocationRightSleeve PrintLocation = "right_sleeve"
	PrintLocationNeck        PrintLocation = "neck"
)

// String returns the string representation of the print location
func (l PrintLocation) String() string {
	return string(l)
}

// Valid checks if the print location is valid
func (l PrintLocation) Valid() bool {
	switch l {
	case PrintLocationFront, PrintLocationBack, PrintLocationLeftSleeve,
		PrintLocationRightSleeve, PrintLocationNeck:
		return true
	default:
		return false
	}
}

// AddOnType represents an optional extra applied after the volume discount
type AddOnType string

const (
	AddOnTypeRush     AddOnType = "rush"
	AddOnTypeShipping AddOnType = "shipping"
	AddOnTypeTax      AddOnType = "tax"
	AddOnTypeFolding  AddOnType = "folding"
	AddOnTypePolyBag  AddOnType = "poly_bag"
)

// String returns the string representation of the add-on type
func (t AddOnType) String() string {
	return string(t)
}

// Valid checks if the add-on type is valid
func (t AddOnType) Valid() bool {
	switch t {
	case AddOnTypeRush, AddOnTypeShipping, AddOnTypeTax, AddOnTypeFolding, AddOnTypePolyBag:
		return true
	default:
		return false
	}
}

// AddOnKind represents how an add-on charge is computed
type AddOnKind string

const (
	// AddOnKindFlat charges Amount once per selected add-on unit
	AddOnKindFlat AddOnKind = "flat"
	// AddOnKindPercentage charges Amount as a fraction of the post-discount subtotal
	AddOnKindPercentage AddOnKind = "percentage"
)

// String returns the string representation of the add-on kind
func (k AddOnKind) String() string {
	return string(k)
}

// Valid checks if the add-on kind is valid
func (k AddOnKind) Valid() bool {
	return k == AddOnKindFlat || k == AddOnKindPercentage
}

// RuleChangeType records why a rule version was written
type RuleChangeType string

const (
	RuleChangeTypeCreated     RuleChangeType = "created"
	RuleChangeTypeUpdated     RuleChangeType = "updated"
	RuleChangeTypeRollback    RuleChangeType = "rollback"
	RuleChangeTypeDeactivated RuleChangeType = "deactivated"
)

// String returns the string representation of the change type
func (t RuleChangeType) String() string {
	return string(t)
}

// Valid checks if the change type is valid
func (t RuleChangeType) Valid() bool {
	switch t {
	case RuleChangeTypeCreated, RuleChangeTypeUpdated, RuleChangeTypeRollback, RuleChangeTypeDeactivated:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for RuleChangeType
func (t *RuleChangeType) Scan(value any) error {
	if value == nil {
		*t = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*t = RuleChangeType(v)
	case []byte:
		*t = RuleChangeType(string(v))
	default:
		return fmt.Errorf("cannot scan %T into RuleChangeType", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for RuleChangeType
func (t RuleChangeType) Value() (driver.Value, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid RuleChangeType: %s", t)
	}
	return string(t), nil
}

// RuleConditions is the JSON predicate set of a pricing rule. Every field is
// optional; an absent field is a wildcard that matches any request.
type RuleConditions struct {
	ServiceTypes   []ServiceType   `json:"service_types,omitempty"`
	CustomerTypes  []CustomerType  `json:"customer_types,omitempty"`
	MinQuantity    *int            `json:"min_quantity,omitempty"`
	MaxQuantity    *int            `json:"max_quantity,omitempty"`
	PrintLocations []PrintLocation `json:"print_locations,omitempty"`
	GarmentIDs     []string        `json:"garment_ids,omitempty"`
	IsRush         *bool           `json:"is_rush,omitempty"`
}

// Value implements the driver.Valuer interface for RuleConditions
func (c RuleConditions) Value() (driver.Value, error) {
	return json.Marshal(c)
}

// Scan implements the sql.Scanner interface for RuleConditions
func (c *RuleConditions) Scan(value any) error {
	if value == nil {
		*c = RuleConditions{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into RuleConditions", value)
	}

	return json.Unmarshal(bytes, c)
}

// hasQuantityRange reports whether a quantity bound is declared
func (c RuleConditions) hasQuantityRange() bool {
	return c.MinQuantity != nil || c.MaxQuantity != nil
}

// DeclaredDimensions counts the explicit (non-wildcard) condition dimensions.
// A quantity range counts as one dimension regardless of which bounds are set.
func (c RuleConditions) DeclaredDimensions() int {
	count := 0
	if len(c.ServiceTypes) > 0 {
		count++
	}
	if len(c.CustomerTypes) > 0 {
		count++
	}
	if c.hasQuantityRange() {
		count++
	}
	if len(c.PrintLocations) > 0 {
		count++
	}
	if len(c.GarmentIDs) > 0 {
		count++
	}
	if c.IsRush != nil {
		count++
	}
	return count
}

// Matches reports whether every declared condition is satisfied by the
// request. Undeclared dimensions match anything.
func (c RuleConditions) Matches(req *CalculationRequest) bool {
	if len(c.ServiceTypes) > 0 && !containsServiceType(c.ServiceTypes, req.ServiceType) {
		return false
	}
	if len(c.CustomerTypes) > 0 && !containsCustomerType(c.CustomerTypes, req.CustomerType) {
		return false
	}
	if c.MinQuantity != nil && req.Quantity < *c.MinQuantity {
		return false
	}
	if c.MaxQuantity != nil && req.Quantity > *c.MaxQuantity {
		return false
	}
	if len(c.PrintLocations) > 0 && !locationsSubset(req.PrintLocations, c.PrintLocations) {
		return false
	}
	if len(c.GarmentIDs) > 0 && !containsString(c.GarmentIDs, req.GarmentID) {
		return false
	}
	if c.IsRush != nil && *c.IsRush != req.IsRush {
		return false
	}
	return true
}

// Clone returns a deep copy of the conditions
func (c RuleConditions) Clone() RuleConditions {
	out := RuleConditions{}
	if len(c.ServiceTypes) > 0 {
		out.ServiceTypes = append([]ServiceType(nil), c.ServiceTypes...)
	}
	if len(c.CustomerTypes) > 0 {
		out.CustomerTypes = append([]CustomerType(nil), c.CustomerTypes...)
	}
	if c.MinQuantity != nil {
		out.MinQuantity = utils.ToPtr(*c.MinQuantity)
	}
	if c.MaxQuantity != nil {
		out.MaxQuantity = utils.ToPtr(*c.MaxQuantity)
	}
	if len(c.PrintLocations) > 0 {
		out.PrintLocations = append([]PrintLocation(nil), c.PrintLocations...)
	}
	if len(c.GarmentIDs) > 0 {
		out.GarmentIDs = append([]string(nil), c.GarmentIDs...)
	}
	if c.IsRush != nil {
		out.IsRush = utils.ToPtr(*c.IsRush)
	}
	return out
}

func containsServiceType(set []ServiceType, v ServiceType) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func containsCustomerType(set []CustomerType, v CustomerType) bool {
	for _, t := range set {
		if t == v {
			return true
		}
	}
	return false
}

func containsString(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func locationsSubset(requested, declared []PrintLocation) bool {
	for _, loc := range requested {
		found := false
		for _, d := range declared {
			if d == loc {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// ColorMultiplier maps a color-count bucket to a unit price multiplier.
// MaxColors of zero means the bucket is open-ended.
type ColorMultiplier struct {
	MinColors  int             `json:"min_colors"`
	MaxColors  int             `json:"max_colors"`
	Multiplier decimal.Decimal `json:"multiplier"`
}

// Contains reports whether the color count falls in this bucket
func (m ColorMultiplier) Contains(colorCount int) bool {
	if colorCount < m.MinColors {
		return false
	}
	return m.MaxColors == 0 || colorCount <= m.MaxColors
}

// VolumeTier maps a quantity range to a discount fraction.
// MaxQuantity of zero means the tier is open-ended.
type VolumeTier struct {
	MinQuantity int             `json:"min_quantity"`
	MaxQuantity int             `json:"max_quantity"`
	DiscountPct decimal.Decimal `json:"discount_pct"`
}

// Contains reports whether the quantity falls in this tier
func (t VolumeTier) Contains(quantity int) bool {
	if quantity < t.MinQuantity {
		return false
	}
	return t.MaxQuantity == 0 || quantity <= t.MaxQuantity
}

// SetupFees holds the flat per-line-item setup charges
type SetupFees struct {
	NewDesign    decimal.Decimal `json:"new_design"`
	RepeatDesign decimal.Decimal `json:"repeat_design"`
}

// AddOnRule describes how one add-on type is charged
type AddOnRule struct {
	Kind   AddOnKind       `json:"kind"`
	Amount decimal.Decimal `json:"amount"`
}

// RuleEffects is the JSON effect set of a pricing rule: every configurable
// number the calculation pipeline consumes.
//
// MarginPct uses the markup-on-cost convention: the final price is the
// post-add-on subtotal multiplied by (1 + MarginPct).
type RuleEffects struct {
	BaseUnitPrices        map[string]decimal.Decimal        `json:"base_unit_prices,omitempty"`
	LocationSurcharges    map[PrintLocation]decimal.Decimal `json:"location_surcharges,omitempty"`
	ColorMultipliers      []ColorMultiplier                 `json:"color_multipliers,omitempty"`
	StitchRatePerThousand decimal.Decimal                   `json:"stitch_rate_per_thousand"`
	SetupFees             SetupFees                         `json:"setup_fees"`
	VolumeTiers           []VolumeTier                      `json:"volume_tiers,omitempty"`
	AddOnRules            map[AddOnType]AddOnRule           `json:"add_on_rules,omitempty"`
	MarginPct             decimal.Decimal                   `json:"margin_pct"`
}

// Value implements the driver.Valuer interface for RuleEffects
func (e RuleEffects) Value() (driver.Value, error) {
	return json.Marshal(e)
}

// Scan implements the sql.Scanner interface for RuleEffects
func (e *RuleEffects) Scan(value any) error {
	if value == nil {
		*e = RuleEffects{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into RuleEffects", value)
	}

	return json.Unmarshal(bytes, e)
}

// BaseUnitPriceFor returns the per-garment override price, if declared
func (e RuleEffects) BaseUnitPriceFor(garmentID string) (decimal.Decimal, bool) {
	p, ok := e.BaseUnitPrices[garmentID]
	return p, ok
}

// SurchargeFor returns the surcharge for a print location, if declared
func (e RuleEffects) SurchargeFor(loc PrintLocation) (decimal.Decimal, bool) {
	s, ok := e.LocationSurcharges[loc]
	return s, ok
}

// MultiplierFor returns the color multiplier bucket containing colorCount
func (e RuleEffects) MultiplierFor(colorCount int) (decimal.Decimal, bool) {
	for _, m := range e.ColorMultipliers {
		if m.Contains(colorCount) {
			return m.Multiplier, true
		}
	}
	return decimal.Decimal{}, false
}

// TierFor returns the volume tier containing quantity
func (e RuleEffects) TierFor(quantity int) (VolumeTier, bool) {
	for _, t := range e.VolumeTiers {
		if t.Contains(quantity) {
			return t, true
		}
	}
	return VolumeTier{}, false
}

// SetupFeeFor returns the setup fee for a new or repeat design
func (e RuleEffects) SetupFeeFor(isNewDesign bool) decimal.Decimal {
	if isNewDesign {
		return e.SetupFees.NewDesign
	}
	return e.SetupFees.RepeatDesign
}

// AddOnRuleFor returns the charging rule for an add-on type, if declared
func (e RuleEffects) AddOnRuleFor(t AddOnType) (AddOnRule, bool) {
	r, ok := e.AddOnRules[t]
	return r, ok
}

// Clone returns a deep copy of the effects
func (e RuleEffects) Clone() RuleEffects {
	out := RuleEffects{
		StitchRatePerThousand: e.StitchRatePerThousand,
		SetupFees:             e.SetupFees,
		MarginPct:             e.MarginPct,
	}
	if len(e.BaseUnitPrices) > 0 {
		out.BaseUnitPrices = make(map[string]decimal.Decimal, len(e.BaseUnitPrices))
		for k, v := range e.BaseUnitPrices {
			out.BaseUnitPrices[k] = v
		}
	}
	if len(e.LocationSurcharges) > 0 {
		out.LocationSurcharges = make(map[PrintLocation]decimal.Decimal, len(e.LocationSurcharges))
		for k, v := range e.LocationSurcharges {
			out.LocationSurcharges[k] = v
		}
	}
	if len(e.ColorMultipliers) > 0 {
		out.ColorMultipliers = append([]ColorMultiplier(nil), e.ColorMultipliers...)
	}
	if len(e.VolumeTiers) > 0 {
		out.VolumeTiers = append([]VolumeTier(nil), e.VolumeTiers...)
	}
	if len(e.AddOnRules) > 0 {
		out.AddOnRules = make(map[AddOnType]AddOnRule, len(e.AddOnRules))
		for k, v := range e.AddOnRules {
			out.AddOnRules[k] = v
		}
	}
	return out
}

// PricingRule is one immutable version of a pricing rule. A rule's identity
// is RuleID; every edit writes a new row with the next Version and the row it
// superseded is kept unmodified. Exactly one row per RuleID carries
// IsCurrent=true at any time.
type PricingRule struct {
	ID                uint           `gorm:"primaryKey" json:"id"`
	RuleID            uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:uk_pricing_rules_rule_id_version,priority:1;index:idx_pricing_rules_rule_id" json:"rule_id"`
	Version           int            `gorm:"not null;uniqueIndex:uk_pricing_rules_rule_id_version,priority:2" json:"version"`
	Name              string         `gorm:"size:255;not null" json:"name"`
	Conditions        RuleConditions `gorm:"type:jsonb;not null" json:"conditions"`
	Effects           RuleEffects    `gorm:"type:jsonb;not null" json:"effects"`
	Priority          int            `gorm:"not null;default:0" json:"priority"`
	IsCurrent         *bool          `gorm:"not null;default:true;index:idx_pricing_rules_is_current" json:"is_current"`
	IsActive          *bool          `gorm:"not null;default:true;index:idx_pricing_rules_is_active" json:"is_active"`
	ChangeType        RuleChangeType `gorm:"type:pricing_rule_change_type;not null;default:'created'" json:"change_type"`
	ChangeNote        *string        `gorm:"type:text" json:"change_note,omitempty"`
	PreviousVersionID *uint          `gorm:"index:idx_pricing_rules_previous_version_id" json:"previous_version_id,omitempty"`
	CreatedAt         time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_pricing_rules_created_at" json:"created_at"`
	UpdatedAt         *time.Time     `json:"updated_at,omitempty"`
}

// TableName maps the model onto pricing_rules.
func (PricingRule) TableName() string {
	return "pricing_rules"
}

// BeforeCreate defaults the identity and flag columns so a bare rule insert
// lands as an active current version 1.
func (r *PricingRule) BeforeCreate(tx *gorm.DB) error {
	if r.RuleID == uuid.Nil {
		r.RuleID = uuid.New()
	}
	if r.Version == 0 {
		r.Version = 1
	}
	if r.ChangeType == "" {
		r.ChangeType = RuleChangeTypeCreated
	}
	if r.IsCurrent == nil {
		r.IsCurrent = utils.ToPtr(true)
	}
	if r.IsActive == nil {
		r.IsActive = utils.ToPtr(true)
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = utils.UTCNow()
	}
	return nil
}

// BeforeUpdate stamps the modification time.
func (r *PricingRule) BeforeUpdate(tx *gorm.DB) error {
	r.UpdatedAt = utils.UTCNowPtr()
	return nil
}

// IsUsable reports whether the version participates in matching
func (r *PricingRule) IsUsable() bool {
	return utils.IsTrue(r.IsCurrent) && utils.IsTrue(r.IsActive)
}

// Snapshot returns a deep copy of the rule. The calculation pipeline runs
// against snapshots so concurrent edits never touch an in-flight calculation.
func (r *PricingRule) Snapshot() *PricingRule {
	if r == nil {
		return nil
	}
	cp := *r
	cp.Conditions = r.Conditions.Clone()
	cp.Effects = r.Effects.Clone()
	if r.ChangeNote != nil {
		cp.ChangeNote = utils.ToPtr(*r.ChangeNote)
	}
	if r.PreviousVersionID != nil {
		cp.PreviousVersionID = utils.ToPtr(*r.PreviousVersionID)
	}
	if r.IsCurrent != nil {
		cp.IsCurrent = utils.ToPtr(*r.IsCurrent)
	}
	if r.IsActive != nil {
		cp.IsActive = utils.ToPtr(*r.IsActive)
	}
	if r.UpdatedAt != nil {
		cp.UpdatedAt = utils.ToPtr(*r.UpdatedAt)
	}
	return &cp
}

// PricingRuleFilter represents filter criteria for pricing rules
type PricingRuleFilter struct {
	ID            *uint           `json:"id,omitempty"`
	RuleID        *uuid.UUID      `json:"rule_id,omitempty"`
	Name          *string         `json:"name,omitempty"`
	Version       *int            `json:"version,omitempty"`
	IsCurrent     *bool           `json:"is_current,omitempty"`
	IsActive      *bool           `json:"is_active,omitempty"`
	ServiceType   *ServiceType    `json:"service_type,omitempty"`
	ChangeType    *RuleChangeType `json:"change_type,omitempty"`
	CreatedAfter  *time.Time      `json:"created_after,omitempty"`
	CreatedBefore *time.Time      `json:"created_before,omitempty"`
}
