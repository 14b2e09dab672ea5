// Package testing provides the database bootstrap and fixtures for the
// integration tests
package testing

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/printshop-os/pricing-engine/models"
	"github.com/printshop-os/pricing-engine/utils"
	"github.com/shopspring/decimal"
)

// TestFixtures seeds rules, requests, and history rows for the integration
// tests.
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures wraps the test database with the seeding helpers.
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// DefaultTestEffects returns a screen print effect set with two-location
// surcharges, color multipliers, volume tiers, setup fees, and a 35% margin
func DefaultTestEffects() models.RuleEffects {
	return models.RuleEffects{
		LocationSurcharges: map[models.PrintLocation]decimal.Decimal{
			models.PrintLocationFront:       decimal.RequireFromString("2.00"),
			models.PrintLocationBack:        decimal.RequireFromString("3.00"),
			models.PrintLocationLeftSleeve:  decimal.RequireFromString("1.50"),
			models.PrintLocationRightSleeve: decimal.RequireFromString("1.50"),
		},
		ColorMultipliers: []models.ColorMultiplier{
			{MinColors: 1, MaxColors: 2, Multiplier: decimal.RequireFromString("1.0")},
			{MinColors: 3, MaxColors: 4, Multiplier: decimal.RequireFromString("1.3")},
			{MinColors: 5, MaxColors: 0, Multiplier: decimal.RequireFromString("1.6")},
		},
		SetupFees: models.SetupFees{
			NewDesign:    decimal.RequireFromString("50.00"),
			RepeatDesign: decimal.RequireFromString("25.00"),
		},
		VolumeTiers: []models.VolumeTier{
			{MinQuantity: 100, MaxQuantity: 499, DiscountPct: decimal.RequireFromString("0.10")},
			{MinQuantity: 500, MaxQuantity: 0, DiscountPct: decimal.RequireFromString("0.20")},
		},
		AddOnRules: map[models.AddOnType]models.AddOnRule{
			models.AddOnTypeRush:    {Kind: models.AddOnKindPercentage, Amount: decimal.RequireFromString("0.15")},
			models.AddOnTypeFolding: {Kind: models.AddOnKindFlat, Amount: decimal.RequireFromString("0.25")},
		},
		MarginPct: decimal.RequireFromString("0.35"),
	}
}

// DefaultTestConditions returns conditions matching any screen print request
func DefaultTestConditions() models.RuleConditions {
	return models.RuleConditions{
		ServiceTypes: []models.ServiceType{models.ServiceTypeScreenPrint},
	}
}

// CreateTestRule creates an active current rule at version 1
func (tf *TestFixtures) CreateTestRule(name string) (*models.PricingRule, error) {
	rule := &models.PricingRule{
		RuleID:     uuid.New(),
		Version:    1,
		Name:       name,
		Conditions: DefaultTestConditions(),
		Effects:    DefaultTestEffects(),
		Priority:   0,
		IsCurrent:  utils.ToPtr(true),
		IsActive:   utils.ToPtr(true),
		ChangeType: models.RuleChangeTypeCreated,
		CreatedAt:  utils.UTCNow(),
	}

	if err := tf.DB.DB.Create(rule).Error; err != nil {
		return nil, fmt.Errorf("failed to create test rule: %w", err)
	}

	return rule, nil
}

// CreateTestRuleVersion appends a new current version to an existing rule,
// flipping the previous current row off first
func (tf *TestFixtures) CreateTestRuleVersion(rule *models.PricingRule, mutate func(*models.PricingRule)) (*models.PricingRule, error) {
	err := tf.DB.DB.Model(&models.PricingRule{}).
		Where("rule_id = ? AND is_current = ?", rule.RuleID, true).
		Update("is_current", false).Error
	if err != nil {
		return nil, fmt.Errorf("failed to clear current version: %w", err)
	}

	next := &models.PricingRule{
		RuleID:            rule.RuleID,
		Version:           rule.Version + 1,
		Name:              rule.Name,
		Conditions:        rule.Conditions.Clone(),
		Effects:           rule.Effects.Clone(),
		Priority:          rule.Priority,
		IsCurrent:         utils.ToPtr(true),
		IsActive:          utils.ToPtr(true),
		ChangeType:        models.RuleChangeTypeUpdated,
		PreviousVersionID: utils.ToPtr(rule.ID),
		CreatedAt:         utils.UTCNow(),
	}
	if mutate != nil {
		mutate(next)
	}

	if err := tf.DB.DB.Create(next).Error; err != nil {
		return nil, fmt.Errorf("failed to create test rule version: %w", err)
	}

	return next, nil
}

// CreateTestHistoryEntry records a priced calculation for history tests
func (tf *TestFixtures) CreateTestHistoryEntry(rule *models.PricingRule, garmentID string, quantity int) (*models.CalculationHistory, error) {
	request := models.CalculationRequest{
		GarmentID:      garmentID,
		Quantity:       quantity,
		ServiceType:    models.ServiceTypeScreenPrint,
		PrintLocations: []models.PrintLocation{models.PrintLocationFront},
		ColorCount:     1,
		CustomerType:   models.CustomerTypeStandard,
	}

	entry := &models.CalculationHistory{
		UUID:               uuid.New(),
		GarmentID:          garmentID,
		ServiceType:        request.ServiceType,
		CustomerType:       request.CustomerType,
		Quantity:           quantity,
		PrintLocations:     []string{"front"},
		MatchedRuleID:      rule.RuleID,
		MatchedRuleVersion: rule.Version,
		TotalPrice:         decimal.RequireFromString("100.00"),
		CalculationTimeMs:  1.5,
		Request:            request,
		Result: models.CalculationResult{
			UnitPrice:          decimal.RequireFromString("10.00"),
			Subtotal:           decimal.RequireFromString("100.00"),
			MarginPct:          decimal.RequireFromString("0.35"),
			TotalPrice:         decimal.RequireFromString("100.00"),
			MatchedRuleID:      rule.RuleID.String(),
			MatchedRuleVersion: rule.Version,
		},
		CreatedAt: utils.UTCNow(),
	}

	if err := tf.DB.DB.Create(entry).Error; err != nil {
		return nil, fmt.Errorf("failed to create test history entry: %w", err)
	}

	return entry, nil
}

// CreateHistoryEntryAt records a calculation with an explicit creation time
// for date range filter tests
func (tf *TestFixtures) CreateHistoryEntryAt(rule *models.PricingRule, garmentID string, createdAt time.Time) (*models.CalculationHistory, error) {
	entry, err := tf.CreateTestHistoryEntry(rule, garmentID, 10)
	if err != nil {
		return nil, err
	}

	err = tf.DB.DB.Model(&models.CalculationHistory{}).
		Where("id = ?", entry.ID).
		Update("created_at", createdAt).Error
	if err != nil {
		return nil, fmt.Errorf("failed to backdate history entry: %w", err)
	}
	entry.CreatedAt = createdAt

	return entry, nil
}
