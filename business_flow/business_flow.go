// Package businessflow contains the core business logic for the pricing engine
package businessflow

import (
	"time"

	"github.com/google/uuid"
	"github.com/printshop-os/pricing-engine/app/dto"
	"github.com/printshop-os/pricing-engine/models"
	"github.com/printshop-os/pricing-engine/utils"
	"github.com/shopspring/decimal"
)

// ToRuleDTO converts a pricing rule version to its API representation
func ToRuleDTO(rule *models.PricingRule) dto.RuleDTO {
	out := dto.RuleDTO{
		ID:                rule.ID,
		RuleID:            rule.RuleID.String(),
		Version:           rule.Version,
		Name:              rule.Name,
		Conditions:        conditionsToDTO(rule.Conditions),
		Effects:           effectsToDTO(rule.Effects),
		Priority:          rule.Priority,
		IsCurrent:         utils.IsTrue(rule.IsCurrent),
		IsActive:          utils.IsTrue(rule.IsActive),
		ChangeType:        rule.ChangeType.String(),
		ChangeNote:        rule.ChangeNote,
		PreviousVersionID: rule.PreviousVersionID,
		CreatedAt:         rule.CreatedAt.Format(time.RFC3339),
	}
	if rule.UpdatedAt != nil {
		out.UpdatedAt = utils.ToPtr(rule.UpdatedAt.Format(time.RFC3339))
	}
	return out
}

// ToHistoryEntryDTO converts a recorded calculation to its API representation
func ToHistoryEntryDTO(entry *models.CalculationHistory) dto.HistoryEntryDTO {
	return dto.HistoryEntryDTO{
		UUID:               entry.UUID.String(),
		GarmentID:          entry.GarmentID,
		ServiceType:        entry.ServiceType.String(),
		CustomerType:       entry.CustomerType.String(),
		Quantity:           entry.Quantity,
		MatchedRuleID:      entry.MatchedRuleID.String(),
		MatchedRuleVersion: entry.MatchedRuleVersion,
		TotalPrice:         entry.TotalPrice,
		CalculationTimeMs:  entry.CalculationTimeMs,
		CreatedAt:          entry.CreatedAt.Format(time.RFC3339),
		Request:            requestToDTO(entry.Request),
		Result:             resultToDTO(&entry.Result),
	}
}

func conditionsToDTO(c models.RuleConditions) dto.RuleConditionsDTO {
	out := dto.RuleConditionsDTO{
		MinQuantity: c.MinQuantity,
		MaxQuantity: c.MaxQuantity,
		IsRush:      c.IsRush,
	}
	for _, s := range c.ServiceTypes {
		out.ServiceTypes = append(out.ServiceTypes, s.String())
	}
	for _, t := range c.CustomerTypes {
		out.CustomerTypes = append(out.CustomerTypes, t.String())
	}
	for _, l := range c.PrintLocations {
		out.PrintLocations = append(out.PrintLocations, l.String())
	}
	if len(c.GarmentIDs) > 0 {
		out.GarmentIDs = append([]string(nil), c.GarmentIDs...)
	}
	return out
}

func conditionsFromDTO(c dto.RuleConditionsDTO) models.RuleConditions {
	out := models.RuleConditions{
		MinQuantity: c.MinQuantity,
		MaxQuantity: c.MaxQuantity,
		IsRush:      c.IsRush,
	}
	for _, s := range c.ServiceTypes {
		out.ServiceTypes = append(out.ServiceTypes, models.ServiceType(s))
	}
	for _, t := range c.CustomerTypes {
		out.CustomerTypes = append(out.CustomerTypes, models.CustomerType(t))
	}
	for _, l := range c.PrintLocations {
		out.PrintLocations = append(out.PrintLocations, models.PrintLocation(l))
	}
	if len(c.GarmentIDs) > 0 {
		out.GarmentIDs = append([]string(nil), c.GarmentIDs...)
	}
	return out
}

func effectsToDTO(e models.RuleEffects) dto.RuleEffectsDTO {
	out := dto.RuleEffectsDTO{
		StitchRatePerThousand: e.StitchRatePerThousand,
		SetupFees: dto.SetupFeesDTO{
			NewDesign:    e.SetupFees.NewDesign,
			RepeatDesign: e.SetupFees.RepeatDesign,
		},
		MarginPct: e.MarginPct,
	}
	if len(e.BaseUnitPrices) > 0 {
		out.BaseUnitPrices = make(map[string]decimal.Decimal, len(e.BaseUnitPrices))
		for k, v := range e.BaseUnitPrices {
			out.BaseUnitPrices[k] = v
		}
	}
	if len(e.LocationSurcharges) > 0 {
		out.LocationSurcharges = make(map[string]decimal.Decimal, len(e.LocationSurcharges))
		for k, v := range e.LocationSurcharges {
			out.LocationSurcharges[k.String()] = v
		}
	}
	for _, m := range e.ColorMultipliers {
		out.ColorMultipliers = append(out.ColorMultipliers, dto.ColorMultiplierDTO{
			MinColors:  m.MinColors,
			MaxColors:  m.MaxColors,
			Multiplier: m.Multiplier,
		})
	}
	for _, t := range e.VolumeTiers {
		out.VolumeTiers = append(out.VolumeTiers, dto.VolumeTierDTO{
			MinQuantity: t.MinQuantity,
			MaxQuantity: t.MaxQuantity,
			DiscountPct: t.DiscountPct,
		})
	}
	if len(e.AddOnRules) > 0 {
		out.AddOnRules = make(map[string]dto.AddOnRuleDTO, len(e.AddOnRules))
		for k, v := range e.AddOnRules {
			out.AddOnRules[k.String()] = dto.AddOnRuleDTO{Kind: v.Kind.String(), Amount: v.Amount}
		}
	}
	return out
}

func effectsFromDTO(e dto.RuleEffectsDTO) models.RuleEffects {
	out := models.RuleEffects{
		StitchRatePerThousand: e.StitchRatePerThousand,
		SetupFees: models.SetupFees{
			NewDesign:    e.SetupFees.NewDesign,
			RepeatDesign: e.SetupFees.RepeatDesign,
		},
		MarginPct: e.MarginPct,
	}
	if len(e.BaseUnitPrices) > 0 {
		out.BaseUnitPrices = make(map[string]decimal.Decimal, len(e.BaseUnitPrices))
		for k, v := range e.BaseUnitPrices {
			out.BaseUnitPrices[k] = v
		}
	}
	if len(e.LocationSurcharges) > 0 {
		out.LocationSurcharges = make(map[models.PrintLocation]decimal.Decimal, len(e.LocationSurcharges))
		for k, v := range e.LocationSurcharges {
			out.LocationSurcharges[models.PrintLocation(k)] = v
		}
	}
	for _, m := range e.ColorMultipliers {
		out.ColorMultipliers = append(out.ColorMultipliers, models.ColorMultiplier{
			MinColors:  m.MinColors,
			MaxColors:  m.MaxColors,
			Multiplier: m.Multiplier,
		})
	}
	for _, t := range e.VolumeTiers {
		out.VolumeTiers = append(out.VolumeTiers, models.VolumeTier{
			MinQuantity: t.MinQuantity,
			MaxQuantity: t.MaxQuantity,
			DiscountPct: t.DiscountPct,
		})
	}
	if len(e.AddOnRules) > 0 {
		out.AddOnRules = make(map[models.AddOnType]models.AddOnRule, len(e.AddOnRules))
		for k, v := range e.AddOnRules {
			out.AddOnRules[models.AddOnType(k)] = models.AddOnRule{
				Kind:   models.AddOnKind(v.Kind),
				Amount: v.Amount,
			}
		}
	}
	return out
}

func requestFromDTO(r *dto.CalculatePriceRequest) models.CalculationRequest {
	out := models.CalculationRequest{
		GarmentID:    r.GarmentID,
		Quantity:     r.Quantity,
		ServiceType:  models.ServiceType(r.ServiceType),
		ColorCount:   r.ColorCount,
		StitchCount:  r.StitchCount,
		CustomerType: models.CustomerType(r.CustomerType),
		IsRush:       r.IsRush,
		IsNewDesign:  r.IsNewDesign,
	}
	for _, l := range r.PrintLocations {
		out.PrintLocations = append(out.PrintLocations, models.PrintLocation(l))
	}
	for _, a := range r.AddOns {
		out.AddOns = append(out.AddOns, models.AddOnSelection{
			Type:     models.AddOnType(a.Type),
			Quantity: a.Quantity,
		})
	}
	return out
}

func requestToDTO(r models.CalculationRequest) dto.CalculatePriceRequest {
	out := dto.CalculatePriceRequest{
		GarmentID:    r.GarmentID,
		Quantity:     r.Quantity,
		ServiceType:  r.ServiceType.String(),
		ColorCount:   r.ColorCount,
		StitchCount:  r.StitchCount,
		CustomerType: r.CustomerType.String(),
		IsRush:       r.IsRush,
		IsNewDesign:  r.IsNewDesign,
	}
	for _, l := range r.PrintLocations {
		out.PrintLocations = append(out.PrintLocations, l.String())
	}
	for _, a := range r.AddOns {
		out.AddOns = append(out.AddOns, dto.AddOnSelectionDTO{
			Type:     a.Type.String(),
			Quantity: a.Quantity,
		})
	}
	return out
}

func resultToDTO(r *models.CalculationResult) dto.CalculationResultDTO {
	out := dto.CalculationResultDTO{
		UnitPrice:          r.UnitPrice,
		Subtotal:           r.Subtotal,
		MarginPct:          r.MarginPct,
		TotalPrice:         r.TotalPrice,
		MatchedRuleID:      r.MatchedRuleID,
		MatchedRuleVersion: r.MatchedRuleVersion,
		RulesetGeneration:  r.RulesetGeneration,
		Cached:             r.Cached,
		CalculationTimeMs:  r.CalculationTimeMs,
	}
	for _, li := range r.LineItems {
		out.LineItems = append(out.LineItems, dto.LineItemDTO{
			Stage:       li.Stage,
			Description: li.Description,
			Amount:      li.Amount,
		})
	}
	return out
}

func parseRuleID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, NewBusinessError("RULE_ID_INVALID", "Rule id must be a valid UUID", ErrRuleNotFound)
	}
	return id, nil
}
