package businessflow

import (
	"fmt"
	"strings"

	"github.com/printshop-os/pricing-engine/models"
	"github.com/printshop-os/pricing-engine/utils"
	"github.com/shopspring/decimal"
)

var (
	decimalOne     = decimal.NewFromInt(1)
	decimalHundred = decimal.NewFromInt(100)
)

// computePrice runs the fixed-order calculation pipeline over a canonicalized
// request, a rule snapshot, and the external garment unit cost. It is a pure
// function: no shared state, no side effects, safe under full concurrency.
//
// Stage order is the audit contract. Stages 1 through 4 build the per-unit
// price and record per-unit contributions; stage 5 onward record order-level
// amounts. Intermediate arithmetic stays at full decimal precision; line item
// amounts and the terminal total round half-up to cents. Any stage failure
// aborts the whole calculation, a partial price is never returned.
func computePrice(req *models.CalculationRequest, rule *models.PricingRule, unitCost decimal.Decimal) (*models.CalculationResult, error) {
	result := &models.CalculationResult{
		MatchedRuleID:      rule.RuleID.String(),
		MatchedRuleVersion: rule.Version,
		MarginPct:          rule.Effects.MarginPct,
	}

	// Stage 1: base cost. The rule's per-garment override wins over the
	// external lookup when declared.
	unit := unitCost
	if override, ok := rule.Effects.BaseUnitPriceFor(req.GarmentID); ok {
		unit = override
	}
	appendLine(result, models.StageBaseCost,
		fmt.Sprintf("garment %s base cost", req.GarmentID), unit)

	// Stage 2: location surcharges. Every requested location must have a
	// surcharge entry on the rule, a zero surcharge is declared as 0.
	surcharge := decimal.Zero
	for _, loc := range req.PrintLocations {
		s, ok := rule.Effects.SurchargeFor(loc)
		if !ok {
			return nil, NewCalculationError(models.StageLocationSurcharge, loc.String(),
				fmt.Sprintf("rule %s declares no surcharge for location %s", rule.RuleID, loc))
		}
		surcharge = surcharge.Add(s)
	}
	unit = unit.Add(surcharge)
	appendLine(result, models.StageLocationSurcharge,
		fmt.Sprintf("surcharges for %s", joinLocations(req.PrintLocations)), surcharge)

	// Stage 3: color multiplier. Skipped entirely when the rule declares no
	// buckets; once buckets exist the request's color count must fall in one.
	if len(rule.Effects.ColorMultipliers) > 0 {
		multiplier, ok := rule.Effects.MultiplierFor(req.ColorCount)
		if !ok {
			return nil, NewCalculationError(models.StageColorMultiplier, fmt.Sprintf("%d colors", req.ColorCount),
				fmt.Sprintf("rule %s has no color multiplier bucket for %d colors", rule.RuleID, req.ColorCount))
		}
		multiplied := unit.Mul(multiplier)
		appendLine(result, models.StageColorMultiplier,
			fmt.Sprintf("color multiplier %s for %d colors", multiplier, req.ColorCount),
			multiplied.Sub(unit))
		unit = multiplied
	}

	// Stage 4: stitch pricing, embroidery only. Stitches are billed in blocks
	// of one thousand, any started block counts in full.
	if req.ServiceType == models.ServiceTypeEmbroidery {
		rate := rule.Effects.StitchRatePerThousand
		if !rate.IsPositive() {
			return nil, NewCalculationError(models.StageStitchPricing, "stitch_rate_per_thousand",
				fmt.Sprintf("rule %s declares no stitch rate for embroidery", rule.RuleID))
		}
		blocks := utils.CeilDiv(req.StitchCount, utils.StitchBlockSize)
		stitch := rate.Mul(decimal.NewFromInt(int64(blocks)))
		unit = unit.Add(stitch)
		appendLine(result, models.StageStitchPricing,
			fmt.Sprintf("%d stitches in %d blocks at %s per thousand", req.StitchCount, blocks, rate), stitch)
	}

	result.UnitPrice = unit

	// Stage 5: setup fee, flat per line item regardless of quantity.
	setupFee := rule.Effects.SetupFeeFor(req.IsNewDesign)
	setupKind := "repeat design"
	if req.IsNewDesign {
		setupKind = "new design"
	}
	appendLine(result, models.StageSetupFee, setupKind+" setup fee", setupFee)

	// Stage 6: subtotal.
	quantity := decimal.NewFromInt(int64(req.Quantity))
	unitPortion := unit.Mul(quantity)
	subtotal := unitPortion.Add(setupFee)
	result.Subtotal = subtotal
	appendLine(result, models.StageSubtotal,
		fmt.Sprintf("%d units at %s plus setup fee", req.Quantity, unit), subtotal)

	// Stage 7: volume discount, applied to the per-unit portion only. The
	// setup fee is never discounted. No tier for the quantity means 0%.
	running := subtotal
	if tier, ok := rule.Effects.TierFor(req.Quantity); ok {
		discount := unitPortion.Mul(tier.DiscountPct)
		running = running.Sub(discount)
		appendLine(result, models.StageVolumeDiscount,
			fmt.Sprintf("volume discount %s%% for quantity %d", tier.DiscountPct.Mul(decimalHundred), req.Quantity),
			discount.Neg())
	}

	// Stage 8: add-ons in the order the request declared them. Flat add-ons
	// charge per selected unit; percentage add-ons charge against the running
	// post-discount total, so declaration order matters.
	for _, sel := range req.AddOns {
		addOnRule, ok := rule.Effects.AddOnRuleFor(sel.Type)
		if !ok {
			return nil, NewCalculationError(models.StageAddOnPrefix+sel.Type.String(), sel.Type.String(),
				fmt.Sprintf("rule %s declares no add-on rule for %s", rule.RuleID, sel.Type))
		}

		var amount decimal.Decimal
		var description string
		switch addOnRule.Kind {
		case models.AddOnKindFlat:
			amount = addOnRule.Amount.Mul(decimal.NewFromInt(int64(sel.Quantity)))
			description = fmt.Sprintf("%s add-on, %d at %s", sel.Type, sel.Quantity, addOnRule.Amount)
		case models.AddOnKindPercentage:
			amount = running.Mul(addOnRule.Amount)
			description = fmt.Sprintf("%s add-on at %s%%", sel.Type, addOnRule.Amount.Mul(decimalHundred))
		default:
			return nil, NewCalculationError(models.StageAddOnPrefix+sel.Type.String(), sel.Type.String(),
				fmt.Sprintf("rule %s has add-on %s with unknown kind %q", rule.RuleID, sel.Type, addOnRule.Kind))
		}

		running = running.Add(amount)
		appendLine(result, models.StageAddOnPrefix+sel.Type.String(), description, amount)
	}

	// Stage 9: margin, markup-on-cost. The post-add-on subtotal is treated as
	// cost and the final price is cost times (1 + margin).
	marginAmount := running.Mul(rule.Effects.MarginPct)
	total := running.Mul(decimalOne.Add(rule.Effects.MarginPct))
	appendLine(result, models.StageMargin,
		fmt.Sprintf("markup %s%% on cost", rule.Effects.MarginPct.Mul(decimalHundred)), marginAmount)

	// Stage 10: terminal rounding, half up to cents. The adjustment gets its
	// own line item when it is nonzero so the itemization always reconciles.
	rounded := total.Round(utils.MoneyScale)
	if delta := rounded.Sub(total); !delta.IsZero() {
		appendLine(result, models.StageRounding, "rounding to cents", delta)
	}
	result.TotalPrice = rounded

	return result, nil
}

// appendLine records one stage contribution at money precision.
func appendLine(result *models.CalculationResult, stage, description string, amount decimal.Decimal) {
	result.LineItems = append(result.LineItems, models.LineItem{
		Stage:       stage,
		Description: description,
		Amount:      amount.Round(utils.MoneyScale),
	})
}

func joinLocations(locations []models.PrintLocation) string {
	names := make([]string, len(locations))
	for i, loc := range locations {
		names[i] = loc.String()
	}
	return strings.Join(names, ", ")
}
