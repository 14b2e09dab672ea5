package businessflow

import (
	"fmt"

	"github.com/printshop-os/pricing-engine/models"
)

// selectRule picks the single applicable rule for a request from the set of
// current, active rule versions.
//
// A rule is applicable when every condition it declares is satisfied;
// undeclared dimensions are wildcards. Among applicable rules the most
// specific wins (most declared dimensions), ties fall to the higher explicit
// priority, then to the more recent version. A tie that survives all three
// is surfaced as an ambiguity rather than guessed.
//
// The winner is returned as a deep-copied snapshot so rule edits committed
// after selection can never alter a calculation already in progress.
func selectRule(rules []*models.PricingRule, req *models.CalculationRequest) (*models.PricingRule, error) {
	var (
		winner      *models.PricingRule
		winnerScore int
		tied        []*models.PricingRule
	)

	for _, rule := range rules {
		if !rule.Conditions.Matches(req) {
			continue
		}
		score := rule.Conditions.DeclaredDimensions()

		switch {
		case winner == nil || score > winnerScore:
			winner = rule
			winnerScore = score
			tied = nil
		case score == winnerScore:
			switch {
			case rule.Priority > winner.Priority:
				winner = rule
				tied = nil
			case rule.Priority == winner.Priority:
				switch {
				case rule.Version > winner.Version:
					winner = rule
					tied = nil
				case rule.Version == winner.Version && rule.RuleID != winner.RuleID:
					tied = append(tied, rule)
				}
			}
		}
	}

	if winner == nil {
		return nil, NewBusinessError("NO_MATCHING_RULE", "no applicable pricing rule", ErrNoMatchingRule)
	}

	if len(tied) > 0 {
		ids := winner.RuleID.String()
		for _, r := range tied {
			ids += ", " + r.RuleID.String()
		}
		return nil, NewBusinessError("AMBIGUOUS_RULE_MATCH",
			fmt.Sprintf("rules %s match with equal specificity, priority, and version", ids),
			ErrAmbiguousMatch)
	}

	return winner.Snapshot(), nil
}
