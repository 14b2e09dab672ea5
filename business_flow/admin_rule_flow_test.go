package businessflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/printshop-os/pricing-engine/app/dto"
	"github.com/printshop-os/pricing-engine/app/services"
	"github.com/printshop-os/pricing-engine/models"
	"github.com/printshop-os/pricing-engine/repository"
	"github.com/printshop-os/pricing-engine/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type adminFlowFixture struct {
	flow       AdminRuleFlow
	ruleRepo   *repository.MemoryPricingRuleRepository
	cache      *services.MemoryCacheStore
	generation *GenerationCounter
}

func newAdminFlowFixture(t *testing.T) *adminFlowFixture {
	t.Helper()

	generation := NewGenerationCounter(repository.NewMemorySequenceCounterRepository())
	require.NoError(t, generation.Load(context.Background()))

	ruleRepo := repository.NewMemoryPricingRuleRepository()
	cache := services.NewMemoryCacheStore()

	return &adminFlowFixture{
		flow:       NewAdminRuleFlow(nil, ruleRepo, generation, cache, nil),
		ruleRepo:   ruleRepo,
		cache:      cache,
		generation: generation,
	}
}

func validEffectsDTO() dto.RuleEffectsDTO {
	return dto.RuleEffectsDTO{
		LocationSurcharges: map[string]decimal.Decimal{
			"front": decimal.RequireFromString("2.00"),
			"back":  decimal.RequireFromString("3.00"),
		},
		ColorMultipliers: []dto.ColorMultiplierDTO{
			{MinColors: 1, MaxColors: 2, Multiplier: decimal.RequireFromString("1.0")},
			{MinColors: 3, MaxColors: 4, Multiplier: decimal.RequireFromString("1.3")},
			{MinColors: 5, Multiplier: decimal.RequireFromString("1.6")},
		},
		SetupFees: dto.SetupFeesDTO{
			NewDesign:    decimal.RequireFromString("50.00"),
			RepeatDesign: decimal.RequireFromString("25.00"),
		},
		VolumeTiers: []dto.VolumeTierDTO{
			{MinQuantity: 100, MaxQuantity: 499, DiscountPct: decimal.RequireFromString("0.10")},
			{MinQuantity: 500, DiscountPct: decimal.RequireFromString("0.20")},
		},
		AddOnRules: map[string]dto.AddOnRuleDTO{
			"rush":    {Kind: "percentage", Amount: decimal.RequireFromString("0.15")},
			"folding": {Kind: "flat", Amount: decimal.RequireFromString("0.25")},
		},
		MarginPct: decimal.RequireFromString("0.35"),
	}
}

func createRuleRequest(name string) *dto.CreateRuleRequest {
	return &dto.CreateRuleRequest{
		Name: name,
		Conditions: dto.RuleConditionsDTO{
			ServiceTypes: []string{"screen_print"},
		},
		Effects: validEffectsDTO(),
	}
}

func TestAdminRuleFlowCreateRule(t *testing.T) {
	fixture := newAdminFlowFixture(t)
	ctx := context.Background()

	t.Run("CreatesVersionOne", func(t *testing.T) {
		note := "initial screen print pricing"
		req := createRuleRequest("standard screen print")
		req.ChangeNote = &note

		resp, err := fixture.flow.CreateRule(ctx, req)
		require.NoError(t, err)
		require.NotNil(t, resp)

		assert.Equal(t, "Pricing rule created successfully", resp.Message)
		assert.NotZero(t, resp.Rule.ID)
		assert.Equal(t, 1, resp.Rule.Version)
		assert.Equal(t, "standard screen print", resp.Rule.Name)
		assert.True(t, resp.Rule.IsCurrent)
		assert.True(t, resp.Rule.IsActive)
		assert.Equal(t, "created", resp.Rule.ChangeType)
		require.NotNil(t, resp.Rule.ChangeNote)
		assert.Equal(t, note, *resp.Rule.ChangeNote)
		assert.Nil(t, resp.Rule.PreviousVersionID)

		_, err = uuid.Parse(resp.Rule.RuleID)
		assert.NoError(t, err)

		assert.Equal(t, uint64(1), fixture.generation.Current())
	})

	t.Run("EachCreateGetsAFreshRuleID", func(t *testing.T) {
		first, err := fixture.flow.CreateRule(ctx, createRuleRequest("rule a"))
		require.NoError(t, err)
		second, err := fixture.flow.CreateRule(ctx, createRuleRequest("rule b"))
		require.NoError(t, err)

		assert.NotEqual(t, first.Rule.RuleID, second.Rule.RuleID)
		assert.Equal(t, uint64(3), fixture.generation.Current())
	})

	t.Run("EmptyConditionsAreACatchAll", func(t *testing.T) {
		req := &dto.CreateRuleRequest{Name: "catch-all", Effects: validEffectsDTO()}

		resp, err := fixture.flow.CreateRule(ctx, req)
		require.NoError(t, err)
		assert.Empty(t, resp.Rule.Conditions.ServiceTypes)
	})
}

func TestAdminRuleFlowCreateRuleValidation(t *testing.T) {
	fixture := newAdminFlowFixture(t)
	ctx := context.Background()

	tests := []struct {
		name        string
		mutate      func(*dto.CreateRuleRequest)
		wantField   string
		wantMessage string
	}{
		{
			"NegativePriority",
			func(r *dto.CreateRuleRequest) { r.Priority = -1 },
			"priority", "priority cannot be negative",
		},
		{
			"UnknownServiceType",
			func(r *dto.CreateRuleRequest) { r.Conditions.ServiceTypes = []string{"laser_etch"} },
			"conditions.service_types", `unknown service type "laser_etch"`,
		},
		{
			"UnknownLocationInConditions",
			func(r *dto.CreateRuleRequest) { r.Conditions.PrintLocations = []string{"hood"} },
			"conditions.print_locations", `unknown print location "hood"`,
		},
		{
			"MinQuantityOverMax",
			func(r *dto.CreateRuleRequest) {
				r.Conditions.MinQuantity = utils.ToPtr(500)
				r.Conditions.MaxQuantity = utils.ToPtr(100)
			},
			"conditions.min_quantity", "min quantity cannot exceed max quantity",
		},
		{
			"NegativeSurcharge",
			func(r *dto.CreateRuleRequest) {
				r.Effects.LocationSurcharges["front"] = decimal.RequireFromString("-1")
			},
			"effects.location_surcharges", "surcharge for location front cannot be negative",
		},
		{
			"OverlappingColorBuckets",
			func(r *dto.CreateRuleRequest) {
				r.Effects.ColorMultipliers = []dto.ColorMultiplierDTO{
					{MinColors: 1, MaxColors: 4, Multiplier: decimal.RequireFromString("1.0")},
					{MinColors: 3, MaxColors: 6, Multiplier: decimal.RequireFromString("1.3")},
				}
			},
			"effects.color_multipliers[1]", "buckets must be ordered and non-overlapping",
		},
		{
			"OpenEndedBucketNotLast",
			func(r *dto.CreateRuleRequest) {
				r.Effects.ColorMultipliers = []dto.ColorMultiplierDTO{
					{MinColors: 1, Multiplier: decimal.RequireFromString("1.0")},
					{MinColors: 5, MaxColors: 8, Multiplier: decimal.RequireFromString("1.3")},
				}
			},
			"effects.color_multipliers[1]", "only the last bucket may be open-ended",
		},
		{
			"OverlappingVolumeTiers",
			func(r *dto.CreateRuleRequest) {
				r.Effects.VolumeTiers = []dto.VolumeTierDTO{
					{MinQuantity: 100, MaxQuantity: 499, DiscountPct: decimal.RequireFromString("0.10")},
					{MinQuantity: 499, DiscountPct: decimal.RequireFromString("0.20")},
				}
			},
			"effects.volume_tiers[1]", "tiers must be ordered and non-overlapping",
		},
		{
			"DiscountOfFullPrice",
			func(r *dto.CreateRuleRequest) {
				r.Effects.VolumeTiers = []dto.VolumeTierDTO{
					{MinQuantity: 100, DiscountPct: decimal.RequireFromString("1.0")},
				}
			},
			"effects.volume_tiers[0]", "discount must be at least 0 and below 1",
		},
		{
			"PercentageAddOnOverOne",
			func(r *dto.CreateRuleRequest) {
				r.Effects.AddOnRules["rush"] = dto.AddOnRuleDTO{Kind: "percentage", Amount: decimal.RequireFromString("1.5")}
			},
			"effects.add_on_rules.rush", "percentage amount must be at least 0 and below 1",
		},
		{
			"UnknownAddOnKind",
			func(r *dto.CreateRuleRequest) {
				r.Effects.AddOnRules["rush"] = dto.AddOnRuleDTO{Kind: "tiered", Amount: decimal.RequireFromString("0.15")}
			},
			"effects.add_on_rules.rush", `unknown add-on kind "tiered"`,
		},
		{
			"MarginOfOneOrMore",
			func(r *dto.CreateRuleRequest) { r.Effects.MarginPct = decimal.RequireFromString("1.0") },
			"effects.margin_pct", "margin must be at least 0 and below 1",
		},
		{
			"NegativeStitchRate",
			func(r *dto.CreateRuleRequest) {
				r.Effects.StitchRatePerThousand = decimal.RequireFromString("-0.75")
			},
			"effects.stitch_rate_per_thousand", "stitch rate cannot be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := createRuleRequest("invalid rule")
			tt.mutate(req)

			_, err := fixture.flow.CreateRule(ctx, req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrValidation))

			var vErr *ValidationError
			require.True(t, errors.As(err, &vErr))

			found := false
			for _, v := range vErr.Violations {
				if v.Field == tt.wantField && v.Message == tt.wantMessage {
					found = true
				}
			}
			assert.True(t, found, "expected violation %s: %s, got %v", tt.wantField, tt.wantMessage, vErr.Violations)
		})
	}

	t.Run("RejectedRuleNeverBumpsTheGeneration", func(t *testing.T) {
		assert.Equal(t, uint64(0), fixture.generation.Current())
	})
}

func TestAdminRuleFlowUpdateRule(t *testing.T) {
	fixture := newAdminFlowFixture(t)
	ctx := context.Background()

	created, err := fixture.flow.CreateRule(ctx, createRuleRequest("standard screen print"))
	require.NoError(t, err)
	ruleID := created.Rule.RuleID

	t.Run("AppendsNewCurrentVersion", func(t *testing.T) {
		require.NoError(t, fixture.cache.Set(ctx, "pricing:calc:g1:aaaa", []byte("{}"), time.Minute))
		require.NoError(t, fixture.cache.Set(ctx, "unrelated:key", []byte("{}"), time.Minute))

		note := "raise the margin"
		req := &dto.UpdateRuleRequest{
			RuleID:     ruleID,
			Name:       "standard screen print",
			Conditions: created.Rule.Conditions,
			Effects:    validEffectsDTO(),
			ChangeNote: &note,
		}
		req.Effects.MarginPct = decimal.RequireFromString("0.40")

		resp, err := fixture.flow.UpdateRule(ctx, req)
		require.NoError(t, err)

		assert.Equal(t, "Pricing rule updated successfully", resp.Message)
		assert.Equal(t, ruleID, resp.Rule.RuleID)
		assert.Equal(t, 2, resp.Rule.Version)
		assert.True(t, resp.Rule.IsCurrent)
		assert.Equal(t, "updated", resp.Rule.ChangeType)
		require.NotNil(t, resp.Rule.PreviousVersionID)
		assert.Equal(t, created.Rule.ID, *resp.Rule.PreviousVersionID)
		requireAmount(t, "0.40", resp.Rule.Effects.MarginPct)

		// The superseded version stays in the chain, no longer current
		parsed, err := uuid.Parse(ruleID)
		require.NoError(t, err)
		current, err := fixture.ruleRepo.CurrentByRuleID(ctx, parsed)
		require.NoError(t, err)
		assert.Equal(t, 2, current.Version)

		v1, err := fixture.ruleRepo.ByRuleIDAndVersion(ctx, parsed, 1)
		require.NoError(t, err)
		assert.False(t, utils.IsTrue(v1.IsCurrent))
		requireAmount(t, "0.35", v1.Effects.MarginPct)

		assert.Equal(t, uint64(2), fixture.generation.Current())

		// Calculation cache entries are flushed, unrelated keys stay
		_, found, err := fixture.cache.Get(ctx, "pricing:calc:g1:aaaa")
		require.NoError(t, err)
		assert.False(t, found)
		_, found, err = fixture.cache.Get(ctx, "unrelated:key")
		require.NoError(t, err)
		assert.True(t, found)
	})

	t.Run("UnknownRule", func(t *testing.T) {
		req := &dto.UpdateRuleRequest{
			RuleID:  uuid.New().String(),
			Name:    "ghost",
			Effects: validEffectsDTO(),
		}

		_, err := fixture.flow.UpdateRule(ctx, req)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrRuleNotFound))
	})

	t.Run("MalformedRuleID", func(t *testing.T) {
		req := &dto.UpdateRuleRequest{
			RuleID:  "not-a-uuid",
			Name:    "ghost",
			Effects: validEffectsDTO(),
		}

		_, err := fixture.flow.UpdateRule(ctx, req)
		require.Error(t, err)

		var bizErr *BusinessError
		require.True(t, errors.As(err, &bizErr))
		assert.Equal(t, "RULE_ID_INVALID", bizErr.Code)
	})

	t.Run("InvalidDefinitionLeavesChainUntouched", func(t *testing.T) {
		req := &dto.UpdateRuleRequest{
			RuleID:  ruleID,
			Name:    "standard screen print",
			Effects: validEffectsDTO(),
		}
		req.Effects.MarginPct = decimal.RequireFromString("2.0")

		_, err := fixture.flow.UpdateRule(ctx, req)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrValidation))

		parsed, _ := uuid.Parse(ruleID)
		current, err := fixture.ruleRepo.CurrentByRuleID(ctx, parsed)
		require.NoError(t, err)
		assert.Equal(t, 2, current.Version)
	})
}

func TestAdminRuleFlowRollbackRule(t *testing.T) {
	fixture := newAdminFlowFixture(t)
	ctx := context.Background()

	created, err := fixture.flow.CreateRule(ctx, createRuleRequest("standard screen print"))
	require.NoError(t, err)
	ruleID := created.Rule.RuleID

	update := &dto.UpdateRuleRequest{
		RuleID:     ruleID,
		Name:       "screen print with higher margin",
		Conditions: created.Rule.Conditions,
		Effects:    validEffectsDTO(),
		Priority:   7,
	}
	update.Effects.MarginPct = decimal.RequireFromString("0.45")
	_, err = fixture.flow.UpdateRule(ctx, update)
	require.NoError(t, err)

	t.Run("CopiesOldContentIntoNewVersion", func(t *testing.T) {
		resp, err := fixture.flow.RollbackRule(ctx, &dto.RollbackRuleRequest{RuleID: ruleID, ToVersion: 1})
		require.NoError(t, err)

		assert.Equal(t, "Pricing rule rolled back successfully", resp.Message)
		assert.Equal(t, 3, resp.Rule.Version)
		assert.True(t, resp.Rule.IsCurrent)
		assert.Equal(t, "rollback", resp.Rule.ChangeType)
		require.NotNil(t, resp.Rule.ChangeNote)
		assert.Equal(t, "rollback to version 1", *resp.Rule.ChangeNote)

		// Version 1 content under a new version number
		assert.Equal(t, "standard screen print", resp.Rule.Name)
		assert.Equal(t, 0, resp.Rule.Priority)
		requireAmount(t, "0.35", resp.Rule.Effects.MarginPct)

		assert.Equal(t, uint64(3), fixture.generation.Current())
	})

	t.Run("RollbackToCurrentVersion", func(t *testing.T) {
		_, err := fixture.flow.RollbackRule(ctx, &dto.RollbackRuleRequest{RuleID: ruleID, ToVersion: 3})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrRollbackToCurrentVersion))

		var bizErr *BusinessError
		require.True(t, errors.As(err, &bizErr))
		assert.Equal(t, "ROLLBACK_TO_CURRENT_VERSION", bizErr.Code)
	})

	t.Run("MissingTargetVersion", func(t *testing.T) {
		_, err := fixture.flow.RollbackRule(ctx, &dto.RollbackRuleRequest{RuleID: ruleID, ToVersion: 99})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrRuleVersionNotFound))
	})

	t.Run("VersionCounterNeverRewinds", func(t *testing.T) {
		resp, err := fixture.flow.RollbackRule(ctx, &dto.RollbackRuleRequest{RuleID: ruleID, ToVersion: 2})
		require.NoError(t, err)

		assert.Equal(t, 4, resp.Rule.Version)
		assert.Equal(t, "screen print with higher margin", resp.Rule.Name)
		assert.Equal(t, 7, resp.Rule.Priority)
		requireAmount(t, "0.45", resp.Rule.Effects.MarginPct)
	})
}

func TestAdminRuleFlowDeactivateRule(t *testing.T) {
	fixture := newAdminFlowFixture(t)
	ctx := context.Background()

	created, err := fixture.flow.CreateRule(ctx, createRuleRequest("standard screen print"))
	require.NoError(t, err)
	ruleID := created.Rule.RuleID

	t.Run("AppendsInactiveVersion", func(t *testing.T) {
		resp, err := fixture.flow.DeactivateRule(ctx, &dto.DeactivateRuleRequest{RuleID: ruleID})
		require.NoError(t, err)

		assert.Equal(t, "Pricing rule deactivated successfully", resp.Message)
		assert.Equal(t, 2, resp.Rule.Version)
		assert.True(t, resp.Rule.IsCurrent)
		assert.False(t, resp.Rule.IsActive)
		assert.Equal(t, "deactivated", resp.Rule.ChangeType)

		// An inactive rule never serves calculations
		matchable, err := fixture.ruleRepo.ListMatchable(ctx)
		require.NoError(t, err)
		assert.Empty(t, matchable)
	})

	t.Run("AlreadyInactive", func(t *testing.T) {
		_, err := fixture.flow.DeactivateRule(ctx, &dto.DeactivateRuleRequest{RuleID: ruleID})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrRuleAlreadyInactive))

		var bizErr *BusinessError
		require.True(t, errors.As(err, &bizErr))
		assert.Equal(t, "RULE_ALREADY_INACTIVE", bizErr.Code)
	})

	t.Run("UpdateReactivates", func(t *testing.T) {
		req := &dto.UpdateRuleRequest{
			RuleID:     ruleID,
			Name:       "standard screen print",
			Conditions: created.Rule.Conditions,
			Effects:    validEffectsDTO(),
		}

		resp, err := fixture.flow.UpdateRule(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, 3, resp.Rule.Version)
		assert.True(t, resp.Rule.IsActive)

		matchable, err := fixture.ruleRepo.ListMatchable(ctx)
		require.NoError(t, err)
		assert.Len(t, matchable, 1)
	})
}

func TestAdminRuleFlowGetRule(t *testing.T) {
	fixture := newAdminFlowFixture(t)
	ctx := context.Background()

	created, err := fixture.flow.CreateRule(ctx, createRuleRequest("standard screen print"))
	require.NoError(t, err)
	ruleID := created.Rule.RuleID

	update := &dto.UpdateRuleRequest{
		RuleID:     ruleID,
		Name:       "standard screen print",
		Conditions: created.Rule.Conditions,
		Effects:    validEffectsDTO(),
	}
	update.Effects.MarginPct = decimal.RequireFromString("0.40")
	_, err = fixture.flow.UpdateRule(ctx, update)
	require.NoError(t, err)

	t.Run("ReturnsCurrentVersion", func(t *testing.T) {
		resp, err := fixture.flow.GetRule(ctx, ruleID, 0)
		require.NoError(t, err)

		assert.Equal(t, "Pricing rule retrieved successfully", resp.Message)
		assert.Equal(t, ruleID, resp.Rule.RuleID)
		assert.Equal(t, 2, resp.Rule.Version)
		assert.True(t, resp.Rule.IsCurrent)
		requireAmount(t, "0.40", resp.Rule.Effects.MarginPct)
	})

	t.Run("ReturnsASpecificVersion", func(t *testing.T) {
		resp, err := fixture.flow.GetRule(ctx, ruleID, 1)
		require.NoError(t, err)

		assert.Equal(t, 1, resp.Rule.Version)
		assert.False(t, resp.Rule.IsCurrent)
		requireAmount(t, "0.35", resp.Rule.Effects.MarginPct)
	})

	t.Run("UnknownVersion", func(t *testing.T) {
		_, err := fixture.flow.GetRule(ctx, ruleID, 99)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrRuleVersionNotFound))

		var bizErr *BusinessError
		require.True(t, errors.As(err, &bizErr))
		assert.Equal(t, "RULE_VERSION_NOT_FOUND", bizErr.Code)
	})

	t.Run("NegativeVersion", func(t *testing.T) {
		_, err := fixture.flow.GetRule(ctx, ruleID, -1)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrValidation))
	})

	t.Run("UnknownRule", func(t *testing.T) {
		_, err := fixture.flow.GetRule(ctx, uuid.New().String(), 0)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrRuleNotFound))
	})

	t.Run("UnknownRuleWithExplicitVersion", func(t *testing.T) {
		_, err := fixture.flow.GetRule(ctx, uuid.New().String(), 1)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrRuleNotFound))
	})
}

func TestAdminRuleFlowListRules(t *testing.T) {
	fixture := newAdminFlowFixture(t)
	ctx := context.Background()

	createdA, err := fixture.flow.CreateRule(ctx, createRuleRequest("standard screen print"))
	require.NoError(t, err)
	_, err = fixture.flow.CreateRule(ctx, createRuleRequest("contract embroidery"))
	require.NoError(t, err)
	_, err = fixture.flow.CreateRule(ctx, createRuleRequest("education dtg"))
	require.NoError(t, err)

	// Two versions of rule A, the listing must only show the current one
	updateA := &dto.UpdateRuleRequest{
		RuleID:     createdA.Rule.RuleID,
		Name:       "standard screen print",
		Conditions: createdA.Rule.Conditions,
		Effects:    validEffectsDTO(),
	}
	_, err = fixture.flow.UpdateRule(ctx, updateA)
	require.NoError(t, err)

	t.Run("OnlyCurrentVersions", func(t *testing.T) {
		resp, err := fixture.flow.ListRules(ctx, &dto.ListRulesRequest{})
		require.NoError(t, err)

		assert.Equal(t, "Pricing rules retrieved successfully", resp.Message)
		assert.Equal(t, int64(3), resp.Pagination.Total)
		assert.Equal(t, 1, resp.Pagination.Page)
		assert.Equal(t, utils.DefaultPageSize, resp.Pagination.Limit)
		require.Len(t, resp.Items, 3)
		for _, item := range resp.Items {
			assert.True(t, item.IsCurrent)
			if item.RuleID == createdA.Rule.RuleID {
				assert.Equal(t, 2, item.Version)
			}
		}
	})

	t.Run("Paging", func(t *testing.T) {
		page1, err := fixture.flow.ListRules(ctx, &dto.ListRulesRequest{Page: 1, Limit: 2})
		require.NoError(t, err)
		assert.Len(t, page1.Items, 2)
		assert.Equal(t, 2, page1.Pagination.TotalPages)

		page2, err := fixture.flow.ListRules(ctx, &dto.ListRulesRequest{Page: 2, Limit: 2})
		require.NoError(t, err)
		assert.Len(t, page2.Items, 1)
	})

	t.Run("NameFilter", func(t *testing.T) {
		name := "embroidery"
		resp, err := fixture.flow.ListRules(ctx, &dto.ListRulesRequest{
			Filter: &dto.ListRulesFilter{Name: &name},
		})
		require.NoError(t, err)

		require.Len(t, resp.Items, 1)
		assert.Equal(t, "contract embroidery", resp.Items[0].Name)
	})

	t.Run("ActiveFilter", func(t *testing.T) {
		deactivated, err := fixture.flow.CreateRule(ctx, createRuleRequest("retired vinyl"))
		require.NoError(t, err)
		_, err = fixture.flow.DeactivateRule(ctx, &dto.DeactivateRuleRequest{RuleID: deactivated.Rule.RuleID})
		require.NoError(t, err)

		resp, err := fixture.flow.ListRules(ctx, &dto.ListRulesRequest{
			Filter: &dto.ListRulesFilter{IsActive: utils.ToPtr(false)},
		})
		require.NoError(t, err)

		require.Len(t, resp.Items, 1)
		assert.Equal(t, "retired vinyl", resp.Items[0].Name)
	})

	t.Run("UnknownServiceTypeFilter", func(t *testing.T) {
		serviceType := "laser_etch"
		_, err := fixture.flow.ListRules(ctx, &dto.ListRulesRequest{
			Filter: &dto.ListRulesFilter{ServiceType: &serviceType},
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrValidation))
	})

	t.Run("PageSizeOverLimit", func(t *testing.T) {
		_, err := fixture.flow.ListRules(ctx, &dto.ListRulesRequest{Limit: 101})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidPageSize))
	})

	t.Run("NegativePage", func(t *testing.T) {
		_, err := fixture.flow.ListRules(ctx, &dto.ListRulesRequest{Page: -1})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidPage))
	})
}

func TestAdminRuleFlowListRuleVersions(t *testing.T) {
	fixture := newAdminFlowFixture(t)
	ctx := context.Background()

	created, err := fixture.flow.CreateRule(ctx, createRuleRequest("standard screen print"))
	require.NoError(t, err)
	ruleID := created.Rule.RuleID

	update := &dto.UpdateRuleRequest{
		RuleID:     ruleID,
		Name:       "standard screen print",
		Conditions: created.Rule.Conditions,
		Effects:    validEffectsDTO(),
	}
	_, err = fixture.flow.UpdateRule(ctx, update)
	require.NoError(t, err)
	_, err = fixture.flow.RollbackRule(ctx, &dto.RollbackRuleRequest{RuleID: ruleID, ToVersion: 1})
	require.NoError(t, err)

	t.Run("FullChainNewestFirst", func(t *testing.T) {
		resp, err := fixture.flow.ListRuleVersions(ctx, ruleID)
		require.NoError(t, err)

		assert.Equal(t, "Pricing rule versions retrieved successfully", resp.Message)
		require.Len(t, resp.Items, 3)
		assert.Equal(t, 3, resp.Items[0].Version)
		assert.Equal(t, 2, resp.Items[1].Version)
		assert.Equal(t, 1, resp.Items[2].Version)

		assert.True(t, resp.Items[0].IsCurrent)
		assert.False(t, resp.Items[1].IsCurrent)
		assert.False(t, resp.Items[2].IsCurrent)

		assert.Equal(t, "rollback", resp.Items[0].ChangeType)
		assert.Equal(t, "updated", resp.Items[1].ChangeType)
		assert.Equal(t, "created", resp.Items[2].ChangeType)
	})

	t.Run("UnknownRule", func(t *testing.T) {
		_, err := fixture.flow.ListRuleVersions(ctx, uuid.New().String())
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrRuleNotFound))
	})
}

func TestAdminRuleFlowClearCache(t *testing.T) {
	ctx := context.Background()

	t.Run("DropsCalculationEntriesOnly", func(t *testing.T) {
		fixture := newAdminFlowFixture(t)
		fixture.generation.Set(4)

		require.NoError(t, fixture.cache.Set(ctx, "pricing:calc:g4:aaaa", []byte("{}"), time.Minute))
		require.NoError(t, fixture.cache.Set(ctx, "pricing:calc:g4:bbbb", []byte("{}"), time.Minute))
		require.NoError(t, fixture.cache.Set(ctx, "unrelated:key", []byte("{}"), time.Minute))

		resp, err := fixture.flow.ClearCache(ctx)
		require.NoError(t, err)

		assert.Equal(t, "Calculation cache cleared successfully", resp.Message)
		assert.Equal(t, uint64(4), resp.RulesetGeneration)
		assert.Equal(t, 1, fixture.cache.Len())

		// Manual invalidation leaves the generation where it was
		assert.Equal(t, uint64(4), fixture.generation.Current())
	})

	t.Run("NoCacheConfigured", func(t *testing.T) {
		generation := NewGenerationCounter(repository.NewMemorySequenceCounterRepository())
		flow := NewAdminRuleFlow(nil, repository.NewMemoryPricingRuleRepository(), generation, nil, nil)

		_, err := flow.ClearCache(ctx)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrCacheNotAvailable))
	})
}
