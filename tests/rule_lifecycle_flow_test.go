// Package tests contains integration tests for the rule lifecycle
package tests

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/printshop-os/pricing-engine/app/dto"
	"github.com/printshop-os/pricing-engine/app/services"
	businessflow "github.com/printshop-os/pricing-engine/business_flow"
	"github.com/printshop-os/pricing-engine/models"
	"github.com/printshop-os/pricing-engine/repository"
	testingutil "github.com/printshop-os/pricing-engine/testing"
	"github.com/printshop-os/pricing-engine/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuleLifecycleFlow(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		ctx := testingutil.CreateTestContext()

		ruleRepo := repository.NewPricingRuleRepository(testDB.DB)
		seqRepo := repository.NewSequenceCounterRepository(testDB.DB)
		generation := businessflow.NewGenerationCounter(seqRepo)
		require.NoError(t, generation.Load(ctx))

		flow := businessflow.NewAdminRuleFlow(testDB.DB, ruleRepo, generation, services.NewMemoryCacheStore(), nil)

		var ruleID uuid.UUID
		var created *dto.CreateRuleResponse
		var updated *dto.UpdateRuleResponse

		t.Run("CreateWritesVersionOne", func(t *testing.T) {
			var err error
			created, err = flow.CreateRule(ctx, &dto.CreateRuleRequest{
				Name:       "embroidered polos",
				Conditions: dto.RuleConditionsDTO{ServiceTypes: []string{"embroidery"}},
				Effects:    screenPrintEffects("0.35"),
				Priority:   5,
				ChangeNote: utils.ToPtr("initial import"),
			})
			require.NoError(t, err)

			assert.Equal(t, "Pricing rule created successfully", created.Message)
			assert.Equal(t, 1, created.Rule.Version)
			assert.True(t, created.Rule.IsCurrent)
			assert.True(t, created.Rule.IsActive)
			assert.Equal(t, "created", created.Rule.ChangeType)
			require.NotNil(t, created.Rule.ChangeNote)
			assert.Equal(t, "initial import", *created.Rule.ChangeNote)

			ruleID, err = uuid.Parse(created.Rule.RuleID)
			require.NoError(t, err)

			current, err := ruleRepo.CurrentByRuleID(ctx, ruleID)
			require.NoError(t, err)
			require.NotNil(t, current)
			assert.Equal(t, "embroidered polos", current.Name)

			durable, err := seqRepo.Current(ctx, models.SequenceRulesetGeneration)
			require.NoError(t, err)
			assert.Equal(t, uint64(1), durable)
			assert.Equal(t, uint64(1), generation.Current())
		})

		t.Run("UpdateAppendsVersionTwo", func(t *testing.T) {
			var err error
			updated, err = flow.UpdateRule(ctx, &dto.UpdateRuleRequest{
				RuleID:     created.Rule.RuleID,
				Name:       "embroidered polos",
				Conditions: dto.RuleConditionsDTO{ServiceTypes: []string{"embroidery"}},
				Effects:    screenPrintEffects("0.45"),
				Priority:   5,
				ChangeNote: utils.ToPtr("raise margin"),
			})
			require.NoError(t, err)

			assert.Equal(t, 2, updated.Rule.Version)
			assert.Equal(t, "updated", updated.Rule.ChangeType)
			require.NotNil(t, updated.Rule.PreviousVersionID)
			assert.Equal(t, created.Rule.ID, *updated.Rule.PreviousVersionID)

			// The superseded version stays in the chain unmodified
			v1, err := ruleRepo.ByRuleIDAndVersion(ctx, ruleID, 1)
			require.NoError(t, err)
			require.NotNil(t, v1)
			assert.False(t, *v1.IsCurrent)
			assert.True(t, *v1.IsActive)
			assert.True(t, v1.Effects.MarginPct.Equal(decimal.RequireFromString("0.35")))

			assert.Equal(t, uint64(2), generation.Current())
		})

		t.Run("RejectedUpdateLeavesChainAndCounterAlone", func(t *testing.T) {
			_, err := flow.UpdateRule(ctx, &dto.UpdateRuleRequest{
				RuleID:     created.Rule.RuleID,
				Name:       "embroidered polos",
				Conditions: dto.RuleConditionsDTO{ServiceTypes: []string{"embroidery"}},
				Effects:    screenPrintEffects("1.00"),
				Priority:   5,
			})
			require.Error(t, err)
			assert.True(t, errors.Is(err, businessflow.ErrValidation))

			versions, err := ruleRepo.VersionsByRuleID(ctx, ruleID)
			require.NoError(t, err)
			assert.Len(t, versions, 2)

			current, err := ruleRepo.CurrentByRuleID(ctx, ruleID)
			require.NoError(t, err)
			require.NotNil(t, current)
			assert.Equal(t, 2, current.Version)

			durable, err := seqRepo.Current(ctx, models.SequenceRulesetGeneration)
			require.NoError(t, err)
			assert.Equal(t, uint64(2), durable)
		})

		t.Run("RollbackRestoresVersionOneContent", func(t *testing.T) {
			resp, err := flow.RollbackRule(ctx, &dto.RollbackRuleRequest{
				RuleID:    created.Rule.RuleID,
				ToVersion: 1,
			})
			require.NoError(t, err)

			assert.Equal(t, 3, resp.Rule.Version)
			assert.Equal(t, "rollback", resp.Rule.ChangeType)
			require.NotNil(t, resp.Rule.ChangeNote)
			assert.Equal(t, "rollback to version 1", *resp.Rule.ChangeNote)
			require.NotNil(t, resp.Rule.PreviousVersionID)
			assert.Equal(t, updated.Rule.ID, *resp.Rule.PreviousVersionID)
			assert.True(t, resp.Rule.Effects.MarginPct.Equal(decimal.RequireFromString("0.35")))

			assert.Equal(t, uint64(3), generation.Current())
		})

		t.Run("DeactivateEndsMatching", func(t *testing.T) {
			resp, err := flow.DeactivateRule(ctx, &dto.DeactivateRuleRequest{RuleID: created.Rule.RuleID})
			require.NoError(t, err)

			assert.Equal(t, 4, resp.Rule.Version)
			assert.Equal(t, "deactivated", resp.Rule.ChangeType)
			assert.False(t, resp.Rule.IsActive)
			assert.True(t, resp.Rule.IsCurrent)

			matchable, err := ruleRepo.ListMatchable(ctx)
			require.NoError(t, err)
			assert.Empty(t, matchable)

			assert.Equal(t, uint64(4), generation.Current())
		})

		t.Run("VersionChainListsNewestFirst", func(t *testing.T) {
			resp, err := flow.ListRuleVersions(ctx, created.Rule.RuleID)
			require.NoError(t, err)

			require.Len(t, resp.Items, 4)
			for i, wantVersion := range []int{4, 3, 2, 1} {
				assert.Equal(t, wantVersion, resp.Items[i].Version)
				assert.Equal(t, created.Rule.RuleID, resp.Items[i].RuleID)
			}
			assert.Equal(t, "deactivated", resp.Items[0].ChangeType)
			assert.Equal(t, "rollback", resp.Items[1].ChangeType)
			assert.Equal(t, "updated", resp.Items[2].ChangeType)
			assert.Equal(t, "created", resp.Items[3].ChangeType)
		})

		t.Run("ListRulesShowsOnlyCurrentVersions", func(t *testing.T) {
			_, err := flow.CreateRule(ctx, &dto.CreateRuleRequest{
				Name:       "standard screen print",
				Conditions: dto.RuleConditionsDTO{ServiceTypes: []string{"screen_print"}},
				Effects:    screenPrintEffects("0.35"),
			})
			require.NoError(t, err)

			resp, err := flow.ListRules(ctx, &dto.ListRulesRequest{})
			require.NoError(t, err)
			assert.Equal(t, int64(2), resp.Pagination.Total)
			require.Len(t, resp.Items, 2)

			inactive, err := flow.ListRules(ctx, &dto.ListRulesRequest{
				Filter: &dto.ListRulesFilter{IsActive: utils.ToPtr(false)},
			})
			require.NoError(t, err)
			require.Len(t, inactive.Items, 1)
			assert.Equal(t, "embroidered polos", inactive.Items[0].Name)

			embroidery, err := flow.ListRules(ctx, &dto.ListRulesRequest{
				Filter: &dto.ListRulesFilter{ServiceType: utils.ToPtr("embroidery")},
			})
			require.NoError(t, err)
			require.Len(t, embroidery.Items, 1)
			assert.Equal(t, 4, embroidery.Items[0].Version)
		})

		t.Run("DurableGenerationSurvivesRestart", func(t *testing.T) {
			reloaded := businessflow.NewGenerationCounter(repository.NewSequenceCounterRepository(testDB.DB))
			require.NoError(t, reloaded.Load(ctx))
			assert.Equal(t, uint64(5), reloaded.Current())
		})

		return nil
	})
	requireDB(t, err)
}
