// Package tests contains database-backed test cases for models and repositories to avoid circular imports
package tests

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/printshop-os/pricing-engine/models"
	"github.com/printshop-os/pricing-engine/repository"
	testingutil "github.com/printshop-os/pricing-engine/testing"
	"github.com/printshop-os/pricing-engine/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPricingRuleRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		repo := repository.NewPricingRuleRepository(testDB.DB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		t.Run("SaveAssignsID", func(t *testing.T) {
			rule := &models.PricingRule{
				Name:       "saved through the repository",
				Conditions: testingutil.DefaultTestConditions(),
				Effects:    testingutil.DefaultTestEffects(),
			}
			require.NoError(t, repo.Save(ctx, rule))
			assert.NotZero(t, rule.ID)

			loaded, err := repo.ByID(ctx, rule.ID)
			require.NoError(t, err)
			require.NotNil(t, loaded)
			assert.Equal(t, "saved through the repository", loaded.Name)
		})

		t.Run("CurrentByRuleID", func(t *testing.T) {
			rule, err := fixtures.CreateTestRule("current lookup")
			require.NoError(t, err)

			current, err := repo.CurrentByRuleID(ctx, rule.RuleID)
			require.NoError(t, err)
			require.NotNil(t, current)
			assert.Equal(t, 1, current.Version)

			_, err = fixtures.CreateTestRuleVersion(rule, nil)
			require.NoError(t, err)

			current, err = repo.CurrentByRuleID(ctx, rule.RuleID)
			require.NoError(t, err)
			require.NotNil(t, current)
			assert.Equal(t, 2, current.Version)
		})

		t.Run("CurrentByRuleIDUnknown", func(t *testing.T) {
			current, err := repo.CurrentByRuleID(ctx, uuid.New())
			require.NoError(t, err)
			assert.Nil(t, current)
		})

		t.Run("ByRuleIDAndVersion", func(t *testing.T) {
			rule, err := fixtures.CreateTestRule("version lookup")
			require.NoError(t, err)
			_, err = fixtures.CreateTestRuleVersion(rule, nil)
			require.NoError(t, err)

			v1, err := repo.ByRuleIDAndVersion(ctx, rule.RuleID, 1)
			require.NoError(t, err)
			require.NotNil(t, v1)
			assert.False(t, utils.IsTrue(v1.IsCurrent))

			missing, err := repo.ByRuleIDAndVersion(ctx, rule.RuleID, 99)
			require.NoError(t, err)
			assert.Nil(t, missing)
		})

		t.Run("VersionsByRuleIDNewestFirst", func(t *testing.T) {
			rule, err := fixtures.CreateTestRule("version chain listing")
			require.NoError(t, err)
			v2, err := fixtures.CreateTestRuleVersion(rule, nil)
			require.NoError(t, err)
			_, err = fixtures.CreateTestRuleVersion(v2, nil)
			require.NoError(t, err)

			versions, err := repo.VersionsByRuleID(ctx, rule.RuleID)
			require.NoError(t, err)
			require.Len(t, versions, 3)
			assert.Equal(t, 3, versions[0].Version)
			assert.Equal(t, 2, versions[1].Version)
			assert.Equal(t, 1, versions[2].Version)
		})

		t.Run("MaxVersion", func(t *testing.T) {
			rule, err := fixtures.CreateTestRule("max version")
			require.NoError(t, err)
			_, err = fixtures.CreateTestRuleVersion(rule, nil)
			require.NoError(t, err)

			max, err := repo.MaxVersion(ctx, rule.RuleID)
			require.NoError(t, err)
			assert.Equal(t, 2, max)

			max, err = repo.MaxVersion(ctx, uuid.New())
			require.NoError(t, err)
			assert.Equal(t, 0, max)
		})

		t.Run("ListMatchable", func(t *testing.T) {
			require.NoError(t, testDB.ClearAllTables())

			active, err := fixtures.CreateTestRule("active rule")
			require.NoError(t, err)
			superseded, err := fixtures.CreateTestRule("superseded rule")
			require.NoError(t, err)
			_, err = fixtures.CreateTestRuleVersion(superseded, nil)
			require.NoError(t, err)

			inactive, err := fixtures.CreateTestRule("inactive rule")
			require.NoError(t, err)
			require.NoError(t, testDB.DB.Model(&models.PricingRule{}).
				Where("id = ?", inactive.ID).Update("is_active", false).Error)

			matchable, err := repo.ListMatchable(ctx)
			require.NoError(t, err)

			// The active rule, the superseded rule's v2, nothing else
			require.Len(t, matchable, 2)
			for _, rule := range matchable {
				assert.True(t, rule.IsUsable())
			}
			assert.Equal(t, active.RuleID, matchable[0].RuleID)
			assert.Equal(t, superseded.RuleID, matchable[1].RuleID)
			assert.Equal(t, 2, matchable[1].Version)
		})

		t.Run("ClearCurrent", func(t *testing.T) {
			rule, err := fixtures.CreateTestRule("clear current")
			require.NoError(t, err)

			require.NoError(t, repo.ClearCurrent(ctx, rule.RuleID))

			current, err := repo.CurrentByRuleID(ctx, rule.RuleID)
			require.NoError(t, err)
			assert.Nil(t, current)

			// The row itself survives, only the flag flips
			v1, err := repo.ByRuleIDAndVersion(ctx, rule.RuleID, 1)
			require.NoError(t, err)
			require.NotNil(t, v1)
			assert.False(t, utils.IsTrue(v1.IsCurrent))
		})

		t.Run("ByFilterServiceType", func(t *testing.T) {
			require.NoError(t, testDB.ClearAllTables())

			_, err := fixtures.CreateTestRule("screen print scoped")
			require.NoError(t, err)

			wildcard := &models.PricingRule{
				Name:       "wildcard rule",
				Conditions: models.RuleConditions{},
				Effects:    testingutil.DefaultTestEffects(),
			}
			require.NoError(t, repo.Save(ctx, wildcard))

			screenPrint := models.ServiceTypeScreenPrint
			rows, err := repo.ByFilter(ctx, models.PricingRuleFilter{ServiceType: &screenPrint}, "", 0, 0)
			require.NoError(t, err)
			assert.Len(t, rows, 2)

			// A rule with no declared service types serves every service
			dtg := models.ServiceTypeDTG
			rows, err = repo.ByFilter(ctx, models.PricingRuleFilter{ServiceType: &dtg}, "", 0, 0)
			require.NoError(t, err)
			require.Len(t, rows, 1)
			assert.Equal(t, "wildcard rule", rows[0].Name)
		})

		t.Run("ByFilterName", func(t *testing.T) {
			require.NoError(t, testDB.ClearAllTables())

			_, err := fixtures.CreateTestRule("Standard Screen Print")
			require.NoError(t, err)
			_, err = fixtures.CreateTestRule("Contract Embroidery")
			require.NoError(t, err)

			name := "screen"
			rows, err := repo.ByFilter(ctx, models.PricingRuleFilter{Name: &name}, "", 0, 0)
			require.NoError(t, err)
			require.Len(t, rows, 1)
			assert.Equal(t, "Standard Screen Print", rows[0].Name)
		})

		t.Run("CountAndExists", func(t *testing.T) {
			require.NoError(t, testDB.ClearAllTables())

			rule, err := fixtures.CreateTestRule("counted rule")
			require.NoError(t, err)
			_, err = fixtures.CreateTestRuleVersion(rule, nil)
			require.NoError(t, err)

			count, err := repo.Count(ctx, models.PricingRuleFilter{RuleID: &rule.RuleID})
			require.NoError(t, err)
			assert.Equal(t, int64(2), count)

			isCurrent := true
			count, err = repo.Count(ctx, models.PricingRuleFilter{RuleID: &rule.RuleID, IsCurrent: &isCurrent})
			require.NoError(t, err)
			assert.Equal(t, int64(1), count)

			exists, err := repo.Exists(ctx, models.PricingRuleFilter{RuleID: &rule.RuleID})
			require.NoError(t, err)
			assert.True(t, exists)
		})

		return nil
	})
	requireDB(t, err)
}

func TestCalculationHistoryRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		repo := repository.NewCalculationHistoryRepository(testDB.DB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		rule, err := fixtures.CreateTestRule("history repository rule")
		require.NoError(t, err)

		t.Run("SaveAndByID", func(t *testing.T) {
			entry, err := fixtures.CreateTestHistoryEntry(rule, "G500", 100)
			require.NoError(t, err)

			loaded, err := repo.ByID(ctx, entry.ID)
			require.NoError(t, err)
			require.NotNil(t, loaded)
			assert.Equal(t, "G500", loaded.GarmentID)
			assert.Equal(t, 100, loaded.Quantity)
		})

		t.Run("ByFilterNewestFirst", func(t *testing.T) {
			require.NoError(t, testDB.DB.Exec("TRUNCATE TABLE calculation_history RESTART IDENTITY").Error)

			day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
			_, err := fixtures.CreateHistoryEntryAt(rule, "G500", day)
			require.NoError(t, err)
			_, err = fixtures.CreateHistoryEntryAt(rule, "G600", day.Add(24*time.Hour))
			require.NoError(t, err)
			_, err = fixtures.CreateHistoryEntryAt(rule, "G700", day.Add(48*time.Hour))
			require.NoError(t, err)

			rows, err := repo.ByFilter(ctx, models.CalculationHistoryFilter{}, "", 0, 0)
			require.NoError(t, err)
			require.Len(t, rows, 3)
			assert.Equal(t, "G700", rows[0].GarmentID)
			assert.Equal(t, "G600", rows[1].GarmentID)
			assert.Equal(t, "G500", rows[2].GarmentID)
		})

		t.Run("FilterByGarment", func(t *testing.T) {
			garmentID := "G600"
			rows, err := repo.ByFilter(ctx, models.CalculationHistoryFilter{GarmentID: &garmentID}, "", 0, 0)
			require.NoError(t, err)
			require.Len(t, rows, 1)
			assert.Equal(t, "G600", rows[0].GarmentID)
		})

		t.Run("FilterByDateRange", func(t *testing.T) {
			from := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
			to := time.Date(2026, 3, 2, 23, 59, 59, 0, time.UTC)
			rows, err := repo.ByFilter(ctx, models.CalculationHistoryFilter{
				CreatedAfter:  &from,
				CreatedBefore: &to,
			}, "", 0, 0)
			require.NoError(t, err)
			require.Len(t, rows, 1)
			assert.Equal(t, "G600", rows[0].GarmentID)
		})

		t.Run("FilterByMatchedRule", func(t *testing.T) {
			rows, err := repo.ByFilter(ctx, models.CalculationHistoryFilter{MatchedRuleID: &rule.RuleID}, "", 0, 0)
			require.NoError(t, err)
			assert.Len(t, rows, 3)

			other := uuid.New()
			rows, err = repo.ByFilter(ctx, models.CalculationHistoryFilter{MatchedRuleID: &other}, "", 0, 0)
			require.NoError(t, err)
			assert.Empty(t, rows)
		})

		t.Run("Paging", func(t *testing.T) {
			page1, err := repo.ByFilter(ctx, models.CalculationHistoryFilter{}, "", 2, 0)
			require.NoError(t, err)
			require.Len(t, page1, 2)

			page2, err := repo.ByFilter(ctx, models.CalculationHistoryFilter{}, "", 2, 2)
			require.NoError(t, err)
			require.Len(t, page2, 1)
			assert.Equal(t, "G500", page2[0].GarmentID)
		})

		t.Run("Count", func(t *testing.T) {
			count, err := repo.Count(ctx, models.CalculationHistoryFilter{})
			require.NoError(t, err)
			assert.Equal(t, int64(3), count)
		})

		return nil
	})
	requireDB(t, err)
}

func TestSequenceCounterRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		repo := repository.NewSequenceCounterRepository(testDB.DB)
		ctx := testingutil.CreateTestContext()

		t.Run("NextCreatesAndIncrements", func(t *testing.T) {
			v, err := repo.Next(ctx, "test_counter")
			require.NoError(t, err)
			assert.Equal(t, uint64(1), v)

			v, err = repo.Next(ctx, "test_counter")
			require.NoError(t, err)
			assert.Equal(t, uint64(2), v)

			current, err := repo.Current(ctx, "test_counter")
			require.NoError(t, err)
			assert.Equal(t, uint64(2), current)
		})

		t.Run("CurrentUnknownCounter", func(t *testing.T) {
			current, err := repo.Current(ctx, "never_advanced")
			require.NoError(t, err)
			assert.Equal(t, uint64(0), current)
		})

		t.Run("CountersAreIndependent", func(t *testing.T) {
			_, err := repo.Next(ctx, "counter_a")
			require.NoError(t, err)
			v, err := repo.Next(ctx, "counter_b")
			require.NoError(t, err)
			assert.Equal(t, uint64(1), v)
		})

		t.Run("RollbackDiscardsTheBump", func(t *testing.T) {
			before, err := repo.Current(ctx, models.SequenceRulesetGeneration)
			require.NoError(t, err)

			rollback := errors.New("force rollback")
			err = repository.WithTransaction(ctx, testDB.DB, func(txCtx context.Context) error {
				v, err := repo.Next(txCtx, models.SequenceRulesetGeneration)
				require.NoError(t, err)
				assert.Equal(t, before+1, v)
				return rollback
			})
			assert.ErrorIs(t, err, rollback)

			after, err := repo.Current(ctx, models.SequenceRulesetGeneration)
			require.NoError(t, err)
			assert.Equal(t, before, after)
		})

		return nil
	})
	requireDB(t, err)
}

func TestWithTransaction(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		repo := repository.NewPricingRuleRepository(testDB.DB)
		ctx := testingutil.CreateTestContext()

		t.Run("CommitPersistsWrites", func(t *testing.T) {
			var ruleID uuid.UUID
			err := repository.WithTransaction(ctx, testDB.DB, func(txCtx context.Context) error {
				rule := &models.PricingRule{
					Name:       "committed rule",
					Conditions: testingutil.DefaultTestConditions(),
					Effects:    testingutil.DefaultTestEffects(),
				}
				if err := repo.Save(txCtx, rule); err != nil {
					return err
				}
				ruleID = rule.RuleID
				return nil
			})
			require.NoError(t, err)

			current, err := repo.CurrentByRuleID(ctx, ruleID)
			require.NoError(t, err)
			require.NotNil(t, current)
			assert.Equal(t, "committed rule", current.Name)
		})

		t.Run("ErrorRollsBackWrites", func(t *testing.T) {
			boom := errors.New("boom")
			var ruleID uuid.UUID
			err := repository.WithTransaction(ctx, testDB.DB, func(txCtx context.Context) error {
				rule := &models.PricingRule{
					Name:       "doomed rule",
					Conditions: testingutil.DefaultTestConditions(),
					Effects:    testingutil.DefaultTestEffects(),
				}
				if err := repo.Save(txCtx, rule); err != nil {
					return err
				}
				ruleID = rule.RuleID
				return boom
			})
			assert.ErrorIs(t, err, boom)

			current, err := repo.CurrentByRuleID(ctx, ruleID)
			require.NoError(t, err)
			assert.Nil(t, current)
		})

		t.Run("PanicRollsBack", func(t *testing.T) {
			err := repository.WithTransaction(ctx, testDB.DB, func(txCtx context.Context) error {
				panic("kaboom")
			})
			require.Error(t, err)
			assert.Contains(t, err.Error(), "panic in transaction")
		})

		return nil
	})
	requireDB(t, err)
}
