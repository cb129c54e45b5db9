package billing

import (
	"context"
	"testing"
	"time"

	"github.com/coopaguas/backend/internal/domain/billing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateTariff(t *testing.T) {
	ctx := context.Background()
	jan := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	jul := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	t.Run("a new schedule closes its predecessor", func(t *testing.T) {
		store := newMemStore()
		svc := NewCatalogService(store.scope())

		old := seedTariff(t, store, jan)
		created, err := svc.CreateTariff(ctx, CreateTariffRequest{
			EffectiveFrom: jul,
			FixedCharge:   decimal.NewFromInt(2500),
			DispatchCost:  decimal.NewFromInt(500),
			WaterRateM3:   decimal.NewFromInt(600),
			SewageRateM3:  decimal.NewFromInt(350),
		})
		require.NoError(t, err)

		current, err := store.scope().TariffRepo().FindEffectiveOn(ctx, jul)
		require.NoError(t, err)
		assert.Equal(t, created.ID, current.ID)

		// The old schedule stays queryable for historical recalculation
		historical, err := store.scope().TariffRepo().FindEffectiveOn(ctx, jan.AddDate(0, 2, 0))
		require.NoError(t, err)
		assert.Equal(t, old.ID, historical.ID)
	})

	t.Run("rejects invalid rates", func(t *testing.T) {
		store := newMemStore()
		svc := NewCatalogService(store.scope())
		_, err := svc.CreateTariff(ctx, CreateTariffRequest{
			EffectiveFrom: jan,
			FixedCharge:   decimal.NewFromInt(-1),
		})
		assert.Error(t, err)
	})
}

func TestAssignSubsidy(t *testing.T) {
	ctx := context.Background()
	jan := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	jun := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	seedClasses := func(t *testing.T, store *memStore) {
		t.Helper()
		c1, err := billing.NewSubsidyClass(1, "Tramo 1", decimal.NewFromInt(13), decimal.NewFromInt(1))
		require.NoError(t, err)
		require.NoError(t, store.scope().SubsidyRepo().SaveClass(ctx, c1))
		c2, err := billing.NewSubsidyClass(2, "Tramo 2", decimal.NewFromInt(13), decimal.NewFromFloat(0.5))
		require.NoError(t, err)
		require.NoError(t, store.scope().SubsidyRepo().SaveClass(ctx, c2))
	}

	t.Run("reassignment closes the previous range", func(t *testing.T) {
		store := newMemStore()
		svc := NewCatalogService(store.scope())
		seedClasses(t, store)
		customer := seedCustomer(t, store, "SOC-0001")

		_, err := svc.AssignSubsidy(ctx, customer.ID, 1, jan)
		require.NoError(t, err)
		second, err := svc.AssignSubsidy(ctx, customer.ID, 2, jun)
		require.NoError(t, err)

		active, err := store.scope().SubsidyRepo().FindActiveAssignment(ctx, customer.ID, jun)
		require.NoError(t, err)
		assert.Equal(t, second.ID, active.ID)

		// The earlier range still answers historical queries
		before, err := store.scope().SubsidyRepo().FindActiveAssignment(ctx, customer.ID, jan.AddDate(0, 1, 0))
		require.NoError(t, err)
		assert.NotEqual(t, second.ID, before.ID)
	})

	t.Run("rejects an unknown class code", func(t *testing.T) {
		store := newMemStore()
		svc := NewCatalogService(store.scope())
		customer := seedCustomer(t, store, "SOC-0001")
		_, err := svc.AssignSubsidy(ctx, customer.ID, 3, jan)
		assert.Error(t, err)
	})

	t.Run("removal ends the active assignment", func(t *testing.T) {
		store := newMemStore()
		svc := NewCatalogService(store.scope())
		seedClasses(t, store)
		customer := seedCustomer(t, store, "SOC-0001")

		_, err := svc.AssignSubsidy(ctx, customer.ID, 1, jan)
		require.NoError(t, err)
		require.NoError(t, svc.RemoveSubsidy(ctx, customer.ID, jun))

		_, err = store.scope().SubsidyRepo().FindActiveAssignment(ctx, customer.ID, jun)
		assert.Error(t, err)
	})
}

func TestCreateSubsidyClass(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a class and makes it assignable", func(t *testing.T) {
		store := newMemStore()
		svc := NewCatalogService(store.scope())

		created, err := svc.CreateSubsidyClass(ctx, CreateSubsidyClassRequest{
			Code:        1,
			Name:        "Tramo 1",
			ThresholdM3: decimal.NewFromInt(13),
			Multiplier:  decimal.NewFromInt(1),
		})
		require.NoError(t, err)

		found, err := store.scope().SubsidyRepo().FindClassByCode(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, created.ID, found.ID)
	})

	t.Run("rejects a duplicate code", func(t *testing.T) {
		store := newMemStore()
		svc := NewCatalogService(store.scope())

		_, err := svc.CreateSubsidyClass(ctx, CreateSubsidyClassRequest{
			Code: 1, Name: "Tramo 1", ThresholdM3: decimal.NewFromInt(13), Multiplier: decimal.NewFromInt(1),
		})
		require.NoError(t, err)
		_, err = svc.CreateSubsidyClass(ctx, CreateSubsidyClassRequest{
			Code: 1, Name: "Tramo 1 bis", ThresholdM3: decimal.NewFromInt(15), Multiplier: decimal.NewFromInt(1),
		})
		assert.Error(t, err)
	})
}

func TestCreateRepactacionPlan(t *testing.T) {
	ctx := context.Background()
	jan := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("records a plan for an existing customer", func(t *testing.T) {
		store := newMemStore()
		svc := NewCatalogService(store.scope())
		customer := seedCustomer(t, store, "SOC-0001")

		plan, err := svc.CreateRepactacionPlan(ctx, CreatePlanRequest{
			CustomerID:        customer.ID,
			StartDate:         jan,
			TotalInstallments: 6,
			InstallmentAmount: decimal.NewFromInt(10000),
			OriginalDebt:      decimal.NewFromInt(60000),
		})
		require.NoError(t, err)

		current, err := store.scope().RepactacionRepo().FindCurrentByCustomer(ctx, customer.ID, jan)
		require.NoError(t, err)
		require.Len(t, current, 1)
		assert.Equal(t, plan.ID, current[0].ID)
	})

	t.Run("rejects a plan for an unknown customer", func(t *testing.T) {
		store := newMemStore()
		svc := NewCatalogService(store.scope())
		_, err := svc.CreateRepactacionPlan(ctx, CreatePlanRequest{
			CustomerID:        uuid.New(),
			StartDate:         jan,
			TotalInstallments: 6,
			InstallmentAmount: decimal.NewFromInt(10000),
			OriginalDebt:      decimal.NewFromInt(60000),
		})
		assert.Error(t, err)
	})
}
