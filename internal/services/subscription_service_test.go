package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/budgetwise/backend/internal/models"
	"github.com/budgetwise/backend/internal/storage/memory"
)

func TestSubscriptionService_ListPlansOrderedByPrice(t *testing.T) {
	store := memory.NewStore()
	svc := NewSubscriptionService(store, store)

	store.SeedPlan(models.SubscriptionPlan{
		ID: uuid.NewString(), Name: "Pro", Price: amount(t, "99.99"), DurationDays: 365, CreatedAt: time.Now(),
	})
	store.SeedPlan(models.SubscriptionPlan{
		ID: uuid.NewString(), Name: "Free", Price: amount(t, "0"), DurationDays: 0, CreatedAt: time.Now(),
	})
	store.SeedPlan(models.SubscriptionPlan{
		ID: uuid.NewString(), Name: "Premium", Price: amount(t, "9.99"), DurationDays: 30, CreatedAt: time.Now(),
	})

	plans, err := svc.ListPlans(context.Background())
	require.NoError(t, err)
	require.Len(t, plans, 3)
	assert.Equal(t, "Free", plans[0].Name)
	assert.Equal(t, "Premium", plans[1].Name)
	assert.Equal(t, "Pro", plans[2].Name)
}

func TestSubscriptionService_AssignPlan(t *testing.T) {
	store := memory.NewStore()
	svc := NewSubscriptionService(store, store)
	user := seedUser(t, store, "0")

	plan := models.SubscriptionPlan{
		ID: uuid.NewString(), Name: "Premium", Price: amount(t, "9.99"), DurationDays: 30, CreatedAt: time.Now(),
	}
	store.SeedPlan(plan)

	updated, err := svc.AssignPlan(context.Background(), user.ID, plan.ID)
	require.NoError(t, err)
	require.NotNil(t, updated.SubscriptionPlanID)
	assert.Equal(t, plan.ID, *updated.SubscriptionPlanID)

	stored, err := store.GetUser(context.Background(), user.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.SubscriptionPlanID)
	assert.Equal(t, plan.ID, *stored.SubscriptionPlanID)
}

func TestSubscriptionService_AssignPlan_UnknownPlan(t *testing.T) {
	store := memory.NewStore()
	svc := NewSubscriptionService(store, store)
	user := seedUser(t, store, "0")

	_, err := svc.AssignPlan(context.Background(), user.ID, uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)
}
