package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/budgetwise/backend/internal/events"
	"github.com/budgetwise/backend/internal/models"
	"github.com/budgetwise/backend/internal/storage/memory"
)

func newTestScheduler(t *testing.T) (*RecurrenceScheduler, *memory.Store, *capturePublisher) {
	t.Helper()
	store := memory.NewStore()
	publisher := &capturePublisher{}
	return NewRecurrenceScheduler(store, store, publisher, NewUserLocks()), store, publisher
}

// seedTemplate inserts a recurring entry directly, bypassing the service so
// the user's totals stay untouched.
func seedTemplate(t *testing.T, store *memory.Store, user *models.User, interval models.RecurrenceInterval, amountStr string, due time.Time) *models.LedgerEntry {
	t.Helper()
	entry := &models.LedgerEntry{
		ID:                 uuid.NewString(),
		UserID:             user.ID,
		Type:               models.EntryTypeExpense,
		Title:              "Streaming subscription",
		Amount:             amount(t, amountStr),
		Category:           "Entertainment",
		Date:               due.AddDate(0, 0, -7),
		IsRecurring:        true,
		RecurrenceInterval: interval,
		NextOccurrenceDate: &due,
		CreatedAt:          due.AddDate(0, 0, -7),
		UpdatedAt:          due.AddDate(0, 0, -7),
	}
	require.NoError(t, store.CreateEntry(context.Background(), entry, user))
	return entry
}

func TestRecurrenceScheduler_MaterializesDueEntry(t *testing.T) {
	scheduler, store, publisher := newTestScheduler(t)
	ctx := context.Background()
	user := seedUser(t, store, "5000")

	now := time.Date(2024, time.March, 15, 9, 0, 0, 0, time.UTC)
	template := seedTemplate(t, store, user, models.IntervalWeekly, "100", now.Add(-time.Hour))

	processed, err := scheduler.Run(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	// A new concrete entry exists alongside the template.
	entries, err := store.ListEntries(ctx, user.ID, models.EntryTypeExpense)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	var materialized *models.LedgerEntry
	for i := range entries {
		if entries[i].ID != template.ID {
			materialized = &entries[i]
		}
	}
	require.NotNil(t, materialized)
	assert.Equal(t, template.Title, materialized.Title)
	assert.Equal(t, template.Category, materialized.Category)
	assert.True(t, template.Amount.Equal(materialized.Amount))
	assert.True(t, materialized.Date.Equal(now))

	// The aggregate formula applied as if the entry had been created by hand.
	updated, err := store.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assertAmount(t, "100", updated.TotalExpense)
	assertAmount(t, "4900", updated.TotalBalance)

	// The template advanced one week from the run date, not from its old
	// due date.
	advanced, err := store.GetEntry(ctx, template.ID)
	require.NoError(t, err)
	require.NotNil(t, advanced.NextOccurrenceDate)
	assert.True(t, advanced.NextOccurrenceDate.Equal(now.AddDate(0, 0, 7)))

	require.Len(t, publisher.events, 1)
	event, ok := publisher.events[0].(events.LedgerEvent)
	require.True(t, ok)
	assert.Equal(t, events.ActionMaterialized, event.Action)
	assert.Equal(t, materialized.ID, event.EntryID)
}

func TestRecurrenceScheduler_IgnoresNotYetDue(t *testing.T) {
	scheduler, store, _ := newTestScheduler(t)
	ctx := context.Background()
	user := seedUser(t, store, "5000")

	now := time.Date(2024, time.March, 15, 9, 0, 0, 0, time.UTC)
	seedTemplate(t, store, user, models.IntervalDaily, "25", now.Add(time.Hour))

	processed, err := scheduler.Run(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 0, processed)

	unchanged, err := store.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assertAmount(t, "5000", unchanged.TotalBalance)
}

func TestRecurrenceScheduler_ExpenseFiresWithoutBalanceCheck(t *testing.T) {
	scheduler, store, _ := newTestScheduler(t)
	ctx := context.Background()
	user := seedUser(t, store, "50")

	now := time.Date(2024, time.March, 15, 9, 0, 0, 0, time.UTC)
	seedTemplate(t, store, user, models.IntervalMonthly, "800", now.Add(-time.Minute))

	processed, err := scheduler.Run(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	updated, err := store.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assertAmount(t, "800", updated.TotalExpense)
	assertAmount(t, "-750", updated.TotalBalance)
}

func TestRecurrenceScheduler_SkipsFailedEntryAndContinues(t *testing.T) {
	scheduler, store, _ := newTestScheduler(t)
	ctx := context.Background()

	orphanOwner := seedUser(t, store, "1000")
	user := seedUser(t, store, "1000")

	now := time.Date(2024, time.March, 15, 9, 0, 0, 0, time.UTC)
	orphan := seedTemplate(t, store, orphanOwner, models.IntervalDaily, "10", now.Add(-2*time.Hour))
	healthy := seedTemplate(t, store, user, models.IntervalDaily, "10", now.Add(-time.Hour))

	// The orphan's owner disappears; materializing it must fail without
	// taking the rest of the batch down.
	store.RemoveUser(orphanOwner.ID)

	processed, err := scheduler.Run(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	updated, err := store.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assertAmount(t, "990", updated.TotalBalance)

	// The failed template stays due for the next run.
	stale, err := store.GetEntry(ctx, orphan.ID)
	require.NoError(t, err)
	require.NotNil(t, stale.NextOccurrenceDate)
	assert.True(t, stale.NextOccurrenceDate.Before(now))

	advanced, err := store.GetEntry(ctx, healthy.ID)
	require.NoError(t, err)
	assert.True(t, advanced.NextOccurrenceDate.After(now))
}

func TestRecurrenceScheduler_MaterializedCopyIsItselfRecurring(t *testing.T) {
	scheduler, store, _ := newTestScheduler(t)
	ctx := context.Background()
	user := seedUser(t, store, "5000")

	now := time.Date(2024, time.March, 15, 9, 0, 0, 0, time.UTC)
	template := seedTemplate(t, store, user, models.IntervalWeekly, "100", now.Add(-time.Hour))

	_, err := scheduler.Run(ctx, now)
	require.NoError(t, err)

	entries, err := store.ListEntries(ctx, user.ID, models.EntryTypeExpense)
	require.NoError(t, err)
	for _, e := range entries {
		if e.ID == template.ID {
			continue
		}
		assert.True(t, e.IsRecurring)
		assert.Equal(t, models.IntervalWeekly, e.RecurrenceInterval)
		require.NotNil(t, e.NextOccurrenceDate)
		assert.True(t, e.NextOccurrenceDate.Equal(now.AddDate(0, 0, 7)))
	}
}
