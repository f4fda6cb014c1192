package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/budgetwise/backend/internal/models"
	"github.com/budgetwise/backend/internal/storage/memory"
)

type capturePublisher struct {
	events []any
}

func (p *capturePublisher) Publish(ctx context.Context, event any) error {
	p.events = append(p.events, event)
	return nil
}

func (p *capturePublisher) Close() error { return nil }

func newTestLedger(t *testing.T) (*LedgerService, *memory.Store, *capturePublisher) {
	t.Helper()
	store := memory.NewStore()
	publisher := &capturePublisher{}
	return NewLedgerService(store, store, publisher, NewUserLocks()), store, publisher
}

func seedUser(t *testing.T, store *memory.Store, balance string) *models.User {
	t.Helper()
	b := amount(t, balance)
	user := &models.User{
		ID:           uuid.NewString(),
		Name:         "Test User",
		Email:        fmt.Sprintf("%s@example.com", uuid.NewString()),
		Role:         models.RoleUser,
		TotalIncome:  b,
		TotalBalance: b,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	require.NoError(t, store.CreateUser(context.Background(), user))
	return user
}

func amount(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func assertAmount(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, amount(t, want).Equal(got), "want %s, got %s", want, got)
}

func TestLedgerService_CreateExpense(t *testing.T) {
	svc, store, publisher := newTestLedger(t)
	ctx := context.Background()
	user := seedUser(t, store, "5000")

	entry, err := svc.Create(ctx, user.ID, models.EntryTypeExpense, EntryInput{
		Title:    "Dinner",
		Amount:   amount(t, "50"),
		Category: "Food",
	})
	require.NoError(t, err)

	assert.Equal(t, "Dinner", entry.Title)
	assert.Equal(t, models.EntryTypeExpense, entry.Type)
	assert.Equal(t, user.ID, entry.UserID)
	assert.False(t, entry.Date.IsZero())
	assert.Nil(t, entry.NextOccurrenceDate)

	updated, err := store.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assertAmount(t, "4950", updated.TotalBalance)
	assertAmount(t, "50", updated.TotalExpense)
	// Expense creation leaves savings alone.
	assertAmount(t, "0", updated.TotalSavings)

	assert.Len(t, publisher.events, 1)
}

func TestLedgerService_CreateExpense_InsufficientBalance(t *testing.T) {
	svc, store, _ := newTestLedger(t)
	ctx := context.Background()
	user := seedUser(t, store, "4950")

	_, err := svc.Create(ctx, user.ID, models.EntryTypeExpense, EntryInput{
		Title:    "Television",
		Amount:   amount(t, "6000"),
		Category: "Entertainment",
	})
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	// Rejection leaves the totals untouched.
	unchanged, err := store.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assertAmount(t, "4950", unchanged.TotalBalance)
	assertAmount(t, "0", unchanged.TotalExpense)

	entries, err := svc.List(ctx, user.ID, models.EntryTypeExpense)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLedgerService_CreateIncome_UpdatesSavings(t *testing.T) {
	svc, store, _ := newTestLedger(t)
	ctx := context.Background()
	user := seedUser(t, store, "0")

	_, err := svc.Create(ctx, user.ID, models.EntryTypeIncome, EntryInput{
		Title:    "Salary",
		Amount:   amount(t, "3000"),
		Category: "Work",
	})
	require.NoError(t, err)

	updated, err := store.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assertAmount(t, "3000", updated.TotalIncome)
	assertAmount(t, "3000", updated.TotalBalance)
	assertAmount(t, "3000", updated.TotalSavings)
}

func TestLedgerService_Create_Validation(t *testing.T) {
	svc, store, _ := newTestLedger(t)
	ctx := context.Background()
	user := seedUser(t, store, "1000")

	cases := []struct {
		name  string
		in    EntryInput
		field string
	}{
		{"missing title", EntryInput{Amount: amount(t, "10"), Category: "Food"}, "title"},
		{"blank title", EntryInput{Title: "   ", Amount: amount(t, "10"), Category: "Food"}, "title"},
		{"negative amount", EntryInput{Title: "Lunch", Amount: amount(t, "-1"), Category: "Food"}, "amount"},
		{"missing category", EntryInput{Title: "Lunch", Amount: amount(t, "10")}, "category"},
		{"bad interval", EntryInput{Title: "Rent", Amount: amount(t, "10"), Category: "Housing", IsRecurring: true, RecurrenceInterval: "yearly"}, "recurrenceInterval"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, user.ID, models.EntryTypeExpense, tc.in)
			var validationErr *ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, tc.field, validationErr.Field)
		})
	}

	// No mutation happened during any of the rejections.
	unchanged, err := store.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assertAmount(t, "1000", unchanged.TotalBalance)
}

func TestLedgerService_CreateRecurring_SetsNextOccurrence(t *testing.T) {
	svc, store, _ := newTestLedger(t)
	ctx := context.Background()
	user := seedUser(t, store, "1000")

	date := time.Date(2024, time.January, 31, 12, 0, 0, 0, time.UTC)
	entry, err := svc.Create(ctx, user.ID, models.EntryTypeExpense, EntryInput{
		Title:              "Rent",
		Amount:             amount(t, "800"),
		Category:           "Housing",
		Date:               date,
		IsRecurring:        true,
		RecurrenceInterval: models.IntervalMonthly,
	})
	require.NoError(t, err)

	require.NotNil(t, entry.NextOccurrenceDate)
	assert.Equal(t, time.Date(2024, time.February, 29, 12, 0, 0, 0, time.UTC), *entry.NextOccurrenceDate)
}

func TestLedgerService_Update_AdjustsByDelta(t *testing.T) {
	svc, store, _ := newTestLedger(t)
	ctx := context.Background()
	user := seedUser(t, store, "1000")

	entry, err := svc.Create(ctx, user.ID, models.EntryTypeExpense, EntryInput{
		Title:    "Groceries",
		Amount:   amount(t, "100"),
		Category: "Food",
	})
	require.NoError(t, err)

	_, err = svc.Update(ctx, user.ID, entry.ID, EntryInput{
		Title:    "Groceries",
		Amount:   amount(t, "150"),
		Category: "Food",
	})
	require.NoError(t, err)

	updated, err := store.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assertAmount(t, "150", updated.TotalExpense)
	assertAmount(t, "850", updated.TotalBalance)
}

func TestLedgerService_Update_ZeroDeltaIsIdempotent(t *testing.T) {
	svc, store, _ := newTestLedger(t)
	ctx := context.Background()
	user := seedUser(t, store, "1000")

	entry, err := svc.Create(ctx, user.ID, models.EntryTypeExpense, EntryInput{
		Title:    "Gym",
		Amount:   amount(t, "40"),
		Category: "Healthcare",
	})
	require.NoError(t, err)

	before, err := store.GetUser(ctx, user.ID)
	require.NoError(t, err)

	_, err = svc.Update(ctx, user.ID, entry.ID, EntryInput{
		Title:    "Gym",
		Amount:   amount(t, "40"),
		Category: "Healthcare",
	})
	require.NoError(t, err)

	after, err := store.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, before.TotalIncome.Equal(after.TotalIncome))
	assert.True(t, before.TotalExpense.Equal(after.TotalExpense))
	assert.True(t, before.TotalBalance.Equal(after.TotalBalance))
	assert.True(t, before.TotalSavings.Equal(after.TotalSavings))
}

func TestLedgerService_Update_InsufficientBalanceOnDelta(t *testing.T) {
	svc, store, _ := newTestLedger(t)
	ctx := context.Background()
	user := seedUser(t, store, "200")

	entry, err := svc.Create(ctx, user.ID, models.EntryTypeExpense, EntryInput{
		Title:    "Phone",
		Amount:   amount(t, "100"),
		Category: "Utilities",
	})
	require.NoError(t, err)

	// Balance is 100; raising the expense by 150 is not covered.
	_, err = svc.Update(ctx, user.ID, entry.ID, EntryInput{
		Title:    "Phone",
		Amount:   amount(t, "250"),
		Category: "Utilities",
	})
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	unchanged, err := store.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assertAmount(t, "100", unchanged.TotalBalance)
	assertAmount(t, "100", unchanged.TotalExpense)
}

func TestLedgerService_Update_Authorization(t *testing.T) {
	svc, store, _ := newTestLedger(t)
	ctx := context.Background()
	owner := seedUser(t, store, "1000")
	other := seedUser(t, store, "1000")

	entry, err := svc.Create(ctx, owner.ID, models.EntryTypeIncome, EntryInput{
		Title:    "Bonus",
		Amount:   amount(t, "500"),
		Category: "Work",
	})
	require.NoError(t, err)

	_, err = svc.Update(ctx, other.ID, entry.ID, EntryInput{
		Title:    "Bonus",
		Amount:   amount(t, "900"),
		Category: "Work",
	})
	assert.ErrorIs(t, err, ErrNotAuthorized)

	err = svc.Delete(ctx, other.ID, entry.ID)
	assert.ErrorIs(t, err, ErrNotAuthorized)

	_, err = svc.Get(ctx, other.ID, entry.ID)
	assert.ErrorIs(t, err, ErrNotAuthorized)
}

func TestLedgerService_Update_NotFound(t *testing.T) {
	svc, store, _ := newTestLedger(t)
	ctx := context.Background()
	user := seedUser(t, store, "1000")

	_, err := svc.Update(ctx, user.ID, uuid.NewString(), EntryInput{
		Title:    "Ghost",
		Amount:   amount(t, "10"),
		Category: "Other",
	})
	assert.ErrorIs(t, err, ErrNotFound)

	err = svc.Delete(ctx, user.ID, uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLedgerService_DeleteExpense_ReversesEffect(t *testing.T) {
	svc, store, _ := newTestLedger(t)
	ctx := context.Background()
	user := seedUser(t, store, "1000")

	entry, err := svc.Create(ctx, user.ID, models.EntryTypeExpense, EntryInput{
		Title:    "Concert",
		Amount:   amount(t, "120"),
		Category: "Entertainment",
	})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, user.ID, entry.ID))

	restored, err := store.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assertAmount(t, "1000", restored.TotalBalance)
	assertAmount(t, "0", restored.TotalExpense)

	_, err = svc.Get(ctx, user.ID, entry.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLedgerService_DeleteIncome_FloorsAtZero(t *testing.T) {
	svc, store, _ := newTestLedger(t)
	ctx := context.Background()
	user := seedUser(t, store, "0")

	income, err := svc.Create(ctx, user.ID, models.EntryTypeIncome, EntryInput{
		Title:    "Salary",
		Amount:   amount(t, "1000"),
		Category: "Work",
	})
	require.NoError(t, err)

	// Spend part of the income so balance < income amount at delete time.
	_, err = svc.Create(ctx, user.ID, models.EntryTypeExpense, EntryInput{
		Title:    "Rent",
		Amount:   amount(t, "600"),
		Category: "Housing",
	})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, user.ID, income.ID))

	after, err := store.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assertAmount(t, "0", after.TotalIncome)
	assertAmount(t, "0", after.TotalBalance)
	assertAmount(t, "0", after.TotalSavings)
	assert.False(t, after.TotalIncome.IsNegative())
	assert.False(t, after.TotalBalance.IsNegative())
	assert.False(t, after.TotalSavings.IsNegative())
}

// The balance invariant: after any sequence of successful operations the
// balance equals income minus expense over the surviving entries.
func TestLedgerService_BalanceInvariant(t *testing.T) {
	svc, store, _ := newTestLedger(t)
	ctx := context.Background()
	user := seedUser(t, store, "0")

	_, err := svc.Create(ctx, user.ID, models.EntryTypeIncome, EntryInput{
		Title: "Salary", Amount: amount(t, "2500"), Category: "Work",
	})
	require.NoError(t, err)

	side, err := svc.Create(ctx, user.ID, models.EntryTypeIncome, EntryInput{
		Title: "Side project", Amount: amount(t, "300.50"), Category: "Work",
	})
	require.NoError(t, err)

	groceries, err := svc.Create(ctx, user.ID, models.EntryTypeExpense, EntryInput{
		Title: "Groceries", Amount: amount(t, "150.25"), Category: "Food",
	})
	require.NoError(t, err)

	_, err = svc.Update(ctx, user.ID, groceries.ID, EntryInput{
		Title: "Groceries", Amount: amount(t, "175"), Category: "Food",
	})
	require.NoError(t, err)

	_, err = svc.Create(ctx, user.ID, models.EntryTypeExpense, EntryInput{
		Title: "Transport", Amount: amount(t, "60"), Category: "Travel",
	})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, user.ID, side.ID))

	incomes, err := svc.List(ctx, user.ID, models.EntryTypeIncome)
	require.NoError(t, err)
	expenses, err := svc.List(ctx, user.ID, models.EntryTypeExpense)
	require.NoError(t, err)

	sum := decimal.Zero
	for _, e := range incomes {
		sum = sum.Add(e.Amount)
	}
	for _, e := range expenses {
		sum = sum.Sub(e.Amount)
	}

	final, err := store.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, final.TotalBalance.Equal(sum),
		"balance %s drifted from entry sum %s", final.TotalBalance, sum)
}

func TestLedgerService_List_OrdersByDateDescending(t *testing.T) {
	svc, store, _ := newTestLedger(t)
	ctx := context.Background()
	user := seedUser(t, store, "1000")

	old := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)

	_, err := svc.Create(ctx, user.ID, models.EntryTypeExpense, EntryInput{
		Title: "Old", Amount: amount(t, "10"), Category: "Other", Date: old,
	})
	require.NoError(t, err)
	_, err = svc.Create(ctx, user.ID, models.EntryTypeExpense, EntryInput{
		Title: "Recent", Amount: amount(t, "10"), Category: "Other", Date: recent,
	})
	require.NoError(t, err)

	entries, err := svc.List(ctx, user.ID, models.EntryTypeExpense)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Recent", entries[0].Title)
	assert.Equal(t, "Old", entries[1].Title)
}
