// Package storage defines the persistence contracts consumed by the service
// layer. Implementations must make each entry-plus-aggregate write atomic:
// the ledger entry and the owning user's totals either both persist or
// neither does.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/budgetwise/backend/internal/models"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("storage: record not found")

	// ErrDuplicate is returned when a unique constraint is violated.
	ErrDuplicate = errors.New("storage: duplicate record")
)

// UserStore persists users and their aggregate totals.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	// UpdateUser persists non-aggregate user fields (profile, subscription).
	// Aggregate totals travel with the LedgerStore write methods instead.
	UpdateUser(ctx context.Context, user *models.User) error
}

// LedgerStore persists ledger entries. The Create/Update/Delete methods take
// the owning user with already-adjusted totals and commit both records in a
// single transaction.
type LedgerStore interface {
	GetEntry(ctx context.Context, id string) (*models.LedgerEntry, error)
	// ListEntries returns the user's entries of the given type, most recent
	// date first.
	ListEntries(ctx context.Context, userID string, entryType models.EntryType) ([]models.LedgerEntry, error)
	// ListDueRecurring returns every recurring entry whose next occurrence
	// date is at or before now.
	ListDueRecurring(ctx context.Context, now time.Time) ([]models.LedgerEntry, error)

	CreateEntry(ctx context.Context, entry *models.LedgerEntry, user *models.User) error
	UpdateEntry(ctx context.Context, entry *models.LedgerEntry, user *models.User) error
	DeleteEntry(ctx context.Context, entryID string, user *models.User) error

	// SaveEntry persists entry fields without touching the user row. Used by
	// the scheduler to advance a template's next occurrence date.
	SaveEntry(ctx context.Context, entry *models.LedgerEntry) error
}

// PlanStore reads subscription plan reference data.
type PlanStore interface {
	ListPlans(ctx context.Context) ([]models.SubscriptionPlan, error)
	GetPlan(ctx context.Context, id string) (*models.SubscriptionPlan, error)
}
