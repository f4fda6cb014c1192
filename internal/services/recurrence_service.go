package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/budgetwise/backend/internal/events"
	"github.com/budgetwise/backend/internal/models"
	"github.com/budgetwise/backend/internal/schedule"
	"github.com/budgetwise/backend/internal/storage"
)

// RecurrenceScheduler materializes due recurring ledger entries. It has no
// clock of its own: the caller invokes Run with "now" once per period, which
// keeps the component deterministic under test.
type RecurrenceScheduler struct {
	users     storage.UserStore
	entries   storage.LedgerStore
	publisher events.Publisher
	locks     *UserLocks
}

func NewRecurrenceScheduler(users storage.UserStore, entries storage.LedgerStore, publisher events.Publisher, locks *UserLocks) *RecurrenceScheduler {
	return &RecurrenceScheduler{
		users:     users,
		entries:   entries,
		publisher: publisher,
		locks:     locks,
	}
}

// Run processes every recurring entry whose next occurrence date is at or
// before now. A single entry's failure is logged and skipped so the rest of
// the batch still gets processed; the failed entry stays due and is retried
// on the next period.
func (s *RecurrenceScheduler) Run(ctx context.Context, now time.Time) (int, error) {
	due, err := s.entries.ListDueRecurring(ctx, now)
	if err != nil {
		return 0, persistence("list due recurring entries", err)
	}

	slog.InfoContext(ctx, "Processing due recurring entries",
		"due", len(due), "run_date", now.Format("2006-01-02"))

	processed := 0
	for i := range due {
		template := due[i]
		if err := s.materialize(ctx, &template, now); err != nil {
			slog.ErrorContext(ctx, "Failed to materialize recurring entry",
				"entry_id", template.ID, "user_id", template.UserID, "error", err)
			continue
		}
		processed++
	}

	slog.InfoContext(ctx, "Recurring entry processing complete",
		"processed", processed, "due", len(due))
	return processed, nil
}

// materialize creates a new concrete entry from the template, applies the
// create-time aggregate formula for the entry's type, and only then advances
// the template's next occurrence date. The template itself is never deleted;
// it acts as a perpetual schedule.
func (s *RecurrenceScheduler) materialize(ctx context.Context, template *models.LedgerEntry, now time.Time) error {
	next, err := schedule.NextOccurrence(now, template.RecurrenceInterval)
	if err != nil {
		return err
	}

	lock := s.locks.Get(template.UserID)
	lock.Lock()
	defer lock.Unlock()

	user, err := s.users.GetUser(ctx, template.UserID)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return persistence("get user", err)
	}

	entry := &models.LedgerEntry{
		ID:                 uuid.NewString(),
		UserID:             template.UserID,
		Type:               template.Type,
		Title:              template.Title,
		Amount:             template.Amount,
		Category:           template.Category,
		Description:        template.Description,
		Date:               now,
		IsRecurring:        template.IsRecurring,
		RecurrenceInterval: template.RecurrenceInterval,
		NextOccurrenceDate: &next,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	// Materialization applies the aggregate formula without the interactive
	// balance precondition: a scheduled expense fires even when it drives
	// the balance down.
	applyCreate(user, entry.Type, entry.Amount)

	if err := s.entries.CreateEntry(ctx, entry, user); err != nil {
		return persistence("create materialized entry", err)
	}

	// Advance only after the occurrence is committed, so a failure above
	// leaves the template due for the next run instead of skipping a fire.
	template.NextOccurrenceDate = &next
	template.UpdatedAt = now
	if err := s.entries.SaveEntry(ctx, template); err != nil {
		return persistence("advance recurrence template", err)
	}

	s.publishMaterialized(ctx, entry)
	return nil
}

func (s *RecurrenceScheduler) publishMaterialized(ctx context.Context, entry *models.LedgerEntry) {
	if s.publisher == nil {
		return
	}
	event := events.LedgerEvent{
		Action:     events.ActionMaterialized,
		EntryID:    entry.ID,
		UserID:     entry.UserID,
		EntryType:  entry.Type,
		Amount:     entry.Amount,
		OccurredAt: time.Now(),
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		slog.ErrorContext(ctx, "Failed to publish materialization event",
			"entry_id", entry.ID, "error", err)
	}
}
