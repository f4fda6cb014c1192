package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/budgetwise/backend/internal/events"
	"github.com/budgetwise/backend/internal/models"
	"github.com/budgetwise/backend/internal/schedule"
	"github.com/budgetwise/backend/internal/storage"
)

// LedgerService is the only path by which ledger entries are created,
// updated, or deleted, and the only path by which the owning user's
// aggregate totals change in response. Operations on the same user are
// serialized through the shared lock registry.
type LedgerService struct {
	users     storage.UserStore
	entries   storage.LedgerStore
	publisher events.Publisher
	locks     *UserLocks
}

func NewLedgerService(users storage.UserStore, entries storage.LedgerStore, publisher events.Publisher, locks *UserLocks) *LedgerService {
	return &LedgerService{
		users:     users,
		entries:   entries,
		publisher: publisher,
		locks:     locks,
	}
}

// EntryInput carries the caller-supplied fields of a ledger entry. A zero
// Date means "now" on create and "keep the current date" on update.
type EntryInput struct {
	Title              string
	Amount             decimal.Decimal
	Category           string
	Description        string
	Date               time.Time
	IsRecurring        bool
	RecurrenceInterval models.RecurrenceInterval
}

func validateInput(in EntryInput) error {
	if strings.TrimSpace(in.Title) == "" {
		return newValidationError("title", "is required")
	}
	if in.Amount.IsNegative() {
		return newValidationError("amount", "must not be negative")
	}
	if strings.TrimSpace(in.Category) == "" {
		return newValidationError("category", "is required")
	}
	if len(in.Description) > models.MaxDescriptionLength {
		return newValidationError("description", "exceeds maximum length")
	}
	if in.IsRecurring && !schedule.ValidInterval(in.RecurrenceInterval) {
		return newValidationError("recurrenceInterval", "must be one of daily, weekly, monthly")
	}
	return nil
}

// Create validates the input, enforces the expense balance precondition, and
// commits the new entry together with the adjusted aggregate totals.
func (s *LedgerService) Create(ctx context.Context, userID string, entryType models.EntryType, in EntryInput) (*models.LedgerEntry, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	lock := s.locks.Get(userID)
	lock.Lock()
	defer lock.Unlock()

	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Income has no balance precondition; an expense must be covered.
	if entryType == models.EntryTypeExpense && user.TotalBalance.LessThan(in.Amount) {
		return nil, ErrInsufficientBalance
	}

	now := time.Now()
	date := in.Date
	if date.IsZero() {
		date = now
	}

	entry := &models.LedgerEntry{
		ID:          uuid.NewString(),
		UserID:      userID,
		Type:        entryType,
		Title:       strings.TrimSpace(in.Title),
		Amount:      in.Amount,
		Category:    in.Category,
		Description: in.Description,
		Date:        date,
		IsRecurring: in.IsRecurring,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if in.IsRecurring {
		next, err := schedule.NextOccurrence(date, in.RecurrenceInterval)
		if err != nil {
			return nil, newValidationError("recurrenceInterval", err.Error())
		}
		entry.RecurrenceInterval = in.RecurrenceInterval
		entry.NextOccurrenceDate = &next
	}

	applyCreate(user, entryType, in.Amount)

	if err := s.entries.CreateEntry(ctx, entry, user); err != nil {
		return nil, persistence("create entry", err)
	}

	s.publish(ctx, events.ActionCreated, entry)
	return entry, nil
}

// Update applies field changes to an owned entry and adjusts the aggregate
// totals by the amount delta rather than re-deriving them. An update with
// unchanged values therefore leaves the totals untouched.
func (s *LedgerService) Update(ctx context.Context, userID, entryID string, in EntryInput) (*models.LedgerEntry, error) {
	lock := s.locks.Get(userID)
	lock.Lock()
	defer lock.Unlock()

	entry, err := s.getEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry.UserID != userID {
		return nil, ErrNotAuthorized
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}

	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	delta := in.Amount.Sub(entry.Amount)
	if entry.Type == models.EntryTypeExpense && user.TotalBalance.LessThan(delta) {
		return nil, ErrInsufficientBalance
	}

	switch entry.Type {
	case models.EntryTypeExpense:
		user.TotalExpense = user.TotalExpense.Add(delta)
		user.TotalBalance = user.TotalBalance.Sub(delta)
	case models.EntryTypeIncome:
		user.TotalIncome = user.TotalIncome.Add(delta)
		user.TotalBalance = user.TotalBalance.Add(delta)
		user.TotalSavings = user.TotalBalance.Sub(user.TotalExpense)
	}

	entry.Title = strings.TrimSpace(in.Title)
	entry.Amount = in.Amount
	entry.Category = in.Category
	entry.Description = in.Description
	if !in.Date.IsZero() {
		entry.Date = in.Date
	}
	entry.IsRecurring = in.IsRecurring
	if in.IsRecurring {
		next, err := schedule.NextOccurrence(entry.Date, in.RecurrenceInterval)
		if err != nil {
			return nil, newValidationError("recurrenceInterval", err.Error())
		}
		entry.RecurrenceInterval = in.RecurrenceInterval
		entry.NextOccurrenceDate = &next
	} else {
		entry.RecurrenceInterval = ""
		entry.NextOccurrenceDate = nil
	}
	entry.UpdatedAt = time.Now()

	if err := s.entries.UpdateEntry(ctx, entry, user); err != nil {
		return nil, persistence("update entry", err)
	}

	s.publish(ctx, events.ActionUpdated, entry)
	return entry, nil
}

// Delete removes an owned entry and reverses its aggregate effect. Income
// removal floors the totals at zero so a stale entry can never drive the
// aggregates negative.
func (s *LedgerService) Delete(ctx context.Context, userID, entryID string) error {
	lock := s.locks.Get(userID)
	lock.Lock()
	defer lock.Unlock()

	entry, err := s.getEntry(ctx, entryID)
	if err != nil {
		return err
	}
	if entry.UserID != userID {
		return ErrNotAuthorized
	}

	user, err := s.getUser(ctx, userID)
	if err != nil {
		return err
	}

	switch entry.Type {
	case models.EntryTypeExpense:
		user.TotalExpense = user.TotalExpense.Sub(entry.Amount)
		user.TotalBalance = user.TotalBalance.Add(entry.Amount)
	case models.EntryTypeIncome:
		user.TotalIncome = maxZero(user.TotalIncome.Sub(entry.Amount))
		user.TotalBalance = maxZero(user.TotalBalance.Sub(entry.Amount))
		user.TotalSavings = maxZero(user.TotalBalance.Sub(user.TotalExpense))
	}

	if err := s.entries.DeleteEntry(ctx, entryID, user); err != nil {
		return persistence("delete entry", err)
	}

	s.publish(ctx, events.ActionDeleted, entry)
	return nil
}

// Get fetches a single entry after an ownership check.
func (s *LedgerService) Get(ctx context.Context, userID, entryID string) (*models.LedgerEntry, error) {
	entry, err := s.getEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry.UserID != userID {
		return nil, ErrNotAuthorized
	}
	return entry, nil
}

// List returns the user's entries of one type, most recent date first.
func (s *LedgerService) List(ctx context.Context, userID string, entryType models.EntryType) ([]models.LedgerEntry, error) {
	entries, err := s.entries.ListEntries(ctx, userID, entryType)
	if err != nil {
		return nil, persistence("list entries", err)
	}
	return entries, nil
}

func (s *LedgerService) getUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.GetUser(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, persistence("get user", err)
	}
	return user, nil
}

func (s *LedgerService) getEntry(ctx context.Context, entryID string) (*models.LedgerEntry, error) {
	entry, err := s.entries.GetEntry(ctx, entryID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, persistence("get entry", err)
	}
	return entry, nil
}

func (s *LedgerService) publish(ctx context.Context, action string, entry *models.LedgerEntry) {
	if s.publisher == nil {
		return
	}
	event := events.LedgerEvent{
		Action:     action,
		EntryID:    entry.ID,
		UserID:     entry.UserID,
		EntryType:  entry.Type,
		Amount:     entry.Amount,
		OccurredAt: time.Now(),
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"action", action, "entry_id", entry.ID, "error", err)
	}
}

// applyCreate mutates the aggregate totals the way entry creation does.
// Only income operations recompute TotalSavings; expense creation leaves
// it untouched.
func applyCreate(user *models.User, entryType models.EntryType, amount decimal.Decimal) {
	switch entryType {
	case models.EntryTypeExpense:
		user.TotalExpense = user.TotalExpense.Add(amount)
		user.TotalBalance = user.TotalBalance.Sub(amount)
	case models.EntryTypeIncome:
		user.TotalIncome = user.TotalIncome.Add(amount)
		user.TotalBalance = user.TotalBalance.Add(amount)
		user.TotalSavings = user.TotalBalance.Sub(user.TotalExpense)
	}
}

func maxZero(d decimal.Decimal) decimal.Decimal {
	return decimal.Max(decimal.Zero, d)
}
