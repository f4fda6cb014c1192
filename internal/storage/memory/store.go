// Package memory is an in-memory implementation of the storage interfaces.
// It is thread-safe and used by tests and local development runs.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/budgetwise/backend/internal/models"
	"github.com/budgetwise/backend/internal/storage"
)

type Store struct {
	mu      sync.Mutex
	users   map[string]models.User
	entries map[string]models.LedgerEntry
	plans   map[string]models.SubscriptionPlan
}

func NewStore() *Store {
	return &Store{
		users:   make(map[string]models.User),
		entries: make(map[string]models.LedgerEntry),
		plans:   make(map[string]models.SubscriptionPlan),
	}
}

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, user.Email) {
			return storage.ErrDuplicate
		}
	}
	s.users[user.ID] = *user
	return nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			user := u
			return &user, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *Store) UpdateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; !ok {
		return storage.ErrNotFound
	}
	s.users[user.ID] = *user
	return nil
}

func (s *Store) GetEntry(ctx context.Context, id string) (*models.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &e, nil
}

func (s *Store) ListEntries(ctx context.Context, userID string, entryType models.EntryType) ([]models.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []models.LedgerEntry
	for _, e := range s.entries {
		if e.UserID == userID && e.Type == entryType {
			result = append(result, e)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Date.After(result[j].Date)
	})
	return result, nil
}

func (s *Store) ListDueRecurring(ctx context.Context, now time.Time) ([]models.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []models.LedgerEntry
	for _, e := range s.entries {
		if e.IsRecurring && e.NextOccurrenceDate != nil && !e.NextOccurrenceDate.After(now) {
			result = append(result, e)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].NextOccurrenceDate.Before(*result[j].NextOccurrenceDate)
	})
	return result, nil
}

// CreateEntry stores the entry and the adjusted user totals under one lock,
// mirroring the transactional write of the SQL store.
func (s *Store) CreateEntry(ctx context.Context, entry *models.LedgerEntry, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; !ok {
		return storage.ErrNotFound
	}
	s.entries[entry.ID] = *entry
	s.users[user.ID] = *user
	return nil
}

func (s *Store) UpdateEntry(ctx context.Context, entry *models.LedgerEntry, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[entry.ID]; !ok {
		return storage.ErrNotFound
	}
	s.entries[entry.ID] = *entry
	s.users[user.ID] = *user
	return nil
}

func (s *Store) DeleteEntry(ctx context.Context, entryID string, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[entryID]; !ok {
		return storage.ErrNotFound
	}
	delete(s.entries, entryID)
	s.users[user.ID] = *user
	return nil
}

func (s *Store) SaveEntry(ctx context.Context, entry *models.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[entry.ID]; !ok {
		return storage.ErrNotFound
	}
	s.entries[entry.ID] = *entry
	return nil
}

func (s *Store) ListPlans(ctx context.Context) ([]models.SubscriptionPlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]models.SubscriptionPlan, 0, len(s.plans))
	for _, p := range s.plans {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Price.LessThan(result[j].Price)
	})
	return result, nil
}

func (s *Store) GetPlan(ctx context.Context, id string) (*models.SubscriptionPlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.plans[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &p, nil
}

// RemoveUser drops a user without touching their entries. Test helper for
// simulating orphaned records.
func (s *Store) RemoveUser(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
}

// SeedPlan inserts a subscription plan. Test helper.
func (s *Store) SeedPlan(plan models.SubscriptionPlan) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plans[plan.ID] = plan
}

// Compile-time interface checks.
var (
	_ storage.UserStore   = (*Store)(nil)
	_ storage.LedgerStore = (*Store)(nil)
	_ storage.PlanStore   = (*Store)(nil)
)
