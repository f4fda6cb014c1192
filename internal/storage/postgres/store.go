// Package postgres implements the storage interfaces over PostgreSQL.
// Entry writes and the owning user's aggregate totals are committed in a
// single transaction so a crash can never leave the totals inconsistent
// with the ledger.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/budgetwise/backend/internal/models"
	"github.com/budgetwise/backend/internal/storage"
)

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const uniqueViolation = "23505"

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, password, avatar, role, banned,
			total_income, total_expense, total_balance, total_savings, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		user.ID, user.Name, user.Email, user.Password, user.Avatar, user.Role, user.Banned,
		user.TotalIncome, user.TotalExpense, user.TotalBalance, user.TotalSavings,
		user.CreatedAt, user.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return storage.ErrDuplicate
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

const userColumns = `id, name, email, password, COALESCE(avatar, ''), role, banned,
	total_income, total_expense, total_balance, total_savings, subscription_plan_id,
	created_at, updated_at`

func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	var planID sql.NullString
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Password, &u.Avatar, &u.Role, &u.Banned,
		&u.TotalIncome, &u.TotalExpense, &u.TotalBalance, &u.TotalSavings, &planID,
		&u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	if planID.Valid {
		u.SubscriptionPlanID = &planID.String
	}
	return &u, nil
}

func (s *Store) UpdateUser(ctx context.Context, user *models.User) error {
	var planID any
	if user.SubscriptionPlanID != nil {
		planID = *user.SubscriptionPlanID
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET name = $1, email = $2, password = $3, avatar = $4, role = $5, banned = $6,
			subscription_plan_id = $7, updated_at = $8
		WHERE id = $9`,
		user.Name, user.Email, user.Password, user.Avatar, user.Role, user.Banned,
		planID, time.Now(), user.ID)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return requireRow(result)
}

const entryColumns = `id, user_id, entry_type, title, amount, category, COALESCE(description, ''),
	date, is_recurring, recurrence_interval, next_occurrence_date, created_at, updated_at`

func (s *Store) GetEntry(ctx context.Context, id string) (*models.LedgerEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries WHERE id = $1`, id)
	return scanEntry(row)
}

func (s *Store) ListEntries(ctx context.Context, userID string, entryType models.EntryType) ([]models.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries
		 WHERE user_id = $1 AND entry_type = $2
		 ORDER BY date DESC, created_at DESC`, userID, entryType)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()
	return collectEntries(rows)
}

func (s *Store) ListDueRecurring(ctx context.Context, now time.Time) ([]models.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries
		 WHERE is_recurring = TRUE AND next_occurrence_date IS NOT NULL AND next_occurrence_date <= $1
		 ORDER BY next_occurrence_date ASC`, now)
	if err != nil {
		return nil, fmt.Errorf("list due recurring entries: %w", err)
	}
	defer rows.Close()
	return collectEntries(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*models.LedgerEntry, error) {
	var e models.LedgerEntry
	var interval sql.NullString
	var next sql.NullTime
	err := row.Scan(&e.ID, &e.UserID, &e.Type, &e.Title, &e.Amount, &e.Category, &e.Description,
		&e.Date, &e.IsRecurring, &interval, &next, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan ledger entry: %w", err)
	}
	if interval.Valid {
		e.RecurrenceInterval = models.RecurrenceInterval(interval.String)
	}
	if next.Valid {
		t := next.Time
		e.NextOccurrenceDate = &t
	}
	return &e, nil
}

func collectEntries(rows *sql.Rows) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

func (s *Store) CreateEntry(ctx context.Context, entry *models.LedgerEntry, user *models.User) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO ledger_entries (id, user_id, entry_type, title, amount, category, description,
				date, is_recurring, recurrence_interval, next_occurrence_date, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			entry.ID, entry.UserID, entry.Type, entry.Title, entry.Amount, entry.Category,
			entry.Description, entry.Date, entry.IsRecurring,
			nullableInterval(entry), entry.NextOccurrenceDate, entry.CreatedAt, entry.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert ledger entry: %w", err)
		}
		return updateAggregateTx(ctx, tx, user)
	})
}

func (s *Store) UpdateEntry(ctx context.Context, entry *models.LedgerEntry, user *models.User) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE ledger_entries
			SET title = $1, amount = $2, category = $3, description = $4, date = $5,
				is_recurring = $6, recurrence_interval = $7, next_occurrence_date = $8, updated_at = $9
			WHERE id = $10`,
			entry.Title, entry.Amount, entry.Category, entry.Description, entry.Date,
			entry.IsRecurring, nullableInterval(entry), entry.NextOccurrenceDate,
			entry.UpdatedAt, entry.ID)
		if err != nil {
			return fmt.Errorf("update ledger entry: %w", err)
		}
		if err := requireRow(result); err != nil {
			return err
		}
		return updateAggregateTx(ctx, tx, user)
	})
}

func (s *Store) DeleteEntry(ctx context.Context, entryID string, user *models.User) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`DELETE FROM ledger_entries WHERE id = $1`, entryID)
		if err != nil {
			return fmt.Errorf("delete ledger entry: %w", err)
		}
		if err := requireRow(result); err != nil {
			return err
		}
		return updateAggregateTx(ctx, tx, user)
	})
}

func (s *Store) SaveEntry(ctx context.Context, entry *models.LedgerEntry) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE ledger_entries
		SET next_occurrence_date = $1, updated_at = $2
		WHERE id = $3`,
		entry.NextOccurrenceDate, entry.UpdatedAt, entry.ID)
	if err != nil {
		return fmt.Errorf("save ledger entry: %w", err)
	}
	return requireRow(result)
}

func (s *Store) ListPlans(ctx context.Context) ([]models.SubscriptionPlan, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, price, duration_days, created_at FROM subscription_plans ORDER BY price ASC`)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()

	var plans []models.SubscriptionPlan
	for rows.Next() {
		var p models.SubscriptionPlan
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.DurationDays, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

func (s *Store) GetPlan(ctx context.Context, id string) (*models.SubscriptionPlan, error) {
	var p models.SubscriptionPlan
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, price, duration_days, created_at FROM subscription_plans WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.Price, &p.DurationDays, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get plan: %w", err)
	}
	return &p, nil
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// updateAggregateTx writes the user's four running totals inside the same
// transaction as the entry mutation.
func updateAggregateTx(ctx context.Context, tx *sql.Tx, user *models.User) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE users
		SET total_income = $1, total_expense = $2, total_balance = $3, total_savings = $4, updated_at = $5
		WHERE id = $6`,
		user.TotalIncome, user.TotalExpense, user.TotalBalance, user.TotalSavings,
		time.Now(), user.ID)
	if err != nil {
		return fmt.Errorf("update user aggregate: %w", err)
	}
	return requireRow(result)
}

func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func nullableInterval(entry *models.LedgerEntry) any {
	if entry.RecurrenceInterval == "" {
		return nil
	}
	return string(entry.RecurrenceInterval)
}

// Compile-time interface checks.
var (
	_ storage.UserStore   = (*Store)(nil)
	_ storage.LedgerStore = (*Store)(nil)
	_ storage.PlanStore   = (*Store)(nil)
)
