package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntryType distinguishes the two ledger entry variants.
type EntryType string

const (
	EntryTypeIncome  EntryType = "income"
	EntryTypeExpense EntryType = "expense"
)

// RecurrenceInterval is the frequency of a recurring ledger entry.
type RecurrenceInterval string

const (
	IntervalDaily   RecurrenceInterval = "daily"
	IntervalWeekly  RecurrenceInterval = "weekly"
	IntervalMonthly RecurrenceInterval = "monthly"
)

const (
	// DefaultCategory is assigned when a category is not provided.
	DefaultCategory = "Other"

	// MaxDescriptionLength bounds the free-text description field.
	MaxDescriptionLength = 500
)

// LedgerEntry is a single dated income or expense record owned by a user.
// A recurring entry doubles as a template: the scheduler materializes new
// entries from it whenever NextOccurrenceDate falls due.
type LedgerEntry struct {
	ID                 string             `json:"id" db:"id"`
	UserID             string             `json:"user_id" db:"user_id"`
	Type               EntryType          `json:"type" db:"entry_type"`
	Title              string             `json:"title" db:"title"`
	Amount             decimal.Decimal    `json:"amount" db:"amount"`
	Category           string             `json:"category" db:"category"`
	Description        string             `json:"description,omitempty" db:"description"`
	Date               time.Time          `json:"date" db:"date"`
	IsRecurring        bool               `json:"isRecurring" db:"is_recurring"`
	RecurrenceInterval RecurrenceInterval `json:"recurrenceInterval,omitempty" db:"recurrence_interval"`
	NextOccurrenceDate *time.Time         `json:"nextOccurrenceDate,omitempty" db:"next_occurrence_date"`
	CreatedAt          time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at" db:"updated_at"`
}
