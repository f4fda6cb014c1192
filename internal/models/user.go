package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User carries the account identity plus the running aggregate totals derived
// from the user's ledger entries. The totals are mutated only by the ledger
// service and the recurrence scheduler, never directly from API input.
//
// Aggregate invariants between completed operations:
//
//	TotalBalance == sum(income amounts) - sum(expense amounts)
//	TotalSavings == TotalBalance - TotalExpense
type User struct {
	ID                 string          `json:"id" db:"id"`
	Name               string          `json:"name" db:"name"`
	Email              string          `json:"email" db:"email"`
	Password           string          `json:"-" db:"password"`
	Avatar             string          `json:"avatar,omitempty" db:"avatar"`
	Role               string          `json:"role" db:"role"`
	Banned             bool            `json:"banned" db:"banned"`
	TotalIncome        decimal.Decimal `json:"totalIncome" db:"total_income"`
	TotalExpense       decimal.Decimal `json:"totalExpense" db:"total_expense"`
	TotalBalance       decimal.Decimal `json:"totalBalance" db:"total_balance"`
	TotalSavings       decimal.Decimal `json:"totalSavings" db:"total_savings"`
	SubscriptionPlanID *string         `json:"subscriptionPlan,omitempty" db:"subscription_plan_id"`
	CreatedAt          time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at" db:"updated_at"`
}

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)
