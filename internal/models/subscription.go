package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SubscriptionPlan is static reference data a user can subscribe to.
type SubscriptionPlan struct {
	ID           string          `json:"id" db:"id"`
	Name         string          `json:"name" db:"name"`
	Price        decimal.Decimal `json:"price" db:"price"`
	DurationDays int             `json:"durationDays" db:"duration_days"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}
