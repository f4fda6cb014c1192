// Package events defines the ledger event stream published after successful
// mutations. Publishing is best-effort: a failed publish is logged by the
// caller and never fails the originating operation.
package events

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/budgetwise/backend/internal/models"
)

type Publisher interface {
	Publish(ctx context.Context, event any) error
	Close() error
}

const (
	ActionCreated      = "created"
	ActionUpdated      = "updated"
	ActionDeleted      = "deleted"
	ActionMaterialized = "materialized"
)

// LedgerEvent describes a completed mutation of a ledger entry.
type LedgerEvent struct {
	Action     string           `json:"action"`
	EntryID    string           `json:"entry_id"`
	UserID     string           `json:"user_id"`
	EntryType  models.EntryType `json:"entry_type"`
	Amount     decimal.Decimal  `json:"amount"`
	OccurredAt time.Time        `json:"occurred_at"`
}
