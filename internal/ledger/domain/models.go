// Package domain contains the append-only wallet ledger model. The wallet
// balance is never stored; it is always the sum of the entries.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// EntryKind tags the origin of a ledger entry.
type EntryKind string

const (
	EntryKindTopup          EntryKind = "topup"
	EntryKindCharge         EntryKind = "charge"
	EntryKindMigrationTopup EntryKind = "migration_topup"
)

// Entry is one immutable signed transaction in minor units. Charges carry a
// negative amount. Entries are never updated or deleted.
type Entry struct {
	ID          snowflake.ID `gorm:"primaryKey"`
	AmountMinor int64        `gorm:"not null"`
	Kind        EntryKind    `gorm:"type:text;not null;index"`
	Description string       `gorm:"type:text"`
	ActorID     int64        `gorm:"not null;index"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Entry) TableName() string { return "wallet_ledger" }

type RecordRequest struct {
	AmountMinor int64
	Kind        EntryKind
	Description string
	ActorID     int64
}

type Service interface {
	// Record appends one entry in its own transaction.
	Record(ctx context.Context, req RecordRequest) (Entry, error)
	// RecordTx appends one entry inside a caller-owned transaction so a
	// charge and its subscription write commit or roll back together.
	RecordTx(ctx context.Context, tx *gorm.DB, req RecordRequest) (Entry, error)
	Balance(ctx context.Context) (int64, error)
	BalanceTx(ctx context.Context, tx *gorm.DB) (int64, error)
}

var (
	ErrInsufficientFunds = errors.New("insufficient_funds")
	ErrInvalidAmount     = errors.New("invalid_amount")
	ErrInvalidKind       = errors.New("invalid_entry_kind")
)
