// Package domain contains the append-only audit trail. Events are write-only
// operator history; business logic never reads them back.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Actions recorded by the workflow engine and background jobs.
const (
	ActionUserAdd      = "user_add"
	ActionUserEditDate = "user_edit_date"
	ActionUserDelete   = "user_delete"
	ActionTariffUpsert = "tariff_upsert"
	ActionWalletTopup  = "wallet_topup"
	ActionLegacyImport = "legacy_import"
	ActionAdminClaimed = "admin_claimed"
)

// Event is one immutable audit record.
type Event struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	Action    string       `gorm:"type:text;not null;index"`
	Phone     *string      `gorm:"type:text;index"`
	Detail    string       `gorm:"type:text"`
	ActorID   int64        `gorm:"not null;index"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Event) TableName() string { return "audit_log" }

type Service interface {
	// Log appends one event in its own transaction; failures are logged by
	// the implementation and surfaced to the caller.
	Log(ctx context.Context, action string, phone *string, detail string, actorID int64) error
	// LogTx appends inside a caller-owned transaction so the audit record
	// commits together with the mutation it describes.
	LogTx(ctx context.Context, tx *gorm.DB, action string, phone *string, detail string, actorID int64) error
}

var ErrInvalidAction = errors.New("invalid_action")
