// Package domain contains the durable per-actor workflow session: the
// current state of a multi-step form and the values collected so far.
package domain

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// State is one step of an interactive flow. An actor with no stored session
// is idle.
type State string

const (
	StateAddName           State = "add_name"
	StateAddPhone          State = "add_phone"
	StateAddTariffSelect   State = "add_tariff_select"
	StateTariffNewName     State = "tariff_new_name"
	StateTariffNewCost     State = "tariff_new_cost"
	StateTariffNewDuration State = "tariff_new_duration"
	// StateConnectionDate is shared by the add and edit flows; Session.Mode
	// disambiguates which commit runs at the end.
	StateConnectionDate   State = "connection_date"
	StateEditSelectUser   State = "edit_select_user"
	StateDeleteSelectUser State = "delete_select_user"
	StateWalletMenu       State = "wallet_menu"
	StateWalletAmount     State = "wallet_amount"
)

// Mode discriminates the flows that share StateConnectionDate.
type Mode string

const (
	ModeAdd  Mode = "add"
	ModeEdit Mode = "edit"
)

// Session is the durable state of one in-progress flow, keyed by actor. It
// is created on the first step, mutated only by its owning actor, and
// destroyed on completion, cancellation, or a failed commit.
type Session struct {
	ActorID   int64             `gorm:"primaryKey"`
	State     State             `gorm:"type:text;not null"`
	Mode      Mode              `gorm:"type:text"`
	Data      datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Session) TableName() string { return "workflow_sessions" }

func NewSession(actorID int64, state State, mode Mode) *Session {
	now := time.Now().UTC()
	return &Session{
		ActorID:   actorID,
		State:     state,
		Mode:      mode,
		Data:      datatypes.JSONMap{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Accumulator keys.
const (
	KeyName            = "name"
	KeyPhone           = "phone"
	KeyTariffName      = "tariff_name"
	KeyTariffCostMinor = "tariff_cost_minor"
	KeyTariffDuration  = "tariff_duration_days"
	KeyNewTariffName   = "new_tariff_name"
	KeyNewTariffCost   = "new_tariff_cost_minor"
)

func (s *Session) SetString(key, value string) {
	if s.Data == nil {
		s.Data = datatypes.JSONMap{}
	}
	s.Data[key] = value
}

func (s *Session) GetString(key string) string {
	v, _ := s.Data[key].(string)
	return v
}

func (s *Session) SetInt(key string, value int64) {
	if s.Data == nil {
		s.Data = datatypes.JSONMap{}
	}
	s.Data[key] = value
}

// GetInt tolerates the numeric widening a JSON round-trip applies to the
// accumulator.
func (s *Session) GetInt(key string) int64 {
	switch v := s.Data[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	case json.Number:
		n, _ := v.Int64()
		return n
	default:
		return 0
	}
}

// Store persists sessions by actor so an in-progress flow survives process
// restarts.
type Store interface {
	Get(ctx context.Context, db *gorm.DB, actorID int64) (*Session, error)
	Save(ctx context.Context, db *gorm.DB, session *Session) error
	Delete(ctx context.Context, db *gorm.DB, actorID int64) error
}
