// Package domain contains the tariff catalog model. Tariffs are upserted by
// name; subscriptions keep their own charged snapshot, so editing a tariff
// never rewrites history.
package domain

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

const (
	MinCostMinor    int64 = 1
	MaxCostMinor    int64 = 10_000_000
	MinDurationDays       = 1
	MaxDurationDays       = 3650
)

// Tariff is a named plan: cost in minor units and validity in whole days.
type Tariff struct {
	Name         string    `gorm:"primaryKey"`
	CostMinor    int64     `gorm:"not null"`
	DurationDays int       `gorm:"not null;default:30"`
	CreatedAt    time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Tariff) TableName() string { return "tariffs" }

type Service interface {
	Upsert(ctx context.Context, name string, costMinor int64, durationDays int) (Tariff, error)
	UpsertTx(ctx context.Context, tx *gorm.DB, name string, costMinor int64, durationDays int) (Tariff, error)
	Get(ctx context.Context, name string) (Tariff, error)
	// List returns all tariffs ordered by name.
	List(ctx context.Context) ([]Tariff, error)
}

var (
	ErrInvalidName     = errors.New("invalid_tariff_name")
	ErrInvalidCost     = errors.New("invalid_tariff_cost")
	ErrInvalidDuration = errors.New("invalid_tariff_duration")
	ErrTariffNotFound  = errors.New("tariff_not_found")
)
