// Package domain contains the subscription registry model: one roster entry
// per phone number with the tariff snapshot it was charged under.
package domain

import (
	"context"
	"errors"
	"time"
)

// Subscription binds a phone number to a connection date and the charged
// tariff snapshot. The expiry is always derived from the connection instant
// and the snapshot duration, never set independently.
type Subscription struct {
	Phone              string    `gorm:"primaryKey"`
	Name               string    `gorm:"type:text;not null"`
	ConnectedAt        time.Time `gorm:"not null"`
	ExpiresAt          time.Time `gorm:"not null;index"`
	TariffName         *string   `gorm:"type:text"`
	TariffCostMinor    int64     `gorm:"not null;default:0"`
	TariffDurationDays int       `gorm:"not null;default:30"`
	CreatedAt          time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt          time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Subscription) TableName() string { return "subscriptions" }

// ExpiryFor derives the expiry instant: the connection instant plus the
// charged duration in whole 24h days.
func ExpiryFor(connectedAt time.Time, durationDays int) time.Time {
	return connectedAt.Add(time.Duration(durationDays) * 24 * time.Hour)
}

type CreateRequest struct {
	Phone              string
	Name               string
	ConnectedAt        time.Time
	TariffName         *string
	TariffCostMinor    int64
	TariffDurationDays int
	ActorID            int64
}

type Service interface {
	// Create registers a subscription and debits its tariff cost in one
	// transaction; neither side is ever applied alone.
	Create(ctx context.Context, req CreateRequest) (Subscription, error)
	// UpdateConnectionDate moves the connection instant and recomputes the
	// expiry from the already-charged duration. It never re-charges.
	UpdateConnectionDate(ctx context.Context, phone string, connectedAt time.Time, actorID int64) (Subscription, error)
	// Delete removes the roster entry without reversing historical charges.
	Delete(ctx context.Context, phone string, actorID int64) (Subscription, error)
	Get(ctx context.Context, phone string) (Subscription, error)
	// List returns subscriptions ordered by expiry ascending, the order used
	// for both display and the notification scan.
	List(ctx context.Context) ([]Subscription, error)
	Count(ctx context.Context) (int64, error)
}

var (
	ErrDuplicatePhone       = errors.New("duplicate_phone")
	ErrSubscriptionNotFound = errors.New("subscription_not_found")
	ErrInvalidSubscription  = errors.New("invalid_subscription")
)
