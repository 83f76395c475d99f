package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, sub *Subscription) error
	Update(ctx context.Context, db *gorm.DB, sub *Subscription) error
	Delete(ctx context.Context, db *gorm.DB, phone string) error
	FindByPhone(ctx context.Context, db *gorm.DB, phone string) (*Subscription, error)
	List(ctx context.Context, db *gorm.DB) ([]Subscription, error)
	Count(ctx context.Context, db *gorm.DB) (int64, error)
}
