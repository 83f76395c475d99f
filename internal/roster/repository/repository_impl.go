package repository

import (
	"context"
	"errors"

	"github.com/simroster/simroster/internal/roster/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, sub *domain.Subscription) error {
	return db.WithContext(ctx).Create(sub).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, sub *domain.Subscription) error {
	return db.WithContext(ctx).Save(sub).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, phone string) error {
	return db.WithContext(ctx).Delete(&domain.Subscription{}, "phone = ?", phone).Error
}

func (r *repo) FindByPhone(ctx context.Context, db *gorm.DB, phone string) (*domain.Subscription, error) {
	var sub domain.Subscription
	err := db.WithContext(ctx).First(&sub, "phone = ?", phone).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]domain.Subscription, error) {
	var subs []domain.Subscription
	if err := db.WithContext(ctx).Order("expires_at").Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}

func (r *repo) Count(ctx context.Context, db *gorm.DB) (int64, error) {
	var count int64
	if err := db.WithContext(ctx).Model(&domain.Subscription{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
