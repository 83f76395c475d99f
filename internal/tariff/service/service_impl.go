package service

import (
	"context"
	"errors"
	"strings"
	"time"

	tariffdomain "github.com/simroster/simroster/internal/tariff/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Params struct {
	fx.In

	DB  *gorm.DB
	Log *zap.Logger
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewService(p Params) tariffdomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("tariff.service"),
	}
}

func (s *Service) Upsert(ctx context.Context, name string, costMinor int64, durationDays int) (tariffdomain.Tariff, error) {
	return s.UpsertTx(ctx, s.db, name, costMinor, durationDays)
}

func (s *Service) UpsertTx(ctx context.Context, tx *gorm.DB, name string, costMinor int64, durationDays int) (tariffdomain.Tariff, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return tariffdomain.Tariff{}, tariffdomain.ErrInvalidName
	}
	if costMinor < tariffdomain.MinCostMinor || costMinor > tariffdomain.MaxCostMinor {
		return tariffdomain.Tariff{}, tariffdomain.ErrInvalidCost
	}
	if durationDays < tariffdomain.MinDurationDays || durationDays > tariffdomain.MaxDurationDays {
		return tariffdomain.Tariff{}, tariffdomain.ErrInvalidDuration
	}

	tariff := tariffdomain.Tariff{
		Name:         name,
		CostMinor:    costMinor,
		DurationDays: durationDays,
		CreatedAt:    time.Now().UTC(),
	}
	err := tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"cost_minor", "duration_days"}),
	}).Create(&tariff).Error
	if err != nil {
		return tariffdomain.Tariff{}, err
	}
	return tariff, nil
}

func (s *Service) Get(ctx context.Context, name string) (tariffdomain.Tariff, error) {
	var tariff tariffdomain.Tariff
	err := s.db.WithContext(ctx).First(&tariff, "name = ?", strings.TrimSpace(name)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return tariffdomain.Tariff{}, tariffdomain.ErrTariffNotFound
	}
	if err != nil {
		return tariffdomain.Tariff{}, err
	}
	return tariff, nil
}

func (s *Service) List(ctx context.Context) ([]tariffdomain.Tariff, error) {
	var tariffs []tariffdomain.Tariff
	if err := s.db.WithContext(ctx).Order("name").Find(&tariffs).Error; err != nil {
		return nil, err
	}
	return tariffs, nil
}
