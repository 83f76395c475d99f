package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	auditdomain "github.com/simroster/simroster/internal/audit/domain"
	ledgerdomain "github.com/simroster/simroster/internal/ledger/domain"
	rosterdomain "github.com/simroster/simroster/internal/roster/domain"
	"github.com/simroster/simroster/pkg/db"
	"github.com/simroster/simroster/pkg/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Repo      rosterdomain.Repository
	LedgerSvc ledgerdomain.Service
	AuditSvc  auditdomain.Service
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	repo      rosterdomain.Repository
	ledgerSvc ledgerdomain.Service
	auditSvc  auditdomain.Service
}

func NewService(p Params) rosterdomain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("roster.service"),
		repo:      p.Repo,
		ledgerSvc: p.LedgerSvc,
		auditSvc:  p.AuditSvc,
	}
}

func (s *Service) Create(ctx context.Context, req rosterdomain.CreateRequest) (rosterdomain.Subscription, error) {
	req.Phone = strings.TrimSpace(req.Phone)
	req.Name = strings.TrimSpace(req.Name)
	if req.Phone == "" || req.Name == "" || req.ConnectedAt.IsZero() || req.TariffDurationDays <= 0 {
		return rosterdomain.Subscription{}, rosterdomain.ErrInvalidSubscription
	}

	now := time.Now().UTC()
	sub := rosterdomain.Subscription{
		Phone:              req.Phone,
		Name:               req.Name,
		ConnectedAt:        req.ConnectedAt,
		ExpiresAt:          rosterdomain.ExpiryFor(req.ConnectedAt, req.TariffDurationDays),
		TariffName:         req.TariffName,
		TariffCostMinor:    req.TariffCostMinor,
		TariffDurationDays: req.TariffDurationDays,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.FindByPhone(ctx, tx, req.Phone)
		if err != nil {
			return err
		}
		if existing != nil {
			return rosterdomain.ErrDuplicatePhone
		}

		if req.TariffCostMinor > 0 {
			if _, err := s.ledgerSvc.RecordTx(ctx, tx, ledgerdomain.RecordRequest{
				AmountMinor: -req.TariffCostMinor,
				Kind:        ledgerdomain.EntryKindCharge,
				Description: "tariff charge " + req.Phone,
				ActorID:     req.ActorID,
			}); err != nil {
				return err
			}
		}

		if err := s.repo.Insert(ctx, tx, &sub); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return rosterdomain.ErrDuplicatePhone
			}
			return err
		}

		tariffName := "-"
		if req.TariffName != nil {
			tariffName = *req.TariffName
		}
		detail := fmt.Sprintf("%s; %s; %s; %d дн.", req.Name, tariffName, money.FormatMinor(req.TariffCostMinor), req.TariffDurationDays)
		return s.auditSvc.LogTx(ctx, tx, auditdomain.ActionUserAdd, &sub.Phone, detail, req.ActorID)
	})
	if err != nil {
		return rosterdomain.Subscription{}, err
	}
	return sub, nil
}

func (s *Service) UpdateConnectionDate(ctx context.Context, phone string, connectedAt time.Time, actorID int64) (rosterdomain.Subscription, error) {
	var updated rosterdomain.Subscription
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sub, err := s.repo.FindByPhone(ctx, tx, phone)
		if err != nil {
			return err
		}
		if sub == nil {
			return rosterdomain.ErrSubscriptionNotFound
		}

		sub.ConnectedAt = connectedAt
		sub.ExpiresAt = rosterdomain.ExpiryFor(connectedAt, sub.TariffDurationDays)
		sub.UpdatedAt = time.Now().UTC()
		if err := s.repo.Update(ctx, tx, sub); err != nil {
			return err
		}
		updated = *sub

		detail := "new connection=" + connectedAt.Format("02.01.2006 15:04")
		return s.auditSvc.LogTx(ctx, tx, auditdomain.ActionUserEditDate, &sub.Phone, detail, actorID)
	})
	if err != nil {
		return rosterdomain.Subscription{}, err
	}
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, phone string, actorID int64) (rosterdomain.Subscription, error) {
	var deleted rosterdomain.Subscription
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sub, err := s.repo.FindByPhone(ctx, tx, phone)
		if err != nil {
			return err
		}
		if sub == nil {
			return rosterdomain.ErrSubscriptionNotFound
		}

		if err := s.repo.Delete(ctx, tx, phone); err != nil {
			return err
		}
		deleted = *sub

		return s.auditSvc.LogTx(ctx, tx, auditdomain.ActionUserDelete, &sub.Phone, sub.Name, actorID)
	})
	if err != nil {
		return rosterdomain.Subscription{}, err
	}
	return deleted, nil
}

func (s *Service) Get(ctx context.Context, phone string) (rosterdomain.Subscription, error) {
	sub, err := s.repo.FindByPhone(ctx, s.db, phone)
	if err != nil {
		return rosterdomain.Subscription{}, err
	}
	if sub == nil {
		return rosterdomain.Subscription{}, rosterdomain.ErrSubscriptionNotFound
	}
	return *sub, nil
}

func (s *Service) List(ctx context.Context) ([]rosterdomain.Subscription, error) {
	return s.repo.List(ctx, s.db)
}

func (s *Service) Count(ctx context.Context) (int64, error) {
	return s.repo.Count(ctx, s.db)
}
