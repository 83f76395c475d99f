package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	ledgerdomain "github.com/simroster/simroster/internal/ledger/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
}

func NewService(p Params) ledgerdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("ledger.service"),
		genID: p.GenID,
	}
}

func (s *Service) Record(ctx context.Context, req ledgerdomain.RecordRequest) (ledgerdomain.Entry, error) {
	var entry ledgerdomain.Entry
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		entry, err = s.RecordTx(ctx, tx, req)
		return err
	})
	return entry, err
}

func (s *Service) RecordTx(ctx context.Context, tx *gorm.DB, req ledgerdomain.RecordRequest) (ledgerdomain.Entry, error) {
	if err := validate(req); err != nil {
		return ledgerdomain.Entry{}, err
	}

	entry := ledgerdomain.Entry{
		ID:          s.genID.Generate(),
		AmountMinor: req.AmountMinor,
		Kind:        req.Kind,
		Description: req.Description,
		ActorID:     req.ActorID,
		CreatedAt:   time.Now().UTC(),
	}

	// Guarded insert: the balance precondition and the append execute as one
	// statement, so two concurrent charges cannot both pass the check.
	result := tx.WithContext(ctx).Exec(
		`INSERT INTO wallet_ledger (id, amount_minor, kind, description, actor_id, created_at)
		SELECT ?, ?, ?, ?, ?, ?
		WHERE (SELECT COALESCE(SUM(amount_minor), 0) FROM wallet_ledger) + ? >= 0`,
		entry.ID,
		entry.AmountMinor,
		string(entry.Kind),
		entry.Description,
		entry.ActorID,
		entry.CreatedAt,
		entry.AmountMinor,
	)
	if result.Error != nil {
		return ledgerdomain.Entry{}, result.Error
	}
	if result.RowsAffected == 0 {
		return ledgerdomain.Entry{}, ledgerdomain.ErrInsufficientFunds
	}
	return entry, nil
}

func (s *Service) Balance(ctx context.Context) (int64, error) {
	return s.BalanceTx(ctx, s.db)
}

func (s *Service) BalanceTx(ctx context.Context, tx *gorm.DB) (int64, error) {
	var balance int64
	err := tx.WithContext(ctx).
		Raw(`SELECT COALESCE(SUM(amount_minor), 0) FROM wallet_ledger`).
		Scan(&balance).Error
	if err != nil {
		return 0, err
	}
	return balance, nil
}

func validate(req ledgerdomain.RecordRequest) error {
	switch req.Kind {
	case ledgerdomain.EntryKindTopup, ledgerdomain.EntryKindMigrationTopup:
		if req.AmountMinor <= 0 {
			return ledgerdomain.ErrInvalidAmount
		}
	case ledgerdomain.EntryKindCharge:
		if req.AmountMinor >= 0 {
			return ledgerdomain.ErrInvalidAmount
		}
	default:
		return ledgerdomain.ErrInvalidKind
	}
	return nil
}
