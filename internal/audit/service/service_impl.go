package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/simroster/simroster/internal/audit/domain"
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

func NewService(p Params) auditdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
	}
}

func (s *Service) Log(ctx context.Context, action string, phone *string, detail string, actorID int64) error {
	return s.LogTx(ctx, s.db, action, phone, detail, actorID)
}

func (s *Service) LogTx(ctx context.Context, tx *gorm.DB, action string, phone *string, detail string, actorID int64) error {
	action = strings.TrimSpace(action)
	if action == "" {
		return auditdomain.ErrInvalidAction
	}

	event := auditdomain.Event{
		ID:        s.genID.Generate(),
		Action:    action,
		Phone:     phone,
		Detail:    detail,
		ActorID:   actorID,
		CreatedAt: time.Now().UTC(),
	}
	if err := tx.WithContext(ctx).Create(&event).Error; err != nil {
		s.log.Warn("failed to write audit event", zap.String("action", action), zap.Error(err))
		return err
	}
	return nil
}
