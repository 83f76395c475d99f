// Package settings is the persisted key-value store, including the
// single-assignment administrator claim.
package settings

import (
	"context"
	"errors"
	"strconv"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const adminIDKey = "admin_chat_id"

var ErrAdminAlreadyClaimed = errors.New("admin_already_claimed")

// Setting is one key-value row.
type Setting struct {
	Key   string `gorm:"primaryKey"`
	Value string `gorm:"type:text;not null"`
}

// TableName sets the database table name.
func (Setting) TableName() string { return "settings" }

type Service interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	// AdminID returns the claimed administrator, if any.
	AdminID(ctx context.Context) (int64, bool, error)
	// ClaimAdmin assigns the administrator role to actorID unless someone
	// else already holds it. The first claimant wins; a conflicting later
	// claim fails with ErrAdminAlreadyClaimed and never overwrites.
	ClaimAdmin(ctx context.Context, actorID int64) (adminID int64, claimed bool, err error)
}

var Module = fx.Module("settings.service",
	fx.Provide(NewService),
)

type service struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewService(db *gorm.DB, log *zap.Logger) Service {
	return &service{db: db, log: log.Named("settings.service")}
}

func (s *service) Get(ctx context.Context, key string) (string, bool, error) {
	var setting Setting
	err := s.db.WithContext(ctx).First(&setting, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return setting.Value, true, nil
}

func (s *service) Set(ctx context.Context, key, value string) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&Setting{Key: key, Value: value}).Error
}

func (s *service) AdminID(ctx context.Context) (int64, bool, error) {
	value, ok, err := s.Get(ctx, adminIDKey)
	if err != nil || !ok {
		return 0, false, err
	}
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

func (s *service) ClaimAdmin(ctx context.Context, actorID int64) (int64, bool, error) {
	var (
		adminID int64
		claimed bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Insert-if-absent and read-back in one transaction: concurrent
		// first claimants race on the primary key, not on a read check.
		result := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoNothing: true,
		}).Create(&Setting{Key: adminIDKey, Value: strconv.FormatInt(actorID, 10)})
		if result.Error != nil {
			return result.Error
		}
		claimed = result.RowsAffected > 0

		var setting Setting
		if err := tx.First(&setting, "key = ?", adminIDKey).Error; err != nil {
			return err
		}
		stored, err := strconv.ParseInt(setting.Value, 10, 64)
		if err != nil {
			return err
		}
		adminID = stored
		return nil
	})
	if err != nil {
		return 0, false, err
	}
	if adminID != actorID {
		return adminID, false, ErrAdminAlreadyClaimed
	}
	if claimed {
		s.log.Info("administrator claimed", zap.Int64("actor_id", actorID))
	}
	return adminID, claimed, nil
}
