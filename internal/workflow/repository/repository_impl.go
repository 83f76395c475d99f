package repository

import (
	"context"
	"errors"
	"time"

	"github.com/simroster/simroster/internal/workflow/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type store struct{}

func Provide() domain.Store {
	return &store{}
}

func (s *store) Get(ctx context.Context, db *gorm.DB, actorID int64) (*domain.Session, error) {
	var session domain.Session
	err := db.WithContext(ctx).First(&session, "actor_id = ?", actorID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *store) Save(ctx context.Context, db *gorm.DB, session *domain.Session) error {
	session.UpdatedAt = time.Now().UTC()
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "actor_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"state", "mode", "data", "updated_at"}),
	}).Create(session).Error
}

func (s *store) Delete(ctx context.Context, db *gorm.DB, actorID int64) error {
	return db.WithContext(ctx).Delete(&domain.Session{}, "actor_id = ?", actorID).Error
}
