package repository

import (
	"context"

	"github.com/danuartha/kabarkita/internal/model"
	"gorm.io/gorm"
)

type ActivityRepository interface {
	Create(ctx context.Context, activity *model.Activity) error
	Recent(ctx context.Context, limit int) ([]*model.Activity, error)
}

type activityRepository struct {
	db *gorm.DB
}

func NewActivityRepository(db *gorm.DB) ActivityRepository {
	return &activityRepository{db: db}
}

func (r *activityRepository) Create(ctx context.Context, activity *model.Activity) error {
	return r.db.WithContext(ctx).Create(activity).Error
}

func (r *activityRepository) Recent(ctx context.Context, limit int) ([]*model.Activity, error) {
	var activities []*model.Activity
	err := r.db.WithContext(ctx).
		Preload("User").
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&activities).Error
	return activities, err
}
