package repository

import (
	"context"
	"errors"

	"github.com/danuartha/kabarkita/internal/model"
	"github.com/danuartha/kabarkita/pkg/apperror"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LikeRepository is the uniqueness-enforcing like ledger. Insert relies on
// the composite unique index; a duplicate insert surfaces as ErrConflict.
type LikeRepository interface {
	Exists(ctx context.Context, userID uuid.UUID, targetType string, targetID uuid.UUID) (bool, error)
	Insert(ctx context.Context, userID uuid.UUID, targetType string, targetID uuid.UUID) error
	Remove(ctx context.Context, userID uuid.UUID, targetType string, targetID uuid.UUID) error
	CountFor(ctx context.Context, targetType string, targetID uuid.UUID) (int64, error)
	// Toggle flips the relation and moves the target's denormalized
	// like_count by exactly one per ledger mutation, in the same transaction.
	Toggle(ctx context.Context, userID uuid.UUID, targetType string, targetID uuid.UUID) (bool, int64, error)
	DeleteForTargets(ctx context.Context, targetType string, targetIDs []uuid.UUID) error
}

type likeRepository struct {
	db *gorm.DB
}

func NewLikeRepository(db *gorm.DB) LikeRepository {
	return &likeRepository{db: db}
}

func (r *likeRepository) Exists(ctx context.Context, userID uuid.UUID, targetType string, targetID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Like{}).
		Where("user_id = ? AND target_type = ? AND target_id = ?", userID, targetType, targetID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *likeRepository) Insert(ctx context.Context, userID uuid.UUID, targetType string, targetID uuid.UUID) error {
	like := model.Like{
		UserID:     userID,
		TargetType: targetType,
		TargetID:   targetID,
	}
	err := r.db.WithContext(ctx).Create(&like).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperror.Conflict("already liked")
	}
	return err
}

func (r *likeRepository) Remove(ctx context.Context, userID uuid.UUID, targetType string, targetID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND target_type = ? AND target_id = ?", userID, targetType, targetID).
		Delete(&model.Like{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperror.NotFound("like relation not found")
	}
	return nil
}

func (r *likeRepository) CountFor(ctx context.Context, targetType string, targetID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Like{}).
		Where("target_type = ? AND target_id = ?", targetType, targetID).
		Count(&count).Error
	return count, err
}

func (r *likeRepository) Toggle(ctx context.Context, userID uuid.UUID, targetType string, targetID uuid.UUID) (bool, int64, error) {
	var liked bool
	var count int64

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		like := model.Like{
			UserID:     userID,
			TargetType: targetType,
			TargetID:   targetID,
		}

		// ON CONFLICT DO NOTHING keeps the unique index as the arbiter
		// without aborting the surrounding transaction on postgres.
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&like)
		if res.Error != nil {
			return res.Error
		}

		// The cached count is adjusted atomically in the database, one delta
		// per ledger row actually inserted or deleted. A COUNT-then-UPDATE
		// would read a per-statement snapshot and let two toggles by distinct
		// actors both write the same stale total under READ COMMITTED.
		if res.RowsAffected > 0 {
			liked = true
			if err := tx.Table(targetTable(targetType)).
				Where("id = ?", targetID).
				UpdateColumn("like_count", gorm.Expr("like_count + 1")).Error; err != nil {
				return err
			}
		} else {
			// A relation already exists, either from an earlier like or a
			// concurrent toggle that won the insert. Flip it off. If the row
			// vanished in the meantime the delete affects nothing and the
			// counter stays untouched.
			del := tx.
				Where("user_id = ? AND target_type = ? AND target_id = ?", userID, targetType, targetID).
				Delete(&model.Like{})
			if del.Error != nil {
				return del.Error
			}
			liked = false
			if del.RowsAffected > 0 {
				if err := tx.Table(targetTable(targetType)).
					Where("id = ?", targetID).
					UpdateColumn("like_count", gorm.Expr("like_count - 1")).Error; err != nil {
					return err
				}
			}
		}

		return tx.Table(targetTable(targetType)).
			Where("id = ?", targetID).
			Select("like_count").
			Scan(&count).Error
	})

	return liked, count, err
}

func (r *likeRepository) DeleteForTargets(ctx context.Context, targetType string, targetIDs []uuid.UUID) error {
	if len(targetIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Where("target_type = ? AND target_id IN ?", targetType, targetIDs).
		Delete(&model.Like{}).Error
}

func targetTable(targetType string) string {
	if targetType == model.TargetComment {
		return "comments"
	}
	return "posts"
}
