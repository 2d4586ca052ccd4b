package repository

import (
	"context"
	"time"

	"github.com/danuartha/kabarkita/internal/model"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PostFilter narrows post listings. Zero values mean "no filter".
type PostFilter struct {
	PublishedOnly bool
	CategorySlug  string
	AuthorID      *uuid.UUID
	Offset        int
	Limit         int
}

type PostRepository interface {
	Create(ctx context.Context, post *model.Post, categoryIDs []uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Post, error)
	FindAll(ctx context.Context, filter PostFilter) ([]*model.Post, int64, error)
	Update(ctx context.Context, post *model.Post, categoryIDs []uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
	Count(ctx context.Context, publishedOnly bool) (int64, error)
	CountCreatedSince(ctx context.Context, since time.Time) (int64, error)
	SumLikesPublished(ctx context.Context) (int64, error)
	TopLikedPublished(ctx context.Context, limit int) ([]*model.Post, error)
}

type postRepository struct {
	db *gorm.DB
}

func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(ctx context.Context, post *model.Post, categoryIDs []uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Categories").Create(post).Error; err != nil {
			return err
		}
		if len(categoryIDs) > 0 {
			cats := categoryRefs(categoryIDs)
			if err := tx.Model(post).Association("Categories").Append(cats); err != nil {
				return err
			}
		}
		return refreshCategoryPostCounts(tx, categoryIDs)
	})
}

func (r *postRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Post, error) {
	var post model.Post
	if err := r.db.WithContext(ctx).
		Preload("Author").
		Preload("Categories").
		Where("id = ?", id).
		First(&post).Error; err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) FindAll(ctx context.Context, filter PostFilter) ([]*model.Post, int64, error) {
	var posts []*model.Post
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Post{})
	if filter.PublishedOnly {
		query = query.Where("published = ?", true)
	}
	if filter.AuthorID != nil {
		query = query.Where("author_id = ?", *filter.AuthorID)
	}
	if filter.CategorySlug != "" {
		query = query.
			Joins("JOIN post_categories pc ON pc.post_id = posts.id").
			Joins("JOIN categories c ON c.id = pc.category_id").
			Where("c.slug = ?", filter.CategorySlug)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Preload("Author").Preload("Categories").Order("posts.created_at DESC")
	if filter.Limit > 0 {
		query = query.Offset(filter.Offset).Limit(filter.Limit)
	}

	if err := query.Find(&posts).Error; err != nil {
		return nil, 0, err
	}

	return posts, total, nil
}

func (r *postRepository) Update(ctx context.Context, post *model.Post, categoryIDs []uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Categories", "Author").Save(post).Error; err != nil {
			return err
		}

		if categoryIDs == nil {
			return nil
		}

		previous, err := joinedCategoryIDs(tx, post.ID)
		if err != nil {
			return err
		}

		if err := tx.Model(post).Association("Categories").Replace(categoryRefs(categoryIDs)); err != nil {
			return err
		}

		return refreshCategoryPostCounts(tx, append(previous, categoryIDs...))
	})
}

// Delete removes the post together with its comments and every ledger row
// pointing at the post or those comments, then fixes category counts. No
// orphan comments may survive the parent post.
func (r *postRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var commentIDs []uuid.UUID
		if err := tx.Model(&model.Comment{}).
			Where("post_id = ?", id).
			Pluck("id", &commentIDs).Error; err != nil {
			return err
		}

		if len(commentIDs) > 0 {
			if err := tx.
				Where("target_type = ? AND target_id IN ?", model.TargetComment, commentIDs).
				Delete(&model.Like{}).Error; err != nil {
				return err
			}
			if err := tx.Where("post_id = ?", id).Delete(&model.Comment{}).Error; err != nil {
				return err
			}
		}

		if err := tx.
			Where("target_type = ? AND target_id = ?", model.TargetPost, id).
			Delete(&model.Like{}).Error; err != nil {
			return err
		}

		categoryIDs, err := joinedCategoryIDs(tx, id)
		if err != nil {
			return err
		}
		if err := tx.Model(&model.Post{ID: id}).Association("Categories").Clear(); err != nil {
			return err
		}

		if err := tx.Delete(&model.Post{}, "id = ?", id).Error; err != nil {
			return err
		}

		return refreshCategoryPostCounts(tx, categoryIDs)
	})
}

func (r *postRepository) Count(ctx context.Context, publishedOnly bool) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&model.Post{})
	if publishedOnly {
		query = query.Where("published = ?", true)
	}
	err := query.Count(&count).Error
	return count, err
}

func (r *postRepository) CountCreatedSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Post{}).
		Where("created_at >= ?", since).
		Count(&count).Error
	return count, err
}

func (r *postRepository) SumLikesPublished(ctx context.Context) (int64, error) {
	var sum *int64
	err := r.db.WithContext(ctx).
		Model(&model.Post{}).
		Where("published = ?", true).
		Select("SUM(like_count)").
		Scan(&sum).Error
	if err != nil || sum == nil {
		return 0, err
	}
	return *sum, nil
}

func (r *postRepository) TopLikedPublished(ctx context.Context, limit int) ([]*model.Post, error) {
	var posts []*model.Post
	err := r.db.WithContext(ctx).
		Preload("Author").
		Where("published = ?", true).
		Order("like_count DESC, created_at DESC").
		Limit(limit).
		Find(&posts).Error
	return posts, err
}

func categoryRefs(ids []uuid.UUID) []model.Category {
	cats := make([]model.Category, 0, len(ids))
	for _, id := range ids {
		cats = append(cats, model.Category{ID: id})
	}
	return cats
}

func joinedCategoryIDs(tx *gorm.DB, postID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := tx.Table("post_categories").
		Where("post_id = ?", postID).
		Pluck("category_id", &ids).Error
	return ids, err
}

// refreshCategoryPostCounts rewrites the denormalized post_count of the given
// categories from the join table, inside the caller's transaction.
func refreshCategoryPostCounts(tx *gorm.DB, categoryIDs []uuid.UUID) error {
	if len(categoryIDs) == 0 {
		return nil
	}
	return tx.Exec(
		`UPDATE categories
		 SET post_count = (SELECT COUNT(*) FROM post_categories WHERE post_categories.category_id = categories.id)
		 WHERE id IN ?`,
		categoryIDs,
	).Error
}
