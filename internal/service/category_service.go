package service

import (
	"context"
	"errors"
	"strings"

	"github.com/danuartha/kabarkita/internal/model"
	"github.com/danuartha/kabarkita/internal/repository"
	"github.com/danuartha/kabarkita/pkg/apperror"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CreateCategoryInput struct {
	Name        string  `json:"name" binding:"required,min=1,max=100"`
	Description *string `json:"description"`
	Color       string  `json:"color" binding:"omitempty,hexcolor"`
}

type UpdateCategoryInput struct {
	Name        *string `json:"name" binding:"omitempty,min=1,max=100"`
	Description *string `json:"description"`
	Color       *string `json:"color" binding:"omitempty,hexcolor"`
}

// CategoryService is admin-only for mutations; categories have no owner.
type CategoryService interface {
	Create(ctx context.Context, input CreateCategoryInput) (*model.Category, error)
	List(ctx context.Context, search string) ([]*model.Category, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateCategoryInput) (*model.Category, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type categoryService struct {
	repo repository.CategoryRepository
}

func NewCategoryService(repo repository.CategoryRepository) CategoryService {
	return &categoryService{repo: repo}
}

func (s *categoryService) Create(ctx context.Context, input CreateCategoryInput) (*model.Category, error) {
	category := &model.Category{
		Name:        strings.TrimSpace(input.Name),
		Slug:        slugify(input.Name),
		Description: input.Description,
	}
	if input.Color != "" {
		category.Color = input.Color
	}

	if err := s.repo.Create(ctx, category); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperror.Conflict("category name already exists")
		}
		return nil, err
	}
	return category, nil
}

func (s *categoryService) List(ctx context.Context, search string) ([]*model.Category, error) {
	return s.repo.FindAll(ctx, search)
}

func (s *categoryService) Update(ctx context.Context, id uuid.UUID, input UpdateCategoryInput) (*model.Category, error) {
	category, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("category not found")
		}
		return nil, err
	}

	if input.Name != nil {
		category.Name = strings.TrimSpace(*input.Name)
		category.Slug = slugify(*input.Name)
	}
	if input.Description != nil {
		category.Description = input.Description
	}
	if input.Color != nil {
		category.Color = *input.Color
	}

	if err := s.repo.Update(ctx, category); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperror.Conflict("category name already exists")
		}
		return nil, err
	}
	return category, nil
}

// Delete refuses to remove a category that posts still reference. This is a
// referential guard, not a cascade.
func (s *categoryService) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.NotFound("category not found")
		}
		return err
	}

	refs, err := s.repo.CountPosts(ctx, id)
	if err != nil {
		return err
	}
	if refs > 0 {
		return apperror.BadRequest("category is still referenced by posts")
	}

	return s.repo.Delete(ctx, id)
}

func slugify(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "-")
}
