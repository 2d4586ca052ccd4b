package service

import (
	"context"
	"errors"
	"time"

	"github.com/danuartha/kabarkita/internal/model"
	"github.com/danuartha/kabarkita/internal/repository"
	"github.com/danuartha/kabarkita/pkg/apperror"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

type DashboardStats struct {
	TotalUsers       int64             `json:"total_users"`
	TotalPosts       int64             `json:"total_posts"`
	TotalComments    int64             `json:"total_comments"`
	TotalLikes       int64             `json:"total_likes"`
	NewUsers7d       int64             `json:"new_users_7d"`
	NewPosts7d       int64             `json:"new_posts_7d"`
	TopPosts         []PostResponse    `json:"top_posts"`
	RecentActivities []*model.Activity `json:"recent_activities"`
}

type UpdateUserInput struct {
	Name   *string `json:"name" binding:"omitempty,min=2,max=100"`
	Role   *string `json:"role" binding:"omitempty,oneof=member admin"`
	Active *bool   `json:"active"`
}

type PaginatedUsers struct {
	Data       []*model.User `json:"data"`
	Page       int           `json:"page"`
	Limit      int           `json:"limit"`
	TotalItems int64         `json:"total_items"`
}

// AdminService backs the admin surface: cross-entity dashboard statistics
// and user management. Routing enforces the admin role before any of this
// runs.
type AdminService interface {
	GetStats(ctx context.Context) (*DashboardStats, error)
	ListUsers(ctx context.Context, page, limit int) (*PaginatedUsers, error)
	UpdateUser(ctx context.Context, id uuid.UUID, input UpdateUserInput) (*model.User, error)
	DeleteUser(ctx context.Context, id uuid.UUID) error
	ListPosts(ctx context.Context, page, limit int) (*PaginatedPosts, error)
	ListActivities(ctx context.Context, limit int) ([]*model.Activity, error)
}

type adminService struct {
	userRepo     repository.UserRepository
	postRepo     repository.PostRepository
	commentRepo  repository.CommentRepository
	activityRepo repository.ActivityRepository
}

func NewAdminService(userRepo repository.UserRepository, postRepo repository.PostRepository, commentRepo repository.CommentRepository, activityRepo repository.ActivityRepository) AdminService {
	return &adminService{
		userRepo:     userRepo,
		postRepo:     postRepo,
		commentRepo:  commentRepo,
		activityRepo: activityRepo,
	}
}

// GetStats fans the independent aggregate reads out concurrently. The reads
// are not a consistent joint snapshot and callers must not assume one.
func (s *adminService) GetStats(ctx context.Context) (*DashboardStats, error) {
	stats := &DashboardStats{}
	weekAgo := time.Now().AddDate(0, 0, -7)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		stats.TotalUsers, err = s.userRepo.Count(ctx)
		return
	})
	g.Go(func() (err error) {
		stats.TotalPosts, err = s.postRepo.Count(ctx, false)
		return
	})
	g.Go(func() (err error) {
		stats.TotalComments, err = s.commentRepo.Count(ctx)
		return
	})
	g.Go(func() (err error) {
		stats.TotalLikes, err = s.postRepo.SumLikesPublished(ctx)
		return
	})
	g.Go(func() (err error) {
		stats.NewUsers7d, err = s.userRepo.CountCreatedSince(ctx, weekAgo)
		return
	})
	g.Go(func() (err error) {
		stats.NewPosts7d, err = s.postRepo.CountCreatedSince(ctx, weekAgo)
		return
	})
	g.Go(func() error {
		posts, err := s.postRepo.TopLikedPublished(ctx, 5)
		if err != nil {
			return err
		}
		responses := make([]PostResponse, 0, len(posts))
		for _, post := range posts {
			responses = append(responses, *buildPostResponse(post))
		}
		stats.TopPosts = responses
		return nil
	})
	g.Go(func() (err error) {
		stats.RecentActivities, err = s.activityRepo.Recent(ctx, 10)
		return
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *adminService) ListUsers(ctx context.Context, page, limit int) (*PaginatedUsers, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	users, total, err := s.userRepo.FindAll(ctx, (page-1)*limit, limit)
	if err != nil {
		return nil, err
	}

	for _, user := range users {
		user.PasswordHash = ""
	}

	return &PaginatedUsers{
		Data:       users,
		Page:       page,
		Limit:      limit,
		TotalItems: total,
	}, nil
}

func (s *adminService) UpdateUser(ctx context.Context, id uuid.UUID, input UpdateUserInput) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("user not found")
		}
		return nil, err
	}

	if input.Name != nil {
		user.Name = *input.Name
	}
	if input.Role != nil {
		user.Role = *input.Role
	}
	if input.Active != nil {
		user.Active = *input.Active
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}

	user.PasswordHash = ""
	return user, nil
}

func (s *adminService) DeleteUser(ctx context.Context, id uuid.UUID) error {
	if _, err := s.userRepo.FindByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.NotFound("user not found")
		}
		return err
	}
	return s.userRepo.Delete(ctx, id)
}

func (s *adminService) ListPosts(ctx context.Context, page, limit int) (*PaginatedPosts, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	posts, total, err := s.postRepo.FindAll(ctx, repository.PostFilter{
		Offset: (page - 1) * limit,
		Limit:  limit,
	})
	if err != nil {
		return nil, err
	}

	responses := make([]PostResponse, 0, len(posts))
	for _, post := range posts {
		responses = append(responses, *buildPostResponse(post))
	}

	return &PaginatedPosts{
		Data:       responses,
		Page:       page,
		Limit:      limit,
		TotalItems: total,
	}, nil
}

func (s *adminService) ListActivities(ctx context.Context, limit int) ([]*model.Activity, error) {
	if limit < 1 || limit > 200 {
		limit = 50
	}
	return s.activityRepo.Recent(ctx, limit)
}
