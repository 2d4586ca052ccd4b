package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/danuartha/kabarkita/internal/model"
	"github.com/danuartha/kabarkita/internal/repository"
	"github.com/danuartha/kabarkita/pkg/apperror"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type CreatePostInput struct {
	Title       string      `json:"title" binding:"required,min=1,max=255"`
	Body        string      `json:"body" binding:"required"`
	CategoryIDs []uuid.UUID `json:"category_ids"`
	Published   *bool       `json:"published"`
}

type UpdatePostInput struct {
	Title       *string     `json:"title" binding:"omitempty,min=1,max=255"`
	Body        *string     `json:"body"`
	CategoryIDs []uuid.UUID `json:"category_ids"`
	Published   *bool       `json:"published"`
}

type ListPostsInput struct {
	Page         int    `form:"page"`
	Limit        int    `form:"limit"`
	CategorySlug string `form:"category"`
}

// AuthorInfo is the denormalized author view attached to posts and comments.
// A deleted-but-referenced author renders as the placeholder, decided here
// at the read boundary rather than in every handler.
type AuthorInfo struct {
	ID        *uuid.UUID `json:"id,omitempty"`
	Name      string     `json:"name"`
	AvatarURL string     `json:"avatar_url"`
}

type PostResponse struct {
	ID         uuid.UUID        `json:"id"`
	Title      string           `json:"title"`
	Body       string           `json:"body"`
	Author     AuthorInfo       `json:"author"`
	Categories []model.Category `json:"categories"`
	Published  bool             `json:"published"`
	LikesCount int64            `json:"likes_count"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

type PaginatedPosts struct {
	Data       []PostResponse `json:"data"`
	Page       int            `json:"page"`
	Limit      int            `json:"limit"`
	TotalItems int64          `json:"total_items"`
}

type PostService interface {
	Create(ctx context.Context, actorID uuid.UUID, input CreatePostInput) (*PostResponse, error)
	GetByID(ctx context.Context, actorID *uuid.UUID, id uuid.UUID) (*PostResponse, error)
	List(ctx context.Context, input ListPostsInput) (*PaginatedPosts, error)
	Update(ctx context.Context, actorID uuid.UUID, id uuid.UUID, input UpdatePostInput) (*PostResponse, error)
	Delete(ctx context.Context, actorID uuid.UUID, id uuid.UUID) error
	Search(ctx context.Context, query string, limit int) ([]PostDocument, error)
}

type postService struct {
	postRepo      repository.PostRepository
	userRepo      repository.UserRepository
	categoryRepo  repository.CategoryRepository
	activityRepo  repository.ActivityRepository
	searchService SearchService
	rdb           *redis.Client
	rateLimit     time.Duration
	sanitizer     *bluemonday.Policy
}

func NewPostService(
	postRepo repository.PostRepository,
	userRepo repository.UserRepository,
	categoryRepo repository.CategoryRepository,
	activityRepo repository.ActivityRepository,
	searchService SearchService,
	rdb *redis.Client,
	rateLimit time.Duration,
) PostService {
	return &postService{
		postRepo:      postRepo,
		userRepo:      userRepo,
		categoryRepo:  categoryRepo,
		activityRepo:  activityRepo,
		searchService: searchService,
		rdb:           rdb,
		rateLimit:     rateLimit,
		sanitizer:     bluemonday.UGCPolicy(),
	}
}

func (s *postService) Create(ctx context.Context, actorID uuid.UUID, input CreatePostInput) (*PostResponse, error) {
	allowed, err := CheckAndSetRateLimit(ctx, s.rdb, actorID, "create_post", s.rateLimit)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, apperror.ErrRateLimitExceeded
	}

	if err := s.ensureCategoriesExist(ctx, input.CategoryIDs); err != nil {
		return nil, err
	}

	published := true
	if input.Published != nil {
		published = *input.Published
	}

	post := &model.Post{
		Title:     input.Title,
		Body:      s.sanitizer.Sanitize(input.Body),
		AuthorID:  actorID,
		Published: published,
	}

	if err := s.postRepo.Create(ctx, post, input.CategoryIDs); err != nil {
		return nil, err
	}

	created, err := s.postRepo.FindByID(ctx, post.ID)
	if err != nil {
		return nil, err
	}

	s.searchService.IndexPost(created)
	recordActivity(ctx, s.activityRepo, actorID, model.ActionCreatePost, &created.ID, fmt.Sprintf("created post %q", created.Title))

	return buildPostResponse(created), nil
}

func (s *postService) GetByID(ctx context.Context, actorID *uuid.UUID, id uuid.UUID) (*PostResponse, error) {
	post, err := s.findPost(ctx, id)
	if err != nil {
		return nil, err
	}

	if !post.Published {
		if actorID == nil {
			return nil, apperror.NotFound("post not found")
		}
		actor, err := s.findActor(ctx, *actorID)
		if err != nil || !CanModify(actor, post.AuthorID) {
			return nil, apperror.NotFound("post not found")
		}
	}

	return buildPostResponse(post), nil
}

func (s *postService) List(ctx context.Context, input ListPostsInput) (*PaginatedPosts, error) {
	page := input.Page
	if page < 1 {
		page = 1
	}
	limit := input.Limit
	if limit < 1 || limit > 100 {
		limit = 10
	}

	posts, total, err := s.postRepo.FindAll(ctx, repository.PostFilter{
		PublishedOnly: true,
		CategorySlug:  input.CategorySlug,
		Offset:        (page - 1) * limit,
		Limit:         limit,
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

func (s *postService) Update(ctx context.Context, actorID uuid.UUID, id uuid.UUID, input UpdatePostInput) (*PostResponse, error) {
	// Existence is checked before ownership: a missing post is not-found
	// even to a non-owner.
	post, err := s.findPost(ctx, id)
	if err != nil {
		return nil, err
	}

	actor, err := s.findActor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !CanModify(actor, post.AuthorID) {
		return nil, apperror.Forbidden("only the author or an admin may update this post")
	}

	if input.Title != nil {
		post.Title = *input.Title
	}
	if input.Body != nil {
		post.Body = s.sanitizer.Sanitize(*input.Body)
	}
	if input.Published != nil {
		post.Published = *input.Published
	}

	if input.CategoryIDs != nil {
		if err := s.ensureCategoriesExist(ctx, input.CategoryIDs); err != nil {
			return nil, err
		}
	}

	if err := s.postRepo.Update(ctx, post, input.CategoryIDs); err != nil {
		return nil, err
	}

	updated, err := s.postRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.searchService.IndexPost(updated)
	recordActivity(ctx, s.activityRepo, actorID, model.ActionUpdatePost, &id, fmt.Sprintf("updated post %q", updated.Title))

	return buildPostResponse(updated), nil
}

func (s *postService) Delete(ctx context.Context, actorID uuid.UUID, id uuid.UUID) error {
	post, err := s.findPost(ctx, id)
	if err != nil {
		return err
	}

	actor, err := s.findActor(ctx, actorID)
	if err != nil {
		return err
	}
	if !CanModify(actor, post.AuthorID) {
		return apperror.Forbidden("only the author or an admin may delete this post")
	}

	if err := s.postRepo.Delete(ctx, id); err != nil {
		return err
	}

	s.searchService.DeletePost(id.String())
	recordActivity(ctx, s.activityRepo, actorID, model.ActionDeletePost, &id, fmt.Sprintf("deleted post %q", post.Title))

	return nil
}

func (s *postService) Search(ctx context.Context, query string, limit int) ([]PostDocument, error) {
	if limit < 1 || limit > 50 {
		limit = 10
	}
	return s.searchService.Search(ctx, query, limit)
}

func (s *postService) findPost(ctx context.Context, id uuid.UUID) (*model.Post, error) {
	post, err := s.postRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("post not found")
		}
		return nil, err
	}
	return post, nil
}

func (s *postService) findActor(ctx context.Context, actorID uuid.UUID) (*model.User, error) {
	actor, err := s.userRepo.FindByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.ErrUnauthorized
		}
		return nil, err
	}
	return actor, nil
}

func (s *postService) ensureCategoriesExist(ctx context.Context, ids []uuid.UUID) error {
	for _, id := range ids {
		if _, err := s.categoryRepo.FindByID(ctx, id); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.BadRequest(fmt.Sprintf("category %s does not exist", id))
			}
			return err
		}
	}
	return nil
}

func buildPostResponse(post *model.Post) *PostResponse {
	categories := post.Categories
	if categories == nil {
		categories = []model.Category{}
	}

	return &PostResponse{
		ID:         post.ID,
		Title:      post.Title,
		Body:       post.Body,
		Author:     buildAuthorInfo(post.Author),
		Categories: categories,
		Published:  post.Published,
		LikesCount: post.LikeCount,
		CreatedAt:  post.CreatedAt,
		UpdatedAt:  post.UpdatedAt,
	}
}

func buildAuthorInfo(author *model.User) AuthorInfo {
	if author == nil || author.ID == uuid.Nil {
		return AuthorInfo{
			Name:      "Unknown User",
			AvatarURL: model.DefaultAvatarURL,
		}
	}

	avatar := model.DefaultAvatarURL
	if author.AvatarURL != nil && *author.AvatarURL != "" {
		avatar = *author.AvatarURL
	}

	id := author.ID
	return AuthorInfo{
		ID:        &id,
		Name:      author.Name,
		AvatarURL: avatar,
	}
}
