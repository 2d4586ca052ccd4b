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

type CreateCommentInput struct {
	Content string    `json:"content" binding:"required,min=1"`
	PostID  uuid.UUID `json:"post_id" binding:"required"`
}

type CommentResponse struct {
	ID         uuid.UUID  `json:"id"`
	Body       string     `json:"body"`
	Author     AuthorInfo `json:"author"`
	PostID     uuid.UUID  `json:"post_id"`
	LikesCount int64      `json:"likes_count"`
	CreatedAt  time.Time  `json:"created_at"`
}

type CommentService interface {
	Create(ctx context.Context, actorID uuid.UUID, input CreateCommentInput) (*CommentResponse, error)
	ListByPost(ctx context.Context, postID uuid.UUID) ([]CommentResponse, error)
	Delete(ctx context.Context, actorID uuid.UUID, id uuid.UUID) error
}

type commentService struct {
	commentRepo  repository.CommentRepository
	postRepo     repository.PostRepository
	userRepo     repository.UserRepository
	activityRepo repository.ActivityRepository
	rdb          *redis.Client
	rateLimit    time.Duration
	sanitizer    *bluemonday.Policy
}

func NewCommentService(
	commentRepo repository.CommentRepository,
	postRepo repository.PostRepository,
	userRepo repository.UserRepository,
	activityRepo repository.ActivityRepository,
	rdb *redis.Client,
	rateLimit time.Duration,
) CommentService {
	return &commentService{
		commentRepo:  commentRepo,
		postRepo:     postRepo,
		userRepo:     userRepo,
		activityRepo: activityRepo,
		rdb:          rdb,
		rateLimit:    rateLimit,
		sanitizer:    bluemonday.UGCPolicy(),
	}
}

func (s *commentService) Create(ctx context.Context, actorID uuid.UUID, input CreateCommentInput) (*CommentResponse, error) {
	allowed, err := CheckAndSetRateLimit(ctx, s.rdb, actorID, "create_comment", s.rateLimit)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, apperror.ErrRateLimitExceeded
	}

	post, err := s.postRepo.FindByID(ctx, input.PostID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("post not found")
		}
		return nil, err
	}
	if !post.Published && post.AuthorID != actorID {
		return nil, apperror.NotFound("post not found")
	}

	comment := &model.Comment{
		Body:     s.sanitizer.Sanitize(input.Content),
		AuthorID: actorID,
		PostID:   post.ID,
	}

	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, err
	}

	created, err := s.commentRepo.FindByID(ctx, comment.ID)
	if err != nil {
		return nil, err
	}

	recordActivity(ctx, s.activityRepo, actorID, model.ActionCommentPost, &post.ID, fmt.Sprintf("commented on post %q", post.Title))

	return buildCommentResponse(created), nil
}

func (s *commentService) ListByPost(ctx context.Context, postID uuid.UUID) ([]CommentResponse, error) {
	if _, err := s.postRepo.FindByID(ctx, postID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("post not found")
		}
		return nil, err
	}

	comments, err := s.commentRepo.FindByPostID(ctx, postID)
	if err != nil {
		return nil, err
	}

	responses := make([]CommentResponse, 0, len(comments))
	for _, comment := range comments {
		responses = append(responses, *buildCommentResponse(comment))
	}
	return responses, nil
}

func (s *commentService) Delete(ctx context.Context, actorID uuid.UUID, id uuid.UUID) error {
	comment, err := s.commentRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.NotFound("comment not found")
		}
		return err
	}

	actor, err := s.userRepo.FindByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.ErrUnauthorized
		}
		return err
	}
	if !CanModify(actor, comment.AuthorID) {
		return apperror.Forbidden("only the author or an admin may delete this comment")
	}

	return s.commentRepo.Delete(ctx, id)
}

func buildCommentResponse(comment *model.Comment) *CommentResponse {
	return &CommentResponse{
		ID:         comment.ID,
		Body:       comment.Body,
		Author:     buildAuthorInfo(comment.Author),
		PostID:     comment.PostID,
		LikesCount: comment.LikeCount,
		CreatedAt:  comment.CreatedAt,
	}
}
