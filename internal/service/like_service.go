package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/danuartha/kabarkita/internal/model"
	"github.com/danuartha/kabarkita/internal/repository"
	"github.com/danuartha/kabarkita/pkg/apperror"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ToggleResult reflects ledger state after the flip.
type ToggleResult struct {
	Liked      bool  `json:"liked"`
	LikesCount int64 `json:"likes_count"`
}

type LikeService interface {
	Toggle(ctx context.Context, actorID uuid.UUID, targetType string, targetID uuid.UUID) (*ToggleResult, error)
}

type likeService struct {
	likeRepo     repository.LikeRepository
	postRepo     repository.PostRepository
	commentRepo  repository.CommentRepository
	activityRepo repository.ActivityRepository
}

func NewLikeService(likeRepo repository.LikeRepository, postRepo repository.PostRepository, commentRepo repository.CommentRepository, activityRepo repository.ActivityRepository) LikeService {
	return &likeService{
		likeRepo:     likeRepo,
		postRepo:     postRepo,
		commentRepo:  commentRepo,
		activityRepo: activityRepo,
	}
}

// Toggle flips the actor's like relation to the target. The ledger's unique
// constraint arbitrates concurrent toggles; the counter moves atomically with
// the ledger mutation and the returned count is read in the same transaction.
func (s *likeService) Toggle(ctx context.Context, actorID uuid.UUID, targetType string, targetID uuid.UUID) (*ToggleResult, error) {
	action, err := s.resolveTarget(ctx, actorID, targetType, targetID)
	if err != nil {
		return nil, err
	}

	liked, count, err := s.likeRepo.Toggle(ctx, actorID, targetType, targetID)
	if err != nil {
		return nil, err
	}

	// Likes are audited; unlikes are silent.
	if liked {
		recordActivity(ctx, s.activityRepo, actorID, action, &targetID, fmt.Sprintf("liked %s %s", targetType, targetID))
	}

	return &ToggleResult{Liked: liked, LikesCount: count}, nil
}

// resolveTarget verifies the target exists and is accessible to the actor,
// returning the activity action for a like on it. Unpublished posts are
// visible only to their author.
func (s *likeService) resolveTarget(ctx context.Context, actorID uuid.UUID, targetType string, targetID uuid.UUID) (string, error) {
	switch targetType {
	case model.TargetPost:
		post, err := s.postRepo.FindByID(ctx, targetID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return "", apperror.NotFound("post not found")
			}
			return "", err
		}
		if !post.Published && post.AuthorID != actorID {
			return "", apperror.NotFound("post not found")
		}
		return model.ActionLikePost, nil

	case model.TargetComment:
		if _, err := s.commentRepo.FindByID(ctx, targetID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return "", apperror.NotFound("comment not found")
			}
			return "", err
		}
		return model.ActionLikeComment, nil

	default:
		return "", apperror.BadRequest("invalid like target type")
	}
}
