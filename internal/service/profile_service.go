package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/danuartha/kabarkita/internal/model"
	"github.com/danuartha/kabarkita/internal/repository"
	"github.com/danuartha/kabarkita/pkg/apperror"
	"github.com/danuartha/kabarkita/pkg/storage"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// AvatarFile is an uploaded avatar image.
type AvatarFile struct {
	Reader   io.Reader
	FileName string
}

type UpdateProfileInput struct {
	DisplayName *string `json:"display_name" binding:"omitempty,min=1,max=100"`
	Bio         *string `json:"bio"`
	Website     *string `json:"website" binding:"omitempty,url"`
	Location    *string `json:"location" binding:"omitempty,max=100"`
}

type ChangePasswordInput struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8"`
}

type ProfileService interface {
	Get(ctx context.Context, actorID uuid.UUID, userID uuid.UUID) (*model.Profile, error)
	Update(ctx context.Context, actorID uuid.UUID, input UpdateProfileInput) (*model.Profile, error)
	UpdateAvatar(ctx context.Context, actorID uuid.UUID, avatar AvatarFile) (string, error)
	ChangePassword(ctx context.Context, actorID uuid.UUID, input ChangePasswordInput) error
}

type profileService struct {
	userRepo     repository.UserRepository
	activityRepo repository.ActivityRepository
	media        storage.MediaStorage
	uploadFolder string
}

func NewProfileService(userRepo repository.UserRepository, activityRepo repository.ActivityRepository, media storage.MediaStorage, uploadFolder string) ProfileService {
	return &profileService{
		userRepo:     userRepo,
		activityRepo: activityRepo,
		media:        media,
		uploadFolder: uploadFolder,
	}
}

// Get returns the profile for userID. The actor's own profile is created
// lazily on first access; anyone else's missing profile is not-found.
func (s *profileService) Get(ctx context.Context, actorID uuid.UUID, userID uuid.UUID) (*model.Profile, error) {
	profile, err := s.userRepo.FindProfile(ctx, userID)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if userID != actorID {
		return nil, apperror.NotFound("profile not found")
	}

	user, err := s.userRepo.FindByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.ErrUnauthorized
		}
		return nil, err
	}

	profile = &model.Profile{
		UserID:      user.ID,
		DisplayName: user.Name,
		AvatarURL:   user.AvatarURL,
	}
	if err := s.userRepo.SaveProfile(ctx, profile); err != nil {
		return nil, err
	}

	recordActivity(ctx, s.activityRepo, actorID, model.ActionCreateProfile, nil, "profile created")

	return profile, nil
}

func (s *profileService) Update(ctx context.Context, actorID uuid.UUID, input UpdateProfileInput) (*model.Profile, error) {
	profile, err := s.Get(ctx, actorID, actorID)
	if err != nil {
		return nil, err
	}

	if input.DisplayName != nil {
		profile.DisplayName = *input.DisplayName
	}
	if input.Bio != nil {
		profile.Bio = normalizeOptional(input.Bio)
	}
	if input.Website != nil {
		profile.Website = normalizeOptional(input.Website)
	}
	if input.Location != nil {
		profile.Location = normalizeOptional(input.Location)
	}

	if err := s.userRepo.SaveProfile(ctx, profile); err != nil {
		return nil, err
	}

	recordActivity(ctx, s.activityRepo, actorID, model.ActionUpdateProfile, nil, "profile updated")

	return profile, nil
}

// UpdateAvatar replaces the stored avatar reference exactly once per upload.
// Deleting the previous media and cleaning up after a failed persist are both
// best-effort: stale orphaned media is acceptable, a blocked upload is not.
func (s *profileService) UpdateAvatar(ctx context.Context, actorID uuid.UUID, avatar AvatarFile) (string, error) {
	user, err := s.userRepo.FindByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", apperror.ErrUnauthorized
		}
		return "", err
	}

	if user.AvatarURL != nil && *user.AvatarURL != "" && *user.AvatarURL != model.DefaultAvatarURL {
		if err := s.media.Delete(ctx, *user.AvatarURL); err != nil {
			log.Printf("failed to delete previous avatar for user %s: %v", user.ID, err)
		}
	}

	url, err := s.media.Upload(ctx, avatar.Reader, s.uploadFolder+"/avatars", avatar.FileName)
	if err != nil {
		return "", fmt.Errorf("failed to store avatar: %w", err)
	}

	user.AvatarURL = &url
	if user.Profile != nil {
		user.Profile.AvatarURL = &url
	}
	if err := s.userRepo.Update(ctx, user); err != nil {
		// The media was stored but its reference cannot be persisted; try
		// not to orphan it.
		if delErr := s.media.Delete(ctx, url); delErr != nil {
			log.Printf("failed to clean up avatar after persist error: %v", delErr)
		}
		return "", err
	}

	recordActivity(ctx, s.activityRepo, actorID, model.ActionUpdateAvatar, nil, "avatar updated")

	return url, nil
}

func (s *profileService) ChangePassword(ctx context.Context, actorID uuid.UUID, input ChangePasswordInput) error {
	user, err := s.userRepo.FindByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.ErrUnauthorized
		}
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.CurrentPassword)); err != nil {
		return apperror.BadRequest("current password is incorrect")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	user.PasswordHash = string(hashed)
	if err := s.userRepo.Update(ctx, user); err != nil {
		return err
	}

	recordActivity(ctx, s.activityRepo, actorID, model.ActionChangePassword, nil, "password changed")

	return nil
}

func normalizeOptional(value *string) *string {
	if value == nil {
		return nil
	}
	if *value == "" {
		return nil
	}
	return value
}
