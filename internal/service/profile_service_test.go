package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/danuartha/kabarkita/internal/model"
	"github.com/danuartha/kabarkita/internal/repository"
	"github.com/danuartha/kabarkita/pkg/apperror"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakeMediaStorage records uploads and deletes in order.
type fakeMediaStorage struct {
	uploads   []string
	deletes   []string
	uploadErr error
	deleteErr error
}

func (f *fakeMediaStorage) Upload(_ context.Context, _ io.Reader, folder, fileName string) (string, error) {
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	url := fmt.Sprintf("https://cdn.example.com/%s/%s-%d", folder, fileName, len(f.uploads))
	f.uploads = append(f.uploads, url)
	return url, nil
}

func (f *fakeMediaStorage) Delete(_ context.Context, fileURL string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deletes = append(f.deletes, fileURL)
	return nil
}

func newProfileService(db *gorm.DB, media *fakeMediaStorage) ProfileService {
	return NewProfileService(
		repository.NewUserRepository(db),
		repository.NewActivityRepository(db),
		media,
		"kabarkita",
	)
}

func TestProfileService_LazyCreateOwnProfile(t *testing.T) {
	db := newTestDB(t)
	svc := newProfileService(db, &fakeMediaStorage{})
	ctx := context.Background()

	user := createUser(t, db, "ana", model.RoleMember)
	other := createUser(t, db, "budi", model.RoleMember)

	// First access creates the actor's own profile from the user record.
	profile, err := svc.Get(ctx, user.ID, user.ID)
	require.NoError(t, err)
	require.Equal(t, user.ID, profile.UserID)
	require.Equal(t, "ana", profile.DisplayName)
	require.EqualValues(t, 1, countActivities(t, db, model.ActionCreateProfile))

	// Someone else's missing profile is not created on their behalf.
	_, err = svc.Get(ctx, user.ID, other.ID)
	require.ErrorIs(t, err, apperror.ErrNotFound)

	// Second access returns the stored profile without another create.
	_, err = svc.Get(ctx, user.ID, user.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, countActivities(t, db, model.ActionCreateProfile))
}

func TestProfileService_Update(t *testing.T) {
	db := newTestDB(t)
	svc := newProfileService(db, &fakeMediaStorage{})
	ctx := context.Background()

	user := createUser(t, db, "ana", model.RoleMember)

	bio := "writer"
	website := "https://ana.example.com"
	empty := ""
	profile, err := svc.Update(ctx, user.ID, UpdateProfileInput{Bio: &bio, Website: &website})
	require.NoError(t, err)
	require.Equal(t, "writer", *profile.Bio)
	require.Equal(t, website, *profile.Website)

	// An explicit empty string clears the field.
	profile, err = svc.Update(ctx, user.ID, UpdateProfileInput{Bio: &empty})
	require.NoError(t, err)
	require.Nil(t, profile.Bio)
	require.Equal(t, website, *profile.Website)
}

func TestProfileService_UpdateAvatarReplacesOld(t *testing.T) {
	db := newTestDB(t)
	media := &fakeMediaStorage{}
	svc := newProfileService(db, media)
	ctx := context.Background()

	user := createUser(t, db, "ana", model.RoleMember)
	old := "https://cdn.example.com/kabarkita/avatars/old"
	user.AvatarURL = &old
	require.NoError(t, db.Save(user).Error)

	url, err := svc.UpdateAvatar(ctx, user.ID, AvatarFile{
		Reader:   strings.NewReader("img"),
		FileName: "ana.png",
	})
	require.NoError(t, err)
	require.NotEmpty(t, url)

	// Old media deleted first, new one uploaded, reference persisted.
	require.Equal(t, []string{old}, media.deletes)
	require.Equal(t, []string{url}, media.uploads)

	var reloaded model.User
	require.NoError(t, db.First(&reloaded, "id = ?", user.ID).Error)
	require.Equal(t, url, *reloaded.AvatarURL)
	require.EqualValues(t, 1, countActivities(t, db, model.ActionUpdateAvatar))
}

func TestProfileService_UpdateAvatarKeepsPlaceholder(t *testing.T) {
	db := newTestDB(t)
	media := &fakeMediaStorage{}
	svc := newProfileService(db, media)
	ctx := context.Background()

	user := createUser(t, db, "ana", model.RoleMember)
	placeholder := model.DefaultAvatarURL
	user.AvatarURL = &placeholder
	require.NoError(t, db.Save(user).Error)

	_, err := svc.UpdateAvatar(ctx, user.ID, AvatarFile{
		Reader:   strings.NewReader("img"),
		FileName: "ana.png",
	})
	require.NoError(t, err)

	// The shared placeholder is never deleted from media storage.
	require.Empty(t, media.deletes)
}

func TestProfileService_UpdateAvatarUploadFailure(t *testing.T) {
	db := newTestDB(t)
	media := &fakeMediaStorage{uploadErr: errors.New("storage down")}
	svc := newProfileService(db, media)
	ctx := context.Background()

	user := createUser(t, db, "ana", model.RoleMember)

	_, err := svc.UpdateAvatar(ctx, user.ID, AvatarFile{
		Reader:   strings.NewReader("img"),
		FileName: "ana.png",
	})
	require.Error(t, err)

	var reloaded model.User
	require.NoError(t, db.First(&reloaded, "id = ?", user.ID).Error)
	require.Nil(t, reloaded.AvatarURL)
}

func TestProfileService_UpdateAvatarUnknownActor(t *testing.T) {
	db := newTestDB(t)
	svc := newProfileService(db, &fakeMediaStorage{})
	ctx := context.Background()

	_, err := svc.UpdateAvatar(ctx, uuid.New(), AvatarFile{
		Reader:   strings.NewReader("img"),
		FileName: "ghost.png",
	})
	require.ErrorIs(t, err, apperror.ErrUnauthorized)
}

func TestProfileService_ChangePassword(t *testing.T) {
	db := newTestDB(t)
	svc := newProfileService(db, &fakeMediaStorage{})
	ctx := context.Background()

	user := createUserWithPassword(t, db, "ana", "oldsecret1")

	err := svc.ChangePassword(ctx, user.ID, ChangePasswordInput{
		CurrentPassword: "wrong",
		NewPassword:     "newsecret1",
	})
	require.ErrorIs(t, err, apperror.ErrBadRequest)

	require.NoError(t, svc.ChangePassword(ctx, user.ID, ChangePasswordInput{
		CurrentPassword: "oldsecret1",
		NewPassword:     "newsecret1",
	}))

	// The old password no longer matches.
	err = svc.ChangePassword(ctx, user.ID, ChangePasswordInput{
		CurrentPassword: "oldsecret1",
		NewPassword:     "again1234",
	})
	require.ErrorIs(t, err, apperror.ErrBadRequest)
	require.EqualValues(t, 1, countActivities(t, db, model.ActionChangePassword))
}
