package service

import (
	"context"
	"testing"

	"github.com/danuartha/kabarkita/internal/model"
	"github.com/danuartha/kabarkita/internal/repository"
	"github.com/danuartha/kabarkita/pkg/apperror"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newPostService(db *gorm.DB) PostService {
	return NewPostService(
		repository.NewPostRepository(db),
		repository.NewUserRepository(db),
		repository.NewCategoryRepository(db),
		repository.NewActivityRepository(db),
		NewSearchService(nil),
		nil,
		0,
	)
}

func TestPostService_CreateAndGet(t *testing.T) {
	db := newTestDB(t)
	svc := newPostService(db)
	ctx := context.Background()

	author := createUser(t, db, "ana", model.RoleMember)

	created, err := svc.Create(ctx, author.ID, CreatePostInput{
		Title: "Hello",
		Body:  "<p>Hi there</p><script>alert(1)</script>",
	})
	require.NoError(t, err)
	require.Equal(t, "Hello", created.Title)
	require.NotContains(t, created.Body, "script")
	require.True(t, created.Published)
	require.Equal(t, "ana", created.Author.Name)
	require.EqualValues(t, 1, countActivities(t, db, model.ActionCreatePost))

	got, err := svc.GetByID(ctx, nil, created.ID)
	require.NoError(t, err)
	require.Equal(t, created.ID, got.ID)
}

func TestPostService_CreateRejectsUnknownCategory(t *testing.T) {
	db := newTestDB(t)
	svc := newPostService(db)
	ctx := context.Background()

	author := createUser(t, db, "ana", model.RoleMember)

	_, err := svc.Create(ctx, author.ID, CreatePostInput{
		Title:       "Hello",
		Body:        "hi",
		CategoryIDs: []uuid.UUID{uuid.New()},
	})
	require.ErrorIs(t, err, apperror.ErrBadRequest)
}

func TestPostService_CreateWithCategoriesUpdatesCounts(t *testing.T) {
	db := newTestDB(t)
	svc := newPostService(db)
	ctx := context.Background()

	author := createUser(t, db, "ana", model.RoleMember)
	category := &model.Category{Name: "Tech", Slug: "tech"}
	require.NoError(t, db.Create(category).Error)

	created, err := svc.Create(ctx, author.ID, CreatePostInput{
		Title:       "Hello",
		Body:        "hi",
		CategoryIDs: []uuid.UUID{category.ID},
	})
	require.NoError(t, err)
	require.Len(t, created.Categories, 1)

	var reloaded model.Category
	require.NoError(t, db.First(&reloaded, "id = ?", category.ID).Error)
	require.EqualValues(t, 1, reloaded.PostCount)
}

func TestPostService_UnpublishedVisibility(t *testing.T) {
	db := newTestDB(t)
	svc := newPostService(db)
	ctx := context.Background()

	author := createUser(t, db, "author", model.RoleMember)
	stranger := createUser(t, db, "stranger", model.RoleMember)
	admin := createUser(t, db, "admin", model.RoleAdmin)
	draft := createPost(t, db, author, "draft", false)

	// Anonymous and non-owner readers get not-found, never forbidden, so a
	// draft's existence does not leak.
	_, err := svc.GetByID(ctx, nil, draft.ID)
	require.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = svc.GetByID(ctx, &stranger.ID, draft.ID)
	require.ErrorIs(t, err, apperror.ErrNotFound)

	got, err := svc.GetByID(ctx, &author.ID, draft.ID)
	require.NoError(t, err)
	require.Equal(t, draft.ID, got.ID)

	got, err = svc.GetByID(ctx, &admin.ID, draft.ID)
	require.NoError(t, err)
	require.Equal(t, draft.ID, got.ID)
}

func TestPostService_ListPublishedOnly(t *testing.T) {
	db := newTestDB(t)
	svc := newPostService(db)
	ctx := context.Background()

	author := createUser(t, db, "ana", model.RoleMember)
	createPost(t, db, author, "visible", true)
	createPost(t, db, author, "hidden", false)

	page, err := svc.List(ctx, ListPostsInput{})
	require.NoError(t, err)
	require.EqualValues(t, 1, page.TotalItems)
	require.Len(t, page.Data, 1)
	require.Equal(t, "visible", page.Data[0].Title)
}

func TestPostService_UpdateAuthorization(t *testing.T) {
	db := newTestDB(t)
	svc := newPostService(db)
	ctx := context.Background()

	author := createUser(t, db, "author", model.RoleMember)
	stranger := createUser(t, db, "stranger", model.RoleMember)
	admin := createUser(t, db, "admin", model.RoleAdmin)
	post := createPost(t, db, author, "original", true)

	newTitle := "renamed"

	// Missing post is not-found even before ownership is considered.
	_, err := svc.Update(ctx, stranger.ID, uuid.New(), UpdatePostInput{Title: &newTitle})
	require.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = svc.Update(ctx, stranger.ID, post.ID, UpdatePostInput{Title: &newTitle})
	require.ErrorIs(t, err, apperror.ErrForbidden)

	updated, err := svc.Update(ctx, author.ID, post.ID, UpdatePostInput{Title: &newTitle})
	require.NoError(t, err)
	require.Equal(t, "renamed", updated.Title)

	adminTitle := "admin override"
	updated, err = svc.Update(ctx, admin.ID, post.ID, UpdatePostInput{Title: &adminTitle})
	require.NoError(t, err)
	require.Equal(t, "admin override", updated.Title)
}

func TestPostService_DeleteCascades(t *testing.T) {
	db := newTestDB(t)
	svc := newPostService(db)
	likeSvc := newLikeService(db)
	ctx := context.Background()

	author := createUser(t, db, "author", model.RoleMember)
	reader := createUser(t, db, "reader", model.RoleMember)
	post := createPost(t, db, author, "doomed", true)
	comment := createComment(t, db, reader, post, "nice")

	_, err := likeSvc.Toggle(ctx, reader.ID, model.TargetPost, post.ID)
	require.NoError(t, err)
	_, err = likeSvc.Toggle(ctx, author.ID, model.TargetComment, comment.ID)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, author.ID, post.ID))

	var comments int64
	require.NoError(t, db.Model(&model.Comment{}).Where("post_id = ?", post.ID).Count(&comments).Error)
	require.Zero(t, comments)

	var likes int64
	require.NoError(t, db.Model(&model.Like{}).Count(&likes).Error)
	require.Zero(t, likes)

	_, err = svc.GetByID(ctx, &author.ID, post.ID)
	require.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestPostService_DeleteAuthorization(t *testing.T) {
	db := newTestDB(t)
	svc := newPostService(db)
	ctx := context.Background()

	author := createUser(t, db, "author", model.RoleMember)
	stranger := createUser(t, db, "stranger", model.RoleMember)
	admin := createUser(t, db, "admin", model.RoleAdmin)
	post := createPost(t, db, author, "kept", true)

	err := svc.Delete(ctx, stranger.ID, post.ID)
	require.ErrorIs(t, err, apperror.ErrForbidden)

	require.NoError(t, svc.Delete(ctx, admin.ID, post.ID))
}

func TestPostService_AuthorFallbackAfterUserDeleted(t *testing.T) {
	db := newTestDB(t)
	svc := newPostService(db)
	ctx := context.Background()

	author := createUser(t, db, "ghost", model.RoleMember)
	post := createPost(t, db, author, "orphaned", true)

	require.NoError(t, db.Delete(&model.User{}, "id = ?", author.ID).Error)

	got, err := svc.GetByID(ctx, nil, post.ID)
	require.NoError(t, err)
	require.Nil(t, got.Author.ID)
	require.Equal(t, "Unknown User", got.Author.Name)
	require.Equal(t, model.DefaultAvatarURL, got.Author.AvatarURL)
}
