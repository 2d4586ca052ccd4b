package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/danuartha/kabarkita/internal/config"
	"github.com/danuartha/kabarkita/internal/model"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type nopMediaStorage struct{}

func (nopMediaStorage) Upload(_ context.Context, _ io.Reader, folder, fileName string) (string, error) {
	return fmt.Sprintf("https://cdn.example.com/%s/%s", folder, fileName), nil
}

func (nopMediaStorage) Delete(context.Context, string) error { return nil }

func newTestRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&model.User{},
		&model.Profile{},
		&model.Category{},
		&model.Post{},
		&model.Comment{},
		&model.Like{},
		&model.Activity{},
	))

	t.Cleanup(func() {
		sqlDB.Close()
	})

	cfg := &config.Config{
		AppEnv:                 "test",
		AllowedOrigins:         "http://localhost:3000",
		JWTSecret:              "test-secret",
		JWTTTLMinutes:          60,
		CloudinaryUploadFolder: "kabarkita-test",
		MaxAvatarSizeBytes:     3 << 20,
	}

	return New(cfg, db, nil, nil, nopMediaStorage{}), db
}

func doJSON(t *testing.T, router *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

func registerAndLogin(t *testing.T, router *gin.Engine, name string) string {
	t.Helper()

	rec := doJSON(t, router, http.MethodPost, "/api/auth/register", "", gin.H{
		"name":     name,
		"email":    name + "@example.com",
		"password": "supersecret",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, router, http.MethodPost, "/api/auth/login", "", gin.H{
		"email":    name + "@example.com",
		"password": "supersecret",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		AccessToken string `json:"access_token"`
	}
	decodeBody(t, rec, &resp)
	require.NotEmpty(t, resp.AccessToken)
	return resp.AccessToken
}

func seedAdmin(t *testing.T, db *gorm.DB) {
	t.Helper()

	hashed, err := bcrypt.GenerateFromPassword([]byte("supersecret"), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, db.Create(&model.User{
		Name:         "Admin",
		Email:        "admin@example.com",
		PasswordHash: string(hashed),
		Role:         model.RoleAdmin,
		Active:       true,
	}).Error)
}

func loginAs(t *testing.T, router *gin.Engine, email string) string {
	t.Helper()

	rec := doJSON(t, router, http.MethodPost, "/api/auth/login", "", gin.H{
		"email":    email,
		"password": "supersecret",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		AccessToken string `json:"access_token"`
	}
	decodeBody(t, rec, &resp)
	return resp.AccessToken
}

// Full reader-and-author flow over the HTTP surface: register, publish,
// read back, toggle a like on and off.
func TestServer_PostLifecycle(t *testing.T) {
	router, _ := newTestRouter(t)

	anaToken := registerAndLogin(t, router, "ana")
	budiToken := registerAndLogin(t, router, "budi")

	rec := doJSON(t, router, http.MethodPost, "/api/posts", anaToken, gin.H{
		"title": "Hello",
		"body":  "first post",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var post struct {
		ID     string `json:"id"`
		Author struct {
			Name string `json:"name"`
		} `json:"author"`
	}
	decodeBody(t, rec, &post)
	require.Equal(t, "ana", post.Author.Name)

	// Anonymous read sees the published post with its author.
	rec = doJSON(t, router, http.MethodGet, "/api/posts/"+post.ID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &post)
	require.Equal(t, "ana", post.Author.Name)

	var toggle struct {
		Liked      bool  `json:"liked"`
		LikesCount int64 `json:"likes_count"`
	}

	rec = doJSON(t, router, http.MethodPost, "/api/posts/"+post.ID+"/like", budiToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decodeBody(t, rec, &toggle)
	require.True(t, toggle.Liked)
	require.EqualValues(t, 1, toggle.LikesCount)

	rec = doJSON(t, router, http.MethodPost, "/api/posts/"+post.ID+"/like", budiToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &toggle)
	require.False(t, toggle.Liked)
	require.EqualValues(t, 0, toggle.LikesCount)
}

func TestServer_CommentFlow(t *testing.T) {
	router, _ := newTestRouter(t)

	anaToken := registerAndLogin(t, router, "ana")
	budiToken := registerAndLogin(t, router, "budi")

	rec := doJSON(t, router, http.MethodPost, "/api/posts", anaToken, gin.H{
		"title": "Hello",
		"body":  "first post",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var post struct {
		ID string `json:"id"`
	}
	decodeBody(t, rec, &post)

	rec = doJSON(t, router, http.MethodPost, "/api/comments", budiToken, gin.H{
		"content": "nice one",
		"post_id": post.ID,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var comment struct {
		ID     string `json:"id"`
		Author struct {
			Name string `json:"name"`
		} `json:"author"`
	}
	decodeBody(t, rec, &comment)
	require.Equal(t, "budi", comment.Author.Name)

	// Comments are readable without authentication.
	rec = doJSON(t, router, http.MethodGet, "/api/posts/"+post.ID+"/comments", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// The post author cannot delete someone else's comment.
	rec = doJSON(t, router, http.MethodDelete, "/api/comments/"+comment.ID, anaToken, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, router, http.MethodDelete, "/api/comments/"+comment.ID, budiToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_AuthRequired(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/posts", "", gin.H{
		"title": "Hello",
		"body":  "first post",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/posts", "not-a-token", gin.H{
		"title": "Hello",
		"body":  "first post",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServer_AdminSurface(t *testing.T) {
	router, db := newTestRouter(t)
	seedAdmin(t, db)

	memberToken := registerAndLogin(t, router, "ana")
	adminToken := loginAs(t, router, "admin@example.com")

	// Members are rejected at the role gate.
	rec := doJSON(t, router, http.MethodGet, "/api/admin/stats", memberToken, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/admin/stats", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Category management is admin-only.
	rec = doJSON(t, router, http.MethodPost, "/api/admin/categories", memberToken, gin.H{
		"name": "Tech",
	})
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/admin/categories", adminToken, gin.H{
		"name":  "Tech",
		"color": "#123abc",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var category struct {
		ID    string `json:"id"`
		Slug  string `json:"slug"`
		Color string `json:"color"`
	}
	decodeBody(t, rec, &category)
	require.Equal(t, "tech", category.Slug)

	rec = doJSON(t, router, http.MethodPut, "/api/admin/categories/"+category.ID, adminToken, gin.H{
		"color": "#ff0000",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &category)
	require.Equal(t, "#ff0000", category.Color)

	// The category list is public.
	rec = doJSON(t, router, http.MethodGet, "/api/categories", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_ProfileFlow(t *testing.T) {
	router, _ := newTestRouter(t)

	token := registerAndLogin(t, router, "ana")

	rec := doJSON(t, router, http.MethodGet, "/api/profile/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var profile struct {
		DisplayName string  `json:"display_name"`
		Bio         *string `json:"bio"`
	}
	decodeBody(t, rec, &profile)
	require.Equal(t, "ana", profile.DisplayName)

	rec = doJSON(t, router, http.MethodPut, "/api/profile", token, gin.H{
		"bio": "writer",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decodeBody(t, rec, &profile)
	require.NotNil(t, profile.Bio)
	require.Equal(t, "writer", *profile.Bio)
}

func TestServer_DraftHiddenFromPublic(t *testing.T) {
	router, _ := newTestRouter(t)

	token := registerAndLogin(t, router, "ana")

	rec := doJSON(t, router, http.MethodPost, "/api/posts", token, gin.H{
		"title":     "Draft",
		"body":      "wip",
		"published": false,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var post struct {
		ID string `json:"id"`
	}
	decodeBody(t, rec, &post)

	rec = doJSON(t, router, http.MethodGet, "/api/posts/"+post.ID, "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/posts/"+post.ID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// The public listing excludes the draft.
	rec = doJSON(t, router, http.MethodGet, "/api/posts", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var page struct {
		TotalItems int64 `json:"total_items"`
	}
	decodeBody(t, rec, &page)
	require.Zero(t, page.TotalItems)
}
