package service

import (
	"testing"

	"github.com/danuartha/kabarkita/internal/model"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens an in-memory sqlite database pinned to a single connection
// so concurrent test goroutines contend on the schema's constraints rather
// than on sqlite write locking.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

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

	return db
}

func createUser(t *testing.T, db *gorm.DB, name, role string) *model.User {
	t.Helper()

	user := &model.User{
		Name:         name,
		Email:        name + "@example.com",
		PasswordHash: "x",
		Role:         role,
		Active:       true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func createUserWithPassword(t *testing.T, db *gorm.DB, name, password string) *model.User {
	t.Helper()

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	user := &model.User{
		Name:         name,
		Email:        name + "@example.com",
		PasswordHash: string(hashed),
		Role:         model.RoleMember,
		Active:       true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func createPost(t *testing.T, db *gorm.DB, author *model.User, title string, published bool) *model.Post {
	t.Helper()

	post := &model.Post{
		Title:     title,
		Body:      "body",
		AuthorID:  author.ID,
		Published: published,
	}
	require.NoError(t, db.Create(post).Error)
	return post
}

func createComment(t *testing.T, db *gorm.DB, author *model.User, post *model.Post, body string) *model.Comment {
	t.Helper()

	comment := &model.Comment{
		Body:     body,
		AuthorID: author.ID,
		PostID:   post.ID,
	}
	require.NoError(t, db.Create(comment).Error)
	return comment
}

func countActivities(t *testing.T, db *gorm.DB, action string) int64 {
	t.Helper()

	var count int64
	require.NoError(t, db.Model(&model.Activity{}).Where("action = ?", action).Count(&count).Error)
	return count
}
