package repository

import (
	"testing"

	"github.com/danuartha/kabarkita/internal/model"
	"github.com/stretchr/testify/require"
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

func createTestUser(t *testing.T, db *gorm.DB, name string) *model.User {
	t.Helper()

	user := &model.User{
		Name:         name,
		Email:        name + "@example.com",
		PasswordHash: "x",
		Role:         model.RoleMember,
		Active:       true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func createTestPost(t *testing.T, db *gorm.DB, author *model.User, title string) *model.Post {
	t.Helper()

	post := &model.Post{
		Title:     title,
		Body:      "body",
		AuthorID:  author.ID,
		Published: true,
	}
	require.NoError(t, db.Create(post).Error)
	return post
}
