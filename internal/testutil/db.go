// Package testutil provides shared database fixtures for package tests.
package testutil

import (
	"fmt"
	"testing"
	"time"

	"dailyshot/internal/database"
	"dailyshot/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens a migrated in-memory SQLite database private to t.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// Every pooled connection to :memory: would otherwise see its own empty database.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.AutoMigrate(db))
	return db
}

// Fixtures inserts rows for tests.
type Fixtures struct {
	t  testing.TB
	db *gorm.DB
	n  int
}

// NewFixtures binds fixture helpers to db.
func NewFixtures(t testing.TB, db *gorm.DB) *Fixtures {
	return &Fixtures{t: t, db: db}
}

// User creates a user with a unique email.
func (f *Fixtures) User(name string) *models.User {
	f.t.Helper()
	f.n++
	u := &models.User{
		Email: fmt.Sprintf("%s.%d@example.com", name, f.n),
		Name:  name,
		Image: "https://img.example.com/" + name + ".png",
	}
	require.NoError(f.t, f.db.Create(u).Error)
	return u
}

// Admin creates an administrator.
func (f *Fixtures) Admin(name string) *models.User {
	f.t.Helper()
	u := f.User(name)
	require.NoError(f.t, f.db.Model(u).Update("is_admin", true).Error)
	u.IsAdmin = true
	return u
}

// Post creates a post by author on day, submitted at createdAt.
func (f *Fixtures) Post(author *models.User, day, createdAt time.Time) *models.Post {
	f.t.Helper()
	p := &models.Post{
		Title:     fmt.Sprintf("%s on %s", author.Name, day.Format("2006-01-02")),
		ImageURL:  "/uploads/" + author.Name + ".jpg",
		Date:      day,
		AuthorID:  author.ID,
		CreatedAt: createdAt.UTC(),
		UpdatedAt: createdAt.UTC(),
	}
	require.NoError(f.t, f.db.Create(p).Error)
	return p
}

// Votes records one vote on post from each voter.
func (f *Fixtures) Votes(post *models.Post, voters ...*models.User) {
	f.t.Helper()
	for _, v := range voters {
		require.NoError(f.t, f.db.Create(&models.Vote{UserID: v.ID, PostID: post.ID}).Error)
	}
}

// Voters creates n fresh users.
func (f *Fixtures) Voters(n int) []*models.User {
	f.t.Helper()
	out := make([]*models.User, n)
	for i := range out {
		out[i] = f.User("voter")
	}
	return out
}

// Day returns the UTC label for a calendar date.
func Day(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
