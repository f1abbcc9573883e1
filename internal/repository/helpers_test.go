package repository

import (
	"testing"
	"time"

	"github.com/traveldairy2025nju/td-backend/internal/database"
	"github.com/traveldairy2025nju/td-backend/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

// setupSQLiteDB returns an isolated in-memory database with the full schema.
func setupSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// Every connection to :memory: is a separate database.
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(database.PersistentModels()...))
	return db
}

func createUser(t *testing.T, db *gorm.DB, username, nickname string) *models.User {
	t.Helper()
	u := &models.User{Username: username, Nickname: nickname, Role: models.RoleUser}
	require.NoError(t, db.Create(u).Error)
	return u
}

func createEntry(t *testing.T, db *gorm.DB, authorID uint, title string, status models.EntryStatus, created time.Time) *models.Entry {
	t.Helper()
	e := &models.Entry{
		Title:     title,
		Content:   "Body of " + title,
		Images:    []string{"https://cdn.example.com/" + title + ".jpg"},
		AuthorID:  authorID,
		Status:    status,
		CreatedAt: created,
	}
	require.NoError(t, db.Create(e).Error)
	return e
}

func reloadEntry(t *testing.T, db *gorm.DB, id uint) *models.Entry {
	t.Helper()
	var e models.Entry
	require.NoError(t, db.First(&e, id).Error)
	return &e
}
