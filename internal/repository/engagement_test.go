package repository

import (
	"context"
	"testing"
	"time"

	"github.com/traveldairy2025nju/td-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngagementRepository_LikeLifecycle(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewEngagementRepository(db)
	ctx := context.Background()

	author := createUser(t, db, "author", "Author")
	e := createEntry(t, db, author.ID, "tibet", models.StatusApproved, time.Now())

	count, err := repo.AddLike(ctx, e.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = repo.AddLike(ctx, e.ID, 8)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	_, err = repo.AddLike(ctx, e.ID, 7)
	require.Error(t, err)
	assert.True(t, models.IsCode(err, models.CodeConstraintViolation))
	assert.Equal(t, int64(2), reloadEntry(t, db, e.ID).LikeCount, "duplicate must not double count")

	liked, err := repo.IsLiked(ctx, e.ID, 7)
	require.NoError(t, err)
	assert.True(t, liked)

	removed, count, err := repo.RemoveLike(ctx, e.ID, 7)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, int64(1), count)

	removed, count, err = repo.RemoveLike(ctx, e.ID, 7)
	require.NoError(t, err)
	assert.False(t, removed)
	assert.Equal(t, int64(1), count, "nothing removed, counter untouched")
}

func TestEngagementRepository_CounterNeverNegative(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewEngagementRepository(db)
	ctx := context.Background()

	author := createUser(t, db, "author", "Author")
	e := createEntry(t, db, author.ID, "drift", models.StatusApproved, time.Now())
	// Row exists but the counter already drifted to zero.
	require.NoError(t, db.Create(&models.Favorite{EntryID: e.ID, UserID: 3}).Error)

	removed, count, err := repo.RemoveFavorite(ctx, e.ID, 3)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, int64(0), count)
}

func TestEngagementRepository_ListFavorites(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewEngagementRepository(db)
	ctx := context.Background()

	author := createUser(t, db, "author", "Author")
	old := createEntry(t, db, author.ID, "old", models.StatusApproved, time.Now().Add(-48*time.Hour))
	fresh := createEntry(t, db, author.ID, "fresh", models.StatusApproved, time.Now())
	hidden := createEntry(t, db, author.ID, "hidden", models.StatusApproved, time.Now())

	base := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, db.Create(&models.Favorite{EntryID: fresh.ID, UserID: 5, CreatedAt: base}).Error)
	require.NoError(t, db.Create(&models.Favorite{EntryID: old.ID, UserID: 5, CreatedAt: base.Add(time.Hour)}).Error)
	require.NoError(t, db.Create(&models.Favorite{EntryID: hidden.ID, UserID: 5, CreatedAt: base.Add(2 * time.Hour)}).Error)
	require.NoError(t, db.Create(&models.Favorite{EntryID: 9999, UserID: 5, CreatedAt: base.Add(3 * time.Hour)}).Error)
	require.NoError(t, db.Create(&models.Favorite{EntryID: fresh.ID, UserID: 6, CreatedAt: base}).Error)

	// Unpublished after being favorited.
	require.NoError(t, db.Model(hidden).Update("status", models.StatusPending).Error)

	items, total, err := repo.ListFavorites(ctx, 5, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total, "orphaned and unapproved favorites are skipped")
	require.Len(t, items, 2)
	assert.Equal(t, "old", items[0].Title, "ordered by favorite time, newest first")
	assert.Equal(t, "fresh", items[1].Title)
}
