package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/traveldairy2025nju/td-backend/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var transitionSQL = `UPDATE "entries" SET .* WHERE id = \$\d+ AND status = \$\d+`

func TestEntryRepository_TransitionFromPending_SQL(t *testing.T) {
	tests := []struct {
		name         string
		existing     int
		expectedCode string
	}{
		{"already decided", 1, models.CodeInvalidState},
		{"missing entry", 0, models.CodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := setupMockDB(t)
			repo := NewEntryRepository(db)

			mock.ExpectBegin()
			mock.ExpectExec(transitionSQL).WillReturnResult(sqlmock.NewResult(0, 0))
			mock.ExpectCommit()
			mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "entries" WHERE id = $1`)).
				WithArgs(7).
				WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(tt.existing))

			entry, err := repo.TransitionFromPending(context.Background(), 7, map[string]interface{}{
				"status": models.StatusApproved,
			})
			assert.Nil(t, entry)
			require.Error(t, err)
			assert.True(t, models.IsCode(err, tt.expectedCode))
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestEntryRepository_TransitionFromPending(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewEntryRepository(db)
	ctx := context.Background()

	author := createUser(t, db, "author", "Author")
	e := createEntry(t, db, author.ID, "kyoto", models.StatusPending, time.Now())

	now := time.Now().UTC()
	reviewer := uint(42)
	got, err := repo.TransitionFromPending(ctx, e.ID, map[string]interface{}{
		"status":        models.StatusApproved,
		"approved_at":   now,
		"reviewed_by":   reviewer,
		"reviewed_at":   now,
		"reject_reason": nil,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, got.Status)
	require.NotNil(t, got.ReviewedBy)
	assert.Equal(t, reviewer, *got.ReviewedBy)
	assert.NotNil(t, got.ApprovedAt)

	_, err = repo.TransitionFromPending(ctx, e.ID, map[string]interface{}{"status": models.StatusRejected})
	assert.True(t, models.IsCode(err, models.CodeInvalidState), "second decision must lose")
	assert.Equal(t, models.StatusApproved, reloadEntry(t, db, e.ID).Status)
}

func TestEntryRepository_UpdateKeepsCounters(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewEntryRepository(db)
	ctx := context.Background()

	author := createUser(t, db, "author", "Author")
	e := createEntry(t, db, author.ID, "lijiang", models.StatusApproved, time.Now())

	stale, err := repo.GetByID(ctx, e.ID)
	require.NoError(t, err)

	// A like lands between load and save.
	require.NoError(t, db.Model(&models.Entry{}).Where("id = ?", e.ID).UpdateColumn("like_count", 3).Error)

	stale.Title = "Lijiang old town"
	stale.Video = nil
	stale.Status = models.StatusPending
	require.NoError(t, repo.Update(ctx, stale))

	fresh := reloadEntry(t, db, e.ID)
	assert.Equal(t, "Lijiang old town", fresh.Title)
	assert.Equal(t, models.StatusPending, fresh.Status)
	assert.Equal(t, int64(3), fresh.LikeCount)
}

func TestEntryRepository_GetByID_NotFound(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewEntryRepository(db)

	_, err := repo.GetByID(context.Background(), 12345)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestEntryRepository_ListFilters(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewEntryRepository(db)
	ctx := context.Background()

	alice := createUser(t, db, "alice", "Alice")
	bob := createUser(t, db, "bob", "Bob")
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	createEntry(t, db, alice.ID, "Hiking Huangshan", models.StatusApproved, base)
	createEntry(t, db, alice.ID, "Rainy Hangzhou", models.StatusApproved, base.Add(time.Hour))
	createEntry(t, db, bob.ID, "100% fun in Sanya", models.StatusApproved, base.Add(2*time.Hour))
	createEntry(t, db, bob.ID, "Hidden draft", models.StatusPending, base.Add(3*time.Hour))

	items, total, err := repo.List(ctx, EntryFilter{Status: models.StatusApproved}, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, items, 2)
	assert.Equal(t, "100% fun in Sanya", items[0].Title, "newest first")

	items, total, err = repo.List(ctx, EntryFilter{Status: models.StatusApproved}, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, items, 1)
	assert.Equal(t, "Hiking Huangshan", items[0].Title)

	items, total, err = repo.List(ctx, EntryFilter{Status: models.StatusApproved, Keyword: "HANG"}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total, "case-insensitive match")
	assert.Equal(t, "Rainy Hangzhou", items[0].Title)

	_, total, err = repo.List(ctx, EntryFilter{Status: models.StatusApproved, Keyword: "%"}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total, "wildcards in the keyword are literal")

	_, total, err = repo.List(ctx, EntryFilter{AuthorID: bob.ID}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	_, total, err = repo.List(ctx, EntryFilter{AuthorID: bob.ID, Status: models.StatusPending}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestEntryRepository_ListAllRequireLocation(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewEntryRepository(db)
	ctx := context.Background()

	author := createUser(t, db, "author", "Author")
	lat, lng := 30.25, 120.16
	located := createEntry(t, db, author.ID, "west-lake", models.StatusApproved, time.Now())
	require.NoError(t, db.Model(located).Updates(map[string]interface{}{
		"location_latitude":  lat,
		"location_longitude": lng,
	}).Error)
	createEntry(t, db, author.ID, "nowhere", models.StatusApproved, time.Now())

	all, err := repo.ListAll(ctx, EntryFilter{Status: models.StatusApproved})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	withLoc, err := repo.ListAll(ctx, EntryFilter{Status: models.StatusApproved, RequireLocation: true})
	require.NoError(t, err)
	require.Len(t, withLoc, 1)
	assert.True(t, withLoc[0].Location.HasCoordinates())
}

func TestEntryRepository_SearchApproved(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewEntryRepository(db)
	ctx := context.Background()

	nomad := createUser(t, db, "nomad", "DesertNomad")
	other := createUser(t, db, "other", "Someone")
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	createEntry(t, db, nomad.ID, "Dunhuang", models.StatusApproved, base)
	createEntry(t, db, other.ID, "Crossing the desert", models.StatusApproved, base.Add(time.Hour))
	createEntry(t, db, nomad.ID, "Unreviewed desert trip", models.StatusPending, base.Add(2*time.Hour))
	createEntry(t, db, other.ID, "Harbin ice", models.StatusApproved, base.Add(3*time.Hour))

	items, total, err := repo.SearchApproved(ctx, "desert", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total, "title match plus nickname match, pending excluded")
	require.Len(t, items, 2)
	assert.Equal(t, "Crossing the desert", items[0].Title)
	assert.Equal(t, "Dunhuang", items[1].Title)
}

func TestEntryRepository_DeleteCascade(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewEntryRepository(db)
	ctx := context.Background()

	author := createUser(t, db, "author", "Author")
	fan := createUser(t, db, "fan", "Fan")
	e := createEntry(t, db, author.ID, "xian", models.StatusApproved, time.Now())
	keep := createEntry(t, db, author.ID, "keep", models.StatusApproved, time.Now())

	top := &models.Comment{EntryID: e.ID, UserID: fan.ID, Content: "wow"}
	require.NoError(t, db.Create(top).Error)
	reply := &models.Comment{EntryID: e.ID, UserID: author.ID, Content: "thanks", ParentID: &top.ID}
	require.NoError(t, db.Create(reply).Error)
	require.NoError(t, db.Create(&models.CommentLike{CommentID: reply.ID, UserID: fan.ID}).Error)
	require.NoError(t, db.Create(&models.Like{EntryID: e.ID, UserID: fan.ID}).Error)
	require.NoError(t, db.Create(&models.Favorite{EntryID: e.ID, UserID: fan.ID}).Error)
	require.NoError(t, db.Create(&models.Like{EntryID: keep.ID, UserID: fan.ID}).Error)

	require.NoError(t, repo.DeleteCascade(ctx, e.ID))
	require.NoError(t, repo.DeleteCascade(ctx, e.ID), "re-running is safe")

	var n int64
	db.Model(&models.Entry{}).Where("id = ?", e.ID).Count(&n)
	assert.Zero(t, n)
	db.Model(&models.Comment{}).Where("entry_id = ?", e.ID).Count(&n)
	assert.Zero(t, n)
	db.Model(&models.CommentLike{}).Count(&n)
	assert.Zero(t, n)
	db.Model(&models.Favorite{}).Count(&n)
	assert.Zero(t, n)
	db.Model(&models.Like{}).Count(&n)
	assert.Equal(t, int64(1), n, "other entries keep their likes")
}
