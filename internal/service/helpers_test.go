package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/traveldairy2025nju/td-backend/internal/database"
	"github.com/traveldairy2025nju/td-backend/internal/featureflags"
	"github.com/traveldairy2025nju/td-backend/internal/models"
	"github.com/traveldairy2025nju/td-backend/internal/notifications"
	"github.com/traveldairy2025nju/td-backend/internal/repository"
	"github.com/traveldairy2025nju/td-backend/internal/review"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func assertValidationError(t *testing.T, err error) {
	t.Helper()
	assertCode(t, err, models.CodeValidation)
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	require.Equal(t, code, appErr.Code, appErr.Message)
}

type reviewerStub struct {
	verdict *review.Verdict
	err     error
	calls   int
}

func (r *reviewerStub) Review(_ context.Context, _, _ string) (*review.Verdict, error) {
	r.calls++
	return r.verdict, r.err
}

type notifierStub struct {
	mu      sync.Mutex
	err     error
	authors []uint
	notices []notifications.ModerationNotice
}

func (n *notifierStub) PublishModerationDecision(_ context.Context, authorID uint, notice notifications.ModerationNotice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.authors = append(n.authors, authorID)
	n.notices = append(n.notices, notice)
	return n.err
}

// testEnv wires every service over one in-memory database.
type testEnv struct {
	db         *gorm.DB
	entries    repository.EntryRepository
	users      repository.UserRepository
	engagement repository.EngagementRepository
	comments   repository.CommentRepository

	entrySvc      *EntryService
	moderationSvc *ModerationService
	engagementSvc *EngagementService
	commentSvc    *CommentService
	discoverySvc  *DiscoveryService

	reviewer *reviewerStub
	notifier *notifierStub

	author, reader, reviewerUser, admin *models.User
}

func newTestEnv(t *testing.T, flags string) *testEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(database.PersistentModels()...))

	env := &testEnv{
		db:         db,
		entries:    repository.NewEntryRepository(db),
		users:      repository.NewUserRepository(db),
		engagement: repository.NewEngagementRepository(db),
		comments:   repository.NewCommentRepository(db),
		reviewer:   &reviewerStub{verdict: &review.Verdict{Approved: true, Reason: "looks fine"}},
		notifier:   &notifierStub{},
	}

	env.author = env.createUser(t, "wanderer", "Wanderer", models.RoleUser)
	env.reader = env.createUser(t, "reader", "Reader", models.RoleUser)
	env.reviewerUser = env.createUser(t, "reviewer", "Reviewer", models.RoleReviewer)
	env.admin = env.createUser(t, "admin", "Admin", models.RoleAdmin)

	roleIs := func(check func(models.Role) bool) func(context.Context, uint) (bool, error) {
		return func(ctx context.Context, userID uint) (bool, error) {
			u, err := env.users.GetByID(ctx, userID)
			if err != nil {
				return false, err
			}
			return check(u.Role), nil
		}
	}
	isAdmin := roleIs(func(r models.Role) bool { return r == models.RoleAdmin })
	canModerate := roleIs(models.Role.CanModerate)

	env.entrySvc = NewEntryService(env.entries, env.users, featureflags.NewManager(flags), isAdmin, canModerate)
	env.moderationSvc = NewModerationService(env.entries, env.users, env.reviewer, env.notifier)
	env.engagementSvc = NewEngagementService(env.entries, env.engagement, env.users)
	env.commentSvc = NewCommentService(env.comments, env.entries, env.users, isAdmin, canModerate)
	env.discoverySvc = NewDiscoveryService(env.entries, env.users)
	return env
}

func (env *testEnv) createUser(t *testing.T, username, nickname string, role models.Role) *models.User {
	t.Helper()
	u := &models.User{Username: username, Nickname: nickname, Role: role}
	require.NoError(t, env.db.Create(u).Error)
	return u
}

type entryOpt func(*models.Entry)

func at(lat, lng float64) entryOpt {
	return func(e *models.Entry) {
		e.Location = models.Location{Name: "somewhere", Latitude: &lat, Longitude: &lng}
	}
}

func createdAt(ts time.Time) entryOpt {
	return func(e *models.Entry) { e.CreatedAt = ts }
}

func (env *testEnv) createEntry(t *testing.T, authorID uint, title string, status models.EntryStatus, opts ...entryOpt) *models.Entry {
	t.Helper()
	e := &models.Entry{
		Title:    title,
		Content:  "Notes from " + title,
		Images:   []string{"https://cdn.example.com/" + title + ".jpg"},
		AuthorID: authorID,
		Status:   status,
	}
	for _, opt := range opts {
		opt(e)
	}
	require.NoError(t, env.db.Create(e).Error)
	return e
}

func (env *testEnv) reload(t *testing.T, id uint) *models.Entry {
	t.Helper()
	var e models.Entry
	require.NoError(t, env.db.First(&e, id).Error)
	return &e
}

func uintPtr(v uint) *uint {
	return &v
}
