package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/traveldairy2025nju/td-backend/internal/config"
	"github.com/traveldairy2025nju/td-backend/internal/database"
	"github.com/traveldairy2025nju/td-backend/internal/models"
	"github.com/traveldairy2025nju/td-backend/internal/repository"
	"github.com/traveldairy2025nju/td-backend/internal/review"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const testJWTSecret = "test-secret-that-is-long-enough-for-hs256"

// MockReviewer is a mock of review.Reviewer.
type MockReviewer struct {
	mock.Mock
}

func (m *MockReviewer) Review(ctx context.Context, title, content string) (*review.Verdict, error) {
	args := m.Called(ctx, title, content)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*review.Verdict), args.Error(1)
}

// MockBlobStore is a mock of storage.BlobStore.
type MockBlobStore struct {
	mock.Mock
}

func (m *MockBlobStore) Upload(ctx context.Context, filename string, data []byte, contentType string) (string, error) {
	args := m.Called(ctx, filename, data, contentType)
	return args.String(0), args.Error(1)
}

type apiHarness struct {
	t        *testing.T
	db       *gorm.DB
	app      *fiber.App
	reviewer *MockReviewer
	blobs    *MockBlobStore

	author, reader, reviewerUser, admin *models.User
}

func newAPIHarness(t *testing.T, flags string) *apiHarness {
	t.Helper()
	t.Setenv("APP_ENV", "test")

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(database.PersistentModels()...))

	h := &apiHarness{t: t, db: db, reviewer: &MockReviewer{}, blobs: &MockBlobStore{}}
	cfg := &config.Config{
		Env:             "test",
		JWTSecret:       testJWTSecret,
		FeatureFlags:    flags,
		UploadMaxSizeMB: 1,
	}
	srv, err := NewServerWithDeps(cfg, db, nil, WithReviewer(h.reviewer), WithBlobStore(h.blobs))
	require.NoError(t, err)
	h.app = srv.App()

	h.author = h.user("wanderer", "Wanderer", models.RoleUser)
	h.reader = h.user("reader", "Reader", models.RoleUser)
	h.reviewerUser = h.user("reviewer", "Reviewer", models.RoleReviewer)
	h.admin = h.user("admin", "Admin", models.RoleAdmin)
	return h
}

func (h *apiHarness) user(username, nickname string, role models.Role) *models.User {
	h.t.Helper()
	u := &models.User{Username: username, Nickname: nickname, Role: role}
	require.NoError(h.t, h.db.Create(u).Error)
	return u
}

func (h *apiHarness) entry(authorID uint, title string, status models.EntryStatus, loc *models.Location) *models.Entry {
	h.t.Helper()
	e := &models.Entry{
		Title:    title,
		Content:  "Notes from " + title,
		Images:   []string{"https://cdn.example.com/" + title + ".jpg"},
		AuthorID: authorID,
		Status:   status,
	}
	if loc != nil {
		e.Location = *loc
	}
	require.NoError(h.t, h.db.Create(e).Error)
	return e
}

func tokenFor(t *testing.T, userID uint) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": strconv.FormatUint(uint64(userID), 10),
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return signed
}

// do sends a JSON request as user (nil for anonymous) and decodes the body
// into a generic map when out is nil.
func (h *apiHarness) do(method, path string, user *models.User, body interface{}) (int, map[string]interface{}) {
	h.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(h.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != nil {
		req.Header.Set("Authorization", "Bearer "+tokenFor(h.t, user.ID))
	}
	return h.send(req)
}

func (h *apiHarness) send(req *http.Request) (int, map[string]interface{}) {
	h.t.Helper()
	resp, err := h.app.Test(req, -1)
	require.NoError(h.t, err)
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(h.t, err)
	out := map[string]interface{}{}
	if len(raw) > 0 {
		require.NoError(h.t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func items(t *testing.T, page map[string]interface{}) []map[string]interface{} {
	t.Helper()
	raw, ok := page["items"].([]interface{})
	require.True(t, ok, "page has no items: %v", page)
	out := make([]map[string]interface{}, 0, len(raw))
	for _, it := range raw {
		out = append(out, it.(map[string]interface{}))
	}
	return out
}

func idPath(format string, id uint) string {
	return fmt.Sprintf(format, id)
}

// --- humanizeParam ---

func TestHumanizeParam(t *testing.T) {
	tests := []struct {
		param    string
		expected string
	}{
		{"id", "ID"},
		{"entryId", "entry ID"},
		{"commentId", "comment ID"},
		{"parentCommentId", "parent comment ID"},
		{"something", "something"},
	}
	for _, tt := range tests {
		t.Run(tt.param, func(t *testing.T) {
			assert.Equal(t, tt.expected, humanizeParam(tt.param))
		})
	}
}

// --- parsePagination ---

func TestParsePagination(t *testing.T) {
	app := fiber.New()
	app.Get("/items", func(c *fiber.Ctx) error {
		p := parsePagination(c)
		return c.JSON(fiber.Map{"page": p.Page, "pageSize": p.PageSize})
	})

	tests := []struct {
		query    string
		page     float64
		pageSize float64
	}{
		{"", 1, 10},
		{"?page=3&pageSize=25", 3, 25},
		{"?page=0&pageSize=-4", 1, 10},
		{"?pageSize=1000", 1, 100},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/items"+tt.query, nil))
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()

			var body map[string]float64
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tt.page, body["page"])
			assert.Equal(t, tt.pageSize, body["pageSize"])
		})
	}
}

// --- parseID ---

func TestParseID(t *testing.T) {
	tests := []struct {
		path       string
		param      string
		wantStatus int
		wantMsg    string
	}{
		{"/items/42", "id", http.StatusOK, ""},
		{"/items/abc", "id", http.StatusBadRequest, "Invalid ID"},
		{"/items/0", "id", http.StatusBadRequest, "Invalid ID"},
		{"/items/-3", "commentId", http.StatusBadRequest, "Invalid comment ID"},
	}
	for _, tt := range tests {
		t.Run(tt.path+"/"+tt.param, func(t *testing.T) {
			app := fiber.New()
			s := &Server{}
			app.Get("/items/:"+tt.param, func(c *fiber.Ctx) error {
				id, err := s.parseID(c, tt.param)
				if err != nil {
					return nil
				}
				return c.JSON(fiber.Map{"id": id})
			})

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, tt.path, nil))
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			if tt.wantMsg != "" {
				var body map[string]string
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
				assert.Equal(t, tt.wantMsg, body["error"])
				assert.Equal(t, models.CodeValidation, body["code"])
			}
		})
	}
}

// --- respondServiceError ---

func TestRespondServiceError(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{models.NewNotFoundError("Entry", 1), http.StatusNotFound},
		{models.NewForbiddenError("no"), http.StatusForbidden},
		{models.NewUnauthorizedError("who"), http.StatusUnauthorized},
		{models.NewValidationError("bad"), http.StatusBadRequest},
		{models.NewInvalidStateError("not pending"), http.StatusBadRequest},
		{models.NewConstraintError("dup", nil), http.StatusConflict},
		{models.NewReviewUnavailableError(nil), http.StatusGatewayTimeout},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		app := fiber.New()
		app.Get("/", func(c *fiber.Ctx) error { return respondServiceError(c, tt.err) })
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
		require.NoError(t, err)
		assert.Equal(t, tt.status, resp.StatusCode, tt.err.Error())

		var body models.ErrorResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		_ = resp.Body.Close()
		if tt.status == http.StatusInternalServerError {
			assert.NotContains(t, body.Error, "unexpected EOF", "internal details must not leak")
		}
	}
}

// --- role predicates ---

func TestRolePredicates(t *testing.T) {
	h := newAPIHarness(t, "")
	srv := &Server{userRepo: repository.NewUserRepository(h.db)}
	ctx := context.Background()

	tests := []struct {
		userID      uint
		admin       bool
		canModerate bool
	}{
		{h.reader.ID, false, false},
		{h.reviewerUser.ID, false, true},
		{h.admin.ID, true, true},
		{9999, false, false},
	}
	for _, tt := range tests {
		admin, err := srv.isAdminByUserID(ctx, tt.userID)
		require.NoError(t, err, tt.userID)
		assert.Equal(t, tt.admin, admin, tt.userID)

		moderate, err := srv.canModerateByUserID(ctx, tt.userID)
		require.NoError(t, err, tt.userID)
		assert.Equal(t, tt.canModerate, moderate, tt.userID)
	}
}
