package service

import (
	"context"
	"strings"
	"testing"

	"github.com/traveldairy2025nju/td-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommentService_AddComment(t *testing.T) {
	env := newTestEnv(t, "")
	ctx := context.Background()
	entry := env.createEntry(t, env.author.ID, "Huangshan", models.StatusApproved)
	other := env.createEntry(t, env.author.ID, "Elsewhere", models.StatusApproved)

	top, err := env.commentSvc.AddComment(ctx, CreateCommentInput{EntryID: entry.ID, UserID: env.reader.ID, Content: "  Stunning sunrise  "})
	require.NoError(t, err)
	assert.Equal(t, "Stunning sunrise", top.Content)
	assert.Nil(t, top.ParentID)
	require.NotNil(t, top.Author)
	assert.Equal(t, "Reader", top.Author.Nickname)

	reply, err := env.commentSvc.AddComment(ctx, CreateCommentInput{EntryID: entry.ID, UserID: env.author.ID, Content: "Thanks!", ParentID: uintPtr(top.ID)})
	require.NoError(t, err)
	require.NotNil(t, reply.ParentID)
	assert.Equal(t, top.ID, *reply.ParentID)

	nested, err := env.commentSvc.AddComment(ctx, CreateCommentInput{EntryID: entry.ID, UserID: env.reader.ID, Content: "You're welcome", ParentID: uintPtr(reply.ID)})
	require.NoError(t, err)
	require.NotNil(t, nested.ParentID)
	assert.Equal(t, top.ID, *nested.ParentID, "replies to replies attach to the thread root")

	assert.Equal(t, int64(3), env.reload(t, entry.ID).CommentCount)

	t.Run("parent on another entry", func(t *testing.T) {
		_, err := env.commentSvc.AddComment(ctx, CreateCommentInput{EntryID: other.ID, UserID: env.reader.ID, Content: "hi", ParentID: uintPtr(top.ID)})
		assertValidationError(t, err)
	})

	t.Run("missing parent", func(t *testing.T) {
		_, err := env.commentSvc.AddComment(ctx, CreateCommentInput{EntryID: entry.ID, UserID: env.reader.ID, Content: "hi", ParentID: uintPtr(9999)})
		assertCode(t, err, models.CodeNotFound)
	})

	t.Run("empty body", func(t *testing.T) {
		_, err := env.commentSvc.AddComment(ctx, CreateCommentInput{EntryID: entry.ID, UserID: env.reader.ID, Content: " \n "})
		assertValidationError(t, err)
	})

	t.Run("body too long", func(t *testing.T) {
		_, err := env.commentSvc.AddComment(ctx, CreateCommentInput{EntryID: entry.ID, UserID: env.reader.ID, Content: strings.Repeat("好", models.MaxCommentLength+1)})
		assertValidationError(t, err)
	})

	t.Run("longest allowed body counts characters", func(t *testing.T) {
		_, err := env.commentSvc.AddComment(ctx, CreateCommentInput{EntryID: other.ID, UserID: env.reader.ID, Content: strings.Repeat("好", models.MaxCommentLength)})
		require.NoError(t, err)
	})

	assert.Equal(t, int64(3), env.reload(t, entry.ID).CommentCount)
}

func TestCommentService_AddComment_EntryState(t *testing.T) {
	env := newTestEnv(t, "")
	ctx := context.Background()
	pending := env.createEntry(t, env.author.ID, "Pending", models.StatusPending)

	_, err := env.commentSvc.AddComment(ctx, CreateCommentInput{EntryID: pending.ID, UserID: env.reader.ID, Content: "early"})
	assertCode(t, err, models.CodeInvalidState)

	_, err = env.commentSvc.AddComment(ctx, CreateCommentInput{EntryID: 777, UserID: env.reader.ID, Content: "hello"})
	assertCode(t, err, models.CodeNotFound)
}

func TestCommentService_ListComments(t *testing.T) {
	env := newTestEnv(t, "")
	ctx := context.Background()
	entry := env.createEntry(t, env.author.ID, "Sanya", models.StatusApproved)

	add := func(userID uint, content string, parent *uint) *CommentView {
		t.Helper()
		c, err := env.commentSvc.AddComment(ctx, CreateCommentInput{EntryID: entry.ID, UserID: userID, Content: content, ParentID: parent})
		require.NoError(t, err)
		return c
	}

	older := add(env.reader.ID, "older", nil)
	add(env.author.ID, "reply one", uintPtr(older.ID))
	add(env.admin.ID, "reply two", uintPtr(older.ID))
	newer := add(env.admin.ID, "newer", nil)

	_, err := env.commentSvc.ToggleCommentLike(ctx, newer.ID, env.reader.ID)
	require.NoError(t, err)

	page, err := env.commentSvc.ListComments(ctx, entry.ID, 0, PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total, "total counts top-level comments only")
	require.Len(t, page.Items, 2)
	assert.Equal(t, "newer", page.Items[0].Content)
	assert.Empty(t, page.Items[0].Replies)
	assert.NotNil(t, page.Items[0].Replies)
	assert.Nil(t, page.Items[0].Liked)

	thread := page.Items[1]
	assert.Equal(t, "older", thread.Content)
	require.Len(t, thread.Replies, 2)
	assert.Equal(t, "reply one", thread.Replies[0].Content)
	assert.Equal(t, "reply two", thread.Replies[1].Content)
	assert.Equal(t, "Wanderer", thread.Replies[0].Author.Nickname)

	page, err = env.commentSvc.ListComments(ctx, entry.ID, env.reader.ID, PageRequest{Page: 1, PageSize: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Items, 1)
	require.NotNil(t, page.Items[0].Liked)
	assert.True(t, *page.Items[0].Liked)
	assert.Equal(t, int64(1), page.Items[0].LikeCount)

	page, err = env.commentSvc.ListComments(ctx, entry.ID, env.reader.ID, PageRequest{Page: 2, PageSize: 1})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.False(t, *page.Items[0].Liked)
	for _, r := range page.Items[0].Replies {
		require.NotNil(t, r.Liked)
		assert.False(t, *r.Liked)
	}

	_, err = env.commentSvc.ListComments(ctx, 31337, 0, PageRequest{})
	assertCode(t, err, models.CodeNotFound)
}

func TestCommentService_ListComments_HiddenEntry(t *testing.T) {
	env := newTestEnv(t, "")
	ctx := context.Background()
	entry := env.createEntry(t, env.author.ID, "Hulunbuir", models.StatusRejected)

	for _, viewer := range []uint{0, env.reader.ID, 9999} {
		_, err := env.commentSvc.ListComments(ctx, entry.ID, viewer, PageRequest{})
		assertCode(t, err, models.CodeNotFound)
	}

	for _, viewer := range []uint{env.author.ID, env.reviewerUser.ID, env.admin.ID} {
		page, err := env.commentSvc.ListComments(ctx, entry.ID, viewer, PageRequest{})
		require.NoError(t, err)
		assert.Empty(t, page.Items)
	}
}

func TestCommentService_RemoveComment_UnknownRequester(t *testing.T) {
	env := newTestEnv(t, "")
	ctx := context.Background()
	entry := env.createEntry(t, env.author.ID, "Zhangjiajie", models.StatusApproved)
	c, err := env.commentSvc.AddComment(ctx, CreateCommentInput{EntryID: entry.ID, UserID: env.reader.ID, Content: "misty pillars"})
	require.NoError(t, err)

	err = env.commentSvc.RemoveComment(ctx, DeleteCommentInput{UserID: 9999, CommentID: c.ID})
	assertCode(t, err, models.CodeForbidden)
	assert.Equal(t, int64(1), env.reload(t, entry.ID).CommentCount)
}

func TestCommentService_RemoveComment(t *testing.T) {
	env := newTestEnv(t, "")
	ctx := context.Background()
	entry := env.createEntry(t, env.author.ID, "Qingdao", models.StatusApproved)

	top, err := env.commentSvc.AddComment(ctx, CreateCommentInput{EntryID: entry.ID, UserID: env.reader.ID, Content: "beer festival"})
	require.NoError(t, err)
	reply, err := env.commentSvc.AddComment(ctx, CreateCommentInput{EntryID: entry.ID, UserID: env.author.ID, Content: "cheers", ParentID: uintPtr(top.ID)})
	require.NoError(t, err)
	keep, err := env.commentSvc.AddComment(ctx, CreateCommentInput{EntryID: entry.ID, UserID: env.author.ID, Content: "unrelated"})
	require.NoError(t, err)
	_, err = env.commentSvc.ToggleCommentLike(ctx, reply.ID, env.reader.ID)
	require.NoError(t, err)
	_, err = env.commentSvc.ToggleCommentLike(ctx, top.ID, env.author.ID)
	require.NoError(t, err)
	require.Equal(t, int64(3), env.reload(t, entry.ID).CommentCount)

	err = env.commentSvc.RemoveComment(ctx, DeleteCommentInput{UserID: env.author.ID, CommentID: top.ID})
	assertCode(t, err, models.CodeForbidden)

	require.NoError(t, env.commentSvc.RemoveComment(ctx, DeleteCommentInput{UserID: env.reader.ID, CommentID: top.ID}))

	assert.Equal(t, int64(1), env.reload(t, entry.ID).CommentCount)
	var likes int64
	require.NoError(t, env.db.Model(&models.CommentLike{}).Count(&likes).Error)
	assert.Zero(t, likes)

	_, err = env.comments.GetByID(ctx, reply.ID)
	assertCode(t, err, models.CodeNotFound)
	_, err = env.comments.GetByID(ctx, keep.ID)
	require.NoError(t, err)

	err = env.commentSvc.RemoveComment(ctx, DeleteCommentInput{UserID: env.reader.ID, CommentID: top.ID})
	assertCode(t, err, models.CodeNotFound)

	require.NoError(t, env.commentSvc.RemoveComment(ctx, DeleteCommentInput{UserID: env.admin.ID, CommentID: keep.ID}))
	assert.Zero(t, env.reload(t, entry.ID).CommentCount)
}

func TestCommentService_ToggleCommentLike(t *testing.T) {
	env := newTestEnv(t, "")
	ctx := context.Background()
	entry := env.createEntry(t, env.author.ID, "Dunhuang", models.StatusApproved)
	c, err := env.commentSvc.AddComment(ctx, CreateCommentInput{EntryID: entry.ID, UserID: env.reader.ID, Content: "dunes"})
	require.NoError(t, err)

	res, err := env.commentSvc.ToggleCommentLike(ctx, c.ID, env.author.ID)
	require.NoError(t, err)
	assert.Equal(t, &LikeResult{Liked: true, LikeCount: 1}, res)

	res, err = env.commentSvc.ToggleCommentLike(ctx, c.ID, env.author.ID)
	require.NoError(t, err)
	assert.Equal(t, &LikeResult{Liked: false, LikeCount: 0}, res)

	_, err = env.commentSvc.ToggleCommentLike(ctx, 5150, env.author.ID)
	assertCode(t, err, models.CodeNotFound)

	_, err = env.entrySvc.Update(ctx, UpdateEntryInput{EntryID: entry.ID, EditorID: env.author.ID, Title: "Dunhuang revisited"})
	require.NoError(t, err)
	_, err = env.commentSvc.ToggleCommentLike(ctx, c.ID, env.author.ID)
	assertCode(t, err, models.CodeInvalidState)
}
