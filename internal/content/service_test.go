// ABOUTME: Tests for the content service against the memory and SQLite stores
// ABOUTME: Covers policy enforcement, hidden comments, cascades, author nulling and likes

package content

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/commons/internal/policy"
	"github.com/2389/commons/internal/store"
)

type fixture struct {
	svc   *Service
	store store.Store
	admin *policy.Actor
	alice *policy.Actor
	bob   *policy.Actor
}

func eachFixture(t *testing.T, fn func(t *testing.T, f *fixture)) {
	t.Helper()
	t.Run("memory", func(t *testing.T) {
		fn(t, newFixture(t, store.NewMemoryStore()))
	})
	t.Run("sqlite", func(t *testing.T) {
		s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "content.db"))
		require.NoError(t, err)
		fn(t, newFixture(t, s))
	})
}

func newFixture(t *testing.T, s store.Store) *fixture {
	t.Helper()
	t.Cleanup(func() { s.Close() })
	return &fixture{
		svc:   NewService(s),
		store: s,
		admin: createActor(t, s, "adam", store.RoleAdmin),
		alice: createActor(t, s, "alice", store.RoleClient),
		bob:   createActor(t, s, "bob", store.RoleClient),
	}
}

func createActor(t *testing.T, s store.Store, username string, role store.Role) *policy.Actor {
	t.Helper()
	a := &store.Account{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: "x",
		Role:         role,
	}
	require.NoError(t, s.CreateAccount(context.Background(), a))
	return policy.ActorFor(a)
}

func (f *fixture) news(t *testing.T) *store.News {
	t.Helper()
	n, err := f.svc.CreateNews(context.Background(), f.admin, NewsInput{Title: "Hello", Description: "**bold**"})
	require.NoError(t, err)
	return n
}

func TestCreateNews(t *testing.T) {
	eachFixture(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()

		_, err := f.svc.CreateNews(ctx, f.alice, NewsInput{Title: "Nope"})
		assert.ErrorIs(t, err, policy.ErrForbidden)
		_, err = f.svc.CreateNews(ctx, nil, NewsInput{Title: "Nope"})
		assert.ErrorIs(t, err, policy.ErrForbidden)
		_, err = f.svc.CreateNews(ctx, f.admin, NewsInput{Title: "   "})
		assert.ErrorIs(t, err, ErrTitleRequired)

		n := f.news(t)
		require.NotNil(t, n.AuthorID)
		assert.Equal(t, f.admin.ID, *n.AuthorID)

		items, err := f.svc.ListNews(ctx, 0)
		require.NoError(t, err)
		assert.Len(t, items, 1)

		action := store.AuditCreateNews
		entries, err := f.store.ListAuditLog(ctx, store.AuditFilter{Action: &action})
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})
}

func TestCreateNews_Owner(t *testing.T) {
	eachFixture(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()

		_, err := f.svc.CreateNews(ctx, f.admin, NewsInput{Title: "Owned", OwnerID: f.alice.ID})
		assert.ErrorIs(t, err, ErrInvalidOwner)
		assert.ErrorIs(t, err, ErrInvalidInput)

		_, err = f.svc.CreateNews(ctx, f.admin, NewsInput{Title: "Owned", OwnerID: uuid.New().String()})
		assert.ErrorIs(t, err, ErrInvalidOwner)

		items, err := f.svc.ListNews(ctx, 0)
		require.NoError(t, err)
		assert.Empty(t, items)

		n, err := f.svc.CreateNews(ctx, f.admin, NewsInput{Title: "Owned", OwnerID: f.admin.ID})
		require.NoError(t, err)
		require.NotNil(t, n.AdminID)
		assert.Equal(t, f.admin.ID, *n.AdminID)
	})
}

func TestUpdateAndDeleteNews(t *testing.T) {
	eachFixture(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		n := f.news(t)

		_, err := f.svc.UpdateNews(ctx, f.alice, n.ID, NewsInput{Title: "Hacked"})
		assert.ErrorIs(t, err, policy.ErrForbidden)

		updated, err := f.svc.UpdateNews(ctx, f.admin, n.ID, NewsInput{Title: "Edited", Link: "https://example.com"})
		require.NoError(t, err)
		assert.Equal(t, "Edited", updated.Title)

		assert.ErrorIs(t, f.svc.DeleteNews(ctx, f.alice, n.ID), policy.ErrForbidden)
		require.NoError(t, f.svc.DeleteNews(ctx, f.admin, n.ID))
		_, err = f.svc.GetNews(ctx, n.ID)
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestComments_Permissions(t *testing.T) {
	eachFixture(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		n := f.news(t)

		_, err := f.svc.AddComment(ctx, nil, n.ID, "anon")
		assert.ErrorIs(t, err, policy.ErrForbidden)
		_, err = f.svc.AddComment(ctx, f.alice, n.ID, "  ")
		assert.ErrorIs(t, err, ErrTextRequired)
		_, err = f.svc.AddComment(ctx, f.alice, "missing", "hi")
		assert.ErrorIs(t, err, store.ErrNotFound)

		c, err := f.svc.AddComment(ctx, f.alice, n.ID, "first")
		require.NoError(t, err)
		assert.Equal(t, "alice", c.Username)

		_, err = f.svc.EditComment(ctx, f.bob, c.ID, "vandalised")
		assert.ErrorIs(t, err, policy.ErrForbidden)
		assert.ErrorIs(t, f.svc.DeleteComment(ctx, f.bob, c.ID), policy.ErrForbidden)

		edited, err := f.svc.EditComment(ctx, f.alice, c.ID, "first!")
		require.NoError(t, err)
		assert.Equal(t, "first!", edited.Text)

		_, err = f.svc.EditComment(ctx, f.admin, c.ID, "moderated")
		require.NoError(t, err)

		require.NoError(t, f.svc.DeleteComment(ctx, f.alice, c.ID))
		_, err = f.svc.GetComment(ctx, f.admin, c.ID)
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestComments_Hidden(t *testing.T) {
	eachFixture(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		n := f.news(t)
		c, err := f.svc.AddComment(ctx, f.alice, n.ID, "rude")
		require.NoError(t, err)

		assert.ErrorIs(t, f.svc.SetCommentHidden(ctx, f.alice, c.ID, true), policy.ErrForbidden)
		require.NoError(t, f.svc.SetCommentHidden(ctx, f.admin, c.ID, true))

		// Anonymous and non-admin readers get nothing
		_, err = f.svc.GetComment(ctx, nil, c.ID)
		assert.ErrorIs(t, err, store.ErrNotFound)
		_, err = f.svc.GetComment(ctx, f.alice, c.ID)
		assert.ErrorIs(t, err, store.ErrNotFound)
		public, err := f.svc.ListComments(ctx, nil, n.ID)
		require.NoError(t, err)
		assert.Empty(t, public)

		// Admin gets it
		got, err := f.svc.GetComment(ctx, f.admin, c.ID)
		require.NoError(t, err)
		assert.True(t, got.Hidden)
		all, err := f.svc.ListComments(ctx, f.admin, n.ID)
		require.NoError(t, err)
		assert.Len(t, all, 1)

		// Hidden comments cannot be replied to, edited or liked by non-admins
		_, err = f.svc.AddReply(ctx, f.bob, c.ID, "me too")
		assert.ErrorIs(t, err, store.ErrNotFound)
		_, err = f.svc.EditComment(ctx, f.alice, c.ID, "sorry")
		assert.ErrorIs(t, err, store.ErrNotFound)
		_, err = f.svc.Like(ctx, f.bob, store.LikeComment, c.ID)
		assert.ErrorIs(t, err, store.ErrNotFound)

		require.NoError(t, f.svc.SetCommentHidden(ctx, f.admin, c.ID, false))
		public, err = f.svc.ListComments(ctx, nil, n.ID)
		require.NoError(t, err)
		assert.Len(t, public, 1)
	})
}

func TestListComments_MissingNews(t *testing.T) {
	eachFixture(t, func(t *testing.T, f *fixture) {
		_, err := f.svc.ListComments(context.Background(), nil, "missing")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestReplies(t *testing.T) {
	eachFixture(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		n := f.news(t)
		c, err := f.svc.AddComment(ctx, f.alice, n.ID, "question")
		require.NoError(t, err)

		_, err = f.svc.AddReply(ctx, nil, c.ID, "anon")
		assert.ErrorIs(t, err, policy.ErrForbidden)

		r, err := f.svc.AddReply(ctx, f.bob, c.ID, "answer")
		require.NoError(t, err)

		replies, err := f.svc.ListReplies(ctx, nil, c.ID)
		require.NoError(t, err)
		require.Len(t, replies, 1)
		assert.Equal(t, "bob", replies[0].Username)

		_, err = f.svc.EditReply(ctx, f.alice, r.ID, "changed")
		assert.ErrorIs(t, err, policy.ErrForbidden)
		_, err = f.svc.EditReply(ctx, f.bob, r.ID, "better answer")
		require.NoError(t, err)

		assert.ErrorIs(t, f.svc.DeleteReply(ctx, f.alice, r.ID), policy.ErrForbidden)
		require.NoError(t, f.svc.DeleteReply(ctx, f.admin, r.ID))
		assert.ErrorIs(t, f.svc.DeleteReply(ctx, f.admin, r.ID), store.ErrNotFound)
	})
}

func TestLike_Twice(t *testing.T) {
	eachFixture(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		n := f.news(t)

		count, err := f.svc.Like(ctx, f.alice, store.LikeNews, n.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		_, err = f.svc.Like(ctx, f.alice, store.LikeNews, n.ID)
		assert.ErrorIs(t, err, store.ErrAlreadyLiked)

		count, err = f.svc.LikeCount(ctx, store.LikeNews, n.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		count, err = f.svc.Like(ctx, f.bob, store.LikeNews, n.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})
}

func TestLike_Permissions(t *testing.T) {
	eachFixture(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		n := f.news(t)

		_, err := f.svc.Like(ctx, nil, store.LikeNews, n.ID)
		assert.ErrorIs(t, err, policy.ErrForbidden)
		_, err = f.svc.Like(ctx, f.alice, store.LikeKind("post"), n.ID)
		assert.ErrorIs(t, err, ErrUnknownKind)
		_, err = f.svc.Like(ctx, f.alice, store.LikeReply, "missing")
		assert.ErrorIs(t, err, store.ErrNotFound)

		_, err = f.svc.Unlike(ctx, f.alice, store.LikeNews, n.ID)
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestUnlike(t *testing.T) {
	eachFixture(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		n := f.news(t)
		c, err := f.svc.AddComment(ctx, f.alice, n.ID, "hi")
		require.NoError(t, err)

		_, err = f.svc.Like(ctx, f.bob, store.LikeComment, c.ID)
		require.NoError(t, err)
		count, err := f.svc.Unlike(ctx, f.bob, store.LikeComment, c.ID)
		require.NoError(t, err)
		assert.Zero(t, count)

		liked, err := f.svc.HasLiked(ctx, f.bob, store.LikeComment, c.ID)
		require.NoError(t, err)
		assert.False(t, liked)
	})
}

func TestMainTextLikes(t *testing.T) {
	eachFixture(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()

		count, err := f.svc.Like(ctx, f.alice, store.LikeMainText, "home")
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		_, err = f.svc.Unlike(ctx, f.alice, store.LikeMainText, "home")
		assert.ErrorIs(t, err, ErrUnlikeNotSupported)

		liked, count, err := f.svc.Toggle(ctx, f.alice, store.LikeMainText, "home")
		require.NoError(t, err)
		assert.True(t, liked)
		assert.Equal(t, 1, count)
	})
}

func TestToggle(t *testing.T) {
	eachFixture(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		n := f.news(t)

		liked, count, err := f.svc.Toggle(ctx, f.alice, store.LikeNews, n.ID)
		require.NoError(t, err)
		assert.True(t, liked)
		assert.Equal(t, 1, count)

		liked, count, err = f.svc.Toggle(ctx, f.alice, store.LikeNews, n.ID)
		require.NoError(t, err)
		assert.False(t, liked)
		assert.Zero(t, count)

		_, _, err = f.svc.Toggle(ctx, nil, store.LikeNews, n.ID)
		assert.ErrorIs(t, err, policy.ErrForbidden)
	})
}

func TestDeleteNews_CascadesThroughGraph(t *testing.T) {
	eachFixture(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		n := f.news(t)
		c, err := f.svc.AddComment(ctx, f.alice, n.ID, "hi")
		require.NoError(t, err)
		r, err := f.svc.AddReply(ctx, f.bob, c.ID, "hello")
		require.NoError(t, err)
		_, err = f.svc.Like(ctx, f.bob, store.LikeComment, c.ID)
		require.NoError(t, err)
		_, err = f.svc.Like(ctx, f.alice, store.LikeReply, r.ID)
		require.NoError(t, err)

		require.NoError(t, f.svc.DeleteNews(ctx, f.admin, n.ID))

		_, err = f.svc.GetComment(ctx, f.admin, c.ID)
		assert.ErrorIs(t, err, store.ErrNotFound)
		count, err := f.svc.LikeCount(ctx, store.LikeReply, r.ID)
		require.NoError(t, err)
		assert.Zero(t, count)
	})
}

func TestAuthorDeletion_KeepsContent(t *testing.T) {
	eachFixture(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		n := f.news(t)
		c, err := f.svc.AddComment(ctx, f.alice, n.ID, "still here")
		require.NoError(t, err)

		require.NoError(t, f.store.DeleteAccount(ctx, "alice"))
		require.NoError(t, f.store.DeleteAccount(ctx, "adam"))

		got, err := f.svc.GetNews(ctx, n.ID)
		require.NoError(t, err)
		assert.Nil(t, got.AuthorID)

		comment, err := f.svc.GetComment(ctx, nil, c.ID)
		require.NoError(t, err)
		assert.Nil(t, comment.UserID)

		// Orphaned comments are moderated by admins only
		_, err = f.svc.EditComment(ctx, f.bob, c.ID, "mine now")
		assert.ErrorIs(t, err, policy.ErrForbidden)
	})
}

func TestRenderMarkdown(t *testing.T) {
	html, err := RenderMarkdown("**bold** and <script>alert(1)</script>")
	require.NoError(t, err)
	assert.Contains(t, html, "<strong>bold</strong>")
	assert.NotContains(t, html, "<script>")
}
