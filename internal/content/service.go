// ABOUTME: Content graph service for news, comments, replies and likes
// ABOUTME: Every read and mutation is checked against the row policy before touching the store

package content

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/2389/commons/internal/policy"
	"github.com/2389/commons/internal/store"
)

// ErrInvalidInput is wrapped by every validation error.
var ErrInvalidInput = errors.New("invalid input")

var (
	ErrTitleRequired = fmt.Errorf("%w: title is required", ErrInvalidInput)
	ErrTextRequired  = fmt.Errorf("%w: text is required", ErrInvalidInput)
	ErrTextTooLong   = fmt.Errorf("%w: text exceeds %d characters", ErrInvalidInput, maxTextLength)
	ErrUnknownKind   = fmt.Errorf("%w: unknown like kind", ErrInvalidInput)
	ErrInvalidOwner  = fmt.Errorf("%w: owner must be an existing admin account", ErrInvalidInput)
	// ErrUnlikeNotSupported is returned for main-text likes, which cannot be withdrawn.
	ErrUnlikeNotSupported = fmt.Errorf("%w: main text likes cannot be removed", ErrInvalidInput)
)

const (
	maxTitleLength = 200
	maxTextLength  = 5000
)

// Store defines the persistence operations the content service needs.
type Store interface {
	store.ContentStore
	store.LikeStore
	GetAccount(ctx context.Context, id string) (*store.Account, error)
	AppendAuditLog(ctx context.Context, e *store.AuditEntry) error
}

// Service implements the content graph operations.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates a Service.
func NewService(s Store) *Service {
	return &Service{
		store:  s,
		logger: slog.Default().With("component", "content"),
	}
}

// NewsInput is the editable part of a news item.
type NewsInput struct {
	Title       string
	Description string
	Image       string
	Link        string
	// OwnerID ties the item to an admin account; deleting that account
	// deletes the item. Optional.
	OwnerID string
}

func (in *NewsInput) normalize() error {
	in.Title = strings.TrimSpace(in.Title)
	in.Link = strings.TrimSpace(in.Link)
	if in.Title == "" {
		return ErrTitleRequired
	}
	if len(in.Title) > maxTitleLength {
		return fmt.Errorf("%w: title exceeds %d characters", ErrInvalidInput, maxTitleLength)
	}
	return nil
}

func normalizeText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrTextRequired
	}
	if len(text) > maxTextLength {
		return "", ErrTextTooLong
	}
	return text, nil
}

// CreateNews publishes a news item. Admin only.
func (s *Service) CreateNews(ctx context.Context, actor *policy.Actor, in NewsInput) (*store.News, error) {
	if err := s.check(actor, policy.ResourceNews, policy.OpCreate, policy.Row{}); err != nil {
		return nil, err
	}
	if err := in.normalize(); err != nil {
		return nil, err
	}

	n := &store.News{
		ID:          uuid.New().String(),
		Title:       in.Title,
		Description: in.Description,
		Image:       in.Image,
		Link:        in.Link,
		AuthorID:    &actor.ID,
		CreatedAt:   time.Now().UTC(),
	}
	if in.OwnerID != "" {
		if err := s.checkOwner(ctx, in.OwnerID); err != nil {
			return nil, err
		}
		owner := in.OwnerID
		n.AdminID = &owner
	}
	if err := s.store.CreateNews(ctx, n); err != nil {
		return nil, err
	}

	s.audit(ctx, actor, store.AuditCreateNews, "news", n.ID, map[string]any{"title": n.Title})
	s.logger.Info("created news", "id", n.ID, "actor", actor.Username)
	return n, nil
}

// checkOwner rejects owner ids that do not name an admin account.
func (s *Service) checkOwner(ctx context.Context, ownerID string) error {
	owner, err := s.store.GetAccount(ctx, ownerID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrInvalidOwner
	}
	if err != nil {
		return fmt.Errorf("loading news owner: %w", err)
	}
	if !owner.IsAdmin() {
		return ErrInvalidOwner
	}
	return nil
}

// GetNews returns a news item with its counters.
func (s *Service) GetNews(ctx context.Context, id string) (*store.News, error) {
	return s.store.GetNews(ctx, id)
}

// ListNews returns the newest news items first.
func (s *Service) ListNews(ctx context.Context, limit int) ([]*store.News, error) {
	return s.store.ListNews(ctx, limit)
}

// UpdateNews rewrites a news item. Admin only.
func (s *Service) UpdateNews(ctx context.Context, actor *policy.Actor, id string, in NewsInput) (*store.News, error) {
	if err := s.check(actor, policy.ResourceNews, policy.OpUpdate, policy.Row{ID: id}); err != nil {
		return nil, err
	}
	if err := in.normalize(); err != nil {
		return nil, err
	}
	n, err := s.store.GetNews(ctx, id)
	if err != nil {
		return nil, err
	}
	n.Title = in.Title
	n.Description = in.Description
	n.Image = in.Image
	n.Link = in.Link
	if err := s.store.UpdateNews(ctx, n); err != nil {
		return nil, err
	}

	s.audit(ctx, actor, store.AuditUpdateNews, "news", id, nil)
	return n, nil
}

// DeleteNews removes a news item with its comments, replies and likes. Admin only.
func (s *Service) DeleteNews(ctx context.Context, actor *policy.Actor, id string) error {
	if err := s.check(actor, policy.ResourceNews, policy.OpDelete, policy.Row{ID: id}); err != nil {
		return err
	}
	if err := s.store.DeleteNews(ctx, id); err != nil {
		return err
	}
	s.audit(ctx, actor, store.AuditDeleteNews, "news", id, nil)
	s.logger.Info("deleted news", "id", id, "actor", actor.Username)
	return nil
}

// visibleComment loads a comment, reporting store.ErrNotFound when the
// actor may not read it.
func (s *Service) visibleComment(ctx context.Context, actor *policy.Actor, id string) (*store.Comment, error) {
	c, err := s.store.GetComment(ctx, id)
	if err != nil {
		return nil, err
	}
	if !policy.Authorize(actor, policy.ResourceComment, policy.OpRead, policy.CommentRow(c)) {
		return nil, store.ErrNotFound
	}
	return c, nil
}

// AddComment posts a comment on a news item as the actor.
func (s *Service) AddComment(ctx context.Context, actor *policy.Actor, newsID, text string) (*store.Comment, error) {
	if err := s.check(actor, policy.ResourceComment, policy.OpCreate, policy.Row{}); err != nil {
		return nil, err
	}
	text, err := normalizeText(text)
	if err != nil {
		return nil, err
	}

	c := &store.Comment{
		ID:        uuid.New().String(),
		NewsID:    newsID,
		UserID:    &actor.ID,
		Username:  actor.Username,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateComment(ctx, c); err != nil {
		return nil, err
	}
	s.logger.Debug("added comment", "id", c.ID, "news_id", newsID, "actor", actor.Username)
	return c, nil
}

// GetComment returns a comment the actor may read.
func (s *Service) GetComment(ctx context.Context, actor *policy.Actor, id string) (*store.Comment, error) {
	return s.visibleComment(ctx, actor, id)
}

// ListComments returns a news item's comments oldest first. Hidden
// comments are included only for admins.
func (s *Service) ListComments(ctx context.Context, actor *policy.Actor, newsID string) ([]*store.Comment, error) {
	if _, err := s.store.GetNews(ctx, newsID); err != nil {
		return nil, err
	}
	comments, err := s.store.ListComments(ctx, newsID, actor.IsAdmin())
	if err != nil {
		return nil, err
	}
	visible := comments[:0]
	for _, c := range comments {
		if policy.Authorize(actor, policy.ResourceComment, policy.OpRead, policy.CommentRow(c)) {
			visible = append(visible, c)
		}
	}
	return visible, nil
}

// EditComment replaces a comment's text. Allowed for the author and admins.
func (s *Service) EditComment(ctx context.Context, actor *policy.Actor, id, text string) (*store.Comment, error) {
	c, err := s.visibleComment(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := s.check(actor, policy.ResourceComment, policy.OpUpdate, policy.CommentRow(c)); err != nil {
		return nil, err
	}
	text, err = normalizeText(text)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateCommentText(ctx, id, text); err != nil {
		return nil, err
	}
	c.Text = text
	return c, nil
}

// SetCommentHidden hides or reveals a comment. Moderation is admin only.
func (s *Service) SetCommentHidden(ctx context.Context, actor *policy.Actor, id string, hidden bool) error {
	if _, err := s.visibleComment(ctx, actor, id); err != nil {
		return err
	}
	if !actor.IsAdmin() {
		s.logger.Warn("authorization denied", "resource", policy.ResourceComment, "op", "hide", "actor", actorName(actor))
		return fmt.Errorf("hide comment: %w", policy.ErrForbidden)
	}
	if err := s.store.SetCommentHidden(ctx, id, hidden); err != nil {
		return err
	}

	action := store.AuditUnhideComment
	if hidden {
		action = store.AuditHideComment
	}
	s.audit(ctx, actor, action, "comment", id, nil)
	s.logger.Info("updated comment visibility", "id", id, "hidden", hidden, "actor", actor.Username)
	return nil
}

// DeleteComment removes a comment with its replies and likes. Allowed for
// the author and admins.
func (s *Service) DeleteComment(ctx context.Context, actor *policy.Actor, id string) error {
	c, err := s.visibleComment(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.check(actor, policy.ResourceComment, policy.OpDelete, policy.CommentRow(c)); err != nil {
		return err
	}
	return s.store.DeleteComment(ctx, id)
}

// AddReply answers a comment the actor can see.
func (s *Service) AddReply(ctx context.Context, actor *policy.Actor, commentID, text string) (*store.Reply, error) {
	if err := s.check(actor, policy.ResourceReply, policy.OpCreate, policy.Row{}); err != nil {
		return nil, err
	}
	if _, err := s.visibleComment(ctx, actor, commentID); err != nil {
		return nil, err
	}
	text, err := normalizeText(text)
	if err != nil {
		return nil, err
	}

	r := &store.Reply{
		ID:        uuid.New().String(),
		CommentID: commentID,
		UserID:    &actor.ID,
		Username:  actor.Username,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateReply(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// ListReplies returns the replies to a comment the actor can see.
func (s *Service) ListReplies(ctx context.Context, actor *policy.Actor, commentID string) ([]*store.Reply, error) {
	if _, err := s.visibleComment(ctx, actor, commentID); err != nil {
		return nil, err
	}
	return s.store.ListReplies(ctx, commentID)
}

// EditReply replaces a reply's text. Allowed for the author and admins.
func (s *Service) EditReply(ctx context.Context, actor *policy.Actor, id, text string) (*store.Reply, error) {
	r, err := s.store.GetReply(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.check(actor, policy.ResourceReply, policy.OpUpdate, policy.ReplyRow(r)); err != nil {
		return nil, err
	}
	text, err = normalizeText(text)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateReplyText(ctx, id, text); err != nil {
		return nil, err
	}
	r.Text = text
	return r, nil
}

// DeleteReply removes a reply and its likes. Allowed for the author and admins.
func (s *Service) DeleteReply(ctx context.Context, actor *policy.Actor, id string) error {
	r, err := s.store.GetReply(ctx, id)
	if err != nil {
		return err
	}
	if err := s.check(actor, policy.ResourceReply, policy.OpDelete, policy.ReplyRow(r)); err != nil {
		return err
	}
	return s.store.DeleteReply(ctx, id)
}

// check wraps policy.Check with a warning log on denial.
func (s *Service) check(actor *policy.Actor, res policy.Resource, op policy.Operation, row policy.Row) error {
	if err := policy.Check(actor, res, op, row); err != nil {
		s.logger.Warn("authorization denied", "resource", res, "op", op, "actor", actorName(actor))
		return err
	}
	return nil
}

// audit records an admin action. Failures are logged, not returned.
func (s *Service) audit(ctx context.Context, actor *policy.Actor, action store.AuditAction, targetType, targetID string, detail map[string]any) {
	err := s.store.AppendAuditLog(ctx, &store.AuditEntry{
		ActorID:    actor.ID,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Detail:     detail,
	})
	if err != nil {
		s.logger.Warn("failed to append audit log", "action", action, "error", err)
	}
}

func actorName(a *policy.Actor) string {
	if a == nil {
		return "anonymous"
	}
	return a.Username
}
