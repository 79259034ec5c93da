// ABOUTME: Like and unlike operations over the four like relations
// ABOUTME: A like is created once per (target, actor); main text likes cannot be withdrawn

package content

import (
	"context"
	"errors"

	"github.com/2389/commons/internal/policy"
	"github.com/2389/commons/internal/store"
)

// checkTarget verifies the like target exists and is visible to the actor.
// Main text pages are free-form names and always exist.
func (s *Service) checkTarget(ctx context.Context, actor *policy.Actor, kind store.LikeKind, targetID string) error {
	switch kind {
	case store.LikeNews:
		_, err := s.store.GetNews(ctx, targetID)
		return err
	case store.LikeComment:
		_, err := s.visibleComment(ctx, actor, targetID)
		return err
	case store.LikeReply:
		_, err := s.store.GetReply(ctx, targetID)
		return err
	case store.LikeMainText:
		if targetID == "" {
			return ErrTextRequired
		}
		return nil
	default:
		return ErrUnknownKind
	}
}

// Like records the actor's like on the target and returns the new count.
// A repeat like fails with store.ErrAlreadyLiked and changes nothing.
func (s *Service) Like(ctx context.Context, actor *policy.Actor, kind store.LikeKind, targetID string) (int, error) {
	if !kind.Valid() {
		return 0, ErrUnknownKind
	}
	if actor == nil {
		return 0, s.check(nil, policy.ResourceLike, policy.OpCreate, policy.Row{})
	}
	if err := s.check(actor, policy.ResourceLike, policy.OpCreate, policy.LikeRow(actor.ID)); err != nil {
		return 0, err
	}
	if err := s.checkTarget(ctx, actor, kind, targetID); err != nil {
		return 0, err
	}

	if err := s.store.AddLike(ctx, &store.Like{Kind: kind, TargetID: targetID, UserID: actor.ID}); err != nil {
		return 0, err
	}
	return s.store.CountLikes(ctx, kind, targetID)
}

// Unlike withdraws the actor's like and returns the new count. Returns
// store.ErrNotFound if the actor had not liked the target.
func (s *Service) Unlike(ctx context.Context, actor *policy.Actor, kind store.LikeKind, targetID string) (int, error) {
	if !kind.Valid() {
		return 0, ErrUnknownKind
	}
	if kind == store.LikeMainText {
		return 0, ErrUnlikeNotSupported
	}
	if actor == nil {
		return 0, s.check(nil, policy.ResourceLike, policy.OpDelete, policy.Row{})
	}
	if err := s.check(actor, policy.ResourceLike, policy.OpDelete, policy.LikeRow(actor.ID)); err != nil {
		return 0, err
	}

	if err := s.store.RemoveLike(ctx, kind, targetID, actor.ID); err != nil {
		return 0, err
	}
	return s.store.CountLikes(ctx, kind, targetID)
}

// Toggle likes the target if the actor has not, and unlikes it otherwise.
// Main text likes only ever turn on.
func (s *Service) Toggle(ctx context.Context, actor *policy.Actor, kind store.LikeKind, targetID string) (bool, int, error) {
	if !kind.Valid() {
		return false, 0, ErrUnknownKind
	}
	has, err := s.HasLiked(ctx, actor, kind, targetID)
	if err != nil {
		return false, 0, err
	}
	if has && kind != store.LikeMainText {
		count, err := s.Unlike(ctx, actor, kind, targetID)
		return false, count, err
	}

	count, err := s.Like(ctx, actor, kind, targetID)
	if errors.Is(err, store.ErrAlreadyLiked) && kind == store.LikeMainText {
		count, err = s.store.CountLikes(ctx, kind, targetID)
		return err == nil, count, err
	}
	return err == nil, count, err
}

// LikeCount returns the number of likes on the target.
func (s *Service) LikeCount(ctx context.Context, kind store.LikeKind, targetID string) (int, error) {
	if !kind.Valid() {
		return 0, ErrUnknownKind
	}
	return s.store.CountLikes(ctx, kind, targetID)
}

// HasLiked reports whether the actor liked the target. Always false for
// anonymous actors.
func (s *Service) HasLiked(ctx context.Context, actor *policy.Actor, kind store.LikeKind, targetID string) (bool, error) {
	if actor == nil {
		return false, nil
	}
	if !kind.Valid() {
		return false, ErrUnknownKind
	}
	return s.store.HasLiked(ctx, kind, targetID, actor.ID)
}
