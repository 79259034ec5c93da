// ABOUTME: Like relation persistence across the four like tables
// ABOUTME: The (target, actor) UNIQUE constraint makes AddLike check-and-insert atomic

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// likeTable returns the table and target column for a like kind.
func likeTable(kind LikeKind) (table, column string, err error) {
	switch kind {
	case LikeNews:
		return "news_likes", "news_id", nil
	case LikeComment:
		return "comment_likes", "comment_id", nil
	case LikeReply:
		return "reply_likes", "reply_id", nil
	case LikeMainText:
		return "main_text_likes", "page", nil
	default:
		return "", "", fmt.Errorf("unknown like kind %q", kind)
	}
}

// AddLike records a like. Returns ErrAlreadyLiked if the actor already liked
// the target and ErrNotFound if the target row does not exist.
func (s *SQLStore) AddLike(ctx context.Context, l *Like) error {
	table, column, err := likeTable(l.Kind)
	if err != nil {
		return err
	}
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO ` + table + ` (id, ` + column + `, user_id, created_at) VALUES (?, ?, ?, ?)`
	_, err = s.exec(ctx, query, l.ID, l.TargetID, l.UserID, formatTime(l.CreatedAt))
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrAlreadyLiked
		}
		return classify("inserting like", err)
	}

	s.logger.Debug("added like", "kind", l.Kind, "target", l.TargetID, "user_id", l.UserID)
	return nil
}

// RemoveLike deletes the actor's like on the target.
// Returns ErrNotFound if there was none.
func (s *SQLStore) RemoveLike(ctx context.Context, kind LikeKind, targetID, userID string) error {
	table, column, err := likeTable(kind)
	if err != nil {
		return err
	}
	result, err := s.exec(ctx, `DELETE FROM `+table+` WHERE `+column+` = ? AND user_id = ?`, targetID, userID)
	if err != nil {
		return classify("deleting like", err)
	}
	if err := checkAffected(result); err != nil {
		return err
	}
	s.logger.Debug("removed like", "kind", kind, "target", targetID, "user_id", userID)
	return nil
}

// HasLiked reports whether the actor liked the target.
func (s *SQLStore) HasLiked(ctx context.Context, kind LikeKind, targetID, userID string) (bool, error) {
	table, column, err := likeTable(kind)
	if err != nil {
		return false, err
	}
	var count int
	err = s.queryRow(ctx, `SELECT COUNT(*) FROM `+table+` WHERE `+column+` = ? AND user_id = ?`, targetID, userID).Scan(&count)
	if err != nil {
		return false, classify("checking like", err)
	}
	return count > 0, nil
}

// CountLikes returns the number of likes on the target.
func (s *SQLStore) CountLikes(ctx context.Context, kind LikeKind, targetID string) (int, error) {
	table, column, err := likeTable(kind)
	if err != nil {
		return 0, err
	}
	var count int
	err = s.queryRow(ctx, `SELECT COUNT(*) FROM `+table+` WHERE `+column+` = ?`, targetID).Scan(&count)
	if err != nil {
		return 0, classify("counting likes", err)
	}
	return count, nil
}
