// ABOUTME: News, comment and reply persistence for the SQL store
// ABOUTME: Parent deletions cascade in the schema; author deletions null the reference

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const newsSelect = `
	SELECT n.id, n.title, n.description, n.image, n.link, n.author_id, n.admin_id, n.created_at,
	       (SELECT COUNT(*) FROM news_likes l WHERE l.news_id = n.id),
	       (SELECT COUNT(*) FROM comments c WHERE c.news_id = n.id AND c.hidden = FALSE)
	FROM news n
`

func scanNews(row rowScanner) (*News, error) {
	var n News
	var authorID, adminID sql.NullString
	var createdAt string
	if err := row.Scan(&n.ID, &n.Title, &n.Description, &n.Image, &n.Link,
		&authorID, &adminID, &createdAt, &n.LikeCount, &n.CommentCount); err != nil {
		return nil, err
	}
	n.AuthorID = ptrFromNull(authorID)
	n.AdminID = ptrFromNull(adminID)
	var err error
	n.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// CreateNews inserts a news item.
func (s *SQLStore) CreateNews(ctx context.Context, n *News) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	_, err := s.exec(ctx, `
		INSERT INTO news (id, title, description, image, link, author_id, admin_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, n.ID, n.Title, n.Description, n.Image, n.Link,
		nullStringPtr(n.AuthorID), nullStringPtr(n.AdminID), formatTime(n.CreatedAt))
	if err != nil {
		return classify("inserting news", err)
	}
	s.logger.Debug("created news", "id", n.ID, "title", n.Title)
	return nil
}

// GetNews retrieves a news item with its counters.
func (s *SQLStore) GetNews(ctx context.Context, id string) (*News, error) {
	n, err := scanNews(s.queryRow(ctx, newsSelect+` WHERE n.id = ?`, id))
	if err != nil {
		return nil, classify("querying news", err)
	}
	return n, nil
}

// ListNews returns the newest news items first.
func (s *SQLStore) ListNews(ctx context.Context, limit int) ([]*News, error) {
	rows, err := s.query(ctx, newsSelect+` ORDER BY n.created_at DESC LIMIT ?`, normalizeLimit(limit))
	if err != nil {
		return nil, classify("querying news", err)
	}
	defer func() { _ = rows.Close() }()

	items := []*News{}
	for rows.Next() {
		n, err := scanNews(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning news: %w", err)
		}
		items = append(items, n)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterating news", err)
	}
	return items, nil
}

// UpdateNews rewrites the editable fields of a news item.
func (s *SQLStore) UpdateNews(ctx context.Context, n *News) error {
	result, err := s.exec(ctx, `
		UPDATE news SET title = ?, description = ?, image = ?, link = ?
		WHERE id = ?
	`, n.Title, n.Description, n.Image, n.Link, n.ID)
	if err != nil {
		return classify("updating news", err)
	}
	if err := checkAffected(result); err != nil {
		return err
	}
	s.logger.Debug("updated news", "id", n.ID)
	return nil
}

// DeleteNews removes a news item together with its comments, replies and likes.
func (s *SQLStore) DeleteNews(ctx context.Context, id string) error {
	result, err := s.exec(ctx, `DELETE FROM news WHERE id = ?`, id)
	if err != nil {
		return classify("deleting news", err)
	}
	if err := checkAffected(result); err != nil {
		return err
	}
	s.logger.Debug("deleted news", "id", id)
	return nil
}

const commentSelect = `
	SELECT c.id, c.news_id, c.user_id, c.username, c.text, c.hidden, c.created_at,
	       (SELECT COUNT(*) FROM comment_likes l WHERE l.comment_id = c.id),
	       (SELECT COUNT(*) FROM replies r WHERE r.comment_id = c.id)
	FROM comments c
`

func scanComment(row rowScanner) (*Comment, error) {
	var c Comment
	var userID sql.NullString
	var createdAt string
	if err := row.Scan(&c.ID, &c.NewsID, &userID, &c.Username, &c.Text, &c.Hidden,
		&createdAt, &c.LikeCount, &c.ReplyCount); err != nil {
		return nil, err
	}
	c.UserID = ptrFromNull(userID)
	var err error
	c.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateComment inserts a comment. Returns ErrNotFound if the news item is gone.
func (s *SQLStore) CreateComment(ctx context.Context, c *Comment) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	_, err := s.exec(ctx, `
		INSERT INTO comments (id, news_id, user_id, username, text, hidden, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.NewsID, nullStringPtr(c.UserID), c.Username, c.Text, c.Hidden, formatTime(c.CreatedAt))
	if err != nil {
		return classify("inserting comment", err)
	}
	s.logger.Debug("created comment", "id", c.ID, "news_id", c.NewsID)
	return nil
}

// GetComment retrieves a comment regardless of its hidden flag.
func (s *SQLStore) GetComment(ctx context.Context, id string) (*Comment, error) {
	c, err := scanComment(s.queryRow(ctx, commentSelect+` WHERE c.id = ?`, id))
	if err != nil {
		return nil, classify("querying comment", err)
	}
	return c, nil
}

// ListComments returns a news item's comments oldest first.
func (s *SQLStore) ListComments(ctx context.Context, newsID string, includeHidden bool) ([]*Comment, error) {
	query := commentSelect + ` WHERE c.news_id = ?`
	if !includeHidden {
		query += ` AND c.hidden = FALSE`
	}
	query += ` ORDER BY c.created_at ASC`

	rows, err := s.query(ctx, query, newsID)
	if err != nil {
		return nil, classify("querying comments", err)
	}
	defer func() { _ = rows.Close() }()

	comments := []*Comment{}
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning comment: %w", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterating comments", err)
	}
	return comments, nil
}

// UpdateCommentText replaces a comment's text.
func (s *SQLStore) UpdateCommentText(ctx context.Context, id, text string) error {
	result, err := s.exec(ctx, `UPDATE comments SET text = ? WHERE id = ?`, text, id)
	if err != nil {
		return classify("updating comment", err)
	}
	return checkAffected(result)
}

// SetCommentHidden sets or clears the hidden flag.
func (s *SQLStore) SetCommentHidden(ctx context.Context, id string, hidden bool) error {
	result, err := s.exec(ctx, `UPDATE comments SET hidden = ? WHERE id = ?`, hidden, id)
	if err != nil {
		return classify("updating comment hidden flag", err)
	}
	if err := checkAffected(result); err != nil {
		return err
	}
	s.logger.Debug("updated comment hidden flag", "id", id, "hidden", hidden)
	return nil
}

// DeleteComment removes a comment with its replies and likes.
func (s *SQLStore) DeleteComment(ctx context.Context, id string) error {
	result, err := s.exec(ctx, `DELETE FROM comments WHERE id = ?`, id)
	if err != nil {
		return classify("deleting comment", err)
	}
	if err := checkAffected(result); err != nil {
		return err
	}
	s.logger.Debug("deleted comment", "id", id)
	return nil
}

const replySelect = `
	SELECT r.id, r.comment_id, r.user_id, r.username, r.text, r.created_at,
	       (SELECT COUNT(*) FROM reply_likes l WHERE l.reply_id = r.id)
	FROM replies r
`

func scanReply(row rowScanner) (*Reply, error) {
	var r Reply
	var userID sql.NullString
	var createdAt string
	if err := row.Scan(&r.ID, &r.CommentID, &userID, &r.Username, &r.Text, &createdAt, &r.LikeCount); err != nil {
		return nil, err
	}
	r.UserID = ptrFromNull(userID)
	var err error
	r.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// CreateReply inserts a reply. Returns ErrNotFound if the comment is gone.
func (s *SQLStore) CreateReply(ctx context.Context, r *Reply) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err := s.exec(ctx, `
		INSERT INTO replies (id, comment_id, user_id, username, text, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.ID, r.CommentID, nullStringPtr(r.UserID), r.Username, r.Text, formatTime(r.CreatedAt))
	if err != nil {
		return classify("inserting reply", err)
	}
	s.logger.Debug("created reply", "id", r.ID, "comment_id", r.CommentID)
	return nil
}

// GetReply retrieves a reply by ID.
func (s *SQLStore) GetReply(ctx context.Context, id string) (*Reply, error) {
	r, err := scanReply(s.queryRow(ctx, replySelect+` WHERE r.id = ?`, id))
	if err != nil {
		return nil, classify("querying reply", err)
	}
	return r, nil
}

// ListReplies returns a comment's replies oldest first.
func (s *SQLStore) ListReplies(ctx context.Context, commentID string) ([]*Reply, error) {
	rows, err := s.query(ctx, replySelect+` WHERE r.comment_id = ? ORDER BY r.created_at ASC`, commentID)
	if err != nil {
		return nil, classify("querying replies", err)
	}
	defer func() { _ = rows.Close() }()

	replies := []*Reply{}
	for rows.Next() {
		r, err := scanReply(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning reply: %w", err)
		}
		replies = append(replies, r)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterating replies", err)
	}
	return replies, nil
}

// UpdateReplyText replaces a reply's text.
func (s *SQLStore) UpdateReplyText(ctx context.Context, id, text string) error {
	result, err := s.exec(ctx, `UPDATE replies SET text = ? WHERE id = ?`, text, id)
	if err != nil {
		return classify("updating reply", err)
	}
	return checkAffected(result)
}

// DeleteReply removes a reply and its likes.
func (s *SQLStore) DeleteReply(ctx context.Context, id string) error {
	result, err := s.exec(ctx, `DELETE FROM replies WHERE id = ?`, id)
	if err != nil {
		return classify("deleting reply", err)
	}
	if err := checkAffected(result); err != nil {
		return err
	}
	s.logger.Debug("deleted reply", "id", id)
	return nil
}
