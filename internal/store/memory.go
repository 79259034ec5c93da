// ABOUTME: In-memory Store implementation for demo mode and unit tests
// ABOUTME: Mirrors the SQL schema's uniqueness, cascade and set-null rules under one mutex

package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// likeKey identifies one like relation.
type likeKey struct {
	kind   LikeKind
	target string
	user   string
}

// MemoryStore is a non-persistent Store. Every method takes the lock for
// its whole duration, so uniqueness checks and writes are indivisible.
type MemoryStore struct {
	mu       sync.RWMutex
	closed   bool
	accounts map[string]*Account // keyed by ID
	byName   map[string]string   // username -> ID
	byEmail  map[string]string   // email -> ID
	news     map[string]*News
	comments map[string]*Comment
	replies  map[string]*Reply
	likes    map[likeKey]*Like
	audit    []AuditEntry
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[string]*Account),
		byName:   make(map[string]string),
		byEmail:  make(map[string]string),
		news:     make(map[string]*News),
		comments: make(map[string]*Comment),
		replies:  make(map[string]*Reply),
		likes:    make(map[likeKey]*Like),
	}
}

// Ensure MemoryStore implements Store interface
var _ Store = (*MemoryStore)(nil)

func (m *MemoryStore) check() error {
	if m.closed {
		return fmt.Errorf("memory store closed: %w", ErrUnavailable)
	}
	return nil
}

// Ping reports ErrUnavailable once the store is closed.
func (m *MemoryStore) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.check()
}

// Close marks the store unavailable.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func copyAccount(a *Account) *Account {
	c := *a
	if a.DOB != nil {
		d := *a.DOB
		c.DOB = &d
	}
	return &c
}

func copyStringPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// CreateAccount stores a new account, enforcing username/email uniqueness.
func (m *MemoryStore) CreateAccount(ctx context.Context, a *Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return err
	}
	return m.insertAccount(a)
}

func (m *MemoryStore) insertAccount(a *Account) error {
	if _, ok := m.byName[a.Username]; ok {
		return ErrDuplicateUsername
	}
	if a.Email != "" {
		if _, ok := m.byEmail[a.Email]; ok {
			return ErrDuplicateEmail
		}
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	if a.Role == "" {
		a.Role = RoleClient
	}
	stored := copyAccount(a)
	m.accounts[a.ID] = stored
	m.byName[a.Username] = a.ID
	if a.Email != "" {
		m.byEmail[a.Email] = a.ID
	}
	return nil
}

// SeedAccount inserts the account unless a protected account exists.
func (m *MemoryStore) SeedAccount(ctx context.Context, a *Account) (*Account, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return nil, false, err
	}
	var existing *Account
	for _, acc := range m.accounts {
		if acc.Protected && (existing == nil || acc.CreatedAt.Before(existing.CreatedAt)) {
			existing = acc
		}
	}
	if existing != nil {
		return copyAccount(existing), false, nil
	}
	if err := m.insertAccount(a); err != nil {
		return nil, false, err
	}
	return copyAccount(a), true, nil
}

// GetAccount retrieves an account by ID.
func (m *MemoryStore) GetAccount(ctx context.Context, id string) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(); err != nil {
		return nil, err
	}
	a, ok := m.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyAccount(a), nil
}

// GetAccountByUsername retrieves an account by username.
func (m *MemoryStore) GetAccountByUsername(ctx context.Context, username string) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(); err != nil {
		return nil, err
	}
	id, ok := m.byName[username]
	if !ok {
		return nil, ErrNotFound
	}
	return copyAccount(m.accounts[id]), nil
}

// ListAccounts returns accounts oldest first.
func (m *MemoryStore) ListAccounts(ctx context.Context, filter AccountFilter) ([]*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(); err != nil {
		return nil, err
	}
	accounts := []*Account{}
	for _, a := range m.accounts {
		if a.Banned && !filter.IncludeBanned {
			continue
		}
		if filter.Role != nil && a.Role != *filter.Role {
			continue
		}
		accounts = append(accounts, copyAccount(a))
	}
	sort.Slice(accounts, func(i, j int) bool {
		if accounts[i].CreatedAt.Equal(accounts[j].CreatedAt) {
			return accounts[i].Username < accounts[j].Username
		}
		return accounts[i].CreatedAt.Before(accounts[j].CreatedAt)
	})
	if limit := normalizeLimit(filter.Limit); len(accounts) > limit {
		accounts = accounts[:limit]
	}
	return accounts, nil
}

// UpdateAccountProfile writes the profile fields.
func (m *MemoryStore) UpdateAccountProfile(ctx context.Context, a *Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return err
	}
	stored, ok := m.accounts[a.ID]
	if !ok {
		return ErrNotFound
	}
	if a.Email != stored.Email && a.Email != "" {
		if _, taken := m.byEmail[a.Email]; taken {
			return ErrDuplicateEmail
		}
	}
	if stored.Email != "" {
		delete(m.byEmail, stored.Email)
	}
	stored.FirstName = a.FirstName
	stored.LastName = a.LastName
	stored.Email = a.Email
	stored.Photo = a.Photo
	if a.DOB != nil {
		d := *a.DOB
		stored.DOB = &d
	} else {
		stored.DOB = nil
	}
	if stored.Email != "" {
		m.byEmail[stored.Email] = stored.ID
	}
	return nil
}

func (m *MemoryStore) accountByName(username string) (*Account, error) {
	id, ok := m.byName[username]
	if !ok {
		return nil, ErrNotFound
	}
	return m.accounts[id], nil
}

// UpdateAccountRole sets the role of the named account.
func (m *MemoryStore) UpdateAccountRole(ctx context.Context, username string, role Role) error {
	if !role.Valid() {
		return fmt.Errorf("invalid role %q", role)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return err
	}
	a, err := m.accountByName(username)
	if err != nil {
		return err
	}
	a.Role = role
	return nil
}

// UpdateAccountPassword replaces the stored credential hash.
func (m *MemoryStore) UpdateAccountPassword(ctx context.Context, username, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return err
	}
	a, err := m.accountByName(username)
	if err != nil {
		return err
	}
	a.PasswordHash = passwordHash
	return nil
}

// SetAccountBanned sets or clears the banned flag.
func (m *MemoryStore) SetAccountBanned(ctx context.Context, username string, banned bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return err
	}
	a, err := m.accountByName(username)
	if err != nil {
		return err
	}
	if a.Protected && banned {
		return ErrProtectedAccount
	}
	a.Banned = banned
	return nil
}

// DeleteAccount removes an account and applies the schema's cascade rules.
func (m *MemoryStore) DeleteAccount(ctx context.Context, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return err
	}
	a, err := m.accountByName(username)
	if err != nil {
		return err
	}
	if a.Protected {
		return ErrProtectedAccount
	}

	delete(m.accounts, a.ID)
	delete(m.byName, a.Username)
	if a.Email != "" {
		delete(m.byEmail, a.Email)
	}

	for id, n := range m.news {
		if n.AdminID != nil && *n.AdminID == a.ID {
			m.deleteNewsLocked(id)
			continue
		}
		if n.AuthorID != nil && *n.AuthorID == a.ID {
			n.AuthorID = nil
		}
	}
	for _, c := range m.comments {
		if c.UserID != nil && *c.UserID == a.ID {
			c.UserID = nil
		}
	}
	for _, r := range m.replies {
		if r.UserID != nil && *r.UserID == a.ID {
			r.UserID = nil
		}
	}
	for k := range m.likes {
		if k.user == a.ID {
			delete(m.likes, k)
		}
	}
	return nil
}

// CountAccounts returns the number of accounts.
func (m *MemoryStore) CountAccounts(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(); err != nil {
		return 0, err
	}
	return len(m.accounts), nil
}

func (m *MemoryStore) countLikesLocked(kind LikeKind, target string) int {
	n := 0
	for k := range m.likes {
		if k.kind == kind && k.target == target {
			n++
		}
	}
	return n
}

func (m *MemoryStore) newsView(n *News) *News {
	c := *n
	c.AuthorID = copyStringPtr(n.AuthorID)
	c.AdminID = copyStringPtr(n.AdminID)
	c.LikeCount = m.countLikesLocked(LikeNews, n.ID)
	c.CommentCount = 0
	for _, cm := range m.comments {
		if cm.NewsID == n.ID && !cm.Hidden {
			c.CommentCount++
		}
	}
	return &c
}

func (m *MemoryStore) accountExists(id *string) bool {
	if id == nil {
		return true
	}
	_, ok := m.accounts[*id]
	return ok
}

// CreateNews inserts a news item.
func (m *MemoryStore) CreateNews(ctx context.Context, n *News) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return err
	}
	if !m.accountExists(n.AuthorID) || !m.accountExists(n.AdminID) {
		return fmt.Errorf("inserting news: %w: referenced row missing", ErrNotFound)
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	stored := *n
	stored.AuthorID = copyStringPtr(n.AuthorID)
	stored.AdminID = copyStringPtr(n.AdminID)
	m.news[n.ID] = &stored
	return nil
}

// GetNews retrieves a news item with its counters.
func (m *MemoryStore) GetNews(ctx context.Context, id string) (*News, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(); err != nil {
		return nil, err
	}
	n, ok := m.news[id]
	if !ok {
		return nil, ErrNotFound
	}
	return m.newsView(n), nil
}

// ListNews returns the newest news items first.
func (m *MemoryStore) ListNews(ctx context.Context, limit int) ([]*News, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(); err != nil {
		return nil, err
	}
	items := []*News{}
	for _, n := range m.news {
		items = append(items, m.newsView(n))
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	if limit = normalizeLimit(limit); len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// UpdateNews rewrites the editable fields of a news item.
func (m *MemoryStore) UpdateNews(ctx context.Context, n *News) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return err
	}
	stored, ok := m.news[n.ID]
	if !ok {
		return ErrNotFound
	}
	stored.Title = n.Title
	stored.Description = n.Description
	stored.Image = n.Image
	stored.Link = n.Link
	return nil
}

// DeleteNews removes a news item together with its comments, replies and likes.
func (m *MemoryStore) DeleteNews(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return err
	}
	if _, ok := m.news[id]; !ok {
		return ErrNotFound
	}
	m.deleteNewsLocked(id)
	return nil
}

func (m *MemoryStore) deleteNewsLocked(id string) {
	delete(m.news, id)
	m.deleteLikesOnLocked(LikeNews, id)
	for cid, c := range m.comments {
		if c.NewsID == id {
			m.deleteCommentLocked(cid)
		}
	}
}

func (m *MemoryStore) deleteCommentLocked(id string) {
	delete(m.comments, id)
	m.deleteLikesOnLocked(LikeComment, id)
	for rid, r := range m.replies {
		if r.CommentID == id {
			m.deleteReplyLocked(rid)
		}
	}
}

func (m *MemoryStore) deleteReplyLocked(id string) {
	delete(m.replies, id)
	m.deleteLikesOnLocked(LikeReply, id)
}

func (m *MemoryStore) deleteLikesOnLocked(kind LikeKind, target string) {
	for k := range m.likes {
		if k.kind == kind && k.target == target {
			delete(m.likes, k)
		}
	}
}

func (m *MemoryStore) commentView(c *Comment) *Comment {
	v := *c
	v.UserID = copyStringPtr(c.UserID)
	v.LikeCount = m.countLikesLocked(LikeComment, c.ID)
	v.ReplyCount = 0
	for _, r := range m.replies {
		if r.CommentID == c.ID {
			v.ReplyCount++
		}
	}
	return &v
}

// CreateComment inserts a comment. Returns ErrNotFound if the news item is gone.
func (m *MemoryStore) CreateComment(ctx context.Context, c *Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return err
	}
	if _, ok := m.news[c.NewsID]; !ok || !m.accountExists(c.UserID) {
		return fmt.Errorf("inserting comment: %w: referenced row missing", ErrNotFound)
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	stored := *c
	stored.UserID = copyStringPtr(c.UserID)
	m.comments[c.ID] = &stored
	return nil
}

// GetComment retrieves a comment regardless of its hidden flag.
func (m *MemoryStore) GetComment(ctx context.Context, id string) (*Comment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(); err != nil {
		return nil, err
	}
	c, ok := m.comments[id]
	if !ok {
		return nil, ErrNotFound
	}
	return m.commentView(c), nil
}

// ListComments returns a news item's comments oldest first.
func (m *MemoryStore) ListComments(ctx context.Context, newsID string, includeHidden bool) ([]*Comment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(); err != nil {
		return nil, err
	}
	comments := []*Comment{}
	for _, c := range m.comments {
		if c.NewsID != newsID || (c.Hidden && !includeHidden) {
			continue
		}
		comments = append(comments, m.commentView(c))
	}
	sort.Slice(comments, func(i, j int) bool {
		return comments[i].CreatedAt.Before(comments[j].CreatedAt)
	})
	return comments, nil
}

// UpdateCommentText replaces a comment's text.
func (m *MemoryStore) UpdateCommentText(ctx context.Context, id, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return err
	}
	c, ok := m.comments[id]
	if !ok {
		return ErrNotFound
	}
	c.Text = text
	return nil
}

// SetCommentHidden sets or clears the hidden flag.
func (m *MemoryStore) SetCommentHidden(ctx context.Context, id string, hidden bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return err
	}
	c, ok := m.comments[id]
	if !ok {
		return ErrNotFound
	}
	c.Hidden = hidden
	return nil
}

// DeleteComment removes a comment with its replies and likes.
func (m *MemoryStore) DeleteComment(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return err
	}
	if _, ok := m.comments[id]; !ok {
		return ErrNotFound
	}
	m.deleteCommentLocked(id)
	return nil
}

func (m *MemoryStore) replyView(r *Reply) *Reply {
	v := *r
	v.UserID = copyStringPtr(r.UserID)
	v.LikeCount = m.countLikesLocked(LikeReply, r.ID)
	return &v
}

// CreateReply inserts a reply. Returns ErrNotFound if the comment is gone.
func (m *MemoryStore) CreateReply(ctx context.Context, r *Reply) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return err
	}
	if _, ok := m.comments[r.CommentID]; !ok || !m.accountExists(r.UserID) {
		return fmt.Errorf("inserting reply: %w: referenced row missing", ErrNotFound)
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	stored := *r
	stored.UserID = copyStringPtr(r.UserID)
	m.replies[r.ID] = &stored
	return nil
}

// GetReply retrieves a reply by ID.
func (m *MemoryStore) GetReply(ctx context.Context, id string) (*Reply, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(); err != nil {
		return nil, err
	}
	r, ok := m.replies[id]
	if !ok {
		return nil, ErrNotFound
	}
	return m.replyView(r), nil
}

// ListReplies returns a comment's replies oldest first.
func (m *MemoryStore) ListReplies(ctx context.Context, commentID string) ([]*Reply, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(); err != nil {
		return nil, err
	}
	replies := []*Reply{}
	for _, r := range m.replies {
		if r.CommentID == commentID {
			replies = append(replies, m.replyView(r))
		}
	}
	sort.Slice(replies, func(i, j int) bool {
		return replies[i].CreatedAt.Before(replies[j].CreatedAt)
	})
	return replies, nil
}

// UpdateReplyText replaces a reply's text.
func (m *MemoryStore) UpdateReplyText(ctx context.Context, id, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return err
	}
	r, ok := m.replies[id]
	if !ok {
		return ErrNotFound
	}
	r.Text = text
	return nil
}

// DeleteReply removes a reply and its likes.
func (m *MemoryStore) DeleteReply(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return err
	}
	if _, ok := m.replies[id]; !ok {
		return ErrNotFound
	}
	m.deleteReplyLocked(id)
	return nil
}

func (m *MemoryStore) likeTargetExists(kind LikeKind, target string) bool {
	switch kind {
	case LikeNews:
		_, ok := m.news[target]
		return ok
	case LikeComment:
		_, ok := m.comments[target]
		return ok
	case LikeReply:
		_, ok := m.replies[target]
		return ok
	default:
		return true
	}
}

// AddLike records a like, failing with ErrAlreadyLiked on a repeat.
func (m *MemoryStore) AddLike(ctx context.Context, l *Like) error {
	if _, _, err := likeTable(l.Kind); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return err
	}
	key := likeKey{kind: l.Kind, target: l.TargetID, user: l.UserID}
	if _, ok := m.likes[key]; ok {
		return ErrAlreadyLiked
	}
	if _, ok := m.accounts[l.UserID]; !ok || !m.likeTargetExists(l.Kind, l.TargetID) {
		return fmt.Errorf("inserting like: %w: referenced row missing", ErrNotFound)
	}
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	stored := *l
	m.likes[key] = &stored
	return nil
}

// RemoveLike deletes the actor's like on the target.
func (m *MemoryStore) RemoveLike(ctx context.Context, kind LikeKind, targetID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return err
	}
	key := likeKey{kind: kind, target: targetID, user: userID}
	if _, ok := m.likes[key]; !ok {
		return ErrNotFound
	}
	delete(m.likes, key)
	return nil
}

// HasLiked reports whether the actor liked the target.
func (m *MemoryStore) HasLiked(ctx context.Context, kind LikeKind, targetID, userID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(); err != nil {
		return false, err
	}
	_, ok := m.likes[likeKey{kind: kind, target: targetID, user: userID}]
	return ok, nil
}

// CountLikes returns the number of likes on the target.
func (m *MemoryStore) CountLikes(ctx context.Context, kind LikeKind, targetID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(); err != nil {
		return 0, err
	}
	return m.countLikesLocked(kind, targetID), nil
}

// AppendAuditLog appends a new entry to the audit log.
func (m *MemoryStore) AppendAuditLog(ctx context.Context, e *AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return err
	}
	prepareAuditEntry(e)
	m.audit = append(m.audit, *e)
	return nil
}

// ListAuditLog returns audit entries newest first.
func (m *MemoryStore) ListAuditLog(ctx context.Context, f AuditFilter) ([]AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(); err != nil {
		return nil, err
	}
	entries := []AuditEntry{}
	for i := len(m.audit) - 1; i >= 0; i-- {
		e := m.audit[i]
		if f.Since != nil && e.Timestamp.Before(*f.Since) {
			continue
		}
		if f.ActorID != nil && e.ActorID != *f.ActorID {
			continue
		}
		if f.Action != nil && e.Action != *f.Action {
			continue
		}
		if f.TargetType != nil && e.TargetType != *f.TargetType {
			continue
		}
		entries = append(entries, e)
	}
	if limit := normalizeLimit(f.Limit); len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}
