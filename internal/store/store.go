// ABOUTME: Store interfaces and data types for commons persistence
// ABOUTME: Defines Account, News, Comment, Reply and like relations plus sentinel errors

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateUsername is returned when registering a username that is taken
var ErrDuplicateUsername = errors.New("username already exists")

// ErrDuplicateEmail is returned when registering an email that is taken
var ErrDuplicateEmail = errors.New("email already exists")

// ErrAlreadyLiked is returned when an actor likes the same target twice
var ErrAlreadyLiked = errors.New("already liked")

// ErrProtectedAccount is returned when deleting or banning a protected account
var ErrProtectedAccount = errors.New("account is protected")

// ErrUnavailable is returned when the persistence layer cannot be reached
var ErrUnavailable = errors.New("store unavailable")

// Role is an account role. The schema constrains it to client or admin.
type Role string

const (
	RoleClient Role = "client"
	RoleAdmin  Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleClient || r == RoleAdmin
}

// Account is a registered member of the community.
type Account struct {
	ID           string
	FirstName    string
	LastName     string
	Email        string // empty when not provided
	Username     string
	PasswordHash string // bcrypt hash
	Role         Role
	DOB          *time.Time
	Photo        string
	Banned       bool
	Protected    bool
	CreatedAt    time.Time
}

// IsAdmin returns true if the account holds the admin role.
func (a *Account) IsAdmin() bool {
	return a != nil && a.Role == RoleAdmin
}

// DisplayName returns "First Last", falling back to the username.
func (a *Account) DisplayName() string {
	switch {
	case a.FirstName != "" && a.LastName != "":
		return a.FirstName + " " + a.LastName
	case a.FirstName != "":
		return a.FirstName
	default:
		return a.Username
	}
}

// AccountFilter narrows ListAccounts.
type AccountFilter struct {
	IncludeBanned bool
	Role          *Role
	Limit         int // default 100, max 1000
}

// News is a post in the feed.
type News struct {
	ID          string
	Title       string
	Description string // markdown
	Image       string
	Link        string
	AuthorID    *string // nulled when the author is deleted
	AdminID     *string // owning admin; deleting it deletes the news
	CreatedAt   time.Time

	// Aggregates filled by reads
	LikeCount    int
	CommentCount int
}

// Comment belongs to a news item.
type Comment struct {
	ID        string
	NewsID    string
	UserID    *string
	Username  string
	Text      string
	Hidden    bool
	CreatedAt time.Time

	LikeCount  int
	ReplyCount int
}

// Reply answers a comment.
type Reply struct {
	ID        string
	CommentID string
	UserID    *string
	Username  string
	Text      string
	CreatedAt time.Time

	LikeCount int
}

// LikeKind selects one of the like relation tables.
type LikeKind string

const (
	LikeNews     LikeKind = "news"
	LikeComment  LikeKind = "comment"
	LikeReply    LikeKind = "reply"
	LikeMainText LikeKind = "main_text"
)

// Valid reports whether k is a known like kind.
func (k LikeKind) Valid() bool {
	switch k {
	case LikeNews, LikeComment, LikeReply, LikeMainText:
		return true
	}
	return false
}

// Like is a single (target, actor) relation. For LikeMainText the target
// is a page name rather than a row id.
type Like struct {
	ID        string
	Kind      LikeKind
	TargetID  string
	UserID    string
	CreatedAt time.Time
}

// AccountStore persists accounts.
type AccountStore interface {
	CreateAccount(ctx context.Context, a *Account) error
	// SeedAccount inserts a unless a protected account exists. Returns the
	// protected account in effect and whether a was inserted.
	SeedAccount(ctx context.Context, a *Account) (*Account, bool, error)
	GetAccount(ctx context.Context, id string) (*Account, error)
	GetAccountByUsername(ctx context.Context, username string) (*Account, error)
	ListAccounts(ctx context.Context, filter AccountFilter) ([]*Account, error)
	UpdateAccountProfile(ctx context.Context, a *Account) error
	UpdateAccountRole(ctx context.Context, username string, role Role) error
	UpdateAccountPassword(ctx context.Context, username, passwordHash string) error
	// SetAccountBanned fails with ErrProtectedAccount for protected accounts.
	SetAccountBanned(ctx context.Context, username string, banned bool) error
	// DeleteAccount fails with ErrProtectedAccount for protected accounts.
	DeleteAccount(ctx context.Context, username string) error
	CountAccounts(ctx context.Context) (int, error)
}

// ContentStore persists the news → comment → reply graph.
type ContentStore interface {
	CreateNews(ctx context.Context, n *News) error
	GetNews(ctx context.Context, id string) (*News, error)
	ListNews(ctx context.Context, limit int) ([]*News, error)
	UpdateNews(ctx context.Context, n *News) error
	DeleteNews(ctx context.Context, id string) error

	CreateComment(ctx context.Context, c *Comment) error
	GetComment(ctx context.Context, id string) (*Comment, error)
	ListComments(ctx context.Context, newsID string, includeHidden bool) ([]*Comment, error)
	UpdateCommentText(ctx context.Context, id, text string) error
	SetCommentHidden(ctx context.Context, id string, hidden bool) error
	DeleteComment(ctx context.Context, id string) error

	CreateReply(ctx context.Context, r *Reply) error
	GetReply(ctx context.Context, id string) (*Reply, error)
	ListReplies(ctx context.Context, commentID string) ([]*Reply, error)
	UpdateReplyText(ctx context.Context, id, text string) error
	DeleteReply(ctx context.Context, id string) error
}

// LikeStore persists like relations. AddLike must be atomic with respect to
// the (target, actor) uniqueness check.
type LikeStore interface {
	AddLike(ctx context.Context, l *Like) error
	RemoveLike(ctx context.Context, kind LikeKind, targetID, userID string) error
	HasLiked(ctx context.Context, kind LikeKind, targetID, userID string) (bool, error)
	CountLikes(ctx context.Context, kind LikeKind, targetID string) (int, error)
}

// Store is the full persistence surface used by the services.
type Store interface {
	AccountStore
	ContentStore
	LikeStore
	AuditStore

	// Ping checks connectivity; returns ErrUnavailable when unreachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the store
	Close() error
}
