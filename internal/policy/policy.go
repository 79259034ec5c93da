// ABOUTME: Row-level authorization rules for accounts, news, comments, replies and likes
// ABOUTME: Authorize is pure; services call Check before every read or mutation

package policy

import (
	"errors"
	"fmt"

	"github.com/2389/commons/internal/store"
)

// ErrForbidden is returned when the actor may not perform an operation.
var ErrForbidden = errors.New("forbidden")

// Actor is the authenticated identity an operation runs as. A nil *Actor
// is the anonymous visitor.
type Actor struct {
	ID       string
	Username string
	Role     store.Role
}

// ActorFor builds an Actor from an account, returning nil for nil.
func ActorFor(a *store.Account) *Actor {
	if a == nil {
		return nil
	}
	return &Actor{ID: a.ID, Username: a.Username, Role: a.Role}
}

// IsAdmin returns true if the actor holds the admin role.
func (a *Actor) IsAdmin() bool {
	return a != nil && a.Role == store.RoleAdmin
}

// is reports whether the actor is the account with the given id.
// An empty id (deleted author) matches nobody.
func (a *Actor) is(id string) bool {
	return a != nil && a.ID != "" && a.ID == id
}

// Resource names a protected table.
type Resource string

const (
	ResourceAccount Resource = "account"
	ResourceNews    Resource = "news"
	ResourceComment Resource = "comment"
	ResourceReply   Resource = "reply"
	ResourceLike    Resource = "like"
)

// Operation is what the actor wants to do with a row.
type Operation string

const (
	OpRead   Operation = "read"
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Row is the snapshot of a row the rules look at. Fields that do not apply
// to a resource are left zero.
type Row struct {
	ID        string // account id for account rows
	OwnerID   string // author of a comment or reply, actor of a like; empty when nulled
	Banned    bool
	Protected bool
	Hidden    bool
}

// AccountRow snapshots an account.
func AccountRow(a *store.Account) Row {
	return Row{ID: a.ID, Banned: a.Banned, Protected: a.Protected}
}

// CommentRow snapshots a comment.
func CommentRow(c *store.Comment) Row {
	return Row{ID: c.ID, OwnerID: deref(c.UserID), Hidden: c.Hidden}
}

// ReplyRow snapshots a reply.
func ReplyRow(r *store.Reply) Row {
	return Row{ID: r.ID, OwnerID: deref(r.UserID)}
}

// LikeRow snapshots a like owned by userID.
func LikeRow(userID string) Row {
	return Row{OwnerID: userID}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Authorize reports whether actor may perform op on a row of res.
// Each rule is an independent disjunction; anything not listed is denied.
func Authorize(actor *Actor, res Resource, op Operation, row Row) bool {
	switch res {
	case ResourceAccount:
		switch op {
		case OpRead:
			return !row.Banned || actor.IsAdmin()
		case OpCreate:
			return true
		case OpUpdate:
			return actor.is(row.ID) || actor.IsAdmin()
		case OpDelete:
			return actor.IsAdmin() && !row.Protected
		}

	case ResourceNews:
		switch op {
		case OpRead:
			return true
		case OpCreate, OpUpdate, OpDelete:
			return actor.IsAdmin()
		}

	case ResourceComment:
		switch op {
		case OpRead:
			return !row.Hidden || actor.IsAdmin()
		case OpCreate:
			return actor != nil
		case OpUpdate, OpDelete:
			return actor.is(row.OwnerID) || actor.IsAdmin()
		}

	case ResourceReply:
		switch op {
		case OpRead:
			return true
		case OpCreate:
			return actor != nil
		case OpUpdate, OpDelete:
			return actor.is(row.OwnerID) || actor.IsAdmin()
		}

	case ResourceLike:
		switch op {
		case OpRead:
			return true
		case OpCreate, OpDelete:
			return actor.is(row.OwnerID)
		case OpUpdate:
			return false
		}
	}
	return false
}

// Check returns nil when Authorize allows the operation and a wrapped
// ErrForbidden otherwise.
func Check(actor *Actor, res Resource, op Operation, row Row) error {
	if Authorize(actor, res, op, row) {
		return nil
	}
	return fmt.Errorf("%s %s: %w", op, res, ErrForbidden)
}
