// ABOUTME: JSON request and response bodies for the commons HTTP API
// ABOUTME: Converts store rows into wire types, hiding hashes and private fields

package api

import (
	"time"

	"github.com/2389/commons/internal/content"
	"github.com/2389/commons/internal/policy"
	"github.com/2389/commons/internal/store"
)

// RegisterRequest is the JSON request body for POST /api/register.
type RegisterRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email,omitempty"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	DOB       string `json:"dob,omitempty"` // YYYY-MM-DD
	Photo     string `json:"photo,omitempty"`
}

// LoginRequest is the JSON request body for POST /api/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is the JSON response for POST /api/login.
type LoginResponse struct {
	Token     string          `json:"token"`
	ExpiresAt string          `json:"expires_at"`
	Account   AccountResponse `json:"account"`
}

// UpdateProfileRequest is the JSON request body for PATCH /api/accounts/{username}.
// Omitted fields are left unchanged.
type UpdateProfileRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Email     *string `json:"email"`
	DOB       *string `json:"dob"`
	Photo     *string `json:"photo"`
}

// RoleRequest is the JSON request body for PUT /api/accounts/{username}/role.
type RoleRequest struct {
	Role string `json:"role"`
}

// BannedRequest is the JSON request body for PUT /api/accounts/{username}/banned.
type BannedRequest struct {
	Banned bool `json:"banned"`
}

// PasswordRequest is the JSON request body for PUT /api/accounts/{username}/password.
// OldPassword is required when changing your own secret.
type PasswordRequest struct {
	OldPassword string `json:"old_password,omitempty"`
	NewPassword string `json:"new_password"`
}

// AccountResponse is the public view of an account. Email and date of birth
// are only filled for the account itself and for admins.
type AccountResponse struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email,omitempty"`
	DOB       string `json:"dob,omitempty"`
	Photo     string `json:"photo,omitempty"`
	Role      string `json:"role"`
	Banned    bool   `json:"banned"`
	Protected bool   `json:"protected"`
	CreatedAt string `json:"created_at"`
}

func accountResponse(a *store.Account, viewer *policy.Actor) AccountResponse {
	resp := AccountResponse{
		ID:        a.ID,
		Username:  a.Username,
		FirstName: a.FirstName,
		LastName:  a.LastName,
		Photo:     a.Photo,
		Role:      string(a.Role),
		Banned:    a.Banned,
		Protected: a.Protected,
		CreatedAt: a.CreatedAt.Format(time.RFC3339),
	}
	if viewer != nil && (viewer.ID == a.ID || viewer.IsAdmin()) {
		resp.Email = a.Email
		if a.DOB != nil {
			resp.DOB = a.DOB.Format(time.DateOnly)
		}
	}
	return resp
}

// NewsRequest is the JSON request body for POST /api/news and PATCH /api/news/{id}.
type NewsRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Image       string `json:"image,omitempty"`
	Link        string `json:"link,omitempty"`
	OwnerID     string `json:"owner_id,omitempty"` // owning admin; deleting that account deletes the item
}

// NewsResponse is the JSON representation of a news item.
type NewsResponse struct {
	ID              string  `json:"id"`
	Title           string  `json:"title"`
	Description     string  `json:"description"`
	DescriptionHTML string  `json:"description_html"`
	Image           string  `json:"image,omitempty"`
	Link            string  `json:"link,omitempty"`
	AuthorID        *string `json:"author_id"`
	AdminID         *string `json:"admin_id,omitempty"`
	LikeCount       int     `json:"like_count"`
	CommentCount    int     `json:"comment_count"`
	CreatedAt       string  `json:"created_at"`
}

func newsResponse(n *store.News) (NewsResponse, error) {
	html, err := content.RenderMarkdown(n.Description)
	if err != nil {
		return NewsResponse{}, err
	}
	return NewsResponse{
		ID:              n.ID,
		Title:           n.Title,
		Description:     n.Description,
		DescriptionHTML: html,
		Image:           n.Image,
		Link:            n.Link,
		AuthorID:        n.AuthorID,
		AdminID:         n.AdminID,
		LikeCount:       n.LikeCount,
		CommentCount:    n.CommentCount,
		CreatedAt:       n.CreatedAt.Format(time.RFC3339),
	}, nil
}

// TextRequest is the JSON request body for comments and replies.
type TextRequest struct {
	Text string `json:"text"`
}

// HiddenRequest is the JSON request body for PUT /api/comments/{id}/hidden.
type HiddenRequest struct {
	Hidden bool `json:"hidden"`
}

// CommentResponse is the JSON representation of a comment.
type CommentResponse struct {
	ID         string  `json:"id"`
	NewsID     string  `json:"news_id"`
	UserID     *string `json:"user_id"`
	Username   string  `json:"username"`
	Text       string  `json:"text"`
	Hidden     bool    `json:"hidden,omitempty"`
	LikeCount  int     `json:"like_count"`
	ReplyCount int     `json:"reply_count"`
	CreatedAt  string  `json:"created_at"`
}

func commentResponse(c *store.Comment) CommentResponse {
	return CommentResponse{
		ID:         c.ID,
		NewsID:     c.NewsID,
		UserID:     c.UserID,
		Username:   c.Username,
		Text:       c.Text,
		Hidden:     c.Hidden,
		LikeCount:  c.LikeCount,
		ReplyCount: c.ReplyCount,
		CreatedAt:  c.CreatedAt.Format(time.RFC3339),
	}
}

// ReplyResponse is the JSON representation of a reply.
type ReplyResponse struct {
	ID        string  `json:"id"`
	CommentID string  `json:"comment_id"`
	UserID    *string `json:"user_id"`
	Username  string  `json:"username"`
	Text      string  `json:"text"`
	LikeCount int     `json:"like_count"`
	CreatedAt string  `json:"created_at"`
}

func replyResponse(r *store.Reply) ReplyResponse {
	return ReplyResponse{
		ID:        r.ID,
		CommentID: r.CommentID,
		UserID:    r.UserID,
		Username:  r.Username,
		Text:      r.Text,
		LikeCount: r.LikeCount,
		CreatedAt: r.CreatedAt.Format(time.RFC3339),
	}
}

// LikeResponse is the JSON response for like endpoints.
type LikeResponse struct {
	Kind   string `json:"kind"`
	Target string `json:"target"`
	Liked  bool   `json:"liked"`
	Count  int    `json:"count"`
}

// AuditEntryResponse is the JSON representation of an audit log entry.
type AuditEntryResponse struct {
	ID         string         `json:"id"`
	ActorID    string         `json:"actor_id"`
	Action     string         `json:"action"`
	TargetType string         `json:"target_type"`
	TargetID   string         `json:"target_id"`
	Timestamp  string         `json:"timestamp"`
	Detail     map[string]any `json:"detail,omitempty"`
}

func auditEntryResponse(e store.AuditEntry) AuditEntryResponse {
	return AuditEntryResponse{
		ID:         e.ID,
		ActorID:    e.ActorID,
		Action:     string(e.Action),
		TargetType: e.TargetType,
		TargetID:   e.TargetID,
		Timestamp:  e.Timestamp.Format(time.RFC3339),
		Detail:     e.Detail,
	}
}
