// ABOUTME: HTTP handlers for news, comments, replies and likes
// ABOUTME: News descriptions are returned both as markdown and rendered HTML

package api

import (
	"net/http"

	"github.com/2389/commons/internal/auth"
	"github.com/2389/commons/internal/content"
	"github.com/2389/commons/internal/store"
)

// handleListNews handles GET /api/news?limit=N.
func (s *Server) handleListNews(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	items, err := s.content.ListNews(r.Context(), limit)
	if err != nil {
		s.sendServiceError(w, r, err)
		return
	}

	resp := make([]NewsResponse, 0, len(items))
	for _, n := range items {
		nr, err := newsResponse(n)
		if err != nil {
			s.sendServiceError(w, r, err)
			return
		}
		resp = append(resp, nr)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) writeNews(w http.ResponseWriter, r *http.Request, status int, n *store.News) {
	resp, err := newsResponse(n)
	if err != nil {
		s.sendServiceError(w, r, err)
		return
	}
	writeJSON(w, status, resp)
}

// handleGetNews handles GET /api/news/{id}.
func (s *Server) handleGetNews(w http.ResponseWriter, r *http.Request) {
	n, err := s.content.GetNews(r.Context(), r.PathValue("id"))
	if err != nil {
		s.sendServiceError(w, r, err)
		return
	}
	s.writeNews(w, r, http.StatusOK, n)
}

func (req NewsRequest) input() content.NewsInput {
	return content.NewsInput{
		Title:       req.Title,
		Description: req.Description,
		Image:       req.Image,
		Link:        req.Link,
		OwnerID:     req.OwnerID,
	}
}

// handleCreateNews handles POST /api/news.
func (s *Server) handleCreateNews(w http.ResponseWriter, r *http.Request) {
	var req NewsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	n, err := s.content.CreateNews(r.Context(), auth.ActorFromContext(r.Context()), req.input())
	if err != nil {
		s.sendServiceError(w, r, err)
		return
	}
	s.writeNews(w, r, http.StatusCreated, n)
}

// handleUpdateNews handles PATCH /api/news/{id}.
func (s *Server) handleUpdateNews(w http.ResponseWriter, r *http.Request) {
	var req NewsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	n, err := s.content.UpdateNews(r.Context(), auth.ActorFromContext(r.Context()), r.PathValue("id"), req.input())
	if err != nil {
		s.sendServiceError(w, r, err)
		return
	}
	s.writeNews(w, r, http.StatusOK, n)
}

// handleDeleteNews handles DELETE /api/news/{id}.
func (s *Server) handleDeleteNews(w http.ResponseWriter, r *http.Request) {
	if err := s.content.DeleteNews(r.Context(), auth.ActorFromContext(r.Context()), r.PathValue("id")); err != nil {
		s.sendServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListComments handles GET /api/news/{id}/comments.
// Hidden comments are only listed for admins.
func (s *Server) handleListComments(w http.ResponseWriter, r *http.Request) {
	comments, err := s.content.ListComments(r.Context(), auth.ActorFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		s.sendServiceError(w, r, err)
		return
	}
	resp := make([]CommentResponse, len(comments))
	for i, c := range comments {
		resp[i] = commentResponse(c)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleAddComment handles POST /api/news/{id}/comments.
func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request) {
	var req TextRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	c, err := s.content.AddComment(r.Context(), auth.ActorFromContext(r.Context()), r.PathValue("id"), req.Text)
	if err != nil {
		s.sendServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, commentResponse(c))
}

// handleEditComment handles PATCH /api/comments/{id}.
func (s *Server) handleEditComment(w http.ResponseWriter, r *http.Request) {
	var req TextRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	c, err := s.content.EditComment(r.Context(), auth.ActorFromContext(r.Context()), r.PathValue("id"), req.Text)
	if err != nil {
		s.sendServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, commentResponse(c))
}

// handleSetCommentHidden handles PUT /api/comments/{id}/hidden.
func (s *Server) handleSetCommentHidden(w http.ResponseWriter, r *http.Request) {
	var req HiddenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	err := s.content.SetCommentHidden(r.Context(), auth.ActorFromContext(r.Context()), r.PathValue("id"), req.Hidden)
	if err != nil {
		s.sendServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDeleteComment handles DELETE /api/comments/{id}.
func (s *Server) handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	if err := s.content.DeleteComment(r.Context(), auth.ActorFromContext(r.Context()), r.PathValue("id")); err != nil {
		s.sendServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListReplies handles GET /api/comments/{id}/replies.
func (s *Server) handleListReplies(w http.ResponseWriter, r *http.Request) {
	replies, err := s.content.ListReplies(r.Context(), auth.ActorFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		s.sendServiceError(w, r, err)
		return
	}
	resp := make([]ReplyResponse, len(replies))
	for i, rp := range replies {
		resp[i] = replyResponse(rp)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleAddReply handles POST /api/comments/{id}/replies.
func (s *Server) handleAddReply(w http.ResponseWriter, r *http.Request) {
	var req TextRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	rp, err := s.content.AddReply(r.Context(), auth.ActorFromContext(r.Context()), r.PathValue("id"), req.Text)
	if err != nil {
		s.sendServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, replyResponse(rp))
}

// handleEditReply handles PATCH /api/replies/{id}.
func (s *Server) handleEditReply(w http.ResponseWriter, r *http.Request) {
	var req TextRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	rp, err := s.content.EditReply(r.Context(), auth.ActorFromContext(r.Context()), r.PathValue("id"), req.Text)
	if err != nil {
		s.sendServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, replyResponse(rp))
}

// handleDeleteReply handles DELETE /api/replies/{id}.
func (s *Server) handleDeleteReply(w http.ResponseWriter, r *http.Request) {
	if err := s.content.DeleteReply(r.Context(), auth.ActorFromContext(r.Context()), r.PathValue("id")); err != nil {
		s.sendServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// likeRoutes maps URL prefixes to like kinds. Pages are named by their
// path segment rather than a row id.
var likeRoutes = map[string]store.LikeKind{
	"news":     store.LikeNews,
	"comments": store.LikeComment,
	"replies":  store.LikeReply,
	"pages":    store.LikeMainText,
}

type likeAction int

const (
	likeStatus likeAction = iota
	likeAdd
	likeRemove
)

// likeHandler serves GET, POST and DELETE on /api/{prefix}/{id}/like.
func (s *Server) likeHandler(kind store.LikeKind, action likeAction) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		actor := auth.ActorFromContext(ctx)
		target := r.PathValue("id")

		var (
			count  int
			liked  bool
			err    error
			status = http.StatusOK
		)
		switch action {
		case likeAdd:
			count, err = s.content.Like(ctx, actor, kind, target)
			liked = true
			status = http.StatusCreated
		case likeRemove:
			count, err = s.content.Unlike(ctx, actor, kind, target)
		default:
			count, err = s.content.LikeCount(ctx, kind, target)
			if err == nil {
				liked, err = s.content.HasLiked(ctx, actor, kind, target)
			}
		}
		if err != nil {
			s.sendServiceError(w, r, err)
			return
		}

		writeJSON(w, status, LikeResponse{
			Kind:   string(kind),
			Target: target,
			Liked:  liked,
			Count:  count,
		})
	})
}
