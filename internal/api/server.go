// ABOUTME: HTTP server wiring the identity and content services to JSON routes
// ABOUTME: Handles listener setup, session middleware and graceful shutdown

package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/2389/commons/internal/auth"
	"github.com/2389/commons/internal/content"
	"github.com/2389/commons/internal/identity"
	"github.com/2389/commons/internal/store"
)

// Config holds the HTTP settings of a Server.
type Config struct {
	Addr         string
	CookieName   string
	CookieSecure bool
	SessionTTL   time.Duration
}

// Server serves the commons JSON API.
type Server struct {
	config     Config
	store      store.Store
	identity   *identity.Service
	content    *content.Service
	tokens     *auth.JWTVerifier
	logger     *slog.Logger
	httpServer *http.Server
}

// New creates a Server. The store is only used for health checks and the
// audit log; all other access goes through the services.
func New(cfg Config, s store.Store, ids *identity.Service, cs *content.Service, tokens *auth.JWTVerifier) *Server {
	if cfg.CookieName == "" {
		cfg.CookieName = auth.DefaultCookieName
	}
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = 24 * time.Hour
	}

	srv := &Server{
		config:   cfg,
		store:    s,
		identity: ids,
		content:  cs,
		tokens:   tokens,
		logger:   slog.Default().With("component", "api"),
	}
	srv.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv
}

// Handler returns the routed handler with session resolution applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	requireAuth := auth.RequireAuth()
	requireAdmin := auth.RequireAdminHTTP()

	mux.HandleFunc("GET /health", s.handleHealth)

	// Sessions
	mux.HandleFunc("POST /api/register", s.handleRegister)
	mux.HandleFunc("POST /api/login", s.handleLogin)
	mux.HandleFunc("POST /api/logout", s.handleLogout)
	mux.Handle("GET /api/me", requireAuth(http.HandlerFunc(s.handleMe)))

	// Accounts
	mux.HandleFunc("GET /api/accounts", s.handleListAccounts)
	mux.HandleFunc("GET /api/accounts/{username}", s.handleGetAccount)
	mux.Handle("PATCH /api/accounts/{username}", requireAuth(http.HandlerFunc(s.handleUpdateProfile)))
	mux.Handle("DELETE /api/accounts/{username}", requireAuth(http.HandlerFunc(s.handleDeleteAccount)))
	mux.Handle("PUT /api/accounts/{username}/role", requireAuth(http.HandlerFunc(s.handleChangeRole)))
	mux.Handle("PUT /api/accounts/{username}/banned", requireAuth(http.HandlerFunc(s.handleSetBanned)))
	mux.Handle("PUT /api/accounts/{username}/password", requireAuth(http.HandlerFunc(s.handleSetPassword)))

	// News
	mux.HandleFunc("GET /api/news", s.handleListNews)
	mux.Handle("POST /api/news", requireAuth(http.HandlerFunc(s.handleCreateNews)))
	mux.HandleFunc("GET /api/news/{id}", s.handleGetNews)
	mux.Handle("PATCH /api/news/{id}", requireAuth(http.HandlerFunc(s.handleUpdateNews)))
	mux.Handle("DELETE /api/news/{id}", requireAuth(http.HandlerFunc(s.handleDeleteNews)))

	// Comments and replies
	mux.HandleFunc("GET /api/news/{id}/comments", s.handleListComments)
	mux.Handle("POST /api/news/{id}/comments", requireAuth(http.HandlerFunc(s.handleAddComment)))
	mux.Handle("PATCH /api/comments/{id}", requireAuth(http.HandlerFunc(s.handleEditComment)))
	mux.Handle("DELETE /api/comments/{id}", requireAuth(http.HandlerFunc(s.handleDeleteComment)))
	mux.Handle("PUT /api/comments/{id}/hidden", requireAuth(http.HandlerFunc(s.handleSetCommentHidden)))
	mux.HandleFunc("GET /api/comments/{id}/replies", s.handleListReplies)
	mux.Handle("POST /api/comments/{id}/replies", requireAuth(http.HandlerFunc(s.handleAddReply)))
	mux.Handle("PATCH /api/replies/{id}", requireAuth(http.HandlerFunc(s.handleEditReply)))
	mux.Handle("DELETE /api/replies/{id}", requireAuth(http.HandlerFunc(s.handleDeleteReply)))

	// Likes
	for prefix, kind := range likeRoutes {
		mux.HandleFunc("GET /api/"+prefix+"/{id}/like", s.likeHandler(kind, likeStatus))
		mux.Handle("POST /api/"+prefix+"/{id}/like", requireAuth(s.likeHandler(kind, likeAdd)))
		if kind != store.LikeMainText {
			mux.Handle("DELETE /api/"+prefix+"/{id}/like", requireAuth(s.likeHandler(kind, likeRemove)))
		}
	}

	// Audit
	mux.Handle("GET /api/audit", requireAdmin(http.HandlerFunc(s.handleListAudit)))

	return auth.Middleware(s.identity, s.tokens, s.config.CookieName)(mux)
}

// Run listens on the configured address and serves until ctx is canceled.
// Returns nil on graceful shutdown, or an error if the server fails.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is canceled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		s.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		s.logger.Error("server error", "error", serverErr)
	}

	// The caller's context is already done; shut down on a fresh one.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	shutdownErr := s.Shutdown(shutdownCtx)

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// Shutdown gracefully stops the HTTP server. The store is owned by the caller.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("HTTP shutdown: %w", err)
	}
	return nil
}

// handleHealth returns 200 OK if the server is alive and the store answers.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.logger.Warn("health check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("store unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
