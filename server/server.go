// Package server exposes the REST surface and the WebSocket chat endpoint.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"trenchsocial/observability"
	"trenchsocial/repositories"
	"trenchsocial/runtime"
	"trenchsocial/services"
)

// Server is the HTTP front of the backend. It satisfies contract.Worker so
// the supervisor can own its lifecycle alongside the hub.
type Server struct {
	log                  *slog.Logger
	hub                  *runtime.BroadcastHub
	messages             services.IMessageService
	users                repositories.IUserRepository
	posts                repositories.IPostRepository
	reports              repositories.IReportRepository
	stats                *observability.HubStats
	validate             *validator.Validate
	connectionBufferSize int
	shutdownTimeout      time.Duration
	httpServer           *http.Server
}

func New(
	log *slog.Logger,
	hub *runtime.BroadcastHub,
	messages services.IMessageService,
	users repositories.IUserRepository,
	posts repositories.IPostRepository,
	reports repositories.IReportRepository,
	stats *observability.HubStats,
	addr string,
	connectionBufferSize int,
	shutdownTimeout time.Duration,
) *Server {
	s := &Server{
		log:                  log,
		hub:                  hub,
		messages:             messages,
		users:                users,
		posts:                posts,
		reports:              reports,
		stats:                stats,
		validate:             validator.New(),
		connectionBufferSize: connectionBufferSize,
		shutdownTimeout:      shutdownTimeout,
	}
	s.httpServer = &http.Server{
		Addr:        addr,
		Handler:     s.Handler(),
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: it would sever long-lived WebSocket connections.
		IdleTimeout: 60 * time.Second,
	}
	return s
}

// Handler builds the route table. Exposed so tests can drive the mux with
// httptest without binding a port.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /ws", s.handleWebSocket)

	mux.HandleFunc("POST /api/messages", s.handleSendMessage)
	mux.HandleFunc("GET /api/messages/conversations/{userId}", s.handleConversations)
	mux.HandleFunc("GET /api/messages/between/{userA}/{userB}", s.handleMessagesBetween)

	mux.HandleFunc("GET /api/users", s.handleListUsers)
	mux.HandleFunc("POST /api/users", s.handleCreateUser)
	mux.HandleFunc("GET /api/users/most-posts", s.handleMostPosts)
	mux.HandleFunc("GET /api/users/most-contributions", s.handleMostContributions)
	mux.HandleFunc("GET /api/users/{username}", s.handleGetUser)
	mux.HandleFunc("PATCH /api/users/verify/{username}", s.handleVerifyUser)

	mux.HandleFunc("GET /api/posts", s.handleListPosts)
	mux.HandleFunc("POST /api/posts", s.handleCreatePost)
	mux.HandleFunc("GET /api/posts/most-liked", s.handleMostLiked)
	mux.HandleFunc("GET /api/posts/most-retruths", s.handleMostRetruthed)
	mux.HandleFunc("GET /api/posts/user/{username}", s.handlePostsByAuthor)
	mux.HandleFunc("DELETE /api/posts/{id}", s.handleDeletePost)
	mux.HandleFunc("POST /api/posts/{id}/comments", s.handleAddComment)
	mux.HandleFunc("DELETE /api/posts/{id}/comments/{commentId}", s.handleRemoveComment)
	mux.HandleFunc("PATCH /api/posts/{id}/comments/{commentId}/like", s.handleCommentLike)
	mux.HandleFunc("PATCH /api/posts/{id}/like", s.handleLike)
	mux.HandleFunc("PATCH /api/posts/{id}/retruth", s.handleRetruth)

	mux.HandleFunc("POST /api/reports", s.handleSubmitReport)
	mux.HandleFunc("GET /api/reports", s.handleListReports)

	mux.HandleFunc("GET /debug/stats", s.handleDebugStats)

	return withCORS(mux)
}

// withCORS mirrors the open CORS policy of the original deployment: the API
// serves browser clients from any origin.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprint(w, "ok")
}

// Run serves HTTP until the context is canceled, then drains in-flight
// requests within the shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		s.log.Info("HTTP server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.log.Warn("HTTP shutdown incomplete", "error", err)
	}
	return ctx.Err()
}
