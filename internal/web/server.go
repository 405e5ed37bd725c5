package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/vitos/trade_calls/internal/usecase"
)

type Server struct {
	router       *http.ServeMux
	server       *http.Server
	calls        *usecase.CallService
	market       *usecase.MarketService
	auth         *usecase.AuthService
	hub          *Hub
	logger       *zap.Logger
	secureCookie bool
}

func NewServer(
	port int,
	calls *usecase.CallService,
	market *usecase.MarketService,
	auth *usecase.AuthService,
	hub *Hub,
	secureCookie bool,
	logger *zap.Logger,
) *Server {
	s := &Server{
		router:       http.NewServeMux(),
		calls:        calls,
		market:       market,
		auth:         auth,
		hub:          hub,
		logger:       logger,
		secureCookie: secureCookie,
	}
	s.routes()
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	// Login
	s.router.HandleFunc("GET /{$}", s.handleLanding)
	s.router.HandleFunc("POST /login/client", s.handleClientLogin)
	s.router.HandleFunc("POST /login/admin", s.handleAdminLogin)
	s.router.HandleFunc("POST /logout", s.handleLogout)

	// Dashboard
	s.router.HandleFunc("GET /dashboard", s.requirePage(s.handleDashboard))

	// Admin forms
	s.router.HandleFunc("POST /admin/calls", s.requireAdminPage(s.handlePublishForm))
	s.router.HandleFunc("POST /admin/calls/{id}/close", s.requireAdminPage(s.handleCloseForm))
	s.router.HandleFunc("POST /admin/calls/{id}/delete", s.requireAdminPage(s.handleDeleteForm))
	s.router.HandleFunc("POST /admin/calls/edit", s.requireAdminPage(s.handleBulkEditForm))
	s.router.HandleFunc("POST /admin/refresh", s.requireAdminPage(s.handleRefreshForm))

	// JSON API
	s.router.HandleFunc("GET /healthz", s.handleHealth)
	s.router.HandleFunc("GET /api/calls", s.requireAPI(s.handleListCallsJSON))
	s.router.HandleFunc("POST /api/calls", s.requireAdminAPI(s.handlePublishJSON))
	s.router.HandleFunc("PATCH /api/calls", s.requireAdminAPI(s.handleBulkEditJSON))
	s.router.HandleFunc("POST /api/calls/{id}/close", s.requireAdminAPI(s.handleCloseJSON))
	s.router.HandleFunc("DELETE /api/calls/{id}", s.requireAdminAPI(s.handleDeleteJSON))
	s.router.HandleFunc("POST /api/refresh", s.requireAdminAPI(s.handleRefreshJSON))
	s.router.HandleFunc("GET /api/active", s.requireAPI(s.handleActiveJSON))
	s.router.HandleFunc("GET /api/history", s.requireAPI(s.handleHistoryJSON))
	s.router.HandleFunc("GET /api/indices", s.requireAPI(s.handleIndicesJSON))

	// Live updates
	s.router.HandleFunc("GET /ws", s.requireAPI(s.hub.ServeWS))
}

// Handler is the routed mux wrapped in request logging.
func (s *Server) Handler() http.Handler {
	return s.logRequests(s.router)
}

// Refresh runs one monitor pass and pushes the transitions to dashboards.
// The HTTP refresh endpoints and the background poller both go through it.
func (s *Server) Refresh(ctx context.Context) (usecase.RefreshResult, error) {
	res, err := s.calls.Refresh(ctx)
	if err != nil {
		return res, err
	}
	if len(res.Changed) > 0 {
		s.hub.Broadcast("refresh", res)
	}
	return res, nil
}

func (s *Server) Start() error {
	s.logger.Info("Starting web server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
