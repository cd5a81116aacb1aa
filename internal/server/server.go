package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/Tomlord1122/todo-share/internal/config"
	"github.com/Tomlord1122/todo-share/internal/metrics"
	"github.com/Tomlord1122/todo-share/internal/service"
)

// HealthChecker reports the state of a backing store. database.Service
// satisfies it.
type HealthChecker interface {
	Health() map[string]string
}

// Dependencies are the collaborators the HTTP layer is built on.
type Dependencies struct {
	Todos         service.TodoService
	Shares        service.ShareService
	Notifications service.NotificationService
	Auth          service.AuthService
	Blogs         service.BlogService
	DB            HealthChecker
	Metrics       *metrics.Metrics
}

type Server struct {
	port           int
	allowedOrigins []string

	todos         service.TodoService
	shares        service.ShareService
	notifications service.NotificationService
	auth          service.AuthService
	blogs         service.BlogService
	db            HealthChecker
	metrics       *metrics.Metrics
	log           zerolog.Logger
}

func New(cfg *config.Config, deps Dependencies, log zerolog.Logger) *Server {
	return &Server{
		port:           cfg.Port,
		allowedOrigins: cfg.AllowedOrigins,
		todos:          deps.Todos,
		shares:         deps.Shares,
		notifications:  deps.Notifications,
		auth:           deps.Auth,
		blogs:          deps.Blogs,
		db:             deps.DB,
		metrics:        deps.Metrics,
		log:            log.With().Str("component", "http").Logger(),
	}
}

func NewServer(cfg *config.Config, deps Dependencies, log zerolog.Logger) *http.Server {
	appServer := New(cfg, deps, log)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", appServer.port),
		Handler:      appServer.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return server
}
