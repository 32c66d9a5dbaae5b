package api

import (
	"context"
	"net/http"
	"os"
	"strings"

	"routemate/internal/auth"
	"routemate/internal/config"
	"routemate/internal/queues"
	"routemate/internal/store"
	"routemate/internal/webhooks"
)

type Server struct {
	Store  store.Store
	Pub    *webhooks.Publisher
	Auth   *auth.Verifier
	Broker EventBroker
	Queue  *queues.Publisher // nil when AMQP is not configured
	Cfg    config.Config
}

// NewServer creates a Server from CONFIG_FILE plus environment. If no
// database URL is configured, uses the in-memory store.
func NewServer() (*Server, error) {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		return nil, err
	}
	return NewServerWithConfig(cfg)
}

func NewServerWithConfig(cfg config.Config) (*Server, error) {
	var s store.Store
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		s = store.NewMemory()
	} else {
		sp, err := store.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if cfg.DBMigrate {
			_ = sp.MigrateDir("db/migrations")
		}
		s = sp
	}
	var broker EventBroker
	if cfg.RedisURL != "" {
		if rb, err := NewRedisBroker(cfg.RedisURL); err == nil {
			broker = rb
		} else {
			broker = NewBroker()
		}
	} else {
		broker = NewBroker()
	}
	var queue *queues.Publisher
	if cfg.AMQPURL != "" {
		queue = queues.NewPublisher(cfg.AMQPURL)
	}
	return &Server{
		Store:  s,
		Pub:    webhooks.NewPublisher(s),
		Auth:   auth.NewVerifier(cfg.AuthMode, cfg.AuthHMACSecret, cfg.AuthJWKSURL),
		Broker: broker,
		Queue:  queue,
		Cfg:    cfg,
	}, nil
}

func (s *Server) withTenant(r *http.Request) (context.Context, string) {
	tenant := s.getPrincipal(r).Tenant
	ctx := context.WithValue(r.Context(), ctxKeyTenant{}, tenant)
	return ctx, tenant
}

type ctxKeyTenant struct{}

// NewWebhookWorker creates a background worker for webhook deliveries.
func (s *Server) NewWebhookWorker() *webhooks.Worker {
	return webhooks.NewWorker(s.Store, s.Cfg.WebhookMaxAttempts)
}
