package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/sambatesdesign/ChimpLink/internal/admin"
	"github.com/sambatesdesign/ChimpLink/internal/audit"
	"github.com/sambatesdesign/ChimpLink/internal/blobstore"
	"github.com/sambatesdesign/ChimpLink/internal/identity"
	"github.com/sambatesdesign/ChimpLink/internal/mailchimp"
	"github.com/sambatesdesign/ChimpLink/internal/platform/config"
	"github.com/sambatesdesign/ChimpLink/internal/platform/httpserver"
	"github.com/sambatesdesign/ChimpLink/internal/platform/logger"
	"github.com/sambatesdesign/ChimpLink/internal/platform/metrics"
	"github.com/sambatesdesign/ChimpLink/internal/platform/middleware"
	"github.com/sambatesdesign/ChimpLink/internal/stripe"
	"github.com/sambatesdesign/ChimpLink/internal/sync"
	"github.com/sambatesdesign/ChimpLink/internal/webhook"
)

// main wires dependencies and owns process lifecycle. Business logic lives in
// the internal packages.
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.FromEnv()
	log := logger.New(cfg.LogFormat)

	store, closeStore, err := newBlobStore(ctx, cfg.Blob)
	if err != nil {
		return fmt.Errorf("blob store: %w", err)
	}
	defer closeStore()

	var logOpts []audit.Option
	if len(cfg.Kafka.Brokers) > 0 {
		publisher, err := audit.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		if err != nil {
			return fmt.Errorf("kafka publisher: %w", err)
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			publisher.Close(closeCtx)
		}()
		logOpts = append(logOpts, audit.WithPublisher(publisher))
		log.Info("audit fan-out enabled", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}

	m := metrics.New()
	cache := identity.NewCache(store, log)
	auditLog := audit.NewLog(store, log, logOpts...)
	fields := sync.NewFieldSource(store)
	contacts := mailchimp.New(cfg.Mailchimp)
	customers := stripe.New(cfg.Stripe)

	engine := sync.NewEngine(cache, auditLog, fields, contacts, log, sync.WithMetrics(m))
	profiles := sync.NewProfileSyncer(auditLog, fields, contacts, log)
	memberfulDisp := webhook.NewDispatcher(engine, cache, log, m)
	stripeDisp := webhook.NewStripeDispatcher(engine, customers, log, m)

	ingress := webhook.NewHandler(memberfulDisp, stripeDisp, cfg.MemberfulWebhookSecret, cfg.Stripe.WebhookSecret, log)
	profileIngress := webhook.NewProfileHandler(profiles, log, m)
	adminHandler := admin.NewHandler(auditLog, cache, memberfulDisp, log)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	ingress.Register(r)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.RequireAdminAuth(cfg.Admin, log))
		adminHandler.Register(r)
	})
	// GBX pushes profiles over the operator credential, not a webhook secret.
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAdminAuth(cfg.Admin, log))
		profileIngress.Register(r)
	})

	srv := httpserver.New(cfg.Addr, r)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting chimplink", "addr", cfg.Addr, "blob_backend", cfg.Blob.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// newBlobStore builds the configured persistence backend. The returned close
// func is a no-op for backends without connections to release.
func newBlobStore(ctx context.Context, cfg config.Blob) (blobstore.Store, func(), error) {
	switch cfg.Backend {
	case "file":
		store, err := blobstore.NewFileStore(cfg.Dir)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	case "redis":
		store, err := blobstore.NewRedisStore(ctx, cfg.RedisURL, cfg.RedisPrefix)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	case "postgres":
		store, err := blobstore.NewPostgresStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	case "memory":
		return blobstore.NewInMemoryStore(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown blob backend %q", cfg.Backend)
	}
}
