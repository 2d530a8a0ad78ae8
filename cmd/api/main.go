package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sentra.dev/internal/audit"
	"sentra.dev/internal/auth"
	"sentra.dev/internal/config"
	"sentra.dev/internal/httpapi"
	"sentra.dev/internal/obs"
	"sentra.dev/internal/orders"
	"sentra.dev/internal/ratelimit"
	"sentra.dev/internal/store/pg"
)

var version = "0.3.1"

func main() {
	obs.Init()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	var store *pg.Store
	if cfg.PGDSN != "" {
		store, err = pg.Open(cfg.PGDSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		defer store.Close()
	}
	if store == nil {
		log.Fatal("missing DSN: set SENTRA_PG_DSN")
	}

	sessions, err := auth.NewSessions(store.Sessions(), cfg.AccessTTL, cfg.RememberMeTTL)
	if err != nil {
		log.Fatalf("sessions: %v", err)
	}
	issuer, err := auth.NewTokenIssuer(cfg.AuthSecret, cfg.Issuer, cfg.AccessTTL, cfg.RememberMeTTL)
	if err != nil {
		log.Fatalf("token issuer: %v", err)
	}

	limiter := ratelimit.New()
	budgets := make(map[string]ratelimit.Rule, len(cfg.RateLimits))
	for action, rule := range cfg.RateLimits {
		budgets[action] = ratelimit.Rule{Limit: rule.Limit, Window: rule.Window}
	}

	trail := audit.NewLogger(store.Audit())

	authSvc, err := auth.NewService(store.Users(), sessions, store.APIKeys(), issuer,
		auth.WithRateLimiter(limiter, budgets),
		auth.WithAuditLogger(trail),
	)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}
	orderSvc, err := orders.NewService(store.Orders(), trail)
	if err != nil {
		log.Fatalf("order service: %v", err)
	}

	// Long-idle rate limiter counters are reclaimed in the background.
	janitor := time.NewTicker(10 * time.Minute)
	defer janitor.Stop()
	go func() {
		for range janitor.C {
			limiter.Purge(2 * time.Hour)
		}
	}()

	api := httpapi.New(authSvc, orderSvc, httpapi.ReadyProbe{DB: store.DB()}, cfg, version)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting sentra-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	log.Println("Stopped")
}
