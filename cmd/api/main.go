package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"flowtrack/internal"
	"flowtrack/internal/config"
	"flowtrack/internal/store"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/pflag"
)

func main() {
	addr := pflag.String("addr", "", "listen address (overrides LISTEN_ADDR)")
	migrate := pflag.Bool("migrate", true, "apply pending migrations on start when DB_DSN is set")
	pflag.Parse()

	cfg, err := config.LoadAndValidate()
	if err != nil {
		slog.Error("configuration error", "err", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.ListenAddr = *addr
	}
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, pool, err := openStore(ctx, cfg, *migrate, logger)
	if err != nil {
		logger.Error("store setup failed", "err", err)
		os.Exit(1)
	}

	srv, err := internal.NewServer(st, pool, cfg, logger)
	if err != nil {
		logger.Error("server setup failed", "err", err)
		os.Exit(1)
	}

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown", "err", err)
		}
	}()

	logger.Info("starting Flow Track API",
		"addr", cfg.ListenAddr,
		"storage", storageKind(cfg),
		"require_auth", cfg.RequireAuth,
		"metrics", cfg.EnableMetrics,
		"jwt_issuer", cfg.JWTIssuer,
		"jwt_expiry", cfg.JWTExpiry,
	)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server stopped", "err", err)
	}
	if err := srv.Close(context.Background()); err != nil {
		logger.Warn("close store", "err", err)
	}
}

// openStore picks Postgres when a DSN is configured and the in-memory store
// otherwise
func openStore(ctx context.Context, cfg *config.Config, migrate bool, logger *slog.Logger) (store.Store, *pgxpool.Pool, error) {
	if cfg.DBDSN == "" {
		logger.Warn("DB_DSN not set, using in-memory storage")
		return store.NewMemoryStore(), nil, nil
	}
	pg, err := store.OpenPostgres(ctx, cfg.DBDSN)
	if err != nil {
		return nil, nil, err
	}
	if migrate {
		n, err := store.Migrate(ctx, pg.DB, logger)
		if err != nil {
			pg.Close()
			return nil, nil, err
		}
		logger.Info("migrations complete", "applied", n)
	}
	return pg, pg.Pool, nil
}

func storageKind(cfg *config.Config) string {
	if cfg.DBDSN == "" {
		return "memory"
	}
	return "postgres"
}
