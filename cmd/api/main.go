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

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"auctiondesk.app/internal/access"
	"auctiondesk.app/internal/audit"
	"auctiondesk.app/internal/config"
	"auctiondesk.app/internal/docstore"
	"auctiondesk.app/internal/httpapi"
	"auctiondesk.app/internal/migrate"
	"auctiondesk.app/internal/obs"
	"auctiondesk.app/internal/tenant"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	cmd := &cobra.Command{
		Use:           "auctiondesk-api",
		Short:         "Auction desk storage API",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}
	config.RegisterFlags(cmd.Flags())

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "auctiondesk-api:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config) (err error) {
	logger, err := obs.NewLogger(cfg.LogLevel, cfg.LogFormat, "auctiondesk-api")
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() {
		// stdout sync fails with EINVAL on some platforms
		_ = logger.Sync()
	}()

	obs.Init()
	obs.InitBuildInfo(version, commit)

	store, err := docstore.Open(cfg.Store, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		err = multierr.Append(err, store.Close())
	}()

	if pg, ok := store.(*docstore.Postgres); ok {
		if err := migrate.NewManager(pg.DB(), migrate.WithLogger(logger)).Up(ctx); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
	}

	sessions, err := access.NewSessions(cfg.SessionSecret, cfg.SessionTTL)
	if err != nil {
		return err
	}
	tenants := tenant.NewService(store, nil,
		tenant.WithLogger(logger),
		tenant.WithResetSettings(cfg.ResetSettings),
	)
	accessSvc, err := access.NewService(store, sessions, cfg.AdminEmail, cfg.AdminPassword,
		access.WithProvisioner(tenants),
		access.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	tenants.SetAccounts(accessSvc)

	if err := accessSvc.EnsureAdmin(ctx); err != nil {
		return fmt.Errorf("ensure admin: %w", err)
	}

	api := httpapi.New(httpapi.Options{
		Access:         accessSvc,
		Tenants:        tenants,
		Audit:          audit.New(logger),
		Logger:         logger,
		Ready:          httpapi.ReadyProbe{Store: store},
		Version:        version,
		CORSOrigins:    cfg.CORSOrigins,
		RateBurst:      cfg.RateBurst,
		RatePerSec:     cfg.RatePerSec,
		MaxBodyBytes:   cfg.MaxBodyBytes,
		TrustedProxies: cfg.TrustedProxies,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("Starting auctiondesk-api",
		zap.String("version", version),
		zap.String("addr", srv.Addr),
		zap.String("store", cfg.Store.Driver),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("Stopped")
	return nil
}
