package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/wardenhq/warden/internal/auth"
	"github.com/wardenhq/warden/internal/config"
	"github.com/wardenhq/warden/internal/model"
	"github.com/wardenhq/warden/internal/notify"
	"github.com/wardenhq/warden/internal/security"
	"github.com/wardenhq/warden/internal/server"
	"github.com/wardenhq/warden/internal/service"
	"github.com/wardenhq/warden/internal/store"
)

const compactInterval = time.Hour

func newServeCmd() *cobra.Command {
	var (
		port int
		host string
		dev  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the warden API server",
		Long:  "Start the HTTP server that exposes the dashboard authentication and security API.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(host, port, dev)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "HTTP listen port (overrides config)")
	cmd.Flags().StringVar(&host, "host", "", "HTTP listen host (overrides config)")
	cmd.Flags().BoolVar(&dev, "dev", false, "Enable development mode (debug logging, insecure cookies)")

	return cmd
}

func runServe(host string, port int, dev bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if host != "" {
		cfg.Server.Host = host
	}
	if port != 0 {
		cfg.Server.Port = port
	}
	if dataDir != "" {
		cfg.Database.DataDir = dataDir
	}

	logger := newLogger(cfg.Logging, dev)

	// 1. Open the durable store (SQLite by default, PostgreSQL in production).
	if cfg.Database.Driver == store.DriverSQLite && cfg.Database.DSN == "" && cfg.Database.DataDir == "" {
		home, _ := os.UserHomeDir()
		cfg.Database.DataDir = home + "/.warden"
	}
	st, err := store.Open(cfg.Database.Driver, cfg.Database.DSN, cfg.Database.DataDir)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()
	logger.Info("store opened", "driver", cfg.Database.Driver)

	// 2. Provision the base admin if configured and absent.
	if err := bootstrapBaseAdmin(context.Background(), st, cfg.Bootstrap, logger); err != nil {
		return fmt.Errorf("bootstrap base admin: %w", err)
	}

	// 3. Notification sink, abuse detector, auth service.
	notifier := notify.NewDiscord(cfg.Notify.DiscordWebhookURL, logger)
	defer notifier.Close()

	detector := security.NewDetector(st, notifier, logger,
		cfg.Security.MaxLoginAttempts,
		config.Duration(cfg.Security.AttemptWindow, 15*time.Minute),
		config.Duration(cfg.Security.BanDuration, time.Hour),
	)

	secret := viper.GetString("auth.session_secret")
	if secret == "" {
		secret = cfg.Auth.SessionSecret
	}
	if secret == "" {
		secret = "warden-dev-secret-change-me"
		logger.Warn("auth.session_secret is not set, using an insecure development secret")
	}

	authSvc := service.NewAuthService(st, detector, notifier, logger,
		secret, config.Duration(cfg.Auth.SessionLifetime, 24*time.Hour))

	// 4. Periodic compaction: prune expired sessions and old ledger rows.
	// Lazy expiry keeps reads correct without it; this only bounds growth.
	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	defer stopJanitor()
	go runJanitor(janitorCtx, st, config.Duration(cfg.Security.AttemptRetention, 30*24*time.Hour), logger)

	// 5. Build and start the HTTP server.
	srvCfg := server.Config{
		Host:             cfg.Server.Host,
		Port:             cfg.Server.Port,
		ShutdownTimeout:  config.Duration(cfg.Server.ShutdownTimeout, 30*time.Second),
		CORSOrigins:      cfg.Server.CORS.Origins,
		RequestRate:      cfg.Server.RequestRate,
		CookieSecure:     cfg.Auth.CookieSecure && !dev,
		GateMaxAttempts:  cfg.Security.GateMaxAttempts,
		AttemptWindow:    config.Duration(cfg.Security.AttemptWindow, 15*time.Minute),
		LoginRatePoints:  cfg.Security.LoginRatePoints,
		LoginRateWindow:  config.Duration(cfg.Security.LoginRateWindow, 15*time.Minute),
		GlobalRatePoints: cfg.Security.GlobalRatePoints,
		GlobalRateWindow: config.Duration(cfg.Security.GlobalRateWindow, time.Hour),
	}

	srv := server.New(srvCfg, st, authSvc, detector, logger)

	fmt.Printf("→ Warden\n")
	fmt.Printf("→ Listening on http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("→ Health: http://%s:%d/healthz\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()

	return srv.ListenAndServe()
}

func newLogger(cfg config.LoggingConfig, dev bool) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if dev {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// bootstrapBaseAdmin creates the configured base admin account on first run.
// Idempotent: an existing username is left untouched.
func bootstrapBaseAdmin(ctx context.Context, st *store.Store, cfg config.BootstrapConfig, logger *slog.Logger) error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.Username == "" || cfg.Email == "" || cfg.Password == "" {
		logger.Warn("bootstrap enabled but username/email/password incomplete, skipping")
		return nil
	}

	_, err := st.GetAdminByUsername(ctx, cfg.Username)
	if err == nil {
		return nil // already provisioned
	}
	if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	hash, err := auth.HashPassword(cfg.Password)
	if err != nil {
		return err
	}

	admin := &model.Admin{
		Username:     cfg.Username,
		Email:        cfg.Email,
		PasswordHash: hash,
		IsActive:     true,
		IsBaseAdmin:  true,
	}
	if err := st.CreateAdmin(ctx, admin); err != nil {
		return err
	}

	logger.Info("base admin created", "username", cfg.Username)
	return nil
}

// runJanitor compacts the store on a fixed interval until ctx is cancelled.
func runJanitor(ctx context.Context, st *store.Store, attemptRetention time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(compactInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := st.Compact(ctx, attemptRetention); err != nil {
				logger.Warn("store compaction failed", "error", err)
			}
		}
	}
}
