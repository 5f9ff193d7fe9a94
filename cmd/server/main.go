package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Simplici0/estimator/internal/config"
	"github.com/Simplici0/estimator/internal/db"
	"github.com/Simplici0/estimator/internal/estimates"
	"github.com/Simplici0/estimator/internal/export"
	"github.com/Simplici0/estimator/internal/logging"
	"github.com/Simplici0/estimator/internal/market"
	"github.com/Simplici0/estimator/internal/migrations"
	"github.com/Simplici0/estimator/internal/notify"
	"github.com/Simplici0/estimator/internal/pricing"
	"github.com/Simplici0/estimator/internal/seed"
	"github.com/Simplici0/estimator/internal/settings"
)

type server struct {
	auth      *authService
	settings  *settings.Store
	estimates *estimates.Store
	market    *market.Service
	uploader  export.Uploader
	documents *export.DirUploader
	notifier  notify.Notifier
	company   export.Company
	origins   []string
	logger    *zap.Logger
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		// No logger yet.
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		os.Stderr.WriteString("failed to build logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for _, name := range cfg.MissingSecrets() {
		logger.Warn("environment variable is not set", zap.String("name", name))
	}

	database, err := db.Open(ctx, cfg.DBDriver, cfg.DBDSN, logger, db.Options{})
	if err != nil {
		return err
	}
	defer database.Close()

	if cfg.IsDev() {
		if err := migrations.Up(ctx, database.DB, cfg.DBDriver, logger); err != nil {
			return err
		}
		stats, err := seed.Run(ctx, database, seed.Config{AdminEmail: cfg.AdminEmail, AdminPassword: cfg.AdminPassword})
		if err != nil {
			return err
		}
		logger.Info("seed complete", zap.Int("inserts", stats.Inserts))
	}

	table, err := pricing.LoadRateTable(cfg.RateTablePath)
	if err != nil {
		return err
	}

	var (
		fetcher market.Fetcher
		cache   market.Cache
	)
	if cfg.MarketAPIURL != "" && cfg.MarketAPIKey != "" {
		fetcher = market.NewClient(market.ClientConfig{
			BaseURL:    cfg.MarketAPIURL,
			APIKey:     cfg.MarketAPIKey,
			Timeout:    cfg.MarketTimeout,
			MaxElapsed: cfg.MarketMaxElapsed,
		}, nil, logger)
	} else {
		logger.Warn("market API not configured, pricing uses the static rate table")
	}
	if cfg.RedisAddr != "" {
		client, err := market.DialRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return err
		}
		defer client.Close()
		cache = market.NewRedisCache(client)
	} else if fetcher != nil {
		cache = market.NewMemoryCache()
	}

	if cfg.WarmupSchedule != "" && fetcher != nil && cache != nil {
		regions, err := market.ParseRegions(cfg.WarmupRegions)
		if err != nil {
			return err
		}
		warmer := market.NewWarmer(table, fetcher, cache, cfg.CacheTTL, regions, logger)
		if err := warmer.Start(ctx, cfg.WarmupSchedule); err != nil {
			return err
		}
		defer warmer.Stop()
	}

	var (
		uploader  export.Uploader
		documents *export.DirUploader
	)
	if cfg.DocumentsBucket != "" {
		uploader, err = export.NewS3Uploader(ctx, cfg.DocumentsBucket, cfg.AWSRegion, cfg.DocumentsLinkExpiry)
	} else {
		documents, err = export.NewDirUploader(cfg.DocumentsDir, cfg.DocumentsURL())
		uploader = documents
	}
	if err != nil {
		return err
	}

	var notifier notify.Notifier
	if cfg.EmailAPIKey != "" {
		notifier = notify.NewEmailNotifier(notify.EmailConfig{
			BaseURL: cfg.EmailAPIURL,
			APIKey:  cfg.EmailAPIKey,
			From:    cfg.EmailFrom,
		}, nil, logger)
	} else {
		notifier = notify.NewLogNotifier(logger)
	}

	secret := cfg.SessionSecret
	if secret == "" {
		secret = randomSecret()
		logger.Warn("using a random session secret; sessions end on restart")
	}

	srv := &server{
		auth:      newAuthService(database, secret),
		settings:  settings.NewStore(database, cfg.DefaultTaxRate),
		estimates: estimates.NewStore(database),
		market:    market.NewService(table, fetcher, cache, cfg.CacheTTL, logger),
		uploader:  uploader,
		documents: documents,
		notifier:  notifier,
		company:   export.Company{Name: cfg.CompanyName, Phone: cfg.CompanyPhone},
		origins:   cfg.AllowedOrigins,
		logger:    logger,
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", httpServer.Addr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func randomSecret() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
