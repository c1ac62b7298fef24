package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"server/internal/adapter/repo"
	"server/internal/generation"
	"server/internal/http/handlers"
	"server/internal/http/httpapi"
	"server/internal/infra"
	"server/internal/infra/credentials"
	"server/internal/infra/geoip"
	"server/internal/infra/google"
	"server/internal/providers/evolink"
	"server/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()
	sqlRunner := infra.NewSQLRunner(dbpool, logger)

	// The vendor key comes from the environment or from the stored
	// integration token; the environment wins.
	apiKey := cfg.EvolinkAPIKey
	if apiKey == "" {
		creds := credentials.NewStore(sqlRunner)
		if stored, err := creds.EvolinkAPIKey(ctx); err == nil {
			apiKey = stored
		} else {
			logger.Warn().Err(err).Msg("no evolink credentials configured")
		}
	}
	vendor, err := evolink.NewClient(evolink.Options{
		APIKey:         apiKey,
		BaseURL:        cfg.EvolinkBaseURL,
		Logger:         &logger,
		RequestTimeout: cfg.VendorTimeout,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build vendor client")
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build object store")
	}
	persister := generation.NewPersister(store, repo.NewArtifactRepositoryPG(sqlRunner), logger)

	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip database unavailable, locale falls back to headers")
	}

	app := &handlers.App{
		Config:    cfg,
		Logger:    logger,
		SQL:       sqlRunner,
		Vendor:    vendor,
		Persister: persister,
		Verifier:  google.NewVerifier(cfg.GoogleIssuer, cfg.GoogleClientID),
	}
	server := infra.NewHTTPServer(cfg, httpapi.NewRouter(app, resolver))

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}

func buildStore(ctx context.Context, cfg *infra.Config) (storage.Store, error) {
	if cfg.StorageDriver == "s3" {
		return storage.NewS3Store(ctx, storage.S3Options{
			Bucket:        cfg.S3Bucket,
			Region:        cfg.S3Region,
			Endpoint:      cfg.S3Endpoint,
			AccessKey:     cfg.S3AccessKey,
			SecretKey:     cfg.S3SecretKey,
			PublicBaseURL: cfg.S3PublicBaseURL,
		})
	}
	return storage.NewFileStore(cfg.StoragePath, cfg.StorageBaseURL, nil)
}
