package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/FunkyDevv/ITRACK-sub000/internal/attendance"
	"github.com/FunkyDevv/ITRACK-sub000/internal/auth"
	"github.com/FunkyDevv/ITRACK-sub000/internal/bootstrap"
	"github.com/FunkyDevv/ITRACK-sub000/internal/cloudinary"
	"github.com/FunkyDevv/ITRACK-sub000/internal/config"
	"github.com/FunkyDevv/ITRACK-sub000/internal/httpapi"
	"github.com/FunkyDevv/ITRACK-sub000/internal/logger"
	"github.com/FunkyDevv/ITRACK-sub000/internal/photo"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}
	logger.Setup(cfg.Env, cfg.LogLevel)

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatal().Err(err).Msg("http server failed")
	}
}

func runHTTP(cfg config.App) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backends, err := bootstrap.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer backends.Close()

	att := attendance.NewService(backends.Events, backends.Users, backends.Broker, backends.Jobs, cfg.Location())
	authSvc := auth.NewService(backends.Users, auth.Options{
		Issuer:     cfg.JWTIssuer,
		SigningKey: cfg.JWTSigningKey,
		AccessTTL:  cfg.AccessTTL,
		RefreshTTL: cfg.RefreshTTL,
	})

	router := httpapi.NewRouter(httpapi.Deps{
		Attendance:      att,
		Auth:            authSvc,
		Photos:          newPhotoPipeline(cfg),
		JWTIssuer:       cfg.JWTIssuer,
		JWTSigningKey:   cfg.JWTSigningKey,
		RateLimitPerMin: cfg.RateLimitPerMin,
		MaxUploadBytes:  4 * cfg.PhotoMaxBytes,
		Health:          backends.Health(),
	})

	// No WriteTimeout: SSE streams stay open.
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.HTTPPort).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("server forced shutdown")
	}
	log.Info().Msg("server exited")
	return nil
}

// newPhotoPipeline orders providers: mirrors, then Cloudinary, then the
// placeholder.
func newPhotoPipeline(cfg config.App) *photo.Pipeline {
	var providers []photo.Provider
	for _, endpoint := range cfg.MirrorURLs() {
		providers = append(providers, photo.NewMirror(endpoint))
	}
	if cfg.CloudinaryEnabled() {
		providers = append(providers, cloudinary.New(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder))
	} else {
		log.Info().Msg("cloudinary not configured")
	}
	p := photo.NewPipeline(photo.Options{
		Timeout:        cfg.PhotoUploadTimeout,
		MaxBytes:       cfg.PhotoMaxBytes,
		MaxDimension:   cfg.PhotoMaxDimension,
		PlaceholderURL: cfg.PhotoPlaceholderURL,
	}, providers...)
	log.Info().Strs("providers", p.Providers()).Msg("photo pipeline ready")
	return p
}
