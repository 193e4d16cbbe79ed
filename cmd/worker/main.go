package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/FunkyDevv/ITRACK-sub000/internal/attendance"
	"github.com/FunkyDevv/ITRACK-sub000/internal/bootstrap"
	"github.com/FunkyDevv/ITRACK-sub000/internal/config"
	"github.com/FunkyDevv/ITRACK-sub000/internal/faceclient"
	"github.com/FunkyDevv/ITRACK-sub000/internal/logger"
)

// Worker consumes photo verification jobs and stores face scores.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}
	logger.Setup(cfg.Env, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backends, err := bootstrap.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("open backends failed")
	}
	defer backends.Close()

	// The worker never publishes changes; the broker is only needed by the API.
	att := attendance.NewService(backends.Events, backends.Users, nil, nil, cfg.Location())
	face := faceclient.New(cfg.FaceServiceURL, cfg.FaceSkip)

	if !cfg.FaceSkip {
		if err := face.Health(ctx); err != nil {
			log.Warn().Err(err).Msg("face service not available, jobs will fail until it is")
		} else {
			log.Info().Msg("face service connected")
		}
	}

	messages, err := backends.Jobs.Consume(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("queue consume init failed")
	}

	p := &processor{events: att, face: face}
	log.Info().Msg("worker started, waiting for messages")
	for msg := range messages {
		p.handle(ctx, msg)
	}
	log.Info().Msg("worker stopped")
}
