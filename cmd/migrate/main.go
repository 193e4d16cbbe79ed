package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/FunkyDevv/ITRACK-sub000/internal/attendance"
	"github.com/FunkyDevv/ITRACK-sub000/internal/bootstrap"
	"github.com/FunkyDevv/ITRACK-sub000/internal/config"
	"github.com/FunkyDevv/ITRACK-sub000/internal/logger"
)

// Migrate rewrites attendance ids to internId_yyyy-mm-dd. It prints the run
// report as JSON and exits 2 when some records kept their id.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}
	logger.Setup(cfg.Env, cfg.LogLevel)
	if cfg.StoreBackend != "postgres" {
		log.Fatal().Str("store", cfg.StoreBackend).Msg("migration needs the postgres store")
	}

	os.Exit(run(cfg))
}

func run(cfg config.App) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backends, err := bootstrap.Open(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("open backends failed")
		return 1
	}
	defer backends.Close()

	att := attendance.NewService(backends.Events, backends.Users, nil, nil, cfg.Location())
	report, err := att.MigrateAttendanceRecords(ctx)
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(report)
	if err != nil {
		log.Error().Err(err).Msg("migration aborted")
		return 1
	}
	if err := report.Err(); err != nil {
		log.Warn().Err(err).Int("conflicts", len(report.Conflicts)).Msg("migration finished with conflicts")
		return 2
	}
	log.Info().Int("migrated", report.Migrated).Int("skipped", report.Skipped).Msg("migration finished")
	return 0
}
