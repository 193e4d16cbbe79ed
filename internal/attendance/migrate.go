package attendance

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/FunkyDevv/ITRACK-sub000/internal/apperr"
	"github.com/FunkyDevv/ITRACK-sub000/internal/metrics"
)

// deterministicID matches ids already in the internId_yyyy-mm-dd form.
var deterministicID = regexp.MustCompile(`^[A-Za-z0-9]+_\d{4}-\d{2}-\d{2}$`)

// DeterministicID is the internId_date id the migration rewrites to. The
// date is the UTC calendar date of createdAt.
func DeterministicID(internID string, createdAt time.Time) string {
	return internID + "_" + createdAt.UTC().Format("2006-01-02")
}

// MigrationConflict is a record left in place because its deterministic id
// was already taken by another session of the same intern and day.
type MigrationConflict struct {
	EventID  string `json:"eventId"`
	TargetID string `json:"targetId"`
}

// MigrationReport summarizes one migration run.
type MigrationReport struct {
	Scanned   int                 `json:"scanned"`
	Migrated  int                 `json:"migrated"`
	Skipped   int                 `json:"skipped"`
	Conflicts []MigrationConflict `json:"conflicts,omitempty"`
}

// Err returns a migration_conflict error when any record was left behind.
func (r MigrationReport) Err() error {
	if len(r.Conflicts) == 0 {
		return nil
	}
	return apperr.Wrap(fmt.Errorf("%d record(s) kept their id", len(r.Conflicts)), apperr.KindMigrationConflict, ErrMigrationConflict.Message)
}

// MigrateRecords rewrites every event id to its deterministic form. Each
// rewrite is an atomic create+delete. Records already in deterministic form
// are skipped, which makes repeated runs a no-op. A nil error means the run
// completed, whether or not anything moved; collisions are reported in
// MigrationReport.Conflicts and leave the record untouched.
func MigrateRecords(ctx context.Context, store Store) (MigrationReport, error) {
	var report MigrationReport
	events, err := store.ListAll(ctx)
	if err != nil {
		return report, apperr.Backend(err, "scan attendance records")
	}

	for _, evt := range events {
		report.Scanned++
		newID := DeterministicID(evt.InternID, evt.CreatedAt)
		if deterministicID.MatchString(evt.ID) || newID == evt.ID {
			report.Skipped++
			metrics.Migration.WithLabelValues("skipped").Inc()
			continue
		}

		err := store.Rekey(ctx, evt.ID, newID)
		switch {
		case err == nil:
			report.Migrated++
			metrics.Migration.WithLabelValues("migrated").Inc()
			log.Ctx(ctx).Info().Str("from", evt.ID).Str("to", newID).Msg("attendance record rekeyed")
		case errors.Is(err, ErrIDTaken):
			report.Conflicts = append(report.Conflicts, MigrationConflict{EventID: evt.ID, TargetID: newID})
			metrics.Migration.WithLabelValues("conflict").Inc()
			log.Ctx(ctx).Warn().Str("event_id", evt.ID).Str("target_id", newID).Msg("deterministic id taken, record kept")
		case errors.Is(err, ErrEventNotFound):
			report.Skipped++
			metrics.Migration.WithLabelValues("skipped").Inc()
		default:
			return report, apperr.Backend(err, "rekey attendance record")
		}
	}
	return report, nil
}

// MigrateAttendanceRecords runs MigrateRecords on the engine's store.
func (s *Service) MigrateAttendanceRecords(ctx context.Context) (MigrationReport, error) {
	return MigrateRecords(ctx, s.store)
}
