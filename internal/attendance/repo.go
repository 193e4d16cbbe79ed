package attendance

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
)

const eventColumns = `id, intern_id, teacher_id, clock_in, clock_out, address, latitude, longitude,
	photo_url, time_out_photo_url, status, is_late, is_early, created_at, updated_at,
	approved_at, approved_by, approval_reason, photo_score`

const uniqueViolation = "23505"

// Repository persists attendance events in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Insert writes a new event. The partial unique indexes on intern_id turn a
// second pending or open event into ErrStale.
func (r *Repository) Insert(ctx context.Context, evt Event) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance_events (`+eventColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
	`, evt.ID, evt.InternID, evt.TeacherID, evt.ClockIn, evt.ClockOut,
		evt.Location.Address, evt.Location.Latitude, evt.Location.Longitude,
		evt.PhotoURL, evt.TimeOutPhotoURL, string(evt.Status), evt.IsLate, evt.IsEarly,
		evt.CreatedAt, evt.UpdatedAt, evt.ApprovedAt, evt.ApprovedBy, evt.ApprovalReason, evt.PhotoScore)
	if isUniqueViolation(err) {
		return ErrStale
	}
	return err
}

// Get returns a single event by id.
func (r *Repository) Get(ctx context.Context, id string) (Event, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM attendance_events WHERE id = $1`, id)
	evt, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Event{}, ErrEventNotFound
	}
	if err != nil {
		return Event{}, err
	}
	if err := evt.Validate(); err != nil {
		log.Warn().Err(err).Str("event_id", id).Msg("malformed attendance record")
		return Event{}, ErrEventNotFound
	}
	return evt, nil
}

// ListByIntern returns every event of one intern, newest first.
func (r *Repository) ListByIntern(ctx context.Context, internID string) ([]Event, error) {
	return r.list(ctx, `SELECT `+eventColumns+` FROM attendance_events WHERE intern_id = $1 ORDER BY created_at DESC`, internID)
}

// ListByTeacher returns every event assigned to one teacher, newest first.
func (r *Repository) ListByTeacher(ctx context.Context, teacherID string) ([]Event, error) {
	return r.list(ctx, `SELECT `+eventColumns+` FROM attendance_events WHERE teacher_id = $1 ORDER BY created_at DESC`, teacherID)
}

// ListAll scans the whole collection.
func (r *Repository) ListAll(ctx context.Context) ([]Event, error) {
	return r.list(ctx, `SELECT `+eventColumns+` FROM attendance_events ORDER BY created_at DESC`)
}

// CloseSession applies the time-out patch if the event is still an approved
// open session.
func (r *Repository) CloseSession(ctx context.Context, id string, c Closing) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE attendance_events
		SET clock_out = $2, time_out_photo_url = $3, is_early = $4, status = 'pending', updated_at = $5
		WHERE id = $1 AND status = 'approved' AND clock_out IS NULL
	`, id, c.ClockOut, c.TimeOutPhotoURL, c.IsEarly, c.UpdatedAt)
	return conditional(res, err)
}

// Decide applies an approval or rejection if the event is still pending.
func (r *Repository) Decide(ctx context.Context, id string, d Decision) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE attendance_events
		SET status = $2, approved_at = $3, approved_by = $4, approval_reason = $5, updated_at = $3
		WHERE id = $1 AND status = 'pending'
	`, id, string(d.Status), d.At, d.ApprovedBy, d.Reason)
	return conditional(res, err)
}

// SetPhotoScore stores the face-detection score of an event.
func (r *Repository) SetPhotoScore(ctx context.Context, id string, score float64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE attendance_events SET photo_score = $2 WHERE id = $1`, id, score)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrEventNotFound
	}
	return nil
}

// Rekey moves a record to a new id inside one transaction. The old row is
// deleted before the insert so the partial unique indexes never see both.
func (r *Repository) Rekey(ctx context.Context, oldID, newID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `DELETE FROM attendance_events WHERE id = $1 RETURNING `+eventColumns, oldID)
	evt, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrEventNotFound
	}
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO attendance_events (`+eventColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
	`, newID, evt.InternID, evt.TeacherID, evt.ClockIn, evt.ClockOut,
		evt.Location.Address, evt.Location.Latitude, evt.Location.Longitude,
		evt.PhotoURL, evt.TimeOutPhotoURL, string(evt.Status), evt.IsLate, evt.IsEarly,
		evt.CreatedAt, evt.UpdatedAt, evt.ApprovedAt, evt.ApprovedBy, evt.ApprovalReason, evt.PhotoScore)
	if isUniqueViolation(err) {
		return ErrIDTaken
	}
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (r *Repository) list(ctx context.Context, query string, args ...any) ([]Event, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Event
	for rows.Next() {
		evt, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		if err := evt.Validate(); err != nil {
			log.Warn().Err(err).Str("event_id", evt.ID).Msg("skipping malformed attendance record")
			continue
		}
		res = append(res, evt)
	}
	return res, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(s scanner) (Event, error) {
	var (
		evt        Event
		status     string
		clockOut   sql.NullTime
		approvedAt sql.NullTime
		score      sql.NullFloat64
	)
	err := s.Scan(&evt.ID, &evt.InternID, &evt.TeacherID, &evt.ClockIn, &clockOut,
		&evt.Location.Address, &evt.Location.Latitude, &evt.Location.Longitude,
		&evt.PhotoURL, &evt.TimeOutPhotoURL, &status, &evt.IsLate, &evt.IsEarly,
		&evt.CreatedAt, &evt.UpdatedAt, &approvedAt, &evt.ApprovedBy, &evt.ApprovalReason, &score)
	if err != nil {
		return Event{}, err
	}
	evt.Status = Status(status)
	if clockOut.Valid {
		t := clockOut.Time
		evt.ClockOut = &t
	}
	if approvedAt.Valid {
		t := approvedAt.Time
		evt.ApprovedAt = &t
	}
	if score.Valid {
		v := score.Float64
		evt.PhotoScore = &v
	}
	return evt, nil
}

func conditional(res sql.Result, err error) error {
	if isUniqueViolation(err) {
		return ErrStale
	}
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrStale
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
