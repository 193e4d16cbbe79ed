package attendance

import (
	"context"
	"database/sql/driver"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var columns = []string{
	"id", "intern_id", "teacher_id", "clock_in", "clock_out", "address", "latitude", "longitude",
	"photo_url", "time_out_photo_url", "status", "is_late", "is_early", "created_at", "updated_at",
	"approved_at", "approved_by", "approval_reason", "photo_score",
}

func newMockRepo(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRepository(db), mock
}

func row(id, status string, clockIn time.Time, clockOut any) []driver.Value {
	return []driver.Value{
		id, "intern1", "teacher1", clockIn, clockOut, "1 Ayala Ave", 14.55, 121.02,
		"https://cdn.example.com/in.jpg", "", status, true, false, clockIn, clockIn,
		nil, "", "", nil,
	}
}

func TestRepositoryInsertMapsUniqueViolation(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec("INSERT INTO attendance_events").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "attendance_one_pending_per_intern"})

	err := repo.Insert(context.Background(), ev("e1", StatusPending, base, false))
	assert.ErrorIs(t, err, ErrStale)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryListByInternSkipsMalformed(t *testing.T) {
	repo, mock := newMockRepo(t)
	out := base.Add(8 * time.Hour)
	rows := sqlmock.NewRows(columns).
		AddRow(row("e2", "pending", base.Add(24*time.Hour), nil)...).
		AddRow(row("bad", "archived", base, nil)...).
		AddRow(row("e1", "approved", base, out)...)
	mock.ExpectQuery("(?s)SELECT (.+) FROM attendance_events WHERE intern_id = \\$1").
		WithArgs("intern1").
		WillReturnRows(rows)

	events, err := repo.ListByIntern(context.Background(), "intern1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "e2", events[0].ID)
	assert.Nil(t, events[0].ClockOut)
	require.NotNil(t, events[1].ClockOut)
	assert.True(t, events[1].ClockOut.Equal(out))
	assert.Equal(t, StatusApproved, events[1].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryGetNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery("(?s)SELECT (.+) FROM attendance_events WHERE id = \\$1").
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows(columns))

	_, err := repo.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrEventNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryCloseSessionIsConditional(t *testing.T) {
	repo, mock := newMockRepo(t)
	closing := Closing{ClockOut: base, TimeOutPhotoURL: "https://cdn.example.com/out.jpg", UpdatedAt: base}

	mock.ExpectExec("(?s)UPDATE attendance_events(.+)WHERE id = \\$1 AND status = 'approved' AND clock_out IS NULL").
		WithArgs("e1", base, closing.TimeOutPhotoURL, false, base).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.CloseSession(context.Background(), "e1", closing), ErrStale)

	mock.ExpectExec("UPDATE attendance_events").WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NoError(t, repo.CloseSession(context.Background(), "e1", closing))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryDecide(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec("(?s)UPDATE attendance_events(.+)WHERE id = \\$1 AND status = 'pending'").
		WithArgs("e1", "approved", base, "teacher1", "ok").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Decide(context.Background(), "e1", Decision{Status: StatusApproved, ApprovedBy: "teacher1", Reason: "ok", At: base})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryRekey(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectBegin()
	mock.ExpectQuery("DELETE FROM attendance_events WHERE id = \\$1 RETURNING").
		WithArgs("uuid-1").
		WillReturnRows(sqlmock.NewRows(columns).AddRow(row("uuid-1", "approved", base, base.Add(time.Hour))...))
	mock.ExpectExec("INSERT INTO attendance_events").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Rekey(context.Background(), "uuid-1", "intern1_2024-03-04"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryRekeyTaken(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectBegin()
	mock.ExpectQuery("DELETE FROM attendance_events").
		WillReturnRows(sqlmock.NewRows(columns).AddRow(row("uuid-1", "approved", base, base.Add(time.Hour))...))
	mock.ExpectExec("INSERT INTO attendance_events").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "attendance_events_pkey"})
	mock.ExpectRollback()

	assert.ErrorIs(t, repo.Rekey(context.Background(), "uuid-1", "intern1_2024-03-04"), ErrIDTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}
