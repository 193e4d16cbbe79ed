package attendance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FunkyDevv/ITRACK-sub000/internal/apperr"
	"github.com/FunkyDevv/ITRACK-sub000/internal/feed"
	"github.com/FunkyDevv/ITRACK-sub000/internal/queue"
)

type profileStub map[string]InternProfile

func (p profileStub) InternProfile(ctx context.Context, internID string) (InternProfile, error) {
	prof, ok := p[internID]
	if !ok {
		return InternProfile{}, apperr.New(apperr.KindValidation, "unknown intern")
	}
	return prof, nil
}

type testEnv struct {
	svc    *Service
	store  *MemoryStore
	broker *feed.InMemory
	jobs   *queue.InMemory
	now    time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		store:  NewMemoryStore(),
		broker: feed.NewInMemory(8),
		jobs:   queue.NewInMemory(16),
		now:    time.Date(2024, 3, 4, 9, 15, 0, 0, time.UTC),
	}
	profiles := profileStub{
		"intern1": {UID: "intern1", TeacherID: "teacher1", ScheduledTimeIn: "09:00", ScheduledTimeOut: "17:00"},
		"intern2": {UID: "intern2", TeacherID: "teacher1"},
		"orphan":  {UID: "orphan"},
	}
	env.svc = NewService(env.store, profiles, env.broker, env.jobs, time.UTC)
	env.svc.now = func() time.Time { return env.now }
	return env
}

func (e *testEnv) at(hhmm string) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		panic(err)
	}
	e.now = time.Date(e.now.Year(), e.now.Month(), e.now.Day(), t.Hour(), t.Minute(), 0, 0, time.UTC)
}

var office = Location{Address: "1 Ayala Ave, Makati", Latitude: 14.5547, Longitude: 121.0244}

const photo = "https://cdn.example.com/in.jpg"

func TestSessionLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id, err := env.svc.TimeIn(ctx, "intern1", office, photo)
	require.NoError(t, err)

	evt, err := env.svc.Event(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, evt.Status)
	assert.True(t, evt.IsLate)
	assert.Equal(t, "teacher1", evt.TeacherID)

	cur, err := env.svc.GetCurrentSession(ctx, "intern1")
	require.NoError(t, err)
	assert.Nil(t, cur)

	require.NoError(t, env.svc.Approve(ctx, id, "teacher1", ""))
	cur, err = env.svc.GetCurrentSession(ctx, "intern1")
	require.NoError(t, err)
	require.NotNil(t, cur)
	assert.Equal(t, id, cur.ID)
	assert.Equal(t, "teacher1", cur.ApprovedBy)

	env.at("16:30")
	require.NoError(t, env.svc.TimeOut(ctx, id, "https://cdn.example.com/out.jpg"))

	evt, err = env.svc.Event(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, evt.ClockOut)
	assert.Equal(t, StatusPending, evt.Status)
	assert.True(t, evt.IsEarly)
	assert.Equal(t, "https://cdn.example.com/out.jpg", evt.TimeOutPhotoURL)

	cur, err = env.svc.GetCurrentSession(ctx, "intern1")
	require.NoError(t, err)
	assert.Nil(t, cur)
	pending, err := env.svc.GetPendingSession(ctx, "intern1")
	require.NoError(t, err)
	require.NotNil(t, pending)
	assert.Equal(t, id, pending.ID)

	require.NoError(t, env.svc.Approve(ctx, id, "teacher1", "ok"))

	env.at("17:05")
	_, err = env.svc.TimeIn(ctx, "intern1", office, photo)
	assert.ErrorIs(t, err, ErrCompletedToday)

	env.now = env.now.AddDate(0, 0, 1)
	env.at("08:55")
	next, err := env.svc.TimeIn(ctx, "intern1", office, photo)
	require.NoError(t, err)
	evt, err = env.svc.Event(ctx, next)
	require.NoError(t, err)
	assert.False(t, evt.IsLate)
}

func TestPendingBlocksTimeIn(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.TimeIn(ctx, "intern1", office, photo)
	require.NoError(t, err)
	_, err = env.svc.TimeIn(ctx, "intern1", office, photo)
	assert.ErrorIs(t, err, ErrPendingExists)
	assert.True(t, apperr.IsKind(err, apperr.KindStateConflict))

	_, err = env.svc.TimeIn(ctx, "intern2", office, photo)
	assert.NoError(t, err, "other interns are unaffected")
}

func TestOpenSessionBlocksTimeIn(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id, err := env.svc.TimeIn(ctx, "intern1", office, photo)
	require.NoError(t, err)
	require.NoError(t, env.svc.Approve(ctx, id, "teacher1", ""))

	_, err = env.svc.TimeIn(ctx, "intern1", office, photo)
	assert.ErrorIs(t, err, ErrAlreadyClockedIn)
}

func TestAtMostOneCurrentSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for day := 0; day < 4; day++ {
		env.at("09:00")
		id, err := env.svc.TimeIn(ctx, "intern1", office, photo)
		require.NoError(t, err)
		require.NoError(t, env.svc.Approve(ctx, id, "teacher1", ""))
		assertAtMostOneCurrent(t, env)

		env.at("17:00")
		require.NoError(t, env.svc.TimeOut(ctx, id, photo))
		assertAtMostOneCurrent(t, env)
		if day%2 == 0 {
			require.NoError(t, env.svc.Approve(ctx, id, "teacher1", ""))
		} else {
			require.NoError(t, env.svc.Reject(ctx, id, "teacher1", "photo unclear"))
		}
		env.now = env.now.AddDate(0, 0, 1)
	}

	history, err := env.svc.GetHistory(ctx, "intern1")
	require.NoError(t, err)
	assert.Len(t, history, 4)
	for i := 1; i < len(history); i++ {
		assert.False(t, history[i].CreatedAt.After(history[i-1].CreatedAt))
	}
}

func assertAtMostOneCurrent(t *testing.T, env *testEnv) {
	t.Helper()
	events, err := env.store.ListByIntern(context.Background(), "intern1")
	require.NoError(t, err)
	n := 0
	for _, e := range events {
		if isCurrent(e) {
			n++
		}
	}
	assert.LessOrEqual(t, n, 1)
}

func TestTimeInValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	cases := []struct {
		name     string
		intern   string
		loc      Location
		photo    string
		expected error
	}{
		{"no intern", "", office, photo, ErrInternRequired},
		{"no photo", "intern1", office, " ", ErrPhotoRequired},
		{"data uri", "intern1", office, "data:image/jpeg;base64,/9j/4AAQ", ErrEmbeddedPhoto},
		{"blob uri", "intern1", office, "blob:https://app/123", ErrEmbeddedPhoto},
		{"no address", "intern1", Location{Latitude: 1, Longitude: 1}, photo, ErrLocationRequired},
		{"bad latitude", "intern1", Location{Address: "x", Latitude: 91}, photo, ErrLocationRequired},
		{"no teacher", "orphan", office, photo, ErrNoTeacher},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.svc.TimeIn(ctx, tc.intern, tc.loc, tc.photo)
			assert.ErrorIs(t, err, tc.expected)
			assert.True(t, apperr.IsKind(err, apperr.KindValidation))
		})
	}
	all, _ := env.store.ListAll(ctx)
	assert.Empty(t, all)
}

func TestTimeOutRequiresApprovedOpenSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id, err := env.svc.TimeIn(ctx, "intern1", office, photo)
	require.NoError(t, err)

	assert.ErrorIs(t, env.svc.TimeOut(ctx, id, photo), ErrNoOpenSession)
	assert.ErrorIs(t, env.svc.TimeOut(ctx, "missing", photo), ErrEventNotFound)

	require.NoError(t, env.svc.Approve(ctx, id, "teacher1", ""))
	assert.ErrorIs(t, env.svc.TimeOut(ctx, id, ""), ErrTimeOutPhotoRequired)
	assert.ErrorIs(t, env.svc.TimeOut(ctx, id, "data:image/png;base64,AAAA"), ErrEmbeddedPhoto)

	require.NoError(t, env.svc.TimeOut(ctx, id, photo))
	assert.ErrorIs(t, env.svc.TimeOut(ctx, id, photo), ErrNoOpenSession)
}

func TestDecisionRequiresPending(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id, err := env.svc.TimeIn(ctx, "intern1", office, photo)
	require.NoError(t, err)

	assert.ErrorIs(t, env.svc.Approve(ctx, id, "", ""), ErrApproverRequired)
	require.NoError(t, env.svc.Reject(ctx, id, "teacher1", "  blurry photo "))

	evt, err := env.svc.Event(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, evt.Status)
	assert.Equal(t, "blurry photo", evt.ApprovalReason)
	require.NotNil(t, evt.ApprovedAt)

	assert.ErrorIs(t, env.svc.Approve(ctx, id, "teacher1", ""), ErrNotPending)
	assert.ErrorIs(t, env.svc.Reject(ctx, "missing", "teacher1", ""), ErrEventNotFound)

	_, err = env.svc.TimeIn(ctx, "intern1", office, photo)
	assert.NoError(t, err, "a rejected submission does not block a new time-in")
}

// racyStore hides existing events from the pre-check so the storage guard
// is what refuses the write.
type racyStore struct {
	*MemoryStore
}

func (racyStore) ListByIntern(ctx context.Context, internID string) ([]Event, error) {
	return nil, nil
}

func TestStorageGuardSurfacesAsConflict(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.svc.TimeIn(ctx, "intern1", office, photo)
	require.NoError(t, err)

	env.svc.store = racyStore{env.store}
	_, err = env.svc.TimeIn(ctx, "intern1", office, photo)
	assert.ErrorIs(t, err, ErrPendingExists)
}

type failingStore struct {
	*MemoryStore
}

func (failingStore) ListByIntern(ctx context.Context, internID string) ([]Event, error) {
	return nil, errors.New("connection refused")
}

func TestBackendFailuresAreTyped(t *testing.T) {
	env := newTestEnv(t)
	env.svc.store = failingStore{env.store}

	_, err := env.svc.TimeIn(context.Background(), "intern1", office, photo)
	assert.True(t, apperr.IsKind(err, apperr.KindBackendUnavailable))
	_, err = env.svc.GetHistory(context.Background(), "intern1")
	assert.True(t, apperr.IsKind(err, apperr.KindBackendUnavailable))
}

func TestTransitionsEnqueueVerification(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	id, err := env.svc.TimeIn(ctx, "intern1", office, photo)
	require.NoError(t, err)

	msgs, err := env.jobs.Consume(ctx)
	require.NoError(t, err)
	select {
	case m := <-msgs:
		assert.Equal(t, queue.TypeVerifyPhoto, m.Type)
		assert.Equal(t, id, string(m.Body))
	case <-time.After(time.Second):
		t.Fatal("no verification job queued")
	}
}

func TestTransitionsDoNotWaitOnFullQueue(t *testing.T) {
	env := newTestEnv(t)
	env.jobs = queue.NewInMemory(1)
	env.svc.jobs = env.jobs

	done := make(chan error, 1)
	go func() {
		id, err := env.svc.TimeIn(context.Background(), "intern1", office, photo)
		if err == nil {
			err = env.svc.Approve(context.Background(), id, "teacher1", "")
		}
		if err == nil {
			env.at("17:05")
			err = env.svc.TimeOut(context.Background(), id, "https://cdn.example.com/out.jpg")
		}
		if err == nil {
			_, err = env.svc.TimeIn(context.Background(), "intern2", office, photo)
		}
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("transition blocked on a full job queue")
	}
	pending, err := env.svc.GetPendingSession(context.Background(), "intern2")
	require.NoError(t, err)
	assert.NotNil(t, pending)
}

func TestInternWatchRecomputesOnChange(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	w, err := env.svc.SubscribeToInternAttendance(ctx, "intern1")
	require.NoError(t, err)
	defer w.Close()

	first := recv(t, w.C)
	assert.Nil(t, first.Pending)
	assert.Empty(t, first.History)

	id, err := env.svc.TimeIn(ctx, "intern1", office, photo)
	require.NoError(t, err)
	view := recv(t, w.C)
	require.NotNil(t, view.Pending)
	assert.Equal(t, id, view.Pending.ID)

	require.NoError(t, env.svc.Approve(ctx, id, "teacher1", ""))
	view = recv(t, w.C)
	require.NotNil(t, view.Current)
	assert.Nil(t, view.Pending)

	w.Close()
	for range w.C {
	}
	assert.Equal(t, 0, env.broker.Subscribers(feed.InternTopic("intern1")))
}

func TestTeacherWatchListsPending(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())

	w, err := env.svc.SubscribeToTeacherAttendance(ctx, "teacher1")
	require.NoError(t, err)
	assert.Empty(t, recv(t, w.C).Events)

	_, err = env.svc.TimeIn(ctx, "intern2", office, photo)
	require.NoError(t, err)
	view := recv(t, w.C)
	assert.Len(t, view.Events, 1)
	assert.Len(t, view.Pending, 1)

	cancel()
	for range w.C {
	}
}

func recv[T any](t *testing.T, c <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-c:
		require.True(t, ok, "watch closed")
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("no view delivered")
	}
	var zero T
	return zero
}
