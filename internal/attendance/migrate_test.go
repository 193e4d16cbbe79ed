package attendance

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FunkyDevv/ITRACK-sub000/internal/apperr"
)

func seed(t *testing.T, s *MemoryStore, events ...Event) {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range events {
		s.events[e.ID] = e
	}
}

func ids(t *testing.T, s *MemoryStore) []string {
	t.Helper()
	all, err := s.ListAll(context.Background())
	require.NoError(t, err)
	out := make([]string, 0, len(all))
	for _, e := range all {
		out = append(out, e.ID)
	}
	sort.Strings(out)
	return out
}

func TestDeterministicIDUsesUTCDate(t *testing.T) {
	ts := time.Date(2024, 3, 4, 23, 30, 0, 0, time.FixedZone("PHT", 8*3600))
	assert.Equal(t, "intern1_2024-03-04", DeterministicID("intern1", ts))
	assert.Equal(t, "intern1_2024-03-05", DeterministicID("intern1", ts.Add(9*time.Hour)))
}

func TestMigrateRecordsIsIdempotent(t *testing.T) {
	store := NewMemoryStore()
	seed(t, store,
		ev("3f1c9a2e-5b7d-4e8a-9c1f-2d3e4f5a6b7c", StatusApproved, base, true),
		ev("intern1_2024-03-05", StatusApproved, base.AddDate(0, 0, 1), true),
		ev("a8b9c0d1-e2f3-4a5b-8c6d-7e8f9a0b1c2d", StatusPending, base.AddDate(0, 0, 2), false),
	)

	first, err := MigrateRecords(context.Background(), store)
	require.NoError(t, err)
	assert.Equal(t, 3, first.Scanned)
	assert.Equal(t, 2, first.Migrated)
	assert.Equal(t, 1, first.Skipped)
	assert.Empty(t, first.Conflicts)
	once := ids(t, store)
	assert.Equal(t, []string{"intern1_2024-03-04", "intern1_2024-03-05", "intern1_2024-03-06"}, once)

	second, err := MigrateRecords(context.Background(), store)
	require.NoError(t, err)
	assert.Zero(t, second.Migrated)
	assert.Equal(t, 3, second.Skipped)
	assert.Equal(t, once, ids(t, store))
}

func TestMigrateRecordsKeepsCollidingRecord(t *testing.T) {
	store := NewMemoryStore()
	morning := ev("intern1_2024-03-04", StatusApproved, base, true)
	evening := ev("0b0c0d0e-aaaa-4bbb-8ccc-000000000001", StatusApproved, base.Add(9*time.Hour), true)
	seed(t, store, morning, evening)

	report, err := MigrateRecords(context.Background(), store)
	require.NoError(t, err)
	require.Len(t, report.Conflicts, 1)
	assert.Equal(t, evening.ID, report.Conflicts[0].EventID)
	assert.Equal(t, "intern1_2024-03-04", report.Conflicts[0].TargetID)
	assert.True(t, apperr.IsKind(report.Err(), apperr.KindMigrationConflict))

	kept, err := store.Get(context.Background(), evening.ID)
	require.NoError(t, err)
	assert.Equal(t, evening.CreatedAt, kept.CreatedAt)

	again, err := MigrateRecords(context.Background(), store)
	require.NoError(t, err)
	assert.Len(t, again.Conflicts, 1)
	assert.Equal(t, []string{evening.ID, "intern1_2024-03-04"}, ids(t, store))
}

func TestMigrateRecordsSkipsNonAlphanumericInternIDs(t *testing.T) {
	store := NewMemoryStore()
	e := ev("random-id", StatusApproved, base, true)
	e.InternID = "intern-7"
	seed(t, store, e)

	first, err := MigrateRecords(context.Background(), store)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Migrated)

	second, err := MigrateRecords(context.Background(), store)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Skipped)
	assert.Equal(t, []string{"intern-7_2024-03-04"}, ids(t, store))
}
