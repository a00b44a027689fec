package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ryan-RCNR/proveit-proctor/internal/violation"
)

var t0 = time.Date(2026, 3, 9, 13, 0, 0, 0, time.UTC)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "archive.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateAndGetSession(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	rec := SessionRecord{
		ID:              "s-1",
		StartedAt:       t0,
		DurationMinutes: 30,
		PolicyHash:      "sha256:abc",
	}
	require.NoError(t, s.CreateSession(ctx, rec))

	got, err := s.GetSession(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, "s-1", got.ID)
	assert.Equal(t, "open", got.Outcome)
	assert.Equal(t, 30, got.DurationMinutes)
	assert.True(t, got.StartedAt.Equal(t0))
	assert.Nil(t, got.EndedAt)
}

func TestGetSessionNotFound(t *testing.T) {
	s := openTest(t)
	_, err := s.GetSession(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFinishSessionArchivesTrail(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	require.NoError(t, s.CreateSession(ctx, SessionRecord{ID: "s-1", StartedAt: t0, DurationMinutes: 30}))

	trail := []violation.Violation{
		{Kind: violation.KindTabSwitch, Timestamp: t0.Add(time.Minute), OccurrenceIndex: 1},
		{Kind: violation.KindWindowBlur, Timestamp: t0.Add(2 * time.Minute), OccurrenceIndex: 1},
	}
	ended := t0.Add(2 * time.Minute)
	require.NoError(t, s.FinishSession(ctx, "s-1", "forced_submission", "lockdown", ended, 2, trail))

	got, err := s.GetSession(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, "forced_submission", got.Outcome)
	assert.Equal(t, "lockdown", got.Cause)
	assert.Equal(t, 2, got.Strikes)
	require.NotNil(t, got.EndedAt)
	assert.True(t, got.EndedAt.Equal(ended))

	archived, err := s.Trail(ctx, "s-1")
	require.NoError(t, err)
	require.Len(t, archived, 2)
	assert.Equal(t, violation.KindTabSwitch, archived[0].Kind)
	assert.Equal(t, violation.KindWindowBlur, archived[1].Kind)
	assert.Equal(t, 1, archived[1].OccurrenceIndex)
}

func TestFinishSessionUnknownID(t *testing.T) {
	s := openTest(t)
	err := s.FinishSession(context.Background(), "missing", "submitted", "", t0, 0, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListSessionsFilterAndOrder(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	require.NoError(t, s.CreateSession(ctx, SessionRecord{ID: "s-old", StartedAt: t0, DurationMinutes: 30}))
	require.NoError(t, s.CreateSession(ctx, SessionRecord{ID: "s-new", StartedAt: t0.Add(time.Hour), DurationMinutes: 30}))
	require.NoError(t, s.FinishSession(ctx, "s-old", "time_expired", "timeout", t0.Add(30*time.Minute), 0, nil))

	all, err := s.ListSessions(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "s-new", all[0].ID, "newest first")

	expired, err := s.ListSessions(ctx, "time_expired", 10)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, "s-old", expired[0].ID)
}

func TestCountByKind(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	require.NoError(t, s.CreateSession(ctx, SessionRecord{ID: "s-1", StartedAt: t0, DurationMinutes: 30}))
	require.NoError(t, s.CreateSession(ctx, SessionRecord{ID: "s-2", StartedAt: t0, DurationMinutes: 30}))

	require.NoError(t, s.FinishSession(ctx, "s-1", "forced_submission", "lockdown", t0, 2, []violation.Violation{
		{Kind: violation.KindTabSwitch, Timestamp: t0, OccurrenceIndex: 1},
		{Kind: violation.KindTabSwitch, Timestamp: t0, OccurrenceIndex: 2},
	}))
	require.NoError(t, s.FinishSession(ctx, "s-2", "forced_submission", "lockdown", t0, 0, []violation.Violation{
		{Kind: violation.KindCopyAttempt, Timestamp: t0, OccurrenceIndex: 1},
	}))

	counts, err := s.CountByKind(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"tab_switch": 2, "copy_attempt": 1}, counts)
}

func TestReopenPersists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "archive.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.CreateSession(ctx, SessionRecord{ID: "s-1", StartedAt: t0, DurationMinutes: 30}))
	require.NoError(t, s.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()
	got, err := s2.GetSession(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, "s-1", got.ID)
}
