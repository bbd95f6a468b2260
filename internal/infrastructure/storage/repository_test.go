package storage

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"BulletinDispatch/internal/domain"
	"BulletinDispatch/internal/ports"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	store, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "bulletins.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(ctx))
	return store
}

func seed(t *testing.T, s *Store, client string, imp domain.Importance, number string) int64 {
	t.Helper()
	id, err := s.InsertBulletin(context.Background(), domain.Bulletin{
		ClientKey:  client,
		Importance: imp,
		Gazette: domain.Gazette{
			BulletinNumber: number,
			Applicant:      "Applicant " + number,
			PublishedMark:  "MARK" + number,
		},
	})
	require.NoError(t, err)
	return id
}

func boolPtr(v bool) *bool { return &v }

func TestNormalizeDriver(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"postgres":   DriverPostgres,
		"PostgreSQL": DriverPostgres,
		"sqlite":     DriverSQLite,
		" sqlite3 ":  DriverSQLite,
		"":           DriverSQLite,
	}
	for in, want := range cases {
		got, err := NormalizeDriver(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := NormalizeDriver("mysql")
	assert.ErrorContains(t, err, "mysql")
}

func TestOpenDefaultsToSQLite(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	for _, driver := range []string{"", "sqlite3"} {
		store, err := Open(ctx, driver, filepath.Join(t.TempDir(), "bulletins.db"))
		require.NoError(t, err, driver)
		assert.Equal(t, SQLite.Name, store.dialect.Name)
		require.NoError(t, store.Close())
	}
}

func TestListBulletinsReadsUnknownImportanceAsPending(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openTestStore(t)
	good := seed(t, s, "ACME", domain.ImportanceHigh, "100")
	odd := seed(t, s, "ACME", domain.ImportanceHigh, "101")
	lower := seed(t, s, "ACME", domain.ImportanceHigh, "102")
	_, err := s.DB().ExecContext(ctx, "UPDATE bulletins SET importance = 'Critical' WHERE id = ?", odd)
	require.NoError(t, err)
	_, err = s.DB().ExecContext(ctx, "UPDATE bulletins SET importance = 'high' WHERE id = ?", lower)
	require.NoError(t, err)

	all, err := s.ListBulletins(ctx, ports.BulletinFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, domain.ImportanceHigh, all[0].Importance)
	assert.Equal(t, domain.ImportancePending, all[1].Importance)
	assert.Equal(t, domain.ImportancePending, all[2].Importance)

	classified, err := s.ListBulletins(ctx, ports.BulletinFilter{ExcludePending: true})
	require.NoError(t, err)
	require.Len(t, classified, 1)
	assert.Equal(t, good, classified[0].ID)
}

func TestMigrateIsIdempotent(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	require.NoError(t, s.Migrate(context.Background()))
}

func TestListBulletinsFilters(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openTestStore(t)
	a := seed(t, s, "ACME", domain.ImportanceHigh, "100")
	seed(t, s, "ACME", domain.ImportancePending, "101")
	c := seed(t, s, "BETA", domain.ImportanceLow, "102")

	all, err := s.ListBulletins(ctx, ports.BulletinFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Applicant 100", all[0].Gazette.Applicant)
	assert.False(t, all[0].Generated)
	assert.Nil(t, all[0].Artifact)

	classified, err := s.ListBulletins(ctx, ports.BulletinFilter{Generated: boolPtr(false), ExcludePending: true})
	require.NoError(t, err)
	require.Len(t, classified, 2)
	assert.Equal(t, a, classified[0].ID)
	assert.Equal(t, c, classified[1].ID)

	high := domain.ImportanceHigh
	onlyHigh, err := s.ListBulletins(ctx, ports.BulletinFilter{Importance: &high, ClientKey: "ACME"})
	require.NoError(t, err)
	require.Len(t, onlyHigh, 1)
	assert.Equal(t, domain.ImportanceHigh, onlyHigh[0].Importance)
}

func TestMarkGeneratedScopedToMembers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openTestStore(t)
	a := seed(t, s, "ACME", domain.ImportanceHigh, "100")
	b := seed(t, s, "ACME", domain.ImportanceHigh, "101")
	other := seed(t, s, "ACME", domain.ImportanceHigh, "102")

	key := domain.GroupKey{ClientKey: "ACME", Importance: domain.ImportanceHigh}
	at := time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)
	artifact := domain.Artifact{Name: "r.pdf", Path: "/tmp/r.pdf"}
	require.NoError(t, s.MarkGenerated(ctx, key, []int64{a, b}, artifact, at))

	rows, err := s.ListBulletins(ctx, ports.BulletinFilter{Generated: boolPtr(true)})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, row := range rows {
		require.NotNil(t, row.Artifact)
		assert.Equal(t, artifact, *row.Artifact)
		require.NotNil(t, row.GeneratedAt)
		assert.True(t, at.Equal(*row.GeneratedAt))
		assert.NotEqual(t, other, row.ID)
	}

	// Already generated members cannot be re-pointed at a new artifact.
	err = s.MarkGenerated(ctx, key, []int64{a, other}, domain.Artifact{Name: "x.pdf"}, at)
	require.ErrorIs(t, err, domain.ErrStaleGroup)

	untouched, err := s.ListBulletins(ctx, ports.BulletinFilter{Generated: boolPtr(false)})
	require.NoError(t, err)
	require.Len(t, untouched, 1)
	assert.Equal(t, other, untouched[0].ID)
}

func TestMarkGeneratedRejectsPendingAndForeignMembers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openTestStore(t)
	pending := seed(t, s, "ACME", domain.ImportancePending, "100")
	foreign := seed(t, s, "BETA", domain.ImportanceHigh, "101")

	pendingKey := domain.GroupKey{ClientKey: "ACME", Importance: domain.ImportancePending}
	err := s.MarkGenerated(ctx, pendingKey, []int64{pending}, domain.Artifact{Name: "p.pdf"}, time.Now())
	require.ErrorIs(t, err, domain.ErrStaleGroup)

	acmeKey := domain.GroupKey{ClientKey: "ACME", Importance: domain.ImportanceHigh}
	err = s.MarkGenerated(ctx, acmeKey, []int64{foreign}, domain.Artifact{Name: "f.pdf"}, time.Now())
	require.ErrorIs(t, err, domain.ErrStaleGroup)

	err = s.MarkGenerated(ctx, acmeKey, nil, domain.Artifact{Name: "f.pdf"}, time.Now())
	require.ErrorIs(t, err, domain.ErrStaleGroup)
}

func TestMarkSentRequiresGenerated(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openTestStore(t)
	id := seed(t, s, "ACME", domain.ImportanceLow, "100")

	err := s.MarkSent(ctx, []int64{id}, time.Now())
	require.ErrorIs(t, err, domain.ErrStaleGroup)

	key := domain.GroupKey{ClientKey: "ACME", Importance: domain.ImportanceLow}
	require.NoError(t, s.MarkGenerated(ctx, key, []int64{id}, domain.Artifact{Name: "a.pdf"}, time.Now()))
	require.NoError(t, s.MarkSent(ctx, []int64{id}, time.Now()))

	rows, err := s.ListBulletins(ctx, ports.BulletinFilter{Sent: boolPtr(true)})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.NotNil(t, rows[0].SentAt)
	assert.Equal(t, domain.StageSent, rows[0].Stage())

	err = s.MarkSent(ctx, []int64{id}, time.Now())
	require.ErrorIs(t, err, domain.ErrStaleGroup)
}

func TestClassify(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openTestStore(t)
	id := seed(t, s, "ACME", domain.ImportancePending, "100")

	require.NoError(t, s.Classify(ctx, id, domain.ImportanceMedium))
	rows, err := s.ListBulletins(ctx, ports.BulletinFilter{ExcludePending: true})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, domain.ImportanceMedium, rows[0].Importance)

	assert.Error(t, s.Classify(ctx, id, domain.Importance("Critical")))
}

func TestClientDirectory(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openTestStore(t)

	_, ok, err := s.LookupClient(ctx, "ACME")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.UpsertClient(ctx, domain.Client{Key: "ACME", City: "Rosario"}))
	c, ok, err := s.LookupClient(ctx, "ACME")
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, c.HasEmail())

	require.NoError(t, s.UpsertClient(ctx, domain.Client{Key: "ACME", Email: "legal@acme.test", City: "Rosario"}))
	c, ok, err = s.LookupClient(ctx, "ACME")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "legal@acme.test", c.Email)

	_, ok, err = s.LookupClient(ctx, "acme")
	require.NoError(t, err)
	assert.False(t, ok, "lookup is exact-match")
}

func TestOutcomeLogAppendOnlyOrder(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openTestStore(t)
	at := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

	statuses := []domain.OutcomeStatus{domain.OutcomeFailed, domain.OutcomeSent, domain.OutcomeNoArtifact}
	for i, st := range statuses {
		require.NoError(t, s.Append(ctx, domain.OutcomeLogEntry{
			ID:             strings.Repeat(string(rune('a'+i)), 8),
			ClientKey:      "ACME",
			Email:          "legal@acme.test",
			Timestamp:      at,
			Status:         st,
			BulletinNumber: "100",
			Importance:     domain.ImportanceHigh,
		}))
	}
	require.NoError(t, s.Append(ctx, domain.OutcomeLogEntry{
		ID: "other", ClientKey: "BETA", Timestamp: at, Status: domain.OutcomeNoRecipient, Importance: domain.ImportanceLow,
	}))

	entries, err := s.List(ctx, "ACME")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for i, e := range entries {
		assert.Equal(t, statuses[i], e.Status)
		assert.True(t, at.Equal(e.Timestamp))
	}

	all, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestTableLocker(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openTestStore(t)

	release, err := s.Locker.Acquire(ctx, "dispatch")
	require.NoError(t, err)

	_, err = s.Locker.Acquire(ctx, "dispatch")
	require.ErrorIs(t, err, domain.ErrJobRunning)

	other, err := s.Locker.Acquire(ctx, "generate")
	require.NoError(t, err)
	other()

	release()
	again, err := s.Locker.Acquire(ctx, "dispatch")
	require.NoError(t, err)
	again()
}

func TestTableLockerTakesOverAbandonedLock(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "bulletins.db")
	t0 := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

	crashed, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	require.NoError(t, crashed.Migrate(ctx))
	first := NewTableLocker(crashed.DB(), SQLite)
	first.now = func() time.Time { return t0 }
	_, err = first.Acquire(ctx, "dispatch")
	require.NoError(t, err)
	// The process dies without releasing.
	require.NoError(t, crashed.Close())

	reopened, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })
	next := NewTableLocker(reopened.DB(), SQLite)

	next.now = func() time.Time { return t0.Add(DefaultLockTTL / 2) }
	_, err = next.Acquire(ctx, "dispatch")
	require.ErrorIs(t, err, domain.ErrJobRunning, "lease still valid")

	next.now = func() time.Time { return t0.Add(DefaultLockTTL + time.Second) }
	release, err := next.Acquire(ctx, "dispatch")
	require.NoError(t, err)

	_, err = next.Acquire(ctx, "dispatch")
	require.ErrorIs(t, err, domain.ErrJobRunning, "new holder owns a fresh lease")
	release()
	release()

	again, err := next.Acquire(ctx, "dispatch")
	require.NoError(t, err)
	again()
}

func TestTableLockerRenewsLease(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	locker := NewTableLocker(s.DB(), SQLite)
	locker.ttl = 30 * time.Millisecond

	release, err := locker.Acquire(context.Background(), "generate")
	require.NoError(t, err)
	defer release()

	var first, later int64
	row := `SELECT expires_at FROM job_locks WHERE name = 'generate'`
	require.NoError(t, s.DB().QueryRow(row).Scan(&first))
	require.Eventually(t, func() bool {
		return s.DB().QueryRow(row).Scan(&later) == nil && later > first
	}, time.Second, 5*time.Millisecond)
}

func TestDialectMembership(t *testing.T) {
	t.Parallel()

	sql, args, err := Postgres.idIn([]int64{1, 2}).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "id = ANY(?)", sql)
	assert.Len(t, args, 1)

	sql, args, err = SQLite.idIn([]int64{1, 2}).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "id IN (?,?)", sql)
	assert.Equal(t, []interface{}{int64(1), int64(2)}, args)
}
