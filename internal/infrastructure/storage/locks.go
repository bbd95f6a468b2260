package storage

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"BulletinDispatch/internal/domain"
	"BulletinDispatch/internal/ports"
)

const lockNamespace = "bulletin-dispatch:"

// AdvisoryLocker serializes jobs with Postgres session advisory locks held
// on a dedicated connection. The lock dies with the session, so a crashed
// job never blocks the next run.
type AdvisoryLocker struct {
	db *sql.DB
}

var _ ports.JobLocker = (*AdvisoryLocker)(nil)

// NewAdvisoryLocker wires a Postgres sql.DB.
func NewAdvisoryLocker(db *sql.DB) *AdvisoryLocker {
	return &AdvisoryLocker{db: db}
}

// Acquire takes the lock for job or fails with domain.ErrJobRunning.
func (l *AdvisoryLocker) Acquire(ctx context.Context, job string) (func(), error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("lock connection: %w", err)
	}

	key := advisoryKey(job)
	var locked bool
	if err := conn.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1)`, key).Scan(&locked); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("try advisory lock: %w", err)
	}
	if !locked {
		_ = conn.Close()
		return nil, fmt.Errorf("%s: %w", job, domain.ErrJobRunning)
	}

	release := func() {
		_, _ = conn.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, key)
		_ = conn.Close()
	}
	return release, nil
}

func advisoryKey(job string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(lockNamespace + job))
	return int64(h.Sum64())
}

// DefaultLockTTL bounds how long a row of a crashed job blocks later runs.
const DefaultLockTTL = 2 * time.Minute

// TableLocker serializes jobs with a leased row per running job in
// job_locks. The holder renews the lease every ttl/3; a row whose lease
// has expired belongs to a dead process and is taken over.
// Used where the backend has no session locks (SQLite).
type TableLocker struct {
	db      *sql.DB
	builder sq.StatementBuilderType
	now     func() time.Time
	ttl     time.Duration
}

var _ ports.JobLocker = (*TableLocker)(nil)

// NewTableLocker wires a sql.DB whose schema includes job_locks.
func NewTableLocker(db *sql.DB, dialect Dialect) *TableLocker {
	return &TableLocker{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(dialect.Placeholder),
		now:     time.Now,
		ttl:     DefaultLockTTL,
	}
}

// Acquire inserts the job row or fails with domain.ErrJobRunning. Expired
// rows are removed in the same transaction.
func (l *TableLocker) Acquire(ctx context.Context, job string) (func(), error) {
	holder := uuid.NewString()
	now := l.now()

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin job lock: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query, args, err := l.builder.Delete("job_locks").
		Where(sq.Eq{"name": job}).
		Where(sq.Lt{"expires_at": now.UnixMilli()}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build expired lock delete: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("delete expired job lock: %w", err)
	}

	query, args, err = l.builder.Insert("job_locks").
		Columns("name", "holder", "acquired_at", "expires_at").
		Values(job, holder, now.UTC(), now.Add(l.ttl).UnixMilli()).
		Suffix("ON CONFLICT (name) DO NOTHING").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build lock insert: %w", err)
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("insert job lock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("job lock rows affected: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("%s: %w", job, domain.ErrJobRunning)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit job lock: %w", err)
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go l.renew(job, holder, stop, done)

	var once sync.Once
	release := func() {
		once.Do(func() {
			close(stop)
			<-done
			query, args, err := l.builder.Delete("job_locks").
				Where(sq.Eq{"name": job, "holder": holder}).
				ToSql()
			if err != nil {
				return
			}
			_, _ = l.db.ExecContext(context.Background(), query, args...)
		})
	}
	return release, nil
}

// renew extends the lease until stop is closed or the row is gone.
func (l *TableLocker) renew(job, holder string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ok, err := l.extend(job, holder)
			if err != nil || !ok {
				return
			}
		}
	}
}

func (l *TableLocker) extend(job, holder string) (bool, error) {
	query, args, err := l.builder.Update("job_locks").
		Set("expires_at", l.now().Add(l.ttl).UnixMilli()).
		Where(sq.Eq{"name": job, "holder": holder}).
		ToSql()
	if err != nil {
		return false, err
	}
	res, err := l.db.ExecContext(context.Background(), query, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}
