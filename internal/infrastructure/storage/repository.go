package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"BulletinDispatch/internal/domain"
	"BulletinDispatch/internal/ports"
)

// Repository persists bulletins, clients and the dispatch log through
// database/sql. One instance serves one backend dialect.
type Repository struct {
	db      *sql.DB
	dialect Dialect
	builder sq.StatementBuilderType
}

var (
	_ ports.BulletinRepository = (*Repository)(nil)
	_ ports.ClientDirectory    = (*Repository)(nil)
	_ ports.OutcomeLog         = (*Repository)(nil)
)

// NewRepository wires a sql.DB opened for dialect.
func NewRepository(db *sql.DB, dialect Dialect) *Repository {
	return &Repository{
		db:      db,
		dialect: dialect,
		builder: sq.StatementBuilder.PlaceholderFormat(dialect.Placeholder),
	}
}

// Migrate creates the tables if they do not exist.
func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, r.dialect.Schema); err != nil {
		return fmt.Errorf("migrate %s schema: %w", r.dialect.Name, err)
	}
	return nil
}

var bulletinColumns = []string{
	"id", "client_key",
	"bulletin_number", "bulletin_date", "order_number", "applicant", "agent",
	"file_number", "class", "guarded_mark", "published_mark", "class_list",
	"importance", "generated", "sent",
	"artifact_name", "artifact_path", "generated_at", "sent_at",
}

// ListBulletins returns bulletins matching filter ordered by id.
func (r *Repository) ListBulletins(ctx context.Context, filter ports.BulletinFilter) ([]domain.Bulletin, error) {
	q := r.builder.Select(bulletinColumns...).From("bulletins").OrderBy("id")
	if filter.Generated != nil {
		q = q.Where(sq.Eq{"generated": *filter.Generated})
	}
	if filter.Sent != nil {
		q = q.Where(sq.Eq{"sent": *filter.Sent})
	}
	if filter.Importance != nil {
		q = q.Where(sq.Eq{"importance": string(*filter.Importance)})
	}
	if filter.ExcludePending {
		q = q.Where(sq.Eq{"importance": classifiedValues()})
	}
	if filter.ClientKey != "" {
		q = q.Where(sq.Eq{"client_key": filter.ClientKey})
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build bulletin query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query bulletins: %w", err)
	}

	var result []domain.Bulletin
	for rows.Next() {
		b, err := scanBulletin(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		result = append(result, b)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}

	return result, nil
}

func classifiedValues() []string {
	out := make([]string, 0, len(domain.Importances))
	for _, imp := range domain.Importances {
		if imp.Classified() {
			out = append(out, string(imp))
		}
	}
	return out
}

func scanBulletin(rows *sql.Rows) (domain.Bulletin, error) {
	var (
		b            domain.Bulletin
		importance   string
		artifactName sql.NullString
		artifactPath sql.NullString
		generatedAt  sql.NullTime
		sentAt       sql.NullTime
	)
	g := &b.Gazette
	err := rows.Scan(
		&b.ID, &b.ClientKey,
		&g.BulletinNumber, &g.BulletinDate, &g.OrderNumber, &g.Applicant, &g.Agent,
		&g.FileNumber, &g.Class, &g.GuardedMark, &g.PublishedMark, &g.ClassList,
		&importance, &b.Generated, &b.Sent,
		&artifactName, &artifactPath, &generatedAt, &sentAt,
	)
	if err != nil {
		return domain.Bulletin{}, fmt.Errorf("scan bulletin: %w", err)
	}

	// Anything but an exact classified value reads as Pending so the gate
	// holds the run until the row is reclassified.
	b.Importance = domain.Importance(importance)
	if !b.Importance.IsValid() {
		b.Importance = domain.ImportancePending
	}
	if artifactName.Valid && artifactName.String != "" {
		b.Artifact = &domain.Artifact{Name: artifactName.String, Path: artifactPath.String}
	}
	if generatedAt.Valid {
		t := generatedAt.Time
		b.GeneratedAt = &t
	}
	if sentAt.Valid {
		t := sentAt.Time
		b.SentAt = &t
	}
	return b, nil
}

// MarkGenerated flags exactly ids as generated into artifact. Every id must
// still be an unsent, ungenerated, non-Pending member of key; otherwise the
// transaction is rolled back with domain.ErrStaleGroup.
func (r *Repository) MarkGenerated(ctx context.Context, key domain.GroupKey, ids []int64, artifact domain.Artifact, at time.Time) error {
	if len(ids) == 0 {
		return fmt.Errorf("mark generated %s: %w: no members", key, domain.ErrStaleGroup)
	}

	q := r.builder.Update("bulletins").
		Set("generated", true).
		Set("generated_at", at.UTC()).
		Set("artifact_name", artifact.Name).
		Set("artifact_path", artifact.Path).
		Where(sq.Eq{
			"client_key": key.ClientKey,
			"importance": string(key.Importance),
			"generated":  false,
			"sent":       false,
		}).
		Where(sq.Eq{"importance": classifiedValues()}).
		Where(r.dialect.idIn(ids))

	return r.updateExactly(ctx, q, len(ids), "mark generated "+key.String())
}

// MarkSent flags exactly ids as sent. Every id must be generated and unsent.
func (r *Repository) MarkSent(ctx context.Context, ids []int64, at time.Time) error {
	if len(ids) == 0 {
		return fmt.Errorf("mark sent: %w: no members", domain.ErrStaleGroup)
	}

	q := r.builder.Update("bulletins").
		Set("sent", true).
		Set("sent_at", at.UTC()).
		Where(sq.Eq{"generated": true, "sent": false}).
		Where(r.dialect.idIn(ids))

	return r.updateExactly(ctx, q, len(ids), "mark sent")
}

// updateExactly runs q in its own transaction and commits only when it
// touched exactly want rows.
func (r *Repository) updateExactly(ctx context.Context, q sq.UpdateBuilder, want int, op string) error {
	query, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("%s: build: %w", op, err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", op, err)
	}

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("%s: exec: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if int(n) != want {
		_ = tx.Rollback()
		return fmt.Errorf("%s: %w: updated %d of %d rows", op, domain.ErrStaleGroup, n, want)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", op, err)
	}
	return nil
}

// InsertBulletin stores a new bulletin and returns its id. Ingestion lives
// outside this module; this is its write path.
func (r *Repository) InsertBulletin(ctx context.Context, b domain.Bulletin) (int64, error) {
	importance := b.Importance
	if importance == "" {
		importance = domain.ImportancePending
	}
	g := b.Gazette
	query, args, err := r.builder.Insert("bulletins").
		Columns(
			"client_key", "bulletin_number", "bulletin_date", "order_number", "applicant", "agent",
			"file_number", "class", "guarded_mark", "published_mark", "class_list", "importance",
		).
		Values(
			b.ClientKey, g.BulletinNumber, g.BulletinDate, g.OrderNumber, g.Applicant, g.Agent,
			g.FileNumber, g.Class, g.GuardedMark, g.PublishedMark, g.ClassList, string(importance),
		).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build insert bulletin: %w", err)
	}

	var id int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert bulletin: %w", err)
	}
	return id, nil
}

// Classify sets the importance of a bulletin that has not been generated.
func (r *Repository) Classify(ctx context.Context, id int64, importance domain.Importance) error {
	if !importance.IsValid() {
		return fmt.Errorf("classify bulletin %d: invalid importance %q", id, importance)
	}
	query, args, err := r.builder.Update("bulletins").
		Set("importance", string(importance)).
		Where(sq.Eq{"id": id, "generated": false}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build classify: %w", err)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("classify bulletin %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("classify bulletin %d: %w", id, domain.ErrStaleGroup)
	}
	return nil
}

// UpsertClient creates or replaces a client directory record.
func (r *Repository) UpsertClient(ctx context.Context, c domain.Client) error {
	query, args, err := r.builder.Insert("clients").
		Columns("client_key", "email", "phone", "address", "city", "province", "tax_id").
		Values(c.Key, c.Email, c.Phone, c.Address, c.City, c.Province, c.TaxID).
		Suffix(`ON CONFLICT (client_key) DO UPDATE SET
			email = EXCLUDED.email,
			phone = EXCLUDED.phone,
			address = EXCLUDED.address,
			city = EXCLUDED.city,
			province = EXCLUDED.province,
			tax_id = EXCLUDED.tax_id`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert client: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert client %q: %w", c.Key, err)
	}
	return nil
}

// LookupClient returns the client with exactly key.
func (r *Repository) LookupClient(ctx context.Context, key string) (domain.Client, bool, error) {
	query, args, err := r.builder.
		Select("client_key", "email", "phone", "address", "city", "province", "tax_id").
		From("clients").
		Where(sq.Eq{"client_key": key}).
		ToSql()
	if err != nil {
		return domain.Client{}, false, fmt.Errorf("build client query: %w", err)
	}

	var c domain.Client
	err = r.db.QueryRowContext(ctx, query, args...).
		Scan(&c.Key, &c.Email, &c.Phone, &c.Address, &c.City, &c.Province, &c.TaxID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Client{}, false, nil
	}
	if err != nil {
		return domain.Client{}, false, fmt.Errorf("query client %q: %w", key, err)
	}
	return c, true, nil
}

// Append inserts one dispatch log row.
func (r *Repository) Append(ctx context.Context, e domain.OutcomeLogEntry) error {
	query, args, err := r.builder.Insert("dispatch_log").
		Columns("id", "client_key", "email", "logged_at", "status", "error", "bulletin_number", "importance").
		Values(e.ID, e.ClientKey, e.Email, e.Timestamp.UTC(), string(e.Status), e.Error, e.BulletinNumber, string(e.Importance)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build outcome insert: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("append outcome: %w", err)
	}
	return nil
}

// List returns dispatch log rows in attempt order, optionally for one client.
func (r *Repository) List(ctx context.Context, clientKey string) ([]domain.OutcomeLogEntry, error) {
	q := r.builder.
		Select("id", "client_key", "email", "logged_at", "status", "error", "bulletin_number", "importance").
		From("dispatch_log").
		OrderBy("seq")
	if clientKey != "" {
		q = q.Where(sq.Eq{"client_key": clientKey})
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build outcome query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	var result []domain.OutcomeLogEntry
	for rows.Next() {
		var (
			e          domain.OutcomeLogEntry
			status     string
			importance string
		)
		if err := rows.Scan(&e.ID, &e.ClientKey, &e.Email, &e.Timestamp, &status, &e.Error, &e.BulletinNumber, &importance); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		e.Status = domain.OutcomeStatus(status)
		e.Importance = domain.Importance(importance)
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return result, nil
}
