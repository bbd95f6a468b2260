package storage

import (
	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
)

// Dialect captures everything that differs between the supported backends.
// Queries are built once with squirrel; only placeholders, set membership
// and DDL vary.
type Dialect struct {
	Name        string
	Placeholder sq.PlaceholderFormat
	Schema      string
	idIn        func(ids []int64) sq.Sqlizer
}

// Postgres is the lib/pq backend.
var Postgres = Dialect{
	Name:        "postgres",
	Placeholder: sq.Dollar,
	Schema:      postgresSchema,
	idIn: func(ids []int64) sq.Sqlizer {
		return sq.Expr("id = ANY(?)", pq.Array(ids))
	},
}

// SQLite is the modernc.org/sqlite backend.
var SQLite = Dialect{
	Name:        "sqlite",
	Placeholder: sq.Question,
	Schema:      sqliteSchema,
	idIn: func(ids []int64) sq.Sqlizer {
		return sq.Eq{"id": ids}
	},
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS clients (
	client_key TEXT PRIMARY KEY,
	email      TEXT NOT NULL DEFAULT '',
	phone      TEXT NOT NULL DEFAULT '',
	address    TEXT NOT NULL DEFAULT '',
	city       TEXT NOT NULL DEFAULT '',
	province   TEXT NOT NULL DEFAULT '',
	tax_id     TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS bulletins (
	id              BIGSERIAL PRIMARY KEY,
	client_key      TEXT NOT NULL,
	bulletin_number TEXT NOT NULL DEFAULT '',
	bulletin_date   TEXT NOT NULL DEFAULT '',
	order_number    TEXT NOT NULL DEFAULT '',
	applicant       TEXT NOT NULL DEFAULT '',
	agent           TEXT NOT NULL DEFAULT '',
	file_number     TEXT NOT NULL DEFAULT '',
	class           TEXT NOT NULL DEFAULT '',
	guarded_mark    TEXT NOT NULL DEFAULT '',
	published_mark  TEXT NOT NULL DEFAULT '',
	class_list      TEXT NOT NULL DEFAULT '',
	importance      TEXT NOT NULL DEFAULT 'Pending',
	generated       BOOLEAN NOT NULL DEFAULT FALSE,
	sent            BOOLEAN NOT NULL DEFAULT FALSE,
	artifact_name   TEXT,
	artifact_path   TEXT,
	generated_at    TIMESTAMPTZ,
	sent_at         TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS bulletins_lifecycle_idx ON bulletins (generated, sent, importance);

CREATE TABLE IF NOT EXISTS dispatch_log (
	seq             BIGSERIAL PRIMARY KEY,
	id              TEXT NOT NULL UNIQUE,
	client_key      TEXT NOT NULL,
	email           TEXT NOT NULL DEFAULT '',
	logged_at       TIMESTAMPTZ NOT NULL,
	status          TEXT NOT NULL,
	error           TEXT NOT NULL DEFAULT '',
	bulletin_number TEXT NOT NULL DEFAULT '',
	importance      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS dispatch_log_client_idx ON dispatch_log (client_key, logged_at);
`

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS clients (
	client_key TEXT PRIMARY KEY,
	email      TEXT NOT NULL DEFAULT '',
	phone      TEXT NOT NULL DEFAULT '',
	address    TEXT NOT NULL DEFAULT '',
	city       TEXT NOT NULL DEFAULT '',
	province   TEXT NOT NULL DEFAULT '',
	tax_id     TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS bulletins (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	client_key      TEXT NOT NULL,
	bulletin_number TEXT NOT NULL DEFAULT '',
	bulletin_date   TEXT NOT NULL DEFAULT '',
	order_number    TEXT NOT NULL DEFAULT '',
	applicant       TEXT NOT NULL DEFAULT '',
	agent           TEXT NOT NULL DEFAULT '',
	file_number     TEXT NOT NULL DEFAULT '',
	class           TEXT NOT NULL DEFAULT '',
	guarded_mark    TEXT NOT NULL DEFAULT '',
	published_mark  TEXT NOT NULL DEFAULT '',
	class_list      TEXT NOT NULL DEFAULT '',
	importance      TEXT NOT NULL DEFAULT 'Pending',
	generated       BOOLEAN NOT NULL DEFAULT 0,
	sent            BOOLEAN NOT NULL DEFAULT 0,
	artifact_name   TEXT,
	artifact_path   TEXT,
	generated_at    TIMESTAMP,
	sent_at         TIMESTAMP
);

CREATE INDEX IF NOT EXISTS bulletins_lifecycle_idx ON bulletins (generated, sent, importance);

CREATE TABLE IF NOT EXISTS dispatch_log (
	seq             INTEGER PRIMARY KEY AUTOINCREMENT,
	id              TEXT NOT NULL UNIQUE,
	client_key      TEXT NOT NULL,
	email           TEXT NOT NULL DEFAULT '',
	logged_at       TIMESTAMP NOT NULL,
	status          TEXT NOT NULL,
	error           TEXT NOT NULL DEFAULT '',
	bulletin_number TEXT NOT NULL DEFAULT '',
	importance      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS dispatch_log_client_idx ON dispatch_log (client_key, logged_at);

CREATE TABLE IF NOT EXISTS job_locks (
	name        TEXT PRIMARY KEY,
	holder      TEXT NOT NULL,
	acquired_at TIMESTAMP NOT NULL,
	expires_at  INTEGER NOT NULL
);
`
