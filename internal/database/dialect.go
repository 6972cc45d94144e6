package database

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// dialect isolates the SQL differences between the supported backends.
type dialect interface {
	schema() []string
	placeholder(n int) string
	// field extracts a top-level document field as a comparable value.
	field(name string) string
	// numeric extracts a top-level document field as a number.
	numeric(name string) string
	// value converts a filter value to what field() yields for it.
	value(v any) any
	// body selects the document as JSON text.
	body() string
	// merge returns an expression applying a JSON merge patch to body.
	merge(ph string) string
	isDuplicate(err error) bool
}

type sqliteDialect struct{}

func (sqliteDialect) schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS documents (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			collection TEXT NOT NULL,
			body TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents(collection)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_accounts_email
			ON documents(json_extract(body, '$.email')) WHERE collection = 'accounts'`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_profiles_email
			ON documents(json_extract(body, '$.email')) WHERE collection = 'profiles'`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_applications_applicant
			ON documents(json_extract(body, '$.job_id'), json_extract(body, '$.applicant_email'))
			WHERE collection = 'applications'`,
	}
}

func (sqliteDialect) placeholder(int) string { return "?" }

func (sqliteDialect) field(name string) string {
	return fmt.Sprintf("json_extract(body, '$.%s')", name)
}

func (d sqliteDialect) numeric(name string) string { return d.field(name) }

// json_extract yields 1/0 for JSON booleans.
func (sqliteDialect) value(v any) any {
	if b, ok := v.(bool); ok {
		if b {
			return 1
		}
		return 0
	}
	return v
}

func (sqliteDialect) body() string { return "body" }

func (sqliteDialect) merge(ph string) string {
	return "json_patch(body, " + ph + ")"
}

func (sqliteDialect) isDuplicate(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

type postgresDialect struct{}

func (postgresDialect) schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS documents (
			seq BIGSERIAL PRIMARY KEY,
			id TEXT NOT NULL UNIQUE,
			collection TEXT NOT NULL,
			body JSONB NOT NULL,
			created_at TIMESTAMPTZ DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents(collection)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_accounts_email
			ON documents ((body->>'email')) WHERE collection = 'accounts'`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_profiles_email
			ON documents ((body->>'email')) WHERE collection = 'profiles'`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_applications_applicant
			ON documents ((body->>'job_id'), (body->>'applicant_email'))
			WHERE collection = 'applications'`,
	}
}

func (postgresDialect) placeholder(n int) string { return fmt.Sprintf("$%d", n) }

func (postgresDialect) field(name string) string {
	return fmt.Sprintf("body->>'%s'", name)
}

func (postgresDialect) numeric(name string) string {
	return fmt.Sprintf("(body->>'%s')::bigint", name)
}

// ->> yields text, so every filter value is compared in its text form.
func (postgresDialect) value(v any) any {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

func (postgresDialect) body() string { return "body::text" }

func (postgresDialect) merge(ph string) string {
	return "body || " + ph + "::jsonb"
}

func (postgresDialect) isDuplicate(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
