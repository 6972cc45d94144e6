package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // Postgres driver
	_ "modernc.org/sqlite"             // SQLite driver
)

var (
	// ErrNoDocuments is returned by FindOne when no document matches the filter.
	ErrNoDocuments = errors.New("no documents in result")
	// ErrDuplicateKey is returned when an insert or update violates a unique index.
	ErrDuplicateKey = errors.New("duplicate key")
)

// Filter selects documents by top-level field equality. The "id" field matches
// the store-assigned identifier. A LessThan value matches numeric fields below it.
type Filter map[string]any

// LessThan matches numeric fields strictly below the value.
type LessThan int64

// Collection is a named set of JSON documents.
type Collection interface {
	// FindOne decodes the first matching document into out.
	FindOne(ctx context.Context, filter Filter, out any) error
	// FindMany decodes all matching documents, in insertion order, into out,
	// which must be a pointer to a slice.
	FindMany(ctx context.Context, filter Filter, out any) error
	// FindLatest decodes up to limit matching documents, newest first, into
	// out. A limit of zero or less returns every match.
	FindLatest(ctx context.Context, filter Filter, limit int, out any) error
	Count(ctx context.Context, filter Filter) (int64, error)
	// InsertOne stores doc and returns the generated identifier, which is also
	// written into the stored document's "id" field.
	InsertOne(ctx context.Context, doc any) (string, error)
	// UpdateOne merges set into the first matching document and returns the
	// number of documents modified.
	UpdateOne(ctx context.Context, filter Filter, set map[string]any) (int64, error)
	// DeleteOne removes the first matching document and returns the number of
	// documents deleted.
	DeleteOne(ctx context.Context, filter Filter) (int64, error)
	// DeleteMany removes every matching document and returns how many were deleted.
	DeleteMany(ctx context.Context, filter Filter) (int64, error)
}

// Store hands out collections backed by a single SQL database.
type Store struct {
	db      *sql.DB
	dialect dialect
}

// New opens a store for the given driver ("sqlite" or "postgres").
func New(driver, dataSourceName string) (*Store, error) {
	switch driver {
	case "", "sqlite":
		return NewSQLite(dataSourceName)
	case "postgres", "pgx":
		return NewPostgres(dataSourceName)
	default:
		return nil, fmt.Errorf("unsupported store driver %q", driver)
	}
}

// NewSQLite creates a store backed by an SQLite file. ":memory:" yields a
// private in-memory database.
func NewSQLite(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if path == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, dialect: sqliteDialect{}}, nil
}

// NewPostgres creates a store backed by Postgres JSONB documents.
func NewPostgres(url string) (*Store, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, err
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, dialect: postgresDialect{}}, nil
}

// Migrate creates the documents table and the unique indexes the services rely on.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.schema() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Collection returns the named collection.
func (s *Store) Collection(name string) Collection {
	return &collection{store: s, name: name}
}

var fieldPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// where renders the filter as a SQL predicate. Arguments start at position
// offset+1 so callers can prepend their own.
func (s *Store) where(name string, filter Filter, offset int) (string, []any, error) {
	args := []any{name}
	clauses := []string{"collection = " + s.dialect.placeholder(offset+1)}
	for field, value := range filter {
		if !fieldPattern.MatchString(field) {
			return "", nil, fmt.Errorf("invalid filter field %q", field)
		}
		ph := s.dialect.placeholder(offset + len(args) + 1)
		if lt, ok := value.(LessThan); ok {
			clauses = append(clauses, s.dialect.numeric(field)+" < "+ph)
			args = append(args, int64(lt))
			continue
		}
		if field == "id" {
			clauses = append(clauses, "id = "+ph)
			args = append(args, value)
			continue
		}
		clauses = append(clauses, s.dialect.field(field)+" = "+ph)
		args = append(args, s.dialect.value(value))
	}
	return strings.Join(clauses, " AND "), args, nil
}
