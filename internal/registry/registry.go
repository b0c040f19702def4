// Package registry persists the crawl sources and their watermarks. It
// backs onto Postgres in deployments and a local SQLite file in
// development; both run the same statements through database/sql.
package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

const (
	dialectSQLite   = "sqlite"
	dialectPostgres = "postgres"
)

// Subreddit is one crawl source. LastCrawledAt is the watermark the
// orchestrator resumes from; nil means the source was never crawled.
type Subreddit struct {
	ID            int64
	Name          string
	Enabled       bool
	LastCrawledAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Store is the relational source registry.
type Store struct {
	db      *sql.DB
	dialect string
}

// Open connects to the registry. A postgres:// or postgresql:// DSN
// uses the pgx driver; anything else is treated as a SQLite file path.
func Open(dsn string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("dsn is required")
	}

	dialect := dialectSQLite
	driver := "sqlite"
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		dialect = dialectPostgres
		driver = "pgx"
	} else {
		dir := filepath.Dir(dsn)
		if dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create db dir: %w", err)
			}
		}
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}

	store := &Store{db: db, dialect: dialect}
	ctx := context.Background()

	if dialect == dialectSQLite {
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("enable foreign keys: %w", err)
		}
	}

	if err := store.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// ListEnabled returns the enabled sources ordered by name.
func (s *Store) ListEnabled(ctx context.Context) ([]Subreddit, error) {
	return s.list(ctx, true)
}

// List returns every source ordered by name.
func (s *Store) List(ctx context.Context) ([]Subreddit, error) {
	return s.list(ctx, false)
}

func (s *Store) list(ctx context.Context, enabledOnly bool) ([]Subreddit, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("registry is not initialized")
	}

	query := `
		SELECT id, name, enabled, last_crawled_at, created_at, updated_at
		FROM subreddits
	`
	var args []any
	if enabledOnly {
		query += " WHERE enabled = ?"
		args = append(args, true)
	}
	query += " ORDER BY name ASC"

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list subreddits: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var subs []Subreddit
	for rows.Next() {
		sub, err := scanSubreddit(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subreddits: %w", err)
	}

	return subs, nil
}

// UpdateLastCrawledAt advances the watermark for one source.
func (s *Store) UpdateLastCrawledAt(ctx context.Context, id int64, crawledAt time.Time) error {
	if s == nil || s.db == nil {
		return errors.New("registry is not initialized")
	}
	if crawledAt.IsZero() {
		return errors.New("crawled at is required")
	}

	query := s.rebind(`
		UPDATE subreddits
		SET last_crawled_at = ?, updated_at = ?
		WHERE id = ?
	`)
	res, err := s.db.ExecContext(ctx, query, formatTime(crawledAt), formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("update watermark: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update watermark: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("subreddit %d not found", id)
	}
	return nil
}

// Upsert registers a source by name, re-enabling it when it already
// exists.
func (s *Store) Upsert(ctx context.Context, name string) error {
	if s == nil || s.db == nil {
		return errors.New("registry is not initialized")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("name is required")
	}

	now := formatTime(time.Now())
	query := s.rebind(`
		INSERT INTO subreddits (name, enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`)
	if _, err := s.db.ExecContext(ctx, query, name, true, now, now); err != nil {
		return fmt.Errorf("upsert subreddit %s: %w", name, err)
	}
	return nil
}

// SetEnabled flips the enabled flag for a named source.
func (s *Store) SetEnabled(ctx context.Context, name string, enabled bool) error {
	if s == nil || s.db == nil {
		return errors.New("registry is not initialized")
	}

	query := s.rebind(`
		UPDATE subreddits
		SET enabled = ?, updated_at = ?
		WHERE name = ?
	`)
	res, err := s.db.ExecContext(ctx, query, enabled, formatTime(time.Now()), name)
	if err != nil {
		return fmt.Errorf("set enabled for %s: %w", name, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set enabled for %s: %w", name, err)
	}
	if affected == 0 {
		return fmt.Errorf("subreddit %q not found", name)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubreddit(row rowScanner) (Subreddit, error) {
	var (
		sub           Subreddit
		lastCrawledAt sql.NullString
		createdAt     string
		updatedAt     string
	)
	if err := row.Scan(&sub.ID, &sub.Name, &sub.Enabled, &lastCrawledAt, &createdAt, &updatedAt); err != nil {
		return Subreddit{}, fmt.Errorf("scan subreddit: %w", err)
	}

	if lastCrawledAt.Valid {
		t, err := parseTime(lastCrawledAt.String)
		if err != nil {
			return Subreddit{}, fmt.Errorf("parse last_crawled_at: %w", err)
		}
		sub.LastCrawledAt = &t
	}

	var err error
	if sub.CreatedAt, err = parseTime(createdAt); err != nil {
		return Subreddit{}, fmt.Errorf("parse created_at: %w", err)
	}
	if sub.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return Subreddit{}, fmt.Errorf("parse updated_at: %w", err)
	}

	return sub, nil
}

// rebind rewrites ? placeholders to $N for the Postgres dialect.
func (s *Store) rebind(query string) string {
	if s.dialect != dialectPostgres {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
