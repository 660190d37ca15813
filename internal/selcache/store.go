// internal/selcache/store.go
package selcache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/halcyonforge/webpilot/api/schemas"
)

// Store is the durable backing for the reliability cache. The sqlite
// implementation is the production store; tests substitute an in-memory
// database through the same type.
type Store interface {
	Get(ctx context.Context, domain, action string) (*schemas.CachedSelector, error)
	Put(ctx context.Context, domain string, sel schemas.CachedSelector) error
	GetAll(ctx context.Context, domain string) (map[string]schemas.CachedSelector, error)
	Domains(ctx context.Context) ([]string, error)
	Clear(ctx context.Context, domain string) (int, error)
	PutCookies(ctx context.Context, domain string, blob json.RawMessage) error
	GetCookies(ctx context.Context, domain string) (json.RawMessage, error)
	Close() error
}

const schema = `
CREATE TABLE IF NOT EXISTS selectors (
	domain        TEXT NOT NULL,
	action        TEXT NOT NULL,
	selector      TEXT NOT NULL,
	success_count INTEGER NOT NULL DEFAULT 0,
	fail_count    INTEGER NOT NULL DEFAULT 0,
	last_used     TEXT NOT NULL,
	last_failed   TEXT,
	discovered_at TEXT NOT NULL,
	attributes    TEXT,
	PRIMARY KEY (domain, action)
);
CREATE TABLE IF NOT EXISTS cookie_snapshots (
	domain     TEXT PRIMARY KEY,
	blob       TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
`

// SQLStore persists cache state in sqlite. Every mutation is written
// synchronously; reopening the same path reconstructs identical state.
type SQLStore struct {
	db *sql.DB
}

// OpenSQL opens (and migrates) the store at path. ":memory:" yields an
// ephemeral store for tests.
func OpenSQL(path string) (*SQLStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening selector store: %w", err)
	}
	// A single writer keeps (domain, action) updates linearizable without
	// sqlite busy-retry handling.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating selector store: %w", err)
	}
	return &SQLStore{db: db}, nil
}

func (s *SQLStore) Close() error { return s.db.Close() }

func (s *SQLStore) Get(ctx context.Context, domain, action string) (*schemas.CachedSelector, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT selector, success_count, fail_count, last_used, last_failed, discovered_at, attributes
		FROM selectors WHERE domain = ? AND action = ?`, domain, action)
	sel, err := scanSelector(row, action)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading selector %s/%s: %w", domain, action, err)
	}
	return sel, nil
}

func (s *SQLStore) Put(ctx context.Context, domain string, sel schemas.CachedSelector) error {
	attrs, err := marshalAttrs(sel.Attributes)
	if err != nil {
		return err
	}
	var lastFailed any
	if sel.LastFailed != nil {
		lastFailed = sel.LastFailed.UTC().Format(time.RFC3339Nano)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO selectors (domain, action, selector, success_count, fail_count, last_used, last_failed, discovered_at, attributes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(domain, action) DO UPDATE SET
			selector = excluded.selector,
			success_count = excluded.success_count,
			fail_count = excluded.fail_count,
			last_used = excluded.last_used,
			last_failed = excluded.last_failed,
			attributes = excluded.attributes`,
		domain, sel.Action, sel.Selector, sel.SuccessCount, sel.FailCount,
		sel.LastUsed.UTC().Format(time.RFC3339Nano), lastFailed,
		sel.DiscoveredAt.UTC().Format(time.RFC3339Nano), attrs)
	if err != nil {
		return fmt.Errorf("writing selector %s/%s: %w", domain, sel.Action, err)
	}
	return nil
}

func (s *SQLStore) GetAll(ctx context.Context, domain string) (map[string]schemas.CachedSelector, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT action, selector, success_count, fail_count, last_used, last_failed, discovered_at, attributes
		FROM selectors WHERE domain = ? ORDER BY success_count DESC`, domain)
	if err != nil {
		return nil, fmt.Errorf("listing selectors for %s: %w", domain, err)
	}
	defer rows.Close()

	out := make(map[string]schemas.CachedSelector)
	for rows.Next() {
		var action string
		var sel schemas.CachedSelector
		var lastUsed, discoveredAt string
		var lastFailed, attrs sql.NullString
		if err := rows.Scan(&action, &sel.Selector, &sel.SuccessCount, &sel.FailCount,
			&lastUsed, &lastFailed, &discoveredAt, &attrs); err != nil {
			return nil, err
		}
		sel.Action = action
		fillTimes(&sel, lastUsed, lastFailed, discoveredAt)
		if err := unmarshalAttrs(attrs, &sel); err != nil {
			return nil, err
		}
		out[action] = sel
	}
	return out, rows.Err()
}

func (s *SQLStore) Domains(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT domain FROM selectors ORDER BY domain`)
	if err != nil {
		return nil, fmt.Errorf("listing domains: %w", err)
	}
	defer rows.Close()

	var domains []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		domains = append(domains, d)
	}
	return domains, rows.Err()
}

func (s *SQLStore) Clear(ctx context.Context, domain string) (int, error) {
	var res sql.Result
	var err error
	if domain == "" {
		res, err = s.db.ExecContext(ctx, `DELETE FROM selectors`)
	} else {
		res, err = s.db.ExecContext(ctx, `DELETE FROM selectors WHERE domain = ?`, domain)
	}
	if err != nil {
		return 0, fmt.Errorf("clearing selectors: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// PutCookies stores a per-domain cookie snapshot as an opaque blob.
func (s *SQLStore) PutCookies(ctx context.Context, domain string, blob json.RawMessage) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cookie_snapshots (domain, blob, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(domain) DO UPDATE SET blob = excluded.blob, updated_at = excluded.updated_at`,
		domain, string(blob), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("writing cookie snapshot for %s: %w", domain, err)
	}
	return nil
}

func (s *SQLStore) GetCookies(ctx context.Context, domain string) (json.RawMessage, error) {
	var blob string
	err := s.db.QueryRowContext(ctx,
		`SELECT blob FROM cookie_snapshots WHERE domain = ?`, domain).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading cookie snapshot for %s: %w", domain, err)
	}
	return json.RawMessage(blob), nil
}

type rowScanner interface{ Scan(dest ...any) error }

func scanSelector(row rowScanner, action string) (*schemas.CachedSelector, error) {
	var sel schemas.CachedSelector
	var lastUsed, discoveredAt string
	var lastFailed, attrs sql.NullString
	if err := row.Scan(&sel.Selector, &sel.SuccessCount, &sel.FailCount,
		&lastUsed, &lastFailed, &discoveredAt, &attrs); err != nil {
		return nil, err
	}
	sel.Action = action
	fillTimes(&sel, lastUsed, lastFailed, discoveredAt)
	if err := unmarshalAttrs(attrs, &sel); err != nil {
		return nil, err
	}
	return &sel, nil
}

func fillTimes(sel *schemas.CachedSelector, lastUsed string, lastFailed sql.NullString, discoveredAt string) {
	sel.LastUsed, _ = time.Parse(time.RFC3339Nano, lastUsed)
	sel.DiscoveredAt, _ = time.Parse(time.RFC3339Nano, discoveredAt)
	if lastFailed.Valid {
		if t, err := time.Parse(time.RFC3339Nano, lastFailed.String); err == nil {
			sel.LastFailed = &t
		}
	}
}

func marshalAttrs(attrs map[string]string) (any, error) {
	if len(attrs) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(attrs)
	if err != nil {
		return nil, fmt.Errorf("encoding attributes: %w", err)
	}
	return string(b), nil
}

func unmarshalAttrs(attrs sql.NullString, sel *schemas.CachedSelector) error {
	if !attrs.Valid || attrs.String == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(attrs.String), &sel.Attributes); err != nil {
		return fmt.Errorf("decoding attributes: %w", err)
	}
	return nil
}
