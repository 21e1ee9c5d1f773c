// Package tmcache is a local translation memory backed by SQLite.
//
// Segments are keyed by language pair and exact source text. Texts are
// stored in the same escaped form the mxliff package extracts, so a stored
// target can be written back into any document without re-escaping.
package tmcache

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"

	"github.com/libmemsource/mxkit/mxliff"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Entry is one stored segment pair.
type Entry struct {
	SourceLang string
	TargetLang string
	SourceText string
	TargetText string
	// Origin names the document the pair was harvested from.
	Origin    string
	UpdatedAt time.Time
}

// Cache is an open translation memory.
type Cache struct {
	DB *sql.DB
	SQ sq.StatementBuilderType
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// ---------------------------------------------------------------------------
// Opening
// ---------------------------------------------------------------------------

// Open opens the database at dbPath, creating it and its directory if
// needed, and applies pending migrations.
func Open(dbPath string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("make tm dir: %w", err)
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	pragmas := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		"PRAGMA busy_timeout = 5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("pragma %q: %w", p, err)
		}
	}
	if err := applyMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Cache{DB: db, SQ: sq.StatementBuilder}, nil
}

// Close closes the database.
func (c *Cache) Close() error {
	return c.DB.Close()
}

func applyMigrations(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        name TEXT NOT NULL UNIQUE,
        applied_at TEXT NOT NULL
    )`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	for _, name := range files {
		var n int
		err := db.QueryRow(`SELECT 1 FROM schema_migrations WHERE name = ?`, name).Scan(&n)
		if err == nil {
			continue
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		b, err := migrationsFS.ReadFile(path.Join("migrations", name))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := db.Exec(string(b)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		if _, err := db.Exec(`INSERT INTO schema_migrations(name, applied_at) VALUES (?, ?)`,
			name, time.Now().UTC().Format(time.RFC3339)); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Segment access
// ---------------------------------------------------------------------------

// Get returns the stored pair for text, or nil when there is none.
func (c *Cache) Get(ctx context.Context, srcLang, tgtLang, text string) (*Entry, error) {
	q := c.SQ.Select(
		"source_lang",
		"target_lang",
		"source_text",
		"target_text",
		"origin",
		"updated_at",
	).
		From("segments").
		Where(sq.Eq{
			"source_lang": srcLang,
			"target_lang": tgtLang,
			"source_text": text,
		}).
		Limit(1)
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}

	var e Entry
	var updated string
	err = c.DB.QueryRowContext(ctx, sqlStr, args...).Scan(
		&e.SourceLang,
		&e.TargetLang,
		&e.SourceText,
		&e.TargetText,
		&e.Origin,
		&updated,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query segment: %w", err)
	}
	e.UpdatedAt, _ = time.Parse(time.RFC3339, updated)
	return &e, nil
}

// Put stores e, replacing the target of an existing pair.
func (c *Cache) Put(ctx context.Context, e Entry) error {
	return c.put(ctx, c.DB, e)
}

func (c *Cache) put(ctx context.Context, ex execer, e Entry) error {
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = time.Now()
	}
	q := c.SQ.
		Insert("segments").
		Columns(
			"source_lang",
			"target_lang",
			"source_text",
			"target_text",
			"origin",
			"updated_at",
		).
		Values(
			e.SourceLang,
			e.TargetLang,
			e.SourceText,
			e.TargetText,
			e.Origin,
			e.UpdatedAt.UTC().Format(time.RFC3339),
		).
		Suffix("ON CONFLICT(source_lang, target_lang, source_text) DO UPDATE SET " +
			"target_text=excluded.target_text, origin=excluded.origin, updated_at=excluded.updated_at")
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return err
	}
	if _, err := ex.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("store segment: %w", err)
	}
	return nil
}

// Count returns the number of stored pairs.
func (c *Cache) Count(ctx context.Context) (int, error) {
	sqlStr, args, err := c.SQ.Select("COUNT(*)").From("segments").ToSql()
	if err != nil {
		return 0, err
	}
	var n int
	if err := c.DB.QueryRowContext(ctx, sqlStr, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count segments: %w", err)
	}
	return n, nil
}

// ---------------------------------------------------------------------------
// Documents
// ---------------------------------------------------------------------------

// Harvest stores every translated, non tag-only unit of d in one
// transaction and returns how many pairs were written.
func (c *Cache) Harvest(ctx context.Context, d *mxliff.Document) (int, error) {
	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}

	now := time.Now()
	n := 0
	for _, f := range d.Files {
		for _, u := range f.TransUnits {
			if u.OnlyTag || !u.IsTranslated() || u.Source.Text == "" {
				continue
			}
			err := c.put(ctx, tx, Entry{
				SourceLang: d.SourceLanguage,
				TargetLang: d.TargetLanguage,
				SourceText: u.Source.Text,
				TargetText: u.Target.Text,
				Origin:     f.Original,
				UpdatedAt:  now,
			})
			if err != nil {
				_ = tx.Rollback()
				return 0, fmt.Errorf("trans-unit %q: %w", u.ID, err)
			}
			n++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return n, nil
}

// Fill sets the target of every untranslated, non tag-only unit of d that
// has an exact match in the memory. It returns how many units were filled.
func (c *Cache) Fill(ctx context.Context, d *mxliff.Document) (int, error) {
	n := 0
	for _, u := range d.Units() {
		if u.OnlyTag || u.IsTranslated() || u.Source.Text == "" {
			continue
		}
		e, err := c.Get(ctx, d.SourceLanguage, d.TargetLanguage, u.Source.Text)
		if err != nil {
			return n, err
		}
		if e == nil {
			continue
		}
		u.Target.Text = e.TargetText
		u.Processed = true
		n++
	}
	return n, nil
}
