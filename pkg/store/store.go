// Package store persists a playlist to a SQLite database so that a session
// can be restored without the original playlist file.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vanderheijden86/plmirror/pkg/model"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store closed")

const schema = `
CREATE TABLE IF NOT EXISTS items (
	seq       INTEGER NOT NULL,
	id        INTEGER PRIMARY KEY,
	parent_id INTEGER NOT NULL,
	input_id  INTEGER NOT NULL DEFAULT 0,
	kind      TEXT    NOT NULL,
	item_type TEXT    NOT NULL DEFAULT '',
	title     TEXT    NOT NULL DEFAULT '',
	artist    TEXT,
	album     TEXT,
	genre     TEXT,
	duration  INTEGER NOT NULL DEFAULT 0,
	uri       TEXT,
	disabled  INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS items_seq ON items(seq);
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// Store reads and writes one playlist database.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("cannot create schema: %w", err)
	}

	pragmas := []string{
		"PRAGMA cache_size = -16000",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		// Non-fatal: older builds may reject a pragma.
		_, _ = db.Exec(pragma)
	}

	return &Store{db: db, path: path}, nil
}

// Path returns the database file.
func (s *Store) Path() string { return s.path }

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Save replaces the stored playlist with items, which must be in
// parents-first order. The root itself is not stored.
func (s *Store) Save(ctx context.Context, items []model.Item) error {
	if s.db == nil {
		return ErrClosed
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM items`); err != nil {
		return fmt.Errorf("clear items: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO items (seq, id, parent_id, input_id, kind, item_type, title,
			artist, album, genre, duration, uri, disabled)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, it := range items {
		_, err := stmt.ExecContext(ctx,
			i, it.ID, it.ParentID, it.InputID, it.Kind.String(), string(it.Type), it.Title,
			nullString(it.Artist), nullString(it.Album), nullString(it.Genre),
			int64(it.Duration), nullString(it.URI), it.Disabled,
		)
		if err != nil {
			return fmt.Errorf("insert item %d: %w", it.ID, err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES ('saved_at', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("write meta: %w", err)
	}
	return tx.Commit()
}

// Load reads the stored playlist in the order it was saved.
func (s *Store) Load(ctx context.Context) ([]model.Item, error) {
	return s.LoadFiltered(ctx, nil)
}

// LoadFiltered reads items matching filter. Rows that cannot be decoded
// are skipped.
func (s *Store) LoadFiltered(ctx context.Context, filter func(*model.Item) bool) ([]model.Item, error) {
	if s.db == nil {
		return nil, ErrClosed
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, parent_id, input_id, kind, item_type, title,
			artist, album, genre, duration, uri, disabled
		FROM items
		ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		var it model.Item
		var kind, itemType string
		var artist, album, genre, uri sql.NullString
		var duration int64
		if err := rows.Scan(
			&it.ID, &it.ParentID, &it.InputID, &kind, &itemType, &it.Title,
			&artist, &album, &genre, &duration, &uri, &it.Disabled,
		); err != nil {
			continue
		}
		if err := it.Kind.UnmarshalText([]byte(kind)); err != nil {
			continue
		}
		it.Type = model.ItemType(itemType)
		it.Artist = artist.String
		it.Album = album.String
		it.Genre = genre.String
		it.URI = uri.String
		it.Duration = time.Duration(duration)
		it.Position = model.AppendPosition

		if filter != nil && !filter(&it) {
			continue
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating items: %w", err)
	}
	return items, nil
}

// Count returns the number of stored items.
func (s *Store) Count(ctx context.Context) (int, error) {
	if s.db == nil {
		return 0, ErrClosed
	}
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM items`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// SavedAt returns when Save last completed, or the zero time.
func (s *Store) SavedAt(ctx context.Context) (time.Time, error) {
	if s.db == nil {
		return time.Time{}, ErrClosed
	}
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'saved_at'`).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339Nano, v)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
