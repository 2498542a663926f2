package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/iammatthias/mysky.wtf/internal/bluesky"
	"github.com/iammatthias/mysky.wtf/internal/domain"
)

const commentTargetPath = ".targetDid"

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id          TEXT PRIMARY KEY,
	did         TEXT NOT NULL,
	handle      TEXT NOT NULL,
	pds         TEXT NOT NULL,
	access_jwt  TEXT NOT NULL,
	refresh_jwt TEXT NOT NULL,
	created_at  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS comment_links (
	did        TEXT NOT NULL,
	collection TEXT NOT NULL,
	rkey       TEXT NOT NULL,
	target     TEXT NOT NULL,
	indexed_at INTEGER NOT NULL,
	PRIMARY KEY (did, collection, rkey)
);

CREATE INDEX IF NOT EXISTS comment_links_target ON comment_links (target, indexed_at DESC);

CREATE TABLE IF NOT EXISTS cursors (
	service      TEXT PRIMARY KEY,
	cursor_value INTEGER NOT NULL,
	updated_at   INTEGER NOT NULL
);
`

// Repository stores sign-in sessions, the local comment backlink index and
// the firehose cursor in SQLite. It implements domain.BacklinkIndex.
type Repository struct {
	db  *sql.DB
	now func() time.Time
}

// NewRepository opens the SQLite database at path, creating the schema if
// needed. Use ":memory:" for a throwaway database. The caller should call
// Close when the repository is no longer needed.
func NewRepository(path string) (*Repository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Repository{db: db, now: time.Now}, nil
}

// Close closes the underlying database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// SaveSession stores a PDS session under id, replacing any previous one.
func (r *Repository) SaveSession(ctx context.Context, id string, s bluesky.Session) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (id, did, handle, pds, access_jwt, refresh_jwt, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			did = excluded.did,
			handle = excluded.handle,
			pds = excluded.pds,
			access_jwt = excluded.access_jwt,
			refresh_jwt = excluded.refresh_jwt`,
		id, s.DID, s.Handle, s.PDS, s.AccessJwt, s.RefreshJwt, r.now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// GetSession loads the session stored under id. It returns domain.ErrNotFound
// when there is none.
func (r *Repository) GetSession(ctx context.Context, id string) (*bluesky.Session, error) {
	var s bluesky.Session
	err := r.db.QueryRowContext(ctx,
		`SELECT did, handle, pds, access_jwt, refresh_jwt FROM sessions WHERE id = ?`, id,
	).Scan(&s.DID, &s.Handle, &s.PDS, &s.AccessJwt, &s.RefreshJwt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &s, nil
}

// DeleteSession removes the session stored under id.
func (r *Repository) DeleteSession(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	return err
}

// DeleteOldSessions removes sessions created more than maxAge ago and returns
// how many were removed.
func (r *Repository) DeleteOldSessions(ctx context.Context, maxAge time.Duration) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE created_at < ?`,
		r.now().Add(-maxAge).UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// IndexComment records that the comment at did/collection/rkey targets target.
func (r *Repository) IndexComment(ctx context.Context, link domain.RecordLink, target string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO comment_links (did, collection, rkey, target, indexed_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (did, collection, rkey) DO UPDATE SET target = excluded.target`,
		link.DID, link.Collection, link.RKey, target, r.now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("index comment: %w", err)
	}
	return nil
}

// RemoveComment drops a deleted comment from the index.
func (r *Repository) RemoveComment(ctx context.Context, link domain.RecordLink) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM comment_links WHERE did = ? AND collection = ? AND rkey = ?`,
		link.DID, link.Collection, link.RKey,
	)
	return err
}

// Links returns the indexed comments aimed at target, most recently indexed
// first. Only the comment targetDid path is indexed; other paths have no links.
func (r *Repository) Links(ctx context.Context, target, collection, path string, limit int) ([]domain.RecordLink, error) {
	links := []domain.RecordLink{}
	if path != commentTargetPath {
		return links, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT did, collection, rkey
		FROM comment_links
		WHERE target = ? AND collection = ?
		ORDER BY indexed_at DESC, did, rkey
		LIMIT ?`,
		target, collection, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query comment links (target=%s, limit=%d): %w", target, limit, err)
	}
	defer rows.Close()

	for rows.Next() {
		var l domain.RecordLink
		if err := rows.Scan(&l.DID, &l.Collection, &l.RKey); err != nil {
			return nil, fmt.Errorf("scan comment link: %w", err)
		}
		links = append(links, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comment links: %w", err)
	}
	return links, nil
}

// GetCursor retrieves the saved firehose cursor for a service.
func (r *Repository) GetCursor(ctx context.Context, service string) (int64, error) {
	var cursor int64
	err := r.db.QueryRowContext(ctx,
		`SELECT cursor_value FROM cursors WHERE service = ?`, service,
	).Scan(&cursor)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return cursor, err
}

// UpdateCursor upserts the firehose cursor for a service.
func (r *Repository) UpdateCursor(ctx context.Context, service string, cursor int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cursors (service, cursor_value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (service) DO UPDATE SET cursor_value = excluded.cursor_value, updated_at = excluded.updated_at`,
		service, cursor, r.now().UnixMilli(),
	)
	return err
}
