package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/inkwell-notes/inkwell/pkg/note"
)

var errNotFound = errors.New("note not found")

// maxTitleLen mirrors the backing column width.
const maxTitleLen = 20

const defaultCategory = "work"

type store struct {
	db *sql.DB
}

func newStore(path string) (*store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	s := &store{db: db}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *store) init() error {
	if _, err := s.db.Exec(
		`CREATE TABLE IF NOT EXISTS notes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		content TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT 'work',
		owner INTEGER NOT NULL,
		owner_name TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		share_token TEXT NOT NULL UNIQUE,
		is_shared INTEGER NOT NULL DEFAULT 0
		)`,
	); err != nil {
		return fmt.Errorf("failed to ensure notes table: %w", err)
	}
	return nil
}

func (s *store) close() error {
	return s.db.Close()
}

func today() string {
	return time.Now().UTC().Format("2006-01-02")
}

const noteColumns = `id, title, content, category, owner, owner_name, created_at, updated_at, share_token, is_shared`

func scanNote(row interface{ Scan(...any) error }) (*note.Note, error) {
	var n note.Note
	if err := row.Scan(
		&n.ID, &n.Title, &n.Content, &n.Category, &n.Owner, &n.OwnerName,
		&n.CreatedAt, &n.UpdatedAt, &n.ShareToken, &n.IsShared,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errNotFound
		}
		return nil, fmt.Errorf("failed to scan note: %w", err)
	}
	return &n, nil
}

func (s *store) listByOwner(ctx context.Context, owner int64) ([]note.Note, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+noteColumns+` FROM notes WHERE owner = ? ORDER BY created_at DESC, id DESC`, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to query notes: %w", err)
	}
	defer rows.Close()
	out := []note.Note{}
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

func (s *store) create(ctx context.Context, owner int64, ownerName, title, content string) (*note.Note, error) {
	now := today()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO notes (title, content, category, owner, owner_name, created_at, updated_at, share_token)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		title, content, defaultCategory, owner, ownerName, now, now, uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("failed to insert note: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read insert id: %w", err)
	}
	return s.get(ctx, id)
}

func (s *store) get(ctx context.Context, id int64) (*note.Note, error) {
	return scanNote(s.db.QueryRowContext(ctx,
		`SELECT `+noteColumns+` FROM notes WHERE id = ?`, id))
}

func (s *store) getByToken(ctx context.Context, token string) (*note.Note, error) {
	return scanNote(s.db.QueryRowContext(ctx,
		`SELECT `+noteColumns+` FROM notes WHERE share_token = ? AND is_shared = 1`, token))
}

func (s *store) update(ctx context.Context, id, owner int64, u note.Update) (*note.Note, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE notes SET title = ?, content = ?, category = ?, updated_at = ? WHERE id = ? AND owner = ?`,
		u.Title, u.Content, u.Category, today(), id, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to update note: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return nil, errNotFound
	}
	return s.get(ctx, id)
}

func (s *store) updateByToken(ctx context.Context, token string, u note.Update) (*note.Note, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE notes SET title = ?, content = ?, category = ?, updated_at = ? WHERE share_token = ? AND is_shared = 1`,
		u.Title, u.Content, u.Category, today(), token)
	if err != nil {
		return nil, fmt.Errorf("failed to update shared note: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return nil, errNotFound
	}
	return s.getByToken(ctx, token)
}

func (s *store) setShared(ctx context.Context, id, owner int64, shared bool) (*note.Note, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE notes SET is_shared = ? WHERE id = ? AND owner = ?`, shared, id, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to update sharing flag: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return nil, errNotFound
	}
	return s.get(ctx, id)
}

func (s *store) delete(ctx context.Context, id, owner int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE id = ? AND owner = ?`, id, owner)
	if err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return errNotFound
	}
	return nil
}
