package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/albydefault/notes-app/internal/models"
	"github.com/albydefault/notes-app/internal/store"
)

// DB is the sqlite persistence driver.
type DB struct {
	db *sql.DB
}

// Open opens (creating if necessary) the sqlite database at path and
// bootstraps the schema.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	d := &DB{db: db}
	if err := d.ensureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

func (d *DB) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS session (
			id          TEXT PRIMARY KEY,
			title       TEXT NOT NULL DEFAULT '',
			summary     TEXT NOT NULL DEFAULT '',
			status      TEXT NOT NULL DEFAULT 'pending'
				CHECK (status IN ('pending', 'processing', 'completed', 'error')),
			error_stage TEXT NOT NULL DEFAULT '',
			created_ts  INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS file (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			name       TEXT NOT NULL,
			path       TEXT NOT NULL,
			file_type  TEXT NOT NULL
				CHECK (file_type IN ('scanned', 'transcription', 'exposition', 'questions')),
			created_ts INTEGER NOT NULL,
			FOREIGN KEY (session_id) REFERENCES session (id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_file_session ON file (session_id)`,
	}
	for _, stmt := range stmts {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}

func (d *DB) CreateSession(ctx context.Context, session *models.Session) error {
	stmt := `INSERT INTO session (id, title, summary, status, error_stage, created_ts) VALUES (?, ?, ?, ?, ?, ?)`
	_, err := d.db.ExecContext(ctx, stmt,
		session.ID, session.Title, session.Summary, string(session.Status),
		string(session.ErrorStage), session.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (d *DB) GetSession(ctx context.Context, id string) (*models.Session, error) {
	stmt := `SELECT id, title, summary, status, error_stage, created_ts FROM session WHERE id = ?`
	session, err := scanSession(d.db.QueryRowContext(ctx, stmt, id))
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return session, nil
}

func (d *DB) ListSessions(ctx context.Context) ([]*models.Session, error) {
	stmt := `SELECT id, title, summary, status, error_stage, created_ts FROM session ORDER BY created_ts DESC, rowid DESC`
	rows, err := d.db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read sessions: %w", err)
	}
	return sessions, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*models.Session, error) {
	var session models.Session
	var status, errorStage string
	var createdNano int64
	if err := row.Scan(&session.ID, &session.Title, &session.Summary, &status, &errorStage, &createdNano); err != nil {
		return nil, err
	}
	session.Status = models.Status(status)
	session.ErrorStage = models.Stage(errorStage)
	session.CreatedAt = time.Unix(0, createdNano)
	return &session, nil
}

func (d *DB) UpdateSession(ctx context.Context, update *store.UpdateSession) error {
	set := []string{}
	args := []any{}
	if update.Title != nil {
		set, args = append(set, "title = ?"), append(args, *update.Title)
	}
	if update.Summary != nil {
		set, args = append(set, "summary = ?"), append(args, *update.Summary)
	}
	if update.Status != nil {
		set, args = append(set, "status = ?"), append(args, string(*update.Status))
	}
	if update.ErrorStage != nil {
		set, args = append(set, "error_stage = ?"), append(args, string(*update.ErrorStage))
	}
	if len(set) == 0 {
		return nil
	}
	args = append(args, update.ID)

	stmt := `UPDATE session SET ` + strings.Join(set, ", ") + ` WHERE id = ?`
	result, err := d.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (d *DB) BeginProcessing(ctx context.Context, id string) error {
	stmt := `UPDATE session SET status = 'processing', error_stage = '' WHERE id = ? AND status != 'processing'`
	result, err := d.db.ExecContext(ctx, stmt, id)
	if err != nil {
		return fmt.Errorf("failed to mark session processing: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to mark session processing: %w", err)
	}
	if n == 0 {
		if _, err := d.GetSession(ctx, id); err != nil {
			return err
		}
		return store.ErrAlreadyProcessing
	}
	return nil
}

func (d *DB) DeleteSession(ctx context.Context, id string) error {
	result, err := d.db.ExecContext(ctx, `DELETE FROM session WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (d *DB) AddFile(ctx context.Context, file *models.FileRecord) (*models.FileRecord, error) {
	if file.CreatedAt.IsZero() {
		file.CreatedAt = time.Now()
	}
	stmt := `INSERT INTO file (session_id, name, path, file_type, created_ts) VALUES (?, ?, ?, ?, ?)`
	result, err := d.db.ExecContext(ctx, stmt,
		file.SessionID, file.Name, file.Path, string(file.FileType), file.CreatedAt.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("failed to add file record: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read file record id: %w", err)
	}
	file.ID = id
	return file, nil
}

func (d *DB) ListFiles(ctx context.Context, sessionID string, fileType models.FileType) ([]models.FileRecord, error) {
	stmt := `SELECT id, session_id, name, path, file_type, created_ts FROM file WHERE session_id = ?`
	args := []any{sessionID}
	if fileType != "" {
		stmt += ` AND file_type = ?`
		args = append(args, string(fileType))
	}
	stmt += ` ORDER BY id ASC`

	rows, err := d.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	defer rows.Close()

	var files []models.FileRecord
	for rows.Next() {
		var file models.FileRecord
		var fType string
		var createdNano int64
		if err := rows.Scan(&file.ID, &file.SessionID, &file.Name, &file.Path, &fType, &createdNano); err != nil {
			return nil, fmt.Errorf("failed to scan file record: %w", err)
		}
		file.FileType = models.FileType(fType)
		file.CreatedAt = time.Unix(0, createdNano)
		files = append(files, file)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read file records: %w", err)
	}
	return files, nil
}

func (d *DB) DeleteFilesByType(ctx context.Context, sessionID string, fileTypes []models.FileType) error {
	if len(fileTypes) == 0 {
		return nil
	}
	placeholders := make([]string, 0, len(fileTypes))
	args := []any{sessionID}
	for _, t := range fileTypes {
		placeholders = append(placeholders, "?")
		args = append(args, string(t))
	}
	stmt := `DELETE FROM file WHERE session_id = ? AND file_type IN (` + strings.Join(placeholders, ", ") + `)`
	if _, err := d.db.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("failed to delete file records: %w", err)
	}
	return nil
}

func (d *DB) Close() error {
	return d.db.Close()
}
