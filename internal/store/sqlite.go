package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/conductor-run/orchestrator/internal/models"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS files (
	session_id TEXT NOT NULL,
	path       TEXT NOT NULL,
	content    TEXT NOT NULL,
	language   TEXT NOT NULL,
	size       INTEGER NOT NULL,
	created_at TIMESTAMP NOT NULL,
	PRIMARY KEY (session_id, path)
);
CREATE INDEX IF NOT EXISTS idx_files_session ON files(session_id);
`

// SQLiteStore is a durable FileStore backed by a single SQLite database
// file, grounded on the learning store's open/init/query shape.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens (creating if absent) the database at dbPath and
// applies the schema. Pass ":memory:" for an ephemeral, non-shared database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if dir := filepath.Dir(dbPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Close releases the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetFile(ctx context.Context, sessionID, path string) (*models.StoredFile, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT session_id, path, content, language, size, created_at FROM files WHERE session_id = ? AND path = ?`,
		sessionID, path)

	var f models.StoredFile
	if err := row.Scan(&f.SessionID, &f.Path, &f.Content, &f.Language, &f.Size, &f.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan file: %w", err)
	}
	return &f, nil
}

func (s *SQLiteStore) GetAllFiles(ctx context.Context, sessionID string) ([]models.StoredFile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, path, content, language, size, created_at FROM files WHERE session_id = ? ORDER BY path ASC`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("query files: %w", err)
	}
	defer rows.Close()
	return scanFiles(rows)
}

func scanFiles(rows *sql.Rows) ([]models.StoredFile, error) {
	out := make([]models.StoredFile, 0)
	for rows.Next() {
		var f models.StoredFile
		if err := rows.Scan(&f.SessionID, &f.Path, &f.Content, &f.Language, &f.Size, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan file row: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate file rows: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) SaveFiles(ctx context.Context, sessionID string, newFiles []NewFile) (SaveResult, error) {
	result := SaveResult{Errors: make(map[string]error)}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, nf := range newFiles {
		if nf.Path == "" {
			result.Errors[nf.Path] = storeErr("EMPTY_FILE_PATH")
			continue
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO files (session_id, path, content, language, size, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT(session_id, path) DO UPDATE SET content=excluded.content, language=excluded.language, size=excluded.size`,
			sessionID, nf.Path, nf.Content, nf.Language, len(nf.Content), s.now())
		if err != nil {
			result.Errors[nf.Path] = fmt.Errorf("insert file: %w", err)
			continue
		}
		result.Saved = append(result.Saved, nf.Path)
	}

	if err := tx.Commit(); err != nil {
		return result, fmt.Errorf("commit transaction: %w", err)
	}
	return result, nil
}

func (s *SQLiteStore) DeleteFiles(ctx context.Context, sessionID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM files WHERE session_id = ?`, sessionID)
	if err != nil {
		return 0, fmt.Errorf("delete files: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(affected), nil
}

func (s *SQLiteStore) QueryFiles(ctx context.Context, sessionID string, query FileQuery) ([]models.StoredFile, error) {
	// The allow-list is enforced before any file is fetched. No SQL is built
	// from the query: the session's files are fetched by session id and
	// applyQuery filters and sorts them in process.
	if err := query.Validate(); err != nil {
		return nil, err
	}

	all, err := s.GetAllFiles(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return applyQuery(all, query)
}
