package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/mcoot/townserver/internal/model"
	"github.com/mcoot/townserver/internal/storage"
)

// Storage keeps pending town submissions in a single SQLite file.
// All access is serialised by mu on top of the database's own busy timeout.
type Storage struct {
	db *sql.DB
	mu sync.Mutex
}

var _ storage.PendingTownStore = (*Storage)(nil)

// Open creates the database file and schema if needed
func Open(path string) (*Storage, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Storage{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS pending_towns (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL,
			town_name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			file_path TEXT NOT NULL,
			file_size INTEGER NOT NULL,
			submitted_at INTEGER NOT NULL,
			status TEXT NOT NULL,
			rejection_reason TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE INDEX IF NOT EXISTS idx_pending_towns_status ON pending_towns(status, submitted_at);`,
		`CREATE INDEX IF NOT EXISTS idx_pending_towns_email ON pending_towns(email, submitted_at);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

const selectColumns = `SELECT id, email, town_name, description, file_path, file_size, submitted_at, status, rejection_reason FROM pending_towns`

func (s *Storage) InsertPendingTown(ctx context.Context, town *model.PendingTown) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pending_towns (id, email, town_name, description, file_path, file_size, submitted_at, status, rejection_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		town.ID, town.Email, town.TownName, town.Description, town.FilePath, town.FileSize,
		town.SubmittedAt.UnixNano(), string(town.Status), town.RejectionReason,
	)
	return classify(err)
}

func (s *Storage) GetPendingTown(ctx context.Context, id string) (*model.PendingTown, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	town, err := scanTown(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrPendingTownNotFound
	}
	return town, classify(err)
}

func (s *Storage) ListPendingTowns(ctx context.Context, status model.PendingStatus) ([]*model.PendingTown, error) {
	return s.query(ctx, selectColumns+` WHERE status = ? ORDER BY submitted_at DESC, rowid DESC`, string(status))
}

func (s *Storage) ListPendingTownsByEmail(ctx context.Context, email string, status model.PendingStatus) ([]*model.PendingTown, error) {
	return s.query(ctx, selectColumns+` WHERE email = ? AND status = ? ORDER BY submitted_at DESC, rowid DESC`, email, string(status))
}

func (s *Storage) ListDecidedBefore(ctx context.Context, cutoff time.Time) ([]*model.PendingTown, error) {
	return s.query(ctx, selectColumns+` WHERE status IN (?, ?) AND submitted_at < ? ORDER BY submitted_at DESC, rowid DESC`,
		string(model.PendingStatusApproved), string(model.PendingStatusRejected), cutoff.UnixNano())
}

func (s *Storage) UpdatePendingTownStatus(ctx context.Context, id string, status model.PendingStatus, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE pending_towns SET status = ?, rejection_reason = ? WHERE id = ?`,
		string(status), reason, id)
	if err != nil {
		return classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrPendingTownNotFound
	}
	return nil
}

func (s *Storage) DeletePendingTown(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM pending_towns WHERE id = ?`, id)
	return classify(err)
}

func (s *Storage) query(ctx context.Context, q string, args ...any) ([]*model.PendingTown, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []*model.PendingTown
	for rows.Next() {
		town, err := scanTown(rows)
		if err != nil {
			return nil, classify(err)
		}
		out = append(out, town)
	}
	return out, classify(rows.Err())
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTown(row scanner) (*model.PendingTown, error) {
	var (
		town      model.PendingTown
		submitted int64
		status    string
	)
	err := row.Scan(&town.ID, &town.Email, &town.TownName, &town.Description, &town.FilePath,
		&town.FileSize, &submitted, &status, &town.RejectionReason)
	if err != nil {
		return nil, err
	}
	town.SubmittedAt = time.Unix(0, submitted).UTC()
	town.Status = model.PendingStatus(status)
	return &town, nil
}

// classify maps lock contention onto storage.ErrBusy
func classify(err error) error {
	if err == nil {
		return nil
	}
	var serr *msqlite.Error
	if errors.As(err, &serr) {
		switch serr.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return fmt.Errorf("%w: %v", storage.ErrBusy, err)
		}
	}
	return err
}
