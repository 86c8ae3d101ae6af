package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/agrodrone/backend/internal/storage/sqlstore"
	"github.com/agrodrone/backend/pkg/logger"
)

const schema = `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		email TEXT UNIQUE NOT NULL,
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT 'farmer',
		password_hash TEXT NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS analysis_sessions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER,
		num_images INTEGER NOT NULL DEFAULT 0,
		canopy_cover REAL,
		stress_percentage REAL,
		yield_estimate REAL,
		vari REAL,
		gli REAL,
		exg REAL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_created ON analysis_sessions(created_at);

	CREATE TABLE IF NOT EXISTS drone_images (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id INTEGER NOT NULL,
		image_path TEXT NOT NULL,
		original_name TEXT,
		vari REAL NOT NULL,
		exg REAL NOT NULL,
		gli REAL NOT NULL,
		canopy_pct REAL NOT NULL,
		stress_pct REAL NOT NULL,
		yield_estimate REAL NOT NULL,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (session_id) REFERENCES analysis_sessions(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_images_session ON drone_images(session_id);

	CREATE TABLE IF NOT EXISTS chat_history (
		id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL,
		message TEXT NOT NULL,
		response TEXT NOT NULL,
		path TEXT NOT NULL,
		context_used INTEGER NOT NULL DEFAULT 0,
		latency_ms INTEGER,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chat_user ON chat_history(user_id);
	CREATE INDEX IF NOT EXISTS idx_chat_created ON chat_history(created_at);
`

var dialect = sqlstore.Dialect{
	Name: "sqlite",
	IsUniqueViolation: func(err error) bool {
		var serr sqlite3.Error
		return errors.As(err, &serr) && serr.ExtendedCode == sqlite3.ErrConstraintUnique
	},
}

type Client struct {
	*sqlstore.Store
}

func NewClient(dbPath string) (*Client, error) {
	if dir := filepath.Dir(dbPath); dbPath != ":memory:" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Pragmas are per connection.
	db.SetMaxOpenConns(1)

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{Store: sqlstore.New(db, dialect)}, nil
}

func (c *Client) InitSchema(ctx context.Context) error {
	if _, err := c.DB().ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}
