package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/agrodrone/backend/internal/storage/sqlstore"
	"github.com/agrodrone/backend/pkg/logger"
)

const schema = `
	CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		email TEXT UNIQUE NOT NULL,
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT 'farmer',
		password_hash TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS analysis_sessions (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT,
		num_images INTEGER NOT NULL DEFAULT 0,
		canopy_cover DOUBLE PRECISION,
		stress_percentage DOUBLE PRECISION,
		yield_estimate DOUBLE PRECISION,
		vari DOUBLE PRECISION,
		gli DOUBLE PRECISION,
		exg DOUBLE PRECISION,
		created_at BIGINT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_created ON analysis_sessions(created_at);

	CREATE TABLE IF NOT EXISTS drone_images (
		id BIGSERIAL PRIMARY KEY,
		session_id BIGINT NOT NULL REFERENCES analysis_sessions(id) ON DELETE CASCADE,
		image_path TEXT NOT NULL,
		original_name TEXT,
		vari DOUBLE PRECISION NOT NULL,
		exg DOUBLE PRECISION NOT NULL,
		gli DOUBLE PRECISION NOT NULL,
		canopy_pct DOUBLE PRECISION NOT NULL,
		stress_pct DOUBLE PRECISION NOT NULL,
		yield_estimate DOUBLE PRECISION NOT NULL,
		created_at BIGINT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_images_session ON drone_images(session_id);

	CREATE TABLE IF NOT EXISTS chat_history (
		id TEXT PRIMARY KEY,
		user_id BIGINT NOT NULL,
		message TEXT NOT NULL,
		response TEXT NOT NULL,
		path TEXT NOT NULL,
		context_used BOOLEAN NOT NULL DEFAULT FALSE,
		latency_ms INTEGER,
		created_at BIGINT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chat_user ON chat_history(user_id);
	CREATE INDEX IF NOT EXISTS idx_chat_created ON chat_history(created_at);
`

const uniqueViolation = "23505"

var dialect = sqlstore.Dialect{
	Name:     "postgres",
	Numbered: true,
	IsUniqueViolation: func(err error) bool {
		var pgErr *pgconn.PgError
		return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
	},
}

type Client struct {
	*sqlstore.Store
}

func NewClient(ctx context.Context, dsn string) (*Client, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	logger.Info("Postgres client initialized")

	return &Client{Store: sqlstore.New(db, dialect)}, nil
}

func (c *Client) InitSchema(ctx context.Context) error {
	if _, err := c.DB().ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("Postgres schema initialized")
	return nil
}
