// Package sqlstore implements storage.Repository over database/sql. The
// sqlite and postgres packages supply the driver, schema and dialect.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/agrodrone/backend/internal/storage"
	"github.com/agrodrone/backend/internal/storage/models"
	"github.com/agrodrone/backend/pkg/logger"
)

// Dialect captures the differences between SQL backends.
type Dialect struct {
	Name string
	// Numbered rewrites ? placeholders to $1, $2, ...
	Numbered          bool
	IsUniqueViolation func(error) bool
}

type Store struct {
	db      *sql.DB
	dialect Dialect
}

func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) rebind(query string) string {
	if !s.dialect.Numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.rebind(query), args...)
}

func (s *Store) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.rebind(query), args...)
}

func (s *Store) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.rebind(query), args...)
}

func toMillis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func nullableFloat(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, storage.ErrNotFound)
	}
	return fmt.Errorf("failed to get %s: %w", what, err)
}

// Sessions

const sessionColumns = `id, user_id, num_images, canopy_cover, stress_percentage, yield_estimate, vari, gli, exg, created_at`

func scanSession(row interface{ Scan(...any) error }) (*models.AnalysisSession, error) {
	var (
		sess                                  models.AnalysisSession
		userID                                sql.NullInt64
		canopy, stress, yield, vari, gli, exg sql.NullFloat64
		createdAt                             int64
	)
	if err := row.Scan(&sess.ID, &userID, &sess.NumImages, &canopy, &stress, &yield, &vari, &gli, &exg, &createdAt); err != nil {
		return nil, err
	}
	sess.UserID = userID.Int64
	sess.CanopyCover = nullableFloat(canopy)
	sess.StressPercentage = nullableFloat(stress)
	sess.YieldEstimate = nullableFloat(yield)
	sess.VARI = nullableFloat(vari)
	sess.GLI = nullableFloat(gli)
	sess.EXG = nullableFloat(exg)
	sess.CreatedAt = fromMillis(createdAt)
	return &sess, nil
}

func (s *Store) CreateSession(ctx context.Context, sess *models.AnalysisSession) error {
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now().UTC()
	}
	var userID sql.NullInt64
	if sess.UserID != 0 {
		userID = sql.NullInt64{Int64: sess.UserID, Valid: true}
	}

	err := s.queryRow(ctx,
		`INSERT INTO analysis_sessions (user_id, num_images, created_at) VALUES (?, 0, ?) RETURNING id`,
		userID, toMillis(sess.CreatedAt),
	).Scan(&sess.ID)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	logger.Debug("Analysis session created", zap.Int64("session_id", sess.ID))
	return nil
}

func (s *Store) UpdateSessionAggregate(ctx context.Context, sess *models.AnalysisSession) error {
	query := `
		UPDATE analysis_sessions
		SET num_images = ?, canopy_cover = ?, stress_percentage = ?, yield_estimate = ?,
			vari = ?, gli = ?, exg = ?
		WHERE id = ?
	`
	res, err := s.exec(ctx, query,
		sess.NumImages,
		sess.CanopyCover,
		sess.StressPercentage,
		sess.YieldEstimate,
		sess.VARI,
		sess.GLI,
		sess.EXG,
		sess.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update session aggregate: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("session %d: %w", sess.ID, storage.ErrNotFound)
	}
	return nil
}

func (s *Store) LatestSession(ctx context.Context) (*models.AnalysisSession, error) {
	row := s.queryRow(ctx, `SELECT `+sessionColumns+` FROM analysis_sessions ORDER BY created_at DESC, id DESC LIMIT 1`)
	sess, err := scanSession(row)
	if err != nil {
		return nil, notFound(err, "latest session")
	}
	return sess, nil
}

func (s *Store) GetSession(ctx context.Context, id int64) (*models.AnalysisSession, error) {
	row := s.queryRow(ctx, `SELECT `+sessionColumns+` FROM analysis_sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if err != nil {
		return nil, notFound(err, "session")
	}
	return sess, nil
}

func (s *Store) DeleteSession(ctx context.Context, id int64) error {
	res, err := s.exec(ctx, `DELETE FROM analysis_sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("session %d: %w", id, storage.ErrNotFound)
	}
	return nil
}

// Images

func (s *Store) InsertImage(ctx context.Context, img *models.DroneImage) error {
	if img.CreatedAt.IsZero() {
		img.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO drone_images (session_id, image_path, original_name, vari, exg, gli,
			canopy_pct, stress_pct, yield_estimate, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`
	err := s.queryRow(ctx, query,
		img.SessionID,
		img.ImagePath,
		img.OriginalName,
		img.VARI,
		img.EXG,
		img.GLI,
		img.CanopyPct,
		img.StressPct,
		img.YieldEstimate,
		toMillis(img.CreatedAt),
	).Scan(&img.ID)
	if err != nil {
		return fmt.Errorf("failed to insert image: %w", err)
	}
	return nil
}

func (s *Store) ListImages(ctx context.Context, sessionID int64) ([]models.DroneImage, error) {
	query := `
		SELECT id, session_id, image_path, original_name, vari, exg, gli, canopy_pct,
			stress_pct, yield_estimate, created_at
		FROM drone_images
		WHERE session_id = ?
		ORDER BY id
	`
	rows, err := s.query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	defer rows.Close()

	var images []models.DroneImage
	for rows.Next() {
		var img models.DroneImage
		var createdAt int64
		err := rows.Scan(&img.ID, &img.SessionID, &img.ImagePath, &img.OriginalName, &img.VARI, &img.EXG,
			&img.GLI, &img.CanopyPct, &img.StressPct, &img.YieldEstimate, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		img.CreatedAt = fromMillis(createdAt)
		images = append(images, img)
	}
	return images, rows.Err()
}

func (s *Store) CountImages(ctx context.Context, sessionID int64) (int, error) {
	var n int
	if err := s.queryRow(ctx, `SELECT COUNT(*) FROM drone_images WHERE session_id = ?`, sessionID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count images: %w", err)
	}
	return n, nil
}

// Users

const userColumns = `id, email, first_name, last_name, phone, role, password_hash, is_active, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	var (
		u                    models.User
		role                 string
		createdAt, updatedAt int64
	)
	err := row.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.Phone, &role, &u.PasswordHash,
		&u.IsActive, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	u.Role = models.Role(role)
	u.CreatedAt = fromMillis(createdAt)
	u.UpdatedAt = fromMillis(updatedAt)
	return &u, nil
}

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = u.CreatedAt

	query := `
		INSERT INTO users (email, first_name, last_name, phone, role, password_hash, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`
	err := s.queryRow(ctx, query,
		strings.ToLower(u.Email),
		u.FirstName,
		u.LastName,
		u.Phone,
		string(u.Role),
		u.PasswordHash,
		u.IsActive,
		toMillis(u.CreatedAt),
		toMillis(u.UpdatedAt),
	).Scan(&u.ID)
	if err != nil {
		if s.dialect.IsUniqueViolation != nil && s.dialect.IsUniqueViolation(err) {
			return fmt.Errorf("user %s: %w", u.Email, storage.ErrConflict)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	logger.Info("User created", zap.Int64("user_id", u.ID), zap.String("role", string(u.Role)))
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	u, err := scanUser(s.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err, "user")
	}
	return u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := scanUser(s.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, strings.ToLower(email)))
	if err != nil {
		return nil, notFound(err, "user")
	}
	return u, nil
}

func (s *Store) UpdateUser(ctx context.Context, u *models.User) error {
	u.UpdatedAt = time.Now().UTC()
	query := `
		UPDATE users
		SET first_name = ?, last_name = ?, phone = ?, role = ?, password_hash = ?, is_active = ?, updated_at = ?
		WHERE id = ?
	`
	res, err := s.exec(ctx, query,
		u.FirstName,
		u.LastName,
		u.Phone,
		string(u.Role),
		u.PasswordHash,
		u.IsActive,
		toMillis(u.UpdatedAt),
		u.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("user %d: %w", u.ID, storage.ErrNotFound)
	}
	return nil
}

// Chat history

func (s *Store) InsertChatRecord(ctx context.Context, r *models.ChatRecord) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO chat_history (id, user_id, message, response, path, context_used, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.exec(ctx, query,
		r.ID,
		r.UserID,
		r.Message,
		r.Response,
		r.Path,
		r.ContextUsed,
		r.LatencyMS,
		toMillis(r.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert chat record: %w", err)
	}

	logger.Debug("Chat turn recorded",
		zap.String("chat_id", r.ID),
		zap.Int64("user_id", r.UserID),
		zap.String("path", r.Path),
	)
	return nil
}

func (s *Store) ChatHistory(ctx context.Context, userID int64, limit int) ([]models.ChatRecord, error) {
	query := `
		SELECT id, user_id, message, response, path, context_used, latency_ms, created_at
		FROM chat_history
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`
	rows, err := s.query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get chat history: %w", err)
	}
	defer rows.Close()

	var records []models.ChatRecord
	for rows.Next() {
		var r models.ChatRecord
		var createdAt int64
		if err := rows.Scan(&r.ID, &r.UserID, &r.Message, &r.Response, &r.Path, &r.ContextUsed, &r.LatencyMS, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		r.CreatedAt = fromMillis(createdAt)
		records = append(records, r)
	}
	return records, rows.Err()
}

var _ storage.Repository = (*Store)(nil)
