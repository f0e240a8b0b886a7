package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/ai-gateway/internal/domain"
	_ "modernc.org/sqlite"
)

var _ MessageStore = (*SQLiteStore)(nil)

// SQLiteStore implements MessageStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex // serializes writers to avoid SQLITE_BUSY
}

// NewSQLite creates a new SQLite-backed message store.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS chat_messages (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		user_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		project_id TEXT,
		task_id TEXT,
		model TEXT,
		response_time_ms INTEGER,
		error INTEGER NOT NULL DEFAULT 0,
		fallback INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chat_messages_user ON chat_messages(user_id, seq);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Append inserts all messages in a single transaction.
func (s *SQLiteStore) Append(ctx context.Context, msgs ...domain.ChatMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	if err := validate(msgs); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return retryOnConflict(ctx, "append messages", func() error {
		return s.appendTx(ctx, msgs)
	})
}

func (s *SQLiteStore) appendTx(ctx context.Context, msgs []domain.ChatMessage) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO chat_messages (id, user_id, role, content, project_id, task_id,
		model, response_time_ms, error, fallback, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, m := range msgs {
		var model sql.NullString
		var responseTime sql.NullInt64
		var isErr, isFallback int
		if m.Metadata != nil {
			model = sql.NullString{String: m.Metadata.Model, Valid: m.Metadata.Model != ""}
			responseTime = sql.NullInt64{Int64: m.Metadata.ResponseTime, Valid: true}
			isErr = boolToInt(m.Metadata.Error)
			isFallback = boolToInt(m.Metadata.Fallback)
		}
		_, err := stmt.ExecContext(ctx,
			m.ID, m.UserID, string(m.Role), m.Content,
			nullString(m.Context.ProjectID), nullString(m.Context.TaskID),
			model, responseTime, isErr, isFallback,
			m.CreatedAt.UnixMilli(),
		)
		if err != nil {
			return fmt.Errorf("insert message %s: %w", m.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// List returns the most recent messages for a user, oldest first.
func (s *SQLiteStore) List(ctx context.Context, userID string, filter Filter) ([]domain.ChatMessage, error) {
	var where strings.Builder
	where.WriteString("user_id = ?")
	args := []any{userID}
	if filter.ProjectID != "" {
		where.WriteString(" AND project_id = ?")
		args = append(args, filter.ProjectID)
	}
	if filter.TaskID != "" {
		where.WriteString(" AND task_id = ?")
		args = append(args, filter.TaskID)
	}
	args = append(args, filter.limit())

	query := `
	SELECT id, user_id, role, content, project_id, task_id,
	       model, response_time_ms, error, fallback, created_at
	FROM (
		SELECT * FROM chat_messages WHERE ` + where.String() + `
		ORDER BY seq DESC LIMIT ?
	) ORDER BY seq ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	msgs := make([]domain.ChatMessage, 0)
	for rows.Next() {
		var m domain.ChatMessage
		var role string
		var projectID, taskID, model sql.NullString
		var responseTime sql.NullInt64
		var isErr, isFallback int
		var createdAt int64
		if err := rows.Scan(
			&m.ID, &m.UserID, &role, &m.Content, &projectID, &taskID,
			&model, &responseTime, &isErr, &isFallback, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		m.Role = domain.Role(role)
		m.Context = domain.MessageContext{ProjectID: projectID.String, TaskID: taskID.String}
		if responseTime.Valid || model.Valid || isErr != 0 || isFallback != 0 {
			m.Metadata = &domain.MessageMetadata{
				Model:        model.String,
				ResponseTime: responseTime.Int64,
				Error:        isErr != 0,
				Fallback:     isFallback != 0,
			}
		}
		m.CreatedAt = time.UnixMilli(createdAt)
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate message rows: %w", err)
	}
	return msgs, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
