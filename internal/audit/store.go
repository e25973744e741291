// ABOUTME: SQLite audit log of tool calls using modernc.org/sqlite
// ABOUTME: Implements mcp.CallRecorder and lists recent calls for the CLI

package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/2389/wazuh-mcp/internal/mcp"
)

// MaxArgumentsSize caps the stored arguments JSON; larger payloads are
// replaced by a placeholder object.
const MaxArgumentsSize = 64 << 10

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Entry is one recorded tool call.
type Entry struct {
	ID        string          // UUID v4
	RequestID string          // correlates with the server's log lines
	ToolName  string          // tool that was called
	Arguments json.RawMessage // arguments as sent by the client, may be nil
	IsError   bool            // whether the result was an error result
	Duration  time.Duration   // handler wall time
	CreatedAt time.Time       // when the call completed
}

// Store persists tool calls to SQLite.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewStore opens (or creates) the audit database at path.
// Parent directories are created if needed.
func NewStore(path string) (*Store, error) {
	logger := slog.Default().With("component", "audit")

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &Store{db: db, logger: logger, now: time.Now}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Debug("audit store initialized", "path", path)
	return s, nil
}

func (s *Store) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS tool_calls (
			id TEXT PRIMARY KEY,
			request_id TEXT NOT NULL,
			tool_name TEXT NOT NULL,
			arguments_json TEXT,
			is_error INTEGER NOT NULL DEFAULT 0,
			duration_ms INTEGER NOT NULL,
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_tool_calls_created
			ON tool_calls(created_at);

		CREATE INDEX IF NOT EXISTS idx_tool_calls_tool
			ON tool_calls(tool_name, created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordCall stores a completed tool call. It satisfies mcp.CallRecorder.
func (s *Store) RecordCall(ctx context.Context, rec mcp.CallRecord) error {
	return s.Append(ctx, &Entry{
		RequestID: rec.RequestID,
		ToolName:  rec.ToolName,
		Arguments: rec.Arguments,
		IsError:   rec.IsError,
		Duration:  rec.Duration,
	})
}

// Append inserts e, generating its ID and CreatedAt if unset.
func (s *Store) Append(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now().UTC()
	}

	var argsJSON *string
	if len(e.Arguments) > 0 {
		str := string(e.Arguments)
		if len(str) > MaxArgumentsSize {
			str = fmt.Sprintf(`{"truncated":true,"size":%d}`, len(str))
		}
		argsJSON = &str
	}

	isError := 0
	if e.IsError {
		isError = 1
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tool_calls (id, request_id, tool_name, arguments_json, is_error, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		e.ID,
		e.RequestID,
		e.ToolName,
		argsJSON,
		isError,
		e.Duration.Milliseconds(),
		e.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting tool call: %w", err)
	}

	s.logger.Debug("recorded tool call",
		"id", e.ID,
		"request_id", e.RequestID,
		"tool_name", e.ToolName,
	)
	return nil
}

// normalizeLimit applies default (50) and cap (1000) to a listing limit.
func normalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return 50
	case limit > 1000:
		return 1000
	default:
		return limit
	}
}

// Recent returns up to limit calls, newest first. An empty toolName matches
// every tool.
func (s *Store) Recent(ctx context.Context, toolName string, limit int) ([]Entry, error) {
	var tool *string
	if toolName != "" {
		tool = &toolName
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, request_id, tool_name, arguments_json, is_error, duration_ms, created_at
		FROM tool_calls
		WHERE (? IS NULL OR tool_name = ?)
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, tool, tool, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("querying tool calls: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tool calls: %w", err)
	}
	return entries, nil
}

func scanEntry(scanner interface{ Scan(dest ...any) error }) (Entry, error) {
	var e Entry
	var argsJSON *string
	var isError int
	var durationMS int64
	var createdStr string

	if err := scanner.Scan(&e.ID, &e.RequestID, &e.ToolName, &argsJSON, &isError, &durationMS, &createdStr); err != nil {
		return e, fmt.Errorf("scanning tool call: %w", err)
	}

	if argsJSON != nil {
		e.Arguments = json.RawMessage(*argsJSON)
	}
	e.IsError = isError != 0
	e.Duration = time.Duration(durationMS) * time.Millisecond

	var err error
	e.CreatedAt, err = time.Parse(timeLayout, createdStr)
	if err != nil {
		return e, fmt.Errorf("parsing timestamp: %w", err)
	}
	return e, nil
}
