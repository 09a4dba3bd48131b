// Package store: SQLite-backed persistence.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	"github.com/BTreeMap/CaseFlow/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore persists conversations and escalations in a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN is a file path; its directory is created if missing.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	if cfg.DSN == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(cfg.DSN)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run SQLite migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite store ready", "dsn", cfg.DSN)
	return &SQLiteStore{db: db}, nil
}

// SaveConversation stores or replaces a conversation state snapshot.
func (s *SQLiteStore) SaveConversation(state models.ConversationState) error {
	if state.ReportID == "" {
		return models.ErrEmptyReportID
	}
	sections, err := marshalSections(state.Sections)
	if err != nil {
		slog.Error("SQLiteStore SaveConversation marshal failed", "error", err, "reportID", state.ReportID)
		return err
	}
	_, err = s.db.Exec(`INSERT INTO conversations (report_id, message_type, current_step, message_count, sections, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(report_id) DO UPDATE SET
			message_type = excluded.message_type,
			current_step = excluded.current_step,
			message_count = excluded.message_count,
			sections = excluded.sections,
			updated_at = excluded.updated_at`,
		state.ReportID, state.MessageType, state.CurrentStep, state.MessageCount, sections, state.CreatedAt, state.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveConversation failed", "error", err, "reportID", state.ReportID)
		return fmt.Errorf("failed to save conversation: %w", err)
	}
	slog.Debug("SQLiteStore SaveConversation succeeded", "reportID", state.ReportID, "step", state.CurrentStep)
	return nil
}

// GetConversation returns the stored state, or nil if none exists.
func (s *SQLiteStore) GetConversation(reportID string) (*models.ConversationState, error) {
	row := s.db.QueryRow(`SELECT report_id, message_type, current_step, message_count, sections, created_at, updated_at
		FROM conversations WHERE report_id = ?`, reportID)
	state, err := scanConversationRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetConversation failed", "error", err, "reportID", reportID)
		return nil, err
	}
	return state, nil
}

// ListConversations returns every stored conversation ordered by creation time.
func (s *SQLiteStore) ListConversations() ([]models.ConversationState, error) {
	rows, err := s.db.Query(`SELECT report_id, message_type, current_step, message_count, sections, created_at, updated_at
		FROM conversations ORDER BY created_at`)
	if err != nil {
		slog.Error("SQLiteStore ListConversations failed", "error", err)
		return nil, err
	}
	defer rows.Close()
	return collectConversations(rows)
}

// DeleteConversation removes a conversation and its escalation records.
func (s *SQLiteStore) DeleteConversation(reportID string) error {
	if _, err := s.db.Exec(`DELETE FROM escalations WHERE report_id = ?`, reportID); err != nil {
		return fmt.Errorf("failed to delete escalations: %w", err)
	}
	if _, err := s.db.Exec(`DELETE FROM conversations WHERE report_id = ?`, reportID); err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	slog.Debug("SQLiteStore DeleteConversation succeeded", "reportID", reportID)
	return nil
}

// SaveEscalation appends an escalation record for audit.
func (s *SQLiteStore) SaveEscalation(record models.EscalationRecord) error {
	if record.ReportID == "" {
		return models.ErrEmptyReportID
	}
	_, err := s.db.Exec(`INSERT INTO escalations (id, report_id, reason, recommended_tier, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		record.ID, record.ReportID, record.Reason, record.RecommendedTier, record.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveEscalation failed", "error", err, "reportID", record.ReportID)
		return fmt.Errorf("failed to save escalation: %w", err)
	}
	return nil
}

// ListEscalations returns the escalation records for a report in insertion order.
func (s *SQLiteStore) ListEscalations(reportID string) ([]models.EscalationRecord, error) {
	rows, err := s.db.Query(`SELECT id, report_id, reason, recommended_tier, created_at
		FROM escalations WHERE report_id = ? ORDER BY created_at`, reportID)
	if err != nil {
		slog.Error("SQLiteStore ListEscalations failed", "error", err, "reportID", reportID)
		return nil, err
	}
	defer rows.Close()
	return collectEscalations(rows)
}

// Close closes the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
