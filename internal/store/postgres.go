// Package store: PostgreSQL-backed persistence.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/BTreeMap/CaseFlow/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants.
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database.
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool.
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused.
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore persists conversations and escalations in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")

	if cfg.DSN == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}
	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run Postgres migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres store ready")
	return &PostgresStore{db: db}, nil
}

// SaveConversation stores or replaces a conversation state snapshot.
func (s *PostgresStore) SaveConversation(state models.ConversationState) error {
	if state.ReportID == "" {
		return models.ErrEmptyReportID
	}
	sections, err := marshalSections(state.Sections)
	if err != nil {
		slog.Error("PostgresStore SaveConversation marshal failed", "error", err, "reportID", state.ReportID)
		return err
	}
	_, err = s.db.Exec(`INSERT INTO conversations (report_id, message_type, current_step, message_count, sections, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (report_id) DO UPDATE SET
			message_type = EXCLUDED.message_type,
			current_step = EXCLUDED.current_step,
			message_count = EXCLUDED.message_count,
			sections = EXCLUDED.sections,
			updated_at = EXCLUDED.updated_at`,
		state.ReportID, state.MessageType, state.CurrentStep, state.MessageCount, sections, state.CreatedAt, state.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveConversation failed", "error", err, "reportID", state.ReportID)
		return fmt.Errorf("failed to save conversation: %w", err)
	}
	slog.Debug("PostgresStore SaveConversation succeeded", "reportID", state.ReportID, "step", state.CurrentStep)
	return nil
}

// GetConversation returns the stored state, or nil if none exists.
func (s *PostgresStore) GetConversation(reportID string) (*models.ConversationState, error) {
	row := s.db.QueryRow(`SELECT report_id, message_type, current_step, message_count, sections, created_at, updated_at
		FROM conversations WHERE report_id = $1`, reportID)
	state, err := scanConversationRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetConversation failed", "error", err, "reportID", reportID)
		return nil, err
	}
	return state, nil
}

// ListConversations returns every stored conversation ordered by creation time.
func (s *PostgresStore) ListConversations() ([]models.ConversationState, error) {
	rows, err := s.db.Query(`SELECT report_id, message_type, current_step, message_count, sections, created_at, updated_at
		FROM conversations ORDER BY created_at`)
	if err != nil {
		slog.Error("PostgresStore ListConversations failed", "error", err)
		return nil, err
	}
	defer rows.Close()
	return collectConversations(rows)
}

// DeleteConversation removes a conversation and its escalation records.
func (s *PostgresStore) DeleteConversation(reportID string) error {
	if _, err := s.db.Exec(`DELETE FROM escalations WHERE report_id = $1`, reportID); err != nil {
		return fmt.Errorf("failed to delete escalations: %w", err)
	}
	if _, err := s.db.Exec(`DELETE FROM conversations WHERE report_id = $1`, reportID); err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	slog.Debug("PostgresStore DeleteConversation succeeded", "reportID", reportID)
	return nil
}

// SaveEscalation appends an escalation record for audit.
func (s *PostgresStore) SaveEscalation(record models.EscalationRecord) error {
	if record.ReportID == "" {
		return models.ErrEmptyReportID
	}
	_, err := s.db.Exec(`INSERT INTO escalations (id, report_id, reason, recommended_tier, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		record.ID, record.ReportID, record.Reason, record.RecommendedTier, record.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveEscalation failed", "error", err, "reportID", record.ReportID)
		return fmt.Errorf("failed to save escalation: %w", err)
	}
	return nil
}

// ListEscalations returns the escalation records for a report in insertion order.
func (s *PostgresStore) ListEscalations(reportID string) ([]models.EscalationRecord, error) {
	rows, err := s.db.Query(`SELECT id, report_id, reason, recommended_tier, created_at
		FROM escalations WHERE report_id = $1 ORDER BY created_at`, reportID)
	if err != nil {
		slog.Error("PostgresStore ListEscalations failed", "error", err, "reportID", reportID)
		return nil, err
	}
	defer rows.Close()
	return collectEscalations(rows)
}

// Close closes the underlying database handle.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
