// Package store provides storage backends for CaseFlow.
//
// It persists caller-owned conversation state snapshots and escalation
// records. The intake engine itself never touches the store; only the API
// layer loads and saves state around each pipeline pass. Backends exist for
// SQLite, PostgreSQL, and in-memory use in tests.
package store

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/BTreeMap/CaseFlow/internal/models"
)

// Store defines the persistence operations of the API layer.
type Store interface {
	SaveConversation(state models.ConversationState) error
	GetConversation(reportID string) (*models.ConversationState, error)
	ListConversations() ([]models.ConversationState, error)
	DeleteConversation(reportID string) error
	SaveEscalation(record models.EscalationRecord) error
	ListEscalations(reportID string) ([]models.EscalationRecord, error)
	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithDSN sets the database connection string.
func WithDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// InMemoryStore is a mutex-guarded in-memory store for tests and local runs.
type InMemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]models.ConversationState
	escalations   map[string][]models.EscalationRecord
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	slog.Debug("Creating InMemoryStore")
	return &InMemoryStore{
		conversations: make(map[string]models.ConversationState),
		escalations:   make(map[string][]models.EscalationRecord),
	}
}

// SaveConversation stores or replaces a conversation state snapshot.
func (s *InMemoryStore) SaveConversation(state models.ConversationState) error {
	if state.ReportID == "" {
		return models.ErrEmptyReportID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations[state.ReportID] = state
	return nil
}

// GetConversation returns the stored state, or nil if none exists.
func (s *InMemoryStore) GetConversation(reportID string) (*models.ConversationState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.conversations[reportID]
	if !ok {
		return nil, nil
	}
	return &state, nil
}

// ListConversations returns every stored conversation, ordered by report ID.
func (s *InMemoryStore) ListConversations() ([]models.ConversationState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	states := make([]models.ConversationState, 0, len(s.conversations))
	for _, state := range s.conversations {
		states = append(states, state)
	}
	sort.Slice(states, func(i, j int) bool { return states[i].ReportID < states[j].ReportID })
	return states, nil
}

// DeleteConversation removes a conversation and its escalation records.
func (s *InMemoryStore) DeleteConversation(reportID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conversations, reportID)
	delete(s.escalations, reportID)
	return nil
}

// SaveEscalation appends an escalation record for audit.
func (s *InMemoryStore) SaveEscalation(record models.EscalationRecord) error {
	if record.ReportID == "" {
		return models.ErrEmptyReportID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.escalations[record.ReportID] = append(s.escalations[record.ReportID], record)
	return nil
}

// ListEscalations returns the escalation records for a report in insertion order.
func (s *InMemoryStore) ListEscalations(reportID string) ([]models.EscalationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := make([]models.EscalationRecord, len(s.escalations[reportID]))
	copy(records, s.escalations[reportID])
	return records, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}
