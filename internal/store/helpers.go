package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/BTreeMap/CaseFlow/internal/models"
)

// marshalSections serializes report sections for a JSON column.
func marshalSections(sections models.ReportSections) (string, error) {
	data, err := json.Marshal(sections)
	if err != nil {
		return "", fmt.Errorf("failed to marshal sections: %w", err)
	}
	return string(data), nil
}

// scanConversationRow scans a ConversationState from a single sql.Row.
func scanConversationRow(row *sql.Row) (*models.ConversationState, error) {
	var state models.ConversationState
	var sections string
	err := row.Scan(&state.ReportID, &state.MessageType, &state.CurrentStep,
		&state.MessageCount, &sections, &state.CreatedAt, &state.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(sections), &state.Sections); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sections: %w", err)
	}
	return &state, nil
}

// collectConversations drains rows into conversation states.
func collectConversations(rows *sql.Rows) ([]models.ConversationState, error) {
	var states []models.ConversationState
	for rows.Next() {
		var state models.ConversationState
		var sections string
		err := rows.Scan(&state.ReportID, &state.MessageType, &state.CurrentStep,
			&state.MessageCount, &sections, &state.CreatedAt, &state.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan conversation failed: %w", err)
		}
		if err := json.Unmarshal([]byte(sections), &state.Sections); err != nil {
			return nil, fmt.Errorf("failed to unmarshal sections: %w", err)
		}
		states = append(states, state)
	}
	return states, rows.Err()
}

// collectEscalations drains rows into escalation records.
func collectEscalations(rows *sql.Rows) ([]models.EscalationRecord, error) {
	var records []models.EscalationRecord
	for rows.Next() {
		var record models.EscalationRecord
		err := rows.Scan(&record.ID, &record.ReportID, &record.Reason,
			&record.RecommendedTier, &record.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan escalation failed: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}
