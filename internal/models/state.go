// Package models defines conversation state structures for CaseFlow intake flows.
package models

import "time"

// Section name constants for report sections.
const (
	SectionVictimInfo      = "victim_info"
	SectionIncidentDetails = "incident_details"
	SectionTransactionInfo = "transaction_info"
	SectionEvidence        = "evidence"
)

// Field name constants for report fields.
const (
	FieldName              = "name"
	FieldEmail             = "email"
	FieldPhone             = "phone"
	FieldIncidentDate      = "incident_date"
	FieldDescription       = "incident_description"
	FieldCryptoType        = "crypto_type"
	FieldAmountLost        = "amount_lost"
	FieldWalletAddresses   = "wallet_addresses"
	FieldTransactionHashes = "transaction_hashes"
	FieldEvidenceTypes     = "evidence_types"
	FieldEvidenceNotes     = "evidence_notes"
)

// VictimInfo holds contact details for the person filing the report.
// Nil pointers mean the field has not been collected yet.
type VictimInfo struct {
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty"`
	Phone *string `json:"phone,omitempty"`
}

// IncidentDetails holds the narrative facts of the incident.
type IncidentDetails struct {
	IncidentDate *string `json:"incident_date,omitempty"`
	Description  *string `json:"incident_description,omitempty"`
}

// TransactionInfo holds the financial details of the incident.
type TransactionInfo struct {
	CryptoType        *string  `json:"crypto_type,omitempty"`
	AmountLost        *string  `json:"amount_lost,omitempty"`
	WalletAddresses   []string `json:"wallet_addresses,omitempty"`
	TransactionHashes []string `json:"transaction_hashes,omitempty"`
}

// Evidence holds what supporting material the reporter can provide.
type Evidence struct {
	EvidenceTypes []string `json:"evidence_types,omitempty"`
	Notes         *string  `json:"evidence_notes,omitempty"`
}

// ReportSections groups every section of a report. Fields start absent and are
// only ever added or overwritten, never removed.
type ReportSections struct {
	VictimInfo      VictimInfo      `json:"victim_info"`
	IncidentDetails IncidentDetails `json:"incident_details"`
	TransactionInfo TransactionInfo `json:"transaction_info"`
	Evidence        Evidence        `json:"evidence"`
}

// fieldSections routes each field name to the section that owns it.
var fieldSections = map[string]string{
	FieldName:              SectionVictimInfo,
	FieldEmail:             SectionVictimInfo,
	FieldPhone:             SectionVictimInfo,
	FieldIncidentDate:      SectionIncidentDetails,
	FieldDescription:       SectionIncidentDetails,
	FieldCryptoType:        SectionTransactionInfo,
	FieldAmountLost:        SectionTransactionInfo,
	FieldWalletAddresses:   SectionTransactionInfo,
	FieldTransactionHashes: SectionTransactionInfo,
	FieldEvidenceTypes:     SectionEvidence,
	FieldEvidenceNotes:     SectionEvidence,
}

// SectionForField returns the section owning the given field name.
func SectionForField(field string) (string, bool) {
	section, ok := fieldSections[field]
	return section, ok
}

// KnownField reports whether a field name is part of the report schema.
func KnownField(field string) bool {
	_, ok := fieldSections[field]
	return ok
}

// SetField writes an extracted value into the section owning the field.
// Existing values are overwritten (last write wins: later, more specific
// answers supersede earlier partial ones). Unknown fields are ignored and
// reported via the return value.
func (s *ReportSections) SetField(field string, value FieldValue) bool {
	if value.IsEmpty() {
		return false
	}
	switch field {
	case FieldName:
		s.VictimInfo.Name = scalarPtr(value)
	case FieldEmail:
		s.VictimInfo.Email = scalarPtr(value)
	case FieldPhone:
		s.VictimInfo.Phone = scalarPtr(value)
	case FieldIncidentDate:
		s.IncidentDetails.IncidentDate = scalarPtr(value)
	case FieldDescription:
		s.IncidentDetails.Description = scalarPtr(value)
	case FieldCryptoType:
		s.TransactionInfo.CryptoType = scalarPtr(value)
	case FieldAmountLost:
		s.TransactionInfo.AmountLost = scalarPtr(value)
	case FieldWalletAddresses:
		s.TransactionInfo.WalletAddresses = itemsOf(value)
	case FieldTransactionHashes:
		s.TransactionInfo.TransactionHashes = itemsOf(value)
	case FieldEvidenceTypes:
		s.Evidence.EvidenceTypes = itemsOf(value)
	case FieldEvidenceNotes:
		s.Evidence.Notes = scalarPtr(value)
	default:
		return false
	}
	return true
}

// FieldPopulated reports whether a field holds a non-empty value.
func (s *ReportSections) FieldPopulated(field string) bool {
	switch field {
	case FieldName:
		return s.VictimInfo.Name != nil
	case FieldEmail:
		return s.VictimInfo.Email != nil
	case FieldPhone:
		return s.VictimInfo.Phone != nil
	case FieldIncidentDate:
		return s.IncidentDetails.IncidentDate != nil
	case FieldDescription:
		return s.IncidentDetails.Description != nil
	case FieldCryptoType:
		return s.TransactionInfo.CryptoType != nil
	case FieldAmountLost:
		return s.TransactionInfo.AmountLost != nil
	case FieldWalletAddresses:
		return len(s.TransactionInfo.WalletAddresses) > 0
	case FieldTransactionHashes:
		return len(s.TransactionInfo.TransactionHashes) > 0
	case FieldEvidenceTypes:
		return len(s.Evidence.EvidenceTypes) > 0
	case FieldEvidenceNotes:
		return s.Evidence.Notes != nil
	default:
		return false
	}
}

func scalarPtr(v FieldValue) *string {
	// Multi matches collapsing into a scalar slot keep the first occurrence.
	text := v.Text
	if v.Multi && len(v.Items) > 0 {
		text = v.Items[0]
	}
	if text == "" {
		return nil
	}
	return &text
}

func itemsOf(v FieldValue) []string {
	if !v.Multi {
		if v.Text == "" {
			return nil
		}
		return []string{v.Text}
	}
	items := make([]string, len(v.Items))
	copy(items, v.Items)
	return items
}

// ConversationState is the caller-owned state threaded through the intake
// pipeline. The engine never caches it; all persistence belongs to the caller.
type ConversationState struct {
	ReportID     string         `json:"report_id"`
	MessageType  string         `json:"message_type,omitempty"`
	CurrentStep  int            `json:"current_step"`
	MessageCount int            `json:"message_count"`
	Sections     ReportSections `json:"sections"`
	CreatedAt    time.Time      `json:"created_at,omitempty"`
	UpdatedAt    time.Time      `json:"updated_at,omitempty"`
}

// NewConversationState creates a fresh state for a report. CurrentStep starts
// at 1 so the first step's prompts are active before any message arrives.
func NewConversationState(reportID string) ConversationState {
	now := time.Now()
	return ConversationState{
		ReportID:    reportID,
		CurrentStep: 1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// EscalationRecord is the persisted audit trail entry for one escalation.
type EscalationRecord struct {
	ID              string    `json:"id"`
	ReportID        string    `json:"report_id"`
	Reason          string    `json:"reason"`
	RecommendedTier string    `json:"recommended_tier,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}
