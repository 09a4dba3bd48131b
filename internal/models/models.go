// Package models defines the core data structures for CaseFlow.
//
// It includes the value objects produced by the intake engine (classification
// results, escalation decisions, completion status) and the request/response
// shapes of the HTTP layer, which are shared across modules.
package models

import (
	"errors"
)

// UrgencyLevel is an ordered urgency enumeration for classified messages.
type UrgencyLevel string

const (
	// UrgencyLow indicates a routine message with no time pressure.
	UrgencyLow UrgencyLevel = "low"
	// UrgencyMedium indicates a message that should be handled promptly.
	UrgencyMedium UrgencyLevel = "medium"
	// UrgencyHigh indicates a message describing active harm or loss.
	UrgencyHigh UrgencyLevel = "high"
	// UrgencyCritical indicates a message requiring immediate attention.
	UrgencyCritical UrgencyLevel = "critical"
)

// urgencyRanks orders urgency levels from lowest to highest.
var urgencyRanks = map[UrgencyLevel]int{
	UrgencyLow:      0,
	UrgencyMedium:   1,
	UrgencyHigh:     2,
	UrgencyCritical: 3,
}

// Rank returns the ordinal position of the urgency level. Unknown levels rank
// below UrgencyLow so a misconfigured table can never outrank a real one.
func (u UrgencyLevel) Rank() int {
	if r, ok := urgencyRanks[u]; ok {
		return r
	}
	return -1
}

// IsValidUrgencyLevel checks if the given urgency level is supported.
func IsValidUrgencyLevel(u UrgencyLevel) bool {
	_, ok := urgencyRanks[u]
	return ok
}

// MaxUrgency returns the higher of two urgency levels.
func MaxUrgency(a, b UrgencyLevel) UrgencyLevel {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// ReportStatus describes how complete a report is.
type ReportStatus string

const (
	// ReportStatusIncomplete indicates less than half of required fields are populated.
	ReportStatusIncomplete ReportStatus = "incomplete"
	// ReportStatusPartial indicates at least half but not all required fields are populated.
	ReportStatusPartial ReportStatus = "partial"
	// ReportStatusComplete indicates every required field is populated.
	ReportStatusComplete ReportStatus = "complete"
)

// Error variables for better error handling and testability.
var (
	ErrUnknownFlowType = errors.New("no flow definition for message type")
	ErrUnknownTier     = errors.New("no tier definition for tier tag")
	ErrEmptyMessage    = errors.New("message cannot be empty")
	ErrMessageTooLong  = errors.New("message exceeds maximum length")
	ErrEmptyReportID   = errors.New("report ID cannot be empty")
)

// ResponseGuidance carries advisory hints for rendering a reply.
type ResponseGuidance struct {
	ResponseType   string `json:"response_type"`
	ToneGuidance   string `json:"tone_guidance"`
	LengthGuidance string `json:"length_guidance"`
}

// ClassificationResult is the immutable outcome of classifying one message.
// It is produced fresh per message and never mutated after construction.
type ClassificationResult struct {
	MessageType       string           `json:"message_type"`
	UrgencyLevel      UrgencyLevel     `json:"urgency_level"`
	PrimaryIntent     string           `json:"primary_intent"`
	EmotionalState    string           `json:"emotional_state"`
	ExtractedEntities Extraction       `json:"extracted_entities,omitempty"`
	ResponseGuidance  ResponseGuidance `json:"response_guidance"`
	RequiredWorkflows []string         `json:"required_workflows,omitempty"`
	ProcessingTimeMs  int64            `json:"processing_time_ms"`
}

// EscalationDecision records whether and why a conversation should be handed
// to a higher tier. Reason and RecommendedTier are only set when Escalate is true.
type EscalationDecision struct {
	Escalate        bool   `json:"escalate"`
	Reason          string `json:"reason,omitempty"`
	RecommendedTier string `json:"recommended_tier,omitempty"`
}

// CompletionStatus is derived from conversation sections plus the active flow
// definition. ReadyForHumanReview is true iff the report is complete or the
// message budget is exhausted.
type CompletionStatus struct {
	Status               ReportStatus `json:"status"`
	CompletionPercentage float64      `json:"completion_percentage"`
	MissingFields        []string     `json:"missing_fields,omitempty"`
	ReadyForHumanReview  bool         `json:"ready_for_human_review"`
}

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// APIResponseBuilder provides a fluent interface for building API responses.
type APIResponseBuilder struct {
	response APIResponse
}

// NewAPIResponseBuilder creates a new APIResponseBuilder instance.
func NewAPIResponseBuilder() *APIResponseBuilder {
	return &APIResponseBuilder{response: APIResponse{}}
}

// WithStatus sets the status of the API response.
func (b *APIResponseBuilder) WithStatus(status APIStatus) *APIResponseBuilder {
	b.response.Status = string(status)
	return b
}

// WithMessage sets the message of the API response.
func (b *APIResponseBuilder) WithMessage(message string) *APIResponseBuilder {
	b.response.Message = message
	return b
}

// WithResult sets the result data of the API response.
func (b *APIResponseBuilder) WithResult(result interface{}) *APIResponseBuilder {
	b.response.Result = result
	return b
}

// Build constructs and returns the final APIResponse.
func (b *APIResponseBuilder) Build() APIResponse {
	return b.response
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusOK).
		WithResult(result).
		Build()
}

// SuccessWithMessage creates a successful API response with a message and result data.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusOK).
		WithMessage(message).
		WithResult(result).
		Build()
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusError).
		WithMessage(message).
		Build()
}
