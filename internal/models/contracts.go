// Package models defines the wire contracts of the CaseFlow HTTP layer.
package models

// MaxMessageLength defines the maximum allowed length for an inbound message.
const MaxMessageLength = 8192

// ResponseMetadata is always attached to a rendered response so callers can
// rely on uniform handling. When no flow context is available the fields
// default to 0/0/"unknown".
type ResponseMetadata struct {
	StepNumber int    `json:"step_number"`
	TotalSteps int    `json:"total_steps"`
	FlowType   string `json:"flow_type"`
}

// UnknownFlowMetadata returns the metadata defaults used when no flow context exists.
func UnknownFlowMetadata() ResponseMetadata {
	return ResponseMetadata{StepNumber: 0, TotalSteps: 0, FlowType: "unknown"}
}

// RenderedResponse is the dual-purpose output of the response formatter:
// human-readable display text plus an optional machine-readable payload.
type RenderedResponse struct {
	DisplayText    string                 `json:"display_text"`
	StructuredData map[string]interface{} `json:"structured_data,omitempty"`
	Metadata       ResponseMetadata       `json:"metadata"`
}

// MessageRequest is the inbound call contract consumed from the web layer.
// ExtractedData carries previously collected sections for stateless callers;
// when omitted the server loads persisted state for the conversation instead.
type MessageRequest struct {
	Message       string          `json:"message"`
	CurrentStep   int             `json:"current_step,omitempty"`
	ExtractedData *ReportSections `json:"extracted_data,omitempty"`
	MessageType   string          `json:"message_type,omitempty"`
	Tier          string          `json:"tier,omitempty"`
	CustomerClass string          `json:"customer_class,omitempty"`
}

// Validate performs validation on a MessageRequest.
func (r *MessageRequest) Validate() error {
	if r.Message == "" {
		return ErrEmptyMessage
	}
	if len(r.Message) > MaxMessageLength {
		return ErrMessageTooLong
	}
	return nil
}

// ConversationStateView is the caller-facing snapshot of conversation state
// returned with every message response.
type ConversationStateView struct {
	CurrentStep   int            `json:"current_step"`
	ExtractedData ReportSections `json:"extracted_data"`
	Status        ReportStatus   `json:"status"`
}

// MessageResponse is the outbound shape of the message intake endpoint.
type MessageResponse struct {
	Success           bool                  `json:"success"`
	Extracted         Extraction            `json:"extracted"`
	NextMessages      []string              `json:"next_messages"`
	ShouldEscalate    bool                  `json:"should_escalate"`
	Response          RenderedResponse      `json:"response"`
	Classification    ClassificationResult  `json:"classification"`
	Completion        CompletionStatus      `json:"completion"`
	Escalation        EscalationDecision    `json:"escalation"`
	ConversationState ConversationStateView `json:"conversation_state"`
}

// OpenConversationRequest is the payload for opening a new conversation.
type OpenConversationRequest struct {
	MessageType string `json:"message_type,omitempty"`
}
