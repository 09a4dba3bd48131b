package flow

import (
	"reflect"
	"testing"

	"github.com/BTreeMap/CaseFlow/internal/models"
)

func TestMergeWritesFieldsAndCounts(t *testing.T) {
	state := models.NewConversationState("r1")
	Merge(&state, models.Extraction{
		models.FieldName:            scalar("Jane Doe"),
		models.FieldWalletAddresses: models.MultiValue([]string{"0xabc", "0xdef"}),
	})

	if state.MessageCount != 1 {
		t.Errorf("MessageCount = %d, want 1", state.MessageCount)
	}
	if state.Sections.VictimInfo.Name == nil || *state.Sections.VictimInfo.Name != "Jane Doe" {
		t.Errorf("name not merged: %+v", state.Sections.VictimInfo)
	}
	if len(state.Sections.TransactionInfo.WalletAddresses) != 2 {
		t.Errorf("wallet addresses not merged: %+v", state.Sections.TransactionInfo)
	}
}

func TestMergeLastWriteWins(t *testing.T) {
	state := models.NewConversationState("r1")
	Merge(&state, models.Extraction{models.FieldAmountLost: scalar("$500")})
	Merge(&state, models.Extraction{models.FieldAmountLost: scalar("$5,000")})

	if got := state.Sections.TransactionInfo.AmountLost; got == nil || *got != "$5,000" {
		t.Errorf("AmountLost = %v, want later value to win", got)
	}
	if state.MessageCount != 2 {
		t.Errorf("MessageCount = %d, want 2", state.MessageCount)
	}
}

func TestMergeIgnoresUnknownFields(t *testing.T) {
	state := models.NewConversationState("r1")
	Merge(&state, models.Extraction{"favorite_color": scalar("blue")})

	if !reflect.DeepEqual(state.Sections, models.ReportSections{}) {
		t.Errorf("unknown field mutated sections: %+v", state.Sections)
	}
	if state.MessageCount != 1 {
		t.Errorf("MessageCount = %d, unknown fields still count the message", state.MessageCount)
	}
}

func TestMergeEmptyMessageStillCounts(t *testing.T) {
	state := models.NewConversationState("r1")
	Merge(&state, models.Extraction{})
	if state.MessageCount != 1 {
		t.Errorf("MessageCount = %d, want 1", state.MessageCount)
	}
}

func TestCompletionEmptyReport(t *testing.T) {
	def := testDefinition()
	state := models.NewConversationState("r1")

	status := Completion(&state, def)
	if status.Status != models.ReportStatusIncomplete {
		t.Errorf("Status = %q, want incomplete", status.Status)
	}
	if status.CompletionPercentage != 0 {
		t.Errorf("CompletionPercentage = %v, want 0", status.CompletionPercentage)
	}
	if len(status.MissingFields) != 6 {
		t.Errorf("MissingFields = %v, want all six", status.MissingFields)
	}
	if status.ReadyForHumanReview {
		t.Error("fresh report should not be ready for review")
	}
}

func TestCompletionExactlyHalfIsPartial(t *testing.T) {
	def := testDefinition()
	state := models.NewConversationState("r1")
	Merge(&state, models.Extraction{
		models.FieldName:  scalar("Jane"),
		models.FieldEmail: scalar("jane@example.com"),
		models.FieldPhone: scalar("555-0100"), // not required by this flow
	})
	Merge(&state, models.Extraction{models.FieldIncidentDate: scalar("yesterday")})

	status := Completion(&state, def)
	if status.CompletionPercentage != 0.5 {
		t.Errorf("CompletionPercentage = %v, want 0.5", status.CompletionPercentage)
	}
	if status.Status != models.ReportStatusPartial {
		t.Errorf("Status = %q, want partial at exactly half", status.Status)
	}
}

func TestCompletionBelowHalfIsIncomplete(t *testing.T) {
	def := testDefinition()
	state := models.NewConversationState("r1")
	Merge(&state, models.Extraction{
		models.FieldName:  scalar("Jane"),
		models.FieldEmail: scalar("jane@example.com"),
	})

	status := Completion(&state, def)
	if status.Status != models.ReportStatusIncomplete {
		t.Errorf("Status = %q, want incomplete at 2/6", status.Status)
	}
}

func TestCompletionAllFieldsComplete(t *testing.T) {
	def := testDefinition()
	state := models.NewConversationState("r1")
	Merge(&state, models.Extraction{
		models.FieldName:            scalar("Jane"),
		models.FieldEmail:           scalar("jane@example.com"),
		models.FieldIncidentDate:    scalar("yesterday"),
		models.FieldDescription:     scalar("someone drained my wallet"),
		models.FieldAmountLost:      scalar("$5,000"),
		models.FieldWalletAddresses: models.MultiValue([]string{"0xabc"}),
	})

	status := Completion(&state, def)
	if status.Status != models.ReportStatusComplete {
		t.Errorf("Status = %q, want complete", status.Status)
	}
	if status.CompletionPercentage != 1.0 {
		t.Errorf("CompletionPercentage = %v, want 1.0", status.CompletionPercentage)
	}
	if len(status.MissingFields) != 0 {
		t.Errorf("MissingFields = %v, want none", status.MissingFields)
	}
	if !status.ReadyForHumanReview {
		t.Error("complete report must be ready for review")
	}
}

func TestCompletionMonotonic(t *testing.T) {
	def := testDefinition()
	state := models.NewConversationState("r1")

	extractions := []models.Extraction{
		{models.FieldName: scalar("Jane")},
		{}, // message with nothing usable
		{models.FieldEmail: scalar("jane@example.com"), models.FieldName: scalar("Jane Doe")},
		{models.FieldIncidentDate: scalar("yesterday")},
	}

	prev := Completion(&state, def).CompletionPercentage
	for i, extraction := range extractions {
		Merge(&state, extraction)
		current := Completion(&state, def).CompletionPercentage
		if current < prev {
			t.Errorf("completion decreased after merge %d: %v -> %v", i, prev, current)
		}
		prev = current
	}
}

func TestCompletionBudgetExhaustionForcesReview(t *testing.T) {
	def := testDefinition() // budget of 4
	state := models.NewConversationState("r1")
	for i := 0; i < 4; i++ {
		Merge(&state, models.Extraction{})
	}

	status := Completion(&state, def)
	if status.Status == models.ReportStatusComplete {
		t.Fatalf("Status = %q, report should still be missing fields", status.Status)
	}
	if !status.ReadyForHumanReview {
		t.Error("exhausted budget must hand off the partial report")
	}
}

func TestCompletionNoRequiredFields(t *testing.T) {
	def := &Definition{Type: "chitchat", Steps: []Step{{Index: 1, Purpose: "talk"}}}
	state := models.NewConversationState("r1")

	status := Completion(&state, def)
	if status.Status != models.ReportStatusComplete {
		t.Errorf("Status = %q, want complete when nothing is required", status.Status)
	}
	if status.CompletionPercentage != 1.0 {
		t.Errorf("CompletionPercentage = %v, want 1.0", status.CompletionPercentage)
	}
}
