package classify

import (
	"reflect"
	"testing"

	"github.com/BTreeMap/CaseFlow/internal/extract"
	"github.com/BTreeMap/CaseFlow/internal/models"
)

func testClassifier(t *testing.T) *Classifier {
	t.Helper()
	rules, err := extract.Compile([]extract.FieldSpec{
		{
			Name:          "wallet_addresses",
			Section:       "transaction_info",
			Multi:         true,
			CaseSensitive: true,
			Patterns:      []string{`\b0x[0-9a-fA-F]{40}\b`},
		},
		{
			Name:     "amount_lost",
			Section:  "transaction_info",
			Patterns: []string{`\$[0-9][0-9,]*`},
		},
	})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	tables := Tables{
		Categories: []CategoryRule{
			{
				Type:           "crypto_theft",
				Keywords:       []string{"crypto stolen", "wallet drained", "stole my bitcoin"},
				EntityFields:   []string{"wallet_addresses"},
				MinUrgency:     models.UrgencyHigh,
				Workflows:      []string{"open_theft_report"},
				ResponseType:   "empathetic_intake",
				ToneGuidance:   "calm and reassuring",
				LengthGuidance: "short",
			},
			{
				Type:     "billing_question",
				Keywords: []string{"invoice", "charged twice", "refund"},
			},
		},
		Urgency: []UrgencyRule{
			{Level: models.UrgencyCritical, Keywords: []string{"right now", "emergency"}},
			{Level: models.UrgencyHigh, EntityFields: []string{"amount_lost"}},
		},
		Intents: []LabelRule{
			{Label: "report_incident", Keywords: []string{"stolen", "stole", "drained"}},
			{Label: "seek_help", Keywords: []string{"help", "what do i do"}},
		},
		Emotions: []LabelRule{
			{Label: "distressed", Keywords: []string{"panicking", "desperate"}},
			{Label: "angry", Keywords: []string{"furious", "unacceptable"}},
		},
	}
	return New(tables, rules)
}

func TestClassifyKeywordCategory(t *testing.T) {
	c := testClassifier(t)
	result := c.Classify("My wallet drained overnight, everything is gone", "")

	if result.MessageType != "crypto_theft" {
		t.Errorf("MessageType = %q, want crypto_theft", result.MessageType)
	}
	if result.PrimaryIntent != "report_incident" {
		t.Errorf("PrimaryIntent = %q, want report_incident", result.PrimaryIntent)
	}
	if !reflect.DeepEqual(result.RequiredWorkflows, []string{"open_theft_report"}) {
		t.Errorf("RequiredWorkflows = %v", result.RequiredWorkflows)
	}
	if result.ResponseGuidance.ResponseType != "empathetic_intake" {
		t.Errorf("ResponseType = %q", result.ResponseGuidance.ResponseType)
	}
}

func TestClassifyEntityDrivenCategory(t *testing.T) {
	c := testClassifier(t)
	// No category keyword, but a wallet address implies the theft category.
	result := c.Classify("it all went to 0x1234567890abcdef1234567890abcdef12345678", "")

	if result.MessageType != "crypto_theft" {
		t.Errorf("MessageType = %q, want crypto_theft", result.MessageType)
	}
	if !result.ExtractedEntities.Has("wallet_addresses") {
		t.Error("expected wallet_addresses entity on classification result")
	}
}

func TestClassifyPriorTypePersists(t *testing.T) {
	c := testClassifier(t)
	result := c.Classify("yes, that's right", "crypto_theft")

	if result.MessageType != "crypto_theft" {
		t.Errorf("MessageType = %q, want prior type to persist", result.MessageType)
	}
	// The prior category's guidance still applies.
	if result.UrgencyLevel != models.UrgencyHigh {
		t.Errorf("UrgencyLevel = %q, want category minimum high", result.UrgencyLevel)
	}
}

func TestClassifyPriorTypeReplacedByStrongMatch(t *testing.T) {
	c := testClassifier(t)
	result := c.Classify("actually this is about an invoice", "crypto_theft")

	if result.MessageType != "billing_question" {
		t.Errorf("MessageType = %q, want billing_question", result.MessageType)
	}
}

func TestClassifyDefaultType(t *testing.T) {
	c := testClassifier(t)
	result := c.Classify("hello there", "")

	if result.MessageType != DefaultMessageType {
		t.Errorf("MessageType = %q, want %q", result.MessageType, DefaultMessageType)
	}
	if result.PrimaryIntent != "ask_question" {
		t.Errorf("PrimaryIntent = %q, want default", result.PrimaryIntent)
	}
	if result.EmotionalState != "neutral" {
		t.Errorf("EmotionalState = %q, want default", result.EmotionalState)
	}
	if result.ResponseGuidance.ResponseType != "informational" {
		t.Errorf("ResponseGuidance = %+v, want defaults", result.ResponseGuidance)
	}
}

func TestClassifyUrgencyFloorFromCategory(t *testing.T) {
	c := testClassifier(t)
	result := c.Classify("someone stole my bitcoin yesterday", "")

	if result.UrgencyLevel != models.UrgencyHigh {
		t.Errorf("UrgencyLevel = %q, want high", result.UrgencyLevel)
	}
}

func TestClassifyUrgencyRuleRaisesLevel(t *testing.T) {
	c := testClassifier(t)
	result := c.Classify("my crypto stolen, I need this fixed right now", "")

	if result.UrgencyLevel != models.UrgencyCritical {
		t.Errorf("UrgencyLevel = %q, want critical", result.UrgencyLevel)
	}
}

func TestClassifyEmphasisBumpsUrgency(t *testing.T) {
	c := testClassifier(t)
	result := c.Classify("where is my invoice!! answer me!!", "")

	if result.UrgencyLevel.Rank() < models.UrgencyMedium.Rank() {
		t.Errorf("UrgencyLevel = %q, want at least medium for emphatic message", result.UrgencyLevel)
	}
}

func TestClassifyAllCapsCountsAsEmphasis(t *testing.T) {
	c := testClassifier(t)
	result := c.Classify("WHERE IS MY REFUND PLEASE", "")

	if result.UrgencyLevel.Rank() < models.UrgencyMedium.Rank() {
		t.Errorf("UrgencyLevel = %q, want at least medium for all-caps message", result.UrgencyLevel)
	}
}

func TestClassifyEmotionFirstMatchWins(t *testing.T) {
	c := testClassifier(t)
	// Both "panicking" (distressed) and "furious" (angry) appear; declaration
	// order breaks the tie.
	result := c.Classify("I'm panicking and furious about this", "")

	if result.EmotionalState != "distressed" {
		t.Errorf("EmotionalState = %q, want distressed", result.EmotionalState)
	}
}
