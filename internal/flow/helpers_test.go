package flow

import (
	"testing"

	"github.com/BTreeMap/CaseFlow/internal/classify"
	"github.com/BTreeMap/CaseFlow/internal/extract"
	"github.com/BTreeMap/CaseFlow/internal/models"
)

// testDefinition is a three-step theft flow with a four-message budget.
// Required fields across all steps: name, email, incident_date,
// incident_description, amount_lost, wallet_addresses.
func testDefinition() *Definition {
	return &Definition{
		Type:        "crypto_theft",
		MaxMessages: 4,
		Steps: []Step{
			{
				Index:    1,
				Purpose:  "Collect contact details",
				Messages: []string{"Could you share your name and email address?"},
				Collects: []string{models.FieldName, models.FieldEmail},
				Triggers: []string{"@"},
			},
			{
				Index:    2,
				Purpose:  "Collect incident details",
				Messages: []string{"When did this happen, and what took place?"},
				Collects: []string{models.FieldIncidentDate, models.FieldDescription},
				Triggers: []string{"stolen", "happened", "drained"},
			},
			{
				Index:      3,
				Purpose:    "Collect transaction details",
				Messages:   []string{"Which wallet addresses were involved, and how much was lost?"},
				Collects:   []string{models.FieldAmountLost, models.FieldWalletAddresses},
				Triggers:   []string{"wallet", "0x"},
				Escalation: true,
			},
		},
	}
}

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	registry, err := NewRegistry([]*Definition{testDefinition()})
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	return registry
}

func testPolicy(t *testing.T) *Policy {
	t.Helper()
	policy, err := NewPolicy([]Tier{
		{
			Tag:   "tier_1",
			Level: 1,
			Triggers: []TriggerRule{
				{
					Name:     "technical_integration_complexity",
					Keywords: []string{"oauth", "webhook", "smart contract"},
					Reason:   "integration work involving OAuth or webhooks exceeds first-line scope",
					MinTier:  "tier_2",
				},
				{
					Name:     "legal_process",
					Keywords: []string{"subpoena", "law enforcement"},
					Reason:   "legal process must be handled by the escalation desk",
					MinTier:  "tier_3",
				},
				{
					Name:     "large_loss",
					Keywords: []string{"six figures"},
					Reason:   "losses of this size need senior review",
				},
			},
			CustomerClasses: map[string]string{"enterprise": "tier_2", "vip": "tier_3"},
		},
		{
			Tag:   "tier_2",
			Level: 2,
			Triggers: []TriggerRule{
				{
					Name:     "legal_process",
					Keywords: []string{"subpoena", "law enforcement"},
					Reason:   "legal process must be handled by the escalation desk",
					MinTier:  "tier_3",
				},
			},
			CustomerClasses: map[string]string{"vip": "tier_3"},
		},
		{Tag: "tier_3", Level: 3},
	})
	if err != nil {
		t.Fatalf("NewPolicy failed: %v", err)
	}
	return policy
}

func testRuleSet(t *testing.T) *extract.RuleSet {
	t.Helper()
	rules, err := extract.Compile([]extract.FieldSpec{
		{
			Name:          models.FieldName,
			Section:       models.SectionVictimInfo,
			CaseSensitive: true,
			Patterns:      []string{`(?i:my name is)\s+([A-Z][a-z]+(?:\s[A-Z][a-z]+)?)`},
		},
		{
			Name:     models.FieldEmail,
			Section:  models.SectionVictimInfo,
			Patterns: []string{`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`},
		},
		{
			Name:     models.FieldIncidentDate,
			Section:  models.SectionIncidentDetails,
			Patterns: []string{`\b(yesterday|today|last week|last night)\b`},
		},
		{
			Name:     models.FieldDescription,
			Section:  models.SectionIncidentDetails,
			Patterns: []string{`((?:someone|they|he|she)\s+(?:stole|drained|hacked)[^.!?]*)`},
		},
		{
			Name:     models.FieldAmountLost,
			Section:  models.SectionTransactionInfo,
			Patterns: []string{`\$[0-9][0-9,]*(?:\.[0-9]{2})?`},
		},
		{
			Name:          models.FieldWalletAddresses,
			Section:       models.SectionTransactionInfo,
			Multi:         true,
			CaseSensitive: true,
			Patterns:      []string{`\b0x[0-9a-fA-F]{40}\b`},
		},
	})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	return rules
}

func testEngine(t *testing.T) *Engine {
	t.Helper()
	rules := testRuleSet(t)
	classifier := classify.New(classify.Tables{
		Categories: []classify.CategoryRule{
			{Type: "press_inquiry", Keywords: []string{"press conference"}},
			{
				Type:         "crypto_theft",
				Keywords:     []string{"stolen", "drained", "crypto"},
				EntityFields: []string{models.FieldWalletAddresses},
				MinUrgency:   models.UrgencyHigh,
				Workflows:    []string{"open_theft_report"},
			},
		},
		Urgency: []classify.UrgencyRule{
			{Level: models.UrgencyCritical, Keywords: []string{"right now", "emergency"}},
		},
		Intents:  []classify.LabelRule{{Label: "report_incident", Keywords: []string{"stole", "stolen", "drained"}}},
		Emotions: []classify.LabelRule{{Label: "distressed", Keywords: []string{"panicking"}}},
	}, rules)
	return NewEngine(classifier, rules, testRegistry(t), testPolicy(t))
}

func scalar(text string) models.FieldValue {
	return models.ScalarValue(text)
}
