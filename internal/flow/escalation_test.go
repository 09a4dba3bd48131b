package flow

import (
	"errors"
	"strings"
	"testing"

	"github.com/BTreeMap/CaseFlow/internal/models"
)

func TestDecideComplexityTriggerUsesRuleReason(t *testing.T) {
	policy := testPolicy(t)
	decision, err := policy.Decide("tier_1", "our OAuth webhook integration stopped syncing", nil)
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if !decision.Escalate {
		t.Fatal("expected escalation for integration complexity")
	}
	if !strings.Contains(decision.Reason, "OAuth") {
		t.Errorf("Reason = %q, want the firing rule's explanation", decision.Reason)
	}
	if decision.RecommendedTier != "tier_2" {
		t.Errorf("RecommendedTier = %q, want tier_2", decision.RecommendedTier)
	}
}

func TestDecideMinTierSkipsIntermediate(t *testing.T) {
	policy := testPolicy(t)
	decision, err := policy.Decide("tier_1", "we received a subpoena about this account", nil)
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if !decision.Escalate || decision.RecommendedTier != "tier_3" {
		t.Errorf("decision = %+v, want escalation straight to tier_3", decision)
	}
}

func TestDecideRuleWithoutMinTierRecommendsNextUp(t *testing.T) {
	policy := testPolicy(t)
	decision, err := policy.Decide("tier_1", "the loss runs to six figures", nil)
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if !decision.Escalate || decision.RecommendedTier != "tier_2" {
		t.Errorf("decision = %+v, want next tier up", decision)
	}
}

func TestDecideNoTriggerNoEscalation(t *testing.T) {
	policy := testPolicy(t)
	decision, err := policy.Decide("tier_1", "I forgot my password", nil)
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if decision.Escalate {
		t.Errorf("decision = %+v, want no escalation", decision)
	}
	if decision.Reason != "" {
		t.Errorf("Reason = %q, want empty for non-escalation", decision.Reason)
	}
}

func TestDecideCustomerClassEscalates(t *testing.T) {
	policy := testPolicy(t)
	context := map[string]string{ContextKeyCustomerClass: "VIP"}
	decision, err := policy.Decide("tier_1", "please reset my dashboard", context)
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if !decision.Escalate || decision.RecommendedTier != "tier_3" {
		t.Errorf("decision = %+v, want class-based escalation to tier_3", decision)
	}
	if !strings.Contains(decision.Reason, "VIP") {
		t.Errorf("Reason = %q, want the customer class named", decision.Reason)
	}
}

func TestDecideCustomerClassSatisfiedAtSufficientTier(t *testing.T) {
	policy := testPolicy(t)
	context := map[string]string{ContextKeyCustomerClass: "enterprise"}
	decision, err := policy.Decide("tier_2", "please reset my dashboard", context)
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if decision.Escalate {
		t.Errorf("decision = %+v, tier_2 already serves enterprise customers", decision)
	}
}

func TestDecideUnknownTier(t *testing.T) {
	policy := testPolicy(t)
	_, err := policy.Decide("tier_9", "anything", nil)
	if !errors.Is(err, models.ErrUnknownTier) {
		t.Errorf("err = %v, want ErrUnknownTier", err)
	}
}

func TestNewPolicyRejectsNonAscendingLevels(t *testing.T) {
	_, err := NewPolicy([]Tier{
		{Tag: "tier_1", Level: 2},
		{Tag: "tier_2", Level: 1},
	})
	if err == nil {
		t.Error("expected error for non-ascending tier levels")
	}
}

func TestNewPolicyRejectsDuplicateTags(t *testing.T) {
	_, err := NewPolicy([]Tier{
		{Tag: "tier_1", Level: 1},
		{Tag: "tier_1", Level: 2},
	})
	if err == nil {
		t.Error("expected error for duplicate tier tags")
	}
}

func TestLowestTier(t *testing.T) {
	policy := testPolicy(t)
	if got := policy.LowestTier(); got != "tier_1" {
		t.Errorf("LowestTier = %q, want tier_1", got)
	}
}
