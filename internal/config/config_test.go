package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/BTreeMap/CaseFlow/internal/models"
)

func TestLoadEmbeddedDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got := len(cfg.Rules.Fields()); got != 11 {
		t.Errorf("extraction fields = %d, want 11", got)
	}

	wantFlows := map[string]bool{
		"crypto_theft":       true,
		"account_compromise": true,
		"billing_question":   true,
		"technical_support":  true,
		"general_inquiry":    true,
	}
	for _, flowType := range cfg.Flows.Types() {
		delete(wantFlows, flowType)
	}
	if len(wantFlows) != 0 {
		t.Errorf("missing flow definitions: %v", wantFlows)
	}

	tiers := cfg.Policy.Tiers()
	if len(tiers) != 3 {
		t.Fatalf("tiers = %d, want 3", len(tiers))
	}
	if cfg.Policy.LowestTier() != "tier_1" {
		t.Errorf("LowestTier = %q, want tier_1", cfg.Policy.LowestTier())
	}
}

func TestLoadedEngineProcessesTheftReport(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	engine := cfg.Engine()

	state := models.NewConversationState("r1")
	message := "Someone drained my wallet last night. My name is Jane Doe and you can reach me at jane.doe@example.com"
	result, err := engine.Process(state, message, "", "", nil)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if result.State.MessageType != "crypto_theft" {
		t.Errorf("MessageType = %q, want crypto_theft", result.State.MessageType)
	}
	if !result.Extracted.Has(models.FieldName) || !result.Extracted.Has(models.FieldEmail) {
		t.Errorf("Extracted = %v, want name and email found", result.Extracted)
	}
	if result.State.CurrentStep != 2 {
		t.Errorf("CurrentStep = %d, want advance past contact step", result.State.CurrentStep)
	}
	if result.Classification.UrgencyLevel != models.UrgencyHigh {
		t.Errorf("UrgencyLevel = %q, want category minimum high", result.Classification.UrgencyLevel)
	}
}

func TestLoadOverrideDirectory(t *testing.T) {
	dir := t.TempDir()
	override := `flows:
  - type: crypto_theft
    max_messages: 2
    steps:
      - purpose: "Single intake step"
        messages: ["Tell me everything."]
        collects: [name]
        triggers: ["@"]
`
	if err := os.WriteFile(filepath.Join(dir, FlowsFile), []byte(override), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	types := cfg.Flows.Types()
	if len(types) != 1 || types[0] != "crypto_theft" {
		t.Errorf("Types = %v, want only the overridden flow", types)
	}
	// Other tables still come from the embedded defaults.
	if len(cfg.Policy.Tiers()) != 3 {
		t.Errorf("tiers = %d, want defaults untouched", len(cfg.Policy.Tiers()))
	}
}

func TestLoadRejectsUnknownField(t *testing.T) {
	dir := t.TempDir()
	override := `flows:
  - type: broken
    steps:
      - purpose: "bad"
        collects: [favorite_color]
`
	if err := os.WriteFile(filepath.Join(dir, FlowsFile), []byte(override), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if _, err := Load(dir); err == nil {
		t.Error("expected validation error for unknown collected field")
	}
}

func TestLoadRejectsTriggerWithoutReason(t *testing.T) {
	dir := t.TempDir()
	override := `tiers:
  - tag: tier_1
    level: 1
    escalation_triggers:
      - name: silent_rule
        keywords: [anything]
`
	if err := os.WriteFile(filepath.Join(dir, TiersFile), []byte(override), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if _, err := Load(dir); err == nil {
		t.Error("expected validation error for trigger without a reason")
	}
}
