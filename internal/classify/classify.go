// Package classify provides keyword and entity driven message classification
// for CaseFlow conversations.
//
// Classification is deliberately rule-order dependent: category, intent, and
// emotion tables are ordered lists evaluated top to bottom, and the first
// matching rule wins. That is the tie-break policy, not an artifact of
// container iteration.
package classify

import (
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/BTreeMap/CaseFlow/internal/extract"
	"github.com/BTreeMap/CaseFlow/internal/models"
)

// DefaultMessageType is assigned when no category rule matches and no prior
// type is available.
const DefaultMessageType = "general_inquiry"

// CategoryRule assigns a message type when any of its trigger keywords appear
// in the message or any of its entity fields are extracted from it.
type CategoryRule struct {
	Type           string
	Keywords       []string
	EntityFields   []string
	MinUrgency     models.UrgencyLevel
	Workflows      []string
	ResponseType   string
	ToneGuidance   string
	LengthGuidance string
}

// UrgencyRule raises urgency to at least Level when triggered.
type UrgencyRule struct {
	Level        models.UrgencyLevel
	Keywords     []string
	EntityFields []string
}

// LabelRule assigns a single label (intent or emotional state) when any of
// its keywords appear.
type LabelRule struct {
	Label    string
	Keywords []string
}

// Tables holds every rule table the classifier evaluates.
type Tables struct {
	Categories     []CategoryRule
	Urgency        []UrgencyRule
	Intents        []LabelRule
	Emotions       []LabelRule
	DefaultIntent  string
	DefaultEmotion string
}

// Classifier assigns message type, urgency, intent, and emotional state using
// immutable rule tables. It holds no per-conversation state.
type Classifier struct {
	tables Tables
	rules  *extract.RuleSet
}

// New creates a classifier over the given rule tables and extraction rules.
func New(tables Tables, rules *extract.RuleSet) *Classifier {
	if tables.DefaultIntent == "" {
		tables.DefaultIntent = "ask_question"
	}
	if tables.DefaultEmotion == "" {
		tables.DefaultEmotion = "neutral"
	}
	return &Classifier{tables: tables, rules: rules}
}

// Classify assigns a message type, urgency level, primary intent, and
// emotional state to the message. If priorType is supplied and the message
// does not strongly match a different category, the prior type is preserved so
// a one-word follow-up does not reset the conversation to the default type.
func (c *Classifier) Classify(message, priorType string) models.ClassificationResult {
	start := time.Now()
	lowered := strings.ToLower(message)
	entities := c.rules.Extract(message, c.rules.Fields())

	messageType, rule := c.categorize(lowered, entities, priorType)
	urgency := c.deriveUrgency(message, lowered, entities, rule)
	intent := firstLabel(c.tables.Intents, lowered, c.tables.DefaultIntent)
	emotion := firstLabel(c.tables.Emotions, lowered, c.tables.DefaultEmotion)

	result := models.ClassificationResult{
		MessageType:       messageType,
		UrgencyLevel:      urgency,
		PrimaryIntent:     intent,
		EmotionalState:    emotion,
		ExtractedEntities: entities,
		ResponseGuidance:  c.guidanceFor(rule),
		RequiredWorkflows: workflowsFor(rule),
		ProcessingTimeMs:  time.Since(start).Milliseconds(),
	}
	slog.Debug("Classifier classified message",
		"messageType", result.MessageType,
		"urgency", result.UrgencyLevel,
		"intent", result.PrimaryIntent,
		"emotion", result.EmotionalState,
		"entityCount", len(entities))
	return result
}

// categorize finds the first category rule triggered by the message. With a
// prior type set, only a trigger from a different category replaces it.
func (c *Classifier) categorize(lowered string, entities models.Extraction, priorType string) (string, *CategoryRule) {
	for i := range c.tables.Categories {
		rule := &c.tables.Categories[i]
		if rule.triggered(lowered, entities) {
			return rule.Type, rule
		}
	}
	if priorType != "" {
		return priorType, c.ruleFor(priorType)
	}
	return DefaultMessageType, c.ruleFor(DefaultMessageType)
}

// ruleFor looks up the category rule declared for a type, if any.
func (c *Classifier) ruleFor(messageType string) *CategoryRule {
	for i := range c.tables.Categories {
		if c.tables.Categories[i].Type == messageType {
			return &c.tables.Categories[i]
		}
	}
	return nil
}

func (r *CategoryRule) triggered(lowered string, entities models.Extraction) bool {
	for _, kw := range r.Keywords {
		if strings.Contains(lowered, strings.ToLower(kw)) {
			return true
		}
	}
	for _, field := range r.EntityFields {
		if entities.Has(field) {
			return true
		}
	}
	return false
}

// deriveUrgency applies the urgency rule set and never returns a level below
// the minimum urgency of the assigned category.
func (c *Classifier) deriveUrgency(message, lowered string, entities models.Extraction, rule *CategoryRule) models.UrgencyLevel {
	urgency := models.UrgencyLow
	if rule != nil && models.IsValidUrgencyLevel(rule.MinUrgency) {
		urgency = rule.MinUrgency
	}
	for _, ur := range c.tables.Urgency {
		if ur.triggered(lowered, entities) {
			urgency = models.MaxUrgency(urgency, ur.Level)
		}
	}
	if hasEmphasis(message) {
		urgency = models.MaxUrgency(urgency, models.UrgencyMedium)
	}
	return urgency
}

func (r *UrgencyRule) triggered(lowered string, entities models.Extraction) bool {
	for _, kw := range r.Keywords {
		if strings.Contains(lowered, strings.ToLower(kw)) {
			return true
		}
	}
	for _, field := range r.EntityFields {
		if entities.Has(field) {
			return true
		}
	}
	return false
}

// hasEmphasis detects repeated exclamation marks or mostly-caps messages.
// Runs on the original casing.
func hasEmphasis(message string) bool {
	return strings.Count(message, "!") >= 2 || capsRatio(message) > 0.6
}

// capsRatio returns the share of letters that are upper case.
func capsRatio(message string) float64 {
	var letters, upper int
	for _, r := range message {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	if letters < 12 {
		return 0
	}
	return float64(upper) / float64(letters)
}

// firstLabel returns the label of the first rule whose keywords match;
// declaration order breaks ties.
func firstLabel(rules []LabelRule, lowered, fallback string) string {
	for _, rule := range rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(lowered, strings.ToLower(kw)) {
				return rule.Label
			}
		}
	}
	return fallback
}

func (c *Classifier) guidanceFor(rule *CategoryRule) models.ResponseGuidance {
	guidance := models.ResponseGuidance{
		ResponseType:   "informational",
		ToneGuidance:   "professional",
		LengthGuidance: "moderate",
	}
	if rule == nil {
		return guidance
	}
	if rule.ResponseType != "" {
		guidance.ResponseType = rule.ResponseType
	}
	if rule.ToneGuidance != "" {
		guidance.ToneGuidance = rule.ToneGuidance
	}
	if rule.LengthGuidance != "" {
		guidance.LengthGuidance = rule.LengthGuidance
	}
	return guidance
}

func workflowsFor(rule *CategoryRule) []string {
	if rule == nil || len(rule.Workflows) == 0 {
		return nil
	}
	workflows := make([]string, len(rule.Workflows))
	copy(workflows, rule.Workflows)
	return workflows
}
