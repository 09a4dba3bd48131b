// Package flow: tiered escalation policy.
package flow

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/BTreeMap/CaseFlow/internal/models"
)

// ContextKeyCustomerClass is the caller-supplied context key carrying the
// customer class (e.g. "enterprise", "vip") for class-based escalation.
const ContextKeyCustomerClass = "customer_class"

// TriggerRule detects work beyond a tier's capability. Reason is the
// human-readable explanation recorded on the decision so it stays auditable;
// MinTier is the smallest tier whose capability set is not violated.
type TriggerRule struct {
	Name     string   `json:"name"`
	Keywords []string `json:"keywords"`
	Reason   string   `json:"reason"`
	MinTier  string   `json:"min_tier,omitempty"`
}

// matches reports whether any of the rule's keywords appear in the message.
func (r *TriggerRule) matches(lowered string) bool {
	for _, kw := range r.Keywords {
		if strings.Contains(lowered, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// Tier declares an escalation level: its authorized scope and the conditions
// that exceed it. Higher tiers carry progressively smaller trigger sets.
type Tier struct {
	Tag              string        `json:"tag"`
	Level            int           `json:"level"`
	Responsibilities []string      `json:"responsibilities,omitempty"`
	Tools            []string      `json:"tools,omitempty"`
	Triggers         []TriggerRule `json:"triggers,omitempty"`
	// CustomerClasses maps a customer class to the minimum tier that may
	// serve it. Classes absent from the map are served by any tier.
	CustomerClasses map[string]string `json:"customer_classes,omitempty"`
	QualityCriteria []string          `json:"quality_criteria,omitempty"`
}

// Policy is the immutable escalation rule table across all tiers.
type Policy struct {
	tiers []Tier
	byTag map[string]*Tier
}

// NewPolicy validates and indexes tier definitions. Tiers must be declared in
// ascending level order with unique tags.
func NewPolicy(tiers []Tier) (*Policy, error) {
	if len(tiers) == 0 {
		return nil, fmt.Errorf("escalation policy requires at least one tier")
	}
	p := &Policy{tiers: tiers, byTag: make(map[string]*Tier, len(tiers))}
	prevLevel := 0
	for i := range tiers {
		tier := &p.tiers[i]
		if tier.Tag == "" {
			return nil, fmt.Errorf("tier %d has empty tag", i)
		}
		if _, exists := p.byTag[tier.Tag]; exists {
			return nil, fmt.Errorf("duplicate tier tag %s", tier.Tag)
		}
		if tier.Level <= prevLevel {
			return nil, fmt.Errorf("tier %s level %d not ascending", tier.Tag, tier.Level)
		}
		prevLevel = tier.Level
		p.byTag[tier.Tag] = tier
	}
	return p, nil
}

// Tiers returns every tier in ascending level order.
func (p *Policy) Tiers() []Tier {
	tiers := make([]Tier, len(p.tiers))
	copy(tiers, p.tiers)
	return tiers
}

// Tier returns the tier definition for a tag.
func (p *Policy) Tier(tag string) (*Tier, error) {
	tier, ok := p.byTag[tag]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrUnknownTier, tag)
	}
	return tier, nil
}

// LowestTier returns the tag of the lowest tier, the default entry point.
func (p *Policy) LowestTier() string {
	return p.tiers[0].Tag
}

// Decide determines whether the current tier must escalate the message, and
// if so to which tier and why. Reason always comes from the specific rule that
// fired, never a generic placeholder. An unknown tier tag is a configuration
// error surfaced to the caller.
func (p *Policy) Decide(tierTag, message string, context map[string]string) (models.EscalationDecision, error) {
	tier, err := p.Tier(tierTag)
	if err != nil {
		return models.EscalationDecision{}, err
	}

	lowered := strings.ToLower(message)
	for _, rule := range tier.Triggers {
		if !rule.matches(lowered) {
			continue
		}
		decision := models.EscalationDecision{
			Escalate:        true,
			Reason:          rule.Reason,
			RecommendedTier: p.recommendAbove(tier, rule.MinTier),
		}
		slog.Info("Escalation triggered by complexity rule",
			"tier", tierTag, "rule", rule.Name, "recommendedTier", decision.RecommendedTier)
		return decision, nil
	}

	if class, ok := context[ContextKeyCustomerClass]; ok && class != "" {
		if minTag, restricted := tier.CustomerClasses[strings.ToLower(class)]; restricted {
			if required, err := p.Tier(minTag); err == nil && required.Level > tier.Level {
				decision := models.EscalationDecision{
					Escalate:        true,
					Reason:          fmt.Sprintf("%s customers require %s support", class, minTag),
					RecommendedTier: minTag,
				}
				slog.Info("Escalation triggered by customer class",
					"tier", tierTag, "class", class, "recommendedTier", minTag)
				return decision, nil
			}
		}
	}

	return models.EscalationDecision{Escalate: false}, nil
}

// recommendAbove resolves the recommended tier for a fired rule: the rule's
// declared minimum sufficient tier if it outranks the current one, otherwise
// the next tier up. If no tier is sufficient, the highest defined tier is
// recommended.
func (p *Policy) recommendAbove(current *Tier, minTag string) string {
	if minTag != "" {
		if min, err := p.Tier(minTag); err == nil && min.Level > current.Level {
			return min.Tag
		}
	}
	for i := range p.tiers {
		if p.tiers[i].Level > current.Level {
			return p.tiers[i].Tag
		}
	}
	return p.tiers[len(p.tiers)-1].Tag
}
