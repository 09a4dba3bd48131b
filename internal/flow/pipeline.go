// Package flow: intake pipeline orchestration.
package flow

import (
	"fmt"
	"log/slog"

	"github.com/BTreeMap/CaseFlow/internal/classify"
	"github.com/BTreeMap/CaseFlow/internal/extract"
	"github.com/BTreeMap/CaseFlow/internal/models"
)

// Engine wires the intake stages together: classify, extract, merge, advance,
// decide, format. It is stateless between calls; every invocation operates on
// the caller-supplied conversation state and returns the updated copy.
type Engine struct {
	classifier *classify.Classifier
	rules      *extract.RuleSet
	flows      *Registry
	policy     *Policy
}

// NewEngine creates an intake engine over immutable rule tables.
func NewEngine(classifier *classify.Classifier, rules *extract.RuleSet, flows *Registry, policy *Policy) *Engine {
	return &Engine{classifier: classifier, rules: rules, flows: flows, policy: policy}
}

// Flows exposes the flow registry for config-serving callers.
func (e *Engine) Flows() *Registry {
	return e.flows
}

// Policy exposes the escalation policy for config-serving callers.
func (e *Engine) Policy() *Policy {
	return e.policy
}

// Result carries everything one pipeline pass produced.
type Result struct {
	State          models.ConversationState
	Classification models.ClassificationResult
	Extracted      models.Extraction
	Completion     models.CompletionStatus
	Decision       models.EscalationDecision
	Response       models.RenderedResponse
	NextMessages   []string
	ShouldEscalate bool
}

// Process runs one user message through the full pipeline. rawReply is the
// prose produced by the external completion service (may be empty, in which
// case the formatter falls back to the active step's prompts). tierTag selects
// the escalation policy entry point; empty means the lowest tier. The only
// error conditions are unknown flow or tier configuration; absence of data is
// normal and never fails.
func (e *Engine) Process(state models.ConversationState, message, rawReply, tierTag string, context map[string]string) (Result, error) {
	classification := e.classifier.Classify(message, state.MessageType)
	state.MessageType = classification.MessageType

	def, err := e.flows.Get(state.MessageType)
	if err != nil {
		return Result{}, fmt.Errorf("pipeline cannot process message: %w", err)
	}

	// Extraction is restricted to the fields this flow collects so unrelated
	// patterns cannot produce false positives.
	extracted := e.rules.Extract(message, def.RequiredFields())
	Merge(&state, extracted)
	Advance(def, &state, message)
	completion := Completion(&state, def)

	if tierTag == "" {
		tierTag = e.policy.LowestTier()
	}
	decision, err := e.policy.Decide(tierTag, message, context)
	if err != nil {
		return Result{}, fmt.Errorf("pipeline cannot evaluate escalation: %w", err)
	}
	decision = e.resolveDecision(decision, completion, def, &state, tierTag)

	response := Format(rawReply, &classification, def, state.CurrentStep)

	result := Result{
		State:          state,
		Classification: classification,
		Extracted:      extracted,
		Completion:     completion,
		Decision:       decision,
		Response:       response,
		NextMessages:   def.Step(state.CurrentStep).Messages,
		ShouldEscalate: decision.Escalate,
	}
	slog.Info("Pipeline processed message",
		"reportID", state.ReportID,
		"messageType", state.MessageType,
		"step", state.CurrentStep,
		"messageCount", state.MessageCount,
		"completion", completion.CompletionPercentage,
		"shouldEscalate", result.ShouldEscalate)
	return result, nil
}

// resolveDecision layers the completion-triggered escalation conditions on
// top of the policy decision. Complexity rules win because their reasons are
// the most specific; completeness, budget exhaustion, and a flagged terminal
// step each hand off at the current tier.
func (e *Engine) resolveDecision(decision models.EscalationDecision, completion models.CompletionStatus, def *Definition, state *models.ConversationState, tierTag string) models.EscalationDecision {
	if decision.Escalate {
		return decision
	}
	switch {
	case completion.Status == models.ReportStatusComplete:
		return models.EscalationDecision{
			Escalate:        true,
			Reason:          "report complete and ready for human review",
			RecommendedTier: tierTag,
		}
	case state.MessageCount >= def.Budget():
		return models.EscalationDecision{
			Escalate:        true,
			Reason:          fmt.Sprintf("message budget of %d exhausted, handing off partial report", def.Budget()),
			RecommendedTier: tierTag,
		}
	case state.CurrentStep == len(def.Steps) && def.Step(state.CurrentStep).Escalation:
		return models.EscalationDecision{
			Escalate:        true,
			Reason:          fmt.Sprintf("reached final step of %s flow", def.Type),
			RecommendedTier: tierTag,
		}
	}
	return decision
}
