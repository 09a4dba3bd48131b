// Package flow implements the conversation intake and escalation engine for
// CaseFlow: step state machine, report completion tracking, escalation policy,
// and response formatting.
//
// All components are pure functions of their inputs plus the caller-owned
// conversation state threaded through them. Rule tables are immutable after
// construction, so concurrent conversations need no coordination.
package flow

import (
	"fmt"

	"github.com/BTreeMap/CaseFlow/internal/models"
)

// DefaultMaxMessages bounds a conversation when a flow does not declare its own budget.
const DefaultMaxMessages = 10

// Step is one entry in a flow's ordered step sequence.
type Step struct {
	Index      int      `json:"index"`
	Purpose    string   `json:"purpose"`
	Messages   []string `json:"messages,omitempty"` // prompts shown while this step is active
	Collects   []string `json:"collects,omitempty"` // fields this step gathers
	Triggers   []string `json:"triggers,omitempty"` // phrases that advance past this step
	Escalation bool     `json:"escalation,omitempty"` // terminal steps may flag a handoff
}

// Definition is the immutable, process-wide flow definition for one message type.
type Definition struct {
	Type        string `json:"type"`
	MaxMessages int    `json:"max_messages,omitempty"`
	Steps       []Step `json:"steps"`

	requiredFields []string
}

// Validate checks structural invariants: at least one step, contiguous 1-based
// indices, and only known report fields in Collects.
func (d *Definition) Validate() error {
	if d.Type == "" {
		return fmt.Errorf("flow definition with empty type")
	}
	if len(d.Steps) == 0 {
		return fmt.Errorf("flow %s has no steps", d.Type)
	}
	for i, step := range d.Steps {
		if step.Index != i+1 {
			return fmt.Errorf("flow %s step %d has index %d, want %d", d.Type, i, step.Index, i+1)
		}
		for _, field := range step.Collects {
			if !models.KnownField(field) {
				return fmt.Errorf("flow %s step %d collects unknown field %s", d.Type, step.Index, field)
			}
		}
	}
	return nil
}

// RequiredFields returns the union of every step's Collects in step order,
// deduplicated. The flow-wide field set is the completion denominator.
func (d *Definition) RequiredFields() []string {
	if d.requiredFields != nil {
		return d.requiredFields
	}
	seen := make(map[string]bool)
	var fields []string
	for _, step := range d.Steps {
		for _, field := range step.Collects {
			if seen[field] {
				continue
			}
			seen[field] = true
			fields = append(fields, field)
		}
	}
	return fields
}

// Step returns the step at the given 1-based index, clamped into range.
func (d *Definition) Step(index int) Step {
	if index < 1 {
		index = 1
	}
	if index > len(d.Steps) {
		index = len(d.Steps)
	}
	return d.Steps[index-1]
}

// Budget returns the flow's message budget, falling back to the default.
func (d *Definition) Budget() int {
	if d.MaxMessages > 0 {
		return d.MaxMessages
	}
	return DefaultMaxMessages
}

// Registry holds every flow definition, keyed by message type. It is built
// once at process start and read-only thereafter.
type Registry struct {
	flows map[string]*Definition
	order []string
}

// NewRegistry validates and indexes the given definitions. RequiredFields is
// precomputed so later lookups never mutate the definitions.
func NewRegistry(defs []*Definition) (*Registry, error) {
	r := &Registry{flows: make(map[string]*Definition, len(defs))}
	for _, def := range defs {
		if err := def.Validate(); err != nil {
			return nil, err
		}
		if _, exists := r.flows[def.Type]; exists {
			return nil, fmt.Errorf("duplicate flow definition for type %s", def.Type)
		}
		def.requiredFields = def.RequiredFields()
		r.flows[def.Type] = def
		r.order = append(r.order, def.Type)
	}
	return r, nil
}

// Get returns the definition for a message type. An unknown type is a
// configuration error surfaced to the caller, never silently defaulted.
func (r *Registry) Get(messageType string) (*Definition, error) {
	def, ok := r.flows[messageType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrUnknownFlowType, messageType)
	}
	return def, nil
}

// Types returns every registered message type in declaration order.
func (r *Registry) Types() []string {
	types := make([]string, len(r.order))
	copy(types, r.order)
	return types
}

// StepSummary describes one step for diagnostics.
type StepSummary struct {
	Step        int    `json:"step"`
	Title       string `json:"title"`
	ActionCount int    `json:"action_count"`
}

// Summary describes a whole flow for diagnostics.
type Summary struct {
	Type       string        `json:"type"`
	TotalSteps int           `json:"total_steps"`
	Steps      []StepSummary `json:"steps"`
}

// Summarize produces a read-only overview of the flow.
func Summarize(d *Definition) Summary {
	summary := Summary{Type: d.Type, TotalSteps: len(d.Steps)}
	for _, step := range d.Steps {
		summary.Steps = append(summary.Steps, StepSummary{
			Step:        step.Index,
			Title:       step.Purpose,
			ActionCount: len(step.Messages) + len(step.Collects),
		})
	}
	return summary
}
