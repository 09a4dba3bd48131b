// Package flow: conversation step state machine.
package flow

import (
	"log/slog"
	"strings"

	"github.com/BTreeMap/CaseFlow/internal/models"
)

// Advance moves the conversation forward by at most one step. The current
// step's trigger phrases are matched case-insensitively against the message;
// if one is found, CurrentStep increments, clamped at the last step. No
// trigger means the step is unchanged and its prompts are reissued, which is
// intentional: an off-topic message does not advance the flow. Steps are never
// skipped and CurrentStep never moves backward.
func Advance(def *Definition, state *models.ConversationState, message string) {
	if state.CurrentStep < 1 {
		state.CurrentStep = 1
	}
	if state.CurrentStep >= len(def.Steps) {
		state.CurrentStep = len(def.Steps)
		return
	}
	step := def.Step(state.CurrentStep)
	lowered := strings.ToLower(message)
	for _, trigger := range step.Triggers {
		if strings.Contains(lowered, strings.ToLower(trigger)) {
			state.CurrentStep++
			slog.Debug("Flow advanced step",
				"flowType", def.Type,
				"reportID", state.ReportID,
				"step", state.CurrentStep,
				"trigger", trigger)
			return
		}
	}
	slog.Debug("Flow step unchanged, no trigger matched",
		"flowType", def.Type,
		"reportID", state.ReportID,
		"step", state.CurrentStep)
}
