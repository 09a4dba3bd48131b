// Package flow: report completion tracking.
package flow

import (
	"log/slog"
	"math"
	"sort"

	"github.com/BTreeMap/CaseFlow/internal/models"
)

// Merge writes extracted field values into the sections owning them and
// increments the message counter. Existing values are overwritten: later, more
// specific answers supersede earlier partial ones. Merging never removes data,
// so completion percentage can only grow.
func Merge(state *models.ConversationState, extracted models.Extraction) {
	fields := make([]string, 0, len(extracted))
	for field := range extracted {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	merged := 0
	for _, field := range fields {
		if state.Sections.SetField(field, extracted[field]) {
			merged++
		} else if !models.KnownField(field) {
			slog.Warn("Tracker merge skipped unknown field", "reportID", state.ReportID, "field", field)
		}
	}
	state.MessageCount++
	slog.Debug("Tracker merged extraction",
		"reportID", state.ReportID,
		"mergedFields", merged,
		"messageCount", state.MessageCount)
}

// Completion computes the completion status of a report against its flow.
// The denominator is flow-wide: every field any step collects counts as
// required from the first message, whether or not its step has been reached.
// ReadyForHumanReview is true iff the report is complete or the message budget
// is exhausted, so a conversation that runs out of messages is still handed
// off with whatever was gathered.
func Completion(state *models.ConversationState, def *Definition) models.CompletionStatus {
	required := def.RequiredFields()
	var missing []string
	populated := 0
	for _, field := range required {
		if state.Sections.FieldPopulated(field) {
			populated++
		} else {
			missing = append(missing, field)
		}
	}

	percentage := 1.0
	if len(required) > 0 {
		// Floored to three decimal places for display stability.
		percentage = math.Floor(float64(populated)/float64(len(required))*1000) / 1000
	}

	status := models.ReportStatusIncomplete
	switch {
	case len(missing) == 0:
		status = models.ReportStatusComplete
		percentage = 1.0
	case percentage >= 0.5:
		status = models.ReportStatusPartial
	}

	return models.CompletionStatus{
		Status:               status,
		CompletionPercentage: percentage,
		MissingFields:        missing,
		ReadyForHumanReview:  status == models.ReportStatusComplete || state.MessageCount >= def.Budget(),
	}
}
