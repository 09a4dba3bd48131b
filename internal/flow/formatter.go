// Package flow: dual-purpose response formatting.
package flow

import (
	"encoding/json"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/BTreeMap/CaseFlow/internal/models"
)

// fencedPayloadPattern matches a fenced block tagged as a structured JSON payload.
var fencedPayloadPattern = regexp.MustCompile("(?s)```json\\s*(.*?)```")

// Format renders a raw reply into display text, an optional structured
// payload, and system metadata.
//
// If the reply contains a fenced ```json block, it is parsed as the structured
// payload and display text is derived from its human-facing fields. A
// malformed payload degrades to plain-text rendering; it is never an error.
// An empty reply with flow context synthesizes display text from the current
// step's prompts, so a response exists even without an LLM completion.
// Metadata is always populated, defaulting to 0/0/"unknown" without flow context.
func Format(rawReply string, classification *models.ClassificationResult, def *Definition, currentStep int) models.RenderedResponse {
	response := models.RenderedResponse{Metadata: metadataFor(classification, def, currentStep)}

	if rawReply == "" && def != nil {
		response.DisplayText = strings.Join(def.Step(currentStep).Messages, "\n")
		return response
	}

	match := fencedPayloadPattern.FindStringSubmatch(rawReply)
	if match == nil {
		response.DisplayText = rawReply
		return response
	}

	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(match[1]), &payload); err != nil {
		slog.Warn("Formatter could not parse structured payload, falling back to plain text", "error", err)
		response.DisplayText = rawReply
		return response
	}

	response.StructuredData = payload
	response.DisplayText = renderPayload(payload)
	if response.DisplayText == "" {
		// No human-facing fields in the payload; show whatever prose
		// surrounded the fence, or reissue the step prompts.
		if outside := strings.TrimSpace(fencedPayloadPattern.ReplaceAllString(rawReply, "")); outside != "" {
			response.DisplayText = outside
		} else if def != nil {
			response.DisplayText = strings.Join(def.Step(currentStep).Messages, "\n")
		}
	}
	return response
}

// renderPayload concatenates the payload's human-facing fields: greeting
// first, titled sections in key order, realistic_guidance last.
func renderPayload(payload map[string]interface{}) string {
	var parts []string
	if greeting, ok := payload["greeting"].(string); ok && greeting != "" {
		parts = append(parts, greeting)
	}

	keys := make([]string, 0, len(payload))
	for key := range payload {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if key == "greeting" || key == "realistic_guidance" {
			continue
		}
		section, ok := payload[key].(map[string]interface{})
		if !ok {
			continue
		}
		title, _ := section["title"].(string)
		content, _ := section["content"].(string)
		switch {
		case title != "" && content != "":
			parts = append(parts, title+"\n"+content)
		case content != "":
			parts = append(parts, content)
		case title != "":
			parts = append(parts, title)
		}
	}

	if guidance, ok := payload["realistic_guidance"].(string); ok && guidance != "" {
		parts = append(parts, guidance)
	}
	return strings.Join(parts, "\n\n")
}

func metadataFor(classification *models.ClassificationResult, def *Definition, currentStep int) models.ResponseMetadata {
	if def == nil {
		metadata := models.UnknownFlowMetadata()
		if classification != nil && classification.MessageType != "" {
			metadata.FlowType = classification.MessageType
		}
		return metadata
	}
	return models.ResponseMetadata{
		StepNumber: def.Step(currentStep).Index,
		TotalSteps: len(def.Steps),
		FlowType:   def.Type,
	}
}
