package workflow

// ResponseKind enumerates the five shapes a StructuredResponse can take.
// The LLM's final message must declare one of these as response_type.
type ResponseKind string

const (
	KindMetadataQuery      ResponseKind = "metadata_query"
	KindDataQuery          ResponseKind = "data_query"
	KindRelationshipQuery  ResponseKind = "relationship_query"
	KindFieldDetailsQuery  ResponseKind = "field_details_query"
	KindClarificationNeeded ResponseKind = "clarification_needed"
)

// ConfidenceLabel enumerates the coarse confidence bands derived from a
// numeric confidence score and the configured threshold.
type ConfidenceLabel string

const (
	ConfidenceHigh    ConfidenceLabel = "high"
	ConfidenceMedium  ConfidenceLabel = "medium"
	ConfidenceLow     ConfidenceLabel = "low"
	ConfidenceUnknown ConfidenceLabel = "unknown"
)

// Label implements the canonical confidence_label mapping. This is the single
// place that computation happens; callers must not recompute it inline.
func Label(confidence *float64, threshold float64) ConfidenceLabel {
	if confidence == nil {
		return ConfidenceUnknown
	}
	c := *confidence
	switch {
	case c >= threshold:
		return ConfidenceHigh
	case c >= threshold-0.2:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

type (
	// StructuredResponse is the final-answer contract the LLM must emit as
	// its terminal message for a turn.
	StructuredResponse struct {
		ResponseType      ResponseKind    `json:"response_type"`
		Confidence        *float64        `json:"confidence"`
		ConfidenceLabel   ConfidenceLabel `json:"confidence_label"`
		IntentUnderstood  string          `json:"intent_understood"`
		ActionsTaken      []string        `json:"actions_taken"`
		DataSummary       map[string]any  `json:"data_summary"`
		Suggestions       []string        `json:"suggestions"`
		Metadata          map[string]any  `json:"metadata"`
		CandidateObjects  []string        `json:"candidate_objects,omitempty"`
		Clarification     *Clarification  `json:"clarification,omitempty"`
		Error             *string         `json:"error,omitempty"`
	}

	// Clarification carries the out-of-scope / ambiguous-request follow-up
	// question attached to a clarification_needed response.
	Clarification struct {
		Type           string   `json:"type"`
		Question       string   `json:"question"`
		Options        []string `json:"options,omitempty"`
		DetectedObject string   `json:"detected_object,omitempty"`
		Confidence     *float64 `json:"confidence,omitempty"`
	}

	// Summary is the compact, structured carrier of inter-turn memory. It is
	// the only state that survives from one turn's StructuredResponse into
	// the next turn's system prompt.
	Summary struct {
		ObjectResolution  ObjectResolution  `json:"object_resolution"`
		FieldDiscoveries  []FieldDiscovery  `json:"field_discoveries"`
		TechnicalContext  TechnicalContext  `json:"technical_context"`
	}

	// ObjectResolution accumulates what the agent has learned about object
	// identity and relationships across the conversation.
	ObjectResolution struct {
		APINames            []string          `json:"api_names"`
		LabelMappings       map[string]string `json:"label_mappings"`
		ChildRelationships  []string          `json:"child_relationships"`
		LookupRelationships []string          `json:"lookup_relationships"`
	}

	// FieldDiscovery records one field the agent has resolved during the
	// conversation, so later turns do not need to re-describe the object.
	FieldDiscovery struct {
		Object   string `json:"object"`
		Field    string `json:"field"`
		Type     string `json:"type"`
		Required bool   `json:"required"`
	}

	// TechnicalContext tracks low-level facts worth reinjecting verbatim.
	TechnicalContext struct {
		SuccessfulQueries []string `json:"successful_queries"`
	}
)
