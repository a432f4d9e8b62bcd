package executor

import (
	"fmt"
	"sort"
	"strings"

	"github.com/datapilot-ai/agentcore/runtime/agent/workflow"
)

// Caps bounds the per-turn limits seeded into the system prompt. These mirror
// the METADATA_MAX_OBJECTS / METADATA_MAX_FIELDS_PER_OBJECT / QUERY_DEFAULT_LIMIT
// configuration keys.
type Caps struct {
	ObjectLimit int
	FieldLimit  int
	QueryLimit  int
	QueryMax    int
}

// SystemPrompt is a pure function of its inputs: given the same arguments it
// always renders the same string, so it is deterministic and snapshot-testable.
func SystemPrompt(confidenceThreshold float64, connectionID string, caps Caps, summary *workflow.Summary) string {
	var b strings.Builder
	b.WriteString(basePromptTemplate)
	fmt.Fprintf(&b, "\nConnection: %s\n", connectionID)
	fmt.Fprintf(&b, "Confidence threshold: %.2f\n", confidenceThreshold)
	fmt.Fprintf(&b, "Caps: at most %d objects per describe call, %d fields per object, queries default LIMIT %d and must never exceed LIMIT %d.\n",
		caps.ObjectLimit, caps.FieldLimit, caps.QueryLimit, caps.QueryMax)
	b.WriteString(renderSummary(summary))
	return b.String()
}

const basePromptTemplate = `You are a CRM data assistant. For every user request:
1. Classify intent into exactly one response_type: metadata_query, data_query, relationship_query, field_details_query, or clarification_needed.
2. Resolve object names with search_for_sobjects before calling get_sobject_metadata, get_sobject_relationships, get_field_details, or execute_soql_query. Call search once per batch of unknown terms, not once per term.
3. Never invent field or object names; only use names returned by a tool call in this conversation or already known from prior turns.
4. Every SOQL query you execute must include a LIMIT clause, defaulting to 5 and never exceeding 10.
5. Return exactly one complete JSON object matching the Structured Response schema as your final message. Do not wrap it in prose.`

// renderSummary folds the prior turn's ConversationSummary into prompt text.
// A nil summary (first turn) renders nothing beyond a blank line.
func renderSummary(summary *workflow.Summary) string {
	if summary == nil {
		return "\n"
	}
	var b strings.Builder
	b.WriteString("\nKnown from this conversation so far:\n")
	if len(summary.ObjectResolution.APINames) > 0 {
		fmt.Fprintf(&b, "- Resolved objects: %s\n", strings.Join(summary.ObjectResolution.APINames, ", "))
	}
	terms := make([]string, 0, len(summary.ObjectResolution.LabelMappings))
	for term := range summary.ObjectResolution.LabelMappings {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	for _, term := range terms {
		fmt.Fprintf(&b, "- %q refers to %s\n", term, summary.ObjectResolution.LabelMappings[term])
	}
	if len(summary.ObjectResolution.ChildRelationships) > 0 {
		fmt.Fprintf(&b, "- Known child relationships: %s\n", strings.Join(summary.ObjectResolution.ChildRelationships, ", "))
	}
	if len(summary.ObjectResolution.LookupRelationships) > 0 {
		fmt.Fprintf(&b, "- Known lookup relationships: %s\n", strings.Join(summary.ObjectResolution.LookupRelationships, ", "))
	}
	for _, fd := range summary.FieldDiscoveries {
		fmt.Fprintf(&b, "- %s.%s is %s (required=%t)\n", fd.Object, fd.Field, fd.Type, fd.Required)
	}
	if len(summary.TechnicalContext.SuccessfulQueries) > 0 {
		fmt.Fprintf(&b, "- Previously successful queries: %s\n", strings.Join(summary.TechnicalContext.SuccessfulQueries, " | "))
	}
	return b.String()
}
