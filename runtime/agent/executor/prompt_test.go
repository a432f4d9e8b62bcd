package executor_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/datapilot-ai/agentcore/runtime/agent/executor"
	"github.com/datapilot-ai/agentcore/runtime/agent/workflow"
)

func TestSystemPromptIsDeterministic(t *testing.T) {
	caps := executor.Caps{ObjectLimit: 5, FieldLimit: 50, QueryLimit: 5, QueryMax: 10}
	a := executor.SystemPrompt(0.7, "conn-1", caps, nil)
	b := executor.SystemPrompt(0.7, "conn-1", caps, nil)
	assert.Equal(t, a, b)
	assert.Contains(t, a, "conn-1")
	assert.Contains(t, a, "LIMIT 5")
}

func TestSystemPromptFoldsSummaryDeterministically(t *testing.T) {
	summary := &workflow.Summary{
		ObjectResolution: workflow.ObjectResolution{
			APINames: []string{"Account", "Contact"},
			LabelMappings: map[string]string{
				"customers": "Account",
				"people":    "Contact",
			},
		},
		FieldDiscoveries: []workflow.FieldDiscovery{
			{Object: "Account", Field: "Name", Type: "string", Required: true},
		},
	}
	caps := executor.Caps{ObjectLimit: 5, FieldLimit: 50, QueryLimit: 5, QueryMax: 10}
	a := executor.SystemPrompt(0.7, "conn-1", caps, summary)
	b := executor.SystemPrompt(0.7, "conn-1", caps, summary)
	assert.Equal(t, a, b)
	assert.Contains(t, a, "Account, Contact")
	assert.Contains(t, a, `"customers" refers to Account`)
	assert.Contains(t, a, "Account.Name is string")
}
