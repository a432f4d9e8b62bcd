package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datapilot-ai/agentcore/internal/config"
)

func TestLoadAppliesDefaults(t *testing.T) {
	c, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 8, c.ReactMaxSteps)
	assert.Equal(t, config.LLMProviderOpenAI, c.LLMProvider)
	assert.Equal(t, 5, c.QueryDefaultLimit)
	assert.Equal(t, 10, c.QueryMaxLimit)
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("AI_REACT_MAX_STEPS", "12")
	t.Setenv("LLM_PROVIDER", "GROQ")
	t.Setenv("LLM_TEMPERATURE", "0.5")
	t.Setenv("LANGFUSE_ENABLE_TRACING", "true")

	c, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 12, c.ReactMaxSteps)
	assert.Equal(t, "groq", c.LLMProvider)
	assert.Equal(t, 0.5, c.LLMTemperature)
	assert.True(t, c.LangfuseEnableTracing)
}

func TestLoadAcceptsAnthropicProvider(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "anthropic")
	c, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, config.LLMProviderAnthropic, c.LLMProvider)
}

func TestLoadRejectsUnsupportedProvider(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "bedrock")
	_, err := config.Load()
	assert.Error(t, err)
}

func TestLoadRejectsUnparseableInt(t *testing.T) {
	t.Setenv("AI_REACT_MAX_STEPS", "not-a-number")
	_, err := config.Load()
	assert.Error(t, err)
}
