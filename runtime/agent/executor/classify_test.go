package executor_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/datapilot-ai/agentcore/runtime/agent/executor"
	"github.com/datapilot-ai/agentcore/runtime/agent/model"
)

// classifyLLMError and errorMessage are unexported; drive them indirectly
// through Executor.Run in executor_test.go, and exercise model.ProviderError
// construction here to pin the kind/code → class mapping this package relies on.
func TestProviderErrorKindRoundTrips(t *testing.T) {
	err := model.NewProviderError("openai", "complete", 429, model.ProviderErrorKindRateLimited, "insufficient_quota", "no credits", "req-1", false, nil)
	pe, ok := model.AsProviderError(err)
	assert.True(t, ok)
	assert.Equal(t, model.ProviderErrorKindRateLimited, pe.Kind())
	assert.Equal(t, "insufficient_quota", pe.Code())
}

func TestAsProviderErrorFalseForPlainError(t *testing.T) {
	_, ok := model.AsProviderError(errors.New("boom"))
	assert.False(t, ok)
}
