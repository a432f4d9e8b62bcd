package executor

import (
	"strings"

	"github.com/datapilot-ai/agentcore/runtime/agent/model"
)

// ErrorClass is the coarse LLM provider failure taxonomy surfaced to clients.
type ErrorClass string

const (
	ErrorAPIKeyInvalid ErrorClass = "api_key_invalid"
	ErrorRateLimit     ErrorClass = "rate_limit"
	ErrorQuota         ErrorClass = "quota"
	ErrorOther         ErrorClass = "other"
)

// classifyLLMError maps an error returned from model.Client into the four
// user-facing classes. Network/transient errors that never surfaced as a
// model.ProviderError fall through to ErrorOther, per the "network transient
// errors bubble up as other" rule.
func classifyLLMError(err error) ErrorClass {
	pe, ok := model.AsProviderError(err)
	if !ok {
		return ErrorOther
	}
	switch pe.Kind() {
	case model.ProviderErrorKindAuth:
		return ErrorAPIKeyInvalid
	case model.ProviderErrorKindRateLimited:
		if isQuotaCode(pe.Code()) || isQuotaCode(pe.Message()) {
			return ErrorQuota
		}
		return ErrorRateLimit
	default:
		return ErrorOther
	}
}

func isQuotaCode(s string) bool {
	s = strings.ToLower(s)
	return strings.Contains(s, "quota") || strings.Contains(s, "insufficient") || strings.Contains(s, "billing")
}

// errorMessage renders the user-facing guidance template for an ErrorClass.
func errorMessage(class ErrorClass) string {
	switch class {
	case ErrorAPIKeyInvalid:
		return "The configured LLM API key was rejected. Check the LLM_API_KEY configuration and try again."
	case ErrorRateLimit:
		return "The LLM provider is rate limiting requests. Please wait a moment and try again."
	case ErrorQuota:
		return "The LLM provider account has run out of quota. Check the provider's billing status."
	default:
		return "The assistant hit an unexpected error talking to the language model. Please try again."
	}
}
