package workersai

import (
	"github.com/tidwall/gjson"

	"github.com/howard-nolan/workersai/internal/provider"
)

// mapUsage reads usage.prompt_tokens and usage.completion_tokens. Missing
// or non-numeric counts are zero.
func mapUsage(r gjson.Result) provider.Usage {
	usage := r.Get("usage")
	if !usage.IsObject() {
		return provider.Usage{}
	}
	return provider.Usage{
		PromptTokens:     int(usage.Get("prompt_tokens").Int()),
		CompletionTokens: int(usage.Get("completion_tokens").Int()),
	}
}
