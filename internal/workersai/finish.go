package workersai

import (
	"github.com/tidwall/gjson"

	"github.com/howard-nolan/workersai/internal/provider"
)

// mapFinishReason maps a backend finish reason onto the neutral
// enumeration. Unknown and empty reasons map to stop.
func mapFinishReason(reason string) provider.FinishReason {
	switch reason {
	case "stop":
		return provider.FinishStop
	case "length", "model_length":
		return provider.FinishLength
	case "tool_calls":
		return provider.FinishToolCalls
	case "error":
		return provider.FinishError
	case "other":
		return provider.FinishOther
	case "unknown":
		return provider.FinishUnknown
	default:
		return provider.FinishStop
	}
}

// rawFinishReason finds the finish reason in a backend payload. The payload
// is either a bare JSON string (the reason itself) or a response object:
// choices[0].finish_reason wins over a top-level finish_reason. ok is false
// when no string reason is present.
func rawFinishReason(r gjson.Result) (reason string, ok bool) {
	switch {
	case r.Type == gjson.String:
		return r.String(), true
	case !r.IsObject():
		return "", false
	}

	var field gjson.Result
	if choices := r.Get("choices"); choices.IsArray() && len(choices.Array()) > 0 {
		field = choices.Get("0.finish_reason")
	} else {
		field = r.Get("finish_reason")
	}

	if field.Type != gjson.String {
		return "", false
	}
	return field.String(), true
}

// finishReasonFromJSON normalizes the finish reason of any payload. It never
// fails: malformed or unexpected input maps to stop.
func finishReasonFromJSON(raw []byte) provider.FinishReason {
	if !gjson.ValidBytes(raw) {
		return provider.FinishStop
	}
	reason, _ := rawFinishReason(gjson.ParseBytes(raw))
	return mapFinishReason(reason)
}
