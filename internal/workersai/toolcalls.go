package workersai

import (
	"bytes"
	"encoding/json"
	"slices"

	"github.com/tidwall/gjson"

	"github.com/howard-nolan/workersai/internal/provider"
)

// Backend responses carry tool calls in several shapes:
//
//	{"tool_calls": [{"id": "c1", "type": "function", "function": {"name": "f", "arguments": "{...}"}}]}
//	{"tool_calls": [{"name": "f", "arguments": {...}}]}
//	{"choices": [{"message": {"tool_calls": [...]}}]}
//
// Arguments may be a JSON string, a JSON object, or missing. processToolCalls
// is the one place that understands all of them.

// processToolCalls extracts complete tool calls from a buffered response.
func processToolCalls(r gjson.Result) []provider.ToolCall {
	calls := r.Get("tool_calls")
	if !calls.IsArray() {
		calls = r.Get("choices.0.message.tool_calls")
	}
	if !calls.IsArray() {
		return nil
	}

	var out []provider.ToolCall
	for _, entry := range calls.Array() {
		out = append(out, toToolCall(entry))
	}
	return out
}

// toToolCall converts one tool-call entry. An entry with both a function
// object and a non-empty string id is OpenAI-style; anything else is a bare
// {name, arguments} record whose name doubles as its id. A null or empty id
// counts as missing, so the call still gets a usable id.
func toToolCall(entry gjson.Result) provider.ToolCall {
	fn := entry.Get("function")
	id := entry.Get("id")

	if fn.IsObject() && id.Type == gjson.String && id.Str != "" {
		return provider.ToolCall{
			ID:   id.String(),
			Type: "function",
			Name: fn.Get("name").String(),
			Args: normalizeArgs(fn.Get("arguments")),
		}
	}

	name := fragmentField(entry, "name").String()
	return provider.ToolCall{
		ID:   name,
		Type: "function",
		Name: name,
		Args: normalizeArgs(fragmentField(entry, "arguments")),
	}
}

// normalizeArgs guarantees a valid JSON document: strings pass through,
// structured values are re-serialized compactly, absent or null arguments
// become "{}".
func normalizeArgs(args gjson.Result) string {
	switch args.Type {
	case gjson.Null:
		return "{}"
	case gjson.String:
		if args.Str == "" {
			return "{}"
		}
		return args.Str
	default:
		var buf bytes.Buffer
		if err := json.Compact(&buf, []byte(args.Raw)); err != nil {
			return args.Raw
		}
		return buf.String()
	}
}

// ---------------------------------------------------------------------------
// Partial tool calls (streaming)
// ---------------------------------------------------------------------------

// partialToolCall is a merged record for one tool-call index.
type partialToolCall struct {
	index int
	id    string
	typ   string
	name  string
	args  []byte
}

// mergePartialToolCalls groups streamed fragments by index and rebuilds
// complete tool calls, ordered by index.
//
// For every fragment at an index, id, type and name overwrite the record
// when present (last writer wins) and argument fragments are appended in
// arrival order. This relies on the backend sending the fragments of one
// index in order; nothing in the stream lets us check that.
func mergePartialToolCalls(fragments []gjson.Result) []provider.ToolCall {
	merged := make(map[int]*partialToolCall)
	var order []int

	for _, frag := range fragments {
		index := int(frag.Get("index").Int())

		rec, ok := merged[index]
		if !ok {
			rec = &partialToolCall{index: index}
			merged[index] = rec
			order = append(order, index)
		}

		if v := frag.Get("id"); v.Type == gjson.String {
			rec.id = v.Str
		}
		if v := frag.Get("type"); v.Type == gjson.String {
			rec.typ = v.Str
		}
		if v := fragmentField(frag, "name"); v.Type == gjson.String {
			rec.name = v.Str
		}
		switch v := fragmentField(frag, "arguments"); v.Type {
		case gjson.String:
			rec.args = append(rec.args, v.Str...)
		case gjson.JSON:
			rec.args = append(rec.args, v.Raw...)
		}
	}

	slices.Sort(order)

	out := make([]provider.ToolCall, 0, len(order))
	for _, index := range order {
		rec := merged[index]

		id := rec.id
		if id == "" {
			id = rec.name
		}
		typ := rec.typ
		if typ == "" {
			typ = "function"
		}
		args := string(rec.args)
		if args == "" {
			args = "{}"
		}

		out = append(out, provider.ToolCall{
			ID:   id,
			Type: typ,
			Name: rec.name,
			Args: args,
		})
	}
	return out
}

// fragmentField reads key from the fragment's function object, falling back
// to the fragment itself for bare fragments.
func fragmentField(frag gjson.Result, key string) gjson.Result {
	if v := frag.Get("function." + key); v.Exists() {
		return v
	}
	return frag.Get(key)
}
