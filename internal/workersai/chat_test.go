package workersai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/howard-nolan/workersai/internal/backendtest"
	"github.com/howard-nolan/workersai/internal/metrics"
	"github.com/howard-nolan/workersai/internal/provider"
)

// counterValue reads one counter series from reg, or 0 when absent.
func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	next:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue next
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func jsonOf(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

// ---------------------------------------------------------------------------
// Generate
// ---------------------------------------------------------------------------

func TestGenerate(t *testing.T) {
	p, fake := newTestProvider(t)
	fake.Reply(chatModelID, backendtest.Reply{Result: map[string]any{
		"response": "Hello there!",
		"usage":    map[string]any{"prompt_tokens": 12, "completion_tokens": 3, "total_tokens": 15},
	}})

	m := p.Chat(chatModelID, ChatSettings{})
	res, err := m.Generate(context.Background(), &provider.ChatRequest{
		Prompt: []provider.Turn{
			{Role: provider.RoleSystem, Parts: []provider.ContentPart{provider.TextPart{Text: "Be brief."}}},
			userText("Hi"),
		},
		Settings: provider.CallSettings{
			MaxTokens:   ptr(64),
			Temperature: ptr(0.2),
			TopP:        ptr(0.9),
			Seed:        ptr(42),
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "Hello there!", res.Text)
	assert.Empty(t, res.ToolCalls)
	assert.Equal(t, provider.FinishStop, res.FinishReason)
	assert.Equal(t, provider.Usage{PromptTokens: 12, CompletionTokens: 3}, res.Usage)
	assert.Empty(t, res.Warnings)
	assert.JSONEq(t, `{"response":"Hello there!","usage":{"prompt_tokens":12,"completion_tokens":3,"total_tokens":15}}`, string(res.RawResponse))

	assert.Equal(t, ProviderChat, m.Provider())
	assert.Equal(t, chatModelID, m.ModelID())

	reqs := fake.Requests()
	require.Len(t, reqs, 1)
	in := reqs[0].Inputs
	assert.JSONEq(t, `[{"role":"system","content":"Be brief."},{"role":"user","content":"Hi"}]`, jsonOf(t, in["messages"]))
	assert.Equal(t, 64.0, in["max_tokens"])
	assert.Equal(t, 0.2, in["temperature"])
	assert.Equal(t, 0.9, in["top_p"])
	assert.Equal(t, 42.0, in["random_seed"])
	assert.NotContains(t, in, "stream")
	assert.NotContains(t, in, "tools")
	assert.NotContains(t, in, "safe_prompt")
	assert.Equal(t, "Bearer test-key", reqs[0].Header.Get("Authorization"))
}

func TestGenerateToolCalls(t *testing.T) {
	p, fake := newTestProvider(t)
	fake.Reply(chatModelID, backendtest.Reply{Result: map[string]any{
		"response": nil,
		"tool_calls": []any{
			map[string]any{"name": "get_weather", "arguments": map[string]any{"city": "Paris"}},
		},
	}})

	res, err := p.Chat(chatModelID, ChatSettings{}).Generate(context.Background(), &provider.ChatRequest{
		Prompt:     []provider.Turn{userText("Weather in Paris?")},
		Tools:      testTools,
		ToolChoice: provider.ToolChoice{Type: provider.ToolChoiceRequired},
	})
	require.NoError(t, err)

	assert.Empty(t, res.Text)
	assert.Equal(t, []provider.ToolCall{
		{ID: "get_weather", Type: "function", Name: "get_weather", Args: `{"city":"Paris"}`},
	}, res.ToolCalls)

	in := fake.Requests()[0].Inputs
	assert.Equal(t, "any", in["tool_choice"])
	assert.JSONEq(t, `[
		{"type":"function","function":{"name":"get_weather","description":"Weather for a city","parameters":{"type":"object"}}},
		{"type":"function","function":{"name":"get_time"}}
	]`, jsonOf(t, in["tools"]))
}

func TestGenerateChoicesShape(t *testing.T) {
	p, fake := newTestProvider(t)
	fake.Reply(chatModelID, backendtest.Reply{Result: map[string]any{
		"choices": []any{map[string]any{
			"message":       map[string]any{"content": "Forty-two.", "reasoning_content": "Deep thought."},
			"finish_reason": "length",
		}},
	}})

	res, err := p.Chat(chatModelID, ChatSettings{}).Generate(context.Background(), &provider.ChatRequest{
		Prompt: []provider.Turn{userText("Meaning of life?")},
	})
	require.NoError(t, err)

	assert.Equal(t, "Forty-two.", res.Text)
	assert.Equal(t, "Deep thought.", res.Reasoning)
	assert.Equal(t, provider.FinishLength, res.FinishReason)
}

func TestGenerateStructuredResponse(t *testing.T) {
	p, fake := newTestProvider(t)
	fake.Reply(chatModelID, backendtest.Reply{Result: map[string]any{
		"response": map[string]any{"name": "Ada", "age": 36},
	}})

	res, err := p.Chat(chatModelID, ChatSettings{}).Generate(context.Background(), &provider.ChatRequest{
		Prompt: []provider.Turn{userText("Describe Ada")},
		Mode: provider.Mode{
			Type:   provider.ModeObjectJSON,
			Schema: json.RawMessage(`{"type":"object","properties":{"name":{"type":"string"}}}`),
		},
	})
	require.NoError(t, err)

	assert.JSONEq(t, `{"name":"Ada","age":36}`, res.Text)

	in := fake.Requests()[0].Inputs
	assert.JSONEq(t,
		`{"type":"json_schema","json_schema":{"type":"object","properties":{"name":{"type":"string"}}}}`,
		jsonOf(t, in["response_format"]))
	assert.NotContains(t, in, "tools")
}

func TestGenerateObjectToolMode(t *testing.T) {
	p, fake := newTestProvider(t)
	fake.Reply(chatModelID, backendtest.Reply{Result: map[string]any{
		"tool_calls": []any{map[string]any{
			"id": "c1", "type": "function",
			"function": map[string]any{"name": "extract", "arguments": `{"x":1}`},
		}},
	}})

	res, err := p.Chat(chatModelID, ChatSettings{}).Generate(context.Background(), &provider.ChatRequest{
		Prompt: []provider.Turn{userText("extract")},
		Tools:  testTools,
		Mode: provider.Mode{
			Type: provider.ModeObjectTool,
			Tool: &provider.ToolSpec{Name: "extract", Parameters: json.RawMessage(`{"type":"object"}`)},
		},
	})
	require.NoError(t, err)
	require.Len(t, res.ToolCalls, 1)
	assert.Equal(t, `{"x":1}`, res.ToolCalls[0].Args)

	in := fake.Requests()[0].Inputs
	assert.Equal(t, "any", in["tool_choice"])
	assert.JSONEq(t, `[{"type":"function","function":{"name":"extract","parameters":{"type":"object"}}}]`, jsonOf(t, in["tools"]))
}

func TestGeneratePenaltyWarnings(t *testing.T) {
	p, fake := newTestProvider(t)
	fake.Reply(chatModelID, backendtest.Reply{Result: map[string]any{"response": "ok"}})

	res, err := p.Chat(chatModelID, ChatSettings{}).Generate(context.Background(), &provider.ChatRequest{
		Prompt: []provider.Turn{userText("hi")},
		Settings: provider.CallSettings{
			FrequencyPenalty: ptr(0.5),
			PresencePenalty:  ptr(0.1),
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []provider.Warning{
		{Type: provider.WarningUnsupportedSetting, Setting: "frequencyPenalty"},
		{Type: provider.WarningUnsupportedSetting, Setting: "presencePenalty"},
	}, res.Warnings)

	in := fake.Requests()[0].Inputs
	assert.NotContains(t, in, "frequency_penalty")
	assert.NotContains(t, in, "presence_penalty")
}

func TestGenerateImageInput(t *testing.T) {
	p, fake := newTestProvider(t)
	fake.Reply(chatModelID, backendtest.Reply{Result: map[string]any{"response": "a cat"}})

	_, err := p.Chat(chatModelID, ChatSettings{}).Generate(context.Background(), &provider.ChatRequest{
		Prompt: []provider.Turn{{
			Role: provider.RoleUser,
			Parts: []provider.ContentPart{
				provider.TextPart{Text: "What is this?"},
				provider.ImagePart{Image: []byte{137, 80, 78, 71}, MimeType: "image/png"},
			},
		}},
	})
	require.NoError(t, err)

	in := fake.Requests()[0].Inputs
	assert.Equal(t, []any{137.0, 80.0, 78.0, 71.0}, in["image"])
	assert.JSONEq(t, `[{"role":"user","content":"What is this?"}]`, jsonOf(t, in["messages"]))
}

func TestGeneratePassthroughAndSafePrompt(t *testing.T) {
	p, fake := newTestProvider(t)
	fake.Reply(chatModelID, backendtest.Reply{Result: map[string]any{"response": "ok"}})

	m := p.Chat(chatModelID, ChatSettings{
		SafePrompt:  ptr(true),
		Passthrough: map[string]any{"queueRequest": true, "tag": "model"},
	})
	_, err := m.Generate(context.Background(), &provider.ChatRequest{
		Prompt: []provider.Turn{userText("hi")},
		Settings: provider.CallSettings{
			SafePrompt:  ptr(false),
			Passthrough: map[string]any{"tag": "call", "priority": 2},
		},
	})
	require.NoError(t, err)

	req := fake.Requests()[0]
	assert.Equal(t, false, req.Inputs["safe_prompt"])
	assert.Equal(t, "true", req.Query.Get("queueRequest"))
	assert.Equal(t, "call", req.Query.Get("tag"))
	assert.Equal(t, "2", req.Query.Get("priority"))
}

func TestGenerateGateway(t *testing.T) {
	p, fake := newTestProvider(t)
	fake.Reply(chatModelID, backendtest.Reply{Result: map[string]any{"response": "cached"}})

	m := p.Chat(chatModelID, ChatSettings{
		Gateway: &GatewayOptions{ID: "my-gateway", SkipCache: true, CacheTTL: 120},
	})
	res, err := m.Generate(context.Background(), &provider.ChatRequest{Prompt: []provider.Turn{userText("hi")}})
	require.NoError(t, err)
	assert.Equal(t, "cached", res.Text)

	req := fake.Requests()[0]
	assert.Equal(t, "acct", req.Account)
	assert.Equal(t, "my-gateway", req.Gateway)
	assert.Equal(t, "true", req.Header.Get("cf-aig-skip-cache"))
	assert.Equal(t, "120", req.Header.Get("cf-aig-cache-ttl"))
}

func TestGenerateAPIError(t *testing.T) {
	p, fake := newTestProvider(t)
	fake.Reply(chatModelID, backendtest.Reply{
		Status: http.StatusTooManyRequests,
		Error: map[string]any{
			"success": false,
			"errors":  []any{map[string]any{"code": 3040, "message": "Capacity temporarily exceeded"}},
		},
	})

	_, err := p.Chat(chatModelID, ChatSettings{}).Generate(context.Background(), &provider.ChatRequest{
		Prompt: []provider.Turn{userText("hi")},
	})

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Equal(t, "3040", apiErr.Code)
	assert.Equal(t, "Capacity temporarily exceeded", apiErr.Error())
}

func TestGenerateCanceledContext(t *testing.T) {
	p, fake := newTestProvider(t)
	fake.Reply(chatModelID, backendtest.Reply{Result: map[string]any{"response": "never"}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Chat(chatModelID, ChatSettings{}).Generate(ctx, &provider.ChatRequest{
		Prompt: []provider.Turn{userText("hi")},
	})
	assert.ErrorIs(t, err, context.Canceled)
}

// Requests that fail validation never reach the transport.
func TestGenerateValidationFailsBeforeCall(t *testing.T) {
	tests := []struct {
		name  string
		req   *provider.ChatRequest
		check func(t *testing.T, err error)
	}{
		{
			name: "multiple images",
			req: &provider.ChatRequest{Prompt: []provider.Turn{{
				Role: provider.RoleUser,
				Parts: []provider.ContentPart{
					provider.ImagePart{Image: []byte{1}},
					provider.ImagePart{Image: []byte{2}},
				},
			}}},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrMultipleImagesUnsupported)
			},
		},
		{
			name: "object-grammar mode",
			req: &provider.ChatRequest{
				Prompt: []provider.Turn{userText("hi")},
				Mode:   provider.Mode{Type: provider.ModeObjectGrammar},
			},
			check: func(t *testing.T, err error) {
				var unsupported *UnsupportedFunctionalityError
				assert.ErrorAs(t, err, &unsupported)
			},
		},
		{
			name: "object-tool mode without tool",
			req: &provider.ChatRequest{
				Prompt: []provider.Turn{userText("hi")},
				Mode:   provider.Mode{Type: provider.ModeObjectTool},
			},
			check: func(t *testing.T, err error) {
				assert.Error(t, err)
			},
		},
		{
			name: "unknown tool choice",
			req: &provider.ChatRequest{
				Prompt:     []provider.Turn{userText("hi")},
				Tools:      testTools,
				ToolChoice: provider.ToolChoice{Type: provider.ToolChoiceTool, ToolName: "nope"},
			},
			check: func(t *testing.T, err error) {
				var noSuchTool *NoSuchToolError
				assert.ErrorAs(t, err, &noSuchTool)
			},
		},
		{
			name: "non-scalar passthrough",
			req: &provider.ChatRequest{
				Prompt:   []provider.Turn{userText("hi")},
				Settings: provider.CallSettings{Passthrough: map[string]any{"nested": map[string]any{"a": 1}}},
			},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrInvalidPassthrough)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &fakeBinding{}
			m := newFakeProvider(t, b).Chat(chatModelID, ChatSettings{})

			_, err := m.Generate(context.Background(), tt.req)
			tt.check(t, err)

			_, err = m.Stream(context.Background(), tt.req)
			tt.check(t, err)

			assert.Zero(t, b.calls.Load())
		})
	}
}

func TestGenerateMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	p, fake := newTestProvider(t, WithMetrics(metrics.NewRecorder(reg)))
	fake.Reply(chatModelID,
		backendtest.Reply{Result: map[string]any{
			"response": "ok",
			"usage":    map[string]any{"prompt_tokens": 7, "completion_tokens": 2},
		}},
		backendtest.Reply{Status: http.StatusInternalServerError, Error: map[string]any{"message": "boom"}},
	)

	m := p.Chat(chatModelID, ChatSettings{})
	req := &provider.ChatRequest{
		Prompt:   []provider.Turn{userText("hi")},
		Settings: provider.CallSettings{PresencePenalty: ptr(1.0)},
	}
	_, err := m.Generate(context.Background(), req)
	require.NoError(t, err)
	_, err = m.Generate(context.Background(), req)
	require.Error(t, err)

	assert.Equal(t, 1.0, counterValue(t, reg, "workersai_calls_total",
		map[string]string{"model": chatModelID, "kind": metrics.KindGenerate, "outcome": "ok"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "workersai_calls_total",
		map[string]string{"model": chatModelID, "kind": metrics.KindGenerate, "outcome": "error"}))
	assert.Equal(t, 7.0, counterValue(t, reg, "workersai_tokens_total",
		map[string]string{"model": chatModelID, "direction": "prompt"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "workersai_warnings_total",
		map[string]string{"setting": "presencePenalty"}))
}

// ---------------------------------------------------------------------------
// Stream
// ---------------------------------------------------------------------------

func TestStreamNative(t *testing.T) {
	p, fake := newTestProvider(t)
	fake.Reply(chatModelID, backendtest.Reply{Events: []string{
		`{"response":"Hel"}`,
		`{"response":"lo"}`,
		`{"response":"","usage":{"prompt_tokens":4,"completion_tokens":2}}`,
	}})

	res, err := p.Chat(chatModelID, ChatSettings{}).Stream(context.Background(), &provider.ChatRequest{
		Prompt:   []provider.Turn{userText("hi")},
		Settings: provider.CallSettings{FrequencyPenalty: ptr(0.3)},
	})
	require.NoError(t, err)
	assert.Len(t, res.Warnings, 1)

	parts := collect(res.Parts)
	assert.Equal(t, []provider.StreamPartType{
		provider.PartTextDelta,
		provider.PartTextDelta,
		provider.PartFinish,
	}, partTypes(parts))
	assert.Equal(t, provider.Usage{PromptTokens: 4, CompletionTokens: 2}, *parts[2].Usage)

	assert.Equal(t, true, fake.Requests()[0].Inputs["stream"])
}

func TestStreamNativeWithToolResults(t *testing.T) {
	p, fake := newTestProvider(t)
	fake.Reply(chatModelID, backendtest.Reply{Events: []string{`{"response":"It is sunny."}`}})

	// Tools are declared but the conversation ends with a tool turn, so the
	// backend can stream the follow-up answer.
	res, err := p.Chat(chatModelID, ChatSettings{}).Stream(context.Background(), &provider.ChatRequest{
		Prompt: []provider.Turn{
			userText("Weather?"),
			{Role: provider.RoleAssistant, Parts: []provider.ContentPart{
				provider.ToolCallPart{ToolCallID: "c1", ToolName: "get_weather", Args: map[string]any{"city": "Paris"}},
			}},
			{Role: provider.RoleTool, Parts: []provider.ContentPart{
				provider.ToolResultPart{ToolCallID: "c1", ToolName: "get_weather", Result: "sunny"},
			}},
		},
		Tools: testTools,
	})
	require.NoError(t, err)

	parts := collect(res.Parts)
	assert.Equal(t, []provider.StreamPartType{provider.PartTextDelta, provider.PartFinish}, partTypes(parts))

	in := fake.Requests()[0].Inputs
	assert.Equal(t, true, in["stream"])
	assert.JSONEq(t, `[
		{"role":"user","content":"Weather?"},
		{"role":"assistant","content":"","tool_calls":[{"id":"c1","type":"function","function":{"name":"get_weather","arguments":"{\"city\":\"Paris\"}"}}]},
		{"role":"tool","name":"get_weather","content":"\"sunny\""}
	]`, jsonOf(t, in["messages"]))
}

func TestStreamSynthesizedForTools(t *testing.T) {
	p, fake := newTestProvider(t)
	fake.Reply(chatModelID, backendtest.Reply{Result: map[string]any{
		"response":          "Checking.",
		"reasoning_content": "Need weather.",
		"tool_calls": []any{
			map[string]any{"id": "c1", "type": "function", "function": map[string]any{"name": "get_weather", "arguments": `{"city":"Paris"}`}},
			map[string]any{"name": "get_time", "arguments": nil},
		},
		"finish_reason": "tool_calls",
		"usage":         map[string]any{"prompt_tokens": 20, "completion_tokens": 8},
	}})

	res, err := p.Chat(chatModelID, ChatSettings{}).Stream(context.Background(), &provider.ChatRequest{
		Prompt: []provider.Turn{userText("Weather and time?")},
		Tools:  testTools,
	})
	require.NoError(t, err)

	parts := collect(res.Parts)
	assert.Equal(t, []provider.StreamPartType{
		provider.PartTextDelta,
		provider.PartToolCall,
		provider.PartToolCall,
		provider.PartReasoningDelta,
		provider.PartFinish,
	}, partTypes(parts))

	assert.Equal(t, "Checking.", parts[0].Delta)
	assert.Equal(t, provider.ToolCall{ID: "c1", Type: "function", Name: "get_weather", Args: `{"city":"Paris"}`}, *parts[1].ToolCall)
	assert.Equal(t, provider.ToolCall{ID: "get_time", Type: "function", Name: "get_time", Args: "{}"}, *parts[2].ToolCall)
	assert.Equal(t, "Need weather.", parts[3].Delta)
	assert.Equal(t, provider.FinishToolCalls, parts[4].FinishReason)
	assert.Equal(t, provider.Usage{PromptTokens: 20, CompletionTokens: 8}, *parts[4].Usage)

	// One buffered call, no streaming flag.
	reqs := fake.Requests()
	require.Len(t, reqs, 1)
	assert.NotContains(t, reqs[0].Inputs, "stream")
}

func TestStreamSynthesizedPartOrder(t *testing.T) {
	call := map[string]any{"name": "get_time", "arguments": map[string]any{}}
	tests := []struct {
		name   string
		result map[string]any
		want   []provider.StreamPartType
	}{
		{
			name:   "text only",
			result: map[string]any{"response": "hi"},
			want:   []provider.StreamPartType{provider.PartTextDelta, provider.PartFinish},
		},
		{
			name:   "tool calls only",
			result: map[string]any{"tool_calls": []any{call, call}},
			want:   []provider.StreamPartType{provider.PartToolCall, provider.PartToolCall, provider.PartFinish},
		},
		{
			name:   "reasoning only",
			result: map[string]any{"reasoning_content": "hmm"},
			want:   []provider.StreamPartType{provider.PartReasoningDelta, provider.PartFinish},
		},
		{
			name:   "empty",
			result: map[string]any{},
			want:   []provider.StreamPartType{provider.PartFinish},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, fake := newTestProvider(t)
			fake.Reply(chatModelID, backendtest.Reply{Result: tt.result})

			res, err := p.Chat(chatModelID, ChatSettings{}).Stream(context.Background(), &provider.ChatRequest{
				Prompt: []provider.Turn{userText("go")},
				Tools:  testTools,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, partTypes(collect(res.Parts)))
		})
	}
}

func TestStreamAPIError(t *testing.T) {
	p, fake := newTestProvider(t)
	fake.Reply(chatModelID, backendtest.Reply{
		Status: http.StatusBadRequest,
		Error:  map[string]any{"code": "invalid_input", "message": "bad messages", "type": "invalid_request_error", "param": "messages"},
	})

	_, err := p.Chat(chatModelID, ChatSettings{}).Stream(context.Background(), &provider.ChatRequest{
		Prompt: []provider.Turn{userText("hi")},
	})

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "bad messages", apiErr.Message)
	assert.Equal(t, "invalid_input", apiErr.Code)
	assert.Equal(t, "invalid_request_error", apiErr.Type)
	assert.Equal(t, "messages", apiErr.Param)
}

func TestStreamTruncated(t *testing.T) {
	p, fake := newTestProvider(t)
	fake.Reply(chatModelID, backendtest.Reply{Events: []string{`{"response":"cut"}`}, NoDone: true})

	res, err := p.Chat(chatModelID, ChatSettings{}).Stream(context.Background(), &provider.ChatRequest{
		Prompt: []provider.Turn{userText("hi")},
	})
	require.NoError(t, err)

	parts := collect(res.Parts)
	assert.Equal(t, []provider.StreamPartType{provider.PartTextDelta, provider.PartFinish}, partTypes(parts))
}

func TestStreamBindingError(t *testing.T) {
	boom := errors.New("binding unavailable")
	b := &fakeBinding{runStream: func(context.Context, string, map[string]any, RunOptions) (io.ReadCloser, error) {
		return nil, boom
	}}

	_, err := newFakeProvider(t, b).Chat(chatModelID, ChatSettings{}).Stream(context.Background(), &provider.ChatRequest{
		Prompt: []provider.Turn{userText("hi")},
	})
	assert.ErrorIs(t, err, boom)
}
