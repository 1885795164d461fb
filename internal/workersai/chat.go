package workersai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/howard-nolan/workersai/internal/metrics"
	"github.com/howard-nolan/workersai/internal/provider"
)

// ChatSettings are model-level defaults applied to every call.
type ChatSettings struct {
	// SafePrompt injects the backend's safety prompt. A call-level
	// CallSettings.SafePrompt overrides it.
	SafePrompt *bool

	// Gateway overrides the provider-level gateway for this model.
	Gateway *GatewayOptions

	// Passthrough options forwarded on every call; call-level passthrough
	// entries win on key collisions.
	Passthrough map[string]any
}

// ChatModel implements provider.ChatModel for Workers AI text generation.
type ChatModel struct {
	modelID  string
	provider string
	settings ChatSettings
	binding  Binding
	gateway  *GatewayOptions
	logger   *slog.Logger
	metrics  *metrics.Recorder
}

var _ provider.ChatModel = (*ChatModel)(nil)

// Provider returns the provider identifier.
func (m *ChatModel) Provider() string { return m.provider }

// ModelID returns the backend model id.
func (m *ChatModel) ModelID() string { return m.modelID }

// ---------------------------------------------------------------------------
// Argument construction
// ---------------------------------------------------------------------------

type responseFormat struct {
	Type       string          `json:"type"`
	JSONSchema json.RawMessage `json:"json_schema,omitempty"`
}

// chatArgs is the validated, backend-shaped form of a request, minus the
// messages.
type chatArgs struct {
	maxTokens      *int
	temperature    *float64
	topP           *float64
	randomSeed     *int
	safePrompt     *bool
	tools          []functionTool
	toolChoice     string
	responseFormat *responseFormat
}

// getArgs validates the request settings and mode. Penalties are not
// supported by the backend: they become warnings and are not sent.
func (m *ChatModel) getArgs(req *provider.ChatRequest) (chatArgs, []provider.Warning, error) {
	var warnings []provider.Warning

	s := req.Settings
	if s.FrequencyPenalty != nil {
		warnings = append(warnings, provider.Warning{
			Type:    provider.WarningUnsupportedSetting,
			Setting: "frequencyPenalty",
		})
	}
	if s.PresencePenalty != nil {
		warnings = append(warnings, provider.Warning{
			Type:    provider.WarningUnsupportedSetting,
			Setting: "presencePenalty",
		})
	}

	args := chatArgs{
		maxTokens:   s.MaxTokens,
		temperature: s.Temperature,
		topP:        s.TopP,
		randomSeed:  s.Seed,
		safePrompt:  m.settings.SafePrompt,
	}
	if s.SafePrompt != nil {
		args.safePrompt = s.SafePrompt
	}

	switch req.Mode.Type {
	case "", provider.ModeRegular:
		tools, choice, err := prepareTools(req.Tools, req.ToolChoice)
		if err != nil {
			return chatArgs{}, nil, err
		}
		args.tools = tools
		args.toolChoice = choice

	case provider.ModeObjectJSON:
		args.responseFormat = &responseFormat{
			Type:       "json_schema",
			JSONSchema: req.Mode.Schema,
		}

	case provider.ModeObjectTool:
		if req.Mode.Tool == nil {
			return chatArgs{}, nil, fmt.Errorf("workersai: %s mode requires a tool", req.Mode.Type)
		}
		args.tools = []functionTool{toFunctionTool(*req.Mode.Tool)}
		args.toolChoice = toolChoiceAny

	case provider.ModeObjectGrammar:
		return chatArgs{}, nil, &UnsupportedFunctionalityError{Functionality: "object-grammar mode"}

	default:
		return chatArgs{}, nil, fmt.Errorf("workersai: unsupported mode %q", req.Mode.Type)
	}

	return args, warnings, nil
}

// buildInputs assembles the JSON body. Unset optional fields are left out
// so the backend applies its own defaults.
func buildInputs(args chatArgs, messages []chatMessage, images []imageInput, stream bool) map[string]any {
	inputs := map[string]any{"messages": messages}

	if args.maxTokens != nil {
		inputs["max_tokens"] = *args.maxTokens
	}
	if args.temperature != nil {
		inputs["temperature"] = *args.temperature
	}
	if args.topP != nil {
		inputs["top_p"] = *args.topP
	}
	if args.randomSeed != nil {
		inputs["random_seed"] = *args.randomSeed
	}
	if args.safePrompt != nil {
		inputs["safe_prompt"] = *args.safePrompt
	}
	if len(args.tools) > 0 {
		inputs["tools"] = args.tools
	}
	if args.toolChoice != "" {
		inputs["tool_choice"] = args.toolChoice
	}
	if args.responseFormat != nil {
		inputs["response_format"] = args.responseFormat
	}
	if len(images) == 1 {
		inputs["image"] = imageBytes(images[0].Image)
	}
	if stream {
		inputs["stream"] = true
	}
	return inputs
}

func (m *ChatModel) runOptions(req *provider.ChatRequest) (RunOptions, error) {
	extra, err := passthroughOptions(m.settings.Passthrough, req.Settings.Passthrough)
	if err != nil {
		return RunOptions{}, err
	}
	gateway := m.gateway
	if m.settings.Gateway != nil {
		gateway = m.settings.Gateway
	}
	return RunOptions{Gateway: gateway, Extra: extra}, nil
}

// prepared bundles everything needed to issue a call.
type prepared struct {
	args     chatArgs
	warnings []provider.Warning
	messages []chatMessage
	images   []imageInput
	opts     RunOptions
}

// prepare runs every validation step. Nothing has touched the network when
// it returns an error.
func (m *ChatModel) prepare(req *provider.ChatRequest) (*prepared, error) {
	args, warnings, err := m.getArgs(req)
	if err != nil {
		return nil, err
	}
	messages, images, err := convertMessages(req.Prompt)
	if err != nil {
		return nil, err
	}
	opts, err := m.runOptions(req)
	if err != nil {
		return nil, err
	}
	return &prepared{
		args:     args,
		warnings: warnings,
		messages: messages,
		images:   images,
		opts:     opts,
	}, nil
}

// ---------------------------------------------------------------------------
// Generate
// ---------------------------------------------------------------------------

// Generate issues one buffered call and maps the result.
func (m *ChatModel) Generate(ctx context.Context, req *provider.ChatRequest) (*provider.GenerationResult, error) {
	p, err := m.prepare(req)
	if err != nil {
		return nil, err
	}

	callID := uuid.NewString()
	res, err := m.generate(ctx, p)
	m.metrics.ObserveCall(m.modelID, metrics.KindGenerate, err)
	if err != nil {
		m.logger.DebugContext(ctx, "workersai generate failed",
			"model", m.modelID, "call_id", callID, "error", err)
		return nil, err
	}

	m.metrics.ObserveUsage(m.modelID, res.Usage)
	m.metrics.ObserveWarnings(res.Warnings)
	m.logger.DebugContext(ctx, "workersai generate",
		"model", m.modelID,
		"call_id", callID,
		"finish_reason", res.FinishReason,
		"tool_calls", len(res.ToolCalls),
		"warnings", len(res.Warnings),
	)
	return res, nil
}

func (m *ChatModel) generate(ctx context.Context, p *prepared) (*provider.GenerationResult, error) {
	raw, err := m.binding.Run(ctx, m.modelID, buildInputs(p.args, p.messages, p.images, false), p.opts)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		raw = json.RawMessage("null")
	}
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("decoding workersai response: invalid JSON %q", excerpt(raw))
	}

	r := gjson.ParseBytes(raw)
	return &provider.GenerationResult{
		Text:         responseText(r),
		Reasoning:    responseReasoning(r),
		ToolCalls:    processToolCalls(r),
		FinishReason: finishReasonFromJSON(raw),
		Usage:        mapUsage(r),
		Warnings:     p.warnings,
		RawResponse:  raw,
	}, nil
}

// responseText returns the textual field of a buffered response. Some
// models answer structured output with an object in "response"; callers of
// a text contract still get a string, so it is re-serialized. Responses in
// the choices shape carry the text in choices[0].message.content.
func responseText(r gjson.Result) string {
	text := r.Get("response")
	if !text.Exists() || text.Type == gjson.Null {
		text = r.Get("choices.0.message.content")
	}

	switch text.Type {
	case gjson.String:
		return text.Str
	case gjson.JSON, gjson.Number, gjson.True, gjson.False:
		var buf bytes.Buffer
		if err := json.Compact(&buf, []byte(text.Raw)); err != nil {
			return text.Raw
		}
		return buf.String()
	default:
		return ""
	}
}

func responseReasoning(r gjson.Result) string {
	if v := r.Get("reasoning_content"); v.Type == gjson.String {
		return v.Str
	}
	return r.Get("choices.0.message.reasoning_content").String()
}

// ---------------------------------------------------------------------------
// Stream
// ---------------------------------------------------------------------------

// Stream returns the response as stream parts.
//
// The backend cannot stream while it decides on tool calls. When tools are
// declared and the conversation ends with a user turn, Stream performs a
// buffered Generate and replays the result as a single burst. Otherwise it
// issues a streaming call and translates the event stream.
func (m *ChatModel) Stream(ctx context.Context, req *provider.ChatRequest) (*provider.StreamResult, error) {
	p, err := m.prepare(req)
	if err != nil {
		return nil, err
	}

	callID := uuid.NewString()

	// Tools plus a trailing user turn means the model may answer with a
	// tool call, which it cannot stream. Run the buffered call and replay
	// it. After a tool result the model answers in text, so the native
	// stream is safe again.
	if len(p.args.tools) > 0 && lastMessageWasUser(p.messages) {
		res, err := m.generate(ctx, p)
		m.metrics.ObserveCall(m.modelID, metrics.KindStream, err)
		if err != nil {
			return nil, err
		}
		m.metrics.ObserveUsage(m.modelID, res.Usage)
		m.metrics.ObserveWarnings(p.warnings)
		m.logger.DebugContext(ctx, "workersai stream",
			"model", m.modelID, "call_id", callID, "path", "synthesized",
			"tool_calls", len(res.ToolCalls), "warnings", len(p.warnings))

		return &provider.StreamResult{Parts: replayResult(res), Warnings: p.warnings}, nil
	}

	body, err := m.binding.RunStream(ctx, m.modelID, buildInputs(p.args, p.messages, p.images, true), p.opts)
	if err != nil {
		m.metrics.ObserveCall(m.modelID, metrics.KindStream, err)
		return nil, err
	}
	m.metrics.ObserveWarnings(p.warnings)
	m.logger.DebugContext(ctx, "workersai stream",
		"model", m.modelID, "call_id", callID, "path", "native", "warnings", len(p.warnings))

	parts := mapStream(ctx, body, func(u provider.Usage, err error) {
		m.metrics.ObserveCall(m.modelID, metrics.KindStream, err)
		if err == nil {
			m.metrics.ObserveUsage(m.modelID, u)
		}
	})
	return &provider.StreamResult{Parts: parts, Warnings: p.warnings}, nil
}
