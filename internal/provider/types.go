package provider

import (
	"encoding/json"
	"time"
)

// ---------------------------------------------------------------------------
// Conversation
// ---------------------------------------------------------------------------

// Role identifies who authored a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Turn is one entry of an ordered conversation. A turn is a sequence of
// typed content parts; which part types make sense depends on the role.
type Turn struct {
	Role  Role
	Parts []ContentPart
}

// ContentPart is a sealed interface for message parts. Only the part types
// declared in this package implement it.
type ContentPart interface {
	isContentPart()
}

// TextPart is plain text.
type TextPart struct {
	Text string
}

func (TextPart) isContentPart() {}

// ReasoningPart is model reasoning replayed as part of an assistant turn.
type ReasoningPart struct {
	Text string
}

func (ReasoningPart) isContentPart() {}

// ImagePart carries raw image bytes. MimeType is optional.
type ImagePart struct {
	Image    []byte
	MimeType string
}

func (ImagePart) isContentPart() {}

// ToolCallPart records a tool invocation previously emitted by the model.
// Args is any JSON-serializable value.
type ToolCallPart struct {
	ToolCallID string
	ToolName   string
	Args       any
}

func (ToolCallPart) isContentPart() {}

// ToolResultPart is the output of a tool, sent back to the model.
type ToolResultPart struct {
	ToolCallID string
	ToolName   string
	Result     any
}

func (ToolResultPart) isContentPart() {}

// ---------------------------------------------------------------------------
// Request
// ---------------------------------------------------------------------------

// CallSettings holds per-call sampling options. Pointer fields distinguish
// "not set" from a zero value.
type CallSettings struct {
	MaxTokens   *int
	Temperature *float64
	TopP        *float64
	Seed        *int

	// FrequencyPenalty and PresencePenalty are accepted for contract
	// compatibility. Backends that cannot honour them report a Warning.
	FrequencyPenalty *float64
	PresencePenalty  *float64

	// SafePrompt asks the backend to inject its safety prompt.
	SafePrompt *bool

	// Passthrough holds extra scalar options (string, bool or number)
	// forwarded to the backend unmodified.
	Passthrough map[string]any
}

// ToolSpec describes a function the model may call.
type ToolSpec struct {
	Name        string
	Description string
	// Parameters is a JSON Schema object.
	Parameters json.RawMessage
}

// ToolChoiceType selects how the model may use the declared tools.
type ToolChoiceType string

const (
	ToolChoiceAuto     ToolChoiceType = "auto"
	ToolChoiceNone     ToolChoiceType = "none"
	ToolChoiceRequired ToolChoiceType = "required"
	ToolChoiceTool     ToolChoiceType = "tool"
)

// ToolChoice is the tool-use policy. ToolName is only read when Type is
// ToolChoiceTool. The zero value means "no policy given".
type ToolChoice struct {
	Type     ToolChoiceType
	ToolName string
}

// ModeType selects plain generation or one of the structured-output modes.
type ModeType string

const (
	ModeRegular       ModeType = "regular"
	ModeObjectJSON    ModeType = "object-json"
	ModeObjectTool    ModeType = "object-tool"
	ModeObjectGrammar ModeType = "object-grammar"
)

// Mode configures structured output. Schema is used by ModeObjectJSON and
// Tool by ModeObjectTool. The zero value behaves as ModeRegular.
type Mode struct {
	Type   ModeType
	Schema json.RawMessage
	Tool   *ToolSpec
}

// ChatRequest is a text-generation request against the neutral contract.
type ChatRequest struct {
	Prompt     []Turn
	Settings   CallSettings
	Tools      []ToolSpec
	ToolChoice ToolChoice
	Mode       Mode
}

// ---------------------------------------------------------------------------
// Results
// ---------------------------------------------------------------------------

// FinishReason is the normalized reason generation stopped.
type FinishReason string

const (
	FinishStop      FinishReason = "stop"
	FinishLength    FinishReason = "length"
	FinishToolCalls FinishReason = "tool-calls"
	FinishError     FinishReason = "error"
	FinishOther     FinishReason = "other"
	FinishUnknown   FinishReason = "unknown"
)

// WarningUnsupportedSetting is the only warning kind adapters emit today.
const WarningUnsupportedSetting = "unsupported-setting"

// Warning is advisory information attached to a successful result.
type Warning struct {
	Type    string
	Setting string
	Details string
}

// Usage holds token counts. Missing counts are zero.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// ToolCall is a complete tool invocation emitted by the model.
// Args is always a valid JSON document.
type ToolCall struct {
	ID   string
	Type string
	Name string
	Args string
}

// GenerationResult is the outcome of a buffered Generate call.
type GenerationResult struct {
	Text         string
	Reasoning    string
	ToolCalls    []ToolCall
	FinishReason FinishReason
	Usage        Usage
	Warnings     []Warning

	// RawResponse is the backend's result payload, kept for debugging.
	RawResponse json.RawMessage
}

// StreamPartType tags a StreamPart.
type StreamPartType string

const (
	PartTextDelta      StreamPartType = "text-delta"
	PartReasoningDelta StreamPartType = "reasoning-delta"
	PartToolCall       StreamPartType = "tool-call"
	PartFinish         StreamPartType = "finish"
	PartError          StreamPartType = "error"
)

// StreamPart is one element of a stream. Only the fields relevant to Type
// are populated, the rest stay at their zero values.
type StreamPart struct {
	Type StreamPartType

	// Delta is the text fragment of a text-delta or reasoning-delta part.
	Delta string

	// ToolCall is set on tool-call parts.
	ToolCall *ToolCall

	// FinishReason and Usage are set on the finish part.
	FinishReason FinishReason
	Usage        *Usage

	// Err is set on an error part, which is always the last part.
	Err error
}

// StreamResult pairs the stream with warnings known before streaming began.
type StreamResult struct {
	Parts    <-chan StreamPart
	Warnings []Warning
}

// EmbeddingResult holds one vector per input value, in input order.
type EmbeddingResult struct {
	Embeddings [][]float64
}

// ImageRequest is an image-generation request.
type ImageRequest struct {
	Prompt string
	// N is the number of images to generate.
	N int
	// Size is "WIDTHxHEIGHT"; empty lets the backend choose.
	Size string
	// AspectRatio is accepted for contract compatibility only.
	AspectRatio string
	Seed        *int
}

// ResponseMetadata describes the backend response an image result came from.
type ResponseMetadata struct {
	ModelID   string
	Timestamp time.Time
}

// ImageResult holds generated images in call-issue order.
type ImageResult struct {
	Images   [][]byte
	Warnings []Warning
	Response ResponseMetadata
}
