package workersai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/howard-nolan/workersai/internal/provider"
)

// ---------------------------------------------------------------------------
// Workers AI message types (unexported)
// ---------------------------------------------------------------------------

// chatMessage is one entry of the backend's flat "messages" array. Unlike
// the neutral contract, content is always a single string; images travel
// in a separate top-level "image" field.
type chatMessage struct {
	Role      string            `json:"role"`
	Content   string            `json:"content"`
	Name      string            `json:"name,omitempty"`
	ToolCalls []messageToolCall `json:"tool_calls,omitempty"`
}

// messageToolCall is an assistant tool invocation replayed to the backend.
type messageToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function functionCall `json:"function"`
}

type functionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// imageInput is an image lifted out of a user turn.
type imageInput struct {
	Image    []byte
	MimeType string
}

// ---------------------------------------------------------------------------
// Conversion
// ---------------------------------------------------------------------------

// convertMessages maps the neutral conversation onto the backend's message
// array and extracts images into a side channel.
//
//   - system turns: text parts concatenated into one message
//   - user turns: text parts joined with "\n"; image parts are removed from
//     the text and collected into images
//   - assistant turns: text and reasoning concatenated into the body,
//     tool-call parts collected into tool_calls
//   - tool turns: one message per tool result, content is the JSON result
//
// The backend accepts at most one image per request, so a second image
// fails with ErrMultipleImagesUnsupported before anything is sent.
func convertMessages(prompt []provider.Turn) ([]chatMessage, []imageInput, error) {
	var (
		messages []chatMessage
		images   []imageInput
	)

	for _, turn := range prompt {
		switch turn.Role {
		case provider.RoleSystem:
			var b strings.Builder
			for _, part := range turn.Parts {
				text, ok := part.(provider.TextPart)
				if !ok {
					return nil, nil, fmt.Errorf("workersai: unsupported %s part %T", turn.Role, part)
				}
				b.WriteString(text.Text)
			}
			messages = append(messages, chatMessage{Role: "system", Content: b.String()})

		case provider.RoleUser:
			var texts []string
			for _, part := range turn.Parts {
				switch p := part.(type) {
				case provider.TextPart:
					texts = append(texts, p.Text)
				case provider.ImagePart:
					images = append(images, imageInput{Image: p.Image, MimeType: p.MimeType})
				default:
					return nil, nil, fmt.Errorf("workersai: unsupported %s part %T", turn.Role, part)
				}
			}
			messages = append(messages, chatMessage{Role: "user", Content: strings.Join(texts, "\n")})

		case provider.RoleAssistant:
			msg, err := convertAssistant(turn.Parts)
			if err != nil {
				return nil, nil, err
			}
			messages = append(messages, msg)

		case provider.RoleTool:
			for _, part := range turn.Parts {
				result, ok := part.(provider.ToolResultPart)
				if !ok {
					return nil, nil, fmt.Errorf("workersai: unsupported %s part %T", turn.Role, part)
				}
				content, err := json.Marshal(result.Result)
				if err != nil {
					return nil, nil, fmt.Errorf("marshaling result of tool %q: %w", result.ToolName, err)
				}
				messages = append(messages, chatMessage{
					Role:    "tool",
					Name:    result.ToolName,
					Content: string(content),
				})
			}

		default:
			return nil, nil, fmt.Errorf("workersai: unsupported role %q", turn.Role)
		}
	}

	if len(images) > 1 {
		return nil, nil, ErrMultipleImagesUnsupported
	}

	return messages, images, nil
}

func convertAssistant(parts []provider.ContentPart) (chatMessage, error) {
	var (
		b         strings.Builder
		toolCalls []messageToolCall
	)

	for _, part := range parts {
		switch p := part.(type) {
		case provider.TextPart:
			b.WriteString(p.Text)
		case provider.ReasoningPart:
			b.WriteString(p.Text)
		case provider.ToolCallPart:
			args, err := argsJSON(p.Args)
			if err != nil {
				return chatMessage{}, fmt.Errorf("marshaling arguments of tool call %q: %w", p.ToolName, err)
			}
			toolCalls = append(toolCalls, messageToolCall{
				ID:   p.ToolCallID,
				Type: "function",
				Function: functionCall{
					Name:      p.ToolName,
					Arguments: args,
				},
			})
		default:
			return chatMessage{}, fmt.Errorf("workersai: unsupported assistant part %T", part)
		}
	}

	return chatMessage{
		Role:      "assistant",
		Content:   b.String(),
		ToolCalls: toolCalls,
	}, nil
}

// argsJSON serializes tool-call arguments. Arguments that are already a
// JSON string (or raw JSON) are passed through; nil becomes "{}".
func argsJSON(args any) (string, error) {
	switch a := args.(type) {
	case nil:
		return "{}", nil
	case string:
		if json.Valid([]byte(a)) {
			return a, nil
		}
	case json.RawMessage:
		if len(a) == 0 {
			return "{}", nil
		}
		return string(a), nil
	}
	b, err := json.Marshal(args)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// lastMessageWasUser reports whether the final converted message has the
// user role.
func lastMessageWasUser(messages []chatMessage) bool {
	return len(messages) > 0 && messages[len(messages)-1].Role == "user"
}

// imageBytes widens the image to a JSON array of integers, which is the
// shape vision models on this backend expect (a []byte would marshal to
// base64).
func imageBytes(img []byte) []int {
	out := make([]int, len(img))
	for i, b := range img {
		out[i] = int(b)
	}
	return out
}
