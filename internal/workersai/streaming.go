package workersai

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/tidwall/gjson"

	"github.com/howard-nolan/workersai/internal/provider"
	"github.com/howard-nolan/workersai/internal/stream"
)

// mapStream translates a backend event stream into stream parts.
//
// Every event is a JSON chunk:
//
//	data: {"response":"Hel"}
//	data: {"response":"lo","usage":{"prompt_tokens":5,"completion_tokens":2}}
//	data: {"tool_calls":[{"index":0,"id":"c1","function":{"name":"f","arguments":"{\"a\":"}}]}
//	data: {"choices":[{"delta":{"reasoning_content":"thinking"}}]}
//	data: [DONE]
//
// Text and reasoning deltas are emitted as they arrive. Tool-call fragments
// are buffered and only emitted, merged, once the stream ends. Exactly one
// finish part closes a successful stream; a failure ends it with an error
// part instead.
//
// The goroutine owns body and closes it. onFinish, if set, is called with
// the final usage before the finish part is sent.
func mapStream(ctx context.Context, body io.ReadCloser, onFinish func(provider.Usage, error)) <-chan provider.StreamPart {
	ch := make(chan provider.StreamPart)

	go func() {
		defer close(ch)
		defer body.Close()

		send := func(part provider.StreamPart) bool {
			select {
			case ch <- part:
				return true
			case <-ctx.Done():
				return false
			}
		}

		fail := func(err error) {
			if onFinish != nil {
				onFinish(provider.Usage{}, err)
			}
			send(provider.StreamPart{Type: provider.PartError, Err: err})
		}

		var (
			usage     provider.Usage
			finish    = provider.FinishStop
			fragments []gjson.Result
		)

		// Read events until [DONE] or EOF. A backend that drops the
		// connection without [DONE] still gets a finish part, since
		// everything received so far is a usable response. Events
		// without data (comments, keep-alives) are skipped.
		//
		// Each chunk may carry several things at once: usage, a finish
		// reason, tool-call fragments and a text or reasoning delta.
		// Usage and finish reason are overwritten by later chunks.
		// Fragments are only collected here because one call's
		// arguments can span many chunks.
		reader := stream.NewReader(body)
		for {
			if ctx.Err() != nil {
				fail(ctx.Err())
				return
			}

			ev, err := reader.Next()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				fail(fmt.Errorf("reading workersai stream: %w", err))
				return
			}

			if ev.Data == "" {
				continue
			}
			if stream.IsDone(ev.Data) {
				break
			}

			if !gjson.Valid(ev.Data) {
				fail(fmt.Errorf("decoding workersai stream event: invalid JSON %q", excerpt([]byte(ev.Data))))
				return
			}
			chunk := gjson.Parse(ev.Data)

			// Only an object replaces the running usage. Some models send
			// "usage":null on intermediate chunks.
			if chunk.Get("usage").IsObject() {
				usage = mapUsage(chunk)
			}
			if reason, ok := rawFinishReason(chunk); ok && reason != "" {
				finish = mapFinishReason(reason)
			}
			if calls := chunk.Get("tool_calls"); calls.IsArray() {
				fragments = append(fragments, calls.Array()...)
			}

			if text := chunk.Get("response"); text.Type == gjson.String && text.Str != "" {
				if !send(provider.StreamPart{Type: provider.PartTextDelta, Delta: text.Str}) {
					return
				}
			}
			if reasoning := chunk.Get("choices.0.delta.reasoning_content"); reasoning.Type == gjson.String && reasoning.Str != "" {
				if !send(provider.StreamPart{Type: provider.PartReasoningDelta, Delta: reasoning.Str}) {
					return
				}
			}
		}

		// The stream is over, so every fragment has arrived. Merge them by
		// index and emit the finished calls before the finish part.
		if len(fragments) > 0 {
			for _, call := range mergePartialToolCalls(fragments) {
				if !send(provider.StreamPart{Type: provider.PartToolCall, ToolCall: &call}) {
					return
				}
			}
		}

		if onFinish != nil {
			onFinish(usage, nil)
		}
		send(provider.StreamPart{
			Type:         provider.PartFinish,
			FinishReason: finish,
			Usage:        &usage,
		})
	}()

	return ch
}

// replayResult satisfies the streaming contract from a buffered result:
// one text delta (if any), every tool call, one reasoning delta (if any),
// then the finish part. The channel is buffered and already closed, so no
// goroutine is involved.
func replayResult(res *provider.GenerationResult) <-chan provider.StreamPart {
	parts := make([]provider.StreamPart, 0, len(res.ToolCalls)+3)

	if res.Text != "" {
		parts = append(parts, provider.StreamPart{Type: provider.PartTextDelta, Delta: res.Text})
	}
	for i := range res.ToolCalls {
		call := res.ToolCalls[i]
		parts = append(parts, provider.StreamPart{Type: provider.PartToolCall, ToolCall: &call})
	}
	if res.Reasoning != "" {
		parts = append(parts, provider.StreamPart{Type: provider.PartReasoningDelta, Delta: res.Reasoning})
	}
	usage := res.Usage
	parts = append(parts, provider.StreamPart{
		Type:         provider.PartFinish,
		FinishReason: res.FinishReason,
		Usage:        &usage,
	})

	ch := make(chan provider.StreamPart, len(parts))
	for _, p := range parts {
		ch <- p
	}
	close(ch)
	return ch
}
