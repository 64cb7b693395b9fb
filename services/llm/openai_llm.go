package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/rutopia/chat-orchestrator/services/orchestrator/datatypes"
)

type OpenAIClient struct {
	client *openai.Client
	model  string
	params GenerationParams
}

// ResolveOpenAIAPIKey finds the OpenAI API key from the environment, falling
// back to the container secret mount.
func ResolveOpenAIAPIKey() (string, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		secretPath := "/run/secrets/openai_api_key"
		apiKeyBytes, err := os.ReadFile(secretPath)
		if err == nil {
			apiKey = strings.TrimSpace(string(apiKeyBytes))
			slog.Info("Read the OpenAI API Key from Podman Secrets")
		} else {
			slog.Error("OPENAI_API_KEY environment variable not set and secret not found", "path", secretPath)
			return "", fmt.Errorf("OPENAI_API_KEY environment variable not set")
		}
	}
	return apiKey, nil
}

func NewOpenAIClient() (*OpenAIClient, error) {
	apiKey, err := ResolveOpenAIAPIKey()
	if err != nil {
		return nil, err
	}
	model := os.Getenv("OPENAI_MODEL") // e.g., "gpt-4o"
	if model == "" {
		model = "gpt-4o-mini"
		slog.Warn("OPENAI_MODEL not set, defaulting to gpt-4o-mini")
	}
	slog.Info("Initializing OpenAI client", "model", model)
	return &OpenAIClient{
		client: openai.NewClient(apiKey),
		model:  model,
	}, nil
}

// toOpenAIMessages converts conversation history into the OpenAI wire shape.
// Assistant tool requests and tool observations round-trip through their
// respective fields so the model sees its own prior calls.
func toOpenAIMessages(system string, history []datatypes.Message) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: system,
	})
	for _, m := range history {
		switch m.Role {
		case datatypes.RoleTool:
			msgs = append(msgs, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    m.Content,
				ToolCallID: m.ToolCallID,
				Name:       m.ToolName,
			})
		case datatypes.RoleAssistant:
			cm := openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: m.Content,
			}
			for _, tc := range m.ToolCalls {
				cm.ToolCalls = append(cm.ToolCalls, openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: tc.Arguments,
					},
				})
			}
			msgs = append(msgs, cm)
		default:
			msgs = append(msgs, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleUser,
				Content: m.Content,
			})
		}
	}
	return msgs
}

func toOpenAITools(tools []ToolDefinition) []openai.Tool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return out
}

// Decide implements the DecisionClient interface.
//
// # Description
//
// Streams one decision round. Text deltas are forwarded to the callback as
// they arrive; tool-call deltas are accumulated by index until the stream
// closes. A decision carries tool calls when the model emitted any,
// otherwise it carries the accumulated answer text.
func (o *OpenAIClient) Decide(ctx context.Context, system string, history []datatypes.Message,
	tools []ToolDefinition, callback StreamCallback) (Decision, error) {

	slog.Debug("Requesting decision via OpenAI", "model", o.model, "history_len", len(history))

	req := openai.ChatCompletionRequest{
		Model:    o.model,
		Messages: toOpenAIMessages(system, history),
		Tools:    toOpenAITools(tools),
		Stream:   true,
	}
	if o.params.Temperature != nil {
		req.Temperature = *o.params.Temperature
	}
	if o.params.MaxTokens != nil {
		req.MaxCompletionTokens = *o.params.MaxTokens
	}
	if o.params.TopP != nil {
		req.TopP = *o.params.TopP
	}
	if len(o.params.Stop) > 0 {
		req.Stop = o.params.Stop
	}

	stream, err := o.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		slog.Error("OpenAI API call failed", "error", err)
		return Decision{}, fmt.Errorf("OpenAI API call failed: %w", err)
	}
	defer stream.Close()

	var answer strings.Builder
	var calls []datatypes.ToolCall
	// Tool calls arrive as fragments keyed by index: the first fragment
	// carries the id and name, later fragments append argument text.
	callIndex := make(map[int]int)

	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			slog.Error("OpenAI stream receive failed", "error", recvErr)
			return Decision{}, fmt.Errorf("OpenAI stream receive failed: %w", recvErr)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta

		if delta.Content != "" {
			answer.WriteString(delta.Content)
			if callback != nil {
				if cbErr := callback(StreamEvent{Type: StreamEventToken, Content: delta.Content}); cbErr != nil {
					return Decision{}, fmt.Errorf("stream callback aborted: %w", cbErr)
				}
			}
		}

		for _, tc := range delta.ToolCalls {
			idx := 0
			if tc.Index != nil {
				idx = *tc.Index
			}
			pos, seen := callIndex[idx]
			if !seen {
				calls = append(calls, datatypes.ToolCall{})
				pos = len(calls) - 1
				callIndex[idx] = pos
			}
			if tc.ID != "" {
				calls[pos].ID = tc.ID
			}
			if tc.Function.Name != "" {
				calls[pos].Name = tc.Function.Name
			}
			calls[pos].Arguments += tc.Function.Arguments
		}
	}

	if len(calls) > 0 {
		slog.Debug("OpenAI requested tool calls", "count", len(calls))
		return Decision{Answer: answer.String(), ToolCalls: calls}, nil
	}
	return Decision{Answer: answer.String()}, nil
}
