package llm

import (
	"encoding/json"
	"testing"

	"github.com/sashabaranov/go-openai"

	"github.com/rutopia/chat-orchestrator/services/orchestrator/datatypes"
)

func TestToOpenAIMessages_SystemFirst(t *testing.T) {
	msgs := toOpenAIMessages("directive", []datatypes.Message{
		{Role: datatypes.RoleUser, Content: "hola"},
	})

	if len(msgs) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Role != openai.ChatMessageRoleSystem || msgs[0].Content != "directive" {
		t.Errorf("Expected system directive first, got %+v", msgs[0])
	}
	if msgs[1].Role != openai.ChatMessageRoleUser {
		t.Errorf("Expected user role, got %q", msgs[1].Role)
	}
}

func TestToOpenAIMessages_ToolRoundTrip(t *testing.T) {
	history := []datatypes.Message{
		{Role: datatypes.RoleUser, Content: "busco cenotes"},
		{Role: datatypes.RoleAssistant, ToolCalls: []datatypes.ToolCall{
			{ID: "call-1", Name: "search_experiences", Arguments: `{"semantic_query":"cenotes"}`},
		}},
		{Role: datatypes.RoleTool, Content: `[]`, ToolCallID: "call-1", ToolName: "search_experiences"},
	}

	msgs := toOpenAIMessages("directive", history)
	if len(msgs) != 4 {
		t.Fatalf("Expected 4 messages, got %d", len(msgs))
	}

	assistant := msgs[2]
	if assistant.Role != openai.ChatMessageRoleAssistant {
		t.Fatalf("Expected assistant role, got %q", assistant.Role)
	}
	if len(assistant.ToolCalls) != 1 {
		t.Fatalf("Expected 1 tool call, got %d", len(assistant.ToolCalls))
	}
	if assistant.ToolCalls[0].ID != "call-1" {
		t.Errorf("Expected call id preserved, got %q", assistant.ToolCalls[0].ID)
	}
	if assistant.ToolCalls[0].Type != openai.ToolTypeFunction {
		t.Errorf("Expected function tool type, got %q", assistant.ToolCalls[0].Type)
	}
	if assistant.ToolCalls[0].Function.Name != "search_experiences" {
		t.Errorf("Expected function name preserved, got %q", assistant.ToolCalls[0].Function.Name)
	}

	tool := msgs[3]
	if tool.Role != openai.ChatMessageRoleTool {
		t.Fatalf("Expected tool role, got %q", tool.Role)
	}
	if tool.ToolCallID != "call-1" || tool.Name != "search_experiences" {
		t.Errorf("Expected tool observation linked to its call, got %+v", tool)
	}
}

func TestToOpenAIMessages_UnknownRoleBecomesUser(t *testing.T) {
	msgs := toOpenAIMessages("directive", []datatypes.Message{
		{Role: "narrator", Content: "mientras tanto"},
	})

	if msgs[1].Role != openai.ChatMessageRoleUser {
		t.Errorf("Expected unknown role mapped to user, got %q", msgs[1].Role)
	}
}

func TestToOpenAITools(t *testing.T) {
	if got := toOpenAITools(nil); got != nil {
		t.Errorf("Expected nil for no tools, got %v", got)
	}

	defs := []ToolDefinition{{
		Name:        "search_experiences",
		Description: "Busca experiencias",
		Parameters:  json.RawMessage(`{"type":"object"}`),
	}}

	out := toOpenAITools(defs)
	if len(out) != 1 {
		t.Fatalf("Expected 1 tool, got %d", len(out))
	}
	if out[0].Type != openai.ToolTypeFunction {
		t.Errorf("Expected function type, got %q", out[0].Type)
	}
	if out[0].Function.Name != "search_experiences" {
		t.Errorf("Expected name preserved, got %q", out[0].Function.Name)
	}
}

func TestDecision_RequestsTools(t *testing.T) {
	if (Decision{Answer: "hola"}).RequestsTools() {
		t.Error("Expected plain answer to request no tools")
	}
	if !(Decision{ToolCalls: []datatypes.ToolCall{{Name: "x"}}}).RequestsTools() {
		t.Error("Expected decision with calls to request tools")
	}
}
