// Copyright (C) 2025 Rutopia (dev@rutopia.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// This file defines the client-facing wire protocol spoken over the chat
// WebSocket. One user message produces, in emission order: thinking_start,
// zero or more token chunks, thinking_end, zero or more tool_start/tool_end
// pairs, exactly one message, optionally one experiences payload, and
// exactly one of done or error.
package datatypes

// =============================================================================
// Wire Message Kinds
// =============================================================================

const (
	// WSThinkingStart signals the oracle began a decision round.
	WSThinkingStart = "thinking_start"

	// WSToken carries one streamed text chunk. Concatenating all token
	// chunks of a turn reconstructs the decision text in order.
	WSToken = "token"

	// WSThinkingEnd signals the oracle finished a decision round.
	WSThinkingEnd = "thinking_end"

	// WSToolStart announces a tool dispatch with a human-readable label.
	WSToolStart = "tool_start"

	// WSToolEnd announces completion of the matching tool dispatch.
	WSToolEnd = "tool_end"

	// WSMessageFinal carries the complete final answer text.
	WSMessageFinal = "message"

	// WSExperiences carries the turn's new result set for the map view.
	// Sent only when the result set changed relative to the turn start.
	WSExperiences = "experiences"

	// WSDone terminates a successful turn.
	WSDone = "done"

	// WSError terminates a failed turn, or reports a recoverable protocol
	// error without terminating the connection.
	WSError = "error"
)

// =============================================================================
// Wire Envelopes
// =============================================================================

// ChatRequest is the single message shape clients send.
//
// # Description
//
// The protocol is request/response per connection: a new ChatRequest is only
// read after the prior turn signalled done or error.
type ChatRequest struct {
	Content string `json:"content"`
}

// WSMessage is the envelope for every server-to-client wire message.
//
// # Fields
//
//   - Type: One of the WS* kind constants above.
//   - Content: Token chunk or final answer text (token, message).
//   - Tool: Tool name (tool_start, tool_end).
//   - Message: Human-readable label or error text (tool_start, error).
//   - Data: Result set payload (experiences).
//
// # Limitations
//
//   - Fields not applicable to a kind are omitted from the JSON entirely.
type WSMessage struct {
	Type    string       `json:"type"`
	Content string       `json:"content,omitempty"`
	Tool    string       `json:"tool,omitempty"`
	Message string       `json:"message,omitempty"`
	Data    []Experience `json:"data,omitempty"`
}

// =============================================================================
// Constructors
// =============================================================================

// NewThinkingStart builds a thinking_start wire message.
func NewThinkingStart() WSMessage {
	return WSMessage{Type: WSThinkingStart}
}

// NewToken builds a token wire message for one streamed chunk.
func NewToken(chunk string) WSMessage {
	return WSMessage{Type: WSToken, Content: chunk}
}

// NewThinkingEnd builds a thinking_end wire message.
func NewThinkingEnd() WSMessage {
	return WSMessage{Type: WSThinkingEnd}
}

// NewToolStart builds a tool_start wire message with its display label.
func NewToolStart(tool, label string) WSMessage {
	return WSMessage{Type: WSToolStart, Tool: tool, Message: label}
}

// NewToolEnd builds a tool_end wire message.
func NewToolEnd(tool string) WSMessage {
	return WSMessage{Type: WSToolEnd, Tool: tool}
}

// NewFinalMessage builds the message wire message with the final answer.
func NewFinalMessage(content string) WSMessage {
	return WSMessage{Type: WSMessageFinal, Content: content}
}

// NewExperiences builds the experiences wire message.
func NewExperiences(data []Experience) WSMessage {
	return WSMessage{Type: WSExperiences, Data: data}
}

// NewDone builds the done wire message.
func NewDone() WSMessage {
	return WSMessage{Type: WSDone}
}

// NewError builds an error wire message.
func NewError(message string) WSMessage {
	return WSMessage{Type: WSError, Message: message}
}
