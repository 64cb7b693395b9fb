// Copyright (C) 2025 Rutopia (dev@rutopia.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// This file contains the conversation types shared by the session store,
// the agent loop and the decision-oracle clients. For the client-facing
// wire protocol, see wire.go.
package datatypes

import "reflect"

// =============================================================================
// Roles
// =============================================================================

const (
	// RoleUser marks a message typed by the end user.
	RoleUser = "user"

	// RoleAssistant marks a message produced by the decision oracle,
	// either final text or a set of requested tool calls.
	RoleAssistant = "assistant"

	// RoleTool marks a tool result (or tool-level error) folded back into
	// the history for the oracle's next decision round.
	RoleTool = "tool"
)

// =============================================================================
// Conversation Types
// =============================================================================

// ToolCall is one action the decision oracle requested.
//
// # Fields
//
//   - ID: Correlation id assigned by the oracle; echoed on the tool result.
//   - Name: Registered tool name (see tools.Registry).
//   - Arguments: Raw JSON arguments exactly as the oracle produced them.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Message is one entry in a session's conversation history.
//
// # Description
//
// Message is the unit of history the agent loop appends and the session
// store persists. Assistant messages may carry ToolCalls when the oracle
// requested actions instead of (or before) answering; tool messages carry
// the ToolCallID they answer plus the tool name for folding.
//
// # Limitations
//
//   - Content may be empty on assistant messages that only request tools.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolName   string     `json:"tool_name,omitempty"`
}

// CloneMessages returns an independent deep copy of a message history.
//
// # Description
//
// Used by the session store to guarantee copy-on-read / copy-on-write
// isolation: no caller ever holds a reference into stored state.
//
// # Inputs
//
//   - messages: History to copy. May be nil.
//
// # Outputs
//
//   - []Message: A fresh slice with fresh ToolCalls slices. Never aliases
//     the input. Nil input yields an empty non-nil slice.
func CloneMessages(messages []Message) []Message {
	out := make([]Message, len(messages))
	copy(out, messages)
	for i := range out {
		if len(messages[i].ToolCalls) > 0 {
			out[i].ToolCalls = make([]ToolCall, len(messages[i].ToolCalls))
			copy(out[i].ToolCalls, messages[i].ToolCalls)
		}
	}
	return out
}

// CloneExperiences returns an independent deep copy of a result set.
//
// # Outputs
//
//   - []Experience: A fresh slice with fresh Highlights slices and fresh
//     optional-field pointers, so writing through a pointer on the copy
//     never reaches the original. Nil input yields an empty non-nil slice.
func CloneExperiences(results []Experience) []Experience {
	out := make([]Experience, len(results))
	copy(out, results)
	for i := range out {
		if len(results[i].Highlights) > 0 {
			out[i].Highlights = make([]string, len(results[i].Highlights))
			copy(out[i].Highlights, results[i].Highlights)
		}
		out[i].Duration = clonePtr(results[i].Duration)
		out[i].Destination = clonePtr(results[i].Destination)
		out[i].Type = clonePtr(results[i].Type)
		out[i].Intensity = clonePtr(results[i].Intensity)
		out[i].FamilyFriendly = clonePtr(results[i].FamilyFriendly)
		out[i].IncludesFood = clonePtr(results[i].IncludesFood)
		out[i].IncludesTransport = clonePtr(results[i].IncludesTransport)
		out[i].Similarity = clonePtr(results[i].Similarity)
	}
	return out
}

// clonePtr copies the pointed-to value into a fresh allocation.
func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// ExperiencesEqual reports whether two result sets carry the same content.
//
// # Description
//
// Pointer fields are compared by pointed-to value, not by address, so two
// independently parsed copies of the same payload compare equal. Nil and
// empty slices are treated as the same (absent) result set.
func ExperiencesEqual(a, b []Experience) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	return reflect.DeepEqual(a, b)
}
