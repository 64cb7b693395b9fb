// Copyright (C) 2025 Rutopia (dev@rutopia.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package tools implements the agent's capabilities against the experience
// catalog: semantic search and detail lookup, plus the registry and invoker
// the agent loop drives them through.
package tools

import (
	"context"

	"go.opentelemetry.io/otel"

	"github.com/rutopia/chat-orchestrator/services/llm"
)

var toolsTracer = otel.Tracer("rutopia.orchestrator.tools")

// Registered tool names. The decision oracle requests tools by these names.
const (
	ToolSearch  = "search_experiences"
	ToolDetails = "get_experience_details"
)

// Client-facing progress labels, sent in the tool_start wire event.
const (
	LabelSearch  = "🔍 Buscando experiencias..."
	LabelDetails = "📋 Obteniendo detalles..."
	LabelDefault = "⏳ Procesando..."
)

// Tool is one capability the agent loop can invoke.
//
// # Description
//
// A tool receives the oracle's raw JSON arguments and returns a JSON string
// that is folded back into the conversation as a tool message. Invoke should
// return an error only for operational failures (backend down, bad
// arguments); the invoker encodes those as error results rather than
// aborting the turn.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use across sessions.
type Tool interface {
	Name() string
	Label() string
	Definition() llm.ToolDefinition
	Invoke(ctx context.Context, arguments string) (string, error)
}

// Registry holds the fixed set of tools offered to the decision oracle.
//
// # Description
//
// The registry is populated once at startup and read-only afterwards, so it
// needs no locking. Definitions() preserves registration order for a stable
// oracle-facing tool list.
type Registry struct {
	tools map[string]Tool
	order []string
}

// NewRegistry creates a registry holding the given tools.
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		if _, dup := r.tools[t.Name()]; dup {
			continue
		}
		r.tools[t.Name()] = t
		r.order = append(r.order, t.Name())
	}
	return r
}

// Get returns the named tool, or false if no such tool is registered.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Label returns the progress label for the named tool.
//
// Unknown names get the generic processing label so the client always has
// something to show.
func (r *Registry) Label(name string) string {
	if t, ok := r.tools[name]; ok {
		return t.Label()
	}
	return LabelDefault
}

// Definitions lists every registered tool in registration order.
func (r *Registry) Definitions() []llm.ToolDefinition {
	defs := make([]llm.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].Definition())
	}
	return defs
}
