// Copyright (C) 2025 Rutopia (dev@rutopia.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tools

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/rutopia/chat-orchestrator/services/orchestrator/datatypes"
)

// Invoker executes tool calls and shields the agent loop from tool failures.
//
// # Description
//
// Every outcome, including unknown tools and operational errors, comes back
// as a JSON string suitable for folding into the conversation as a tool
// message. A failed tool never aborts the turn: the oracle sees the error
// payload on its next decision round and can apologize or retry.
type Invoker struct {
	registry *Registry

	// onResult observes every invocation for metrics. May be nil.
	onResult func(tool string, success bool, elapsed time.Duration)
}

// NewInvoker creates an invoker over the given registry.
func NewInvoker(registry *Registry, onResult func(tool string, success bool, elapsed time.Duration)) *Invoker {
	return &Invoker{registry: registry, onResult: onResult}
}

// Registry returns the underlying tool registry.
func (iv *Invoker) Registry() *Registry {
	return iv.registry
}

// Invoke executes one tool call and returns its JSON result.
//
// # Inputs
//
//   - ctx: Context for cancellation and timeout.
//   - call: The oracle's requested call, arguments passed through verbatim.
//
// # Outputs
//
//   - string: JSON result on success, or a {"error": "..."} payload on any
//     failure. Never empty.
func (iv *Invoker) Invoke(ctx context.Context, call datatypes.ToolCall) string {
	start := time.Now()

	tool, ok := iv.registry.Get(call.Name)
	if !ok {
		slog.Warn("tools.invoker: unknown tool requested", "tool", call.Name)
		iv.observe(call.Name, false, start)
		return errorResult("unknown tool: " + call.Name)
	}

	result, err := tool.Invoke(ctx, call.Arguments)
	if err != nil {
		slog.Error("tools.invoker: tool invocation failed",
			"tool", call.Name, "error", err)
		iv.observe(call.Name, false, start)
		return errorResult(err.Error())
	}

	slog.Debug("tools.invoker: tool invocation succeeded",
		"tool", call.Name, "elapsed", time.Since(start).String())
	iv.observe(call.Name, true, start)
	return result
}

func (iv *Invoker) observe(tool string, success bool, start time.Time) {
	if iv.onResult != nil {
		iv.onResult(tool, success, time.Since(start))
	}
}

// errorResult encodes a message as the standard tool error payload.
func errorResult(message string) string {
	payload, err := json.Marshal(map[string]string{"error": message})
	if err != nil {
		return `{"error": "internal error"}`
	}
	return string(payload)
}
