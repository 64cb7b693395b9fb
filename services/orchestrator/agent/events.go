// Copyright (C) 2025 Rutopia (dev@rutopia.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package agent runs the decide-act-observe control loop behind one chat
// turn, and translates the loop's internal events into the client-facing
// wire protocol.
package agent

// EventKind discriminates the loop's internal event union.
//
// The union is closed: the translator switches exhaustively over these
// kinds and treats anything else as a programming error.
type EventKind string

const (
	// EventDecisionStart marks the beginning of one oracle decision round.
	EventDecisionStart EventKind = "decision_start"

	// EventToken carries one streamed text chunk from the current round.
	EventToken EventKind = "token"

	// EventDecisionEnd marks the end of one oracle decision round.
	EventDecisionEnd EventKind = "decision_end"

	// EventToolStart marks the dispatch of one requested tool call.
	EventToolStart EventKind = "tool_start"

	// EventToolEnd marks the completion of the matching tool call.
	EventToolEnd EventKind = "tool_end"
)

// Event is one internal loop event.
//
// # Fields
//
//   - Kind: Event discriminator.
//   - Token: Text chunk. Set only for EventToken.
//   - Tool: Tool name. Set for EventToolStart and EventToolEnd.
//   - Label: Human-readable progress label. Set only for EventToolStart.
type Event struct {
	Kind  EventKind
	Token string
	Tool  string
	Label string
}

// EmitFunc receives loop events in emission order.
//
// Returning a non-nil error aborts the turn (e.g., the client disconnected
// mid-stream).
type EmitFunc func(Event) error
