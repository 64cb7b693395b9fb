// Copyright (C) 2025 Rutopia (dev@rutopia.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package agent

import (
	"fmt"
	"strings"

	"github.com/rutopia/chat-orchestrator/services/orchestrator/datatypes"
)

// Sink delivers one wire message to the client.
//
// A non-nil return (typically a closed connection) propagates up and aborts
// the turn.
type Sink func(datatypes.WSMessage) error

// Translator converts loop events into the client wire protocol.
//
// # Description
//
// One translator serves exactly one turn. It forwards streaming events as
// they happen, accumulates token text as a fallback source for the final
// message, and guarantees the terminal invariant: exactly one of done or
// error ends the turn, never both, never more than one.
//
// # Thread Safety
//
// Not safe for concurrent use. The turn's goroutine owns it.
type Translator struct {
	sink     Sink
	tokens   strings.Builder
	terminal bool
}

// NewTranslator creates a translator writing to the given sink.
func NewTranslator(sink Sink) *Translator {
	return &Translator{sink: sink}
}

// Emit translates one loop event into its wire message.
//
// # Description
//
// The switch is exhaustive over the closed event union; an unknown kind is
// a programming error and returns one.
func (t *Translator) Emit(ev Event) error {
	switch ev.Kind {
	case EventDecisionStart:
		// Each decision round restarts the token accumulator so the
		// fallback only ever reflects the latest round.
		t.tokens.Reset()
		return t.sink(datatypes.NewThinkingStart())
	case EventToken:
		t.tokens.WriteString(ev.Token)
		return t.sink(datatypes.NewToken(ev.Token))
	case EventDecisionEnd:
		return t.sink(datatypes.NewThinkingEnd())
	case EventToolStart:
		return t.sink(datatypes.NewToolStart(ev.Tool, ev.Label))
	case EventToolEnd:
		return t.sink(datatypes.NewToolEnd(ev.Tool))
	default:
		return fmt.Errorf("unknown loop event kind: %q", ev.Kind)
	}
}

// Finish ends a successful turn.
//
// # Description
//
// Sends the final message (falling back to the accumulated token text when
// the outcome carries no answer), the experiences payload when the result
// set changed this turn, and the done terminal. No-op if the turn already
// terminated.
func (t *Translator) Finish(outcome Outcome) error {
	if t.terminal {
		return nil
	}
	t.terminal = true

	answer := outcome.Answer
	if answer == "" {
		answer = t.tokens.String()
	}
	if err := t.sink(datatypes.NewFinalMessage(answer)); err != nil {
		return err
	}

	if outcome.ResultsChanged {
		if err := t.sink(datatypes.NewExperiences(outcome.Session.LastResults)); err != nil {
			return err
		}
	}

	return t.sink(datatypes.NewDone())
}

// Fail ends a failed turn with a single error terminal.
//
// No-op if the turn already terminated.
func (t *Translator) Fail(message string) error {
	if t.terminal {
		return nil
	}
	t.terminal = true
	return t.sink(datatypes.NewError(message))
}
