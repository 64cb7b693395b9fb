// Copyright (C) 2025 Rutopia (dev@rutopia.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rutopia/chat-orchestrator/services/llm"
	"github.com/rutopia/chat-orchestrator/services/orchestrator/datatypes"
	"github.com/rutopia/chat-orchestrator/services/orchestrator/session"
	"github.com/rutopia/chat-orchestrator/services/orchestrator/tools"
)

// MaxRounds caps decision rounds per turn. A well-behaved turn uses one or
// two; the cap stops runaway oracle/tool ping-pong.
const MaxRounds = 8

// exhaustedFallback is the answer used when the round cap is hit and the
// oracle never produced any text.
const exhaustedFallback = "Lo siento, no pude completar tu solicitud. ¿Puedes intentar de nuevo con otras palabras?"

// Outcome is the result of one successfully completed turn.
//
// # Fields
//
//   - Session: The updated session state (history grown by this turn,
//     LastResults possibly replaced). An independent copy, ready to Write.
//   - Answer: The complete final answer text. Never empty.
//   - ResultsChanged: True when the session's result set differs, by
//     content, from what it held at the start of the turn. A re-search
//     that reproduces the same results does not count as a change.
type Outcome struct {
	Session        session.Session
	Answer         string
	ResultsChanged bool
}

// Loop is the decide-act-observe control loop for one chat turn.
//
// # Description
//
// Each turn alternates decision rounds against the oracle with invocations
// of whatever tools the oracle requested, folding every tool result (and
// every tool failure) back into the history as a tool message. The loop
// mutates only its own session copy; persisting the outcome is the
// caller's job.
//
// # Thread Safety
//
// A Loop is stateless and safe for concurrent use; per-turn state lives in
// Run's locals.
type Loop struct {
	oracle  llm.DecisionClient
	invoker *tools.Invoker
}

// NewLoop creates a loop over the given oracle and tool invoker.
func NewLoop(oracle llm.DecisionClient, invoker *tools.Invoker) *Loop {
	return &Loop{oracle: oracle, invoker: invoker}
}

// Run executes one full turn.
//
// # Description
//
// Appends the user message, then runs decision rounds until the oracle
// answers without requesting tools or MaxRounds is reached. Tool failures
// are folded, not fatal; oracle failures, emit failures and a final
// decision carrying neither answer text nor streamed tokens abort the
// turn. On the round cap, the turn degrades to the text streamed so far,
// or a fixed apology when there is none.
//
// # Inputs
//
//   - ctx: Context for cancellation and timeout.
//   - sess: Session state copy. Mutated freely; never written back here.
//   - userContent: The user's message text.
//   - emit: Event observer. A non-nil return aborts the turn.
//
// # Outputs
//
//   - Outcome: The completed turn. Valid only when error is nil.
//   - error: Non-nil when the oracle failed or emit aborted the turn.
func (l *Loop) Run(ctx context.Context, sess session.Session, userContent string, emit EmitFunc) (Outcome, error) {
	sess.History = append(sess.History, datatypes.Message{
		Role:    datatypes.RoleUser,
		Content: userContent,
	})

	startResults := datatypes.CloneExperiences(sess.LastResults)
	var lastStreamed string

	for round := 0; round < MaxRounds; round++ {
		if err := emit(Event{Kind: EventDecisionStart}); err != nil {
			return Outcome{}, err
		}

		var roundStreamed strings.Builder
		var emitErr error
		decision, err := l.oracle.Decide(ctx,
			SystemPrompt(sess.LastResults),
			sess.History,
			l.invoker.Registry().Definitions(),
			func(ev llm.StreamEvent) error {
				if ev.Type != llm.StreamEventToken {
					return nil
				}
				roundStreamed.WriteString(ev.Content)
				if cbErr := emit(Event{Kind: EventToken, Token: ev.Content}); cbErr != nil {
					emitErr = cbErr
					return cbErr
				}
				return nil
			},
		)
		if emitErr != nil {
			return Outcome{}, emitErr
		}
		if err != nil {
			return Outcome{}, fmt.Errorf("decision round %d failed: %w", round+1, err)
		}

		if err := emit(Event{Kind: EventDecisionEnd}); err != nil {
			return Outcome{}, err
		}

		if !decision.RequestsTools() {
			answer := decision.Answer
			if strings.TrimSpace(answer) == "" {
				answer = strings.TrimSpace(roundStreamed.String())
			}
			if answer == "" {
				return Outcome{}, fmt.Errorf("decision round %d produced neither answer text nor tokens", round+1)
			}
			sess.History = append(sess.History, datatypes.Message{
				Role:    datatypes.RoleAssistant,
				Content: answer,
			})
			return Outcome{
				Session:        sess,
				Answer:         answer,
				ResultsChanged: !datatypes.ExperiencesEqual(startResults, sess.LastResults),
			}, nil
		}

		if decision.Answer != "" {
			lastStreamed = decision.Answer
		} else if streamed := roundStreamed.String(); strings.TrimSpace(streamed) != "" {
			lastStreamed = streamed
		}

		sess.History = append(sess.History, datatypes.Message{
			Role:      datatypes.RoleAssistant,
			Content:   decision.Answer,
			ToolCalls: decision.ToolCalls,
		})

		for _, call := range decision.ToolCalls {
			if err := emit(Event{
				Kind:  EventToolStart,
				Tool:  call.Name,
				Label: l.invoker.Registry().Label(call.Name),
			}); err != nil {
				return Outcome{}, err
			}

			result := l.invoker.Invoke(ctx, call)

			if experiences, ok := foldSearchResults(result); ok {
				sess.LastResults = experiences
			}

			sess.History = append(sess.History, datatypes.Message{
				Role:       datatypes.RoleTool,
				Content:    result,
				ToolCallID: call.ID,
				ToolName:   call.Name,
			})

			if err := emit(Event{Kind: EventToolEnd, Tool: call.Name}); err != nil {
				return Outcome{}, err
			}
		}
	}

	slog.Warn("agent.loop: round cap reached, degrading to streamed text",
		"rounds", MaxRounds)

	answer := strings.TrimSpace(lastStreamed)
	if answer == "" {
		answer = exhaustedFallback
	}
	sess.History = append(sess.History, datatypes.Message{
		Role:    datatypes.RoleAssistant,
		Content: answer,
	})
	return Outcome{
		Session:        sess,
		Answer:         answer,
		ResultsChanged: !datatypes.ExperiencesEqual(startResults, sess.LastResults),
	}, nil
}

// foldSearchResults detects a search result payload and parses it.
//
// # Description
//
// A tool result replaces the session's result set exactly when it is a JSON
// array whose first element carries a "lat" key. Detail lookups, error
// payloads and empty arrays all fail the shape check and leave the result
// set untouched.
func foldSearchResults(result string) ([]datatypes.Experience, bool) {
	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(result), &raw); err != nil || len(raw) == 0 {
		return nil, false
	}

	var first map[string]json.RawMessage
	if err := json.Unmarshal(raw[0], &first); err != nil {
		return nil, false
	}
	if _, hasLat := first["lat"]; !hasLat {
		return nil, false
	}

	var experiences []datatypes.Experience
	if err := json.Unmarshal([]byte(result), &experiences); err != nil {
		return nil, false
	}
	return experiences, true
}
