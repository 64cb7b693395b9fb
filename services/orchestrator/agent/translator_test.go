// Copyright (C) 2025 Rutopia (dev@rutopia.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package agent

import (
	"errors"
	"testing"

	"github.com/rutopia/chat-orchestrator/services/orchestrator/datatypes"
	"github.com/rutopia/chat-orchestrator/services/orchestrator/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectSink(sent *[]datatypes.WSMessage) Sink {
	return func(msg datatypes.WSMessage) error {
		*sent = append(*sent, msg)
		return nil
	}
}

func TestTranslator_EventMapping(t *testing.T) {
	var sent []datatypes.WSMessage
	tr := NewTranslator(collectSink(&sent))

	events := []Event{
		{Kind: EventDecisionStart},
		{Kind: EventToken, Token: "Hola"},
		{Kind: EventToken, Token: " viajero"},
		{Kind: EventDecisionEnd},
		{Kind: EventToolStart, Tool: "search_experiences", Label: "🔍 Buscando experiencias..."},
		{Kind: EventToolEnd, Tool: "search_experiences"},
	}
	for _, ev := range events {
		require.NoError(t, tr.Emit(ev))
	}

	require.Len(t, sent, 6)
	assert.Equal(t, datatypes.WSThinkingStart, sent[0].Type)
	assert.Equal(t, datatypes.WSToken, sent[1].Type)
	assert.Equal(t, "Hola", sent[1].Content)
	assert.Equal(t, " viajero", sent[2].Content)
	assert.Equal(t, datatypes.WSThinkingEnd, sent[3].Type)
	assert.Equal(t, datatypes.WSToolStart, sent[4].Type)
	assert.Equal(t, "search_experiences", sent[4].Tool)
	assert.Equal(t, "🔍 Buscando experiencias...", sent[4].Message)
	assert.Equal(t, datatypes.WSToolEnd, sent[5].Type)
}

func TestTranslator_UnknownEventKind(t *testing.T) {
	var sent []datatypes.WSMessage
	tr := NewTranslator(collectSink(&sent))

	err := tr.Emit(Event{Kind: EventKind("surprise")})
	require.Error(t, err)
	assert.Empty(t, sent)
}

func TestTranslator_FinishWithChangedResults(t *testing.T) {
	var sent []datatypes.WSMessage
	tr := NewTranslator(collectSink(&sent))

	results := []datatypes.Experience{{ID: "exp-1", Name: "Cenote Azul"}}
	require.NoError(t, tr.Finish(Outcome{
		Session:        session.Session{LastResults: results},
		Answer:         "Encontré una opción.",
		ResultsChanged: true,
	}))

	require.Len(t, sent, 3)
	assert.Equal(t, datatypes.WSMessageFinal, sent[0].Type)
	assert.Equal(t, "Encontré una opción.", sent[0].Content)
	assert.Equal(t, datatypes.WSExperiences, sent[1].Type)
	require.Len(t, sent[1].Data, 1)
	assert.Equal(t, "exp-1", sent[1].Data[0].ID)
	assert.Equal(t, datatypes.WSDone, sent[2].Type)
}

func TestTranslator_FinishWithoutResultChange(t *testing.T) {
	var sent []datatypes.WSMessage
	tr := NewTranslator(collectSink(&sent))

	require.NoError(t, tr.Finish(Outcome{
		Session: session.Session{LastResults: []datatypes.Experience{{ID: "exp-old"}}},
		Answer:  "Ya te lo mostré.",
	}))

	require.Len(t, sent, 2)
	assert.Equal(t, datatypes.WSMessageFinal, sent[0].Type)
	assert.Equal(t, datatypes.WSDone, sent[1].Type)
}

// TestTranslator_FinishFallsBackToTokens verifies the final message is
// reconstructed from streamed tokens when the outcome carries no answer.
func TestTranslator_FinishFallsBackToTokens(t *testing.T) {
	var sent []datatypes.WSMessage
	tr := NewTranslator(collectSink(&sent))

	require.NoError(t, tr.Emit(Event{Kind: EventDecisionStart}))
	require.NoError(t, tr.Emit(Event{Kind: EventToken, Token: "Hola "}))
	require.NoError(t, tr.Emit(Event{Kind: EventToken, Token: "viajero"}))
	require.NoError(t, tr.Emit(Event{Kind: EventDecisionEnd}))
	require.NoError(t, tr.Finish(Outcome{}))

	final := sent[len(sent)-2]
	require.Equal(t, datatypes.WSMessageFinal, final.Type)
	assert.Equal(t, "Hola viajero", final.Content)
}

// TestTranslator_TokensResetPerRound verifies a later decision round
// discards the previous round's accumulated text.
func TestTranslator_TokensResetPerRound(t *testing.T) {
	var sent []datatypes.WSMessage
	tr := NewTranslator(collectSink(&sent))

	require.NoError(t, tr.Emit(Event{Kind: EventDecisionStart}))
	require.NoError(t, tr.Emit(Event{Kind: EventToken, Token: "round one"}))
	require.NoError(t, tr.Emit(Event{Kind: EventDecisionEnd}))
	require.NoError(t, tr.Emit(Event{Kind: EventDecisionStart}))
	require.NoError(t, tr.Emit(Event{Kind: EventToken, Token: "round two"}))
	require.NoError(t, tr.Emit(Event{Kind: EventDecisionEnd}))
	require.NoError(t, tr.Finish(Outcome{}))

	final := sent[len(sent)-2]
	assert.Equal(t, "round two", final.Content)
}

// TestTranslator_ExactlyOneTerminal verifies the done/error terminal fires
// at most once regardless of call order.
func TestTranslator_ExactlyOneTerminal(t *testing.T) {
	var sent []datatypes.WSMessage
	tr := NewTranslator(collectSink(&sent))

	require.NoError(t, tr.Finish(Outcome{Answer: "listo"}))
	require.NoError(t, tr.Finish(Outcome{Answer: "otra vez"}))
	require.NoError(t, tr.Fail("boom"))

	terminals := 0
	for _, msg := range sent {
		if msg.Type == datatypes.WSDone || msg.Type == datatypes.WSError {
			terminals++
		}
	}
	assert.Equal(t, 1, terminals)
}

func TestTranslator_FailThenFinishIsNoop(t *testing.T) {
	var sent []datatypes.WSMessage
	tr := NewTranslator(collectSink(&sent))

	require.NoError(t, tr.Fail("se cayó todo"))
	require.NoError(t, tr.Finish(Outcome{Answer: "tarde"}))

	require.Len(t, sent, 1)
	assert.Equal(t, datatypes.WSError, sent[0].Type)
	assert.Equal(t, "se cayó todo", sent[0].Message)
}

func TestTranslator_SinkErrorPropagates(t *testing.T) {
	sentinel := errors.New("write failed")
	tr := NewTranslator(func(datatypes.WSMessage) error { return sentinel })

	assert.ErrorIs(t, tr.Emit(Event{Kind: EventDecisionStart}), sentinel)
}
