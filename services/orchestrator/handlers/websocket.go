// Copyright (C) 2025 Rutopia (dev@rutopia.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers implements the HTTP and WebSocket surface of the chat
// orchestrator.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rutopia/chat-orchestrator/pkg/validation"
	"github.com/rutopia/chat-orchestrator/services/orchestrator/agent"
	"github.com/rutopia/chat-orchestrator/services/orchestrator/datatypes"
	"github.com/rutopia/chat-orchestrator/services/orchestrator/observability"
	"github.com/rutopia/chat-orchestrator/services/orchestrator/session"
)

// Exact recoverable protocol error texts. Clients match on these strings.
const (
	errInvalidJSON    = "Invalid JSON format"
	errMissingContent = "Missing 'content' field"
)

// turnFailedMessage is the client-facing text for an aborted turn. Details
// stay in the server log.
const turnFailedMessage = "Lo siento, ocurrió un error procesando tu mensaje."

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024 * 1024,
	WriteBufferSize: 1024 * 1024,
}

// HandleChatWebSocket serves the conversational endpoint.
//
// # Description
//
// Upgrades the request, marks the session live for the lifetime of the
// connection, and serves turns strictly in sequence: one ChatRequest in,
// one full event sequence out, terminated by exactly one done or error.
// Malformed frames produce a recoverable error event and leave the
// connection open; an agent loop failure produces an error event and a
// 1011 close.
//
// # Inputs
//
//   - store: Session store; the turn's state is read before and written
//     after the loop, never during.
//   - loop: The agent control loop.
//   - metrics: Turn metrics. May be nil in tests.
//
// # Outputs
//
//   - gin.HandlerFunc: Handler for GET /ws/chat/:sessionId.
func HandleChatWebSocket(store *session.Store, loop *agent.Loop,
	metrics *observability.ChatMetrics) gin.HandlerFunc {

	return func(c *gin.Context) {
		sessionID := c.Param("sessionId")
		if err := validation.ValidateSessionID(sessionID); err != nil {
			// Unusable ids get a fresh one rather than an error; the widget
			// learns the effective id from its own URL on reconnect anyway.
			if sessionID != "" {
				slog.Warn("handlers.websocket: replacing invalid session id",
					"reason", err.Error())
			}
			sessionID = uuid.New().String()
		}

		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Error("handlers.websocket: failed to upgrade", "error", err)
			return
		}
		defer ws.Close()

		store.Connect(sessionID)
		defer store.Disconnect(sessionID)
		if metrics != nil {
			metrics.ConnectionOpened()
			defer metrics.ConnectionClosed()
		}
		slog.Info("handlers.websocket: client connected", "session_id", sessionID)

		for {
			_, raw, err := ws.ReadMessage()
			if err != nil {
				slog.Info("handlers.websocket: client disconnected",
					"session_id", sessionID, "reason", err.Error())
				return
			}

			var req datatypes.ChatRequest
			if err := json.Unmarshal(raw, &req); err != nil {
				if sendErr := ws.WriteJSON(datatypes.NewError(errInvalidJSON)); sendErr != nil {
					return
				}
				continue
			}
			if strings.TrimSpace(req.Content) == "" {
				if sendErr := ws.WriteJSON(datatypes.NewError(errMissingContent)); sendErr != nil {
					return
				}
				continue
			}

			if !runTurn(c, ws, store, loop, metrics, sessionID, req.Content) {
				return
			}
		}
	}
}

// runTurn executes one turn end to end. Returns false when the connection
// is no longer usable.
func runTurn(c *gin.Context, ws *websocket.Conn, store *session.Store,
	loop *agent.Loop, metrics *observability.ChatMetrics,
	sessionID, content string) bool {

	start := time.Now()

	// The sink is the only writer for the turn; a failed write poisons the
	// rest of the turn so nothing else is attempted on a dead connection.
	var writeFailed bool
	sink := func(msg datatypes.WSMessage) error {
		if writeFailed {
			return websocket.ErrCloseSent
		}
		if err := ws.WriteJSON(msg); err != nil {
			writeFailed = true
			slog.Warn("handlers.websocket: write failed",
				"session_id", sessionID, "error", err)
			return err
		}
		return nil
	}

	translator := agent.NewTranslator(sink)
	emit := func(ev agent.Event) error {
		if metrics != nil && ev.Kind == agent.EventToken {
			metrics.RecordToken()
		}
		return translator.Emit(ev)
	}

	sess := store.Read(sessionID)
	outcome, err := loop.Run(c.Request.Context(), sess, content, emit)
	if err != nil {
		slog.Error("handlers.websocket: turn failed",
			"session_id", sessionID, "error", err)
		if metrics != nil {
			metrics.RecordTurn(false, time.Since(start).Seconds())
		}
		if writeFailed {
			return false
		}
		// Session state is not written: a failed turn leaves the stored
		// history exactly as it was before the user message.
		_ = translator.Fail(turnFailedMessage)
		deadline := time.Now().Add(time.Second)
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "turn failed"),
			deadline)
		return false
	}

	store.Write(sessionID, outcome.Session)
	if metrics != nil {
		metrics.SetStoredSessions(store.Len())
	}

	if err := translator.Finish(outcome); err != nil {
		return false
	}
	if metrics != nil {
		metrics.RecordTurn(true, time.Since(start).Seconds())
	}
	return true
}
