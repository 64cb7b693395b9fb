// Copyright (C) 2025 Rutopia (dev@rutopia.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rutopia/chat-orchestrator/services/orchestrator/session"
)

// ListSessions returns an administrative snapshot of every stored session.
//
// # Description
//
// One row per session with turn count, last activity, and liveness, ordered
// by most recent activity. Serves GET /v1/sessions.
func ListSessions(store *session.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		infos := store.Snapshot()
		c.JSON(http.StatusOK, gin.H{
			"count":    len(infos),
			"sessions": infos,
		})
	}
}

// DeleteSession removes a stored session by id.
//
// # Description
//
// Serves DELETE /v1/sessions/:sessionId. Sessions with a live connection
// are refused with 409; deleting an unknown id succeeds (the end state is
// the same either way).
func DeleteSession(store *session.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.Param("sessionId")

		if err := store.Delete(sessionID); err != nil {
			if errors.Is(err, session.ErrSessionConnected) {
				c.JSON(http.StatusConflict, gin.H{
					"error": "session has a live connection",
				})
				return
			}
			slog.Error("handlers.sessions: delete failed",
				"session_id", sessionID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete session"})
			return
		}

		slog.Info("handlers.sessions: session deleted", "session_id", sessionID)
		c.JSON(http.StatusOK, gin.H{"status": "deleted", "session_id": sessionID})
	}
}
