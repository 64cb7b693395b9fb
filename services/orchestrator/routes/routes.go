// Copyright (C) 2025 Rutopia (dev@rutopia.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rutopia/chat-orchestrator/services/orchestrator/agent"
	"github.com/rutopia/chat-orchestrator/services/orchestrator/handlers"
	"github.com/rutopia/chat-orchestrator/services/orchestrator/middleware"
	"github.com/rutopia/chat-orchestrator/services/orchestrator/observability"
	"github.com/rutopia/chat-orchestrator/services/orchestrator/session"
)

func SetupRoutes(router *gin.Engine, store *session.Store, loop *agent.Loop,
	metrics *observability.ChatMetrics, adminToken string) {

	router.GET("/", handlers.HealthCheck(store))
	router.GET("/health", handlers.HealthCheck(store))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// The conversational endpoint. The path segment is the session id; a
	// fresh id is minted when the segment is empty.
	router.GET("/ws/chat/:sessionId", handlers.HandleChatWebSocket(store, loop, metrics))

	// API version 1 group, guarded when an admin token is configured
	v1 := router.Group("/v1")
	v1.Use(middleware.AdminAuth(adminToken))
	{
		// Session administration routes
		sessions := v1.Group("/sessions")
		{
			sessions.GET("", handlers.ListSessions(store))
			sessions.DELETE("/:sessionId", handlers.DeleteSession(store))
		}
	}
}
