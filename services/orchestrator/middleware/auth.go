// Copyright (C) 2025 Rutopia (dev@rutopia.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package middleware provides HTTP middleware for the orchestrator service.
//
// The chat WebSocket itself is open (the widget embeds on the public
// site), but the admin surface under /v1 exposes session listings and
// deletion and must not be reachable by arbitrary clients in shared
// deployments.
//
// # Authentication Flow
//
//	Request
//	   │
//	   ▼
//	AdminAuth
//	   │
//	   ├─► Extract token from "Authorization: Bearer <token>"
//	   │
//	   └─► Constant-time compare against the configured admin token
//	           │
//	           ▼
//	       Handler
//
// When no admin token is configured the middleware passes every
// request through. This keeps single-host development setups working
// without any auth infrastructure.
package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// AdminAuth creates a Gin middleware that guards admin routes with a
// static bearer token.
//
// # Description
//
// Extracts the bearer token from the Authorization header and compares
// it against the configured token in constant time. Requests with a
// missing or mismatched token are rejected with 401.
//
// An empty configured token disables the guard entirely.
//
// # Inputs
//
//   - token: The expected admin token. Empty disables authentication.
//
// # Outputs
//
//   - gin.HandlerFunc: Middleware ready for use with Gin
//
// # Examples
//
//	v1 := router.Group("/v1")
//	v1.Use(middleware.AdminAuth(cfg.AdminToken))
//
// # Thread Safety
//
// Thread-safe. The returned middleware can be used concurrently.
func AdminAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}

		presented := extractBearerToken(c)
		if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "unauthorized",
			})
			return
		}

		c.Next()
	}
}

// extractBearerToken extracts the token from the Authorization header.
//
// Expects "Bearer <token>"; the scheme is case-insensitive per
// RFC 7235. Returns empty string if the header is missing or
// malformed.
func extractBearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
