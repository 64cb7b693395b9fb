// Copyright (C) 2025 Rutopia (dev@rutopia.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package validation provides input validation utilities for user-supplied
// identifiers.
//
// Session ids arrive as URL path segments chosen by the client (the chat
// widget generates them). They end up as map keys, log attributes, and
// admin API path segments, so they must stay within a conservative
// character set to prevent log injection and absurd keys.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// MaxSessionIDLength bounds session id size. UUIDs are 36 characters;
// the bound leaves room for prefixed client schemes.
const MaxSessionIDLength = 64

// sessionIDPattern matches valid session identifiers.
// Allows: letters, digits, hyphens, underscores.
var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidateSessionID validates a client-supplied session identifier.
//
// # Description
//
// Checks the id against a conservative allowlist pattern. Empty ids are
// rejected; callers mint a fresh id for those rather than validating.
//
// # Inputs
//
//   - id: The candidate session id.
//
// # Outputs
//
//   - error: Non-nil with a reason when the id is unusable.
//
// # Examples
//
//	ValidateSessionID("550e8400-e29b-41d4-a716-446655440000") // nil
//	ValidateSessionID("widget_abc123")                        // nil
//	ValidateSessionID("../../etc/passwd")                     // error
func ValidateSessionID(id string) error {
	if id == "" {
		return fmt.Errorf("session id is empty")
	}
	if len(id) > MaxSessionIDLength {
		return fmt.Errorf("session id exceeds %d characters", MaxSessionIDLength)
	}
	if strings.ContainsAny(id, "\n\r") {
		return fmt.Errorf("session id contains control characters")
	}
	if !sessionIDPattern.MatchString(id) {
		return fmt.Errorf("session id contains invalid characters")
	}
	return nil
}
