// Copyright (C) 2025 Rutopia (dev@rutopia.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package session owns per-session conversational state.
//
// # Description
//
// The store keeps every session's history and last shown result set in
// memory, behind a single mutex, and hands out independent deep copies on
// every read and write. An agent turn may run for seconds while streaming;
// snapshot isolation lets concurrent turns on different sessions proceed
// independently and guarantees no reader ever observes a half-mutated
// session, even if a second connection shares the same session id.
//
// # Thread Safety
//
// All Store methods are safe for concurrent use. No method blocks beyond
// the O(copy-size) critical section.
package session

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rutopia/chat-orchestrator/services/orchestrator/datatypes"
)

// ErrSessionConnected is returned by Delete for sessions with a live connection.
var ErrSessionConnected = errors.New("session has a live connection")

// Session is one user's conversational state.
//
// # Description
//
// History is append-only within a session's lifetime (it only disappears on
// full eviction). LastResults reflects exactly the most recent successful
// search result set and is replaced wholesale once per turn; detail lookups
// and failed tool calls never touch it. The two fields always update
// together: Write replaces the whole session atomically.
//
// # Fields
//
//   - ID: Opaque session identifier taken from the connection path.
//   - History: Ordered conversation messages.
//   - LastResults: Experiences last shown to the user. May be empty.
//   - LastActive: Refreshed on every Write and Connect.
type Session struct {
	ID          string
	History     []datatypes.Message
	LastResults []datatypes.Experience
	LastActive  time.Time
}

// clone returns an independent deep copy of the session.
func (s Session) clone() Session {
	return Session{
		ID:          s.ID,
		History:     datatypes.CloneMessages(s.History),
		LastResults: datatypes.CloneExperiences(s.LastResults),
		LastActive:  s.LastActive,
	}
}

// Info is an administrative snapshot row for one session.
type Info struct {
	ID         string    `json:"session_id"`
	Turns      int       `json:"turns"`
	LastActive time.Time `json:"last_active"`
	Connected  bool      `json:"connected"`
}

// Store is the internally-synchronized keyed session store.
//
// # Description
//
// Sessions are created lazily on first Read or Write; liveness (Connect /
// Disconnect) is tracked separately from state so that Read and Write work
// for ids with no recorded connection. Eviction and access are serialized
// through the same mutex, so a reaper sweep can never race an in-flight
// Read or Write for the same id.
type Store struct {
	mu        sync.Mutex
	sessions  map[string]Session
	connected map[string]int
	now       func() time.Time
}

// NewStore creates an empty session store using the wall clock.
func NewStore() *Store {
	return &Store{
		sessions:  make(map[string]Session),
		connected: make(map[string]int),
		now:       time.Now,
	}
}

// NewStoreWithClock creates a store with an injectable clock for tests.
func NewStoreWithClock(now func() time.Time) *Store {
	s := NewStore()
	s.now = now
	return s
}

// Read returns an independent deep copy of the session.
//
// # Description
//
// If the id is unknown, an empty session (empty history, empty results) is
// created, stored and returned. Mutating the returned value never affects
// the stored session or any other reader's copy.
//
// # Inputs
//
//   - id: Session identifier. Created lazily if absent.
//
// # Outputs
//
//   - Session: Deep copy of the stored state.
func (st *Store) Read(id string) Session {
	st.mu.Lock()
	defer st.mu.Unlock()

	sess, ok := st.sessions[id]
	if !ok {
		sess = Session{
			ID:          id,
			History:     []datatypes.Message{},
			LastResults: []datatypes.Experience{},
			LastActive:  st.now(),
		}
		st.sessions[id] = sess
	}
	return sess.clone()
}

// Write atomically replaces the stored session with a deep copy of sess.
//
// # Description
//
// History and LastResults are replaced together under one lock acquisition;
// a concurrent Read sees either the old session or the new one, never a
// mixture. LastActive is refreshed to the store's clock regardless of the
// value in sess. The caller's copy of sess stays independent: further
// mutation after Write never leaks into the store.
//
// # Inputs
//
//   - id: Session identifier. Created if absent.
//   - sess: New state. Copied, never aliased.
func (st *Store) Write(id string, sess Session) {
	st.mu.Lock()
	defer st.mu.Unlock()

	stored := sess.clone()
	stored.ID = id
	stored.LastActive = st.now()
	st.sessions[id] = stored
}

// Connect records a live connection for the session id.
//
// # Description
//
// Liveness is reference-counted so a hypothetical second connection sharing
// the id keeps the session protected from the reaper until both disconnect.
// Connect also refreshes LastActive when the session already exists.
func (st *Store) Connect(id string) {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.connected[id]++
	if sess, ok := st.sessions[id]; ok {
		sess.LastActive = st.now()
		st.sessions[id] = sess
	}
}

// Disconnect drops one live-connection reference for the session id.
func (st *Store) Disconnect(id string) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.connected[id] <= 1 {
		delete(st.connected, id)
		return
	}
	st.connected[id]--
}

// Connected reports whether the session id has at least one live connection.
func (st *Store) Connected(id string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.connected[id] > 0
}

// Len returns the number of stored sessions.
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// Snapshot lists administrative rows for every stored session.
//
// # Outputs
//
//   - []Info: One row per session, sorted by most recent activity first.
func (st *Store) Snapshot() []Info {
	st.mu.Lock()
	defer st.mu.Unlock()

	infos := make([]Info, 0, len(st.sessions))
	for id, sess := range st.sessions {
		infos = append(infos, Info{
			ID:         id,
			Turns:      len(sess.History),
			LastActive: sess.LastActive,
			Connected:  st.connected[id] > 0,
		})
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].LastActive.After(infos[j].LastActive)
	})
	return infos
}

// EvictInactive removes sessions stale beyond maxAge with no live connection.
//
// # Description
//
// A session is evicted only when both conditions hold: LastActive is older
// than maxAge, and no connection is currently marked live for its id. The
// sweep runs under the store mutex, so it cannot race an in-flight Read or
// Write for the same id.
//
// # Inputs
//
//   - maxAge: Staleness threshold.
//
// # Outputs
//
//   - []string: Ids of the evicted sessions. Empty when nothing expired.
func (st *Store) EvictInactive(maxAge time.Duration) []string {
	st.mu.Lock()
	defer st.mu.Unlock()

	cutoff := st.now().Add(-maxAge)
	var evicted []string
	for id, sess := range st.sessions {
		if sess.LastActive.Before(cutoff) && st.connected[id] == 0 {
			delete(st.sessions, id)
			evicted = append(evicted, id)
		}
	}
	return evicted
}

// Delete removes a session regardless of staleness.
//
// # Description
//
// Administrative eviction for the DELETE /v1/sessions/:sessionId endpoint.
// Refuses to remove a session with a live connection.
//
// # Outputs
//
//   - error: ErrSessionConnected when the session is live, nil otherwise.
//     Deleting an unknown id is a no-op.
func (st *Store) Delete(id string) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.connected[id] > 0 {
		return ErrSessionConnected
	}
	delete(st.sessions, id)
	return nil
}
