// Copyright (C) 2025 Rutopia (dev@rutopia.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package session

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rutopia/chat-orchestrator/services/orchestrator/datatypes"
)

func TestStore_ReadCreatesEmptySession(t *testing.T) {
	store := NewStore()

	sess := store.Read("sess-1")

	if sess.ID != "sess-1" {
		t.Errorf("Expected id 'sess-1', got %q", sess.ID)
	}
	if len(sess.History) != 0 {
		t.Errorf("Expected empty history, got %d messages", len(sess.History))
	}
	if len(sess.LastResults) != 0 {
		t.Errorf("Expected empty results, got %d", len(sess.LastResults))
	}
	if store.Len() != 1 {
		t.Errorf("Expected 1 stored session, got %d", store.Len())
	}
}

// TestStore_ReadReturnsIsolatedCopy verifies that mutating a read copy never
// leaks into the stored session.
func TestStore_ReadReturnsIsolatedCopy(t *testing.T) {
	store := NewStore()
	store.Write("sess-1", Session{
		History: []datatypes.Message{
			{Role: datatypes.RoleUser, Content: "hola"},
		},
		LastResults: []datatypes.Experience{
			{ID: "exp-1", Name: "Cenote Azul", Highlights: []string{"agua cristalina"}},
		},
	})

	copy1 := store.Read("sess-1")
	copy1.History[0].Content = "mutated"
	copy1.History = append(copy1.History, datatypes.Message{Role: datatypes.RoleAssistant, Content: "extra"})
	copy1.LastResults[0].Name = "mutated"
	copy1.LastResults[0].Highlights[0] = "mutated"

	copy2 := store.Read("sess-1")
	if copy2.History[0].Content != "hola" {
		t.Errorf("History leaked through read copy: %q", copy2.History[0].Content)
	}
	if len(copy2.History) != 1 {
		t.Errorf("Expected 1 message, got %d", len(copy2.History))
	}
	if copy2.LastResults[0].Name != "Cenote Azul" {
		t.Errorf("Results leaked through read copy: %q", copy2.LastResults[0].Name)
	}
	if copy2.LastResults[0].Highlights[0] != "agua cristalina" {
		t.Errorf("Highlights leaked through read copy: %q", copy2.LastResults[0].Highlights[0])
	}
}

// TestStore_WriteCopiesInput verifies that mutating the caller's session
// after Write never leaks into the store.
func TestStore_WriteCopiesInput(t *testing.T) {
	store := NewStore()
	sess := Session{
		History: []datatypes.Message{
			{Role: datatypes.RoleUser, Content: "hola", ToolCalls: []datatypes.ToolCall{{ID: "c1", Name: "search_experiences"}}},
		},
	}

	store.Write("sess-1", sess)
	sess.History[0].Content = "mutated"
	sess.History[0].ToolCalls[0].Name = "mutated"

	stored := store.Read("sess-1")
	if stored.History[0].Content != "hola" {
		t.Errorf("Write aliased caller history: %q", stored.History[0].Content)
	}
	if stored.History[0].ToolCalls[0].Name != "search_experiences" {
		t.Errorf("Write aliased caller tool calls: %q", stored.History[0].ToolCalls[0].Name)
	}
}

// TestStore_WriteClonesResultPointers verifies that writing through an
// experience's optional-field pointer, on either side of a Write, never
// reaches the stored session.
func TestStore_WriteClonesResultPointers(t *testing.T) {
	store := NewStore()
	family := true
	duration := "4 hours"
	sess := Session{
		LastResults: []datatypes.Experience{
			{ID: "exp-1", FamilyFriendly: &family, Duration: &duration},
		},
	}

	store.Write("sess-1", sess)
	*sess.LastResults[0].FamilyFriendly = false
	*sess.LastResults[0].Duration = "mutated"

	stored := store.Read("sess-1")
	if stored.LastResults[0].FamilyFriendly == nil || !*stored.LastResults[0].FamilyFriendly {
		t.Error("Write aliased family_friendly pointer")
	}
	if stored.LastResults[0].Duration == nil || *stored.LastResults[0].Duration != "4 hours" {
		t.Errorf("Write aliased duration pointer: %v", stored.LastResults[0].Duration)
	}

	*stored.LastResults[0].FamilyFriendly = false
	again := store.Read("sess-1")
	if !*again.LastResults[0].FamilyFriendly {
		t.Error("Read copy aliased family_friendly pointer")
	}
}

// TestStore_WriteIsAtomic runs concurrent writers of internally consistent
// sessions and checks every read observes one writer's complete state.
func TestStore_WriteIsAtomic(t *testing.T) {
	store := NewStore()
	var wg sync.WaitGroup

	writer := func(tag string) {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			store.Write("sess-1", Session{
				History:     []datatypes.Message{{Role: datatypes.RoleUser, Content: tag}},
				LastResults: []datatypes.Experience{{ID: tag}},
			})
		}
	}

	wg.Add(2)
	go writer("a")
	go writer("b")

	for i := 0; i < 200; i++ {
		sess := store.Read("sess-1")
		if len(sess.History) == 0 {
			continue
		}
		if sess.History[0].Content != sess.LastResults[0].ID {
			t.Fatalf("Torn read: history from %q, results from %q",
				sess.History[0].Content, sess.LastResults[0].ID)
		}
	}
	wg.Wait()
}

func TestStore_EvictInactive(t *testing.T) {
	now := time.Now()
	clock := now
	store := NewStoreWithClock(func() time.Time { return clock })

	store.Write("stale", Session{})
	clock = now.Add(25 * time.Hour)
	store.Write("fresh", Session{})

	evicted := store.EvictInactive(24 * time.Hour)

	if len(evicted) != 1 || evicted[0] != "stale" {
		t.Fatalf("Expected ['stale'] evicted, got %v", evicted)
	}
	if store.Len() != 1 {
		t.Errorf("Expected 1 remaining session, got %d", store.Len())
	}
}

// TestStore_EvictInactive_SparesConnected verifies a stale session with a
// live connection is never evicted.
func TestStore_EvictInactive_SparesConnected(t *testing.T) {
	now := time.Now()
	clock := now
	store := NewStoreWithClock(func() time.Time { return clock })

	store.Write("stale-live", Session{})
	store.Write("stale-dead", Session{})
	store.Connect("stale-live")
	clock = now.Add(25 * time.Hour)

	evicted := store.EvictInactive(24 * time.Hour)

	if len(evicted) != 1 || evicted[0] != "stale-dead" {
		t.Fatalf("Expected ['stale-dead'] evicted, got %v", evicted)
	}

	// After disconnect the session becomes evictable again.
	store.Disconnect("stale-live")
	evicted = store.EvictInactive(24 * time.Hour)
	if len(evicted) != 1 || evicted[0] != "stale-live" {
		t.Fatalf("Expected ['stale-live'] evicted after disconnect, got %v", evicted)
	}
}

func TestStore_ConnectRefreshesActivity(t *testing.T) {
	now := time.Now()
	clock := now
	store := NewStoreWithClock(func() time.Time { return clock })

	store.Write("sess-1", Session{})
	clock = now.Add(23 * time.Hour)
	store.Connect("sess-1")
	store.Disconnect("sess-1")
	clock = now.Add(25 * time.Hour)

	// LastActive was refreshed at hour 23, so at hour 25 the session is
	// only 2 hours stale.
	if evicted := store.EvictInactive(24 * time.Hour); len(evicted) != 0 {
		t.Fatalf("Expected no evictions, got %v", evicted)
	}
}

func TestStore_ConnectIsReferenceCounted(t *testing.T) {
	store := NewStore()

	store.Connect("sess-1")
	store.Connect("sess-1")
	store.Disconnect("sess-1")

	if !store.Connected("sess-1") {
		t.Error("Expected session to stay connected after one of two disconnects")
	}

	store.Disconnect("sess-1")
	if store.Connected("sess-1") {
		t.Error("Expected session disconnected after both disconnects")
	}
}

func TestStore_DeleteRefusesLiveSession(t *testing.T) {
	store := NewStore()
	store.Write("sess-1", Session{})
	store.Connect("sess-1")

	err := store.Delete("sess-1")
	if !errors.Is(err, ErrSessionConnected) {
		t.Fatalf("Expected ErrSessionConnected, got %v", err)
	}
	if store.Len() != 1 {
		t.Error("Expected live session to survive delete")
	}

	store.Disconnect("sess-1")
	if err := store.Delete("sess-1"); err != nil {
		t.Fatalf("Expected delete to succeed, got %v", err)
	}
	if store.Len() != 0 {
		t.Error("Expected session removed")
	}
}

func TestStore_DeleteUnknownIsNoop(t *testing.T) {
	store := NewStore()
	if err := store.Delete("ghost"); err != nil {
		t.Fatalf("Expected nil error for unknown id, got %v", err)
	}
}

func TestStore_SnapshotOrdering(t *testing.T) {
	now := time.Now()
	clock := now
	store := NewStoreWithClock(func() time.Time { return clock })

	store.Write("old", Session{})
	clock = now.Add(time.Minute)
	store.Write("new", Session{History: []datatypes.Message{{Role: datatypes.RoleUser, Content: "hola"}}})
	store.Connect("new")

	infos := store.Snapshot()
	if len(infos) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(infos))
	}
	if infos[0].ID != "new" {
		t.Errorf("Expected most recent first, got %q", infos[0].ID)
	}
	if infos[0].Turns != 1 {
		t.Errorf("Expected 1 turn, got %d", infos[0].Turns)
	}
	if !infos[0].Connected {
		t.Error("Expected 'new' to be marked connected")
	}
	if infos[1].Connected {
		t.Error("Expected 'old' to be marked disconnected")
	}
}
