// Copyright (C) 2025 Rutopia (dev@rutopia.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// =============================================================================
// Session Reaper
// =============================================================================

// ReaperConfig holds configuration for the background session sweep.
//
// # Fields
//
//   - Interval: How often to sweep. Default: 1 hour.
//   - MaxAge: Staleness threshold for eviction. Default: 24 hours.
type ReaperConfig struct {
	Interval time.Duration
	MaxAge   time.Duration
}

// DefaultReaperConfig returns production defaults for the reaper.
//
// # Description
//
// Hourly sweeps with a 24 hour inactivity threshold: abandoned sessions
// disappear within a day, while any session with a live connection is kept
// regardless of staleness.
func DefaultReaperConfig() ReaperConfig {
	return ReaperConfig{
		Interval: 1 * time.Hour,
		MaxAge:   24 * time.Hour,
	}
}

// Reaper periodically evicts abandoned sessions from a Store.
//
// # Description
//
// Runs on an independent timer (no per-request triggering) using the
// ticker + done channel pattern. Each cycle calls Store.EvictInactive,
// which serializes against in-flight reads and writes through the store's
// own mutex.
//
// # Thread Safety
//
// All public methods are safe for concurrent use.
type Reaper struct {
	store   *Store
	config  ReaperConfig
	onReap  func(evicted int)
	done    chan struct{}
	mu      sync.Mutex
	running bool
}

// NewReaper creates a reaper for the given store.
//
// # Inputs
//
//   - store: The session store to sweep.
//   - config: Sweep interval and staleness threshold. Non-positive values
//     fall back to DefaultReaperConfig.
//   - onReap: Optional observer invoked with the eviction count after each
//     sweep that removed at least one session. May be nil.
//
// # Outputs
//
//   - *Reaper: Ready to Start().
//
// # Examples
//
//	reaper := session.NewReaper(store, session.DefaultReaperConfig(), nil)
//	if err := reaper.Start(ctx); err != nil { ... }
//	defer reaper.Stop()
func NewReaper(store *Store, config ReaperConfig, onReap func(evicted int)) *Reaper {
	defaults := DefaultReaperConfig()
	if config.Interval <= 0 {
		slog.Warn("session.reaper: invalid interval, using default",
			"provided", config.Interval, "default", defaults.Interval)
		config.Interval = defaults.Interval
	}
	if config.MaxAge <= 0 {
		slog.Warn("session.reaper: invalid max age, using default",
			"provided", config.MaxAge, "default", defaults.MaxAge)
		config.MaxAge = defaults.MaxAge
	}
	return &Reaper{
		store:  store,
		config: config,
		onReap: onReap,
		done:   make(chan struct{}),
	}
}

// Start begins the background sweep goroutine.
//
// # Description
//
// Runs an initial sweep immediately, then sweeps at the configured interval
// until Stop() is called or the context is cancelled.
//
// # Outputs
//
//   - error: Non-nil if the reaper is already running.
func (r *Reaper) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("reaper is already running")
	}
	r.running = true
	r.done = make(chan struct{}) // Reset done channel for potential restart
	r.mu.Unlock()

	slog.Info("session.reaper: starting",
		"interval", r.config.Interval.String(),
		"max_age", r.config.MaxAge.String(),
	)

	go r.runLoop(ctx)
	return nil
}

// Stop signals the sweep goroutine to exit. Safe to call multiple times.
func (r *Reaper) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return
	}
	slog.Info("session.reaper: stopping")
	close(r.done)
	r.running = false
}

// RunNow performs one sweep immediately.
//
// # Outputs
//
//   - int: Number of sessions evicted by this sweep.
func (r *Reaper) RunNow() int {
	evicted := r.store.EvictInactive(r.config.MaxAge)
	if len(evicted) > 0 {
		slog.Info("session.reaper: evicted inactive sessions",
			"count", len(evicted),
			"max_age", r.config.MaxAge.String(),
		)
		if r.onReap != nil {
			r.onReap(len(evicted))
		}
	} else {
		slog.Debug("session.reaper: sweep found no expired sessions")
	}
	return len(evicted)
}

// runLoop is the sweep goroutine.
func (r *Reaper) runLoop(ctx context.Context) {
	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	r.RunNow()

	for {
		select {
		case <-ctx.Done():
			slog.Info("session.reaper: stopped (context cancelled)")
			return
		case <-r.done:
			slog.Info("session.reaper: stopped (stop requested)")
			return
		case <-ticker.C:
			r.RunNow()
		}
	}
}
