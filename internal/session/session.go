// Package session keeps one widget per browser session and tears widgets
// down once they go idle.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cristianadrielbraun/qrwidget/internal/widget"
)

// Factory builds the widget for a new session.
type Factory func() *widget.Widget

type entry struct {
	w        *widget.Widget
	lastSeen time.Time
}

// Registry maps session ids to widgets.
type Registry struct {
	newWidget Factory
	ttl       time.Duration
	log       *slog.Logger
	now       func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
}

// NewRegistry returns an empty registry. Widgets unused for ttl are closed
// by Reap.
func NewRegistry(f Factory, ttl time.Duration, log *slog.Logger) *Registry {
	return &Registry{
		newWidget: f,
		ttl:       ttl,
		log:       log,
		now:       time.Now,
		entries:   make(map[string]*entry),
	}
}

// Acquire returns the widget for id, creating a session when id is empty or
// unknown. The returned id is the one the caller should keep using.
func (r *Registry) Acquire(id string) (string, *widget.Widget) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[id]; ok && id != "" {
		e.lastSeen = r.now()
		return id, e.w
	}

	id = uuid.NewString()
	e := &entry{w: r.newWidget(), lastSeen: r.now()}
	r.entries[id] = e
	r.log.Debug("session opened", "session", id)
	return id, e.w
}

// Lookup returns the widget for id without creating one.
func (r *Registry) Lookup(id string) (*widget.Widget, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	e.lastSeen = r.now()
	return e.w, true
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Reap closes and forgets sessions idle for longer than the ttl. It returns
// how many were reaped.
func (r *Registry) Reap() int {
	cutoff := r.now().Add(-r.ttl)

	r.mu.Lock()
	var idle []*widget.Widget
	for id, e := range r.entries {
		if e.lastSeen.Before(cutoff) {
			idle = append(idle, e.w)
			delete(r.entries, id)
			r.log.Debug("session expired", "session", id)
		}
	}
	r.mu.Unlock()

	for _, w := range idle {
		w.Close()
	}
	return len(idle)
}

// Close tears down every session.
func (r *Registry) Close() {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[string]*entry)
	r.mu.Unlock()

	for _, e := range entries {
		e.w.Close()
	}
}

// minReapInterval is the fastest the reaper will tick.
const minReapInterval = time.Millisecond

// StartReaper runs Reap every interval until ctx is cancelled. Intervals
// below a millisecond are raised to one.
func (r *Registry) StartReaper(ctx context.Context, interval time.Duration) {
	if interval < minReapInterval {
		interval = minReapInterval
	}
	go r.reapLoop(ctx, interval)
}

func (r *Registry) reapLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info("session reaper stopped")
			return
		case <-ticker.C:
			if n := r.Reap(); n > 0 {
				r.log.Info("reaped idle sessions", "count", n, "live", r.Len())
			}
		}
	}
}
