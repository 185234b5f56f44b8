package session

import (
	"context"
	"sync"
	"time"

	"github.com/graphilearn/engine/pkg/logger"
	"go.uber.org/zap"
)

// Factory builds the manager for a browser session, restoring accessToken when set.
// ctx only bounds the restore; the manager must not keep it.
type Factory func(ctx context.Context, sid, accessToken string) *Manager

type registryEntry struct {
	manager *Manager
	last    time.Time
}

// Registry keeps one started Manager per browser session id and closes idle ones.
type Registry struct {
	build Factory
	idle  time.Duration
	now   func() time.Time

	mu      sync.Mutex
	entries map[string]*registryEntry
}

func NewRegistry(build Factory, idle time.Duration) *Registry {
	if idle <= 0 {
		idle = 30 * time.Minute
	}
	return &Registry{
		build:   build,
		idle:    idle,
		now:     time.Now,
		entries: map[string]*registryEntry{},
	}
}

// Get returns the manager for sid, creating and starting it on first use. The
// factory runs outside the registry lock; when two requests race to create the same
// sid, the loser's manager is closed unstarted.
func (r *Registry) Get(ctx context.Context, sid, accessToken string) *Manager {
	if m := r.lookup(sid); m != nil {
		return m
	}

	built := r.build(ctx, sid, accessToken)

	r.mu.Lock()
	e, ok := r.entries[sid]
	if ok && e.manager.Closed() {
		delete(r.entries, sid)
		ok = false
	}
	if !ok {
		e = &registryEntry{manager: built}
		r.entries[sid] = e
	}
	e.last = r.now()
	m := e.manager
	r.mu.Unlock()

	if ok {
		built.Close()
		return m
	}
	m.Start()
	return m
}

func (r *Registry) lookup(sid string) *Manager {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[sid]
	if !ok {
		return nil
	}
	if e.manager.Closed() {
		delete(r.entries, sid)
		return nil
	}
	e.last = r.now()
	return e.manager
}

// Drop closes and forgets the manager for sid.
func (r *Registry) Drop(sid string) {
	r.mu.Lock()
	e, ok := r.entries[sid]
	delete(r.entries, sid)
	r.mu.Unlock()
	if ok {
		e.manager.Close()
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Sweep closes managers idle for longer than the idle timeout and returns how many.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.idle)
	var stale []*Manager

	r.mu.Lock()
	for sid, e := range r.entries {
		if e.last.Before(cutoff) {
			stale = append(stale, e.manager)
			delete(r.entries, sid)
		}
	}
	r.mu.Unlock()

	for _, m := range stale {
		m.Close()
	}
	return len(stale)
}

// Run sweeps on a ticker until ctx ends, then closes every manager.
func (r *Registry) Run(ctx context.Context) {
	interval := r.idle / 2
	if interval > 5*time.Minute {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.closeAll()
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				logger.L().Debug("closed idle sessions", zap.Int("count", n))
			}
		}
	}
}

func (r *Registry) closeAll() {
	r.mu.Lock()
	all := r.entries
	r.entries = map[string]*registryEntry{}
	r.mu.Unlock()
	for _, e := range all {
		e.manager.Close()
	}
}
