// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package ingest

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/netip"
	"slices"
	"sync"
	"time"

	"github.com/relabs-tech/motion_stream/internal/motion"
)

// Session is what the server remembers about one client. It survives
// disconnects; only Evict removes it.
type Session struct {
	Shape     Shape         `json:"shape"`
	Rotation  motion.Sample `json:"rotation"`
	FirstSeen time.Time     `json:"first_seen"`
	LastSeen  time.Time     `json:"last_seen"`
	Active    int           `json:"active"` // open connections
	Frames    uint64        `json:"frames"`
	Rejected  uint64        `json:"rejected"`
}

// Entry is one session in a snapshot.
type Entry struct {
	ID netip.Addr `json:"id"`
	Session
}

// Identity returns the client identity for a remote address: its IP with
// IPv4-mapped IPv6 unmapped. The port is ignored, so reconnects from a new
// source port resolve to the same session.
func Identity(addr net.Addr) (netip.Addr, error) {
	if tcp, ok := addr.(*net.TCPAddr); ok {
		if ip, ok := netip.AddrFromSlice(tcp.IP); ok {
			return ip.Unmap(), nil
		}
	}
	ap, err := netip.ParseAddrPort(addr.String())
	if err != nil {
		return netip.Addr{}, fmt.Errorf("ingest: client identity from %q: %w", addr, err)
	}
	return ap.Addr().Unmap(), nil
}

// Registry maps client identity to session. Writers hold the exclusive lock
// for a single lookup-or-insert or field update; the render loop reads with
// TrySnapshot and never waits behind them.
type Registry struct {
	mu       sync.RWMutex
	sessions map[netip.Addr]*Session

	pickShape func() Shape
	now       func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithShapePicker replaces RandomShape.
func WithShapePicker(pick func() Shape) Option {
	return func(r *Registry) { r.pickShape = pick }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// NewRegistry returns an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		sessions:  make(map[netip.Addr]*Session),
		pickShape: RandomShape,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Attach registers a new connection from id, creating the session with a
// random shape on first contact. resumed reports whether the session already
// existed. Lookup and insert happen under one lock, so racing first
// connections from the same client end up with one session.
func (r *Registry) Attach(id netip.Addr) (s Session, resumed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	sess, ok := r.sessions[id]
	if !ok {
		sess = &Session{Shape: r.pickShape(), FirstSeen: now}
		r.sessions[id] = sess
	}
	sess.Active++
	sess.LastSeen = now
	return *sess, ok
}

// Detach records that a connection from id ended. The session is kept.
func (r *Registry) Detach(id netip.Addr) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sess, ok := r.sessions[id]; ok {
		if sess.Active > 0 {
			sess.Active--
		}
		sess.LastSeen = r.now()
	}
}

// UpdateRotation stores the latest rotation for id. It reports false if id has
// no session, which happens only if it was evicted while connected.
func (r *Registry) UpdateRotation(id netip.Addr, rot motion.Sample) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[id]
	if !ok {
		return false
	}
	sess.Rotation = rot
	sess.Frames++
	sess.LastSeen = r.now()
	return true
}

// RecordRejected counts a discarded frame and returns the client's total.
func (r *Registry) RecordRejected(id netip.Addr) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[id]
	if !ok {
		return 0
	}
	sess.Rejected++
	return sess.Rejected
}

// Lookup returns a copy of the session for id.
func (r *Registry) Lookup(id netip.Addr) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, ok := r.sessions[id]
	if !ok {
		return Session{}, false
	}
	return *sess, true
}

// Len returns the number of sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// TrySnapshot copies all sessions sorted by identity without waiting. It
// returns false if a writer holds the lock; callers skip that cycle.
func (r *Registry) TrySnapshot() ([]Entry, bool) {
	if !r.mu.TryRLock() {
		return nil, false
	}
	defer r.mu.RUnlock()
	return r.entries(), true
}

// Snapshot is TrySnapshot that waits for the lock.
func (r *Registry) Snapshot() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries()
}

// entries must be called with the lock held.
func (r *Registry) entries() []Entry {
	out := make([]Entry, 0, len(r.sessions))
	for id, sess := range r.sessions {
		out = append(out, Entry{ID: id, Session: *sess})
	}
	slices.SortFunc(out, func(a, b Entry) int { return a.ID.Compare(b.ID) })
	return out
}

// Evict removes sessions with no open connection that have been idle for at
// least idle, and returns their identities. idle <= 0 evicts nothing.
func (r *Registry) Evict(idle time.Duration) []netip.Addr {
	if idle <= 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	var evicted []netip.Addr
	for id, sess := range r.sessions {
		if sess.Active == 0 && now.Sub(sess.LastSeen) >= idle {
			delete(r.sessions, id)
			evicted = append(evicted, id)
		}
	}
	slices.SortFunc(evicted, netip.Addr.Compare)
	return evicted
}

// RunEvictor calls Evict every interval until ctx is done.
func (r *Registry) RunEvictor(ctx context.Context, idle, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("ingest: evicting sessions idle for %v (sweep every %v)", idle, interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, id := range r.Evict(idle) {
				log.Printf("ingest: evicted idle client %s", id)
			}
		}
	}
}
