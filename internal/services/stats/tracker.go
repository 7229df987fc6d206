// Package stats tracks which players are currently talking to the server.
package stats

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/mcoot/townserver/internal/dependencies/clock"
)

// Connection is one live client address
type Connection struct {
	IP        string    `json:"ip"`
	Email     string    `json:"email"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
	Requests  int64     `json:"requests"`
}

// Snapshot summarises tracker state
type Snapshot struct {
	Active      int          `json:"active"`
	Peak        int          `json:"peak"`
	Connections []Connection `json:"connections"`
}

// Tracker counts live connections by client IP
type Tracker struct {
	clock   clock.Clock
	timeout time.Duration
	logger  *slog.Logger

	mu    sync.Mutex
	conns map[string]*Connection
	peak  int
}

func NewTracker(clk clock.Clock, timeout time.Duration, logger *slog.Logger) *Tracker {
	return &Tracker{
		clock:   clk,
		timeout: timeout,
		logger:  logger,
		conns:   make(map[string]*Connection),
	}
}

// Register records activity from ip
func (t *Tracker) Register(ip, email string) {
	if ip == "" {
		return
	}
	now := t.clock.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	c, ok := t.conns[ip]
	if !ok {
		c = &Connection{IP: ip, FirstSeen: now}
		t.conns[ip] = c
		t.peak = max(t.peak, len(t.conns))
	}
	c.Email = email
	c.LastSeen = now
	c.Requests++
}

// Unregister forgets ip. It reports whether ip was tracked.
func (t *Tracker) Unregister(ip string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, ok := t.conns[ip]
	delete(t.conns, ip)
	return ok
}

// Sweep drops connections idle for longer than the timeout and returns how many
func (t *Tracker) Sweep() int {
	cutoff := t.clock.Now().Add(-t.timeout)

	t.mu.Lock()
	removed := 0
	for ip, c := range t.conns {
		if c.LastSeen.Before(cutoff) {
			delete(t.conns, ip)
			removed++
		}
	}
	remaining := len(t.conns)
	t.mu.Unlock()

	if removed > 0 {
		t.logger.Info("expired idle connections", "removed", removed, "active", remaining)
	}
	return removed
}

// Active returns the number of tracked connections
func (t *Tracker) Active() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.conns)
}

// Snapshot returns a copy of the tracker state, most recently seen first
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	conns := make([]Connection, 0, len(t.conns))
	for _, c := range t.conns {
		conns = append(conns, *c)
	}
	sort.Slice(conns, func(i, j int) bool {
		if conns[i].LastSeen.Equal(conns[j].LastSeen) {
			return conns[i].IP < conns[j].IP
		}
		return conns[i].LastSeen.After(conns[j].LastSeen)
	})
	return Snapshot{Active: len(conns), Peak: t.peak, Connections: conns}
}
