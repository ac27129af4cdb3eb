package wstransport

import (
	"sync"
	"time"

	"github.com/ocpp-csms/central-system/internal/clock"
)

// ipLimiter is a per-IP fixed-window handshake counter. The teacher
// carries no rate-limiting dependency anywhere in its stack (nor does any
// other repo in the retrieved pack), and the algorithm is a handful of
// lines, so this stays on a plain map+mutex rather than reaching for an
// external limiter library.
type ipLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	clock  clock.Clock
	counts map[string]*windowCount
}

type windowCount struct {
	windowStart time.Time
	count       int
}

func newIPLimiter(limit int, window time.Duration, c clock.Clock) *ipLimiter {
	if c == nil {
		c = clock.New()
	}
	return &ipLimiter{
		limit:  limit,
		window: window,
		clock:  c,
		counts: make(map[string]*windowCount),
	}
}

// Allow reports whether ip may attempt another handshake in the current
// window, incrementing its counter as a side effect when it does.
func (l *ipLimiter) Allow(ip string) bool {
	if l.limit <= 0 {
		return true
	}

	now := l.clock.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	wc, ok := l.counts[ip]
	if !ok || now.Sub(wc.windowStart) >= l.window {
		l.counts[ip] = &windowCount{windowStart: now, count: 1}
		return true
	}

	if wc.count >= l.limit {
		return false
	}
	wc.count++
	return true
}

// sweep drops windows that have fully elapsed, bounding the map's growth
// across long-lived processes with many distinct source IPs.
func (l *ipLimiter) sweep() {
	now := l.clock.Now()
	l.mu.Lock()
	defer l.mu.Unlock()
	for ip, wc := range l.counts {
		if now.Sub(wc.windowStart) >= l.window {
			delete(l.counts, ip)
		}
	}
}
