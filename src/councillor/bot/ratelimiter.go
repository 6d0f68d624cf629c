package bot

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// userLimiter throttles command usage per user. Stale entries are swept
// periodically so the map does not grow with every user the bot ever saw.
type userLimiter struct {
	mu       sync.Mutex
	users    map[string]*userEntry
	limit    rate.Limit
	burst    int
	lastSeen time.Duration
}

type userEntry struct {
	limiter *rate.Limiter
	seen    time.Time
}

func newUserLimiter(interval time.Duration, burst int) *userLimiter {
	return &userLimiter{
		users:    make(map[string]*userEntry),
		limit:    rate.Every(interval),
		burst:    burst,
		lastSeen: time.Hour,
	}
}

func (l *userLimiter) Allow(userID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.users[userID]
	if !ok {
		entry = &userEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.users[userID] = entry
	}
	entry.seen = time.Now()
	return entry.limiter.Allow()
}

func (l *userLimiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := time.Now().Add(-l.lastSeen)
	for id, entry := range l.users {
		if entry.seen.Before(cutoff) {
			delete(l.users, id)
		}
	}
}
