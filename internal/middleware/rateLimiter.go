package middleware

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	maxTrackedIPs = 10000
	limiterIdle   = 10 * time.Minute
)

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter keeps one token bucket per client address. Buckets idle for
// longer than limiterIdle are dropped once the table grows past maxTrackedIPs.
type IPRateLimiter struct {
	ips       map[string]*ipLimiter
	mu        sync.Mutex
	rateLimit rate.Limit
	burstRate int
	now       func() time.Time
}

func NewIPRateLimiter(r rate.Limit, b int) *IPRateLimiter {
	return &IPRateLimiter{ips: make(map[string]*ipLimiter), rateLimit: r, burstRate: b, now: time.Now}
}

func (i *IPRateLimiter) Allow(ip string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()

	now := i.now()
	entry, exists := i.ips[ip]
	if !exists {
		if len(i.ips) >= maxTrackedIPs {
			i.evictIdle(now)
		}
		entry = &ipLimiter{limiter: rate.NewLimiter(i.rateLimit, i.burstRate)}
		i.ips[ip] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

func (i *IPRateLimiter) evictIdle(now time.Time) {
	for ip, entry := range i.ips {
		if now.Sub(entry.lastSeen) > limiterIdle {
			delete(i.ips, ip)
		}
	}
}

func (i *IPRateLimiter) tracked() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.ips)
}

//TODO: move the per-ip limiters to redis once more than one ingestd instance serves /mcp
