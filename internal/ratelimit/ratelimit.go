package ratelimit

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

// visitor is one client's token bucket.
type visitor struct {
	limiter *rate.Limiter
	// logged is reset when the entry expires and is re-created
	logged bool
}

// Limiter holds per-client token buckets. Idle clients expire after the
// TTL and the table is capped, so memory stays bounded without a sweeper.
type Limiter struct {
	mu       sync.Mutex
	visitors *expirable.LRU[string, *visitor]

	perSecond rate.Limit
	burst     int
	ttl       time.Duration
	capacity  int

	onFirstDenied func(key string)
	onDenied      func(key string)
}

type Option func(*Limiter)

// WithRate sets the refill rate and bucket size. WithRate(10, 50) allows 50
// requests at once, then 10 per second.
func WithRate(perSecond float64, burst int) Option {
	return func(l *Limiter) {
		l.perSecond = rate.Limit(perSecond)
		l.burst = burst
	}
}

// WithTTL sets how long an idle client keeps its bucket.
func WithTTL(d time.Duration) Option {
	return func(l *Limiter) { l.ttl = d }
}

// WithCapacity caps the number of tracked clients. The least recently seen
// client is dropped when full.
func WithCapacity(n int) Option {
	return func(l *Limiter) { l.capacity = n }
}

// WithOnFirstDenied is called once per bucket lifetime, for logging.
func WithOnFirstDenied(fn func(key string)) Option {
	return func(l *Limiter) { l.onFirstDenied = fn }
}

// WithOnDenied is called on every denial, for counters.
func WithOnDenied(fn func(key string)) Option {
	return func(l *Limiter) { l.onDenied = fn }
}

func New(opts ...Option) *Limiter {
	l := &Limiter{
		perSecond: 50,
		burst:     100,
		ttl:       5 * time.Minute,
		capacity:  10000,
	}
	for _, o := range opts {
		o(l)
	}
	l.visitors = expirable.NewLRU[string, *visitor](l.capacity, nil, l.ttl)
	return l
}

// Allow reports whether key is within its rate. Every call refreshes the
// key's TTL.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	v, ok := l.visitors.Get(key)
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.perSecond, l.burst)}
	}
	l.visitors.Add(key, v)
	allowed := v.limiter.Allow()
	first := !allowed && !v.logged
	if first {
		v.logged = true
	}
	l.mu.Unlock()

	// hooks run outside the lock
	if first && l.onFirstDenied != nil {
		l.onFirstDenied(key)
	}
	if !allowed && l.onDenied != nil {
		l.onDenied(key)
	}
	return allowed
}

// Len is the number of tracked clients.
func (l *Limiter) Len() int { return l.visitors.Len() }

// Middleware rejects requests over the per-client limit with 429. Clients
// are keyed by remote IP.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(clientIP(r)) {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"too many requests"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
