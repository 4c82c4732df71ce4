package middleware

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/s1natex/todo-web-GO/internal/session"
)

type rateErr struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// maxTrackedClients bounds the limiter table.
const maxTrackedClients = 10000

type clientBucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// ClientLimiter hands out one token bucket per client key.
type ClientLimiter struct {
	mu      sync.Mutex
	rps     rate.Limit
	burst   int
	max     int
	now     func() time.Time
	clients map[string]*clientBucket
}

// NewClientLimiter returns nil when rps <= 0, which disables limiting.
func NewClientLimiter(rps float64, burst int) *ClientLimiter {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &ClientLimiter{
		rps:     rate.Limit(rps),
		burst:   burst,
		max:     maxTrackedClients,
		now:     time.Now,
		clients: make(map[string]*clientBucket),
	}
}

func (c *ClientLimiter) allow(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	b, ok := c.clients[key]
	if !ok {
		if len(c.clients) >= c.max {
			c.evict(now)
		}
		b = &clientBucket{lim: rate.NewLimiter(c.rps, c.burst)}
		c.clients[key] = b
	}
	b.lastSeen = now
	return b.lim.AllowN(now, 1)
}

// evict drops buckets idle long enough to have refilled, which are
// indistinguishable from new ones. If none qualify, the least recently seen
// bucket goes.
func (c *ClientLimiter) evict(now time.Time) {
	refill := time.Duration(float64(c.burst) / float64(c.rps) * float64(time.Second))
	var oldestKey string
	var oldest time.Time
	for k, b := range c.clients {
		if now.Sub(b.lastSeen) >= refill {
			delete(c.clients, k)
			continue
		}
		if oldestKey == "" || b.lastSeen.Before(oldest) {
			oldestKey, oldest = k, b.lastSeen
		}
	}
	if len(c.clients) >= c.max && oldestKey != "" {
		delete(c.clients, oldestKey)
	}
}

// RateLimitMiddleware limits requests per signed-in user, or per remote
// address when the request carries no identity.
func RateLimitMiddleware(c *ClientLimiter) func(http.Handler) http.Handler {
	if c == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if c.allow(clientKey(r)) {
				next.ServeHTTP(w, r)
				return
			}
			rejectedTotal.WithLabelValues("rate_limited").Inc()
			w.Header().Set("Content-Type", "application/json")
			retry := int(math.Ceil(1.0 / float64(c.rps)))
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(rateErr{Message: "Too many requests"})
		})
	}
}

func clientKey(r *http.Request) string {
	if id, ok := session.FromContext(r.Context()); ok {
		return "user:" + strconv.FormatInt(id.UserID, 10)
	}
	return "ip:" + clientIP(r)
}
