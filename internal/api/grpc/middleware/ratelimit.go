package middleware

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/ratelimit"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/peer"
)

var errRateLimited = errors.New("rate limit exceeded")

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// PeerLimiter is a token bucket per client address and method. Buckets idle
// for longer than the idle timeout are dropped.
type PeerLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	limit     rate.Limit
	burst     int
	idle      time.Duration
	lastSweep time.Time
	now       func() time.Time
}

var _ ratelimit.Limiter = (*PeerLimiter)(nil)

// NewPeerLimiter allows perMinute calls per peer and method with the given burst.
func NewPeerLimiter(perMinute float64, burst int, idle time.Duration) *PeerLimiter {
	if burst <= 0 {
		burst = 1
	}
	if idle <= 0 {
		idle = 10 * time.Minute
	}
	return &PeerLimiter{
		buckets: make(map[string]*bucket),
		limit:   rate.Limit(perMinute / 60),
		burst:   burst,
		idle:    idle,
		now:     time.Now,
	}
}

// Limit implements ratelimit.Limiter.
func (l *PeerLimiter) Limit(ctx context.Context) error {
	key := peerKey(ctx)
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) >= l.idle {
		l.sweep(now)
	}

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now

	if !b.limiter.AllowN(now, 1) {
		return errRateLimited
	}
	return nil
}

func (l *PeerLimiter) sweep(now time.Time) {
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) >= l.idle {
			delete(l.buckets, key)
		}
	}
	l.lastSweep = now
}

func peerKey(ctx context.Context) string {
	addr := "unknown"
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		addr = p.Addr.String()
		if host, _, err := net.SplitHostPort(addr); err == nil {
			addr = host
		}
	}
	method, _ := grpc.Method(ctx)
	return addr + " " + method
}
