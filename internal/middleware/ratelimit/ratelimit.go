package ratelimit

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// bucket is one caller's token balance. Tokens refill continuously at
// the configured rate up to the burst cap.
type bucket struct {
	mu       sync.Mutex
	tokens   int
	refilled time.Time
}

type Limiter struct {
	mu       sync.RWMutex
	buckets  map[string]*bucket
	burst    int
	interval time.Duration
	logger   *zap.Logger
	reaper   *time.Ticker
}

type Config struct {
	RequestsPerMinute int
	Logger            *zap.Logger
}

func New(cfg Config) *Limiter {
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 60
	}

	l := &Limiter{
		buckets:  make(map[string]*bucket),
		burst:    cfg.RequestsPerMinute,
		interval: time.Minute / time.Duration(cfg.RequestsPerMinute),
		logger:   cfg.Logger,
		reaper:   time.NewTicker(5 * time.Minute),
	}

	go l.reapIdle()

	return l
}

// Middleware limits requests per caller. A session id header identifies
// the caller when present, otherwise the client IP does.
func (l *Limiter) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.Get("X-Session-ID")
		if key == "" {
			key = c.IP()
		}

		if !l.allow(key) {
			l.logger.Warn("Rate limit exceeded",
				zap.String("key", key),
				zap.String("path", c.Path()),
			)
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests. Please slow down.",
			})
		}

		return c.Next()
	}
}

func (l *Limiter) allow(key string) bool {
	l.mu.RLock()
	b, ok := l.buckets[key]
	l.mu.RUnlock()

	if !ok {
		l.mu.Lock()
		b, ok = l.buckets[key]
		if !ok {
			b = &bucket{tokens: l.burst, refilled: time.Now()}
			l.buckets[key] = b
		}
		l.mu.Unlock()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	if regained := int(now.Sub(b.refilled) / l.interval); regained > 0 {
		b.tokens += regained
		if b.tokens > l.burst {
			b.tokens = l.burst
		}
		b.refilled = now
	}

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// reapIdle drops buckets untouched for long enough that they would be
// full anyway.
func (l *Limiter) reapIdle() {
	for range l.reaper.C {
		cutoff := time.Now().Add(-10 * time.Minute)
		l.mu.Lock()
		for key, b := range l.buckets {
			b.mu.Lock()
			if b.refilled.Before(cutoff) {
				delete(l.buckets, key)
			}
			b.mu.Unlock()
		}
		l.mu.Unlock()
	}
}

func (l *Limiter) Stop() {
	l.reaper.Stop()
}
