package ratelimit

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Resource classes guarded by the limiter. Capacity and refill rate are
// fixed per class at construction.
const (
	ClassWhatsAppSend = "whatsapp_send"
	ClassWhatsAppRead = "whatsapp_read"
	ClassCareAPI      = "care_api"
)

// BucketConfig fixes the shape of one token bucket.
type BucketConfig struct {
	Capacity   float64
	RefillRate float64 // tokens per second
}

// DefaultBuckets mirrors the production outbound call budget: bursty
// message sends, cheap read receipts, and a tighter backend allowance.
func DefaultBuckets() map[string]BucketConfig {
	return map[string]BucketConfig{
		ClassWhatsAppSend: {Capacity: 10, RefillRate: 5},
		ClassWhatsAppRead: {Capacity: 20, RefillRate: 10},
		ClassCareAPI:      {Capacity: 5, RefillRate: 2},
	}
}

type bucket struct {
	mu         sync.Mutex
	capacity   float64
	refillRate float64
	tokens     float64
	lastRefill time.Time
}

// refill advances the bucket to now. Callers must hold b.mu so the
// refill and the following consume decision form one critical section.
func (b *bucket) refill(now time.Time) {
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens = min(b.capacity, b.tokens+elapsed*b.refillRate)
	b.lastRefill = now
}

// Limiter is a named set of token buckets shared by all workers. Each
// bucket has its own lock; waiting suspends only the calling goroutine.
type Limiter struct {
	buckets map[string]*bucket
	now     func() time.Time
	sleep   func(time.Duration)
}

// New builds a Limiter from the given bucket configs. Buckets start full.
func New(configs map[string]BucketConfig) *Limiter {
	l := &Limiter{
		buckets: make(map[string]*bucket, len(configs)),
		now:     time.Now,
		sleep:   time.Sleep,
	}
	start := l.now()
	for name, cfg := range configs {
		l.buckets[name] = &bucket{
			capacity:   cfg.Capacity,
			refillRate: cfg.RefillRate,
			tokens:     cfg.Capacity,
			lastRefill: start,
		}
	}
	return l
}

// Consume refills then deducts n tokens from class if available. It
// never blocks. An unknown class fails open: absence of policy must not
// break the bot.
func (l *Limiter) Consume(class string, n float64) bool {
	b, ok := l.buckets[class]
	if !ok {
		logrus.WithField("class", class).Warn("no rate limiter configured, failing open")
		return true
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill(l.now())
	if n > b.tokens {
		return false
	}
	b.tokens -= n
	return true
}

// WaitForTokens blocks the calling goroutine until n tokens are
// available in class, consumes them, and reports how long it waited.
// This is the only suspension point in the core; every outbound call to
// the messaging gateway or the backend API routes through it.
func (l *Limiter) WaitForTokens(class string, n float64) time.Duration {
	b, ok := l.buckets[class]
	if !ok {
		logrus.WithField("class", class).Warn("no rate limiter configured, failing open")
		return 0
	}

	b.mu.Lock()
	b.refill(l.now())
	if n <= b.tokens {
		b.tokens -= n
		b.mu.Unlock()
		return 0
	}

	deficit := n - b.tokens
	wait := time.Duration(deficit / b.refillRate * float64(time.Second))
	b.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"class": class,
		"wait":  wait,
	}).Debug("rate limit reached, waiting for tokens")
	l.sleep(wait)

	b.mu.Lock()
	b.tokens = 0
	b.lastRefill = l.now()
	b.mu.Unlock()
	return wait
}

// Tokens reports the current token count of class after a refill, for
// tests and diagnostics. Unknown classes report 0.
func (l *Limiter) Tokens(class string) float64 {
	b, ok := l.buckets[class]
	if !ok {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill(l.now())
	return b.tokens
}
