package mindloop

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/mohammad-safakhou/mindloop/config"
)

// Pacer spaces out model calls within a cycle.
type Pacer interface {
	// BetweenAgents waits before the next agent. afterFailure is set when
	// the previous agent failed.
	BetweenAgents(ctx context.Context, afterFailure bool) error
	// BeforeSynthesis waits once all agents were attempted.
	BeforeSynthesis(ctx context.Context) error
}

// NewPacer builds the pacer named by cfg.Strategy.
func NewPacer(cfg config.PacingConfig) Pacer {
	cfg = cfg.Normalize()
	switch cfg.Strategy {
	case config.PacingNone:
		return NoPacer{}
	case config.PacingTokenBucket:
		return NewTokenBucketPacer(cfg.RequestsPerMinute, cfg.Burst, cfg.SettleDelay)
	default:
		return NewJitterPacer(cfg.InterAgentDelay, cfg.Jitter, cfg.FailureDelay, cfg.SettleDelay)
	}
}

// JitterPacer waits base plus up to jitter between agents, a fixed longer
// delay after a failure, and settle before synthesis.
type JitterPacer struct {
	mu      sync.Mutex
	base    time.Duration
	jitter  time.Duration
	failure time.Duration
	settle  time.Duration
	rnd     *rand.Rand
	sleep   func(context.Context, time.Duration) error
}

func NewJitterPacer(base, jitter, failure, settle time.Duration) *JitterPacer {
	return &JitterPacer{
		base:    base,
		jitter:  jitter,
		failure: failure,
		settle:  settle,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:   sleepContext,
	}
}

// SetInterAgentDelay changes the base delay for later waits.
func (p *JitterPacer) SetInterAgentDelay(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if d >= 0 {
		p.base = d
	}
}

// Next returns the delay BetweenAgents would wait.
func (p *JitterPacer) Next(afterFailure bool) time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if afterFailure {
		return p.failure
	}
	d := p.base
	if p.jitter > 0 {
		d += time.Duration(p.rnd.Int63n(int64(p.jitter)))
	}
	return d
}

func (p *JitterPacer) BetweenAgents(ctx context.Context, afterFailure bool) error {
	return p.sleep(ctx, p.Next(afterFailure))
}

func (p *JitterPacer) BeforeSynthesis(ctx context.Context) error {
	return p.sleep(ctx, p.settle)
}

// TokenBucketPacer admits agents at a steady request rate.
type TokenBucketPacer struct {
	limiter *rate.Limiter
	settle  time.Duration
}

func NewTokenBucketPacer(perMinute float64, burst int, settle time.Duration) *TokenBucketPacer {
	if burst <= 0 {
		burst = 1
	}
	return &TokenBucketPacer{
		limiter: rate.NewLimiter(rate.Limit(perMinute/60), burst),
		settle:  settle,
	}
}

func (p *TokenBucketPacer) BetweenAgents(ctx context.Context, _ bool) error {
	return p.limiter.Wait(ctx)
}

func (p *TokenBucketPacer) BeforeSynthesis(ctx context.Context) error {
	return sleepContext(ctx, p.settle)
}

// NoPacer never waits.
type NoPacer struct{}

func (NoPacer) BetweenAgents(ctx context.Context, _ bool) error { return ctx.Err() }
func (NoPacer) BeforeSynthesis(ctx context.Context) error       { return ctx.Err() }

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
