package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/blustreamin/corpus-engine/pkg/metrics"
)

// Kind identifies one downstream API family. Each kind owns one FIFO queue
// with its own RPM budget, shared by every caller in the process.
type Kind string

const (
	KindGoogle Kind = "google"
	KindAmazon Kind = "amazon"
)

const (
	backoffBase   = 60 * time.Second
	backoffJitter = 5 * time.Second
)

// Outcome is the normalized result of one externally visible provider call.
// Err marks transport-level failures (network, timeout), which are retryable;
// logical failures arrive as OK=false with a status and are final.
type Outcome struct {
	OK          bool
	Status      int
	RateLimited bool
	Rows        int
	Err         error
}

type WorkFunc func(ctx context.Context) Outcome

type Config struct {
	MaxRPM     int
	MaxRetries int
}

// Executor serializes all provider calls of a kind through one FIFO queue,
// enforcing a minimum inter-call interval of a full RPM window slice measured
// from the end of the previous call, and retries transient failures with a
// full-window backoff. One instance is shared process-wide; construct it at
// startup and inject it into every caller.
type Executor struct {
	cfg         Config
	minInterval time.Duration

	mu     sync.Mutex
	queues map[Kind]*kindQueue

	log *zap.SugaredLogger

	// test seams
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func() time.Duration
}

func NewExecutor(cfg Config) *Executor {
	if cfg.MaxRPM <= 0 {
		cfg.MaxRPM = 10
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	return &Executor{
		cfg:         cfg,
		minInterval: time.Minute / time.Duration(cfg.MaxRPM),
		queues:      make(map[Kind]*kindQueue),
		log:         zap.S().Named("ratelimit"),
		now:         time.Now,
		sleep:       sleepCtx,
		jitter:      func() time.Duration { return time.Duration(rand.Int63n(int64(backoffJitter))) },
	}
}

// Execute runs fn under the kind's budget. It blocks until the queue admits
// the call and the minimum interval has elapsed, then retries rate-limit,
// 5xx, and transport failures with backoff up to the configured budget.
// A spent budget surfaces as *RateLimitExhaustedError or *UnavailableError
// depending on what consumed it; any other outcome is returned as-is.
func (e *Executor) Execute(ctx context.Context, kind Kind, contextLabel string, fn WorkFunc) (Outcome, error) {
	q := e.queue(kind)
	if err := q.acquire(ctx); err != nil {
		return Outcome{}, err
	}
	defer q.release()

	var lastErr error
	for attempt := 1; attempt <= e.cfg.MaxRetries; attempt++ {
		wait := e.minInterval - e.now().Sub(q.lastCall)
		if wait > 0 {
			if err := e.sleep(ctx, wait); err != nil {
				return Outcome{}, err
			}
		} else {
			wait = 0
		}

		start := e.now()
		out := fn(ctx)
		q.lastCall = e.now()
		latency := q.lastCall.Sub(start)

		e.log.Infow("provider call",
			"kind", kind,
			"context", contextLabel,
			"attempt", attempt,
			"wait_ms", wait.Milliseconds(),
			"latency_ms", latency.Milliseconds(),
			"ok", out.OK,
			"status", out.Status,
			"rate_limited", out.RateLimited,
			"err", out.Err,
		)
		metrics.IncreaseProviderCall(string(kind), callOutcomeLabel(out))

		switch {
		case out.RateLimited:
			lastErr = &RateLimitExhaustedError{Kind: kind, Attempts: attempt}
			if attempt == e.cfg.MaxRetries {
				e.log.Errorw("rate limit budget exhausted", "kind", kind, "context", contextLabel, "attempts", attempt)
				return out, &RateLimitExhaustedError{Kind: kind, Attempts: attempt}
			}
			e.backoff(ctx, kind, attempt, "rate_limit")

		case out.Status >= 500:
			if attempt == e.cfg.MaxRetries {
				return out, &UnavailableError{Kind: kind, Err: fmt5xx(out.Status)}
			}
			e.backoff(ctx, kind, attempt, "5xx")

		case out.Err != nil:
			lastErr = out.Err
			if attempt == e.cfg.MaxRetries {
				return out, &UnavailableError{Kind: kind, Err: out.Err}
			}
			e.backoff(ctx, kind, attempt, "network")

		default:
			// success or a final logical error; never retried
			return out, nil
		}

		if err := ctx.Err(); err != nil {
			return out, err
		}
	}

	// unreachable: every exhaustion path above returns
	return Outcome{}, &UnavailableError{Kind: kind, Err: lastErr}
}

// backoff waits out at least a full RPM window plus jitter so the provider's
// rolling limit clears before the next attempt.
func (e *Executor) backoff(ctx context.Context, kind Kind, attempt int, reason string) {
	d := backoffBase + e.jitter()
	e.log.Warnw("provider backoff", "kind", kind, "attempt", attempt, "reason", reason, "sleep_ms", d.Milliseconds())
	metrics.IncreaseProviderBackoff(string(kind), reason)
	_ = e.sleep(ctx, d)
}

func (e *Executor) queue(kind Kind) *kindQueue {
	e.mu.Lock()
	defer e.mu.Unlock()
	q, ok := e.queues[kind]
	if !ok {
		q = &kindQueue{}
		e.queues[kind] = q
	}
	return q
}

func callOutcomeLabel(out Outcome) string {
	switch {
	case out.RateLimited:
		return "rate_limited"
	case out.Err != nil:
		return "network_error"
	case out.OK:
		return "ok"
	default:
		return "logical_error"
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
