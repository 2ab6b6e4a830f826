package worker

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"caderneta_server/pkg/logger"
	"caderneta_server/pkg/metrics"
	"caderneta_server/pkg/resilience"

	"github.com/go-pkgz/pool"
)

// Processor handles a single job.
type Processor interface {
	Process(ctx context.Context, msg *Message) error
}

// DeadLetterFunc receives jobs that exhausted their retries.
type DeadLetterFunc func(ctx context.Context, msg *Message)

// PoolConfig holds worker pool configuration.
type PoolConfig struct {
	Workers        int
	BatchSize      int
	WorkerChanSize int
	JobTimeout     time.Duration
	MaxRetries     int
	BaseBackoff    time.Duration
	RatePerSecond  int
}

// DefaultPoolConfig returns default pool configuration
func DefaultPoolConfig() *PoolConfig {
	return &PoolConfig{
		Workers:        8,
		BatchSize:      1, // replies are latency bound
		WorkerChanSize: 100,
		JobTimeout:     30 * time.Second,
		MaxRetries:     3,
		BaseBackoff:    time.Second,
		RatePerSecond:  100,
	}
}

// PoolMetrics holds pool metrics.
type PoolMetrics struct {
	JobsProcessed  int64
	JobsFailed     int64
	JobsDropped    int64
	JobsRetried    int64
	AvgProcessTime int64 // milliseconds
	InFlight       int32
}

// Pool runs jobs on a go-pkgz/pool worker group. Jobs with the same Key
// always land on the same worker, so one sender's messages are answered in
// arrival order.
type Pool struct {
	processor  Processor
	deadLetter DeadLetterFunc
	config     *PoolConfig

	pool *pool.WorkerGroup[*Message]

	ctx    context.Context
	cancel context.CancelFunc

	metrics     *PoolMetrics
	registry    *metrics.Registry
	rateLimiter *RateLimiter
	log         *logger.Logger

	started bool
	mu      sync.Mutex
	retries sync.WaitGroup
}

type messageWorker struct {
	pool *Pool
}

// Do implements pool.Worker.
func (w *messageWorker) Do(ctx context.Context, msg *Message) error {
	return w.pool.processJob(ctx, msg)
}

// NewPool creates a new worker pool
func NewPool(processor Processor, deadLetter DeadLetterFunc, config *PoolConfig) *Pool {
	if config == nil {
		config = DefaultPoolConfig()
	}
	if deadLetter == nil {
		deadLetter = func(context.Context, *Message) {}
	}
	return &Pool{
		processor:   processor,
		deadLetter:  deadLetter,
		config:      config,
		metrics:     &PoolMetrics{},
		registry:    metrics.Global(),
		rateLimiter: NewRateLimiter(config.RatePerSecond, time.Second),
		log:         logger.WithField("component", "worker_pool"),
	}
}

// Start starts the worker pool. Jobs stop when ctx is cancelled or Stop is
// called.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return nil
	}
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.pool = pool.New[*Message](p.config.Workers, &messageWorker{pool: p}).
		WithBatchSize(p.config.BatchSize).
		WithWorkerChanSize(p.config.WorkerChanSize).
		WithChunkFn(func(m *Message) string { return m.Key() }).
		WithContinueOnError()

	if err := p.pool.Go(p.ctx); err != nil {
		p.cancel()
		return err
	}
	p.started = true

	go p.metricsReporter()

	p.log.Info("worker pool started with %d workers", p.config.Workers)
	return nil
}

// Stop drains queued jobs and stops the pool. Pending retries are dropped.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()

	p.log.Info("stopping worker pool...")
	closeCtx, closeCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer closeCancel()
	if err := p.pool.Close(closeCtx); err != nil && !errors.Is(err, context.Canceled) {
		p.log.WithError(err).Warn("error closing pool")
	}
	p.cancel()
	p.retries.Wait()

	m := p.GetMetrics()
	p.log.Info("worker pool stopped, processed=%d failed=%d", m.JobsProcessed, m.JobsFailed)
}

// Submit queues msg. It reports false when the pool is stopped or the
// job was rate limited.
func (p *Pool) Submit(msg *Message) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return false
	}

	if !p.rateLimiter.Allow() {
		atomic.AddInt64(&p.metrics.JobsDropped, 1)
		p.log.Warn("job %s (%s) dropped due to rate limiting", msg.ID, msg.Type)
		return false
	}

	atomic.AddInt32(&p.metrics.InFlight, 1)
	p.pool.Submit(msg)
	return true
}

func (p *Pool) processJob(ctx context.Context, msg *Message) error {
	start := time.Now()
	defer atomic.AddInt32(&p.metrics.InFlight, -1)

	jobCtx, cancel := context.WithTimeout(ctx, p.config.JobTimeout)
	err := p.processor.Process(jobCtx, msg)
	cancel()

	elapsed := time.Since(start)
	p.updateAvgProcessTime(elapsed.Milliseconds())
	p.registry.Observe("job."+msg.Type, elapsed)

	if err == nil {
		atomic.AddInt64(&p.metrics.JobsProcessed, 1)
		return nil
	}

	log := p.log.WithError(err).WithFields(map[string]any{
		"job_id":   msg.ID,
		"job_type": msg.Type,
		"retries":  msg.Retries,
	})
	log.Error("job processing failed")

	if msg.Retries < p.config.MaxRetries && !resilience.IsPermanent(err) && ctx.Err() == nil {
		msg.Retries++
		atomic.AddInt64(&p.metrics.JobsRetried, 1)
		p.scheduleRetry(msg)
		return err
	}

	atomic.AddInt64(&p.metrics.JobsFailed, 1)
	p.registry.Inc("job.dead_letter")
	log.Warn("job moved to dead letter after %d retries", msg.Retries)
	dlCtx, dlCancel := context.WithTimeout(context.Background(), p.config.JobTimeout)
	p.deadLetter(dlCtx, msg)
	dlCancel()
	return err
}

// scheduleRetry resubmits msg after an exponential backoff with jitter.
func (p *Pool) scheduleRetry(msg *Message) {
	base := p.config.BaseBackoff * time.Duration(1<<msg.Retries)
	backoff := base + time.Duration(rand.IntN(500))*time.Millisecond

	p.retries.Add(1)
	go func() {
		defer p.retries.Done()
		timer := time.NewTimer(backoff)
		defer timer.Stop()
		select {
		case <-p.ctx.Done():
			p.log.Warn("retry of job %s dropped during shutdown", msg.ID)
		case <-timer.C:
			if !p.Submit(msg) {
				p.log.Warn("retry of job %s not accepted", msg.ID)
			}
		}
	}()
}

func (p *Pool) updateAvgProcessTime(elapsed int64) {
	current := atomic.LoadInt64(&p.metrics.AvgProcessTime)
	if current == 0 {
		atomic.StoreInt64(&p.metrics.AvgProcessTime, elapsed)
		return
	}
	atomic.StoreInt64(&p.metrics.AvgProcessTime, (current*9+elapsed)/10)
}

func (p *Pool) metricsReporter() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			m := p.GetMetrics()
			p.log.WithFields(map[string]any{
				"processed":      m.JobsProcessed,
				"failed":         m.JobsFailed,
				"dropped":        m.JobsDropped,
				"retried":        m.JobsRetried,
				"avg_process_ms": m.AvgProcessTime,
				"in_flight":      m.InFlight,
			}).Info("worker pool metrics")
		}
	}
}

// GetMetrics returns current pool metrics.
func (p *Pool) GetMetrics() PoolMetrics {
	return PoolMetrics{
		JobsProcessed:  atomic.LoadInt64(&p.metrics.JobsProcessed),
		JobsFailed:     atomic.LoadInt64(&p.metrics.JobsFailed),
		JobsDropped:    atomic.LoadInt64(&p.metrics.JobsDropped),
		JobsRetried:    atomic.LoadInt64(&p.metrics.JobsRetried),
		AvgProcessTime: atomic.LoadInt64(&p.metrics.AvgProcessTime),
		InFlight:       atomic.LoadInt32(&p.metrics.InFlight),
	}
}

// RateLimiter is a lock-free token bucket.
type RateLimiter struct {
	tokens       int64
	maxTokens    int64
	intervalNs   int64
	lastRefillNs int64
}

// NewRateLimiter creates a bucket holding ratePerInterval tokens.
func NewRateLimiter(ratePerInterval int, interval time.Duration) *RateLimiter {
	tokens := int64(ratePerInterval)
	return &RateLimiter{
		tokens:       tokens,
		maxTokens:    tokens,
		intervalNs:   int64(interval),
		lastRefillNs: time.Now().UnixNano(),
	}
}

// Allow consumes a token if one is available.
func (r *RateLimiter) Allow() bool {
	if r.maxTokens <= 0 {
		return true
	}
	now := time.Now().UnixNano()
	lastRefill := atomic.LoadInt64(&r.lastRefillNs)

	if elapsed := now - lastRefill; elapsed >= r.intervalNs {
		add := (elapsed / r.intervalNs) * r.maxTokens
		if atomic.CompareAndSwapInt64(&r.lastRefillNs, lastRefill, now) {
			for {
				current := atomic.LoadInt64(&r.tokens)
				next := min(current+add, r.maxTokens)
				if atomic.CompareAndSwapInt64(&r.tokens, current, next) {
					break
				}
			}
		}
	}

	for {
		current := atomic.LoadInt64(&r.tokens)
		if current <= 0 {
			return false
		}
		if atomic.CompareAndSwapInt64(&r.tokens, current, current-1) {
			return true
		}
	}
}
