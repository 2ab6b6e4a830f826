package bootstrap

import (
	"context"
	"errors"
	"sync"
	"time"

	"caderneta_server/adapter/in/worker"
	"caderneta_server/core/domain"
	"caderneta_server/internal/stream"
	"caderneta_server/pkg/apperr"
	"caderneta_server/pkg/logger"
)

// Worker runs the job pool and, with Redis, the stream consumer.
type Worker struct {
	deps     *Dependencies
	pool     *worker.Pool
	consumer *stream.Consumer
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewWorker builds the pool that answers inbound messages. With Redis the
// pool is fed by the stream consumer; without it callers submit directly
// through LocalPublisher.
func NewWorker(deps *Dependencies) *Worker {
	inbound := worker.NewInboundProcessor(deps.Bot, deps.Messenger, deps.Metrics)
	handler := worker.NewHandler(inbound, deps.Classifier)

	poolConfig := worker.DefaultPoolConfig()
	poolConfig.Workers = deps.Config.WorkerCount

	w := &Worker{
		deps: deps,
		pool: worker.NewPool(handler, handler.DeadLetter, poolConfig),
	}
	if deps.Stream != nil {
		w.consumer = stream.NewConsumer(deps.Stream, w.pool, deps.Config.WorkerID)
	}
	return w
}

// Start launches the pool, the consumer and the model reload loop.
func (w *Worker) Start() error {
	w.ctx, w.cancel = context.WithCancel(context.Background())

	if err := w.pool.Start(w.ctx); err != nil {
		return err
	}
	if w.consumer != nil {
		if err := w.consumer.Start(w.ctx); err != nil {
			w.pool.Stop()
			return err
		}
	} else {
		logger.Warn("no stream configured, worker accepts in-process jobs only")
	}

	if interval := w.deps.Config.ModelReloadInterval; interval > 0 {
		w.wg.Add(1)
		go w.reloadLoop(interval)
	}

	logger.Info("worker %s started", w.deps.Config.WorkerID)
	return nil
}

// reloadLoop keeps every worker on the latest snapshot. A reload job on
// the stream reaches only one consumer of the group.
func (w *Worker) reloadLoop(interval time.Duration) {
	defer w.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			if err := w.deps.Classifier.Reload(w.ctx); err != nil {
				logger.WithError(err).Warn("periodic model reload")
			}
		}
	}
}

// Stop cancels consumption and drains the pool.
func (w *Worker) Stop() {
	if w.cancel == nil {
		return
	}
	w.cancel()
	w.pool.Stop()
	w.wg.Wait()
	logger.Info("worker %s stopped", w.deps.Config.WorkerID)
}

func (w *Worker) Pool() *worker.Pool { return w.pool }

var errPoolRejected = errors.New("worker pool rejected message")

// LocalPublisher hands inbound messages straight to an in-process pool.
type LocalPublisher struct {
	pool *worker.Pool
}

// NewLocalPublisher creates a publisher backed by pool.
func NewLocalPublisher(pool *worker.Pool) *LocalPublisher {
	return &LocalPublisher{pool: pool}
}

// PublishInbound submits msg to the pool and returns the job id.
func (p *LocalPublisher) PublishInbound(_ context.Context, msg domain.InboundMessage) (string, error) {
	job := worker.NewMessage(worker.JobInbound, worker.InboundPayloadFrom(msg))
	if !p.pool.Submit(job) {
		return "", apperr.Internal("queue inbound message").WithError(errPoolRejected)
	}
	return job.ID, nil
}
