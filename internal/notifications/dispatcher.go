// Package notifications queues push notifications for offline recipients.
package notifications

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"keeper/internal/models"
	"keeper/internal/observability"
	"keeper/internal/rabbitmq"
)

var (
	ErrQueueFull = errors.New("notification queue full")
	ErrStopped   = errors.New("notification dispatcher stopped")
)

type Config struct {
	RoutingKey  string
	Workers     int
	Buffer      int
	MaxAttempts int
	RetryDelay  time.Duration
}

// Dispatcher hands notification jobs to a pool of workers that publish them to the broker.
// Enqueue never blocks the caller.
type Dispatcher struct {
	cfg       Config
	publisher rabbitmq.Publisher
	jobs      chan models.NotificationJob
	wg        sync.WaitGroup
	mu        sync.RWMutex
	started   bool
	stopped   bool
	log       *zap.Logger
}

func NewDispatcher(cfg Config, publisher rabbitmq.Publisher, log *zap.Logger) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 1
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 200 * time.Millisecond
	}
	return &Dispatcher{
		cfg:       cfg,
		publisher: publisher,
		jobs:      make(chan models.NotificationJob, cfg.Buffer),
		log:       log,
	}
}

// Start launches the workers. Jobs still queued at Stop are drained before it returns.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return fmt.Errorf("dispatcher is already running")
	}
	d.started = true

	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go func(id int) {
			defer d.wg.Done()
			d.run(ctx, id)
		}(i + 1)
	}
	d.log.Info("notification dispatcher started", zap.Int("workers", d.cfg.Workers), zap.Int("buffer", d.cfg.Buffer))
	return nil
}

func (d *Dispatcher) Enqueue(job models.NotificationJob) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		return ErrStopped
	}

	select {
	case d.jobs <- job:
		return nil
	default:
		observability.IncNotification("dropped")
		return ErrQueueFull
	}
}

func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return nil
	}
	d.stopped = true
	close(d.jobs)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.log.Info("notification dispatcher stopped")
		return nil
	case <-ctx.Done():
		d.log.Warn("timeout waiting for notification workers")
		return ctx.Err()
	}
}

func (d *Dispatcher) run(ctx context.Context, id int) {
	for job := range d.jobs {
		d.deliver(ctx, id, job)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, worker int, job models.NotificationJob) {
	log := d.log.With(zap.Int("worker", worker), zap.String("recipient", job.RecipientUsername), zap.Int64("room_id", job.RoomID))

	var err error
	for attempt := 1; attempt <= d.cfg.MaxAttempts; attempt++ {
		if err = d.publisher.Publish(ctx, d.cfg.RoutingKey, job); err == nil {
			observability.IncNotification("sent")
			log.Debug("notification queued")
			return
		}
		if attempt < d.cfg.MaxAttempts {
			select {
			case <-ctx.Done():
				observability.IncNotification("cancelled")
				log.Warn("notification retry abandoned", zap.Int("attempt", attempt), zap.Error(err))
				return
			case <-time.After(d.cfg.RetryDelay * time.Duration(attempt)):
			}
		}
	}
	observability.IncNotification("failed")
	log.Error("notification publish failed", zap.Int("attempts", d.cfg.MaxAttempts), zap.Error(err))
}
