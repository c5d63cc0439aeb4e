// Package dispatch abstracts how document processing work is handed off. The
// api returns an acknowledgment immediately; callers poll the document status
// to observe completion. Two implementations exist: a Redis-backed queue for
// the worker deployment, and an in-process pool for single-binary setups.
package dispatch

import (
	"context"
	"errors"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/osoriodev/ragbase/internal/processor"
	"github.com/osoriodev/ragbase/internal/queue"
)

// ErrQueueFull is returned when the local job buffer cannot accept more work.
var ErrQueueFull = errors.New("processing queue full")

// Dispatcher hands a document id to whatever runs the processing pipeline.
type Dispatcher interface {
	Dispatch(ctx context.Context, documentID string) error
}

// QueueDispatcher enqueues processing jobs onto asynq for the worker binary.
type QueueDispatcher struct {
	client *asynq.Client
}

// NewQueueDispatcher constructs a QueueDispatcher.
func NewQueueDispatcher(client *asynq.Client) *QueueDispatcher {
	return &QueueDispatcher{client: client}
}

// Dispatch enqueues the job.
func (d *QueueDispatcher) Dispatch(ctx context.Context, documentID string) error {
	return queue.EnqueueProcess(ctx, d.client, queue.ProcessPayload{DocumentID: documentID})
}

// Runner is the piece of the processor the local dispatcher invokes.
type Runner interface {
	Process(ctx context.Context, documentID string) (*processor.Result, error)
}

// LocalDispatcher runs processing on in-process worker goroutines fed by a
// buffered channel. Once a job is accepted the triggering request's lifecycle
// no longer affects it; workers run on the dispatcher's own context.
type LocalDispatcher struct {
	runner  Runner
	jobs    chan string
	workers int
	log     zerolog.Logger
}

// NewLocalDispatcher builds a LocalDispatcher with queue capacity tied to
// worker count.
func NewLocalDispatcher(runner Runner, workers int, log zerolog.Logger) *LocalDispatcher {
	if workers <= 0 {
		workers = 1
	}
	return &LocalDispatcher{
		runner:  runner,
		jobs:    make(chan string, workers*4),
		workers: workers,
		log:     log.With().Str("component", "dispatch").Logger(),
	}
}

// Start launches the worker goroutines. They exit when ctx is cancelled.
func (d *LocalDispatcher) Start(ctx context.Context) {
	for i := 0; i < d.workers; i++ {
		go d.worker(ctx)
	}
}

// Dispatch queues a job. When the buffer is full the job is dropped and the
// error reported to the caller, so the api reflects reality instead of
// blocking the request.
func (d *LocalDispatcher) Dispatch(_ context.Context, documentID string) error {
	select {
	case d.jobs <- documentID:
		return nil
	default:
		d.log.Warn().Str("document_id", documentID).Msg("dispatch queue full, dropping job")
		return ErrQueueFull
	}
}

func (d *LocalDispatcher) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case documentID := <-d.jobs:
			// The processor records failures on the document itself; here we
			// only log them.
			if _, err := d.runner.Process(ctx, documentID); err != nil {
				d.log.Error().Str("document_id", documentID).Err(err).Msg("processing failed")
			}
		}
	}
}
