// Package worker plugs the document processor into the asynq worker loop.
package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/osoriodev/ragbase/internal/processor"
	"github.com/osoriodev/ragbase/internal/queue"
)

// Handler consumes processing tasks.
type Handler struct {
	proc *processor.Processor
	log  zerolog.Logger
}

// NewHandler constructs a worker handler.
func NewHandler(proc *processor.Processor, log zerolog.Logger) *Handler {
	return &Handler{proc: proc, log: log.With().Str("component", "worker").Logger()}
}

// Mux registers the process job handler.
func (h *Handler) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.ProcessDocumentTask, h.handleProcess)
	return mux
}

func (h *Handler) handleProcess(ctx context.Context, task *asynq.Task) error {
	var payload queue.ProcessPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	result, err := h.proc.Process(ctx, payload.DocumentID)
	if err != nil {
		// The processor already recorded the failure on the document; the
		// task is not retried, a fresh process request starts a new attempt.
		h.log.Error().Str("document_id", payload.DocumentID).Err(err).Msg("processing failed")
		return nil
	}
	h.log.Info().Str("document_id", result.DocumentID).Int("chunks", result.ChunkCount).Msg("document processed")
	return nil
}
